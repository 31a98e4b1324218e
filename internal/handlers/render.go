package handlers

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"go.uber.org/zap"

	"github.com/xotten/portfolio/internal/codex"
	"github.com/xotten/portfolio/internal/content"
	"github.com/xotten/portfolio/internal/gallery"
	"github.com/xotten/portfolio/internal/platform/requestctx"
	"github.com/xotten/portfolio/internal/prefs"
	"github.com/xotten/portfolio/internal/router"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(template.New("_root").Funcs(template.FuncMap{
	// Caption colours are package constants, never visitor input.
	"safeCSS": func(s string) template.CSS { return template.CSS(s) },
}).ParseFS(templateFS, "templates/*.tmpl"))

type navItem struct {
	Label  string
	Href   string
	Active bool
}

var navPages = []router.Name{router.Home, router.Portfolio, router.About, router.Contact, router.Codex}

func buildNav(current router.Name) []navItem {
	items := make([]navItem, 0, len(navPages))
	for _, name := range navPages {
		p := router.Page{Name: name}
		items = append(items, navItem{Label: p.Title(), Href: p.Path(), Active: name == current})
	}
	return items
}

// pageData is the layout view model; exactly one section pointer is set per page.
type pageData struct {
	Title    string
	Notice   string
	Nav      []navItem
	Owner    bool
	Density  prefs.Density
	CSRF     string
	Return   string
	Year     int
	Prefetch []string

	Gallery  *galleryData
	Lightbox *lightboxData
	Detail   *detailData
	Content  *content.Page
	Contact  *contactData
	Codex    *codexData
}

type tagOption struct {
	Value    string
	Label    string
	Selected bool
}

type tileData struct {
	Href string
	Card gallery.Card
}

type galleryData struct {
	Page    router.Name
	Heading string
	Action  string
	Query   string
	Tags    []tagOption
	Cards   []tileData
}

type lightboxData struct {
	Card       gallery.Card
	Position   int
	Total      int
	PrevHref   string
	NextHref   string
	CloseHref  string
	DetailHref string
}

type tagLink struct {
	Label string
	Href  string
}

type detailData struct {
	Card     gallery.Card
	Tags     []tagLink
	BackHref string
}

type contactData struct {
	Status  string
	Notice  string
	Name    string
	Email   string
	Message string
	Errors  map[string]string
}

type codexData struct {
	Messages []codex.Message
	Error    string
	Draft    string
}

func (h *Handlers) render(w http.ResponseWriter, r *http.Request, status int, data pageData) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, "base", data); err != nil {
		requestctx.Logger(r.Context()).Error("render failed", zap.Error(err))
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
