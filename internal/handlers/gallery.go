package handlers

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/xotten/portfolio/internal/gallery"
	"github.com/xotten/portfolio/internal/owner"
	"github.com/xotten/portfolio/internal/router"
)

// galleryPages maps the {page} URL segment of lightbox routes.
var galleryPages = map[string]router.Name{
	"home":      router.Home,
	"portfolio": router.Portfolio,
}

// Home lists available works.
func (h *Handlers) Home(w http.ResponseWriter, r *http.Request) {
	h.gallery(w, r, router.Page{Name: router.Home})
}

// Portfolio lists sold works.
func (h *Handlers) Portfolio(w http.ResponseWriter, r *http.Request) {
	h.gallery(w, r, router.Page{Name: router.Portfolio})
}

func (h *Handlers) view(r *http.Request, page router.Page, g *owner.Gate, navOpts ...gallery.NavigatorOption) *gallery.View {
	v := gallery.NewView(page,
		gallery.WithOwner(g),
		gallery.WithRewriter(h.images),
		gallery.WithNavigator(gallery.NewNavigator(navOpts...)),
	)
	v.SetItems(h.catalog.Items())
	q := r.URL.Query()
	v.SetQuery(q.Get("q"))
	v.SetTag(q.Get("tag"))
	return v
}

func (h *Handlers) gallery(w http.ResponseWriter, r *http.Request, page router.Page) {
	g := h.gate(r)
	v := h.view(r, page, g)
	ctx := r.Context()

	crit := v.Criteria()
	selected := strings.ToLower(strings.TrimSpace(crit.Tag))
	if selected == "" {
		selected = gallery.AllTags
	}
	var tags []tagOption
	for _, t := range v.Tags() {
		label := t
		if t == gallery.AllTags {
			label = "All"
		}
		tags = append(tags, tagOption{Value: t, Label: label, Selected: t == selected})
	}

	cards := v.Cards(ctx)
	tiles := make([]tileData, 0, len(cards))
	for _, c := range cards {
		tiles = append(tiles, tileData{Href: lightboxHref(page, c.Index, r.URL.Query()), Card: c})
	}

	data := h.layout(r, g, page.Title())
	data.Nav = buildNav(page.Name)
	data.Gallery = &galleryData{
		Page:    page.Name,
		Heading: page.Title(),
		Action:  page.Path(),
		Query:   crit.Query,
		Tags:    tags,
		Cards:   tiles,
	}
	h.render(w, r, http.StatusOK, data)
}

// prefetchList collects neighbour image URLs the navigator warms.
type prefetchList struct {
	urls []string
}

func (p *prefetchList) Prefetch(u string) error {
	for _, existing := range p.urls {
		if existing == u {
			return nil
		}
	}
	p.urls = append(p.urls, u)
	return nil
}

// Lightbox renders the gallery page with the overlay open at {index}. An index outside the
// filtered list redirects back to the gallery.
func (h *Handlers) Lightbox(w http.ResponseWriter, r *http.Request) {
	name, ok := galleryPages[chi.URLParam(r, "page")]
	if !ok {
		http.NotFound(w, r)
		return
	}
	page := router.Page{Name: name}
	query := r.URL.Query()
	back := withFilters(page.Path(), query)

	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		http.Redirect(w, r, back, http.StatusSeeOther)
		return
	}

	g := h.gate(r)
	warm := &prefetchList{}
	v := h.view(r, page, g, gallery.WithPrefetcher(warm))
	if !v.OpenAt(index) {
		http.Redirect(w, r, back, http.StatusSeeOther)
		return
	}
	nav := v.Navigator()
	current, _ := nav.Current()
	i, _ := nav.Index()
	total := len(v.Visible())
	prev, next := gallery.Neighbours(i, total)

	ctx := r.Context()
	data := h.layout(r, g, current.Title)
	data.Nav = buildNav(page.Name)
	for _, u := range warm.urls {
		if u == current.Image {
			continue
		}
		data.Prefetch = append(data.Prefetch, h.images.Rewrite(ctx, u))
	}
	data.Lightbox = &lightboxData{
		Card:       v.Card(ctx, i, current),
		Position:   i + 1,
		Total:      total,
		PrevHref:   lightboxHref(page, prev, query),
		NextHref:   lightboxHref(page, next, query),
		CloseHref:  back,
		DetailHref: router.Page{Name: router.Detail, ArtworkID: current.ID}.Path(),
	}
	h.render(w, r, http.StatusOK, data)
}

// Detail renders one artwork by id.
func (h *Handlers) Detail(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if decoded, err := url.PathUnescape(id); err == nil {
		id = decoded
	}
	page := router.Page{Name: router.Detail, ArtworkID: id}
	g := h.gate(r)
	v := h.view(r, page, g)
	art, ok := v.Find(id)
	if !ok {
		http.NotFound(w, r)
		return
	}

	back := router.Page{Name: router.Home}
	if art.Sold {
		back = router.Page{Name: router.Portfolio}
	}
	var tags []tagLink
	for _, t := range art.Tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		tags = append(tags, tagLink{Label: t, Href: withFilters(back.Path(), url.Values{"tag": {strings.ToLower(t)}})})
	}

	data := h.layout(r, g, art.Title)
	data.Nav = buildNav(back.Name)
	data.Detail = &detailData{
		Card:     v.Card(r.Context(), 0, art),
		Tags:     tags,
		BackHref: back.Path(),
	}
	h.render(w, r, http.StatusOK, data)
}

func lightboxHref(page router.Page, index int, query url.Values) string {
	segment := "home"
	if page.Name == router.Portfolio {
		segment = "portfolio"
	}
	return withFilters("/"+segment+"/view/"+strconv.Itoa(index), query)
}

// withFilters appends the non-empty q and tag parameters to path.
func withFilters(path string, query url.Values) string {
	keep := url.Values{}
	for _, key := range []string{"q", "tag"} {
		if v := strings.TrimSpace(query.Get(key)); v != "" {
			keep.Set(key, v)
		}
	}
	if len(keep) == 0 {
		return path
	}
	return path + "?" + keep.Encode()
}
