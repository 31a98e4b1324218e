package handlers

import (
	"net/http"
	"strings"

	"github.com/xotten/portfolio/internal/domain"
	"github.com/xotten/portfolio/internal/gallery"
	"github.com/xotten/portfolio/internal/platform/httpx"
	"github.com/xotten/portfolio/internal/router"
)

type artworkPayload struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Year         string   `json:"year,omitempty"`
	Media        string   `json:"media,omitempty"`
	Size         string   `json:"size,omitempty"`
	Image        string   `json:"image,omitempty"`
	Tags         []string `json:"tags"`
	Caption      string   `json:"caption"`
	CaptionColor string   `json:"captionColor"`
	Price        string   `json:"price,omitempty"`
	Sold         *bool    `json:"sold,omitempty"`
}

type artworksResponse struct {
	Items  []artworkPayload `json:"items"`
	Count  int              `json:"count"`
	Source string           `json:"source"`
}

// Artworks lists works as JSON filtered by q, tag and sold (available, sold or both; default both).
// Price and sold state are included only in owner mode.
func (h *Handlers) Artworks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	sold := domain.SoldBoth
	if raw := strings.TrimSpace(q.Get("sold")); raw != "" {
		mode, ok := domain.ParseSoldMode(strings.ToLower(raw))
		if !ok {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_sold", "sold must be available, sold or both", http.StatusBadRequest))
			return
		}
		sold = mode
	}

	g := h.gate(r)
	v := gallery.NewView(router.Page{Name: router.Detail}, gallery.WithOwner(g), gallery.WithRewriter(h.images))
	items := gallery.Filter(h.catalog.Items(), gallery.Criteria{Query: q.Get("q"), Tag: q.Get("tag"), Sold: sold})

	payload := make([]artworkPayload, 0, len(items))
	for i, a := range items {
		c := v.Card(ctx, i, a)
		p := artworkPayload{
			ID:           a.ID,
			Title:        a.Title,
			Year:         c.Year,
			Media:        a.Media,
			Size:         a.Size,
			Image:        c.ImageURL,
			Tags:         append([]string{}, a.Tags...),
			Caption:      c.CaptionLine,
			CaptionColor: c.CaptionColor,
			Price:        c.Price,
		}
		if g.Enabled() {
			s := a.Sold
			p.Sold = &s
		}
		payload = append(payload, p)
	}
	httpx.WriteJSON(w, http.StatusOK, artworksResponse{
		Items:  payload,
		Count:  len(payload),
		Source: string(h.catalog.Source()),
	})
}

// Tags returns the tag vocabulary, "all" first.
func (h *Handlers) Tags(w http.ResponseWriter, _ *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string][]string{"tags": gallery.TagVocabulary(h.catalog.Items())})
}

// Healthz reports liveness and which list is being served.
func (h *Handlers) Healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Catalog-Source", string(h.catalog.Source()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
