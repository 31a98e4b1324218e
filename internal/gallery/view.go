package gallery

import (
	"context"

	"github.com/xotten/portfolio/internal/domain"
	"github.com/xotten/portfolio/internal/router"
)

// OwnerFlag reports whether owner mode is on.
type OwnerFlag interface {
	Enabled() bool
}

// ImageRewriter maps a feed image URL to the URL served to visitors.
type ImageRewriter interface {
	Rewrite(ctx context.Context, raw string) string
}

type anonymous struct{}

func (anonymous) Enabled() bool { return false }

type passthrough struct{}

func (passthrough) Rewrite(_ context.Context, raw string) string { return raw }

// SoldLabel is the ribbon text shown on sold works in owner mode.
const SoldLabel = "Sold"

// Card is the render model of one visible artwork.
type Card struct {
	Index        int
	ID           string
	Title        string
	Alt          string
	CaptionLine  string
	CaptionColor string
	ImageURL     string
	Year         string
	Media        string
	Size         string
	Price        string
	SoldLabel    string
}

// View composes the page, the filter criteria, the artwork list, the visible subset and the
// lightbox. Every input change recomputes the visible subset and resyncs the navigator.
type View struct {
	page     router.Page
	query    string
	tag      string
	all      []domain.Artwork
	visible  []domain.Artwork
	nav      *Navigator
	owner    OwnerFlag
	rewriter ImageRewriter
}

// ViewOption customises a View.
type ViewOption func(*View)

// WithOwner sets the owner-mode flag consulted when rendering cards.
func WithOwner(o OwnerFlag) ViewOption {
	return func(v *View) {
		if o != nil {
			v.owner = o
		}
	}
}

// WithRewriter sets the image URL rewriter.
func WithRewriter(r ImageRewriter) ViewOption {
	return func(v *View) {
		if r != nil {
			v.rewriter = r
		}
	}
}

// WithNavigator sets the lightbox navigator.
func WithNavigator(n *Navigator) ViewOption {
	return func(v *View) {
		if n != nil {
			v.nav = n
		}
	}
}

// NewView returns a view of page over an empty list.
func NewView(page router.Page, opts ...ViewOption) *View {
	v := &View{page: page, owner: anonymous{}, rewriter: passthrough{}}
	for _, opt := range opts {
		if opt != nil {
			opt(v)
		}
	}
	if v.nav == nil {
		v.nav = NewNavigator()
	}
	v.recompute()
	return v
}

// Page returns the current page.
func (v *View) Page() router.Page { return v.page }

// Navigator returns the lightbox.
func (v *View) Navigator() *Navigator { return v.nav }

// Criteria returns the effective filter criteria.
func (v *View) Criteria() Criteria {
	return Criteria{Query: v.query, Tag: v.tag, Sold: v.page.SoldMode()}
}

// Items returns the full list.
func (v *View) Items() []domain.Artwork { return v.all }

// Visible returns the filtered list.
func (v *View) Visible() []domain.Artwork { return v.visible }

// Tags returns the tag vocabulary of the full list.
func (v *View) Tags() []string { return TagVocabulary(v.all) }

// OwnerEnabled reports the owner flag.
func (v *View) OwnerEnabled() bool { return v.owner.Enabled() }

// SetItems replaces the full list.
func (v *View) SetItems(items []domain.Artwork) {
	v.all = items
	v.recompute()
}

// SetPage switches page; the sold predicate follows the page.
func (v *View) SetPage(p router.Page) {
	v.page = p
	v.recompute()
}

// SetQuery changes the free-text query.
func (v *View) SetQuery(q string) {
	v.query = q
	v.recompute()
}

// SetTag changes the tag selector.
func (v *View) SetTag(tag string) {
	v.tag = tag
	v.recompute()
}

// OpenAt opens the lightbox at index i of the visible list.
func (v *View) OpenAt(i int) bool {
	return v.nav.Open(v.visible, i)
}

// Find returns the first record with id across the full list.
func (v *View) Find(id string) (domain.Artwork, bool) {
	for _, a := range v.all {
		if a.ID == id {
			return a, true
		}
	}
	return domain.Artwork{}, false
}

func (v *View) recompute() {
	if v.page.IsGallery() {
		v.visible = Filter(v.all, v.Criteria())
	} else {
		v.visible = []domain.Artwork{}
	}
	v.nav.Sync(v.visible)
}

// Cards renders the visible list.
func (v *View) Cards(ctx context.Context) []Card {
	cards := make([]Card, 0, len(v.visible))
	for i, a := range v.visible {
		cards = append(cards, v.Card(ctx, i, a))
	}
	return cards
}

// Card renders one record at index i.
func (v *View) Card(ctx context.Context, i int, a domain.Artwork) Card {
	c := Card{
		Index:        i,
		ID:           a.ID,
		Title:        a.Title,
		Alt:          a.Title,
		CaptionLine:  CaptionLine(a),
		CaptionColor: CaptionColor(a.Tags),
		Year:         a.YearString(),
		Media:        a.Media,
		Size:         a.Size,
	}
	if c.Alt == "" {
		c.Alt = "Artwork"
	}
	if a.HasImage() {
		c.ImageURL = v.rewriter.Rewrite(ctx, a.Image)
	}
	if v.owner.Enabled() {
		c.Price = a.Price
		if a.Sold {
			c.SoldLabel = SoldLabel
		}
	}
	return c
}
