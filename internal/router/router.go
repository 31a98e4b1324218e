// Package router maps URL fragments and paths to the site's pages.
package router

import (
	"net/url"
	"strings"
	"sync"

	"github.com/xotten/portfolio/internal/domain"
)

// Name identifies a page.
type Name string

const (
	Home      Name = "home"
	Portfolio Name = "portfolio"
	About     Name = "about"
	Contact   Name = "contact"
	Codex     Name = "codex"
	Detail    Name = "detail"
)

// Page is the resolved route. ArtworkID is set only for Detail.
type Page struct {
	Name      Name
	ArtworkID string
}

var titles = map[Name]string{
	Home:      "Home",
	Portfolio: "Portfolio",
	About:     "About",
	Contact:   "Contact",
	Codex:     "Codex",
	Detail:    "Artwork",
}

// Resolve maps "#/x", "/x" or "x" (trailing slashes and query suffixes ignored) to a page.
// Anything unrecognised resolves to Home.
func Resolve(fragment string) Page {
	path := strings.TrimSpace(fragment)
	path = strings.TrimPrefix(path, "#")
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	path = strings.Trim(path, "/")
	if path == "" {
		return Page{Name: Home}
	}

	segments := strings.Split(path, "/")
	switch strings.ToLower(segments[0]) {
	case "portfolio":
		if len(segments) == 1 {
			return Page{Name: Portfolio}
		}
	case "about":
		if len(segments) == 1 {
			return Page{Name: About}
		}
	case "contact":
		if len(segments) == 1 {
			return Page{Name: Contact}
		}
	case "codex":
		if len(segments) == 1 {
			return Page{Name: Codex}
		}
	case "art":
		if len(segments) == 2 {
			id, err := url.PathUnescape(segments[1])
			if err == nil && strings.TrimSpace(id) != "" {
				return Page{Name: Detail, ArtworkID: id}
			}
		}
	}
	return Page{Name: Home}
}

// Path is the server path for the page.
func (p Page) Path() string {
	switch p.Name {
	case Portfolio, About, Contact, Codex:
		return "/" + string(p.Name)
	case Detail:
		return "/art/" + url.PathEscape(p.ArtworkID)
	default:
		return "/"
	}
}

// Fragment is the hash form of Path, the inverse of Resolve.
func (p Page) Fragment() string {
	return "#" + p.Path()
}

// Title is the page heading.
func (p Page) Title() string {
	return titles[p.Name]
}

// IsGallery reports whether the page lists artworks.
func (p Page) IsGallery() bool {
	return p.Name == Home || p.Name == Portfolio
}

// SoldMode is the sold predicate of a gallery page: Home lists available works, Portfolio sold ones.
func (p Page) SoldMode() domain.SoldMode {
	switch p.Name {
	case Portfolio:
		return domain.SoldOnly
	case Home:
		return domain.SoldAvailable
	default:
		return domain.SoldBoth
	}
}

// Router holds the current page and notifies subscribers when it changes.
type Router struct {
	mu      sync.Mutex
	current Page
	subs    map[int]func(Page)
	nextID  int
}

// New returns a Router positioned at the page for fragment.
func New(fragment string) *Router {
	return &Router{current: Resolve(fragment), subs: make(map[int]func(Page))}
}

// Current returns the active page.
func (r *Router) Current() Page {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Navigate resolves fragment and makes it current. Subscribers are notified only when the page changed.
func (r *Router) Navigate(fragment string) bool {
	next := Resolve(fragment)

	r.mu.Lock()
	if next == r.current {
		r.mu.Unlock()
		return false
	}
	r.current = next
	subs := make([]func(Page), 0, len(r.subs))
	for _, fn := range r.subs {
		subs = append(subs, fn)
	}
	r.mu.Unlock()

	for _, fn := range subs {
		fn(next)
	}
	return true
}

// Subscribe registers fn for page changes and returns its cancel func.
func (r *Router) Subscribe(fn func(Page)) func() {
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.subs[id] = fn
	r.mu.Unlock()
	return func() {
		r.mu.Lock()
		delete(r.subs, id)
		r.mu.Unlock()
	}
}
