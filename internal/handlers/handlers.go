// Package handlers serves the portfolio site over HTTP.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xotten/portfolio/internal/catalog"
	"github.com/xotten/portfolio/internal/codex"
	"github.com/xotten/portfolio/internal/contact"
	"github.com/xotten/portfolio/internal/content"
	"github.com/xotten/portfolio/internal/domain"
	"github.com/xotten/portfolio/internal/kv"
	"github.com/xotten/portfolio/internal/media"
	"github.com/xotten/portfolio/internal/owner"
	"github.com/xotten/portfolio/internal/platform/requestctx"
	"github.com/xotten/portfolio/internal/platform/session"
	"github.com/xotten/portfolio/internal/prefs"
)

const (
	defaultUnlockPerMinute = 10
	anonymousVisitor       = "anonymous"
)

var errNoCatalog = errors.New("handlers: catalog is required")

// Catalog is the artwork list the site renders.
type Catalog interface {
	Items() []domain.Artwork
	Source() catalog.Source
}

// Deps wires the collaborators behind the HTTP surface.
type Deps struct {
	Catalog Catalog
	// Prefs holds each visitor's small preferences (owner flag, density). Defaults to the session cookie.
	Prefs kv.Store
	// Threads stores codex threads, one namespace per visitor session. Defaults to memory.
	Threads         kv.Backend
	OwnerSecret     string
	Pages           *content.Library
	Contact         contact.Submitter
	Images          media.Rewriter
	Logger          *zap.Logger
	UnlockPerMinute int
	Clock           func() time.Time
}

// Handlers renders pages and JSON for one site.
type Handlers struct {
	catalog     Catalog
	prefs       kv.Store
	threads     kv.Backend
	ownerSecret string
	pages       *content.Library
	contact     contact.Submitter
	images      media.Rewriter
	logger      *zap.Logger
	unlock      rateLimiter
	now         func() time.Time
}

// New validates deps and fills defaults.
func New(deps Deps) (*Handlers, error) {
	if deps.Catalog == nil {
		return nil, errNoCatalog
	}
	h := &Handlers{
		catalog:     deps.Catalog,
		prefs:       deps.Prefs,
		threads:     deps.Threads,
		ownerSecret: deps.OwnerSecret,
		pages:       deps.Pages,
		contact:     deps.Contact,
		images:      deps.Images,
		logger:      deps.Logger,
		now:         deps.Clock,
	}
	if h.prefs == nil {
		h.prefs = kv.Cookie{}
	}
	if h.threads == nil {
		h.threads = kv.NewMemory()
	}
	if h.pages == nil {
		h.pages = content.NewLibrary("")
	}
	if h.images == nil {
		h.images = media.Passthrough{}
	}
	if h.logger == nil {
		h.logger = zap.NewNop()
	}
	if h.now == nil {
		h.now = time.Now
	}
	limit := deps.UnlockPerMinute
	if limit <= 0 {
		limit = defaultUnlockPerMinute
	}
	h.unlock = newUnlockThrottle(limit, time.Minute, h.now)
	return h, nil
}

// gate restores the visitor's owner flag and applies any owner query parameter.
func (h *Handlers) gate(r *http.Request) *owner.Gate {
	ctx := r.Context()
	g := owner.NewGate(h.prefs, h.ownerSecret, owner.WithLogger(requestctx.Logger(ctx)))
	if err := g.Init(ctx, r.URL.RawQuery); err != nil {
		requestctx.Logger(ctx).Warn("owner flag unavailable", zap.Error(err))
	}
	return g
}

func (h *Handlers) density(ctx context.Context) prefs.Density {
	d, err := prefs.New(h.prefs).Density(ctx)
	if err != nil {
		requestctx.Logger(ctx).Debug("density preference unavailable", zap.Error(err))
	}
	return d
}

func (h *Handlers) thread(ctx context.Context, flag codex.OwnerFlag) *codex.Thread {
	return codex.NewThread(h.threads.Namespace(visitorID(ctx)), flag, codex.WithLogger(requestctx.Logger(ctx)))
}

func visitorID(ctx context.Context) string {
	if sess := session.FromContext(ctx); sess != nil && sess.ID != "" {
		return sess.ID
	}
	return anonymousVisitor
}

func csrfToken(ctx context.Context) string {
	if sess := session.FromContext(ctx); sess != nil {
		return sess.CSRFToken
	}
	return ""
}

// layout fills the shared view model fields.
func (h *Handlers) layout(r *http.Request, g *owner.Gate, title string) pageData {
	ctx := r.Context()
	var notice string
	if sess := session.FromContext(ctx); sess != nil {
		notice, _ = sess.Pop(flashKey)
	}
	return pageData{
		Title:   title,
		Notice:  notice,
		Owner:   g.Enabled(),
		Density: h.density(ctx),
		CSRF:    csrfToken(ctx),
		Return:  r.URL.Path,
		Year:    h.now().Year(),
	}
}

// localPath keeps redirects on this site.
func localPath(raw, fallback string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") || strings.Contains(raw, `\`) {
		return fallback
	}
	return raw
}
