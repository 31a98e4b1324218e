package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/xotten/portfolio/internal/platform/observability"
	"github.com/xotten/portfolio/internal/platform/session"
)

const requestTimeout = 30 * time.Second

// Routes registers the site routes on r. Session and CSRF middleware must already be installed.
func (h *Handlers) Routes(r chi.Router) {
	r.Get("/", h.Home)
	r.Get("/portfolio", h.Portfolio)
	r.Get("/{page}/view/{index}", h.Lightbox)
	r.Get("/art/{id}", h.Detail)
	r.Get("/about", h.About)
	r.Get("/contact", h.ContactPage)
	r.Post("/contact", h.ContactSubmit)
	r.Get("/codex", h.Codex)
	r.Post("/codex", h.CodexPost)
	r.Post("/owner/unlock", h.OwnerUnlock)
	r.Post("/prefs/density", h.SetDensity)

	r.Route("/api", func(r chi.Router) {
		r.Get("/artworks", h.Artworks)
		r.Get("/tags", h.Tags)
	})
}

// NewRouter builds the full middleware stack around the site routes.
func NewRouter(h *Handlers, sessions *session.Manager, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(observability.RequestLogger(logger))
	r.Use(observability.Recoverer(logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(requestTimeout))

	r.Get("/healthz", h.Healthz)
	r.Group(func(r chi.Router) {
		r.Use(sessions.Middleware)
		r.Use(session.CSRF)
		h.Routes(r)
	})
	return r
}
