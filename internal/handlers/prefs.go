package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/xotten/portfolio/internal/platform/httpx"
	"github.com/xotten/portfolio/internal/platform/requestctx"
	"github.com/xotten/portfolio/internal/platform/session"
	"github.com/xotten/portfolio/internal/prefs"
)

const (
	flashKey           = "xotten.flash"
	noticeUnlockFailed = "That passphrase did not match."
)

// OwnerUnlock checks the submitted passphrase and returns the visitor to the page they came
// from. A mismatch leaves a one-shot notice for that page.
func (h *Handlers) OwnerUnlock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.unlock.Allow(visitorID(ctx), r.RemoteAddr) {
		httpx.WriteError(ctx, w, httpx.NewError("rate_limited", "too many unlock attempts; try again in a minute", http.StatusTooManyRequests))
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	g := h.gate(r)
	ok, err := g.AttemptUnlock(ctx, r.PostFormValue("secret"))
	if err != nil {
		requestctx.Logger(ctx).Warn("owner flag not persisted", zap.Error(err))
	}
	if ok {
		requestctx.Logger(ctx).Info("owner mode enabled")
	} else if sess := session.FromContext(ctx); sess != nil {
		sess.Set(flashKey, noticeUnlockFailed)
	}
	http.Redirect(w, r, localPath(r.PostFormValue("return"), "/"), http.StatusSeeOther)
}

// SetDensity stores the grid density preference.
func (h *Handlers) SetDensity(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	ctx := r.Context()
	d, ok := prefs.ParseDensity(r.PostFormValue("density"))
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_density", "density must be comfortable or compact", http.StatusBadRequest))
		return
	}
	if err := prefs.New(h.prefs).SetDensity(ctx, d); err != nil {
		requestctx.Logger(ctx).Warn("density not persisted", zap.Error(err))
	}
	http.Redirect(w, r, localPath(r.PostFormValue("return"), "/"), http.StatusSeeOther)
}
