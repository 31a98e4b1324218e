package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/xotten/portfolio/internal/codex"
	"github.com/xotten/portfolio/internal/contact"
	"github.com/xotten/portfolio/internal/content"
	"github.com/xotten/portfolio/internal/platform/requestctx"
	"github.com/xotten/portfolio/internal/router"
)

const (
	noticeSent        = "Thank you. Your message is on its way."
	noticeFailed      = "Sorry, your message could not be sent. Please try again."
	noticeUnavailable = "The form is unavailable right now. Please email hello@xotten.com."
)

// About renders the about page.
func (h *Handlers) About(w http.ResponseWriter, r *http.Request) {
	h.contentPage(w, r, router.About, nil, http.StatusOK)
}

// ContactPage renders the contact page with an empty form.
func (h *Handlers) ContactPage(w http.ResponseWriter, r *http.Request) {
	h.contentPage(w, r, router.Contact, &contactData{Status: string(contact.StatusIdle)}, http.StatusOK)
}

func (h *Handlers) contentPage(w http.ResponseWriter, r *http.Request, name router.Name, form *contactData, status int) {
	page := router.Page{Name: name}
	body, err := h.pages.Get(string(name))
	if err != nil {
		requestctx.Logger(r.Context()).Error("content page unavailable", zap.String("slug", string(name)), zap.Error(err))
		if errors.Is(err, content.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		http.Error(w, "page unavailable", http.StatusInternalServerError)
		return
	}
	g := h.gate(r)
	data := h.layout(r, g, body.Title)
	data.Nav = buildNav(page.Name)
	data.Content = &body
	data.Contact = form
	h.render(w, r, status, data)
}

// ContactSubmit validates and delivers the contact form.
func (h *Handlers) ContactSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	ctx := r.Context()
	in := contact.Input{
		Name:    r.PostFormValue("name"),
		Email:   r.PostFormValue("email"),
		Message: r.PostFormValue("message"),
	}
	form := contact.NewForm(h.contact, contact.WithLogger(requestctx.Logger(ctx)), contact.WithClock(h.now))
	_, err := form.Submit(ctx, in)
	st, _ := form.Status()
	view := &contactData{Status: string(st), Name: in.Name, Email: in.Email, Message: in.Message}

	status := http.StatusOK
	var invalid *contact.ValidationError
	switch {
	case err == nil:
		view.Notice = noticeSent
		view.Name, view.Email, view.Message = "", "", ""
	case errors.As(err, &invalid):
		view.Errors = invalid.Fields
		status = http.StatusUnprocessableEntity
	case errors.Is(err, contact.ErrNotConfigured):
		view.Notice = noticeUnavailable
		status = http.StatusServiceUnavailable
	default:
		view.Notice = noticeFailed
		status = http.StatusBadGateway
	}
	h.contentPage(w, r, router.Contact, view, status)
}

// Codex renders the visitor's thread.
func (h *Handlers) Codex(w http.ResponseWriter, r *http.Request) {
	h.codexPage(w, r, "", "", http.StatusOK)
}

// CodexPost appends a visitor message, or a studio reply in owner mode.
func (h *Handlers) CodexPost(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	ctx := r.Context()
	text := r.PostFormValue("text")
	g := h.gate(r)
	thread := h.thread(ctx, g)

	var err error
	if r.PostFormValue("role") == string(codex.RoleStudio) {
		_, err = thread.Reply(ctx, text)
	} else {
		_, err = thread.Post(ctx, text)
	}
	switch {
	case err == nil:
		http.Redirect(w, r, router.Page{Name: router.Codex}.Path(), http.StatusSeeOther)
	case errors.Is(err, codex.ErrEmptyMessage):
		h.codexPage(w, r, "Please write a message.", text, http.StatusUnprocessableEntity)
	case errors.Is(err, codex.ErrOwnerOnly):
		h.codexPage(w, r, "Only the studio can reply.", text, http.StatusForbidden)
	default:
		requestctx.Logger(ctx).Error("codex post failed", zap.Error(err))
		h.codexPage(w, r, "Your message could not be saved. Please try again.", text, http.StatusInternalServerError)
	}
}

func (h *Handlers) codexPage(w http.ResponseWriter, r *http.Request, problem, draft string, status int) {
	ctx := r.Context()
	g := h.gate(r)
	msgs, err := h.thread(ctx, g).Messages(ctx)
	if err != nil {
		requestctx.Logger(ctx).Error("codex thread unavailable", zap.Error(err))
		http.Error(w, "codex unavailable", http.StatusInternalServerError)
		return
	}
	page := router.Page{Name: router.Codex}
	data := h.layout(r, g, page.Title())
	data.Nav = buildNav(page.Name)
	data.Codex = &codexData{Messages: msgs, Error: problem, Draft: draft}
	h.render(w, r, status, data)
}
