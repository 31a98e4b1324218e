package gallery

import (
	"sync/atomic"

	"github.com/xotten/portfolio/internal/domain"
)

// Source is the artwork list provider a session follows.
type Source interface {
	Items() []domain.Artwork
	Subscribe(fn func([]domain.Artwork)) (cancel func())
}

// Session binds a View to a Source. Replacement lists are applied on the loop; after Close
// late results are discarded.
type Session struct {
	view     *View
	loop     *Loop
	cancel   func()
	closed   atomic.Bool
	onUpdate func(*View)
}

// NewSession seeds view with the source's current list and follows further updates through loop.
func NewSession(src Source, loop *Loop, view *View) *Session {
	s := &Session{view: view, loop: loop}
	s.cancel = src.Subscribe(func(items []domain.Artwork) {
		if s.closed.Load() {
			return
		}
		loop.Post(func() {
			if s.closed.Load() {
				return
			}
			s.view.SetItems(items)
			if s.onUpdate != nil {
				s.onUpdate(s.view)
			}
		})
	})
	// Seeded after subscribing so a list published in between is still delivered.
	view.SetItems(src.Items())
	return s
}

// View returns the bound view. It must only be touched from the loop.
func (s *Session) View() *View { return s.view }

// OnUpdate registers fn to run on the loop after each replacement list is applied.
func (s *Session) OnUpdate(fn func(*View)) {
	s.loop.Post(func() { s.onUpdate = fn })
}

// Close stops following the source.
func (s *Session) Close() {
	if s.closed.Swap(true) {
		return
	}
	s.cancel()
}
