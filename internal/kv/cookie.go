package kv

import (
	"context"

	"github.com/xotten/portfolio/internal/platform/session"
)

// Cookie reads and writes the visitor's signed session cookie found on the request context.
// Values must stay small; the cookie is capped at roughly 4KB.
type Cookie struct{}

// Get reads key from the request session.
func (Cookie) Get(ctx context.Context, key string) (string, bool, error) {
	sess := session.FromContext(ctx)
	if sess == nil {
		return "", false, ErrNoSession
	}
	value, ok := sess.Get(key)
	return value, ok, nil
}

// Set writes key to the request session; the cookie is rewritten with the response.
func (Cookie) Set(ctx context.Context, key, value string) error {
	sess := session.FromContext(ctx)
	if sess == nil {
		return ErrNoSession
	}
	sess.Set(key, value)
	return nil
}
