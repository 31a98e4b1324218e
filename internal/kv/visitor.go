package kv

import (
	"context"

	"github.com/xotten/portfolio/internal/platform/session"
)

// Visitor routes each call to the backend namespace of the visitor session on ctx.
type Visitor struct {
	Backend Backend
}

// Get reads key for the current visitor.
func (v Visitor) Get(ctx context.Context, key string) (string, bool, error) {
	store, err := v.store(ctx)
	if err != nil {
		return "", false, err
	}
	return store.Get(ctx, key)
}

// Set writes key for the current visitor.
func (v Visitor) Set(ctx context.Context, key, value string) error {
	store, err := v.store(ctx)
	if err != nil {
		return err
	}
	return store.Set(ctx, key, value)
}

func (v Visitor) store(ctx context.Context) (Store, error) {
	sess := session.FromContext(ctx)
	if sess == nil || sess.ID == "" {
		return nil, ErrNoSession
	}
	return v.Backend.Namespace(sess.ID), nil
}
