// Package kv provides the durable string key-value stores behind persisted visitor preferences.
package kv

import (
	"context"
	"errors"
)

// ErrNoSession is returned by the cookie store when the request carries no session.
var ErrNoSession = errors.New("kv: no session on context")

// DefaultNamespace is used by backends accessed without an explicit namespace.
const DefaultNamespace = "default"

// Store is a durable string key-value collaborator.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// Backend partitions a store by namespace, typically one namespace per visitor.
type Backend interface {
	Namespace(ns string) Store
}

func namespaceOrDefault(ns string) string {
	if ns == "" {
		return DefaultNamespace
	}
	return ns
}
