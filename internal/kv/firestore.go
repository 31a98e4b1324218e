package kv

import (
	"context"

	"cloud.google.com/go/firestore"

	pfirestore "github.com/xotten/portfolio/internal/platform/firestore"
)

const (
	preferencesCollection = "preferences"
	valuesField           = "values"
)

// Firestore keeps one document per namespace in the preferences collection, with every key
// stored under the document's values map.
type Firestore struct {
	provider   *pfirestore.Provider
	collection string
}

// NewFirestore returns a Firestore-backed store.
func NewFirestore(provider *pfirestore.Provider) *Firestore {
	return &Firestore{provider: provider, collection: preferencesCollection}
}

// Get reads key from the default namespace.
func (s *Firestore) Get(ctx context.Context, key string) (string, bool, error) {
	return s.Namespace(DefaultNamespace).Get(ctx, key)
}

// Set writes key in the default namespace.
func (s *Firestore) Set(ctx context.Context, key, value string) error {
	return s.Namespace(DefaultNamespace).Set(ctx, key, value)
}

// Namespace returns a view of ns.
func (s *Firestore) Namespace(ns string) Store {
	return firestoreView{s: s, ns: namespaceOrDefault(ns)}
}

type firestoreView struct {
	s  *Firestore
	ns string
}

func (v firestoreView) doc(ctx context.Context) (*firestore.DocumentRef, error) {
	client, err := v.s.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Collection(v.s.collection).Doc(v.ns), nil
}

func (v firestoreView) Get(ctx context.Context, key string) (string, bool, error) {
	ref, err := v.doc(ctx)
	if err != nil {
		return "", false, err
	}
	snap, err := ref.Get(ctx)
	if err != nil {
		if pfirestore.IsNotFound(err) {
			return "", false, nil
		}
		return "", false, pfirestore.WrapError("kv.firestore.get", err)
	}
	raw, err := snap.DataAtPath(firestore.FieldPath{valuesField, key})
	if err != nil {
		// DataAtPath fails when the field is absent.
		return "", false, nil
	}
	value, ok := raw.(string)
	return value, ok, nil
}

func (v firestoreView) Set(ctx context.Context, key, value string) error {
	ref, err := v.doc(ctx)
	if err != nil {
		return err
	}
	data := map[string]any{valuesField: map[string]any{key: value}}
	if _, err := ref.Set(ctx, data, firestore.Merge(firestore.FieldPath{valuesField, key})); err != nil {
		return pfirestore.WrapError("kv.firestore.set", err)
	}
	return nil
}
