package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// File persists all namespaces as a single JSON document, rewritten atomically on every Set.
type File struct {
	path string

	mu     sync.Mutex
	loaded bool
	values map[string]map[string]string
}

// NewFile returns a File store at path. The file is created on first write.
func NewFile(path string) *File {
	return &File{path: path}
}

// Get reads key from the default namespace.
func (f *File) Get(ctx context.Context, key string) (string, bool, error) {
	return f.Namespace(DefaultNamespace).Get(ctx, key)
}

// Set writes key in the default namespace.
func (f *File) Set(ctx context.Context, key, value string) error {
	return f.Namespace(DefaultNamespace).Set(ctx, key, value)
}

// Namespace returns a view of ns.
func (f *File) Namespace(ns string) Store {
	return fileView{f: f, ns: namespaceOrDefault(ns)}
}

func (f *File) load() error {
	if f.loaded {
		return nil
	}
	data, err := os.ReadFile(f.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		f.values = make(map[string]map[string]string)
	case err != nil:
		return fmt.Errorf("kv: read %s: %w", f.path, err)
	default:
		values := make(map[string]map[string]string)
		if len(data) > 0 {
			if err := json.Unmarshal(data, &values); err != nil {
				return fmt.Errorf("kv: decode %s: %w", f.path, err)
			}
		}
		f.values = values
	}
	f.loaded = true
	return nil
}

func (f *File) flush() error {
	data, err := json.MarshalIndent(f.values, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("kv: create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".kv-*.json")
	if err != nil {
		return fmt.Errorf("kv: temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("kv: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("kv: replace %s: %w", f.path, err)
	}
	return nil
}

type fileView struct {
	f  *File
	ns string
}

func (v fileView) Get(_ context.Context, key string) (string, bool, error) {
	v.f.mu.Lock()
	defer v.f.mu.Unlock()
	if err := v.f.load(); err != nil {
		return "", false, err
	}
	value, ok := v.f.values[v.ns][key]
	return value, ok, nil
}

func (v fileView) Set(_ context.Context, key, value string) error {
	v.f.mu.Lock()
	defer v.f.mu.Unlock()
	if err := v.f.load(); err != nil {
		return err
	}
	bucket := v.f.values[v.ns]
	if bucket == nil {
		bucket = make(map[string]string)
		v.f.values[v.ns] = bucket
	}
	previous, existed := bucket[key]
	bucket[key] = value
	if err := v.f.flush(); err != nil {
		if existed {
			bucket[key] = previous
		} else {
			delete(bucket, key)
		}
		return err
	}
	return nil
}
