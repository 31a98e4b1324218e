package kv

import (
	"context"
	"sync"
)

// Memory is an in-process Store and Backend.
type Memory struct {
	mu     sync.RWMutex
	values map[string]map[string]string
	failOn map[string]error
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{values: make(map[string]map[string]string)}
}

// FailSet makes subsequent writes of key return err. Passing nil clears the failure.
func (m *Memory) FailSet(key string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOn == nil {
		m.failOn = make(map[string]error)
	}
	if err == nil {
		delete(m.failOn, key)
		return
	}
	m.failOn[key] = err
}

// Get reads key from the default namespace.
func (m *Memory) Get(ctx context.Context, key string) (string, bool, error) {
	return m.Namespace(DefaultNamespace).Get(ctx, key)
}

// Set writes key in the default namespace.
func (m *Memory) Set(ctx context.Context, key, value string) error {
	return m.Namespace(DefaultNamespace).Set(ctx, key, value)
}

// Namespace returns a view of ns.
func (m *Memory) Namespace(ns string) Store {
	return memoryView{m: m, ns: namespaceOrDefault(ns)}
}

type memoryView struct {
	m  *Memory
	ns string
}

func (v memoryView) Get(_ context.Context, key string) (string, bool, error) {
	v.m.mu.RLock()
	defer v.m.mu.RUnlock()
	value, ok := v.m.values[v.ns][key]
	return value, ok, nil
}

func (v memoryView) Set(_ context.Context, key, value string) error {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()
	if err := v.m.failOn[key]; err != nil {
		return err
	}
	bucket := v.m.values[v.ns]
	if bucket == nil {
		bucket = make(map[string]string)
		v.m.values[v.ns] = bucket
	}
	bucket[key] = value
	return nil
}
