// Package prefs stores the visitor's thumbnail density preference.
package prefs

import (
	"context"
	"fmt"
	"strings"

	"github.com/xotten/portfolio/internal/kv"
)

// DensityKey is the durable key holding the density preference.
const DensityKey = "xotten.density"

// Density is the thumbnail grid density.
type Density string

const (
	Comfortable Density = "comfortable"
	Compact     Density = "compact"
)

// ParseDensity maps a stored or submitted value to a Density.
func ParseDensity(s string) (Density, bool) {
	switch Density(strings.ToLower(strings.TrimSpace(s))) {
	case Comfortable:
		return Comfortable, true
	case Compact:
		return Compact, true
	}
	return Comfortable, false
}

// Preferences reads and writes preferences through a kv.Store.
type Preferences struct {
	store kv.Store
}

// New returns Preferences over store.
func New(store kv.Store) *Preferences {
	return &Preferences{store: store}
}

// Density returns the stored density. Missing or unknown values read as Comfortable.
func (p *Preferences) Density(ctx context.Context) (Density, error) {
	value, ok, err := p.store.Get(ctx, DensityKey)
	if err != nil {
		return Comfortable, fmt.Errorf("prefs: read density: %w", err)
	}
	if !ok {
		return Comfortable, nil
	}
	d, _ := ParseDensity(value)
	return d, nil
}

// SetDensity persists d immediately.
func (p *Preferences) SetDensity(ctx context.Context, d Density) error {
	if _, ok := ParseDensity(string(d)); !ok {
		return fmt.Errorf("prefs: unknown density %q", d)
	}
	if err := p.store.Set(ctx, DensityKey, string(d)); err != nil {
		return fmt.Errorf("prefs: persist density: %w", err)
	}
	return nil
}
