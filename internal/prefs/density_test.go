package prefs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xotten/portfolio/internal/kv"
)

func TestDensityDefaultsToComfortable(t *testing.T) {
	store := kv.NewMemory()
	p := New(store)
	d, err := p.Density(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Comfortable, d)

	require.NoError(t, store.Set(context.Background(), DensityKey, "sparse"))
	d, err = p.Density(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Comfortable, d)
}

func TestSetDensityPersists(t *testing.T) {
	store := kv.NewMemory()
	p := New(store)
	require.NoError(t, p.SetDensity(context.Background(), Compact))

	raw, ok, err := store.Get(context.Background(), DensityKey)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "compact", raw)

	d, err := New(store).Density(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Compact, d)

	require.Error(t, p.SetDensity(context.Background(), Density("huge")))
}

func TestParseDensity(t *testing.T) {
	d, ok := ParseDensity(" Compact ")
	assert.True(t, ok)
	assert.Equal(t, Compact, d)
	_, ok = ParseDensity("")
	assert.False(t, ok)
}
