// Package owner implements the owner-mode unlock. Owner mode is a display convenience that
// reveals prices and sold ribbons; it is not an access-control boundary.
package owner

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"golang.org/x/text/cases"

	"github.com/xotten/portfolio/internal/kv"
	"github.com/xotten/portfolio/internal/platform/observability"
)

const (
	// FlagKey is the durable key holding the owner flag.
	FlagKey = "xotten.owner"
	// QueryParam carries a candidate phrase on the automatic unlock path.
	QueryParam = "owner"

	flagValue = "true"
)

// Unlock sources recorded on the attempts counter.
const (
	SourceQuery  = "query"
	SourcePrompt = "prompt"
)

var attemptsCounter = sync.OnceValue(func() metric.Int64Counter {
	return observability.Counter(
		observability.Meter("github.com/xotten/portfolio/internal/owner"),
		nil,
		"owner.unlock.attempts",
		"Owner-mode unlock attempts by source and result",
	)
})

// Gate holds the owner flag for one visitor. Once enabled it is never unset.
type Gate struct {
	store  kv.Store
	secret string
	logger *zap.Logger

	mu      sync.Mutex
	enabled bool
}

// Option customises a Gate.
type Option func(*Gate)

// WithLogger sets the logger used for persistence warnings.
func WithLogger(logger *zap.Logger) Option {
	return func(g *Gate) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// NewGate returns a disabled gate over store. An empty secret never matches.
func NewGate(store kv.Store, secret string, opts ...Option) *Gate {
	g := &Gate{store: store, secret: normalise(secret), logger: zap.NewNop()}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

// Enabled reports whether owner mode is on.
func (g *Gate) Enabled() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.enabled
}

// Init restores the persisted flag and then applies the owner query parameter from rawQuery.
// Errors are non-fatal: the gate is always usable afterwards.
func (g *Gate) Init(ctx context.Context, rawQuery string) error {
	value, ok, err := g.store.Get(ctx, FlagKey)
	if err != nil {
		err = fmt.Errorf("owner: read flag: %w", err)
	} else if ok && truthy(value) {
		g.mu.Lock()
		g.enabled = true
		g.mu.Unlock()
	}

	values, parseErr := url.ParseQuery(strings.TrimPrefix(rawQuery, "?"))
	if parseErr != nil && values == nil {
		return err
	}
	candidates, present := values[QueryParam]
	if !present || len(candidates) == 0 {
		return err
	}
	if _, unlockErr := g.attempt(ctx, candidates[0], SourceQuery); unlockErr != nil && err == nil {
		err = unlockErr
	}
	return err
}

// AttemptUnlock compares candidate with the secret after trimming and case folding.
// On a match the flag is enabled and persisted; a persistence failure still enables the flag
// for this gate and is returned for logging. On a mismatch nothing changes.
func (g *Gate) AttemptUnlock(ctx context.Context, candidate string) (bool, error) {
	return g.attempt(ctx, candidate, SourcePrompt)
}

func (g *Gate) attempt(ctx context.Context, candidate, source string) (bool, error) {
	if !g.matches(candidate) {
		g.record(ctx, source, "mismatch")
		return false, nil
	}
	g.record(ctx, source, "ok")

	g.mu.Lock()
	g.enabled = true
	g.mu.Unlock()

	if err := g.store.Set(ctx, FlagKey, flagValue); err != nil {
		g.logger.Warn("owner: flag not persisted", zap.String("source", source), zap.Error(err))
		return true, fmt.Errorf("owner: persist flag: %w", err)
	}
	return true, nil
}

func (g *Gate) matches(candidate string) bool {
	if g.secret == "" {
		return false
	}
	return normalise(candidate) == g.secret
}

func (g *Gate) record(ctx context.Context, source, result string) {
	counter := attemptsCounter()
	if counter == nil {
		return
	}
	counter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("source", source),
		attribute.String("result", result),
	))
}

func normalise(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

func truthy(v string) bool {
	switch strings.TrimSpace(strings.ToLower(v)) {
	case "true", "1":
		return true
	}
	return false
}
