package catalog

import (
	"context"
	_ "embed"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/xotten/portfolio/internal/domain"
	"github.com/xotten/portfolio/internal/platform/observability"
)

//go:embed fallback.yaml
var fallbackYAML []byte

// Source identifies where the current list came from.
type Source string

const (
	SourceFallback Source = "fallback"
	SourceFeed     Source = "feed"
)

// FallbackStatus is the transient message recorded when the feed cannot be loaded.
const FallbackStatus = "Showing sample works; the collection could not be loaded."

// Fallback returns a fresh copy of the built-in sample list.
func Fallback() ([]domain.Artwork, error) {
	var items []domain.Artwork
	if err := yaml.Unmarshal(fallbackYAML, &items); err != nil {
		return nil, fmt.Errorf("catalog: decode fallback sample: %w", err)
	}
	return items, nil
}

// Store holds the current artwork list. It starts with the fallback sample and is replaced
// once when the feed loads.
type Store struct {
	logger *zap.Logger
	loads  metric.Int64Counter

	loadOnce sync.Once

	mu     sync.RWMutex
	items  []domain.Artwork
	source Source
	status string
	subs   map[uint64]*subscription
	nextID uint64
}

type subscription struct {
	fn     func([]domain.Artwork)
	active atomic.Bool
}

// Option customises a Store.
type Option func(*Store)

// WithLogger sets the logger used for load outcomes.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMeter overrides the meter used for the feed load counter.
func WithMeter(meter metric.Meter) Option {
	return func(s *Store) {
		s.loads = observability.Counter(meter, s.logger, "catalog.feed.loads", "Artwork feed load attempts by outcome")
	}
}

// NewStore returns a Store seeded with the fallback sample.
func NewStore(opts ...Option) (*Store, error) {
	items, err := Fallback()
	if err != nil {
		return nil, err
	}
	s := &Store{
		logger: zap.NewNop(),
		items:  items,
		source: SourceFallback,
		subs:   make(map[uint64]*subscription),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.loads == nil {
		s.loads = observability.Counter(observability.Meter("github.com/xotten/portfolio/internal/catalog"), s.logger, "catalog.feed.loads", "Artwork feed load attempts by outcome")
	}
	return s, nil
}

// Items returns a copy of the current list.
func (s *Store) Items() []domain.Artwork {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Artwork(nil), s.items...)
}

// Source reports whether the list is the fallback sample or the loaded feed.
func (s *Store) Source() Source {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.source
}

// Status returns the transient status message, empty when the feed loaded.
func (s *Store) Status() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Subscribe registers fn to receive every replacement list. The returned cancel stops
// delivery, including for loads already in flight.
func (s *Store) Subscribe(fn func([]domain.Artwork)) (cancel func()) {
	sub := &subscription{fn: fn}
	sub.active.Store(true)

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = sub
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			sub.active.Store(false)
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

// Load fetches the feed once for the lifetime of the store. Later calls are no-ops.
// Failures keep the fallback list and record a status message; nothing is returned to the caller.
func (s *Store) Load(ctx context.Context, loader Loader) {
	s.loadOnce.Do(func() {
		s.fetch(ctx, loader, true)
	})
}

// Refresh performs one additional fetch attempt. On failure the current list stays in place.
func (s *Store) Refresh(ctx context.Context, loader Loader) bool {
	return s.fetch(ctx, loader, false)
}

// RunRefresher refreshes on every tick until ctx ends. A non-positive interval returns immediately.
func (s *Store) RunRefresher(ctx context.Context, loader Loader, interval time.Duration) error {
	if interval <= 0 {
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Refresh(ctx, loader)
		}
	}
}

func (s *Store) fetch(ctx context.Context, loader Loader, initial bool) bool {
	if loader == nil {
		loader = LoaderFunc(func(context.Context) ([]domain.Artwork, error) { return nil, ErrFeedNotConfigured })
	}
	items, err := loader.Fetch(ctx)
	if err != nil {
		s.record(ctx, "fallback")
		s.logger.Warn("catalog: feed load failed; keeping current list", zap.Error(err), zap.Bool("initial", initial))
		if initial {
			s.mu.Lock()
			s.status = FallbackStatus
			s.mu.Unlock()
		}
		return false
	}

	s.record(ctx, "ok")
	s.mu.Lock()
	s.items = items
	s.source = SourceFeed
	s.status = ""
	subs := make([]*subscription, 0, len(s.subs))
	for _, sub := range s.subs {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	s.logger.Info("catalog: feed loaded", zap.Int("items", len(items)))
	for _, a := range items {
		if a.InvalidYear != "" {
			s.logger.Warn("catalog: ignoring unparsable year", zap.String("id", a.ID), zap.String("year", a.InvalidYear))
		}
	}
	for _, sub := range subs {
		if sub.active.Load() {
			sub.fn(append([]domain.Artwork(nil), items...))
		}
	}
	return true
}

func (s *Store) record(ctx context.Context, outcome string) {
	if s.loads == nil {
		return
	}
	s.loads.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
