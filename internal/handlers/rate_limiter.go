package handlers

import (
	"net"
	"strings"
	"sync"
	"time"
)

type rateLimiter interface {
	Allow(visitor, addr string) bool
}

// unlockThrottle caps passphrase attempts per visitor and client address over a
// sliding window. Each key keeps the timestamps of its recent attempts.
type unlockThrottle struct {
	limit int
	span  time.Duration
	clock func() time.Time

	mu       sync.Mutex
	attempts map[string][]time.Time
	sweep    time.Time
}

func newUnlockThrottle(limit int, span time.Duration, clock func() time.Time) *unlockThrottle {
	if clock == nil {
		clock = time.Now
	}
	return &unlockThrottle{
		limit:    limit,
		span:     span,
		clock:    clock,
		attempts: make(map[string][]time.Time),
	}
}

// throttleKey joins the visitor namespace with the host part of addr. RealIP has
// already replaced RemoteAddr when a proxy header was present.
func throttleKey(visitor, addr string) string {
	visitor = strings.TrimSpace(visitor)
	if visitor == "" {
		visitor = anonymousVisitor
	}
	addr = strings.TrimSpace(addr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	return visitor + "|" + addr
}

func (t *unlockThrottle) Allow(visitor, addr string) bool {
	if t == nil || t.limit <= 0 {
		return true
	}
	key := throttleKey(visitor, addr)
	now := t.clock()
	cutoff := now.Add(-t.span)

	t.mu.Lock()
	defer t.mu.Unlock()
	if !now.Before(t.sweep) {
		t.evict(cutoff)
		t.sweep = now.Add(t.span)
	}
	recent := trimBefore(t.attempts[key], cutoff)
	if len(recent) >= t.limit {
		t.attempts[key] = recent
		return false
	}
	t.attempts[key] = append(recent, now)
	return true
}

func (t *unlockThrottle) evict(cutoff time.Time) {
	for key, stamps := range t.attempts {
		if rest := trimBefore(stamps, cutoff); len(rest) == 0 {
			delete(t.attempts, key)
		} else {
			t.attempts[key] = rest
		}
	}
}

// trimBefore drops the leading stamps at or before cutoff. Stamps are appended in order.
func trimBefore(stamps []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(stamps) && !stamps[i].After(cutoff) {
		i++
	}
	return stamps[i:]
}
