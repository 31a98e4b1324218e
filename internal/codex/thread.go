// Package codex keeps the visitor's Codex chat thread.
package codex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/xotten/portfolio/internal/kv"
)

const (
	// ThreadKey is the durable key holding the JSON-encoded thread.
	ThreadKey = "xotten.codex"
	// MaxMessages caps the stored thread; the oldest messages are dropped first.
	MaxMessages = 200
	// MaxRunes caps a single message.
	MaxRunes = 2000
	// WelcomeText seeds an empty thread.
	WelcomeText = "Welcome to Codex. Share your thoughts here."
	// WelcomeID identifies the seeded welcome message on every read.
	WelcomeID = "welcome"
)

var (
	// ErrEmptyMessage is returned for blank messages.
	ErrEmptyMessage = errors.New("codex: message is empty")
	// ErrOwnerOnly is returned when a studio reply is posted outside owner mode.
	ErrOwnerOnly = errors.New("codex: studio replies require owner mode")
)

// Role is the author of a message.
type Role string

const (
	RoleUser   Role = "user"
	RoleStudio Role = "studio"
)

// Message is one chat entry.
type Message struct {
	ID   string    `json:"id"`
	Role Role      `json:"role"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// OwnerFlag reports whether owner mode is on.
type OwnerFlag interface {
	Enabled() bool
}

// Thread reads and appends messages in a kv.Store.
type Thread struct {
	store  kv.Store
	owner  OwnerFlag
	policy *bluemonday.Policy
	logger *zap.Logger
	now    func() time.Time
	idGen  func() string
}

// Option customises a Thread.
type Option func(*Thread)

// WithLogger sets the logger used when a stored thread cannot be decoded.
func WithLogger(logger *zap.Logger) Option {
	return func(t *Thread) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(t *Thread) {
		if now != nil {
			t.now = now
		}
	}
}

// WithIDGenerator overrides message id generation.
func WithIDGenerator(gen func() string) Option {
	return func(t *Thread) {
		if gen != nil {
			t.idGen = gen
		}
	}
}

// NewThread returns a Thread over store.
func NewThread(store kv.Store, owner OwnerFlag, opts ...Option) *Thread {
	t := &Thread{
		store:  store,
		owner:  owner,
		policy: bluemonday.StrictPolicy(),
		logger: zap.NewNop(),
		now:    func() time.Time { return time.Now().UTC() },
		idGen:  func() string { return ulid.Make().String() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	return t
}

// Messages returns the thread, seeded with the welcome message when nothing is stored.
func (t *Thread) Messages(ctx context.Context) ([]Message, error) {
	raw, ok, err := t.store.Get(ctx, ThreadKey)
	if err != nil {
		return nil, fmt.Errorf("codex: read thread: %w", err)
	}
	if ok && strings.TrimSpace(raw) != "" {
		var msgs []Message
		if err := json.Unmarshal([]byte(raw), &msgs); err == nil && len(msgs) > 0 {
			return msgs, nil
		} else if err != nil {
			t.logger.Warn("codex: stored thread unreadable; reseeding", zap.Error(err))
		}
	}
	return []Message{welcome()}, nil
}

// welcome has no timestamp; it is the same message until the thread is first written.
func welcome() Message {
	return Message{ID: WelcomeID, Role: RoleStudio, Text: WelcomeText}
}

// Post appends a visitor message.
func (t *Thread) Post(ctx context.Context, text string) (Message, error) {
	return t.append(ctx, RoleUser, text)
}

// Reply appends a studio message. Only available in owner mode.
func (t *Thread) Reply(ctx context.Context, text string) (Message, error) {
	if t.owner == nil || !t.owner.Enabled() {
		return Message{}, ErrOwnerOnly
	}
	return t.append(ctx, RoleStudio, text)
}

func (t *Thread) append(ctx context.Context, role Role, text string) (Message, error) {
	clean := t.clean(text)
	if clean == "" {
		return Message{}, ErrEmptyMessage
	}
	msgs, err := t.Messages(ctx)
	if err != nil {
		return Message{}, err
	}
	msg := t.message(role, clean)
	msgs = append(msgs, msg)
	if len(msgs) > MaxMessages {
		msgs = msgs[len(msgs)-MaxMessages:]
	}
	encoded, err := json.Marshal(msgs)
	if err != nil {
		return Message{}, fmt.Errorf("codex: encode thread: %w", err)
	}
	if err := t.store.Set(ctx, ThreadKey, string(encoded)); err != nil {
		return Message{}, fmt.Errorf("codex: persist thread: %w", err)
	}
	return msg, nil
}

func (t *Thread) message(role Role, text string) Message {
	return Message{ID: t.idGen(), Role: role, Text: text, At: t.now()}
}

// clean strips markup to plain text, trims and truncates to MaxRunes. Output is unescaped;
// templates escape it on render.
func (t *Thread) clean(text string) string {
	text = strings.TrimSpace(html.UnescapeString(t.policy.Sanitize(text)))
	if utf8.RuneCountInString(text) <= MaxRunes {
		return text
	}
	return strings.TrimSpace(string([]rune(text)[:MaxRunes]))
}
