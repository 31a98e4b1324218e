package session

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	defaultCookieName = "XOTTEN_SESSION"
	defaultMaxAge     = 365 * 24 * time.Hour
	maxCookieBytes    = 4000
)

type ctxKey struct{}

// Session is the per-visitor state carried in a signed cookie. Values holds small string
// preferences such as the owner flag and the density choice.
type Session struct {
	ID        string            `json:"id"`
	CSRFToken string            `json:"csrf"`
	Values    map[string]string `json:"v,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`

	dirty bool
}

// Get returns the stored value for key.
func (s *Session) Get(key string) (string, bool) {
	if s == nil || s.Values == nil {
		return "", false
	}
	v, ok := s.Values[key]
	return v, ok
}

// Set stores value under key and schedules a cookie rewrite.
func (s *Session) Set(key, value string) {
	if s.Values == nil {
		s.Values = make(map[string]string)
	}
	if current, ok := s.Values[key]; ok && current == value {
		return
	}
	s.Values[key] = value
	s.dirty = true
	s.UpdatedAt = time.Now().UTC()
}

// Pop returns and removes key, for one-shot notices carried across a redirect.
func (s *Session) Pop(key string) (string, bool) {
	v, ok := s.Get(key)
	if !ok {
		return "", false
	}
	delete(s.Values, key)
	s.dirty = true
	s.UpdatedAt = time.Now().UTC()
	return v, true
}

// Dirty reports whether the session changed during the request.
func (s *Session) Dirty() bool { return s.dirty }

// Manager signs, reads and writes visitor session cookies.
type Manager struct {
	key        []byte
	secure     bool
	cookieName string
	maxAge     time.Duration
	logger     *zap.Logger
	now        func() time.Time
}

// Option customises a Manager.
type Option func(*Manager)

// WithSigningKey sets the HMAC key. Without one an ephemeral key is generated.
func WithSigningKey(key string) Option {
	return func(m *Manager) {
		if strings.TrimSpace(key) != "" {
			m.key = []byte(key)
		}
	}
}

// WithSecure marks cookies Secure.
func WithSecure(secure bool) Option {
	return func(m *Manager) { m.secure = secure }
}

// WithCookieName overrides the cookie name.
func WithCookieName(name string) Option {
	return func(m *Manager) {
		if strings.TrimSpace(name) != "" {
			m.cookieName = name
		}
	}
}

// WithLogger sets the diagnostic logger.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewManager builds a cookie session manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		cookieName: defaultCookieName,
		maxAge:     defaultMaxAge,
		logger:     zap.NewNop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	if len(m.key) == 0 {
		m.key = make([]byte, 32)
		if _, err := rand.Read(m.key); err != nil {
			m.key = []byte("insecure-dev-key-set-XOTTEN_SESSION_SIGNING_KEY")
		}
		m.logger.Warn("session: using ephemeral signing key; set XOTTEN_SESSION_SIGNING_KEY for production")
	}
	return m
}

// Middleware loads or initialises the visitor session and stores it on the request context.
// The cookie is rewritten before the first byte of the response when the session changed.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, fromCookie := m.read(r)
		if !fromCookie {
			now := m.now().UTC()
			sess = &Session{
				ID:        randomToken(16),
				CSRFToken: randomToken(16),
				CreatedAt: now,
				UpdatedAt: now,
				dirty:     true,
			}
		}

		hw := &hookWriter{ResponseWriter: w}
		hw.before = func() {
			if sess.dirty {
				m.write(w, sess)
				sess.dirty = false
			}
		}
		next.ServeHTTP(hw, r.WithContext(WithSession(r.Context(), sess)))
		if !hw.wrote {
			hw.before()
		}
	})
}

// WithSession attaches sess to ctx.
func WithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, sess)
}

// FromContext returns the request session, or nil outside the middleware.
func FromContext(ctx context.Context) *Session {
	if ctx == nil {
		return nil
	}
	sess, _ := ctx.Value(ctxKey{}).(*Session)
	return sess
}

func (m *Manager) read(r *http.Request) (*Session, bool) {
	c, err := r.Cookie(m.cookieName)
	if err != nil || c.Value == "" {
		return nil, false
	}
	payload, sig, ok := strings.Cut(c.Value, ".")
	if !ok {
		return nil, false
	}
	body, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return nil, false
	}
	gotSig, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil || !hmac.Equal(gotSig, m.sign(body)) {
		return nil, false
	}
	var sess Session
	if err := json.Unmarshal(body, &sess); err != nil || sess.ID == "" {
		return nil, false
	}
	if sess.CSRFToken == "" {
		sess.CSRFToken = randomToken(16)
		sess.dirty = true
	}
	return &sess, true
}

func (m *Manager) encode(sess *Session) (string, error) {
	body, err := json.Marshal(sess)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(body) + "." + base64.RawURLEncoding.EncodeToString(m.sign(body)), nil
}

func (m *Manager) write(w http.ResponseWriter, sess *Session) {
	value, err := m.encode(sess)
	if err != nil {
		m.logger.Error("session: encode failed", zap.Error(err))
		return
	}
	if len(value) > maxCookieBytes {
		m.logger.Warn("session: cookie too large; not persisted", zap.Int("bytes", len(value)))
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  m.now().Add(m.maxAge),
	})
}

func (m *Manager) sign(body []byte) []byte {
	mac := hmac.New(sha256.New, m.key)
	mac.Write(body)
	return mac.Sum(nil)
}

type hookWriter struct {
	http.ResponseWriter
	before func()
	wrote  bool
}

func (w *hookWriter) WriteHeader(status int) {
	if !w.wrote {
		w.wrote = true
		w.before()
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *hookWriter) Write(b []byte) (int, error) {
	if !w.wrote {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

func randomToken(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
