package session

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareIssuesAndReadsCookie(t *testing.T) {
	m := NewManager(WithSigningKey("test-key"))

	var seen *Session
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = FromContext(r.Context())
		if r.URL.Path == "/set" {
			seen.Set("xotten.density", "compact")
		}
		_, _ = w.Write([]byte("ok"))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/set", nil))
	require.NotNil(t, seen)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	firstID := seen.ID

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, firstID, seen.ID)
	v, ok := seen.Get("xotten.density")
	assert.True(t, ok)
	assert.Equal(t, "compact", v)
	assert.Empty(t, rec.Result().Cookies(), "unchanged session should not rewrite cookie")
}

func TestMiddlewareRejectsTamperedCookie(t *testing.T) {
	m := NewManager(WithSigningKey("test-key"))
	other := NewManager(WithSigningKey("other-key"))

	forged, err := other.encode(&Session{ID: "forged", CSRFToken: "x", Values: map[string]string{"xotten.owner": "true"}})
	require.NoError(t, err)

	var seen *Session
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = FromContext(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: defaultCookieName, Value: forged})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.NotNil(t, seen)
	assert.NotEqual(t, "forged", seen.ID)
	_, ok := seen.Get("xotten.owner")
	assert.False(t, ok)
	assert.Len(t, rec.Result().Cookies(), 1, "fresh session cookie written even without a body")
}

func TestCSRF(t *testing.T) {
	m := NewManager(WithSigningKey("test-key"))
	var token string
	h := m.Middleware(CSRF(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token = FromContext(r.Context()).CSRFToken
		w.WriteHeader(http.StatusNoContent)
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)
	cookie := rec.Result().Cookies()[0]

	post := func(tok string) int {
		form := url.Values{CSRFField: {tok}}
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.AddCookie(cookie)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}
	assert.Equal(t, http.StatusForbidden, post("wrong"))
	assert.Equal(t, http.StatusNoContent, post(token))
}

func TestPopRemovesValue(t *testing.T) {
	sess := &Session{Values: map[string]string{"xotten.flash": "hello"}}

	v, ok := sess.Pop("xotten.flash")
	assert.True(t, ok)
	assert.Equal(t, "hello", v)
	assert.True(t, sess.Dirty())

	_, ok = sess.Pop("xotten.flash")
	assert.False(t, ok)
	var none *Session
	_, ok = none.Pop("xotten.flash")
	assert.False(t, ok)
}
