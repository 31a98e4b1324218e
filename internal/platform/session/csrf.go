package session

import (
	"crypto/subtle"
	"net/http"
)

// CSRFField is the form field carrying the token in server-rendered forms.
const CSRFField = "csrf_token"

// CSRFHeader is accepted for script-driven requests.
const CSRFHeader = "X-CSRF-Token"

// CSRF rejects unsafe requests whose token does not match the session token.
// It must run inside Manager.Middleware.
func CSRF(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isSafeMethod(r.Method) {
			next.ServeHTTP(w, r)
			return
		}
		sess := FromContext(r.Context())
		if sess == nil || sess.CSRFToken == "" {
			http.Error(w, "invalid CSRF token", http.StatusForbidden)
			return
		}
		token := r.Header.Get(CSRFHeader)
		if token == "" {
			token = r.PostFormValue(CSRFField)
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(sess.CSRFToken)) != 1 {
			http.Error(w, "invalid CSRF token", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func isSafeMethod(m string) bool {
	switch m {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	default:
		return false
	}
}
