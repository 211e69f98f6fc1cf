package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/nkiryanov/farmbox/internal/handlers/render"
	"github.com/nkiryanov/farmbox/internal/securitylog"
)

const (
	CSRFCookieName = "XSRF-TOKEN"
	CSRFHeaderName = "X-CSRF-Token"
)

type csrfVerifier interface {
	Verify(token string, userKey string) error
}

// Key the CSRF token is bound to, empty for anonymous requests
type UserKeyFunc func(r *http.Request) string

// CSRF implements double submit check for state changing requests
// Header token must equal cookie token and be signed for the request user key
func CSRF(verifier csrfVerifier, userKey UserKeyFunc, log securitylog.Logger, exempt ...string) func(http.Handler) http.Handler {
	skip := make(map[string]struct{}, len(exempt))
	for _, path := range exempt {
		skip[path] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isSafeMethod(r.Method) {
				next.ServeHTTP(w, r)
				return
			}
			if _, ok := skip[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			reject := func(reason string, message string) {
				log.LogAuthEvent(r, "csrf_rejected", map[string]any{"reason": reason})
				render.ServiceError(w, message, http.StatusForbidden)
			}

			header := r.Header.Get(CSRFHeaderName)
			cookie, err := r.Cookie(CSRFCookieName)
			if header == "" || err != nil || cookie.Value == "" {
				reject("missing", "CSRF token missing")
				return
			}

			if subtle.ConstantTimeCompare([]byte(header), []byte(cookie.Value)) != 1 {
				reject("mismatch", "Invalid CSRF token")
				return
			}

			if err := verifier.Verify(header, userKey(r)); err != nil {
				reject("invalid", "Invalid CSRF token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	default:
		return false
	}
}
