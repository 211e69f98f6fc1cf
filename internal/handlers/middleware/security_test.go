package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSecurityHeaders(t *testing.T) {
	t.Run("development", func(t *testing.T) {
		w := httptest.NewRecorder()

		SecurityHeaders("/api/csp-report", false)(okHandler).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Contains(t, w.Header().Get("Content-Security-Policy"), "default-src 'self'")
		assert.Contains(t, w.Header().Get("Content-Security-Policy"), "report-uri /api/csp-report")
		assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
		assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
		assert.NotEmpty(t, w.Header().Get("Referrer-Policy"))
		assert.Empty(t, w.Header().Get("Strict-Transport-Security"), "no HSTS outside production")
	})

	t.Run("production", func(t *testing.T) {
		w := httptest.NewRecorder()

		SecurityHeaders("", true)(okHandler).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.NotContains(t, w.Header().Get("Content-Security-Policy"), "report-uri")
		assert.Contains(t, w.Header().Get("Strict-Transport-Security"), "max-age=")
	})
}
