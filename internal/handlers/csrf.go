package handlers

import (
	"net/http"

	"github.com/nkiryanov/farmbox/internal/handlers/middleware"
	"github.com/nkiryanov/farmbox/internal/handlers/render"
	"github.com/nkiryanov/farmbox/internal/logger"
)

// Issue CSRF token for the caller
// Token goes both to the body and to a cookie readable by the frontend script
func handleCSRFToken(m csrfManager, userKey middleware.UserKeyFunc, secure bool, l logger.Logger) http.Handler {
	type response struct {
		CSRFToken string `json:"csrfToken"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := m.Issue(userKey(r))
		if err != nil {
			l.Error("failed to issue csrf token", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     middleware.CSRFCookieName,
			Value:    token,
			Path:     "/",
			MaxAge:   int(m.TTL().Seconds()),
			Secure:   secure,
			HttpOnly: false,
			SameSite: http.SameSiteStrictMode,
		})
		w.Header().Set("Cache-Control", "no-store")

		render.JSON(w, response{CSRFToken: token})
	})
}

// Expire CSRF cookie, used on logout
func clearCSRFCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.CSRFCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	})
}
