package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/nkiryanov/farmbox/internal/handlers/render"
	"github.com/nkiryanov/farmbox/internal/handlers/userctx"
)

// RequireAdmin must run after Authenticator.Required
// No identity is 401, non admin identity is 403
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		if !identity.Role.IsAdmin() {
			render.ServiceError(w, "Forbidden", http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// RequireOwnerOrAdmin allows request if path value 'param' is the identity id or identity is admin
func RequireOwnerOrAdmin(param string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := userctx.FromContext(r.Context())
			if !ok {
				render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			if identity.Role.IsAdmin() {
				next.ServeHTTP(w, r)
				return
			}

			ownerID, err := uuid.Parse(r.PathValue(param))
			if err != nil || ownerID != identity.ID {
				render.ServiceError(w, "Forbidden", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
