package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/nkiryanov/farmbox/internal/apperrors"
	"github.com/nkiryanov/farmbox/internal/handlers/render"
	"github.com/nkiryanov/farmbox/internal/handlers/userctx"
	"github.com/nkiryanov/farmbox/internal/models"
	"github.com/nkiryanov/farmbox/internal/securitylog"
)

const (
	authHeaderName = "Authorization"
	authScheme     = "Bearer"
)

type authService interface {
	Authenticate(ctx context.Context, access string) (models.Identity, error)
}

// Authenticator attaches identity of bearer token owner to the request
type Authenticator struct {
	auth authService
	log  securitylog.Logger
}

func NewAuthenticator(auth authService, log securitylog.Logger) *Authenticator {
	return &Authenticator{auth: auth, log: log}
}

// Required rejects request with 401 if no active identity could be resolved
func (a *Authenticator) Required(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, err := a.identify(r)
		if err != nil {
			a.log.LogAuthEvent(r, "auth_failed", map[string]any{"reason": failureReason(err)})
			render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(userctx.New(r.Context(), identity)))
	})
}

// Optional never rejects, identity is attached only if it could be resolved
func (a *Authenticator) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, err := a.identify(r)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(userctx.New(r.Context(), identity)))
	})
}

var errNoToken = errors.New("no bearer token")

func (a *Authenticator) identify(r *http.Request) (models.Identity, error) {
	token := BearerToken(r)
	if token == "" {
		return models.Identity{}, errNoToken
	}

	identity, err := a.auth.Authenticate(r.Context(), token)
	if err != nil {
		return models.Identity{}, err
	}

	// Authenticate must never return inactive users, check anyway
	if !identity.IsActive {
		return models.Identity{}, apperrors.ErrUserInactive
	}

	return identity, nil
}

// Token from 'Authorization: Bearer <token>' header or empty string
func BearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get(authHeaderName), " ")
	if !ok || !strings.EqualFold(scheme, authScheme) {
		return ""
	}
	return strings.TrimSpace(token)
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, errNoToken):
		return "missing_token"
	case errors.Is(err, apperrors.ErrTokenExpired):
		return "expired_token"
	case errors.Is(err, apperrors.ErrUserInactive):
		return "inactive_user"
	case errors.Is(err, apperrors.ErrTokenInvalid):
		return "invalid_token"
	default:
		return "lookup_failed"
	}
}
