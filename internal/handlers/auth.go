package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/farmbox/internal/apperrors"
	"github.com/nkiryanov/farmbox/internal/handlers/render"
	"github.com/nkiryanov/farmbox/internal/handlers/userctx"
	"github.com/nkiryanov/farmbox/internal/logger"
	"github.com/nkiryanov/farmbox/internal/models"
	"github.com/nkiryanov/farmbox/internal/securitylog"
)

type tokensResponse struct {
	AccessToken           string    `json:"accessToken"`
	AccessTokenExpiresAt  time.Time `json:"accessTokenExpiresAt"`
	RefreshToken          string    `json:"refreshToken"`
	RefreshTokenExpiresAt time.Time `json:"refreshTokenExpiresAt"`
}

func newTokensResponse(pair models.TokenPair) tokensResponse {
	return tokensResponse{
		AccessToken:           pair.Access.Value,
		AccessTokenExpiresAt:  pair.Access.ExpiresAt,
		RefreshToken:          pair.Refresh.Value,
		RefreshTokenExpiresAt: pair.Refresh.ExpiresAt,
	}
}

type sessionResponse struct {
	User   userResponse   `json:"user"`
	Tokens tokensResponse `json:"tokens"`
}

func handleRegister(auth authService, seclog securitylog.Logger, l logger.Logger) http.Handler {
	type request struct {
		Email    string `json:"email" validate:"required,email,max=254"`
		Password string `json:"password" validate:"required,min=8,max=128"`
		Name     string `json:"name" validate:"required,max=100"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		user, pair, err := auth.Register(r.Context(), data.Email, data.Password, data.Name)
		if err != nil {
			serviceError(w, r, l, err)
			return
		}

		seclog.LogAuthEvent(r, "register", map[string]any{"subject": user.ID.String()})
		render.Created(w, sessionResponse{User: newUserResponse(user), Tokens: newTokensResponse(pair)})
	})
}

func handleLogin(auth authService, seclog securitylog.Logger, l logger.Logger) http.Handler {
	type request struct {
		Email    string `json:"email" validate:"required,max=254"`
		Password string `json:"password" validate:"required,max=128"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		user, pair, err := auth.Login(r.Context(), data.Email, data.Password)
		switch {
		case err == nil:
		case errors.Is(err, apperrors.ErrInvalidCredentials):
			reason := "invalid_credentials"
			if errors.Is(err, apperrors.ErrUserInactive) {
				reason = "inactive_user"
			}
			seclog.LogAuthEvent(r, "login_failed", map[string]any{"reason": reason})
			render.ServiceError(w, "Invalid email or password", http.StatusUnauthorized)
			return
		default:
			serviceError(w, r, l, err)
			return
		}

		seclog.LogAuthEvent(r, "login", map[string]any{"subject": user.ID.String()})
		render.JSON(w, sessionResponse{User: newUserResponse(user), Tokens: newTokensResponse(pair)})
	})
}

func handleRefresh(auth authService, seclog securitylog.Logger, l logger.Logger) http.Handler {
	type request struct {
		RefreshToken string `json:"refreshToken" validate:"required"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		pair, err := auth.RefreshPair(r.Context(), data.RefreshToken)
		switch {
		case err == nil:
		case errors.Is(err, apperrors.ErrTokenExpired),
			errors.Is(err, apperrors.ErrTokenInvalid),
			errors.Is(err, apperrors.ErrUserInactive):
			seclog.LogAuthEvent(r, "token_refresh_failed", map[string]any{"reason": refreshFailure(err)})
			render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
			return
		default:
			serviceError(w, r, l, err)
			return
		}

		seclog.LogAuthEvent(r, "token_refresh", nil)
		render.JSON(w, newTokensResponse(pair))
	})
}

func refreshFailure(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrTokenExpired):
		return "expired_token"
	case errors.Is(err, apperrors.ErrUserInactive):
		return "inactive_user"
	default:
		return "invalid_token"
	}
}

// Tokens are stateless, logout only records the event and drops the CSRF cookie
func handleLogout(seclog securitylog.Logger, secure bool) http.Handler {
	type response struct {
		Message string `json:"message"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, _ := userctx.FromContext(r.Context())

		seclog.LogAuthEvent(r, "logout", map[string]any{"subject": identity.ID.String()})
		clearCSRFCookie(w, secure)
		render.JSON(w, response{Message: "Logged out"})
	})
}

type userResponse struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
}

func newUserResponse(u models.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Role:      u.Role.String(),
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
	}
}
