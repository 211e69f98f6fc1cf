package handlers

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/nkiryanov/farmbox/internal/apperrors"
	"github.com/nkiryanov/farmbox/internal/handlers/render"
	"github.com/nkiryanov/farmbox/internal/logger"
)

// Maps known service errors to responses
// Unknown errors are logged and answered with 500 without details
func serviceError(w http.ResponseWriter, r *http.Request, l logger.Logger, err error) {
	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		render.ServiceError(w, "User not found", http.StatusNotFound)
	case errors.Is(err, apperrors.ErrAddressNotFound):
		render.ServiceError(w, "Address not found", http.StatusNotFound)
	case errors.Is(err, apperrors.ErrProductNotFound):
		render.ServiceError(w, "Product not found", http.StatusNotFound)
	case errors.Is(err, apperrors.ErrOrderNotFound):
		render.ServiceError(w, "Order not found", http.StatusNotFound)
	case errors.Is(err, apperrors.ErrUserAlreadyExists):
		render.ServiceError(w, "User already exists", http.StatusConflict)
	case errors.Is(err, apperrors.ErrProductInactive):
		render.ServiceError(w, "Product is not available", http.StatusConflict)
	case errors.Is(err, apperrors.ErrOrderEmpty):
		render.ServiceError(w, "Order has no items", http.StatusBadRequest)
	case errors.Is(err, apperrors.ErrOrderInvalid):
		render.ServiceError(w, "Invalid order", http.StatusBadRequest)
	case errors.Is(err, apperrors.ErrProductInvalid):
		render.ServiceError(w, "Invalid product", http.StatusBadRequest)
	case errors.Is(err, apperrors.ErrRoleUnknown):
		render.ServiceError(w, "Unknown role", http.StatusBadRequest)
	default:
		l.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
	}
}

// Parse uuid path value, renders 404 on failure
// Malformed ids name nothing that could exist
func pathID(w http.ResponseWriter, r *http.Request, name string, notFound string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		render.ServiceError(w, notFound, http.StatusNotFound)
		return uuid.Nil, false
	}
	return id, true
}
