package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/farmbox/internal/handlers/render"
	"github.com/nkiryanov/farmbox/internal/handlers/userctx"
	"github.com/nkiryanov/farmbox/internal/logger"
	"github.com/nkiryanov/farmbox/internal/models"
	"github.com/nkiryanov/farmbox/internal/securitylog"
)

func handleUserMe(users userService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, _ := userctx.FromContext(r.Context())

		user, err := users.GetUserByID(r.Context(), identity.ID)
		if err != nil {
			serviceError(w, r, l, err)
			return
		}

		render.JSON(w, newUserResponse(user))
	})
}

func handleListUsers(users userService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		list, err := users.ListUsers(r.Context())
		if err != nil {
			serviceError(w, r, l, err)
			return
		}

		res := make([]userResponse, 0, len(list))
		for _, u := range list {
			res = append(res, newUserResponse(u))
		}
		render.JSON(w, res)
	})
}

func handleGetUser(users userService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := pathID(w, r, "userId", "User not found")
		if !ok {
			return
		}

		user, err := users.GetUserByID(r.Context(), userID)
		if err != nil {
			serviceError(w, r, l, err)
			return
		}

		render.JSON(w, newUserResponse(user))
	})
}

func handleSetUserStatus(users userService, seclog securitylog.Logger, l logger.Logger) http.Handler {
	type request struct {
		IsActive *bool `json:"isActive" validate:"required"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := pathID(w, r, "userId", "User not found")
		if !ok {
			return
		}

		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		// Admin must not lock themselves out
		identity, _ := userctx.FromContext(r.Context())
		if identity.ID == userID && !*data.IsActive {
			render.ServiceError(w, "Cannot deactivate own account", http.StatusConflict)
			return
		}

		user, err := users.SetActive(r.Context(), userID, *data.IsActive)
		if err != nil {
			serviceError(w, r, l, err)
			return
		}

		seclog.LogAuthEvent(r, "user_status_changed", map[string]any{"subject": userID.String(), "isActive": user.IsActive})
		render.JSON(w, newUserResponse(user))
	})
}

func handleSetUserRole(users userService, seclog securitylog.Logger, l logger.Logger) http.Handler {
	type request struct {
		Role string `json:"role" validate:"required,role"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := pathID(w, r, "userId", "User not found")
		if !ok {
			return
		}

		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		role, err := models.ParseRole(data.Role)
		if err != nil {
			serviceError(w, r, l, err)
			return
		}

		identity, _ := userctx.FromContext(r.Context())
		if identity.ID == userID && !role.IsAdmin() {
			render.ServiceError(w, "Cannot demote own account", http.StatusConflict)
			return
		}

		user, err := users.SetRole(r.Context(), userID, role)
		if err != nil {
			serviceError(w, r, l, err)
			return
		}

		seclog.LogAuthEvent(r, "user_role_changed", map[string]any{"subject": userID.String(), "role": role.String()})
		render.JSON(w, newUserResponse(user))
	})
}

type addressResponse struct {
	ID         uuid.UUID `json:"id"`
	Label      string    `json:"label"`
	Line1      string    `json:"line1"`
	Line2      string    `json:"line2,omitempty"`
	City       string    `json:"city"`
	PostalCode string    `json:"postalCode"`
	IsDefault  bool      `json:"isDefault"`
	CreatedAt  time.Time `json:"createdAt"`
}

func newAddressResponse(a models.Address) addressResponse {
	return addressResponse{
		ID:         a.ID,
		Label:      a.Label,
		Line1:      a.Line1,
		Line2:      a.Line2,
		City:       a.City,
		PostalCode: a.PostalCode,
		IsDefault:  a.IsDefault,
		CreatedAt:  a.CreatedAt,
	}
}

func handleListAddresses(users userService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := pathID(w, r, "userId", "User not found")
		if !ok {
			return
		}

		list, err := users.ListAddresses(r.Context(), userID)
		if err != nil {
			serviceError(w, r, l, err)
			return
		}

		res := make([]addressResponse, 0, len(list))
		for _, a := range list {
			res = append(res, newAddressResponse(a))
		}
		render.JSON(w, res)
	})
}

func handleCreateAddress(users userService, l logger.Logger) http.Handler {
	type request struct {
		Label      string `json:"label" validate:"max=50"`
		Line1      string `json:"line1" validate:"required,max=200"`
		Line2      string `json:"line2" validate:"max=200"`
		City       string `json:"city" validate:"required,max=100"`
		PostalCode string `json:"postalCode" validate:"required,postcode"`
		IsDefault  bool   `json:"isDefault"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := pathID(w, r, "userId", "User not found")
		if !ok {
			return
		}

		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		address, err := users.AddAddress(r.Context(), models.Address{
			UserID:     userID,
			Label:      data.Label,
			Line1:      data.Line1,
			Line2:      data.Line2,
			City:       data.City,
			PostalCode: data.PostalCode,
			IsDefault:  data.IsDefault,
		})
		if err != nil {
			serviceError(w, r, l, err)
			return
		}

		render.Created(w, newAddressResponse(address))
	})
}

func handleDeleteAddress(users userService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := pathID(w, r, "userId", "User not found")
		if !ok {
			return
		}
		addressID, ok := pathID(w, r, "addressId", "Address not found")
		if !ok {
			return
		}

		if err := users.DeleteAddress(r.Context(), userID, addressID); err != nil {
			serviceError(w, r, l, err)
			return
		}

		render.NoContent(w)
	})
}
