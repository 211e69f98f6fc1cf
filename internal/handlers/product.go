package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/farmbox/internal/handlers/render"
	"github.com/nkiryanov/farmbox/internal/handlers/userctx"
	"github.com/nkiryanov/farmbox/internal/logger"
	"github.com/nkiryanov/farmbox/internal/models"
)

type productResponse struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Farm        string    `json:"farm"`
	Unit        string    `json:"unit"`
	Price       string    `json:"price"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
}

func newProductResponse(p models.Product) productResponse {
	return productResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Farm:        p.Farm,
		Unit:        p.Unit,
		Price:       p.Price.StringFixed(2),
		IsActive:    p.IsActive,
		CreatedAt:   p.CreatedAt,
	}
}

// Inactive products are visible to admins only
func seesInactive(r *http.Request) bool {
	identity, ok := userctx.FromContext(r.Context())
	return ok && identity.Role.IsAdmin()
}

func handleListProducts(catalog catalogService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		list, err := catalog.ListProducts(r.Context(), seesInactive(r))
		if err != nil {
			serviceError(w, r, l, err)
			return
		}

		res := make([]productResponse, 0, len(list))
		for _, p := range list {
			res = append(res, newProductResponse(p))
		}
		render.JSON(w, res)
	})
}

func handleGetProduct(catalog catalogService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		productID, ok := pathID(w, r, "productId", "Product not found")
		if !ok {
			return
		}

		product, err := catalog.GetProduct(r.Context(), productID, seesInactive(r))
		if err != nil {
			serviceError(w, r, l, err)
			return
		}

		render.JSON(w, newProductResponse(product))
	})
}

func handleCreateProduct(catalog catalogService, l logger.Logger) http.Handler {
	type request struct {
		Name        string      `json:"name" validate:"required,max=200"`
		Description string      `json:"description" validate:"max=2000"`
		Farm        string      `json:"farm" validate:"max=200"`
		Unit        string      `json:"unit" validate:"required,max=50"`
		Price       json.Number `json:"price" validate:"required,decimal"`
		IsActive    *bool       `json:"isActive"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		// Validated above
		price, _ := decimal.NewFromString(data.Price.String())

		active := true
		if data.IsActive != nil {
			active = *data.IsActive
		}

		product, err := catalog.CreateProduct(r.Context(), models.Product{
			Name:        data.Name,
			Description: data.Description,
			Farm:        data.Farm,
			Unit:        data.Unit,
			Price:       price,
			IsActive:    active,
		})
		if err != nil {
			serviceError(w, r, l, err)
			return
		}

		render.Created(w, newProductResponse(product))
	})
}

func handleSetProductStatus(catalog catalogService, l logger.Logger) http.Handler {
	type request struct {
		IsActive *bool `json:"isActive" validate:"required"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		productID, ok := pathID(w, r, "productId", "Product not found")
		if !ok {
			return
		}

		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		product, err := catalog.SetProductActive(r.Context(), productID, *data.IsActive)
		if err != nil {
			serviceError(w, r, l, err)
			return
		}

		render.JSON(w, newProductResponse(product))
	})
}
