package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/farmbox/internal/handlers/render"
	"github.com/nkiryanov/farmbox/internal/logger"
	"github.com/nkiryanov/farmbox/internal/models"
	"github.com/nkiryanov/farmbox/internal/service/order"
)

type orderItemResponse struct {
	ProductID uuid.UUID `json:"productId"`
	Quantity  int       `json:"quantity"`
	UnitPrice string    `json:"unitPrice"`
	Subtotal  string    `json:"subtotal"`
}

type orderResponse struct {
	ID        uuid.UUID           `json:"id"`
	UserID    uuid.UUID           `json:"userId"`
	AddressID uuid.UUID           `json:"addressId"`
	Status    string              `json:"status"`
	Total     string              `json:"total"`
	CreatedAt time.Time           `json:"createdAt"`
	Items     []orderItemResponse `json:"items"`
}

func newOrderResponse(o models.Order) orderResponse {
	res := orderResponse{
		ID:        o.ID,
		UserID:    o.UserID,
		AddressID: o.AddressID,
		Status:    o.Status,
		Total:     o.Total.StringFixed(2),
		CreatedAt: o.CreatedAt,
		Items:     make([]orderItemResponse, 0, len(o.Items)),
	}
	for _, item := range o.Items {
		res.Items = append(res.Items, orderItemResponse{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice.StringFixed(2),
			Subtotal:  item.Subtotal().StringFixed(2),
		})
	}
	return res
}

func newOrdersResponse(list []models.Order) []orderResponse {
	res := make([]orderResponse, 0, len(list))
	for _, o := range list {
		res = append(res, newOrderResponse(o))
	}
	return res
}

func handleCreateOrder(orders orderService, l logger.Logger) http.Handler {
	type item struct {
		ProductID string `json:"productId" validate:"required,uuid"`
		Quantity  int    `json:"quantity" validate:"required,min=1,max=100"`
	}
	type request struct {
		AddressID string `json:"addressId" validate:"required,uuid"`
		Items     []item `json:"items" validate:"required,min=1,max=50,dive"`
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

		// Ids are validated as uuid above
		addressID := uuid.MustParse(data.AddressID)
		items := make([]order.ItemRequest, 0, len(data.Items))
		for _, it := range data.Items {
			items = append(items, order.ItemRequest{ProductID: uuid.MustParse(it.ProductID), Quantity: it.Quantity})
		}

		created, err := orders.CreateOrder(r.Context(), userID, addressID, items)
		if err != nil {
			serviceError(w, r, l, err)
			return
		}

		render.Created(w, newOrderResponse(created))
	})
}

func handleListOrders(orders orderService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := pathID(w, r, "userId", "User not found")
		if !ok {
			return
		}

		list, err := orders.ListOrders(r.Context(), userID)
		if err != nil {
			serviceError(w, r, l, err)
			return
		}

		render.JSON(w, newOrdersResponse(list))
	})
}

func handleListAllOrders(orders orderService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		list, err := orders.ListAllOrders(r.Context())
		if err != nil {
			serviceError(w, r, l, err)
			return
		}

		render.JSON(w, newOrdersResponse(list))
	})
}
