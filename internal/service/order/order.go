package order

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/farmbox/internal/apperrors"
	"github.com/nkiryanov/farmbox/internal/models"
	"github.com/nkiryanov/farmbox/internal/repository"
)

const maxItemQuantity = 100

type ItemRequest struct {
	ProductID uuid.UUID
	Quantity  int
}

type OrderService struct {
	storage repository.Storage
}

func NewService(storage repository.Storage) *OrderService {
	return &OrderService{
		storage: storage,
	}
}

// Place order for the user
// Address must belong to the user, every product must be active
// Prices are taken from the catalog at the moment of ordering
func (s *OrderService) CreateOrder(ctx context.Context, userID uuid.UUID, addressID uuid.UUID, items []ItemRequest) (models.Order, error) {
	var order models.Order

	if len(items) == 0 {
		return order, apperrors.ErrOrderEmpty
	}
	for _, item := range items {
		if item.Quantity < 1 || item.Quantity > maxItemQuantity {
			return order, fmt.Errorf("%w: quantity must be between 1 and %d", apperrors.ErrOrderInvalid, maxItemQuantity)
		}
	}

	err := s.storage.InTx(ctx, func(storage repository.Storage) error {
		if _, err := storage.Address().GetAddress(ctx, userID, addressID); err != nil {
			return err
		}

		order = models.Order{
			UserID:    userID,
			AddressID: addressID,
			Status:    models.OrderStatusPending,
			Total:     decimal.Zero,
			Items:     make([]models.OrderItem, 0, len(items)),
		}

		for _, item := range items {
			product, err := storage.Product().GetProduct(ctx, item.ProductID)
			if err != nil {
				return err
			}
			if !product.IsActive {
				return fmt.Errorf("%w: %s", apperrors.ErrProductInactive, product.Name)
			}

			line := models.OrderItem{
				ProductID: product.ID,
				Quantity:  item.Quantity,
				UnitPrice: product.Price,
			}
			order.Items = append(order.Items, line)
			order.Total = order.Total.Add(line.Subtotal())
		}

		var err error
		order, err = storage.Order().CreateOrder(ctx, order)
		return err
	})

	return order, err
}

func (s *OrderService) ListOrders(ctx context.Context, userID uuid.UUID) ([]models.Order, error) {
	return s.storage.Order().ListOrders(ctx, userID)
}

func (s *OrderService) ListAllOrders(ctx context.Context) ([]models.Order, error) {
	return s.storage.Order().ListAllOrders(ctx)
}

// Pending orders created before the time
func (s *OrderService) ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]models.Order, error) {
	return s.storage.Order().ListOrdersByStatus(ctx, models.OrderStatusPending, createdBefore, limit)
}

// Cancel order that is still pending
// apperrors.ErrOrderNotFound if it has moved on
func (s *OrderService) CancelPending(ctx context.Context, orderID uuid.UUID) error {
	return s.storage.Order().SetStatus(ctx, orderID, models.OrderStatusPending, models.OrderStatusCancelled)
}
