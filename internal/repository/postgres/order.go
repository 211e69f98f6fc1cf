package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nkiryanov/farmbox/internal/apperrors"
	"github.com/nkiryanov/farmbox/internal/models"
)

type OrderRepo struct {
	DB DBTX
}

const createOrder = `-- name: CreateOrder
INSERT INTO orders (id, user_id, address_id, status, total, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
`

const createOrderItem = `-- name: CreateOrderItem
INSERT INTO order_items (order_id, position, product_id, quantity, unit_price)
VALUES ($1, $2, $3, $4, $5)
`

// Should be called inside transaction, order and items are written separately
func (r *OrderRepo) CreateOrder(ctx context.Context, o models.Order) (models.Order, error) {
	if len(o.Items) == 0 {
		return o, apperrors.ErrOrderEmpty
	}

	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	if o.Status == "" {
		o.Status = models.OrderStatusPending
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now()
	}
	o.CreatedAt = o.CreatedAt.UTC().Truncate(time.Microsecond)

	_, err := r.DB.Exec(ctx, createOrder, o.ID, o.UserID, o.AddressID, o.Status, o.Total, o.CreatedAt)
	if err != nil {
		return o, fmt.Errorf("db error: %w", err)
	}

	for i, item := range o.Items {
		_, err := r.DB.Exec(ctx, createOrderItem, o.ID, i, item.ProductID, item.Quantity, item.UnitPrice)
		if err != nil {
			return o, fmt.Errorf("db error: %w", err)
		}
	}

	return o, nil
}

const selectOrders = `
SELECT o.id, o.user_id, o.address_id, o.status, o.total, o.created_at, i.product_id, i.quantity, i.unit_price
FROM orders o
JOIN order_items i ON i.order_id = o.id
`

const listOrders = `-- name: ListOrders` + selectOrders + `WHERE o.user_id = $1
ORDER BY o.created_at DESC, o.id, i.position
`

const listAllOrders = `-- name: ListAllOrders` + selectOrders + `ORDER BY o.created_at DESC, o.id, i.position
`

func (r *OrderRepo) ListOrders(ctx context.Context, userID uuid.UUID) ([]models.Order, error) {
	rows, _ := r.DB.Query(ctx, listOrders, userID)
	return collectOrders(rows)
}

func (r *OrderRepo) ListAllOrders(ctx context.Context) ([]models.Order, error) {
	rows, _ := r.DB.Query(ctx, listAllOrders)
	return collectOrders(rows)
}

// Items are joined to limited set of orders, so the limit applies to orders not rows
const listOrdersByStatus = `-- name: ListOrdersByStatus
WITH batch AS (
	SELECT id FROM orders
	WHERE status = $1 AND created_at < $2
	ORDER BY created_at, id
	LIMIT $3
)` + selectOrders + `JOIN batch b ON b.id = o.id
ORDER BY o.created_at, o.id, i.position
`

func (r *OrderRepo) ListOrdersByStatus(ctx context.Context, status string, createdBefore time.Time, limit int) ([]models.Order, error) {
	rows, _ := r.DB.Query(ctx, listOrdersByStatus, status, createdBefore, limit)
	return collectOrders(rows)
}

const setOrderStatus = `-- name: SetOrderStatus
UPDATE orders SET status = $3
WHERE id = $1 AND status = $2
`

func (r *OrderRepo) SetStatus(ctx context.Context, orderID uuid.UUID, from string, to string) error {
	tag, err := r.DB.Exec(ctx, setOrderStatus, orderID, from, to)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrOrderNotFound
	}
	return nil
}

type orderRow struct {
	order models.Order
	item  models.OrderItem
}

// Rows are one per item, ordered so items of the same order are adjacent
func collectOrders(rows pgx.Rows) ([]models.Order, error) {
	flat, err := pgx.CollectRows(rows, rowToOrderItem)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	orders := make([]models.Order, 0)
	for _, row := range flat {
		last := len(orders) - 1
		if last < 0 || orders[last].ID != row.order.ID {
			orders = append(orders, row.order)
			last++
		}
		orders[last].Items = append(orders[last].Items, row.item)
	}

	return orders, nil
}

func rowToOrderItem(row pgx.CollectableRow) (orderRow, error) {
	var r orderRow
	err := row.Scan(
		&r.order.ID, &r.order.UserID, &r.order.AddressID, &r.order.Status, &r.order.Total, &r.order.CreatedAt,
		&r.item.ProductID, &r.item.Quantity, &r.item.UnitPrice,
	)
	return r, err
}
