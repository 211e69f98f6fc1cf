package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nkiryanov/farmbox/internal/apperrors"
	"github.com/nkiryanov/farmbox/internal/models"
)

type ProductRepo struct {
	DB DBTX
}

const productColumns = `id, created_at, name, description, farm, unit, price, is_active`

const createProduct = `-- name: CreateProduct
INSERT INTO products (id, name, description, farm, unit, price, is_active)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING ` + productColumns

func (r *ProductRepo) CreateProduct(ctx context.Context, p models.Product) (models.Product, error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}

	rows, _ := r.DB.Query(ctx, createProduct, p.ID, p.Name, p.Description, p.Farm, p.Unit, p.Price, p.IsActive)
	created, err := pgx.CollectOneRow(rows, rowToProduct)
	if err != nil {
		return created, fmt.Errorf("db error: %w", err)
	}
	return created, nil
}

const getProduct = `-- name: GetProduct
SELECT ` + productColumns + ` FROM products
WHERE id = $1
`

func (r *ProductRepo) GetProduct(ctx context.Context, productID uuid.UUID) (models.Product, error) {
	rows, _ := r.DB.Query(ctx, getProduct, productID)
	return collectProduct(rows)
}

const listProducts = `-- name: ListProducts
SELECT ` + productColumns + ` FROM products
WHERE is_active OR $1
ORDER BY name, id
`

func (r *ProductRepo) ListProducts(ctx context.Context, includeInactive bool) ([]models.Product, error) {
	rows, _ := r.DB.Query(ctx, listProducts, includeInactive)
	products, err := pgx.CollectRows(rows, rowToProduct)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return products, nil
}

const setProductActive = `-- name: SetProductActive
UPDATE products SET is_active = $2
WHERE id = $1
RETURNING ` + productColumns

func (r *ProductRepo) SetProductActive(ctx context.Context, productID uuid.UUID, active bool) (models.Product, error) {
	rows, _ := r.DB.Query(ctx, setProductActive, productID, active)
	return collectProduct(rows)
}

func collectProduct(rows pgx.Rows) (models.Product, error) {
	p, err := pgx.CollectOneRow(rows, rowToProduct)

	switch {
	case err == nil:
		return p, nil
	case errors.Is(err, pgx.ErrNoRows):
		return p, apperrors.ErrProductNotFound
	default:
		return p, fmt.Errorf("db error: %w", err)
	}
}

func rowToProduct(row pgx.CollectableRow) (models.Product, error) {
	var p models.Product
	err := row.Scan(&p.ID, &p.CreatedAt, &p.Name, &p.Description, &p.Farm, &p.Unit, &p.Price, &p.IsActive)
	return p, err
}
