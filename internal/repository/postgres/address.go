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

type AddressRepo struct {
	DB DBTX
}

const addressColumns = `id, user_id, created_at, label, line1, line2, city, postal_code, is_default`

// New default address resets the previous default one
const createAddress = `-- name: CreateAddress
WITH reset_default AS (
	UPDATE addresses SET is_default = FALSE
	WHERE user_id = $2 AND is_default AND $8
)
INSERT INTO addresses (id, user_id, label, line1, line2, city, postal_code, is_default)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING ` + addressColumns

func (r *AddressRepo) CreateAddress(ctx context.Context, a models.Address) (models.Address, error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}

	rows, _ := r.DB.Query(ctx, createAddress, a.ID, a.UserID, a.Label, a.Line1, a.Line2, a.City, a.PostalCode, a.IsDefault)
	created, err := pgx.CollectOneRow(rows, rowToAddress)
	if err != nil {
		return created, fmt.Errorf("db error: %w", err)
	}

	return created, nil
}

const listAddresses = `-- name: ListAddresses
SELECT ` + addressColumns + ` FROM addresses
WHERE user_id = $1
ORDER BY is_default DESC, created_at, id
`

func (r *AddressRepo) ListAddresses(ctx context.Context, userID uuid.UUID) ([]models.Address, error) {
	rows, _ := r.DB.Query(ctx, listAddresses, userID)
	addresses, err := pgx.CollectRows(rows, rowToAddress)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return addresses, nil
}

const getAddress = `-- name: GetAddress
SELECT ` + addressColumns + ` FROM addresses
WHERE user_id = $1 AND id = $2
`

func (r *AddressRepo) GetAddress(ctx context.Context, userID uuid.UUID, addressID uuid.UUID) (models.Address, error) {
	rows, _ := r.DB.Query(ctx, getAddress, userID, addressID)
	a, err := pgx.CollectOneRow(rows, rowToAddress)

	switch {
	case err == nil:
		return a, nil
	case errors.Is(err, pgx.ErrNoRows):
		return a, apperrors.ErrAddressNotFound
	default:
		return a, fmt.Errorf("db error: %w", err)
	}
}

const deleteAddress = `-- name: DeleteAddress
DELETE FROM addresses
WHERE user_id = $1 AND id = $2
`

func (r *AddressRepo) DeleteAddress(ctx context.Context, userID uuid.UUID, addressID uuid.UUID) error {
	tag, err := r.DB.Exec(ctx, deleteAddress, userID, addressID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrAddressNotFound
	}
	return nil
}

func rowToAddress(row pgx.CollectableRow) (models.Address, error) {
	var a models.Address
	err := row.Scan(&a.ID, &a.UserID, &a.CreatedAt, &a.Label, &a.Line1, &a.Line2, &a.City, &a.PostalCode, &a.IsDefault)
	return a, err
}
