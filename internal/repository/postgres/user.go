package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nkiryanov/farmbox/internal/apperrors"
	"github.com/nkiryanov/farmbox/internal/models"
	"github.com/nkiryanov/farmbox/internal/repository"
)

type UserRepo struct {
	DB DBTX
}

const userColumns = `id, created_at, email, name, role, is_active, password_hash`

const createUser = `-- name: CreateUser
INSERT INTO users (id, email, name, role, is_active, password_hash)
VALUES ($1, lower($2), $3, $4, $5, $6)
RETURNING ` + userColumns

func (r *UserRepo) CreateUser(ctx context.Context, p repository.CreateUserParams) (models.User, error) {
	if p.Role == "" {
		p.Role = models.RoleCustomer
	}

	rows, _ := r.DB.Query(ctx, createUser, uuid.New(), p.Email, p.Name, p.Role, p.IsActive, p.HashedPassword)
	user, err := pgx.CollectOneRow(rows, rowToUser)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return user, apperrors.ErrUserAlreadyExists
		}

		return user, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

const getUserByID = `-- name: GetUserByID
SELECT ` + userColumns + ` FROM users
WHERE id = $1
`

func (r *UserRepo) GetUserByID(ctx context.Context, id uuid.UUID) (models.User, error) {
	rows, _ := r.DB.Query(ctx, getUserByID, id)
	return collectUser(rows)
}

const getUserByEmail = `-- name: GetUserByEmail
SELECT ` + userColumns + ` FROM users
WHERE email = lower($1)
`

func (r *UserRepo) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	rows, _ := r.DB.Query(ctx, getUserByEmail, email)
	return collectUser(rows)
}

const listUsers = `-- name: ListUsers
SELECT ` + userColumns + ` FROM users
ORDER BY created_at, id
`

func (r *UserRepo) ListUsers(ctx context.Context) ([]models.User, error) {
	rows, _ := r.DB.Query(ctx, listUsers)
	users, err := pgx.CollectRows(rows, rowToUser)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return users, nil
}

const setActive = `-- name: SetActive
UPDATE users SET is_active = $2
WHERE id = $1
RETURNING ` + userColumns

func (r *UserRepo) SetActive(ctx context.Context, id uuid.UUID, active bool) (models.User, error) {
	rows, _ := r.DB.Query(ctx, setActive, id, active)
	return collectUser(rows)
}

const setRole = `-- name: SetRole
UPDATE users SET role = $2
WHERE id = $1
RETURNING ` + userColumns

func (r *UserRepo) SetRole(ctx context.Context, id uuid.UUID, role models.Role) (models.User, error) {
	rows, _ := r.DB.Query(ctx, setRole, id, role)
	return collectUser(rows)
}

func collectUser(rows pgx.Rows) (models.User, error) {
	user, err := pgx.CollectOneRow(rows, rowToUser)

	switch {
	case err == nil:
		return user, nil
	case errors.Is(err, pgx.ErrNoRows):
		return user, apperrors.ErrUserNotFound
	default:
		return user, fmt.Errorf("db error: %w", err)
	}
}

func rowToUser(row pgx.CollectableRow) (models.User, error) {
	var (
		u    models.User
		role string
	)

	err := row.Scan(&u.ID, &u.CreatedAt, &u.Email, &u.Name, &role, &u.IsActive, &u.HashedPassword)
	if err != nil {
		return u, err
	}

	u.Role, err = models.ParseRole(role)
	return u, err
}
