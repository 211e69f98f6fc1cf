package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/farmbox/internal/models"
)

type Storage interface {
	User() UserRepo
	Address() AddressRepo
	Product() ProductRepo
	Order() OrderRepo

	// Run fn inside a transaction
	// Commit if fn returns nil, rollback otherwise
	InTx(ctx context.Context, fn func(Storage) error) error
}

type CreateUserParams struct {
	Email          string
	Name           string
	HashedPassword string
	Role           models.Role
	IsActive       bool
}

// User repository interface
type UserRepo interface {
	// Create user
	// If user with the email exists already has to return error apperrors.ErrUserAlreadyExists
	CreateUser(ctx context.Context, params CreateUserParams) (models.User, error)

	// Get user by it's id or email
	// If user not found must return apperrors.ErrUserNotFound
	GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)

	// Oldest first
	ListUsers(ctx context.Context) ([]models.User, error)

	SetActive(ctx context.Context, userID uuid.UUID, active bool) (models.User, error)
	SetRole(ctx context.Context, userID uuid.UUID, role models.Role) (models.User, error)
}

type AddressRepo interface {
	CreateAddress(ctx context.Context, address models.Address) (models.Address, error)
	ListAddresses(ctx context.Context, userID uuid.UUID) ([]models.Address, error)

	// Address is looked up within user addresses only
	// Must return apperrors.ErrAddressNotFound if it does not exist or belongs to someone else
	GetAddress(ctx context.Context, userID uuid.UUID, addressID uuid.UUID) (models.Address, error)
	DeleteAddress(ctx context.Context, userID uuid.UUID, addressID uuid.UUID) error
}

type ProductRepo interface {
	CreateProduct(ctx context.Context, product models.Product) (models.Product, error)

	// Must return apperrors.ErrProductNotFound if not exists
	GetProduct(ctx context.Context, productID uuid.UUID) (models.Product, error)
	ListProducts(ctx context.Context, includeInactive bool) ([]models.Product, error)
	SetProductActive(ctx context.Context, productID uuid.UUID, active bool) (models.Product, error)
}

type OrderRepo interface {
	// Persist order with its items
	CreateOrder(ctx context.Context, order models.Order) (models.Order, error)

	// Orders with items, newest first
	ListOrders(ctx context.Context, userID uuid.UUID) ([]models.Order, error)
	ListAllOrders(ctx context.Context) ([]models.Order, error)

	// Orders in the status created before the time, oldest first
	ListOrdersByStatus(ctx context.Context, status string, createdBefore time.Time, limit int) ([]models.Order, error)

	// Move order from one status to another
	// Must return apperrors.ErrOrderNotFound if order not exists or is not in 'from' status anymore
	SetStatus(ctx context.Context, orderID uuid.UUID, from string, to string) error
}
