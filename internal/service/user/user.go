package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/nkiryanov/farmbox/internal/apperrors"
	"github.com/nkiryanov/farmbox/internal/models"
	"github.com/nkiryanov/farmbox/internal/repository"
	"github.com/nkiryanov/farmbox/internal/service/auth"
)

type UserService struct {
	hasher  auth.PasswordHasher
	storage repository.Storage
}

func NewService(hasher auth.PasswordHasher, storage repository.Storage) *UserService {
	if hasher == nil {
		hasher = auth.BcryptHasher{}
	}

	return &UserService{
		hasher:  hasher,
		storage: storage,
	}
}

// Create user with any role, self registration goes through auth service
func (s *UserService) CreateUser(ctx context.Context, email string, password string, name string, role models.Role) (models.User, error) {
	var user models.User
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return user, fmt.Errorf("can't use this as password, Err: %w", err)
	}

	user, err = s.storage.User().CreateUser(ctx, repository.CreateUserParams{
		Email:          strings.TrimSpace(email),
		Name:           name,
		HashedPassword: hash,
		Role:           role,
		IsActive:       true,
	})
	if err != nil {
		return user, fmt.Errorf("can't create user. Err: %w", err)
	}

	return user, nil
}

// Make sure admin with the email exists
// Existing user is promoted and activated, password is left as is
func (s *UserService) EnsureAdmin(ctx context.Context, email string, password string) (models.User, error) {
	var admin models.User

	err := s.storage.InTx(ctx, func(storage repository.Storage) error {
		existing, err := storage.User().GetUserByEmail(ctx, email)
		switch {
		case errors.Is(err, apperrors.ErrUserNotFound):
			admin, err = NewService(s.hasher, storage).CreateUser(ctx, email, password, "Administrator", models.RoleAdmin)
			return err
		case err != nil:
			return err
		}

		if _, err := storage.User().SetActive(ctx, existing.ID, true); err != nil {
			return err
		}
		admin, err = storage.User().SetRole(ctx, existing.ID, models.RoleAdmin)
		return err
	})

	return admin, err
}

func (s *UserService) GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error) {
	return s.storage.User().GetUserByID(ctx, userID)
}

func (s *UserService) ListUsers(ctx context.Context) ([]models.User, error) {
	return s.storage.User().ListUsers(ctx)
}

func (s *UserService) SetActive(ctx context.Context, userID uuid.UUID, active bool) (models.User, error) {
	return s.storage.User().SetActive(ctx, userID, active)
}

func (s *UserService) SetRole(ctx context.Context, userID uuid.UUID, role models.Role) (models.User, error) {
	return s.storage.User().SetRole(ctx, userID, role)
}

func (s *UserService) ListAddresses(ctx context.Context, userID uuid.UUID) ([]models.Address, error) {
	return s.storage.Address().ListAddresses(ctx, userID)
}

// Add address to user address book
// The first address becomes default one
func (s *UserService) AddAddress(ctx context.Context, address models.Address) (models.Address, error) {
	var created models.Address

	err := s.storage.InTx(ctx, func(storage repository.Storage) error {
		if _, err := storage.User().GetUserByID(ctx, address.UserID); err != nil {
			return err
		}

		existing, err := storage.Address().ListAddresses(ctx, address.UserID)
		if err != nil {
			return err
		}
		if len(existing) == 0 {
			address.IsDefault = true
		}

		created, err = storage.Address().CreateAddress(ctx, address)
		return err
	})

	return created, err
}

func (s *UserService) DeleteAddress(ctx context.Context, userID uuid.UUID, addressID uuid.UUID) error {
	return s.storage.Address().DeleteAddress(ctx, userID, addressID)
}
