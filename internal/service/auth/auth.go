package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/nkiryanov/farmbox/internal/apperrors"
	"github.com/nkiryanov/farmbox/internal/models"
	"github.com/nkiryanov/farmbox/internal/repository"
)

// Interface to create or compare user password hashes
type PasswordHasher interface {
	// Generate Hash from password
	Hash(password string) (string, error)

	// Compare known hashedPassword and user provided password
	// Must be protected against timing attacks
	Compare(hashedPassword string, password string) error
}

type TokenManager interface {
	GeneratePair(user models.User) (models.TokenPair, error)
	ParseAccess(access string) (uuid.UUID, error)
	ParseRefresh(refresh string) (uuid.UUID, error)
}

type Config struct {
	// Hasher to use during user registration or login process
	// BcryptHasher if not set
	Hasher PasswordHasher
}

// Auth service
type AuthService struct {
	// Manager to issue and verify token pairs (access and refresh)
	tokens TokenManager

	// hasher to hash or compare user passwords
	hasher PasswordHasher

	// Repository to access long term data
	userRepo repository.UserRepo

	// Compared against when user not found, so login timing does not leak user existence
	dummyHash func() string
}

func NewService(cfg Config, tokens TokenManager, userRepo repository.UserRepo) (*AuthService, error) {
	if tokens == nil || userRepo == nil {
		return nil, errors.New("token manager and user repo must not be nil")
	}

	// Set default bcrypt hasher if not provided by user
	hasher := cfg.Hasher
	if hasher == nil {
		hasher = BcryptHasher{}
	}

	return &AuthService{
		tokens:   tokens,
		hasher:   hasher,
		userRepo: userRepo,
		dummyHash: sync.OnceValue(func() string {
			hash, _ := hasher.Hash("not-a-real-password")
			return hash
		}),
	}, nil
}

// Register new customer and issue token pair for it
func (s *AuthService) Register(ctx context.Context, email string, password string, name string) (models.User, models.TokenPair, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return models.User{}, models.TokenPair{}, fmt.Errorf("can't use this as password, error=%w", err)
	}

	user, err := s.userRepo.CreateUser(ctx, repository.CreateUserParams{
		Email:          strings.TrimSpace(email),
		Name:           name,
		HashedPassword: hash,
		Role:           models.RoleCustomer,
		IsActive:       true,
	})
	if err != nil {
		return user, models.TokenPair{}, err
	}

	pair, err := s.tokens.GeneratePair(user)
	if err != nil {
		return user, pair, fmt.Errorf("token could not generated, sorry. %w", err)
	}

	return user, pair, nil
}

// Login with email and password
// Unknown email, wrong password and inactive user all end up with apperrors.ErrInvalidCredentials
func (s *AuthService) Login(ctx context.Context, email string, password string) (models.User, models.TokenPair, error) {
	user, err := s.userRepo.GetUserByEmail(ctx, strings.TrimSpace(email))
	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		_ = s.hasher.Compare(s.dummyHash(), password)
		return models.User{}, models.TokenPair{}, apperrors.ErrInvalidCredentials
	case err != nil:
		return models.User{}, models.TokenPair{}, err
	}

	if err := s.hasher.Compare(user.HashedPassword, password); err != nil {
		return models.User{}, models.TokenPair{}, apperrors.ErrInvalidCredentials
	}

	if !user.IsActive {
		return models.User{}, models.TokenPair{}, fmt.Errorf("%w: %w", apperrors.ErrInvalidCredentials, apperrors.ErrUserInactive)
	}

	pair, err := s.tokens.GeneratePair(user)
	if err != nil {
		return models.User{}, pair, fmt.Errorf("token could not generated, sorry. %w", err)
	}

	return user, pair, nil
}

// Issue new token pair for refresh token
// Owner of the refresh token must still exist and be active
func (s *AuthService) RefreshPair(ctx context.Context, refresh string) (models.TokenPair, error) {
	userID, err := s.tokens.ParseRefresh(refresh)
	if err != nil {
		return models.TokenPair{}, err
	}

	user, err := s.activeUser(ctx, userID)
	if err != nil {
		return models.TokenPair{}, err
	}

	return s.tokens.GeneratePair(user)
}

// Resolve access token to the identity of its owner
// Lookup failures are never treated as success
func (s *AuthService) Authenticate(ctx context.Context, access string) (models.Identity, error) {
	userID, err := s.tokens.ParseAccess(access)
	if err != nil {
		return models.Identity{}, err
	}

	user, err := s.activeUser(ctx, userID)
	if err != nil {
		return models.Identity{}, err
	}

	return user.Identity(), nil
}

// Subject of a valid access token or empty string
// Signature and expiry only, no storage lookup
func (s *AuthService) SubjectFromAccess(access string) string {
	if access == "" {
		return ""
	}

	userID, err := s.tokens.ParseAccess(access)
	if err != nil {
		return ""
	}
	return userID.String()
}

func (s *AuthService) activeUser(ctx context.Context, userID uuid.UUID) (models.User, error) {
	user, err := s.userRepo.GetUserByID(ctx, userID)
	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		return user, fmt.Errorf("%w: %w", apperrors.ErrTokenInvalid, err)
	case err != nil:
		return user, fmt.Errorf("user lookup failed: %w", err)
	case !user.IsActive:
		return user, apperrors.ErrUserInactive
	}

	return user, nil
}
