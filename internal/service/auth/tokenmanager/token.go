package tokenmanager

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/nkiryanov/farmbox/internal/apperrors"
	"github.com/nkiryanov/farmbox/internal/models"
)

const (
	defaultAccessTokenTTL  = 15 * time.Minute
	defaultSigningMethod   = "HS256"
	defaultRefreshTokenTTL = 7 * 24 * time.Hour

	// Value of 'type' claim for refresh tokens. Access tokens carry no type
	TypeRefresh = "refresh"
)

type Claims struct {
	jwt.RegisteredClaims
	Type string `json:"type,omitempty"`
}

// Token manager with sensible default
type Config struct {
	// Secret key to sign tokens
	// Required to be set
	SecretKey string

	// JWT MAC (Message Authentication Code) algorithm
	// If not set than default is used
	Alg string

	// Access and refresh token lifetimes
	// If not set than default is used
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// Clock, time.Now if not set
	Now func() time.Time
}

// TokenManager issues and verifies signed self-contained tokens
// Tokens are never revoked, expiry is the only way they end
type TokenManager struct {
	// Secret key to sign tokens
	key string

	// JWT MAC (Message Authentication Code) algorithm
	alg jwt.SigningMethod

	// Access and refresh token lifetimes
	accessTTL  time.Duration
	refreshTTL time.Duration

	now func() time.Time
}

func New(cfg Config) (*TokenManager, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("secret key must not be empty")
	}

	if cfg.Alg == "" {
		cfg.Alg = defaultSigningMethod
	}
	alg := jwt.GetSigningMethod(cfg.Alg)
	if _, ok := alg.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("signing method %q is not supported", cfg.Alg)
	}

	setDefaultDuration := func(field *time.Duration, def time.Duration) {
		if *field == 0 {
			*field = def
		}
	}
	setDefaultDuration(&cfg.AccessTTL, defaultAccessTokenTTL)
	setDefaultDuration(&cfg.RefreshTTL, defaultRefreshTokenTTL)

	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &TokenManager{
		key:        cfg.SecretKey,
		alg:        alg,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		now:        cfg.Now,
	}, nil
}

func (m *TokenManager) GeneratePair(user models.User) (models.TokenPair, error) {
	var pair models.TokenPair
	now := m.now().Truncate(time.Second)

	access, accessExpiresAt, err := m.sign(user.ID, "", now, m.accessTTL)
	if err != nil {
		return pair, fmt.Errorf("error while signing access token. Err: %w", err)
	}

	refresh, refreshExpiresAt, err := m.sign(user.ID, TypeRefresh, now, m.refreshTTL)
	if err != nil {
		return pair, fmt.Errorf("error while signing refresh token. Err: %w", err)
	}

	return models.TokenPair{
		Access:  models.IssuedToken{Value: access, ExpiresAt: accessExpiresAt},
		Refresh: models.IssuedToken{Value: refresh, ExpiresAt: refreshExpiresAt},
	}, nil
}

// Parse and validate access token, return its subject
// Refresh tokens are rejected
func (m *TokenManager) ParseAccess(access string) (uuid.UUID, error) {
	claims, err := m.parse(access)
	if err != nil {
		return uuid.Nil, err
	}

	if claims.Type != "" {
		return uuid.Nil, fmt.Errorf("%w: %q token used as access token", apperrors.ErrTokenInvalid, claims.Type)
	}

	return subject(claims)
}

// Parse and validate refresh token, return its subject
func (m *TokenManager) ParseRefresh(refresh string) (uuid.UUID, error) {
	claims, err := m.parse(refresh)
	if err != nil {
		return uuid.Nil, err
	}

	if claims.Type != TypeRefresh {
		return uuid.Nil, fmt.Errorf("%w: not a refresh token", apperrors.ErrTokenInvalid)
	}

	return subject(claims)
}

func (m *TokenManager) sign(userID uuid.UUID, typ string, now time.Time, ttl time.Duration) (string, time.Time, error) {
	expiresAt := now.Add(ttl)
	token := jwt.NewWithClaims(
		m.alg,
		Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				ID:        uuid.NewString(),
				Subject:   userID.String(),
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(expiresAt),
			},
			Type: typ,
		},
	)

	signed, err := token.SignedString([]byte(m.key))
	return signed, expiresAt, err
}

func (m *TokenManager) parse(raw string) (*Claims, error) {
	claims := &Claims{}

	_, err := jwt.ParseWithClaims(
		raw,
		claims,
		func(t *jwt.Token) (any, error) {
			return []byte(m.key), nil
		},
		jwt.WithValidMethods([]string{m.alg.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)

	switch {
	case err == nil:
		return claims, nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, fmt.Errorf("%w: %w", apperrors.ErrTokenExpired, err)
	default:
		return nil, fmt.Errorf("%w: %w", apperrors.ErrTokenInvalid, err)
	}
}

func subject(claims *Claims) (uuid.UUID, error) {
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: bad subject: %w", apperrors.ErrTokenInvalid, err)
	}
	return userID, nil
}
