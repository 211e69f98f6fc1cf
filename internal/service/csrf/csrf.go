package csrf

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	defaultTTL = 2 * time.Hour

	nonceBytesLen = 16
	separator     = "."
)

var (
	ErrTokenMalformed = errors.New("csrf token malformed")
	ErrTokenExpired   = errors.New("csrf token expired")
	ErrTokenSignature = errors.New("csrf token signature mismatch")
)

type Config struct {
	// Secret used to sign tokens
	// Required to be set
	Secret string

	// Token lifetime
	// If not set than default is used
	TTL time.Duration

	// How far in the future a token issue time may be
	// Zero means tokens from the future are rejected
	ClockSkew time.Duration

	// Clock, time.Now if not set
	Now func() time.Time
}

// Manager issues and verifies stateless double-submit tokens
// Token format: "<issuedAtMillis>.<nonce>.<signature>"
// The signature binds the token to the user key (user id or empty string for anonymous)
type Manager struct {
	secret    string
	ttl       time.Duration
	clockSkew time.Duration
	now       func() time.Time
}

func New(cfg Config) (*Manager, error) {
	if cfg.Secret == "" {
		return nil, errors.New("csrf secret must not be empty")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaultTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Manager{
		secret:    cfg.Secret,
		ttl:       cfg.TTL,
		clockSkew: cfg.ClockSkew,
		now:       cfg.Now,
	}, nil
}

func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Issue new token bound to the user key
func (m *Manager) Issue(userKey string) (string, error) {
	b := make([]byte, nonceBytesLen)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("error while generating csrf nonce. Err: %w", err)
	}

	issuedAt := strconv.FormatInt(m.now().UnixMilli(), 10)
	nonce := hex.EncodeToString(b)
	signature := Sign(payload(issuedAt, nonce, userKey), m.secret)

	return strings.Join([]string{issuedAt, nonce, signature}, separator), nil
}

// Verify token against the user key
// Returns ErrTokenMalformed, ErrTokenExpired or ErrTokenSignature on failure
func (m *Manager) Verify(token string, userKey string) error {
	parts := strings.Split(token, separator)
	if len(parts) != 3 {
		return ErrTokenMalformed
	}
	issuedAt, nonce, signature := parts[0], parts[1], parts[2]
	if nonce == "" || signature == "" {
		return ErrTokenMalformed
	}

	millis, err := strconv.ParseInt(issuedAt, 10, 64)
	if err != nil || millis < 0 {
		return ErrTokenMalformed
	}

	age := m.now().Sub(time.UnixMilli(millis))
	if age > m.ttl || age < -m.clockSkew {
		return ErrTokenExpired
	}

	expected := Sign(payload(issuedAt, nonce, userKey), m.secret)

	// ConstantTimeCompare returns 0 on length mismatch as well
	if subtle.ConstantTimeCompare([]byte(signature), []byte(expected)) != 1 {
		return ErrTokenSignature
	}

	return nil
}

func payload(issuedAt string, nonce string, userKey string) string {
	return issuedAt + separator + nonce + separator + userKey
}
