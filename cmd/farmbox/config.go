package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/nkiryanov/farmbox/internal/logger"
)

const (
	defaultListenAddr      = "localhost:8000"
	defaultLoggingLevel    = logger.LevelInfo
	defaultEnvironment     = logger.EnvProduction
	defaultAccessTokenTTL  = 15 * time.Minute
	defaultRefreshTokenTTL = 7 * 24 * time.Hour
	defaultOrderPendingTTL = 24 * time.Hour

	// HMAC keys shorter than this are refused in production
	minSecretLen = 32

	// Used when no secret configured outside of production
	developmentSecret = "farmbox-development-secret-never-use-in-production"

	// Allowed difference between issuer and verifier clocks for CSRF tokens outside production
	developmentClockSkew = time.Minute
)

type Config struct {
	// Default logging level
	LogLevel string

	// Address on which the farmbox service will be run
	ListenAddr string

	// Database to connect to
	DatabaseDSN string

	// Secret to sign access and refresh tokens
	JWTSecret string

	// Secret to sign CSRF tokens
	// Falls back to JWTSecret if empty
	CSRFSecret string

	// Environment: development or production
	Environment string

	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	// Pending orders older than this are cancelled
	OrderPendingTTL time.Duration

	// Security events sink, stdout if empty
	SecurityLogPath string

	// Comma separated proxy addresses or CIDR ranges allowed to set X-Forwarded-For
	// Empty means clients are identified by connection address only
	TrustedProxies string

	// Admin account created or promoted on start if both set
	AdminEmail    string
	AdminPassword string
}

func NewConfig() *Config {
	return &Config{
		LogLevel:        defaultLoggingLevel,
		ListenAddr:      defaultListenAddr,
		Environment:     defaultEnvironment,
		AccessTokenTTL:  defaultAccessTokenTTL,
		RefreshTokenTTL: defaultRefreshTokenTTL,
		OrderPendingTTL: defaultOrderPendingTTL,
	}
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, logger.EnvProduction)
}

// Load variable from '.env' file (should be located at working directory)
func (c *Config) LoadDotEnv(getwd func() (string, error)) error {
	wd, err := getwd()
	if err != nil {
		return err
	}

	envMap, err := godotenv.Read(filepath.Join(wd, ".env"))

	switch {
	case err == nil:
		return c.LoadEnv(func(key string) string {
			return envMap[key]
		})
	case errors.Is(err, os.ErrNotExist):
		return nil
	default:
		return err
	}
}

func (c *Config) LoadEnv(getenv func(string) string) error {
	var errs []error

	// Set option to value if it not empty
	setString := func(o *string) func(key string, value string) {
		return func(_ string, value string) {
			if value != "" {
				*o = value
			}
		}
	}
	setDuration := func(o *time.Duration) func(key string, value string) {
		return func(key string, value string) {
			if value == "" {
				return
			}
			d, err := time.ParseDuration(value)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*o = d
		}
	}

	envMap := map[string]func(string, string){
		"RUN_ADDRESS":       setString(&c.ListenAddr),
		"DATABASE_URI":      setString(&c.DatabaseDSN),
		"JWT_SECRET":        setString(&c.JWTSecret),
		"CSRF_SECRET":       setString(&c.CSRFSecret),
		"LOG_LEVEL":         setString(&c.LogLevel),
		"ENVIRONMENT":       setString(&c.Environment),
		"SECURITY_LOG_PATH": setString(&c.SecurityLogPath),
		"TRUSTED_PROXIES":   setString(&c.TrustedProxies),
		"ADMIN_EMAIL":       setString(&c.AdminEmail),
		"ADMIN_PASSWORD":    setString(&c.AdminPassword),
		"ACCESS_TOKEN_TTL":  setDuration(&c.AccessTokenTTL),
		"REFRESH_TOKEN_TTL": setDuration(&c.RefreshTokenTTL),
		"ORDER_PENDING_TTL": setDuration(&c.OrderPendingTTL),
	}

	for key, parseFn := range envMap {
		parseFn(key, getenv(key))
	}

	return errors.Join(errs...)
}

func (c *Config) ParseFlags(args []string) error {
	fs := pflag.NewFlagSet("farmbox", pflag.ContinueOnError)

	fs.StringVarP(&c.ListenAddr, "address", "a", c.ListenAddr, "Server listen address")
	fs.StringVarP(&c.DatabaseDSN, "database", "d", c.DatabaseDSN, "Database connection string")
	fs.StringVarP(&c.JWTSecret, "jwt-secret", "s", c.JWTSecret, "Secret to sign access and refresh tokens")
	fs.StringVar(&c.CSRFSecret, "csrf-secret", c.CSRFSecret, "Secret to sign CSRF tokens (defaults to JWT secret)")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "Logging level (debug, info, warn, error)")
	fs.StringVarP(&c.Environment, "environment", "e", c.Environment, "Environment (development, production)")
	fs.StringVar(&c.SecurityLogPath, "security-log", c.SecurityLogPath, "Security events log file (stdout if empty)")
	fs.StringVar(&c.TrustedProxies, "trusted-proxies", c.TrustedProxies, "Proxies allowed to set X-Forwarded-For (comma separated addresses or CIDRs)")
	fs.DurationVar(&c.AccessTokenTTL, "access-ttl", c.AccessTokenTTL, "Access token lifetime")
	fs.DurationVar(&c.RefreshTokenTTL, "refresh-ttl", c.RefreshTokenTTL, "Refresh token lifetime")
	fs.DurationVar(&c.OrderPendingTTL, "order-pending-ttl", c.OrderPendingTTL, "Pending orders older than this are cancelled")

	return fs.Parse(args)
}

// ResolveSecrets fills CSRF secret from JWT secret and checks both
// Outside production a missing secret is replaced with a fixed development one, fallback reports that
func (c *Config) ResolveSecrets() (fallback bool, err error) {
	if c.CSRFSecret == "" {
		c.CSRFSecret = c.JWTSecret
	}

	if c.IsProduction() {
		if len(c.JWTSecret) < minSecretLen {
			return false, fmt.Errorf("JWT_SECRET must be at least %d bytes in production", minSecretLen)
		}
		if len(c.CSRFSecret) < minSecretLen {
			return false, fmt.Errorf("CSRF_SECRET must be at least %d bytes in production", minSecretLen)
		}
		return false, nil
	}

	if c.JWTSecret == "" {
		c.JWTSecret = developmentSecret
		fallback = true
	}
	if c.CSRFSecret == "" {
		c.CSRFSecret = developmentSecret
		fallback = true
	}

	return fallback, nil
}

// CSRF tokens issued slightly in the future are tolerated outside production only
func (c *Config) CSRFClockSkew() time.Duration {
	if c.IsProduction() {
		return 0
	}
	return developmentClockSkew
}
