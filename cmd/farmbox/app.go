package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nkiryanov/farmbox/internal/db"
	"github.com/nkiryanov/farmbox/internal/handlers"
	"github.com/nkiryanov/farmbox/internal/handlers/middleware"
	"github.com/nkiryanov/farmbox/internal/logger"
	"github.com/nkiryanov/farmbox/internal/repository/postgres"
	"github.com/nkiryanov/farmbox/internal/securitylog"
	"github.com/nkiryanov/farmbox/internal/service/auth"
	"github.com/nkiryanov/farmbox/internal/service/auth/tokenmanager"
	"github.com/nkiryanov/farmbox/internal/service/catalog"
	"github.com/nkiryanov/farmbox/internal/service/csrf"
	"github.com/nkiryanov/farmbox/internal/service/order"
	"github.com/nkiryanov/farmbox/internal/service/orderprocessor"
	"github.com/nkiryanov/farmbox/internal/service/user"
)

const shutdownTimeout = 5 * time.Second

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler

	logger    logger.Logger
	pool      *pgxpool.Pool
	seclog    *securitylog.Writer
	seclogOut io.Closer
	processor *orderprocessor.Processor
}

func NewServerApp(ctx context.Context, c *Config) (*ServerApp, error) {
	// Initialize logger
	logger, err := logger.New(c.Environment, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}

	fallback, err := c.ResolveSecrets()
	if err != nil {
		return nil, err
	}
	if fallback {
		logger.Warn("No JWT_SECRET or CSRF_SECRET configured, using development secret")
	}

	// Connect to the database and run migrations
	pool, err := db.ConnectAndMigrate(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
	}

	app, err := newServerApp(ctx, c, logger, pool)
	if err != nil {
		pool.Close()
		return nil, err
	}

	return app, nil
}

func newServerApp(ctx context.Context, c *Config, logger logger.Logger, pool *pgxpool.Pool) (*ServerApp, error) {
	trustedProxies, err := middleware.ParseTrustedProxies(c.TrustedProxies)
	if err != nil {
		return nil, err
	}

	// Initialize repositories
	storage := postgres.NewStorage(pool)

	// Initialize services
	tokenManager, err := tokenmanager.New(tokenmanager.Config{
		SecretKey:  c.JWTSecret,
		AccessTTL:  c.AccessTokenTTL,
		RefreshTTL: c.RefreshTokenTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("error while creating token manager. Err: %w", err)
	}

	hasher := auth.BcryptHasher{}
	authService, err := auth.NewService(auth.Config{Hasher: hasher}, tokenManager, storage.User())
	if err != nil {
		return nil, fmt.Errorf("error while creating auth service. Err: %w", err)
	}
	userService := user.NewService(hasher, storage)
	catalogService := catalog.NewService(storage.Product())
	orderService := order.NewService(storage)

	csrfManager, err := csrf.New(csrf.Config{Secret: c.CSRFSecret, ClockSkew: c.CSRFClockSkew()})
	if err != nil {
		return nil, fmt.Errorf("error while creating csrf manager. Err: %w", err)
	}

	if c.AdminEmail != "" && c.AdminPassword != "" {
		admin, err := userService.EnsureAdmin(ctx, c.AdminEmail, c.AdminPassword)
		if err != nil {
			return nil, fmt.Errorf("error while ensuring admin account. Err: %w", err)
		}
		logger.Info("Admin account ensured", "user_id", admin.ID.String())
	}

	// Security events go to their own append only sink
	seclogOut, err := securitylog.Open(c.SecurityLogPath)
	if err != nil {
		return nil, fmt.Errorf("error while opening security log. Err: %w", err)
	}
	seclog := securitylog.NewWriter(seclogOut, 0)

	processor := orderprocessor.New(orderprocessor.Config{PendingTTL: c.OrderPendingTTL}, logger, orderService)

	router := handlers.NewRouter(handlers.Deps{
		Auth:        authService,
		Users:       userService,
		Catalog:     catalogService,
		Orders:      orderService,
		CSRF:        csrfManager,
		DB:          pool,
		Logger:      logger,
		SecurityLog: seclog,
		Production:  c.IsProduction(),

		TrustedProxies: trustedProxies,
	})

	return &ServerApp{
		ListenAddr: c.ListenAddr,
		Handler:    router,
		logger:     logger,
		pool:       pool,
		seclog:     seclog,
		seclogOut:  seclogOut,
		processor:  processor,
	}, nil
}

// Run starts http server and order processor, closes gracefully on context cancellation
func (s *ServerApp) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.ListenAddr,
		Handler:           s.Handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	idleConnsClosed := make(chan struct{})
	srvCtx, srvCtxCancel := context.WithCancel(ctx)
	defer srvCtxCancel()

	processorStopped := s.processor.Process(srvCtx)

	go func() {
		<-srvCtx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(timeoutCtx); errors.Is(err, context.DeadlineExceeded) {
			s.logger.Error("HTTP server shutdown timeout exceeded, forcing shutdown...")
		}
		s.logger.Info("HTTP server stopped")
		close(idleConnsClosed)
	}()

	// Listen and serve until context is cancelled; then close gracefully connections
	s.logger.Info("Starting server", "address", s.ListenAddr)
	err := httpServer.ListenAndServe()
	srvCtxCancel()
	<-idleConnsClosed
	<-processorStopped

	s.close()

	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *ServerApp) close() {
	s.seclog.Close()
	if dropped := s.seclog.Dropped(); dropped > 0 {
		s.logger.Warn("Security log entries dropped", "count", dropped)
	}
	if err := s.seclogOut.Close(); err != nil {
		s.logger.Error("Failed to close security log", "error", err)
	}
	s.pool.Close()
}
