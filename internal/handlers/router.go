package handlers

import (
	"context"
	"net/http"
	"net/netip"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/farmbox/internal/handlers/middleware"
	"github.com/nkiryanov/farmbox/internal/logger"
	"github.com/nkiryanov/farmbox/internal/models"
	"github.com/nkiryanov/farmbox/internal/securitylog"
	"github.com/nkiryanov/farmbox/internal/service/order"
)

const cspReportPath = "/api/csp-report"

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

type Deps struct {
	Auth    authService
	Users   userService
	Catalog catalogService
	Orders  orderService
	CSRF    csrfManager

	// Optional, health check reports ok without it
	DB pinger

	Logger      logger.Logger
	SecurityLog securitylog.Logger

	// Enables HSTS and Secure cookies
	Production bool

	// Connections from these ranges may set X-Forwarded-For
	TrustedProxies []netip.Prefix
}

func NewRouter(d Deps) http.Handler {
	authn := middleware.NewAuthenticator(d.Auth, d.SecurityLog)
	required := authn.Required
	optional := authn.Optional
	admin := middleware.RequireAdmin
	owner := middleware.RequireOwnerOrAdmin("userId")

	// Every limited route gets its own buckets
	strict := func() func(http.Handler) http.Handler {
		return middleware.RateLimit(middleware.StrictLimit, middleware.ByIP, d.SecurityLog)
	}
	lenient := middleware.RateLimit(middleware.LenientLimit, middleware.ByIP, d.SecurityLog)

	userKey := csrfUserKey(d.Auth)

	mux := http.NewServeMux()

	mux.Handle("GET /healthz", handleHealth(d.DB, d.Logger))
	mux.Handle("GET /api/csrf-token", handleCSRFToken(d.CSRF, userKey, d.Production, d.Logger))
	mux.Handle("POST "+cspReportPath, chain(handleCSPReport(d.SecurityLog), lenient))

	mux.Handle("POST /api/auth/register", chain(handleRegister(d.Auth, d.SecurityLog, d.Logger), strict()))
	mux.Handle("POST /api/auth/login", chain(handleLogin(d.Auth, d.SecurityLog, d.Logger), strict()))
	mux.Handle("POST /api/auth/refresh", handleRefresh(d.Auth, d.SecurityLog, d.Logger))
	mux.Handle("POST /api/auth/logout", chain(handleLogout(d.SecurityLog, d.Production), required))

	mux.Handle("GET /api/users/me", chain(handleUserMe(d.Users, d.Logger), required))
	mux.Handle("GET /api/users", chain(handleListUsers(d.Users, d.Logger), required, admin))
	mux.Handle("GET /api/users/{userId}", chain(handleGetUser(d.Users, d.Logger), required, owner))
	mux.Handle("PATCH /api/users/{userId}/status", chain(handleSetUserStatus(d.Users, d.SecurityLog, d.Logger), required, admin))
	mux.Handle("PATCH /api/users/{userId}/role", chain(handleSetUserRole(d.Users, d.SecurityLog, d.Logger), required, admin))

	mux.Handle("GET /api/users/{userId}/addresses", chain(handleListAddresses(d.Users, d.Logger), required, owner))
	mux.Handle("POST /api/users/{userId}/addresses", chain(handleCreateAddress(d.Users, d.Logger), required, owner))
	mux.Handle("DELETE /api/users/{userId}/addresses/{addressId}", chain(handleDeleteAddress(d.Users, d.Logger), required, owner))

	mux.Handle("GET /api/products", chain(handleListProducts(d.Catalog, d.Logger), optional))
	mux.Handle("GET /api/products/{productId}", chain(handleGetProduct(d.Catalog, d.Logger), optional))
	mux.Handle("POST /api/products", chain(handleCreateProduct(d.Catalog, d.Logger), required, admin))
	mux.Handle("PATCH /api/products/{productId}/status", chain(handleSetProductStatus(d.Catalog, d.Logger), required, admin))

	mux.Handle("GET /api/users/{userId}/orders", chain(handleListOrders(d.Orders, d.Logger), required, owner))
	mux.Handle("POST /api/users/{userId}/orders", chain(handleCreateOrder(d.Orders, d.Logger), required, owner))
	mux.Handle("GET /api/orders", chain(handleListAllOrders(d.Orders, d.Logger), required, admin))

	handler := chain(mux,
		middleware.Recover(d.Logger),
		middleware.RequestID(),
		middleware.RealIP(d.TrustedProxies),
		middleware.LoggerMiddleware(d.Logger),
		middleware.SecurityHeaders(cspReportPath, d.Production),
		middleware.Sanitize(d.SecurityLog),
		middleware.CSRF(d.CSRF, userKey, d.SecurityLog, cspReportPath),
	)

	return handler
}

// CSRF tokens are bound to the bearer subject, or to nothing for anonymous clients
// Only the signature is checked here, the guard runs before authentication
func csrfUserKey(auth authService) middleware.UserKeyFunc {
	return func(r *http.Request) string {
		return auth.SubjectFromAccess(middleware.BearerToken(r))
	}
}

type authService interface {
	// Has to return apperrors.ErrUserAlreadyExists if email is taken
	Register(ctx context.Context, email string, password string, name string) (models.User, models.TokenPair, error)

	// Has to return apperrors.ErrInvalidCredentials on any mismatch, inactive users included
	Login(ctx context.Context, email string, password string) (models.User, models.TokenPair, error)

	// Issue a new pair for the refresh token subject
	RefreshPair(ctx context.Context, refresh string) (models.TokenPair, error)

	// Resolve active identity for access token
	Authenticate(ctx context.Context, access string) (models.Identity, error)

	// Subject of a correctly signed access token or empty string
	SubjectFromAccess(access string) string
}

type userService interface {
	GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	SetActive(ctx context.Context, userID uuid.UUID, active bool) (models.User, error)
	SetRole(ctx context.Context, userID uuid.UUID, role models.Role) (models.User, error)

	ListAddresses(ctx context.Context, userID uuid.UUID) ([]models.Address, error)
	AddAddress(ctx context.Context, address models.Address) (models.Address, error)
	DeleteAddress(ctx context.Context, userID uuid.UUID, addressID uuid.UUID) error
}

type catalogService interface {
	ListProducts(ctx context.Context, includeInactive bool) ([]models.Product, error)
	GetProduct(ctx context.Context, productID uuid.UUID, includeInactive bool) (models.Product, error)
	CreateProduct(ctx context.Context, p models.Product) (models.Product, error)
	SetProductActive(ctx context.Context, productID uuid.UUID, active bool) (models.Product, error)
}

type orderService interface {
	CreateOrder(ctx context.Context, userID uuid.UUID, addressID uuid.UUID, items []order.ItemRequest) (models.Order, error)
	ListOrders(ctx context.Context, userID uuid.UUID) ([]models.Order, error)
	ListAllOrders(ctx context.Context) ([]models.Order, error)
}

type csrfManager interface {
	Issue(userKey string) (string, error)
	Verify(token string, userKey string) error
	TTL() time.Duration
}

type pinger interface {
	Ping(ctx context.Context) error
}
