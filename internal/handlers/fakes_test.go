package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/farmbox/internal/apperrors"
	"github.com/nkiryanov/farmbox/internal/logger"
	"github.com/nkiryanov/farmbox/internal/models"
	"github.com/nkiryanov/farmbox/internal/service/csrf"
	"github.com/nkiryanov/farmbox/internal/service/order"
)

const (
	adminToken    = "admin-access"
	customerToken = "customer-access"
	inactiveToken = "inactive-access"
	expiredToken  = "expired-access"
	refreshToken  = "refresh-token"
	brokenToken   = "lookup-fails"
)

var (
	adminID    = uuid.MustParse("00000000-0000-0000-0000-00000000000a")
	customerID = uuid.MustParse("00000000-0000-0000-0000-00000000000c")
	otherID    = uuid.MustParse("00000000-0000-0000-0000-0000000000ff")

	testPair = models.TokenPair{
		Access:  models.IssuedToken{Value: "new-access", ExpiresAt: time.Date(2026, 1, 1, 0, 15, 0, 0, time.UTC)},
		Refresh: models.IssuedToken{Value: "new-refresh", ExpiresAt: time.Date(2026, 1, 8, 0, 0, 0, 0, time.UTC)},
	}
)

type fakeAuth struct {
	mu         sync.Mutex
	identities map[string]models.Identity
	errs       map[string]error
	users      map[string]models.User // by email, password is "password"

	registered []string
}

func newFakeAuth() *fakeAuth {
	admin := models.User{ID: adminID, Email: "admin@farmbox.test", Name: "Admin", Role: models.RoleAdmin, IsActive: true}
	customer := models.User{ID: customerID, Email: "ann@farmbox.test", Name: "Ann", Role: models.RoleCustomer, IsActive: true}

	return &fakeAuth{
		identities: map[string]models.Identity{
			adminToken:    admin.Identity(),
			customerToken: customer.Identity(),
		},
		errs: map[string]error{
			inactiveToken: apperrors.ErrUserInactive,
			expiredToken:  apperrors.ErrTokenExpired,
			refreshToken:  apperrors.ErrTokenInvalid,
			brokenToken:   errors.New("connection reset"),
		},
		users: map[string]models.User{
			admin.Email:    admin,
			customer.Email: customer,
		},
	}
}

func (a *fakeAuth) Register(_ context.Context, email string, _ string, name string) (models.User, models.TokenPair, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.users[email]; ok {
		return models.User{}, models.TokenPair{}, apperrors.ErrUserAlreadyExists
	}
	a.registered = append(a.registered, name)
	user := models.User{ID: uuid.New(), Email: email, Name: name, Role: models.RoleCustomer, IsActive: true}
	a.users[email] = user
	return user, testPair, nil
}

func (a *fakeAuth) Login(_ context.Context, email string, password string) (models.User, models.TokenPair, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	user, ok := a.users[email]
	if !ok || password != "password" {
		return models.User{}, models.TokenPair{}, apperrors.ErrInvalidCredentials
	}
	return user, testPair, nil
}

func (a *fakeAuth) RefreshPair(_ context.Context, refresh string) (models.TokenPair, error) {
	switch refresh {
	case "valid-refresh":
		return testPair, nil
	case expiredToken:
		return models.TokenPair{}, apperrors.ErrTokenExpired
	default:
		return models.TokenPair{}, apperrors.ErrTokenInvalid
	}
}

func (a *fakeAuth) Authenticate(_ context.Context, access string) (models.Identity, error) {
	if err, ok := a.errs[access]; ok {
		return models.Identity{}, err
	}
	if identity, ok := a.identities[access]; ok {
		return identity, nil
	}
	return models.Identity{}, apperrors.ErrTokenInvalid
}

func (a *fakeAuth) SubjectFromAccess(access string) string {
	if identity, ok := a.identities[access]; ok {
		return identity.ID.String()
	}
	return ""
}

type fakeUsers struct {
	mu        sync.Mutex
	users     map[uuid.UUID]models.User
	addresses map[uuid.UUID][]models.Address
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{
		users: map[uuid.UUID]models.User{
			adminID:    {ID: adminID, Email: "admin@farmbox.test", Name: "Admin", Role: models.RoleAdmin, IsActive: true},
			customerID: {ID: customerID, Email: "ann@farmbox.test", Name: "Ann", Role: models.RoleCustomer, IsActive: true},
		},
		addresses: map[uuid.UUID][]models.Address{},
	}
}

func (s *fakeUsers) GetUserByID(_ context.Context, userID uuid.UUID) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userID]
	if !ok {
		return models.User{}, apperrors.ErrUserNotFound
	}
	return user, nil
}

func (s *fakeUsers) ListUsers(_ context.Context) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return []models.User{s.users[adminID], s.users[customerID]}, nil
}

func (s *fakeUsers) SetActive(_ context.Context, userID uuid.UUID, active bool) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userID]
	if !ok {
		return models.User{}, apperrors.ErrUserNotFound
	}
	user.IsActive = active
	s.users[userID] = user
	return user, nil
}

func (s *fakeUsers) SetRole(_ context.Context, userID uuid.UUID, role models.Role) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userID]
	if !ok {
		return models.User{}, apperrors.ErrUserNotFound
	}
	user.Role = role
	s.users[userID] = user
	return user, nil
}

func (s *fakeUsers) ListAddresses(_ context.Context, userID uuid.UUID) ([]models.Address, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.addresses[userID], nil
}

func (s *fakeUsers) AddAddress(_ context.Context, address models.Address) (models.Address, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[address.UserID]; !ok {
		return models.Address{}, apperrors.ErrUserNotFound
	}
	address.ID = uuid.New()
	address.IsDefault = address.IsDefault || len(s.addresses[address.UserID]) == 0
	s.addresses[address.UserID] = append(s.addresses[address.UserID], address)
	return address, nil
}

func (s *fakeUsers) DeleteAddress(_ context.Context, userID uuid.UUID, addressID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.addresses[userID]
	for i, a := range list {
		if a.ID == addressID {
			s.addresses[userID] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return apperrors.ErrAddressNotFound
}

type fakeCatalog struct {
	mu              sync.Mutex
	products        []models.Product
	includeInactive []bool
	created         []models.Product
}

func (c *fakeCatalog) ListProducts(_ context.Context, includeInactive bool) ([]models.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.includeInactive = append(c.includeInactive, includeInactive)
	var res []models.Product
	for _, p := range c.products {
		if p.IsActive || includeInactive {
			res = append(res, p)
		}
	}
	return res, nil
}

func (c *fakeCatalog) GetProduct(_ context.Context, productID uuid.UUID, includeInactive bool) (models.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, p := range c.products {
		if p.ID == productID && (p.IsActive || includeInactive) {
			return p, nil
		}
	}
	return models.Product{}, apperrors.ErrProductNotFound
}

func (c *fakeCatalog) CreateProduct(_ context.Context, p models.Product) (models.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p.ID = uuid.New()
	c.created = append(c.created, p)
	c.products = append(c.products, p)
	return p, nil
}

func (c *fakeCatalog) SetProductActive(_ context.Context, productID uuid.UUID, active bool) (models.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, p := range c.products {
		if p.ID == productID {
			c.products[i].IsActive = active
			return c.products[i], nil
		}
	}
	return models.Product{}, apperrors.ErrProductNotFound
}

type fakeOrders struct {
	mu     sync.Mutex
	err    error
	orders []models.Order
}

func (o *fakeOrders) CreateOrder(_ context.Context, userID uuid.UUID, addressID uuid.UUID, items []order.ItemRequest) (models.Order, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.err != nil {
		return models.Order{}, o.err
	}

	created := models.Order{ID: uuid.New(), UserID: userID, AddressID: addressID, Status: models.OrderStatusPending}
	for _, item := range items {
		created.Items = append(created.Items, models.OrderItem{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	o.orders = append(o.orders, created)
	return created, nil
}

func (o *fakeOrders) ListOrders(_ context.Context, userID uuid.UUID) ([]models.Order, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	var res []models.Order
	for _, created := range o.orders {
		if created.UserID == userID {
			res = append(res, created)
		}
	}
	return res, nil
}

func (o *fakeOrders) ListAllOrders(_ context.Context) ([]models.Order, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	return append([]models.Order(nil), o.orders...), nil
}

type fakePinger struct {
	err error
}

func (p *fakePinger) Ping(context.Context) error {
	return p.err
}

type securityEvent struct {
	kind  string
	event string
	meta  map[string]any
}

type recordingLog struct {
	mu     sync.Mutex
	events []securityEvent
}

func (l *recordingLog) add(e securityEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *recordingLog) LogValidation(_ *http.Request, errs []string) {
	l.add(securityEvent{kind: "validation", meta: map[string]any{"errors": errs}})
}

func (l *recordingLog) LogAuthEvent(_ *http.Request, event string, meta map[string]any) {
	l.add(securityEvent{kind: "auth", event: event, meta: meta})
}

func (l *recordingLog) LogRateLimit(_ *http.Request) {
	l.add(securityEvent{kind: "rate_limit"})
}

func (l *recordingLog) LogCSPReport(_ *http.Request, report map[string]any) {
	l.add(securityEvent{kind: "csp", meta: report})
}

// Auth events with given name
func (l *recordingLog) AuthEvents(name string) []securityEvent {
	l.mu.Lock()
	defer l.mu.Unlock()

	var res []securityEvent
	for _, e := range l.events {
		if e.kind == "auth" && e.event == name {
			res = append(res, e)
		}
	}
	return res
}

func (l *recordingLog) Kind(kind string) []securityEvent {
	l.mu.Lock()
	defer l.mu.Unlock()

	var res []securityEvent
	for _, e := range l.events {
		if e.kind == kind {
			res = append(res, e)
		}
	}
	return res
}

type testEnv struct {
	handler http.Handler
	csrf    *csrf.Manager
	auth    *fakeAuth
	users   *fakeUsers
	catalog *fakeCatalog
	orders  *fakeOrders
	db      *fakePinger
	seclog  *recordingLog
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	m, err := csrf.New(csrf.Config{Secret: "router-test-secret"})
	require.NoError(t, err)

	env := &testEnv{
		csrf:    m,
		auth:    newFakeAuth(),
		users:   newFakeUsers(),
		catalog: &fakeCatalog{},
		orders:  &fakeOrders{},
		db:      &fakePinger{},
		seclog:  &recordingLog{},
	}

	env.handler = NewRouter(Deps{
		Auth:        env.auth,
		Users:       env.users,
		Catalog:     env.catalog,
		Orders:      env.orders,
		CSRF:        env.csrf,
		DB:          env.db,
		Logger:      logger.NewNoOpLogger(),
		SecurityLog: env.seclog,
	})

	return env
}

type reqOption func(r *http.Request)

func withBearer(token string) reqOption {
	return func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+token)
	}
}

// Double submit: same token in header and cookie
func withCSRF(token string) reqOption {
	return func(r *http.Request) {
		r.Header.Set("X-CSRF-Token", token)
		r.AddCookie(&http.Cookie{Name: "XSRF-TOKEN", Value: token})
	}
}

// CSRF token as it would be issued to the bearer of access token
func (e *testEnv) csrfToken(t *testing.T, access string) string {
	t.Helper()

	token, err := e.csrf.Issue(e.auth.SubjectFromAccess(access))
	require.NoError(t, err)
	return token
}

func (e *testEnv) do(method string, path string, body string, opts ...reqOption) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for _, opt := range opts {
		opt(req)
	}

	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}
