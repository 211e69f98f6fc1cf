package order

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/farmbox/internal/apperrors"
	"github.com/nkiryanov/farmbox/internal/models"
	"github.com/nkiryanov/farmbox/internal/repository/postgres"
	"github.com/nkiryanov/farmbox/internal/testutil"
)

func TestOrder(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	type fixture struct {
		user     models.User
		stranger models.User
		address  models.Address
		apples   models.Product
		pears    models.Product
		retired  models.Product
	}

	// Helper function to create OrderService within transaction
	withTx := func(t *testing.T, fn func(s *OrderService, f fixture)) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			storage := postgres.NewStorage(tx)

			var f fixture
			var err error
			f.user = testutil.CreateUser(t, storage.User(), "buyer@example.com", models.RoleCustomer)
			f.stranger = testutil.CreateUser(t, storage.User(), "stranger@example.com", models.RoleCustomer)
			f.address, err = storage.Address().CreateAddress(t.Context(), models.Address{
				UserID: f.user.ID, Line1: "3 Mill Street", City: "Greenvale", PostalCode: "GV3 9ZZ",
			})
			require.NoError(t, err)

			product := func(name string, price string, active bool) models.Product {
				p, err := storage.Product().CreateProduct(t.Context(), models.Product{
					Name: name, Price: decimal.RequireFromString(price), IsActive: active,
				})
				require.NoError(t, err)
				return p
			}
			f.apples = product("Apples", "1.25", true)
			f.pears = product("Pears", "0.80", true)
			f.retired = product("Quince", "9.99", false)

			fn(NewService(storage), f)
		})
	}

	t.Run("CreateOrder", func(t *testing.T) {
		t.Run("create ok", func(t *testing.T) {
			withTx(t, func(s *OrderService, f fixture) {
				order, err := s.CreateOrder(t.Context(), f.user.ID, f.address.ID, []ItemRequest{
					{ProductID: f.apples.ID, Quantity: 4},
					{ProductID: f.pears.ID, Quantity: 3},
				})

				require.NoError(t, err, "creating order should not fail")
				require.NotEqual(t, uuid.Nil, order.ID)
				require.Equal(t, models.OrderStatusPending, order.Status)
				require.True(t, decimal.RequireFromString("7.40").Equal(order.Total), "total is 4*1.25 + 3*0.80, got %s", order.Total)
				require.Len(t, order.Items, 2)
				require.True(t, f.apples.Price.Equal(order.Items[0].UnitPrice), "unit price comes from the catalog")
			})
		})

		tests := []struct {
			name    string
			items   func(f fixture) []ItemRequest
			address func(f fixture) uuid.UUID
			user    func(f fixture) uuid.UUID
			wantErr error
		}{
			{
				name:    "empty order",
				items:   func(fixture) []ItemRequest { return nil },
				wantErr: apperrors.ErrOrderEmpty,
			},
			{
				name:    "zero quantity",
				items:   func(f fixture) []ItemRequest { return []ItemRequest{{ProductID: f.apples.ID, Quantity: 0}} },
				wantErr: apperrors.ErrOrderInvalid,
			},
			{
				name:    "huge quantity",
				items:   func(f fixture) []ItemRequest { return []ItemRequest{{ProductID: f.apples.ID, Quantity: 1000}} },
				wantErr: apperrors.ErrOrderInvalid,
			},
			{
				name:    "inactive product",
				items:   func(f fixture) []ItemRequest { return []ItemRequest{{ProductID: f.retired.ID, Quantity: 1}} },
				wantErr: apperrors.ErrProductInactive,
			},
			{
				name:    "unknown product",
				items:   func(fixture) []ItemRequest { return []ItemRequest{{ProductID: uuid.New(), Quantity: 1}} },
				wantErr: apperrors.ErrProductNotFound,
			},
			{
				name:    "address of other user",
				items:   func(f fixture) []ItemRequest { return []ItemRequest{{ProductID: f.apples.ID, Quantity: 1}} },
				user:    func(f fixture) uuid.UUID { return f.stranger.ID },
				wantErr: apperrors.ErrAddressNotFound,
			},
			{
				name:    "unknown address",
				items:   func(f fixture) []ItemRequest { return []ItemRequest{{ProductID: f.apples.ID, Quantity: 1}} },
				address: func(fixture) uuid.UUID { return uuid.New() },
				wantErr: apperrors.ErrAddressNotFound,
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				withTx(t, func(s *OrderService, f fixture) {
					userID, addressID := f.user.ID, f.address.ID
					if tt.user != nil {
						userID = tt.user(f)
					}
					if tt.address != nil {
						addressID = tt.address(f)
					}

					_, err := s.CreateOrder(t.Context(), userID, addressID, tt.items(f))

					require.ErrorIs(t, err, tt.wantErr)

					orders, err := s.ListAllOrders(t.Context())
					require.NoError(t, err)
					require.Empty(t, orders, "nothing must be persisted")
				})
			})
		}
	})

	t.Run("List and cancel", func(t *testing.T) {
		withTx(t, func(s *OrderService, f fixture) {
			order, err := s.CreateOrder(t.Context(), f.user.ID, f.address.ID, []ItemRequest{{ProductID: f.pears.ID, Quantity: 1}})
			require.NoError(t, err)

			mine, err := s.ListOrders(t.Context(), f.user.ID)
			require.NoError(t, err)
			require.Len(t, mine, 1)

			theirs, err := s.ListOrders(t.Context(), f.stranger.ID)
			require.NoError(t, err)
			require.Empty(t, theirs)

			stale, err := s.ListStalePending(t.Context(), time.Now().Add(time.Minute), 10)
			require.NoError(t, err)
			require.Len(t, stale, 1)

			require.NoError(t, s.CancelPending(t.Context(), order.ID))
			require.ErrorIs(t, s.CancelPending(t.Context(), order.ID), apperrors.ErrOrderNotFound)
		})
	})
}
