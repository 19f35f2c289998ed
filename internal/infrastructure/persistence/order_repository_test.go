package persistence

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/printmarket/backend/internal/domain/identity"
	"github.com/printmarket/backend/internal/domain/order"
	"github.com/printmarket/backend/internal/domain/pricing"
	"github.com/printmarket/backend/internal/domain/shared"
	"github.com/printmarket/backend/internal/infrastructure/persistence/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type recordingSaver struct {
	mu     sync.Mutex
	events []shared.DomainEvent
	err    error
}

func (s *recordingSaver) SaveEvents(_ context.Context, _ any, events ...shared.DomainEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, events...)
	return nil
}

type countingNotifier struct {
	mu    sync.Mutex
	calls int
}

func (n *countingNotifier) Notify() {
	n.mu.Lock()
	n.calls++
	n.mu.Unlock()
}

func setupOrderTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.OrderModel{}))
	return db
}

func newStoredOrder(t *testing.T, repo *GormOrderRepository, customerID uuid.UUID, producerID *uuid.UUID) *order.Order {
	o, err := order.NewOrder(customerID, uuid.New(), uuid.New(), "PLA", 1, producerID, "")
	require.NoError(t, err)
	require.NoError(t, repo.Create(context.Background(), o))
	o.ClearDomainEvents()
	return o
}

func testPricing() *pricing.Result {
	return &pricing.Result{
		MaterialCost:       decimal.RequireFromString("6.00"),
		TimeCost:           decimal.RequireFromString("45.00"),
		CustomerTotal:      decimal.RequireFromString("82.04"),
		ProducerEarnings:   decimal.RequireFromString("69.60"),
		PlatformCommission: decimal.RequireFromString("10.44"),
		PaymentFee:         decimal.RequireFromString("2.00"),
	}
}

func TestGormOrderRepository_CreateAndFind(t *testing.T) {
	db := setupOrderTestDB(t)
	repo := NewGormOrderRepository(db)
	saver := &recordingSaver{}
	notifier := &countingNotifier{}
	repo.SetOutboxEventSaver(saver)
	repo.SetOutboxNotifier(notifier)
	ctx := context.Background()

	customerID := uuid.New()
	o, err := order.NewOrder(customerID, uuid.New(), uuid.New(), "PETG", 2, nil, "matte finish")
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, o))

	require.Len(t, saver.events, 1)
	assert.Equal(t, order.EventTypeOrderCreated, saver.events[0].EventType())
	assert.Equal(t, 1, notifier.calls)

	found, err := repo.FindByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.OrderNumber, found.OrderNumber)
	assert.Equal(t, customerID, found.CustomerID)
	assert.Nil(t, found.ProducerID)
	assert.Equal(t, 2, found.Quantity)
	assert.Equal(t, "matte finish", found.Notes)
	assert.Equal(t, order.StatusDraft, found.Status)
	assert.Equal(t, 1, found.Version)

	byNumber, err := repo.FindByOrderNumber(ctx, o.OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, o.ID, byNumber.ID)

	_, err = repo.FindByID(ctx, uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGormOrderRepository_SaveWithLockAndEvents(t *testing.T) {
	customer := identity.Actor{UserID: uuid.New(), Role: identity.RoleCustomer}

	t.Run("persists pricing and bumps version", func(t *testing.T) {
		db := setupOrderTestDB(t)
		repo := NewGormOrderRepository(db)
		saver := &recordingSaver{}
		repo.SetOutboxEventSaver(saver)
		ctx := context.Background()

		o := newStoredOrder(t, repo, customer.UserID, nil)
		saver.events = nil

		require.NoError(t, o.AttachPricing(customer, testPricing()))
		require.NoError(t, o.Submit(customer))
		events := o.GetDomainEvents()
		require.NoError(t, repo.SaveWithLockAndEvents(ctx, o, events))
		assert.Equal(t, 2, o.Version)
		assert.Len(t, saver.events, 1)

		found, err := repo.FindByID(ctx, o.ID)
		require.NoError(t, err)
		assert.Equal(t, order.StatusPending, found.Status)
		assert.Equal(t, 2, found.Version)
		require.NotNil(t, found.Pricing)
		assert.True(t, found.Pricing.CustomerTotal.Equal(decimal.RequireFromString("82.04")))
		assert.NotNil(t, found.SubmittedAt)
	})

	t.Run("persists fulfillment details", func(t *testing.T) {
		db := setupOrderTestDB(t)
		repo := NewGormOrderRepository(db)
		ctx := context.Background()
		producer := identity.Actor{UserID: uuid.New(), Role: identity.RoleProducer}

		o := newStoredOrder(t, repo, customer.UserID, &producer.UserID)
		save := func() {
			t.Helper()
			require.NoError(t, repo.SaveWithLockAndEvents(ctx, o, o.GetDomainEvents()))
			o.ClearDomainEvents()
		}

		require.NoError(t, o.AttachPricing(customer, testPricing()))
		require.NoError(t, o.Submit(customer))
		save()
		require.NoError(t, o.Accept(producer, order.AcceptTerms{DeliveryETADays: 6, Notes: "gyroid infill"}))
		save()
		require.NoError(t, o.SetShipping(customer, order.ShippingInfo{
			Address: order.Address{RecipientName: "Ece", Line1: "Moda 3", City: "Istanbul", Country: "TR"},
			Fee:     decimal.RequireFromString("19.90"),
		}))
		save()
		require.NoError(t, o.MarkPaid(customer, "pay_1"))
		save()
		require.NoError(t, o.RecordShipment(producer, "TRK-42", "yurtici"))
		save()

		found, err := repo.FindByID(ctx, o.ID)
		require.NoError(t, err)
		assert.Equal(t, 6, found.DeliveryETADays)
		assert.Equal(t, "gyroid infill", found.ProducerNotes)
		require.NotNil(t, found.Shipping)
		assert.Equal(t, "Moda 3", found.Shipping.Address.Line1)
		assert.Equal(t, order.ManualShipping, found.Shipping.Method)
		assert.True(t, found.Shipping.Fee.Equal(decimal.RequireFromString("19.90")))
		require.NotNil(t, found.Shipment)
		assert.Equal(t, "TRK-42", found.Shipment.TrackingNumber)
		assert.Equal(t, "YURTICI", found.Shipment.Carrier)
		assert.Equal(t, order.ShipmentShipped, found.Shipment.Status)
		assert.Nil(t, found.Review)
	})

	t.Run("stale version is a conflict", func(t *testing.T) {
		db := setupOrderTestDB(t)
		repo := NewGormOrderRepository(db)
		ctx := context.Background()

		o := newStoredOrder(t, repo, customer.UserID, nil)
		stale, err := repo.FindByID(ctx, o.ID)
		require.NoError(t, err)

		require.NoError(t, o.AttachPricing(customer, testPricing()))
		require.NoError(t, o.Submit(customer))
		require.NoError(t, repo.SaveWithLockAndEvents(ctx, o, o.GetDomainEvents()))

		require.NoError(t, stale.Cancel(customer, "changed my mind"))
		err = repo.SaveWithLockAndEvents(ctx, stale, stale.GetDomainEvents())
		assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)

		found, err := repo.FindByID(ctx, o.ID)
		require.NoError(t, err)
		assert.Equal(t, order.StatusPending, found.Status)
	})

	t.Run("missing order is not found", func(t *testing.T) {
		db := setupOrderTestDB(t)
		repo := NewGormOrderRepository(db)

		o, err := order.NewOrder(customer.UserID, uuid.New(), uuid.New(), "PLA", 1, nil, "")
		require.NoError(t, err)
		err = repo.SaveWithLockAndEvents(context.Background(), o, nil)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("outbox failure rolls back the order", func(t *testing.T) {
		db := setupOrderTestDB(t)
		repo := NewGormOrderRepository(db)
		ctx := context.Background()

		o := newStoredOrder(t, repo, customer.UserID, nil)
		repo.SetOutboxEventSaver(&recordingSaver{err: errors.New("outbox down")})

		require.NoError(t, o.AttachPricing(customer, testPricing()))
		require.NoError(t, o.Submit(customer))
		err := repo.SaveWithLockAndEvents(ctx, o, o.GetDomainEvents())
		require.Error(t, err)
		assert.Equal(t, 1, o.Version)

		found, err := repo.FindByID(ctx, o.ID)
		require.NoError(t, err)
		assert.Equal(t, order.StatusDraft, found.Status)
		assert.Equal(t, 1, found.Version)
	})
}

func TestGormOrderRepository_FindAll(t *testing.T) {
	db := setupOrderTestDB(t)
	repo := NewGormOrderRepository(db)
	ctx := context.Background()

	customerA, customerB := uuid.New(), uuid.New()
	producer := uuid.New()

	newStoredOrder(t, repo, customerA, nil)
	newStoredOrder(t, repo, customerA, &producer)
	newStoredOrder(t, repo, customerB, nil)

	t.Run("filters by customer", func(t *testing.T) {
		filter := shared.DefaultFilter()
		filter.Filters[order.FilterCustomerID] = customerA
		orders, total, err := repo.FindAll(ctx, filter)
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		for _, o := range orders {
			assert.Equal(t, customerA, o.CustomerID)
		}
	})

	t.Run("filters by producer", func(t *testing.T) {
		filter := shared.DefaultFilter()
		filter.Filters[order.FilterProducerID] = producer
		orders, total, err := repo.FindAll(ctx, filter)
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, orders, 1)
		require.NotNil(t, orders[0].ProducerID)
		assert.Equal(t, producer, *orders[0].ProducerID)
	})

	t.Run("paginates", func(t *testing.T) {
		filter := shared.DefaultFilter()
		filter.PageSize = 2
		orders, total, err := repo.FindAll(ctx, filter)
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		assert.Len(t, orders, 2)
	})
}

func TestGormOrderRepository_FindPool(t *testing.T) {
	db := setupOrderTestDB(t)
	repo := NewGormOrderRepository(db)
	ctx := context.Background()
	customer := identity.Actor{UserID: uuid.New(), Role: identity.RoleCustomer}

	draft := newStoredOrder(t, repo, customer.UserID, nil)

	pooled := newStoredOrder(t, repo, customer.UserID, nil)
	require.NoError(t, pooled.AttachPricing(customer, testPricing()))
	require.NoError(t, pooled.Submit(customer))
	require.NoError(t, repo.SaveWithLockAndEvents(ctx, pooled, pooled.GetDomainEvents()))

	orders, total, err := repo.FindPool(ctx, shared.DefaultFilter())
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, orders, 1)
	assert.Equal(t, pooled.ID, orders[0].ID)
	assert.NotEqual(t, draft.ID, orders[0].ID)

	filter := shared.DefaultFilter()
	filter.Filters[order.FilterPoolMaterials] = []uuid.UUID{uuid.New()}
	_, total, err = repo.FindPool(ctx, filter)
	require.NoError(t, err)
	assert.Zero(t, total)

	counts, err := repo.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[order.StatusDraft])
	assert.Equal(t, int64(1), counts[order.StatusPending])
}

func TestGormOrderRepository_FindUnpaidBefore(t *testing.T) {
	db := setupOrderTestDB(t)
	repo := NewGormOrderRepository(db)
	ctx := context.Background()
	customer := identity.Actor{UserID: uuid.New(), Role: identity.RoleCustomer}

	newStoredOrder(t, repo, customer.UserID, nil)
	pending := newStoredOrder(t, repo, customer.UserID, nil)
	require.NoError(t, pending.AttachPricing(customer, testPricing()))
	require.NoError(t, pending.Submit(customer))
	require.NoError(t, repo.SaveWithLockAndEvents(ctx, pending, pending.GetDomainEvents()))

	stale, err := repo.FindUnpaidBefore(ctx, pending.CreatedAt.Add(time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, pending.ID, stale[0].ID)

	stale, err = repo.FindUnpaidBefore(ctx, pending.CreatedAt.Add(-time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, stale)
}

func TestGormOrderRepository_StatusGuardedUpdate(t *testing.T) {
	db, mock, mockDB := newMockDatabase(t)
	defer mockDB.Close()
	repo := NewGormOrderRepository(db.DB)

	customer := identity.Actor{UserID: uuid.New(), Role: identity.RoleCustomer}
	o, err := order.NewOrder(customer.UserID, uuid.New(), uuid.New(), "PLA", 1, nil, "")
	require.NoError(t, err)
	o.ClearDomainEvents()
	require.NoError(t, o.AttachPricing(customer, testPricing()))
	require.NoError(t, o.Submit(customer))

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "orders" SET .* WHERE .*id = .* AND version = .* AND status = `).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "orders" WHERE id = `).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectRollback()

	err = repo.SaveWithLockAndEvents(context.Background(), o, o.GetDomainEvents())
	assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}
