package persistence

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/printmarket/backend/internal/domain/order"
	"github.com/printmarket/backend/internal/domain/payout"
	"github.com/printmarket/backend/internal/infrastructure/persistence/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type statsRow struct {
	producer *uuid.UUID
	material string
	status   order.Status
	price    string
	refund   string
	rating   int
	age      time.Duration
	paid     bool
}

func insertStatsOrder(t *testing.T, db *gorm.DB, now time.Time, i int, row statsRow) uuid.UUID {
	t.Helper()
	created := now.Add(-row.age)
	m := &models.OrderModel{
		OrderNumber:  fmt.Sprintf("PO-STATS-%03d", i),
		CustomerID:   uuid.New(),
		ProducerID:   row.producer,
		ProductID:    uuid.New(),
		MaterialID:   uuid.New(),
		MaterialName: row.material,
		Quantity:     1,
		Status:       row.status,
	}
	m.ID, m.CreatedAt, m.UpdatedAt, m.Version = uuid.New(), created, created, 1
	if row.price != "" {
		m.CustomerPrice = decimalPtr(decimal.RequireFromString(row.price))
	}
	if row.refund != "" {
		m.RefundAmount = decimalPtr(decimal.RequireFromString(row.refund))
	}
	if row.paid {
		m.PaidAt = &created
	}
	if row.rating > 0 {
		rating := row.rating
		m.Rating, m.ReviewedAt = &rating, &created
	}
	require.NoError(t, db.Create(m).Error)
	return m.ID
}

func TestGormStatsRepository(t *testing.T) {
	db := setupTestDB(t, &models.OrderModel{}, &models.PayoutModel{})
	repo := NewGormStatsRepository(db)
	ctx := context.Background()

	now := time.Now().UTC()
	day := 24 * time.Hour
	since := now.Add(-7 * day)
	alice, bob := uuid.New(), uuid.New()

	rows := []statsRow{
		{producer: &alice, material: "PLA", status: order.StatusConfirmed, price: "100.00", rating: 5, age: day, paid: true},
		{producer: &alice, material: "PLA", status: order.StatusConfirmed, price: "50.00", rating: 4, age: 2 * day, paid: true},
		{producer: &bob, material: "PETG", status: order.StatusPartialRefund, price: "80.00", refund: "20.00", age: 3 * day, paid: true},
		{producer: &bob, material: "PLA", status: order.StatusPending, age: day},
		{material: "TPU", status: order.StatusDraft, age: day},
		{producer: &bob, material: "PETG", status: order.StatusConfirmed, price: "999.00", age: 30 * day, paid: true},
	}
	ids := make([]uuid.UUID, len(rows))
	for i, row := range rows {
		ids[i] = insertStatsOrder(t, db, now, i, row)
	}

	payoutRows := []struct {
		order      uuid.UUID
		producer   uuid.UUID
		amount     string
		commission string
		status     payout.Status
	}{
		{ids[0], alice, "80.00", "12.00", payout.StatusScheduled},
		{ids[1], alice, "40.00", "6.00", payout.StatusCancelled},
		{ids[2], bob, "48.00", "7.20", payout.StatusHeld},
		{ids[5], bob, "800.00", "120.00", payout.StatusScheduled},
	}
	for _, p := range payoutRows {
		row := newTestPayout(p.order, p.producer, p.amount, now)
		row.Commission = decimal.RequireFromString(p.commission)
		row.Status = p.status
		require.NoError(t, db.Create(models.PayoutModelFromDomain(row)).Error)
	}

	t.Run("counts", func(t *testing.T) {
		counts, err := repo.CountByStatus(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(3), counts[order.StatusConfirmed])

		recent, err := repo.CountCreatedSince(ctx, since)
		require.NoError(t, err)
		assert.Equal(t, int64(5), recent)
	})

	t.Run("revenue of orders paid in the window", func(t *testing.T) {
		rev, err := repo.RevenueSince(ctx, since)
		require.NoError(t, err)
		assert.True(t, rev.Gross.Equal(decimal.RequireFromString("230")), "gross %s", rev.Gross)
		assert.True(t, rev.Refunds.Equal(decimal.RequireFromString("20")), "refunds %s", rev.Refunds)
		assert.True(t, rev.Commission.Equal(decimal.RequireFromString("25.2")), "commission %s", rev.Commission)
		assert.True(t, rev.Payouts.Equal(decimal.RequireFromString("128")), "cancelled payouts are left out, got %s", rev.Payouts)
	})

	t.Run("empty window sums to zero", func(t *testing.T) {
		rev, err := repo.RevenueSince(ctx, now.Add(time.Hour))
		require.NoError(t, err)
		assert.True(t, rev.Gross.IsZero())
		assert.True(t, rev.Payouts.IsZero())
	})

	t.Run("top materials", func(t *testing.T) {
		top, err := repo.TopMaterials(ctx, since, 2)
		require.NoError(t, err)
		require.Len(t, top, 2)
		assert.Equal(t, "PLA", top[0].Name)
		assert.Equal(t, int64(3), top[0].Orders)
		assert.Equal(t, "PETG", top[1].Name)
	})

	t.Run("top producers", func(t *testing.T) {
		top, err := repo.TopProducers(ctx, since, 10)
		require.NoError(t, err)
		require.Len(t, top, 2)

		assert.Equal(t, alice, top[0].ProducerID)
		assert.Equal(t, int64(2), top[0].Confirmed)
		assert.Equal(t, int64(2), top[0].Ratings)
		assert.InDelta(t, 4.5, top[0].AverageRating, 0.001)

		assert.Equal(t, bob, top[1].ProducerID)
		assert.Equal(t, int64(2), top[1].Orders)
		assert.Zero(t, top[1].Confirmed)
		assert.Zero(t, top[1].Ratings)
	})
}

func decimalPtr(d decimal.Decimal) *decimal.Decimal {
	return &d
}
