package payout

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/printmarket/backend/internal/domain/order"
	"github.com/printmarket/backend/internal/domain/pricing"
	"github.com/printmarket/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func pricedOrder(t *testing.T, status order.Status, refund string) *order.Order {
	t.Helper()
	producerID := uuid.New()
	o, err := order.NewOrder(uuid.New(), uuid.New(), uuid.New(), "PLA", 1, &producerID, "")
	require.NoError(t, err)
	o.Pricing = &pricing.Result{
		CustomerTotal:      d("100.00"),
		ProducerEarnings:   d("80.00"),
		PlatformCommission: d("12.00"),
		PaymentFee:         d("3.00"),
	}
	o.Status = status
	if refund != "" {
		amount := d(refund)
		o.RefundAmount = &amount
	}
	return o
}

func TestForOrder(t *testing.T) {
	at := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		status     order.Status
		refund     string
		amount     string
		deduction  string
		commission string
		want       Status
	}{
		{"confirmed pays the full share", order.StatusConfirmed, "", "80.00", "0", "12.00", StatusScheduled},
		{"partial refund shrinks the share", order.StatusPartialRefund, "25.00", "60.00", "20.00", "9.00", StatusScheduled},
		{"odd refund is rounded", order.StatusPartialRefund, "33.33", "53.34", "26.66", "8.00", StatusScheduled},
		{"full refund pays nothing", order.StatusRefunded, "", "0", "80.00", "0", StatusCancelled},
		{"refund above total is capped", order.StatusPartialRefund, "150.00", "0", "80.00", "0", StatusCancelled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := pricedOrder(t, tt.status, tt.refund)

			p, err := ForOrder(o, "TRY", at)
			require.NoError(t, err)

			assert.Equal(t, o.ID, p.OrderID)
			assert.Equal(t, *o.ProducerID, p.ProducerID)
			assert.True(t, p.Gross.Equal(d("80.00")))
			assert.True(t, p.Amount.Equal(d(tt.amount)), "amount %s", p.Amount)
			assert.True(t, p.RefundDeduction.Equal(d(tt.deduction)), "deduction %s", p.RefundDeduction)
			assert.True(t, p.Commission.Equal(d(tt.commission)), "commission %s", p.Commission)
			assert.Equal(t, tt.want, p.Status)
			assert.Equal(t, at, p.ScheduledFor)
			assert.Equal(t, "TRY", p.Currency)
		})
	}
}

func TestForOrder_NotPayable(t *testing.T) {
	t.Run("pool order without producer", func(t *testing.T) {
		o := pricedOrder(t, order.StatusConfirmed, "")
		o.ProducerID = nil

		_, err := ForOrder(o, "TRY", time.Now())
		assert.ErrorIs(t, err, shared.ErrInvalidState)
	})

	t.Run("order without pricing", func(t *testing.T) {
		o := pricedOrder(t, order.StatusConfirmed, "")
		o.Pricing = nil

		_, err := ForOrder(o, "TRY", time.Now())
		assert.ErrorIs(t, err, shared.ErrInvalidState)
	})
}

func TestPayout_Hold(t *testing.T) {
	p, err := ForOrder(pricedOrder(t, order.StatusConfirmed, ""), "TRY", time.Now())
	require.NoError(t, err)

	assert.True(t, p.Hold())
	assert.Equal(t, StatusHeld, p.Status)
	assert.False(t, p.Hold(), "already held")

	p.Status = StatusCancelled
	assert.False(t, p.Hold())
	assert.Equal(t, StatusCancelled, p.Status)
}
