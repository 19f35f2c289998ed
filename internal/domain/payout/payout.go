// Package payout holds what the platform owes producers for finished orders.
package payout

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/printmarket/backend/internal/domain/order"
	"github.com/printmarket/backend/internal/domain/pricing"
	"github.com/printmarket/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Status of a payout
type Status string

const (
	StatusScheduled Status = "scheduled"
	// StatusHeld is a scheduled payout frozen while its order is disputed
	StatusHeld      Status = "held"
	StatusCancelled Status = "cancelled"
)

// DefaultDelay is how long after confirmation a producer is paid
const DefaultDelay = 72 * time.Hour

// Payout is the amount owed to the producer of one order. There is at most one
// payout per order; later dispute outcomes rewrite it in place.
type Payout struct {
	ID              uuid.UUID
	OrderID         uuid.UUID
	ProducerID      uuid.UUID
	Gross           decimal.Decimal
	RefundDeduction decimal.Decimal
	Commission      decimal.Decimal
	Amount          decimal.Decimal
	Currency        string
	Status          Status
	ScheduledFor    time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ForOrder computes the payout of an order from its frozen pricing snapshot.
// Refunds shrink the producer's share and the platform's commission in the same
// proportion as the customer's payment; a fully refunded order pays nothing and
// its payout is cancelled.
func ForOrder(o *order.Order, currency string, scheduledFor time.Time) (*Payout, error) {
	if o.ProducerID == nil {
		return nil, shared.NewDomainError(shared.CodeInvalidState, "Order has no producer to pay")
	}
	if o.Pricing == nil || !o.Pricing.CustomerTotal.IsPositive() {
		return nil, shared.NewDomainError(shared.CodeInvalidState, "Order has no payable pricing")
	}

	total := o.Pricing.CustomerTotal
	refund := decimal.Zero
	switch {
	case o.Status == order.StatusRefunded:
		refund = total
	case o.RefundAmount != nil:
		refund = decimal.Min(*o.RefundAmount, total)
	}
	kept := total.Sub(refund).Div(total)

	gross := o.Pricing.ProducerEarnings
	amount := gross.Mul(kept).Round(pricing.MoneyPlaces)
	now := time.Now()
	p := &Payout{
		ID:              uuid.New(),
		OrderID:         o.ID,
		ProducerID:      *o.ProducerID,
		Gross:           gross,
		RefundDeduction: gross.Sub(amount),
		Commission:      o.Pricing.PlatformCommission.Mul(kept).Round(pricing.MoneyPlaces),
		Amount:          amount,
		Currency:        currency,
		Status:          StatusScheduled,
		ScheduledFor:    scheduledFor,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if !amount.IsPositive() {
		p.Status = StatusCancelled
	}
	return p, nil
}

// Hold freezes a scheduled payout. Cancelled payouts stay cancelled.
func (p *Payout) Hold() bool {
	if p.Status != StatusScheduled {
		return false
	}
	p.Status = StatusHeld
	p.UpdatedAt = time.Now()
	return true
}

// Repository defines persistence for payouts
type Repository interface {
	// Upsert stores the payout keyed by its order. An existing row keeps its ID,
	// CreatedAt and ScheduledFor; everything else is overwritten.
	Upsert(ctx context.Context, p *Payout) error
	// FindByOrder returns shared.ErrNotFound when the order has no payout
	FindByOrder(ctx context.Context, orderID uuid.UUID) (*Payout, error)
	// List returns payouts newest first; a nil producerID lists every producer
	List(ctx context.Context, producerID *uuid.UUID, filter shared.Filter) ([]Payout, int64, error)
}
