// Package order holds the print order aggregate and its status machine.
package order

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/printmarket/backend/internal/domain/identity"
	"github.com/printmarket/backend/internal/domain/pricing"
	"github.com/printmarket/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// DisputeWindow is how long after confirmation a dispute may still be opened
const DisputeWindow = 7 * 24 * time.Hour

// MaxNotesLength bounds the free-text notes a customer can attach
const MaxNotesLength = 2000

// Order is one fabrication request. It is the aggregate root of the order context
// and the only writer of its status and lifecycle timestamps.
type Order struct {
	shared.BaseAggregateRoot
	OrderNumber  string
	CustomerID   uuid.UUID
	ProducerID   *uuid.UUID
	ProductID    uuid.UUID
	MaterialID   uuid.UUID
	MaterialName string
	Quantity     int
	Notes        string
	Status       Status

	// Pricing is the snapshot captured at quote time; frozen once paid.
	Pricing *pricing.Result

	SubmittedAt         *time.Time
	AcceptedAt          *time.Time
	PaidAt              *time.Time
	ProductionStartedAt *time.Time
	ProducerCompletedAt *time.Time
	CompletedAt         *time.Time
	CancelledAt         *time.Time
	RejectedAt          *time.Time
	DisputeOpenedAt     *time.Time
	DisputeResolvedAt   *time.Time

	CancelReason      string
	RejectReason      string
	DisputeReason     string
	PreDisputeStatus  Status
	DisputeResolution Status
	RefundAmount      *decimal.Decimal
	PaymentReference  string

	DeliveryETADays int
	ProducerNotes   string
	Shipping        *ShippingInfo
	Shipment        *Shipment
	Review          *Review
}

// NewOrder creates a draft order. producerID may be nil for orders offered to the pool.
func NewOrder(customerID, productID, materialID uuid.UUID, materialName string, quantity int, producerID *uuid.UUID, notes string) (*Order, error) {
	if customerID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_CUSTOMER", "Customer ID cannot be empty")
	}
	if productID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_PRODUCT", "Product ID cannot be empty")
	}
	if materialID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_MATERIAL", "Material ID cannot be empty")
	}
	if quantity == 0 {
		quantity = 1
	}
	if quantity < 0 {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Quantity must be positive")
	}
	if len(notes) > MaxNotesLength {
		return nil, shared.NewDomainError("INVALID_NOTES", fmt.Sprintf("Notes cannot exceed %d characters", MaxNotesLength))
	}
	if producerID != nil && *producerID == uuid.Nil {
		producerID = nil
	}

	o := &Order{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		CustomerID:        customerID,
		ProducerID:        copyID(producerID),
		ProductID:         productID,
		MaterialID:        materialID,
		MaterialName:      materialName,
		Quantity:          quantity,
		Notes:             strings.TrimSpace(notes),
		Status:            StatusDraft,
	}
	o.OrderNumber = generateOrderNumber(o.CreatedAt, o.ID)
	o.AddDomainEvent(NewOrderCreatedEvent(o))
	return o, nil
}

func generateOrderNumber(t time.Time, id uuid.UUID) string {
	return fmt.Sprintf("PO-%s-%s", t.UTC().Format("20060102"), strings.ToUpper(id.String()[:8]))
}

// =============================================================================
// Pricing snapshot
// =============================================================================

// AttachPricing stores a quote on the order. Allowed while the order is a draft or
// waiting for a producer; rejected once the order is paid.
func (o *Order) AttachPricing(actor identity.Actor, result *pricing.Result) error {
	if err := o.requireCustomer(actor); err != nil {
		return err
	}
	if result == nil {
		return shared.NewDomainError(shared.CodeInvalidPricingInput, "Pricing result is required")
	}
	if o.Status.IsPaidOrLater() {
		return shared.ErrPricingLocked
	}
	if o.Status != StatusDraft && o.Status != StatusPending {
		return shared.NewDomainError(shared.CodeInvalidState,
			fmt.Sprintf("Cannot change pricing of order in %s status", o.Status))
	}

	snapshot := *result
	o.Pricing = &snapshot
	o.Touch(o.stamp())
	return nil
}

// CustomerPrice returns the amount charged to the customer, zero without a quote
func (o *Order) CustomerPrice() decimal.Decimal {
	if o.Pricing == nil {
		return decimal.Zero
	}
	return o.Pricing.CustomerTotal
}

// =============================================================================
// Transitions
// =============================================================================

// Submit moves a priced draft to pending so producers can act on it
func (o *Order) Submit(actor identity.Actor) error {
	if err := o.requireCustomer(actor); err != nil {
		return err
	}
	return o.transition(StatusPending, actor, "", func(now time.Time) error {
		if o.Pricing == nil {
			return shared.NewDomainError(shared.CodeInvalidState, "Cannot submit order without a pricing snapshot")
		}
		o.SubmittedAt = &now
		return nil
	})
}

// Accept assigns the accepting producer (when unassigned) and moves to accepted.
// The producer's delivery estimate and notes are stored with the acceptance.
func (o *Order) Accept(actor identity.Actor, terms AcceptTerms) error {
	if actor.Role != identity.RoleProducer {
		return accessDenied(actor, "accept")
	}
	if o.ProducerID != nil && *o.ProducerID != actor.UserID {
		return accessDenied(actor, "accept")
	}
	terms, err := terms.normalized()
	if err != nil {
		return err
	}
	return o.transition(StatusAccepted, actor, "", func(now time.Time) error {
		if o.ProducerID == nil {
			id := actor.UserID
			o.ProducerID = &id
		}
		o.AcceptedAt = &now
		o.DeliveryETADays = terms.DeliveryETADays
		o.ProducerNotes = terms.Notes
		return nil
	})
}

// Reject declines a pending order. Terminal.
func (o *Order) Reject(actor identity.Actor, reason string) error {
	if err := o.requireAssignedProducerOrAdmin(actor, "reject"); err != nil {
		return err
	}
	reason = strings.TrimSpace(reason)
	return o.transition(StatusRejected, actor, reason, func(now time.Time) error {
		o.RejectedAt = &now
		o.RejectReason = reason
		return nil
	})
}

// MarkPaid records a successful payment capture and freezes the pricing snapshot
func (o *Order) MarkPaid(actor identity.Actor, paymentReference string) error {
	if !actor.IsSystem() && !actor.IsAdmin() {
		if err := o.requireCustomer(actor); err != nil {
			return err
		}
	}
	return o.transition(StatusPaid, actor, "", func(now time.Time) error {
		if o.ProducerID == nil {
			return shared.NewDomainError(shared.CodeInvalidState, "Cannot mark order paid without a producer")
		}
		if o.Pricing == nil {
			return shared.NewDomainError(shared.CodeInvalidState, "Cannot mark order paid without a pricing snapshot")
		}
		o.PaidAt = &now
		o.PaymentReference = paymentReference
		return nil
	})
}

// StartProduction marks that the producer began fabrication
func (o *Order) StartProduction(actor identity.Actor) error {
	if err := o.requireAssignedProducer(actor, "start production of"); err != nil {
		return err
	}
	return o.transition(StatusInProduction, actor, "", func(now time.Time) error {
		o.ProductionStartedAt = &now
		return nil
	})
}

// CompleteProduction marks physical completion on the producer side
func (o *Order) CompleteProduction(actor identity.Actor) error {
	if err := o.requireAssignedProducer(actor, "complete"); err != nil {
		return err
	}
	return o.transition(StatusCompletedByProducer, actor, "", func(now time.Time) error {
		o.ProducerCompletedAt = &now
		return nil
	})
}

// Confirm records the customer's acceptance of the delivered print. A rating of
// zero leaves no review; otherwise rating and text are stored with the confirmation.
func (o *Order) Confirm(actor identity.Actor, rating int, reviewText string) error {
	if err := o.requireCustomer(actor); err != nil {
		return err
	}
	var review *Review
	if rating != 0 {
		r, err := newReview(rating, reviewText, time.Time{})
		if err != nil {
			return err
		}
		review = r
	} else if strings.TrimSpace(reviewText) != "" {
		return shared.NewDomainError(shared.CodeInvalidInput, "A review needs a rating")
	}
	return o.transition(StatusConfirmed, actor, "", func(now time.Time) error {
		o.CompletedAt = &now
		if review != nil {
			review.ReviewedAt = now
			o.Review = review
		}
		return nil
	})
}

// Cancel stops an order before production starts. Customer, admin or the platform
// (expiring unpaid orders) only.
func (o *Order) Cancel(actor identity.Actor, reason string) error {
	if !actor.IsAdmin() && !actor.IsSystem() {
		if err := o.requireCustomer(actor); err != nil {
			return err
		}
	}
	reason = strings.TrimSpace(reason)
	return o.transition(StatusCancelled, actor, reason, func(now time.Time) error {
		o.CancelledAt = &now
		o.CancelReason = reason
		return nil
	})
}

// OpenDispute flags a problem after payment. Either party or an admin may open one;
// a confirmed order can only be disputed within DisputeWindow.
func (o *Order) OpenDispute(actor identity.Actor, reason string) error {
	if !actor.IsAdmin() && !o.IsParty(actor.UserID) {
		return accessDenied(actor, "dispute")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return shared.NewDomainError(shared.CodeInvalidInput, "Dispute reason is required")
	}
	return o.transition(StatusDisputeOpen, actor, reason, func(now time.Time) error {
		if o.Status == StatusConfirmed && o.CompletedAt != nil && now.Sub(*o.CompletedAt) > DisputeWindow {
			return shared.NewDomainError(shared.CodeDisputeWindow, "Dispute period has expired")
		}
		o.PreDisputeStatus = o.Status
		o.DisputeReason = reason
		o.DisputeResolution = ""
		o.DisputeOpenedAt = &now
		return nil
	})
}

// ResolveDispute closes a dispute as refunded, partially refunded, or by returning
// the order to the status it held when the dispute was opened. Admin only.
func (o *Order) ResolveDispute(actor identity.Actor, resolution Status, refund decimal.Decimal, note string) error {
	if !actor.IsAdmin() {
		return accessDenied(actor, "resolve dispute of")
	}
	if o.Status != StatusDisputeOpen {
		if o.Status == resolution && o.DisputeResolution == resolution {
			return nil
		}
		return shared.NewDomainError(shared.CodeInvalidTransition,
			fmt.Sprintf("No open dispute on order in %s status", o.Status))
	}
	if resolution != StatusRefunded && resolution != StatusPartialRefund && resolution != o.PreDisputeStatus {
		return shared.NewDomainError(shared.CodeInvalidTransition,
			fmt.Sprintf("Cannot resolve dispute to %s; expected refunded, partial_refund or %s", resolution, o.PreDisputeStatus))
	}
	return o.transition(resolution, actor, note, func(now time.Time) error {
		switch resolution {
		case StatusRefunded:
			full := o.CustomerPrice()
			o.RefundAmount = &full
		case StatusPartialRefund:
			if !refund.IsPositive() || refund.GreaterThan(o.CustomerPrice()) {
				return shared.NewDomainError(shared.CodeInvalidInput, "Partial refund must be positive and not exceed the customer price")
			}
			amount := refund.Round(pricing.MoneyPlaces)
			o.RefundAmount = &amount
		}
		o.DisputeResolution = resolution
		o.DisputeResolvedAt = &now
		return nil
	})
}

// transition applies a status change. Re-requesting the current status is a no-op
// that records nothing; an illegal change returns INVALID_TRANSITION and leaves the
// order untouched. apply runs before any field is modified and may veto the change.
func (o *Order) transition(to Status, actor identity.Actor, reason string, apply func(now time.Time) error) error {
	if o.Status == to {
		return nil
	}
	if !o.Status.CanTransitionTo(to) {
		return shared.NewDomainError(shared.CodeInvalidTransition,
			fmt.Sprintf("Cannot move order from %s to %s", o.Status, to))
	}

	snapshot := *o
	now := o.stamp()
	if err := apply(now); err != nil {
		*o = snapshot
		return err
	}

	from := o.Status
	o.Status = to
	o.Touch(now)
	o.AddDomainEvent(NewOrderTransitionedEvent(o, from, actor, reason))
	return nil
}

// stamp returns a timestamp that is never earlier than any timestamp already set
// on the order, so lifecycle fields stay monotonic under clock skew.
func (o *Order) stamp() time.Time {
	now := time.Now()
	if o.UpdatedAt.After(now) {
		return o.UpdatedAt
	}
	return now
}

// =============================================================================
// Standing checks
// =============================================================================

// IsParty reports whether the user is the customer or the assigned producer
func (o *Order) IsParty(userID uuid.UUID) bool {
	if userID == o.CustomerID {
		return true
	}
	return o.ProducerID != nil && *o.ProducerID == userID
}

// CanView reports whether the actor may read the order. Producers may also see
// pending orders that are still open to the pool.
func (o *Order) CanView(actor identity.Actor) bool {
	if actor.IsAdmin() || o.IsParty(actor.UserID) {
		return true
	}
	return actor.Role == identity.RoleProducer && o.IsOpenToPool()
}

// IsOpenToPool reports whether any producer may accept the order
func (o *Order) IsOpenToPool() bool {
	return o.Status == StatusPending && o.ProducerID == nil
}

// CounterParty returns the other party of the order for the given user
func (o *Order) CounterParty(userID uuid.UUID) (uuid.UUID, bool) {
	switch {
	case userID == o.CustomerID && o.ProducerID != nil:
		return *o.ProducerID, true
	case o.ProducerID != nil && userID == *o.ProducerID:
		return o.CustomerID, true
	}
	return uuid.Nil, false
}

func (o *Order) requireCustomer(actor identity.Actor) error {
	if actor.Role != identity.RoleCustomer || actor.UserID != o.CustomerID {
		return accessDenied(actor, "modify")
	}
	return nil
}

func (o *Order) requireAssignedProducer(actor identity.Actor, action string) error {
	if actor.Role != identity.RoleProducer || o.ProducerID == nil || *o.ProducerID != actor.UserID {
		return accessDenied(actor, action)
	}
	return nil
}

func (o *Order) requireAssignedProducerOrAdmin(actor identity.Actor, action string) error {
	if actor.IsAdmin() {
		return nil
	}
	return o.requireAssignedProducer(actor, action)
}

func accessDenied(actor identity.Actor, action string) error {
	return shared.NewDomainError(shared.CodeForbidden,
		fmt.Sprintf("A %s without standing on this order cannot %s it", actor.Role, action))
}

// =============================================================================
// Invariants
// =============================================================================

// CheckInvariants verifies the structural rules every persisted order satisfies.
func (o *Order) CheckInvariants() error {
	if !o.Status.IsValid() {
		return fmt.Errorf("unknown status %q", o.Status)
	}
	afterAcceptance := o.Status != StatusDraft && o.Status != StatusPending &&
		o.Status != StatusRejected && o.Status != StatusCancelled
	if afterAcceptance && o.ProducerID == nil {
		return fmt.Errorf("order in %s status has no producer", o.Status)
	}
	if o.Pricing != nil && !o.Pricing.IsConsistent() {
		return fmt.Errorf("pricing snapshot does not add up")
	}
	ordered := []*time.Time{o.AcceptedAt, o.PaidAt, o.CompletedAt}
	var last *time.Time
	for _, ts := range ordered {
		if ts == nil {
			continue
		}
		if last != nil && ts.Before(*last) {
			return fmt.Errorf("lifecycle timestamps are out of order")
		}
		last = ts
	}
	return nil
}
