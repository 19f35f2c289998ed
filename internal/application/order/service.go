// Package order contains the order lifecycle application service.
package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	pricingapp "github.com/printmarket/backend/internal/application/pricing"
	"github.com/printmarket/backend/internal/domain/identity"
	"github.com/printmarket/backend/internal/domain/order"
	"github.com/printmarket/backend/internal/domain/payment"
	"github.com/printmarket/backend/internal/domain/shared"
	"github.com/printmarket/backend/internal/infrastructure/logger"
	"github.com/printmarket/backend/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// maxSaveAttempts bounds how often a change is re-applied after losing a
// compare-and-swap to a writer that left the status alone
const maxSaveAttempts = 3

// ExpiredReason is the cancel reason recorded on orders expired for non-payment
const ExpiredReason = "Payment timeout"

// Quoter prices jobs for orders
type Quoter interface {
	Calculate(ctx context.Context, req pricingapp.QuoteRequest) (*pricingapp.Quote, error)
	SupportedMaterials(ctx context.Context, producerID uuid.UUID) ([]uuid.UUID, error)
	Currency() string
}

// Metrics receives order lifecycle measurements
type Metrics interface {
	RecordOrderCreated(ctx context.Context)
	RecordTransition(ctx context.Context, from, to order.Status)
	RecordPayment(ctx context.Context, provider string, success bool, amount decimal.Decimal)
}

type nopMetrics struct{}

func (nopMetrics) RecordOrderCreated(context.Context)                           {}
func (nopMetrics) RecordTransition(context.Context, order.Status, order.Status) {}
func (nopMetrics) RecordPayment(context.Context, string, bool, decimal.Decimal) {}

// Service handles order lifecycle operations
type Service struct {
	orders  order.Repository
	quoter  Quoter
	gateway payment.Gateway
	metrics Metrics
	logger  *zap.Logger
}

// NewService creates a new order Service
func NewService(orders order.Repository, quoter Quoter, gateway payment.Gateway, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		orders:  orders,
		quoter:  quoter,
		gateway: gateway,
		metrics: nopMetrics{},
		logger:  logger,
	}
}

// SetMetrics sets the metrics recorder
func (s *Service) SetMetrics(m Metrics) {
	if m != nil {
		s.metrics = m
	}
}

// CreateDraft quotes the job and stores a draft order carrying the quote. A quote
// that fails creates nothing.
func (s *Service) CreateDraft(ctx context.Context, actor identity.Actor, req CreateOrderRequest) (*OrderResponse, error) {
	if actor.Role != identity.RoleCustomer {
		return nil, shared.NewDomainError(shared.CodeForbidden, "Only customers can place orders")
	}

	q, err := s.quoter.Calculate(ctx, pricingapp.QuoteRequest{
		ProductID:       req.ProductID,
		MaterialID:      req.MaterialID,
		ProducerID:      req.ProducerID,
		Quantity:        req.Quantity,
		SupportRequired: req.SupportRequired,
	})
	if err != nil {
		return nil, err
	}
	if q.Product.OwnerID != actor.UserID {
		return nil, shared.NewDomainError(shared.CodeForbidden, "Orders can only be placed for your own products")
	}

	o, err := order.NewOrder(actor.UserID, q.Product.ID, q.Material.ID, q.Material.Name, q.Quantity, q.ProducerID, req.Notes)
	if err != nil {
		return nil, err
	}
	if err := o.AttachPricing(actor, q.Result); err != nil {
		return nil, err
	}
	if err := s.orders.Create(ctx, o); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	o.ClearDomainEvents()
	s.metrics.RecordOrderCreated(ctx)

	s.log(ctx).Info("Order draft created",
		zap.String("order_id", o.ID.String()),
		zap.String("order_number", o.OrderNumber),
		zap.String("customer_total", o.CustomerPrice().StringFixed(2)))

	resp := ToOrderResponse(o)
	return &resp, nil
}

// Get returns an order the actor may view
func (s *Service) Get(ctx context.Context, actor identity.Actor, id uuid.UUID) (*OrderResponse, error) {
	o, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !o.CanView(actor) {
		return nil, shared.ErrForbidden
	}
	resp := ToOrderResponse(o)
	return &resp, nil
}

// List returns the orders visible to the actor: customers see their own, producers
// see assigned orders plus the open pool, admins see everything.
func (s *Service) List(ctx context.Context, actor identity.Actor, req ListOrdersRequest) (*shared.Paginated[OrderResponse], error) {
	filter := buildFilter(req.Page, req.PageSize)
	if req.Status != "" {
		status := order.Status(req.Status)
		if !status.IsValid() {
			return nil, shared.NewDomainError(shared.CodeInvalidInput, "Unknown order status: "+req.Status)
		}
		filter.Filters[order.FilterStatus] = status
	}

	switch actor.Role {
	case identity.RoleCustomer:
		filter.Filters[order.FilterCustomerID] = actor.UserID
	case identity.RoleProducer:
		filter.Filters[order.FilterVisibleTo] = actor.UserID
		materials, err := s.quoter.SupportedMaterials(ctx, actor.UserID)
		if err != nil {
			return nil, err
		}
		if len(materials) > 0 {
			filter.Filters[order.FilterPoolMaterials] = materials
		}
	case identity.RoleAdmin:
	default:
		return nil, shared.ErrForbidden
	}

	orders, total, err := s.orders.FindAll(ctx, filter)
	if err != nil {
		return nil, err
	}
	page := shared.NewPaginated(ToOrderResponses(orders), total, filter.Page, filter.PageSize)
	return &page, nil
}

// ListPool returns pending unassigned orders in materials the producer prints with
func (s *Service) ListPool(ctx context.Context, actor identity.Actor, req ListOrdersRequest) (*shared.Paginated[OrderResponse], error) {
	if actor.Role != identity.RoleProducer && !actor.IsAdmin() {
		return nil, shared.NewDomainError(shared.CodeForbidden, "Only producers can browse the order pool")
	}
	filter := buildFilter(req.Page, req.PageSize)
	if actor.Role == identity.RoleProducer {
		materials, err := s.quoter.SupportedMaterials(ctx, actor.UserID)
		if err != nil {
			return nil, err
		}
		if len(materials) > 0 {
			filter.Filters[order.FilterPoolMaterials] = materials
		}
	}

	orders, total, err := s.orders.FindPool(ctx, filter)
	if err != nil {
		return nil, err
	}
	page := shared.NewPaginated(ToOrderResponses(orders), total, filter.Page, filter.PageSize)
	return &page, nil
}

// Submit sends a priced draft to producers
func (s *Service) Submit(ctx context.Context, actor identity.Actor, id uuid.UUID) (*OrderResponse, error) {
	return s.respond(s.mutate(ctx, id, func(o *order.Order) error {
		return o.Submit(actor)
	}))
}

// Accept assigns the calling producer and accepts the order with the producer's
// delivery estimate
func (s *Service) Accept(ctx context.Context, actor identity.Actor, id uuid.UUID, req AcceptRequest) (*OrderResponse, error) {
	terms := order.AcceptTerms{DeliveryETADays: req.DeliveryETADays, Notes: req.Notes}
	return s.respond(s.mutate(ctx, id, func(o *order.Order) error {
		return o.Accept(actor, terms)
	}))
}

// Reject declines a pending order
func (s *Service) Reject(ctx context.Context, actor identity.Actor, id uuid.UUID, reason string) (*OrderResponse, error) {
	return s.respond(s.mutate(ctx, id, func(o *order.Order) error {
		return o.Reject(actor, reason)
	}))
}

// Pay captures the customer price through the payment gateway and marks the order
// paid. A declined capture leaves the order accepted.
func (s *Service) Pay(ctx context.Context, actor identity.Actor, id uuid.UUID) (resp *OrderResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "order", "pay",
		telemetry.SpanAttrOrderID, id,
		telemetry.SpanAttrProvider, s.gateway.Name(),
	)
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
	}()

	o, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && (actor.Role != identity.RoleCustomer || actor.UserID != o.CustomerID) {
		return nil, shared.NewDomainError(shared.CodeForbidden, "Only the ordering customer can pay for an order")
	}
	if o.Status == order.StatusPaid {
		paid := ToOrderResponse(o)
		return &paid, nil
	}
	if !o.Status.CanTransitionTo(order.StatusPaid) {
		return nil, shared.NewDomainError(shared.CodeInvalidTransition,
			fmt.Sprintf("Cannot pay for order in %s status", o.Status))
	}

	amount := o.CustomerPrice()
	telemetry.SetAttributes(span, telemetry.SpanAttrAmount, amount.StringFixed(2))
	result, err := s.gateway.Capture(ctx, payment.CaptureRequest{
		OrderID:        o.ID,
		OrderNumber:    o.OrderNumber,
		CustomerID:     o.CustomerID,
		Amount:         amount,
		Currency:       s.quoter.Currency(),
		IdempotencyKey: "capture-" + o.ID.String(),
	})
	if err != nil {
		s.metrics.RecordPayment(ctx, s.gateway.Name(), false, amount)
		var domainErr *shared.DomainError
		if errors.As(err, &domainErr) {
			return nil, domainErr
		}
		s.log(ctx).Error("Payment capture failed",
			zap.String("order_id", o.ID.String()),
			zap.String("gateway", s.gateway.Name()),
			zap.Error(err))
		return nil, shared.NewDomainError(shared.CodePaymentFailed, "Payment service is unavailable, please retry")
	}
	if !result.Success {
		s.metrics.RecordPayment(ctx, s.gateway.Name(), false, amount)
		s.log(ctx).Warn("Payment declined",
			zap.String("order_id", o.ID.String()),
			zap.String("reason", result.FailureReason))
		msg := "Payment was declined"
		if result.FailureReason != "" {
			msg += ": " + result.FailureReason
		}
		return nil, shared.NewDomainError(shared.CodePaymentFailed, msg)
	}
	s.metrics.RecordPayment(ctx, s.gateway.Name(), true, amount)
	telemetry.AddEvent(span, "payment_captured", "reference", result.Reference)

	paid, err := s.mutate(ctx, id, func(o *order.Order) error {
		return o.MarkPaid(actor, result.Reference)
	})
	if err != nil {
		return s.respond(s.releaseCapture(ctx, id, result.Reference, amount, err))
	}
	return s.respond(paid, nil)
}

// releaseCapture runs when a capture succeeded but the order could not be marked
// paid, usually because a cancel or the expiry sweep moved it first. If another
// request already recorded the same capture the order is returned as paid;
// otherwise the capture is refunded and cause is returned.
func (s *Service) releaseCapture(ctx context.Context, id uuid.UUID, reference string, amount decimal.Decimal, cause error) (*order.Order, error) {
	logger := s.log(ctx).With(
		zap.String("order_id", id.String()),
		zap.String("payment_reference", reference))

	current, err := s.orders.FindByID(ctx, id)
	if err == nil && current.PaymentReference == reference {
		return current, nil
	}

	refund, err := s.gateway.Refund(ctx, payment.RefundRequest{
		OrderID:          id,
		CaptureReference: reference,
		Amount:           amount,
		Currency:         s.quoter.Currency(),
		Reason:           "order could not be marked paid",
		IdempotencyKey:   "refund-capture-" + id.String(),
	})
	switch {
	case err != nil:
		logger.Error("Captured payment could not be recorded or refunded", zap.NamedError("cause", cause), zap.Error(err))
	case !refund.Success:
		logger.Error("Captured payment could not be recorded and the refund was declined",
			zap.NamedError("cause", cause), zap.String("reason", refund.FailureReason))
	default:
		logger.Warn("Captured payment refunded because the order could not be marked paid",
			zap.String("refund_reference", refund.Reference), zap.NamedError("cause", cause))
	}
	return nil, cause
}

// StartProduction marks that the producer began printing
func (s *Service) StartProduction(ctx context.Context, actor identity.Actor, id uuid.UUID) (*OrderResponse, error) {
	return s.respond(s.mutate(ctx, id, func(o *order.Order) error {
		return o.StartProduction(actor)
	}))
}

// CompleteProduction marks that the print is finished and handed over
func (s *Service) CompleteProduction(ctx context.Context, actor identity.Actor, id uuid.UUID) (*OrderResponse, error) {
	return s.respond(s.mutate(ctx, id, func(o *order.Order) error {
		return o.CompleteProduction(actor)
	}))
}

// Confirm records the customer's acceptance of the delivered print and the
// optional review
func (s *Service) Confirm(ctx context.Context, actor identity.Actor, id uuid.UUID, req ConfirmRequest) (*OrderResponse, error) {
	return s.respond(s.mutate(ctx, id, func(o *order.Order) error {
		return o.Confirm(actor, req.Rating, req.ReviewText)
	}))
}

// SetShipping stores the delivery address and method
func (s *Service) SetShipping(ctx context.Context, actor identity.Actor, id uuid.UUID, req ShippingRequest) (*OrderResponse, error) {
	info := order.ShippingInfo{Address: req.Address, Method: req.Method, Fee: req.Fee}
	return s.respond(s.mutate(ctx, id, func(o *order.Order) error {
		return o.SetShipping(actor, info)
	}))
}

// RecordShipment stores the tracking number and notifies the customer
func (s *Service) RecordShipment(ctx context.Context, actor identity.Actor, id uuid.UUID, req TrackingRequest) (*OrderResponse, error) {
	return s.respond(s.mutate(ctx, id, func(o *order.Order) error {
		return o.RecordShipment(actor, req.TrackingNumber, req.Carrier)
	}))
}

// Cancel stops an order before it is paid
func (s *Service) Cancel(ctx context.Context, actor identity.Actor, id uuid.UUID, reason string) (*OrderResponse, error) {
	return s.respond(s.mutate(ctx, id, func(o *order.Order) error {
		return o.Cancel(actor, reason)
	}))
}

// ExpireUnpaid cancels up to limit pending or accepted orders created more than
// ttl ago. Orders that moved on since they were listed are skipped. It returns the
// number of orders cancelled.
func (s *Service) ExpireUnpaid(ctx context.Context, ttl time.Duration, limit int) (int, error) {
	stale, err := s.orders.FindUnpaidBefore(ctx, time.Now().Add(-ttl), limit)
	if err != nil {
		return 0, fmt.Errorf("find unpaid orders: %w", err)
	}

	system := identity.SystemActor()
	expired := 0
	for i := range stale {
		id := stale[i].ID
		if _, err := s.Cancel(ctx, system, id, ExpiredReason); err != nil {
			var de *shared.DomainError
			if errors.As(err, &de) {
				s.log(ctx).Debug("Skipping order that is no longer expirable",
					zap.String("order_id", id.String()), zap.String("code", de.Code))
				continue
			}
			return expired, fmt.Errorf("expire order %s: %w", id, err)
		}
		expired++
	}
	if expired > 0 {
		s.log(ctx).Info("Expired unpaid orders", zap.Int("count", expired), zap.Duration("ttl", ttl))
	}
	return expired, nil
}

// OpenDispute flags a problem with a paid order
func (s *Service) OpenDispute(ctx context.Context, actor identity.Actor, id uuid.UUID, reason string) (*OrderResponse, error) {
	return s.respond(s.mutate(ctx, id, func(o *order.Order) error {
		return o.OpenDispute(actor, reason)
	}))
}

// ResolveDispute closes an open dispute
func (s *Service) ResolveDispute(ctx context.Context, actor identity.Actor, id uuid.UUID, req ResolveDisputeRequest) (*OrderResponse, error) {
	resolution := order.Status(req.Resolution)
	if !resolution.IsValid() {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Unknown resolution: "+req.Resolution)
	}
	return s.respond(s.mutate(ctx, id, func(o *order.Order) error {
		return o.ResolveDispute(actor, resolution, req.RefundAmount, req.Note)
	}))
}

// Requote replaces the pricing snapshot of a draft or pending order with a fresh
// quote. Paid orders keep their price.
func (s *Service) Requote(ctx context.Context, actor identity.Actor, id uuid.UUID, req RequoteRequest) (*OrderResponse, error) {
	o, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.Status.IsPaidOrLater() {
		return nil, shared.ErrPricingLocked
	}
	if actor.Role != identity.RoleCustomer || actor.UserID != o.CustomerID {
		return nil, shared.NewDomainError(shared.CodeForbidden, "Only the ordering customer can requote an order")
	}

	q, err := s.quoter.Calculate(ctx, pricingapp.QuoteRequest{
		ProductID:       o.ProductID,
		MaterialID:      o.MaterialID,
		ProducerID:      o.ProducerID,
		Quantity:        o.Quantity,
		SupportRequired: req.SupportRequired,
	})
	if err != nil {
		return nil, err
	}

	return s.respond(s.mutate(ctx, id, func(o *order.Order) error {
		return o.AttachPricing(actor, q.Result)
	}))
}

// mutate loads the order, applies change and saves it with a compare-and-swap on
// version and status. A lost status change is retried only while the stored status
// is still the one change was first applied to. Once another writer has moved the
// order, a status change is never re-applied: the caller gets the current order when
// its request is already satisfied, and INVALID_TRANSITION otherwise. Edits that
// leave the status alone, such as shipping details, are re-validated against the
// fresh order on every attempt. A change that neither raises events nor touches the
// order is not written.
func (s *Service) mutate(ctx context.Context, id uuid.UUID, change func(o *order.Order) error) (_ *order.Order, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "order", "mutate", telemetry.SpanAttrOrderID, id)
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
	}()

	var observed order.Status
	var transitions bool
	for attempt := 1; ; attempt++ {
		o, err := s.orders.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if attempt == 1 {
			observed = o.Status
		} else if transitions && o.Status != observed {
			telemetry.AddEvent(span, "lost_race", "status", string(o.Status))
			return settleLostRace(o, change)
		}

		before := o.UpdatedAt
		if err := change(o); err != nil {
			return nil, err
		}

		events := o.GetDomainEvents()
		if len(events) == 0 && o.UpdatedAt.Equal(before) {
			return o, nil
		}
		if attempt == 1 {
			transitions = hasTransition(events)
		}

		err = s.orders.SaveWithLockAndEvents(ctx, o, events)
		if errors.Is(err, shared.ErrConcurrencyConflict) && attempt < maxSaveAttempts {
			telemetry.AddEvent(span, "version_conflict", "attempt", attempt)
			s.log(ctx).Debug("Order changed concurrently, retrying",
				zap.String("order_id", id.String()),
				zap.Int("attempt", attempt))
			continue
		}
		if err != nil {
			return nil, err
		}
		o.ClearDomainEvents()

		for _, e := range events {
			if t, ok := e.(*order.OrderTransitionedEvent); ok {
				s.metrics.RecordTransition(ctx, t.FromStatus, t.ToStatus)
				s.log(ctx).Info("Order transitioned",
					zap.String("order_id", t.OrderID.String()),
					zap.String("from", string(t.FromStatus)),
					zap.String("to", string(t.ToStatus)),
					zap.String("actor_role", string(t.ActorRole)))
			}
		}
		return o, nil
	}
}

func hasTransition(events []shared.DomainEvent) bool {
	for _, e := range events {
		if _, ok := e.(*order.OrderTransitionedEvent); ok {
			return true
		}
	}
	return false
}

// settleLostRace decides the outcome for a writer whose order was moved by someone
// else. change runs on a copy only to find out whether it would be a no-op.
func settleLostRace(current *order.Order, change func(o *order.Order) error) (*order.Order, error) {
	trial := *current
	before := trial.UpdatedAt
	if err := change(&trial); err == nil && len(trial.GetDomainEvents()) == 0 && trial.UpdatedAt.Equal(before) {
		return current, nil
	}
	return nil, shared.NewDomainError(shared.CodeInvalidTransition,
		fmt.Sprintf("Order was moved to %s by another request", current.Status))
}

func (s *Service) respond(o *order.Order, err error) (*OrderResponse, error) {
	if err != nil {
		return nil, err
	}
	resp := ToOrderResponse(o)
	return &resp, nil
}

func buildFilter(page, pageSize int) shared.Filter {
	filter := shared.DefaultFilter()
	if page > 0 {
		filter.Page = page
	}
	if pageSize > 0 {
		filter.PageSize = pageSize
	}
	return filter
}

func (s *Service) log(ctx context.Context) *zap.Logger {
	return logger.Enrich(ctx, s.logger)
}
