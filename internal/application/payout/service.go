// Package payout schedules producer payouts from order outcomes and lists them.
package payout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/printmarket/backend/internal/domain/identity"
	"github.com/printmarket/backend/internal/domain/order"
	"github.com/printmarket/backend/internal/domain/payout"
	"github.com/printmarket/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// OrderReader loads the order a payout is computed from
type OrderReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*order.Order, error)
}

// Service keeps one payout per confirmed or partly refunded order and serves
// payout listings
type Service struct {
	repo     payout.Repository
	orders   OrderReader
	currency string
	delay    time.Duration
	logger   *zap.Logger
}

// NewService creates a new payout Service. A non-positive delay uses
// payout.DefaultDelay.
func NewService(repo payout.Repository, orders OrderReader, currency string, delay time.Duration, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if delay <= 0 {
		delay = payout.DefaultDelay
	}
	return &Service{repo: repo, orders: orders, currency: currency, delay: delay, logger: logger}
}

// EventTypes returns the event types this handler is interested in
func (s *Service) EventTypes() []string {
	return []string{order.EventTypeOrderTransitioned}
}

// Handle reacts to the status changes that decide what a producer is owed.
// Redelivery rewrites the same row, so it is safe to run twice.
func (s *Service) Handle(ctx context.Context, event shared.DomainEvent) error {
	ev, ok := event.(*order.OrderTransitionedEvent)
	if !ok {
		return fmt.Errorf("unexpected event type: %s", event.EventType())
	}
	switch ev.ToStatus {
	case order.StatusConfirmed, order.StatusPartialRefund, order.StatusRefunded:
		return s.schedule(ctx, ev)
	case order.StatusDisputeOpen:
		return s.hold(ctx, ev.OrderID)
	}
	return nil
}

func (s *Service) schedule(ctx context.Context, ev *order.OrderTransitionedEvent) error {
	existing, err := s.repo.FindByOrder(ctx, ev.OrderID)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return err
	}
	if existing == nil && ev.ToStatus == order.StatusRefunded {
		return nil
	}

	o, err := s.orders.FindByID(ctx, ev.OrderID)
	if err != nil {
		return fmt.Errorf("load order %s: %w", ev.OrderID, err)
	}
	// The order may have moved on by the time the event is delivered; pay out
	// from its current outcome.
	switch o.Status {
	case order.StatusConfirmed, order.StatusPartialRefund, order.StatusRefunded:
	default:
		return nil
	}

	p, err := payout.ForOrder(o, s.currency, ev.OccurredAt().Add(s.delay))
	if err != nil {
		s.logger.Warn("Order has nothing to pay out",
			zap.String("order_id", o.ID.String()),
			zap.Error(err))
		return nil
	}
	if existing != nil {
		p.ID, p.CreatedAt, p.ScheduledFor = existing.ID, existing.CreatedAt, existing.ScheduledFor
	}
	if err := s.repo.Upsert(ctx, p); err != nil {
		return fmt.Errorf("store payout of order %s: %w", o.ID, err)
	}

	s.logger.Info("Payout scheduled",
		zap.String("order_id", o.ID.String()),
		zap.String("producer_id", p.ProducerID.String()),
		zap.String("amount", p.Amount.StringFixed(2)),
		zap.String("status", string(p.Status)),
		zap.Time("scheduled_for", p.ScheduledFor))
	return nil
}

func (s *Service) hold(ctx context.Context, orderID uuid.UUID) error {
	p, err := s.repo.FindByOrder(ctx, orderID)
	if errors.Is(err, shared.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !p.Hold() {
		return nil
	}
	if err := s.repo.Upsert(ctx, p); err != nil {
		return fmt.Errorf("hold payout of order %s: %w", orderID, err)
	}
	s.logger.Info("Payout held for dispute", zap.String("order_id", orderID.String()))
	return nil
}

// List returns payouts newest first. Producers see their own, admins see every
// producer's or one producer's when ProducerID is set.
func (s *Service) List(ctx context.Context, actor identity.Actor, req ListPayoutsRequest) (*shared.Paginated[PayoutResponse], error) {
	var producerID *uuid.UUID
	switch {
	case actor.IsAdmin():
		if req.ProducerID != "" {
			id, err := uuid.Parse(req.ProducerID)
			if err != nil {
				return nil, shared.NewDomainError(shared.CodeInvalidInput, "Invalid producer ID")
			}
			producerID = &id
		}
	case actor.Role == identity.RoleProducer:
		id := actor.UserID
		producerID = &id
	default:
		return nil, shared.NewDomainError(shared.CodeForbidden, "Only producers and admins can view payouts")
	}

	filter := shared.DefaultFilter()
	if req.Page > 0 {
		filter.Page = req.Page
	}
	if req.PageSize > 0 {
		filter.PageSize = req.PageSize
	}

	items, total, err := s.repo.List(ctx, producerID, filter)
	if err != nil {
		return nil, err
	}
	out := make([]PayoutResponse, len(items))
	for i := range items {
		out[i] = ToPayoutResponse(&items[i])
	}
	page := shared.NewPaginated(out, total, filter.Page, filter.PageSize)
	return &page, nil
}
