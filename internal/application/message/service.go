// Package message contains the order chat application service.
package message

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/printmarket/backend/internal/domain/identity"
	"github.com/printmarket/backend/internal/domain/message"
	"github.com/printmarket/backend/internal/domain/order"
	"github.com/printmarket/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// OrderLookup loads the order a thread belongs to
type OrderLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*order.Order, error)
}

// Service handles chat messages between the parties of an order
type Service struct {
	messages message.Repository
	orders   OrderLookup
	logger   *zap.Logger
}

// NewService creates a new message Service
func NewService(messages message.Repository, orders OrderLookup, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{messages: messages, orders: orders, logger: logger}
}

// Send stores a message from the actor to the other party of the order. The
// MessageSent event is written with the message.
func (s *Service) Send(ctx context.Context, actor identity.Actor, orderID uuid.UUID, req SendMessageRequest) (*MessageResponse, error) {
	o, err := s.partyOrder(ctx, actor, orderID)
	if err != nil {
		return nil, err
	}
	receiver, ok := o.CounterParty(actor.UserID)
	if !ok {
		return nil, shared.NewDomainError(shared.CodeInvalidState, "Order has no producer to message yet")
	}

	m, err := message.NewMessage(o.ID, actor.UserID, receiver, req.Content)
	if err != nil {
		return nil, err
	}
	if err := s.messages.Create(ctx, m); err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}

	s.logger.Debug("Message sent",
		zap.String("order_id", o.ID.String()),
		zap.String("message_id", m.ID.String()))
	resp := ToMessageResponse(m)
	return &resp, nil
}

// ListByOrder returns the thread of an order, oldest first
func (s *Service) ListByOrder(ctx context.Context, actor identity.Actor, orderID uuid.UUID) ([]MessageResponse, error) {
	if _, err := s.partyOrder(ctx, actor, orderID); err != nil {
		return nil, err
	}
	msgs, err := s.messages.FindByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	out := make([]MessageResponse, len(msgs))
	for i := range msgs {
		out[i] = ToMessageResponse(&msgs[i])
	}
	return out, nil
}

// MarkRead flags a message as read by its receiver
func (s *Service) MarkRead(ctx context.Context, actor identity.Actor, id uuid.UUID) (*MessageResponse, error) {
	m, err := s.messages.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := m.MarkRead(actor.UserID); err != nil {
		return nil, err
	}
	if err := s.messages.MarkRead(ctx, id); err != nil {
		return nil, err
	}
	resp := ToMessageResponse(m)
	return &resp, nil
}

func (s *Service) partyOrder(ctx context.Context, actor identity.Actor, orderID uuid.UUID) (*order.Order, error) {
	o, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !o.IsParty(actor.UserID) {
		return nil, shared.NewDomainError(shared.CodeForbidden, "Only the customer and producer of an order can use its chat")
	}
	return o, nil
}
