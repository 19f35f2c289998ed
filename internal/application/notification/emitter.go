package notification

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/printmarket/backend/internal/domain/identity"
	"github.com/printmarket/backend/internal/domain/message"
	"github.com/printmarket/backend/internal/domain/notification"
	"github.com/printmarket/backend/internal/domain/order"
	"github.com/printmarket/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// MessagePreviewRunes is how much of a chat message a notification body carries
const MessagePreviewRunes = 100

// Real-time event types pushed to clients
const (
	PushNotification = "notification"
	PushOrderStatus  = "order_status"
	PushOrderCreated = "order_created"
	PushNewMessage   = "new_message"
	PushShipment     = "shipment"
)

// Pusher delivers real-time events to connected clients. Delivery is best effort.
type Pusher interface {
	PushToUser(ctx context.Context, userID uuid.UUID, eventType string, data any) error
	PushToOrder(ctx context.Context, orderID uuid.UUID, eventType string, data any) error
}

// OrderStatusPush is the payload of an order_status push
type OrderStatusPush struct {
	OrderID     uuid.UUID     `json:"order_id"`
	OrderNumber string        `json:"order_number"`
	From        order.Status  `json:"from"`
	To          order.Status  `json:"to"`
	ActorID     uuid.UUID     `json:"actor_id"`
	ActorRole   identity.Role `json:"actor_role"`
	Reason      string        `json:"reason,omitempty"`
}

// Emitter turns order and message events into persisted notifications and
// real-time pushes. Persistence errors are returned so the outbox redelivers;
// push errors are logged and dropped.
type Emitter struct {
	repo   notification.Repository
	pusher Pusher
	logger *zap.Logger
}

// NewEmitter creates a new Emitter. pusher may be nil when no real-time transport
// is configured.
func NewEmitter(repo notification.Repository, pusher Pusher, logger *zap.Logger) *Emitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Emitter{repo: repo, pusher: pusher, logger: logger}
}

// EventTypes returns the event types this handler is interested in
func (e *Emitter) EventTypes() []string {
	return []string{
		order.EventTypeOrderCreated,
		order.EventTypeOrderTransitioned,
		order.EventTypeShipmentRecorded,
		message.EventTypeMessageSent,
	}
}

// Handle dispatches an event to the matching Notify method
func (e *Emitter) Handle(ctx context.Context, event shared.DomainEvent) error {
	switch ev := event.(type) {
	case *order.OrderCreatedEvent:
		e.NotifyOrderCreated(ctx, ev)
		return nil
	case *order.OrderTransitionedEvent:
		return e.NotifyOrderTransition(ctx, ev)
	case *order.ShipmentRecordedEvent:
		return e.NotifyShipment(ctx, ev)
	case *message.MessageSentEvent:
		return e.NotifyNewMessage(ctx, ev)
	}
	e.logger.Error("unexpected event type", zap.String("actual", event.EventType()))
	return fmt.Errorf("unexpected event type: %s", event.EventType())
}

// NotifyOrderCreated tells the customer's other sessions about the new draft.
// Drafts are private, so nobody else hears about them.
func (e *Emitter) NotifyOrderCreated(ctx context.Context, ev *order.OrderCreatedEvent) {
	e.pushToUser(ctx, ev.CustomerID, PushOrderCreated, map[string]any{
		"order_id":     ev.OrderID,
		"order_number": ev.OrderNumber,
	})
}

// NotifyOrderTransition persists a notification for each recipient of a status
// change and pushes it. A customer's action notifies the producer, a producer's
// action notifies the customer, admin and system actions notify both. A newly
// submitted order reaches its assigned producer as new_order; dispute outcomes
// reach both parties.
func (e *Emitter) NotifyOrderTransition(ctx context.Context, ev *order.OrderTransitionedEvent) error {
	typ, title := describeTransition(ev)
	body := fmt.Sprintf("Order %s is now %s", ev.OrderNumber, humanStatus(ev.ToStatus))
	if ev.DeliveryETADays > 0 {
		body += fmt.Sprintf(". Estimated delivery: %d days", ev.DeliveryETADays)
	}
	if ev.Reason != "" {
		body += ". Reason: " + ev.Reason
	}

	for _, userID := range transitionRecipients(ev) {
		if err := e.notify(ctx, ev.EventID(), userID, typ, title, body, ev.OrderID); err != nil {
			return err
		}
	}

	e.pushToOrder(ctx, ev.OrderID, PushOrderStatus, OrderStatusPush{
		OrderID:     ev.OrderID,
		OrderNumber: ev.OrderNumber,
		From:        ev.FromStatus,
		To:          ev.ToStatus,
		ActorID:     ev.ActorID,
		ActorRole:   ev.ActorRole,
		Reason:      ev.Reason,
	})
	return nil
}

// NotifyShipment tells the customer the parcel is on its way
func (e *Emitter) NotifyShipment(ctx context.Context, ev *order.ShipmentRecordedEvent) error {
	body := fmt.Sprintf("Order %s shipped with %s, tracking number %s", ev.OrderNumber, ev.Carrier, ev.TrackingNumber)
	if err := e.notify(ctx, ev.EventID(), ev.CustomerID, notification.TypeShippingUpdate,
		"Order shipped", body, ev.OrderID); err != nil {
		return err
	}
	e.pushToOrder(ctx, ev.OrderID, PushShipment, map[string]any{
		"order_id":        ev.OrderID,
		"order_number":    ev.OrderNumber,
		"tracking_number": ev.TrackingNumber,
		"carrier":         ev.Carrier,
		"shipped_at":      ev.ShippedAt,
	})
	return nil
}

// NotifyNewMessage notifies the receiver of a chat message and pushes the message
// to the order room
func (e *Emitter) NotifyNewMessage(ctx context.Context, ev *message.MessageSentEvent) error {
	if err := e.notify(ctx, ev.EventID(), ev.ReceiverID, notification.TypeNewMessage,
		"New message", truncateRunes(ev.Content, MessagePreviewRunes), ev.OrderID); err != nil {
		return err
	}
	e.pushToOrder(ctx, ev.OrderID, PushNewMessage, map[string]any{
		"id":          ev.MessageID,
		"order_id":    ev.OrderID,
		"sender_id":   ev.SenderID,
		"receiver_id": ev.ReceiverID,
		"content":     ev.Content,
		"created_at":  ev.OccurredAt(),
	})
	return nil
}

func (e *Emitter) notify(ctx context.Context, eventID, userID uuid.UUID, typ notification.Type, title, body string, orderID uuid.UUID) error {
	n, err := notification.NewNotification(eventID, userID, typ, title, body, &orderID)
	if err != nil {
		return err
	}
	if err := e.repo.Create(ctx, n); err != nil {
		return fmt.Errorf("store notification: %w", err)
	}
	e.pushToUser(ctx, userID, PushNotification, ToNotificationResponse(n))
	return nil
}

func (e *Emitter) pushToUser(ctx context.Context, userID uuid.UUID, eventType string, data any) {
	if e.pusher == nil {
		return
	}
	if err := e.pusher.PushToUser(ctx, userID, eventType, data); err != nil {
		e.logger.Warn("notification delivery failed",
			zap.String("user_id", userID.String()),
			zap.String("type", eventType),
			zap.Error(err))
	}
}

func (e *Emitter) pushToOrder(ctx context.Context, orderID uuid.UUID, eventType string, data any) {
	if e.pusher == nil {
		return
	}
	if err := e.pusher.PushToOrder(ctx, orderID, eventType, data); err != nil {
		e.logger.Warn("order room delivery failed",
			zap.String("order_id", orderID.String()),
			zap.String("type", eventType),
			zap.Error(err))
	}
}

// transitionRecipients returns who hears about a status change
func transitionRecipients(ev *order.OrderTransitionedEvent) []uuid.UUID {
	both := []uuid.UUID{ev.CustomerID}
	if ev.ProducerID != nil {
		both = append(both, *ev.ProducerID)
	}
	if ev.FromStatus == order.StatusDisputeOpen {
		return both
	}

	switch ev.ActorRole {
	case identity.RoleCustomer:
		if ev.ProducerID == nil {
			return nil
		}
		return []uuid.UUID{*ev.ProducerID}
	case identity.RoleProducer:
		return []uuid.UUID{ev.CustomerID}
	}
	return both
}

func describeTransition(ev *order.OrderTransitionedEvent) (notification.Type, string) {
	switch {
	case ev.FromStatus == order.StatusDisputeOpen:
		return notification.TypeDisputeResolved, "Dispute resolved"
	case ev.ToStatus == order.StatusDisputeOpen:
		return notification.TypeDisputeOpened, "Dispute opened"
	case ev.ToStatus == order.StatusPending && ev.FromStatus == order.StatusDraft:
		return notification.TypeNewOrder, "New order"
	}
	return notification.TypeOrderStatus, "Order " + humanStatus(ev.ToStatus)
}

var statusLabels = map[order.Status]string{
	order.StatusDraft:               "draft",
	order.StatusPending:             "waiting for a producer",
	order.StatusAccepted:            "accepted",
	order.StatusRejected:            "rejected",
	order.StatusPaid:                "paid",
	order.StatusInProduction:        "in production",
	order.StatusCompletedByProducer: "ready",
	order.StatusConfirmed:           "confirmed",
	order.StatusCancelled:           "cancelled",
	order.StatusDisputeOpen:         "in dispute",
	order.StatusRefunded:            "refunded",
	order.StatusPartialRefund:       "partially refunded",
}

func humanStatus(s order.Status) string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	return string(s)
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
