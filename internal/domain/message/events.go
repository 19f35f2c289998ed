package message

import (
	"github.com/google/uuid"
	"github.com/printmarket/backend/internal/domain/shared"
)

// EventTypeMessageSent is published when a chat message is stored
const EventTypeMessageSent = "MessageSent"

// MessageSentEvent is keyed on the order so a thread is delivered in order
type MessageSentEvent struct {
	shared.BaseDomainEvent
	MessageID  uuid.UUID `json:"message_id"`
	OrderID    uuid.UUID `json:"order_id"`
	SenderID   uuid.UUID `json:"sender_id"`
	ReceiverID uuid.UUID `json:"receiver_id"`
	Content    string    `json:"content"`
}

// NewMessageSentEvent creates a new MessageSentEvent
func NewMessageSentEvent(m *Message) *MessageSentEvent {
	return &MessageSentEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeMessageSent, "Order", m.OrderID),
		MessageID:       m.ID,
		OrderID:         m.OrderID,
		SenderID:        m.SenderID,
		ReceiverID:      m.ReceiverID,
		Content:         m.Content,
	}
}

// EventType returns the event type name
func (e *MessageSentEvent) EventType() string {
	return EventTypeMessageSent
}
