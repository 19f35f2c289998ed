// Package message models the chat thread attached to an order.
package message

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/printmarket/backend/internal/domain/shared"
)

// MaxContentLength is the longest message body accepted, in characters
const MaxContentLength = 2000

// Message is one chat line between the customer and the producer of an order.
// Only the read flag changes after creation.
type Message struct {
	ID         uuid.UUID
	OrderID    uuid.UUID
	SenderID   uuid.UUID
	ReceiverID uuid.UUID
	Content    string
	IsRead     bool
	CreatedAt  time.Time

	events []shared.DomainEvent
}

// NewMessage creates a message and records a MessageSent event
func NewMessage(orderID, senderID, receiverID uuid.UUID, content string) (*Message, error) {
	if orderID == uuid.Nil {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Order ID cannot be empty")
	}
	if senderID == uuid.Nil || receiverID == uuid.Nil {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Sender and receiver are required")
	}
	if senderID == receiverID {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Cannot send a message to yourself")
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Message content cannot be empty")
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return nil, shared.NewDomainError(shared.CodeInvalidInput,
			fmt.Sprintf("Message content cannot exceed %d characters", MaxContentLength))
	}

	m := &Message{
		ID:         uuid.New(),
		OrderID:    orderID,
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
		CreatedAt:  time.Now(),
	}
	m.events = append(m.events, NewMessageSentEvent(m))
	return m, nil
}

// MarkRead flags the message as read. Only the receiver may do this.
func (m *Message) MarkRead(userID uuid.UUID) error {
	if userID != m.ReceiverID {
		return shared.NewDomainError(shared.CodeForbidden, "Only the receiver can mark a message as read")
	}
	m.IsRead = true
	return nil
}

// Events returns the events recorded since creation
func (m *Message) Events() []shared.DomainEvent {
	return m.events
}

// Preview returns the content cut to n characters with an ellipsis when longer
func (m *Message) Preview(n int) string {
	if utf8.RuneCountInString(m.Content) <= n {
		return m.Content
	}
	runes := []rune(m.Content)
	return string(runes[:n]) + "..."
}

// Repository defines persistence for messages
type Repository interface {
	// Create stores the message and writes its events to the outbox atomically
	Create(ctx context.Context, m *Message) error
	FindByID(ctx context.Context, id uuid.UUID) (*Message, error)
	// FindByOrder returns the thread oldest first
	FindByOrder(ctx context.Context, orderID uuid.UUID) ([]Message, error)
	MarkRead(ctx context.Context, id uuid.UUID) error
}
