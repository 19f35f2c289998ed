// Package notification holds the per-user notification inbox.
package notification

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/printmarket/backend/internal/domain/shared"
)

// Type classifies a notification
type Type string

const (
	TypeNewOrder        Type = "new_order"
	TypeOrderStatus     Type = "order_status"
	TypeNewMessage      Type = "new_message"
	TypeDisputeOpened   Type = "dispute_opened"
	TypeDisputeResolved Type = "dispute_resolved"
	TypeShippingUpdate  Type = "shipping_update"
)

// IsValid checks if the type is known
func (t Type) IsValid() bool {
	switch t {
	case TypeNewOrder, TypeOrderStatus, TypeNewMessage, TypeDisputeOpened, TypeDisputeResolved, TypeShippingUpdate:
		return true
	}
	return false
}

// Notification is a message addressed to one user
type Notification struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Type      Type
	Title     string
	Body      string
	OrderID   *uuid.UUID
	IsRead    bool
	CreatedAt time.Time
	ReadAt    *time.Time
}

// NewNotification creates an unread notification. The ID is derived from the
// source event and the recipient so redelivery of the same event maps to the
// same row.
func NewNotification(sourceEventID, userID uuid.UUID, typ Type, title, body string, orderID *uuid.UUID) (*Notification, error) {
	if userID == uuid.Nil {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Recipient cannot be empty")
	}
	if !typ.IsValid() {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Unknown notification type: "+string(typ))
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Notification title cannot be empty")
	}

	id := uuid.New()
	if sourceEventID != uuid.Nil {
		id = uuid.NewSHA1(sourceEventID, userID[:])
	}
	var oid *uuid.UUID
	if orderID != nil {
		v := *orderID
		oid = &v
	}
	return &Notification{
		ID:        id,
		UserID:    userID,
		Type:      typ,
		Title:     title,
		Body:      body,
		OrderID:   oid,
		CreatedAt: time.Now(),
	}, nil
}

// MarkRead flags the notification as read. Only the addressee may do this;
// marking twice keeps the first ReadAt.
func (n *Notification) MarkRead(userID uuid.UUID) error {
	if userID != n.UserID {
		return shared.NewDomainError(shared.CodeForbidden, "Notification belongs to another user")
	}
	if n.IsRead {
		return nil
	}
	now := time.Now()
	n.IsRead = true
	n.ReadAt = &now
	return nil
}

// Repository defines persistence for notifications
type Repository interface {
	// Create inserts the notification, ignoring a row with the same ID
	Create(ctx context.Context, n *Notification) error
	FindByID(ctx context.Context, id uuid.UUID) (*Notification, error)
	// FindByUser lists newest first; unreadOnly filters read rows out
	FindByUser(ctx context.Context, userID uuid.UUID, unreadOnly bool, filter shared.Filter) ([]Notification, int64, error)
	MarkRead(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkAllRead(ctx context.Context, userID uuid.UUID, at time.Time) (int64, error)
	CountUnread(ctx context.Context, userID uuid.UUID) (int64, error)
}
