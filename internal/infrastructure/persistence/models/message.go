package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/printmarket/backend/internal/domain/message"
	"github.com/printmarket/backend/internal/domain/notification"
)

// MessageModel is the persistence model for order chat messages
type MessageModel struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key"`
	OrderID    uuid.UUID `gorm:"type:uuid;not null;index:idx_messages_order_created,priority:1"`
	SenderID   uuid.UUID `gorm:"type:uuid;not null"`
	ReceiverID uuid.UUID `gorm:"type:uuid;not null;index"`
	Content    string    `gorm:"type:text;not null"`
	IsRead     bool      `gorm:"not null;default:false"`
	CreatedAt  time.Time `gorm:"not null;index:idx_messages_order_created,priority:2"`
}

// TableName returns the table name for GORM
func (MessageModel) TableName() string {
	return "messages"
}

// ToDomain converts the persistence model to a domain Message
func (m *MessageModel) ToDomain() *message.Message {
	return &message.Message{
		ID:         m.ID,
		OrderID:    m.OrderID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Content:    m.Content,
		IsRead:     m.IsRead,
		CreatedAt:  m.CreatedAt,
	}
}

// MessageModelFromDomain creates a persistence model from a domain Message
func MessageModelFromDomain(msg *message.Message) *MessageModel {
	return &MessageModel{
		ID:         msg.ID,
		OrderID:    msg.OrderID,
		SenderID:   msg.SenderID,
		ReceiverID: msg.ReceiverID,
		Content:    msg.Content,
		IsRead:     msg.IsRead,
		CreatedAt:  msg.CreatedAt,
	}
}

// NotificationModel is the persistence model for user notifications
type NotificationModel struct {
	ID        uuid.UUID         `gorm:"type:uuid;primary_key"`
	UserID    uuid.UUID         `gorm:"type:uuid;not null;index:idx_notifications_user_read,priority:1"`
	Type      notification.Type `gorm:"type:varchar(30);not null"`
	Title     string            `gorm:"type:varchar(200);not null"`
	Body      string            `gorm:"type:text"`
	OrderID   *uuid.UUID        `gorm:"type:uuid;index"`
	IsRead    bool              `gorm:"not null;default:false;index:idx_notifications_user_read,priority:2"`
	CreatedAt time.Time         `gorm:"not null"`
	ReadAt    *time.Time
}

// TableName returns the table name for GORM
func (NotificationModel) TableName() string {
	return "notifications"
}

// ToDomain converts the persistence model to a domain Notification
func (m *NotificationModel) ToDomain() *notification.Notification {
	return &notification.Notification{
		ID:        m.ID,
		UserID:    m.UserID,
		Type:      m.Type,
		Title:     m.Title,
		Body:      m.Body,
		OrderID:   m.OrderID,
		IsRead:    m.IsRead,
		CreatedAt: m.CreatedAt,
		ReadAt:    m.ReadAt,
	}
}

// NotificationModelFromDomain creates a persistence model from a domain Notification
func NotificationModelFromDomain(n *notification.Notification) *NotificationModel {
	return &NotificationModel{
		ID:        n.ID,
		UserID:    n.UserID,
		Type:      n.Type,
		Title:     n.Title,
		Body:      n.Body,
		OrderID:   n.OrderID,
		IsRead:    n.IsRead,
		CreatedAt: n.CreatedAt,
		ReadAt:    n.ReadAt,
	}
}
