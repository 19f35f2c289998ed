package message

import (
	"time"

	"github.com/google/uuid"
	"github.com/printmarket/backend/internal/domain/message"
)

// SendMessageRequest represents a chat message posted to an order thread
type SendMessageRequest struct {
	Content string `json:"content" binding:"required,min=1,max=2000"`
}

// MessageResponse represents a message in API responses
type MessageResponse struct {
	ID         uuid.UUID `json:"id"`
	OrderID    uuid.UUID `json:"order_id"`
	SenderID   uuid.UUID `json:"sender_id"`
	ReceiverID uuid.UUID `json:"receiver_id"`
	Content    string    `json:"content"`
	IsRead     bool      `json:"is_read"`
	CreatedAt  time.Time `json:"created_at"`
}

// ToMessageResponse converts a domain message to a response
func ToMessageResponse(m *message.Message) MessageResponse {
	return MessageResponse{
		ID:         m.ID,
		OrderID:    m.OrderID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Content:    m.Content,
		IsRead:     m.IsRead,
		CreatedAt:  m.CreatedAt,
	}
}
