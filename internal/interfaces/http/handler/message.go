package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	messageapp "github.com/printmarket/backend/internal/application/message"
	"github.com/printmarket/backend/internal/domain/identity"
)

// MessageService is the per-order chat
type MessageService interface {
	Send(ctx context.Context, actor identity.Actor, orderID uuid.UUID, req messageapp.SendMessageRequest) (*messageapp.MessageResponse, error)
	ListByOrder(ctx context.Context, actor identity.Actor, orderID uuid.UUID) ([]messageapp.MessageResponse, error)
	MarkRead(ctx context.Context, actor identity.Actor, id uuid.UUID) (*messageapp.MessageResponse, error)
}

// MessageHandler handles order chat endpoints
type MessageHandler struct {
	BaseHandler
	messages MessageService
}

// NewMessageHandler creates a new MessageHandler
func NewMessageHandler(messages MessageService) *MessageHandler {
	return &MessageHandler{messages: messages}
}

// List godoc
// @Summary      List an order's messages, oldest first
// @Tags         messages
// @Produce      json
// @Param        id path string true "Order ID"
// @Success      200 {object} dto.Response{data=[]messageapp.MessageResponse}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /orders/{id}/messages [get]
func (h *MessageHandler) List(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	orderID, ok := h.parseID(c, "id")
	if !ok {
		return
	}
	messages, err := h.messages.ListByOrder(c.Request.Context(), actor, orderID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if messages == nil {
		messages = []messageapp.MessageResponse{}
	}
	h.Success(c, messages)
}

// Send godoc
// @Summary      Send a message to the other party of an order
// @Tags         messages
// @Accept       json
// @Produce      json
// @Param        id path string true "Order ID"
// @Param        request body messageapp.SendMessageRequest true "Message"
// @Success      201 {object} dto.Response{data=messageapp.MessageResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /orders/{id}/messages [post]
func (h *MessageHandler) Send(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	orderID, ok := h.parseID(c, "id")
	if !ok {
		return
	}
	var req messageapp.SendMessageRequest
	if !h.bindJSON(c, &req) {
		return
	}
	msg, err := h.messages.Send(c.Request.Context(), actor, orderID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, msg)
}

// MarkRead godoc
// @Summary      Mark a received message as read
// @Tags         messages
// @Produce      json
// @Param        id path string true "Message ID"
// @Success      200 {object} dto.Response{data=messageapp.MessageResponse}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /messages/{id}/read [patch]
func (h *MessageHandler) MarkRead(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.parseID(c, "id")
	if !ok {
		return
	}
	msg, err := h.messages.MarkRead(c.Request.Context(), actor, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, msg)
}
