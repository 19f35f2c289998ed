package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	orderapp "github.com/printmarket/backend/internal/application/order"
	"github.com/printmarket/backend/internal/domain/identity"
	"github.com/printmarket/backend/internal/domain/shared"
	"github.com/printmarket/backend/internal/infrastructure/logger"
	"github.com/printmarket/backend/internal/infrastructure/realtime"
	"go.uber.org/zap"
)

// StreamHub is the connection registry behind the event stream
type StreamHub interface {
	Subscribe(userID uuid.UUID, rooms ...string) *realtime.Client
	Unsubscribe(clientID string)
}

// OrderAccess checks that the caller may follow an order
type OrderAccess interface {
	Get(ctx context.Context, actor identity.Actor, id uuid.UUID) (*orderapp.OrderResponse, error)
}

// StreamHandler serves the server-sent event stream of notifications and, when
// an order is named, of that order's room.
type StreamHandler struct {
	BaseHandler
	hub       StreamHub
	orders    OrderAccess
	heartbeat time.Duration
}

// NewStreamHandler creates a new StreamHandler
func NewStreamHandler(hub StreamHub, orders OrderAccess, heartbeat time.Duration) *StreamHandler {
	if heartbeat <= 0 {
		heartbeat = 30 * time.Second
	}
	return &StreamHandler{hub: hub, orders: orders, heartbeat: heartbeat}
}

// Stream godoc
// @Summary      Subscribe to real-time events
// @Description  Server-Sent Events. Pass access_token in the query when the client cannot set headers.
// @Tags         stream
// @Produce      text/event-stream
// @Param        order_id query string false "Also receive this order's room events"
// @Success      200 {string} string "SSE stream"
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /stream [get]
func (h *StreamHandler) Stream(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	var rooms []string
	if raw := c.Query("order_id"); raw != "" {
		orderID, err := uuid.Parse(raw)
		if err != nil {
			h.BadRequest(c, "Invalid order_id format")
			return
		}
		o, err := h.orders.Get(c.Request.Context(), actor, orderID)
		if err != nil {
			h.HandleError(c, err)
			return
		}
		// pool visibility lets producers read an order, not follow its room
		if !actor.IsAdmin() && !o.IsParty(actor.UserID) {
			h.Error(c, http.StatusForbidden, shared.CodeForbidden, "Only the parties of an order can follow it")
			return
		}
		rooms = append(rooms, realtime.OrderRoom(orderID))
	}

	client := h.hub.Subscribe(actor.UserID, rooms...)
	defer h.hub.Unsubscribe(client.ID)

	log := logger.L(c.Request.Context()).With(zap.String("client_id", client.ID))
	log.Info("Stream client connected", zap.Strings("rooms", rooms))

	header := c.Writer.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	if err := writeEvent(c.Writer, realtime.NewEvent("connected", gin.H{"client_id": client.ID})); err != nil {
		return
	}
	c.Writer.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			log.Info("Stream client disconnected")
			return
		case ev, open := <-client.Events():
			if !open {
				log.Info("Stream closed by server")
				return
			}
			if err := writeEvent(c.Writer, ev); err != nil {
				log.Debug("Stream write failed", zap.Error(err))
				return
			}
			c.Writer.Flush()
		case <-ticker.C:
			if err := writeEvent(c.Writer, realtime.NewEvent("heartbeat", nil)); err != nil {
				return
			}
			c.Writer.Flush()
		}
	}
}

// writeEvent writes one SSE frame whose data is the JSON encoded event
func writeEvent(w io.Writer, ev realtime.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
	return err
}
