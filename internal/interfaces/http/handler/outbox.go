package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/printmarket/backend/internal/application/event"
	"github.com/printmarket/backend/internal/domain/identity"
	"github.com/printmarket/backend/internal/domain/shared"
)

// OutboxAdmin inspects and re-queues dead-lettered outbox entries
type OutboxAdmin interface {
	ListDead(ctx context.Context, actor identity.Actor, req event.ListDeadRequest) (*shared.Paginated[event.EntryResponse], error)
	Get(ctx context.Context, actor identity.Actor, id uuid.UUID) (*event.EntryResponse, error)
	Retry(ctx context.Context, actor identity.Actor, id uuid.UUID) (*event.EntryResponse, error)
	RetryAll(ctx context.Context, actor identity.Actor) (*event.RetryAllResponse, error)
	Stats(ctx context.Context, actor identity.Actor) (*event.StatsResponse, error)
}

// OutboxHandler handles outbox administration endpoints
type OutboxHandler struct {
	BaseHandler
	outbox OutboxAdmin
}

// NewOutboxHandler creates a new outbox handler
func NewOutboxHandler(outbox OutboxAdmin) *OutboxHandler {
	return &OutboxHandler{outbox: outbox}
}

// ListDead godoc
// @Summary      List dead letter entries
// @Tags         admin
// @Produce      json
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Items per page" default(20) maximum(100)
// @Success      200 {object} dto.Response{data=[]event.EntryResponse,meta=dto.Meta}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /admin/outbox/dead [get]
func (h *OutboxHandler) ListDead(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req event.ListDeadRequest
	if !h.bindQuery(c, &req) {
		return
	}
	page, err := h.outbox.ListDead(c.Request.Context(), actor, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	respondPage(c, *page)
}

// Get godoc
// @Summary      Get an outbox entry
// @Tags         admin
// @Produce      json
// @Param        id path string true "Entry ID"
// @Success      200 {object} dto.Response{data=event.EntryResponse}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /admin/outbox/{id} [get]
func (h *OutboxHandler) Get(c *gin.Context) {
	h.entry(c, h.outbox.Get)
}

// Retry godoc
// @Summary      Re-queue a dead letter entry
// @Tags         admin
// @Produce      json
// @Param        id path string true "Entry ID"
// @Success      200 {object} dto.Response{data=event.EntryResponse}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /admin/outbox/{id}/retry [post]
func (h *OutboxHandler) Retry(c *gin.Context) {
	h.entry(c, h.outbox.Retry)
}

// RetryAll godoc
// @Summary      Re-queue every dead letter entry
// @Tags         admin
// @Produce      json
// @Success      200 {object} dto.Response{data=event.RetryAllResponse}
// @Security     BearerAuth
// @Router       /admin/outbox/dead/retry [post]
func (h *OutboxHandler) RetryAll(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	resp, err := h.outbox.RetryAll(c.Request.Context(), actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Stats godoc
// @Summary      Count outbox entries per status
// @Tags         admin
// @Produce      json
// @Success      200 {object} dto.Response{data=event.StatsResponse}
// @Security     BearerAuth
// @Router       /admin/outbox/stats [get]
func (h *OutboxHandler) Stats(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	stats, err := h.outbox.Stats(c.Request.Context(), actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, stats)
}

func (h *OutboxHandler) entry(c *gin.Context, fn func(context.Context, identity.Actor, uuid.UUID) (*event.EntryResponse, error)) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.parseID(c, "id")
	if !ok {
		return
	}
	entry, err := fn(c.Request.Context(), actor, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, entry)
}
