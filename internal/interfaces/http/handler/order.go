package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	orderapp "github.com/printmarket/backend/internal/application/order"
	"github.com/printmarket/backend/internal/domain/identity"
	"github.com/printmarket/backend/internal/domain/shared"
)

// OrderService is the order lifecycle as seen by the API
type OrderService interface {
	CreateDraft(ctx context.Context, actor identity.Actor, req orderapp.CreateOrderRequest) (*orderapp.OrderResponse, error)
	Get(ctx context.Context, actor identity.Actor, id uuid.UUID) (*orderapp.OrderResponse, error)
	List(ctx context.Context, actor identity.Actor, req orderapp.ListOrdersRequest) (*shared.Paginated[orderapp.OrderResponse], error)
	ListPool(ctx context.Context, actor identity.Actor, req orderapp.ListOrdersRequest) (*shared.Paginated[orderapp.OrderResponse], error)
	Submit(ctx context.Context, actor identity.Actor, id uuid.UUID) (*orderapp.OrderResponse, error)
	Accept(ctx context.Context, actor identity.Actor, id uuid.UUID, req orderapp.AcceptRequest) (*orderapp.OrderResponse, error)
	Reject(ctx context.Context, actor identity.Actor, id uuid.UUID, reason string) (*orderapp.OrderResponse, error)
	Pay(ctx context.Context, actor identity.Actor, id uuid.UUID) (*orderapp.OrderResponse, error)
	StartProduction(ctx context.Context, actor identity.Actor, id uuid.UUID) (*orderapp.OrderResponse, error)
	CompleteProduction(ctx context.Context, actor identity.Actor, id uuid.UUID) (*orderapp.OrderResponse, error)
	Confirm(ctx context.Context, actor identity.Actor, id uuid.UUID, req orderapp.ConfirmRequest) (*orderapp.OrderResponse, error)
	Cancel(ctx context.Context, actor identity.Actor, id uuid.UUID, reason string) (*orderapp.OrderResponse, error)
	OpenDispute(ctx context.Context, actor identity.Actor, id uuid.UUID, reason string) (*orderapp.OrderResponse, error)
	ResolveDispute(ctx context.Context, actor identity.Actor, id uuid.UUID, req orderapp.ResolveDisputeRequest) (*orderapp.OrderResponse, error)
	Requote(ctx context.Context, actor identity.Actor, id uuid.UUID, req orderapp.RequoteRequest) (*orderapp.OrderResponse, error)
	SetShipping(ctx context.Context, actor identity.Actor, id uuid.UUID, req orderapp.ShippingRequest) (*orderapp.OrderResponse, error)
	RecordShipment(ctx context.Context, actor identity.Actor, id uuid.UUID, req orderapp.TrackingRequest) (*orderapp.OrderResponse, error)
}

// OrderHandler handles order endpoints. Every transition answers with the
// authoritative order so clients can reconcile optimistic state.
type OrderHandler struct {
	BaseHandler
	orders OrderService
}

// NewOrderHandler creates a new OrderHandler
func NewOrderHandler(orders OrderService) *OrderHandler {
	return &OrderHandler{orders: orders}
}

// Create godoc
// @Summary      Create a draft order
// @Tags         orders
// @Accept       json
// @Produce      json
// @Param        request body orderapp.CreateOrderRequest true "Order to create"
// @Success      201 {object} dto.Response{data=orderapp.OrderResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /orders [post]
func (h *OrderHandler) Create(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req orderapp.CreateOrderRequest
	if !h.bindJSON(c, &req) {
		return
	}
	resp, err := h.orders.CreateDraft(c.Request.Context(), actor, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// List godoc
// @Summary      List orders visible to the caller
// @Tags         orders
// @Produce      json
// @Param        status query string false "Filter by status"
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Items per page" default(20) maximum(100)
// @Success      200 {object} dto.Response{data=[]orderapp.OrderResponse,meta=dto.Meta}
// @Security     BearerAuth
// @Router       /orders [get]
func (h *OrderHandler) List(c *gin.Context) {
	h.list(c, h.orders.List)
}

// ListPool godoc
// @Summary      List open orders a producer can claim
// @Tags         orders
// @Produce      json
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Items per page" default(20) maximum(100)
// @Success      200 {object} dto.Response{data=[]orderapp.OrderResponse,meta=dto.Meta}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /orders/pool [get]
func (h *OrderHandler) ListPool(c *gin.Context) {
	h.list(c, h.orders.ListPool)
}

type listFunc func(context.Context, identity.Actor, orderapp.ListOrdersRequest) (*shared.Paginated[orderapp.OrderResponse], error)

func (h *OrderHandler) list(c *gin.Context, fn listFunc) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req orderapp.ListOrdersRequest
	if !h.bindQuery(c, &req) {
		return
	}
	page, err := fn(c.Request.Context(), actor, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	respondPage(c, *page)
}

// Get godoc
// @Summary      Get an order
// @Tags         orders
// @Produce      json
// @Param        id path string true "Order ID"
// @Success      200 {object} dto.Response{data=orderapp.OrderResponse}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /orders/{id} [get]
func (h *OrderHandler) Get(c *gin.Context) {
	h.transition(c, h.orders.Get)
}

type transitionFunc func(context.Context, identity.Actor, uuid.UUID) (*orderapp.OrderResponse, error)

// transition runs a body-less operation on the order named by the path
func (h *OrderHandler) transition(c *gin.Context, fn transitionFunc) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.parseID(c, "id")
	if !ok {
		return
	}
	resp, err := fn(c.Request.Context(), actor, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// withReason binds the reason body, then runs the operation
func (h *OrderHandler) withReason(c *gin.Context, req any, reason func() string,
	fn func(context.Context, identity.Actor, uuid.UUID, string) (*orderapp.OrderResponse, error), optional bool) {
	bind := h.bindJSON
	if optional {
		bind = h.bindOptionalJSON
	}
	if !bind(c, req) {
		return
	}
	h.transition(c, func(ctx context.Context, actor identity.Actor, id uuid.UUID) (*orderapp.OrderResponse, error) {
		return fn(ctx, actor, id, reason())
	})
}

// Submit godoc
// @Summary      Submit a draft order
// @Tags         orders
// @Produce      json
// @Param        id path string true "Order ID"
// @Success      200 {object} dto.Response{data=orderapp.OrderResponse}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /orders/{id}/submit [post]
func (h *OrderHandler) Submit(c *gin.Context) { h.transition(c, h.orders.Submit) }

// Accept godoc
// @Summary      Accept a pending order
// @Tags         orders
// @Accept       json
// @Produce      json
// @Param        id path string true "Order ID"
// @Param        request body orderapp.AcceptRequest false "Delivery estimate and notes"
// @Success      200 {object} dto.Response{data=orderapp.OrderResponse}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /orders/{id}/accept [post]
func (h *OrderHandler) Accept(c *gin.Context) {
	var req orderapp.AcceptRequest
	if !h.bindOptionalJSON(c, &req) {
		return
	}
	h.transition(c, func(ctx context.Context, actor identity.Actor, id uuid.UUID) (*orderapp.OrderResponse, error) {
		return h.orders.Accept(ctx, actor, id, req)
	})
}

// Reject godoc
// @Summary      Reject a pending order
// @Tags         orders
// @Accept       json
// @Produce      json
// @Param        id path string true "Order ID"
// @Param        request body orderapp.ReasonRequest false "Reason"
// @Success      200 {object} dto.Response{data=orderapp.OrderResponse}
// @Security     BearerAuth
// @Router       /orders/{id}/reject [post]
func (h *OrderHandler) Reject(c *gin.Context) {
	var req orderapp.ReasonRequest
	h.withReason(c, &req, func() string { return req.Reason }, h.orders.Reject, true)
}

// Pay godoc
// @Summary      Pay for an accepted order
// @Tags         orders
// @Produce      json
// @Param        id path string true "Order ID"
// @Success      200 {object} dto.Response{data=orderapp.OrderResponse}
// @Failure      402 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /orders/{id}/pay [post]
func (h *OrderHandler) Pay(c *gin.Context) { h.transition(c, h.orders.Pay) }

// Start godoc
// @Summary      Start production of a paid order
// @Tags         orders
// @Produce      json
// @Param        id path string true "Order ID"
// @Success      200 {object} dto.Response{data=orderapp.OrderResponse}
// @Security     BearerAuth
// @Router       /orders/{id}/start [post]
func (h *OrderHandler) Start(c *gin.Context) { h.transition(c, h.orders.StartProduction) }

// Complete godoc
// @Summary      Mark production finished
// @Tags         orders
// @Produce      json
// @Param        id path string true "Order ID"
// @Success      200 {object} dto.Response{data=orderapp.OrderResponse}
// @Security     BearerAuth
// @Router       /orders/{id}/complete [post]
func (h *OrderHandler) Complete(c *gin.Context) { h.transition(c, h.orders.CompleteProduction) }

// Confirm godoc
// @Summary      Confirm receipt of a finished order
// @Tags         orders
// @Accept       json
// @Produce      json
// @Param        id path string true "Order ID"
// @Param        request body orderapp.ConfirmRequest false "Optional rating and review"
// @Success      200 {object} dto.Response{data=orderapp.OrderResponse}
// @Security     BearerAuth
// @Router       /orders/{id}/confirm [post]
func (h *OrderHandler) Confirm(c *gin.Context) {
	var req orderapp.ConfirmRequest
	if !h.bindOptionalJSON(c, &req) {
		return
	}
	h.transition(c, func(ctx context.Context, actor identity.Actor, id uuid.UUID) (*orderapp.OrderResponse, error) {
		return h.orders.Confirm(ctx, actor, id, req)
	})
}

// Cancel godoc
// @Summary      Cancel an order
// @Tags         orders
// @Accept       json
// @Produce      json
// @Param        id path string true "Order ID"
// @Param        request body orderapp.ReasonRequest false "Reason"
// @Success      200 {object} dto.Response{data=orderapp.OrderResponse}
// @Security     BearerAuth
// @Router       /orders/{id}/cancel [post]
func (h *OrderHandler) Cancel(c *gin.Context) {
	var req orderapp.ReasonRequest
	h.withReason(c, &req, func() string { return req.Reason }, h.orders.Cancel, true)
}

// Dispute godoc
// @Summary      Open a dispute
// @Tags         orders
// @Accept       json
// @Produce      json
// @Param        id path string true "Order ID"
// @Param        request body orderapp.DisputeRequest true "Reason"
// @Success      200 {object} dto.Response{data=orderapp.OrderResponse}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /orders/{id}/dispute [post]
func (h *OrderHandler) Dispute(c *gin.Context) {
	var req orderapp.DisputeRequest
	h.withReason(c, &req, func() string { return req.Reason }, h.orders.OpenDispute, false)
}

// Resolve godoc
// @Summary      Resolve a dispute (admin)
// @Tags         orders
// @Accept       json
// @Produce      json
// @Param        id path string true "Order ID"
// @Param        request body orderapp.ResolveDisputeRequest true "Resolution"
// @Success      200 {object} dto.Response{data=orderapp.OrderResponse}
// @Security     BearerAuth
// @Router       /orders/{id}/resolve [post]
func (h *OrderHandler) Resolve(c *gin.Context) {
	var req orderapp.ResolveDisputeRequest
	if !h.bindJSON(c, &req) {
		return
	}
	h.transition(c, func(ctx context.Context, actor identity.Actor, id uuid.UUID) (*orderapp.OrderResponse, error) {
		return h.orders.ResolveDispute(ctx, actor, id, req)
	})
}

// Requote godoc
// @Summary      Recompute the price of an unpaid order
// @Tags         orders
// @Accept       json
// @Produce      json
// @Param        id path string true "Order ID"
// @Param        request body orderapp.RequoteRequest false "Overrides"
// @Success      200 {object} dto.Response{data=orderapp.OrderResponse}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /orders/{id}/requote [post]
func (h *OrderHandler) Requote(c *gin.Context) {
	var req orderapp.RequoteRequest
	if !h.bindOptionalJSON(c, &req) {
		return
	}
	h.transition(c, func(ctx context.Context, actor identity.Actor, id uuid.UUID) (*orderapp.OrderResponse, error) {
		return h.orders.Requote(ctx, actor, id, req)
	})
}

// Shipping godoc
// @Summary      Set delivery address and method
// @Tags         orders
// @Accept       json
// @Produce      json
// @Param        id path string true "Order ID"
// @Param        request body orderapp.ShippingRequest true "Shipping details"
// @Success      200 {object} dto.Response{data=orderapp.OrderResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /orders/{id}/shipping/info [post]
func (h *OrderHandler) Shipping(c *gin.Context) {
	var req orderapp.ShippingRequest
	if !h.bindJSON(c, &req) {
		return
	}
	h.transition(c, func(ctx context.Context, actor identity.Actor, id uuid.UUID) (*orderapp.OrderResponse, error) {
		return h.orders.SetShipping(ctx, actor, id, req)
	})
}

// Tracking godoc
// @Summary      Record the parcel's tracking number
// @Tags         orders
// @Accept       json
// @Produce      json
// @Param        id path string true "Order ID"
// @Param        request body orderapp.TrackingRequest true "Tracking details"
// @Success      200 {object} dto.Response{data=orderapp.OrderResponse}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /orders/{id}/shipping/tracking [post]
func (h *OrderHandler) Tracking(c *gin.Context) {
	var req orderapp.TrackingRequest
	if !h.bindJSON(c, &req) {
		return
	}
	h.transition(c, func(ctx context.Context, actor identity.Actor, id uuid.UUID) (*orderapp.OrderResponse, error) {
		return h.orders.RecordShipment(ctx, actor, id, req)
	})
}
