package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	payoutapp "github.com/printmarket/backend/internal/application/payout"
	reportapp "github.com/printmarket/backend/internal/application/report"
	"github.com/printmarket/backend/internal/domain/identity"
	"github.com/printmarket/backend/internal/domain/shared"
)

// PayoutService lists what producers are owed
type PayoutService interface {
	List(ctx context.Context, actor identity.Actor, req payoutapp.ListPayoutsRequest) (*shared.Paginated[payoutapp.PayoutResponse], error)
}

// ReportService builds the admin dashboard
type ReportService interface {
	Stats(ctx context.Context, actor identity.Actor, req reportapp.StatsRequest) (*reportapp.StatsResponse, error)
}

// PayoutHandler handles payout listings and the admin dashboard
type PayoutHandler struct {
	BaseHandler
	payouts PayoutService
	reports ReportService
}

// NewPayoutHandler creates a new PayoutHandler
func NewPayoutHandler(payouts PayoutService, reports ReportService) *PayoutHandler {
	return &PayoutHandler{payouts: payouts, reports: reports}
}

// List godoc
// @Summary      List payouts, latest scheduled first
// @Description  Producers see their own payouts; admins see all or filter by producer.
// @Tags         payouts
// @Produce      json
// @Param        producer_id query string false "Producer ID (admins only)"
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Items per page" default(20) maximum(100)
// @Success      200 {object} dto.Response{data=[]payoutapp.PayoutResponse,meta=dto.Meta}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /payouts [get]
func (h *PayoutHandler) List(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req payoutapp.ListPayoutsRequest
	if !h.bindQuery(c, &req) {
		return
	}
	page, err := h.payouts.List(c.Request.Context(), actor, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	respondPage(c, *page)
}

// Stats godoc
// @Summary      Platform statistics
// @Tags         admin
// @Produce      json
// @Param        days query int false "Window in days" default(30) minimum(1) maximum(365)
// @Success      200 {object} dto.Response{data=reportapp.StatsResponse}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /admin/stats [get]
func (h *PayoutHandler) Stats(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req reportapp.StatsRequest
	if !h.bindQuery(c, &req) {
		return
	}
	stats, err := h.reports.Stats(c.Request.Context(), actor, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, stats)
}
