package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	pricingapp "github.com/printmarket/backend/internal/application/pricing"
	"github.com/printmarket/backend/internal/domain/identity"
)

// PricingService quotes prints and manages producer rates
type PricingService interface {
	Quote(ctx context.Context, req pricingapp.QuoteRequest) (*pricingapp.QuoteResponse, error)
	GetRates(ctx context.Context, actor identity.Actor) (*pricingapp.RatesResponse, error)
	UpdateRates(ctx context.Context, actor identity.Actor, req pricingapp.UpdateRatesRequest) (*pricingapp.RatesResponse, error)
	ListMaterials(ctx context.Context) ([]pricingapp.MaterialResponse, error)
}

// PricingHandler handles materials, quotes and producer rates
type PricingHandler struct {
	BaseHandler
	pricing PricingService
}

// NewPricingHandler creates a new PricingHandler
func NewPricingHandler(pricing PricingService) *PricingHandler {
	return &PricingHandler{pricing: pricing}
}

// ListMaterials godoc
// @Summary      List printable materials
// @Tags         pricing
// @Produce      json
// @Success      200 {object} dto.Response{data=[]pricingapp.MaterialResponse}
// @Security     BearerAuth
// @Router       /materials [get]
func (h *PricingHandler) ListMaterials(c *gin.Context) {
	materials, err := h.pricing.ListMaterials(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if materials == nil {
		materials = []pricingapp.MaterialResponse{}
	}
	h.Success(c, materials)
}

// Quote godoc
// @Summary      Price a print of an analyzed product
// @Tags         pricing
// @Accept       json
// @Produce      json
// @Param        request body pricingapp.QuoteRequest true "Quote request"
// @Success      200 {object} dto.Response{data=pricingapp.QuoteResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /quotes [post]
func (h *PricingHandler) Quote(c *gin.Context) {
	if _, ok := h.actor(c); !ok {
		return
	}
	var req pricingapp.QuoteRequest
	if !h.bindJSON(c, &req) {
		return
	}
	quote, err := h.pricing.Quote(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, quote)
}

// GetRates godoc
// @Summary      Get the caller's producer rates
// @Tags         pricing
// @Produce      json
// @Success      200 {object} dto.Response{data=pricingapp.RatesResponse}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /producers/me/rates [get]
func (h *PricingHandler) GetRates(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	rates, err := h.pricing.GetRates(c.Request.Context(), actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, rates)
}

// UpdateRates godoc
// @Summary      Replace the caller's producer rates
// @Tags         pricing
// @Accept       json
// @Produce      json
// @Param        request body pricingapp.UpdateRatesRequest true "Rates"
// @Success      200 {object} dto.Response{data=pricingapp.RatesResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /producers/me/rates [put]
func (h *PricingHandler) UpdateRates(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req pricingapp.UpdateRatesRequest
	if !h.bindJSON(c, &req) {
		return
	}
	rates, err := h.pricing.UpdateRates(c.Request.Context(), actor, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, rates)
}
