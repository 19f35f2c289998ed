package pricing

import (
	"time"

	"github.com/google/uuid"
	"github.com/printmarket/backend/internal/domain/pricing"
	"github.com/shopspring/decimal"
)

// QuoteRequest asks for a price for printing a product
type QuoteRequest struct {
	ProductID  uuid.UUID  `json:"product_id" binding:"required"`
	MaterialID uuid.UUID  `json:"material_id" binding:"required"`
	ProducerID *uuid.UUID `json:"producer_id"`
	Quantity   int        `json:"quantity" binding:"omitempty,min=1,max=1000"`
	// SupportRequired overrides the analysis estimate when set
	SupportRequired *bool `json:"support_required"`
}

// QuoteResponse is a priced breakdown
type QuoteResponse struct {
	ProductID    uuid.UUID      `json:"product_id"`
	MaterialID   uuid.UUID      `json:"material_id"`
	MaterialName string         `json:"material_name"`
	ProducerID   *uuid.UUID     `json:"producer_id,omitempty"`
	Quantity     int            `json:"quantity"`
	Currency     string         `json:"currency"`
	Breakdown    pricing.Result `json:"breakdown"`
}

// UpdateRatesRequest replaces a producer's rates
type UpdateRatesRequest struct {
	HourlyRate         decimal.Decimal `json:"hourly_rate"`
	SupportFlatCost    decimal.Decimal `json:"support_flat_cost"`
	FixedCost          decimal.Decimal `json:"fixed_cost"`
	MarginPercent      decimal.Decimal `json:"margin_percent"`
	MinOrderAmount     decimal.Decimal `json:"min_order_amount"`
	SupportedMaterials []uuid.UUID     `json:"supported_materials"`
	AcceptingOrders    *bool           `json:"accepting_orders"`
}

// RatesResponse represents producer rates in API responses
type RatesResponse struct {
	ProducerID         uuid.UUID       `json:"producer_id"`
	HourlyRate         decimal.Decimal `json:"hourly_rate"`
	SupportFlatCost    decimal.Decimal `json:"support_flat_cost"`
	FixedCost          decimal.Decimal `json:"fixed_cost"`
	MarginPercent      decimal.Decimal `json:"margin_percent"`
	MinOrderAmount     decimal.Decimal `json:"min_order_amount"`
	SupportedMaterials []uuid.UUID     `json:"supported_materials"`
	AcceptingOrders    bool            `json:"accepting_orders"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// MaterialResponse represents a material in API responses
type MaterialResponse struct {
	ID           uuid.UUID       `json:"id"`
	Name         string          `json:"name"`
	Type         string          `json:"type"`
	PricePerGram decimal.Decimal `json:"price_per_gram"`
	Density      decimal.Decimal `json:"density"`
	Description  string          `json:"description,omitempty"`
}

// ToRatesResponse converts producer rates to a response
func ToRatesResponse(r *pricing.ProducerRates) RatesResponse {
	materials := r.SupportedMaterials
	if materials == nil {
		materials = []uuid.UUID{}
	}
	return RatesResponse{
		ProducerID:         r.ProducerID,
		HourlyRate:         r.HourlyRate,
		SupportFlatCost:    r.SupportFlatCost,
		FixedCost:          r.FixedCost,
		MarginPercent:      r.MarginPercent,
		MinOrderAmount:     r.MinOrderAmount,
		SupportedMaterials: materials,
		AcceptingOrders:    r.AcceptingOrders,
		UpdatedAt:          r.UpdatedAt,
	}
}

// ToMaterialResponse converts a material to a response
func ToMaterialResponse(m *pricing.Material) MaterialResponse {
	return MaterialResponse{
		ID:           m.ID,
		Name:         m.Name,
		Type:         string(m.Type),
		PricePerGram: m.PricePerGram,
		Density:      m.Density,
		Description:  m.Description,
	}
}
