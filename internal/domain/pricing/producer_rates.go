package pricing

import (
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/printmarket/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// ProducerRates is the pricing configuration a producer applies to every quote.
type ProducerRates struct {
	ProducerID         uuid.UUID
	HourlyRate         decimal.Decimal
	SupportFlatCost    decimal.Decimal
	FixedCost          decimal.Decimal
	MarginPercent      decimal.Decimal
	MinOrderAmount     decimal.Decimal
	SupportedMaterials []uuid.UUID
	AcceptingOrders    bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// DefaultProducerRates returns the rates a producer starts with
func DefaultProducerRates(producerID uuid.UUID) *ProducerRates {
	now := time.Now()
	return &ProducerRates{
		ProducerID:      producerID,
		HourlyRate:      decimal.NewFromFloat(5.0),
		SupportFlatCost: decimal.NewFromFloat(5.0),
		FixedCost:       decimal.NewFromFloat(1.0),
		MarginPercent:   decimal.NewFromInt(20),
		MinOrderAmount:  decimal.NewFromInt(10),
		AcceptingOrders: true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// Update replaces the configurable values after validating them
func (r *ProducerRates) Update(hourly, supportFlat, fixed, margin, minOrder decimal.Decimal, materials []uuid.UUID, accepting bool) error {
	for name, v := range map[string]decimal.Decimal{
		"hourly_rate":       hourly,
		"support_flat_cost": supportFlat,
		"fixed_cost":        fixed,
		"min_order_amount":  minOrder,
	} {
		if v.IsNegative() {
			return invalidInput(name, "cannot be negative")
		}
	}
	if margin.IsNegative() || margin.GreaterThan(hundred) {
		return invalidInput("margin_percent", "must be between 0 and 100")
	}

	r.HourlyRate = hourly
	r.SupportFlatCost = supportFlat
	r.FixedCost = fixed
	r.MarginPercent = margin
	r.MinOrderAmount = minOrder
	r.SupportedMaterials = slices.Clone(materials)
	r.AcceptingOrders = accepting
	r.UpdatedAt = time.Now()
	return nil
}

// Supports reports whether the producer prints with the given material.
// An empty list means every material is supported.
func (r *ProducerRates) Supports(materialID uuid.UUID) bool {
	if len(r.SupportedMaterials) == 0 {
		return true
	}
	return slices.Contains(r.SupportedMaterials, materialID)
}

// PlatformRates holds the platform-wide charges applied on top of producer rates
type PlatformRates struct {
	CommissionRate decimal.Decimal
	PaymentFeeRate decimal.Decimal
}

// Validate checks the platform rates are percentages
func (p PlatformRates) Validate() error {
	if p.CommissionRate.IsNegative() || p.CommissionRate.GreaterThan(hundred) {
		return invalidInput("commission_rate", "must be between 0 and 100")
	}
	if p.PaymentFeeRate.IsNegative() || !p.PaymentFeeRate.LessThan(hundred) {
		return invalidInput("payment_fee_rate", "must be between 0 and 100")
	}
	return nil
}

// BuildInput assembles calculator input from a material, job geometry, producer rates
// and platform rates.
func BuildInput(m *Material, massGrams, printMinutes decimal.Decimal, supportRequired bool, rates *ProducerRates, platform PlatformRates) (Input, error) {
	if m == nil || !m.IsActive {
		return Input{}, shared.ErrMaterialNotFound
	}
	return Input{
		MaterialUnitPrice: m.PricePerGram,
		MassGrams:         massGrams,
		PrintTimeMinutes:  printMinutes,
		HourlyRate:        rates.HourlyRate,
		SupportRequired:   supportRequired,
		SupportFlatCost:   rates.SupportFlatCost,
		FixedCost:         rates.FixedCost,
		MarginPercent:     rates.MarginPercent,
		CommissionRate:    platform.CommissionRate,
		PaymentFeeRate:    platform.PaymentFeeRate,
		MinOrderAmount:    rates.MinOrderAmount,
	}, nil
}
