// Package pricing derives the cost breakdown of a print job from material,
// geometry and producer-configured rates.
package pricing

import (
	"fmt"
	"time"

	"github.com/printmarket/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// MoneyPlaces is the number of decimal places monetary outputs are rounded to.
const MoneyPlaces int32 = 2

var (
	hundred       = decimal.NewFromInt(100)
	minutesInHour = decimal.NewFromInt(60)
)

// Input enumerates every recognized pricing parameter. Percentages are expressed in
// percent (20 means 20%).
type Input struct {
	MaterialUnitPrice decimal.Decimal `json:"material_unit_price"` // per gram
	MassGrams         decimal.Decimal `json:"mass_grams"`
	PrintTimeMinutes  decimal.Decimal `json:"print_time_minutes"`
	HourlyRate        decimal.Decimal `json:"hourly_rate"`
	SupportRequired   bool            `json:"support_required"`
	SupportFlatCost   decimal.Decimal `json:"support_flat_cost"`
	FixedCost         decimal.Decimal `json:"fixed_cost"`
	MarginPercent     decimal.Decimal `json:"margin_percent"`
	CommissionRate    decimal.Decimal `json:"commission_rate"`
	PaymentFeeRate    decimal.Decimal `json:"payment_fee_rate"`
	MinOrderAmount    decimal.Decimal `json:"min_order_amount"`
}

// Result is an immutable cost breakdown for one quote.
type Result struct {
	MaterialCost       decimal.Decimal `json:"material_cost"`
	TimeCost           decimal.Decimal `json:"time_cost"`
	SupportCost        decimal.Decimal `json:"support_cost"`
	FixedCost          decimal.Decimal `json:"fixed_cost"`
	ProducerMargin     decimal.Decimal `json:"producer_margin"`
	ProducerSubtotal   decimal.Decimal `json:"producer_subtotal"`
	PlatformCommission decimal.Decimal `json:"platform_commission"`
	PaymentFee         decimal.Decimal `json:"payment_fee"`
	CustomerTotal      decimal.Decimal `json:"customer_total"`
	ProducerEarnings   decimal.Decimal `json:"producer_earnings"`
	Input              Input           `json:"input"`
	CalculatedAt       time.Time       `json:"calculated_at"`
}

// Validate rejects inputs that would produce a malformed breakdown. Zero is a
// valid amount everywhere; a product without analysis never reaches here.
func (in Input) Validate() error {
	nonNegative := []struct {
		name  string
		value decimal.Decimal
	}{
		{"material_unit_price", in.MaterialUnitPrice},
		{"mass_grams", in.MassGrams},
		{"print_time_minutes", in.PrintTimeMinutes},
		{"hourly_rate", in.HourlyRate},
		{"support_flat_cost", in.SupportFlatCost},
		{"fixed_cost", in.FixedCost},
		{"min_order_amount", in.MinOrderAmount},
	}
	for _, f := range nonNegative {
		if f.value.IsNegative() {
			return invalidInput(f.name, "cannot be negative")
		}
	}

	percents := []struct {
		name  string
		value decimal.Decimal
	}{
		{"margin_percent", in.MarginPercent},
		{"commission_rate", in.CommissionRate},
		{"payment_fee_rate", in.PaymentFeeRate},
	}
	for _, f := range percents {
		if f.value.IsNegative() || f.value.GreaterThan(hundred) {
			return invalidInput(f.name, "must be between 0 and 100")
		}
	}
	if in.PaymentFeeRate.Equal(hundred) {
		return invalidInput("payment_fee_rate", "must be below 100")
	}
	return nil
}

// Calculate computes the breakdown. Intermediate arithmetic keeps full precision;
// each leaf amount is rounded once at the end and the subtotal and total are summed
// from the rounded leaves so the breakdown adds up exactly.
func Calculate(in Input) (*Result, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	materialCost := in.MaterialUnitPrice.Mul(in.MassGrams)
	timeCost := in.HourlyRate.Mul(in.PrintTimeMinutes).Div(minutesInHour)
	supportCost := decimal.Zero
	if in.SupportRequired {
		supportCost = in.SupportFlatCost
	}
	directCost := materialCost.Add(timeCost).Add(supportCost).Add(in.FixedCost)
	margin := in.MarginPercent.Div(hundred).Mul(directCost)
	subtotal := directCost.Add(margin)
	commission := in.CommissionRate.Div(hundred).Mul(subtotal)
	fee := in.PaymentFeeRate.Div(hundred).Mul(subtotal.Add(commission))

	r := &Result{
		MaterialCost:       round(materialCost),
		TimeCost:           round(timeCost),
		SupportCost:        round(supportCost),
		FixedCost:          round(in.FixedCost),
		ProducerMargin:     round(margin),
		PlatformCommission: round(commission),
		PaymentFee:         round(fee),
		Input:              in,
		CalculatedAt:       time.Now(),
	}
	r.ProducerSubtotal = r.MaterialCost.Add(r.TimeCost).Add(r.SupportCost).Add(r.FixedCost).Add(r.ProducerMargin)
	r.CustomerTotal = r.ProducerSubtotal.Add(r.PlatformCommission).Add(r.PaymentFee)
	r.ProducerEarnings = r.ProducerSubtotal

	if in.MinOrderAmount.IsPositive() && r.CustomerTotal.LessThan(in.MinOrderAmount) {
		return nil, shared.NewDomainError(shared.CodeBelowMinimumOrder,
			fmt.Sprintf("Quote total %s is below the minimum order amount %s",
				r.CustomerTotal.StringFixed(MoneyPlaces), in.MinOrderAmount.StringFixed(MoneyPlaces)))
	}

	return r, nil
}

// IsConsistent reports whether the sum invariants of the breakdown hold.
func (r *Result) IsConsistent() bool {
	subtotal := r.MaterialCost.Add(r.TimeCost).Add(r.SupportCost).Add(r.FixedCost).Add(r.ProducerMargin)
	total := r.ProducerSubtotal.Add(r.PlatformCommission).Add(r.PaymentFee)
	return subtotal.Equal(r.ProducerSubtotal) &&
		total.Equal(r.CustomerTotal) &&
		r.ProducerEarnings.Equal(r.ProducerSubtotal)
}

func round(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}

func invalidInput(field, reason string) error {
	return shared.NewDomainError(shared.CodeInvalidPricingInput, fmt.Sprintf("%s %s", field, reason))
}
