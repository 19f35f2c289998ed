package pricing

import (
	"testing"

	"github.com/google/uuid"
	"github.com/printmarket/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func referenceInput() Input {
	return Input{
		MaterialUnitPrice: d("0.02"),
		MassGrams:         d("300"),
		PrintTimeMinutes:  d("540"),
		HourlyRate:        d("5.0"),
		SupportRequired:   true,
		SupportFlatCost:   d("5.0"),
		FixedCost:         d("2.0"),
		MarginPercent:     d("20"),
		CommissionRate:    d("15"),
		PaymentFeeRate:    d("2.5"),
	}
}

// =============================================================================
// Breakdown
// =============================================================================

func TestCalculate_ReferenceQuote(t *testing.T) {
	r, err := Calculate(referenceInput())
	require.NoError(t, err)

	assert.Equal(t, "6.00", r.MaterialCost.StringFixed(2))
	assert.Equal(t, "45.00", r.TimeCost.StringFixed(2))
	assert.Equal(t, "5.00", r.SupportCost.StringFixed(2))
	assert.Equal(t, "2.00", r.FixedCost.StringFixed(2))
	assert.Equal(t, "11.60", r.ProducerMargin.StringFixed(2))
	assert.Equal(t, "69.60", r.ProducerSubtotal.StringFixed(2))
	assert.Equal(t, "10.44", r.PlatformCommission.StringFixed(2))
	assert.Equal(t, "2.00", r.PaymentFee.StringFixed(2))
	assert.Equal(t, "82.04", r.CustomerTotal.StringFixed(2))
	assert.True(t, r.ProducerEarnings.Equal(r.ProducerSubtotal))
	assert.True(t, r.IsConsistent())
}

func TestCalculate_SupportNotRequired(t *testing.T) {
	in := referenceInput()
	in.SupportRequired = false

	r, err := Calculate(in)
	require.NoError(t, err)

	assert.True(t, r.SupportCost.IsZero())
	// (6 + 45 + 2) * 1.2 = 63.60
	assert.Equal(t, "63.60", r.ProducerSubtotal.StringFixed(2))
	assert.True(t, r.IsConsistent())
}

func TestCalculate_RoundsOnlyAtTheEnd(t *testing.T) {
	in := Input{
		MaterialUnitPrice: d("0.0333"),
		MassGrams:         d("10"),
		PrintTimeMinutes:  d("7"),
		HourlyRate:        d("3.33"),
		MarginPercent:     d("12.5"),
		CommissionRate:    d("15"),
		PaymentFeeRate:    d("2.9"),
	}

	r, err := Calculate(in)
	require.NoError(t, err)

	// material 0.333 -> 0.33, time 0.3885 -> 0.39
	assert.Equal(t, "0.33", r.MaterialCost.StringFixed(2))
	assert.Equal(t, "0.39", r.TimeCost.StringFixed(2))
	// margin on the unrounded base 0.7215 * 0.125 = 0.0901875
	assert.Equal(t, "0.09", r.ProducerMargin.StringFixed(2))
	assert.True(t, r.IsConsistent())
}

func TestCalculate_SumInvariantsHoldAcrossInputs(t *testing.T) {
	prices := []string{"0.01", "0.02", "0.0375", "0.05"}
	masses := []string{"0.1", "12.5", "300", "1234.567"}
	minutes := []string{"1", "59", "540", "2880"}
	margins := []string{"0", "7.5", "20", "100"}

	for _, p := range prices {
		for _, m := range masses {
			for _, mins := range minutes {
				for _, mg := range margins {
					in := Input{
						MaterialUnitPrice: d(p),
						MassGrams:         d(m),
						PrintTimeMinutes:  d(mins),
						HourlyRate:        d("4.75"),
						SupportRequired:   true,
						SupportFlatCost:   d("3.10"),
						FixedCost:         d("1.05"),
						MarginPercent:     d(mg),
						CommissionRate:    d("15"),
						PaymentFeeRate:    d("2.5"),
					}
					r, err := Calculate(in)
					require.NoError(t, err)
					assert.True(t, r.IsConsistent(), "inconsistent breakdown for %+v", in)
					assert.True(t, r.CustomerTotal.Equal(r.CustomerTotal.Round(MoneyPlaces)))
				}
			}
		}
	}
}

// =============================================================================
// Minimum order and validation
// =============================================================================

func TestCalculate_BelowMinimumOrder(t *testing.T) {
	in := referenceInput()
	in.MinOrderAmount = d("100")

	r, err := Calculate(in)

	assert.Nil(t, r)
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrBelowMinimumOrder)
	assert.Contains(t, err.Error(), "82.04")
}

func TestCalculate_AtMinimumOrderIsAccepted(t *testing.T) {
	in := referenceInput()
	in.MinOrderAmount = d("82.04")

	r, err := Calculate(in)
	require.NoError(t, err)
	assert.Equal(t, "82.04", r.CustomerTotal.StringFixed(2))
}

func TestCalculate_ZeroCostInputs(t *testing.T) {
	in := referenceInput()
	in.MaterialUnitPrice = decimal.Zero
	in.MassGrams = decimal.Zero
	in.PrintTimeMinutes = decimal.Zero

	r, err := Calculate(in)
	require.NoError(t, err)
	assert.True(t, r.MaterialCost.IsZero())
	assert.True(t, r.TimeCost.IsZero())
	assert.True(t, r.SupportCost.Add(r.FixedCost).Add(r.ProducerMargin).Equal(r.ProducerSubtotal))
	assert.True(t, r.ProducerSubtotal.Add(r.PlatformCommission).Add(r.PaymentFee).Equal(r.CustomerTotal))
	assert.True(t, r.CustomerTotal.IsPositive())
}

func TestInput_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Input)
		field  string
	}{
		{"negative material price", func(in *Input) { in.MaterialUnitPrice = d("-0.01") }, "material_unit_price"},
		{"negative mass", func(in *Input) { in.MassGrams = d("-1") }, "mass_grams"},
		{"negative print time", func(in *Input) { in.PrintTimeMinutes = d("-5") }, "print_time_minutes"},
		{"negative hourly rate", func(in *Input) { in.HourlyRate = d("-0.01") }, "hourly_rate"},
		{"negative fixed cost", func(in *Input) { in.FixedCost = d("-2") }, "fixed_cost"},
		{"margin above 100", func(in *Input) { in.MarginPercent = d("100.5") }, "margin_percent"},
		{"negative commission", func(in *Input) { in.CommissionRate = d("-1") }, "commission_rate"},
		{"fee of 100 percent", func(in *Input) { in.PaymentFeeRate = d("100") }, "payment_fee_rate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := referenceInput()
			tt.mutate(&in)

			r, err := Calculate(in)

			assert.Nil(t, r)
			require.Error(t, err)
			assert.ErrorIs(t, err, shared.ErrInvalidPricingInput)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

// =============================================================================
// Inputs assembled from catalog data
// =============================================================================

func TestBuildInput(t *testing.T) {
	material, err := NewMaterial("PLA", MaterialTypePLA, d("0.02"), d("1.24"))
	require.NoError(t, err)
	rates := DefaultProducerRates(uuid.New())
	platform := PlatformRates{CommissionRate: d("15"), PaymentFeeRate: d("2.5")}

	in, err := BuildInput(material, d("300"), d("540"), true, rates, platform)
	require.NoError(t, err)

	assert.True(t, in.MaterialUnitPrice.Equal(d("0.02")))
	assert.True(t, in.HourlyRate.Equal(rates.HourlyRate))
	assert.True(t, in.MinOrderAmount.Equal(rates.MinOrderAmount))
	assert.True(t, in.CommissionRate.Equal(d("15")))
	assert.True(t, in.SupportRequired)
}

func TestBuildInput_InactiveMaterial(t *testing.T) {
	material, err := NewMaterial("ABS", MaterialTypeABS, d("0.025"), d("1.04"))
	require.NoError(t, err)
	material.IsActive = false

	_, err = BuildInput(material, d("10"), d("10"), false, DefaultProducerRates(uuid.New()), PlatformRates{})
	assert.ErrorIs(t, err, shared.ErrMaterialNotFound)

	_, err = BuildInput(nil, d("10"), d("10"), false, DefaultProducerRates(uuid.New()), PlatformRates{})
	assert.ErrorIs(t, err, shared.ErrMaterialNotFound)
}

func TestProducerRates_Update(t *testing.T) {
	rates := DefaultProducerRates(uuid.New())
	materialID := uuid.New()

	err := rates.Update(d("6"), d("4"), d("1.5"), d("25"), d("15"), []uuid.UUID{materialID}, true)
	require.NoError(t, err)
	assert.True(t, rates.HourlyRate.Equal(d("6")))
	assert.True(t, rates.Supports(materialID))
	assert.False(t, rates.Supports(uuid.New()))

	err = rates.Update(d("6"), d("4"), d("1.5"), d("120"), d("15"), nil, true)
	assert.ErrorIs(t, err, shared.ErrInvalidPricingInput)
	assert.True(t, rates.MarginPercent.Equal(d("25")), "failed update must not change rates")
}

func TestNewMaterial_Validation(t *testing.T) {
	_, err := NewMaterial("", MaterialTypePLA, d("0.02"), d("1.24"))
	assert.Error(t, err)

	_, err = NewMaterial("Resin", MaterialType("RESIN"), d("0.02"), d("1.1"))
	assert.Error(t, err)

	_, err = NewMaterial("PLA", MaterialTypePLA, d("-0.01"), d("1.24"))
	assert.Error(t, err)

	free, err := NewMaterial("PLA sample", MaterialTypePLA, decimal.Zero, d("1.24"))
	require.NoError(t, err)
	assert.True(t, free.PricePerGram.IsZero())
}
