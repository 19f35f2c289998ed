// Package pricing contains the quoting and producer-rate application services.
package pricing

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/printmarket/backend/internal/domain/catalog"
	"github.com/printmarket/backend/internal/domain/identity"
	"github.com/printmarket/backend/internal/domain/pricing"
	"github.com/printmarket/backend/internal/domain/shared"
	"github.com/printmarket/backend/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ProductLookup returns a product whose geometry has been analyzed
type ProductLookup interface {
	FindAnalyzed(ctx context.Context, id uuid.UUID) (*catalog.Product, error)
}

// QuoteRecorder receives the outcome of each quote attempt
type QuoteRecorder interface {
	RecordQuote(ctx context.Context, outcome string, customerTotal decimal.Decimal)
}

// Quote outcomes reported to the QuoteRecorder
const (
	QuoteOutcomeOK           = "ok"
	QuoteOutcomeBelowMinimum = "below_minimum"
	QuoteOutcomeRejected     = "rejected"
)

type nopQuoteRecorder struct{}

func (nopQuoteRecorder) RecordQuote(context.Context, string, decimal.Decimal) {}

// Quote is a computed price together with what it was computed from
type Quote struct {
	Product    *catalog.Product
	Material   *pricing.Material
	ProducerID *uuid.UUID
	Quantity   int
	Result     *pricing.Result
}

// QuoteService builds calculator input from stored data and prices jobs
type QuoteService struct {
	materials pricing.MaterialRepository
	rates     pricing.ProducerRatesRepository
	products  ProductLookup
	platform  pricing.PlatformRates
	currency  string
	recorder  QuoteRecorder
	logger    *zap.Logger
}

// NewQuoteService creates a new QuoteService
func NewQuoteService(
	materials pricing.MaterialRepository,
	rates pricing.ProducerRatesRepository,
	products ProductLookup,
	platform pricing.PlatformRates,
	currency string,
	logger *zap.Logger,
) (*QuoteService, error) {
	if err := platform.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QuoteService{
		materials: materials,
		rates:     rates,
		products:  products,
		platform:  platform,
		currency:  currency,
		recorder:  nopQuoteRecorder{},
		logger:    logger,
	}, nil
}

// SetRecorder sets the metrics recorder
func (s *QuoteService) SetRecorder(r QuoteRecorder) {
	if r != nil {
		s.recorder = r
	}
}

// Currency returns the currency prices are expressed in
func (s *QuoteService) Currency() string {
	return s.currency
}

// Quote prices a print job for the API
func (s *QuoteService) Quote(ctx context.Context, req QuoteRequest) (*QuoteResponse, error) {
	q, err := s.Calculate(ctx, req)
	if err != nil {
		return nil, err
	}
	return &QuoteResponse{
		ProductID:    q.Product.ID,
		MaterialID:   q.Material.ID,
		MaterialName: q.Material.Name,
		ProducerID:   q.ProducerID,
		Quantity:     q.Quantity,
		Currency:     s.currency,
		Breakdown:    *q.Result,
	}, nil
}

// Calculate resolves product geometry, material and producer rates and runs the
// calculator. Quantity multiplies mass and print time. Without a producer the
// default rates apply.
func (s *QuoteService) Calculate(ctx context.Context, req QuoteRequest) (*Quote, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "pricing", "quote",
		telemetry.SpanAttrProductID, req.ProductID,
		telemetry.SpanAttrMaterialID, req.MaterialID,
		telemetry.SpanAttrQuantity, req.Quantity,
	)
	defer span.End()

	var (
		q   *Quote
		err error
	)
	telemetry.WithProfilingLabels(ctx, map[string]string{"operation": "quote"}, func(c context.Context) {
		q, err = s.calculate(c, req)
	})
	telemetry.RecordError(span, err)

	switch {
	case err == nil:
		s.recorder.RecordQuote(ctx, QuoteOutcomeOK, q.Result.CustomerTotal)
	case errors.Is(err, shared.ErrBelowMinimumOrder):
		s.recorder.RecordQuote(ctx, QuoteOutcomeBelowMinimum, decimal.Zero)
	default:
		s.recorder.RecordQuote(ctx, QuoteOutcomeRejected, decimal.Zero)
	}
	return q, err
}

func (s *QuoteService) calculate(ctx context.Context, req QuoteRequest) (*Quote, error) {
	quantity := req.Quantity
	if quantity == 0 {
		quantity = 1
	}
	if quantity < 0 {
		return nil, shared.NewDomainError(shared.CodeInvalidPricingInput, "quantity must be positive")
	}

	product, err := s.products.FindAnalyzed(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}

	material, err := s.materials.FindByID(ctx, req.MaterialID)
	if err != nil {
		if isMissing(err) {
			return nil, shared.ErrMaterialNotFound
		}
		return nil, fmt.Errorf("load material: %w", err)
	}

	var rates *pricing.ProducerRates
	var producerID *uuid.UUID
	if req.ProducerID != nil && *req.ProducerID != uuid.Nil {
		id := *req.ProducerID
		producerID = &id
		rates, err = s.loadRates(ctx, id)
		if err != nil {
			return nil, err
		}
		if !rates.AcceptingOrders {
			return nil, shared.NewDomainError(shared.CodeInvalidState, "Producer is not accepting orders")
		}
		if !rates.Supports(material.ID) {
			return nil, shared.NewDomainError(shared.CodeMaterialNotFound, "Producer does not print with this material")
		}
	} else {
		rates = pricing.DefaultProducerRates(uuid.Nil)
	}

	support := product.Analysis.SupportRequired
	if req.SupportRequired != nil {
		support = *req.SupportRequired
	}
	qty := decimal.NewFromInt(int64(quantity))
	in, err := pricing.BuildInput(material,
		product.Analysis.MassGrams.Mul(qty),
		product.Analysis.PrintTimeMinutes.Mul(qty),
		support, rates, s.platform)
	if err != nil {
		return nil, err
	}

	result, err := pricing.Calculate(in)
	if err != nil {
		s.logger.Debug("Quote rejected",
			zap.String("product_id", product.ID.String()),
			zap.String("material_id", material.ID.String()),
			zap.Error(err))
		return nil, err
	}

	return &Quote{
		Product:    product,
		Material:   material,
		ProducerID: producerID,
		Quantity:   quantity,
		Result:     result,
	}, nil
}

// loadRates returns stored rates or the defaults for producers that never saved any
func (s *QuoteService) loadRates(ctx context.Context, producerID uuid.UUID) (*pricing.ProducerRates, error) {
	rates, err := s.rates.FindByProducer(ctx, producerID)
	if errors.Is(err, shared.ErrNotFound) {
		return pricing.DefaultProducerRates(producerID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load producer rates: %w", err)
	}
	return rates, nil
}

// GetRates returns the calling producer's rates
func (s *QuoteService) GetRates(ctx context.Context, actor identity.Actor) (*RatesResponse, error) {
	if actor.Role != identity.RoleProducer {
		return nil, shared.NewDomainError(shared.CodeForbidden, "Only producers have rates")
	}
	rates, err := s.loadRates(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	resp := ToRatesResponse(rates)
	return &resp, nil
}

// UpdateRates validates and stores the calling producer's rates. Every listed
// material must exist and be active.
func (s *QuoteService) UpdateRates(ctx context.Context, actor identity.Actor, req UpdateRatesRequest) (*RatesResponse, error) {
	if actor.Role != identity.RoleProducer {
		return nil, shared.NewDomainError(shared.CodeForbidden, "Only producers have rates")
	}
	for _, id := range req.SupportedMaterials {
		m, err := s.materials.FindByID(ctx, id)
		if isMissing(err) || (err == nil && !m.IsActive) {
			return nil, shared.NewDomainError(shared.CodeMaterialNotFound, "Unknown material: "+id.String())
		}
		if err != nil {
			return nil, fmt.Errorf("load material: %w", err)
		}
	}

	rates, err := s.loadRates(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	accepting := rates.AcceptingOrders
	if req.AcceptingOrders != nil {
		accepting = *req.AcceptingOrders
	}
	if err := rates.Update(req.HourlyRate, req.SupportFlatCost, req.FixedCost, req.MarginPercent,
		req.MinOrderAmount, req.SupportedMaterials, accepting); err != nil {
		return nil, err
	}
	if err := s.rates.Save(ctx, rates); err != nil {
		return nil, fmt.Errorf("save producer rates: %w", err)
	}
	resp := ToRatesResponse(rates)
	return &resp, nil
}

// ListMaterials returns the active materials
func (s *QuoteService) ListMaterials(ctx context.Context) ([]MaterialResponse, error) {
	materials, err := s.materials.FindActive(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]MaterialResponse, len(materials))
	for i := range materials {
		out[i] = ToMaterialResponse(&materials[i])
	}
	return out, nil
}

// SupportedMaterials returns the materials a producer prints with; nil means all
func (s *QuoteService) SupportedMaterials(ctx context.Context, producerID uuid.UUID) ([]uuid.UUID, error) {
	rates, err := s.loadRates(ctx, producerID)
	if err != nil {
		return nil, err
	}
	return rates.SupportedMaterials, nil
}

func isMissing(err error) bool {
	return errors.Is(err, shared.ErrNotFound) || errors.Is(err, shared.ErrMaterialNotFound)
}
