// Package telemetry provides OpenTelemetry integration for metrics collection.
package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/printmarket/backend/internal/domain/order"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// BusinessMetrics provides business metrics for the marketplace.
// It tracks order lifecycle, quoting and payment activity.
type BusinessMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	// Counter metrics (monotonically increasing)
	orderCreatedTotal    *Counter
	orderTransitionTotal *Counter
	quoteTotal           *Counter
	quoteAmountTotal     *Counter
	paymentTotal         *Counter
	paymentAmountTotal   *Counter

	// Gauge metrics (point-in-time values)
	ordersByStatus *Gauge

	// Periodic collector
	stopChan    chan struct{}
	stopOnce    sync.Once
	collectOnce sync.Once

	orderStats OrderStatsProvider
}

// OrderStatsProvider provides order counts for periodic metrics collection.
// The GORM order repository satisfies it.
type OrderStatsProvider interface {
	CountByStatus(ctx context.Context) (map[order.Status]int64, error)
}

// BusinessMetricsConfig holds configuration for business metrics.
type BusinessMetricsConfig struct {
	Meter      metric.Meter
	Logger     *zap.Logger
	OrderStats OrderStatsProvider
}

// NewBusinessMetrics creates a new BusinessMetrics instance.
func NewBusinessMetrics(cfg BusinessMetricsConfig) (*BusinessMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	bm := &BusinessMetrics{
		meter:      cfg.Meter,
		logger:     logger,
		stopChan:   make(chan struct{}),
		orderStats: cfg.OrderStats,
	}

	counters := []struct {
		target           **Counter
		name, desc, unit string
	}{
		{&bm.orderCreatedTotal, "printmarket_order_created_total", "Total number of draft orders created", "{orders}"},
		{&bm.orderTransitionTotal, "printmarket_order_transition_total", "Total number of order status transitions", "{transitions}"},
		{&bm.quoteTotal, "printmarket_quote_total", "Total number of quote attempts by outcome", "{quotes}"},
		{&bm.quoteAmountTotal, "printmarket_quote_amount_total", "Sum of successful quote totals in minor currency units", "{minor_units}"},
		{&bm.paymentTotal, "printmarket_payment_total", "Total number of payment captures by outcome", "{payments}"},
		{&bm.paymentAmountTotal, "printmarket_payment_amount_total", "Sum of captured amounts in minor currency units", "{minor_units}"},
	}
	for _, c := range counters {
		counter, err := NewCounter(cfg.Meter, c.name, c.desc, c.unit)
		if err != nil {
			return nil, err
		}
		*c.target = counter
	}

	var err error
	bm.ordersByStatus, err = NewGauge(
		cfg.Meter,
		"printmarket_orders_by_status",
		"Current number of orders per status",
		"{orders}",
	)
	if err != nil {
		return nil, err
	}

	return bm, nil
}

// =============================================================================
// Order Metrics
// =============================================================================

// RecordOrderCreated records a draft order creation.
func (bm *BusinessMetrics) RecordOrderCreated(ctx context.Context) {
	bm.orderCreatedTotal.Inc(ctx)
}

// RecordTransition records an accepted order status change.
func (bm *BusinessMetrics) RecordTransition(ctx context.Context, from, to order.Status) {
	bm.orderTransitionTotal.Inc(ctx,
		AttrFromStatus.String(string(from)),
		AttrToStatus.String(string(to)),
	)
}

// =============================================================================
// Quote Metrics
// =============================================================================

// RecordQuote records a quote attempt. Amounts are only added for successful quotes.
func (bm *BusinessMetrics) RecordQuote(ctx context.Context, outcome string, customerTotal decimal.Decimal) {
	bm.quoteTotal.Inc(ctx, AttrOutcome.String(outcome))
	if customerTotal.IsPositive() {
		bm.quoteAmountTotal.Add(ctx, MinorUnits(customerTotal))
	}
}

// =============================================================================
// Payment Metrics
// =============================================================================

// PaymentStatus represents the outcome of a payment for metrics labeling.
type PaymentStatus string

const (
	PaymentStatusSuccess PaymentStatus = "success"
	PaymentStatusFailed  PaymentStatus = "failed"
)

// RecordPayment records a payment capture attempt.
func (bm *BusinessMetrics) RecordPayment(ctx context.Context, provider string, success bool, amount decimal.Decimal) {
	status := PaymentStatusFailed
	if success {
		status = PaymentStatusSuccess
	}
	bm.paymentTotal.Inc(ctx,
		AttrPaymentProvider.String(provider),
		AttrPaymentStatus.String(string(status)),
	)
	if success {
		bm.paymentAmountTotal.Add(ctx, MinorUnits(amount), AttrPaymentProvider.String(provider))
	}
}

// MinorUnits converts an amount to its smallest currency unit (kuruş, cents).
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// =============================================================================
// Periodic Collection
// =============================================================================

// StartPeriodicCollection starts periodic collection of gauge metrics.
// It collects order counts every interval (default: 5 minutes).
// This is non-blocking - use Stop() to stop collection.
func (bm *BusinessMetrics) StartPeriodicCollection(ctx context.Context, interval time.Duration) {
	bm.collectOnce.Do(func() {
		if interval <= 0 {
			interval = 5 * time.Minute
		}

		go bm.runPeriodicCollection(ctx, interval)
	})
}

func (bm *BusinessMetrics) runPeriodicCollection(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Collect immediately on start
	bm.collectOrderMetrics(ctx)

	for {
		select {
		case <-bm.stopChan:
			bm.logger.Info("Stopping periodic business metrics collection")
			return
		case <-ctx.Done():
			bm.logger.Info("Context cancelled, stopping periodic business metrics collection")
			return
		case <-ticker.C:
			bm.collectOrderMetrics(ctx)
		}
	}
}

func (bm *BusinessMetrics) collectOrderMetrics(ctx context.Context) {
	if bm.orderStats == nil {
		bm.logger.Debug("No order stats provider configured, skipping order metrics collection")
		return
	}

	counts, err := bm.orderStats.CountByStatus(ctx)
	if err != nil {
		bm.logger.Warn("Failed to count orders by status", zap.Error(err))
		return
	}
	// Report zero for statuses without rows so the gauge drops back down
	for _, s := range order.AllStatuses {
		bm.ordersByStatus.Record(ctx, counts[s], AttrStatus.String(string(s)))
	}
}

// Stop stops the periodic collection.
func (bm *BusinessMetrics) Stop() {
	bm.stopOnce.Do(func() {
		close(bm.stopChan)
	})
}

// =============================================================================
// Error Types
// =============================================================================

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewBusinessMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
