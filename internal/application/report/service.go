// Package report serves the admin dashboard figures.
package report

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/printmarket/backend/internal/domain/identity"
	"github.com/printmarket/backend/internal/domain/order"
	"github.com/printmarket/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	DefaultWindowDays = 30
	MaxWindowDays     = 365
	// TopListSize caps the material and producer rankings
	TopListSize = 10
)

// Revenue sums money taken for orders paid inside the window
type Revenue struct {
	Gross      decimal.Decimal
	Refunds    decimal.Decimal
	Commission decimal.Decimal
	Payouts    decimal.Decimal
}

// MaterialUsage counts orders placed with one material
type MaterialUsage struct {
	Name   string
	Orders int64
}

// ProducerStanding ranks a producer by finished orders
type ProducerStanding struct {
	ProducerID    uuid.UUID
	Orders        int64
	Confirmed     int64
	AverageRating float64
	Ratings       int64
}

// StatsReader runs the aggregate queries behind the dashboard
type StatsReader interface {
	CountByStatus(ctx context.Context) (map[order.Status]int64, error)
	CountCreatedSince(ctx context.Context, since time.Time) (int64, error)
	RevenueSince(ctx context.Context, since time.Time) (*Revenue, error)
	TopMaterials(ctx context.Context, since time.Time, limit int) ([]MaterialUsage, error)
	TopProducers(ctx context.Context, since time.Time, limit int) ([]ProducerStanding, error)
}

// Service builds the admin statistics
type Service struct {
	stats  StatsReader
	now    func() time.Time
	logger *zap.Logger
}

// NewService creates a new report Service
func NewService(stats StatsReader, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{stats: stats, now: time.Now, logger: logger}
}

// Stats returns platform figures over the last req.Days days. Status counts
// cover every order ever placed.
func (s *Service) Stats(ctx context.Context, actor identity.Actor, req StatsRequest) (*StatsResponse, error) {
	if !actor.IsAdmin() {
		return nil, shared.ErrForbidden
	}
	days := req.Days
	if days == 0 {
		days = DefaultWindowDays
	}
	if days < 1 || days > MaxWindowDays {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Window must be between 1 and 365 days")
	}
	now := s.now()
	since := now.AddDate(0, 0, -days)

	counts, err := s.stats.CountByStatus(ctx)
	if err != nil {
		return nil, s.fail("count orders by status", err)
	}
	created, err := s.stats.CountCreatedSince(ctx, since)
	if err != nil {
		return nil, s.fail("count recent orders", err)
	}
	revenue, err := s.stats.RevenueSince(ctx, since)
	if err != nil {
		return nil, s.fail("sum revenue", err)
	}
	materials, err := s.stats.TopMaterials(ctx, since, TopListSize)
	if err != nil {
		return nil, s.fail("rank materials", err)
	}
	producers, err := s.stats.TopProducers(ctx, since, TopListSize)
	if err != nil {
		return nil, s.fail("rank producers", err)
	}

	resp := &StatsResponse{
		WindowDays:     days,
		Since:          since,
		GeneratedAt:    now,
		OrdersByStatus: make(map[string]int64, len(counts)),
		OrdersInWindow: created,
		Revenue: RevenueResponse{
			Gross:      revenue.Gross,
			Refunds:    revenue.Refunds,
			Net:        revenue.Gross.Sub(revenue.Refunds),
			Commission: revenue.Commission,
			Payouts:    revenue.Payouts,
		},
		TopMaterials: make([]MaterialUsageResponse, len(materials)),
		TopProducers: make([]ProducerStandingResponse, len(producers)),
	}
	for status, n := range counts {
		resp.OrdersByStatus[string(status)] = n
		resp.TotalOrders += n
	}
	for i, m := range materials {
		resp.TopMaterials[i] = MaterialUsageResponse{Name: m.Name, Orders: m.Orders}
	}
	for i, p := range producers {
		resp.TopProducers[i] = ProducerStandingResponse{
			ProducerID:    p.ProducerID,
			Orders:        p.Orders,
			Confirmed:     p.Confirmed,
			AverageRating: p.AverageRating,
			Ratings:       p.Ratings,
		}
	}
	return resp, nil
}

func (s *Service) fail(what string, err error) error {
	s.logger.Error("Failed to build admin stats", zap.String("step", what), zap.Error(err))
	return err
}
