package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/printmarket/backend/internal/application/report"
	"github.com/printmarket/backend/internal/domain/order"
	"github.com/printmarket/backend/internal/domain/payout"
	"github.com/printmarket/backend/internal/infrastructure/persistence/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormStatsRepository implements report.StatsReader over the orders and
// payouts tables
type GormStatsRepository struct {
	db     *gorm.DB
	orders *GormOrderRepository
}

// NewGormStatsRepository creates a new GormStatsRepository
func NewGormStatsRepository(db *gorm.DB) *GormStatsRepository {
	return &GormStatsRepository{db: db, orders: NewGormOrderRepository(db)}
}

// CountByStatus returns order counts per status
func (r *GormStatsRepository) CountByStatus(ctx context.Context) (map[order.Status]int64, error) {
	return r.orders.CountByStatus(ctx)
}

// CountCreatedSince counts orders created at or after since
func (r *GormStatsRepository) CountCreatedSince(ctx context.Context, since time.Time) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.OrderModel{}).Where("created_at >= ?", since).Count(&n).Error
	return n, err
}

// RevenueSince sums orders paid at or after since and the payouts owed for them
func (r *GormStatsRepository) RevenueSince(ctx context.Context, since time.Time) (*report.Revenue, error) {
	var paid struct {
		Gross   decimal.Decimal
		Refunds decimal.Decimal
	}
	if err := r.db.WithContext(ctx).
		Model(&models.OrderModel{}).
		Select("COALESCE(SUM(customer_price), 0) AS gross, COALESCE(SUM(refund_amount), 0) AS refunds").
		Where("paid_at IS NOT NULL AND paid_at >= ?", since).
		Scan(&paid).Error; err != nil {
		return nil, err
	}

	var owed struct {
		Commission decimal.Decimal
		Payouts    decimal.Decimal
	}
	if err := r.db.WithContext(ctx).
		Table("payouts").
		Select("COALESCE(SUM(payouts.commission), 0) AS commission, "+
			"COALESCE(SUM(CASE WHEN payouts.status <> ? THEN payouts.amount ELSE 0 END), 0) AS payouts",
			payout.StatusCancelled).
		Joins("JOIN orders ON orders.id = payouts.order_id").
		Where("orders.paid_at IS NOT NULL AND orders.paid_at >= ?", since).
		Scan(&owed).Error; err != nil {
		return nil, err
	}

	return &report.Revenue{
		Gross:      paid.Gross,
		Refunds:    paid.Refunds,
		Commission: owed.Commission,
		Payouts:    owed.Payouts,
	}, nil
}

// TopMaterials ranks materials by orders created at or after since
func (r *GormStatsRepository) TopMaterials(ctx context.Context, since time.Time, limit int) ([]report.MaterialUsage, error) {
	var rows []struct {
		Name   string
		Orders int64
	}
	if err := r.db.WithContext(ctx).
		Model(&models.OrderModel{}).
		Select("material_name AS name, COUNT(*) AS orders").
		Where("created_at >= ?", since).
		Group("material_name").
		Order("orders DESC").Order("name").
		Limit(limit).
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]report.MaterialUsage, len(rows))
	for i, row := range rows {
		out[i] = report.MaterialUsage{Name: row.Name, Orders: row.Orders}
	}
	return out, nil
}

// TopProducers ranks producers by confirmed orders, then by orders taken, among
// orders created at or after since
func (r *GormStatsRepository) TopProducers(ctx context.Context, since time.Time, limit int) ([]report.ProducerStanding, error) {
	var rows []struct {
		ProducerID    uuid.UUID
		Orders        int64
		Confirmed     int64
		AverageRating float64
		Ratings       int64
	}
	if err := r.db.WithContext(ctx).
		Model(&models.OrderModel{}).
		Select("producer_id, COUNT(*) AS orders, "+
			"SUM(CASE WHEN status = ? THEN 1 ELSE 0 END) AS confirmed, "+
			"COALESCE(AVG(rating), 0) AS average_rating, COUNT(rating) AS ratings",
			order.StatusConfirmed).
		Where("producer_id IS NOT NULL AND created_at >= ?", since).
		Group("producer_id").
		Order("confirmed DESC").Order("orders DESC").
		Limit(limit).
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]report.ProducerStanding, len(rows))
	for i, row := range rows {
		out[i] = report.ProducerStanding(row)
	}
	return out, nil
}

var _ report.StatsReader = (*GormStatsRepository)(nil)
