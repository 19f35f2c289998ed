package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/printmarket/backend/internal/domain/payout"
	"github.com/printmarket/backend/internal/domain/shared"
	"github.com/printmarket/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormPayoutRepository implements payout.Repository using GORM
type GormPayoutRepository struct {
	db *gorm.DB
}

// NewGormPayoutRepository creates a new GormPayoutRepository
func NewGormPayoutRepository(db *gorm.DB) *GormPayoutRepository {
	return &GormPayoutRepository{db: db}
}

// Upsert inserts the payout or rewrites the amounts and status of the order's
// existing one
func (r *GormPayoutRepository) Upsert(ctx context.Context, p *payout.Payout) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "order_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"gross", "refund_deduction", "commission", "amount", "status", "updated_at",
			}),
		}).
		Create(models.PayoutModelFromDomain(p)).Error
}

// FindByOrder finds the payout of an order
func (r *GormPayoutRepository) FindByOrder(ctx context.Context, orderID uuid.UUID) (*payout.Payout, error) {
	var model models.PayoutModel
	if err := r.db.WithContext(ctx).First(&model, "order_id = ?", orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// List returns payouts, latest scheduled first
func (r *GormPayoutRepository) List(ctx context.Context, producerID *uuid.UUID, filter shared.Filter) ([]payout.Payout, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.PayoutModel{})
	if producerID != nil {
		query = query.Where("producer_id = ?", *producerID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = query.Order("scheduled_for DESC").Order("id DESC")
	if filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}

	var rows []models.PayoutModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	items := make([]payout.Payout, len(rows))
	for i := range rows {
		items[i] = *rows[i].ToDomain()
	}
	return items, total, nil
}

var _ payout.Repository = (*GormPayoutRepository)(nil)
