package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/printmarket/backend/internal/domain/pricing"
	"github.com/printmarket/backend/internal/domain/shared"
	"github.com/printmarket/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormMaterialRepository implements pricing.MaterialRepository using GORM
type GormMaterialRepository struct {
	db *gorm.DB
}

// NewGormMaterialRepository creates a new GormMaterialRepository
func NewGormMaterialRepository(db *gorm.DB) *GormMaterialRepository {
	return &GormMaterialRepository{db: db}
}

// FindByID finds a material by ID, active or not
func (r *GormMaterialRepository) FindByID(ctx context.Context, id uuid.UUID) (*pricing.Material, error) {
	var model models.MaterialModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrMaterialNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindActive lists the materials customers can order, by name
func (r *GormMaterialRepository) FindActive(ctx context.Context) ([]pricing.Material, error) {
	var rows []models.MaterialModel
	if err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("name ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	materials := make([]pricing.Material, len(rows))
	for i := range rows {
		materials[i] = *rows[i].ToDomain()
	}
	return materials, nil
}

// Save creates or updates a material
func (r *GormMaterialRepository) Save(ctx context.Context, material *pricing.Material) error {
	return r.db.WithContext(ctx).Save(models.MaterialModelFromDomain(material)).Error
}

// GormProducerRatesRepository implements pricing.ProducerRatesRepository using GORM
type GormProducerRatesRepository struct {
	db *gorm.DB
}

// NewGormProducerRatesRepository creates a new GormProducerRatesRepository
func NewGormProducerRatesRepository(db *gorm.DB) *GormProducerRatesRepository {
	return &GormProducerRatesRepository{db: db}
}

// FindByProducer returns the producer's saved rates
func (r *GormProducerRatesRepository) FindByProducer(ctx context.Context, producerID uuid.UUID) (*pricing.ProducerRates, error) {
	var model models.ProducerRatesModel
	if err := r.db.WithContext(ctx).First(&model, "producer_id = ?", producerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain()
}

// Save upserts the producer's rates
func (r *GormProducerRatesRepository) Save(ctx context.Context, rates *pricing.ProducerRates) error {
	model, err := models.ProducerRatesModelFromDomain(rates)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "producer_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"hourly_rate", "support_flat_cost", "fixed_cost", "margin_percent",
				"min_order_amount", "supported_materials", "accepting_orders", "updated_at",
			}),
		}).
		Create(model).Error
}

var (
	_ pricing.MaterialRepository      = (*GormMaterialRepository)(nil)
	_ pricing.ProducerRatesRepository = (*GormProducerRatesRepository)(nil)
)
