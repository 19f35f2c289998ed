package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/printmarket/backend/internal/domain/order"
	"github.com/printmarket/backend/internal/domain/shared"
	"github.com/printmarket/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// OrderSortFields contains allowed sort fields for orders
var OrderSortFields = map[string]bool{
	"created_at":     true,
	"updated_at":     true,
	"order_number":   true,
	"status":         true,
	"customer_price": true,
}

// GormOrderRepository implements order.Repository using GORM
type GormOrderRepository struct {
	db          *gorm.DB
	outboxSaver shared.OutboxEventSaver
	notifier    shared.OutboxNotifier
}

// NewGormOrderRepository creates a new GormOrderRepository
func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// SetOutboxEventSaver sets the saver used to write events in the aggregate transaction
func (r *GormOrderRepository) SetOutboxEventSaver(saver shared.OutboxEventSaver) {
	r.outboxSaver = saver
}

// SetOutboxNotifier sets the notifier poked after a commit that wrote events
func (r *GormOrderRepository) SetOutboxNotifier(n shared.OutboxNotifier) {
	r.notifier = n
}

// FindByID finds an order by its ID
func (r *GormOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	var model models.OrderModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain()
}

// FindByOrderNumber finds an order by its order number
func (r *GormOrderRepository) FindByOrderNumber(ctx context.Context, orderNumber string) (*order.Order, error) {
	var model models.OrderModel
	if err := r.db.WithContext(ctx).First(&model, "order_number = ?", orderNumber).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain()
}

// FindAll lists orders matching the filter
func (r *GormOrderRepository) FindAll(ctx context.Context, filter shared.Filter) ([]order.Order, int64, error) {
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.OrderModel{}), filter)
	return r.list(query, filter)
}

// FindPool lists pending orders without an assigned producer
func (r *GormOrderRepository) FindPool(ctx context.Context, filter shared.Filter) ([]order.Order, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.OrderModel{}).
		Where("status = ? AND producer_id IS NULL", order.StatusPending)
	if materials, ok := filter.Filters[order.FilterPoolMaterials].([]uuid.UUID); ok && len(materials) > 0 {
		query = query.Where("material_id IN ?", materials)
	}
	return r.list(query, filter)
}

// FindUnpaidBefore implements order.Repository
func (r *GormOrderRepository) FindUnpaidBefore(ctx context.Context, cutoff time.Time, limit int) ([]order.Order, error) {
	var rows []models.OrderModel
	err := r.db.WithContext(ctx).
		Where("status IN ? AND created_at < ?", []string{string(order.StatusPending), string(order.StatusAccepted)}, cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	orders := make([]order.Order, 0, len(rows))
	for i := range rows {
		o, err := rows[i].ToDomain()
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	return orders, nil
}

func (r *GormOrderRepository) list(query *gorm.DB, filter shared.Filter) ([]order.Order, int64, error) {
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	sortField := ValidateSortField(filter.OrderBy, OrderSortFields, "created_at")
	sortOrder := ValidateSortOrder(filter.OrderDir)
	query = query.Order(sortField + " " + sortOrder).Order("id " + sortOrder)
	if filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}

	var rows []models.OrderModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	orders := make([]order.Order, 0, len(rows))
	for i := range rows {
		o, err := rows[i].ToDomain()
		if err != nil {
			return nil, 0, err
		}
		orders = append(orders, *o)
	}
	return orders, total, nil
}

func (r *GormOrderRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	for key, value := range filter.Filters {
		switch key {
		case order.FilterStatus:
			query = query.Where("status = ?", value)
		case order.FilterCustomerID:
			query = query.Where("customer_id = ?", value)
		case order.FilterProducerID:
			query = query.Where("producer_id = ?", value)
		case order.FilterVisibleTo:
			pool := r.db.Where("producer_id IS NULL AND status = ?", order.StatusPending)
			if materials, ok := filter.Filters[order.FilterPoolMaterials].([]uuid.UUID); ok && len(materials) > 0 {
				pool = pool.Where("material_id IN ?", materials)
			}
			query = query.Where(r.db.Where("producer_id = ?", value).Or(pool))
		}
	}
	return query
}

// Create inserts a new order and writes its pending events to the outbox
func (r *GormOrderRepository) Create(ctx context.Context, o *order.Order) error {
	model, err := models.OrderModelFromDomain(o)
	if err != nil {
		return err
	}
	events := o.GetDomainEvents()

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(model).Error; err != nil {
			return err
		}
		return r.saveEvents(ctx, tx, events)
	})
	if err != nil {
		return err
	}
	r.notify(events)
	return nil
}

// SaveWithLockAndEvents writes the order with a compare-and-swap on its version and,
// for status changes, on the status the change started from. Events go to the outbox
// in the same transaction.
func (r *GormOrderRepository) SaveWithLockAndEvents(ctx context.Context, o *order.Order, events []shared.DomainEvent) error {
	expectedVersion := o.Version
	model, err := models.OrderModelFromDomain(o)
	if err != nil {
		return err
	}
	model.Version = expectedVersion + 1

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		query := tx.Model(&models.OrderModel{}).Where("id = ? AND version = ?", o.ID, expectedVersion)
		if from, ok := fromStatus(events); ok {
			query = query.Where("status = ?", from)
		}

		result := query.Updates(model.UpdateColumns())
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&models.OrderModel{}).Where("id = ?", o.ID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return shared.ErrNotFound
			}
			return shared.ErrConcurrencyConflict
		}

		return r.saveEvents(ctx, tx, events)
	})
	if err != nil {
		return err
	}

	o.Version = model.Version
	r.notify(events)
	return nil
}

// CountByStatus returns order counts per status
func (r *GormOrderRepository) CountByStatus(ctx context.Context) (map[order.Status]int64, error) {
	type statusCount struct {
		Status order.Status
		Count  int64
	}

	var results []statusCount
	if err := r.db.WithContext(ctx).
		Model(&models.OrderModel{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&results).Error; err != nil {
		return nil, err
	}

	counts := make(map[order.Status]int64, len(results))
	for _, c := range results {
		counts[c.Status] = c.Count
	}
	return counts, nil
}

func (r *GormOrderRepository) saveEvents(ctx context.Context, tx *gorm.DB, events []shared.DomainEvent) error {
	if r.outboxSaver == nil || len(events) == 0 {
		return nil
	}
	return r.outboxSaver.SaveEvents(ctx, tx, events...)
}

func (r *GormOrderRepository) notify(events []shared.DomainEvent) {
	if r.notifier != nil && r.outboxSaver != nil && len(events) > 0 {
		r.notifier.Notify()
	}
}

// fromStatus returns the status the first transition in events started from
func fromStatus(events []shared.DomainEvent) (order.Status, bool) {
	for _, e := range events {
		if t, ok := e.(*order.OrderTransitionedEvent); ok {
			return t.FromStatus, true
		}
	}
	return "", false
}

var _ order.Repository = (*GormOrderRepository)(nil)
