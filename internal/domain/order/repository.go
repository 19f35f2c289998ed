package order

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/printmarket/backend/internal/domain/shared"
)

// Filter keys understood by Repository.FindAll
const (
	FilterStatus     = "status"
	FilterCustomerID = "customer_id"
	FilterProducerID = "producer_id"
	// FilterVisibleTo limits results to orders a producer is assigned to or can pick
	// from the pool
	FilterVisibleTo = "visible_to_producer"
	// FilterPoolMaterials restricts pool listings to the given material IDs
	FilterPoolMaterials = "pool_materials"
)

// Repository defines the interface for order persistence
type Repository interface {
	// FindByID finds an order by ID; returns shared.ErrNotFound when missing
	FindByID(ctx context.Context, id uuid.UUID) (*Order, error)

	// FindByOrderNumber finds an order by its human readable number
	FindByOrderNumber(ctx context.Context, orderNumber string) (*Order, error)

	// FindAll lists orders matching the filter, newest first by default
	FindAll(ctx context.Context, filter shared.Filter) ([]Order, int64, error)

	// FindPool lists pending orders that no producer has accepted yet
	FindPool(ctx context.Context, filter shared.Filter) ([]Order, int64, error)

	// FindUnpaidBefore lists pending and accepted orders created before cutoff,
	// oldest first, at most limit of them
	FindUnpaidBefore(ctx context.Context, cutoff time.Time, limit int) ([]Order, error)

	// Create inserts a new order and its pending events in one transaction
	Create(ctx context.Context, o *Order) error

	// SaveWithLockAndEvents persists the order only if its stored version still
	// equals o.Version, bumps the version, and writes events to the outbox in the
	// same transaction. Returns shared.ErrConcurrencyConflict when another writer won.
	SaveWithLockAndEvents(ctx context.Context, o *Order, events []shared.DomainEvent) error

	// CountByStatus returns order counts per status
	CountByStatus(ctx context.Context) (map[Status]int64, error)
}
