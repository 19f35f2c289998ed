package pricing

import (
	"context"

	"github.com/google/uuid"
)

// MaterialRepository defines persistence operations for materials
type MaterialRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Material, error)
	FindActive(ctx context.Context) ([]Material, error)
	Save(ctx context.Context, material *Material) error
}

// ProducerRatesRepository defines persistence operations for producer rates
type ProducerRatesRepository interface {
	// FindByProducer returns shared.ErrNotFound when the producer never saved rates
	FindByProducer(ctx context.Context, producerID uuid.UUID) (*ProducerRates, error)
	Save(ctx context.Context, rates *ProducerRates) error
}
