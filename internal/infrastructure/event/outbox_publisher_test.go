package event

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/printmarket/backend/internal/domain/order"
	"github.com/printmarket/backend/internal/domain/shared"
	"github.com/printmarket/backend/internal/infrastructure/persistence/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestPublisher() *OutboxPublisher {
	s := NewEventSerializer()
	s.Register("TestEvent", &testEvent{})
	return NewOutboxPublisher(s)
}

func TestOutboxPublisher_SaveEvents(t *testing.T) {
	db := setupOutboxDB(t)
	publisher := newTestPublisher()
	ctx := context.Background()
	aggregateID := uuid.New()

	events := []shared.DomainEvent{
		newTestEvent("TestEvent", aggregateID),
		newTestEvent("TestEvent", aggregateID),
		newTestEvent("TestEvent", aggregateID),
	}
	err := db.Transaction(func(tx *gorm.DB) error {
		return publisher.SaveEvents(ctx, tx, events...)
	})
	require.NoError(t, err)

	pending, err := NewGormOutboxRepository(db).FindPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 3)
	for i, entry := range pending {
		assert.Equal(t, events[i].EventID(), entry.EventID, "stored in emission order")
		assert.Equal(t, shared.OutboxStatusPending, entry.Status)
		if i > 0 {
			assert.True(t, entry.CreatedAt.After(pending[i-1].CreatedAt), "created_at strictly increases")
		}
	}
}

func TestOutboxPublisher_MaxRetries(t *testing.T) {
	db := setupOutboxDB(t)
	publisher := newTestPublisher()
	publisher.SetMaxRetries(8)
	ctx := context.Background()

	err := db.Transaction(func(tx *gorm.DB) error {
		return publisher.SaveEvents(ctx, tx, newTestEvent("TestEvent", uuid.New()))
	})
	require.NoError(t, err)

	pending, err := NewGormOutboxRepository(db).FindPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 8, pending[0].MaxRetries)
}

func TestOutboxPublisher_RollbackDiscardsEntries(t *testing.T) {
	db := setupOutboxDB(t)
	publisher := newTestPublisher()
	ctx := context.Background()

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := publisher.SaveEvents(ctx, tx, newTestEvent("TestEvent", uuid.New())); err != nil {
			return err
		}
		return errors.New("aggregate update failed")
	})
	require.Error(t, err)

	var count int64
	require.NoError(t, db.Model(&models.OutboxEntryModel{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestOutboxPublisher_Errors(t *testing.T) {
	publisher := newTestPublisher()
	ctx := context.Background()

	t.Run("no events is a no-op", func(t *testing.T) {
		assert.NoError(t, publisher.SaveEvents(ctx, nil))
	})

	t.Run("tx provider must be gorm", func(t *testing.T) {
		err := publisher.SaveEvents(ctx, "not a tx", newTestEvent("TestEvent", uuid.New()))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "*gorm.DB")
	})

	t.Run("unregistered event type", func(t *testing.T) {
		db := setupOutboxDB(t)
		err := publisher.SaveEvents(ctx, db, newTestEvent("Unknown", uuid.New()))
		require.Error(t, err)
	})
}

func TestOutboxPublisher_OrderEvents(t *testing.T) {
	db := setupOutboxDB(t)
	publisher := NewOutboxPublisher(NewRegisteredSerializer())
	ctx := context.Background()

	o, err := order.NewOrder(uuid.New(), uuid.New(), uuid.New(), "PLA Black", 1, nil, "")
	require.NoError(t, err)

	require.NoError(t, publisher.SaveEvents(ctx, db, o.GetDomainEvents()...))

	pending, err := NewGormOutboxRepository(db).FindPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, order.EventTypeOrderCreated, pending[0].EventType)
	assert.Equal(t, order.AggregateTypeOrder, pending[0].AggregateType)
	assert.Equal(t, o.ID, pending[0].AggregateID)
}
