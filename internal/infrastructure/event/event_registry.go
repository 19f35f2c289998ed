package event

import (
	"github.com/printmarket/backend/internal/domain/message"
	"github.com/printmarket/backend/internal/domain/order"
)

// RegisterAllEvents registers every domain event type with the serializer so the
// outbox processor can decode stored payloads.
func RegisterAllEvents(serializer *EventSerializer) {
	serializer.Register(order.EventTypeOrderCreated, &order.OrderCreatedEvent{})
	serializer.Register(order.EventTypeOrderTransitioned, &order.OrderTransitionedEvent{})
	serializer.Register(order.EventTypeShipmentRecorded, &order.ShipmentRecordedEvent{})
	serializer.Register(message.EventTypeMessageSent, &message.MessageSentEvent{})
}

// NewRegisteredSerializer returns a serializer with all domain events registered
func NewRegisteredSerializer() *EventSerializer {
	s := NewEventSerializer()
	RegisterAllEvents(s)
	return s
}
