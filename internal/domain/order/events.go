package order

import (
	"time"

	"github.com/google/uuid"
	"github.com/printmarket/backend/internal/domain/identity"
	"github.com/printmarket/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Aggregate type constant
const AggregateTypeOrder = "Order"

// Event type constants
const (
	EventTypeOrderCreated      = "OrderCreated"
	EventTypeOrderTransitioned = "OrderTransitioned"
	EventTypeShipmentRecorded  = "ShipmentRecorded"
)

// OrderCreatedEvent is raised when a customer starts a draft order
type OrderCreatedEvent struct {
	shared.BaseDomainEvent
	OrderID     uuid.UUID  `json:"order_id"`
	OrderNumber string     `json:"order_number"`
	CustomerID  uuid.UUID  `json:"customer_id"`
	ProducerID  *uuid.UUID `json:"producer_id,omitempty"`
	ProductID   uuid.UUID  `json:"product_id"`
}

// NewOrderCreatedEvent creates a new OrderCreatedEvent
func NewOrderCreatedEvent(o *Order) *OrderCreatedEvent {
	return &OrderCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeOrderCreated, AggregateTypeOrder, o.ID),
		OrderID:         o.ID,
		OrderNumber:     o.OrderNumber,
		CustomerID:      o.CustomerID,
		ProducerID:      copyID(o.ProducerID),
		ProductID:       o.ProductID,
	}
}

// EventType returns the event type name
func (e *OrderCreatedEvent) EventType() string {
	return EventTypeOrderCreated
}

// OrderTransitionedEvent is raised for every accepted status change. It carries
// enough of the order for handlers to address both parties without reloading it.
type OrderTransitionedEvent struct {
	shared.BaseDomainEvent
	OrderID       uuid.UUID        `json:"order_id"`
	OrderNumber   string           `json:"order_number"`
	CustomerID    uuid.UUID        `json:"customer_id"`
	ProducerID    *uuid.UUID       `json:"producer_id,omitempty"`
	FromStatus    Status           `json:"from_status"`
	ToStatus      Status           `json:"to_status"`
	ActorID       uuid.UUID        `json:"actor_id"`
	ActorRole     identity.Role    `json:"actor_role"`
	Reason        string           `json:"reason,omitempty"`
	CustomerPrice *decimal.Decimal `json:"customer_price,omitempty"`
	// DeliveryETADays is set on acceptance
	DeliveryETADays int `json:"delivery_eta_days,omitempty"`
}

// NewOrderTransitionedEvent creates a new OrderTransitionedEvent
func NewOrderTransitionedEvent(o *Order, from Status, actor identity.Actor, reason string) *OrderTransitionedEvent {
	e := &OrderTransitionedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeOrderTransitioned, AggregateTypeOrder, o.ID),
		OrderID:         o.ID,
		OrderNumber:     o.OrderNumber,
		CustomerID:      o.CustomerID,
		ProducerID:      copyID(o.ProducerID),
		FromStatus:      from,
		ToStatus:        o.Status,
		ActorID:         actor.UserID,
		ActorRole:       actor.Role,
		Reason:          reason,
	}
	if o.Pricing != nil {
		price := o.Pricing.CustomerTotal
		e.CustomerPrice = &price
	}
	if o.Status == StatusAccepted {
		e.DeliveryETADays = o.DeliveryETADays
	}
	return e
}

// EventType returns the event type name
func (e *OrderTransitionedEvent) EventType() string {
	return EventTypeOrderTransitioned
}

// ShipmentRecordedEvent is raised when the producer hands the parcel to a carrier
type ShipmentRecordedEvent struct {
	shared.BaseDomainEvent
	OrderID        uuid.UUID     `json:"order_id"`
	OrderNumber    string        `json:"order_number"`
	CustomerID     uuid.UUID     `json:"customer_id"`
	ProducerID     *uuid.UUID    `json:"producer_id,omitempty"`
	TrackingNumber string        `json:"tracking_number"`
	Carrier        string        `json:"carrier"`
	ShippedAt      time.Time     `json:"shipped_at"`
	ActorID        uuid.UUID     `json:"actor_id"`
	ActorRole      identity.Role `json:"actor_role"`
}

// NewShipmentRecordedEvent creates a ShipmentRecordedEvent from the order's shipment
func NewShipmentRecordedEvent(o *Order, actor identity.Actor) *ShipmentRecordedEvent {
	return &ShipmentRecordedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeShipmentRecorded, AggregateTypeOrder, o.ID),
		OrderID:         o.ID,
		OrderNumber:     o.OrderNumber,
		CustomerID:      o.CustomerID,
		ProducerID:      copyID(o.ProducerID),
		TrackingNumber:  o.Shipment.TrackingNumber,
		Carrier:         o.Shipment.Carrier,
		ShippedAt:       o.Shipment.ShippedAt,
		ActorID:         actor.UserID,
		ActorRole:       actor.Role,
	}
}

// EventType returns the event type name
func (e *ShipmentRecordedEvent) EventType() string {
	return EventTypeShipmentRecorded
}

func copyID(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
