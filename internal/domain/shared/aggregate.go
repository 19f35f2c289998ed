package shared

// BaseAggregateRoot is embedded by aggregates saved with compare-and-swap on
// Version. Events recorded between load and save are written to the outbox in
// the same transaction as the row.
type BaseAggregateRoot struct {
	BaseEntity
	Version int `gorm:"not null;default:1"`
	pending []DomainEvent
}

// NewBaseAggregateRoot starts a new aggregate at version 1
func NewBaseAggregateRoot() BaseAggregateRoot {
	return BaseAggregateRoot{BaseEntity: NewBaseEntity(), Version: 1}
}

// AddDomainEvent records an event for the next save
func (a *BaseAggregateRoot) AddDomainEvent(event DomainEvent) {
	a.pending = append(a.pending, event)
}

// GetDomainEvents returns the events recorded since the last save
func (a *BaseAggregateRoot) GetDomainEvents() []DomainEvent {
	return a.pending
}

// ClearDomainEvents forgets the recorded events once they are stored
func (a *BaseAggregateRoot) ClearDomainEvents() {
	a.pending = nil
}
