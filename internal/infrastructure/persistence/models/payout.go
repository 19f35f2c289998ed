package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/printmarket/backend/internal/domain/payout"
	"github.com/shopspring/decimal"
)

// PayoutModel is a row of payouts. It mirrors payout.Payout field for field so
// the two convert directly.
type PayoutModel struct {
	ID              uuid.UUID       `gorm:"type:uuid;primary_key"`
	OrderID         uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex"`
	ProducerID      uuid.UUID       `gorm:"type:uuid;not null;index"`
	Gross           decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	RefundDeduction decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	Commission      decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	Amount          decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	Currency        string          `gorm:"type:varchar(3);not null"`
	Status          payout.Status   `gorm:"type:varchar(20);not null"`
	ScheduledFor    time.Time       `gorm:"not null"`
	CreatedAt       time.Time       `gorm:"not null"`
	UpdatedAt       time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (PayoutModel) TableName() string {
	return "payouts"
}

// ToDomain converts the persistence model to a domain Payout
func (m *PayoutModel) ToDomain() *payout.Payout {
	p := payout.Payout(*m)
	return &p
}

// PayoutModelFromDomain creates a persistence model from a domain Payout
func PayoutModelFromDomain(p *payout.Payout) *PayoutModel {
	m := PayoutModel(*p)
	return &m
}
