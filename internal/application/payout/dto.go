package payout

import (
	"time"

	"github.com/google/uuid"
	"github.com/printmarket/backend/internal/domain/payout"
	"github.com/shopspring/decimal"
)

// ListPayoutsRequest filters the payout listing. ProducerID is honoured for admins only.
type ListPayoutsRequest struct {
	ProducerID string `form:"producer_id" binding:"omitempty,uuid"`
	Page       int    `form:"page" binding:"omitempty,min=1"`
	PageSize   int    `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// PayoutResponse represents a payout in API responses
type PayoutResponse struct {
	ID              uuid.UUID       `json:"id"`
	OrderID         uuid.UUID       `json:"order_id"`
	ProducerID      uuid.UUID       `json:"producer_id"`
	Gross           decimal.Decimal `json:"gross"`
	RefundDeduction decimal.Decimal `json:"refund_deduction"`
	Commission      decimal.Decimal `json:"commission"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	Status          string          `json:"status"`
	ScheduledFor    time.Time       `json:"scheduled_for"`
	CreatedAt       time.Time       `json:"created_at"`
}

// ToPayoutResponse converts a domain payout to a response
func ToPayoutResponse(p *payout.Payout) PayoutResponse {
	return PayoutResponse{
		ID:              p.ID,
		OrderID:         p.OrderID,
		ProducerID:      p.ProducerID,
		Gross:           p.Gross,
		RefundDeduction: p.RefundDeduction,
		Commission:      p.Commission,
		Amount:          p.Amount,
		Currency:        p.Currency,
		Status:          string(p.Status),
		ScheduledFor:    p.ScheduledFor,
		CreatedAt:       p.CreatedAt,
	}
}
