// Package payment defines the port the order context uses to charge and refund
// customers.
// Concrete gateways live in the infrastructure layer.
package payment

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/printmarket/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// CaptureRequest asks the gateway to charge the customer price of an order
type CaptureRequest struct {
	OrderID     uuid.UUID
	OrderNumber string
	CustomerID  uuid.UUID
	Amount      decimal.Decimal
	Currency    string
	// IdempotencyKey lets the gateway recognise a retried capture
	IdempotencyKey string
}

// Validate checks the request before it leaves the process
func (r CaptureRequest) Validate() error {
	if r.OrderID == uuid.Nil {
		return shared.NewDomainError(shared.CodeInvalidInput, "Order ID is required for payment")
	}
	if !r.Amount.IsPositive() {
		return shared.NewDomainError(shared.CodeInvalidInput, "Payment amount must be positive")
	}
	if len(strings.TrimSpace(r.Currency)) != 3 {
		return shared.NewDomainError(shared.CodeInvalidInput, "Currency must be a 3-letter code")
	}
	return nil
}

// CaptureResult is the gateway's answer. Success false with a nil error means the
// gateway declined the charge.
type CaptureResult struct {
	Reference     string
	Success       bool
	FailureReason string
}

// RefundRequest returns money taken by an earlier capture
type RefundRequest struct {
	OrderID uuid.UUID
	// CaptureReference is the reference the gateway returned for the capture
	CaptureReference string
	Amount           decimal.Decimal
	Currency         string
	Reason           string
	IdempotencyKey   string
}

// Validate checks the request before it leaves the process
func (r RefundRequest) Validate() error {
	if strings.TrimSpace(r.CaptureReference) == "" {
		return shared.NewDomainError(shared.CodeInvalidInput, "Capture reference is required for a refund")
	}
	if !r.Amount.IsPositive() {
		return shared.NewDomainError(shared.CodeInvalidInput, "Refund amount must be positive")
	}
	if len(strings.TrimSpace(r.Currency)) != 3 {
		return shared.NewDomainError(shared.CodeInvalidInput, "Currency must be a 3-letter code")
	}
	return nil
}

// RefundResult is the gateway's answer to a refund
type RefundResult struct {
	Reference     string
	Success       bool
	FailureReason string
}

// Gateway captures and refunds payments
type Gateway interface {
	Name() string
	Capture(ctx context.Context, req CaptureRequest) (*CaptureResult, error)
	Refund(ctx context.Context, req RefundRequest) (*RefundResult, error)
}
