package order

import (
	"time"

	"github.com/google/uuid"
	"github.com/printmarket/backend/internal/domain/order"
	"github.com/printmarket/backend/internal/domain/pricing"
	"github.com/shopspring/decimal"
)

// CreateOrderRequest represents a request to start a draft order
type CreateOrderRequest struct {
	ProductID       uuid.UUID  `json:"product_id" binding:"required"`
	MaterialID      uuid.UUID  `json:"material_id" binding:"required"`
	ProducerID      *uuid.UUID `json:"producer_id"`
	Quantity        int        `json:"quantity" binding:"omitempty,min=1,max=1000"`
	Notes           string     `json:"notes" binding:"max=2000"`
	SupportRequired *bool      `json:"support_required"`
}

// RequoteRequest recomputes the pricing snapshot of a draft or pending order
type RequoteRequest struct {
	SupportRequired *bool `json:"support_required"`
}

// ReasonRequest carries the free-text reason of a reject, cancel or dispute
type ReasonRequest struct {
	Reason string `json:"reason" binding:"max=1000"`
}

// DisputeRequest opens a dispute
type DisputeRequest struct {
	Reason string `json:"reason" binding:"required,min=1,max=1000"`
}

// ResolveDisputeRequest closes a dispute
type ResolveDisputeRequest struct {
	// Resolution is refunded, partial_refund or the status held before the dispute
	Resolution   string          `json:"resolution" binding:"required"`
	RefundAmount decimal.Decimal `json:"refund_amount"`
	Note         string          `json:"note" binding:"max=1000"`
}

// AcceptRequest carries the producer's terms. Both fields are optional.
type AcceptRequest struct {
	DeliveryETADays int    `json:"delivery_eta_days" binding:"omitempty,min=1,max=90"`
	Notes           string `json:"notes" binding:"max=2000"`
}

// ConfirmRequest optionally rates the producer while confirming delivery
type ConfirmRequest struct {
	Rating     int    `json:"rating" binding:"omitempty,min=1,max=5"`
	ReviewText string `json:"review_text" binding:"max=2000"`
}

// ShippingRequest sets the delivery address and method of an order
type ShippingRequest struct {
	Address order.Address   `json:"address" binding:"required"`
	Method  string          `json:"method" binding:"max=30"`
	Fee     decimal.Decimal `json:"fee"`
}

// TrackingRequest records the parcel's tracking number
type TrackingRequest struct {
	TrackingNumber string `json:"tracking_number" binding:"required,max=100"`
	Carrier        string `json:"carrier" binding:"max=50"`
}

// ShippingResponse is the delivery part of an order
type ShippingResponse struct {
	Address order.Address   `json:"address"`
	Method  string          `json:"method"`
	Fee     decimal.Decimal `json:"fee"`
}

// ShipmentResponse is the tracking part of an order
type ShipmentResponse struct {
	TrackingNumber string    `json:"tracking_number"`
	Carrier        string    `json:"carrier"`
	Status         string    `json:"status"`
	ShippedAt      time.Time `json:"shipped_at"`
}

// ReviewResponse is the customer's rating of the order
type ReviewResponse struct {
	Rating     int       `json:"rating"`
	Text       string    `json:"text,omitempty"`
	ReviewedAt time.Time `json:"reviewed_at"`
}

// ListOrdersRequest filters an order listing
type ListOrdersRequest struct {
	Status   string `form:"status" binding:"omitempty"`
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// OrderResponse represents an order in API responses
type OrderResponse struct {
	ID           uuid.UUID  `json:"id"`
	OrderNumber  string     `json:"order_number"`
	CustomerID   uuid.UUID  `json:"customer_id"`
	ProducerID   *uuid.UUID `json:"producer_id,omitempty"`
	ProductID    uuid.UUID  `json:"product_id"`
	MaterialID   uuid.UUID  `json:"material_id"`
	MaterialName string     `json:"material_name"`
	Quantity     int        `json:"quantity"`
	Notes        string     `json:"notes,omitempty"`
	Status       string     `json:"status"`

	Pricing            *pricing.Result  `json:"pricing,omitempty"`
	CustomerPrice      *decimal.Decimal `json:"customer_price,omitempty"`
	ProducerEarnings   *decimal.Decimal `json:"producer_earnings,omitempty"`
	PlatformCommission *decimal.Decimal `json:"platform_commission,omitempty"`
	PaymentFee         *decimal.Decimal `json:"payment_fee,omitempty"`

	SubmittedAt         *time.Time `json:"submitted_at,omitempty"`
	AcceptedAt          *time.Time `json:"accepted_at,omitempty"`
	PaidAt              *time.Time `json:"paid_at,omitempty"`
	ProductionStartedAt *time.Time `json:"production_started_at,omitempty"`
	ProducerCompletedAt *time.Time `json:"producer_completed_at,omitempty"`
	CompletedAt         *time.Time `json:"completed_at,omitempty"`
	CancelledAt         *time.Time `json:"cancelled_at,omitempty"`
	RejectedAt          *time.Time `json:"rejected_at,omitempty"`
	DisputeOpenedAt     *time.Time `json:"dispute_opened_at,omitempty"`
	DisputeResolvedAt   *time.Time `json:"dispute_resolved_at,omitempty"`

	CancelReason      string           `json:"cancel_reason,omitempty"`
	RejectReason      string           `json:"reject_reason,omitempty"`
	DisputeReason     string           `json:"dispute_reason,omitempty"`
	DisputeResolution string           `json:"dispute_resolution,omitempty"`
	RefundAmount      *decimal.Decimal `json:"refund_amount,omitempty"`
	PaymentReference  string           `json:"payment_reference,omitempty"`

	DeliveryETADays int               `json:"delivery_eta_days,omitempty"`
	ProducerNotes   string            `json:"producer_notes,omitempty"`
	Shipping        *ShippingResponse `json:"shipping,omitempty"`
	Shipment        *ShipmentResponse `json:"shipment,omitempty"`
	Review          *ReviewResponse   `json:"review,omitempty"`

	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsParty reports whether userID is the customer or the assigned producer
func (r OrderResponse) IsParty(userID uuid.UUID) bool {
	return r.CustomerID == userID || (r.ProducerID != nil && *r.ProducerID == userID)
}

// ToOrderResponse converts a domain order to a response
func ToOrderResponse(o *order.Order) OrderResponse {
	resp := OrderResponse{
		ID:                  o.ID,
		OrderNumber:         o.OrderNumber,
		CustomerID:          o.CustomerID,
		ProducerID:          o.ProducerID,
		ProductID:           o.ProductID,
		MaterialID:          o.MaterialID,
		MaterialName:        o.MaterialName,
		Quantity:            o.Quantity,
		Notes:               o.Notes,
		Status:              string(o.Status),
		Pricing:             o.Pricing,
		SubmittedAt:         o.SubmittedAt,
		AcceptedAt:          o.AcceptedAt,
		PaidAt:              o.PaidAt,
		ProductionStartedAt: o.ProductionStartedAt,
		ProducerCompletedAt: o.ProducerCompletedAt,
		CompletedAt:         o.CompletedAt,
		CancelledAt:         o.CancelledAt,
		RejectedAt:          o.RejectedAt,
		DisputeOpenedAt:     o.DisputeOpenedAt,
		DisputeResolvedAt:   o.DisputeResolvedAt,
		CancelReason:        o.CancelReason,
		RejectReason:        o.RejectReason,
		DisputeReason:       o.DisputeReason,
		DisputeResolution:   string(o.DisputeResolution),
		RefundAmount:        o.RefundAmount,
		PaymentReference:    o.PaymentReference,
		DeliveryETADays:     o.DeliveryETADays,
		ProducerNotes:       o.ProducerNotes,
		Version:             o.Version,
		CreatedAt:           o.CreatedAt,
		UpdatedAt:           o.UpdatedAt,
	}
	if sh := o.Shipping; sh != nil {
		resp.Shipping = &ShippingResponse{Address: sh.Address, Method: sh.Method, Fee: sh.Fee}
	}
	if sm := o.Shipment; sm != nil {
		resp.Shipment = &ShipmentResponse{
			TrackingNumber: sm.TrackingNumber,
			Carrier:        sm.Carrier,
			Status:         sm.Status,
			ShippedAt:      sm.ShippedAt,
		}
	}
	if r := o.Review; r != nil {
		resp.Review = &ReviewResponse{Rating: r.Rating, Text: r.Text, ReviewedAt: r.ReviewedAt}
	}
	if p := o.Pricing; p != nil {
		customer, earnings := p.CustomerTotal, p.ProducerEarnings
		commission, fee := p.PlatformCommission, p.PaymentFee
		resp.CustomerPrice = &customer
		resp.ProducerEarnings = &earnings
		resp.PlatformCommission = &commission
		resp.PaymentFee = &fee
	}
	return resp
}

// ToOrderResponses converts a slice of orders
func ToOrderResponses(orders []order.Order) []OrderResponse {
	out := make([]OrderResponse, len(orders))
	for i := range orders {
		out[i] = ToOrderResponse(&orders[i])
	}
	return out
}
