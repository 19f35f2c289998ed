package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/printmarket/backend/internal/domain/order"
	"github.com/printmarket/backend/internal/domain/pricing"
	"github.com/shopspring/decimal"
)

// OrderModel is the persistence model for the Order aggregate root. The pricing
// snapshot is kept whole in PricingData; the flattened amounts exist for listing
// and reporting queries and are written from the same snapshot.
type OrderModel struct {
	AggregateModel
	OrderNumber  string       `gorm:"type:varchar(50);not null;uniqueIndex"`
	CustomerID   uuid.UUID    `gorm:"type:uuid;not null;index"`
	ProducerID   *uuid.UUID   `gorm:"type:uuid;index"`
	ProductID    uuid.UUID    `gorm:"type:uuid;not null"`
	MaterialID   uuid.UUID    `gorm:"type:uuid;not null;index"`
	MaterialName string       `gorm:"type:varchar(100)"`
	Quantity     int          `gorm:"not null;default:1"`
	Notes        string       `gorm:"type:text"`
	Status       order.Status `gorm:"type:varchar(30);not null;default:'draft';index"`

	PricingData        []byte           `gorm:"type:jsonb"`
	CustomerPrice      *decimal.Decimal `gorm:"type:decimal(10,2)"`
	ProducerEarnings   *decimal.Decimal `gorm:"type:decimal(10,2)"`
	PlatformCommission *decimal.Decimal `gorm:"type:decimal(10,2)"`
	PaymentFee         *decimal.Decimal `gorm:"type:decimal(10,2)"`

	SubmittedAt         *time.Time
	AcceptedAt          *time.Time
	PaidAt              *time.Time
	ProductionStartedAt *time.Time
	ProducerCompletedAt *time.Time
	CompletedAt         *time.Time
	CancelledAt         *time.Time
	RejectedAt          *time.Time
	DisputeOpenedAt     *time.Time
	DisputeResolvedAt   *time.Time

	CancelReason      string           `gorm:"type:varchar(500)"`
	RejectReason      string           `gorm:"type:varchar(500)"`
	DisputeReason     string           `gorm:"type:text"`
	PreDisputeStatus  order.Status     `gorm:"type:varchar(30)"`
	DisputeResolution order.Status     `gorm:"type:varchar(30)"`
	RefundAmount      *decimal.Decimal `gorm:"type:decimal(10,2)"`
	PaymentReference  string           `gorm:"type:varchar(100)"`

	DeliveryETADays *int             `gorm:"column:delivery_eta_days;type:smallint"`
	ProducerNotes   string           `gorm:"type:text"`
	ShippingAddress []byte           `gorm:"type:jsonb"`
	ShippingMethod  string           `gorm:"type:varchar(30)"`
	ShippingFee     *decimal.Decimal `gorm:"type:decimal(10,2)"`
	TrackingNumber  string           `gorm:"type:varchar(100)"`
	Carrier         string           `gorm:"type:varchar(50)"`
	ShippingStatus  string           `gorm:"type:varchar(20)"`
	ShippedAt       *time.Time
	Rating          *int   `gorm:"type:smallint"`
	ReviewText      string `gorm:"type:text"`
	ReviewedAt      *time.Time
}

// TableName returns the table name for GORM
func (OrderModel) TableName() string {
	return "orders"
}

// ToDomain converts the persistence model to a domain Order
func (m *OrderModel) ToDomain() (*order.Order, error) {
	o := &order.Order{
		OrderNumber:         m.OrderNumber,
		CustomerID:          m.CustomerID,
		ProducerID:          m.ProducerID,
		ProductID:           m.ProductID,
		MaterialID:          m.MaterialID,
		MaterialName:        m.MaterialName,
		Quantity:            m.Quantity,
		Notes:               m.Notes,
		Status:              m.Status,
		SubmittedAt:         m.SubmittedAt,
		AcceptedAt:          m.AcceptedAt,
		PaidAt:              m.PaidAt,
		ProductionStartedAt: m.ProductionStartedAt,
		ProducerCompletedAt: m.ProducerCompletedAt,
		CompletedAt:         m.CompletedAt,
		CancelledAt:         m.CancelledAt,
		RejectedAt:          m.RejectedAt,
		DisputeOpenedAt:     m.DisputeOpenedAt,
		DisputeResolvedAt:   m.DisputeResolvedAt,
		CancelReason:        m.CancelReason,
		RejectReason:        m.RejectReason,
		DisputeReason:       m.DisputeReason,
		PreDisputeStatus:    m.PreDisputeStatus,
		DisputeResolution:   m.DisputeResolution,
		RefundAmount:        m.RefundAmount,
		PaymentReference:    m.PaymentReference,
		ProducerNotes:       m.ProducerNotes,
	}
	m.PopulateAggregateRoot(&o.BaseAggregateRoot)

	if m.DeliveryETADays != nil {
		o.DeliveryETADays = *m.DeliveryETADays
	}
	if len(m.ShippingAddress) > 0 {
		info := order.ShippingInfo{Method: m.ShippingMethod}
		if err := json.Unmarshal(m.ShippingAddress, &info.Address); err != nil {
			return nil, fmt.Errorf("decode shipping address of order %s: %w", m.ID, err)
		}
		if m.ShippingFee != nil {
			info.Fee = *m.ShippingFee
		}
		o.Shipping = &info
	}
	if m.TrackingNumber != "" && m.ShippedAt != nil {
		o.Shipment = &order.Shipment{
			TrackingNumber: m.TrackingNumber,
			Carrier:        m.Carrier,
			Status:         m.ShippingStatus,
			ShippedAt:      *m.ShippedAt,
		}
	}
	if m.Rating != nil && m.ReviewedAt != nil {
		o.Review = &order.Review{Rating: *m.Rating, Text: m.ReviewText, ReviewedAt: *m.ReviewedAt}
	}

	if len(m.PricingData) > 0 {
		var snapshot pricing.Result
		if err := json.Unmarshal(m.PricingData, &snapshot); err != nil {
			return nil, fmt.Errorf("decode pricing snapshot of order %s: %w", m.ID, err)
		}
		o.Pricing = &snapshot
	}
	return o, nil
}

// FromDomain populates the persistence model from a domain Order
func (m *OrderModel) FromDomain(o *order.Order) error {
	m.FromDomainAggregateRoot(o.BaseAggregateRoot)
	m.OrderNumber = o.OrderNumber
	m.CustomerID = o.CustomerID
	m.ProducerID = o.ProducerID
	m.ProductID = o.ProductID
	m.MaterialID = o.MaterialID
	m.MaterialName = o.MaterialName
	m.Quantity = o.Quantity
	m.Notes = o.Notes
	m.Status = o.Status
	m.SubmittedAt = o.SubmittedAt
	m.AcceptedAt = o.AcceptedAt
	m.PaidAt = o.PaidAt
	m.ProductionStartedAt = o.ProductionStartedAt
	m.ProducerCompletedAt = o.ProducerCompletedAt
	m.CompletedAt = o.CompletedAt
	m.CancelledAt = o.CancelledAt
	m.RejectedAt = o.RejectedAt
	m.DisputeOpenedAt = o.DisputeOpenedAt
	m.DisputeResolvedAt = o.DisputeResolvedAt
	m.CancelReason = o.CancelReason
	m.RejectReason = o.RejectReason
	m.DisputeReason = o.DisputeReason
	m.PreDisputeStatus = o.PreDisputeStatus
	m.DisputeResolution = o.DisputeResolution
	m.RefundAmount = o.RefundAmount
	m.PaymentReference = o.PaymentReference
	m.ProducerNotes = o.ProducerNotes

	m.DeliveryETADays = nil
	if o.DeliveryETADays > 0 {
		days := o.DeliveryETADays
		m.DeliveryETADays = &days
	}

	m.ShippingAddress, m.ShippingMethod, m.ShippingFee = nil, "", nil
	if o.Shipping != nil {
		addr, err := json.Marshal(o.Shipping.Address)
		if err != nil {
			return fmt.Errorf("encode shipping address of order %s: %w", o.ID, err)
		}
		m.ShippingAddress = addr
		m.ShippingMethod = o.Shipping.Method
		m.ShippingFee = decimalPtr(o.Shipping.Fee)
	}

	m.TrackingNumber, m.Carrier, m.ShippingStatus, m.ShippedAt = "", "", "", nil
	if s := o.Shipment; s != nil {
		shippedAt := s.ShippedAt
		m.TrackingNumber, m.Carrier, m.ShippingStatus, m.ShippedAt = s.TrackingNumber, s.Carrier, s.Status, &shippedAt
	}

	m.Rating, m.ReviewText, m.ReviewedAt = nil, "", nil
	if r := o.Review; r != nil {
		rating, reviewedAt := r.Rating, r.ReviewedAt
		m.Rating, m.ReviewText, m.ReviewedAt = &rating, r.Text, &reviewedAt
	}

	m.PricingData = nil
	m.CustomerPrice, m.ProducerEarnings, m.PlatformCommission, m.PaymentFee = nil, nil, nil, nil
	if o.Pricing != nil {
		data, err := json.Marshal(o.Pricing)
		if err != nil {
			return fmt.Errorf("encode pricing snapshot of order %s: %w", o.ID, err)
		}
		m.PricingData = data
		m.CustomerPrice = decimalPtr(o.Pricing.CustomerTotal)
		m.ProducerEarnings = decimalPtr(o.Pricing.ProducerEarnings)
		m.PlatformCommission = decimalPtr(o.Pricing.PlatformCommission)
		m.PaymentFee = decimalPtr(o.Pricing.PaymentFee)
	}
	return nil
}

// UpdateColumns returns the mutable columns written by a compare-and-swap update
func (m *OrderModel) UpdateColumns() map[string]any {
	return map[string]any{
		"producer_id":           m.ProducerID,
		"notes":                 m.Notes,
		"status":                m.Status,
		"pricing_data":          m.PricingData,
		"customer_price":        m.CustomerPrice,
		"producer_earnings":     m.ProducerEarnings,
		"platform_commission":   m.PlatformCommission,
		"payment_fee":           m.PaymentFee,
		"submitted_at":          m.SubmittedAt,
		"accepted_at":           m.AcceptedAt,
		"paid_at":               m.PaidAt,
		"production_started_at": m.ProductionStartedAt,
		"producer_completed_at": m.ProducerCompletedAt,
		"completed_at":          m.CompletedAt,
		"cancelled_at":          m.CancelledAt,
		"rejected_at":           m.RejectedAt,
		"dispute_opened_at":     m.DisputeOpenedAt,
		"dispute_resolved_at":   m.DisputeResolvedAt,
		"cancel_reason":         m.CancelReason,
		"reject_reason":         m.RejectReason,
		"dispute_reason":        m.DisputeReason,
		"pre_dispute_status":    m.PreDisputeStatus,
		"dispute_resolution":    m.DisputeResolution,
		"refund_amount":         m.RefundAmount,
		"payment_reference":     m.PaymentReference,
		"delivery_eta_days":     m.DeliveryETADays,
		"producer_notes":        m.ProducerNotes,
		"shipping_address":      m.ShippingAddress,
		"shipping_method":       m.ShippingMethod,
		"shipping_fee":          m.ShippingFee,
		"tracking_number":       m.TrackingNumber,
		"carrier":               m.Carrier,
		"shipping_status":       m.ShippingStatus,
		"shipped_at":            m.ShippedAt,
		"rating":                m.Rating,
		"review_text":           m.ReviewText,
		"reviewed_at":           m.ReviewedAt,
		"version":               m.Version,
		"updated_at":            m.UpdatedAt,
	}
}

// OrderModelFromDomain creates a new persistence model from a domain Order
func OrderModelFromDomain(o *order.Order) (*OrderModel, error) {
	m := &OrderModel{}
	if err := m.FromDomain(o); err != nil {
		return nil, err
	}
	return m, nil
}

func decimalPtr(d decimal.Decimal) *decimal.Decimal {
	return &d
}
