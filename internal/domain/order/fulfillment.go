package order

import (
	"fmt"
	"strings"
	"time"

	"github.com/printmarket/backend/internal/domain/identity"
	"github.com/printmarket/backend/internal/domain/pricing"
	"github.com/printmarket/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

const (
	// DefaultDeliveryETADays is assumed when a producer accepts without an estimate
	DefaultDeliveryETADays = 3
	MaxDeliveryETADays     = 90

	// ManualShipping is the method and carrier recorded when none is given
	ManualShipping = "MANUAL"

	// ShipmentShipped is the only shipment status the platform records itself;
	// later carrier states are out of scope
	ShipmentShipped = "shipped"

	MinRating       = 1
	MaxRating       = 5
	MaxReviewLength = 2000
)

// AcceptTerms is what a producer commits to when accepting an order
type AcceptTerms struct {
	DeliveryETADays int
	Notes           string
}

func (t AcceptTerms) normalized() (AcceptTerms, error) {
	t.Notes = strings.TrimSpace(t.Notes)
	if t.DeliveryETADays == 0 {
		t.DeliveryETADays = DefaultDeliveryETADays
	}
	if t.DeliveryETADays < 1 || t.DeliveryETADays > MaxDeliveryETADays {
		return t, shared.NewDomainError(shared.CodeInvalidInput,
			fmt.Sprintf("Delivery estimate must be between 1 and %d days", MaxDeliveryETADays))
	}
	if len(t.Notes) > MaxNotesLength {
		return t, shared.NewDomainError(shared.CodeInvalidInput,
			fmt.Sprintf("Producer notes cannot exceed %d characters", MaxNotesLength))
	}
	return t, nil
}

// Address is where the customer wants the print delivered
type Address struct {
	RecipientName string `json:"recipient_name"`
	Phone         string `json:"phone,omitempty"`
	Line1         string `json:"line1"`
	Line2         string `json:"line2,omitempty"`
	District      string `json:"district,omitempty"`
	City          string `json:"city"`
	PostalCode    string `json:"postal_code,omitempty"`
	Country       string `json:"country"`
}

// ShippingInfo is the customer's delivery choice. Fee is informational and does
// not change the frozen pricing snapshot.
type ShippingInfo struct {
	Address Address
	Method  string
	Fee     decimal.Decimal
}

func (s ShippingInfo) normalized() (ShippingInfo, error) {
	a := &s.Address
	for _, f := range []*string{&a.RecipientName, &a.Phone, &a.Line1, &a.Line2, &a.District, &a.City, &a.PostalCode, &a.Country} {
		*f = strings.TrimSpace(*f)
	}
	if a.RecipientName == "" || a.Line1 == "" || a.City == "" || a.Country == "" {
		return s, shared.NewDomainError(shared.CodeInvalidInput, "Recipient name, address line, city and country are required")
	}
	s.Method = strings.ToUpper(strings.TrimSpace(s.Method))
	if s.Method == "" {
		s.Method = ManualShipping
	}
	if s.Fee.IsNegative() {
		return s, shared.NewDomainError(shared.CodeInvalidInput, "Shipping fee cannot be negative")
	}
	s.Fee = s.Fee.Round(pricing.MoneyPlaces)
	return s, nil
}

// Shipment records the parcel handed to a carrier
type Shipment struct {
	TrackingNumber string
	Carrier        string
	Status         string
	ShippedAt      time.Time
}

// Review is the customer's rating left when confirming delivery
type Review struct {
	Rating     int
	Text       string
	ReviewedAt time.Time
}

// SetShipping stores where and how the order should be delivered. The customer or
// an admin may change it until the parcel ships.
func (o *Order) SetShipping(actor identity.Actor, info ShippingInfo) error {
	if !actor.IsAdmin() {
		if err := o.requireCustomer(actor); err != nil {
			return err
		}
	}
	if o.Shipment != nil {
		return shared.NewDomainError(shared.CodeInvalidState, "Shipping details cannot change after the order shipped")
	}
	if o.Status.IsTerminal() || o.Status == StatusConfirmed {
		return shared.NewDomainError(shared.CodeInvalidState,
			fmt.Sprintf("Cannot change shipping of order in %s status", o.Status))
	}
	info, err := info.normalized()
	if err != nil {
		return err
	}
	if cur := o.Shipping; cur != nil && cur.Address == info.Address && cur.Method == info.Method && cur.Fee.Equal(info.Fee) {
		return nil
	}
	o.Shipping = &info
	o.Touch(o.stamp())
	return nil
}

// RecordShipment stores the tracking number of the shipped parcel and tells the
// customer. Only the assigned producer or an admin may record it, once the order
// is paid and before it is confirmed.
func (o *Order) RecordShipment(actor identity.Actor, trackingNumber, carrier string) error {
	if err := o.requireAssignedProducerOrAdmin(actor, "ship"); err != nil {
		return err
	}
	switch o.Status {
	case StatusPaid, StatusInProduction, StatusCompletedByProducer:
	default:
		return shared.NewDomainError(shared.CodeInvalidState,
			fmt.Sprintf("Cannot ship order in %s status", o.Status))
	}
	trackingNumber = strings.TrimSpace(trackingNumber)
	if trackingNumber == "" || len(trackingNumber) > 100 {
		return shared.NewDomainError(shared.CodeInvalidInput, "Tracking number must be 1 to 100 characters")
	}
	carrier = strings.ToUpper(strings.TrimSpace(carrier))
	if carrier == "" {
		carrier = ManualShipping
	}
	if s := o.Shipment; s != nil && s.TrackingNumber == trackingNumber && s.Carrier == carrier {
		return nil
	}

	now := o.stamp()
	o.Shipment = &Shipment{
		TrackingNumber: trackingNumber,
		Carrier:        carrier,
		Status:         ShipmentShipped,
		ShippedAt:      now,
	}
	o.Touch(now)
	o.AddDomainEvent(NewShipmentRecordedEvent(o, actor))
	return nil
}

func newReview(rating int, text string, at time.Time) (*Review, error) {
	if rating < MinRating || rating > MaxRating {
		return nil, shared.NewDomainError(shared.CodeInvalidInput,
			fmt.Sprintf("Rating must be between %d and %d", MinRating, MaxRating))
	}
	text = strings.TrimSpace(text)
	if len(text) > MaxReviewLength {
		return nil, shared.NewDomainError(shared.CodeInvalidInput,
			fmt.Sprintf("Review cannot exceed %d characters", MaxReviewLength))
	}
	return &Review{Rating: rating, Text: text, ReviewedAt: at}, nil
}
