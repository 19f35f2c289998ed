package pricing

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/printmarket/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// MaterialType is the filament family
type MaterialType string

const (
	MaterialTypePLA   MaterialType = "PLA"
	MaterialTypeABS   MaterialType = "ABS"
	MaterialTypePETG  MaterialType = "PETG"
	MaterialTypeTPU   MaterialType = "TPU"
	MaterialTypeNylon MaterialType = "NYLON"
)

// IsValid checks if the material type is known
func (t MaterialType) IsValid() bool {
	switch t {
	case MaterialTypePLA, MaterialTypeABS, MaterialTypePETG, MaterialTypeTPU, MaterialTypeNylon:
		return true
	}
	return false
}

// Material is a printable material with a per-gram price
type Material struct {
	ID           uuid.UUID
	Name         string
	Type         MaterialType
	PricePerGram decimal.Decimal
	Density      decimal.Decimal // g/cm3
	Description  string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewMaterial creates an active material
func NewMaterial(name string, materialType MaterialType, pricePerGram, density decimal.Decimal) (*Material, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, shared.NewDomainError("INVALID_MATERIAL", "Material name cannot be empty")
	}
	if !materialType.IsValid() {
		return nil, shared.NewDomainError("INVALID_MATERIAL", "Unknown material type: "+string(materialType))
	}
	if pricePerGram.IsNegative() {
		return nil, shared.NewDomainError("INVALID_MATERIAL", "Price per gram cannot be negative")
	}
	if density.IsNegative() {
		return nil, shared.NewDomainError("INVALID_MATERIAL", "Density cannot be negative")
	}

	now := time.Now()
	return &Material{
		ID:           uuid.New(),
		Name:         name,
		Type:         materialType,
		PricePerGram: pricePerGram,
		Density:      density,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}
