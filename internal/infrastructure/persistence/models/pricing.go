package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/printmarket/backend/internal/domain/pricing"
	"github.com/shopspring/decimal"
)

// MaterialModel is the persistence model for printable materials
type MaterialModel struct {
	ID           uuid.UUID            `gorm:"type:uuid;primary_key"`
	Name         string               `gorm:"type:varchar(100);not null;uniqueIndex"`
	Type         pricing.MaterialType `gorm:"type:varchar(20);not null"`
	PricePerGram decimal.Decimal      `gorm:"type:decimal(10,4);not null"`
	Density      decimal.Decimal      `gorm:"type:decimal(6,3);not null;default:0"`
	Description  string               `gorm:"type:text"`
	IsActive     bool                 `gorm:"not null;default:true;index"`
	CreatedAt    time.Time            `gorm:"not null"`
	UpdatedAt    time.Time            `gorm:"not null"`
}

// TableName returns the table name for GORM
func (MaterialModel) TableName() string {
	return "materials"
}

// ToDomain converts the persistence model to a domain Material
func (m *MaterialModel) ToDomain() *pricing.Material {
	return &pricing.Material{
		ID:           m.ID,
		Name:         m.Name,
		Type:         m.Type,
		PricePerGram: m.PricePerGram,
		Density:      m.Density,
		Description:  m.Description,
		IsActive:     m.IsActive,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

// MaterialModelFromDomain creates a persistence model from a domain Material
func MaterialModelFromDomain(mat *pricing.Material) *MaterialModel {
	return &MaterialModel{
		ID:           mat.ID,
		Name:         mat.Name,
		Type:         mat.Type,
		PricePerGram: mat.PricePerGram,
		Density:      mat.Density,
		Description:  mat.Description,
		IsActive:     mat.IsActive,
		CreatedAt:    mat.CreatedAt,
		UpdatedAt:    mat.UpdatedAt,
	}
}

// ProducerRatesModel stores a producer's pricing configuration. The supported
// material list is kept as a JSON array of IDs.
type ProducerRatesModel struct {
	ProducerID         uuid.UUID       `gorm:"type:uuid;primary_key"`
	HourlyRate         decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	SupportFlatCost    decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	FixedCost          decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	MarginPercent      decimal.Decimal `gorm:"type:decimal(5,2);not null"`
	MinOrderAmount     decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0"`
	SupportedMaterials []byte          `gorm:"type:jsonb"`
	AcceptingOrders    bool            `gorm:"not null;default:true"`
	CreatedAt          time.Time       `gorm:"not null"`
	UpdatedAt          time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ProducerRatesModel) TableName() string {
	return "producer_rates"
}

// ToDomain converts the persistence model to domain ProducerRates
func (m *ProducerRatesModel) ToDomain() (*pricing.ProducerRates, error) {
	var materials []uuid.UUID
	if len(m.SupportedMaterials) > 0 {
		if err := json.Unmarshal(m.SupportedMaterials, &materials); err != nil {
			return nil, fmt.Errorf("decode supported materials of producer %s: %w", m.ProducerID, err)
		}
	}
	return &pricing.ProducerRates{
		ProducerID:         m.ProducerID,
		HourlyRate:         m.HourlyRate,
		SupportFlatCost:    m.SupportFlatCost,
		FixedCost:          m.FixedCost,
		MarginPercent:      m.MarginPercent,
		MinOrderAmount:     m.MinOrderAmount,
		SupportedMaterials: materials,
		AcceptingOrders:    m.AcceptingOrders,
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}, nil
}

// ProducerRatesModelFromDomain creates a persistence model from domain ProducerRates
func ProducerRatesModelFromDomain(r *pricing.ProducerRates) (*ProducerRatesModel, error) {
	materials := r.SupportedMaterials
	if materials == nil {
		materials = []uuid.UUID{}
	}
	data, err := json.Marshal(materials)
	if err != nil {
		return nil, fmt.Errorf("encode supported materials: %w", err)
	}
	return &ProducerRatesModel{
		ProducerID:         r.ProducerID,
		HourlyRate:         r.HourlyRate,
		SupportFlatCost:    r.SupportFlatCost,
		FixedCost:          r.FixedCost,
		MarginPercent:      r.MarginPercent,
		MinOrderAmount:     r.MinOrderAmount,
		SupportedMaterials: data,
		AcceptingOrders:    r.AcceptingOrders,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}, nil
}
