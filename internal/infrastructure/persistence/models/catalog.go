package models

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/printmarket/backend/internal/domain/catalog"
)

// ProductModel is the persistence model for uploaded model files
type ProductModel struct {
	BaseModel
	OwnerID       uuid.UUID             `gorm:"type:uuid;not null;index"`
	Name          string                `gorm:"type:varchar(200);not null"`
	Description   string                `gorm:"type:text"`
	FileName      string                `gorm:"type:varchar(255);not null"`
	FileSize      int64                 `gorm:"not null"`
	ContentType   string                `gorm:"type:varchar(50);not null"`
	StorageKey    string                `gorm:"type:varchar(500);not null;uniqueIndex"`
	Status        catalog.ProductStatus `gorm:"type:varchar(20);not null;default:'pending_upload'"`
	Analysis      []byte                `gorm:"type:jsonb"`
	FailureReason string                `gorm:"type:varchar(500)"`
}

// TableName returns the table name for GORM
func (ProductModel) TableName() string {
	return "products"
}

// ToDomain converts the persistence model to a domain Product
func (m *ProductModel) ToDomain() (*catalog.Product, error) {
	p := &catalog.Product{
		BaseEntity:    m.BaseModel.ToDomain(),
		OwnerID:       m.OwnerID,
		Name:          m.Name,
		Description:   m.Description,
		FileName:      m.FileName,
		FileSize:      m.FileSize,
		ContentType:   m.ContentType,
		StorageKey:    m.StorageKey,
		Status:        m.Status,
		FailureReason: m.FailureReason,
	}
	if len(m.Analysis) > 0 {
		var a catalog.Analysis
		if err := json.Unmarshal(m.Analysis, &a); err != nil {
			return nil, fmt.Errorf("decode analysis of product %s: %w", m.ID, err)
		}
		p.Analysis = &a
	}
	return p, nil
}

// ProductModelFromDomain creates a persistence model from a domain Product
func ProductModelFromDomain(p *catalog.Product) (*ProductModel, error) {
	m := &ProductModel{
		OwnerID:       p.OwnerID,
		Name:          p.Name,
		Description:   p.Description,
		FileName:      p.FileName,
		FileSize:      p.FileSize,
		ContentType:   p.ContentType,
		StorageKey:    p.StorageKey,
		Status:        p.Status,
		FailureReason: p.FailureReason,
	}
	m.FromDomainBaseEntity(p.BaseEntity)
	if p.Analysis != nil {
		data, err := json.Marshal(p.Analysis)
		if err != nil {
			return nil, fmt.Errorf("encode analysis: %w", err)
		}
		m.Analysis = data
	}
	return m, nil
}
