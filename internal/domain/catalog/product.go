// Package catalog holds uploaded printable models and their geometry analysis.
package catalog

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/printmarket/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// MaxFileSize is the largest model file accepted for upload (100 MB)
const MaxFileSize int64 = 100 << 20

// ProductStatus tracks a model file through upload and analysis
type ProductStatus string

const (
	ProductStatusPendingUpload ProductStatus = "pending_upload"
	ProductStatusUploaded      ProductStatus = "uploaded"
	ProductStatusAnalyzed      ProductStatus = "analyzed"
	ProductStatusFailed        ProductStatus = "failed"
)

var allowedExtensions = map[string]string{
	".stl": "model/stl",
	".obj": "model/obj",
}

// Dimensions is a bounding box in millimetres
type Dimensions struct {
	X decimal.Decimal `json:"x"`
	Y decimal.Decimal `json:"y"`
	Z decimal.Decimal `json:"z"`
}

// Analysis is the geometry estimate produced by the file-analysis service
type Analysis struct {
	MassGrams        decimal.Decimal `json:"mass_grams"`
	PrintTimeMinutes decimal.Decimal `json:"print_time_minutes"`
	VolumeCm3        decimal.Decimal `json:"volume_cm3"`
	Dimensions       Dimensions      `json:"dimensions_mm"`
	SupportRequired  bool            `json:"support_required"`
	AnalyzedAt       time.Time       `json:"analyzed_at"`
}

// Validate checks the estimate is usable for pricing
func (a Analysis) Validate() error {
	if !a.MassGrams.IsPositive() {
		return shared.NewDomainError(shared.CodeInvalidInput, "Analysis mass must be positive")
	}
	if !a.PrintTimeMinutes.IsPositive() {
		return shared.NewDomainError(shared.CodeInvalidInput, "Analysis print time must be positive")
	}
	if a.VolumeCm3.IsNegative() {
		return shared.NewDomainError(shared.CodeInvalidInput, "Analysis volume cannot be negative")
	}
	return nil
}

// Product is a model file a customer uploaded for printing
type Product struct {
	shared.BaseEntity
	OwnerID       uuid.UUID
	Name          string
	Description   string
	FileName      string
	FileSize      int64
	ContentType   string
	StorageKey    string
	Status        ProductStatus
	Analysis      *Analysis
	FailureReason string
}

// NewProduct registers a model before its file is uploaded
func NewProduct(ownerID uuid.UUID, name, description, fileName string, fileSize int64) (*Product, error) {
	if ownerID == uuid.Nil {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Owner ID cannot be empty")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Product name cannot be empty")
	}
	if len(name) > 200 {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Product name cannot exceed 200 characters")
	}
	ext := strings.ToLower(filepath.Ext(fileName))
	contentType, ok := allowedExtensions[ext]
	if !ok {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Only .stl and .obj files are accepted")
	}
	if fileSize <= 0 || fileSize > MaxFileSize {
		return nil, shared.NewDomainError(shared.CodeInvalidInput,
			fmt.Sprintf("File size must be between 1 byte and %d bytes", MaxFileSize))
	}

	p := &Product{
		BaseEntity:  shared.NewBaseEntity(),
		OwnerID:     ownerID,
		Name:        name,
		Description: strings.TrimSpace(description),
		FileName:    filepath.Base(fileName),
		FileSize:    fileSize,
		ContentType: contentType,
		Status:      ProductStatusPendingUpload,
	}
	p.StorageKey = fmt.Sprintf("models/%s/%s%s", ownerID, p.ID, ext)
	return p, nil
}

// MarkUploaded records that the file landed in object storage
func (p *Product) MarkUploaded() error {
	switch p.Status {
	case ProductStatusUploaded:
		return nil
	case ProductStatusPendingUpload:
		p.Status = ProductStatusUploaded
		p.Touch(time.Now())
		return nil
	}
	return shared.NewDomainError(shared.CodeInvalidState,
		fmt.Sprintf("Cannot mark product uploaded in %s status", p.Status))
}

// SetAnalysis stores the geometry estimate. Re-analysis of an analyzed product
// replaces the previous result.
func (p *Product) SetAnalysis(a Analysis) error {
	if p.Status == ProductStatusPendingUpload {
		return shared.NewDomainError(shared.CodeInvalidState, "Product file has not been uploaded")
	}
	if err := a.Validate(); err != nil {
		return err
	}
	if a.AnalyzedAt.IsZero() {
		a.AnalyzedAt = time.Now()
	}
	p.Analysis = &a
	p.Status = ProductStatusAnalyzed
	p.FailureReason = ""
	p.Touch(time.Now())
	return nil
}

// MarkFailed records that analysis could not be completed
func (p *Product) MarkFailed(reason string) {
	p.Status = ProductStatusFailed
	p.FailureReason = reason
	p.Touch(time.Now())
}

// IsAnalyzed reports whether the product carries a usable analysis
func (p *Product) IsAnalyzed() bool {
	return p.Status == ProductStatusAnalyzed && p.Analysis != nil
}

// ProductRepository defines persistence for products
type ProductRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Product, error)
	FindByOwner(ctx context.Context, ownerID uuid.UUID, filter shared.Filter) ([]Product, int64, error)
	Save(ctx context.Context, p *Product) error
}
