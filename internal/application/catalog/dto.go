package catalog

import (
	"time"

	"github.com/google/uuid"
	"github.com/printmarket/backend/internal/domain/catalog"
)

// RegisterProductRequest registers a model file before it is uploaded
type RegisterProductRequest struct {
	Name        string `json:"name" binding:"required,min=1,max=200"`
	Description string `json:"description" binding:"max=2000"`
	FileName    string `json:"file_name" binding:"required,max=255"`
	FileSize    int64  `json:"file_size" binding:"required,gt=0"`
}

// UploadTicket tells the client where to PUT the file
type UploadTicket struct {
	Product     ProductResponse `json:"product"`
	UploadURL   string          `json:"upload_url"`
	Method      string          `json:"method"`
	ContentType string          `json:"content_type"`
	ExpiresAt   time.Time       `json:"expires_at"`
}

// ProductResponse represents a product in API responses
type ProductResponse struct {
	ID            uuid.UUID         `json:"id"`
	OwnerID       uuid.UUID         `json:"owner_id"`
	Name          string            `json:"name"`
	Description   string            `json:"description"`
	FileName      string            `json:"file_name"`
	FileSize      int64             `json:"file_size"`
	ContentType   string            `json:"content_type"`
	Status        string            `json:"status"`
	Analysis      *catalog.Analysis `json:"analysis,omitempty"`
	FailureReason string            `json:"failure_reason,omitempty"`
	DownloadURL   string            `json:"download_url,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// ToProductResponse converts a domain product to a response
func ToProductResponse(p *catalog.Product) ProductResponse {
	return ProductResponse{
		ID:            p.ID,
		OwnerID:       p.OwnerID,
		Name:          p.Name,
		Description:   p.Description,
		FileName:      p.FileName,
		FileSize:      p.FileSize,
		ContentType:   p.ContentType,
		Status:        string(p.Status),
		Analysis:      p.Analysis,
		FailureReason: p.FailureReason,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}
