package catalog

import (
	"context"
	"time"

	"github.com/printmarket/backend/internal/domain/catalog"
)

// ObjectStorage is the object storage port for model files. It is implemented by
// the infrastructure layer (S3 or any S3-compatible store).
type ObjectStorage interface {
	// GenerateUploadURL returns a presigned PUT URL and its expiry
	GenerateUploadURL(ctx context.Context, storageKey, contentType string, expiresIn time.Duration) (string, time.Time, error)

	// GenerateDownloadURL returns a presigned GET URL and its expiry
	GenerateDownloadURL(ctx context.Context, storageKey string, expiresIn time.Duration) (string, time.Time, error)

	// ObjectExists checks if an object exists in storage
	ObjectExists(ctx context.Context, storageKey string) (bool, error)

	DeleteObject(ctx context.Context, storageKey string) error
}

// ModelAnalyzer estimates print geometry for an uploaded model file
type ModelAnalyzer interface {
	Analyze(ctx context.Context, storageKey string) (*catalog.Analysis, error)
}
