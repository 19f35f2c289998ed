// Package catalog contains the application services for printable models.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/printmarket/backend/internal/domain/catalog"
	"github.com/printmarket/backend/internal/domain/identity"
	"github.com/printmarket/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// ErrAnalysisUnavailable is returned when no analyzer is configured or the
// analyzer could not be reached
var ErrAnalysisUnavailable = shared.NewDomainError("ANALYSIS_UNAVAILABLE", "Model analysis is currently unavailable")

// ServiceConfig holds the presign durations
type ServiceConfig struct {
	UploadURLExpiry   time.Duration
	DownloadURLExpiry time.Duration
}

// DefaultServiceConfig returns the default configuration
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		UploadURLExpiry:   15 * time.Minute,
		DownloadURLExpiry: time.Hour,
	}
}

// Service handles model registration, upload confirmation and analysis
type Service struct {
	repo     catalog.ProductRepository
	storage  ObjectStorage
	analyzer ModelAnalyzer
	config   ServiceConfig
	logger   *zap.Logger
}

// NewService creates a new catalog Service. analyzer may be nil, in which case
// Analyze returns ErrAnalysisUnavailable.
func NewService(repo catalog.ProductRepository, storage ObjectStorage, analyzer ModelAnalyzer, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:     repo,
		storage:  storage,
		analyzer: analyzer,
		config:   DefaultServiceConfig(),
		logger:   logger,
	}
}

// SetConfig sets the service configuration
func (s *Service) SetConfig(cfg ServiceConfig) {
	s.config = cfg
}

// RegisterProduct stores a pending product and returns a presigned upload URL
func (s *Service) RegisterProduct(ctx context.Context, actor identity.Actor, req RegisterProductRequest) (*UploadTicket, error) {
	if actor.Role != identity.RoleCustomer && !actor.IsAdmin() {
		return nil, shared.NewDomainError(shared.CodeForbidden, "Only customers can upload models")
	}
	p, err := catalog.NewProduct(actor.UserID, req.Name, req.Description, req.FileName, req.FileSize)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, p); err != nil {
		return nil, fmt.Errorf("save product: %w", err)
	}

	uploadURL, expiresAt, err := s.storage.GenerateUploadURL(ctx, p.StorageKey, p.ContentType, s.config.UploadURLExpiry)
	if err != nil {
		s.logger.Error("Failed to generate upload URL",
			zap.String("product_id", p.ID.String()), zap.Error(err))
		return nil, shared.NewDomainError("UPLOAD_URL_FAILED", "Failed to generate upload URL")
	}

	return &UploadTicket{
		Product:     ToProductResponse(p),
		UploadURL:   uploadURL,
		Method:      http.MethodPut,
		ContentType: p.ContentType,
		ExpiresAt:   expiresAt,
	}, nil
}

// MarkUploaded confirms that the client finished the upload
func (s *Service) MarkUploaded(ctx context.Context, actor identity.Actor, id uuid.UUID) (*ProductResponse, error) {
	p, err := s.findOwned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	exists, err := s.storage.ObjectExists(ctx, p.StorageKey)
	if err != nil {
		return nil, fmt.Errorf("check uploaded object: %w", err)
	}
	if !exists {
		return nil, shared.NewDomainError(shared.CodeInvalidState, "File has not been uploaded yet")
	}
	if err := p.MarkUploaded(); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, p); err != nil {
		return nil, fmt.Errorf("save product: %w", err)
	}
	resp := ToProductResponse(p)
	return &resp, nil
}

// Analyze runs geometry analysis on the uploaded file and stores the result.
// An analyzer failure marks the product failed so the client can retry.
func (s *Service) Analyze(ctx context.Context, actor identity.Actor, id uuid.UUID) (*ProductResponse, error) {
	p, err := s.findOwned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if p.Status == catalog.ProductStatusPendingUpload {
		return nil, shared.NewDomainError(shared.CodeInvalidState, "Product file has not been uploaded")
	}
	if s.analyzer == nil {
		return nil, ErrAnalysisUnavailable
	}

	analysis, err := s.analyzer.Analyze(ctx, p.StorageKey)
	if err == nil {
		err = p.SetAnalysis(*analysis)
	}
	if err != nil {
		s.logger.Warn("Model analysis failed",
			zap.String("product_id", p.ID.String()), zap.Error(err))
		p.MarkFailed(err.Error())
		if saveErr := s.repo.Save(ctx, p); saveErr != nil {
			return nil, fmt.Errorf("save product: %w", saveErr)
		}
		var de *shared.DomainError
		if errors.As(err, &de) {
			return nil, err
		}
		return nil, ErrAnalysisUnavailable
	}

	if err := s.repo.Save(ctx, p); err != nil {
		return nil, fmt.Errorf("save product: %w", err)
	}
	resp := ToProductResponse(p)
	return &resp, nil
}

// Get returns a product with a download URL. Owners and admins can read any of
// their products; producers can read models to quote and print them.
func (s *Service) Get(ctx context.Context, actor identity.Actor, id uuid.UUID) (*ProductResponse, error) {
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.OwnerID != actor.UserID && !actor.IsAdmin() && actor.Role != identity.RoleProducer {
		return nil, shared.NewDomainError(shared.CodeForbidden, "Product belongs to another user")
	}

	resp := ToProductResponse(p)
	if p.Status != catalog.ProductStatusPendingUpload {
		url, _, err := s.storage.GenerateDownloadURL(ctx, p.StorageKey, s.config.DownloadURLExpiry)
		if err != nil {
			s.logger.Warn("Failed to generate download URL",
				zap.String("product_id", p.ID.String()), zap.Error(err))
		} else {
			resp.DownloadURL = url
		}
	}
	return &resp, nil
}

// ListMine lists the caller's products, newest first
func (s *Service) ListMine(ctx context.Context, actor identity.Actor, filter shared.Filter) (shared.Paginated[ProductResponse], error) {
	products, total, err := s.repo.FindByOwner(ctx, actor.UserID, filter)
	if err != nil {
		return shared.Paginated[ProductResponse]{}, err
	}
	items := make([]ProductResponse, len(products))
	for i := range products {
		items[i] = ToProductResponse(&products[i])
	}
	return shared.NewPaginated(items, total, filter.Page, filter.PageSize), nil
}

// FindAnalyzed returns a product that is ready for quoting
func (s *Service) FindAnalyzed(ctx context.Context, id uuid.UUID) (*catalog.Product, error) {
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.IsAnalyzed() {
		return nil, shared.NewDomainError(shared.CodeInvalidState, "Product has not been analyzed yet")
	}
	return p, nil
}

func (s *Service) findOwned(ctx context.Context, actor identity.Actor, id uuid.UUID) (*catalog.Product, error) {
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.OwnerID != actor.UserID && !actor.IsAdmin() {
		return nil, shared.NewDomainError(shared.CodeForbidden, "Product belongs to another user")
	}
	return p, nil
}
