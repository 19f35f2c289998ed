// Package event exposes administration of the event outbox: inspecting and
// re-queueing notifications whose delivery was dead-lettered.
package event

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/printmarket/backend/internal/domain/identity"
	"github.com/printmarket/backend/internal/domain/shared"
	"github.com/printmarket/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// DeadLetterStore is the part of the outbox repository the admin service needs
type DeadLetterStore interface {
	FindDead(ctx context.Context, filter shared.Filter) ([]*shared.OutboxEntry, int64, error)
	FindByID(ctx context.Context, id uuid.UUID) (*shared.OutboxEntry, error)
	Update(ctx context.Context, entry *shared.OutboxEntry) error
	CountByStatus(ctx context.Context) (map[shared.OutboxStatus]int64, error)
}

// OutboxService lets administrators inspect and retry outbox entries
type OutboxService struct {
	store  DeadLetterStore
	logger *zap.Logger
}

// NewOutboxService creates a new outbox service
func NewOutboxService(store DeadLetterStore, logger *zap.Logger) *OutboxService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OutboxService{store: store, logger: logger}
}

// EntryResponse is an outbox entry without its payload
type EntryResponse struct {
	ID            uuid.UUID  `json:"id"`
	EventID       uuid.UUID  `json:"event_id"`
	EventType     string     `json:"event_type"`
	AggregateID   uuid.UUID  `json:"aggregate_id"`
	AggregateType string     `json:"aggregate_type"`
	Status        string     `json:"status"`
	RetryCount    int        `json:"retry_count"`
	MaxRetries    int        `json:"max_retries"`
	LastError     string     `json:"last_error,omitempty"`
	NextRetryAt   *time.Time `json:"next_retry_at,omitempty"`
	ProcessedAt   *time.Time `json:"processed_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// ListDeadRequest pages through dead-lettered entries
type ListDeadRequest struct {
	Page     int `form:"page" binding:"omitempty,min=1"`
	PageSize int `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// StatsResponse counts entries per status
type StatsResponse struct {
	Pending    int64 `json:"pending"`
	Processing int64 `json:"processing"`
	Sent       int64 `json:"sent"`
	Failed     int64 `json:"failed"`
	Dead       int64 `json:"dead"`
	Total      int64 `json:"total"`
}

// RetryAllResponse reports how many entries were re-queued
type RetryAllResponse struct {
	Requeued int64 `json:"requeued"`
}

var errEntryNotFound = shared.NewDomainError(shared.CodeNotFound, "Outbox entry not found")

// ListDead returns dead-lettered entries, most recently failed first
func (s *OutboxService) ListDead(ctx context.Context, actor identity.Actor, req ListDeadRequest) (*shared.Paginated[EntryResponse], error) {
	if !actor.IsAdmin() {
		return nil, shared.ErrForbidden
	}
	filter := shared.DefaultFilter()
	if req.Page > 0 {
		filter.Page = req.Page
	}
	if req.PageSize > 0 {
		filter.PageSize = min(req.PageSize, 100)
	}

	entries, total, err := s.store.FindDead(ctx, filter)
	if err != nil {
		s.log(ctx).Error("Failed to list dead letter entries", zap.Error(err))
		return nil, err
	}
	items := make([]EntryResponse, len(entries))
	for i, e := range entries {
		items[i] = toEntryResponse(e)
	}
	page := shared.NewPaginated(items, total, filter.Page, filter.PageSize)
	return &page, nil
}

// Get returns a single entry
func (s *OutboxService) Get(ctx context.Context, actor identity.Actor, id uuid.UUID) (*EntryResponse, error) {
	if !actor.IsAdmin() {
		return nil, shared.ErrForbidden
	}
	entry, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := toEntryResponse(entry)
	return &resp, nil
}

// Retry re-queues one dead entry with a fresh retry budget
func (s *OutboxService) Retry(ctx context.Context, actor identity.Actor, id uuid.UUID) (*EntryResponse, error) {
	if !actor.IsAdmin() {
		return nil, shared.ErrForbidden
	}
	entry, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := entry.ResetForRetry(); err != nil {
		return nil, shared.NewDomainError(shared.CodeInvalidState, "Only dead-lettered entries can be retried")
	}
	if err := s.store.Update(ctx, entry); err != nil {
		s.log(ctx).Error("Failed to requeue outbox entry", zap.String("entry_id", id.String()), zap.Error(err))
		return nil, err
	}

	s.log(ctx).Info("Dead letter entry requeued",
		zap.String("entry_id", id.String()),
		zap.String("event_type", entry.EventType))
	resp := toEntryResponse(entry)
	return &resp, nil
}

// RetryAll re-queues every dead entry. Entries that fail to update are logged
// and skipped.
func (s *OutboxService) RetryAll(ctx context.Context, actor identity.Actor) (*RetryAllResponse, error) {
	if !actor.IsAdmin() {
		return nil, shared.ErrForbidden
	}
	const batch = 100
	var requeued int64
	// requeued entries leave the dead set, so the first page always holds what is left
	filter := shared.Filter{Page: 1, PageSize: batch}
	for {
		entries, _, err := s.store.FindDead(ctx, filter)
		if err != nil {
			return &RetryAllResponse{Requeued: requeued}, err
		}
		progressed := false
		for _, entry := range entries {
			if entry.ResetForRetry() != nil {
				continue
			}
			if err := s.store.Update(ctx, entry); err != nil {
				s.log(ctx).Warn("Failed to requeue outbox entry", zap.String("entry_id", entry.ID.String()), zap.Error(err))
				continue
			}
			requeued++
			progressed = true
		}
		if len(entries) < batch || !progressed {
			break
		}
	}

	s.log(ctx).Info("Dead letter entries requeued", zap.Int64("count", requeued))
	return &RetryAllResponse{Requeued: requeued}, nil
}

// Stats counts entries per status
func (s *OutboxService) Stats(ctx context.Context, actor identity.Actor) (*StatsResponse, error) {
	if !actor.IsAdmin() {
		return nil, shared.ErrForbidden
	}
	counts, err := s.store.CountByStatus(ctx)
	if err != nil {
		s.log(ctx).Error("Failed to count outbox entries", zap.Error(err))
		return nil, err
	}
	resp := &StatsResponse{
		Pending:    counts[shared.OutboxStatusPending],
		Processing: counts[shared.OutboxStatusProcessing],
		Sent:       counts[shared.OutboxStatusSent],
		Failed:     counts[shared.OutboxStatusFailed],
		Dead:       counts[shared.OutboxStatusDead],
	}
	for _, n := range counts {
		resp.Total += n
	}
	return resp, nil
}

func (s *OutboxService) find(ctx context.Context, id uuid.UUID) (*shared.OutboxEntry, error) {
	entry, err := s.store.FindByID(ctx, id)
	if errors.Is(err, shared.ErrNotFound) || (err == nil && entry == nil) {
		return nil, errEntryNotFound
	}
	return entry, err
}

func (s *OutboxService) log(ctx context.Context) *zap.Logger {
	return logger.Enrich(ctx, s.logger)
}

func toEntryResponse(e *shared.OutboxEntry) EntryResponse {
	return EntryResponse{
		ID:            e.ID,
		EventID:       e.EventID,
		EventType:     e.EventType,
		AggregateID:   e.AggregateID,
		AggregateType: e.AggregateType,
		Status:        string(e.Status),
		RetryCount:    e.RetryCount,
		MaxRetries:    e.MaxRetries,
		LastError:     e.LastError,
		NextRetryAt:   e.NextRetryAt,
		ProcessedAt:   e.ProcessedAt,
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
	}
}
