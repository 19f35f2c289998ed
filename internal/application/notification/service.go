// Package notification contains the inbox service and the emitter that turns
// order and message events into notifications and real-time pushes.
package notification

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/printmarket/backend/internal/domain/identity"
	"github.com/printmarket/backend/internal/domain/notification"
	"github.com/printmarket/backend/internal/domain/shared"
)

// Service handles a user's notification inbox
type Service struct {
	repo notification.Repository
	now  func() time.Time
}

// NewService creates a new notification Service
func NewService(repo notification.Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// List returns the actor's notifications, newest first
func (s *Service) List(ctx context.Context, actor identity.Actor, req ListNotificationsRequest) (*shared.Paginated[NotificationResponse], error) {
	filter := shared.DefaultFilter()
	if req.Page > 0 {
		filter.Page = req.Page
	}
	if req.PageSize > 0 {
		filter.PageSize = req.PageSize
	}

	items, total, err := s.repo.FindByUser(ctx, actor.UserID, req.UnreadOnly, filter)
	if err != nil {
		return nil, err
	}
	out := make([]NotificationResponse, len(items))
	for i := range items {
		out[i] = ToNotificationResponse(&items[i])
	}
	page := shared.NewPaginated(out, total, filter.Page, filter.PageSize)
	return &page, nil
}

// MarkRead flags one of the actor's notifications as read
func (s *Service) MarkRead(ctx context.Context, actor identity.Actor, id uuid.UUID) (*NotificationResponse, error) {
	n, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	wasRead := n.IsRead
	if err := n.MarkRead(actor.UserID); err != nil {
		return nil, err
	}
	if !wasRead {
		if err := s.repo.MarkRead(ctx, id, *n.ReadAt); err != nil {
			return nil, err
		}
	}
	resp := ToNotificationResponse(n)
	return &resp, nil
}

// MarkAllRead flags every unread notification of the actor as read
func (s *Service) MarkAllRead(ctx context.Context, actor identity.Actor) (*MarkAllReadResponse, error) {
	n, err := s.repo.MarkAllRead(ctx, actor.UserID, s.now())
	if err != nil {
		return nil, err
	}
	return &MarkAllReadResponse{Updated: n}, nil
}

// UnreadCount returns the number of unread notifications of the actor
func (s *Service) UnreadCount(ctx context.Context, actor identity.Actor) (*UnreadCountResponse, error) {
	n, err := s.repo.CountUnread(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	return &UnreadCountResponse{Count: n}, nil
}
