package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	messageapp "github.com/printmarket/backend/internal/application/message"
	notificationapp "github.com/printmarket/backend/internal/application/notification"
	"github.com/printmarket/backend/internal/domain/identity"
	"github.com/printmarket/backend/internal/domain/shared"
	"github.com/printmarket/backend/internal/interfaces/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockMessageService is a mock implementation of MessageService
type MockMessageService struct {
	mock.Mock
}

func (m *MockMessageService) Send(ctx context.Context, actor identity.Actor, orderID uuid.UUID, req messageapp.SendMessageRequest) (*messageapp.MessageResponse, error) {
	args := m.Called(ctx, actor, orderID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*messageapp.MessageResponse), args.Error(1)
}

func (m *MockMessageService) ListByOrder(ctx context.Context, actor identity.Actor, orderID uuid.UUID) ([]messageapp.MessageResponse, error) {
	args := m.Called(ctx, actor, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]messageapp.MessageResponse), args.Error(1)
}

func (m *MockMessageService) MarkRead(ctx context.Context, actor identity.Actor, id uuid.UUID) (*messageapp.MessageResponse, error) {
	args := m.Called(ctx, actor, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*messageapp.MessageResponse), args.Error(1)
}

func setupMessageRouter(svc MessageService, auth gin.HandlerFunc) *gin.Engine {
	h := NewMessageHandler(svc)
	r := gin.New()
	g := r.Group("", auth)
	g.GET("/orders/:id/messages", h.List)
	g.POST("/orders/:id/messages", h.Send)
	g.PATCH("/messages/:id/read", h.MarkRead)
	return r
}

func TestMessageHandler(t *testing.T) {
	userID, orderID := uuid.New(), uuid.New()
	actor := identity.Actor{UserID: userID, Role: identity.RoleCustomer}

	t.Run("send", func(t *testing.T) {
		svc := new(MockMessageService)
		svc.On("Send", mock.Anything, actor, orderID, messageapp.SendMessageRequest{Content: "Can you print in red?"}).
			Return(&messageapp.MessageResponse{ID: uuid.New(), OrderID: orderID, SenderID: userID, Content: "Can you print in red?"}, nil)

		w := performRequest(setupMessageRouter(svc, asUser(userID, identity.RoleCustomer)), http.MethodPost,
			"/orders/"+orderID.String()+"/messages", `{"content":"Can you print in red?"}`)

		assert.Equal(t, http.StatusCreated, w.Code)
		svc.AssertExpectations(t)
	})

	t.Run("empty content", func(t *testing.T) {
		svc := new(MockMessageService)

		w := performRequest(setupMessageRouter(svc, asUser(userID, identity.RoleCustomer)), http.MethodPost,
			"/orders/"+orderID.String()+"/messages", `{"content":""}`)

		assertErrorCode(t, w, http.StatusBadRequest, dto.ErrCodeValidation)
	})

	t.Run("outsider cannot read the thread", func(t *testing.T) {
		svc := new(MockMessageService)
		svc.On("ListByOrder", mock.Anything, actor, orderID).Return(nil, shared.ErrForbidden)

		w := performRequest(setupMessageRouter(svc, asUser(userID, identity.RoleCustomer)), http.MethodGet,
			"/orders/"+orderID.String()+"/messages", "")

		assertErrorCode(t, w, http.StatusForbidden, shared.CodeForbidden)
	})

	t.Run("empty thread", func(t *testing.T) {
		svc := new(MockMessageService)
		svc.On("ListByOrder", mock.Anything, actor, orderID).Return([]messageapp.MessageResponse(nil), nil)

		w := performRequest(setupMessageRouter(svc, asUser(userID, identity.RoleCustomer)), http.MethodGet,
			"/orders/"+orderID.String()+"/messages", "")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"data":[]`)
	})

	t.Run("mark read", func(t *testing.T) {
		svc := new(MockMessageService)
		msgID := uuid.New()
		svc.On("MarkRead", mock.Anything, actor, msgID).Return(&messageapp.MessageResponse{ID: msgID, IsRead: true}, nil)

		w := performRequest(setupMessageRouter(svc, asUser(userID, identity.RoleCustomer)), http.MethodPatch,
			"/messages/"+msgID.String()+"/read", "")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, true, decodeResponse(t, w).Data.(map[string]any)["is_read"])
	})
}

type stubNotificationService struct {
	listed  notificationapp.ListNotificationsRequest
	unread  int64
	markErr error
}

func (s *stubNotificationService) List(_ context.Context, _ identity.Actor, req notificationapp.ListNotificationsRequest) (*shared.Paginated[notificationapp.NotificationResponse], error) {
	s.listed = req
	page := shared.NewPaginated([]notificationapp.NotificationResponse{{ID: uuid.New(), Title: "Order accepted"}}, 1, 1, 20)
	return &page, nil
}

func (s *stubNotificationService) MarkRead(_ context.Context, _ identity.Actor, id uuid.UUID) (*notificationapp.NotificationResponse, error) {
	if s.markErr != nil {
		return nil, s.markErr
	}
	return &notificationapp.NotificationResponse{ID: id, IsRead: true}, nil
}

func (s *stubNotificationService) MarkAllRead(context.Context, identity.Actor) (*notificationapp.MarkAllReadResponse, error) {
	updated := s.unread
	s.unread = 0
	return &notificationapp.MarkAllReadResponse{Updated: updated}, nil
}

func (s *stubNotificationService) UnreadCount(context.Context, identity.Actor) (*notificationapp.UnreadCountResponse, error) {
	return &notificationapp.UnreadCountResponse{Count: s.unread}, nil
}

func setupNotificationRouter(svc NotificationService) *gin.Engine {
	h := NewNotificationHandler(svc)
	r := gin.New()
	g := r.Group("/notifications", asUser(uuid.New(), identity.RoleProducer))
	g.GET("", h.List)
	g.GET("/unread-count", h.UnreadCount)
	g.POST("/read-all", h.MarkAllRead)
	g.PATCH("/:id/read", h.MarkRead)
	return r
}

func TestNotificationHandler(t *testing.T) {
	t.Run("list unread only", func(t *testing.T) {
		svc := &stubNotificationService{}

		w := performRequest(setupNotificationRouter(svc), http.MethodGet, "/notifications?unread=true", "")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.True(t, svc.listed.UnreadOnly)
		resp := decodeResponse(t, w)
		require.NotNil(t, resp.Meta)
		assert.Len(t, resp.Data.([]any), 1)
	})

	t.Run("unread count then mark all read", func(t *testing.T) {
		svc := &stubNotificationService{unread: 3}
		r := setupNotificationRouter(svc)

		w := performRequest(r, http.MethodGet, "/notifications/unread-count", "")
		assert.Equal(t, float64(3), decodeResponse(t, w).Data.(map[string]any)["count"])

		w = performRequest(r, http.MethodPost, "/notifications/read-all", "")
		assert.Equal(t, float64(3), decodeResponse(t, w).Data.(map[string]any)["updated"])

		w = performRequest(r, http.MethodGet, "/notifications/unread-count", "")
		assert.Equal(t, float64(0), decodeResponse(t, w).Data.(map[string]any)["count"])
	})

	t.Run("mark someone else's notification", func(t *testing.T) {
		svc := &stubNotificationService{markErr: shared.ErrForbidden}

		w := performRequest(setupNotificationRouter(svc), http.MethodPatch, "/notifications/"+uuid.NewString()+"/read", "")

		assertErrorCode(t, w, http.StatusForbidden, shared.CodeForbidden)
	})
}
