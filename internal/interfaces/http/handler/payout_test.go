package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	payoutapp "github.com/printmarket/backend/internal/application/payout"
	reportapp "github.com/printmarket/backend/internal/application/report"
	"github.com/printmarket/backend/internal/domain/identity"
	"github.com/printmarket/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockPayoutService struct {
	mock.Mock
}

func (m *MockPayoutService) List(ctx context.Context, actor identity.Actor, req payoutapp.ListPayoutsRequest) (*shared.Paginated[payoutapp.PayoutResponse], error) {
	args := m.Called(ctx, actor, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*shared.Paginated[payoutapp.PayoutResponse]), args.Error(1)
}

type MockReportService struct {
	mock.Mock
}

func (m *MockReportService) Stats(ctx context.Context, actor identity.Actor, req reportapp.StatsRequest) (*reportapp.StatsResponse, error) {
	args := m.Called(ctx, actor, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reportapp.StatsResponse), args.Error(1)
}

func setupPayoutRouter(payouts *MockPayoutService, reports *MockReportService, auth gin.HandlerFunc) *gin.Engine {
	h := NewPayoutHandler(payouts, reports)
	r := gin.New()
	r.GET("/payouts", auth, h.List)
	r.GET("/admin/stats", auth, h.Stats)
	return r
}

func TestPayoutHandler_List(t *testing.T) {
	producerID := uuid.New()
	actor := identity.Actor{UserID: producerID, Role: identity.RoleProducer}

	t.Run("producer page", func(t *testing.T) {
		payouts := new(MockPayoutService)
		page := shared.NewPaginated([]payoutapp.PayoutResponse{{
			ProducerID: producerID,
			Amount:     decimal.RequireFromString("42.50"),
			Status:     "scheduled",
		}}, 1, 2, 5)
		payouts.On("List", mock.Anything, actor, payoutapp.ListPayoutsRequest{Page: 2, PageSize: 5}).Return(&page, nil)

		w := performRequest(setupPayoutRouter(payouts, nil, asUser(producerID, identity.RoleProducer)),
			http.MethodGet, "/payouts?page=2&page_size=5", "")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"amount":"42.5"`)
		payouts.AssertExpectations(t)
	})

	t.Run("customer is forbidden", func(t *testing.T) {
		payouts := new(MockPayoutService)
		payouts.On("List", mock.Anything, mock.Anything, mock.Anything).Return(nil, shared.ErrForbidden)

		w := performRequest(setupPayoutRouter(payouts, nil, asUser(uuid.New(), identity.RoleCustomer)),
			http.MethodGet, "/payouts", "")

		assertErrorCode(t, w, http.StatusForbidden, shared.CodeForbidden)
	})

	t.Run("malformed producer filter", func(t *testing.T) {
		payouts := new(MockPayoutService)

		w := performRequest(setupPayoutRouter(payouts, nil, asUser(uuid.New(), identity.RoleAdmin)),
			http.MethodGet, "/payouts?producer_id=abc", "")

		assert.Equal(t, http.StatusBadRequest, w.Code)
		payouts.AssertNotCalled(t, "List", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestPayoutHandler_Stats(t *testing.T) {
	adminID := uuid.New()

	t.Run("window from query", func(t *testing.T) {
		reports := new(MockReportService)
		reports.On("Stats", mock.Anything, identity.Actor{UserID: adminID, Role: identity.RoleAdmin}, reportapp.StatsRequest{Days: 14}).
			Return(&reportapp.StatsResponse{WindowDays: 14, TotalOrders: 9}, nil)

		w := performRequest(setupPayoutRouter(nil, reports, asUser(adminID, identity.RoleAdmin)),
			http.MethodGet, "/admin/stats?days=14", "")

		assert.Equal(t, http.StatusOK, w.Code)
		data := decodeResponse(t, w).Data.(map[string]any)
		assert.EqualValues(t, 14, data["window_days"])
		assert.EqualValues(t, 9, data["total_orders"])
		reports.AssertExpectations(t)
	})

	t.Run("window out of range", func(t *testing.T) {
		reports := new(MockReportService)

		w := performRequest(setupPayoutRouter(nil, reports, asUser(adminID, identity.RoleAdmin)),
			http.MethodGet, "/admin/stats?days=400", "")

		assert.Equal(t, http.StatusBadRequest, w.Code)
		reports.AssertNotCalled(t, "Stats", mock.Anything, mock.Anything, mock.Anything)
	})
}
