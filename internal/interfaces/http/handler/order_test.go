package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	orderapp "github.com/printmarket/backend/internal/application/order"
	"github.com/printmarket/backend/internal/domain/identity"
	"github.com/printmarket/backend/internal/domain/shared"
	"github.com/printmarket/backend/internal/interfaces/http/dto"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockOrderService is a mock implementation of OrderService
type MockOrderService struct {
	mock.Mock
}

func (m *MockOrderService) result(args mock.Arguments) (*orderapp.OrderResponse, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*orderapp.OrderResponse), args.Error(1)
}

func (m *MockOrderService) page(args mock.Arguments) (*shared.Paginated[orderapp.OrderResponse], error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*shared.Paginated[orderapp.OrderResponse]), args.Error(1)
}

func (m *MockOrderService) CreateDraft(ctx context.Context, actor identity.Actor, req orderapp.CreateOrderRequest) (*orderapp.OrderResponse, error) {
	return m.result(m.Called(ctx, actor, req))
}

func (m *MockOrderService) Get(ctx context.Context, actor identity.Actor, id uuid.UUID) (*orderapp.OrderResponse, error) {
	return m.result(m.Called(ctx, actor, id))
}

func (m *MockOrderService) List(ctx context.Context, actor identity.Actor, req orderapp.ListOrdersRequest) (*shared.Paginated[orderapp.OrderResponse], error) {
	return m.page(m.Called(ctx, actor, req))
}

func (m *MockOrderService) ListPool(ctx context.Context, actor identity.Actor, req orderapp.ListOrdersRequest) (*shared.Paginated[orderapp.OrderResponse], error) {
	return m.page(m.Called(ctx, actor, req))
}

func (m *MockOrderService) Submit(ctx context.Context, actor identity.Actor, id uuid.UUID) (*orderapp.OrderResponse, error) {
	return m.result(m.Called(ctx, actor, id))
}

func (m *MockOrderService) Accept(ctx context.Context, actor identity.Actor, id uuid.UUID, req orderapp.AcceptRequest) (*orderapp.OrderResponse, error) {
	return m.result(m.Called(ctx, actor, id, req))
}

func (m *MockOrderService) Reject(ctx context.Context, actor identity.Actor, id uuid.UUID, reason string) (*orderapp.OrderResponse, error) {
	return m.result(m.Called(ctx, actor, id, reason))
}

func (m *MockOrderService) Pay(ctx context.Context, actor identity.Actor, id uuid.UUID) (*orderapp.OrderResponse, error) {
	return m.result(m.Called(ctx, actor, id))
}

func (m *MockOrderService) StartProduction(ctx context.Context, actor identity.Actor, id uuid.UUID) (*orderapp.OrderResponse, error) {
	return m.result(m.Called(ctx, actor, id))
}

func (m *MockOrderService) CompleteProduction(ctx context.Context, actor identity.Actor, id uuid.UUID) (*orderapp.OrderResponse, error) {
	return m.result(m.Called(ctx, actor, id))
}

func (m *MockOrderService) Confirm(ctx context.Context, actor identity.Actor, id uuid.UUID, req orderapp.ConfirmRequest) (*orderapp.OrderResponse, error) {
	return m.result(m.Called(ctx, actor, id, req))
}

func (m *MockOrderService) Cancel(ctx context.Context, actor identity.Actor, id uuid.UUID, reason string) (*orderapp.OrderResponse, error) {
	return m.result(m.Called(ctx, actor, id, reason))
}

func (m *MockOrderService) OpenDispute(ctx context.Context, actor identity.Actor, id uuid.UUID, reason string) (*orderapp.OrderResponse, error) {
	return m.result(m.Called(ctx, actor, id, reason))
}

func (m *MockOrderService) ResolveDispute(ctx context.Context, actor identity.Actor, id uuid.UUID, req orderapp.ResolveDisputeRequest) (*orderapp.OrderResponse, error) {
	return m.result(m.Called(ctx, actor, id, req))
}

func (m *MockOrderService) Requote(ctx context.Context, actor identity.Actor, id uuid.UUID, req orderapp.RequoteRequest) (*orderapp.OrderResponse, error) {
	return m.result(m.Called(ctx, actor, id, req))
}

func (m *MockOrderService) SetShipping(ctx context.Context, actor identity.Actor, id uuid.UUID, req orderapp.ShippingRequest) (*orderapp.OrderResponse, error) {
	return m.result(m.Called(ctx, actor, id, req))
}

func (m *MockOrderService) RecordShipment(ctx context.Context, actor identity.Actor, id uuid.UUID, req orderapp.TrackingRequest) (*orderapp.OrderResponse, error) {
	return m.result(m.Called(ctx, actor, id, req))
}

func setupOrderRouter(svc *MockOrderService, auth gin.HandlerFunc) *gin.Engine {
	h := NewOrderHandler(svc)
	r := gin.New()
	g := r.Group("/orders", auth)
	g.POST("", h.Create)
	g.GET("", h.List)
	g.GET("/pool", h.ListPool)
	g.GET("/:id", h.Get)
	g.POST("/:id/submit", h.Submit)
	g.POST("/:id/accept", h.Accept)
	g.POST("/:id/reject", h.Reject)
	g.POST("/:id/pay", h.Pay)
	g.POST("/:id/start", h.Start)
	g.POST("/:id/complete", h.Complete)
	g.POST("/:id/confirm", h.Confirm)
	g.POST("/:id/cancel", h.Cancel)
	g.POST("/:id/dispute", h.Dispute)
	g.POST("/:id/resolve", h.Resolve)
	g.POST("/:id/requote", h.Requote)
	g.POST("/:id/shipping/info", h.Shipping)
	g.POST("/:id/shipping/tracking", h.Tracking)
	return r
}

func TestOrderHandler_Create(t *testing.T) {
	customerID := uuid.New()
	actor := identity.Actor{UserID: customerID, Role: identity.RoleCustomer}
	productID, materialID := uuid.New(), uuid.New()

	t.Run("created", func(t *testing.T) {
		svc := new(MockOrderService)
		svc.On("CreateDraft", mock.Anything, actor, orderapp.CreateOrderRequest{
			ProductID: productID, MaterialID: materialID, Quantity: 2,
		}).Return(&orderapp.OrderResponse{ID: uuid.New(), Status: "draft", Quantity: 2}, nil)

		w := performRequest(setupOrderRouter(svc, asUser(customerID, identity.RoleCustomer)), http.MethodPost, "/orders",
			`{"product_id":"`+productID.String()+`","material_id":"`+materialID.String()+`","quantity":2}`)

		assert.Equal(t, http.StatusCreated, w.Code)
		resp := decodeResponse(t, w)
		assert.True(t, resp.Success)
		data := resp.Data.(map[string]any)
		assert.Equal(t, "draft", data["status"])
		svc.AssertExpectations(t)
	})

	t.Run("missing product is a validation error", func(t *testing.T) {
		svc := new(MockOrderService)

		w := performRequest(setupOrderRouter(svc, asUser(customerID, identity.RoleCustomer)), http.MethodPost, "/orders",
			`{"material_id":"`+materialID.String()+`"}`)

		resp := assertErrorCode(t, w, http.StatusBadRequest, dto.ErrCodeValidation)
		require.NotEmpty(t, resp.Error.Details)
		assert.Equal(t, "product_id", resp.Error.Details[0].Field)
		svc.AssertNotCalled(t, "CreateDraft", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unauthenticated", func(t *testing.T) {
		svc := new(MockOrderService)

		w := performRequest(setupOrderRouter(svc, anonymous()), http.MethodPost, "/orders", `{}`)

		assertErrorCode(t, w, http.StatusUnauthorized, shared.CodeUnauthorized)
	})

	t.Run("producer is forbidden by the service", func(t *testing.T) {
		producerID := uuid.New()
		svc := new(MockOrderService)
		svc.On("CreateDraft", mock.Anything, mock.Anything, mock.Anything).Return(nil, shared.ErrForbidden)

		w := performRequest(setupOrderRouter(svc, asUser(producerID, identity.RoleProducer)), http.MethodPost, "/orders",
			`{"product_id":"`+productID.String()+`","material_id":"`+materialID.String()+`"}`)

		assertErrorCode(t, w, http.StatusForbidden, shared.CodeForbidden)
	})
}

func TestOrderHandler_Get(t *testing.T) {
	userID := uuid.New()
	orderID := uuid.New()

	t.Run("invalid id", func(t *testing.T) {
		svc := new(MockOrderService)

		w := performRequest(setupOrderRouter(svc, asUser(userID, identity.RoleCustomer)), http.MethodGet, "/orders/not-a-uuid", "")

		resp := assertErrorCode(t, w, http.StatusBadRequest, dto.ErrCodeBadRequest)
		assert.Equal(t, "Invalid id format", resp.Error.Message)
	})

	t.Run("not found", func(t *testing.T) {
		svc := new(MockOrderService)
		svc.On("Get", mock.Anything, mock.Anything, orderID).Return(nil, shared.ErrNotFound)

		w := performRequest(setupOrderRouter(svc, asUser(userID, identity.RoleCustomer)), http.MethodGet, "/orders/"+orderID.String(), "")

		assertErrorCode(t, w, http.StatusNotFound, shared.CodeNotFound)
	})

	t.Run("found", func(t *testing.T) {
		svc := new(MockOrderService)
		price := decimal.RequireFromString("42.50")
		svc.On("Get", mock.Anything, identity.Actor{UserID: userID, Role: identity.RoleCustomer}, orderID).
			Return(&orderapp.OrderResponse{ID: orderID, Status: "pending", CustomerPrice: &price}, nil)

		w := performRequest(setupOrderRouter(svc, asUser(userID, identity.RoleCustomer)), http.MethodGet, "/orders/"+orderID.String(), "")

		assert.Equal(t, http.StatusOK, w.Code)
		data := decodeResponse(t, w).Data.(map[string]any)
		assert.Equal(t, orderID.String(), data["id"])
		assert.Equal(t, "42.5", data["customer_price"])
	})
}

func TestOrderHandler_List(t *testing.T) {
	userID := uuid.New()

	t.Run("page with meta", func(t *testing.T) {
		svc := new(MockOrderService)
		page := shared.NewPaginated([]orderapp.OrderResponse{{ID: uuid.New()}, {ID: uuid.New()}}, 12, 2, 5)
		svc.On("List", mock.Anything, mock.Anything, orderapp.ListOrdersRequest{Status: "pending", Page: 2, PageSize: 5}).
			Return(&page, nil)

		w := performRequest(setupOrderRouter(svc, asUser(userID, identity.RoleCustomer)), http.MethodGet,
			"/orders?status=pending&page=2&page_size=5", "")

		assert.Equal(t, http.StatusOK, w.Code)
		resp := decodeResponse(t, w)
		require.NotNil(t, resp.Meta)
		assert.Equal(t, int64(12), resp.Meta.Total)
		assert.Equal(t, 2, resp.Meta.Page)
		assert.Equal(t, 3, resp.Meta.TotalPages)
		assert.Len(t, resp.Data.([]any), 2)
	})

	t.Run("page size above limit", func(t *testing.T) {
		svc := new(MockOrderService)

		w := performRequest(setupOrderRouter(svc, asUser(userID, identity.RoleCustomer)), http.MethodGet, "/orders?page_size=500", "")

		assertErrorCode(t, w, http.StatusBadRequest, dto.ErrCodeValidation)
	})

	t.Run("empty pool renders an empty array", func(t *testing.T) {
		svc := new(MockOrderService)
		page := shared.NewPaginated[orderapp.OrderResponse](nil, 0, 1, 20)
		svc.On("ListPool", mock.Anything, mock.Anything, mock.Anything).Return(&page, nil)

		w := performRequest(setupOrderRouter(svc, asUser(userID, identity.RoleProducer)), http.MethodGet, "/orders/pool", "")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"data":[]`)
	})
}

func TestOrderHandler_Transitions(t *testing.T) {
	userID := uuid.New()
	orderID := uuid.New()

	tests := []struct {
		path   string
		method string
		status string
		body   []any
	}{
		{"submit", "Submit", "pending", nil},
		{"accept", "Accept", "accepted", []any{orderapp.AcceptRequest{}}},
		{"pay", "Pay", "paid", nil},
		{"start", "StartProduction", "printing", nil},
		{"complete", "CompleteProduction", "completed_by_producer", nil},
		{"confirm", "Confirm", "confirmed", []any{orderapp.ConfirmRequest{}}},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			svc := new(MockOrderService)
			args := append([]any{mock.Anything, mock.Anything, orderID}, tt.body...)
			svc.On(tt.method, args...).
				Return(&orderapp.OrderResponse{ID: orderID, Status: tt.status}, nil)

			w := performRequest(setupOrderRouter(svc, asUser(userID, identity.RoleCustomer)), http.MethodPost,
				"/orders/"+orderID.String()+"/"+tt.path, "")

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tt.status, decodeResponse(t, w).Data.(map[string]any)["status"])
			svc.AssertExpectations(t)
		})
	}
}

func TestOrderHandler_TransitionErrors(t *testing.T) {
	userID := uuid.New()
	orderID := uuid.New()

	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"wrong state", shared.ErrInvalidTransition, http.StatusUnprocessableEntity, shared.CodeInvalidTransition},
		{"lost race", shared.ErrConcurrencyConflict, http.StatusConflict, shared.CodeConcurrencyConflict},
		{"declined", shared.NewDomainError(shared.CodePaymentFailed, "Card declined"), http.StatusPaymentRequired, shared.CodePaymentFailed},
		{"storage failure", errors.New("db closed"), http.StatusInternalServerError, dto.ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockOrderService)
			svc.On("Pay", mock.Anything, mock.Anything, orderID).Return(nil, tt.err)

			w := performRequest(setupOrderRouter(svc, asUser(userID, identity.RoleCustomer)), http.MethodPost,
				"/orders/"+orderID.String()+"/pay", "")

			assertErrorCode(t, w, tt.status, tt.code)
		})
	}
}

func TestOrderHandler_ReasonBodies(t *testing.T) {
	userID := uuid.New()
	orderID := uuid.New()
	base := "/orders/" + orderID.String()

	t.Run("reject without body", func(t *testing.T) {
		svc := new(MockOrderService)
		svc.On("Reject", mock.Anything, mock.Anything, orderID, "").
			Return(&orderapp.OrderResponse{ID: orderID, Status: "rejected"}, nil)

		w := performRequest(setupOrderRouter(svc, asUser(userID, identity.RoleProducer)), http.MethodPost, base+"/reject", "")

		assert.Equal(t, http.StatusOK, w.Code)
		svc.AssertExpectations(t)
	})

	t.Run("cancel with reason", func(t *testing.T) {
		svc := new(MockOrderService)
		svc.On("Cancel", mock.Anything, mock.Anything, orderID, "changed my mind").
			Return(&orderapp.OrderResponse{ID: orderID, Status: "cancelled"}, nil)

		w := performRequest(setupOrderRouter(svc, asUser(userID, identity.RoleCustomer)), http.MethodPost, base+"/cancel",
			`{"reason":"changed my mind"}`)

		assert.Equal(t, http.StatusOK, w.Code)
		svc.AssertExpectations(t)
	})

	t.Run("dispute requires a body", func(t *testing.T) {
		svc := new(MockOrderService)

		w := performRequest(setupOrderRouter(svc, asUser(userID, identity.RoleCustomer)), http.MethodPost, base+"/dispute", "")

		assertErrorCode(t, w, http.StatusBadRequest, dto.ErrCodeBadRequest)
		svc.AssertNotCalled(t, "OpenDispute", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("dispute requires a reason", func(t *testing.T) {
		svc := new(MockOrderService)

		w := performRequest(setupOrderRouter(svc, asUser(userID, identity.RoleCustomer)), http.MethodPost, base+"/dispute", `{"reason":""}`)

		assertErrorCode(t, w, http.StatusBadRequest, dto.ErrCodeValidation)
	})

	t.Run("dispute outside the window", func(t *testing.T) {
		svc := new(MockOrderService)
		svc.On("OpenDispute", mock.Anything, mock.Anything, orderID, "broken part").
			Return(nil, shared.NewDomainError(shared.CodeDisputeWindow, "Dispute window has expired"))

		w := performRequest(setupOrderRouter(svc, asUser(userID, identity.RoleCustomer)), http.MethodPost, base+"/dispute",
			`{"reason":"broken part"}`)

		assertErrorCode(t, w, http.StatusUnprocessableEntity, shared.CodeDisputeWindow)
	})
}

func TestOrderHandler_Resolve(t *testing.T) {
	adminID := uuid.New()
	orderID := uuid.New()

	svc := new(MockOrderService)
	svc.On("ResolveDispute", mock.Anything, identity.Actor{UserID: adminID, Role: identity.RoleAdmin}, orderID,
		mock.MatchedBy(func(req orderapp.ResolveDisputeRequest) bool {
			return req.Resolution == "partial_refund" && req.RefundAmount.Equal(decimal.NewFromInt(10))
		})).Return(&orderapp.OrderResponse{ID: orderID, Status: "partially_refunded"}, nil)

	w := performRequest(setupOrderRouter(svc, asUser(adminID, identity.RoleAdmin)), http.MethodPost,
		"/orders/"+orderID.String()+"/resolve", `{"resolution":"partial_refund","refund_amount":"10"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

func TestOrderHandler_Requote(t *testing.T) {
	userID := uuid.New()
	orderID := uuid.New()

	t.Run("without body keeps the current support choice", func(t *testing.T) {
		svc := new(MockOrderService)
		svc.On("Requote", mock.Anything, mock.Anything, orderID, orderapp.RequoteRequest{}).
			Return(&orderapp.OrderResponse{ID: orderID, Status: "draft"}, nil)

		w := performRequest(setupOrderRouter(svc, asUser(userID, identity.RoleCustomer)), http.MethodPost,
			"/orders/"+orderID.String()+"/requote", "")

		assert.Equal(t, http.StatusOK, w.Code)
		svc.AssertExpectations(t)
	})

	t.Run("locked after payment", func(t *testing.T) {
		svc := new(MockOrderService)
		svc.On("Requote", mock.Anything, mock.Anything, orderID, mock.Anything).Return(nil, shared.ErrPricingLocked)

		w := performRequest(setupOrderRouter(svc, asUser(userID, identity.RoleCustomer)), http.MethodPost,
			"/orders/"+orderID.String()+"/requote", `{"support_required":true}`)

		assertErrorCode(t, w, http.StatusUnprocessableEntity, shared.CodePricingLocked)
	})
}

func TestOrderHandler_AcceptAndConfirmBodies(t *testing.T) {
	userID := uuid.New()
	orderID := uuid.New()
	base := "/orders/" + orderID.String()

	t.Run("accept passes the delivery estimate", func(t *testing.T) {
		svc := new(MockOrderService)
		svc.On("Accept", mock.Anything, mock.Anything, orderID, orderapp.AcceptRequest{DeliveryETADays: 5, Notes: "PETG only"}).
			Return(&orderapp.OrderResponse{ID: orderID, Status: "accepted", DeliveryETADays: 5}, nil)

		w := performRequest(setupOrderRouter(svc, asUser(userID, identity.RoleProducer)), http.MethodPost,
			base+"/accept", `{"delivery_eta_days":5,"notes":"PETG only"}`)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.EqualValues(t, 5, decodeResponse(t, w).Data.(map[string]any)["delivery_eta_days"])
		svc.AssertExpectations(t)
	})

	t.Run("accept rejects an estimate out of range", func(t *testing.T) {
		svc := new(MockOrderService)

		w := performRequest(setupOrderRouter(svc, asUser(userID, identity.RoleProducer)), http.MethodPost,
			base+"/accept", `{"delivery_eta_days":120}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		svc.AssertNotCalled(t, "Accept", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("confirm passes the rating", func(t *testing.T) {
		svc := new(MockOrderService)
		svc.On("Confirm", mock.Anything, mock.Anything, orderID, orderapp.ConfirmRequest{Rating: 4, ReviewText: "good"}).
			Return(&orderapp.OrderResponse{ID: orderID, Status: "confirmed"}, nil)

		w := performRequest(setupOrderRouter(svc, asUser(userID, identity.RoleCustomer)), http.MethodPost,
			base+"/confirm", `{"rating":4,"review_text":"good"}`)

		assert.Equal(t, http.StatusOK, w.Code)
		svc.AssertExpectations(t)
	})

	t.Run("confirm rejects a rating above five", func(t *testing.T) {
		svc := new(MockOrderService)

		w := performRequest(setupOrderRouter(svc, asUser(userID, identity.RoleCustomer)), http.MethodPost,
			base+"/confirm", `{"rating":6}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestOrderHandler_Shipping(t *testing.T) {
	userID := uuid.New()
	orderID := uuid.New()
	base := "/orders/" + orderID.String()

	t.Run("stores the address", func(t *testing.T) {
		svc := new(MockOrderService)
		svc.On("SetShipping", mock.Anything, mock.Anything, orderID,
			mock.MatchedBy(func(req orderapp.ShippingRequest) bool {
				return req.Address.City == "Izmir" && req.Method == "cargo" && req.Fee.Equal(decimal.NewFromInt(25))
			})).Return(&orderapp.OrderResponse{ID: orderID, Status: "paid"}, nil)

		w := performRequest(setupOrderRouter(svc, asUser(userID, identity.RoleCustomer)), http.MethodPost,
			base+"/shipping/info",
			`{"address":{"recipient_name":"Deniz","line1":"Alsancak 4","city":"Izmir","country":"TR"},"method":"cargo","fee":"25"}`)

		assert.Equal(t, http.StatusOK, w.Code)
		svc.AssertExpectations(t)
	})

	t.Run("body is required", func(t *testing.T) {
		svc := new(MockOrderService)

		w := performRequest(setupOrderRouter(svc, asUser(userID, identity.RoleCustomer)), http.MethodPost,
			base+"/shipping/info", "")

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("tracking by the producer", func(t *testing.T) {
		svc := new(MockOrderService)
		svc.On("RecordShipment", mock.Anything, mock.Anything, orderID,
			orderapp.TrackingRequest{TrackingNumber: "TRK-9", Carrier: "dhl"}).
			Return(&orderapp.OrderResponse{ID: orderID, Status: "in_production"}, nil)

		w := performRequest(setupOrderRouter(svc, asUser(userID, identity.RoleProducer)), http.MethodPost,
			base+"/shipping/tracking", `{"tracking_number":"TRK-9","carrier":"dhl"}`)

		assert.Equal(t, http.StatusOK, w.Code)
		svc.AssertExpectations(t)
	})

	t.Run("tracking on an unpaid order", func(t *testing.T) {
		svc := new(MockOrderService)
		svc.On("RecordShipment", mock.Anything, mock.Anything, orderID, mock.Anything).
			Return(nil, shared.NewDomainError(shared.CodeInvalidState, "Cannot ship order in accepted status"))

		w := performRequest(setupOrderRouter(svc, asUser(userID, identity.RoleProducer)), http.MethodPost,
			base+"/shipping/tracking", `{"tracking_number":"TRK-9"}`)

		assertErrorCode(t, w, http.StatusUnprocessableEntity, shared.CodeInvalidState)
	})
}
