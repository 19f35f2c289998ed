package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/printmarket/backend/internal/application/event"
	orderapp "github.com/printmarket/backend/internal/application/order"
	payoutapp "github.com/printmarket/backend/internal/application/payout"
	pricingapp "github.com/printmarket/backend/internal/application/pricing"
	reportapp "github.com/printmarket/backend/internal/application/report"
	"github.com/printmarket/backend/internal/domain/identity"
	"github.com/printmarket/backend/internal/domain/shared"
	"github.com/printmarket/backend/internal/infrastructure/auth"
	"github.com/printmarket/backend/internal/infrastructure/realtime"
	"github.com/printmarket/backend/internal/interfaces/http/dto"
	"github.com/printmarket/backend/internal/interfaces/http/handler"
	"github.com/printmarket/backend/internal/interfaces/http/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestNewRouter(t *testing.T) {
	r := NewRouter(gin.New())

	assert.Equal(t, "v1", r.apiVersion)
	assert.Empty(t, r.registrars)
}

func TestRouterWithAPIVersion(t *testing.T) {
	r := NewRouter(gin.New(), WithAPIVersion("v2"))

	assert.Equal(t, "v2", r.apiVersion)
}

func TestRouterSetup(t *testing.T) {
	engine := gin.New()
	var hits int
	r := NewRouter(engine).Use(func(c *gin.Context) {
		hits++
		c.Next()
	})

	group := NewDomainGroup("test", "/test")
	group.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	r.Register(group).Setup()

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/test/ping", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())
	assert.Equal(t, 1, hits)
}

func TestDomainGroup(t *testing.T) {
	t.Run("name and prefix", func(t *testing.T) {
		g := NewDomainGroup("orders", "/orders")
		assert.Equal(t, "orders", g.Name())
		assert.Equal(t, "/orders", g.Prefix())
	})

	t.Run("methods, middleware and subgroups", func(t *testing.T) {
		engine := gin.New()
		ok := func(c *gin.Context) { c.String(http.StatusOK, c.Request.Method) }

		g := NewDomainGroup("test", "/test").Use(func(c *gin.Context) {
			c.Header("X-Group", "test")
			c.Next()
		})
		g.GET("/items", ok).POST("/items", ok).PUT("/items/:id", ok).PATCH("/items/:id", ok)
		g.Group("nested", "/nested").GET("/leaf", ok)
		g.RegisterRoutes(engine.Group("/api/v1"))

		for _, tc := range []struct{ method, path string }{
			{http.MethodGet, "/api/v1/test/items"},
			{http.MethodPost, "/api/v1/test/items"},
			{http.MethodPut, "/api/v1/test/items/1"},
			{http.MethodPatch, "/api/v1/test/items/1"},
			{http.MethodGet, "/api/v1/test/nested/leaf"},
		} {
			w := httptest.NewRecorder()
			engine.ServeHTTP(w, httptest.NewRequest(tc.method, tc.path, nil))
			assert.Equal(t, http.StatusOK, w.Code, tc.path)
			assert.Equal(t, "test", w.Header().Get("X-Group"), tc.path)
		}
	})
}

type stubVerifier map[string]*identity.Identity

func (s stubVerifier) Verify(_ context.Context, token string) (*identity.Identity, error) {
	if id, ok := s[token]; ok {
		return id, nil
	}
	return nil, auth.ErrInvalidToken
}

// fakeOrders answers Get and List; the remaining methods are never routed to
// in these tests.
type fakeOrders struct {
	handler.OrderService
}

func (fakeOrders) Get(_ context.Context, _ identity.Actor, id uuid.UUID) (*orderapp.OrderResponse, error) {
	return &orderapp.OrderResponse{ID: id, Status: "pending"}, nil
}

func (fakeOrders) List(_ context.Context, actor identity.Actor, _ orderapp.ListOrdersRequest) (*shared.Paginated[orderapp.OrderResponse], error) {
	page := shared.NewPaginated([]orderapp.OrderResponse{{CustomerID: actor.UserID}}, 1, 1, 20)
	return &page, nil
}

type fakePricing struct {
	handler.PricingService
}

func (fakePricing) ListMaterials(context.Context) ([]pricingapp.MaterialResponse, error) {
	return []pricingapp.MaterialResponse{{Name: "PLA"}}, nil
}

func (fakePricing) Quote(_ context.Context, req pricingapp.QuoteRequest) (*pricingapp.QuoteResponse, error) {
	return &pricingapp.QuoteResponse{ProductID: req.ProductID, Currency: "EUR"}, nil
}

type fakeOutbox struct {
	handler.OutboxAdmin
}

func (fakeOutbox) Stats(context.Context, identity.Actor) (*event.StatsResponse, error) {
	return &event.StatsResponse{}, nil
}

type fakePayouts struct{}

func (fakePayouts) List(context.Context, identity.Actor, payoutapp.ListPayoutsRequest) (*shared.Paginated[payoutapp.PayoutResponse], error) {
	page := shared.NewPaginated[payoutapp.PayoutResponse](nil, 0, 1, 20)
	return &page, nil
}

type fakeReports struct{}

func (fakeReports) Stats(_ context.Context, _ identity.Actor, req reportapp.StatsRequest) (*reportapp.StatsResponse, error) {
	return &reportapp.StatsResponse{WindowDays: req.Days}, nil
}

const (
	customerToken = "customer-token"
	adminToken    = "admin-token"
)

func newTestEngine(limiter middleware.Limiter) *gin.Engine {
	health := handler.NewHealthHandler("test")
	return New(Deps{
		ServiceName: "printmarket-test",
		Verifier: stubVerifier{
			customerToken: {ID: uuid.New(), Role: identity.RoleCustomer},
			adminToken:    {ID: uuid.New(), Role: identity.RoleAdmin},
		},
		Limiter:     limiter,
		CORS:        middleware.DefaultCORSConfig(),
		Security:    middleware.DefaultSecurityConfig(),
		Profiling:   middleware.ProfilingConfig{},
		MaxBodySize: 1 << 20,
		Health:      health,
		Orders:      fakeOrders{},
		Pricing:     fakePricing{},
		Outbox:      fakeOutbox{},
		Payouts:     fakePayouts{},
		Reports:     fakeReports{},
		Hub:         realtime.NewHub(),
		Heartbeat:   time.Minute,
	})
}

func do(engine http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	return resp.Error.Code
}

func TestNew_PublicRoutes(t *testing.T) {
	engine := newTestEngine(nil)

	t.Run("health", func(t *testing.T) {
		w := do(engine, http.MethodGet, "/health", "", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
		assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	})

	t.Run("materials without credentials", func(t *testing.T) {
		w := do(engine, http.MethodGet, "/api/v1/materials", "", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "PLA")
	})

	t.Run("unknown route", func(t *testing.T) {
		w := do(engine, http.MethodGet, "/api/v1/nope", "", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, dto.ErrCodeRouteNotFound, errorCode(t, w))
	})
}

func TestNew_Authentication(t *testing.T) {
	engine := newTestEngine(nil)

	t.Run("missing token", func(t *testing.T) {
		w := do(engine, http.MethodGet, "/api/v1/orders", "", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, shared.CodeUnauthorized, errorCode(t, w))
	})

	t.Run("invalid token", func(t *testing.T) {
		w := do(engine, http.MethodGet, "/api/v1/orders", "forged", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("valid token", func(t *testing.T) {
		w := do(engine, http.MethodGet, "/api/v1/orders", customerToken, "")
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("order by id", func(t *testing.T) {
		id := uuid.New()
		w := do(engine, http.MethodGet, "/api/v1/orders/"+id.String(), customerToken, "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), id.String())
	})
}

func TestNew_AdminRoutes(t *testing.T) {
	engine := newTestEngine(nil)

	w := do(engine, http.MethodGet, "/api/v1/admin/outbox/stats", customerToken, "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(engine, http.MethodGet, "/api/v1/admin/outbox/stats", adminToken, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(engine, http.MethodGet, "/api/v1/admin/stats?days=7", customerToken, "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(engine, http.MethodGet, "/api/v1/admin/stats?days=7", adminToken, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"window_days":7`)
}

func TestNew_PayoutRoutes(t *testing.T) {
	engine := newTestEngine(nil)

	w := do(engine, http.MethodGet, "/api/v1/payouts", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(engine, http.MethodGet, "/api/v1/payouts", adminToken, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"data":[]`)
}

func TestNew_RateLimitsQuotes(t *testing.T) {
	engine := newTestEngine(middleware.NewMemoryLimiter(1, time.Minute))
	body := `{"product_id":"` + uuid.NewString() + `","material_id":"` + uuid.NewString() + `"}`

	w := do(engine, http.MethodPost, "/api/v1/quotes", customerToken, body)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Limit"))

	w = do(engine, http.MethodPost, "/api/v1/quotes", customerToken, body)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, dto.ErrCodeRateLimited, errorCode(t, w))

	// reads are not limited
	w = do(engine, http.MethodGet, "/api/v1/orders", customerToken, "")
	assert.Equal(t, http.StatusOK, w.Code)
}
