package integration

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	catalogapp "github.com/printmarket/backend/internal/application/catalog"
	eventapp "github.com/printmarket/backend/internal/application/event"
	messageapp "github.com/printmarket/backend/internal/application/message"
	notificationapp "github.com/printmarket/backend/internal/application/notification"
	orderapp "github.com/printmarket/backend/internal/application/order"
	payoutapp "github.com/printmarket/backend/internal/application/payout"
	pricingapp "github.com/printmarket/backend/internal/application/pricing"
	reportapp "github.com/printmarket/backend/internal/application/report"
	"github.com/printmarket/backend/internal/domain/catalog"
	"github.com/printmarket/backend/internal/domain/identity"
	"github.com/printmarket/backend/internal/domain/message"
	"github.com/printmarket/backend/internal/domain/order"
	"github.com/printmarket/backend/internal/domain/pricing"
	"github.com/printmarket/backend/internal/domain/shared"
	"github.com/printmarket/backend/internal/infrastructure/auth"
	"github.com/printmarket/backend/internal/infrastructure/cache"
	"github.com/printmarket/backend/internal/infrastructure/config"
	"github.com/printmarket/backend/internal/infrastructure/event"
	"github.com/printmarket/backend/internal/infrastructure/payment"
	"github.com/printmarket/backend/internal/infrastructure/persistence"
	"github.com/printmarket/backend/internal/infrastructure/realtime"
	"github.com/printmarket/backend/internal/infrastructure/storage"
	"github.com/printmarket/backend/internal/interfaces/http/handler"
	"github.com/printmarket/backend/internal/interfaces/http/middleware"
	"github.com/printmarket/backend/internal/interfaces/http/router"
	"github.com/printmarket/backend/tests/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fixedAnalyzer reports the same geometry for every file
type fixedAnalyzer struct{}

func (fixedAnalyzer) Analyze(_ context.Context, _ string) (*catalog.Analysis, error) {
	return &catalog.Analysis{
		MassGrams:        decimal.NewFromInt(50),
		PrintTimeMinutes: decimal.NewFromInt(120),
		VolumeCm3:        decimal.NewFromInt(40),
		AnalyzedAt:       time.Now().UTC(),
	}, nil
}

// racingOrderRepository lets a test slip a competing request in between an order
// being loaded and its compare-and-swap save
type racingOrderRepository struct {
	*persistence.GormOrderRepository

	mu         sync.Mutex
	beforeSave func()
}

// BeforeNextSave registers fn to run once, just before the next save
func (r *racingOrderRepository) BeforeNextSave(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.beforeSave = fn
}

func (r *racingOrderRepository) SaveWithLockAndEvents(ctx context.Context, o *order.Order, events []shared.DomainEvent) error {
	r.mu.Lock()
	hook := r.beforeSave
	r.beforeSave = nil
	r.mu.Unlock()
	if hook != nil {
		hook()
	}
	return r.GormOrderRepository.SaveWithLockAndEvents(ctx, o, events)
}

// testApp is the marketplace wired over a real database, served in process
type testApp struct {
	DB        *TestDB
	Handler   http.Handler
	Recorder  *testutil.RecordingEventHandler
	Orders    *orderapp.Service
	OrderRepo *racingOrderRepository

	jwt *auth.JWTService
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	tdb := NewSharedTestDB(t)
	log := zap.NewNop()

	orderRepo := persistence.NewGormOrderRepository(tdb.DB)
	productRepo := persistence.NewGormProductRepository(tdb.DB)
	messageRepo := persistence.NewGormMessageRepository(tdb.DB)
	notificationRepo := persistence.NewGormNotificationRepository(tdb.DB)
	ratesRepo := persistence.NewGormProducerRatesRepository(tdb.DB)
	materialRepo := persistence.NewGormMaterialRepository(tdb.DB)
	outboxRepo := event.NewGormOutboxRepository(tdb.DB)

	serializer := event.NewRegisteredSerializer()
	publisher := event.NewOutboxPublisher(serializer)
	orderRepo.SetOutboxEventSaver(publisher)
	messageRepo.SetOutboxEventSaver(publisher)

	catalogService := catalogapp.NewService(productRepo, storage.NewStubObjectStorage("http://stub"), fixedAnalyzer{}, log)
	quoteService, err := pricingapp.NewQuoteService(materialRepo, ratesRepo, catalogService, pricing.PlatformRates{
		CommissionRate: decimal.NewFromInt(10),
		PaymentFeeRate: decimal.NewFromInt(3),
	}, "EUR", log)
	require.NoError(t, err)
	racingRepo := &racingOrderRepository{GormOrderRepository: orderRepo}
	orderService := orderapp.NewService(racingRepo, quoteService, payment.NewDemoGateway(), log)

	hub := realtime.NewHub(realtime.WithLogger(log))
	recorder := testutil.NewRecordingEventHandler(
		order.EventTypeOrderCreated, order.EventTypeOrderTransitioned, message.EventTypeMessageSent)

	bus := event.NewInMemoryEventBus(log)
	emitter := notificationapp.NewEmitter(notificationRepo, hub, log)
	store := cache.NewInMemoryIdempotencyStore()
	bus.Subscribe(event.NewIdempotentHandler("notification_emitter", emitter, store, log), emitter.EventTypes()...)
	bus.Subscribe(recorder, recorder.EventTypes()...)
	payoutService := payoutapp.NewService(persistence.NewGormPayoutRepository(tdb.DB), orderRepo, "EUR", 72*time.Hour, log)
	bus.Subscribe(event.NewIdempotentHandler("payout_scheduler", payoutService, store, log), payoutService.EventTypes()...)
	require.NoError(t, bus.Start(context.Background()))

	processorCfg := event.DefaultOutboxProcessorConfig()
	processorCfg.PollInterval = 50 * time.Millisecond
	processorCfg.CleanupEnabled = false
	processor := event.NewOutboxProcessor(outboxRepo, bus, serializer, processorCfg, log)
	orderRepo.SetOutboxNotifier(processor)
	messageRepo.SetOutboxNotifier(processor)
	require.NoError(t, processor.Start(context.Background()))

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = processor.Stop(ctx)
		_ = bus.Stop(ctx)
		_ = hub.Close(ctx)
		_ = store.Close()
	})

	jwtService := auth.NewJWTService(config.JWTConfig{
		Secret: "integration-secret-with-enough-bytes",
		Issuer: "printmarket-test",
	})

	engine := router.New(router.Deps{
		Logger:        log,
		ServiceName:   "printmarket-integration",
		Verifier:      jwtService,
		CORS:          middleware.DefaultCORSConfig(),
		Security:      middleware.DefaultSecurityConfig(),
		MaxBodySize:   1 << 20,
		Health:        handler.NewHealthHandler("test"),
		Orders:        orderService,
		Pricing:       quoteService,
		Catalog:       catalogService,
		Messages:      messageapp.NewService(messageRepo, orderRepo, log),
		Notifications: notificationapp.NewService(notificationRepo),
		Outbox:        eventapp.NewOutboxService(outboxRepo, log),
		Payouts:       payoutService,
		Reports:       reportapp.NewService(persistence.NewGormStatsRepository(tdb.DB), log),
		Hub:           hub,
		Heartbeat:     time.Minute,
	})

	return &testApp{
		DB:        tdb,
		Handler:   engine,
		Recorder:  recorder,
		Orders:    orderService,
		OrderRepo: racingRepo,
		jwt:       jwtService,
	}
}

// user is an authenticated caller of the test app
type user struct {
	ID uuid.UUID
	testutil.APIClient
}

func (a *testApp) newUser(t *testing.T, role identity.Role) user {
	t.Helper()

	id := uuid.New()
	token, err := a.jwt.GenerateToken(identity.Identity{
		ID:    id,
		Email: id.String() + "@example.com",
		Name:  string(role),
		Role:  role,
	}, time.Hour)
	require.NoError(t, err)

	return user{ID: id, APIClient: testutil.APIClient{Handler: a.Handler, Token: token}}
}

// analyzedProduct registers, uploads and analyzes a product owned by owner
func (a *testApp) analyzedProduct(t *testing.T, owner user) catalogapp.ProductResponse {
	t.Helper()

	ticket := testutil.Expect[catalogapp.UploadTicket](t,
		owner.Do(t, http.MethodPost, "/api/v1/products", catalogapp.RegisterProductRequest{
			Name:     "Bracket",
			FileName: "bracket.stl",
			FileSize: 2048,
		}), http.StatusCreated)
	require.NotEmpty(t, ticket.UploadURL)

	path := "/api/v1/products/" + ticket.Product.ID.String()
	testutil.Expect[catalogapp.ProductResponse](t, owner.Do(t, http.MethodPost, path+"/uploaded", nil), http.StatusOK)
	product := testutil.Expect[catalogapp.ProductResponse](t, owner.Do(t, http.MethodPost, path+"/analyze", nil), http.StatusOK)
	require.Equal(t, string(catalog.ProductStatusAnalyzed), product.Status)
	return product
}

// pendingPoolOrder creates and submits an order without a producer
func (a *testApp) pendingPoolOrder(t *testing.T, customer user) orderapp.OrderResponse {
	t.Helper()

	product := a.analyzedProduct(t, customer)
	draft := testutil.Expect[orderapp.OrderResponse](t,
		customer.Do(t, http.MethodPost, "/api/v1/orders", orderapp.CreateOrderRequest{
			ProductID:  product.ID,
			MaterialID: MaterialPLA,
			Quantity:   1,
		}), http.StatusCreated)
	require.Equal(t, string(order.StatusDraft), draft.Status)

	return testutil.Expect[orderapp.OrderResponse](t,
		customer.Do(t, http.MethodPost, "/api/v1/orders/"+draft.ID.String()+"/submit", nil), http.StatusOK)
}

func (a *testApp) unreadCount(t *testing.T, u user) int64 {
	t.Helper()
	resp := testutil.Expect[notificationapp.UnreadCountResponse](t,
		u.Do(t, http.MethodGet, "/api/v1/notifications/unread-count", nil), http.StatusOK)
	return resp.Count
}
