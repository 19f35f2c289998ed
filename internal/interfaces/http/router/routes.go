package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/printmarket/backend/internal/domain/identity"
	"github.com/printmarket/backend/internal/infrastructure/auth"
	"github.com/printmarket/backend/internal/infrastructure/logger"
	"github.com/printmarket/backend/internal/interfaces/http/dto"
	"github.com/printmarket/backend/internal/interfaces/http/handler"
	"github.com/printmarket/backend/internal/interfaces/http/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// Deps is everything the HTTP surface needs. Meter and Limiter are optional.
type Deps struct {
	Logger         *zap.Logger
	ServiceName    string
	TracingOptions []otelgin.Option
	Meter          metric.Meter
	Verifier       auth.IdentityVerifier
	Limiter        middleware.Limiter

	CORS           middleware.CORSConfig
	Security       middleware.SecurityConfig
	Profiling      middleware.ProfilingConfig
	MaxBodySize    int64
	TrustedProxies []string

	Health        *handler.HealthHandler
	Orders        handler.OrderService
	Pricing       handler.PricingService
	Catalog       handler.CatalogService
	Messages      handler.MessageService
	Notifications handler.NotificationService
	Outbox        handler.OutboxAdmin
	Payouts       handler.PayoutService
	Reports       handler.ReportService
	Hub           handler.StreamHub
	Heartbeat     time.Duration
}

// New builds the engine serving the marketplace API
func New(d Deps) *gin.Engine {
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}

	engine := gin.New()
	if len(d.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(d.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Order matters: the request ID must exist before the span and the request
	// logger pick it up, and recovery must sit inside the logger so panics are
	// logged with their 500.
	engine.Use(
		middleware.RequestID(),
		middleware.Tracing(d.ServiceName, d.TracingOptions...),
		middleware.SpanAttributes(),
		logger.GinMiddleware(log),
		logger.Recovery(log),
		middleware.SecureWithConfig(d.Security),
		middleware.CORSWithConfig(d.CORS),
	)
	if d.MaxBodySize > 0 {
		engine.Use(middleware.BodyLimit(d.MaxBodySize))
	}
	engine.Use(middleware.HTTPMetrics(d.Meter, log))

	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, dto.NewErrorResponse(dto.ErrCodeRouteNotFound,
			"Route not found", c.GetString(middleware.RequestIDKey)))
	})

	if d.Health != nil {
		engine.GET("/health", d.Health.Health)
	}

	pricingHandler := handler.NewPricingHandler(d.Pricing)
	orderHandler := handler.NewOrderHandler(d.Orders)
	catalogHandler := handler.NewCatalogHandler(d.Catalog)
	messageHandler := handler.NewMessageHandler(d.Messages)
	notificationHandler := handler.NewNotificationHandler(d.Notifications)
	streamHandler := handler.NewStreamHandler(d.Hub, d.Orders, d.Heartbeat)
	outboxHandler := handler.NewOutboxHandler(d.Outbox)
	payoutHandler := handler.NewPayoutHandler(d.Payouts, d.Reports)

	rateLimited := passThrough
	if d.Limiter != nil {
		rateLimited = middleware.RateLimit(d.Limiter, log)
	}

	// Public
	public := NewRouter(engine, WithAPIVersion("v1"))
	public.Register(NewDomainGroup("materials", "/materials").
		GET("", pricingHandler.ListMaterials))
	public.Setup()

	// Authenticated
	api := NewRouter(engine, WithAPIVersion("v1")).
		Use(middleware.Authenticate(d.Verifier, log), middleware.Profiling(d.Profiling))

	api.Register(NewDomainGroup("quotes", "/quotes").
		POST("", rateLimited, pricingHandler.Quote))

	api.Register(NewDomainGroup("producers", "/producers/me").
		GET("/rates", pricingHandler.GetRates).
		PUT("/rates", pricingHandler.UpdateRates))

	api.Register(NewDomainGroup("catalog", "/products").
		POST("", catalogHandler.Register).
		GET("", catalogHandler.List).
		GET("/:id", catalogHandler.Get).
		POST("/:id/uploaded", catalogHandler.MarkUploaded).
		POST("/:id/analyze", catalogHandler.Analyze))

	api.Register(NewDomainGroup("orders", "/orders").
		POST("", orderHandler.Create).
		GET("", orderHandler.List).
		GET("/pool", orderHandler.ListPool).
		GET("/:id", orderHandler.Get).
		POST("/:id/submit", orderHandler.Submit).
		POST("/:id/accept", orderHandler.Accept).
		POST("/:id/reject", orderHandler.Reject).
		POST("/:id/pay", orderHandler.Pay).
		POST("/:id/start", orderHandler.Start).
		POST("/:id/complete", orderHandler.Complete).
		POST("/:id/confirm", orderHandler.Confirm).
		POST("/:id/cancel", orderHandler.Cancel).
		POST("/:id/dispute", orderHandler.Dispute).
		POST("/:id/resolve", orderHandler.Resolve).
		POST("/:id/requote", orderHandler.Requote).
		POST("/:id/shipping/info", orderHandler.Shipping).
		POST("/:id/shipping/tracking", orderHandler.Tracking).
		GET("/:id/messages", messageHandler.List).
		POST("/:id/messages", rateLimited, messageHandler.Send))

	api.Register(NewDomainGroup("messages", "/messages").
		PATCH("/:id/read", messageHandler.MarkRead))

	api.Register(NewDomainGroup("notifications", "/notifications").
		GET("", notificationHandler.List).
		GET("/unread-count", notificationHandler.UnreadCount).
		POST("/read-all", notificationHandler.MarkAllRead).
		PATCH("/:id/read", notificationHandler.MarkRead))

	api.Register(NewDomainGroup("payouts", "/payouts").
		GET("", payoutHandler.List))

	api.Register(NewDomainGroup("stream", "/stream").
		GET("", streamHandler.Stream))

	admin := NewDomainGroup("admin", "/admin").Use(middleware.RequireRole(identity.RoleAdmin)).
		GET("/stats", payoutHandler.Stats)
	admin.Group("outbox", "/outbox").
		GET("/stats", outboxHandler.Stats).
		GET("/dead", outboxHandler.ListDead).
		POST("/dead/retry", outboxHandler.RetryAll).
		GET("/:id", outboxHandler.Get).
		POST("/:id/retry", outboxHandler.Retry)
	api.Register(admin)

	api.Setup()
	return engine
}

func passThrough(c *gin.Context) {
	c.Next()
}
