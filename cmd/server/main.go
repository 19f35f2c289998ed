package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	catalogapp "github.com/printmarket/backend/internal/application/catalog"
	eventapp "github.com/printmarket/backend/internal/application/event"
	messageapp "github.com/printmarket/backend/internal/application/message"
	notificationapp "github.com/printmarket/backend/internal/application/notification"
	orderapp "github.com/printmarket/backend/internal/application/order"
	payoutapp "github.com/printmarket/backend/internal/application/payout"
	pricingapp "github.com/printmarket/backend/internal/application/pricing"
	reportapp "github.com/printmarket/backend/internal/application/report"
	"github.com/printmarket/backend/internal/domain/pricing"
	"github.com/printmarket/backend/internal/domain/shared"
	"github.com/printmarket/backend/internal/infrastructure/analysis"
	"github.com/printmarket/backend/internal/infrastructure/auth"
	"github.com/printmarket/backend/internal/infrastructure/cache"
	"github.com/printmarket/backend/internal/infrastructure/config"
	"github.com/printmarket/backend/internal/infrastructure/event"
	"github.com/printmarket/backend/internal/infrastructure/logger"
	"github.com/printmarket/backend/internal/infrastructure/migration"
	"github.com/printmarket/backend/internal/infrastructure/payment"
	"github.com/printmarket/backend/internal/infrastructure/persistence"
	"github.com/printmarket/backend/internal/infrastructure/realtime"
	"github.com/printmarket/backend/internal/infrastructure/scheduler"
	"github.com/printmarket/backend/internal/infrastructure/storage"
	"github.com/printmarket/backend/internal/infrastructure/telemetry"
	"github.com/printmarket/backend/internal/interfaces/http/handler"
	"github.com/printmarket/backend/internal/interfaces/http/middleware"
	"github.com/printmarket/backend/internal/interfaces/http/router"
	"github.com/printmarket/backend/migrations"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

//	@title			Print Marketplace API
//	@version		1.0
//	@description	Marketplace connecting customers with 3D-print producers: quoting, orders, chat and notifications.

//	@host		localhost:8080
//	@BasePath	/api/v1

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Bearer token authentication. Format: "Bearer {token}"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	logCfg := &logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	}
	bootLog := logger.New(logCfg)

	// Telemetry comes first so the final logger can tee into the OTLP log pipeline
	providers, err := telemetry.Setup(context.Background(), telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		Insecure:          cfg.Telemetry.Insecure,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    cfg.Telemetry.ServiceVersion,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		MetricsInterval:   cfg.Telemetry.MetricsInterval,
	}, bootLog)
	if err != nil {
		bootLog.Fatal("Failed to initialize telemetry", zap.Error(err))
	}

	log := logger.New(logCfg, providers.ZapCore(logger.ParseLevel(cfg.Log.Level)))
	defer func() {
		_ = log.Sync()
	}()
	defer func() {
		if err := providers.Shutdown(context.Background()); err != nil {
			log.Error("Error shutting down telemetry", zap.Error(err))
		}
	}()

	log.Info("Starting print marketplace",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", cfg.Telemetry.ServiceVersion),
	)

	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:         cfg.Telemetry.ProfilingEnabled,
		ServerAddress:   cfg.Telemetry.PyroscopeEndpoint,
		ApplicationName: cfg.Telemetry.ServiceName,
	}, log)
	if err != nil {
		log.Warn("Continuous profiling disabled", zap.Error(err))
	} else {
		defer func() {
			_ = profiler.Stop()
		}()
		if profiler.IsEnabled() {
			providers.EnableSpanProfiles()
		}
	}

	meter := providers.Meter(cfg.Telemetry.ServiceName)

	// Database
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	gormLog.SlowThreshold = cfg.Telemetry.DBSlowQueryThresh
	db, err := persistence.NewDatabase(&cfg.Database, persistence.WithLogger(gormLog))
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	sqlDB, err := db.DB.DB()
	if err != nil {
		log.Fatal("Failed to get sql.DB", zap.Error(err))
	}

	if cfg.Database.AutoMigrate {
		migrator, err := migration.NewFromFS(sqlDB, migrations.FS, log)
		if err != nil {
			log.Fatal("Failed to create migrator", zap.Error(err))
		}
		if err := migrator.Up(); err != nil {
			log.Fatal("Failed to apply migrations", zap.Error(err))
		}
	}

	dbInstr, err := telemetry.NewDBInstrumentation(meter, telemetry.DBConfig{
		Tracing:         cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
		SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
	}, log)
	if err != nil {
		log.Warn("Database instrumentation disabled", zap.Error(err))
	} else if err := dbInstr.Register(db.DB); err != nil {
		log.Warn("Failed to register database instrumentation", zap.Error(err))
	} else {
		dbInstr.StartPoolStats(context.Background(), sqlDB)
		defer dbInstr.Stop()
	}

	// Redis is optional; every consumer has an in-process fallback
	var redisClient redis.UniversalClient
	if cfg.Redis.Enabled {
		client, err := cache.NewRedisClient(context.Background(), cfg.Redis)
		if err != nil {
			log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer func() {
			_ = client.Close()
		}()
		redisClient = client
		log.Info("Redis connected", zap.String("addr", cfg.Redis.Addr()))
	}

	// Repositories
	orderRepo := persistence.NewGormOrderRepository(db.DB)
	productRepo := persistence.NewGormProductRepository(db.DB)
	messageRepo := persistence.NewGormMessageRepository(db.DB)
	notificationRepo := persistence.NewGormNotificationRepository(db.DB)
	ratesRepo := persistence.NewGormProducerRatesRepository(db.DB)
	outboxRepo := event.NewGormOutboxRepository(db.DB)
	payoutRepo := persistence.NewGormPayoutRepository(db.DB)
	statsRepo := persistence.NewGormStatsRepository(db.DB)

	var materialRepo pricing.MaterialRepository = persistence.NewGormMaterialRepository(db.DB)
	if redisClient != nil {
		materialRepo = cache.NewCachedMaterialRepository(materialRepo, cache.NewRedisKV(redisClient), cfg.Redis.MaterialCacheTTL, log)
	}

	// Outbox: aggregates write events in their own transaction
	serializer := event.NewRegisteredSerializer()
	outboxPublisher := event.NewOutboxPublisher(serializer)
	outboxPublisher.SetMaxRetries(cfg.Event.MaxRetries)
	orderRepo.SetOutboxEventSaver(outboxPublisher)
	messageRepo.SetOutboxEventSaver(outboxPublisher)

	// External adapters
	objectStorage, err := newObjectStorage(cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize object storage", zap.Error(err))
	}
	var analyzer catalogapp.ModelAnalyzer
	if cfg.Analysis.URL != "" {
		analyzer = analysis.NewClient(cfg.Analysis)
	} else {
		log.Warn("Analysis service not configured; product analysis is unavailable")
	}
	gateway, err := payment.NewGateway(cfg.Payment, log)
	if err != nil {
		log.Fatal("Failed to initialize payment gateway", zap.Error(err))
	}

	businessMetrics, err := telemetry.NewBusinessMetrics(telemetry.BusinessMetricsConfig{
		Meter:      meter,
		Logger:     log,
		OrderStats: orderRepo,
	})
	if err != nil {
		log.Fatal("Failed to initialize business metrics", zap.Error(err))
	}
	defer businessMetrics.Stop()

	// Application services
	catalogService := catalogapp.NewService(productRepo, objectStorage, analyzer, log)
	catalogService.SetConfig(catalogapp.ServiceConfig{
		UploadURLExpiry:   cfg.Storage.PresignExpiration,
		DownloadURLExpiry: cfg.Storage.PresignExpiration,
	})

	quoteService, err := pricingapp.NewQuoteService(materialRepo, ratesRepo, catalogService, pricing.PlatformRates{
		CommissionRate: cfg.Pricing.CommissionRate,
		PaymentFeeRate: cfg.Pricing.PaymentFeeRate,
	}, cfg.Pricing.Currency, log)
	if err != nil {
		log.Fatal("Invalid pricing configuration", zap.Error(err))
	}
	quoteService.SetRecorder(businessMetrics)

	orderService := orderapp.NewService(orderRepo, quoteService, gateway, log)
	orderService.SetMetrics(businessMetrics)

	messageService := messageapp.NewService(messageRepo, orderRepo, log)
	notificationService := notificationapp.NewService(notificationRepo)
	outboxService := eventapp.NewOutboxService(outboxRepo, log)
	payoutService := payoutapp.NewService(payoutRepo, orderRepo, cfg.Pricing.Currency, cfg.Pricing.PayoutDelay, log)
	reportService := reportapp.NewService(statsRepo, log)

	// Real-time hub
	hubOpts := []realtime.HubOption{
		realtime.WithClientBuffer(cfg.Realtime.ClientBuffer),
		realtime.WithLogger(log),
	}
	if cfg.Realtime.RedisFanout && redisClient != nil {
		hubOpts = append(hubOpts, realtime.WithFanout(realtime.NewRedisFanout(redisClient, cfg.Realtime.Channel, log)))
	}
	hub := realtime.NewHub(hubOpts...)

	// Event delivery: outbox -> bus -> idempotent emitter -> notifications + pushes
	eventBus := event.NewInMemoryEventBus(log)
	emitter := notificationapp.NewEmitter(notificationRepo, hub, log)
	idempotencyStore := cache.NewIdempotencyStore(redisClient, log)
	defer func() {
		_ = idempotencyStore.Close()
	}()
	idempotencyCfg := shared.DefaultIdempotencyConfig()
	idempotencyCfg.TTL = cfg.Event.IdempotencyTTL
	notificationHandler := event.NewIdempotentHandler("notification_emitter", emitter, idempotencyStore, log,
		event.WithIdempotencyConfig(idempotencyCfg))
	eventBus.Subscribe(notificationHandler, emitter.EventTypes()...)
	payoutHandler := event.NewIdempotentHandler("payout_scheduler", payoutService, idempotencyStore, log,
		event.WithIdempotencyConfig(idempotencyCfg))
	eventBus.Subscribe(payoutHandler, payoutService.EventTypes()...)

	if err := eventBus.Start(context.Background()); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer func() {
		if err := eventBus.Stop(context.Background()); err != nil {
			log.Error("Error stopping event bus", zap.Error(err))
		}
	}()

	if cfg.Event.ProcessorEnabled {
		processorCfg := event.DefaultOutboxProcessorConfig()
		processorCfg.BatchSize = cfg.Event.BatchSize
		processorCfg.PollInterval = cfg.Event.PollInterval
		processorCfg.CleanupEnabled = cfg.Event.CleanupEnabled
		if cfg.Event.CleanupRetention > 0 {
			processorCfg.CleanupRetention = cfg.Event.CleanupRetention
		}
		processor := event.NewOutboxProcessor(outboxRepo, eventBus, serializer, processorCfg, log)
		orderRepo.SetOutboxNotifier(processor)
		messageRepo.SetOutboxNotifier(processor)
		if err := processor.Start(context.Background()); err != nil {
			log.Fatal("Failed to start outbox processor", zap.Error(err))
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := processor.Stop(ctx); err != nil {
				log.Error("Error stopping outbox processor", zap.Error(err))
			}
		}()
	} else {
		log.Warn("Outbox processor disabled; notifications will not be delivered by this instance")
	}

	// Maintenance jobs
	if cfg.Scheduler.Enabled {
		jobs := scheduler.New(scheduler.Config{
			Workers:       cfg.Scheduler.Workers,
			JobTimeout:    cfg.Scheduler.JobTimeout,
			RetryAttempts: cfg.Scheduler.RetryAttempts,
			RetryDelay:    cfg.Scheduler.RetryDelay,
		}, log)
		jobs.Register(taskExpireUnpaidOrders, func(ctx context.Context) error {
			_, err := orderService.ExpireUnpaid(ctx, cfg.Scheduler.UnpaidOrderTTL, cfg.Scheduler.ExpiryBatchSize)
			return err
		})
		if err := jobs.Start(context.Background()); err != nil {
			log.Fatal("Failed to start scheduler", zap.Error(err))
		}
		expiry := scheduler.NewTrigger(jobs, taskExpireUnpaidOrders, cfg.Scheduler.ExpiryInterval, log, scheduler.RunOnStart())
		if err := expiry.Start(context.Background()); err != nil {
			log.Fatal("Failed to start expiry trigger", zap.Error(err))
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = expiry.Stop(ctx)
			if err := jobs.Stop(ctx); err != nil {
				log.Error("Error stopping scheduler", zap.Error(err))
			}
		}()
	}

	// HTTP
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	var limiter middleware.Limiter
	if cfg.HTTP.RateLimitRequests > 0 {
		if redisClient != nil {
			limiter = middleware.NewRedisLimiter(redisClient, "ratelimit:", cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		} else {
			limiter = middleware.NewMemoryLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		}
	}

	health := handler.NewHealthHandler(cfg.Telemetry.ServiceVersion)
	health.AddCheck("database", db.Ping)
	if redisClient != nil {
		health.AddCheck("redis", func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	if len(cfg.HTTP.CORSAllowMethods) > 0 {
		corsCfg.AllowMethods = cfg.HTTP.CORSAllowMethods
	}
	if len(cfg.HTTP.CORSAllowHeaders) > 0 {
		corsCfg.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	}
	securityCfg := middleware.DefaultSecurityConfig()
	securityCfg.HSTSEnabled = cfg.App.Env == "production"
	profilingCfg := middleware.DefaultProfilingConfig()
	profilingCfg.Enabled = profiler != nil && profiler.IsEnabled()

	engine := router.New(router.Deps{
		Logger:         log,
		ServiceName:    cfg.Telemetry.ServiceName,
		Meter:          meter,
		Verifier:       auth.NewVerifier(cfg),
		Limiter:        limiter,
		CORS:           corsCfg,
		Security:       securityCfg,
		Profiling:      profilingCfg,
		MaxBodySize:    cfg.HTTP.MaxBodySize,
		TrustedProxies: cfg.HTTP.TrustedProxies,
		Health:         health,
		Orders:         orderService,
		Pricing:        quoteService,
		Catalog:        catalogService,
		Messages:       messageService,
		Notifications:  notificationService,
		Outbox:         outboxService,
		Payouts:        payoutService,
		Reports:        reportService,
		Hub:            hub,
		Heartbeat:      cfg.Realtime.HeartbeatInterval,
	})

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	businessMetrics.StartPeriodicCollection(ctx, cfg.Telemetry.MetricsInterval)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return hub.Run(gctx)
	})
	g.Go(func() error {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		// Close streams first; Shutdown does not wait for hijacked or long-lived responses
		if err := hub.Close(shutdownCtx); err != nil {
			log.Warn("Error closing realtime hub", zap.Error(err))
		}
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("Server stopped with error", zap.Error(err))
		os.Exit(1)
	}
	log.Info("Server exited gracefully")
}

const taskExpireUnpaidOrders = "expire_unpaid_orders"

// newObjectStorage returns S3 storage, or the local stub when no credentials are
// configured
func newObjectStorage(cfg *config.Config, log *zap.Logger) (catalogapp.ObjectStorage, error) {
	if cfg.Storage.AccessKey == "" {
		log.Warn("Object storage credentials not configured; using stub storage")
		return storage.NewStubObjectStorage("http://localhost:" + cfg.App.Port + "/stub-storage"), nil
	}
	return storage.NewS3ObjectStorage(context.Background(), cfg.Storage,
		storage.WithLogger(log),
		storage.WithPresignExpiration(cfg.Storage.PresignExpiration),
	)
}
