package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	appaccounting "github.com/smartvillage/backend/internal/application/accounting"
	appevent "github.com/smartvillage/backend/internal/application/event"
	"github.com/smartvillage/backend/internal/domain/accounting"
	"github.com/smartvillage/backend/internal/infrastructure/auth"
	"github.com/smartvillage/backend/internal/infrastructure/cache"
	"github.com/smartvillage/backend/internal/infrastructure/config"
	"github.com/smartvillage/backend/internal/infrastructure/event"
	"github.com/smartvillage/backend/internal/infrastructure/lock"
	"github.com/smartvillage/backend/internal/infrastructure/logger"
	"github.com/smartvillage/backend/internal/infrastructure/notification"
	"github.com/smartvillage/backend/internal/infrastructure/persistence"
	"github.com/smartvillage/backend/internal/infrastructure/scheduler"
	"github.com/smartvillage/backend/internal/infrastructure/telemetry"
	"github.com/smartvillage/backend/internal/interfaces/http/handler"
	"github.com/smartvillage/backend/internal/interfaces/http/middleware"
	"github.com/smartvillage/backend/internal/interfaces/http/router"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// devVillageID is the fallback village used by development environments
// without a JWT in front. Matches the handler-level fallback.
var devVillageID = uuid.MustParse("00000000-0000-0000-0000-000000000001")

// propertyLockTimeout bounds how long an allocation waits for a busy
// property before giving up.
const propertyLockTimeout = 10 * time.Second

// overdueSweepBatchSize is the number of invoices flagged per sweep
// transaction.
const overdueSweepBatchSize = 200

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting Smart Village Accounting",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Initialize OpenTelemetry tracing and log export (no-op when disabled)
	tracerProvider, err := telemetry.NewTracerProvider(context.Background(), telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	loggerProvider, err := telemetry.NewLoggerProvider(context.Background(), telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize logger provider", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := loggerProvider.Shutdown(shutdownCtx); err != nil {
			log.Error("Error shutting down logger provider", zap.Error(err))
		}
	}()
	if loggerProvider.IsEnabled() {
		otelCore := telemetry.NewZapOTELCore(telemetry.ZapBridgeConfig{
			ServiceName:    cfg.Telemetry.ServiceName,
			LoggerProvider: loggerProvider,
			Level:          zapcore.InfoLevel,
		})
		log = telemetry.NewBridgedLogger(log.Core(), otelCore)
	}

	// Create GORM logger backed by zap
	gormLogLevel := logger.MapGormLogLevel(cfg.Log.Level)
	gormLog := logger.NewGormLogger(log, gormLogLevel)

	// Initialize database connection with custom logger
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Unit of work shared by all application services
	uow := persistence.NewGormUnitOfWork(db)
	outboxRepo := event.NewGormOutboxRepository(db.DB)

	// Initialize event serializer and register all event types
	eventSerializer := event.NewEventSerializer()
	event.RegisterAllEvents(eventSerializer)

	// Services publish through the outbox so delivery survives restarts
	publisher := event.NewStorePublisher(outboxRepo, eventSerializer)

	// Idempotency store (Redis, with in-memory fallback in development)
	storeFactory := cache.NewIdempotencyStoreFactory(cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(cfg.App.Env != "production"),
	)
	idempotencyStore, err := storeFactory.CreateStore()
	if err != nil {
		log.Fatal("Failed to create idempotency store", zap.Error(err))
	}

	// Allocation runs one payment per property at a time
	propertyLock := lock.NewPropertyLock(propertyLockTimeout)

	// Initialize application services
	invoiceService := appaccounting.NewInvoiceService(uow, publisher)
	receiptService := appaccounting.NewReceiptService(uow, publisher)
	allocationService := appaccounting.NewAllocationService(uow, propertyLock, receiptService, publisher, log)
	matchScorer := accounting.NewMatchScorer(accounting.MatcherConfig{
		AutoMatchThreshold: cfg.Reconciliation.AutoMatchThreshold,
		ReviewThreshold:    cfg.Reconciliation.ReviewThreshold,
		DateWindowDays:     cfg.Reconciliation.DateWindowDays,
		MaxCandidates:      cfg.Reconciliation.MaxCandidates,
	})
	reconciliationService := appaccounting.NewReconciliationService(uow, matchScorer, allocationService, idempotencyStore, publisher, log)
	trialBalanceService := appaccounting.NewTrialBalanceService(uow, log)
	overdueSweep := appaccounting.NewOverdueSweep(uow, publisher, log, overdueSweepBatchSize)
	outboxService := appevent.NewOutboxService(outboxRepo, log)

	// Initialize event bus and handlers
	eventBus := event.NewInMemoryEventBus(log)

	// Ledger events -> resident notifications, deduplicated across redeliveries
	notificationHandler := appaccounting.NewNotificationHandler(notification.NewLogNotifier(log), log)
	eventBus.Subscribe(event.NewIdempotentHandler(notificationHandler, idempotencyStore, log))

	log.Info("Event handlers registered",
		zap.Strings("notification_events", notificationHandler.EventTypes()),
	)

	// Start event bus
	if err := eventBus.Start(context.Background()); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer func() {
		if err := eventBus.Stop(context.Background()); err != nil {
			log.Error("Error stopping event bus", zap.Error(err))
		}
	}()

	// Outbox processor moves stored events onto the bus
	if cfg.Event.ProcessorEnabled {
		processorConfig := event.DefaultOutboxProcessorConfig()
		processorConfig.BatchSize = cfg.Event.BatchSize
		processorConfig.PollInterval = cfg.Event.PollInterval
		processorConfig.CleanupEnabled = cfg.Event.CleanupEnabled
		processorConfig.CleanupRetention = cfg.Event.CleanupRetention
		outboxProcessor := event.NewOutboxProcessor(outboxRepo, eventBus, eventSerializer, processorConfig, log)
		if err := outboxProcessor.Start(context.Background()); err != nil {
			log.Fatal("Failed to start outbox processor", zap.Error(err))
		}
		defer func() {
			if err := outboxProcessor.Stop(context.Background()); err != nil {
				log.Error("Error stopping outbox processor", zap.Error(err))
			}
		}()
		log.Info("Outbox processor started",
			zap.Int("batch_size", processorConfig.BatchSize),
			zap.Duration("poll_interval", processorConfig.PollInterval),
		)
	}

	// Seed the chart of accounts for the development village so a fresh
	// database can take invoices immediately.
	if cfg.App.Env != "production" {
		if err := trialBalanceService.EnsureChart(context.Background(), devVillageID); err != nil {
			log.Warn("Failed to seed development chart of accounts", zap.Error(err))
		}
	}

	// Nightly overdue sweep and trial balance snapshot per village
	if cfg.Scheduler.Enabled {
		schedulerConfig := scheduler.SchedulerConfig{
			Enabled:           cfg.Scheduler.Enabled,
			MaxConcurrentJobs: cfg.Scheduler.MaxConcurrentJobs,
			JobTimeout:        cfg.Scheduler.JobTimeout,
			RetryAttempts:     cfg.Scheduler.RetryAttempts,
			RetryDelay:        cfg.Scheduler.RetryDelay,
		}
		jobExecutor := scheduler.NewAccountingJobExecutor(overdueSweep, trialBalanceService, log)
		jobScheduler := scheduler.NewScheduler(schedulerConfig, jobExecutor, log)
		if err := jobScheduler.Start(context.Background()); err != nil {
			log.Fatal("Failed to start scheduler", zap.Error(err))
		}
		defer func() {
			if err := jobScheduler.Stop(context.Background()); err != nil {
				log.Error("Error stopping scheduler", zap.Error(err))
			}
		}()

		hour, minute, _ := scheduler.ParseCronSchedule(cfg.Scheduler.DailyCronSchedule)
		cronTrigger := scheduler.NewCronTrigger(scheduler.CronTriggerConfig{
			DailyRunHour:   hour,
			DailyRunMinute: minute,
			CheckInterval:  time.Minute,
		}, jobScheduler, persistence.NewGormVillageProvider(db.DB), log)
		if err := cronTrigger.Start(context.Background()); err != nil {
			log.Fatal("Failed to start cron trigger", zap.Error(err))
		}
		defer func() {
			if err := cronTrigger.Stop(context.Background()); err != nil {
				log.Error("Error stopping cron trigger", zap.Error(err))
			}
		}()
		log.Info("Scheduler started",
			zap.Int("max_concurrent_jobs", cfg.Scheduler.MaxConcurrentJobs),
			zap.Int("daily_hour", hour),
			zap.Int("daily_minute", minute),
		)
	}

	// JWT verification for the API surface; token issuance is handled by
	// the village portal upstream.
	jwtService := auth.NewJWTService(cfg.JWT)

	// Revoked tokens are rejected at the middleware. Production shares the
	// blacklist through Redis so a logout on one instance holds everywhere;
	// development keeps it in process.
	var tokenBlacklist auth.TokenBlacklist
	if cfg.App.Env == "production" {
		redisBlacklist, err := auth.NewRedisTokenBlacklist(auth.RedisTokenBlacklistConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			log.Fatal("Failed to connect token blacklist", zap.Error(err))
		}
		defer func() {
			if err := redisBlacklist.Close(); err != nil {
				log.Error("Error closing token blacklist", zap.Error(err))
			}
		}()
		tokenBlacklist = redisBlacklist
	} else {
		tokenBlacklist = auth.NewInMemoryTokenBlacklist()
	}

	// Initialize HTTP handlers
	invoiceHandler := handler.NewInvoiceHandler(invoiceService)
	paymentHandler := handler.NewPaymentHandler(allocationService)
	reconciliationHandler := handler.NewReconciliationHandler(reconciliationService)
	receiptHandler := handler.NewReceiptHandler(receiptService)
	trialBalanceHandler := handler.NewTrialBalanceHandler(trialBalanceService)
	outboxHandler := handler.NewOutboxHandler(outboxService)
	systemHandler := handler.NewSystemHandler()

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup validation
	middleware.SetupValidator()

	// Initialize router with custom middleware
	engine := gin.New()

	// Configure trusted proxies
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Apply middleware stack in order:
	// 1. RequestID - Generate/propagate request ID
	// 2. Tracing - OpenTelemetry spans (if enabled)
	// 3. Recovery - Catch panics
	// 4. Logger - Log requests
	// 5. Security - Add security headers
	// 6. CORS - Handle cross-origin requests
	// 7. BodyLimit - Limit request body size
	// 8. RateLimit - Apply rate limiting (if enabled)
	engine.Use(middleware.RequestID())
	if cfg.Telemetry.Enabled {
		engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     true,
		}))
	}
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())

	// Configure CORS from config
	corsConfig := middleware.CORSConfig{
		AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
		AllowMethods:     cfg.HTTP.CORSAllowMethods,
		AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	engine.Use(middleware.CORSWithConfig(corsConfig))

	// Body size limit
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	// Rate limiting (if enabled)
	if cfg.HTTP.RateLimitEnabled {
		rateLimiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		engine.Use(middleware.RateLimit(rateLimiter))
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
		)
	}

	// Health check endpoints (outside API versioning)
	engine.GET("/health", healthHandler(db))
	engine.GET("/healthz", healthHandler(db))

	// Setup API routes using router
	r := router.NewRouter(engine, router.WithAPIVersion("v1"))

	// Apply JWT authentication middleware to API routes
	publicPaths := []string{
		"/api/v1/ping",
		"/api/v1/system/ping",
		"/api/v1/system/info",
	}
	jwtConfig := middleware.JWTMiddlewareConfig{
		JWTService:     jwtService,
		TokenBlacklist: tokenBlacklist,
		SkipPaths:      publicPaths,
		Logger:         log,
	}
	r.Use(middleware.JWTAuthMiddlewareWithConfig(jwtConfig))

	// Resolve the village for every authenticated request. JWT claims win;
	// development environments may fall back to the X-Village-ID header.
	r.Use(middleware.VillageMiddlewareWithConfig(middleware.VillageMiddlewareConfig{
		JWTEnabled:    true,
		HeaderEnabled: cfg.App.Env != "production",
		SkipPaths:     publicPaths,
		Required:      cfg.App.Env == "production",
		Logger:        log,
	}))

	// Invoice lifecycle
	invoiceRoutes := router.NewDomainGroup("invoices", "/invoices")
	invoiceRoutes.POST("", middleware.RequirePermission("invoice:create"), invoiceHandler.IssueInvoice)
	invoiceRoutes.GET("", middleware.RequirePermission("invoice:read"), invoiceHandler.ListInvoices)
	invoiceRoutes.GET("/:id", middleware.RequirePermission("invoice:read"), invoiceHandler.GetInvoice)
	invoiceRoutes.POST("/:id/cancel", middleware.RequirePermission("invoice:cancel"), invoiceHandler.CancelInvoice)

	// Payment intake and allocation
	paymentRoutes := router.NewDomainGroup("payments", "/payments")
	paymentRoutes.POST("", middleware.RequirePermission("payment:create"), paymentHandler.RecordPayment)
	paymentRoutes.GET("/:id", middleware.RequirePermission("payment:read"), paymentHandler.GetPayment)
	paymentRoutes.POST("/:id/confirm", middleware.RequirePermission("payment:confirm"), paymentHandler.ConfirmPayment)

	// Bank statement reconciliation
	reconciliationRoutes := router.NewDomainGroup("reconciliation", "/reconciliation")
	reconciliationRoutes.POST("/import", middleware.RequirePermission("reconciliation:import"), reconciliationHandler.ImportStatement)
	reconciliationRoutes.GET("/lines", middleware.RequirePermission("reconciliation:read"), reconciliationHandler.ListLines)
	reconciliationRoutes.POST("/lines/:id/match", middleware.RequirePermission("reconciliation:match"), reconciliationHandler.ManualMatch)
	reconciliationRoutes.POST("/lines/:id/unmatch", middleware.RequirePermission("reconciliation:match"), reconciliationHandler.Unmatch)

	// Receipts
	receiptRoutes := router.NewDomainGroup("receipts", "/receipts")
	receiptRoutes.GET("", middleware.RequirePermission("receipt:read"), receiptHandler.ListReceipts)
	receiptRoutes.POST("/:id/void-reissue", middleware.RequirePermission("receipt:void"), receiptHandler.VoidAndReissue)

	// Trial balance and posting halt
	trialBalanceRoutes := router.NewDomainGroup("trial-balance", "/trial-balance")
	trialBalanceRoutes.GET("", middleware.RequirePermission("ledger:read"), trialBalanceHandler.GetTrialBalance)
	trialBalanceRoutes.POST("/clear-halt", middleware.RequirePermission("ledger:admin"), trialBalanceHandler.ClearHalt)

	// System and outbox administration
	systemRoutes := router.NewDomainGroup("system", "/system")
	systemRoutes.GET("/info", systemHandler.GetSystemInfo)
	systemRoutes.GET("/ping", systemHandler.Ping)
	outboxAdmin := middleware.RequirePermission("system:admin")
	systemRoutes.GET("/outbox/dead-letters", outboxAdmin, outboxHandler.GetDeadLetterEntries)
	systemRoutes.GET("/outbox/entries/:id", outboxAdmin, outboxHandler.GetEntry)
	systemRoutes.POST("/outbox/entries/:id/retry", outboxAdmin, outboxHandler.RetryDeadEntry)
	systemRoutes.POST("/outbox/retry-all", outboxAdmin, outboxHandler.RetryAllDeadEntries)
	systemRoutes.GET("/outbox/stats", outboxAdmin, outboxHandler.GetStats)

	// Register all domain groups
	r.Register(invoiceRoutes).
		Register(paymentRoutes).
		Register(reconciliationRoutes).
		Register(receiptRoutes).
		Register(trialBalanceRoutes).
		Register(systemRoutes)

	// Setup routes
	r.Setup()

	// Also keep a simple ping at root API level for basic health checks
	engine.GET("/api/v1/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// healthHandler returns a handler for health check endpoints
func healthHandler(db *persistence.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqLog := logger.GetGinLogger(c)
		if err := db.Ping(); err != nil {
			reqLog.Warn("Health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"time":     time.Now().Format(time.RFC3339),
				"database": "error",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"time":     time.Now().Format(time.RFC3339),
			"database": "ok",
		})
	}
}
