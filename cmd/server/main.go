package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"payledger/internal/app"
	"payledger/internal/config"
	"payledger/internal/gateway"
	"payledger/internal/handler"
	"payledger/internal/metrics"
	internalRedis "payledger/internal/redis"
	"payledger/internal/repository/postgres"
	"payledger/internal/service"
)

func main() {
	// Load configuration.
	cfg := config.Load()

	logger, err := app.NewLogger(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tp, err := app.NewTracerProvider(ctx, cfg.Telemetry)
	if err != nil {
		logger.Fatal("failed to initialize tracing", zap.Error(err))
	}

	// Initialize New Relic FIRST (before database so we can instrument DB).
	var nrApp *newrelic.Application
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			logger.Warn("failed to initialize New Relic", zap.Error(err))
		} else {
			logger.Info("New Relic enabled", zap.String("app", cfg.NewRelic.AppName))
		}
	}

	db, err := app.NewDatabase(ctx, cfg.Database, nrApp, logger)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	logger.Info("connected to PostgreSQL")

	redisClient, err := app.NewRedisClient(ctx, cfg.Redis, nrApp)
	if err != nil {
		logger.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer redisClient.Close()
	logger.Info("connected to Redis")

	srv, err := wireServer(db, redisClient, nrApp, logger, cfg)
	if err != nil {
		logger.Fatal("failed to wire server", zap.Error(err))
	}

	workersCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()
	go srv.reconciler.Run(workersCtx)
	go srv.poller.Run(workersCtx)

	go func() {
		logger.Info("starting server", zap.String("port", cfg.Server.Port))
		if err := srv.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	stopWorkers()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.http.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	srv.notifier.Wait()
	if err := tp.Shutdown(shutdownCtx); err != nil {
		logger.Warn("tracer shutdown failed", zap.Error(err))
	}
	if nrApp != nil {
		nrApp.Shutdown(5 * time.Second)
	}

	logger.Info("server exited")
}

type server struct {
	http       *http.Server
	reconciler *service.ExpiryReconciler
	poller     *service.PayoutPoller
	notifier   *service.NotificationService
}

// wireServer wires all dependencies and returns the HTTP server with its
// background workers.
func wireServer(db *sql.DB, redisClient *redis.Client, nrApp *newrelic.Application, logger *zap.Logger, cfg *config.Config) (*server, error) {
	// Metrics.
	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(promReg)

	// Gateways.
	registry, currencies, err := app.NewGatewayRegistry(cfg.Gateways, gateway.NewHTTPClient(cfg.Ledger.GatewayTimeout), m)
	if err != nil {
		return nil, err
	}
	logger.Info("gateways configured", zap.Int("count", len(registry.Names())))

	// Initialize Redis stores.
	markerStore := internalRedis.NewPendingMarkerStore(redisClient)
	lockStore := internalRedis.NewLockStore(redisClient)
	cacheStore := internalRedis.NewCacheStore(redisClient, cfg.Ledger.PayoutCacheTTL)
	publisher := internalRedis.NewPublisher(redisClient)

	// Initialize repositories.
	paymentRepo := postgres.NewPaymentRepository(db)
	itemRepo := postgres.NewItemRepository(db)
	catalogRepo := postgres.NewCatalogRepository(db)
	payoutRepo := postgres.NewPayoutRepository(db)
	beneficiaryRepo := postgres.NewBeneficiaryRepository(db)
	uow := postgres.NewUnitOfWork(db)

	// Initialize services.
	notificationService := service.NewNotificationService(publisher, logger.Named("notify"))
	paymentService := service.NewPaymentService(service.PaymentDeps{
		Payments: paymentRepo,
		Items:    itemRepo,
		Catalog:  catalogRepo,
		UoW:      uow,
		Markers:  markerStore,
		Gateways: registry,
		Notifier: notificationService,
		Logger:   logger.Named("ledger"),
		Metrics:  m,
	}, service.PaymentConfig{
		PendingTTL:     cfg.Ledger.PendingTTL,
		GatewayTimeout: cfg.Ledger.GatewayTimeout,
		Currencies:     currencies,
	})
	webhookService := service.NewWebhookService(registry, paymentRepo, paymentService, cacheStore, logger.Named("webhook"), m)
	reconciler := service.NewExpiryReconciler(paymentRepo, markerStore, lockStore, paymentService, logger.Named("expiry"), m, nrApp, service.ExpiryConfig{
		Interval:     cfg.Ledger.SweepInterval,
		PendingTTL:   cfg.Ledger.PendingTTL,
		BatchSize:    cfg.Ledger.SweepBatch,
		RetryBackoff: cfg.Ledger.SweepRetryBackoff,
	})
	payoutService := service.NewPayoutService(service.PayoutDeps{
		Payouts:        payoutRepo,
		Beneficiaries:  beneficiaryRepo,
		Cache:          cacheStore,
		Gateways:       registry,
		Logger:         logger.Named("payout"),
		Metrics:        m,
		Currencies:     currencies,
		GatewayTimeout: cfg.Ledger.GatewayTimeout,
	})
	poller := service.NewPayoutPoller(payoutService, cfg.Ledger.PayoutPollInterval, service.DefaultPayoutPollBatch, logger.Named("payout"), nrApp)

	// Initialize handlers.
	paymentHandler := handler.NewPaymentHandler(paymentService)
	webhookHandler := handler.NewWebhookHandler(webhookService)
	payoutHandler := handler.NewPayoutHandler(payoutService)

	// Create router.
	router := app.NewRouter(app.RouterDeps{
		PaymentHandler: paymentHandler,
		WebhookHandler: webhookHandler,
		PayoutHandler:  payoutHandler,
		RedisClient:    redisClient,
		NewRelicApp:    nrApp,
		Gatherer:       promReg,
		Logger:         logger,
		ServiceName:    cfg.Telemetry.ServiceName,
	})

	return &server{
		http: &http.Server{
			Addr:         ":" + cfg.Server.Port,
			Handler:      router,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
		reconciler: reconciler,
		poller:     poller,
		notifier:   notificationService,
	}, nil
}
