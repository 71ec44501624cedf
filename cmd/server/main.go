package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	firebase "firebase.google.com/go/v4"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"dispatch/internal/app"
	"dispatch/internal/config"
	"dispatch/internal/handler"
	internalRedis "dispatch/internal/redis"
	"dispatch/internal/repository/postgres"
	"dispatch/internal/service"
)

func main() {
	// Load configuration.
	cfg := config.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

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

	// Initialize database with New Relic instrumentation.
	db, err := app.NewDatabase(ctx, cfg.Database, nrApp)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	logger.Info("connected to PostgreSQL")

	// Initialize Redis with New Relic instrumentation.
	redisClient, err := app.NewRedisClient(ctx, cfg.Redis, nrApp)
	if err != nil {
		logger.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer redisClient.Close()
	logger.Info("connected to Redis")

	// FCM is optional; without it job offers are logged, not pushed.
	sender := newMessageSender(ctx, cfg.Firebase, logger)

	// Wire dependencies.
	server := wireServer(db, redisClient, nrApp, sender, cfg, logger)

	// Start server in goroutine.
	go func() {
		logger.Info("starting server", zap.String("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server exited")
}

// newMessageSender builds the FCM client when Firebase is configured.
func newMessageSender(ctx context.Context, cfg config.FirebaseConfig, logger *zap.Logger) service.MessageSender {
	if !cfg.Enabled {
		return nil
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	fbApp, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, opts...)
	if err != nil {
		logger.Warn("failed to initialize Firebase, push disabled", zap.Error(err))
		return nil
	}

	client, err := fbApp.Messaging(ctx)
	if err != nil {
		logger.Warn("failed to initialize FCM client, push disabled", zap.Error(err))
		return nil
	}

	logger.Info("FCM enabled", zap.String("project", cfg.ProjectID))
	return client
}

// newDistanceProvider selects the Distance Matrix API when a key is
// configured, otherwise a haversine estimate.
func newDistanceProvider(cfg config.MapsConfig, logger *zap.Logger) service.DistanceProvider {
	if cfg.APIKey != "" {
		provider, err := service.NewGoogleDistanceProvider(cfg.APIKey)
		if err == nil {
			logger.Info("using Google Distance Matrix provider")
			return provider
		}
		logger.Warn("failed to initialize maps client, falling back to haversine", zap.Error(err))
	}
	return service.NewHaversineDistanceProvider()
}

// wireServer wires all dependencies and returns the HTTP server.
func wireServer(
	db *sql.DB,
	redisClient *redis.Client,
	nrApp *newrelic.Application,
	sender service.MessageSender,
	cfg *config.Config,
	logger *zap.Logger,
) *http.Server {
	// Initialize Redis stores.
	dispatchStore := internalRedis.NewDispatchStore(redisClient)
	lockStore := internalRedis.NewLockStore(redisClient)
	cacheStore := internalRedis.NewCacheStore(redisClient)

	// Initialize repositories.
	orderRepo := postgres.NewOrderRepository(db)
	driverRepo := postgres.NewDriverRepository(db)
	cancellationRepo := postgres.NewCancellationRepository(db)
	txManager := postgres.NewTxManager(db)

	// Initialize services.
	notificationService := service.NewNotificationService(sender, cfg.Dispatch.SendTimeout, logger)
	dispatchService := service.NewDispatchService(
		txManager, orderRepo, driverRepo, dispatchStore, lockStore, cacheStore,
		notificationService, cfg.Dispatch.OrderLockTTL, logger,
	)
	estimator := service.NewCostEstimator(cfg.Pricing)
	distanceProvider := newDistanceProvider(cfg.Maps, logger)
	orderService := service.NewOrderService(
		txManager, orderRepo, dispatchService, estimator, distanceProvider,
		cfg.Pricing.DefaultServiceFeePct, logger,
	)
	paymentService := service.NewPaymentService(orderRepo, orderService, dispatchService, logger)
	driverService := service.NewDriverService(driverRepo, cacheStore, cfg.Dispatch.HeartbeatTTL, logger)
	cancellationService := service.NewCancellationService(
		txManager, cancellationRepo, orderRepo, driverRepo, dispatchService, lockStore,
		notificationService, cfg.Dispatch.OrderLockTTL, logger,
	)

	// Initialize handlers.
	orderHandler := handler.NewOrderHandler(orderService, orderRepo)
	driverHandler := handler.NewDriverHandler(driverService, dispatchService, orderService)
	paymentHandler := handler.NewPaymentHandler(paymentService)
	cancellationHandler := handler.NewCancellationHandler(cancellationService)

	// Create router.
	router := app.NewRouter(app.RouterDeps{
		OrderHandler:        orderHandler,
		DriverHandler:       driverHandler,
		PaymentHandler:      paymentHandler,
		CancellationHandler: cancellationHandler,
		RedisClient:         redisClient,
		NewRelicApp:         nrApp,
	})

	// Create HTTP server.
	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
}
