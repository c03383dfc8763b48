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

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"courier/internal/app"
	"courier/internal/config"
	"courier/internal/handler"
	"courier/internal/metrics"
	internalRedis "courier/internal/redis"
	"courier/internal/repository/postgres"
	"courier/internal/service"
)

func main() {
	// Load configuration.
	cfg := config.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize New Relic FIRST (before database so we can instrument DB).
	var nrApp *newrelic.Application
	var err error
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			log.Printf("failed to initialize New Relic: %v", err)
		} else {
			log.Printf("New Relic enabled: app=%s (with DB instrumentation)", cfg.NewRelic.AppName)
		}
	}

	// Initialize database with New Relic instrumentation.
	db, err := app.NewDatabase(ctx, cfg.Database, nrApp)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Connected to PostgreSQL")

	// Initialize Redis with New Relic instrumentation.
	redisClient, err := app.NewRedisClient(ctx, cfg.Redis, nrApp)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("Connected to Redis")

	// Wire dependencies.
	server, scheduler := wireServer(db, redisClient, nrApp, cfg)

	// Start the periodic assignment sweep.
	scheduler.Start()

	// Start server in goroutine.
	go func() {
		log.Printf("Starting server on port %s", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	scheduler.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}

// wireServer wires all dependencies and returns the HTTP server plus the
// assignment scheduler.
func wireServer(db *sql.DB, redisClient *redis.Client, nrApp *newrelic.Application, cfg *config.Config) (*http.Server, *service.AssignmentScheduler) {
	// Initialize Redis stores.
	locationStore := internalRedis.NewLocationStore(redisClient)
	lockStore := internalRedis.NewLockStore(redisClient)
	cacheStore := internalRedis.NewCacheStore(redisClient)

	// Initialize repositories.
	courierRepo := postgres.NewCourierRepository(db)
	deliveryRepo := postgres.NewDeliveryRepository(db)
	missionRepo := postgres.NewMissionRepository(db)

	// Initialize services.
	notificationService := service.NewNotificationService()
	matchingService := service.NewMatchingService(db, locationStore, lockStore, cacheStore, courierRepo, deliveryRepo, notificationService)
	matchingService.SetLockTTLs(cfg.Scheduler.CourierLockTTL, cfg.Scheduler.DeliveryLockTTL)
	deliveryService := service.NewDeliveryService(db, deliveryRepo, courierRepo, matchingService, notificationService)
	missionService := service.NewMissionService(db, missionRepo, deliveryRepo, courierRepo, notificationService)
	courierService := service.NewCourierService(locationStore, cacheStore, courierRepo)

	// Sweep metrics.
	sweepAttempted := metrics.NewSweepAttemptedTotal()
	sweepAssigned := metrics.NewSweepAssignedTotal()
	prometheus.MustRegister(sweepAttempted, sweepAssigned)

	scheduler := service.NewAssignmentScheduler(deliveryRepo, matchingService, cfg.Scheduler.SweepInterval, sweepAttempted, sweepAssigned)

	// Initialize handlers.
	deliveryHandler := handler.NewDeliveryHandler(deliveryService, deliveryRepo)
	courierHandler := handler.NewCourierHandler(courierService, courierRepo)
	missionHandler := handler.NewMissionHandler(missionService)

	// Create router.
	router := app.NewRouter(app.RouterDeps{
		DeliveryHandler: deliveryHandler,
		CourierHandler:  courierHandler,
		MissionHandler:  missionHandler,
		RedisClient:     redisClient,
		NewRelicApp:     nrApp,
	})

	// Create HTTP server.
	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, scheduler
}
