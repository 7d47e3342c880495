package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	ingestionapp "github.com/crm/backend/internal/application/ingestion"
	"github.com/crm/backend/internal/infrastructure/cache"
	"github.com/crm/backend/internal/infrastructure/config"
	"github.com/crm/backend/internal/infrastructure/logger"
	"github.com/crm/backend/internal/infrastructure/persistence"
	"github.com/crm/backend/internal/infrastructure/telemetry"
	"github.com/crm/backend/internal/interfaces/http/handler"
	"github.com/crm/backend/internal/interfaces/http/middleware"
	"github.com/crm/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// version is overridden at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(logger.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Output:  cfg.Log.Output,
		Service: cfg.Telemetry.ServiceName,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting CRM webhook backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Telemetry
	tp, err := telemetry.NewTracerProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	mp, err := telemetry.NewMeterProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}

	// Database
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabase(&cfg.Database, persistence.WithLogger(gormLog))
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Database connected", zap.String("driver", db.Driver))

	// Postgres schemas are owned by cmd/migrate; sqlite is for local runs
	if db.Driver == "sqlite" {
		if err := persistence.AutoMigrate(db.DB); err != nil {
			log.Fatal("Failed to migrate sqlite schema", zap.Error(err))
		}
	}

	dbMetrics, err := telemetry.RegisterDBMetrics(ctx, db.DB, mp, log)
	if err != nil {
		log.Warn("Database metrics disabled", zap.Error(err))
	}

	ingestionMetrics, err := telemetry.NewIngestionMetrics(mp.Meter("ingestion"))
	if err != nil {
		log.Warn("Ingestion metrics disabled", zap.Error(err))
		ingestionMetrics = nil
	}

	// Creation guard
	lockers := cache.NewLockerFactory(cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(cfg.App.Env != "production"),
	)
	locker, err := lockers.Create(cfg.Ingestion.GuardMode)
	if err != nil {
		log.Fatal("Failed to create ingestion guard", zap.Error(err))
	}

	// Ingestion
	ingestionService := ingestionapp.NewService(ingestionapp.ServiceConfig{
		Configs:  persistence.NewGormIntegrationConfigRepository(db.DB),
		Mappings: persistence.NewGormFieldMappingRepository(db.DB),
		Logs:     persistence.NewGormIntegrationLogRepository(db.DB),
		Leads:    persistence.NewGormLeadRepository(db.DB),
		Cascade: ingestionapp.CascadeRepositories{
			Addresses:        persistence.NewGormLeadAddressRepository(db.DB),
			Responsibles:     persistence.NewGormLeadResponsibleRepository(db.DB),
			FollowUps:        persistence.NewGormLeadFollowUpRepository(db.DB),
			ProductInterests: persistence.NewGormLeadProductInterestRepository(db.DB),
			NonPurchaseTags:  persistence.NewGormLeadNonPurchaseTagRepository(db.DB),
		},
		Locker: locker,
		Settings: ingestionapp.Settings{
			DiagnosticFieldLimit: cfg.Ingestion.DiagnosticFieldLimit,
			PlaceholderName:      cfg.Ingestion.PlaceholderName,
			Location:             cfg.Ingestion.Location(),
			GuardTTL:             cfg.Ingestion.GuardTTL,
			GuardWait:            cfg.Ingestion.GuardWait,
		},
	})
	ingestionService.SetMetrics(ingestionMetrics)

	// HTTP
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := router.NewEngine(router.EngineConfig{
		Logger:          log,
		TrustedProxies:  cfg.HTTP.TrustedProxies,
		MaxBodySize:     cfg.HTTP.MaxBodySize,
		WebhookBodySize: cfg.Ingestion.MaxBodySize,
		Tracing: middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     tp.IsEnabled(),
		},
		MeterProvider: mp,
		Webhooks:      handler.NewWebhookHandler(ingestionService),
		System:        handler.NewSystemHandler(cfg.App.Name, version, db),
	})

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutting down server...")
	case err := <-serveErr:
		log.Error("Server failed", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := locker.Close(); err != nil {
		log.Warn("Error closing ingestion guard", zap.Error(err))
	}
	if dbMetrics != nil {
		dbMetrics.Stop()
	}
	if err := mp.Shutdown(shutdownCtx); err != nil {
		log.Warn("Error shutting down meter provider", zap.Error(err))
	}
	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.Warn("Error shutting down tracer provider", zap.Error(err))
	}
	if err := db.Close(); err != nil {
		log.Error("Error closing database", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
