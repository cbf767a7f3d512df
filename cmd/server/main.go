package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	syncapp "github.com/catalogsync/backend/internal/application/integration"
	"github.com/catalogsync/backend/internal/infrastructure/cache"
	"github.com/catalogsync/backend/internal/infrastructure/config"
	"github.com/catalogsync/backend/internal/infrastructure/ecommerce"
	"github.com/catalogsync/backend/internal/infrastructure/logger"
	"github.com/catalogsync/backend/internal/infrastructure/persistence"
	"github.com/catalogsync/backend/internal/infrastructure/telemetry"
	"github.com/catalogsync/backend/internal/interfaces/http/handler"
	"github.com/catalogsync/backend/internal/interfaces/http/middleware"
	"github.com/catalogsync/backend/internal/interfaces/http/router"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	configPath := flag.String("config", "", "Config file (default: ./config.toml and environment)")
	flag.Parse()

	var (
		cfg *config.Config
		err error
	)
	if *configPath != "" {
		cfg, err = config.LoadFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	ctx := context.Background()

	// Telemetry
	tp, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Environment:       cfg.App.Env,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	mp, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsExportInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize metrics", zap.Error(err))
	}
	logsLevel, err := logger.ParseLevel(cfg.Telemetry.LogsLevel)
	if err != nil {
		log.Fatal("Invalid telemetry log level", zap.Error(err))
	}
	lp, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
		Level:             logsLevel,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize log export", zap.Error(err))
	}
	log = lp.Bridge(log)
	defer shutdownTelemetry(log, tp, mp, lp)

	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:           cfg.Telemetry.Profiling.Enabled,
		ServerAddress:     cfg.Telemetry.Profiling.ServerAddress,
		ApplicationName:   cfg.Telemetry.ServiceName,
		BasicAuthUser:     cfg.Telemetry.Profiling.BasicAuthUser,
		BasicAuthPassword: cfg.Telemetry.Profiling.BasicAuthPassword,
		ProfileTypes:      cfg.Telemetry.Profiling.ProfileTypes,
	}, log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}
	defer func() {
		_ = profiler.Stop()
	}()
	if profiler.IsEnabled() && cfg.Telemetry.Profiling.SpanProfiles {
		tp.EnableSpanProfiles()
	}

	log.Info("Starting catalog sync",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	// Database
	db, err := persistence.NewDatabase(&cfg.Database, log.Named("gorm"))
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if cfg.Database.Driver == "sqlite" {
		if err := db.AutoMigrate(); err != nil {
			log.Fatal("Failed to migrate sqlite database", zap.Error(err))
		}
	}
	if err := telemetry.InstrumentDB(db.DB, mp.Meter("db"), telemetry.DBConfig{
		Tracing:    tp.IsEnabled(),
		LogFullSQL: cfg.App.Env == "development",
		DBSystem:   cfg.Database.Driver,
	}, log); err != nil {
		log.Warn("Database instrumentation disabled", zap.Error(err))
	}
	log.Info("Database connected", zap.String("driver", cfg.Database.Driver))

	syncMetrics, err := telemetry.NewSyncMetrics(mp.Meter("catalogsync"))
	if err != nil {
		log.Fatal("Failed to create sync metrics", zap.Error(err))
	}

	// Platforms
	taxonomy, err := newTaxonomy(cfg.Taxonomy)
	if err != nil {
		log.Fatal("Invalid taxonomy configuration", zap.Error(err))
	}
	credentials := ecommerce.NewEnvCredentialStore(cfg.Stores)
	registry, err := buildRegistry(ctx, cfg, platformDeps{
		credentials: credentials,
		taxonomy:    taxonomy,
		proxy:       newImageProxy(cfg.ImageProxy),
		metrics:     syncMetrics,
		userAgent:   cfg.App.Name + "/" + version,
		log:         log,
	})
	if err != nil {
		log.Fatal("Failed to register platforms", zap.Error(err))
	}

	// Sync engine
	locker, closeLocker, err := cache.NewKeyLockerFactory(cfg.Redis, cache.WithLogger(log)).CreateLocker(ctx)
	if err != nil {
		log.Fatal("Failed to create sync locks", zap.Error(err))
	}
	defer func() {
		_ = closeLocker()
	}()

	products := persistence.NewGormProductRepository(db.DB)
	ledger := syncapp.NewLedger(persistence.NewGormSyncRecordRepository(db.DB))
	retry := syncapp.NewRetryPolicy(cfg.Sync.MaxRetries, cfg.Sync.InitialBackoff, cfg.Sync.MaxBackoff, cfg.Sync.CallTimeout)
	orchestrator := syncapp.NewPushOrchestrator(products, ledger, registry, locker, syncMetrics, syncapp.PushConfig{
		Retry:             retry,
		MediaPollInterval: cfg.Sync.MediaPollInterval,
		MediaPollAttempts: cfg.Sync.MediaPollAttempts,
		LockTimeout:       cfg.Sync.LockTimeout,
	})
	bulk := syncapp.NewBulkRunner(orchestrator, cfg.Sync.Concurrency)
	pull := syncapp.NewPullService(products, ledger, registry, retry)

	if cfg.Sync.Resync.Enabled {
		stopResync, err := startResync(ctx, cfg.Sync.Resync, bulk, ledger, registry.Platforms(), log.Named("resync"))
		if err != nil {
			log.Fatal("Failed to start resync", zap.Error(err))
		}
		defer stopResync()
	}

	// HTTP
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	engine.Use(logger.GinMiddleware(log))
	engine.Use(logger.Recovery(log))
	engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		Enabled:     tp.IsEnabled(),
	}))
	engine.Use(middleware.SpanAttributes())
	engine.Use(middleware.SpanErrorMarker())
	engine.Use(middleware.HTTPMetrics(middleware.HTTPMetricsConfig{MeterProvider: mp, Enabled: mp.IsEnabled()}))
	engine.Use(middleware.ProfilingWithConfig(middleware.ProfilingConfig{
		Enabled:          profiler.IsEnabled(),
		SkipPathPrefixes: middleware.DefaultProfilingConfig().SkipPathPrefixes,
	}))
	engine.Use(middleware.Secure())
	engine.Use(middleware.CORS(cfg.HTTP.AllowOrigins...))

	apiMiddleware := []gin.HandlerFunc{middleware.BodyLimit(cfg.HTTP.MaxBodySize)}
	if cfg.HTTP.RateLimit.Enabled {
		limiter := middleware.NewRateLimiter(cfg.HTTP.RateLimit.RequestsPerSecond, cfg.HTTP.RateLimit.Burst)
		defer limiter.Stop()
		apiMiddleware = append(apiMiddleware, middleware.RateLimit(limiter))
	}

	systemHandler := handler.NewSystemHandler(version, map[string]handler.Pinger{"database": db})
	syncHandler := handler.NewSyncHandler(orchestrator, bulk, pull, ledger, registry)

	router.NewRouter(engine, router.WithAPIMiddleware(apiMiddleware...)).
		RegisterRoot(router.HealthRoutes(systemHandler)).
		Register(router.SystemRoutes(systemHandler)).
		Register(router.SyncRoutes(syncHandler, middleware.Timeout(cfg.HTTP.RequestTimeout))).
		Setup()

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      engine,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	// in-flight bulk pushes get the write timeout to finish
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.WriteTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	log.Info("Server exited gracefully")
}

type shutdowner interface {
	Shutdown(ctx context.Context) error
}

// shutdownTelemetry flushes exporters; log export goes last so the
// shutdown messages of the others are still delivered
func shutdownTelemetry(log *zap.Logger, providers ...shutdowner) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, p := range providers {
		if err := p.Shutdown(ctx); err != nil {
			log.Warn("Telemetry shutdown failed", zap.Error(err))
		}
	}
}
