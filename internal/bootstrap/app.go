// Package bootstrap assembles the catalog sync components from configuration.
// Both the API server and the command line tool start from here.
package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/catalogsync/backend/internal/application/catalogsync"
	"github.com/catalogsync/backend/internal/infrastructure/auth"
	"github.com/catalogsync/backend/internal/infrastructure/cache"
	"github.com/catalogsync/backend/internal/infrastructure/config"
	"github.com/catalogsync/backend/internal/infrastructure/event"
	"github.com/catalogsync/backend/internal/infrastructure/logger"
	"github.com/catalogsync/backend/internal/infrastructure/migration"
	"github.com/catalogsync/backend/internal/infrastructure/persistence"
	"github.com/catalogsync/backend/internal/infrastructure/remotecatalog"
	"github.com/catalogsync/backend/internal/infrastructure/telemetry"
	"github.com/catalogsync/backend/migrations"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// Options selects which optional parts New starts
type Options struct {
	// Outbox starts the background delivery of translation requests
	Outbox bool
	// Telemetry enables the OTLP trace and metric exporters when configured
	Telemetry bool
}

// App holds the wired components and the order in which to release them
type App struct {
	Config        *config.Config
	Logger        *zap.Logger
	Database      *persistence.Database
	SQLDB         *sql.DB
	CatalogSync   *catalogsync.ReconciliationService
	JWT           *auth.JWTService
	MeterProvider *telemetry.MeterProvider

	closers []namedCloser
}

type namedCloser struct {
	name  string
	close func(ctx context.Context) error
}

// New connects every dependency and builds the reconciliation service.
// On error, whatever was already opened is released before returning.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger, opts Options) (*App, error) {
	app := &App{Config: cfg, Logger: log, JWT: auth.NewJWTService(cfg.JWT)}
	if err := app.wire(ctx, opts); err != nil {
		_ = app.Close(context.WithoutCancel(ctx))
		return nil, err
	}
	return app, nil
}

func (a *App) wire(ctx context.Context, opts Options) error {
	cfg, log := a.Config, a.Logger

	if cfg.Database.AutoMigrate {
		if err := migrate(cfg, log); err != nil {
			return err
		}
	}

	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           opts.Telemetry && cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		return fmt.Errorf("tracer provider: %w", err)
	}
	a.onClose("tracer provider", tracerProvider.Shutdown)

	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           opts.Telemetry && cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		return fmt.Errorf("meter provider: %w", err)
	}
	a.MeterProvider = meterProvider
	a.onClose("meter provider", meterProvider.Shutdown)

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		return err
	}
	a.Database = db
	a.onClose("database", func(context.Context) error { return db.Close() })
	log.Info("Database connected successfully")

	if a.SQLDB, err = db.DB.DB(); err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if opts.Telemetry && cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled {
		if err := telemetry.RegisterDBTracing(db.DB, telemetry.DBTracingConfig{
			Enabled: true,
			DBName:  cfg.Database.DBName,
		}, log); err != nil {
			return fmt.Errorf("database tracing: %w", err)
		}
	}

	var runMetrics catalogsync.RunMetrics
	if meterProvider.IsEnabled() {
		meter := meterProvider.Meter("catalogsync")
		if err := telemetry.RegisterDBPoolMetrics(meter, a.SQLDB.Stats); err != nil {
			return fmt.Errorf("database pool metrics: %w", err)
		}
		syncMetrics, err := telemetry.NewSyncMetrics(meter)
		if err != nil {
			return fmt.Errorf("sync metrics: %w", err)
		}
		runMetrics = syncMetrics
	}

	remoteConfig := remotecatalog.NewConfig(cfg.Remote.BaseURL, cfg.Remote.ConsumerKey, cfg.Remote.ConsumerSecret)
	if cfg.Remote.RequestTimeout > 0 {
		remoteConfig.RequestTimeout = cfg.Remote.RequestTimeout
	}
	remote, err := remotecatalog.NewClient(remoteConfig, log)
	if err != nil {
		return fmt.Errorf("remote catalog client: %w", err)
	}
	if !remoteConfig.HasCredentials() {
		log.Warn("Remote catalog credentials are not configured, runs will fail until they are set")
	}

	lock, closeLock := cache.NewRunLock(ctx, cfg.Redis, log)
	a.onClose("run lock", func(context.Context) error { return closeLock() })

	outboxRepo := event.NewGormOutboxRepository(db.DB)
	if opts.Outbox {
		if err := a.startOutbox(ctx, outboxRepo); err != nil {
			return err
		}
	}

	a.CatalogSync = catalogsync.NewReconciliationService(catalogsync.Dependencies{
		Remote:           remote,
		Products:         persistence.NewGormProductRepository(db.DB),
		Categories:       persistence.NewGormCategoryRepository(db.DB),
		Variants:         persistence.NewGormVariantRepository(db.DB),
		ProductMappings:  persistence.NewGormProductMappingRepository(db.DB),
		CategoryMappings: persistence.NewGormCategoryMappingRepository(db.DB),
		Runs:             persistence.NewGormSyncRunRepository(db.DB),
		Lock:             lock,
		Translations:     event.NewOutboxTranslationQueue(outboxRepo, cfg.Event.MaxRetries),
		Metrics:          runMetrics,
		LockTTL:          cfg.Sync.LockTTL,
		StaleRunAfter:    cfg.Sync.StaleRunAfter,
	}, catalogsync.Config{
		PageSize:  cfg.Remote.PageSize,
		PageDelay: cfg.Remote.PageDelay,
		Variants: catalogsync.VariantSyncConfig{
			Concurrency: cfg.Remote.VariantConcurrency,
			Rate:        cfg.Remote.VariantRate,
			Timeout:     cfg.Remote.VariantTimeout,
		},
	}, log)

	return nil
}

func (a *App) startOutbox(ctx context.Context, repo *event.GormOutboxRepository) error {
	var publisher event.Publisher = event.NewLogPublisher(a.Logger)
	if a.Config.NATS.URL != "" {
		natsPublisher, err := event.NewNATSPublisher(ctx, a.Config.NATS, a.Config.App.Name, a.Logger)
		if err != nil {
			return fmt.Errorf("nats publisher: %w", err)
		}
		a.onClose("nats publisher", func(context.Context) error { return natsPublisher.Close() })
		publisher = natsPublisher
	}

	processorConfig := event.DefaultOutboxProcessorConfig()
	if a.Config.Event.BatchSize > 0 {
		processorConfig.BatchSize = a.Config.Event.BatchSize
	}
	if a.Config.Event.PollInterval > 0 {
		processorConfig.PollInterval = a.Config.Event.PollInterval
	}
	processorConfig.CleanupEnabled = a.Config.Event.CleanupEnabled
	if a.Config.Event.CleanupRetention > 0 {
		processorConfig.CleanupRetention = a.Config.Event.CleanupRetention
	}

	processor := event.NewOutboxProcessor(repo, publisher, processorConfig, a.Logger)
	if err := processor.Start(ctx); err != nil {
		return fmt.Errorf("outbox processor: %w", err)
	}
	a.onClose("outbox processor", processor.Stop)
	a.Logger.Info("Outbox processor started",
		zap.Int("batch_size", processorConfig.BatchSize),
		zap.Duration("poll_interval", processorConfig.PollInterval),
	)
	return nil
}

// onClose registers a release step; Close runs them in reverse order
func (a *App) onClose(name string, fn func(ctx context.Context) error) {
	a.closers = append(a.closers, namedCloser{name: name, close: fn})
}

// Close releases everything New opened, last opened first
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.close(ctx); err != nil {
			a.Logger.Error("Error closing "+c.name, zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", c.name, err))
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// migrate applies the embedded migrations over a dedicated connection,
// since closing the migrator also closes the database handle it was given
func migrate(cfg *config.Config, log *zap.Logger) error {
	sqlDB, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer sqlDB.Close()

	m, err := migration.NewFromFS(sqlDB, migrations.FS, log)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}
