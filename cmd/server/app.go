package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	bankingapp "github.com/mobilsoft/connectors/internal/application/banking"
	"github.com/mobilsoft/connectors/internal/application/feedexport"
	"github.com/mobilsoft/connectors/internal/application/feedimport"
	qcommerceapp "github.com/mobilsoft/connectors/internal/application/qcommerce"
	runlogapp "github.com/mobilsoft/connectors/internal/application/runlog"
	"github.com/mobilsoft/connectors/internal/domain/feed"
	"github.com/mobilsoft/connectors/internal/domain/qcommerce"
	"github.com/mobilsoft/connectors/internal/domain/shared"
	"github.com/mobilsoft/connectors/internal/infrastructure/bank"
	"github.com/mobilsoft/connectors/internal/infrastructure/cache"
	"github.com/mobilsoft/connectors/internal/infrastructure/config"
	"github.com/mobilsoft/connectors/internal/infrastructure/httpclient"
	"github.com/mobilsoft/connectors/internal/infrastructure/logger"
	"github.com/mobilsoft/connectors/internal/infrastructure/migration"
	"github.com/mobilsoft/connectors/internal/infrastructure/oauth"
	"github.com/mobilsoft/connectors/internal/infrastructure/persistence"
	"github.com/mobilsoft/connectors/internal/infrastructure/scheduler"
	"github.com/mobilsoft/connectors/internal/infrastructure/secrets"
	"github.com/mobilsoft/connectors/internal/infrastructure/storage"
	"github.com/mobilsoft/connectors/internal/infrastructure/telemetry"
	"github.com/mobilsoft/connectors/internal/infrastructure/xmlfeed"
	"github.com/mobilsoft/connectors/internal/interfaces/http/handler"
	"github.com/mobilsoft/connectors/internal/interfaces/http/middleware"
	"github.com/mobilsoft/connectors/migrations"
)

const (
	healthCheckTimeout = 2 * time.Second
	userAgent          = "mobilsoft-connectors"
)

// application holds the wired services and the resources that need closing
type application struct {
	cfg *config.Config
	log *zap.Logger

	db          *persistence.Database
	idempotency shared.IdempotencyStore

	runs     *runlogapp.Service
	banking  *bankingapp.SyncService
	imports  *feedimport.ImportService
	exports  *feedexport.ExportService
	orders   *qcommerceapp.OrderSyncService
	webhooks *qcommerceapp.WebhookService

	scheduler *scheduler.Scheduler
	cron      *scheduler.CronTrigger
	limiter   *middleware.RateLimiter
}

// newApplication opens the database and caches and wires every service
func newApplication(ctx context.Context, cfg *config.Config, tel *telemetry.Telemetry, log *zap.Logger) (*application, error) {
	app := &application{cfg: cfg, log: log}

	if cfg.Database.AutoMigrate {
		version, err := migration.Apply(ctx, cfg.Database.DSN(), migration.Embedded(migrations.FS), log.Named("migrate"))
		if err != nil {
			return nil, fmt.Errorf("apply migrations: %w", err)
		}
		log.Info("Schema migrated", zap.Uint("version", version))
	}

	gormLog := logger.NewGormLogger(log, logger.GormConfig{
		Level:         logger.GormLevel(cfg.Log.Level),
		SlowThreshold: cfg.Telemetry.DBSlowQueryThresh,
	})
	db, err := persistence.Open(ctx, &cfg.Database, gormLog)
	if err != nil {
		return nil, err
	}
	app.db = db
	log.Info("Database connected successfully")

	if err := telemetry.RegisterDBTracing(db.DB, telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
		SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
		DBName:          cfg.Database.DBName,
	}, log); err != nil {
		log.Warn("Database tracing disabled", zap.Error(err))
	}

	meter := tel.Meter.Meter("connectors")
	if err := db.RegisterPoolMetrics(meter); err != nil {
		log.Warn("Database pool metrics disabled", zap.Error(err))
	}

	metrics, err := telemetry.NewIngestMetrics(meter)
	if err != nil {
		log.Warn("Ingest metrics disabled", zap.Error(err))
		metrics = nil
	}

	codec, err := newSecretsCodec(cfg, log)
	if err != nil {
		return nil, err
	}

	// Repositories
	connectorRepo := persistence.NewGormBankConnectorRepository(db.DB, codec)
	unitOfWork := persistence.NewGormBankingUnitOfWork(db.DB, codec)
	sourceRepo := persistence.NewGormXMLSourceRepository(db.DB, codec)
	productRepo := persistence.NewGormProductRepository(db.DB)
	categoryRepo := persistence.NewGormCategoryRepository(db.DB)
	exportRepo := persistence.NewGormExportRepository(db.DB, codec)
	channelRepo := persistence.NewGormChannelRepository(db.DB, codec)
	runRepo := persistence.NewGormRunLogRepository(db.DB)

	app.runs = runlogapp.NewService(runlogapp.ServiceConfig{
		Repo:       runRepo,
		Metrics:    metrics,
		StaleAfter: 2 * cfg.Scheduler.JobTimeout,
		Logger:     log.Named("runlog"),
	})

	// Bank sync
	bankSession := httpclient.New(httpclient.Config{
		ConnectTimeout:  cfg.BankSync.ConnectTimeout,
		ReadTimeout:     cfg.BankSync.ReadTimeout,
		MaxRetries:      cfg.BankSync.MaxRetries,
		BackoffFactor:   cfg.BankSync.BackoffFactor,
		RetryStatuses:   httpclient.DefaultConfig().RetryStatuses,
		MaxResponseSize: httpclient.DefaultConfig().MaxResponseSize,
		UserAgent:       userAgent,
		Tracing:         cfg.Telemetry.Enabled,
	}, httpclient.WithLogger(log.Named("bank-http")))

	adapters := bank.NewRegistry(bankEndpoints(cfg.BankSync), log.Named("bank"))
	tokens := bankingapp.NewTokenStore(bankingapp.TokenStoreConfig{
		Connectors:   connectorRepo,
		Adapters:     adapters,
		Exchanger:    oauth.NewExchanger(bankSession),
		Metrics:      metrics,
		SafetyWindow: cfg.BankSync.TokenSafetyWindow,
		Logger:       log.Named("tokens"),
	})
	app.banking = bankingapp.NewSyncService(bankingapp.SyncServiceConfig{
		Connectors: connectorRepo,
		UnitOfWork: unitOfWork,
		Runs:       app.runs,
		Adapters:   adapters,
		Callers:    bank.NewClient(bankSession, log.Named("bank-client")),
		Tokens:     tokens,
		Ingest:     bankingapp.NewIngestService(bankingapp.IngestServiceConfig{Metrics: metrics, Logger: log.Named("ingest")}),
		Window:     time.Duration(cfg.BankSync.DefaultWindowDays) * 24 * time.Hour,
		Logger:     log.Named("bank-sync"),
	})

	// Feed import
	documents, err := newDocumentStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	feedSession := httpclient.New(httpclient.Config{
		ConnectTimeout:  cfg.BankSync.ConnectTimeout,
		ReadTimeout:     cfg.FeedImport.FetchTimeout,
		MaxRetries:      cfg.BankSync.MaxRetries,
		BackoffFactor:   cfg.BankSync.BackoffFactor,
		RetryStatuses:   httpclient.DefaultConfig().RetryStatuses,
		MaxResponseSize: cfg.FeedImport.MaxDocumentSize,
		UserAgent:       userAgent,
		Tracing:         cfg.Telemetry.Enabled,
	}, httpclient.WithLogger(log.Named("feed-http")))

	app.imports = feedimport.NewImportService(feedimport.ImportServiceConfig{
		Sources:    sourceRepo,
		Products:   productRepo,
		Categories: categoryRepo,
		Fetcher:    xmlfeed.NewFetcher(feedSession, documents, log.Named("feed-fetch")),
		Documents:  documents,
		Runs:       app.runs,
		Metrics:    metrics,
		Logger:     log.Named("feed-import"),
	})
	app.exports = feedexport.NewExportService(feedexport.ExportServiceConfig{
		Exports:  exportRepo,
		Products: productRepo,
		Logger:   log.Named("feed-export"),
	})

	// Quick-commerce webhooks and the job queue their handlers feed
	executor := scheduler.NewExecutor()
	app.scheduler, err = scheduler.New(scheduler.Config{
		Workers:       cfg.Scheduler.MaxConcurrentJobs,
		QueueSize:     cfg.Scheduler.QueueSize,
		JobTimeout:    cfg.Scheduler.JobTimeout,
		RetryAttempts: cfg.Scheduler.RetryAttempts,
		RetryDelay:    cfg.Scheduler.RetryDelay,
		MaxHistory:    scheduler.DefaultConfig().MaxHistory,
	}, executor, log.Named("scheduler"))
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	app.idempotency, err = cache.NewIdempotencyStore(ctx, cfg.Redis, log)
	if err != nil {
		return nil, err
	}

	app.orders = qcommerceapp.NewOrderSyncService(channelRepo, log.Named("order-sync"))
	app.webhooks = qcommerceapp.NewWebhookService(qcommerceapp.WebhookServiceConfig{
		Channels: channelRepo,
		Handlers: []qcommerce.EventHandler{
			qcommerceapp.NewGetirHandler(app.scheduler, log.Named("getir")),
			qcommerceapp.NewYemeksepetiHandler(app.scheduler, log.Named("yemeksepeti")),
			qcommerceapp.NewVigoHandler(app.scheduler, log.Named("vigo")),
		},
		Idempotency: app.idempotency,
		DedupTTL:    cfg.Webhook.IdempotencyTTL,
		Metrics:     metrics,
		Logger:      log.Named("webhooks"),
	})

	app.registerJobs(executor)
	app.cron = scheduler.NewCronTrigger(app.scheduler, cfg.Scheduler.RetryAttempts, log.Named("scheduler"))

	if cfg.HTTP.RateLimitEnabled {
		app.limiter = middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
	}
	return app, nil
}

// start launches the worker pool and, when enabled, the cron triggers
func (a *application) start(ctx context.Context) error {
	if err := a.scheduler.Start(ctx); err != nil {
		return err
	}
	if !a.cfg.Scheduler.Enabled {
		a.log.Info("Scheduled syncs disabled; only webhook jobs will run")
		return nil
	}
	if err := a.registerCron(); err != nil {
		return err
	}
	a.cron.Start(ctx)
	return nil
}

// stop releases every resource in reverse order of creation
func (a *application) stop(ctx context.Context) {
	if err := a.cron.Stop(ctx); err != nil {
		a.log.Error("Error stopping cron triggers", zap.Error(err))
	}
	if err := a.scheduler.Stop(ctx); err != nil {
		a.log.Error("Error stopping scheduler", zap.Error(err))
	}
	if a.limiter != nil {
		a.limiter.Close()
	}
	if closer, ok := a.idempotency.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			a.log.Error("Error closing idempotency store", zap.Error(err))
		}
	}
	if err := a.db.Close(); err != nil {
		a.log.Error("Error closing database", zap.Error(err))
	}
}

// healthChecks returns the dependency probes reported by /health
func (a *application) healthChecks() map[string]handler.HealthCheck {
	checks := map[string]handler.HealthCheck{
		"database": withTimeout(a.db.PingContext),
	}
	if pinger, ok := a.idempotency.(interface{ Ping(context.Context) error }); ok {
		checks["redis"] = withTimeout(pinger.Ping)
	}
	return checks
}

func withTimeout(check handler.HealthCheck) handler.HealthCheck {
	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
		defer cancel()
		return check(ctx)
	}
}

func newSecretsCodec(cfg *config.Config, log *zap.Logger) (secrets.Codec, error) {
	if cfg.Secrets.Key == "" {
		if cfg.App.Env == "production" {
			return nil, fmt.Errorf("secrets key is required in production")
		}
		log.Warn("No secrets key configured, credentials are stored unencrypted")
		return secrets.Plaintext{}, nil
	}
	sealer, err := secrets.NewSealer(cfg.Secrets.Key)
	if err != nil {
		return nil, fmt.Errorf("load secrets key: %w", err)
	}
	return sealer, nil
}

func newDocumentStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (feed.DocumentStore, error) {
	if !cfg.Storage.Enabled {
		log.Warn("Object storage disabled, uploaded feeds are kept in memory")
		return storage.NewMemoryDocumentStore(), nil
	}
	store, err := storage.NewS3DocumentStore(&cfg.Storage,
		storage.WithLogger(log.Named("storage")),
		storage.WithMaxDocumentSize(cfg.FeedImport.MaxDocumentSize),
	)
	if err != nil {
		return nil, fmt.Errorf("create document store: %w", err)
	}
	if err := store.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("ensure bucket %s: %w", store.Bucket(), err)
	}
	return store, nil
}

// bankEndpoints applies configured base URL overrides to the published bank endpoints
func bankEndpoints(cfg config.BankSyncConfig) bank.Endpoints {
	endpoints := bank.Endpoints{
		Garanti: bank.DefaultGarantiConfig(),
		Ziraat:  bank.DefaultZiraatConfig(),
		QNB:     bank.DefaultQNBConfig(),
	}
	if cfg.GarantiURL != "" {
		endpoints.Garanti.ProductionURL = cfg.GarantiURL
	}
	if cfg.ZiraatURL != "" {
		endpoints.Ziraat.ProductionURL = cfg.ZiraatURL
	}
	if cfg.QNBURL != "" {
		endpoints.QNB.ProductionURL = cfg.QNBURL
	}
	return endpoints
}
