package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mobilsoft/connectors/internal/infrastructure/config"
	"github.com/mobilsoft/connectors/internal/infrastructure/logger"
	"github.com/mobilsoft/connectors/internal/infrastructure/telemetry"
	"github.com/mobilsoft/connectors/internal/interfaces/http/handler"
	"github.com/mobilsoft/connectors/internal/interfaces/http/middleware"
	"github.com/mobilsoft/connectors/internal/interfaces/http/router"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

const shutdownTimeout = 30 * time.Second

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
	log, err := logger.New(logCfg)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	ctx := context.Background()
	tel, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		Insecure:          cfg.Telemetry.Insecure,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		MetricsEnabled:    cfg.Telemetry.MetricsEnabled,
		MetricsInterval:   cfg.Telemetry.MetricsInterval,
		LogsEnabled:       cfg.Telemetry.LogsEnabled,
		ProfilingEnabled:  cfg.Telemetry.ProfilingEnabled,
		PyroscopeAddress:  cfg.Telemetry.PyroscopeAddress,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize telemetry", zap.Error(err))
	}

	// Mirror application logs to the OTLP log pipeline when it is enabled
	if core := tel.ZapCore(logger.ParseLevel(cfg.Log.Level)); core != nil {
		if teed, err := logger.New(logCfg, core); err == nil {
			log = teed
		} else {
			log.Warn("Failed to attach OTLP log core", zap.Error(err))
		}
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting connectors service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	app, err := newApplication(ctx, cfg, tel, log)
	if err != nil {
		log.Fatal("Failed to initialize application", zap.Error(err))
	}

	if err := app.start(ctx); err != nil {
		log.Fatal("Failed to start background jobs", zap.Error(err))
	}

	engine := newEngine(cfg, tel, log)
	router.Mount(router.NewRouter(engine), router.Handlers{
		System:         handler.NewSystemHandler(cfg.App.Name, version, app.healthChecks()),
		Webhooks:       handler.NewWebhookHandler(app.webhooks),
		BankConnectors: handler.NewBankConnectorHandler(app.banking, app.runs),
		XMLSources:     handler.NewXMLSourceHandler(app.imports, app.runs),
		Exports:        handler.NewExportHandler(app.exports),
		WebhookLimiter: app.limiter,
	}).Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	app.stop(shutdownCtx)
	if err := tel.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down telemetry", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// newEngine builds the gin engine with the global middleware chain
func newEngine(cfg *config.Config, tel *telemetry.Telemetry, log *zap.Logger) *gin.Engine {
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		log.Warn("Invalid trusted proxies, trusting none", zap.Error(err))
		_ = engine.SetTrustedProxies(nil)
	}

	cors := middleware.DefaultCORSConfig()
	if len(cfg.HTTP.CORSAllowOrigins) > 0 {
		cors.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	}
	if len(cfg.HTTP.CORSAllowMethods) > 0 {
		cors.AllowMethods = cfg.HTTP.CORSAllowMethods
	}
	if len(cfg.HTTP.CORSAllowHeaders) > 0 {
		cors.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	}

	tracing := middleware.DefaultTracingConfig()
	tracing.Enabled = cfg.Telemetry.Enabled
	if cfg.Telemetry.ServiceName != "" {
		tracing.ServiceName = cfg.Telemetry.ServiceName
	}

	engine.Use(
		middleware.RequestID(),
		middleware.TracingWithConfig(tracing),
		logger.GinMiddleware(log, "/health"),
		logger.Recovery(log),
		middleware.SpanAttributes(),
		middleware.SpanErrorMarker(),
		middleware.HTTPMetrics(middleware.HTTPMetricsConfig{
			MeterProvider: tel.Meter,
			Enabled:       cfg.Telemetry.MetricsEnabled,
		}),
		middleware.ProfilingWithConfig(middleware.ProfilingConfig{
			Enabled:   cfg.Telemetry.ProfilingEnabled,
			SkipPaths: []string{"/health"},
		}),
		middleware.CORSWithConfig(cors),
		middleware.Secure(),
		// manual syncs get the same deadline as scheduled jobs
		middleware.Timeout(cfg.Scheduler.JobTimeout),
	)
	return engine
}
