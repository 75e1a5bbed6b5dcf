// Package telemetry wires OpenTelemetry traces, metrics and logs plus
// continuous profiling for the connector service.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config drives every signal. The zero value disables all of them.
type Config struct {
	Enabled           bool
	CollectorEndpoint string
	Insecure          bool
	ServiceName       string
	ServiceVersion    string
	SamplingRatio     float64

	MetricsEnabled  bool
	MetricsInterval time.Duration
	LogsEnabled     bool

	ProfilingEnabled bool
	PyroscopeAddress string
}

// Telemetry owns the providers created by Setup
type Telemetry struct {
	Tracer   *TracerProvider
	Meter    *MeterProvider
	Logs     *LoggerProvider
	Profiler *Profiler
	logger   *zap.Logger
}

// Setup creates the enabled providers and registers them globally.
// Disabled signals get no-op providers so callers never need nil checks.
func Setup(ctx context.Context, cfg Config, logger *zap.Logger) (*Telemetry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "connectors"
	}
	if cfg.ServiceVersion == "" {
		cfg.ServiceVersion = "1.0.0"
	}

	t := &Telemetry{logger: logger}

	res, err := newResource(cfg)
	if err != nil {
		return nil, fmt.Errorf("telemetry: build resource: %w", err)
	}

	if t.Tracer, err = NewTracerProvider(ctx, cfg, res, logger); err != nil {
		return nil, err
	}
	if t.Meter, err = NewMeterProvider(ctx, cfg, res, logger); err != nil {
		_ = t.Tracer.Shutdown(ctx)
		return nil, err
	}
	if t.Logs, err = NewLoggerProvider(ctx, cfg, res, logger); err != nil {
		_ = t.Tracer.Shutdown(ctx)
		_ = t.Meter.Shutdown(ctx)
		return nil, err
	}
	if t.Profiler, err = NewProfiler(cfg, logger); err != nil {
		// profiling is best effort
		logger.Warn("Profiler failed to start", zap.Error(err))
		t.Profiler = &Profiler{logger: logger}
	}
	if t.Profiler.IsEnabled() {
		t.Tracer.EnableSpanProfiles()
	}
	return t, nil
}

// ZapCore returns a core that forwards log records to the OTLP log pipeline,
// or nil when log export is disabled.
func (t *Telemetry) ZapCore(level zapcore.Level) zapcore.Core {
	if t == nil || t.Logs == nil || !t.Logs.IsEnabled() {
		return nil
	}
	return NewZapCore(t.Logs, level)
}

// Shutdown flushes and stops every provider, joining their errors
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil {
		return nil
	}
	var errs []error
	if t.Profiler != nil {
		errs = append(errs, t.Profiler.Stop())
	}
	if t.Logs != nil {
		errs = append(errs, t.Logs.Shutdown(ctx))
	}
	if t.Meter != nil {
		errs = append(errs, t.Meter.Shutdown(ctx))
	}
	if t.Tracer != nil {
		errs = append(errs, t.Tracer.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

func newResource(cfg Config) (*resource.Resource, error) {
	return resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
}
