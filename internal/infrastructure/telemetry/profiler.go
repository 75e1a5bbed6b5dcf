package telemetry

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/grafana/pyroscope-go"
	"go.uber.org/zap"
)

// Profiling label keys attached to request work
const (
	ProfilingLabelMethod     = "method"
	ProfilingLabelRoute      = "route"
	ProfilingLabelResource   = "resource"
	ProfilingLabelPlatform   = "platform"
)

// WithProfilingLabels runs fn with labels attached to the CPU samples it produces.
// Empty values are dropped.
func WithProfilingLabels(ctx context.Context, labels map[string]string, fn func(context.Context)) {
	kv := make([]string, 0, len(labels)*2)
	for k, v := range labels {
		if v != "" {
			kv = append(kv, k, v)
		}
	}
	if len(kv) == 0 {
		fn(ctx)
		return
	}
	pyroscope.TagWrapper(ctx, pyroscope.Labels(kv...), fn)
}

// Profiler runs continuous profiling against a Pyroscope server
type Profiler struct {
	mu       sync.Mutex
	profiler *pyroscope.Profiler
	stopped  bool
	logger   *zap.Logger
}

// NewProfiler starts the pyroscope agent when profiling is enabled
func NewProfiler(cfg Config, logger *zap.Logger) (*Profiler, error) {
	p := &Profiler{logger: logger}
	if !cfg.ProfilingEnabled {
		return p, nil
	}
	if cfg.PyroscopeAddress == "" {
		return nil, fmt.Errorf("telemetry: pyroscope address is required when profiling is enabled")
	}

	hostname, _ := os.Hostname()
	prof, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: cfg.ServiceName,
		ServerAddress:   cfg.PyroscopeAddress,
		Logger:          &pyroscopeLogger{logger: logger.Named("pyroscope")},
		Tags: map[string]string{
			"hostname": hostname,
			"version":  cfg.ServiceVersion,
		},
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileInuseSpace,
			pyroscope.ProfileGoroutines,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("telemetry: start profiler: %w", err)
	}
	p.profiler = prof

	logger.Info("Profiling enabled", zap.String("server", cfg.PyroscopeAddress))
	return p, nil
}

// IsEnabled reports whether the agent is running
func (p *Profiler) IsEnabled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.profiler != nil && !p.stopped
}

// Stop flushes pending profiles. Calling it twice is a no-op.
func (p *Profiler) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped || p.profiler == nil {
		p.stopped = true
		return nil
	}
	p.stopped = true
	if err := p.profiler.Stop(); err != nil {
		return fmt.Errorf("telemetry: stop profiler: %w", err)
	}
	return nil
}

type pyroscopeLogger struct {
	logger *zap.Logger
}

func (l *pyroscopeLogger) Infof(format string, args ...any) {
	l.logger.Sugar().Infof(format, args...)
}

func (l *pyroscopeLogger) Debugf(format string, args ...any) {
	l.logger.Sugar().Debugf(format, args...)
}

func (l *pyroscopeLogger) Errorf(format string, args ...any) {
	l.logger.Sugar().Errorf(format, args...)
}
