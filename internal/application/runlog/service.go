// Package runlog records pipeline executions: one log per run, opened before
// any remote call and closed exactly once.
package runlog

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mobilsoft/connectors/internal/domain/runlog"
	"github.com/mobilsoft/connectors/internal/infrastructure/telemetry"
)

// DefaultStaleAfter is how long a running log may stay open before a new run may take over
const DefaultStaleAfter = 6 * time.Hour

// Service opens, checkpoints and closes run logs
type Service struct {
	repo       runlog.Repository
	metrics    *telemetry.IngestMetrics
	staleAfter time.Duration
	now        func() time.Time
	logger     *zap.Logger
}

// ServiceConfig contains the dependencies of Service
type ServiceConfig struct {
	Repo    runlog.Repository
	Metrics *telemetry.IngestMetrics
	// StaleAfter abandons running logs left behind by a crashed process
	StaleAfter time.Duration
	Now        func() time.Time
	Logger     *zap.Logger
}

// NewService creates a run log service
func NewService(cfg ServiceConfig) *Service {
	s := &Service{
		repo:       cfg.Repo,
		metrics:    cfg.Metrics,
		staleAfter: cfg.StaleAfter,
		now:        cfg.Now,
		logger:     cfg.Logger,
	}
	if s.staleAfter <= 0 {
		s.staleAfter = DefaultStaleAfter
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// Begin persists a new running log for the source.
// Returns runlog.ErrRunInProgress while another run of the same source is open.
func (s *Service) Begin(ctx context.Context, kind runlog.SourceKind, sourceID uuid.UUID, sourceName string, op runlog.Operation) (*runlog.RunLog, error) {
	running, err := s.repo.FindRunning(ctx, kind, sourceID)
	if err != nil {
		return nil, fmt.Errorf("find running log: %w", err)
	}
	now := s.now()
	if running != nil {
		if now.Sub(running.StartTime) < s.staleAfter {
			return nil, runlog.ErrRunInProgress
		}
		s.logger.Warn("Abandoning stale run",
			zap.String("run_id", running.ID.String()),
			zap.String("source_id", sourceID.String()),
			zap.Time("started", running.StartTime),
		)
		if err := running.Abort(now, errors.New("run abandoned: no completion recorded"), ""); err == nil {
			if err := s.repo.Save(ctx, running); err != nil {
				return nil, fmt.Errorf("close stale run: %w", err)
			}
		}
	}

	run := runlog.Open(kind, sourceID, sourceName, op, now)
	if err := s.repo.Create(ctx, run); err != nil {
		if errors.Is(err, runlog.ErrRunInProgress) {
			return nil, err
		}
		return nil, fmt.Errorf("create run log: %w", err)
	}
	s.logger.Info("Run started",
		zap.String("run_id", run.ID.String()),
		zap.String("source_kind", string(kind)),
		zap.String("source", sourceName),
		zap.String("operation", string(op)),
	)
	return run, nil
}

// Checkpoint persists the current counters of a running log
func (s *Service) Checkpoint(ctx context.Context, run *runlog.RunLog) error {
	return s.repo.Save(ctx, run)
}

// Complete closes the run as done
func (s *Service) Complete(ctx context.Context, run *runlog.RunLog) error {
	if err := run.Finish(s.now()); err != nil {
		return err
	}
	if err := s.repo.Save(ctx, run); err != nil {
		return fmt.Errorf("save run log: %w", err)
	}
	s.metrics.Run(ctx, string(run.Operation), string(run.State))
	s.logger.Info("Run finished",
		zap.String("run_id", run.ID.String()),
		zap.String("operation", string(run.Operation)),
		zap.String("summary", run.Summary()),
		zap.Float64("duration_seconds", run.DurationSeconds),
	)
	return nil
}

// Fail closes the run as error with the cause and the current stack
func (s *Service) Fail(ctx context.Context, run *runlog.RunLog, cause error) error {
	return s.FailWithStack(ctx, run, cause, string(debug.Stack()))
}

// FailWithStack closes the run as error with an explicit stacktrace, e.g. one captured by recover
func (s *Service) FailWithStack(ctx context.Context, run *runlog.RunLog, cause error, stack string) error {
	if err := run.Abort(s.now(), cause, stack); err != nil {
		return err
	}
	if err := s.repo.Save(ctx, run); err != nil {
		return fmt.Errorf("save run log: %w", err)
	}
	s.metrics.Run(ctx, string(run.Operation), string(run.State))
	s.logger.Error("Run failed",
		zap.String("run_id", run.ID.String()),
		zap.String("operation", string(run.Operation)),
		zap.String("summary", run.Summary()),
		zap.Error(cause),
	)
	return nil
}

// Get returns a run by id
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*runlog.RunLog, error) {
	return s.repo.FindByID(ctx, id)
}

// History lists the latest runs of a source, newest first
func (s *Service) History(ctx context.Context, kind runlog.SourceKind, sourceID uuid.UUID, limit int) ([]runlog.RunLog, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.repo.ListBySource(ctx, kind, sourceID, limit)
}
