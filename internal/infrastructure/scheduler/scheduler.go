// Package scheduler runs bank sync, feed import and channel order sync jobs
// on a bounded worker pool, triggered by cron expressions or on demand.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mobilsoft/connectors/internal/domain/runlog"
	"github.com/mobilsoft/connectors/internal/domain/shared"
)

// JobExecutor runs a job and returns a one-line summary of what it did
type JobExecutor interface {
	Execute(ctx context.Context, job *Job) (string, error)
}

// Config sizes the worker pool and its retry policy
type Config struct {
	Workers       int
	QueueSize     int
	JobTimeout    time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
	MaxHistory    int
}

// DefaultConfig returns four workers, a queue of 100 and three retries
func DefaultConfig() Config {
	return Config{
		Workers:       4,
		QueueSize:     100,
		JobTimeout:    15 * time.Minute,
		RetryAttempts: 3,
		RetryDelay:    time.Minute,
		MaxHistory:    100,
	}
}

// Validate rejects non-positive pool sizes and timeouts
func (c Config) Validate() error {
	if c.Workers <= 0 || c.QueueSize <= 0 || c.JobTimeout <= 0 || c.RetryAttempts < 0 || c.RetryDelay < 0 {
		return ErrInvalidConfig
	}
	return nil
}

// ---------------------------------------------------------------------------
// Scheduler
// ---------------------------------------------------------------------------

// Scheduler feeds queued jobs to a fixed set of workers. At most one job per
// (kind, target) is queued or running at a time.
type Scheduler struct {
	cfg      Config
	executor JobExecutor
	logger   *zap.Logger

	mu      sync.Mutex
	queue   chan *Job
	running bool
	stop    context.CancelFunc
	workers sync.WaitGroup
	pending map[string]struct{}

	recentMu sync.RWMutex
	recent   []*Job
	next     int
}

// New creates a scheduler. Call Start before submitting jobs.
func New(cfg Config, executor JobExecutor, logger *zap.Logger) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.MaxHistory <= 0 {
		cfg.MaxHistory = 100
	}
	return &Scheduler{
		cfg:      cfg,
		executor: executor,
		logger:   logger,
		queue:    make(chan *Job, cfg.QueueSize),
		pending:  make(map[string]struct{}),
		recent:   make([]*Job, 0, cfg.MaxHistory),
	}, nil
}

// Start launches the workers. Calling it on a running scheduler does nothing.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	ctx, s.stop = context.WithCancel(ctx)
	s.running = true
	for id := range s.cfg.Workers {
		s.workers.Go(func() { s.work(ctx, id) })
	}

	s.logger.Info("Scheduler started",
		zap.Int("workers", s.cfg.Workers),
		zap.Int("queue_size", s.cfg.QueueSize),
		zap.Duration("job_timeout", s.cfg.JobTimeout),
	)
	return nil
}

// Stop refuses new jobs, cancels the running ones and waits for the workers
// to return or ctx to expire
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.queue)
	s.stop()
	s.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		s.workers.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		s.logger.Info("Scheduler stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Scheduler stop timed out with jobs still running")
		return ctx.Err()
	}
}

// IsRunning reports whether jobs are accepted
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Submit queues a job. A target with a pending or running job is refused.
func (s *Scheduler) Submit(job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return ErrSchedulerNotRunning
	}
	if _, busy := s.pending[job.Key()]; busy {
		return ErrJobAlreadyQueued
	}
	if !s.enqueueLocked(job) {
		return ErrJobQueueFull
	}
	s.logger.Debug("Job queued",
		zap.String("job_id", job.ID.String()),
		zap.String("kind", string(job.Kind)),
		zap.String("target_id", job.TargetID.String()),
	)
	return nil
}

// enqueueLocked adds job without blocking. s.mu must be held.
func (s *Scheduler) enqueueLocked(job *Job) bool {
	select {
	case s.queue <- job:
		s.pending[job.Key()] = struct{}{}
		return true
	default:
		return false
	}
}

// retryLater puts job back on the queue at its NextRetryAt
func (s *Scheduler) retryLater(job *Job) {
	time.AfterFunc(time.Until(*job.NextRetryAt), func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.running && s.enqueueLocked(job) {
			return
		}
		delete(s.pending, job.Key())
		s.logger.Warn("Dropped job retry", zap.String("job_id", job.ID.String()), zap.Bool("running", s.running))
	})
}

// done releases the job's target and records it
func (s *Scheduler) done(job *Job) {
	s.mu.Lock()
	delete(s.pending, job.Key())
	s.mu.Unlock()

	s.recentMu.Lock()
	if len(s.recent) < s.cfg.MaxHistory {
		s.recent = append(s.recent, job)
	} else {
		s.recent[s.next] = job
	}
	s.next = (s.next + 1) % s.cfg.MaxHistory
	s.recentMu.Unlock()
}

func (s *Scheduler) work(ctx context.Context, workerID int) {
	for job := range s.queue {
		if ctx.Err() != nil {
			return
		}
		s.run(ctx, job, workerID)
	}
}

func (s *Scheduler) run(ctx context.Context, job *Job, workerID int) {
	log := s.logger.With(
		zap.Int("worker_id", workerID),
		zap.String("job_id", job.ID.String()),
		zap.String("kind", string(job.Kind)),
		zap.String("target_id", job.TargetID.String()),
		zap.String("target_name", job.TargetName),
	)
	job.Start()
	log.Info("Running job", zap.Int("retry_count", job.RetryCount))

	jobCtx, cancel := context.WithTimeout(ctx, s.cfg.JobTimeout)
	summary, err := s.execute(jobCtx, job)
	cancel()

	if err == nil {
		job.Complete(summary)
		log.Info("Job completed", zap.String("summary", summary))
		s.done(job)
		return
	}

	job.Fail(err.Error())
	if job.ShouldRetry() && isRetryable(err) && ctx.Err() == nil {
		job.ScheduleRetry(s.cfg.RetryDelay)
		log.Warn("Job failed, retrying",
			zap.Error(err),
			zap.Int("retry_count", job.RetryCount),
			zap.Time("next_retry_at", *job.NextRetryAt),
		)
		s.retryLater(job)
		return
	}
	log.Error("Job failed", zap.Error(err))
	s.done(job)
}

// execute turns a panicking handler into a failed job
func (s *Scheduler) execute(ctx context.Context, job *Job) (summary string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.New("job panicked")
			s.logger.Error("Job panicked", zap.String("job_id", job.ID.String()), zap.Any("panic", r), zap.Stack("stack"))
		}
	}()
	return s.executor.Execute(ctx, job)
}

// isRetryable is false for failures another attempt cannot fix
func isRetryable(err error) bool {
	if errors.Is(err, runlog.ErrRunInProgress) || errors.Is(err, ErrUnknownJobKind) {
		return false
	}
	switch shared.KindOf(err) {
	case shared.ErrConfig, shared.ErrAuth, shared.ErrRemote:
		return false
	}
	return true
}

// History returns up to limit finished jobs, newest first. limit <= 0 means all.
func (s *Scheduler) History(limit int) []*Job {
	s.recentMu.RLock()
	defer s.recentMu.RUnlock()

	n := len(s.recent)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]*Job, 0, limit)
	for i := 1; i <= limit; i++ {
		out = append(out, s.recent[(s.next-i+n)%n])
	}
	return out
}
