package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Target is something a cron tick may enqueue a job for
type Target struct {
	ID   uuid.UUID
	Name string
}

// DueFunc lists the targets that should run at now
type DueFunc func(ctx context.Context, now time.Time) ([]Target, error)

// Submitter accepts jobs; *Scheduler implements it
type Submitter interface {
	Submit(job *Job) error
}

// CronTrigger turns cron expressions into queued jobs for due targets
type CronTrigger struct {
	cron       *cron.Cron
	submitter  Submitter
	maxRetries int
	logger     *zap.Logger
	now        func() time.Time

	mu        sync.Mutex
	ctx       context.Context
	cancel    context.CancelFunc
	isRunning bool
}

// NewCronTrigger creates a trigger that submits jobs with maxRetries attempts
func NewCronTrigger(submitter Submitter, maxRetries int, logger *zap.Logger) *CronTrigger {
	cl := &cronLogger{logger: logger.Named("cron")}
	return &CronTrigger{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		submitter:  submitter,
		maxRetries: maxRetries,
		logger:     logger,
		now:        time.Now,
		ctx:        context.Background(),
	}
}

// Register schedules kind jobs for the targets returned by due on every tick of spec.
// spec is a standard five-field cron expression or a descriptor such as @every 15m.
func (c *CronTrigger) Register(spec string, kind JobKind, due DueFunc) error {
	_, err := c.cron.AddFunc(spec, func() {
		c.mu.Lock()
		ctx := c.ctx
		c.mu.Unlock()
		c.Trigger(ctx, kind, due)
	})
	if err != nil {
		return fmt.Errorf("scheduler: register %s cron %q: %w", kind, spec, err)
	}
	c.logger.Info("Cron registered", zap.String("kind", string(kind)), zap.String("spec", spec))
	return nil
}

// Trigger runs one tick: every due target gets a job unless it already has one queued.
// Returns the number of jobs submitted.
func (c *CronTrigger) Trigger(ctx context.Context, kind JobKind, due DueFunc) int {
	targets, err := due(ctx, c.now())
	if err != nil {
		c.logger.Error("Failed to list due targets", zap.String("kind", string(kind)), zap.Error(err))
		return 0
	}

	submitted := 0
	for _, t := range targets {
		err := c.submitter.Submit(NewJob(kind, t.ID, t.Name, c.maxRetries))
		switch {
		case err == nil:
			submitted++
		case errors.Is(err, ErrJobAlreadyQueued):
			c.logger.Debug("Target already queued", zap.String("kind", string(kind)), zap.String("target_id", t.ID.String()))
		default:
			c.logger.Warn("Failed to submit job",
				zap.String("kind", string(kind)),
				zap.String("target_id", t.ID.String()),
				zap.Error(err),
			)
		}
	}
	if len(targets) > 0 {
		c.logger.Info("Cron tick",
			zap.String("kind", string(kind)),
			zap.Int("due", len(targets)),
			zap.Int("submitted", submitted),
		)
	}
	return submitted
}

// Start begins firing the registered expressions
func (c *CronTrigger) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.isRunning {
		return
	}
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.isRunning = true
	c.cron.Start()
	c.logger.Info("Cron trigger started", zap.Int("entries", len(c.cron.Entries())))
}

// Stop halts the trigger and waits for a running tick until ctx expires
func (c *CronTrigger) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.isRunning {
		c.mu.Unlock()
		return nil
	}
	c.isRunning = false
	c.cancel()
	c.mu.Unlock()

	select {
	case <-c.cron.Stop().Done():
		c.logger.Info("Cron trigger stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger adapts zap to cron.Logger
type cronLogger struct {
	logger *zap.Logger
}

func (l *cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Debugw(msg, keysAndValues...)
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
