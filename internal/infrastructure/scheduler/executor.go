package scheduler

import (
	"context"
	"fmt"
	"sync"
)

// JobHandler runs one kind of job
type JobHandler func(ctx context.Context, job *Job) (string, error)

// Executor dispatches jobs to the handler registered for their kind
type Executor struct {
	mu       sync.RWMutex
	handlers map[JobKind]JobHandler
}

var _ JobExecutor = (*Executor)(nil)

// NewExecutor creates an executor without handlers
func NewExecutor() *Executor {
	return &Executor{handlers: make(map[JobKind]JobHandler)}
}

// Handle registers h for kind, replacing any previous handler
func (e *Executor) Handle(kind JobKind, h JobHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[kind] = h
}

// Execute implements JobExecutor
func (e *Executor) Execute(ctx context.Context, job *Job) (string, error) {
	e.mu.RLock()
	h, ok := e.handlers[job.Kind]
	e.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownJobKind, job.Kind)
	}
	return h(ctx, job)
}
