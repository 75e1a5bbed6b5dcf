package scheduler

import "errors"

var (
	// ErrSchedulerNotRunning is returned when trying to submit a job to a stopped scheduler
	ErrSchedulerNotRunning = errors.New("scheduler: not running")

	// ErrJobQueueFull is returned when the job queue is full
	ErrJobQueueFull = errors.New("scheduler: job queue is full")

	// ErrJobAlreadyQueued is returned when a job for the same target is pending or running
	ErrJobAlreadyQueued = errors.New("scheduler: a job for this target is already queued")

	// ErrUnknownJobKind is returned when no handler is registered for a job kind
	ErrUnknownJobKind = errors.New("scheduler: no handler for job kind")

	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("scheduler: invalid configuration")
)
