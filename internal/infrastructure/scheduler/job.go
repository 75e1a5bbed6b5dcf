package scheduler

import (
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
)

// MaxRetryDelay caps the exponential retry delay of a job
const MaxRetryDelay = 30 * time.Minute

// JobKind selects the pipeline a job runs
type JobKind string

const (
	JobKindBankSync         JobKind = "bank_sync"
	JobKindFeedImport       JobKind = "feed_import"
	JobKindChannelOrderSync JobKind = "channel_order_sync"
)

// JobStatus represents the status of a scheduled job
type JobStatus string

const (
	JobStatusPending JobStatus = "PENDING"
	JobStatusRunning JobStatus = "RUNNING"
	JobStatusSuccess JobStatus = "SUCCESS"
	JobStatusFailed  JobStatus = "FAILED"
)

// Job is one pipeline execution for one target (connector, source or channel)
type Job struct {
	ID          uuid.UUID
	Kind        JobKind
	TargetID    uuid.UUID
	TargetName  string
	Params      map[string]string
	Status      JobStatus
	Error       string
	Summary     string
	StartedAt   *time.Time
	CompletedAt *time.Time
	RetryCount  int
	MaxRetries  int
	NextRetryAt *time.Time

	retryBackOff *backoff.ExponentialBackOff
}

// NewJob creates a pending job
func NewJob(kind JobKind, targetID uuid.UUID, targetName string, maxRetries int) *Job {
	return &Job{
		ID:         uuid.New(),
		Kind:       kind,
		TargetID:   targetID,
		TargetName: targetName,
		Params:     map[string]string{},
		Status:     JobStatusPending,
		MaxRetries: maxRetries,
	}
}

// Key identifies the target so that one target never has two jobs in flight
func (j *Job) Key() string {
	return string(j.Kind) + ":" + j.TargetID.String()
}

// Start marks the job as running
func (j *Job) Start() {
	now := time.Now()
	j.Status = JobStatusRunning
	j.StartedAt = &now
	j.Error = ""
}

// Complete marks the job as successful
func (j *Job) Complete(summary string) {
	now := time.Now()
	j.Status = JobStatusSuccess
	j.Summary = summary
	j.CompletedAt = &now
}

// Fail marks the job as failed
func (j *Job) Fail(err string) {
	now := time.Now()
	j.Status = JobStatusFailed
	j.CompletedAt = &now
	j.Error = err
}

// ShouldRetry returns true if the job failed and has retries left
func (j *Job) ShouldRetry() bool {
	return j.Status == JobStatusFailed && j.RetryCount < j.MaxRetries
}

// ScheduleRetry moves the job back to pending with an exponentially growing delay
func (j *Job) ScheduleRetry(baseDelay time.Duration) {
	if j.retryBackOff == nil {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = baseDelay
		b.RandomizationFactor = 0
		b.Multiplier = 2
		b.MaxInterval = MaxRetryDelay
		b.MaxElapsedTime = 0
		b.Reset()
		j.retryBackOff = b
	}
	j.RetryCount++
	j.Status = JobStatusPending
	next := time.Now().Add(j.retryBackOff.NextBackOff())
	j.NextRetryAt = &next
	j.Error = ""
}
