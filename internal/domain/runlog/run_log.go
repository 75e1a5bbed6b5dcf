// Package runlog tracks individual executions of the ingestion pipelines.
package runlog

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MaxErrorDetailsLength bounds the stored error details and stacktraces
const MaxErrorDetailsLength = 4000

var (
	ErrRunInProgress   = errors.New("runlog: a run is already in progress for this source")
	ErrRunNotFound     = errors.New("runlog: run not found")
	ErrRunNotRunning   = errors.New("runlog: run is not running")
	ErrCounterOverflow = errors.New("runlog: outcome counters exceed total")
	ErrTimeOrder       = errors.New("runlog: end time precedes start time")
)

// State is the lifecycle of a run
type State string

const (
	StateRunning State = "running"
	StateDone    State = "done"
	StateError   State = "error"
)

// SourceKind identifies what produced the run
type SourceKind string

const (
	SourceKindXMLSource     SourceKind = "xml_source"
	SourceKindBankConnector SourceKind = "bank_connector"
)

// Operation names the pipeline action of a run
type Operation string

const (
	OperationFeedImport        Operation = "feed_import"
	OperationSyncAccounts      Operation = "sync_accounts"
	OperationSyncTransactions  Operation = "sync_transactions"
	OperationSyncExchangeRates Operation = "sync_exchange_rates"
	OperationSyncAll           Operation = "sync_all"
)

// RunLog is an append-only record of one pipeline execution
type RunLog struct {
	ID              uuid.UUID
	SourceKind      SourceKind
	SourceID        uuid.UUID
	SourceName      string
	Operation       Operation
	StartTime       time.Time
	EndTime         *time.Time
	State           State
	Total           int
	Created         int
	Updated         int
	Skipped         int
	Failed          int
	ErrorDetails    string
	DurationSeconds float64
}

// Open starts a run in running state
func Open(kind SourceKind, sourceID uuid.UUID, sourceName string, op Operation, now time.Time) *RunLog {
	return &RunLog{
		ID:         uuid.New(),
		SourceKind: kind,
		SourceID:   sourceID,
		SourceName: sourceName,
		Operation:  op,
		StartTime:  now,
		State:      StateRunning,
	}
}

// IsRunning reports whether the run has not finished yet
func (r *RunLog) IsRunning() bool {
	return r.State == StateRunning
}

// Counter increments. Outcome increments also count towards Total unless
// the caller already counted the record with AddTotal.

// AddTotal adds n records seen
func (r *RunLog) AddTotal(n int) { r.Total += n }

// IncCreated counts a created record
func (r *RunLog) IncCreated() { r.Created++ }

// IncUpdated counts an updated record
func (r *RunLog) IncUpdated() { r.Updated++ }

// IncSkipped counts a skipped record
func (r *RunLog) IncSkipped() { r.Skipped++ }

// IncFailed counts a failed record and notes the reason
func (r *RunLog) IncFailed(reason string) {
	r.Failed++
	r.Note(reason)
}

// Note appends a line to the error details, respecting the size bound
func (r *RunLog) Note(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	if r.ErrorDetails != "" {
		line = r.ErrorDetails + "\n" + line
	}
	r.ErrorDetails = truncate(line, MaxErrorDetailsLength)
}

// Finish closes the run as done
func (r *RunLog) Finish(now time.Time) error {
	if !r.IsRunning() {
		return ErrRunNotRunning
	}
	r.close(now)
	r.State = StateDone
	return nil
}

// Abort closes the run as error with the failure and a truncated stacktrace
func (r *RunLog) Abort(now time.Time, err error, stack string) error {
	if !r.IsRunning() {
		return ErrRunNotRunning
	}
	r.close(now)
	r.State = StateError
	detail := fmt.Sprintf("%v", err)
	if stack != "" {
		detail += "\n" + stack
	}
	if r.ErrorDetails != "" {
		detail = r.ErrorDetails + "\n" + detail
	}
	r.ErrorDetails = truncate(detail, MaxErrorDetailsLength)
	return nil
}

func (r *RunLog) close(now time.Time) {
	if now.Before(r.StartTime) {
		now = r.StartTime
	}
	r.EndTime = &now
	r.DurationSeconds = now.Sub(r.StartTime).Seconds()
}

// Validate checks the counter and time invariants
func (r *RunLog) Validate() error {
	if r.Created+r.Updated+r.Skipped+r.Failed > r.Total {
		return ErrCounterOverflow
	}
	if r.EndTime != nil && r.EndTime.Before(r.StartTime) {
		return ErrTimeOrder
	}
	return nil
}

// Summary renders the counters for user notifications
func (r *RunLog) Summary() string {
	return fmt.Sprintf("total=%d created=%d updated=%d skipped=%d failed=%d", r.Total, r.Created, r.Updated, r.Skipped, r.Failed)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	// keep the cut on a rune boundary
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
