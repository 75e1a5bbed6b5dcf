package shared

import (
	"errors"
	"fmt"
	"net/http"
)

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Is reports whether target is a DomainError carrying the same code
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrNotFound      = NewDomainError("NOT_FOUND", "Resource not found")
	ErrAlreadyExists = NewDomainError("ALREADY_EXISTS", "Resource already exists")
	ErrInvalidInput  = NewDomainError("INVALID_INPUT", "Invalid input provided")
	ErrInvalidState  = NewDomainError("INVALID_STATE", "Operation not allowed in current state")
)

// ---------------------------------------------------------------------------
// Ingestion error taxonomy
// ---------------------------------------------------------------------------

// Ingestion error kinds shared by the bank connector, the feed importer and the webhook intake.
var (
	// ErrConfig is a missing credential, base URL or invalid mapping rule. Raised before any network call.
	ErrConfig = NewDomainError("CONFIG_ERROR", "Configuration error")
	// ErrNetwork is a connection, timeout or DNS failure, or a persistent 5xx after retries.
	ErrNetwork = NewDomainError("NETWORK_ERROR", "Remote service unreachable, try later")
	// ErrAuth is a 401/403 answer from a remote API.
	ErrAuth = NewDomainError("AUTH_ERROR", "Remote service rejected the credentials")
	// ErrRateLimit is a 429 answer that outlived the retry budget.
	ErrRateLimit = NewDomainError("RATE_LIMIT_ERROR", "Remote service rate limit exceeded")
	// ErrData is a malformed payload or a record missing a required field.
	ErrData = NewDomainError("DATA_ERROR", "Malformed data")
	// ErrDuplicateIgnored signals that a record was already imported. Counted as skipped.
	ErrDuplicateIgnored = NewDomainError("DUPLICATE_IGNORED", "Record already imported")
	// ErrRemote is a non-recoverable remote failure that is neither auth nor rate limit (other 4xx).
	ErrRemote = NewDomainError("REMOTE_ERROR", "Remote service rejected the request")
)

// IngestError attaches an operation name and an optional HTTP status to an ingestion error kind.
type IngestError struct {
	Kind       *DomainError
	Op         string
	StatusCode int
	Err        error
}

// NewIngestError wraps err with the given kind and operation
func NewIngestError(kind *DomainError, op string, err error) *IngestError {
	return &IngestError{Kind: kind, Op: op, Err: err}
}

// Error implements the error interface
func (e *IngestError) Error() string {
	msg := e.Kind.Code
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes the underlying cause
func (e *IngestError) Unwrap() error {
	return e.Err
}

// Is matches the error kind so callers can use errors.Is(err, shared.ErrAuth)
func (e *IngestError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Kind != nil && e.Kind.Code == t.Code
}

// KindOf returns the ingestion kind carried by err, or nil when err carries none
func KindOf(err error) *DomainError {
	var ie *IngestError
	if errors.As(err, &ie) {
		return ie.Kind
	}
	for _, kind := range []*DomainError{ErrConfig, ErrNetwork, ErrAuth, ErrRateLimit, ErrData, ErrDuplicateIgnored, ErrRemote} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// ClassifyHTTPStatus maps a final (post-retry) HTTP status to an ingestion kind.
// Returns nil for successful statuses.
func ClassifyHTTPStatus(status int) *DomainError {
	switch {
	case status < 400:
		return nil
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return ErrAuth
	case status == http.StatusTooManyRequests:
		return ErrRateLimit
	case status >= 500:
		return ErrNetwork
	default:
		return ErrRemote
	}
}

// IsRecoverable reports whether a failure should leave a remote connection in its current state.
// Network trouble and rate limiting heal on their own; everything else needs attention.
func IsRecoverable(err error) bool {
	var ie *IngestError
	if errors.As(err, &ie) && ie.Kind == ErrNetwork && ie.StatusCode >= 500 {
		return false
	}
	kind := KindOf(err)
	return kind == ErrNetwork || kind == ErrRateLimit || kind == ErrDuplicateIgnored || kind == ErrData
}
