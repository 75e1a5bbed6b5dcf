package banking

import (
	"errors"
	"fmt"

	"github.com/mobilsoft/connectors/internal/domain/shared"
)

// ---------------------------------------------------------------------------
// Banking Errors
// ---------------------------------------------------------------------------

var (
	ErrConnectorNotFound     = errors.New("banking: connector not found")
	ErrConnectorDisconnected = errors.New("banking: connector is disconnected")
	ErrAccountNotFound       = errors.New("banking: bank account not found")
	ErrUnsupportedBank       = errors.New("banking: unsupported bank type")
	ErrMissingClientID       = errors.New("banking: missing client id")
	ErrMissingClientSecret   = errors.New("banking: missing client secret")
	ErrMissingName           = errors.New("banking: missing connector name")
	ErrInvalidWindow         = errors.New("banking: date_from is after date_to")
	ErrMissingTransactionID  = errors.New("banking: transaction without id")
	ErrMissingAccountNumber  = errors.New("banking: account without number")
)

// TokenError is returned by the token store when the token endpoint could not issue a token.
// It always carries one of the shared ingestion kinds.
type TokenError struct {
	Connector  string
	StatusCode int
	Detail     string
	Err        error
}

// Error implements the error interface
func (e *TokenError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("banking: token request for %q failed with HTTP %d: %s", e.Connector, e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("banking: token request for %q failed: %s", e.Connector, e.Detail)
}

// Unwrap exposes the classified cause
func (e *TokenError) Unwrap() error {
	return e.Err
}

// configError wraps a banking sentinel as a shared CONFIG_ERROR
func configError(op string, err error) error {
	return shared.NewIngestError(shared.ErrConfig, op, err)
}
