package shared

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIngestError_Is(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("sync accounts: %w", NewIngestError(ErrNetwork, "list accounts", cause))

	assert.ErrorIs(t, err, ErrNetwork)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrAuth)
	assert.Equal(t, "sync accounts: list accounts: NETWORK_ERROR: connection refused", err.Error())
}

func TestKindOf(t *testing.T) {
	assert.Nil(t, KindOf(errors.New("plain")))
	assert.Equal(t, ErrData, KindOf(NewIngestError(ErrData, "", nil)))
	assert.Equal(t, ErrDuplicateIgnored, KindOf(fmt.Errorf("wrap: %w", ErrDuplicateIgnored)))
}

func TestClassifyHTTPStatus(t *testing.T) {
	tests := []struct {
		status int
		want   *DomainError
	}{
		{http.StatusOK, nil},
		{http.StatusUnauthorized, ErrAuth},
		{http.StatusForbidden, ErrAuth},
		{http.StatusTooManyRequests, ErrRateLimit},
		{http.StatusBadRequest, ErrRemote},
		{http.StatusServiceUnavailable, ErrNetwork},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyHTTPStatus(tt.status))
		})
	}
}

func TestIsRecoverable(t *testing.T) {
	transient := NewIngestError(ErrNetwork, "get", errors.New("timeout"))
	assert.True(t, IsRecoverable(transient))

	persistent := NewIngestError(ErrNetwork, "get", errors.New("bad gateway"))
	persistent.StatusCode = http.StatusBadGateway
	assert.False(t, IsRecoverable(persistent))

	assert.True(t, IsRecoverable(NewIngestError(ErrRateLimit, "get", nil)))
	assert.False(t, IsRecoverable(NewIngestError(ErrAuth, "token", nil)))
	assert.False(t, IsRecoverable(NewIngestError(ErrRemote, "get", nil)))
	assert.False(t, IsRecoverable(errors.New("unknown")))
}
