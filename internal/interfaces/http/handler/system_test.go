package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSystemHandler(t *testing.T) {
	h := NewSystemHandler("connectors", "1.2.0", nil)
	assert.NotNil(t, h)
	assert.False(t, h.startTime.IsZero())
}

func TestSystemHandler_GetSystemInfo(t *testing.T) {
	h := NewSystemHandler("connectors", "1.2.0", nil)
	c, w := newTestContext(http.MethodGet, "/system/info")

	h.GetSystemInfo(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp APIResponse[SystemInfoResponse]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "connectors", resp.Data.Name)
	assert.Equal(t, "1.2.0", resp.Data.Version)
	assert.Equal(t, runtime.Version(), resp.Data.GoVersion)
	assert.NotEmpty(t, resp.Data.Uptime)
}

func TestSystemHandler_Health(t *testing.T) {
	healthy := func(context.Context) error { return nil }
	broken := func(context.Context) error { return errors.New("connection refused") }

	tests := []struct {
		name       string
		checks     map[string]HealthCheck
		wantStatus int
		wantState  string
		wantDeps   map[string]string
	}{
		{
			name:       "no dependencies",
			wantStatus: http.StatusOK,
			wantState:  "ok",
		},
		{
			name:       "all dependencies up",
			checks:     map[string]HealthCheck{"database": healthy, "redis": healthy},
			wantStatus: http.StatusOK,
			wantState:  "ok",
			wantDeps:   map[string]string{"database": "ok", "redis": "ok"},
		},
		{
			name:       "one dependency down",
			checks:     map[string]HealthCheck{"database": healthy, "redis": broken},
			wantStatus: http.StatusServiceUnavailable,
			wantState:  "degraded",
			wantDeps:   map[string]string{"database": "ok", "redis": "down: connection refused"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewSystemHandler("connectors", "1.2.0", tt.checks)
			c, w := newTestContext(http.MethodGet, "/health")

			h.Health(c)

			assert.Equal(t, tt.wantStatus, w.Code)
			var resp APIResponse[HealthResponse]
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantState, resp.Data.Status)
			assert.Equal(t, "1.2.0", resp.Data.Version)
			assert.Equal(t, tt.wantDeps, resp.Data.Dependencies)
		})
	}
}

func TestSystemHandler_HealthCheckHasDeadline(t *testing.T) {
	var hasDeadline bool
	h := NewSystemHandler("connectors", "dev", map[string]HealthCheck{
		"database": func(ctx context.Context) error {
			_, hasDeadline = ctx.Deadline()
			return nil
		},
	})
	c, _ := newTestContext(http.MethodGet, "/health")

	h.Health(c)

	assert.True(t, hasDeadline)
}
