package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mobilsoft/connectors/internal/domain/banking"
	"github.com/mobilsoft/connectors/internal/domain/feed"
	"github.com/mobilsoft/connectors/internal/domain/runlog"
	"github.com/mobilsoft/connectors/internal/domain/shared"
	"github.com/mobilsoft/connectors/internal/interfaces/http/dto"
	"github.com/mobilsoft/connectors/internal/interfaces/http/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestContext(method, path string) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, path, nil)
	return c, w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) dto.Response {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestBaseHandler_ErrorFallsBackToHeaderRequestID(t *testing.T) {
	h := &BaseHandler{}
	c, w := newTestContext("GET", "/")
	c.Request.Header.Set(middleware.RequestIDHeader, "hdr-7")

	h.Conflict(c, "import running")

	assert.Equal(t, http.StatusConflict, w.Code)
	resp := decodeResponse(t, w)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "hdr-7", resp.Error.RequestID)
	assert.Nil(t, resp.Data)
}

func TestBaseHandler_PathID(t *testing.T) {
	h := &BaseHandler{}

	t.Run("valid", func(t *testing.T) {
		c, _ := newTestContext("GET", "/")
		want := uuid.New()
		c.Params = gin.Params{{Key: "id", Value: want.String()}}

		id, ok := h.pathID(c)
		assert.True(t, ok)
		assert.Equal(t, want, id)
	})

	t.Run("invalid answers 400", func(t *testing.T) {
		c, w := newTestContext("GET", "/")
		c.Params = gin.Params{{Key: "id", Value: "abc"}}

		_, ok := h.pathID(c)
		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.ErrCodeBadRequest, decodeResponse(t, w).Error.Code)
	})
}

func TestBaseHandler_Success(t *testing.T) {
	h := &BaseHandler{}
	c, w := newTestContext("GET", "/")

	h.Success(c, map[string]string{"name": "ziraat"})

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeResponse(t, w)
	assert.True(t, resp.Success)
	assert.Nil(t, resp.Error)
}

func TestBaseHandler_SuccessList(t *testing.T) {
	h := &BaseHandler{}
	c, w := newTestContext("GET", "/")

	h.SuccessList(c, []int{1, 2}, 2, 20)

	resp := decodeResponse(t, w)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, int64(2), resp.Meta.Total)
	assert.Equal(t, 20, resp.Meta.Limit)
}

func TestBaseHandler_ErrorIncludesRequestID(t *testing.T) {
	h := &BaseHandler{}
	c, w := newTestContext("GET", "/")
	c.Set(middleware.RequestIDKey, "req-42")

	h.NotFound(c, "missing")

	assert.Equal(t, http.StatusNotFound, w.Code)
	resp := decodeResponse(t, w)
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, dto.ErrCodeNotFound, resp.Error.Code)
	assert.Equal(t, "req-42", resp.Error.RequestID)
}

func TestBaseHandler_HandleError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"connector not found", banking.ErrConnectorNotFound, http.StatusNotFound, dto.ErrCodeNotFound},
		{"wrapped source not found", fmt.Errorf("load: %w", feed.ErrSourceNotFound), http.StatusNotFound, dto.ErrCodeNotFound},
		{"run in progress", runlog.ErrRunInProgress, http.StatusConflict, dto.ErrCodeConflict},
		{"connector disconnected", banking.ErrConnectorDisconnected, http.StatusUnprocessableEntity, dto.ErrCodeInvalidState},
		{"source paused", feed.ErrSourcePaused, http.StatusUnprocessableEntity, dto.ErrCodeInvalidState},
		{"config", shared.NewIngestError(shared.ErrConfig, "token", errors.New("no client id")), http.StatusUnprocessableEntity, dto.ErrCodeConfig},
		{"upstream auth", shared.NewIngestError(shared.ErrAuth, "token", errors.New("401")), http.StatusBadGateway, dto.ErrCodeUpstreamAuth},
		{"upstream network", shared.NewIngestError(shared.ErrNetwork, "accounts", errors.New("dial")), http.StatusServiceUnavailable, dto.ErrCodeUpstreamUnavailable},
		{"upstream rate limit", shared.NewIngestError(shared.ErrRateLimit, "accounts", errors.New("429")), http.StatusServiceUnavailable, dto.ErrCodeUpstreamRateLimited},
		{"data", shared.NewIngestError(shared.ErrData, "parse", errors.New("bad xml")), http.StatusBadGateway, dto.ErrCodeDataError},
		{"remote", shared.NewIngestError(shared.ErrRemote, "accounts", errors.New("400")), http.StatusBadGateway, dto.ErrCodeUpstreamRejected},
		{"domain error", shared.NewDomainError("INVALID_INPUT", "bad"), http.StatusBadRequest, dto.ErrCodeInvalidInput},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, dto.ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &BaseHandler{}
			c, w := newTestContext("POST", "/")

			h.HandleError(c, tt.err)

			assert.Equal(t, tt.wantStatus, w.Code)
			resp := decodeResponse(t, w)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
		})
	}
}

func TestBaseHandler_HandleErrorHidesUnexpectedErrors(t *testing.T) {
	h := &BaseHandler{}
	c, w := newTestContext("POST", "/")

	h.HandleError(c, errors.New("pq: password authentication failed"))

	resp := decodeResponse(t, w)
	assert.Equal(t, "An unexpected error occurred", resp.Error.Message)
}

func TestBaseHandler_HandleErrorNil(t *testing.T) {
	h := &BaseHandler{}
	c, w := newTestContext("POST", "/")

	h.HandleError(c, nil)

	assert.Equal(t, 0, w.Body.Len())
}

func TestBaseHandler_HandleErrorWithData(t *testing.T) {
	h := &BaseHandler{}
	c, w := newTestContext("POST", "/")

	err := shared.NewIngestError(shared.ErrNetwork, "transactions", errors.New("timeout"))
	h.HandleErrorWithData(c, err, "2 of 3 accounts synced", map[string]int{"count": 2})

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	resp := decodeResponse(t, w)
	assert.False(t, resp.Success)
	assert.Equal(t, dto.ErrCodeUpstreamUnavailable, resp.Error.Code)
	assert.Equal(t, "2 of 3 accounts synced", resp.Error.Message)
	assert.Equal(t, map[string]any{"count": float64(2)}, resp.Data)
}
