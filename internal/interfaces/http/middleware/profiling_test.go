package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/mobilsoft/connectors/internal/infrastructure/telemetry"
)

func TestProfilingWithConfig_Disabled(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(ProfilingWithConfig(ProfilingConfig{Enabled: false}))
	router.GET("/test", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestProfilingWithConfig_RunsHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var called bool
	router := gin.New()
	router.Use(ProfilingWithConfig(DefaultProfilingConfig()))
	router.POST("/webhook/qcommerce/:platform", func(c *gin.Context) {
		called = true
		c.Status(http.StatusOK)
	})
	router.GET("/health", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/webhook/qcommerce/getir", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, called)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestProfilingLabels(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var labels map[string]string
	router := gin.New()
	router.POST("/webhook/qcommerce/:platform", func(c *gin.Context) {
		labels = profilingLabels(c)
	})

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/webhook/qcommerce/vigo", nil))

	assert.Equal(t, http.MethodPost, labels[telemetry.ProfilingLabelMethod])
	assert.Equal(t, "/webhook/qcommerce/:platform", labels[telemetry.ProfilingLabelRoute])
	assert.Equal(t, "webhook", labels[telemetry.ProfilingLabelResource])
	assert.Equal(t, "vigo", labels[telemetry.ProfilingLabelPlatform])
}

func TestRouteResource(t *testing.T) {
	tests := []struct {
		route string
		want  string
	}{
		{"/api/v1/xml-sources/:id/import", "xml-sources"},
		{"/api/v1/bank-connectors/:id/sync", "bank-connectors"},
		{"/webhook/:platform", "webhook"},
		{"/health", "health"},
		{"", ""},
		{"/api/v2", ""},
	}

	for _, tt := range tests {
		t.Run(tt.route, func(t *testing.T) {
			assert.Equal(t, tt.want, routeResource(tt.route))
		})
	}
}

func TestIsVersionSegment(t *testing.T) {
	assert.True(t, isVersionSegment("v1"))
	assert.True(t, isVersionSegment("V12"))
	assert.False(t, isVersionSegment("v"))
	assert.False(t, isVersionSegment("vigo"))
	assert.False(t, isVersionSegment("api"))
	assert.False(t, isVersionSegment("v-1"))
}
