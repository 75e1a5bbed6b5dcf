package middleware

import (
	"context"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mobilsoft/connectors/internal/infrastructure/telemetry"
)

// ProfilingConfig controls the pyroscope labels put on request work
type ProfilingConfig struct {
	Enabled bool
	// SkipPaths are served without labels
	SkipPaths []string
}

// DefaultProfilingConfig labels everything except the health probe
func DefaultProfilingConfig() ProfilingConfig {
	return ProfilingConfig{
		Enabled:   true,
		SkipPaths: []string{"/health"},
	}
}

// ProfilingWithConfig tags the CPU samples of a request with its method, route,
// resource and webhook platform so feed imports and webhook parsing show up
// separately in pyroscope
func ProfilingWithConfig(cfg ProfilingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) { c.Next() }
	}

	skip := make(map[string]bool, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = true
	}

	return func(c *gin.Context) {
		if skip[c.Request.URL.Path] {
			c.Next()
			return
		}
		telemetry.WithProfilingLabels(c.Request.Context(), profilingLabels(c), func(ctx context.Context) {
			c.Request = c.Request.WithContext(ctx)
			c.Next()
		})
	}
}

// profilingLabels keeps cardinality low: route patterns, never raw paths
func profilingLabels(c *gin.Context) map[string]string {
	route := c.FullPath()
	return map[string]string{
		telemetry.ProfilingLabelMethod:   c.Request.Method,
		telemetry.ProfilingLabelRoute:    route,
		telemetry.ProfilingLabelResource: routeResource(route),
		telemetry.ProfilingLabelPlatform: c.Param("platform"),
	}
}

// routeResource returns the first literal segment after the api prefix,
// e.g. "xml-sources" for /api/v1/xml-sources/:id/import
func routeResource(route string) string {
	for part := range strings.SplitSeq(route, "/") {
		switch {
		case part == "", part == "api", isVersionSegment(part):
		case part[0] == ':', part[0] == '*':
		default:
			return part
		}
	}
	return ""
}

func isVersionSegment(segment string) bool {
	if len(segment) < 2 || (segment[0] != 'v' && segment[0] != 'V') {
		return false
	}
	_, err := strconv.Atoi(segment[1:])
	return err == nil && segment[1] >= '0' && segment[1] <= '9'
}
