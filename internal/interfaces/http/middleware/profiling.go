package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/printmarket/backend/internal/infrastructure/telemetry"
)

// Pyroscope label names
const (
	ProfilingLabelRoute      = "route"
	ProfilingLabelMethod     = "method"
	ProfilingLabelController = "controller"
	ProfilingLabelRole       = "role"
)

// ProfilingConfig holds configuration for the profiling middleware
type ProfilingConfig struct {
	Enabled   bool
	SkipPaths []string
}

// DefaultProfilingConfig skips health and stream endpoints
func DefaultProfilingConfig() ProfilingConfig {
	return ProfilingConfig{
		Enabled:   true,
		SkipPaths: []string{"/health", "/api/v1/stream"},
	}
}

// Profiling attaches low-cardinality Pyroscope labels to the request so CPU
// samples can be broken down per route. Register it after Authenticate to get
// the role label.
func Profiling(cfg ProfilingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return passThrough
	}
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		for _, skip := range cfg.SkipPaths {
			if path == skip {
				c.Next()
				return
			}
		}
		telemetry.WithProfilingLabels(c.Request.Context(), profilingLabels(c), func(ctx context.Context) {
			c.Request = c.Request.WithContext(ctx)
			c.Next()
		})
	}
}

func profilingLabels(c *gin.Context) map[string]string {
	labels := make(map[string]string, 4)
	labels[ProfilingLabelMethod] = c.Request.Method
	if route := c.FullPath(); route != "" {
		labels[ProfilingLabelRoute] = route
		if controller := controllerFromRoute(route); controller != "" {
			labels[ProfilingLabelController] = controller
		}
	}
	if role := c.GetString(RoleKey); role != "" {
		labels[ProfilingLabelRole] = role
	}
	return labels
}

// controllerFromRoute takes the resource segment after the API version:
// "/api/v1/orders/:id/accept" gives "orders".
func controllerFromRoute(route string) string {
	parts := strings.Split(strings.Trim(route, "/"), "/")
	for i, p := range parts {
		if i > 0 && parts[i-1] == "api" && strings.HasPrefix(p, "v") && i+1 < len(parts) {
			return parts[i+1]
		}
	}
	if len(parts) > 0 && !strings.HasPrefix(parts[0], ":") {
		return parts[0]
	}
	return ""
}
