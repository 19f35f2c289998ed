package middleware

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Tracing starts a server span per request, named after the route pattern.
// 5xx responses mark the span as failed.
func Tracing(serviceName string, opts ...otelgin.Option) gin.HandlerFunc {
	return otelgin.Middleware(serviceName, opts...)
}

// SpanAttributes tags the request span with the request ID and, once the
// handler chain has authenticated the caller, with the user and role. It must
// run inside Tracing because otelgin ends the span when its own chain returns.
func SpanAttributes() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		if !span.IsRecording() {
			c.Next()
			return
		}
		if id := c.GetString(RequestIDKey); id != "" {
			span.SetAttributes(attribute.String("request_id", id))
		}

		c.Next()

		if id, ok := GetIdentity(c); ok {
			span.SetAttributes(
				attribute.String("user_id", id.ID.String()),
				attribute.String("actor_role", id.Role.String()),
			)
		}
	}
}
