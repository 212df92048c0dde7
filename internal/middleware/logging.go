package middleware

import (
	"context"
	"fmt"
	"time"

	"food-ordering/internal/models"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// AuditPublisher is the opaque log-sink channel. A nil publisher disables
// audit publication without touching the request path.
type AuditPublisher interface {
	Publish(ctx context.Context, event models.AuditEvent) error
}

// LoggerMiddleware logs each request and ships the matching audit event.
func LoggerMiddleware(logger *zap.Logger, audit AuditPublisher, serviceName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()
		correlationID := CorrelationIDFrom(c.Request.Context())

		span := trace.SpanFromContext(c.Request.Context())
		traceID := ""
		if span.SpanContext().IsValid() {
			traceID = span.SpanContext().TraceID().String()
		}

		logger.Info("HTTP Request",
			zap.String("correlation_id", correlationID),
			zap.String("trace_id", traceID),
			zap.Int("status", status),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.String("ip", c.ClientIP()),
			zap.Duration("latency", latency),
		)

		if audit == nil {
			return
		}

		logType := "INFO"
		if status >= 400 {
			logType = "ERROR"
		}

		event := models.AuditEvent{
			Timestamp:     start.UTC().Format(time.RFC3339),
			LogType:       logType,
			URL:           path,
			CorrelationID: correlationID,
			ServiceName:   serviceName,
			Message:       fmt.Sprintf("%s %s - %d (%dms)", c.Request.Method, path, status, latency.Milliseconds()),
			Method:        c.Request.Method,
			StatusCode:    status,
			DurationMs:    latency.Milliseconds(),
		}

		// Best effort: the request already finished, so publish failures are
		// only logged.
		ctx := context.WithoutCancel(c.Request.Context())
		go func() {
			if err := audit.Publish(ctx, event); err != nil {
				logger.Warn("Failed to publish audit event",
					zap.String("correlation_id", correlationID),
					zap.Error(err),
				)
			}
		}()
	}
}
