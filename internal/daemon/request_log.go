package daemon

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"dubber/internal/logging"
)

const requestIDHeader = "X-Request-ID"

// requestLogger tags each request with an ID and logs it once served.
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		reqID := c.GetHeader(requestIDHeader)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Set("request_id", reqID)
		c.Writer.Header().Set(requestIDHeader, reqID)

		c.Next()

		status := c.Writer.Status()
		attrs := []logging.Attr{
			logging.String(logging.FieldCorrelationID, reqID),
			logging.String("method", c.Request.Method),
			logging.String("path", c.Request.URL.Path),
			logging.Int("status", status),
			logging.Int64("latency_ms", time.Since(start).Milliseconds()),
			logging.String("client_ip", c.ClientIP()),
			logging.String(logging.FieldEventType, "http_request"),
		}
		switch {
		case status >= 500:
			logger.Warn("http request failed", logging.Args(attrs...)...)
		default:
			logger.Debug("http request", logging.Args(attrs...)...)
		}
	}
}
