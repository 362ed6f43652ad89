package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/archvision/archvision-backend/internal/platform/logger"
)

// RequestLog logs one structured line per request after completion.
func RequestLog(log *logger.Logger) gin.HandlerFunc {
	reqLog := log.With("component", "http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, "errors", c.Errors.String())
		}
		if c.Writer.Status() >= 500 {
			reqLog.Error("Request completed", fields...)
			return
		}
		reqLog.Info("Request completed", fields...)
	}
}
