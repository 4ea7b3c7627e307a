package server

import (
	"time"

	"tillpoint/internal/logger"

	"github.com/gin-gonic/gin"
)

// RequestLoggingMiddleware logs each request with method, path, status and latency.
func RequestLoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		logger.Infof("%s %s -> %d (%s)",
			c.Request.Method,
			c.Request.URL.Path,
			c.Writer.Status(),
			time.Since(start),
		)
	}
}
