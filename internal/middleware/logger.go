package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jengzang/trackfix/internal/logging"
)

// Logger middleware logs HTTP requests
func Logger() gin.HandlerFunc {
	log := logging.Named("http")
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		if raw != "" {
			path = path + "?" + raw
		}

		fields := []interface{}{
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
			"request_id", c.GetString(RequestIDKey),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, "errors", c.Errors.String())
		}

		switch {
		case c.Writer.Status() >= 500:
			log.Errorw("[HTTP] request failed", fields...)
		case c.Writer.Status() >= 400:
			log.Warnw("[HTTP] request rejected", fields...)
		default:
			log.Infow("[HTTP] request", fields...)
		}
	}
}
