package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"medical-files-server/internal/logging"
	"medical-files-server/internal/utils"
)

// RequestLogger logs one line per request once the handler chain completes.
func RequestLogger(logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		keyvals := []interface{}{
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
		}
		if len(c.Errors) > 0 {
			keyvals = append(keyvals, "errors", c.Errors.String())
		}

		switch {
		case status >= http.StatusInternalServerError:
			logger.Error("request", keyvals...)
		case status >= http.StatusBadRequest:
			logger.Warn("request", keyvals...)
		default:
			logger.Info("request", keyvals...)
		}
	}
}

// BodyLimit rejects requests whose body exceeds limit bytes. Declared lengths
// are checked up front; chunked bodies are cut off by http.MaxBytesReader.
func BodyLimit(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > limit {
			utils.Error(c, http.StatusRequestEntityTooLarge, "Request body too large")
			c.Abort()
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}
