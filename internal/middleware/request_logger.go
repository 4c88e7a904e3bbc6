package middleware

import (
	"time"

	"mototaxi-backend/internal/logger"

	"github.com/gin-gonic/gin"
)

// RequestLogger пишет строку журнала на каждый запрос. Ошибки, добавленные
// через c.Error, попадают в запись уровня ERROR.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		entry := logger.Entry{
			Action: "http_request",
			UserID: c.GetUint(ContextUserID),
			Fields: logger.Fields{
				"method":      c.Request.Method,
				"path":        path,
				"status":      c.Writer.Status(),
				"duration_ms": time.Since(start).Milliseconds(),
				"request_id":  c.GetString("request_id"),
			},
		}

		if len(c.Errors) > 0 {
			entry.Err = c.Errors.Last().Err
			log.Error(entry)
			return
		}
		if c.Writer.Status() >= 500 {
			log.Warn(entry)
			return
		}
		log.Debug(entry)
	}
}
