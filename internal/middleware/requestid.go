// Package middleware holds the gin middleware of the operational endpoint.
package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	// RequestIDKey is the gin context key for the request ID.
	RequestIDKey = "request_id"

	// RequestIDHeader is the HTTP header used to propagate the request ID.
	RequestIDHeader = "X-Request-ID"
)

// RequestID assigns every request a fresh UUID, stores it under
// RequestIDKey and echoes it in the response. A client-supplied ID is kept
// as client_request_id.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := uuid.NewString()
		if clientID := c.GetHeader(RequestIDHeader); clientID != "" {
			c.Set("client_request_id", clientID)
		}
		c.Set(RequestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// Logger logs one line per request. Scrapes of /metrics are logged at debug
// level.
func Logger(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		fields := logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
			"client":   c.ClientIP(),
		}
		if rid, ok := c.Get(RequestIDKey); ok {
			fields["request_id"] = rid
		}
		if cid := c.GetString("client_request_id"); cid != "" {
			fields["client_request_id"] = cid
		}
		entry := log.WithFields(fields)
		if c.Request.URL.Path == "/metrics" {
			entry.Debug("request")
			return
		}
		entry.Info("request")
	}
}
