// Package httputil holds JSON response helpers for the operational endpoint.
package httputil

import (
	"github.com/gin-gonic/gin"

	"github.com/persistorai/catalogsync/internal/middleware"
)

// ErrorBody is the JSON shape of every error answered by the endpoint. It
// mirrors the error payload of the catalog API.
type ErrorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"requestId,omitempty"`
}

// RespondError aborts the request with an ErrorBody.
func RespondError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, ErrorBody{
		Code:      code,
		Message:   message,
		RequestID: c.GetString(middleware.RequestIDKey),
	})
}
