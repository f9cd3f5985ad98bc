// Package handlers implements the operator API, the provider webhook and the
// realtime stream on top of the services layer.
//
// Every error leaves through fail() as an ErrorResponse; 5xx responses are
// logged with the request-scoped logger and never carry internal detail.
//
//	HTTP/1.1 409 Conflict
//	{
//	  "ok": false,
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "error": "chat_not_linked_to_avito",
//	  "message": "chat has no avito chat id"
//	}
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/andrrrrey/avito-crm/internal/http/middleware"
)

// ErrorResponse is the error envelope of every endpoint.
type ErrorResponse struct {
	OK bool `json:"ok" example:"false"`
	// Correlates server logs and client errors
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code (see errors.go)
	Code    string `json:"error" example:"chat_not_found"`
	Message string `json:"message,omitempty" example:"chat not found"`
}

// OKResponse is the body of endpoints that only acknowledge.
type OKResponse struct {
	OK bool `json:"ok" example:"true"`
}

func fail(c *gin.Context, status int, code, msg string) {
	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Strs("errors", c.Errors.Errors()).
			Msg("api error")
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: middleware.RequestIDFrom(c),
		Code:      code,
		Message:   msg,
	})
}

// Fail is fail() for the router's NoRoute/NoMethod handlers.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// internal records err on the context for the access log and answers a
// generic 500.
func internal(c *gin.Context, err error) {
	_ = c.Error(err)
	fail(c, http.StatusInternalServerError, ErrCodeInternal, "internal error")
}

func ok(c *gin.Context, body any) {
	c.JSON(http.StatusOK, body)
}

func acknowledge(c *gin.Context) {
	c.JSON(http.StatusOK, OKResponse{OK: true})
}
