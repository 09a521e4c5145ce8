package apierrors

import (
	"waitlist-server/internal/observability"

	"github.com/gin-gonic/gin"
)

// Package-level logger that uses context for observability
var logger = observability.NewLogger()

// SetLogger replaces the package logger with the application's.
func SetLogger(l *observability.Logger) {
	if l != nil {
		logger = l
	}
}

// ErrorResponse is the JSON structure returned to API clients for errors
type ErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// RespondWithError handles error logging and sends a sanitized JSON response to the client.
// This is the primary function handlers should use for error responses.
//
// Example usage:
//
//	if err != nil {
//	    apierrors.RespondWithError(c, err)
//	    return
//	}
func RespondWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	apiErr := MapError(err)
	Respond(c, apiErr)
}

// Respond logs apiErr and writes its client-safe body.
func Respond(c *gin.Context, apiErr *APIError) {
	ctx := observability.WithFields(c.Request.Context(),
		observability.Field{Key: "status_code", Value: apiErr.StatusCode},
		observability.Field{Key: "error_code", Value: apiErr.Code},
		observability.Field{Key: "error_message", Value: apiErr.Message},
	)
	if apiErr.Err != nil {
		logger.Error(ctx, "API error response", apiErr.Err)
	} else {
		logger.Info(ctx, "API error response")
	}

	c.AbortWithStatusJSON(apiErr.StatusCode, ErrorResponse{
		Status:  "error",
		Message: apiErr.Message,
	})
}
