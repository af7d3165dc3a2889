// internal/common/errors/handler.go
package errors

import (
	"time"
)

// ErrorHandler normalizes arbitrary errors into StandardError and logs them
// with their taxonomy fields. The orchestrator uses it to turn per-review
// failures into ProcessingResults without ever aborting a batch.
type ErrorHandler struct {
	logger Logger
}

type Logger interface {
	Error(msg string, fields map[string]interface{})
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Normalize ensures we always have a StandardError.
func (h *ErrorHandler) Normalize(err error) *StandardError {
	if stdErr, ok := err.(*StandardError); ok {
		return stdErr
	}
	return &StandardError{
		Code:      "INTERNAL_ERROR",
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// Handle normalizes and logs an error, returning the normalized form.
func (h *ErrorHandler) Handle(err error, fields map[string]interface{}) *StandardError {
	stdErr := h.Normalize(err)
	if fields == nil {
		fields = map[string]interface{}{}
	}
	fields["errorCode"] = string(stdErr.Code)
	fields["retryable"] = stdErr.Retryable
	fields["category"] = GetErrorCategory(stdErr.Code)
	h.logger.Error(stdErr.Message, fields)
	return stdErr
}
