// Package errors provides the standardized error taxonomy for the reply
// pipeline. Every failure carries a code, a retryable flag and the fail-safe
// behavior the pipeline applies (classification failures never block a
// review; they force manual approval instead).
package errors

import (
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeUnknownStore    ErrorCode = "UNKNOWN_STORE"
	ErrCodeUnknownPlatform ErrorCode = "UNKNOWN_PLATFORM"

	ErrCodeRawPayloadInvalid ErrorCode = "RAW_PAYLOAD_INVALID"
	ErrCodeFetchFailed       ErrorCode = "FETCH_FAILED"

	ErrCodeOverlayFailed  ErrorCode = "CLASSIFICATION_OVERLAY_FAILED"
	ErrCodeOverlayTimeout ErrorCode = "CLASSIFICATION_OVERLAY_TIMEOUT"

	ErrCodeCompositionFailed ErrorCode = "COMPOSITION_FAILED"
	ErrCodeLLMTimeout        ErrorCode = "LLM_TIMEOUT"

	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"

	ErrCodePersistenceFailed  ErrorCode = "PERSISTENCE_FAILED"
	ErrCodeDuplicateReply     ErrorCode = "DUPLICATE_REPLY"
	ErrCodeInvalidTransition  ErrorCode = "INVALID_TRANSITION"
	ErrCodeStaleRecord        ErrorCode = "STALE_RECORD"
	ErrCodePlatformRejected   ErrorCode = "PLATFORM_REJECTED"
	ErrCodeMaxRetriesExceeded ErrorCode = "MAX_RETRIES_EXCEEDED"

	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"
	ErrCodeArchiveIndexFailed     ErrorCode = "ARCHIVE_INDEX_FAILED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// ==========================
// 2. Error Constructors
// ==========================

// NewUnknownStoreError aborts an entire batch run: without a store profile
// nothing downstream can be composed.
func NewUnknownStoreError(storeID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeUnknownStore,
		Message:   "Store profile not found",
		Details:   fmt.Sprintf("storeId: %s", storeID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewUnknownPlatformError aborts an entire batch run.
func NewUnknownPlatformError(platform string) *StandardError {
	return &StandardError{
		Code:      ErrCodeUnknownPlatform,
		Message:   "No adapter registered for platform",
		Details:   fmt.Sprintf("platform: %s", platform),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewRawPayloadInvalidError marks a single malformed crawler record. The
// record is skipped and logged; the fetch continues.
func NewRawPayloadInvalidError(platform string, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeRawPayloadInvalid,
		Message:   "Raw review payload failed schema validation",
		Details:   fmt.Sprintf("platform: %s, %s", platform, details),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewFetchFailedError creates a retryable crawler fetch error.
func NewFetchFailedError(platform string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeFetchFailed,
		Message:   "Review fetch failed",
		Details:   fmt.Sprintf("platform: %s, error: %s", platform, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewOverlayFailedError records an AI-overlay failure. Never fatal: the
// classifier falls back to requires_approval=true.
func NewOverlayFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeOverlayFailed,
		Message:   "Approval overlay call failed, defaulting to manual approval",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewLLMTimeoutError creates a retryable language-model timeout error.
func NewLLMTimeoutError() *StandardError {
	return &StandardError{
		Code:      ErrCodeLLMTimeout,
		Message:   "Language-model call exceeded its timeout",
		Details:   "template fallback applied",
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewCompositionFailedError records a backend composition failure. Never
// fatal: the composer falls back to the deterministic template.
func NewCompositionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeCompositionFailed,
		Message:   "Reply composition failed, template fallback applied",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewValidationFailedError records a reply that failed validation. The
// record is still persisted as DRAFT; only auto-send is blocked.
func NewValidationFailedError(issues []string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   "Composed reply failed validation",
		Details:   strings.Join(issues, "; "),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewPersistenceFailedError aborts only the single review's result.
func NewPersistenceFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodePersistenceFailed,
		Message:   "Reply record persistence failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewDuplicateReplyError creates a non-retryable unique-key violation error.
func NewDuplicateReplyError(platform, reviewID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeDuplicateReply,
		Message:   "Reply record already exists for review",
		Details:   fmt.Sprintf("platform: %s, reviewId: %s", platform, reviewID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidTransitionError creates a non-retryable state machine error.
func NewInvalidTransitionError(from, to string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidTransition,
		Message:   "Lifecycle transition not permitted",
		Details:   fmt.Sprintf("%s -> %s", from, to),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewStaleRecordError signals a guarded write that matched no row: another
// writer moved the record first.
func NewStaleRecordError(recordID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeStaleRecord,
		Message:   "Record state changed since read",
		Details:   fmt.Sprintf("recordId: %s", recordID),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewMaxRetriesExceededError marks a record left FAILED for manual handling.
// This is the only condition the engine treats as requiring a human.
func NewMaxRetriesExceededError(platform, reviewID string, retries int) *StandardError {
	return &StandardError{
		Code:      ErrCodeMaxRetriesExceeded,
		Message:   "Regeneration retries exhausted",
		Details:   fmt.Sprintf("platform: %s, reviewId: %s, retries: %d", platform, reviewID, retries),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotificationSendFailedError creates a retryable notification error.
// The pipeline never blocks on it.
func NewNotificationSendFailedError(channel string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationSendFailed,
		Message:   "Notification delivery failed",
		Details:   fmt.Sprintf("channel: %s, error: %s", channel, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewArchiveIndexFailedError creates a retryable archive indexing error.
func NewArchiveIndexFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeArchiveIndexFailed,
		Message:   "Batch result indexing failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. Utility Functions
// ==========================

// GetRetryCount returns the recommended retry count per error code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeFetchFailed,
		ErrCodePersistenceFailed,
		ErrCodeNotificationSendFailed,
		ErrCodeArchiveIndexFailed,
		ErrCodeCompositionFailed,
		ErrCodeOverlayFailed:
		return 3

	case ErrCodeLLMTimeout,
		ErrCodeOverlayTimeout,
		ErrCodeStaleRecord:
		return 1

	default:
		return 0 // business errors: no retry
	}
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "UNKNOWN"):
		return "SETUP"
	case strings.Contains(codeStr, "PAYLOAD") || strings.Contains(codeStr, "FETCH"):
		return "ADAPTER"
	case strings.Contains(codeStr, "OVERLAY"):
		return "CLASSIFICATION"
	case strings.Contains(codeStr, "LLM") || strings.Contains(codeStr, "COMPOSITION"):
		return "COMPOSITION"
	case strings.Contains(codeStr, "VALIDATION"):
		return "VALIDATION"
	case strings.Contains(codeStr, "PERSISTENCE") || strings.Contains(codeStr, "DUPLICATE") ||
		strings.Contains(codeStr, "TRANSITION") || strings.Contains(codeStr, "STALE"):
		return "PERSISTENCE"
	case strings.Contains(codeStr, "REJECTED") || strings.Contains(codeStr, "RETRIES"):
		return "POSTING"
	case strings.Contains(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	default:
		return "OTHER"
	}
}
