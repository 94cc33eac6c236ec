// Package errors provides standardized error handling for the AI orchestrator,
// its HTTP API and its BPMN job workers.
package errors

import (
	"errors"
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
	ErrCodeInvalidRequest     ErrorCode = "INVALID_REQUEST"
	ErrCodeNoModelAvailable   ErrorCode = "NO_MODEL_AVAILABLE"
	ErrCodeHandlerFailed      ErrorCode = "HANDLER_FAILED"
	ErrCodeRequestTimeout     ErrorCode = "REQUEST_TIMEOUT"
	ErrCodeQueueFull          ErrorCode = "QUEUE_FULL"
	ErrCodeDuplicateRequest   ErrorCode = "DUPLICATE_REQUEST"
	ErrCodeOrchestratorClosed ErrorCode = "ORCHESTRATOR_CLOSED"
	ErrCodeResponseNotFound   ErrorCode = "RESPONSE_NOT_FOUND"

	ErrCodeSearchFailed      ErrorCode = "SEARCH_FAILED"
	ErrCodeSearchIndexFailed ErrorCode = "SEARCH_INDEX_FAILED"

	ErrCodeStoreUnavailable   ErrorCode = "STORE_UNAVAILABLE"
	ErrCodeArchiveWriteFailed ErrorCode = "ARCHIVE_WRITE_FAILED"

	ErrCodeRegistryInvalid ErrorCode = "REGISTRY_INVALID"

	ErrCodeBrokerUnavailable ErrorCode = "BROKER_UNAVAILABLE"
	ErrCodeBrokerRejected    ErrorCode = "BROKER_REJECTED"

	ErrCodeNotificationFailed ErrorCode = "NOTIFICATION_FAILED"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause so errors.Is keeps working across layers.
func (e *StandardError) Unwrap() error {
	return e.cause
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

func newError(code ErrorCode, message, details string, retryable bool, cause error) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

func detailsOf(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// NewInvalidRequestError creates a non-retryable validation error.
func NewInvalidRequestError(details string, cause error) *StandardError {
	return newError(ErrCodeInvalidRequest, "Invalid AI request", details, false, cause)
}

// NewNoModelAvailableError is returned when the router finds no active model for a request type.
func NewNoModelAvailableError(requestType string, cause error) *StandardError {
	return newError(ErrCodeNoModelAvailable, "No active model available for request type",
		fmt.Sprintf("requestType: %s", requestType), false, cause)
}

// NewHandlerFailedError wraps a failure inside result generation.
func NewHandlerFailedError(requestID string, cause error) *StandardError {
	return newError(ErrCodeHandlerFailed, "AI request handler failed",
		fmt.Sprintf("requestId: %s, error: %s", requestID, detailsOf(cause)), true, cause)
}

// NewRequestTimeoutError is returned when a caller stops waiting for a response.
func NewRequestTimeoutError(requestID string, cause error) *StandardError {
	return newError(ErrCodeRequestTimeout, "Timed out waiting for AI response",
		fmt.Sprintf("requestId: %s", requestID), true, cause)
}

// NewQueueFullError signals backpressure from the request queue.
func NewQueueFullError(capacity int, cause error) *StandardError {
	return newError(ErrCodeQueueFull, "AI request queue is full",
		fmt.Sprintf("capacity: %d", capacity), true, cause)
}

// NewDuplicateRequestError is returned when a request id is already pending.
func NewDuplicateRequestError(requestID string, cause error) *StandardError {
	return newError(ErrCodeDuplicateRequest, "AI request id already pending",
		fmt.Sprintf("requestId: %s", requestID), false, cause)
}

// NewOrchestratorClosedError is returned after shutdown has begun.
func NewOrchestratorClosedError(cause error) *StandardError {
	return newError(ErrCodeOrchestratorClosed, "Orchestrator is shutting down", "", true, cause)
}

// NewResponseNotFoundError is returned when no response is stored for a request id.
func NewResponseNotFoundError(requestID string, cause error) *StandardError {
	return newError(ErrCodeResponseNotFound, "AI response not found",
		fmt.Sprintf("requestId: %s", requestID), false, cause)
}

// NewSearchFailedError wraps a failed global search.
func NewSearchFailedError(query string, cause error) *StandardError {
	return newError(ErrCodeSearchFailed, "Global search failed",
		fmt.Sprintf("query: %s, error: %s", query, detailsOf(cause)), true, cause)
}

// NewSearchIndexFailedError wraps an entity index failure.
func NewSearchIndexFailedError(index string, cause error) *StandardError {
	return newError(ErrCodeSearchIndexFailed, "Entity index query failed",
		fmt.Sprintf("index: %s, error: %s", index, detailsOf(cause)), true, cause)
}

// NewStoreUnavailableError wraps a backing store (redis, memory) failure.
func NewStoreUnavailableError(store string, cause error) *StandardError {
	return newError(ErrCodeStoreUnavailable, "Backing store unavailable",
		fmt.Sprintf("store: %s, error: %s", store, detailsOf(cause)), true, cause)
}

// NewArchiveWriteFailedError wraps a failed response archive insert.
func NewArchiveWriteFailedError(cause error) *StandardError {
	return newError(ErrCodeArchiveWriteFailed, "Response archive write failed", detailsOf(cause), true, cause)
}

// NewRegistryInvalidError reports an invalid model or pipeline registry.
func NewRegistryInvalidError(details string) *StandardError {
	return newError(ErrCodeRegistryInvalid, "Model registry is invalid", details, false, nil)
}

// NewBrokerUnavailableError wraps a transient Zeebe gateway failure.
func NewBrokerUnavailableError(operation string, cause error) *StandardError {
	return newError(ErrCodeBrokerUnavailable, "Zeebe broker unavailable",
		fmt.Sprintf("operation: %s, error: %s", operation, detailsOf(cause)), true, cause)
}

// NewBrokerRejectedError wraps a command the Zeebe gateway refused.
func NewBrokerRejectedError(operation string, cause error) *StandardError {
	return newError(ErrCodeBrokerRejected, "Zeebe command rejected",
		fmt.Sprintf("operation: %s, error: %s", operation, detailsOf(cause)), false, cause)
}

// NewNotificationFailedError wraps a failed SNS publish for a stored response.
func NewNotificationFailedError(requestID string, cause error) *StandardError {
	return newError(ErrCodeNotificationFailed, "Response notification failed",
		fmt.Sprintf("requestId: %s, error: %s", requestID, detailsOf(cause)), true, cause)
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// BPMNErrorMapping maps internal error codes to BPMN error codes.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeInvalidRequest:     "INVALID_REQUEST",
	ErrCodeNoModelAvailable:   "NO_MODEL_AVAILABLE",
	ErrCodeHandlerFailed:      "AI_HANDLER_FAILED",
	ErrCodeRequestTimeout:     "AI_TIMEOUT",
	ErrCodeQueueFull:          "AI_BUSY",
	ErrCodeDuplicateRequest:   "DUPLICATE_REQUEST",
	ErrCodeOrchestratorClosed: "AI_UNAVAILABLE",
	ErrCodeResponseNotFound:   "RESPONSE_NOT_FOUND",
	ErrCodeSearchFailed:       "SEARCH_FAILED",
	ErrCodeSearchIndexFailed:  "SEARCH_FAILED",
	ErrCodeStoreUnavailable:   "STORE_UNAVAILABLE",
	ErrCodeBrokerUnavailable:  "BROKER_UNAVAILABLE",
}

// GetRetryCount returns the recommended retry count for an error code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeHandlerFailed,
		ErrCodeStoreUnavailable,
		ErrCodeSearchFailed,
		ErrCodeSearchIndexFailed,
		ErrCodeBrokerUnavailable:
		return 3

	case ErrCodeQueueFull,
		ErrCodeOrchestratorClosed:
		return 2

	case ErrCodeRequestTimeout:
		return 1

	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      bpmnCode,
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// AsStandardError extracts a *StandardError from an error chain.
func AsStandardError(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// Normalize returns err as a StandardError, wrapping unknown errors as INTERNAL_ERROR.
func Normalize(err error) *StandardError {
	if stdErr, ok := AsStandardError(err); ok {
		return stdErr
	}
	return newError(ErrCodeInternal, "Unexpected error", detailsOf(err), false, err)
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "SEARCH"):
		return "SEARCH"
	case strings.Contains(codeStr, "STORE") || strings.Contains(codeStr, "ARCHIVE"):
		return "STORAGE"
	case strings.Contains(codeStr, "REGISTRY"):
		return "REGISTRY"
	case strings.Contains(codeStr, "BROKER"):
		return "WORKFLOW"
	case strings.Contains(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "INVALID") || strings.Contains(codeStr, "DUPLICATE"):
		return "VALIDATION"
	case strings.Contains(codeStr, "MODEL") || strings.Contains(codeStr, "HANDLER") ||
		strings.Contains(codeStr, "QUEUE") || strings.Contains(codeStr, "TIMEOUT") ||
		strings.Contains(codeStr, "ORCHESTRATOR") || strings.Contains(codeStr, "RESPONSE"):
		return "AI"
	default:
		return "OTHER"
	}
}
