package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertToBPMNError(t *testing.T) {
	tests := []struct {
		name        string
		err         *StandardError
		wantCode    string
		wantRetries int
	}{
		{"no model", NewNoModelAvailableError("unknown_type", nil), "NO_MODEL_AVAILABLE", 0},
		{"handler failed", NewHandlerFailedError("r1", fmt.Errorf("boom")), "AI_HANDLER_FAILED", 3},
		{"queue full", NewQueueFullError(10, nil), "AI_BUSY", 2},
		{"timeout", NewRequestTimeoutError("r1", context.DeadlineExceeded), "AI_TIMEOUT", 1},
		{"invalid", NewInvalidRequestError("missing id", nil), "INVALID_REQUEST", 0},
		{"unmapped", NewArchiveWriteFailedError(fmt.Errorf("insert")), "ARCHIVE_WRITE_FAILED", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bpmn := ConvertToBPMNError(tt.err)
			assert.Equal(t, tt.wantCode, bpmn.Code)
			assert.Equal(t, tt.wantRetries, bpmn.Retries)
			vars := bpmn.ToErrorVariables()
			assert.Equal(t, string(tt.err.Code), vars["originalErrorCode"])
			assert.Equal(t, tt.wantCode, vars["errorCode"])
		})
	}
}

func TestStandardError_UnwrapKeepsCause(t *testing.T) {
	sentinel := stderrors.New("no model")
	err := fmt.Errorf("process: %w", NewNoModelAvailableError("x", sentinel))

	assert.True(t, stderrors.Is(err, sentinel))

	stdErr, ok := AsStandardError(err)
	require.True(t, ok)
	assert.Equal(t, ErrCodeNoModelAvailable, stdErr.Code)
}

func TestNormalize(t *testing.T) {
	stdErr := Normalize(fmt.Errorf("plain"))
	assert.Equal(t, ErrCodeInternal, stdErr.Code)
	assert.Equal(t, "plain", stdErr.Details)

	original := NewQueueFullError(1, nil)
	assert.Same(t, original, Normalize(original))
}

func TestRemainingRetries(t *testing.T) {
	assert.Equal(t, int32(2), RemainingRetries(5, 3))
	assert.Equal(t, int32(1), RemainingRetries(2, 3))
	assert.Equal(t, int32(0), RemainingRetries(1, 3))
	assert.Equal(t, int32(0), RemainingRetries(0, 0))
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "SEARCH", GetErrorCategory(ErrCodeSearchFailed))
	assert.Equal(t, "STORAGE", GetErrorCategory(ErrCodeStoreUnavailable))
	assert.Equal(t, "STORAGE", GetErrorCategory(ErrCodeArchiveWriteFailed))
	assert.Equal(t, "AI", GetErrorCategory(ErrCodeNoModelAvailable))
	assert.Equal(t, "AI", GetErrorCategory(ErrCodeQueueFull))
	assert.Equal(t, "VALIDATION", GetErrorCategory(ErrCodeInvalidRequest))
	assert.Equal(t, "REGISTRY", GetErrorCategory(ErrCodeRegistryInvalid))
	assert.Equal(t, "WORKFLOW", GetErrorCategory(ErrCodeBrokerUnavailable))
	assert.Equal(t, "NOTIFICATION", GetErrorCategory(ErrCodeNotificationFailed))
	assert.Equal(t, "OTHER", GetErrorCategory(ErrCodeInternal))
}
