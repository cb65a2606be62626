package engine

import (
	"errors"
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
)

func TestProcessingError_Error(t *testing.T) {
	cause := errors.New("disk full")

	withBlock := &ProcessingError{
		Code:           ErrCodeStorage,
		NotificationID: "n-1",
		BlockHash:      common.HexToHash("0xab"),
		BlockNumber:    7,
		Err:            cause,
	}
	assert.Contains(t, withBlock.Error(), "STORAGE: notification n-1, block 7")
	assert.ErrorIs(t, withBlock, cause)

	noBlock := &ProcessingError{Code: ErrCodeInvalidNotification, NotificationID: "n-2", Err: cause}
	assert.Equal(t, "INVALID_NOTIFICATION: notification n-2: disk full", noBlock.Error())
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("boom"), true},
		{"state access", &ProcessingError{Code: ErrCodeStateAccess}, true},
		{"storage", &ProcessingError{Code: ErrCodeStorage}, true},
		{"execution", &ProcessingError{Code: ErrCodeExecution}, true},
		{"invalid", &ProcessingError{Code: ErrCodeInvalidNotification}, false},
		{"wrapped invalid", fmt.Errorf("ack: %w", &ProcessingError{Code: ErrCodeInvalidNotification}), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestErrorCode(t *testing.T) {
	_, ok := ErrorCode(errors.New("plain"))
	assert.False(t, ok)

	code, ok := ErrorCode(fmt.Errorf("wrapped: %w", &ProcessingError{Code: ErrCodeExecution}))
	assert.True(t, ok)
	assert.Equal(t, ErrCodeExecution, code)
}
