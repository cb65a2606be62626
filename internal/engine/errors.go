package engine

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// ProcessingError is handed to a delivery's Ack when a notification could
// not be fully processed. Nothing after the failing step was done and the
// checkpoint was not advanced, so the host may redeliver the notification.
type ProcessingError struct {
	// Code identifies the error category.
	Code ProcessingErrorCode

	// NotificationID identifies the affected notification.
	NotificationID string

	// BlockHash and BlockNumber identify the block being handled, if any.
	BlockHash   common.Hash
	BlockNumber uint64

	Err error
}

// ProcessingErrorCode categorizes processing errors.
type ProcessingErrorCode string

const (
	// ErrCodeStateAccess indicates the state provider failed during execution.
	ErrCodeStateAccess ProcessingErrorCode = "STATE_ACCESS"

	// ErrCodeExecution indicates block execution failed for another reason.
	ErrCodeExecution ProcessingErrorCode = "EXECUTION"

	// ErrCodeStorage indicates an append, invalidation or checkpoint write failed.
	ErrCodeStorage ProcessingErrorCode = "STORAGE"

	// ErrCodeInvalidNotification indicates the notification is malformed.
	// Redelivering it unchanged will fail again.
	ErrCodeInvalidNotification ProcessingErrorCode = "INVALID_NOTIFICATION"
)

func (e *ProcessingError) Error() string {
	if e.BlockHash != (common.Hash{}) {
		return fmt.Sprintf("%s: notification %s, block %d (%s): %v",
			e.Code, e.NotificationID, e.BlockNumber, e.BlockHash.Hex(), e.Err)
	}
	return fmt.Sprintf("%s: notification %s: %v", e.Code, e.NotificationID, e.Err)
}

func (e *ProcessingError) Unwrap() error {
	return e.Err
}

// ErrorCode returns the code of the ProcessingError in err's chain.
func ErrorCode(err error) (ProcessingErrorCode, bool) {
	var pe *ProcessingError
	if errors.As(err, &pe) {
		return pe.Code, true
	}
	return "", false
}

// IsRetryable returns true if redelivering the notification may succeed.
// Uses errors.As to handle wrapped errors.
func IsRetryable(err error) bool {
	code, ok := ErrorCode(err)
	if !ok {
		return err != nil
	}
	return code != ErrCodeInvalidNotification
}
