package execution

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// ErrInvalidBlock is returned when a committed block cannot be executed as
// delivered, for example when the sender list does not line up with the
// transactions.
var ErrInvalidBlock = errors.New("invalid block")

// StateAccessError reports that the state provider failed while a block was
// being re-executed. The block result is discarded.
type StateAccessError struct {
	BlockHash   common.Hash
	BlockNumber uint64

	// TxIndex is the transaction that observed the failure, or -1 when it
	// happened before the first transaction.
	TxIndex int

	Err error
}

func (e *StateAccessError) Error() string {
	if e.TxIndex < 0 {
		return fmt.Sprintf("state access failed in block %d (%s): %v", e.BlockNumber, e.BlockHash.Hex(), e.Err)
	}
	return fmt.Sprintf("state access failed in block %d (%s) at tx %d: %v", e.BlockNumber, e.BlockHash.Hex(), e.TxIndex, e.Err)
}

func (e *StateAccessError) Unwrap() error {
	return e.Err
}

// IsStateAccessError returns true if err is or wraps a StateAccessError.
func IsStateAccessError(err error) bool {
	var se *StateAccessError
	return errors.As(err, &se)
}
