package chain

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
)

func committed(number int64) CommittedBlock {
	return CommittedBlock{Block: types.NewBlockWithHeader(&types.Header{Number: big.NewInt(number)})}
}

func TestNotificationKind(t *testing.T) {
	assert.Equal(t, ChainCommitted, (&Notification{Committed: []CommittedBlock{committed(1)}}).Kind())
	assert.Equal(t, ChainReverted, (&Notification{Reverted: []RevertedBlock{{Number: 1}}}).Kind())
	assert.Equal(t, ChainReorged, (&Notification{
		Reverted:  []RevertedBlock{{Number: 1}},
		Committed: []CommittedBlock{committed(1)},
	}).Kind())
	assert.Equal(t, "reorged", ChainReorged.String())
}

func TestNotificationTip(t *testing.T) {
	n := &Notification{Committed: []CommittedBlock{committed(7), committed(8)}}
	number, hash := n.Tip()
	assert.Equal(t, uint64(8), number)
	assert.Equal(t, n.Committed[1].Hash(), hash)

	n = &Notification{Reverted: []RevertedBlock{
		{Hash: common.HexToHash("0x02"), Number: 12},
		{Hash: common.HexToHash("0x01"), Number: 11},
	}}
	number, hash = n.Tip()
	assert.Equal(t, uint64(10), number)
	assert.Equal(t, common.Hash{}, hash)
}
