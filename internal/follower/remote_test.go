package follower

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	contractAddr = common.HexToAddress("0x00000000000000000000000000000000000c0de1")
	contractCode = []byte{0x60, 0x00, 0x00}
)

func newTestRemoteState(t *testing.T, c *fakeClient, number uint64) *RemoteState {
	t.Helper()
	codes, err := NewCodeCache(16)
	require.NoError(t, err)
	return NewRemoteState(context.Background(), c, number, codes)
}

func TestRemoteState_Account(t *testing.T) {
	c := newFakeClient()
	c.setAccount(contractAddr, &fakeAccount{
		balance: big.NewInt(1000),
		nonce:   3,
		code:    contractCode,
	})

	r, err := newTestRemoteState(t, c, 41).Reader(types.EmptyRootHash)
	require.NoError(t, err)

	acct, err := r.Account(contractAddr)
	require.NoError(t, err)
	require.NotNil(t, acct)
	assert.Equal(t, uint64(1000), acct.Balance.Uint64())
	assert.Equal(t, uint64(3), acct.Nonce)
	assert.Equal(t, crypto.Keccak256(contractCode), acct.CodeHash)
	assert.Equal(t, types.EmptyRootHash, acct.Root)

	for _, n := range c.stateNumbers {
		assert.Equal(t, uint64(41), n, "reads are pinned to the state block")
	}
}

func TestRemoteState_EmptyAccountIsAbsent(t *testing.T) {
	c := newFakeClient()

	r, err := newTestRemoteState(t, c, 1).Reader(types.EmptyRootHash)
	require.NoError(t, err)

	acct, err := r.Account(common.HexToAddress("0xdead"))
	require.NoError(t, err)
	assert.Nil(t, acct)
}

func TestRemoteState_CodeIsCachedByHash(t *testing.T) {
	c := newFakeClient()
	c.setAccount(contractAddr, &fakeAccount{code: contractCode})

	r, err := newTestRemoteState(t, c, 1).Reader(types.EmptyRootHash)
	require.NoError(t, err)

	_, err = r.Account(contractAddr)
	require.NoError(t, err)
	calls := c.codeCallCount()

	hash := crypto.Keccak256Hash(contractCode)
	code, err := r.Code(contractAddr, hash)
	require.NoError(t, err)
	assert.Equal(t, contractCode, code)

	size, err := r.CodeSize(contractAddr, hash)
	require.NoError(t, err)
	assert.Equal(t, len(contractCode), size)
	assert.Equal(t, calls, c.codeCallCount(), "served from cache")
}

func TestRemoteState_CodeHashMismatch(t *testing.T) {
	c := newFakeClient()
	c.setAccount(contractAddr, &fakeAccount{code: contractCode})

	r, err := newTestRemoteState(t, c, 1).Reader(types.EmptyRootHash)
	require.NoError(t, err)

	_, err = r.Code(contractAddr, common.HexToHash("0x1234"))
	assert.Error(t, err)
}

func TestRemoteState_Storage(t *testing.T) {
	c := newFakeClient()
	slot := common.HexToHash("0x05")
	c.setAccount(contractAddr, &fakeAccount{
		code:    contractCode,
		storage: map[common.Hash]common.Hash{slot: common.HexToHash("0x2a")},
	})

	r, err := newTestRemoteState(t, c, 1).Reader(types.EmptyRootHash)
	require.NoError(t, err)

	v, err := r.Storage(contractAddr, slot)
	require.NoError(t, err)
	assert.Equal(t, common.HexToHash("0x2a"), v)

	v, err = r.Storage(contractAddr, common.HexToHash("0x06"))
	require.NoError(t, err)
	assert.Equal(t, common.Hash{}, v)
}

func TestRemoteState_ErrorsPropagate(t *testing.T) {
	c := newFakeClient()
	boom := errors.New("connection refused")
	c.failState(boom)

	r, err := newTestRemoteState(t, c, 9).Reader(types.EmptyRootHash)
	require.NoError(t, err)

	_, err = r.Account(contractAddr)
	assert.ErrorIs(t, err, boom)

	_, err = r.Storage(contractAddr, common.Hash{})
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "eth_getStorageAt")
}

func TestHashReader(t *testing.T) {
	c := newFakeClient()
	blocks := c.mine(3, 0)

	got, err := NewHashReader(c).BlockHash(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, blocks[1].Hash(), got)

	_, err = NewHashReader(c).BlockHash(context.Background(), 99)
	assert.Error(t, err)
}
