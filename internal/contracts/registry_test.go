package contracts

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryCodeByHash(t *testing.T) {
	addr := common.HexToAddress("0x01")
	code := []byte{0x60, 0x00}
	reg := New(map[common.Address][]byte{addr: code})

	got, ok := reg.CodeByHash(crypto.Keccak256Hash(code))
	require.True(t, ok)
	assert.Equal(t, code, got)

	_, ok = reg.CodeByHash(common.HexToHash("0xdead"))
	assert.False(t, ok)
}

func TestRegistryIsImmutable(t *testing.T) {
	addr := common.HexToAddress("0x01")
	code := []byte{0x60, 0x00}
	reg := New(map[common.Address][]byte{addr: code})

	code[0] = 0xff
	got, _ := reg.Lookup(addr)
	assert.Equal(t, byte(0x60), got[0], "input slice is copied")

	got[1] = 0xff
	again, _ := reg.Lookup(addr)
	assert.Equal(t, byte(0x00), again[1], "returned slice is a copy")
}

func TestRegistryAddressesSorted(t *testing.T) {
	reg := New(map[common.Address][]byte{
		common.HexToAddress("0x03"): {0x00},
		common.HexToAddress("0x01"): {0x00},
		common.HexToAddress("0x02"): {0x00},
	})

	assert.Equal(t, []common.Address{
		common.HexToAddress("0x01"),
		common.HexToAddress("0x02"),
		common.HexToAddress("0x03"),
	}, reg.Addresses())
}

func TestNilRegistry(t *testing.T) {
	var reg *Registry

	assert.Equal(t, 0, reg.Len())
	assert.False(t, reg.Contains(common.Address{}))
	assert.Empty(t, reg.Addresses())

	_, ok := reg.Lookup(common.Address{})
	assert.False(t, ok)
	_, ok = reg.CodeHash(common.Address{})
	assert.False(t, ok)
	_, ok = reg.CodeByHash(common.Hash{})
	assert.False(t, ok)
}
