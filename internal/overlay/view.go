package overlay

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/state"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"

	"github.com/shadow-hq/shadowlogs/internal/contracts"
)

// View is a read-only state accessor that substitutes override bytecode.
//
// Methods not overridden here (Storage and any others the base reader
// provides) are promoted from the embedded reader unchanged.
type View struct {
	state.Reader
	registry *contracts.Registry
}

// NewView wraps base with the registry's overrides.
func NewView(base state.Reader, reg *contracts.Registry) *View {
	return &View{Reader: base, registry: reg}
}

// Account returns the base account with its code hash replaced when addr is
// shadowed. Accounts absent from the base state stay absent.
func (v *View) Account(addr common.Address) (*types.StateAccount, error) {
	acct, err := v.Reader.Account(addr)
	if err != nil || acct == nil {
		return acct, err
	}
	hash, ok := v.registry.CodeHash(addr)
	if !ok {
		return acct, nil
	}
	shadowed := acct.Copy()
	shadowed.CodeHash = hash.Bytes()
	return shadowed, nil
}

// Code resolves codeHash against the overrides first. Override hashes are
// synthetic and never present in the base code index.
func (v *View) Code(addr common.Address, codeHash common.Hash) ([]byte, error) {
	if code, ok := v.registry.CodeByHash(codeHash); ok {
		return code, nil
	}
	return v.Reader.Code(addr, codeHash)
}

// CodeSize mirrors Code.
func (v *View) CodeSize(addr common.Address, codeHash common.Hash) (int, error) {
	if code, ok := v.registry.CodeByHash(codeHash); ok {
		return len(code), nil
	}
	return v.Reader.CodeSize(addr, codeHash)
}

// AccountInfo is the overlaid view of a single account.
type AccountInfo struct {
	Balance  *uint256.Int
	Nonce    uint64
	CodeHash common.Hash
	Code     []byte
}

// AccountInfo returns balance, nonce, code hash and code for addr, or nil if
// the account does not exist.
func (v *View) AccountInfo(addr common.Address) (*AccountInfo, error) {
	acct, err := v.Account(addr)
	if err != nil || acct == nil {
		return nil, err
	}

	info := &AccountInfo{
		Balance:  new(uint256.Int),
		Nonce:    acct.Nonce,
		CodeHash: common.BytesToHash(acct.CodeHash),
	}
	if acct.Balance != nil {
		info.Balance.Set(acct.Balance)
	}
	if info.CodeHash != types.EmptyCodeHash && info.CodeHash != (common.Hash{}) {
		code, err := v.Code(addr, info.CodeHash)
		if err != nil {
			return nil, err
		}
		info.Code = code
	}
	return info, nil
}

// CodeByHash returns the bytecode for hash, preferring overrides.
func (v *View) CodeByHash(hash common.Hash) ([]byte, error) {
	return v.Code(common.Address{}, hash)
}
