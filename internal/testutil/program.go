package testutil

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/vm"
)

// Program assembles EVM bytecode for tests and scenarios.
//
//	code := testutil.NewProgram().
//		Push(0).Op(vm.SLOAD).
//		Log(topic).
//		Op(vm.STOP).
//		Bytes()
type Program struct {
	code []byte
}

// NewProgram returns an empty program.
func NewProgram() *Program {
	return &Program{}
}

// Op appends raw opcodes.
func (p *Program) Op(ops ...vm.OpCode) *Program {
	for _, op := range ops {
		p.code = append(p.code, byte(op))
	}
	return p
}

// Push appends the shortest PUSHn for v. Zero is pushed with PUSH1 so the
// output does not depend on Shanghai being active.
func (p *Program) Push(v uint64) *Program {
	b := new(big.Int).SetUint64(v).Bytes()
	if len(b) == 0 {
		b = []byte{0}
	}
	return p.pushBytes(b)
}

// PushHash appends PUSH32 h.
func (p *Program) PushHash(h common.Hash) *Program {
	return p.pushBytes(h.Bytes())
}

// PushAddress appends PUSH20 addr.
func (p *Program) PushAddress(addr common.Address) *Program {
	return p.pushBytes(addr.Bytes())
}

func (p *Program) pushBytes(b []byte) *Program {
	p.code = append(p.code, byte(vm.PUSH1)+byte(len(b)-1))
	p.code = append(p.code, b...)
	return p
}

// Log emits LOGn with memory [0, 32) as data and the given topics.
func (p *Program) Log(topics ...common.Hash) *Program {
	if len(topics) > 4 {
		panic("testutil: at most four topics")
	}
	for i := len(topics) - 1; i >= 0; i-- {
		p.PushHash(topics[i])
	}
	p.Push(32).Push(0)
	return p.Op(vm.LOG0 + vm.OpCode(len(topics)))
}

// StoreWord writes the top of stack to memory [0, 32).
func (p *Program) StoreWord() *Program {
	return p.Push(0).Op(vm.MSTORE)
}

// Revert reverts with empty return data.
func (p *Program) Revert() *Program {
	return p.Push(0).Push(0).Op(vm.REVERT)
}

// Bytes returns a copy of the assembled code.
func (p *Program) Bytes() []byte {
	out := make([]byte, len(p.code))
	copy(out, p.code)
	return out
}

// CounterLogger returns code that increments slot 0 and logs the new value
// under topic. Two calls in one block observe each other's writes.
func CounterLogger(topic common.Hash) []byte {
	return NewProgram().
		Push(0).Op(vm.SLOAD).
		Push(1).Op(vm.ADD).
		Op(vm.DUP1).
		Push(0).Op(vm.SSTORE).
		StoreWord().
		Log(topic).
		Op(vm.STOP).
		Bytes()
}

// Emitter returns code that writes CALLER into memory and logs once per
// topic set, in order.
func Emitter(topicSets ...[]common.Hash) []byte {
	p := NewProgram().Op(vm.CALLER).StoreWord()
	for _, topics := range topicSets {
		p.Log(topics...)
	}
	return p.Op(vm.STOP).Bytes()
}

// LogThenRevert returns code that logs under topic and then reverts, so the
// log never survives.
func LogThenRevert(topic common.Hash) []byte {
	return NewProgram().
		Op(vm.CALLER).StoreWord().
		Log(topic).
		Revert().
		Bytes()
}
