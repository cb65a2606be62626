// Package execution re-executes canonical blocks with shadow bytecode.
//
// An Executor opens a fresh go-ethereum StateDB per block over an overlay
// database, so every shadowed address reads as its override code while all
// other state is the block's real pre-state. Transactions run in block order
// through core.ApplyMessage with the canonical sender, gas limit and
// calldata. Each transaction sees the writes of the ones before it.
//
// A transaction that the shadow code makes revert, run out of gas, or become
// invalid produces no events but does not stop the block. A failure to read
// the underlying state does: the block yields a StateAccessError and no
// partial result.
package execution
