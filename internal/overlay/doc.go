// Package overlay layers override bytecode on top of real chain state.
//
// View decorates a go-ethereum state.Reader: account balances, nonces and
// storage pass through untouched while the code and code hash of shadowed
// addresses are replaced by the registry's bytecode and its keccak256 hash.
// Database decorates a state.Database so that every StateDB opened through
// it reads through a fresh View; one is opened per re-executed block.
package overlay
