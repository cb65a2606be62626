// Package contracts loads the bytecode override registry.
//
// The registry maps contract addresses to substituted bytecode. It is read
// once at startup from a JSON (or YAML) object of address to hex bytecode,
// checked against an embedded CUE schema, and never changes afterwards.
//
// A missing file or an empty mapping produces an empty registry: the node
// still follows the chain but nothing is shadowed. A malformed entry is a
// ConfigError, the only error class that stops the process from starting.
package contracts
