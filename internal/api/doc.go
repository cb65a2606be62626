// Package api serves shadow events over JSON-RPC as shadow_getLogs.
//
// The request shape follows eth_getLogs: an address or list of addresses,
// up to four positional topics where null matches anything, and either a
// block range or a single block hash. Responses mirror a chain log entry,
// except that logIndex and transactionIndex are decimal strings and topics
// is always a four-element array padded with null. Log indices belong to
// the shadow log space, not the canonical one.
//
// Removed events are never returned.
package api
