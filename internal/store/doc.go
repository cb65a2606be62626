// Package store provides SQLite-backed durable storage for shadow events.
//
// The store keeps one row per shadow event, keyed by (block_hash, log_index).
// Rows are never deleted. When a block leaves the canonical chain its rows
// are flagged removed; if the same block hash later becomes canonical again,
// appending it clears the flag.
//
// # Guarantees
//
//   - Append is idempotent: redelivering a block adds no rows
//   - Append and Invalidate for one block hash never interleave (BlockLocks)
//   - Every read orders by (block_number, transaction_index, log_index, block_hash)
//   - Reads return empty slices, never nil
//   - Filters compile to parameterized SQL; values are never interpolated
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - one open connection: SQLite has a single writer
package store
