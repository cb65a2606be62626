// Package engine implements the notification dispatcher.
//
// The engine consumes block lifecycle notifications from the host in
// arrival order and turns each one into store writes:
//
//  1. Deliveries are enqueued to a FIFO queue (Enqueue, or Follow for a Feed)
//  2. Engine.Run() dequeues them one at a time
//  3. Reverted blocks are invalidated, concurrently, each retried with backoff
//  4. Committed blocks are re-executed and appended, sequentially, in order
//  5. The checkpoint is saved and the delivery is acknowledged
//
// Any failure stops the notification at that step and acknowledges it with
// a *ProcessingError; the checkpoint is not advanced. Every store write is
// idempotent, so the host may simply redeliver.
//
// Committed blocks are never executed concurrently, even across
// notifications.
package engine
