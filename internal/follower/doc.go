// Package follower adapts a JSON-RPC node into a chain.Feed.
//
// The follower polls the node's head, keeps a short window of recent
// canonical blocks, and turns every head change into one notification: the
// blocks that left the canonical chain since the last notification, then the
// blocks that joined it, oldest first. Committed blocks carry a RemoteState
// that serves account, code and storage reads over RPC at the parent block,
// so shadow execution sees exactly the pre-state the canonical block saw.
//
// Delivery is at-least-once. A notification whose acknowledgement carries a
// retryable error is redelivered with exponential backoff; the follower
// does not move on until it is acknowledged.
package follower
