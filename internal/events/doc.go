// Package events holds the value types shared by the shadow pipeline.
//
// This package contains type definitions and pure helpers only. The
// executor produces events, the store persists and filters them, and the
// query API renders them; none of those packages is imported here.
//
// Key constraints:
//   - Topics carry at most MaxTopics entries
//   - LogIndex is dense across the whole re-executed block, not the canonical index
//   - Removed is the only field that changes after an event is written
package events
