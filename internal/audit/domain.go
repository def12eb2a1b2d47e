// Package audit provides the bounded, append-and-evict history log shared by
// the gateway worker and the interactions endpoint.
package audit

import "time"

// Entry is one immutable history record, optionally attributed to an actor.
// ActorID is nil for system events and is cleared when the referenced user is
// deleted.
type Entry struct {
	ID        int64
	Timestamp time.Time
	Message   string
	ActorID   *int64
}

// DefaultMaxEntries bounds the log when no explicit limit is configured.
const DefaultMaxEntries = 1000

// maxQueryLimit is the hard per-query row cap; the interactions endpoint must
// answer inside an externally imposed timeout, so reads are bounded no matter
// what a caller asks for.
const maxQueryLimit = 100
