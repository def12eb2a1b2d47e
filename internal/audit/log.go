package audit

import (
	"context"
	"fmt"
)

// Repository defines the storage operations behind the log. Implementations
// must make Append atomic: the inserted entry and the eviction of surplus
// oldest entries commit together or not at all.
type Repository interface {
	Append(ctx context.Context, message string, actorID *int64, maxEntries int) (Entry, error)
	Query(ctx context.Context, limit int, actorID *int64) ([]Entry, error)
	Count(ctx context.Context) (int, error)
	Clear(ctx context.Context) error
}

// Log is the bounded history log. It holds no state of its own; it is a
// façade over the repository and is safe to construct per call.
type Log struct {
	repo       Repository
	maxEntries int
}

// NewLog constructs a Log. maxEntries <= 0 falls back to DefaultMaxEntries.
func NewLog(repo Repository, maxEntries int) *Log {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Log{repo: repo, maxEntries: maxEntries}
}

// MaxEntries returns the configured bound.
func (l *Log) MaxEntries() int {
	return l.maxEntries
}

// Append records a history entry. Once Append returns, the stored entry count
// does not exceed MaxEntries: eviction of the oldest entries by
// (timestamp, id) happens in the same storage transaction as the insert.
func (l *Log) Append(ctx context.Context, message string, actorID *int64) (Entry, error) {
	if l.repo == nil {
		return Entry{}, fmt.Errorf("audit: repository not configured")
	}
	return l.repo.Append(ctx, message, actorID, l.maxEntries)
}

// Query returns entries newest first, optionally filtered to one actor. The
// limit is clamped to [0, 100] regardless of what the caller requests.
func (l *Log) Query(ctx context.Context, limit int, actorID *int64) ([]Entry, error) {
	if l.repo == nil {
		return nil, fmt.Errorf("audit: repository not configured")
	}
	if limit < 0 {
		limit = 0
	}
	if limit > maxQueryLimit {
		limit = maxQueryLimit
	}
	if limit == 0 {
		return nil, nil
	}
	return l.repo.Query(ctx, limit, actorID)
}

// Count returns the number of stored entries.
func (l *Log) Count(ctx context.Context) (int, error) {
	if l.repo == nil {
		return 0, fmt.Errorf("audit: repository not configured")
	}
	return l.repo.Count(ctx)
}

// Clear deletes every entry. The log does not authorize the call; callers
// check access before reaching it.
func (l *Log) Clear(ctx context.Context) error {
	if l.repo == nil {
		return fmt.Errorf("audit: repository not configured")
	}
	return l.repo.Clear(ctx)
}
