package audit

import (
	"context"
	"sync"
	"time"
)

// MemoryRepository is an in-memory implementation of Repository. Used for
// tests and local development. Thread-safe via Mutex.
type MemoryRepository struct {
	mu      sync.Mutex
	entries []Entry
	nextID  int64
	lastTS  time.Time
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{nextID: 1}
}

// Append inserts one entry and evicts surplus oldest entries under the same
// lock, mirroring the single-transaction behavior of the Postgres
// implementation. Timestamps never regress; ties are broken by id.
func (r *MemoryRepository) Append(ctx context.Context, message string, actorID *int64, maxEntries int) (Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	if now.Before(r.lastTS) {
		now = r.lastTS
	}
	r.lastTS = now

	var actor *int64
	if actorID != nil {
		id := *actorID
		actor = &id
	}
	entry := Entry{ID: r.nextID, Timestamp: now, Message: message, ActorID: actor}
	r.nextID++

	// Entries are appended in (timestamp, id) order, so eviction drops from
	// the front.
	r.entries = append(r.entries, entry)
	if surplus := len(r.entries) - maxEntries; surplus > 0 {
		r.entries = append([]Entry(nil), r.entries[surplus:]...)
	}
	return entry, nil
}

// Query returns entries newest first, optionally filtered by actor.
func (r *MemoryRepository) Query(ctx context.Context, limit int, actorID *int64) ([]Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var results []Entry
	for i := len(r.entries) - 1; i >= 0; i-- {
		entry := r.entries[i]
		if actorID != nil && (entry.ActorID == nil || *entry.ActorID != *actorID) {
			continue
		}
		results = append(results, entry)
		if len(results) >= limit {
			break
		}
	}
	return results, nil
}

// Count returns the stored entry count.
func (r *MemoryRepository) Count(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries), nil
}

// Clear deletes all entries.
func (r *MemoryRepository) Clear(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = nil
	return nil
}

var _ Repository = (*MemoryRepository)(nil)
