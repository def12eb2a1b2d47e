package audit

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ops-wrangler/wrangler/internal/platform/db"
)

// PGRepository implements Repository on PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewPGRepository constructs a PostgreSQL-backed repository.
func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// historyAppendLockID scopes the advisory lock serializing history appends.
const historyAppendLockID = int64(0x68697374)

// Append inserts the entry and evicts surplus oldest entries in one
// transaction, so the count bound holds exactly once the call returns.
// Concurrent appends at the bound would pick the same eviction victim; the
// advisory lock serializes them, so every append commits and the count
// stays exact.
func (r *PGRepository) Append(ctx context.Context, message string, actorID *int64, maxEntries int) (Entry, error) {
	var entry Entry
	entry.Message = message
	entry.ActorID = actorID
	err := db.WithTx(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, historyAppendLockID); err != nil {
			return err
		}
		err := tx.QueryRow(ctx, `
			INSERT INTO history (message, user_id) VALUES ($1, $2)
			RETURNING id, timestamp`, message, actorID).
			Scan(&entry.ID, &entry.Timestamp)
		if err != nil {
			return err
		}

		var count int
		if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM history`).Scan(&count); err != nil {
			return err
		}
		if count > maxEntries {
			_, err = tx.Exec(ctx, `
				DELETE FROM history WHERE id IN (
					SELECT id FROM history ORDER BY timestamp ASC, id ASC LIMIT $1
				)`, count-maxEntries)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Entry{}, err
	}
	return entry, nil
}

// Query returns entries newest first, optionally filtered by actor.
func (r *PGRepository) Query(ctx context.Context, limit int, actorID *int64) ([]Entry, error) {
	var rows pgx.Rows
	var err error
	if actorID != nil {
		rows, err = r.pool.Query(ctx, `
			SELECT id, timestamp, message, user_id FROM history
			WHERE user_id = $1
			ORDER BY timestamp DESC, id DESC LIMIT $2`, *actorID, limit)
	} else {
		rows, err = r.pool.Query(ctx, `
			SELECT id, timestamp, message, user_id FROM history
			ORDER BY timestamp DESC, id DESC LIMIT $1`, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var entry Entry
		if err := rows.Scan(&entry.ID, &entry.Timestamp, &entry.Message, &entry.ActorID); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Count returns the stored entry count.
func (r *PGRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM history`).Scan(&count)
	return count, err
}

// Clear deletes all entries.
func (r *PGRepository) Clear(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM history`)
	return err
}

var _ Repository = (*PGRepository)(nil)
