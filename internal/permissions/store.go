package permissions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ops-wrangler/wrangler/internal/platform/db"
)

// Store defines persistence operations for users and grants. Both entry
// points read through the store on every call; nothing is cached in process.
type Store interface {
	UpsertUser(ctx context.Context, id int64, role Role) error
	GetUser(ctx context.Context, id int64) (*User, error)
	ListUsers(ctx context.Context) ([]User, error)
	DeleteUser(ctx context.Context, id int64) error

	// SetGrant replaces the full grant row, creating the target user with
	// the default role when no user row exists yet.
	SetGrant(ctx context.Context, grant Grant) error
	GetGrant(ctx context.Context, userID int64, resourceID string) (*Grant, error)
	ListGrantsForUser(ctx context.Context, userID int64) ([]Grant, error)
	ListGrantsForResource(ctx context.Context, resourceID string) ([]Grant, error)
	DeleteGrant(ctx context.Context, userID int64, resourceID string) error
	MergeExtra(ctx context.Context, userID int64, resourceID, key string, value any) error
}

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore constructs a PostgreSQL-backed store.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// UpsertUser inserts or replaces the user row.
func (s *PGStore) UpsertUser(ctx context.Context, id int64, role Role) error {
	if _, err := ParseRole(string(role)); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (user_id, role) VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET role = EXCLUDED.role`,
		id, string(role))
	return err
}

// GetUser fetches a user by id.
func (s *PGStore) GetUser(ctx context.Context, id int64) (*User, error) {
	var user User
	var role string
	err := s.pool.QueryRow(ctx,
		`SELECT user_id, role FROM users WHERE user_id = $1`, id).
		Scan(&user.ID, &role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	user.Role = Role(role)
	return &user, nil
}

// ListUsers returns all users ordered by id.
func (s *PGStore) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := s.pool.Query(ctx, `SELECT user_id, role FROM users ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var user User
		var role string
		if err := rows.Scan(&user.ID, &role); err != nil {
			return nil, err
		}
		user.Role = Role(role)
		users = append(users, user)
	}
	return users, rows.Err()
}

// DeleteUser removes a user. Grants cascade, audit actor references are
// nulled by the schema's foreign keys.
func (s *PGStore) DeleteUser(ctx context.Context, id int64) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM users WHERE user_id = $1`, id)
	return err
}

// SetGrant replaces the full grant row for (userID, resourceID). A grant may
// target a user with no prior activity; the target row is created with the
// default role in the same transaction so the user reference always holds.
// An existing user keeps their role.
func (s *PGStore) SetGrant(ctx context.Context, grant Grant) error {
	extra := grant.Extra
	if extra == nil {
		extra = map[string]any{}
	}
	extraJSON, err := json.Marshal(extra)
	if err != nil {
		return fmt.Errorf("permissions: marshal extra: %w", err)
	}
	return db.WithTx(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO users (user_id, role) VALUES ($1, $2)
			ON CONFLICT (user_id) DO NOTHING`,
			grant.UserID, string(RoleUser)); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO grants (user_id, resource_id, start_permission, stop_permission, status_permission, extra)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (user_id, resource_id) DO UPDATE SET
				start_permission  = EXCLUDED.start_permission,
				stop_permission   = EXCLUDED.stop_permission,
				status_permission = EXCLUDED.status_permission,
				extra             = EXCLUDED.extra`,
			grant.UserID, grant.ResourceID, grant.Start, grant.Stop, grant.Status, extraJSON)
		return err
	})
}

const grantColumns = `user_id, resource_id, start_permission, stop_permission, status_permission, extra`

// GetGrant fetches the grant row for (userID, resourceID).
func (s *PGStore) GetGrant(ctx context.Context, userID int64, resourceID string) (*Grant, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+grantColumns+` FROM grants WHERE user_id = $1 AND resource_id = $2`,
		userID, resourceID)
	grant, err := scanGrant(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return grant, nil
}

// ListGrantsForUser returns all grants held by a user.
func (s *PGStore) ListGrantsForUser(ctx context.Context, userID int64) ([]Grant, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+grantColumns+` FROM grants WHERE user_id = $1 ORDER BY resource_id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectGrants(rows)
}

// ListGrantsForResource returns all grants attached to a resource.
func (s *PGStore) ListGrantsForResource(ctx context.Context, resourceID string) ([]Grant, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+grantColumns+` FROM grants WHERE resource_id = $1 ORDER BY user_id`, resourceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectGrants(rows)
}

// DeleteGrant removes the grant row. Deleting an absent row is not an error.
func (s *PGStore) DeleteGrant(ctx context.Context, userID int64, resourceID string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM grants WHERE user_id = $1 AND resource_id = $2`, userID, resourceID)
	return err
}

// MergeExtra sets one key of the extension map, leaving the other keys
// untouched. The single UPDATE serializes concurrent merges on the row lock,
// so no partial map state is ever visible. Returns ErrNotFound when no base
// grant row exists; callers must SetGrant first.
func (s *PGStore) MergeExtra(ctx context.Context, userID int64, resourceID, key string, value any) error {
	valueJSON, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("permissions: marshal extra value: %w", err)
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE grants
		SET extra = jsonb_set(COALESCE(extra, '{}'::jsonb), ARRAY[$3], $4::jsonb, true)
		WHERE user_id = $1 AND resource_id = $2`,
		userID, resourceID, key, valueJSON)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanGrant(row pgx.Row) (*Grant, error) {
	var grant Grant
	var extraJSON []byte
	if err := row.Scan(&grant.UserID, &grant.ResourceID, &grant.Start, &grant.Stop, &grant.Status, &extraJSON); err != nil {
		return nil, err
	}
	grant.Extra = map[string]any{}
	if len(extraJSON) > 0 {
		if err := json.Unmarshal(extraJSON, &grant.Extra); err != nil {
			return nil, fmt.Errorf("permissions: decode extra: %w", err)
		}
	}
	return &grant, nil
}

func collectGrants(rows pgx.Rows) ([]Grant, error) {
	var grants []Grant
	for rows.Next() {
		grant, err := scanGrant(rows)
		if err != nil {
			return nil, err
		}
		grants = append(grants, *grant)
	}
	return grants, rows.Err()
}

var _ Store = (*PGStore)(nil)
