package permissions

import (
	"context"
	"sort"
	"sync"
)

type grantKey struct {
	userID     int64
	resourceID string
}

// MemoryStore is an in-memory implementation of Store. Used for tests and
// local development. Thread-safe via RWMutex.
type MemoryStore struct {
	mu     sync.RWMutex
	users  map[int64]User
	grants map[grantKey]Grant
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:  make(map[int64]User),
		grants: make(map[grantKey]Grant),
	}
}

// UpsertUser inserts or replaces the user row.
func (s *MemoryStore) UpsertUser(ctx context.Context, id int64, role Role) error {
	if _, err := ParseRole(string(role)); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[id] = User{ID: id, Role: role}
	return nil
}

// GetUser fetches a user by id.
func (s *MemoryStore) GetUser(ctx context.Context, id int64) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &user, nil
}

// ListUsers returns all users ordered by id.
func (s *MemoryStore) ListUsers(ctx context.Context) ([]User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := make([]User, 0, len(s.users))
	for _, user := range s.users {
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

// DeleteUser removes a user and cascades to their grants.
func (s *MemoryStore) DeleteUser(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, id)
	for key := range s.grants {
		if key.userID == id {
			delete(s.grants, key)
		}
	}
	return nil
}

// SetGrant replaces the full grant row, creating the target user with the
// default role when absent. An existing user keeps their role.
func (s *MemoryStore) SetGrant(ctx context.Context, grant Grant) error {
	if grant.Extra == nil {
		grant.Extra = map[string]any{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[grant.UserID]; !ok {
		s.users[grant.UserID] = User{ID: grant.UserID, Role: RoleUser}
	}
	s.grants[grantKey{grant.UserID, grant.ResourceID}] = copyGrant(grant)
	return nil
}

// GetGrant fetches the grant row for (userID, resourceID).
func (s *MemoryStore) GetGrant(ctx context.Context, userID int64, resourceID string) (*Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	grant, ok := s.grants[grantKey{userID, resourceID}]
	if !ok {
		return nil, ErrNotFound
	}
	out := copyGrant(grant)
	return &out, nil
}

// ListGrantsForUser returns all grants held by a user, ordered by resource.
func (s *MemoryStore) ListGrantsForUser(ctx context.Context, userID int64) ([]Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var grants []Grant
	for key, grant := range s.grants {
		if key.userID == userID {
			grants = append(grants, copyGrant(grant))
		}
	}
	sort.Slice(grants, func(i, j int) bool { return grants[i].ResourceID < grants[j].ResourceID })
	return grants, nil
}

// ListGrantsForResource returns all grants attached to a resource, ordered
// by user.
func (s *MemoryStore) ListGrantsForResource(ctx context.Context, resourceID string) ([]Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var grants []Grant
	for key, grant := range s.grants {
		if key.resourceID == resourceID {
			grants = append(grants, copyGrant(grant))
		}
	}
	sort.Slice(grants, func(i, j int) bool { return grants[i].UserID < grants[j].UserID })
	return grants, nil
}

// DeleteGrant removes the grant row if present.
func (s *MemoryStore) DeleteGrant(ctx context.Context, userID int64, resourceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.grants, grantKey{userID, resourceID})
	return nil
}

// MergeExtra sets one key of the extension map on an existing grant.
func (s *MemoryStore) MergeExtra(ctx context.Context, userID int64, resourceID, key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	grant, ok := s.grants[grantKey{userID, resourceID}]
	if !ok {
		return ErrNotFound
	}
	grant = copyGrant(grant)
	grant.Extra[key] = value
	s.grants[grantKey{userID, resourceID}] = grant
	return nil
}

func copyGrant(grant Grant) Grant {
	extra := make(map[string]any, len(grant.Extra))
	for k, v := range grant.Extra {
		extra[k] = v
	}
	grant.Extra = extra
	return grant
}

var _ Store = (*MemoryStore)(nil)
