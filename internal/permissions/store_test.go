package permissions

import (
	"context"
	"errors"
	"testing"
)

func TestParseRole(t *testing.T) {
	for _, value := range []string{"user", "admin"} {
		if _, err := ParseRole(value); err != nil {
			t.Fatalf("parse role %q: %v", value, err)
		}
	}
	if _, err := ParseRole("superadmin"); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
	if _, err := ParseRole(""); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole for empty role, got %v", err)
	}
}

func TestParseAction(t *testing.T) {
	for _, value := range []string{"start", "stop", "status"} {
		if _, err := ParseAction(value); err != nil {
			t.Fatalf("parse action %q: %v", value, err)
		}
	}
	if _, err := ParseAction("restart"); !errors.Is(err, ErrInvalidAction) {
		t.Fatalf("expected ErrInvalidAction, got %v", err)
	}
}

func TestUpsertUserRejectsInvalidRole(t *testing.T) {
	store := NewMemoryStore()
	if err := store.UpsertUser(context.Background(), 1, Role("owner")); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
	if _, err := store.GetUser(context.Background(), 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected no user after rejected upsert, got %v", err)
	}
}

func TestUpsertUserReplacesRole(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.UpsertUser(ctx, 1, RoleUser); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := store.UpsertUser(ctx, 1, RoleAdmin); err != nil {
		t.Fatalf("upsert replace: %v", err)
	}
	user, err := store.GetUser(ctx, 1)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if user.Role != RoleAdmin {
		t.Fatalf("expected admin role, got %q", user.Role)
	}
}

func TestSetGrantRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.SetGrant(ctx, Grant{UserID: 7, ResourceID: "i-0abc", Start: true, Status: true}); err != nil {
		t.Fatalf("set grant: %v", err)
	}
	grant, err := store.GetGrant(ctx, 7, "i-0abc")
	if err != nil {
		t.Fatalf("get grant: %v", err)
	}
	if !grant.Start || grant.Stop || !grant.Status {
		t.Fatalf("unexpected flags: %+v", grant)
	}
	if len(grant.Extra) != 0 {
		t.Fatalf("expected empty extra, got %v", grant.Extra)
	}
}

func TestMergeExtraIndependentKeys(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.SetGrant(ctx, Grant{UserID: 7, ResourceID: "i-0abc"}); err != nil {
		t.Fatalf("set grant: %v", err)
	}
	if err := store.MergeExtra(ctx, 7, "i-0abc", "a", float64(1)); err != nil {
		t.Fatalf("merge a: %v", err)
	}
	if err := store.MergeExtra(ctx, 7, "i-0abc", "b", float64(2)); err != nil {
		t.Fatalf("merge b: %v", err)
	}
	grant, err := store.GetGrant(ctx, 7, "i-0abc")
	if err != nil {
		t.Fatalf("get grant: %v", err)
	}
	if grant.Extra["a"] != float64(1) || grant.Extra["b"] != float64(2) {
		t.Fatalf("unexpected extra: %v", grant.Extra)
	}
}

func TestMergeExtraOverwritesKey(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.SetGrant(ctx, Grant{UserID: 7, ResourceID: "i-0abc", Extra: map[string]any{"a": "old"}}); err != nil {
		t.Fatalf("set grant: %v", err)
	}
	if err := store.MergeExtra(ctx, 7, "i-0abc", "a", "new"); err != nil {
		t.Fatalf("merge: %v", err)
	}
	grant, err := store.GetGrant(ctx, 7, "i-0abc")
	if err != nil {
		t.Fatalf("get grant: %v", err)
	}
	if grant.Extra["a"] != "new" {
		t.Fatalf("expected overwritten value, got %v", grant.Extra["a"])
	}
}

func TestMergeExtraWithoutBaseRow(t *testing.T) {
	store := NewMemoryStore()
	err := store.MergeExtra(context.Background(), 7, "no-such-resource", "k", 1)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteGrantIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.DeleteGrant(ctx, 7, "absent"); err != nil {
		t.Fatalf("delete absent grant: %v", err)
	}
	if err := store.SetGrant(ctx, Grant{UserID: 7, ResourceID: "i-0abc"}); err != nil {
		t.Fatalf("set grant: %v", err)
	}
	if err := store.DeleteGrant(ctx, 7, "i-0abc"); err != nil {
		t.Fatalf("delete grant: %v", err)
	}
	if _, err := store.GetGrant(ctx, 7, "i-0abc"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected grant gone, got %v", err)
	}
}

func TestDeleteUserCascadesGrants(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.UpsertUser(ctx, 7, RoleUser); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := store.SetGrant(ctx, Grant{UserID: 7, ResourceID: "i-0abc"}); err != nil {
		t.Fatalf("set grant: %v", err)
	}
	if err := store.DeleteUser(ctx, 7); err != nil {
		t.Fatalf("delete user: %v", err)
	}
	grants, err := store.ListGrantsForUser(ctx, 7)
	if err != nil {
		t.Fatalf("list grants: %v", err)
	}
	if len(grants) != 0 {
		t.Fatalf("expected cascaded grants, got %d", len(grants))
	}
}

func TestGetGrantReturnsCopy(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.SetGrant(ctx, Grant{UserID: 7, ResourceID: "i-0abc", Extra: map[string]any{"a": 1}}); err != nil {
		t.Fatalf("set grant: %v", err)
	}
	first, err := store.GetGrant(ctx, 7, "i-0abc")
	if err != nil {
		t.Fatalf("get grant: %v", err)
	}
	first.Extra["a"] = "mutated"
	second, err := store.GetGrant(ctx, 7, "i-0abc")
	if err != nil {
		t.Fatalf("get grant again: %v", err)
	}
	if second.Extra["a"] != 1 {
		t.Fatalf("stored extra mutated through returned copy: %v", second.Extra)
	}
}

func TestSetGrantCreatesUnknownUser(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.SetGrant(ctx, Grant{UserID: 111, ResourceID: "i-0abc", Start: true}); err != nil {
		t.Fatalf("set grant without user row: %v", err)
	}
	user, err := store.GetUser(ctx, 111)
	if err != nil {
		t.Fatalf("expected target user to exist after set grant: %v", err)
	}
	if user.Role != RoleUser {
		t.Fatalf("expected default role for created user, got %q", user.Role)
	}
}

func TestSetGrantKeepsExistingRole(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.UpsertUser(ctx, 111, RoleAdmin); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := store.SetGrant(ctx, Grant{UserID: 111, ResourceID: "i-0abc"}); err != nil {
		t.Fatalf("set grant: %v", err)
	}
	user, err := store.GetUser(ctx, 111)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if user.Role != RoleAdmin {
		t.Fatalf("set grant changed the role: got %q", user.Role)
	}
}

func TestListUsersOrderedByID(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	for _, id := range []int64{30, 10, 20} {
		if err := store.UpsertUser(ctx, id, RoleUser); err != nil {
			t.Fatalf("upsert %d: %v", id, err)
		}
	}
	users, err := store.ListUsers(ctx)
	if err != nil {
		t.Fatalf("list users: %v", err)
	}
	if len(users) != 3 {
		t.Fatalf("expected 3 users, got %d", len(users))
	}
	for i, want := range []int64{10, 20, 30} {
		if users[i].ID != want {
			t.Fatalf("expected user %d at position %d, got %d", want, i, users[i].ID)
		}
	}
}
