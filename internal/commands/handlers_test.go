package commands

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/ops-wrangler/wrangler/internal/access"
	"github.com/ops-wrangler/wrangler/internal/audit"
	"github.com/ops-wrangler/wrangler/internal/permissions"
)

type fixture struct {
	store    *permissions.MemoryStore
	auditLog *audit.Log
	registry *Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := permissions.NewMemoryStore()
	auditLog := audit.NewLog(audit.NewMemoryRepository(), 0)
	controller := access.NewController(store)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &fixture{
		store:    store,
		auditLog: auditLog,
		registry: NewRegistry(logger, store, auditLog, controller),
	}
}

func invoke(name string, actorID int64, args map[string]any) Invocation {
	raw := make(map[string]json.RawMessage, len(args))
	for k, v := range args {
		data, _ := json.Marshal(v)
		raw[k] = data
	}
	return Invocation{ID: uuid.NewString(), Name: name, ActorID: actorID, Args: raw}
}

func (f *fixture) asAdmin(t *testing.T, id int64) {
	t.Helper()
	require.NoError(t, f.store.UpsertUser(context.Background(), id, permissions.RoleAdmin))
}

func TestDispatchRegistersFirstTimeActor(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.registry.Dispatch(ctx, invoke("ping", 111, nil))
	require.NoError(t, err)

	user, err := f.store.GetUser(ctx, 111)
	require.NoError(t, err)
	require.Equal(t, permissions.RoleUser, user.Role)

	entries, err := f.auditLog.Query(ctx, 10, nil)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "Ping command used", entries[0].Message)
	require.Equal(t, "New user registered: 111", entries[1].Message)
}

func TestDispatchUnknownCommand(t *testing.T) {
	f := newFixture(t)
	_, err := f.registry.Dispatch(context.Background(), invoke("deploy", 111, nil))
	require.ErrorIs(t, err, ErrUnknownCommand)
}

func TestSetRoleRequiresAdmin(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	resp, err := f.registry.Dispatch(ctx, invoke("setrole", 111, map[string]any{"user": 222, "role": "admin"}))
	require.NoError(t, err)
	require.True(t, resp.Ephemeral)
	require.Contains(t, resp.Content, "admin role")

	// The rejected call must not reach the store.
	_, err = f.store.GetUser(ctx, 222)
	require.ErrorIs(t, err, permissions.ErrNotFound)
}

func TestSetRoleAsAdmin(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.asAdmin(t, 222)

	resp, err := f.registry.Dispatch(ctx, invoke("setrole", 222, map[string]any{"user": 111, "role": "admin"}))
	require.NoError(t, err)
	require.Contains(t, resp.Content, "Set role of user 111 to admin")

	user, err := f.store.GetUser(ctx, 111)
	require.NoError(t, err)
	require.Equal(t, permissions.RoleAdmin, user.Role)
}

func TestSetRoleRejectsInvalidRole(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.asAdmin(t, 222)

	resp, err := f.registry.Dispatch(ctx, invoke("setrole", 222, map[string]any{"user": 111, "role": "owner"}))
	require.NoError(t, err)
	require.Contains(t, resp.Content, "Role must be 'user' or 'admin'")

	_, err = f.store.GetUser(ctx, 111)
	require.ErrorIs(t, err, permissions.ErrNotFound)
}

func TestSetAndGetPermission(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.asAdmin(t, 222)

	_, err := f.registry.Dispatch(ctx, invoke("setpermission", 222, map[string]any{
		"user": 111, "instance": "i-0abc", "start": true, "status": true,
	}))
	require.NoError(t, err)

	resp, err := f.registry.Dispatch(ctx, invoke("getpermission", 111, map[string]any{"instance": "i-0abc"}))
	require.NoError(t, err)
	require.Len(t, resp.Embeds, 1)
	fields := resp.Embeds[0].Fields
	require.Equal(t, "✓", fieldValue(t, fields, "Start"))
	require.Equal(t, "✗", fieldValue(t, fields, "Stop"))
	require.Equal(t, "✓", fieldValue(t, fields, "Status"))
}

func TestAddPermissionWithoutBase(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.asAdmin(t, 222)

	resp, err := f.registry.Dispatch(ctx, invoke("addpermission", 222, map[string]any{
		"user": 111, "instance": "no-such-instance", "key": "reboot", "value": "true",
	}))
	require.NoError(t, err)
	require.True(t, resp.Ephemeral)
	require.Contains(t, resp.Content, "set base permissions first")
}

func TestAddPermissionMergesValue(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.asAdmin(t, 222)

	_, err := f.registry.Dispatch(ctx, invoke("setpermission", 222, map[string]any{"user": 111, "instance": "i-0abc"}))
	require.NoError(t, err)

	_, err = f.registry.Dispatch(ctx, invoke("addpermission", 222, map[string]any{
		"user": 111, "instance": "i-0abc", "key": "reboot", "value": "true",
	}))
	require.NoError(t, err)

	grant, err := f.store.GetGrant(ctx, 111, "i-0abc")
	require.NoError(t, err)
	require.Equal(t, true, grant.Extra["reboot"])
}

func TestHistoryCommand(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	actor := int64(111)
	for i := 0; i < 3; i++ {
		_, err := f.auditLog.Append(ctx, "something happened", &actor)
		require.NoError(t, err)
	}

	resp, err := f.registry.Dispatch(ctx, invoke("history", 111, map[string]any{"user": 111, "limit": 2}))
	require.NoError(t, err)
	require.Len(t, resp.Embeds, 1)
	require.Contains(t, resp.Embeds[0].Title, "History for user 111")
}

func TestHistoryUnparseableFilterDegrades(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.auditLog.Append(ctx, "system event", nil)
	require.NoError(t, err)

	// A garbage user value falls back to an unfiltered query instead of
	// failing the command.
	resp, err := f.registry.Dispatch(ctx, invoke("history", 111, map[string]any{"user": "not-a-user"}))
	require.NoError(t, err)
	require.Len(t, resp.Embeds, 1)
}

func TestHistoryEmpty(t *testing.T) {
	f := newFixture(t)
	resp, err := f.registry.Dispatch(context.Background(), invoke("history", 111, nil))
	require.NoError(t, err)
	require.True(t, resp.Ephemeral)
	require.Equal(t, "No history entries found", resp.Content)
}

func TestUserinfoUnknownTarget(t *testing.T) {
	f := newFixture(t)
	resp, err := f.registry.Dispatch(context.Background(), invoke("userinfo", 111, map[string]any{"user": 999}))
	require.NoError(t, err)
	require.Contains(t, resp.Content, "No data found for user 999")
}

func fieldValue(t *testing.T, fields []EmbedField, name string) string {
	t.Helper()
	for _, field := range fields {
		if field.Name == name {
			return field.Value
		}
	}
	t.Fatalf("field %q not found", name)
	return ""
}

func TestSetPermissionForUnregisteredTarget(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.asAdmin(t, 222)

	// The target has never interacted; the grant write must still succeed
	// and leave the target registered with the default role.
	resp, err := f.registry.Dispatch(ctx, invoke("setpermission", 222, map[string]any{
		"user": 111, "instance": "i-0abc", "start": true,
	}))
	require.NoError(t, err)
	require.Contains(t, resp.Content, "Set permissions for user 111")

	user, err := f.store.GetUser(ctx, 111)
	require.NoError(t, err)
	require.Equal(t, permissions.RoleUser, user.Role)
}
