package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ops-wrangler/wrangler/internal/access"
	"github.com/ops-wrangler/wrangler/internal/audit"
	"github.com/ops-wrangler/wrangler/internal/permissions"
)

const deniedMessage = "You need admin role to use this command."

// Registry routes invocations to command handlers. It owns no state beyond
// its injected dependencies; both entry points share one registry and
// coordinate purely through the store.
type Registry struct {
	logger     *slog.Logger
	store      permissions.Store
	auditLog   *audit.Log
	controller *access.Controller
	handlers   map[string]func(ctx context.Context, inv Invocation) (Response, error)
}

// NewRegistry constructs a Registry with the built-in command set.
func NewRegistry(logger *slog.Logger, store permissions.Store, auditLog *audit.Log, controller *access.Controller) *Registry {
	r := &Registry{
		logger:     logger,
		store:      store,
		auditLog:   auditLog,
		controller: controller,
	}
	r.handlers = map[string]func(ctx context.Context, inv Invocation) (Response, error){
		"ping":          r.ping,
		"userinfo":      r.userinfo,
		"setrole":       r.setrole,
		"setpermission": r.setpermission,
		"getpermission": r.getpermission,
		"addpermission": r.addpermission,
		"history":       r.history,
		"help":          r.help,
	}
	return r
}

// Known reports whether a command name is registered.
func (r *Registry) Known(name string) bool {
	_, ok := r.handlers[name]
	return ok
}

// Dispatch executes one invocation. Unknown actors are registered with the
// default role before the command runs; unknown command names return
// ErrUnknownCommand. Storage failures propagate to the caller, which isolates
// them to this single invocation.
func (r *Registry) Dispatch(ctx context.Context, inv Invocation) (Response, error) {
	handler, ok := r.handlers[inv.Name]
	if !ok {
		return Response{}, fmt.Errorf("%w: %s", ErrUnknownCommand, inv.Name)
	}
	if inv.ActorID != 0 {
		if err := r.registerActor(ctx, inv.ActorID); err != nil {
			return Response{}, err
		}
	}
	r.logger.Info("dispatch command",
		slog.String("invocation", inv.ID),
		slog.String("command", inv.Name),
		slog.Int64("actor", inv.ActorID))
	return handler(ctx, inv)
}

// registerActor upserts a first-time actor with the default role, matching
// the on-first-activity behavior of the live channel.
func (r *Registry) registerActor(ctx context.Context, actorID int64) error {
	_, err := r.store.GetUser(ctx, actorID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, permissions.ErrNotFound) {
		return err
	}
	if err := r.store.UpsertUser(ctx, actorID, permissions.RoleUser); err != nil {
		return err
	}
	return r.record(ctx, fmt.Sprintf("New user registered: %d", actorID), &actorID)
}

// requireAdmin returns a denial response when the actor lacks the admin
// role. The denial short-circuits the handler before any write.
func (r *Registry) requireAdmin(ctx context.Context, actorID int64) (*Response, error) {
	ok, err := r.controller.HasRole(ctx, actorID, permissions.RoleAdmin)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &Response{Content: deniedMessage, Ephemeral: true}, nil
	}
	return nil, nil
}

// record appends an audit entry. Storage failures propagate so the caller
// can fail this one invocation without touching any other.
func (r *Registry) record(ctx context.Context, message string, actorID *int64) error {
	_, err := r.auditLog.Append(ctx, message, actorID)
	return err
}
