package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ops-wrangler/wrangler/internal/permissions"
)

func (r *Registry) ping(ctx context.Context, inv Invocation) (Response, error) {
	if err := r.record(ctx, "Ping command used", actorRef(inv)); err != nil {
		return Response{}, err
	}
	return Response{Content: "Pong!"}, nil
}

func (r *Registry) userinfo(ctx context.Context, inv Invocation) (Response, error) {
	target, ok := inv.argUserID("user")
	if !ok {
		target = inv.ActorID
	}
	user, err := r.store.GetUser(ctx, target)
	if err != nil {
		if errors.Is(err, permissions.ErrNotFound) {
			return Response{Content: fmt.Sprintf("No data found for user %d", target), Ephemeral: true}, nil
		}
		return Response{}, err
	}
	return Response{Embeds: []Embed{{
		Title: fmt.Sprintf("User Info: %d", user.ID),
		Fields: []EmbedField{
			{Name: "User ID", Value: fmt.Sprintf("%d", user.ID), Inline: true},
			{Name: "Role", Value: string(user.Role), Inline: true},
		},
	}}}, nil
}

func (r *Registry) setrole(ctx context.Context, inv Invocation) (Response, error) {
	if denied, err := r.requireAdmin(ctx, inv.ActorID); err != nil || denied != nil {
		return deref(denied), err
	}
	target, ok := inv.argUserID("user")
	if !ok {
		return Response{Content: "A target user is required", Ephemeral: true}, nil
	}
	roleText, _ := inv.argString("role")
	role, err := permissions.ParseRole(roleText)
	if err != nil {
		return Response{Content: "Role must be 'user' or 'admin'", Ephemeral: true}, nil
	}
	if err := r.store.UpsertUser(ctx, target, role); err != nil {
		return Response{}, err
	}
	if err := r.record(ctx, fmt.Sprintf("Role set: %d -> %s", target, role), actorRef(inv)); err != nil {
		return Response{}, err
	}
	return Response{Content: fmt.Sprintf("Set role of user %d to %s", target, role)}, nil
}

func (r *Registry) setpermission(ctx context.Context, inv Invocation) (Response, error) {
	if denied, err := r.requireAdmin(ctx, inv.ActorID); err != nil || denied != nil {
		return deref(denied), err
	}
	target, ok := inv.argUserID("user")
	if !ok {
		return Response{Content: "A target user is required", Ephemeral: true}, nil
	}
	resourceID, ok := inv.argString("instance")
	if !ok || resourceID == "" {
		return Response{Content: "An instance id is required", Ephemeral: true}, nil
	}
	grant := permissions.Grant{
		UserID:     target,
		ResourceID: resourceID,
		Start:      inv.argBool("start"),
		Stop:       inv.argBool("stop"),
		Status:     inv.argBool("status"),
	}
	if err := r.store.SetGrant(ctx, grant); err != nil {
		return Response{}, err
	}
	message := fmt.Sprintf("Permission set: user %d, instance %s, start=%t, stop=%t, status=%t",
		target, resourceID, grant.Start, grant.Stop, grant.Status)
	if err := r.record(ctx, message, actorRef(inv)); err != nil {
		return Response{}, err
	}
	return Response{Content: fmt.Sprintf("Set permissions for user %d on instance `%s`", target, resourceID)}, nil
}

func (r *Registry) getpermission(ctx context.Context, inv Invocation) (Response, error) {
	target, ok := inv.argUserID("user")
	if !ok {
		target = inv.ActorID
	}
	resourceID, hasResource := inv.argString("instance")
	if hasResource && resourceID != "" {
		grant, err := r.store.GetGrant(ctx, target, resourceID)
		if err != nil {
			if errors.Is(err, permissions.ErrNotFound) {
				return Response{
					Content:   fmt.Sprintf("No permissions found for user %d on instance `%s`", target, resourceID),
					Ephemeral: true,
				}, nil
			}
			return Response{}, err
		}
		embed := Embed{
			Title: fmt.Sprintf("Permissions for user %d", target),
			Fields: []EmbedField{
				{Name: "Instance ID", Value: grant.ResourceID, Inline: true},
				{Name: "Start", Value: mark(grant.Start), Inline: true},
				{Name: "Stop", Value: mark(grant.Stop), Inline: true},
				{Name: "Status", Value: mark(grant.Status), Inline: true},
			},
		}
		if len(grant.Extra) > 0 {
			embed.Fields = append(embed.Fields, EmbedField{Name: "Additional", Value: fmt.Sprintf("%v", grant.Extra)})
		}
		return Response{Embeds: []Embed{embed}}, nil
	}

	grants, err := r.store.ListGrantsForUser(ctx, target)
	if err != nil {
		return Response{}, err
	}
	if len(grants) == 0 {
		return Response{Content: fmt.Sprintf("No permissions found for user %d", target), Ephemeral: true}, nil
	}
	embed := Embed{Title: fmt.Sprintf("All Permissions for user %d", target)}
	for _, grant := range grants {
		embed.Fields = append(embed.Fields, EmbedField{
			Name:  grant.ResourceID,
			Value: fmt.Sprintf("Start: %s | Stop: %s | Status: %s", mark(grant.Start), mark(grant.Stop), mark(grant.Status)),
		})
	}
	return Response{Embeds: []Embed{embed}}, nil
}

func (r *Registry) addpermission(ctx context.Context, inv Invocation) (Response, error) {
	if denied, err := r.requireAdmin(ctx, inv.ActorID); err != nil || denied != nil {
		return deref(denied), err
	}
	target, ok := inv.argUserID("user")
	if !ok {
		return Response{Content: "A target user is required", Ephemeral: true}, nil
	}
	resourceID, _ := inv.argString("instance")
	key, _ := inv.argString("key")
	if resourceID == "" || key == "" {
		return Response{Content: "An instance id and permission key are required", Ephemeral: true}, nil
	}
	value, _ := inv.argValue("value")
	if err := r.store.MergeExtra(ctx, target, resourceID, key, value); err != nil {
		if errors.Is(err, permissions.ErrNotFound) {
			return Response{
				Content:   fmt.Sprintf("No permission found for user %d and instance %s; set base permissions first", target, resourceID),
				Ephemeral: true,
			}, nil
		}
		return Response{}, err
	}
	message := fmt.Sprintf("Additional permission added: user %d, instance %s, %s=%v", target, resourceID, key, value)
	if err := r.record(ctx, message, actorRef(inv)); err != nil {
		return Response{}, err
	}
	return Response{Content: fmt.Sprintf("Added permission `%s` = `%v` for user %d on instance `%s`", key, value, target, resourceID)}, nil
}

func (r *Registry) history(ctx context.Context, inv Invocation) (Response, error) {
	limit := inv.argInt("limit", 20)
	// An unparseable user filter degrades to no filter; this is the only
	// place a bad input is allowed to fall through.
	var actorFilter *int64
	if target, ok := inv.argUserID("user"); ok {
		actorFilter = &target
	}

	entries, err := r.auditLog.Query(ctx, limit, actorFilter)
	if err != nil {
		return Response{}, err
	}
	if len(entries) == 0 {
		if actorFilter != nil {
			return Response{Content: fmt.Sprintf("No history entries found for user %d", *actorFilter), Ephemeral: true}, nil
		}
		return Response{Content: "No history entries found", Ephemeral: true}, nil
	}

	title := "History"
	if actorFilter != nil {
		title += fmt.Sprintf(" for user %d", *actorFilter)
	}
	title += fmt.Sprintf(" (Last %d entries)", len(entries))

	var lines []string
	for i, entry := range entries {
		if i >= 10 {
			break
		}
		actor := "System"
		if entry.ActorID != nil {
			actor = fmt.Sprintf("<@%d>", *entry.ActorID)
		}
		lines = append(lines, fmt.Sprintf("`%s` [%s] %s", entry.Timestamp.Format("2006-01-02 15:04:05"), actor, entry.Message))
	}
	description := strings.Join(lines, "\n")
	if len(entries) > 10 {
		description += fmt.Sprintf("\n... and %d more entries", len(entries)-10)
	}
	return Response{Embeds: []Embed{{Title: title, Description: description}}}, nil
}

func (r *Registry) help(ctx context.Context, inv Invocation) (Response, error) {
	return Response{Embeds: []Embed{{
		Title: "Bot Commands",
		Fields: []EmbedField{
			{Name: "ping", Value: "Check bot liveness"},
			{Name: "userinfo [user]", Value: "Get user information"},
			{Name: "setrole <user> <role>", Value: "Set user role (admin only)"},
			{Name: "setpermission <user> <instance> [start] [stop] [status]", Value: "Set instance permissions (admin only)"},
			{Name: "getpermission [user] [instance]", Value: "Get user permissions"},
			{Name: "addpermission <user> <instance> <key> <value>", Value: "Add additional permission (admin only)"},
			{Name: "history [user] [limit]", Value: "View history, optionally filtered by user (max 100)"},
		},
	}}}, nil
}

func actorRef(inv Invocation) *int64 {
	if inv.ActorID == 0 {
		return nil
	}
	actor := inv.ActorID
	return &actor
}

func mark(allowed bool) string {
	if allowed {
		return "✓"
	}
	return "✗"
}

func deref(response *Response) Response {
	if response == nil {
		return Response{}
	}
	return *response
}
