// Package access translates stored roles and grants into allow/deny
// decisions. The controller holds no state and re-reads the store on every
// check, so a role change made by one entry point is visible to the other on
// the next call.
package access

import (
	"context"
	"errors"

	"github.com/ops-wrangler/wrangler/internal/permissions"
)

// Controller is a read-only policy layer over the permission store.
type Controller struct {
	store permissions.Store
}

// NewController constructs a Controller.
func NewController(store permissions.Store) *Controller {
	return &Controller{store: store}
}

// HasRole reports whether the user satisfies the required role. Unknown
// users count as RoleUser, so elevated roles are denied by default. Admins
// satisfy every requirement.
func (c *Controller) HasRole(ctx context.Context, userID int64, required permissions.Role) (bool, error) {
	role := permissions.RoleUser
	user, err := c.store.GetUser(ctx, userID)
	switch {
	case err == nil:
		role = user.Role
	case errors.Is(err, permissions.ErrNotFound):
	default:
		return false, err
	}
	if role == permissions.RoleAdmin {
		return true, nil
	}
	return role == required, nil
}

// HasResourcePermission reports whether the user's grant on the resource
// permits the action. Absence of a grant row denies every action; there is
// no inheritance across resources.
func (c *Controller) HasResourcePermission(ctx context.Context, userID int64, resourceID string, action permissions.Action) (bool, error) {
	if _, err := permissions.ParseAction(string(action)); err != nil {
		return false, err
	}
	grant, err := c.store.GetGrant(ctx, userID, resourceID)
	if err != nil {
		if errors.Is(err, permissions.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return grant.Allows(action), nil
}
