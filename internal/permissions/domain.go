// Package permissions owns the persisted users and per-resource permission
// grants shared by the gateway worker and the interactions endpoint.
package permissions

import (
	"errors"
	"fmt"
)

// Role is the coarse privilege level attached to a user.
type Role string

// Valid roles.
const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Action names one of the boolean permission columns on a grant.
type Action string

// Valid actions.
const (
	ActionStart  Action = "start"
	ActionStop   Action = "stop"
	ActionStatus Action = "status"
)

var (
	// ErrNotFound indicates that the requested record does not exist.
	ErrNotFound = errors.New("permissions: not found")
	// ErrInvalidRole indicates a role value outside the fixed set.
	ErrInvalidRole = errors.New("permissions: role must be 'user' or 'admin'")
	// ErrInvalidAction indicates an action name outside the fixed set.
	ErrInvalidAction = errors.New("permissions: action must be 'start', 'stop' or 'status'")
)

// ParseRole validates a role value.
func ParseRole(value string) (Role, error) {
	switch Role(value) {
	case RoleUser, RoleAdmin:
		return Role(value), nil
	}
	return "", fmt.Errorf("%w: got %q", ErrInvalidRole, value)
}

// ParseAction validates an action name.
func ParseAction(value string) (Action, error) {
	switch Action(value) {
	case ActionStart, ActionStop, ActionStatus:
		return Action(value), nil
	}
	return "", fmt.Errorf("%w: got %q", ErrInvalidAction, value)
}

// User is an operator known to the system. Users are created on first
// observed activity with RoleUser and only change role through UpsertUser.
type User struct {
	ID   int64
	Role Role
}

// Grant is the permission row for one (user, resource) pair: three named
// boolean actions plus an open-ended extension map persisted as JSON.
type Grant struct {
	UserID     int64
	ResourceID string
	Start      bool
	Stop       bool
	Status     bool
	Extra      map[string]any
}

// Allows reports whether the grant permits the given action.
func (g Grant) Allows(action Action) bool {
	switch action {
	case ActionStart:
		return g.Start
	case ActionStop:
		return g.Stop
	case ActionStatus:
		return g.Status
	}
	return false
}
