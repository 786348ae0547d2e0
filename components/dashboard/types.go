package dashboard

import (
	"context"
	"strings"
)

// Role identifies which dashboard variant a user is entitled to.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleStartup Role = "startup"
	RoleMentor  Role = "mentor"
)

// ParseRole normalizes free-form role strings (header values, session claims).
func ParseRole(value string) Role {
	return Role(strings.ToLower(strings.TrimSpace(value)))
}

// User is the identity reported by the hosting application. A nil *User means
// no user has been resolved yet.
type User struct {
	ID     string `json:"id"`
	Role   Role   `json:"role"`
	Name   string `json:"name,omitempty"`
	Locale string `json:"locale,omitempty"`
}

// UserSource is the user-identity collaborator the router subscribes to.
// Implementations publish nil when the user signs out.
type UserSource interface {
	Subscribe() (<-chan *User, func())
}

// ViewerContext captures the active user information needed to render dashboards.
type ViewerContext struct {
	UserID string `json:"user_id"`
	Role   Role   `json:"role"`
	Locale string `json:"locale,omitempty"`
}

// Viewer converts a resolved user into a viewer context with a normalized role.
func (u *User) Viewer() ViewerContext {
	if u == nil {
		return ViewerContext{}
	}
	return ViewerContext{UserID: u.ID, Role: ParseRole(string(u.Role)), Locale: u.Locale}
}

// RefreshHook notifies transports (REST/WebSocket/SSE) about new refresh snapshots.
type RefreshHook interface {
	SnapshotPublished(ctx context.Context, event SnapshotEvent) error
}

// SnapshotEvent describes a published refresh snapshot for a mounted dashboard.
type SnapshotEvent struct {
	MountID string       `json:"mount_id"`
	UserID  string       `json:"user_id,omitempty"`
	Variant string       `json:"variant"`
	State   RefreshState `json:"state"`
}

type noopRefreshHook struct{}

func (noopRefreshHook) SnapshotPublished(context.Context, SnapshotEvent) error { return nil }

func normalizeRefreshHook(h RefreshHook) RefreshHook {
	if h == nil {
		return noopRefreshHook{}
	}
	return h
}
