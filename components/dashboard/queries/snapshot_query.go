package queries

import (
	"context"

	gocommand "github.com/goliatone/go-command"
	dashboard "github.com/goliatone/go-incubator-dashboard/components/dashboard"
)

// SnapshotInput identifies the user whose refresh state is requested.
type SnapshotInput struct {
	User dashboard.User `json:"user"`
}

type snapshotService interface {
	Snapshot(ctx context.Context, user *dashboard.User) (dashboard.RefreshState, error)
}

// SnapshotQuery returns the current refresh state of the user's variant.
type SnapshotQuery struct {
	service snapshotService
}

// NewSnapshotQuery builds the query.
func NewSnapshotQuery(service snapshotService) *SnapshotQuery {
	return &SnapshotQuery{service: service}
}

var _ gocommand.Querier[SnapshotInput, dashboard.RefreshState] = (*SnapshotQuery)(nil)

// Query returns the snapshot.
func (q *SnapshotQuery) Query(ctx context.Context, input SnapshotInput) (dashboard.RefreshState, error) {
	return q.service.Snapshot(ctx, &input.User)
}
