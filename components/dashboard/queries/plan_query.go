package queries

import (
	"context"

	gocommand "github.com/goliatone/go-command"
	dashboard "github.com/goliatone/go-incubator-dashboard/components/dashboard"
)

// PlanInput identifies the user and per-request planner inputs.
type PlanInput struct {
	User    dashboard.User        `json:"user"`
	Request dashboard.PageRequest `json:"request"`
}

type planService interface {
	Plan(ctx context.Context, user *dashboard.User, req dashboard.PageRequest) (dashboard.PlanPayload, error)
}

// PlanQuery resolves the render plan of the user's variant.
type PlanQuery struct {
	service planService
}

// NewPlanQuery builds the query.
func NewPlanQuery(service planService) *PlanQuery {
	return &PlanQuery{service: service}
}

var _ gocommand.Querier[PlanInput, dashboard.PlanPayload] = (*PlanQuery)(nil)

// Query resolves the plan for the user.
func (q *PlanQuery) Query(ctx context.Context, input PlanInput) (dashboard.PlanPayload, error) {
	return q.service.Plan(ctx, &input.User, input.Request)
}

type pageService interface {
	Page(ctx context.Context, user *dashboard.User, req dashboard.PageRequest) (dashboard.Page, error)
}

// PageQuery renders the user's variant into a Page.
type PageQuery struct {
	service pageService
}

// NewPageQuery builds the query.
func NewPageQuery(service pageService) *PageQuery {
	return &PageQuery{service: service}
}

var _ gocommand.Querier[PlanInput, dashboard.Page] = (*PageQuery)(nil)

// Query renders the page.
func (q *PageQuery) Query(ctx context.Context, input PlanInput) (dashboard.Page, error) {
	return q.service.Page(ctx, &input.User, input.Request)
}
