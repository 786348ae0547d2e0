package incubator

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	dashboard "github.com/goliatone/go-incubator-dashboard/components/dashboard"
)

// Resource names served by Fetchers.
const (
	ResourceMetrics     = "metrics"
	ResourcePipeline    = "pipeline"
	ResourceStartups    = "startups"
	ResourceMentors     = "mentors"
	ResourceMentorLoad  = "mentor_load"
	ResourceFunding     = "funding"
	ResourceAssessments = "assessments"
	ResourceMilestones  = "milestones"
	ResourceSessions    = "sessions"
	ResourceTraction    = "traction"
	ResourceMentees     = "mentees"
)

var errNoViewer = errors.New("incubator: fetch requires a viewer")

// FetcherOptions tunes the fetcher catalog.
type FetcherOptions struct {
	Now          func() time.Time
	SessionLimit int
}

// Fetchers binds every dashboard resource to src. Viewer-scoped resources
// (milestones, sessions, traction, mentees, assessments) read the viewer from
// the fetch context.
func Fetchers(src Source, opts FetcherOptions) dashboard.FetcherCatalog {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.SessionLimit <= 0 {
		opts.SessionLimit = 5
	}
	f := fetchers{src: src, opts: opts}
	return dashboard.FetcherCatalog{
		ResourceMetrics:     f.metrics,
		ResourcePipeline:    f.pipeline,
		ResourceStartups:    f.startups,
		ResourceMentors:     f.mentors,
		ResourceMentorLoad:  f.mentorLoad,
		ResourceFunding:     f.funding,
		ResourceAssessments: f.assessments,
		ResourceMilestones:  f.milestones,
		ResourceSessions:    f.sessions,
		ResourceTraction:    f.traction,
		ResourceMentees:     f.mentees,
	}
}

type fetchers struct {
	src  Source
	opts FetcherOptions
}

func (f fetchers) metrics(ctx context.Context) (any, error) {
	summary, err := f.src.Summary(ctx)
	if err != nil {
		return nil, err
	}
	return []dashboard.ListItem{
		{Title: "Cohort", Badge: summary.Cohort},
		{Title: "Startups", Badge: strconv.Itoa(summary.Startups)},
		{Title: "Mentors", Badge: strconv.Itoa(summary.Mentors)},
		{Title: "Raised", Badge: formatAmount(summary.RaisedK)},
		{Title: "Milestones", Badge: fmt.Sprintf("%d/%d", summary.MilestonesDone, summary.MilestonesDone+summary.MilestonesOpen), Subtitle: "completed"},
		{Title: "Pending assessments", Badge: strconv.Itoa(summary.PendingAssessments)},
		{Title: "Upcoming sessions", Badge: strconv.Itoa(summary.UpcomingSessions)},
	}, nil
}

func (f fetchers) pipeline(ctx context.Context) (any, error) {
	startups, err := f.src.Startups(ctx, StartupQuery{})
	if err != nil {
		return nil, err
	}
	out := map[string]int{}
	for _, s := range startups {
		out[string(s.Stage)]++
	}
	return out, nil
}

func (f fetchers) startups(ctx context.Context) (any, error) {
	startups, err := f.src.Startups(ctx, StartupQuery{})
	if err != nil {
		return nil, err
	}
	return startupItems(startups), nil
}

func (f fetchers) mentors(ctx context.Context) (any, error) {
	mentors, err := f.src.Mentors(ctx)
	if err != nil {
		return nil, err
	}
	load, err := f.menteeCounts(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]dashboard.ListItem, len(mentors))
	for i, m := range mentors {
		items[i] = dashboard.ListItem{
			Title:    m.Name,
			Subtitle: strings.Join(m.Expertise, ", "),
			Badge:    fmt.Sprintf("%d/%d", load[m.ID], m.Capacity),
		}
	}
	return items, nil
}

func (f fetchers) mentorLoad(ctx context.Context) (any, error) {
	mentors, err := f.src.Mentors(ctx)
	if err != nil {
		return nil, err
	}
	load, err := f.menteeCounts(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int, len(mentors))
	for _, m := range mentors {
		out[m.Name] = load[m.ID]
	}
	return out, nil
}

func (f fetchers) menteeCounts(ctx context.Context) (map[string]int, error) {
	startups, err := f.src.Startups(ctx, StartupQuery{})
	if err != nil {
		return nil, err
	}
	counts := map[string]int{}
	for _, s := range startups {
		if s.MentorID != "" {
			counts[s.MentorID]++
		}
	}
	return counts, nil
}

func (f fetchers) funding(ctx context.Context) (any, error) {
	rounds, err := f.src.Funding(ctx)
	if err != nil {
		return nil, err
	}
	out := map[string]float64{}
	for _, r := range rounds {
		out[string(r.Stage)] += r.AmountK
	}
	return out, nil
}

func (f fetchers) assessments(ctx context.Context) (any, error) {
	query := AssessmentQuery{PendingOnly: true}
	if viewer, ok := dashboard.ViewerFromContext(ctx); ok && viewer.Role == dashboard.RoleMentor {
		mentor, err := f.src.MentorForUser(ctx, viewer.UserID)
		if err != nil {
			return nil, err
		}
		query.MentorID = mentor.ID
	}
	pending, err := f.src.Assessments(ctx, query)
	if err != nil {
		return nil, err
	}
	names, err := f.startupNames(ctx)
	if err != nil {
		return nil, err
	}
	now := f.opts.Now()
	items := make([]dashboard.ListItem, len(pending))
	for i, a := range pending {
		items[i] = dashboard.ListItem{
			Title:    names[a.StartupID] + ": " + a.Kind,
			Subtitle: "due " + a.Due.Format("Jan 2"),
			Badge:    dueBadge(a.Due, now),
		}
	}
	return items, nil
}

func (f fetchers) milestones(ctx context.Context) (any, error) {
	startup, err := f.viewerStartup(ctx)
	if err != nil {
		return nil, err
	}
	milestones, err := f.src.Milestones(ctx, startup.ID)
	if err != nil {
		return nil, err
	}
	now := f.opts.Now()
	items := make([]dashboard.ListItem, len(milestones))
	for i, m := range milestones {
		badge := dueBadge(m.Due, now)
		if m.Done {
			badge = "done"
		}
		items[i] = dashboard.ListItem{Title: m.Title, Subtitle: "due " + m.Due.Format("Jan 2"), Badge: badge}
	}
	return items, nil
}

func (f fetchers) sessions(ctx context.Context) (any, error) {
	query := SessionQuery{From: f.opts.Now(), Limit: f.opts.SessionLimit}
	viewer, ok := dashboard.ViewerFromContext(ctx)
	if !ok {
		return nil, errNoViewer
	}
	switch viewer.Role {
	case dashboard.RoleStartup:
		startup, err := f.src.StartupForUser(ctx, viewer.UserID)
		if err != nil {
			return nil, err
		}
		query.StartupID = startup.ID
	case dashboard.RoleMentor:
		mentor, err := f.src.MentorForUser(ctx, viewer.UserID)
		if err != nil {
			return nil, err
		}
		query.MentorID = mentor.ID
	}
	sessions, err := f.src.Sessions(ctx, query)
	if err != nil {
		return nil, err
	}
	names, err := f.startupNames(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]dashboard.ListItem, len(sessions))
	for i, s := range sessions {
		items[i] = dashboard.ListItem{
			Title:    s.Topic,
			Subtitle: names[s.StartupID],
			Badge:    s.StartsAt.Format("Mon Jan 2 15:04"),
		}
	}
	return items, nil
}

func (f fetchers) traction(ctx context.Context) (any, error) {
	startup, err := f.viewerStartup(ctx)
	if err != nil {
		return nil, err
	}
	points, err := f.src.Traction(ctx, startup.ID)
	if err != nil {
		return nil, err
	}
	out := make([]dashboard.ChartPoint, len(points))
	for i, p := range points {
		out[i] = dashboard.ChartPoint{Label: p.Week, Value: float64(p.ActiveUsers)}
	}
	return out, nil
}

func (f fetchers) mentees(ctx context.Context) (any, error) {
	viewer, ok := dashboard.ViewerFromContext(ctx)
	if !ok {
		return nil, errNoViewer
	}
	mentor, err := f.src.MentorForUser(ctx, viewer.UserID)
	if err != nil {
		return nil, err
	}
	startups, err := f.src.Startups(ctx, StartupQuery{MentorID: mentor.ID})
	if err != nil {
		return nil, err
	}
	return startupItems(startups), nil
}

func (f fetchers) viewerStartup(ctx context.Context) (Startup, error) {
	viewer, ok := dashboard.ViewerFromContext(ctx)
	if !ok {
		return Startup{}, errNoViewer
	}
	return f.src.StartupForUser(ctx, viewer.UserID)
}

func (f fetchers) startupNames(ctx context.Context) (map[string]string, error) {
	startups, err := f.src.Startups(ctx, StartupQuery{})
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(startups))
	for _, s := range startups {
		names[s.ID] = s.Name
	}
	return names, nil
}

func startupItems(startups []Startup) []dashboard.ListItem {
	items := make([]dashboard.ListItem, len(startups))
	for i, s := range startups {
		items[i] = dashboard.ListItem{Title: s.Name, Subtitle: s.Cohort, Badge: string(s.Stage)}
	}
	return items
}

func dueBadge(due, now time.Time) string {
	if due.Before(now) {
		return "overdue"
	}
	return "open"
}

func formatAmount(k float64) string {
	if k >= 1000 {
		return "$" + strconv.FormatFloat(k/1000, 'f', 1, 64) + "M"
	}
	return "$" + strconv.FormatFloat(k, 'f', 0, 64) + "k"
}
