package incubator

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"
)

// Data seeds a MemorySource.
type Data struct {
	Cohort      string
	Startups    []Startup
	Mentors     []Mentor
	Milestones  []Milestone
	Sessions    []Session
	Funding     []FundingRound
	Traction    []TractionPoint
	Assessments []Assessment
}

// MemorySource implements Source over in-memory fixtures. It backs local demos
// and tests; every read returns copies.
type MemorySource struct {
	mu   sync.RWMutex
	data Data
	now  func() time.Time
}

// NewMemorySource builds a source from the provided fixtures. now defaults to
// time.Now and decides which sessions count as upcoming.
func NewMemorySource(data Data, now func() time.Time) *MemorySource {
	if now == nil {
		now = time.Now
	}
	return &MemorySource{data: data, now: now}
}

// Update mutates the fixtures under the write lock.
func (s *MemorySource) Update(fn func(*Data)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.data)
}

func (s *MemorySource) Summary(context.Context) (Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := Summary{
		Cohort:   s.data.Cohort,
		Startups: len(s.data.Startups),
		Mentors:  len(s.data.Mentors),
	}
	for _, round := range s.data.Funding {
		out.RaisedK += round.AmountK
	}
	for _, m := range s.data.Milestones {
		if m.Done {
			out.MilestonesDone++
		} else {
			out.MilestonesOpen++
		}
	}
	for _, a := range s.data.Assessments {
		if !a.Submitted {
			out.PendingAssessments++
		}
	}
	now := s.now()
	for _, session := range s.data.Sessions {
		if !session.StartsAt.Before(now) {
			out.UpcomingSessions++
		}
	}
	return out, nil
}

func (s *MemorySource) Startups(_ context.Context, query StartupQuery) ([]Startup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Startup, 0, len(s.data.Startups))
	for _, startup := range s.data.Startups {
		if query.MentorID != "" && startup.MentorID != query.MentorID {
			continue
		}
		if query.Stage != "" && startup.Stage != query.Stage {
			continue
		}
		startup.Founders = slices.Clone(startup.Founders)
		out = append(out, startup)
	}
	return out, nil
}

func (s *MemorySource) Mentors(context.Context) ([]Mentor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Mentor, len(s.data.Mentors))
	for i, mentor := range s.data.Mentors {
		mentor.Expertise = slices.Clone(mentor.Expertise)
		out[i] = mentor
	}
	return out, nil
}

func (s *MemorySource) Milestones(_ context.Context, startupID string) ([]Milestone, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Milestone
	for _, m := range s.data.Milestones {
		if m.StartupID == startupID {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Due.Before(out[j].Due) })
	return out, nil
}

func (s *MemorySource) Sessions(_ context.Context, query SessionQuery) ([]Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Session
	for _, session := range s.data.Sessions {
		if query.StartupID != "" && session.StartupID != query.StartupID {
			continue
		}
		if query.MentorID != "" && session.MentorID != query.MentorID {
			continue
		}
		if !query.From.IsZero() && session.StartsAt.Before(query.From) {
			continue
		}
		out = append(out, session)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartsAt.Before(out[j].StartsAt) })
	if query.Limit > 0 && len(out) > query.Limit {
		out = out[:query.Limit]
	}
	return out, nil
}

func (s *MemorySource) Funding(context.Context) ([]FundingRound, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.data.Funding), nil
}

func (s *MemorySource) Traction(_ context.Context, startupID string) ([]TractionPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []TractionPoint
	for _, p := range s.data.Traction {
		if p.StartupID == startupID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *MemorySource) Assessments(_ context.Context, query AssessmentQuery) ([]Assessment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Assessment
	for _, a := range s.data.Assessments {
		if query.MentorID != "" && a.MentorID != query.MentorID {
			continue
		}
		if query.PendingOnly && a.Submitted {
			continue
		}
		out = append(out, a)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Due.Before(out[j].Due) })
	return out, nil
}

func (s *MemorySource) StartupForUser(_ context.Context, userID string) (Startup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, startup := range s.data.Startups {
		if slices.Contains(startup.Founders, userID) {
			startup.Founders = slices.Clone(startup.Founders)
			return startup, nil
		}
	}
	return Startup{}, fmt.Errorf("%w: no startup for user %s", ErrNotFound, userID)
}

func (s *MemorySource) MentorForUser(_ context.Context, userID string) (Mentor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, mentor := range s.data.Mentors {
		if mentor.UserID == userID {
			mentor.Expertise = slices.Clone(mentor.Expertise)
			return mentor, nil
		}
	}
	return Mentor{}, fmt.Errorf("%w: no mentor for user %s", ErrNotFound, userID)
}

// DemoData returns a small cohort anchored on now, used by the example server
// and the CLI.
func DemoData(now time.Time) Data {
	day := 24 * time.Hour
	start := now.Truncate(day)
	return Data{
		Cohort: "Spring " + now.Format("2006"),
		Startups: []Startup{
			{ID: "s-loom", Name: "Loomwise", Stage: StageSeed, Cohort: "spring", MentorID: "m-ada", Founders: []string{"founder-loom"}},
			{ID: "s-kelp", Name: "Kelp Labs", Stage: StagePreSeed, Cohort: "spring", MentorID: "m-ada", Founders: []string{"founder-kelp"}},
			{ID: "s-orbit", Name: "Orbit Health", Stage: StageIdea, Cohort: "spring", MentorID: "m-lin", Founders: []string{"founder-orbit"}},
			{ID: "s-pylon", Name: "Pylon", Stage: StageSeriesA, Cohort: "spring", MentorID: "m-lin", Founders: []string{"founder-pylon"}},
		},
		Mentors: []Mentor{
			{ID: "m-ada", UserID: "mentor-ada", Name: "Ada Okafor", Expertise: []string{"fundraising", "b2b sales"}, Capacity: 3},
			{ID: "m-lin", UserID: "mentor-lin", Name: "Lin Park", Expertise: []string{"product"}, Capacity: 2},
		},
		Milestones: []Milestone{
			{ID: "ms-1", StartupID: "s-loom", Title: "Close design partners", Due: start.Add(-7 * day), Done: true},
			{ID: "ms-2", StartupID: "s-loom", Title: "Launch paid pilot", Due: start.Add(10 * day)},
			{ID: "ms-3", StartupID: "s-kelp", Title: "Lab prototype", Due: start.Add(3 * day)},
			{ID: "ms-4", StartupID: "s-orbit", Title: "Customer interviews", Due: start.Add(-2 * day)},
		},
		Sessions: []Session{
			{ID: "se-1", StartupID: "s-loom", MentorID: "m-ada", Topic: "Pricing review", StartsAt: start.Add(day + 10*time.Hour)},
			{ID: "se-2", StartupID: "s-kelp", MentorID: "m-ada", Topic: "Grant applications", StartsAt: start.Add(2*day + 15*time.Hour)},
			{ID: "se-3", StartupID: "s-orbit", MentorID: "m-lin", Topic: "Problem framing", StartsAt: start.Add(3*day + 9*time.Hour)},
			{ID: "se-0", StartupID: "s-loom", MentorID: "m-ada", Topic: "Kickoff", StartsAt: start.Add(-14 * day)},
		},
		Funding: []FundingRound{
			{StartupID: "s-loom", Stage: StageSeed, AmountK: 1200},
			{StartupID: "s-kelp", Stage: StagePreSeed, AmountK: 350},
			{StartupID: "s-pylon", Stage: StageSeriesA, AmountK: 6000},
			{StartupID: "s-pylon", Stage: StageSeed, AmountK: 900},
		},
		Traction: []TractionPoint{
			{StartupID: "s-loom", Week: "W1", ActiveUsers: 120},
			{StartupID: "s-loom", Week: "W2", ActiveUsers: 180},
			{StartupID: "s-loom", Week: "W3", ActiveUsers: 260},
			{StartupID: "s-kelp", Week: "W1", ActiveUsers: 15},
		},
		Assessments: []Assessment{
			{ID: "as-1", StartupID: "s-loom", MentorID: "m-ada", Kind: "monthly review", Due: start.Add(5 * day)},
			{ID: "as-2", StartupID: "s-kelp", MentorID: "m-ada", Kind: "monthly review", Due: start.Add(5 * day), Submitted: true},
			{ID: "as-3", StartupID: "s-orbit", MentorID: "m-lin", Kind: "readiness check", Due: start.Add(day)},
		},
	}
}
