package incubator

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a viewer has no matching startup or mentor record.
var ErrNotFound = errors.New("incubator: record not found")

// Stage is the funding/maturity stage of a startup.
type Stage string

const (
	StageIdea    Stage = "idea"
	StagePreSeed Stage = "pre-seed"
	StageSeed    Stage = "seed"
	StageSeriesA Stage = "series-a"
)

// Startup is one company enrolled in a cohort.
type Startup struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Stage    Stage    `json:"stage"`
	Cohort   string   `json:"cohort"`
	MentorID string   `json:"mentor_id,omitempty"`
	Founders []string `json:"founders,omitempty"`
}

// Mentor is a program mentor. UserID links the record to a platform account.
type Mentor struct {
	ID        string   `json:"id"`
	UserID    string   `json:"user_id"`
	Name      string   `json:"name"`
	Expertise []string `json:"expertise,omitempty"`
	Capacity  int      `json:"capacity"`
}

// Milestone is a startup deliverable tracked by the program.
type Milestone struct {
	ID        string    `json:"id"`
	StartupID string    `json:"startup_id"`
	Title     string    `json:"title"`
	Due       time.Time `json:"due"`
	Done      bool      `json:"done"`
}

// Session is a scheduled mentoring session.
type Session struct {
	ID        string    `json:"id"`
	StartupID string    `json:"startup_id"`
	MentorID  string    `json:"mentor_id"`
	Topic     string    `json:"topic"`
	StartsAt  time.Time `json:"starts_at"`
}

// FundingRound is money raised by a startup while in the program.
type FundingRound struct {
	StartupID string  `json:"startup_id"`
	Stage     Stage   `json:"stage"`
	AmountK   float64 `json:"amount_k"`
}

// TractionPoint is one weekly active-user sample.
type TractionPoint struct {
	StartupID   string `json:"startup_id"`
	Week        string `json:"week"`
	ActiveUsers int    `json:"active_users"`
}

// Assessment is a periodic review of a startup by its mentor.
type Assessment struct {
	ID        string    `json:"id"`
	StartupID string    `json:"startup_id"`
	MentorID  string    `json:"mentor_id"`
	Kind      string    `json:"kind"`
	Due       time.Time `json:"due"`
	Submitted bool      `json:"submitted"`
}

// Summary aggregates program-wide figures.
type Summary struct {
	Cohort             string  `json:"cohort"`
	Startups           int     `json:"startups"`
	Mentors            int     `json:"mentors"`
	RaisedK            float64 `json:"raised_k"`
	MilestonesDone     int     `json:"milestones_done"`
	MilestonesOpen     int     `json:"milestones_open"`
	PendingAssessments int     `json:"pending_assessments"`
	UpcomingSessions   int     `json:"upcoming_sessions"`
}

// StartupQuery filters startups. Empty fields match everything.
type StartupQuery struct {
	MentorID string
	Stage    Stage
}

// SessionQuery filters sessions. A zero From keeps past sessions.
type SessionQuery struct {
	StartupID string
	MentorID  string
	From      time.Time
	Limit     int
}

// AssessmentQuery filters assessments.
type AssessmentQuery struct {
	MentorID    string
	PendingOnly bool
}

// Source is the incubator platform data the dashboards read from.
type Source interface {
	Summary(ctx context.Context) (Summary, error)
	Startups(ctx context.Context, query StartupQuery) ([]Startup, error)
	Mentors(ctx context.Context) ([]Mentor, error)
	Milestones(ctx context.Context, startupID string) ([]Milestone, error)
	Sessions(ctx context.Context, query SessionQuery) ([]Session, error)
	Funding(ctx context.Context) ([]FundingRound, error)
	Traction(ctx context.Context, startupID string) ([]TractionPoint, error)
	Assessments(ctx context.Context, query AssessmentQuery) ([]Assessment, error)
	StartupForUser(ctx context.Context, userID string) (Startup, error)
	MentorForUser(ctx context.Context, userID string) (Mentor, error)
}
