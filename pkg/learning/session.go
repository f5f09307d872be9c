package learning

import (
	"time"

	"github.com/google/uuid"
)

// Depth selects how many passes a session runs.
type Depth string

const (
	DepthShallow  Depth = "shallow"
	DepthModerate Depth = "moderate"
	DepthDeep     Depth = "deep"
)

// Iterations maps the depth selector to a pass count.
func (d Depth) Iterations() int {
	switch d {
	case DepthShallow:
		return 1
	case DepthModerate:
		return 2
	case DepthDeep:
		return 5
	default:
		return 1
	}
}

// Valid reports whether the depth selector is one of the known values.
func (d Depth) Valid() bool {
	return d == DepthShallow || d == DepthModerate || d == DepthDeep
}

// Step is one entry of the current pass.
type Step struct {
	Kind     StepKind   `json:"kind"`
	Status   StepStatus `json:"status"`
	Insights []Insight  `json:"insights,omitempty"`
	Error    string     `json:"error,omitempty"`
}

// Session is the state of one learning run over a document. Step status
// is per-pass: each iteration re-runs the full step table fresh.
type Session struct {
	ID         uuid.UUID `json:"id"`
	DocumentID uuid.UUID `json:"document_id"`

	Status        SessionStatus `json:"status"`
	Depth         Depth         `json:"depth"`
	Iteration     int           `json:"iteration"`
	MaxIterations int           `json:"max_iterations"`
	Steps         []Step        `json:"steps"`

	// Aggregates, monotonically non-decreasing, updated only by the
	// orchestrator; frozen once the session reaches a terminal status.
	TotalInsights      int `json:"total_insights"`
	TotalPagesCreated  int `json:"total_pages_created"`
	TotalBlocksCreated int `json:"total_blocks_created"`

	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

func newSteps() []Step {
	steps := make([]Step, len(StepTable))
	for i, kind := range StepTable {
		steps[i] = Step{Kind: kind, Status: StepPending}
	}
	return steps
}

// Progress is (resolvedSteps + 0.5*runningSteps) / totalSteps across
// all passes, clamped to 0.99 until the terminal transition; completion
// snaps to exactly 1.0.
func (s *Session) Progress() float64 {
	if s.Status == SessionCompleted {
		return 1.0
	}
	total := s.MaxIterations * len(StepTable)
	if total == 0 {
		return 0
	}

	resolved := (s.Iteration - 1) * len(StepTable)
	running := 0
	for _, step := range s.Steps {
		switch {
		case step.Status.Resolved():
			resolved++
		case step.Status == StepRunning:
			running++
		}
	}

	p := (float64(resolved) + 0.5*float64(running)) / float64(total)
	if p > 0.99 {
		p = 0.99
	}
	return p
}

func (s *Session) clone() Session {
	out := *s
	out.Steps = make([]Step, len(s.Steps))
	for i, step := range s.Steps {
		out.Steps[i] = step
		out.Steps[i].Insights = append([]Insight(nil), step.Insights...)
	}
	if s.FinishedAt != nil {
		t := *s.FinishedAt
		out.FinishedAt = &t
	}
	return out
}
