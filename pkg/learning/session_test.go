package learning

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDepthIterations(t *testing.T) {
	assert.Equal(t, 1, DepthShallow.Iterations())
	assert.Equal(t, 2, DepthModerate.Iterations())
	assert.Equal(t, 5, DepthDeep.Iterations())
	assert.Equal(t, 1, Depth("unknown").Iterations())
}

func TestDepthValid(t *testing.T) {
	assert.True(t, DepthShallow.Valid())
	assert.True(t, DepthModerate.Valid())
	assert.True(t, DepthDeep.Valid())
	assert.False(t, Depth("extreme").Valid())
}

func TestProgressFreshSession(t *testing.T) {
	s := Session{
		Status:        SessionRunning,
		Iteration:     1,
		MaxIterations: 1,
		Steps:         newSteps(),
	}
	assert.Equal(t, 0.0, s.Progress())
}

func TestProgressCountsResolvedAndRunning(t *testing.T) {
	s := Session{
		Status:        SessionRunning,
		Iteration:     1,
		MaxIterations: 1,
		Steps:         newSteps(),
	}
	s.Steps[0].Status = StepCompleted
	s.Steps[1].Status = StepSkipped
	s.Steps[2].Status = StepError
	s.Steps[3].Status = StepRunning

	// 3 resolved + half credit for the running one, out of 7.
	assert.InDelta(t, 3.5/7.0, s.Progress(), 1e-9)
}

func TestProgressIncludesPriorPasses(t *testing.T) {
	s := Session{
		Status:        SessionRunning,
		Iteration:     2,
		MaxIterations: 2,
		Steps:         newSteps(),
	}
	s.Steps[0].Status = StepCompleted

	assert.InDelta(t, 8.0/14.0, s.Progress(), 1e-9)
}

func TestProgressClampsBeforeTerminal(t *testing.T) {
	s := Session{
		Status:        SessionRunning,
		Iteration:     1,
		MaxIterations: 1,
		Steps:         newSteps(),
	}
	for i := range s.Steps {
		s.Steps[i].Status = StepCompleted
	}

	// All steps resolved but not yet terminal: held below 1.0.
	assert.Equal(t, 0.99, s.Progress())

	s.Status = SessionCompleted
	assert.Equal(t, 1.0, s.Progress())
}

func TestProgressStoppedSessionStaysPartial(t *testing.T) {
	s := Session{
		Status:        SessionStopped,
		Iteration:     1,
		MaxIterations: 1,
		Steps:         newSteps(),
	}
	s.Steps[0].Status = StepCompleted

	assert.InDelta(t, 1.0/7.0, s.Progress(), 1e-9)
}

func TestCloneIsDeep(t *testing.T) {
	s := Session{
		Status:        SessionRunning,
		Iteration:     1,
		MaxIterations: 1,
		Steps:         newSteps(),
	}
	s.Steps[0].Insights = []Insight{{Content: "original"}}

	c := s.clone()
	c.Steps[0].Insights[0].Content = "mutated"
	c.Steps[1].Status = StepCompleted

	assert.Equal(t, "original", s.Steps[0].Insights[0].Content)
	assert.Equal(t, StepPending, s.Steps[1].Status)
}
