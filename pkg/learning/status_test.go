package learning

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from SessionStatus
		to   SessionStatus
		want bool
	}{
		{"idle to running", SessionIdle, SessionRunning, true},
		{"idle to paused", SessionIdle, SessionPaused, false},
		{"running to paused", SessionRunning, SessionPaused, true},
		{"running to completed", SessionRunning, SessionCompleted, true},
		{"running to stopped", SessionRunning, SessionStopped, true},
		{"running to error", SessionRunning, SessionError, true},
		{"running to idle", SessionRunning, SessionIdle, false},
		{"paused to running", SessionPaused, SessionRunning, true},
		{"paused to stopped", SessionPaused, SessionStopped, true},
		{"paused to completed", SessionPaused, SessionCompleted, false},
		{"completed is final", SessionCompleted, SessionRunning, false},
		{"stopped is final", SessionStopped, SessionRunning, false},
		{"error is final", SessionError, SessionRunning, false},
		{"completed to paused", SessionCompleted, SessionPaused, false},
		{"unknown status", SessionStatus("bogus"), SessionRunning, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestSessionStatusTerminal(t *testing.T) {
	assert.False(t, SessionIdle.Terminal())
	assert.False(t, SessionRunning.Terminal())
	assert.False(t, SessionPaused.Terminal())
	assert.True(t, SessionCompleted.Terminal())
	assert.True(t, SessionStopped.Terminal())
	assert.True(t, SessionError.Terminal())
}

func TestStepStatusResolved(t *testing.T) {
	assert.False(t, StepPending.Resolved())
	assert.False(t, StepRunning.Resolved())
	assert.True(t, StepCompleted.Resolved())
	assert.True(t, StepSkipped.Resolved())
	assert.True(t, StepError.Resolved())
}
