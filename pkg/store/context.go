package store

import (
	"research-assistant-be/pkg/assistant"
	"research-assistant-be/pkg/learning"
)

// SessionContext is the in-memory working state of one user: their
// conversation threads plus the learning orchestrator. It lives in the
// context registry and is rebuilt lazily after eviction; durable state
// (conversations, insights) lives in the database.
type SessionContext struct {
	UserID string

	Threads  *assistant.Store
	Learning *learning.Orchestrator
}

// Shutdown aborts every live stream and stops any active learning
// session. Called on eviction and on server shutdown.
func (c *SessionContext) Shutdown() {
	if c.Threads != nil {
		c.Threads.Shutdown()
	}
	if c.Learning != nil {
		c.Learning.Shutdown()
	}
}
