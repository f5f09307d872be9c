package assistant

import "context"

// SessionManager is the boundary the UI layer consumes. It resolves an
// omitted thread id to the store's active thread at call time, so a
// query composed before a tab switch still lands on the thread the user
// is looking at when they hit send.
type SessionManager struct {
	store *Store
}

func NewSessionManager(store *Store) *SessionManager {
	return &SessionManager{store: store}
}

// Store exposes the underlying thread store for thread management calls.
func (m *SessionManager) Store() *Store {
	return m.store
}

// SendQuery sends text to the given thread, or to the currently active
// thread when threadID is empty.
func (m *SessionManager) SendQuery(ctx context.Context, text, threadID string) error {
	if threadID == "" {
		threadID = m.store.ActiveThreadID()
	}
	return m.store.SendQuery(ctx, threadID, text)
}

// Abort cancels the stream on the given thread, defaulting to the
// active thread.
func (m *SessionManager) Abort(threadID string) {
	if threadID == "" {
		threadID = m.store.ActiveThreadID()
	}
	m.store.Abort(threadID)
}

// Projection returns the streaming state for the given thread,
// defaulting to the active thread.
func (m *SessionManager) Projection(threadID string) (StreamingState, bool) {
	if threadID == "" {
		threadID = m.store.ActiveThreadID()
	}
	return m.store.StreamingSnapshot(threadID)
}
