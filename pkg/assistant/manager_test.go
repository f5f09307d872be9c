package assistant

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerSendQueryDefaultsToActiveThread(t *testing.T) {
	provider := &scriptedProvider{chunks: chunksFor("ok")}
	s := NewStore(staticResolver(provider), Defaults{})
	obs := newEventObserver()
	s.SetObserver(obs)
	m := NewSessionManager(s)

	id, err := s.CreateThread("side")
	require.NoError(t, err)
	require.NoError(t, s.SetActiveThread(id))

	// Empty thread id resolves to whichever thread is active at call time.
	require.NoError(t, m.SendQuery(context.Background(), "hello", ""))
	obs.waitSignal(t)

	th, _ := s.Thread(id)
	assert.Len(t, th.Messages, 2)
	th, _ = s.Thread(DefaultThreadID)
	assert.Empty(t, th.Messages)
}

func TestManagerExplicitThreadWins(t *testing.T) {
	provider := &scriptedProvider{chunks: chunksFor("ok")}
	s := NewStore(staticResolver(provider), Defaults{})
	obs := newEventObserver()
	s.SetObserver(obs)
	m := NewSessionManager(s)

	id, err := s.CreateThread("side")
	require.NoError(t, err)

	require.NoError(t, m.SendQuery(context.Background(), "hello", id))
	obs.waitSignal(t)

	th, _ := s.Thread(id)
	assert.Len(t, th.Messages, 2)
	assert.Equal(t, DefaultThreadID, s.ActiveThreadID())
}

func TestManagerAbortAndProjection(t *testing.T) {
	provider := &scriptedProvider{chunks: chunksFor("never"), hold: make(chan struct{})}
	s := NewStore(staticResolver(provider), Defaults{})
	m := NewSessionManager(s)

	require.NoError(t, m.SendQuery(context.Background(), "hello", ""))

	ss, ok := m.Projection("")
	require.True(t, ok)
	assert.True(t, ss.IsStreaming)

	m.Abort("")
	close(provider.hold)

	ss, _ = m.Projection("")
	assert.False(t, ss.IsStreaming)
}
