package assistant

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"research-assistant-be/pkg/llm"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedProvider streams a fixed chunk sequence. When hold is set, the
// stream does not begin until the channel is closed, letting tests keep
// a request in flight.
type scriptedProvider struct {
	chunks []llm.Chunk
	hold   chan struct{}

	mu      sync.Mutex
	history []llm.Message
}

func (p *scriptedProvider) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	return "", nil
}

func (p *scriptedProvider) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	return "", nil
}

func (p *scriptedProvider) ChatStream(ctx context.Context, history []llm.Message, options ...llm.Option) (<-chan llm.Chunk, error) {
	p.mu.Lock()
	p.history = append([]llm.Message(nil), history...)
	p.mu.Unlock()

	out := make(chan llm.Chunk)
	go func() {
		defer close(out)
		if p.hold != nil {
			select {
			case <-p.hold:
			case <-ctx.Done():
				return
			}
		}
		for _, c := range p.chunks {
			select {
			case out <- c:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (p *scriptedProvider) sentHistory() []llm.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.history
}

type resolverCall struct {
	provider Provider
	model    string
	useLocal bool
}

// eventObserver records observer callbacks and signals completion.
type eventObserver struct {
	mu     sync.Mutex
	tokens []string
	dones  []string
	errs   []ErrorKind
	signal chan struct{}
}

func newEventObserver() *eventObserver {
	return &eventObserver{signal: make(chan struct{}, 16)}
}

func (o *eventObserver) OnToken(threadID, fragment string) {
	o.mu.Lock()
	o.tokens = append(o.tokens, fragment)
	o.mu.Unlock()
}

func (o *eventObserver) OnDone(threadID, finalText string) {
	o.mu.Lock()
	o.dones = append(o.dones, finalText)
	o.mu.Unlock()
	o.signal <- struct{}{}
}

func (o *eventObserver) OnStreamError(threadID string, kind ErrorKind) {
	o.mu.Lock()
	o.errs = append(o.errs, kind)
	o.mu.Unlock()
	o.signal <- struct{}{}
}

func (o *eventObserver) waitSignal(t *testing.T) {
	t.Helper()
	select {
	case <-o.signal:
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not settle in time")
	}
}

func staticResolver(p llm.StreamingProvider) ProviderResolver {
	return func(provider Provider, model string, useLocal bool) (llm.StreamingProvider, error) {
		return p, nil
	}
}

func chunksFor(parts ...string) []llm.Chunk {
	out := make([]llm.Chunk, 0, len(parts)+1)
	for _, p := range parts {
		out = append(out, llm.Chunk{Delta: p})
	}
	return append(out, llm.Chunk{Done: true})
}

func TestNewStoreHoldsReservedThread(t *testing.T) {
	s := NewStore(staticResolver(&scriptedProvider{}), Defaults{})

	assert.Equal(t, 1, s.Count())
	assert.Equal(t, DefaultThreadID, s.ActiveThreadID())
	th, ok := s.Thread(DefaultThreadID)
	require.True(t, ok)
	assert.Equal(t, "Assistant", th.Label)
}

func TestCreateThreadLimit(t *testing.T) {
	s := NewStore(staticResolver(&scriptedProvider{}), Defaults{})

	for i := 1; i < MaxThreads; i++ {
		_, err := s.CreateThread("")
		require.NoError(t, err)
	}
	assert.Equal(t, MaxThreads, s.Count())

	_, err := s.CreateThread("one too many")
	assert.ErrorIs(t, err, ErrThreadLimit)
	assert.Equal(t, MaxThreads, s.Count())
}

func TestCloseThread(t *testing.T) {
	s := NewStore(staticResolver(&scriptedProvider{}), Defaults{})

	assert.ErrorIs(t, s.CloseThread(DefaultThreadID), ErrReservedThread)
	assert.ErrorIs(t, s.CloseThread("missing"), ErrThreadNotFound)

	id, err := s.CreateThread("scratch")
	require.NoError(t, err)
	require.NoError(t, s.SetActiveThread(id))

	require.NoError(t, s.CloseThread(id))
	assert.Equal(t, 1, s.Count())

	// Closing the active thread falls activation back to the default.
	assert.Equal(t, DefaultThreadID, s.ActiveThreadID())
}

func TestProviderAndLocalAreMutuallyExclusive(t *testing.T) {
	s := NewStore(staticResolver(&scriptedProvider{}), Defaults{})

	require.NoError(t, s.SetThreadLocal(DefaultThreadID, true))
	th, _ := s.Thread(DefaultThreadID)
	assert.True(t, th.UseLocal)
	assert.Empty(t, th.Provider)

	require.NoError(t, s.SetThreadProvider(DefaultThreadID, ProviderHuggingFace, "zephyr-7b"))
	th, _ = s.Thread(DefaultThreadID)
	assert.False(t, th.UseLocal)
	assert.Equal(t, ProviderHuggingFace, th.Provider)
	assert.Equal(t, "zephyr-7b", th.Model)

	require.NoError(t, s.SetThreadLocal(DefaultThreadID, true))
	th, _ = s.Thread(DefaultThreadID)
	assert.True(t, th.UseLocal)
	assert.Empty(t, th.Provider)
	assert.Empty(t, th.Model)
}

func TestSendQueryStreamsToCompletion(t *testing.T) {
	provider := &scriptedProvider{chunks: chunksFor("Hel", "lo ", "there")}
	s := NewStore(staticResolver(provider), Defaults{Provider: ProviderGemini, Model: "gemini-2.0-flash"})
	obs := newEventObserver()
	s.SetObserver(obs)

	require.NoError(t, s.SendQuery(context.Background(), DefaultThreadID, "hi"))
	obs.waitSignal(t)

	require.Len(t, obs.dones, 1)
	assert.Equal(t, "Hello there", obs.dones[0])
	assert.Equal(t, []string{"Hel", "lo ", "there"}, obs.tokens)

	th, _ := s.Thread(DefaultThreadID)
	require.Len(t, th.Messages, 2)
	assert.Equal(t, RoleUser, th.Messages[0].Role)
	assert.Equal(t, RoleAssistant, th.Messages[1].Role)
	assert.Equal(t, "Hello there", th.Messages[1].Content)

	ss, ok := s.StreamingSnapshot(DefaultThreadID)
	require.True(t, ok)
	assert.False(t, ss.IsStreaming)
	assert.Empty(t, ss.Text)
}

func TestSendQuerySystemPromptPrepended(t *testing.T) {
	provider := &scriptedProvider{chunks: chunksFor("ok")}
	s := NewStore(staticResolver(provider), Defaults{SystemPrompt: "You are terse."})
	obs := newEventObserver()
	s.SetObserver(obs)

	require.NoError(t, s.SendQuery(context.Background(), DefaultThreadID, "hi"))
	obs.waitSignal(t)

	history := provider.sentHistory()
	require.NotEmpty(t, history)
	assert.Equal(t, "system", history[0].Role)
	assert.Equal(t, "You are terse.", history[0].Content)
}

func TestSendQueryValidation(t *testing.T) {
	s := NewStore(staticResolver(&scriptedProvider{}), Defaults{})

	assert.ErrorIs(t, s.SendQuery(context.Background(), DefaultThreadID, ""), ErrEmptyQuery)
	assert.ErrorIs(t, s.SendQuery(context.Background(), "missing", "hi"), ErrThreadNotFound)
}

func TestSendQueryResolvesEffectiveProvider(t *testing.T) {
	var calls []resolverCall
	var mu sync.Mutex
	provider := &scriptedProvider{chunks: chunksFor("ok")}
	resolve := func(p Provider, model string, useLocal bool) (llm.StreamingProvider, error) {
		mu.Lock()
		calls = append(calls, resolverCall{p, model, useLocal})
		mu.Unlock()
		return provider, nil
	}
	s := NewStore(resolve, Defaults{Provider: ProviderGemini, Model: "gemini-2.0-flash"})
	obs := newEventObserver()
	s.SetObserver(obs)

	// No override: inherits the default provider and its model.
	require.NoError(t, s.SendQuery(context.Background(), DefaultThreadID, "hi"))
	obs.waitSignal(t)

	// Thread override wins.
	require.NoError(t, s.SetThreadProvider(DefaultThreadID, ProviderHuggingFace, "zephyr-7b"))
	require.NoError(t, s.SendQuery(context.Background(), DefaultThreadID, "again"))
	obs.waitSignal(t)

	// Local inference clears the provider selection entirely.
	require.NoError(t, s.SetThreadLocal(DefaultThreadID, true))
	require.NoError(t, s.SendQuery(context.Background(), DefaultThreadID, "once more"))
	obs.waitSignal(t)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, calls, 3)
	assert.Equal(t, resolverCall{ProviderGemini, "gemini-2.0-flash", false}, calls[0])
	assert.Equal(t, resolverCall{ProviderHuggingFace, "zephyr-7b", false}, calls[1])
	assert.Equal(t, resolverCall{"", "", true}, calls[2])
}

func TestSendQueryDerivesLabel(t *testing.T) {
	provider := &scriptedProvider{chunks: chunksFor("ok")}
	s := NewStore(staticResolver(provider), Defaults{})
	obs := newEventObserver()
	s.SetObserver(obs)

	id, err := s.CreateThread("")
	require.NoError(t, err)

	long := strings.Repeat("ab", 40) // 80 runes
	require.NoError(t, s.SendQuery(context.Background(), id, long))
	obs.waitSignal(t)

	th, _ := s.Thread(id)
	assert.Len(t, []rune(th.Label), labelMaxRunes)
	assert.Equal(t, long[:labelMaxRunes], th.Label)

	// An explicit label is never overwritten.
	labeled, err := s.CreateThread("My research")
	require.NoError(t, err)
	require.NoError(t, s.SendQuery(context.Background(), labeled, "some question"))
	obs.waitSignal(t)
	th, _ = s.Thread(labeled)
	assert.Equal(t, "My research", th.Label)
}

func TestAbortSilencesCallbacks(t *testing.T) {
	provider := &scriptedProvider{chunks: chunksFor("never"), hold: make(chan struct{})}
	s := NewStore(staticResolver(provider), Defaults{})
	obs := newEventObserver()
	s.SetObserver(obs)

	require.NoError(t, s.SendQuery(context.Background(), DefaultThreadID, "hi"))

	ss, _ := s.StreamingSnapshot(DefaultThreadID)
	assert.True(t, ss.IsStreaming)

	s.Abort(DefaultThreadID)
	close(provider.hold)

	ss, _ = s.StreamingSnapshot(DefaultThreadID)
	assert.False(t, ss.IsStreaming)

	// No callback fires after an abort; only the user message remains.
	select {
	case <-obs.signal:
		t.Fatal("observer fired after abort")
	case <-time.After(100 * time.Millisecond):
	}
	th, _ := s.Thread(DefaultThreadID)
	assert.Len(t, th.Messages, 1)

	// Idempotent.
	s.Abort(DefaultThreadID)
}

func TestSendQueryAbortsInFlightStream(t *testing.T) {
	first := &scriptedProvider{chunks: chunksFor("stale"), hold: make(chan struct{})}
	second := &scriptedProvider{chunks: chunksFor("fresh answer")}
	providers := []llm.StreamingProvider{first, second}
	i := 0
	resolve := func(p Provider, model string, useLocal bool) (llm.StreamingProvider, error) {
		pr := providers[i]
		i++
		return pr, nil
	}
	s := NewStore(resolve, Defaults{})
	obs := newEventObserver()
	s.SetObserver(obs)

	require.NoError(t, s.SendQuery(context.Background(), DefaultThreadID, "first"))
	require.NoError(t, s.SendQuery(context.Background(), DefaultThreadID, "second"))
	close(first.hold)
	obs.waitSignal(t)

	require.Len(t, obs.dones, 1)
	assert.Equal(t, "fresh answer", obs.dones[0])

	th, _ := s.Thread(DefaultThreadID)
	// Two user messages, one assistant reply from the second stream.
	require.Len(t, th.Messages, 3)
	assert.Equal(t, "fresh answer", th.Messages[2].Content)
}

func TestStreamErrorLeavesUserMessageOnly(t *testing.T) {
	provider := &scriptedProvider{chunks: []llm.Chunk{{Delta: "par"}, {Err: errors.New("api error 500")}}}
	s := NewStore(staticResolver(provider), Defaults{})
	obs := newEventObserver()
	s.SetObserver(obs)

	require.NoError(t, s.SendQuery(context.Background(), DefaultThreadID, "hi"))
	obs.waitSignal(t)

	require.Len(t, obs.errs, 1)
	assert.Equal(t, ErrKindProvider, obs.errs[0])

	th, _ := s.Thread(DefaultThreadID)
	assert.Len(t, th.Messages, 1)
	ss, _ := s.StreamingSnapshot(DefaultThreadID)
	assert.False(t, ss.IsStreaming)
	assert.Empty(t, ss.Text)
}

func TestLoadConversationReplacesHistory(t *testing.T) {
	provider := &scriptedProvider{chunks: chunksFor("never"), hold: make(chan struct{})}
	s := NewStore(staticResolver(provider), Defaults{})
	obs := newEventObserver()
	s.SetObserver(obs)

	require.NoError(t, s.SendQuery(context.Background(), DefaultThreadID, "in flight"))

	convID := uuid.New()
	msgs := []Message{
		{Role: RoleUser, Content: "restored question"},
		{Role: RoleAssistant, Content: "restored answer"},
	}
	require.NoError(t, s.LoadConversation(DefaultThreadID, convID, "Restored", msgs))
	close(provider.hold)

	th, _ := s.Thread(DefaultThreadID)
	require.Len(t, th.Messages, 2)
	assert.Equal(t, "restored question", th.Messages[0].Content)
	assert.Equal(t, "Restored", th.Label)
	require.NotNil(t, th.ConversationID)
	assert.Equal(t, convID, *th.ConversationID)

	ss, _ := s.StreamingSnapshot(DefaultThreadID)
	assert.False(t, ss.IsStreaming)

	assert.ErrorIs(t, s.LoadConversation("missing", convID, "", nil), ErrThreadNotFound)
}

func TestShutdownAbortsAllStreams(t *testing.T) {
	provider := &scriptedProvider{chunks: chunksFor("never"), hold: make(chan struct{})}
	s := NewStore(staticResolver(provider), Defaults{})

	id, err := s.CreateThread("second")
	require.NoError(t, err)
	require.NoError(t, s.SendQuery(context.Background(), DefaultThreadID, "a"))
	require.NoError(t, s.SendQuery(context.Background(), id, "b"))

	s.Shutdown()
	close(provider.hold)

	for _, tid := range []string{DefaultThreadID, id} {
		ss, _ := s.StreamingSnapshot(tid)
		assert.False(t, ss.IsStreaming)
	}
}
