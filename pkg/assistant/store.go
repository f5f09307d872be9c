package assistant

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"research-assistant-be/pkg/llm"

	"github.com/google/uuid"
)

var (
	ErrThreadNotFound = errors.New("thread not found")
	ErrThreadLimit    = errors.New("thread limit reached")
	ErrReservedThread = errors.New("the default thread cannot be closed")
	ErrEmptyQuery     = errors.New("query text is empty")
)

const labelMaxRunes = 48

// ProviderResolver maps a thread's provider selection to a concrete
// streaming backend. useLocal routes to local inference regardless of
// the provider argument.
type ProviderResolver func(provider Provider, model string, useLocal bool) (llm.StreamingProvider, error)

// StreamObserver receives projection updates so an outer layer (the
// websocket hub, persistence hooks) can react. Calls arrive serialized
// under the store lock; implementations must not call back into the
// store and should hand off quickly.
type StreamObserver interface {
	OnToken(threadID, fragment string)
	OnDone(threadID, finalText string)
	OnStreamError(threadID string, kind ErrorKind)
}

// Defaults is the global provider selection a thread inherits when it
// has no override of its own. SystemPrompt, when set, is prepended to
// every request history as a system message.
type Defaults struct {
	Provider     Provider
	Model        string
	SystemPrompt string
}

type streamState struct {
	text      strings.Builder
	streaming bool
	channel   *Channel
}

// Store owns the set of chat threads, their histories, provider
// selections and streaming lifecycles. A single mutex serializes every
// mutation, including streaming callbacks, playing the role of the
// UI event loop the browser client has.
type Store struct {
	mu       sync.Mutex
	threads  map[string]*Thread
	order    []string
	activeID string
	streams  map[string]*streamState

	resolve  ProviderResolver
	defaults Defaults
	observer StreamObserver

	now   func() time.Time
	newID func() string
}

// NewStore creates a thread store holding the reserved default thread.
func NewStore(resolve ProviderResolver, defaults Defaults) *Store {
	s := &Store{
		threads:  make(map[string]*Thread),
		streams:  make(map[string]*streamState),
		resolve:  resolve,
		defaults: defaults,
		now:      time.Now,
		newID:    uuid.NewString,
	}
	s.threads[DefaultThreadID] = &Thread{ID: DefaultThreadID, Label: "Assistant"}
	s.order = append(s.order, DefaultThreadID)
	s.streams[DefaultThreadID] = &streamState{}
	s.activeID = DefaultThreadID
	return s
}

// SetObserver wires projection updates to an outer layer. Call before
// the first SendQuery.
func (s *Store) SetObserver(o StreamObserver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observer = o
}

// CreateThread adds a new thread and returns its id. Rejects when
// MaxThreads already exist, leaving the set unchanged.
func (s *Store) CreateThread(label string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.threads) >= MaxThreads {
		return "", ErrThreadLimit
	}

	id := s.newID()
	if label == "" {
		label = "New thread"
	}
	s.threads[id] = &Thread{ID: id, Label: label}
	s.order = append(s.order, id)
	s.streams[id] = &streamState{}
	return id, nil
}

// CloseThread removes a thread and its streaming state. The reserved
// default thread is never removed. Closing the active thread falls
// activation back to the default thread.
func (s *Store) CloseThread(threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if threadID == DefaultThreadID {
		return ErrReservedThread
	}
	if _, ok := s.threads[threadID]; !ok {
		return ErrThreadNotFound
	}

	if ss := s.streams[threadID]; ss != nil && ss.streaming {
		ss.channel.abortLocked()
	}

	delete(s.threads, threadID)
	delete(s.streams, threadID)
	for i, id := range s.order {
		if id == threadID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	if s.activeID == threadID {
		s.activeID = DefaultThreadID
	}
	return nil
}

// SetActiveThread is a pure pointer update with no side effects on
// other threads' streaming state.
func (s *Store) SetActiveThread(threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.threads[threadID]; !ok {
		return ErrThreadNotFound
	}
	s.activeID = threadID
	return nil
}

// ActiveThreadID returns the currently active thread id.
func (s *Store) ActiveThreadID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeID
}

// SetThreadProvider selects a remote provider for the thread, clearing
// any local-inference selection. Provider and useLocal are mutually
// exclusive by construction.
func (s *Store) SetThreadProvider(threadID string, provider Provider, model string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.threads[threadID]
	if !ok {
		return ErrThreadNotFound
	}
	t.Provider = provider
	t.Model = model
	t.UseLocal = false
	return nil
}

// SetThreadLocal toggles local inference; enabling it clears the remote
// provider selection.
func (s *Store) SetThreadLocal(threadID string, useLocal bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.threads[threadID]
	if !ok {
		return ErrThreadNotFound
	}
	t.UseLocal = useLocal
	if useLocal {
		t.Provider = ""
		t.Model = ""
	}
	return nil
}

// SendQuery appends the user message, aborts any in-flight stream on
// the thread, and opens a fresh streaming channel. On completion the
// assistant message is appended and the streaming buffer cleared; on
// error the history is left with the user message only.
func (s *Store) SendQuery(ctx context.Context, threadID, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if text == "" {
		return ErrEmptyQuery
	}
	t, ok := s.threads[threadID]
	if !ok {
		return ErrThreadNotFound
	}
	ss := s.streams[threadID]

	// At most one open channel per thread: abort-then-reopen.
	if ss.streaming {
		ss.channel.abortLocked()
		ss.channel = nil
		ss.streaming = false
		ss.text.Reset()
	}

	t.Messages = append(t.Messages, Message{
		Role:      RoleUser,
		Content:   text,
		Timestamp: s.now(),
	})
	if t.Label == "" || t.Label == "New thread" {
		t.Label = deriveLabel(text)
	}

	model := t.Model
	if t.Provider == "" && !t.UseLocal {
		// Inheriting the global default provider inherits its model too.
		model = s.defaults.Model
	}
	provider, err := s.resolve(s.effectiveProvider(t), model, t.UseLocal)
	if err != nil {
		return err
	}

	history := make([]llm.Message, 0, len(t.Messages)+1)
	if s.defaults.SystemPrompt != "" {
		history = append(history, llm.Message{Role: "system", Content: s.defaults.SystemPrompt})
	}
	for _, m := range t.Messages {
		history = append(history, llm.Message{Role: string(m.Role), Content: m.Content})
	}

	// The stream outlives the originating HTTP request.
	ch, err := OpenChannel(context.WithoutCancel(ctx), &s.mu, provider, history, nil,
		func(fragment string) {
			ss.text.WriteString(fragment)
			if s.observer != nil {
				s.observer.OnToken(threadID, fragment)
			}
		},
		func(finalText string) {
			t.Messages = append(t.Messages, Message{
				Role:      RoleAssistant,
				Content:   finalText,
				Timestamp: s.now(),
			})
			ss.text.Reset()
			ss.streaming = false
			ss.channel = nil
			if s.observer != nil {
				s.observer.OnDone(threadID, finalText)
			}
		},
		func(kind ErrorKind) {
			ss.text.Reset()
			ss.streaming = false
			ss.channel = nil
			if s.observer != nil {
				s.observer.OnStreamError(threadID, kind)
			}
		},
	)
	if err != nil {
		return err
	}

	ss.channel = ch
	ss.streaming = true
	return nil
}

// Abort cancels the thread's in-flight stream, if any. isStreaming
// flips synchronously; provider-side teardown completes asynchronously
// and emits no further callbacks. Idempotent.
func (s *Store) Abort(threadID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ss, ok := s.streams[threadID]
	if !ok || !ss.streaming {
		return
	}
	ss.channel.abortLocked()
	ss.channel = nil
	ss.streaming = false
	ss.text.Reset()
}

// LoadConversation atomically replaces a thread's history and back-
// reference with a persisted conversation. Other threads are untouched.
func (s *Store) LoadConversation(threadID string, conversationID uuid.UUID, title string, messages []Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.threads[threadID]
	if !ok {
		return ErrThreadNotFound
	}
	if ss := s.streams[threadID]; ss.streaming {
		ss.channel.abortLocked()
		ss.channel = nil
		ss.streaming = false
		ss.text.Reset()
	}

	t.Messages = append([]Message(nil), messages...)
	t.ConversationID = &conversationID
	if title != "" {
		t.Label = title
	}
	return nil
}

// SetConversationID records the persisted-record back-reference after
// an export.
func (s *Store) SetConversationID(threadID string, conversationID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.threads[threadID]
	if !ok {
		return ErrThreadNotFound
	}
	t.ConversationID = &conversationID
	return nil
}

// Thread returns a copy of the thread, safe to read without the lock.
func (s *Store) Thread(threadID string) (Thread, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.threads[threadID]
	if !ok {
		return Thread{}, false
	}
	return copyThread(t), true
}

// Threads returns copies of all threads in creation order.
func (s *Store) Threads() []Thread {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Thread, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, copyThread(s.threads[id]))
	}
	return out
}

// Count returns the number of threads.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.threads)
}

// StreamingSnapshot returns the thread's streaming projection.
func (s *Store) StreamingSnapshot(threadID string) (StreamingState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ss, ok := s.streams[threadID]
	if !ok {
		return StreamingState{}, false
	}
	return StreamingState{Text: ss.text.String(), IsStreaming: ss.streaming}, true
}

// Shutdown aborts every in-flight stream. Used when a session context
// is evicted.
func (s *Store) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ss := range s.streams {
		if ss.streaming {
			ss.channel.abortLocked()
			ss.channel = nil
			ss.streaming = false
			ss.text.Reset()
		}
	}
}

func (s *Store) effectiveProvider(t *Thread) Provider {
	if t.UseLocal {
		return ""
	}
	if t.Provider != "" {
		return t.Provider
	}
	return s.defaults.Provider
}

func copyThread(t *Thread) Thread {
	out := *t
	out.Messages = append([]Message(nil), t.Messages...)
	if t.ConversationID != nil {
		id := *t.ConversationID
		out.ConversationID = &id
	}
	return out
}

func deriveLabel(text string) string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) > labelMaxRunes {
		return string(runes[:labelMaxRunes])
	}
	return string(runes)
}
