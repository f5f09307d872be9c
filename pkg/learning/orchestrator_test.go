package learning

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLoader struct {
	err      error
	snapshot DocumentSnapshot
}

func (l *stubLoader) LoadDocument(ctx context.Context, documentID uuid.UUID) (DocumentSnapshot, error) {
	if l.err != nil {
		return DocumentSnapshot{}, l.err
	}
	s := l.snapshot
	s.DocumentID = documentID
	return s, nil
}

type stubRunner struct {
	mu     sync.Mutex
	calls  []StepKind
	priors []int

	// gate, when set, blocks each RunStep until a value arrives (or the
	// step context is cancelled). Lets tests hold the worker mid-step.
	gate chan struct{}

	fn func(step StepKind, prior []Insight) ([]Insight, error)
}

func (r *stubRunner) RunStep(ctx context.Context, step StepKind, snapshot DocumentSnapshot, prior []Insight) ([]Insight, error) {
	if r.gate != nil {
		select {
		case <-r.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	r.mu.Lock()
	r.calls = append(r.calls, step)
	r.priors = append(r.priors, len(prior))
	r.mu.Unlock()

	if r.fn != nil {
		return r.fn(step, prior)
	}
	return []Insight{{
		ID:        uuid.New(),
		Step:      step,
		Content:   "insight from " + string(step),
		CreatedAt: time.Now(),
	}}, nil
}

func (r *stubRunner) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func (r *stubRunner) lastPriorCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.priors) == 0 {
		return -1
	}
	return r.priors[len(r.priors)-1]
}

type stubSink struct {
	mu    sync.Mutex
	calls int
}

func (s *stubSink) AppendInsights(ctx context.Context, documentID, runID uuid.UUID, iteration int, step StepKind, insights []Insight) (int, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return 1, len(insights) + 1, nil
}

func (s *stubSink) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type sessionRecorder struct {
	mu       sync.Mutex
	updates  []Session
	terminal chan struct{}
	once     sync.Once
}

func newSessionRecorder() *sessionRecorder {
	return &sessionRecorder{terminal: make(chan struct{})}
}

func (r *sessionRecorder) OnSessionUpdate(s Session) {
	r.mu.Lock()
	r.updates = append(r.updates, s)
	r.mu.Unlock()
	if s.Status.Terminal() {
		r.once.Do(func() { close(r.terminal) })
	}
}

func (r *sessionRecorder) waitTerminal(t *testing.T) {
	t.Helper()
	select {
	case <-r.terminal:
	case <-time.After(5 * time.Second):
		t.Fatal("session did not reach a terminal status in time")
	}
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestSessionCompletesAllSteps(t *testing.T) {
	runner := &stubRunner{}
	sink := &stubSink{}
	o := NewOrchestrator(runner, &stubLoader{snapshot: DocumentSnapshot{Title: "Doc", Content: "body"}}, sink)
	rec := newSessionRecorder()
	o.SetObserver(rec)

	sess, err := o.Start(context.Background(), uuid.New(), DepthShallow)
	require.NoError(t, err)
	assert.Equal(t, SessionRunning, sess.Status)
	assert.Len(t, sess.Steps, len(StepTable))

	rec.waitTerminal(t)

	snap, ok := o.Snapshot()
	require.True(t, ok)
	assert.Equal(t, SessionCompleted, snap.Status)
	assert.NotNil(t, snap.FinishedAt)
	assert.Equal(t, len(StepTable), snap.TotalInsights)
	assert.Equal(t, len(StepTable), snap.TotalPagesCreated)
	assert.Equal(t, 2*len(StepTable), snap.TotalBlocksCreated)
	assert.Equal(t, 1.0, o.Progress())
	for _, step := range snap.Steps {
		assert.Equal(t, StepCompleted, step.Status)
	}

	// The final step saw everything the pass produced before it.
	assert.Equal(t, len(StepTable)-1, runner.lastPriorCount())
	assert.Equal(t, len(StepTable), sink.callCount())
}

func TestModerateDepthRunsTwoPasses(t *testing.T) {
	runner := &stubRunner{}
	o := NewOrchestrator(runner, &stubLoader{}, &stubSink{})
	rec := newSessionRecorder()
	o.SetObserver(rec)

	_, err := o.Start(context.Background(), uuid.New(), DepthModerate)
	require.NoError(t, err)
	rec.waitTerminal(t)

	snap, _ := o.Snapshot()
	assert.Equal(t, SessionCompleted, snap.Status)
	assert.Equal(t, 2, snap.Iteration)
	assert.Equal(t, 2*len(StepTable), runner.callCount())
	assert.Equal(t, 2*len(StepTable), snap.TotalInsights)
}

func TestStartRejectsActiveSession(t *testing.T) {
	runner := &stubRunner{gate: make(chan struct{})}
	o := NewOrchestrator(runner, &stubLoader{}, &stubSink{})

	_, err := o.Start(context.Background(), uuid.New(), DepthShallow)
	require.NoError(t, err)

	_, err = o.Start(context.Background(), uuid.New(), DepthShallow)
	assert.ErrorIs(t, err, ErrSessionActive)

	require.NoError(t, o.Stop())
	close(runner.gate)

	// A terminal session no longer blocks a fresh start.
	_, err = o.Start(context.Background(), uuid.New(), DepthShallow)
	assert.NoError(t, err)
	_ = o.Stop()
}

func TestPauseAndResume(t *testing.T) {
	runner := &stubRunner{gate: make(chan struct{})}
	o := NewOrchestrator(runner, &stubLoader{}, &stubSink{})
	rec := newSessionRecorder()
	o.SetObserver(rec)

	_, err := o.Start(context.Background(), uuid.New(), DepthShallow)
	require.NoError(t, err)

	// Wait for the worker to pick up the first step so the gate below has
	// a receiver.
	waitUntil(t, func() bool {
		snap, _ := o.Snapshot()
		return snap.Steps[0].Status == StepRunning
	})

	require.NoError(t, o.Pause())
	assert.ErrorIs(t, o.Pause(), ErrInvalidTransition)

	// Let the in-flight step finish; it still resolves after the pause.
	runner.gate <- struct{}{}
	waitUntil(t, func() bool {
		snap, _ := o.Snapshot()
		return snap.Status == SessionPaused && snap.Steps[0].Status.Resolved()
	})
	assert.Equal(t, 1, runner.callCount())

	require.NoError(t, o.Resume())
	assert.ErrorIs(t, o.Resume(), ErrInvalidTransition)

	close(runner.gate)
	rec.waitTerminal(t)

	snap, _ := o.Snapshot()
	assert.Equal(t, SessionCompleted, snap.Status)
	assert.Equal(t, len(StepTable), runner.callCount())
}

func TestStopDiscardsInFlightStep(t *testing.T) {
	runner := &stubRunner{gate: make(chan struct{})}
	o := NewOrchestrator(runner, &stubLoader{}, &stubSink{})
	rec := newSessionRecorder()
	o.SetObserver(rec)

	_, err := o.Start(context.Background(), uuid.New(), DepthShallow)
	require.NoError(t, err)

	require.NoError(t, o.Stop())
	close(runner.gate)
	rec.waitTerminal(t)

	snap, _ := o.Snapshot()
	assert.Equal(t, SessionStopped, snap.Status)
	assert.NotNil(t, snap.FinishedAt)
	assert.Equal(t, 0, snap.TotalInsights)

	// Stopping a terminal session is a no-op.
	assert.NoError(t, o.Stop())
}

func TestStepErrorIsNonFatal(t *testing.T) {
	runner := &stubRunner{fn: func(step StepKind, prior []Insight) ([]Insight, error) {
		if step == StepGapAnalysis {
			return nil, errors.New("model unavailable")
		}
		return []Insight{{ID: uuid.New(), Step: step, Content: "x"}}, nil
	}}
	o := NewOrchestrator(runner, &stubLoader{}, &stubSink{})
	rec := newSessionRecorder()
	o.SetObserver(rec)

	_, err := o.Start(context.Background(), uuid.New(), DepthShallow)
	require.NoError(t, err)
	rec.waitTerminal(t)

	snap, _ := o.Snapshot()
	assert.Equal(t, SessionCompleted, snap.Status)
	assert.Equal(t, len(StepTable)-1, snap.TotalInsights)
	for _, step := range snap.Steps {
		if step.Kind == StepGapAnalysis {
			assert.Equal(t, StepError, step.Status)
			assert.Equal(t, "model unavailable", step.Error)
		} else {
			assert.Equal(t, StepCompleted, step.Status)
		}
	}
}

func TestSkipStepResolvesSkipped(t *testing.T) {
	runner := &stubRunner{fn: func(step StepKind, prior []Insight) ([]Insight, error) {
		if step == StepCrossReferenceLinking {
			return nil, ErrSkipStep
		}
		return nil, nil
	}}
	o := NewOrchestrator(runner, &stubLoader{}, &stubSink{})
	rec := newSessionRecorder()
	o.SetObserver(rec)

	_, err := o.Start(context.Background(), uuid.New(), DepthShallow)
	require.NoError(t, err)
	rec.waitTerminal(t)

	snap, _ := o.Snapshot()
	assert.Equal(t, SessionCompleted, snap.Status)
	for _, step := range snap.Steps {
		if step.Kind == StepCrossReferenceLinking {
			assert.Equal(t, StepSkipped, step.Status)
		}
	}
}

func TestMissingDocumentSkipsEveryStep(t *testing.T) {
	sink := &stubSink{}
	o := NewOrchestrator(&stubRunner{}, &stubLoader{err: ErrDocumentNotFound}, sink)
	rec := newSessionRecorder()
	o.SetObserver(rec)

	_, err := o.Start(context.Background(), uuid.New(), DepthShallow)
	require.NoError(t, err)
	rec.waitTerminal(t)

	snap, _ := o.Snapshot()
	assert.Equal(t, SessionCompleted, snap.Status)
	assert.Equal(t, 0, snap.TotalInsights)
	assert.Equal(t, 0, sink.callCount())
	for _, step := range snap.Steps {
		assert.Equal(t, StepSkipped, step.Status)
	}
}

func TestZeroInsightsIsSuccess(t *testing.T) {
	sink := &stubSink{}
	runner := &stubRunner{fn: func(step StepKind, prior []Insight) ([]Insight, error) {
		return nil, nil
	}}
	o := NewOrchestrator(runner, &stubLoader{}, sink)
	rec := newSessionRecorder()
	o.SetObserver(rec)

	_, err := o.Start(context.Background(), uuid.New(), DepthShallow)
	require.NoError(t, err)
	rec.waitTerminal(t)

	snap, _ := o.Snapshot()
	assert.Equal(t, SessionCompleted, snap.Status)
	assert.Equal(t, 0, snap.TotalInsights)
	assert.Equal(t, 0, sink.callCount())
	for _, step := range snap.Steps {
		assert.Equal(t, StepCompleted, step.Status)
	}
}

func TestControlFromWrongState(t *testing.T) {
	runner := &stubRunner{gate: make(chan struct{})}
	o := NewOrchestrator(runner, &stubLoader{}, &stubSink{})

	_, err := o.Start(context.Background(), uuid.New(), DepthShallow)
	require.NoError(t, err)

	// Resume is only legal from paused.
	assert.ErrorIs(t, o.Resume(), ErrInvalidTransition)

	require.NoError(t, o.Stop())
	close(runner.gate)

	assert.ErrorIs(t, o.Resume(), ErrInvalidTransition)
	assert.ErrorIs(t, o.Pause(), ErrInvalidTransition)
}

func TestControlWithoutSession(t *testing.T) {
	o := NewOrchestrator(&stubRunner{}, &stubLoader{}, &stubSink{})

	assert.ErrorIs(t, o.Pause(), ErrNoSession)
	assert.ErrorIs(t, o.Resume(), ErrNoSession)
	assert.ErrorIs(t, o.Stop(), ErrNoSession)

	_, ok := o.Snapshot()
	assert.False(t, ok)
	assert.Equal(t, 0.0, o.Progress())
}
