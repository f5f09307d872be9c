package learning

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrSessionActive rejects starting while a session is running or
	// paused; two orchestrations racing on one document is a
	// programming error, not something to silently restart.
	ErrSessionActive = errors.New("a learning session is already active")

	// ErrInvalidTransition rejects control calls from the wrong state.
	ErrInvalidTransition = errors.New("invalid session transition")

	// ErrNoSession rejects control calls before any session started.
	ErrNoSession = errors.New("no learning session")

	// ErrDocumentNotFound lets the loader report a missing document;
	// the affected step resolves as skipped.
	ErrDocumentNotFound = errors.New("document not found")
)

// SnapshotLoader fetches the current document snapshot for a step.
type SnapshotLoader interface {
	LoadDocument(ctx context.Context, documentID uuid.UUID) (DocumentSnapshot, error)
}

// InsightSink materializes a step's insights into document content and
// reports how many pages and blocks were created.
type InsightSink interface {
	AppendInsights(ctx context.Context, documentID, runID uuid.UUID, iteration int, step StepKind, insights []Insight) (pagesCreated, blocksCreated int, err error)
}

// SessionObserver receives a session snapshot after every visible
// change (step transition, pause, resume, terminal transition).
type SessionObserver interface {
	OnSessionUpdate(s Session)
}

// Orchestrator drives the learning-session state machine: N passes over
// the fixed step table, strictly sequential, with pause/resume/stop
// control at step boundaries. One orchestrator serves one document
// context; starting a session replaces the previous terminal one.
type Orchestrator struct {
	mu   sync.Mutex
	cond *sync.Cond

	session  *Session
	runner   StepRunner
	loader   SnapshotLoader
	sink     InsightSink
	observer SessionObserver

	cancel context.CancelFunc
	now    func() time.Time
}

func NewOrchestrator(runner StepRunner, loader SnapshotLoader, sink InsightSink) *Orchestrator {
	o := &Orchestrator{
		runner: runner,
		loader: loader,
		sink:   sink,
		now:    time.Now,
	}
	o.cond = sync.NewCond(&o.mu)
	return o
}

// SetObserver wires session updates to an outer layer. Call before
// Start.
func (o *Orchestrator) SetObserver(obs SessionObserver) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.observer = obs
}

// Start begins a new session. Valid only when no session exists or the
// previous one is terminal; an active session must be stopped first.
func (o *Orchestrator) Start(ctx context.Context, documentID uuid.UUID, depth Depth) (Session, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.session != nil && !o.session.Status.Terminal() {
		return Session{}, ErrSessionActive
	}

	sess := &Session{
		ID:            uuid.New(),
		DocumentID:    documentID,
		Status:        SessionIdle,
		Depth:         depth,
		Iteration:     1,
		MaxIterations: depth.Iterations(),
		Steps:         newSteps(),
		StartedAt:     o.now(),
	}
	if err := o.setStatusLocked(sess, SessionRunning); err != nil {
		return Session{}, err
	}
	o.session = sess

	rctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	o.cancel = cancel

	go o.run(rctx, sess)

	o.notifyLocked(sess)
	return sess.clone(), nil
}

// Pause stops the session before the next step boundary; an in-flight
// step is allowed to finish. Valid only from running.
func (o *Orchestrator) Pause() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.session == nil {
		return ErrNoSession
	}
	if err := o.setStatusLocked(o.session, SessionPaused); err != nil {
		return err
	}
	o.notifyLocked(o.session)
	return nil
}

// Resume continues a paused session at the next unexecuted step.
func (o *Orchestrator) Resume() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.session == nil {
		return ErrNoSession
	}
	if err := o.setStatusLocked(o.session, SessionRunning); err != nil {
		return err
	}
	o.cond.Broadcast()
	o.notifyLocked(o.session)
	return nil
}

// Stop transitions directly to stopped, discarding remaining pending
// steps (they keep their pending status). Immediately observable in
// Status; the worker goroutine unwinds asynchronously. Stopping an
// already-terminal session is a no-op.
func (o *Orchestrator) Stop() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.session == nil {
		return ErrNoSession
	}
	if o.session.Status.Terminal() {
		return nil
	}
	if err := o.setStatusLocked(o.session, SessionStopped); err != nil {
		return err
	}
	t := o.now()
	o.session.FinishedAt = &t
	if o.cancel != nil {
		o.cancel()
	}
	o.cond.Broadcast()
	o.notifyLocked(o.session)
	return nil
}

// Snapshot returns a copy of the current session state, or false when
// no session was ever started.
func (o *Orchestrator) Snapshot() (Session, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.session == nil {
		return Session{}, false
	}
	return o.session.clone(), true
}

// Progress returns the current session progress in [0, 1].
func (o *Orchestrator) Progress() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.session == nil {
		return 0
	}
	return o.session.Progress()
}

// Shutdown stops any active session. Used when a session context is
// evicted.
func (o *Orchestrator) Shutdown() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.session == nil || o.session.Status.Terminal() {
		return
	}
	o.setStatusLocked(o.session, SessionStopped)
	t := o.now()
	o.session.FinishedAt = &t
	if o.cancel != nil {
		o.cancel()
	}
	o.cond.Broadcast()
}

// run is the worker loop. Steps run strictly sequentially: step N+1
// never begins before step N resolves. A step error is non-fatal to the
// pass; only stop or exhausting all iterations ends the session.
func (o *Orchestrator) run(ctx context.Context, sess *Session) {
	for {
		o.mu.Lock()
		for sess.Status == SessionPaused {
			o.cond.Wait()
		}
		if sess.Status != SessionRunning {
			o.mu.Unlock()
			return
		}

		idx := nextPending(sess.Steps)
		if idx < 0 {
			// Pass finished.
			if sess.Iteration >= sess.MaxIterations {
				o.setStatusLocked(sess, SessionCompleted)
				t := o.now()
				sess.FinishedAt = &t
				o.notifyLocked(sess)
				o.mu.Unlock()
				return
			}
			sess.Iteration++
			sess.Steps = newSteps()
			o.notifyLocked(sess)
			o.mu.Unlock()
			continue
		}

		sess.Steps[idx].Status = StepRunning
		kind := sess.Steps[idx].Kind
		docID := sess.DocumentID
		runID := sess.ID
		iteration := sess.Iteration
		prior := priorInsights(sess.Steps[:idx])
		o.notifyLocked(sess)
		o.mu.Unlock()

		insights, runErr := o.executeStep(ctx, kind, docID, prior)

		o.mu.Lock()
		if sess.Status == SessionStopped {
			// Result of the in-flight step is discarded on stop.
			o.mu.Unlock()
			return
		}

		completed := false
		switch {
		case errors.Is(runErr, ErrSkipStep) || errors.Is(runErr, ErrDocumentNotFound):
			sess.Steps[idx].Status = StepSkipped
		case runErr != nil:
			sess.Steps[idx].Status = StepError
			sess.Steps[idx].Error = runErr.Error()
		default:
			sess.Steps[idx].Status = StepCompleted
			sess.Steps[idx].Insights = insights
			sess.TotalInsights += len(insights)
			completed = true
		}
		o.notifyLocked(sess)
		o.mu.Unlock()

		if completed && len(insights) > 0 && o.sink != nil {
			pages, blocks, err := o.sink.AppendInsights(ctx, docID, runID, iteration, kind, insights)
			o.mu.Lock()
			if err == nil && sess.Status != SessionStopped {
				sess.TotalPagesCreated += pages
				sess.TotalBlocksCreated += blocks
				o.notifyLocked(sess)
			}
			o.mu.Unlock()
		}
	}
}

func (o *Orchestrator) executeStep(ctx context.Context, kind StepKind, docID uuid.UUID, prior []Insight) ([]Insight, error) {
	snapshot, err := o.loader.LoadDocument(ctx, docID)
	if err != nil {
		return nil, err
	}
	return o.runner.RunStep(ctx, kind, snapshot, prior)
}

// setStatusLocked applies a status change through the transition table;
// it is the only place Session.Status is written. Callers hold o.mu.
func (o *Orchestrator) setStatusLocked(sess *Session, to SessionStatus) error {
	if !CanTransition(sess.Status, to) {
		return ErrInvalidTransition
	}
	sess.Status = to
	return nil
}

func (o *Orchestrator) notifyLocked(sess *Session) {
	if o.observer == nil {
		return
	}
	o.observer.OnSessionUpdate(sess.clone())
}

func nextPending(steps []Step) int {
	for i, s := range steps {
		if s.Status == StepPending {
			return i
		}
	}
	return -1
}

func priorInsights(steps []Step) []Insight {
	var out []Insight
	for _, s := range steps {
		out = append(out, s.Insights...)
	}
	return out
}
