package assistant

import (
	"context"
	"errors"
	"strings"
	"sync"

	"research-assistant-be/pkg/llm"
)

// ErrorKind classifies streaming failures for the caller.
type ErrorKind string

const (
	ErrKindTransport ErrorKind = "transport"
	ErrKindProvider  ErrorKind = "provider"
	ErrKindMalformed ErrorKind = "malformed"
)

// Callback contracts. onToken fires zero or more times with fragments in
// delivery order; onDone fires exactly once on success with the full
// concatenated text; onError fires exactly once on failure and is
// mutually exclusive with onDone. After an abort no callback fires at
// all: "no more callbacks" is the cancellation contract.
type (
	TokenFunc func(fragment string)
	DoneFunc  func(finalText string)
	ErrorFunc func(kind ErrorKind)
)

// Channel wraps one in-flight streaming request against a provider.
// All callback dispatch is serialized under the mutex handed to
// OpenChannel (the owning store's lock), so callbacks may mutate store
// state directly without further locking.
type Channel struct {
	mu     *sync.Mutex
	cancel context.CancelFunc
	closed bool
	buf    strings.Builder

	onToken TokenFunc
	onDone  DoneFunc
	onError ErrorFunc
}

// OpenChannel validates its arguments synchronously, then issues the
// provider request from a background goroutine so the caller is never
// blocked on the network. Setup failures surface through onError.
func OpenChannel(
	ctx context.Context,
	mu *sync.Mutex,
	provider llm.StreamingProvider,
	history []llm.Message,
	opts []llm.Option,
	onToken TokenFunc,
	onDone DoneFunc,
	onError ErrorFunc,
) (*Channel, error) {
	if mu == nil {
		return nil, errors.New("open channel: nil dispatch mutex")
	}
	if provider == nil {
		return nil, errors.New("open channel: nil provider")
	}
	if onToken == nil || onDone == nil || onError == nil {
		return nil, errors.New("open channel: nil callback")
	}

	cctx, cancel := context.WithCancel(ctx)
	c := &Channel{
		mu:      mu,
		cancel:  cancel,
		onToken: onToken,
		onDone:  onDone,
		onError: onError,
	}

	go c.pump(cctx, provider, history, opts)

	return c, nil
}

func (c *Channel) pump(ctx context.Context, provider llm.StreamingProvider, history []llm.Message, opts []llm.Option) {
	stream, err := provider.ChatStream(ctx, history, opts...)
	if err != nil {
		c.dispatchError(err)
		return
	}

	// Keep draining after close/abort so the provider goroutine can
	// always finish; dispatch below is a no-op once closed.
	for chunk := range stream {
		switch {
		case chunk.Err != nil:
			c.dispatchError(chunk.Err)
		case chunk.Done:
			c.dispatchDone()
		default:
			c.dispatchToken(chunk.Delta)
		}
	}
}

func (c *Channel) dispatchToken(fragment string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || fragment == "" {
		return
	}
	c.buf.WriteString(fragment)
	c.onToken(fragment)
}

func (c *Channel) dispatchDone() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.cancel()
	c.onDone(c.buf.String())
}

func (c *Channel) dispatchError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.cancel()
	// An abort races its own teardown: cancellation is not an error and
	// triggers no callback.
	if errors.Is(err, context.Canceled) {
		return
	}
	c.onError(classifyError(err))
}

// Abort requests cancellation. After it returns no further callbacks
// fire, even though provider-side teardown is asynchronous. Idempotent.
func (c *Channel) Abort() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.abortLocked()
}

// abortLocked is the store-side abort path; the caller holds c.mu.
func (c *Channel) abortLocked() {
	if c.closed {
		return
	}
	c.closed = true
	c.cancel()
}

func classifyError(err error) ErrorKind {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "malformed"):
		return ErrKindMalformed
	case strings.Contains(msg, "api error") || strings.Contains(msg, "returned error") ||
		strings.Contains(msg, "status "):
		return ErrKindProvider
	default:
		return ErrKindTransport
	}
}
