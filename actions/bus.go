package actions

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrBusClosed is returned by Get once the bus is closed and drained.
var ErrBusClosed = errors.New("action bus closed")

// Source names used in envelopes.
const (
	SourceGesture    = "gesture"
	SourceClassifier = "classifier"
	SourceVoice      = "voice"
	SourceRemote     = "remote"
	SourceCLI        = "cli"
)

// Envelope is an action plus the metadata needed to trace it.
type Envelope struct {
	ID     string
	Source string
	Time   time.Time
	Action Action
}

// NewEnvelope wraps an action with a fresh ID and the current time.
func NewEnvelope(source string, a Action) Envelope {
	return Envelope{
		ID:     uuid.NewString(),
		Source: source,
		Time:   time.Now(),
		Action: a,
	}
}

// Sink is what producers emit actions into.
type Sink interface {
	Emit(a Action)
}

// Observer is notified of every envelope accepted by the bus.
type Observer func(env Envelope)

// Bus is an unbounded multi-producer, single-consumer FIFO of envelopes.
// Put never blocks. Order is preserved per producer; across producers it is
// the order of arrival.
type Bus struct {
	mu        sync.Mutex
	queue     []Envelope
	closed    bool
	dropped   int
	observers []Observer

	signal chan struct{}
	done   chan struct{}
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Observe registers fn to be called after each accepted Put.
func (b *Bus) Observe(fn Observer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.observers = append(b.observers, fn)
}

// Put enqueues env. After Close the envelope is dropped.
func (b *Bus) Put(env Envelope) {
	b.mu.Lock()
	if b.closed {
		b.dropped++
		b.mu.Unlock()
		return
	}
	b.queue = append(b.queue, env)
	observers := b.observers
	b.mu.Unlock()

	select {
	case b.signal <- struct{}{}:
	default:
	}

	for _, fn := range observers {
		fn(env)
	}
}

// Get returns the oldest envelope, blocking until one is available, the
// context is done or the bus is closed and empty.
func (b *Bus) Get(ctx context.Context) (Envelope, error) {
	for {
		b.mu.Lock()
		if len(b.queue) > 0 {
			env := b.queue[0]
			b.queue[0] = Envelope{}
			b.queue = b.queue[1:]
			if len(b.queue) == 0 {
				b.queue = nil
			}
			b.mu.Unlock()
			return env, nil
		}
		closed := b.closed
		b.mu.Unlock()

		if closed {
			return Envelope{}, ErrBusClosed
		}

		select {
		case <-b.signal:
		case <-b.done:
		case <-ctx.Done():
			return Envelope{}, ctx.Err()
		}
	}
}

// GetTimeout waits at most d for an envelope. The boolean is false when
// nothing arrived in time or the bus is closed and empty.
func (b *Bus) GetTimeout(d time.Duration) (Envelope, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()

	env, err := b.Get(ctx)
	if err != nil {
		return Envelope{}, false
	}
	return env, true
}

// Len returns the number of queued envelopes.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// Dropped returns how many envelopes were put after Close.
func (b *Bus) Dropped() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// Close stops accepting envelopes. Queued envelopes can still be drained.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.done)
}

// Emitter returns a Sink that stamps every action with source.
func (b *Bus) Emitter(source string) *Emitter {
	return &Emitter{bus: b, source: source}
}

// Emitter puts actions on a bus under a fixed source name.
type Emitter struct {
	bus    *Bus
	source string
}

// Emit implements Sink.
func (e *Emitter) Emit(a Action) {
	e.bus.Put(NewEnvelope(e.source, a))
}

// Source returns the name stamped on emitted envelopes.
func (e *Emitter) Source() string {
	return e.source
}
