package arbiter

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/dshills/autofmt/internal/dispatch"
	"github.com/dshills/autofmt/internal/doc"
	"github.com/dshills/autofmt/internal/event"
	"github.com/dshills/autofmt/internal/logging"
	"github.com/dshills/autofmt/internal/trigger"
)

// partition tracks the in-flight state for one document.
type partition struct {
	// generation counts triggers for this document. An operation may only
	// commit while its generation is still the partition's newest.
	generation uint64

	// cancel aborts the currently running operation, nil when idle.
	cancel context.CancelFunc
}

// Stats reports arbiter activity counters.
type Stats struct {
	Started    uint64
	Superseded uint64
	Completed  uint64
	Failed     uint64
}

// Arbiter groups the merged trigger stream by document and runs at most one
// formatting operation per document at a time.
type Arbiter struct {
	mu         sync.Mutex
	dispatcher *dispatch.Dispatcher
	log        *logging.Logger
	partitions map[string]*partition
	subs       []*event.Subscription
	closed     bool

	wg sync.WaitGroup

	started    atomic.Uint64
	superseded atomic.Uint64
	completed  atomic.Uint64
	failed     atomic.Uint64
}

// Option configures an Arbiter.
type Option func(*Arbiter)

// WithLogger sets the arbiter's logger.
func WithLogger(log *logging.Logger) Option {
	return func(a *Arbiter) {
		a.log = log
	}
}

// New creates an arbiter that hands triggers to d.
func New(d *dispatch.Dispatcher, opts ...Option) *Arbiter {
	a := &Arbiter{
		dispatcher: d,
		log:        logging.Nop(),
		partitions: make(map[string]*partition),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Attach subscribes the arbiter to the trigger and lifecycle topics on bus.
func (a *Arbiter) Attach(bus *event.Bus) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.subs = append(a.subs,
		bus.Subscribe("trigger.*", a.onTrigger),
		bus.Subscribe(event.TopicDocumentDestroyed, a.onDestroyed),
	)
}

// Stop cancels every subscription and in-flight operation, then waits for
// the operation goroutines to drain.
func (a *Arbiter) Stop() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	subs := a.subs
	a.subs = nil
	for _, part := range a.partitions {
		if part.cancel != nil {
			part.cancel()
		}
	}
	a.partitions = make(map[string]*partition)
	a.mu.Unlock()

	for _, sub := range subs {
		sub.Cancel()
	}
	a.wg.Wait()
}

// Stats returns a snapshot of the arbiter counters.
func (a *Arbiter) Stats() Stats {
	return Stats{
		Started:    a.started.Load(),
		Superseded: a.superseded.Load(),
		Completed:  a.completed.Load(),
		Failed:     a.failed.Load(),
	}
}

// onTrigger starts processing for a trigger, abandoning any still-pending
// operation for the same document.
func (a *Arbiter) onTrigger(_ context.Context, ev event.Event) error {
	t, ok := ev.Payload.(*trigger.Trigger)
	if !ok {
		return nil
	}

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		// A save trigger past shutdown still owes its persistence.
		if t.Persist != nil {
			if err := t.Persist(); err != nil {
				a.log.Warn("persisting %s after shutdown failed: %v", t.Doc.ID(), err)
			}
		}
		return nil
	}

	id := t.Doc.ID()
	part := a.partitions[id]
	if part == nil {
		part = &partition{}
		a.partitions[id] = part
	}
	if part.cancel != nil {
		part.cancel()
		part.cancel = nil
		a.superseded.Add(1)
	}
	part.generation++
	gen := part.generation

	opCtx, cancel := context.WithCancel(context.Background())
	part.cancel = cancel
	a.mu.Unlock()

	a.started.Add(1)
	a.log.Debug("dispatching %s trigger for %s (gen %d)", t.Kind, id, gen)

	alive := func() bool { return a.current(id, gen) }

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer cancel()
		err := a.dispatcher.Dispatch(opCtx, t, alive)
		a.complete(id, gen, err)
	}()
	return nil
}

// onDestroyed tears down the document's partition with no further action.
func (a *Arbiter) onDestroyed(_ context.Context, ev event.Event) error {
	d, ok := ev.Payload.(doc.Document)
	if !ok {
		return nil
	}

	a.mu.Lock()
	part := a.partitions[d.ID()]
	if part != nil {
		if part.cancel != nil {
			part.cancel()
		}
		delete(a.partitions, d.ID())
	}
	a.mu.Unlock()

	if part != nil {
		a.log.Debug("document %s destroyed, partition dropped", d.ID())
	}
	return nil
}

// current reports whether gen is still the newest generation for id.
func (a *Arbiter) current(id string, gen uint64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return false
	}
	part := a.partitions[id]
	return part != nil && part.generation == gen
}

// complete marks the partition idle if the finishing operation is still its
// newest, and records the outcome.
func (a *Arbiter) complete(id string, gen uint64, err error) {
	a.mu.Lock()
	part := a.partitions[id]
	if part != nil && part.generation == gen {
		part.cancel = nil
	}
	a.mu.Unlock()

	if err != nil {
		a.failed.Add(1)
		return
	}
	a.completed.Add(1)
}
