package coordinator

import (
	"context"
	"errors"
	"sync"

	"github.com/dshills/autofmt/internal/arbiter"
	"github.com/dshills/autofmt/internal/config"
	"github.com/dshills/autofmt/internal/dispatch"
	"github.com/dshills/autofmt/internal/doc"
	"github.com/dshills/autofmt/internal/event"
	"github.com/dshills/autofmt/internal/logging"
	"github.com/dshills/autofmt/internal/registry"
	"github.com/dshills/autofmt/internal/trigger"
)

// ErrNotTracked is returned when a formatting command names a document the
// coordinator is not observing.
var ErrNotTracked = errors.New("document is not tracked")

// ErrStopped is returned for operations on a stopped coordinator.
var ErrStopped = errors.New("coordinator is stopped")

// Coordinator binds the formatting pipeline to an editor.
type Coordinator struct {
	editor   doc.Editor
	cfg      *config.Config
	registry *registry.Registry
	log      *logging.Logger

	bus        *event.Bus
	dispatcher *dispatch.Dispatcher
	arbiter    *arbiter.Arbiter

	dispatchOpts []dispatch.Option

	mu       sync.Mutex
	builders map[string]*trigger.Builder
	cancels  []func()
	started  bool
	stopped  bool
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger shared across the pipeline components.
func WithLogger(log *logging.Logger) Option {
	return func(c *Coordinator) {
		c.log = log
	}
}

// WithDispatchOptions forwards options to the dispatcher.
func WithDispatchOptions(opts ...dispatch.Option) Option {
	return func(c *Coordinator) {
		c.dispatchOpts = append(c.dispatchOpts, opts...)
	}
}

// New creates a coordinator over editor, configured by cfg, formatting
// through the providers in reg. Call Start to attach.
func New(editor doc.Editor, cfg *config.Config, reg *registry.Registry, opts ...Option) *Coordinator {
	c := &Coordinator{
		editor:   editor,
		cfg:      cfg,
		registry: reg,
		log:      logging.Nop(),
		builders: make(map[string]*trigger.Builder),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start builds the pipeline and attaches to every open document, plus any
// document opened afterwards.
func (c *Coordinator) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return ErrStopped
	}
	if c.started {
		return nil
	}

	c.bus = event.NewBus()
	dopts := append([]dispatch.Option{dispatch.WithLogger(c.log.WithComponent("dispatch"))}, c.dispatchOpts...)
	c.dispatcher = dispatch.New(c.registry, c.settings, dopts...)
	c.arbiter = arbiter.New(c.dispatcher, arbiter.WithLogger(c.log.WithComponent("arbiter")))
	c.arbiter.Attach(c.bus)

	c.cancels = append(c.cancels,
		c.editor.OnDocumentOpen(c.track),
		c.bus.Subscribe(event.TopicDocumentDestroyed, c.onDestroyed).Cancel,
	)

	for _, d := range c.editor.Documents() {
		c.attachLocked(d)
	}
	c.started = true
	return nil
}

// Stop detaches from the editor, closes every builder (restoring default
// save behavior), and drains in-flight formatting work.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	if !c.started || c.stopped {
		c.stopped = true
		c.mu.Unlock()
		return
	}
	c.stopped = true
	cancels := c.cancels
	c.cancels = nil
	builders := make([]*trigger.Builder, 0, len(c.builders))
	for _, b := range c.builders {
		builders = append(builders, b)
	}
	c.builders = make(map[string]*trigger.Builder)
	arb := c.arbiter
	c.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	for _, b := range builders {
		b.Close()
	}
	if arb != nil {
		arb.Stop()
	}
}

// Format requests an explicit format of d, honoring its current selection.
func (c *Coordinator) Format(d doc.Document) error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return ErrStopped
	}
	b := c.builders[d.ID()]
	c.mu.Unlock()

	if b == nil {
		return ErrNotTracked
	}
	b.Command()
	return nil
}

// Stats returns the arbiter's activity counters.
func (c *Coordinator) Stats() arbiter.Stats {
	c.mu.Lock()
	arb := c.arbiter
	c.mu.Unlock()
	if arb == nil {
		return arbiter.Stats{}
	}
	return arb.Stats()
}

// track attaches a builder to a newly opened document.
func (c *Coordinator) track(d doc.Document) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	c.attachLocked(d)
}

// attachLocked wires d into the pipeline. Save interception follows the
// on_save setting as read at attach time; the dispatcher checks it again
// per trigger, so interception stays a superset of formatting.
func (c *Coordinator) attachLocked(d doc.Document) {
	id := d.ID()
	if _, ok := c.builders[id]; ok {
		return
	}

	intercept := c.cfg.Format().OnSave
	b, err := trigger.NewBuilder(d, c.bus, intercept, trigger.WithLogger(c.log.WithComponent("trigger")))
	if err != nil {
		c.log.Warn("cannot attach to document %s: %v", id, err)
		return
	}
	c.builders[id] = b
	c.log.Debug("tracking document %s (%s)", id, d.ContentType())
}

// onDestroyed prunes the destroyed document's builder entry. The builder
// closes itself on destruction; this only drops the map reference.
func (c *Coordinator) onDestroyed(_ context.Context, ev event.Event) error {
	d, ok := ev.Payload.(doc.Document)
	if !ok {
		return nil
	}
	c.mu.Lock()
	delete(c.builders, d.ID())
	c.mu.Unlock()
	return nil
}

// settings snapshots the configuration for one trigger.
func (c *Coordinator) settings() dispatch.Settings {
	f := c.cfg.Format()
	return dispatch.Settings{
		OnSave:       f.OnSave,
		OnType:       f.OnType,
		SaveTimeout:  f.SaveTimeout(),
		BracketPairs: f.BracketPairs,
		Exclude:      f.Exclude,
	}
}
