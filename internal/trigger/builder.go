package trigger

import (
	"context"
	"sync"
	"time"

	"github.com/dshills/autofmt/internal/doc"
	"github.com/dshills/autofmt/internal/event"
	"github.com/dshills/autofmt/internal/logging"
)

const defaultDebounce = time.Millisecond

// Builder attaches to one document and publishes its trigger stream onto
// the bus. Close detaches everything, including the save interception.
type Builder struct {
	mu sync.Mutex

	doc doc.Document
	bus *event.Bus
	log *logging.Logger

	debounce time.Duration

	// pending is the last change of the current debounce burst.
	pending *doc.ChangeEvent
	timer   *time.Timer

	restoreSave func()
	cancelFns   []func()
	closed      bool
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithDebounce sets the change-coalescing window. The default is one
// millisecond, standing in for "one scheduling tick".
func WithDebounce(d time.Duration) BuilderOption {
	return func(b *Builder) {
		b.debounce = d
	}
}

// WithLogger sets the builder's logger.
func WithLogger(log *logging.Logger) BuilderOption {
	return func(b *Builder) {
		b.log = log
	}
}

// NewBuilder wires a builder to d. When interceptSave is true the
// document's save action is captured so a Save trigger runs before
// persistence; when false saves proceed unmodified and never reach the
// formatting pipeline.
func NewBuilder(d doc.Document, bus *event.Bus, interceptSave bool, opts ...BuilderOption) (*Builder, error) {
	b := &Builder{
		doc:      d,
		bus:      bus,
		log:      logging.Nop(),
		debounce: defaultDebounce,
	}
	for _, opt := range opts {
		opt(b)
	}

	cancelChange := d.OnChange(b.onChange)
	b.cancelFns = append(b.cancelFns, cancelChange)

	if interceptSave {
		restore, err := d.InterceptSave(b.onSave)
		if err != nil {
			cancelChange()
			return nil, err
		}
		b.restoreSave = restore
	}

	cancelDestroy := d.OnDestroy(b.onDestroy)
	b.cancelFns = append(b.cancelFns, cancelDestroy)

	return b, nil
}

// Command publishes an explicit format trigger for the builder's document.
func (b *Builder) Command() {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return
	}
	b.publish(event.TopicTriggerCommand, NewCommand(b.doc))
}

// Close tears the builder down: observers removed, any pending debounce
// discarded, and the default save behavior restored. Idempotent.
func (b *Builder) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.pending = nil
	restore := b.restoreSave
	cancels := b.cancelFns
	b.restoreSave = nil
	b.cancelFns = nil
	b.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	if restore != nil {
		restore()
	}
}

// onChange coalesces change notifications: the first change of a burst arms
// the flush timer, later changes within the window replace the pending edit.
func (b *Builder) onChange(ev doc.ChangeEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}

	b.pending = &ev
	if b.timer == nil {
		b.timer = time.AfterFunc(b.debounce, b.flush)
	}
}

// flush publishes the coalesced change as a single Type trigger.
func (b *Builder) flush() {
	b.mu.Lock()
	pending := b.pending
	b.pending = nil
	b.timer = nil
	closed := b.closed
	b.mu.Unlock()

	if closed || pending == nil {
		return
	}
	b.publish(event.TopicTriggerType, NewType(b.doc, *pending))
}

// onSave runs in place of the document's default persistence. The emitted
// trigger carries a persist function that tolerates duplicate calls, so the
// exactly-once guarantee downstream only has to ensure at-least-once. A
// persistence failure is logged here and reported to every caller.
func (b *Builder) onSave() {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return
	}

	d := b.doc
	log := b.log
	var once sync.Once
	var perr error
	persist := func() error {
		once.Do(func() {
			perr = d.Persist()
			if perr != nil {
				log.Warn("persisting %s failed: %v", d.ID(), perr)
			}
		})
		return perr
	}
	b.publish(event.TopicTriggerSave, NewSave(d, persist))
}

// onDestroy publishes the terminal sentinel and closes the builder.
func (b *Builder) onDestroy() {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if !closed {
		b.bus.Publish(context.Background(), event.New(event.TopicDocumentDestroyed, b.doc, "trigger"))
	}
	b.Close()
}

func (b *Builder) publish(topic event.Topic, t *Trigger) {
	b.bus.Publish(context.Background(), event.New(topic, t, "trigger"))
}
