package event

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Event is a single message on the bus. Events are immutable once created.
type Event struct {
	// Topic is the event type.
	Topic Topic

	// Payload carries topic-specific data.
	Payload any

	// ID uniquely identifies this event instance.
	ID string

	// Time is when the event was created.
	Time time.Time

	// Source names the component that published the event.
	Source string
}

// New creates an event with a fresh ID and timestamp.
func New(topic Topic, payload any, source string) Event {
	return Event{
		Topic:   topic,
		Payload: payload,
		ID:      uuid.NewString(),
		Time:    time.Now(),
		Source:  source,
	}
}

// Handler processes a delivered event. A non-nil error is recorded in the
// bus statistics but not propagated.
type Handler func(ctx context.Context, ev Event) error

// Subscription is an active registration on the bus.
type Subscription struct {
	id      string
	pattern Topic
	handler Handler
	active  atomic.Bool
	bus     *Bus
}

// ID returns the subscription identifier.
func (s *Subscription) ID() string { return s.id }

// Pattern returns the subscribed topic pattern.
func (s *Subscription) Pattern() Topic { return s.pattern }

// Cancel permanently removes the subscription. Safe to call repeatedly.
func (s *Subscription) Cancel() {
	if s.active.Swap(false) {
		s.bus.remove(s.id)
	}
}

// Stats reports bus activity counters.
type Stats struct {
	Published     uint64
	Delivered     uint64
	HandlerErrors uint64
}

// Bus is a synchronous topic-based event bus. Handlers run on the
// publishing goroutine, in subscription order.
type Bus struct {
	mu   sync.RWMutex
	subs []*Subscription

	published     atomic.Uint64
	delivered     atomic.Uint64
	handlerErrors atomic.Uint64
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers h for events matching pattern.
func (b *Bus) Subscribe(pattern Topic, h Handler) *Subscription {
	sub := &Subscription{
		id:      uuid.NewString(),
		pattern: pattern,
		handler: h,
		bus:     b,
	}
	sub.active.Store(true)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, sub)
	return sub
}

// Publish delivers ev to every matching active subscription, synchronously.
func (b *Bus) Publish(ctx context.Context, ev Event) {
	b.published.Add(1)

	b.mu.RLock()
	matched := make([]*Subscription, 0, len(b.subs))
	for _, sub := range b.subs {
		if sub.active.Load() && ev.Topic.Match(sub.pattern) {
			matched = append(matched, sub)
		}
	}
	b.mu.RUnlock()

	for _, sub := range matched {
		if err := sub.handler(ctx, ev); err != nil {
			b.handlerErrors.Add(1)
			continue
		}
		b.delivered.Add(1)
	}
}

// Stats returns a snapshot of the bus counters.
func (b *Bus) Stats() Stats {
	return Stats{
		Published:     b.published.Load(),
		Delivered:     b.delivered.Load(),
		HandlerErrors: b.handlerErrors.Load(),
	}
}

// remove deletes a subscription by ID.
func (b *Bus) remove(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, sub := range b.subs {
		if sub.id == id {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return
		}
	}
}
