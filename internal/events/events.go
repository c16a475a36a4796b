// Package events implements the event bus of spec.md §4.9: multiple
// subscribers, each owning a bounded queue guarded by a mutex+condvar.
// Sending an event copies it into every subscriber's queue and signals
// its condvar; a subscriber either polls Wait directly or attaches a
// listener goroutine that loops wait -> callback.
//
// Grounded on original_source/src/xine-engine/events.c
// (xine_event_send/_wait/_dispose_queue and its listener-thread option)
// and the teacher's distribution.Relay, whose map-of-sessions-under-
// RWMutex fan-out is the same shape generalized here to event queues
// instead of viewer sockets.
package events

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/zsiec/xine-engine/internal/media"
)

// Kind identifies an event's payload shape, per spec.md §6's event type
// list plus the internal Quit sentinel used to unblock a disposed
// subscriber's Wait.
type Kind int

const (
	KindQuit Kind = iota
	KindStreamFinished
	KindChannelsChanged
	KindVideoOutputChanged
	KindNoVideo
	KindFrameFormatChange
	KindCodecChanged
	KindInput
	// KindOpenFailed is posted by the engine facade when play() cannot
	// find an input or demuxer plugin for an MRL, or the demuxer fails
	// to start, per spec.md §4.10's "on failure ... posts a diagnostic
	// event".
	KindOpenFailed
)

// Event is the single payload type carried by the bus; only the fields
// relevant to Kind are populated.
type Event struct {
	Kind Kind

	MRL string

	Width, Height int
	Aspect        media.AspectCode

	Class, OldFamily, NewFamily media.Kind
	Handled                     bool

	InputKind int
	InputData []byte
	X, Y      int
}

// defaultQueueCapacity is used by Subscribe; matches the teacher's
// audioCacheSize-style "small bounded buffer, not unbounded growth"
// choice for a per-consumer queue that is diagnostic, not data-path.
const defaultQueueCapacity = 64

// Subscriber is one listener's bounded event queue.
type Subscriber struct {
	id string

	mu     sync.Mutex
	cond   sync.Cond
	queue  []Event
	cap    int
	closed bool

	listenerDone chan struct{}
}

func newSubscriber(capacity int) *Subscriber {
	if capacity <= 0 {
		capacity = defaultQueueCapacity
	}
	s := &Subscriber{id: uuid.NewString(), cap: capacity}
	s.cond.L = &s.mu
	return s
}

// ID returns the subscriber's identity, used by Bus to track it in its
// subscriber map.
func (s *Subscriber) ID() string { return s.id }

// push enqueues evt, dropping the oldest queued event if the subscriber
// is already at capacity: a slow diagnostic listener must never exert
// backpressure on the senders (decoder/worker/engine threads), unlike
// the data-path FIFOs of spec.md §4.1, which block full producers.
func (s *Subscriber) push(evt Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if len(s.queue) >= s.cap {
		s.queue = s.queue[1:]
	}
	s.queue = append(s.queue, evt)
	s.cond.Signal()
}

// Wait blocks until an event arrives, the subscriber is disposed, or ctx
// is cancelled; ok is false in the latter two cases (mirroring the Quit
// sentinel described in spec.md §4.9).
func (s *Subscriber) Wait(ctx context.Context) (evt Event, ok bool) {
	if ctx != nil && ctx.Done() != nil {
		stop := make(chan struct{})
		defer close(stop)
		go func() {
			select {
			case <-ctx.Done():
				s.cond.Broadcast()
			case <-stop:
			}
		}()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		if len(s.queue) > 0 {
			evt = s.queue[0]
			s.queue = s.queue[1:]
			if evt.Kind == KindQuit {
				return Event{}, false
			}
			return evt, true
		}
		if s.closed {
			return Event{}, false
		}
		if ctx != nil {
			select {
			case <-ctx.Done():
				return Event{}, false
			default:
			}
		}
		s.cond.Wait()
	}
}

// Listen attaches a listener goroutine that loops Wait -> cb until the
// subscriber is disposed, per spec.md §4.9's optional listener-thread
// pattern.
func (s *Subscriber) Listen(cb func(Event)) {
	s.listenerDone = make(chan struct{})
	go func() {
		defer close(s.listenerDone)
		for {
			evt, ok := s.Wait(context.Background())
			if !ok {
				return
			}
			cb(evt)
		}
	}()
}

// dispose self-posts Quit, joins the listener goroutine if one was
// started, drains any remaining events, and marks the subscriber closed
// so any other blocked Wait returns immediately.
func (s *Subscriber) dispose() {
	s.push(Event{Kind: KindQuit})
	if s.listenerDone != nil {
		<-s.listenerDone
	}
	s.mu.Lock()
	s.closed = true
	s.queue = nil
	s.mu.Unlock()
	s.cond.Broadcast()
}

// Bus is the event bus of spec.md §4.9: one instance per engine, shared
// by every component that wants to publish diagnostics.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]*Subscriber
}

// New creates an empty Bus.
func New() *Bus {
	return &Bus{subscribers: make(map[string]*Subscriber)}
}

// Subscribe registers a new Subscriber with the given queue capacity (0
// for the default) and returns it.
func (b *Bus) Subscribe(capacity int) *Subscriber {
	s := newSubscriber(capacity)
	b.mu.Lock()
	b.subscribers[s.id] = s
	b.mu.Unlock()
	return s
}

// Unsubscribe disposes s (per Subscriber.dispose) and removes it from
// the bus.
func (b *Bus) Unsubscribe(s *Subscriber) {
	b.mu.Lock()
	delete(b.subscribers, s.id)
	b.mu.Unlock()
	s.dispose()
}

// Send copies evt into every currently-registered subscriber's queue.
func (b *Bus) Send(evt Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, s := range b.subscribers {
		s.push(evt)
	}
}

// SubscriberCount reports how many subscribers are currently registered.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
