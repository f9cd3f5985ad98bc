// Package realtime is the in-process change notification bus behind the
// operator SSE stream. Events are numbered with a strictly increasing
// sequence and fanned out without blocking the publisher: a subscriber whose
// buffer is full loses the event. There is no replay.
package realtime

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultBuffer is the per-subscriber channel capacity used when a caller
// passes a non-positive buffer.
const DefaultBuffer = 64

// Bus fans events out to subscribers. The zero value is not usable; call New.
type Bus struct {
	seq atomic.Int64
	now func() time.Time

	mu      sync.Mutex
	subs    map[*Subscription]struct{}
	stopped bool
}

// Subscription receives events on C until it is closed or the bus stops.
type Subscription struct {
	C <-chan Event

	ch     chan Event
	chatID string
	bus    *Bus
	closed bool
}

// ChatID is the scope of the subscription; "" is the global scope.
func (s *Subscription) ChatID() string { return s.chatID }

// New returns an empty bus.
func New() *Bus {
	return &Bus{now: time.Now, subs: make(map[*Subscription]struct{})}
}

// Start ties the bus lifetime to ctx: when ctx ends, the bus stops.
func (b *Bus) Start(ctx context.Context) {
	go func() {
		<-ctx.Done()
		b.Stop()
	}()
}

// Stop closes every subscription. Later subscriptions are returned closed
// and later publishes reach nobody.
func (b *Bus) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		return
	}
	b.stopped = true
	for s := range b.subs {
		b.detachLocked(s)
	}
}

// MakeEvent stamps a sequence number and timestamp without publishing.
// Used for per-connection hello and ping frames.
func (b *Bus) MakeEvent(t EventType) Event {
	return b.stamp(Event{Type: t})
}

func (b *Bus) stamp(e Event) Event {
	e.Seq = b.seq.Add(1)
	e.TS = b.now().UnixMilli()
	return e
}

// Publish stamps e and delivers it to every interested subscriber. The
// sequence is assigned under the bus lock so delivery order matches seq order.
func (b *Bus) Publish(e Event) Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	e = b.stamp(e)
	publishedEvents.WithLabelValues(string(e.Type)).Inc()
	if b.stopped {
		return e
	}
	for s := range b.subs {
		if !s.wants(e) {
			continue
		}
		select {
		case s.ch <- e:
		default:
			droppedEvents.Inc()
		}
	}
	return e
}

// Subscribe registers a subscriber. chatID "" receives every event except
// message_created; a chat scope receives only that chat's events.
func (b *Bus) Subscribe(chatID string, buffer int) *Subscription {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	ch := make(chan Event, buffer)
	s := &Subscription{C: ch, ch: ch, chatID: chatID, bus: b}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		s.closed = true
		close(ch)
		return s
	}
	b.subs[s] = struct{}{}
	subscribersGauge.Inc()
	return s
}

// Close deregisters the subscription and closes C. It is idempotent.
func (s *Subscription) Close() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	s.bus.detachLocked(s)
}

func (b *Bus) detachLocked(s *Subscription) {
	if s.closed {
		return
	}
	s.closed = true
	delete(b.subs, s)
	close(s.ch)
	subscribersGauge.Dec()
}

// Subscribers returns the number of live subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func (s *Subscription) wants(e Event) bool {
	if s.chatID == "" {
		return e.Type != EventMessageCreated
	}
	if e.Type == EventPing || e.Type == EventHello {
		return true
	}
	return e.ChatID == s.chatID
}
