// Package room implements named broadcast topics and the registry that owns
// them. A Room fans a published message out to every current subscriber;
// it knows nothing about member identities, which are tracked by the
// coordinator.
//
// Concurrency Design:
// The broadcast primitive inside a Room is internally synchronized, so any
// number of senders and subscribers may operate concurrently. Rooms are
// immutable after creation apart from their subscriber set; a subscription
// is released by cancelling it, never by mutating the room.
package room

import (
	"errors"
	"sync"

	"github.com/parley-im/parley/internal/v1/metrics"
	"github.com/parley-im/parley/internal/v1/wire"
)

// DefaultBacklog is the per-subscriber broadcast buffer. A subscriber that
// falls further behind loses its oldest buffered messages; the publisher is
// never blocked.
const DefaultBacklog = 32

var (
	// ErrNoSubscribers is returned by Send when nobody is listening.
	ErrNoSubscribers = errors.New("room: no subscribers")

	// ErrExists is returned by Registry.Create for a duplicate name.
	ErrExists = errors.New("room: room already exists")

	// ErrNotFound is returned by Registry.Lookup for an unknown name.
	ErrNotFound = errors.New("room: no such room")
)

// Room is a single broadcast topic. Create rooms through a Registry so
// names stay unique.
type Room struct {
	Name string

	mu      sync.Mutex
	backlog int
	subs    map[*Subscription]struct{}
}

// New creates a room with the given per-subscriber backlog. A backlog of
// zero or less selects DefaultBacklog.
func New(name string, backlog int) *Room {
	if backlog <= 0 {
		backlog = DefaultBacklog
	}
	return &Room{
		Name:    name,
		backlog: backlog,
		subs:    make(map[*Subscription]struct{}),
	}
}

// Subscribe registers a new subscriber and returns its subscription
// together with a send handle for publishing into the room. The handle is
// a cheap copyable capability; it stays valid after the subscription is
// cancelled.
func (r *Room) Subscribe() (*Subscription, Sender) {
	sub := &Subscription{
		room: r,
		ch:   make(chan wire.Message, r.backlog),
	}

	r.mu.Lock()
	r.subs[sub] = struct{}{}
	r.mu.Unlock()

	return sub, Sender{room: r}
}

// SubscriberCount reports the current number of subscriptions.
func (r *Room) SubscriberCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}

// send delivers msg to every current subscriber exactly once. Sends are
// serialized under the room lock, so a single publisher observes strict
// FIFO. A full subscriber buffer sheds its oldest entry instead of
// blocking the publisher.
func (r *Room) send(msg wire.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.subs) == 0 {
		return ErrNoSubscribers
	}

	for sub := range r.subs {
		select {
		case sub.ch <- msg:
			continue
		default:
		}

		// Lossy-oldest: evict one, then retry once. The fan-in reader may
		// race the eviction, in which case the retry can still fail and
		// this message is the one dropped for that subscriber.
		select {
		case <-sub.ch:
			metrics.RoomMessagesDropped.WithLabelValues(r.Name).Inc()
		default:
		}
		select {
		case sub.ch <- msg:
		default:
			metrics.RoomMessagesDropped.WithLabelValues(r.Name).Inc()
		}
	}
	return nil
}

func (r *Room) unsubscribe(sub *Subscription) {
	r.mu.Lock()
	delete(r.subs, sub)
	r.mu.Unlock()
}

// Sender publishes messages into a room.
type Sender struct {
	room *Room
}

// Send broadcasts msg to every current subscriber of the room.
func (s Sender) Send(msg wire.Message) error {
	return s.room.send(msg)
}

// Subscription is one subscriber's view of a room. Receive from C until it
// is closed by Cancel.
type Subscription struct {
	room *Room

	once sync.Once
	ch   chan wire.Message
}

// C returns the channel broadcast messages arrive on.
func (s *Subscription) C() <-chan wire.Message {
	return s.ch
}

// Cancel removes the subscription from the room and closes C. Safe to call
// more than once. After Cancel returns no further message is delivered, so
// the channel close is the terminal event a fan-in reader observes.
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		s.room.unsubscribe(s)
		close(s.ch)
	})
}
