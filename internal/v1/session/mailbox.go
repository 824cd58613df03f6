package session

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/parley-im/parley/internal/v1/metrics"
	"github.com/parley-im/parley/internal/v1/wire"
)

// DefaultMailboxCap bounds the outbound queue of one session. The mailbox
// is conceptually unbounded FIFO; the cap exists so a stuck socket cannot
// hold arbitrary memory. Overflow sheds the oldest entries and surfaces a
// single notice frame per overflow episode.
const DefaultMailboxCap = 1024

// ErrMailboxClosed is returned by Get once the mailbox is closed and
// nothing remains to drain.
var ErrMailboxClosed = errors.New("session: mailbox closed")

// Mailbox is the per-session FIFO of outbound messages drained to the
// client socket. Producers are the coordinator and one fan-in goroutine
// per joined room; the connection write pump is the only consumer.
type Mailbox struct {
	capacity int

	// notify carries at most one wakeup token; Get re-checks the queue
	// after every wakeup so coalesced tokens are harmless.
	notify chan struct{}

	mu      sync.Mutex
	items   *list.List // of wire.Message
	dropped int
	closed  bool
}

// NewMailbox creates a mailbox shedding oldest entries beyond capacity.
// A capacity of zero or less selects DefaultMailboxCap.
func NewMailbox(capacity int) *Mailbox {
	if capacity <= 0 {
		capacity = DefaultMailboxCap
	}
	return &Mailbox{
		capacity: capacity,
		notify:   make(chan struct{}, 1),
		items:    list.New(),
	}
}

// Put appends msg to the queue. It never blocks: on overflow the oldest
// queued message is dropped instead. Puts after Close are discarded.
func (m *Mailbox) Put(msg wire.Message) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	if m.items.Len() >= m.capacity {
		if front := m.items.Front(); front != nil {
			m.items.Remove(front)
		}
		m.dropped++
		metrics.MailboxMessagesDropped.Inc()
	}
	m.items.PushBack(msg)
	m.mu.Unlock()

	m.wake()
}

// Get blocks until a message is available, the context is cancelled, or
// the mailbox is closed. After an overflow episode the first Get returns
// an out-of-band notice frame describing how many messages were shed.
func (m *Mailbox) Get(ctx context.Context) (wire.Message, error) {
	for {
		m.mu.Lock()
		if m.dropped > 0 {
			n := m.dropped
			m.dropped = 0
			m.mu.Unlock()
			notice, _ := wire.Build(wire.KindFailed, wire.ServerSender,
				wire.String("mailbox"), wire.String(fmt.Sprintf("Dropped %d queued messages", n)))
			return notice, nil
		}
		if front := m.items.Front(); front != nil {
			msg := m.items.Remove(front).(wire.Message)
			m.mu.Unlock()
			return msg, nil
		}
		closed := m.closed
		m.mu.Unlock()

		if closed {
			return wire.Message{}, ErrMailboxClosed
		}

		select {
		case <-ctx.Done():
			return wire.Message{}, ctx.Err()
		case <-m.notify:
		}
	}
}

// Len reports the number of queued messages.
func (m *Mailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.items.Len()
}

// Close marks the mailbox terminal. Messages already queued can still be
// drained by Get; new Puts are discarded. Idempotent.
func (m *Mailbox) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	m.wake()
}

func (m *Mailbox) wake() {
	select {
	case m.notify <- struct{}{}:
	default:
	}
}
