// Package session holds the server-side state for one connected client
// between accept and disconnect: identity, nickname, joined rooms with
// their fan-in forwarders, and the outbound mailbox drained by the
// connection's write pump.
//
// Ownership:
// A Session is mutated only from the coordinator goroutine, which
// serializes every join, leave, and rename. The Mailbox is the one
// internally synchronized piece, because fan-in goroutines and the
// coordinator both enqueue while the connection loop drains.
package session

import (
	"fmt"

	"github.com/parley-im/parley/internal/v1/room"
	"github.com/parley-im/parley/internal/v1/wire"
)

// membership ties a joined room to its subscription and the fan-in
// goroutine forwarding broadcasts into the mailbox. The fan-in goroutine
// never holds a back-reference to the session; it only captures the
// mailbox handle.
type membership struct {
	sender room.Sender
	sub    *room.Subscription
	done   chan struct{}
}

// Session is the per-client server state.
type Session struct {
	ID       uint64
	Nickname string

	mailbox *Mailbox
	joined  map[string]*membership
}

// New creates a session with an empty nickname and no room memberships.
func New(id uint64, mailboxCap int) *Session {
	return &Session{
		ID:      id,
		mailbox: NewMailbox(mailboxCap),
		joined:  make(map[string]*membership),
	}
}

// Mailbox returns the outbound queue drained by the connection loop.
func (s *Session) Mailbox() *Mailbox {
	return s.mailbox
}

// Registered reports whether the session holds a nickname.
func (s *Session) Registered() bool {
	return s.Nickname != ""
}

// Enqueue appends an outbound message destined for this session's socket.
func (s *Session) Enqueue(msg wire.Message) {
	s.mailbox.Put(msg)
}

// Join subscribes the session to r and starts the fan-in goroutine that
// forwards each broadcast into the mailbox. Fails when the session already
// holds the room.
func (s *Session) Join(r *room.Room) error {
	if _, ok := s.joined[r.Name]; ok {
		return fmt.Errorf("session %d already joined %q", s.ID, r.Name)
	}

	sub, sender := r.Subscribe()
	m := &membership{
		sender: sender,
		sub:    sub,
		done:   make(chan struct{}),
	}
	s.joined[r.Name] = m

	go func(mailbox *Mailbox) {
		defer close(m.done)
		for msg := range sub.C() {
			mailbox.Put(msg)
		}
	}(s.mailbox)

	return nil
}

// Leave cancels the room's fan-in goroutine, releasing the subscription,
// and removes the membership record. Fails when the session does not hold
// the room. In-flight messages already read by the fan-in are still
// forwarded before it terminates.
func (s *Session) Leave(roomName string) error {
	m, ok := s.joined[roomName]
	if !ok {
		return fmt.Errorf("session %d is not in %q", s.ID, roomName)
	}

	m.sub.Cancel()
	<-m.done
	delete(s.joined, roomName)
	return nil
}

// RoomSender returns the publish handle for a joined room.
func (s *Session) RoomSender(roomName string) (room.Sender, bool) {
	m, ok := s.joined[roomName]
	if !ok {
		return room.Sender{}, false
	}
	return m.sender, true
}

// Holds reports whether the session has joined roomName.
func (s *Session) Holds(roomName string) bool {
	_, ok := s.joined[roomName]
	return ok
}

// Rooms returns the names of all joined rooms, unordered.
func (s *Session) Rooms() []string {
	names := make([]string, 0, len(s.joined))
	for name := range s.joined {
		names = append(names, name)
	}
	return names
}

// Close cancels every fan-in goroutine, waits for each to terminate, and
// closes the mailbox. Called by the coordinator when the session drops and
// again harmlessly at shutdown.
func (s *Session) Close() {
	for name, m := range s.joined {
		m.sub.Cancel()
		<-m.done
		delete(s.joined, name)
	}
	s.mailbox.Close()
}
