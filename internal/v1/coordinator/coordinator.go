// Package coordinator implements the single owner of the server's global
// state: the user directory (nickname↔id), the session directory, and the
// room registry. Every mutating operation arrives as an Event over one
// channel and is processed serially by the Run loop, so no other
// synchronization guards the directories and every state transition is a
// witnessable step.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/parley-im/parley/internal/v1/logging"
	"github.com/parley-im/parley/internal/v1/metrics"
	"github.com/parley-im/parley/internal/v1/room"
	"github.com/parley-im/parley/internal/v1/session"
	"github.com/parley-im/parley/internal/v1/wire"
)

// ErrShuttingDown is returned by Attach and Ask once the coordinator loop
// has exited.
var ErrShuttingDown = errors.New("coordinator: shutting down")

// DefaultRoom always exists; it is created with the registry at startup.
const DefaultRoom = "main"

type request struct {
	event Event
	reply chan Reply // buffered one slot; nil for fire-and-forget events
}

type attachRequest struct {
	reply chan *session.Session
}

// Coordinator serializes all access to the global directories. Construct
// with New, start Run in its own goroutine, and interact through Attach,
// Ask, and Notify.
type Coordinator struct {
	registry   *room.Registry
	mailboxCap int

	requests chan request
	attach   chan attachRequest
	done     chan struct{}

	// Owned exclusively by the Run goroutine.
	nextID       uint64
	nicknameToID map[string]uint64
	idToNickname map[uint64]string
	sessions     map[uint64]*session.Session
}

// New creates a coordinator around the given room registry. Session ids
// are assigned monotonically starting at 1; id 0 stays reserved for
// server-originated frames.
func New(registry *room.Registry, mailboxCap int) *Coordinator {
	metrics.ActiveRooms.Set(float64(registry.List().Len()))
	return &Coordinator{
		registry:     registry,
		mailboxCap:   mailboxCap,
		requests:     make(chan request),
		attach:       make(chan attachRequest),
		done:         make(chan struct{}),
		nextID:       1,
		nicknameToID: make(map[string]uint64),
		idToNickname: make(map[uint64]string),
		sessions:     make(map[uint64]*session.Session),
	}
}

// Run processes events until ctx is cancelled, then tears down every
// remaining session before returning. It must run in exactly one
// goroutine.
func (c *Coordinator) Run(ctx context.Context) {
	defer close(c.done)
	logging.Info(ctx, "coordinator started")

	for {
		select {
		case <-ctx.Done():
			c.shutdown(ctx)
			return
		case req := <-c.attach:
			req.reply <- c.newSession()
		case req := <-c.requests:
			c.handle(ctx, req.event, req.reply)
		}
	}
}

// Attach assigns the next session id, creates the session, and inserts it
// into the session directory. Called by the acceptor for every new
// connection.
func (c *Coordinator) Attach(ctx context.Context) (*session.Session, error) {
	req := attachRequest{reply: make(chan *session.Session, 1)}
	select {
	case c.attach <- req:
	case <-c.done:
		return nil, ErrShuttingDown
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case s := <-req.reply:
		return s, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Ask submits an event and waits for its reply.
func (c *Coordinator) Ask(ctx context.Context, ev Event) (Reply, error) {
	req := request{event: ev, reply: make(chan Reply, 1)}
	select {
	case c.requests <- req:
	case <-c.done:
		return nil, ErrShuttingDown
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case rep := <-req.reply:
		return rep, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Ready reports whether the event loop is serving requests. It is the
// readiness probe's dependency check: a listing request that the loop
// answers like any other.
func (c *Coordinator) Ready(ctx context.Context) error {
	_, err := c.Ask(ctx, List{Option: "allrooms"})
	return err
}

// Notify submits an event that expects no reply, such as Drop. It never
// blocks past shutdown.
func (c *Coordinator) Notify(ctx context.Context, ev Event) {
	select {
	case c.requests <- request{event: ev}:
	case <-c.done:
	case <-ctx.Done():
	}
}

func (c *Coordinator) newSession() *session.Session {
	id := c.nextID
	c.nextID++
	s := session.New(id, c.mailboxCap)
	c.sessions[id] = s
	return s
}

func (c *Coordinator) shutdown(ctx context.Context) {
	logging.Info(ctx, "coordinator shutting down", zap.Int("sessions", len(c.sessions)))
	for id, s := range c.sessions {
		s.Close()
		delete(c.sessions, id)
	}
	c.nicknameToID = make(map[string]uint64)
	c.idToNickname = make(map[uint64]string)
	metrics.RegisteredUsers.Set(0)
}

func (c *Coordinator) handle(ctx context.Context, ev Event, reply chan Reply) {
	rep := c.apply(ctx, ev)
	if reply != nil && rep != nil {
		reply <- rep
	}

	status := "ok"
	if _, failed := rep.(Failed); failed {
		status = "failed"
	}
	metrics.CommandsTotal.WithLabelValues(eventName(ev), status).Inc()
}

func (c *Coordinator) apply(ctx context.Context, ev Event) Reply {
	switch ev := ev.(type) {
	case Register:
		return c.register(ctx, ev)
	case ChangeName:
		return c.changeName(ctx, ev)
	case Join:
		return c.join(ctx, ev)
	case Leave:
		return c.leave(ctx, ev)
	case Create:
		return c.create(ctx, ev)
	case List:
		return c.list(ev)
	case SendTo:
		return c.sendTo(ev)
	case PrivMsg:
		return c.privMsg(ev)
	case Drop:
		c.drop(ctx, ev)
		return nil
	}
	return Failed{Reason: "Unknown event"}
}

func (c *Coordinator) register(ctx context.Context, ev Register) Reply {
	if _, taken := c.nicknameToID[ev.Nickname]; taken {
		return Failed{Reason: "Username already exists"}
	}
	s, ok := c.sessions[ev.ID]
	if !ok {
		return Failed{Reason: "No such session"}
	}

	// Re-registering replaces the previous nickname so the two mappings
	// stay mutually inverse.
	if s.Nickname != "" {
		delete(c.nicknameToID, s.Nickname)
	}
	s.Nickname = ev.Nickname
	c.nicknameToID[ev.Nickname] = ev.ID
	c.idToNickname[ev.ID] = ev.Nickname
	metrics.RegisteredUsers.Set(float64(len(c.nicknameToID)))

	logging.Info(ctx, "session registered", zap.Uint64("session_id", ev.ID), zap.String("nickname", ev.Nickname))
	return Registered{Nickname: ev.Nickname}
}

func (c *Coordinator) changeName(ctx context.Context, ev ChangeName) Reply {
	// Uniqueness is checked before the old mapping is removed.
	if _, taken := c.nicknameToID[ev.NewNickname]; taken {
		return Failed{Reason: "Username already exists"}
	}
	s, ok := c.sessions[ev.ID]
	if !ok {
		return Failed{Reason: "No such session"}
	}
	old, registered := c.idToNickname[ev.ID]
	if !registered {
		return Failed{Reason: "Not registered"}
	}

	s.Nickname = ev.NewNickname
	delete(c.nicknameToID, old)
	c.nicknameToID[ev.NewNickname] = ev.ID
	c.idToNickname[ev.ID] = ev.NewNickname

	logging.Info(ctx, "nickname changed", zap.Uint64("session_id", ev.ID),
		zap.String("old", old), zap.String("new", ev.NewNickname))
	return NameChanged{New: ev.NewNickname, Old: old}
}

func (c *Coordinator) join(ctx context.Context, ev Join) Reply {
	s, ok := c.sessions[ev.ID]
	if !ok {
		return Failed{Reason: "No such session"}
	}
	if s.Holds(ev.Room) {
		return Failed{Reason: "Already part of room"}
	}
	r, err := c.registry.Lookup(ev.Room)
	if err != nil {
		return Failed{Reason: "No such room"}
	}
	if err := s.Join(r); err != nil {
		return Failed{Reason: err.Error()}
	}

	logging.Debug(ctx, "session joined room", zap.Uint64("session_id", ev.ID), zap.String("room", ev.Room))
	return JoinedRoom{Room: ev.Room}
}

func (c *Coordinator) leave(ctx context.Context, ev Leave) Reply {
	s, ok := c.sessions[ev.ID]
	if !ok {
		return Failed{Reason: "No such session"}
	}
	if !s.Holds(ev.Room) {
		return Failed{Reason: "Not part of room"}
	}
	if err := s.Leave(ev.Room); err != nil {
		return Failed{Reason: err.Error()}
	}

	logging.Debug(ctx, "session left room", zap.Uint64("session_id", ev.ID), zap.String("room", ev.Room))
	return LeftRoom{Room: ev.Room}
}

func (c *Coordinator) create(ctx context.Context, ev Create) Reply {
	if _, err := c.registry.Create(ev.Room); err != nil {
		return Failed{Reason: "Room already exists"}
	}
	metrics.ActiveRooms.Set(float64(c.registry.List().Len()))

	logging.Info(ctx, "room created", zap.String("room", ev.Room))
	return CreatedRoom{Room: ev.Room}
}

func (c *Coordinator) list(ev List) Reply {
	switch ev.Option {
	case "users":
		users := make([]string, 0, len(c.nicknameToID))
		for nick := range c.nicknameToID {
			users = append(users, nick)
		}
		return ListingUsers{Content: strings.Join(users, ",")}
	case "rooms":
		s, ok := c.sessions[ev.ID]
		if !ok {
			return Failed{Reason: "No such session"}
		}
		return ListingUserRooms{Content: strings.Join(s.Rooms(), ",")}
	case "allrooms":
		return ListingRooms{Content: strings.Join(c.registry.List().UnsortedList(), ",")}
	default:
		return Failed{Reason: "Invalid option"}
	}
}

func (c *Coordinator) sendTo(ev SendTo) Reply {
	s, ok := c.sessions[ev.ID]
	if !ok {
		return Failed{Reason: "No such session"}
	}
	sender, joined := s.RoomSender(ev.Room)
	if !joined {
		return Failed{Reason: "Not part of room"}
	}

	// The nickname is bound here, at event-receipt time; a concurrent
	// ChangeName is serialized before or after this whole step.
	body := fmt.Sprintf("%s: %s", s.Nickname, ev.Content)
	msg, err := wire.Build(wire.KindRoomMessage, ev.ID, wire.String(ev.Room), wire.String(body))
	if err != nil {
		return Failed{Reason: err.Error()}
	}
	// The sender itself is subscribed, so the room cannot be empty.
	_ = sender.Send(msg)
	return MessagedRoom{}
}

func (c *Coordinator) privMsg(ev PrivMsg) Reply {
	sender, registered := c.idToNickname[ev.ID]
	if !registered {
		return Failed{Reason: "Not registered"}
	}
	targetID, ok := c.nicknameToID[ev.Target]
	if !ok {
		return Failed{Reason: "No such user"}
	}
	if targetID == ev.ID {
		return Failed{Reason: "Cannot send to self"}
	}
	target, ok := c.sessions[targetID]
	if !ok {
		return Failed{Reason: "No such user"}
	}

	body := fmt.Sprintf("from %s: %s", sender, ev.Content)
	msg, err := wire.Build(wire.KindIncomingMsg, ev.ID, nil, wire.String(body))
	if err != nil {
		return Failed{Reason: err.Error()}
	}
	target.Enqueue(msg)
	return MessagedUser{}
}

func (c *Coordinator) drop(ctx context.Context, ev Drop) {
	s, ok := c.sessions[ev.ID]
	if !ok {
		return
	}

	// Fan-in goroutines are cancelled before the session record goes away.
	s.Close()
	if nick, registered := c.idToNickname[ev.ID]; registered {
		delete(c.idToNickname, ev.ID)
		delete(c.nicknameToID, nick)
		metrics.RegisteredUsers.Set(float64(len(c.nicknameToID)))
	}
	delete(c.sessions, ev.ID)

	logging.Info(ctx, "session dropped", zap.Uint64("session_id", ev.ID))
}

func eventName(ev Event) string {
	switch ev.(type) {
	case Register:
		return "register"
	case ChangeName:
		return "changename"
	case Join:
		return "join"
	case Leave:
		return "leave"
	case Create:
		return "create"
	case List:
		return "list"
	case SendTo:
		return "sendto"
	case PrivMsg:
		return "privmsg"
	case Drop:
		return "drop"
	}
	return "unknown"
}
