// Package client implements the terminal client's side of the protocol:
// local state with a categorized notification view, the command parser,
// and the connection runner that owns the socket.
package client

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/parley-im/parley/internal/v1/wire"
)

// ErrRegistrationRefused reports a Failed reply to the initial Register.
// The connection is unusable afterwards and must be torn down.
var ErrRegistrationRefused = errors.New("client: registration refused")

// Category classifies a notification for rendering.
type Category string

const (
	CategoryNotification   Category = "notification"
	CategoryListing        Category = "listing"
	CategoryRoomMessage    Category = "room message"
	CategoryPrivateMessage Category = "private message"
	CategoryError          Category = "error"
)

// Notification is one rendered line of the client view.
type Notification struct {
	Category Category
	Text     string
}

// State is the client's in-memory view: connection status, identity as
// confirmed by the server, and the notification list. All methods are
// safe for concurrent use; the read loop and the command loop both touch
// it.
type State struct {
	mu            sync.Mutex
	server        string
	nickname      string
	sessionID     uint64
	connected     bool
	notifications []Notification
	observer      func(Notification)
}

// NewState returns a state seeded with the startup notices.
func NewState() *State {
	s := &State{}
	s.notifications = startupNotices()
	return s
}

func startupNotices() []Notification {
	lines := []string{
		`---To quit use "/quit"---`,
		`[*] No nickname set. To set one use the "/name" command`,
		`    Example: /name jon`,
		`[*] Not connected to a server. To connect use the "/connect" command`,
		`    Example: /connect 127.0.0.1:6667`,
		`[*] The server has one default [main] room`,
		`    To join it use: /join main`,
		`    To send a message to a room: /sendto {room} {msg}`,
		`[*] For the full command list use "/help"`,
	}
	notices := make([]Notification, len(lines))
	for i, line := range lines {
		notices[i] = Notification{Category: CategoryNotification, Text: line}
	}
	return notices
}

// SetObserver registers a callback invoked for every pushed notification.
// The terminal front end uses it to print lines as they arrive.
func (s *State) SetObserver(fn func(Notification)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observer = fn
}

// Push appends one notification to the view.
func (s *State) Push(category Category, text string) {
	s.mu.Lock()
	s.notifications = append(s.notifications, Notification{Category: category, Text: text})
	observer := s.observer
	s.mu.Unlock()

	if observer != nil {
		observer(Notification{Category: category, Text: text})
	}
}

// Notifications returns a snapshot of the view.
func (s *State) Notifications() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Notification, len(s.notifications))
	copy(out, s.notifications)
	return out
}

// Nickname returns the current nickname. Before registration this is the
// locally chosen name; after, the server-confirmed one.
func (s *State) Nickname() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nickname
}

// SetNickname records a locally chosen nickname, before any connection.
func (s *State) SetNickname(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nickname = name
}

// SessionID returns the server-assigned session id, zero before
// registration.
func (s *State) SessionID() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

// Connected reports whether a server connection is established.
func (s *State) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// Server returns the address of the current connection.
func (s *State) Server() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.server
}

func (s *State) markConnected(server string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.server = server
	s.connected = true
}

func (s *State) markDisconnected() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.server = ""
	s.connected = false
	s.sessionID = 0
}

// HandleMessage folds one inbound frame into the view. It returns
// ErrRegistrationRefused when the server rejects registration; every
// other frame, including other failures, leaves the connection usable.
func (s *State) HandleMessage(msg wire.Message) error {
	switch msg.Kind {
	case wire.KindFailed:
		command := msg.ArgValue()
		s.Push(CategoryError, fmt.Sprintf("[-] %s failed: %s", command, msg.ContentValue()))
		if command == "register" {
			s.Push(CategoryError, "[-] Connection to server closed")
			return ErrRegistrationRefused
		}

	case wire.KindRegistered:
		s.mu.Lock()
		if id, err := strconv.ParseUint(msg.ArgValue(), 10, 64); err == nil {
			s.sessionID = id
		}
		s.nickname = msg.ContentValue()
		s.mu.Unlock()
		s.Push(CategoryNotification, fmt.Sprintf("[+] Registered as %s", msg.ContentValue()))

	case wire.KindChangedName:
		s.mu.Lock()
		s.nickname = msg.ArgValue()
		s.mu.Unlock()
		s.Push(CategoryNotification, fmt.Sprintf("[+] Name changed from %q to %q", msg.ContentValue(), msg.ArgValue()))

	case wire.KindJoined:
		s.Push(CategoryNotification, fmt.Sprintf("[+] Joined [%s] room", msg.ArgValue()))
	case wire.KindLeftRoom:
		s.Push(CategoryNotification, fmt.Sprintf("[+] Left [%s] room", msg.ArgValue()))
	case wire.KindCreatedRoom:
		s.Push(CategoryNotification, fmt.Sprintf("[+] Created [%s] room", msg.ArgValue()))

	case wire.KindUsers:
		s.pushListing("[+] List of users", msg.ContentValue())
	case wire.KindUserRooms:
		s.pushListing("[+] List of joined rooms", msg.ContentValue())
	case wire.KindAllRooms:
		s.pushListing("[+] List of all rooms", msg.ContentValue())

	case wire.KindRoomMessage:
		s.Push(CategoryRoomMessage, fmt.Sprintf("[%s] %s", msg.ArgValue(), msg.ContentValue()))
	case wire.KindIncomingMsg:
		s.Push(CategoryPrivateMessage, msg.ContentValue())
	case wire.KindOutgoingMsg:
		s.Push(CategoryPrivateMessage, fmt.Sprintf("to %s: %s", msg.ArgValue(), msg.ContentValue()))

	default:
		// Request kinds arriving at the client are a server bug; ignore.
	}
	return nil
}

// pushListing renders one CSV listing bracketed by header and footer
// lines. Values contain no commas, so a plain split suffices.
func (s *State) pushListing(header, csv string) {
	s.Push(CategoryNotification, header)
	for _, item := range strings.Split(csv, ",") {
		s.Push(CategoryListing, fmt.Sprintf("[%s]", item))
	}
	s.Push(CategoryNotification, "[-] End of list")
}

// PushHelp appends the command summary to the view.
func (s *State) PushHelp() {
	s.Push(CategoryNotification, "List of available commands:")
	for _, line := range []string{
		"    /name {name} - Set username, or change it while connected",
		"    /changename {name} - Change name used on the server",
		"    /connect {host:port} - Connect to a server. ex. 127.0.0.1:6667",
		"    /list {opt} - List out info. Options: users, rooms, allrooms",
		"    /join {room} - Join a room on the server",
		"    /leave {room} - Leave a joined room",
		"    /create {room} - Create a new room on the server",
		"    /sendto {room} {message} - Send a message to a joined room",
		"    /privmsg {user} {message} - Send a message directly to a user",
		"    /disconnect - Disconnect from the server",
		"    /quit - Close the chat client",
	} {
		s.Push(CategoryListing, line)
	}
}
