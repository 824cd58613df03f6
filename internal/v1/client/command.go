package client

import "strings"

// Action is one parsed user command.
type Action interface{ action() }

type (
	// Help reprints the command summary.
	Help struct{}
	// SetName sets the nickname locally, or requests a server-side
	// rename when connected.
	SetName struct{ Name string }
	// ChangeName always requests a server-side rename.
	ChangeName struct{ Name string }
	// Connect dials a server and registers.
	Connect struct{ Addr string }
	// Disconnect closes the active connection.
	Disconnect struct{}
	// Join subscribes to a room.
	Join struct{ Room string }
	// Leave unsubscribes from a room.
	Leave struct{ Room string }
	// Create makes a new room.
	Create struct{ Room string }
	// List requests a listing; Option is users, rooms, or allrooms.
	List struct{ Option string }
	// SendTo posts a message to a joined room.
	SendTo struct {
		Room    string
		Message string
	}
	// PrivMsg sends a direct message to a user.
	PrivMsg struct {
		User    string
		Message string
	}
	// Quit exits the client.
	Quit struct{}
)

func (Help) action()       {}
func (SetName) action()    {}
func (ChangeName) action() {}
func (Connect) action()    {}
func (Disconnect) action() {}
func (Join) action()       {}
func (Leave) action()      {}
func (Create) action()     {}
func (List) action()       {}
func (SendTo) action()     {}
func (PrivMsg) action()    {}
func (Quit) action()       {}

// ParseCommand turns one typed line into an Action. It reports false for
// anything unparseable: no leading slash, unknown command, or missing
// arguments.
func ParseCommand(line string) (Action, bool) {
	tokens := strings.Fields(line)
	if len(tokens) == 0 || !strings.HasPrefix(tokens[0], "/") {
		return nil, false
	}
	command, args := strings.TrimPrefix(tokens[0], "/"), tokens[1:]

	switch command {
	case "help":
		return Help{}, true
	case "quit":
		return Quit{}, true
	case "disconnect":
		return Disconnect{}, true
	case "name":
		if len(args) < 1 {
			return nil, false
		}
		return SetName{Name: args[0]}, true
	case "changename":
		if len(args) < 1 {
			return nil, false
		}
		return ChangeName{Name: args[0]}, true
	case "connect":
		if len(args) < 1 {
			return nil, false
		}
		return Connect{Addr: args[0]}, true
	case "join":
		if len(args) < 1 {
			return nil, false
		}
		return Join{Room: args[0]}, true
	case "leave":
		if len(args) < 1 {
			return nil, false
		}
		return Leave{Room: args[0]}, true
	case "create":
		if len(args) < 1 {
			return nil, false
		}
		return Create{Room: args[0]}, true
	case "list":
		if len(args) < 1 {
			return nil, false
		}
		return List{Option: args[0]}, true
	case "sendto":
		if len(args) < 2 {
			return nil, false
		}
		return SendTo{Room: args[0], Message: strings.Join(args[1:], " ")}, true
	case "privmsg":
		if len(args) < 2 {
			return nil, false
		}
		return PrivMsg{User: args[0], Message: strings.Join(args[1:], " ")}, true
	}
	return nil, false
}
