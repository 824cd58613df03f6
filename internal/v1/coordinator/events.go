package coordinator

// Events are the requests a connection loop sends to the coordinator,
// always paired with a one-shot reply channel. Every directory read and
// write happens inside the coordinator loop, so each event is a single
// serial step: it either completes or produces a Failed reply and leaves
// the directories untouched.

// Event is a request to mutate or read the global directories.
type Event interface {
	event()
}

// Register assigns a nickname to a session.
type Register struct {
	ID       uint64
	Nickname string
}

// ChangeName swaps a registered session's nickname.
type ChangeName struct {
	ID          uint64
	NewNickname string
}

// Join subscribes a session to a room.
type Join struct {
	ID   uint64
	Room string
}

// Leave releases a session's room subscription.
type Leave struct {
	ID   uint64
	Room string
}

// Create adds a room to the registry.
type Create struct {
	Room string
}

// List computes a listing: "users", "rooms", or "allrooms".
type List struct {
	ID     uint64
	Option string
}

// SendTo publishes a message to a room the session holds.
type SendTo struct {
	ID      uint64
	Room    string
	Content string
}

// PrivMsg delivers a direct message to a registered nickname.
type PrivMsg struct {
	ID      uint64
	Target  string
	Content string
}

// Drop destroys a session after its connection closed. It is the only
// event that expects no reply.
type Drop struct {
	ID uint64
}

func (Register) event()   {}
func (ChangeName) event() {}
func (Join) event()       {}
func (Leave) event()      {}
func (Create) event()     {}
func (List) event()       {}
func (SendTo) event()     {}
func (PrivMsg) event()    {}
func (Drop) event()       {}

// Reply is the coordinator's answer to one event.
type Reply interface {
	reply()
}

// Registered confirms a Register event.
type Registered struct {
	Nickname string
}

// NameChanged confirms a ChangeName event.
type NameChanged struct {
	New string
	Old string
}

// JoinedRoom confirms a Join event.
type JoinedRoom struct {
	Room string
}

// LeftRoom confirms a Leave event.
type LeftRoom struct {
	Room string
}

// CreatedRoom confirms a Create event.
type CreatedRoom struct {
	Room string
}

// ListingUsers carries the registered nicknames as CSV.
type ListingUsers struct {
	Content string
}

// ListingUserRooms carries the session's joined rooms as CSV.
type ListingUserRooms struct {
	Content string
}

// ListingRooms carries every registered room name as CSV.
type ListingRooms struct {
	Content string
}

// MessagedRoom confirms a SendTo event.
type MessagedRoom struct{}

// MessagedUser confirms a PrivMsg event.
type MessagedUser struct{}

// Failed reports a policy error; the session stays live.
type Failed struct {
	Reason string
}

func (Registered) reply()       {}
func (NameChanged) reply()      {}
func (JoinedRoom) reply()       {}
func (LeftRoom) reply()         {}
func (CreatedRoom) reply()      {}
func (ListingUsers) reply()     {}
func (ListingUserRooms) reply() {}
func (ListingRooms) reply()     {}
func (MessagedRoom) reply()     {}
func (MessagedUser) reply()     {}
func (Failed) reply()           {}
