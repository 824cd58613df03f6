// Package wire defines the framed binary protocol shared by the chat server
// and its clients. Every frame on the wire is exactly one encoded Message.
//
// The frame layout is length-prefixed and self-delimiting, so consecutive
// frames never merge or truncate regardless of how the transport chunks
// bytes. Kind tags are fixed integers and must never be reordered; they are
// part of the interop contract with every deployed client.
package wire

import (
	"errors"
	"fmt"
)

// Kind identifies the type of a Message. The numeric values are wire tags
// and are stable across releases.
type Kind uint8

const (
	KindRegister     Kind = 0
	KindRegistered   Kind = 1
	KindJoin         Kind = 2
	KindJoined       Kind = 3
	KindLeave        Kind = 4
	KindLeftRoom     Kind = 5
	KindList         Kind = 6
	KindChangeName   Kind = 7
	KindChangedName  Kind = 8
	KindCreate       Kind = 9
	KindCreatedRoom  Kind = 10
	KindPrivMsg      Kind = 11
	KindIncomingMsg  Kind = 12
	KindOutgoingMsg  Kind = 13
	KindSendTo       Kind = 14
	KindMessagedRoom Kind = 15
	KindRoomMessage  Kind = 16
	KindUserRooms    Kind = 17
	KindAllRooms     Kind = 18
	KindUsers        Kind = 19
	KindFailed       Kind = 20
)

// ServerSender is the reserved sender id for server-originated frames.
// Session ids handed to clients always start at 1.
const ServerSender uint64 = 0

// Protocol error categories. Detail is attached by wrapping, so callers
// classify with errors.Is.
var (
	ErrMalformedFrame = errors.New("wire: malformed frame")
	ErrUnknownKind    = errors.New("wire: unknown message kind")
	ErrFieldMismatch  = errors.New("wire: field mismatch for kind")
)

var kindNames = map[Kind]string{
	KindRegister:     "Register",
	KindRegistered:   "Registered",
	KindJoin:         "Join",
	KindJoined:       "Joined",
	KindLeave:        "Leave",
	KindLeftRoom:     "LeftRoom",
	KindList:         "List",
	KindChangeName:   "ChangeName",
	KindChangedName:  "ChangedName",
	KindCreate:       "Create",
	KindCreatedRoom:  "CreatedRoom",
	KindPrivMsg:      "PrivMsg",
	KindIncomingMsg:  "IncomingMsg",
	KindOutgoingMsg:  "OutgoingMsg",
	KindSendTo:       "SendTo",
	KindMessagedRoom: "MessagedRoom",
	KindRoomMessage:  "RoomMessage",
	KindUserRooms:    "UserRooms",
	KindAllRooms:     "AllRooms",
	KindUsers:        "Users",
	KindFailed:       "Failed",
}

// commandWords maps client request kinds to the command word echoed back in
// the arg of a Failed reply.
var commandWords = map[Kind]string{
	KindRegister:   "register",
	KindJoin:       "join",
	KindLeave:      "leave",
	KindList:       "list",
	KindChangeName: "changename",
	KindCreate:     "create",
	KindSendTo:     "sendto",
	KindPrivMsg:    "privmsg",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Valid reports whether k is a known wire tag.
func (k Kind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

// Command returns the lowercase command word for a client request kind, or
// "unknown" for kinds that are not client requests.
func (k Kind) Command() string {
	if word, ok := commandWords[k]; ok {
		return word
	}
	return "unknown"
}

// fieldShape describes which optional fields a kind requires. Each kind
// either requires or forbids each field; there is no "maybe".
type fieldShape struct {
	arg     bool
	content bool
}

func (k Kind) shape() fieldShape {
	switch k {
	case KindRegister, KindJoin, KindLeave, KindList, KindChangeName,
		KindCreate, KindJoined, KindLeftRoom, KindCreatedRoom:
		return fieldShape{arg: true}
	case KindSendTo, KindPrivMsg, KindRoomMessage, KindRegistered,
		KindFailed, KindChangedName, KindMessagedRoom, KindOutgoingMsg:
		return fieldShape{arg: true, content: true}
	case KindIncomingMsg, KindAllRooms, KindUserRooms, KindUsers:
		return fieldShape{content: true}
	}
	return fieldShape{}
}

// Message is the unit of exchange between server and clients. Arg and
// Content are optional; presence is dictated by Kind (see Build). A nil
// pointer means absent. Messages are treated as immutable once built.
type Message struct {
	Kind     Kind
	SenderID uint64
	Arg      *string
	Content  *string
}

// String returns a pointer to s. Convenience for building messages.
func String(s string) *string { return &s }

// Build constructs a Message and validates its fields against the kind's
// field table. It is the only sanctioned way to create a Message; Encode
// and Decode apply the same validation so a malformed message can neither
// leave nor enter a process.
func Build(kind Kind, senderID uint64, arg, content *string) (Message, error) {
	m := Message{Kind: kind, SenderID: senderID, Arg: arg, Content: content}
	if err := m.Validate(); err != nil {
		return Message{}, err
	}
	return m, nil
}

// Validate checks the message fields against the kind's field table.
func (m Message) Validate() error {
	if !m.Kind.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownKind, uint8(m.Kind))
	}
	shape := m.Kind.shape()
	if shape.arg && m.Arg == nil {
		return fmt.Errorf("%w: %s requires arg", ErrFieldMismatch, m.Kind)
	}
	if !shape.arg && m.Arg != nil {
		return fmt.Errorf("%w: %s forbids arg", ErrFieldMismatch, m.Kind)
	}
	if shape.content && m.Content == nil {
		return fmt.Errorf("%w: %s requires content", ErrFieldMismatch, m.Kind)
	}
	if !shape.content && m.Content != nil {
		return fmt.Errorf("%w: %s forbids content", ErrFieldMismatch, m.Kind)
	}
	return nil
}

// ArgValue returns the arg string, or "" when absent.
func (m Message) ArgValue() string {
	if m.Arg == nil {
		return ""
	}
	return *m.Arg
}

// ContentValue returns the content string, or "" when absent.
func (m Message) ContentValue() string {
	if m.Content == nil {
		return ""
	}
	return *m.Content
}
