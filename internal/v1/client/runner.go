package client

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/parley-im/parley/internal/v1/wire"
)

// ErrNotConnected reports a command that needs a server connection when
// there is none.
var ErrNotConnected = errors.New("client: not connected")

// wsClient is the slice of *websocket.Conn the runner needs; tests
// substitute a mock.
type wsClient interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Dialer opens a client connection to addr (host:port).
type Dialer func(ctx context.Context, addr string) (wsClient, error)

func dialWebSocket(ctx context.Context, addr string) (wsClient, error) {
	u := url.URL{Scheme: "ws", Host: addr, Path: "/ws"}
	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if resp != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	return ws, nil
}

// Runner owns the client's connection and executes parsed commands
// against it. Inbound frames are folded into the State by a read loop;
// outbound frames are written by whichever goroutine calls Apply, under
// one lock, so the connection has a single logical writer.
type Runner struct {
	state *State
	dial  Dialer

	mu       sync.Mutex
	ws       wsClient
	readDone chan struct{}
}

// NewRunner creates a runner over state. A nil dial uses the WebSocket
// dialer.
func NewRunner(state *State, dial Dialer) *Runner {
	if dial == nil {
		dial = dialWebSocket
	}
	return &Runner{state: state, dial: dial}
}

// Apply executes one parsed action, pushing any outcome into the state's
// notification view.
func (r *Runner) Apply(ctx context.Context, action Action) {
	switch action := action.(type) {
	case Help:
		r.state.PushHelp()

	case SetName:
		if r.state.Connected() {
			r.state.Push(CategoryNotification, "[*] Attempting name change")
			r.request(wire.KindChangeName, wire.String(action.Name), nil)
			return
		}
		r.state.SetNickname(action.Name)
		r.state.Push(CategoryNotification, fmt.Sprintf("[*] Name set to [%s]", action.Name))

	case ChangeName:
		r.state.Push(CategoryNotification, "[*] Attempting name change")
		r.request(wire.KindChangeName, wire.String(action.Name), nil)

	case Connect:
		if r.state.Nickname() == "" {
			r.state.Push(CategoryError, "[-] Must set a name")
			return
		}
		if r.state.Connected() {
			r.state.Push(CategoryError, "[-] Already connected to a server")
			return
		}
		if err := r.Connect(ctx, action.Addr); err != nil {
			r.state.Push(CategoryError, fmt.Sprintf("[-] Failed to register on server: %v", err))
		}

	case Join:
		r.request(wire.KindJoin, wire.String(action.Room), nil)
	case Leave:
		r.request(wire.KindLeave, wire.String(action.Room), nil)
	case Create:
		r.request(wire.KindCreate, wire.String(action.Room), nil)
	case List:
		r.request(wire.KindList, wire.String(action.Option), nil)
	case SendTo:
		r.request(wire.KindSendTo, wire.String(action.Room), wire.String(action.Message))

	case PrivMsg:
		// Self-sends are refused before any frame leaves the socket.
		if action.User == r.state.Nickname() {
			r.state.Push(CategoryError, "[-] Cannot send message to yourself")
			return
		}
		r.request(wire.KindPrivMsg, wire.String(action.User), wire.String(action.Message))

	case Disconnect:
		if !r.state.Connected() {
			r.state.Push(CategoryError, "[-] Not connected to a server")
			return
		}
		r.state.Push(CategoryNotification, "[-] Closing connection to server")
		r.Close()

	case Quit:
		r.Close()
	}
}

// Connect dials addr, starts the read loop, and sends the registration
// frame carrying the locally chosen nickname.
func (r *Runner) Connect(ctx context.Context, addr string) error {
	ws, err := r.dial(ctx, addr)
	if err != nil {
		return err
	}

	done := make(chan struct{})
	r.mu.Lock()
	r.ws = ws
	r.readDone = done
	r.mu.Unlock()

	r.state.markConnected(addr)
	r.state.Push(CategoryNotification, "[*] Successfully connected")
	r.state.Push(CategoryNotification, "[*] Registering user")

	go r.readLoop(ws, done)

	if err := r.send(wire.KindRegister, wire.String(r.state.Nickname()), nil); err != nil {
		r.Close()
		return err
	}
	return nil
}

// Close tears down the active connection, if any, and waits for its read
// loop to exit. Safe to call repeatedly.
func (r *Runner) Close() {
	r.mu.Lock()
	ws, done := r.ws, r.readDone
	r.ws, r.readDone = nil, nil
	r.mu.Unlock()

	if ws == nil {
		return
	}
	_ = ws.Close()
	if done != nil {
		<-done
	}
	r.state.markDisconnected()
}

// readLoop decodes inbound frames into the state until the socket closes
// or the server refuses registration.
func (r *Runner) readLoop(ws wsClient, done chan struct{}) {
	defer close(done)
	for {
		messageType, data, err := ws.ReadMessage()
		if err != nil {
			// Silent when Close already detached this connection.
			if r.detach(ws) {
				r.state.Push(CategoryError, "[-] Closed connection to server")
				r.state.markDisconnected()
			}
			return
		}
		if messageType != websocket.BinaryMessage {
			continue
		}

		msg, err := wire.Decode(data)
		if err != nil {
			continue
		}
		if err := r.state.HandleMessage(msg); err != nil {
			if r.detach(ws) {
				_ = ws.Close()
				r.state.markDisconnected()
			}
			return
		}
	}
}

// detach removes ws from the runner if it is still the active
// connection, reporting whether this call was the one that removed it.
func (r *Runner) detach(ws wsClient) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ws != ws {
		return false
	}
	r.ws, r.readDone = nil, nil
	return true
}

func (r *Runner) request(kind wire.Kind, arg, content *string) {
	if err := r.send(kind, arg, content); err != nil {
		if errors.Is(err, ErrNotConnected) {
			r.state.Push(CategoryError, "[-] Not connected to a server")
			return
		}
		r.state.Push(CategoryError, fmt.Sprintf("[-] Sending failed: %v", err))
	}
}

func (r *Runner) send(kind wire.Kind, arg, content *string) error {
	msg, err := wire.Build(kind, r.state.SessionID(), arg, content)
	if err != nil {
		return err
	}
	frame, err := wire.Encode(msg)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ws == nil {
		return ErrNotConnected
	}
	return r.ws.WriteMessage(websocket.BinaryMessage, frame)
}
