package client

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/parley-im/parley/internal/v1/wire"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// mockServerConn stands in for the server end of the socket.
type mockServerConn struct {
	inbound chan []byte
	written chan []byte

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

func newMockServerConn() *mockServerConn {
	return &mockServerConn{
		inbound: make(chan []byte, 16),
		written: make(chan []byte, 16),
		done:    make(chan struct{}),
	}
}

// deliver queues one frame for the runner's read loop.
func (m *mockServerConn) deliver(frame []byte) {
	m.inbound <- frame
}

// hangUp simulates the server closing the connection.
func (m *mockServerConn) hangUp() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.done)
	}
}

func (m *mockServerConn) ReadMessage() (int, []byte, error) {
	select {
	case frame := <-m.inbound:
		return websocket.BinaryMessage, frame, nil
	case <-m.done:
		return 0, nil, errors.New("mock: connection closed")
	}
}

func (m *mockServerConn) WriteMessage(messageType int, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errors.New("mock: write on closed connection")
	}
	if messageType == websocket.BinaryMessage {
		m.written <- data
	}
	return nil
}

func (m *mockServerConn) Close() error {
	m.hangUp()
	return nil
}

func connectedRunner(t *testing.T, nickname string) (*Runner, *State, *mockServerConn) {
	t.Helper()
	mock := newMockServerConn()
	state := NewState()
	state.SetNickname(nickname)

	r := NewRunner(state, func(ctx context.Context, addr string) (wsClient, error) {
		return mock, nil
	})
	require.NoError(t, r.Connect(context.Background(), "127.0.0.1:6667"))
	t.Cleanup(r.Close)
	return r, state, mock
}

func serverFrame(t *testing.T, kind wire.Kind, arg, content *string) []byte {
	t.Helper()
	msg, err := wire.Build(kind, wire.ServerSender, arg, content)
	require.NoError(t, err)
	frame, err := wire.Encode(msg)
	require.NoError(t, err)
	return frame
}

func sentFrame(t *testing.T, mock *mockServerConn) wire.Message {
	t.Helper()
	select {
	case data := <-mock.written:
		msg, err := wire.Decode(data)
		require.NoError(t, err)
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the client to send a frame")
		return wire.Message{}
	}
}

func lastText(s *State) string {
	all := s.Notifications()
	return all[len(all)-1].Text
}

func TestConnectSendsRegistration(t *testing.T) {
	_, state, mock := connectedRunner(t, "alice")

	msg := sentFrame(t, mock)
	assert.Equal(t, wire.KindRegister, msg.Kind)
	assert.Equal(t, "alice", msg.ArgValue())
	assert.True(t, state.Connected())
	assert.Equal(t, "127.0.0.1:6667", state.Server())
}

func TestRegisteredReplyBindsSessionID(t *testing.T) {
	r, state, mock := connectedRunner(t, "alice")
	sentFrame(t, mock) // registration

	mock.deliver(serverFrame(t, wire.KindRegistered, wire.String("7"), wire.String("alice")))
	require.Eventually(t, func() bool { return state.SessionID() == 7 },
		2*time.Second, 10*time.Millisecond)

	// Subsequent requests carry the assigned id.
	r.Apply(context.Background(), Join{Room: "main"})
	msg := sentFrame(t, mock)
	assert.Equal(t, wire.KindJoin, msg.Kind)
	assert.Equal(t, uint64(7), msg.SenderID)
	assert.Equal(t, "main", msg.ArgValue())
}

func TestRegistrationRefusedTearsDown(t *testing.T) {
	_, state, mock := connectedRunner(t, "alice")
	sentFrame(t, mock)

	mock.deliver(serverFrame(t, wire.KindFailed,
		wire.String("register"), wire.String("Username already exists")))

	require.Eventually(t, func() bool { return !state.Connected() },
		2*time.Second, 10*time.Millisecond)
	texts := state.Notifications()
	assert.Equal(t, "[-] Connection to server closed", texts[len(texts)-1].Text)
}

func TestSelfPrivMsgNeverLeavesSocket(t *testing.T) {
	r, state, mock := connectedRunner(t, "alice")
	sentFrame(t, mock)

	r.Apply(context.Background(), PrivMsg{User: "alice", Message: "hi me"})

	assert.Equal(t, "[-] Cannot send message to yourself", lastText(state))
	select {
	case data := <-mock.written:
		msg, _ := wire.Decode(data)
		t.Fatalf("unexpected outbound frame: %v", msg)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestPrivMsgToOthersIsSent(t *testing.T) {
	r, _, mock := connectedRunner(t, "alice")
	sentFrame(t, mock)

	r.Apply(context.Background(), PrivMsg{User: "bob", Message: "psst hello"})
	msg := sentFrame(t, mock)
	assert.Equal(t, wire.KindPrivMsg, msg.Kind)
	assert.Equal(t, "bob", msg.ArgValue())
	assert.Equal(t, "psst hello", msg.ContentValue())
}

func TestApplyWithoutConnection(t *testing.T) {
	state := NewState()
	state.SetNickname("alice")
	r := NewRunner(state, nil)

	r.Apply(context.Background(), Join{Room: "main"})
	assert.Equal(t, "[-] Not connected to a server", lastText(state))
}

func TestConnectRequiresNickname(t *testing.T) {
	r := NewRunner(NewState(), nil)
	r.Apply(context.Background(), Connect{Addr: "127.0.0.1:6667"})
	assert.Equal(t, "[-] Must set a name", lastText(r.state))
}

func TestSetNameLocalThenRemote(t *testing.T) {
	state := NewState()
	r := NewRunner(state, nil)

	// Disconnected: purely local.
	r.Apply(context.Background(), SetName{Name: "alice"})
	assert.Equal(t, "alice", state.Nickname())
	assert.Equal(t, "[*] Name set to [alice]", lastText(state))

	// Connected: the same command becomes a rename request.
	r2, _, mock := connectedRunner(t, "bob")
	sentFrame(t, mock)
	r2.Apply(context.Background(), SetName{Name: "robert"})
	msg := sentFrame(t, mock)
	assert.Equal(t, wire.KindChangeName, msg.Kind)
	assert.Equal(t, "robert", msg.ArgValue())
}

func TestDisconnectIsQuiet(t *testing.T) {
	r, state, _ := connectedRunner(t, "alice")

	r.Apply(context.Background(), Disconnect{})

	assert.False(t, state.Connected())
	assert.Equal(t, "[-] Closing connection to server", lastText(state))
}

func TestServerHangUpPushesError(t *testing.T) {
	_, state, mock := connectedRunner(t, "alice")
	sentFrame(t, mock)

	mock.hangUp()

	require.Eventually(t, func() bool { return !state.Connected() },
		2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "[-] Closed connection to server", lastText(state))
}

func TestReconnectAfterDisconnect(t *testing.T) {
	mocks := make(chan *mockServerConn, 2)
	for i := 0; i < 2; i++ {
		mocks <- newMockServerConn()
	}
	state := NewState()
	state.SetNickname("alice")
	r := NewRunner(state, func(ctx context.Context, addr string) (wsClient, error) {
		return <-mocks, nil
	})
	t.Cleanup(r.Close)

	require.NoError(t, r.Connect(context.Background(), "a:1"))
	r.Apply(context.Background(), Disconnect{})
	require.False(t, state.Connected())

	require.NoError(t, r.Connect(context.Background(), "b:2"))
	assert.True(t, state.Connected())
	assert.Equal(t, "b:2", state.Server())
}
