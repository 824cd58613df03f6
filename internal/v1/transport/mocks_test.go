package transport

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// mockConn implements wsConnection for pump tests. Frames pushed through
// deliver arrive from ReadMessage; frames the pumps write land on the
// written channel.
type mockConn struct {
	inbound chan []byte
	written chan []byte

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

func newMockConn() *mockConn {
	return &mockConn{
		inbound: make(chan []byte, 16),
		written: make(chan []byte, 64),
		done:    make(chan struct{}),
	}
}

func (m *mockConn) deliver(frame []byte) {
	m.inbound <- frame
}

func (m *mockConn) ReadMessage() (int, []byte, error) {
	select {
	case frame := <-m.inbound:
		return websocket.BinaryMessage, frame, nil
	case <-m.done:
		return 0, nil, errors.New("mock: connection closed")
	}
}

func (m *mockConn) WriteMessage(messageType int, data []byte) error {
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return errors.New("mock: write on closed connection")
	}
	if messageType != websocket.BinaryMessage {
		return nil
	}
	select {
	case m.written <- data:
	default:
	}
	return nil
}

func (m *mockConn) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.done)
	}
	return nil
}

func (m *mockConn) SetWriteDeadline(t time.Time) error { return nil }
