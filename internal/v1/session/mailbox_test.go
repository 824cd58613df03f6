package session

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parley-im/parley/internal/v1/wire"
)

func note(t *testing.T, content string) wire.Message {
	t.Helper()
	m, err := wire.Build(wire.KindIncomingMsg, 1, nil, wire.String(content))
	require.NoError(t, err)
	return m
}

func TestMailboxFIFO(t *testing.T) {
	m := NewMailbox(16)
	for i := 0; i < 5; i++ {
		m.Put(note(t, fmt.Sprintf("m%d", i)))
	}

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		got, err := m.Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("m%d", i), got.ContentValue())
	}
	assert.Equal(t, 0, m.Len())
}

func TestMailboxGetBlocksUntilPut(t *testing.T) {
	m := NewMailbox(16)

	got := make(chan wire.Message, 1)
	go func() {
		msg, err := m.Get(context.Background())
		if err == nil {
			got <- msg
		}
	}()

	time.Sleep(10 * time.Millisecond)
	m.Put(note(t, "ping"))

	select {
	case msg := <-got:
		assert.Equal(t, "ping", msg.ContentValue())
	case <-time.After(time.Second):
		t.Fatal("Get never woke up")
	}
}

func TestMailboxOverflowDropsOldestAndNotices(t *testing.T) {
	m := NewMailbox(4)
	for i := 0; i < 7; i++ {
		m.Put(note(t, fmt.Sprintf("m%d", i)))
	}

	ctx := context.Background()

	// First drain observes a single notice for the whole episode.
	notice, err := m.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, wire.KindFailed, notice.Kind)
	assert.Equal(t, "mailbox", notice.ArgValue())
	assert.Equal(t, "Dropped 3 queued messages", notice.ContentValue())

	// Then the surviving newest messages, in order.
	for i := 3; i < 7; i++ {
		got, err := m.Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("m%d", i), got.ContentValue())
	}
}

func TestMailboxGetHonorsContext(t *testing.T) {
	m := NewMailbox(4)
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		_, err := m.Get(ctx)
		errCh <- err
	}()

	cancel()
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Get ignored context cancellation")
	}
}

func TestMailboxClose(t *testing.T) {
	m := NewMailbox(4)
	m.Put(note(t, "queued"))
	m.Close()

	// Accepted messages still drain.
	got, err := m.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "queued", got.ContentValue())

	// Puts after close are discarded.
	m.Put(note(t, "late"))
	_, err = m.Get(context.Background())
	assert.ErrorIs(t, err, ErrMailboxClosed)

	m.Close() // idempotent
}
