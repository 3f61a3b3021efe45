package chatsync

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanSend(t *testing.T) {
	s, transport, _ := newTestSession(StaticIdentity{Email: "me@example.com"})
	s.JoinTicket("T-1", false)

	require.NoError(t, s.Send(context.Background(), "Hi there"))

	// The optimistic entry is visible immediately.
	require.Len(t, s.Transcript(), 1)
	optimistic := s.Transcript()[0]
	assert.True(t, isOptimistic(optimistic))
	assert.Equal(t, "Hi there", optimistic.Content)
	assert.Equal(t, "me@example.com", optimistic.Sender.UserEmail)

	// The durable ack settles it in place without duplicating.
	require.Eventually(t, func() bool {
		tr := s.Transcript()
		return len(tr) == 1 && tr[0].ID == "m1"
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, "Hi there", s.Transcript()[0].Content)

	assert.Equal(t, 1, transport.count(EventSendMessage))
}

func TestSendWithoutActiveTicket(t *testing.T) {
	s, _, _ := newTestSession(nil)
	assert.ErrorIs(t, s.Send(context.Background(), "orphan"), ErrNoActiveTicket)
}

func TestSendIgnoresBlankContent(t *testing.T) {
	s, transport, _ := newTestSession(nil)
	s.JoinTicket("T-1", false)

	require.NoError(t, s.Send(context.Background(), "   "))
	assert.Empty(t, s.Transcript())
	assert.Equal(t, 0, transport.count(EventSendMessage))
}

func TestSendFailureRollsBackAndRestoresContent(t *testing.T) {
	transport := newFakeTransport()
	durable := &fakeDurable{createErr: errors.New("store rejected the write")}
	s := NewSession(transport, durable, StaticIdentity{Email: "me@example.com"}, testConfig())
	s.JoinTicket("T-1", false)

	var mu sync.Mutex
	var restored string
	s.OnSendFailed(func(content string) {
		mu.Lock()
		restored = content
		mu.Unlock()
	})

	require.NoError(t, s.Send(context.Background(), "doomed message"))
	require.Len(t, s.Transcript(), 1)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return restored == "doomed message"
	}, time.Second, 5*time.Millisecond)
	assert.Empty(t, s.Transcript())

	// The live emit still went out; the asymmetry is the accepted policy.
	assert.Equal(t, 1, transport.count(EventSendMessage))
}

func TestSendWhileDisconnectedStillPersists(t *testing.T) {
	transport := newFakeTransport()
	transport.connected = false
	s := NewSession(transport, &fakeDurable{}, StaticIdentity{Email: "me@example.com"}, testConfig())
	s.JoinTicket("T-1", false)

	require.NoError(t, s.Send(context.Background(), "offline send"))

	require.Eventually(t, func() bool {
		tr := s.Transcript()
		return len(tr) == 1 && tr[0].ID == "m1"
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, transport.count(EventSendMessage))
}

func TestSendResolvesChatLazily(t *testing.T) {
	s, _, durable := newTestSession(StaticIdentity{Email: "me@example.com"})
	s.JoinTicket("T-1", false)

	require.NoError(t, s.Send(context.Background(), "first contact"))

	require.Eventually(t, func() bool {
		tr := s.Transcript()
		return len(tr) == 1 && tr[0].ID != ""
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, "chat-1", s.Transcript()[0].ChatID)

	durable.mu.Lock()
	defer durable.mu.Unlock()
	assert.Equal(t, 1, durable.seq)

	s.mu.Lock()
	defer s.mu.Unlock()
	assert.Equal(t, "chat-1", s.chatID)
}

func TestSendClearsTypingSignal(t *testing.T) {
	s, transport, _ := newTestSession(StaticIdentity{Email: "me@example.com"})
	s.JoinTicket("T-1", false)

	s.Typing()
	assert.Equal(t, 1, transport.count(EventTyping))

	require.NoError(t, s.Send(context.Background(), "done typing"))
	assert.Equal(t, 2, transport.count(EventTyping))
}

func TestLocalIDConvention(t *testing.T) {
	id := newLocalID()
	assert.True(t, len(id) > len("local-"))
	assert.Contains(t, id, "local-")

	a, b := newLocalID(), newLocalID()
	assert.NotEqual(t, a, b)
}
