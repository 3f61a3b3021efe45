package chatsync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supportdesk/internal/domain/entity"
)

func TestDeduplicationByIdentity(t *testing.T) {
	s, transport, _ := newTestSession(nil)
	s.JoinTicket("T-1", false)

	msg := historyMessage("m1", "T-1", "same message", "other@example.com", time.Now())
	transport.deliver(t, EventMessageBroadcast, msg)
	transport.deliver(t, EventMessageBroadcast, msg)

	require.Len(t, s.Transcript(), 1)
	assert.Equal(t, "m1", s.Transcript()[0].ID)
}

func TestDeduplicationByFingerprint(t *testing.T) {
	s, transport, _ := newTestSession(nil)
	s.JoinTicket("T-1", false)

	at := time.Now()

	// Same trimmed content and sender, 400ms apart: one entry.
	transport.deliver(t, EventMessageBroadcast,
		historyMessage("a1", "T-1", "hello there", "other@example.com", at))
	transport.deliver(t, EventMessageBroadcast,
		historyMessage("a2", "T-1", "  hello there  ", "other@example.com", at.Add(400*time.Millisecond)))
	assert.Len(t, s.Transcript(), 1)

	// Same content and sender but 2000ms apart: a genuine repeat, two
	// entries.
	transport.deliver(t, EventMessageBroadcast,
		historyMessage("b1", "T-1", "are you there?", "other@example.com", at.Add(10*time.Second)))
	transport.deliver(t, EventMessageBroadcast,
		historyMessage("b2", "T-1", "are you there?", "other@example.com", at.Add(12*time.Second)))
	assert.Len(t, s.Transcript(), 3)
}

func TestOptimisticReconciliationAdoptsBroadcastIdentity(t *testing.T) {
	transport := newFakeTransport()
	durable := &fakeDurable{createHold: make(chan struct{})}
	defer close(durable.createHold)

	s := NewSession(transport, durable, StaticIdentity{Email: "me@example.com"}, testConfig())
	s.JoinTicket("T-1", false)

	require.NoError(t, s.Send(context.Background(), "Hello"))
	require.Len(t, s.Transcript(), 1)
	optimistic := s.Transcript()[0]
	assert.True(t, isOptimistic(optimistic))

	// The server's echo of the same send, outside the fingerprint window
	// but well inside the optimistic one.
	transport.deliver(t, EventMessageBroadcast,
		historyMessage("m-live", "T-1", "Hello", "me@example.com", optimistic.CreatedAt.Add(2*time.Second)))

	require.Len(t, s.Transcript(), 1)
	assert.Equal(t, "m-live", s.Transcript()[0].ID)
	assert.Equal(t, optimistic.LocalID, s.Transcript()[0].LocalID)
}

func TestUnmatchedSelfMessageIsDiscarded(t *testing.T) {
	transport := newFakeTransport()
	s := NewSession(transport, &fakeDurable{}, StaticIdentity{Email: "me@example.com"}, testConfig())
	s.JoinTicket("T-1", false)

	// No optimistic placeholder exists: a self-authored broadcast must not
	// blind-append, or the send pipeline's own confirmation would show the
	// message twice.
	transport.deliver(t, EventMessageBroadcast,
		historyMessage("m9", "T-1", "from my other tab", "me@example.com", time.Now()))
	assert.Empty(t, s.Transcript())
}

func TestDurableAckSettlesPlaceholderInPlace(t *testing.T) {
	s, transport, _ := newTestSession(StaticIdentity{Email: "me@example.com"})
	s.JoinTicket("T-1", false)

	transport.deliver(t, EventMessageBroadcast,
		historyMessage("b1", "T-1", "earlier", "other@example.com", time.Now()))

	require.NoError(t, s.Send(context.Background(), "reply"))

	require.Eventually(t, func() bool {
		tr := s.Transcript()
		return len(tr) == 2 && tr[1].ID != ""
	}, time.Second, 5*time.Millisecond)

	tr := s.Transcript()
	assert.Equal(t, "b1", tr[0].ID)
	assert.Equal(t, "reply", tr[1].Content)
	assert.False(t, isOptimistic(tr[1]))
}

func TestDurableAckAfterSeedCollapsesToOneEntry(t *testing.T) {
	transport := newFakeTransport()
	durable := &fakeDurable{createHold: make(chan struct{})}

	s := NewSession(transport, durable, StaticIdentity{Email: "me@example.com"}, testConfig())
	s.JoinTicket("T-1", true)
	waitForHistoryRequest(t, transport)

	require.NoError(t, s.Send(context.Background(), "Hello"))
	require.Len(t, s.Transcript(), 1)

	// The durable write landed server-side before the client processed its
	// own ack: the history page already carries the persisted copy, and the
	// seed keeps the placeholder alongside it.
	transport.deliver(t, EventTicketMessages, map[string]interface{}{
		"ticketId": "T-1",
		"messages": []*entity.Message{
			historyMessage("m1", "T-1", "Hello", "me@example.com", time.Now()),
		},
	})
	require.Eventually(t, func() bool {
		return len(s.Transcript()) == 2
	}, time.Second, 5*time.Millisecond)

	// Releasing the ack must drop the placeholder, not settle it into a
	// second entry with the same durable id.
	close(durable.createHold)
	require.Eventually(t, func() bool {
		tr := s.Transcript()
		return len(tr) == 1 && tr[0].ID == "m1" && !isOptimistic(tr[0])
	}, time.Second, 5*time.Millisecond)
}

func TestFindMatchWindowBoundaries(t *testing.T) {
	base := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	existing := historyMessage("", "T-1", "ping", "a@example.com", base)
	existing.LocalID = "local-1-abc"

	tests := []struct {
		name    string
		content string
		email   string
		offset  time.Duration
		match   bool
	}{
		{"exact duplicate", "ping", "a@example.com", 0, true},
		{"within window", "ping", "a@example.com", 900 * time.Millisecond, true},
		{"window is symmetric", "ping", "a@example.com", -900 * time.Millisecond, true},
		{"outside window", "ping", "a@example.com", 1500 * time.Millisecond, false},
		{"different sender", "ping", "b@example.com", 0, false},
		{"different content", "pong", "a@example.com", 0, false},
		{"case-insensitive email", "ping", "A@Example.COM", 0, true},
		{"whitespace-insensitive content", "  ping ", "a@example.com", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			incoming := historyMessage("x1", "T-1", tt.content, tt.email, base.Add(tt.offset))
			got := findMatch([]*entity.Message{existing}, incoming, time.Second) >= 0
			assert.Equal(t, tt.match, got)
		})
	}
}
