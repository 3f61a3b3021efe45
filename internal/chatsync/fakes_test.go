package chatsync

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"supportdesk/internal/domain/entity"
)

type emittedEvent struct {
	event string
	data  json.RawMessage
}

// fakeTransport is a scripted in-memory Transport: tests inspect what the
// session emitted and inject inbound events by hand.
type fakeTransport struct {
	mu          sync.Mutex
	connected   bool
	handlers    map[string]EventHandler
	emitted     []emittedEvent
	onConnected func()
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		connected: true,
		handlers:  make(map[string]EventHandler),
	}
}

func (t *fakeTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	t.connected = true
	cb := t.onConnected
	t.mu.Unlock()
	if cb != nil {
		cb()
	}
	return nil
}

func (t *fakeTransport) Disconnect() {
	t.mu.Lock()
	t.connected = false
	t.mu.Unlock()
}

func (t *fakeTransport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

func (t *fakeTransport) Emit(event string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.connected {
		return ErrNotConnected
	}
	t.emitted = append(t.emitted, emittedEvent{event: event, data: data})
	return nil
}

func (t *fakeTransport) On(event string, handler EventHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handlers[event] = handler
}

func (t *fakeTransport) OnConnected(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onConnected = fn
}

// deliver injects one inbound event as if the server sent it.
func (t *fakeTransport) deliver(tt *testing.T, event string, payload interface{}) {
	tt.Helper()
	data, err := json.Marshal(payload)
	require.NoError(tt, err)

	t.mu.Lock()
	handler := t.handlers[event]
	t.mu.Unlock()
	require.NotNil(tt, handler, "no handler registered for %s", event)
	handler(data)
}

func (t *fakeTransport) count(event string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, e := range t.emitted {
		if e.event == event {
			n++
		}
	}
	return n
}

// drop simulates a lost connection; reconnect simulates the transport
// re-establishing it and firing the connected hook.
func (t *fakeTransport) drop() {
	t.mu.Lock()
	t.connected = false
	t.mu.Unlock()
}

func (t *fakeTransport) reconnect() {
	t.mu.Lock()
	t.connected = true
	cb := t.onConnected
	t.mu.Unlock()
	if cb != nil {
		cb()
	}
}

// fakeDurable is a scripted DurableAPI.
type fakeDurable struct {
	mu         sync.Mutex
	chat       *entity.Chat
	history    []*entity.Message
	chatErr    error
	listErr    error
	createErr  error
	createHold chan struct{}
	seq        int
}

func (d *fakeDurable) GetOrCreateChat(ctx context.Context, ticketID string) (*entity.Chat, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.chatErr != nil {
		return nil, d.chatErr
	}
	if d.chat != nil {
		return d.chat, nil
	}
	return &entity.Chat{ID: "chat-1", TicketID: ticketID}, nil
}

func (d *fakeDurable) ListMessages(ctx context.Context, chatID string, limit int) ([]*entity.Message, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.listErr != nil {
		return nil, d.listErr
	}
	return d.history, nil
}

func (d *fakeDurable) CreateMessage(ctx context.Context, chatID, content, messageType string) (*entity.Message, error) {
	d.mu.Lock()
	hold := d.createHold
	d.mu.Unlock()
	if hold != nil {
		<-hold
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.createErr != nil {
		return nil, d.createErr
	}
	d.seq++
	return &entity.Message{
		ID:          fmt.Sprintf("m%d", d.seq),
		ChatID:      chatID,
		Content:     content,
		MessageType: messageType,
		CreatedAt:   time.Now(),
	}, nil
}

// testConfig shrinks the waits so tests settle quickly.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JoinSettle = time.Millisecond
	cfg.HistoryWait = 30 * time.Millisecond
	cfg.HistorySettle = 10 * time.Millisecond
	cfg.TypingIdle = 30 * time.Millisecond
	return cfg
}

func historyMessage(id, ticketID, content, email string, at time.Time) *entity.Message {
	return &entity.Message{
		ID:          id,
		ChatID:      "chat-1",
		TicketID:    ticketID,
		Sender:      entity.Sender{UserEmail: email},
		Content:     content,
		MessageType: entity.MessageTypeText,
		CreatedAt:   at,
	}
}
