package chatsync

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	gorillaws "github.com/gorilla/websocket"

	"supportdesk/pkg/logger"
)

// ErrNotConnected is returned by Emit when no live connection exists. Send
// paths treat it as a silent no-op; the durable call still persists.
var ErrNotConnected = errors.New("chatsync: not connected")

// EventHandler receives the data half of one inbound envelope.
type EventHandler func(data json.RawMessage)

// Transport is the live bidirectional channel to the messaging backend.
// Connect resolves even when the handshake fails: a dead live channel
// degrades the engine to durable-fetch-only mode, it never disables the
// feature. On replaces any previous handler for the event, so repeated
// registration cannot double-deliver.
type Transport interface {
	Connect(ctx context.Context) error
	Disconnect()
	Connected() bool
	Emit(event string, payload interface{}) error
	On(event string, handler EventHandler)
	OnConnected(fn func())
}

// wsTransport is the gorilla/websocket Transport. One connection, created
// lazily, reused across ticket switches, with bounded auto-reconnect.
type wsTransport struct {
	url   string
	token string
	cfg   Config

	mu          sync.Mutex
	conn        *gorillaws.Conn
	connected   bool
	closed      bool
	handlers    map[string]EventHandler
	onConnected func()
}

// NewTransport returns a Transport dialing the given websocket URL. The
// bearer token is carried in the handshake Authorization header and as a
// token query parameter for servers that cannot read headers on upgrade.
func NewTransport(url, token string, cfg Config) Transport {
	return &wsTransport{
		url:      url,
		token:    token,
		cfg:      cfg.withDefaults(),
		handlers: make(map[string]EventHandler),
	}
}

func (t *wsTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	if t.connected {
		t.mu.Unlock()
		return nil
	}
	t.closed = false
	t.mu.Unlock()

	if err := t.dial(ctx); err != nil {
		// Degraded mode: the caller falls back to the durable path.
		logger.Warn("chatsync: live connection failed, continuing without it: %v", err)
		return nil
	}
	return nil
}

func (t *wsTransport) dial(ctx context.Context) error {
	dialer := gorillaws.Dialer{HandshakeTimeout: t.cfg.HandshakeTimeout}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+t.token)

	url := t.url
	if t.token != "" {
		sep := "?"
		for _, c := range url {
			if c == '?' {
				sep = "&"
				break
			}
		}
		url = url + sep + "token=" + t.token
	}

	conn, _, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		return err
	}

	t.mu.Lock()
	t.conn = conn
	t.connected = true
	cb := t.onConnected
	t.mu.Unlock()

	go t.readLoop(conn)

	if cb != nil {
		cb()
	}
	return nil
}

func (t *wsTransport) readLoop(conn *gorillaws.Conn) {
	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			t.mu.Lock()
			stale := t.conn != conn
			if !stale {
				t.connected = false
			}
			closed := t.closed
			t.mu.Unlock()
			if !stale && !closed {
				logger.Warn("chatsync: connection lost: %v", err)
				go t.reconnect()
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(frame, &env); err != nil {
			logger.Debug("chatsync: dropping malformed frame: %v", err)
			continue
		}

		t.mu.Lock()
		handler := t.handlers[env.Event]
		t.mu.Unlock()
		if handler != nil {
			handler(env.Data)
		}
	}
}

func (t *wsTransport) reconnect() {
	backoff := t.cfg.ReconnectBackoff
	for attempt := 1; attempt <= t.cfg.ReconnectAttempts; attempt++ {
		time.Sleep(backoff)
		if backoff *= 2; backoff > t.cfg.ReconnectBackoffMax {
			backoff = t.cfg.ReconnectBackoffMax
		}

		t.mu.Lock()
		if t.closed || t.connected {
			t.mu.Unlock()
			return
		}
		t.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), t.cfg.HandshakeTimeout)
		err := t.dial(ctx)
		cancel()
		if err == nil {
			logger.Info("chatsync: reconnected after %d attempt(s)", attempt)
			return
		}
		logger.Debug("chatsync: reconnect attempt %d failed: %v", attempt, err)
	}
	logger.Error("chatsync: giving up on reconnection after %d attempts", t.cfg.ReconnectAttempts)
}

func (t *wsTransport) Disconnect() {
	t.mu.Lock()
	t.closed = true
	t.connected = false
	conn := t.conn
	t.conn = nil
	t.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
}

func (t *wsTransport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

func (t *wsTransport) Emit(event string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.connected || t.conn == nil {
		return ErrNotConnected
	}
	return t.conn.WriteJSON(Envelope{Event: event, Data: data})
}

func (t *wsTransport) On(event string, handler EventHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handlers[event] = handler
}

func (t *wsTransport) OnConnected(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onConnected = fn
}
