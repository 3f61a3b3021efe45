package chatsync

import "time"

// Config carries the engine's timing and sizing knobs. Zero values are
// replaced with the defaults below, so Config{} is a valid configuration.
type Config struct {
	// HandshakeTimeout bounds the websocket dial.
	HandshakeTimeout time.Duration

	// ReconnectAttempts bounds automatic reconnection after a dropped
	// connection. ReconnectBackoff is the initial delay between attempts,
	// doubled up to ReconnectBackoffMax.
	ReconnectAttempts   int
	ReconnectBackoff    time.Duration
	ReconnectBackoffMax time.Duration

	// JoinSettle delays the history request after a room join so server-side
	// listeners are attached before the request lands.
	JoinSettle time.Duration

	// HistoryWait is how long the live history request is raced against its
	// fallback; HistorySettle is extra slack for server send latency after
	// the join.
	HistoryWait   time.Duration
	HistorySettle time.Duration

	// HistoryLimit caps the initial transcript page. When the store holds
	// more, the most recent HistoryLimit messages win.
	HistoryLimit int

	// FingerprintWindow is the timestamp tolerance for treating two
	// messages with identical trimmed content and sender as one.
	FingerprintWindow time.Duration

	// OptimisticWindow bounds how old a pending optimistic entry may be and
	// still be claimed by a matching broadcast of the same content.
	OptimisticWindow time.Duration

	// MarkerTTL and MarkerCap bound the processed-marker set that guards
	// against near-simultaneous duplicate deliveries.
	MarkerTTL time.Duration
	MarkerCap int

	// TypingIdle is how long after the last keystroke the typing signal
	// auto-clears.
	TypingIdle time.Duration
}

// DefaultConfig returns the tuning the engine ships with.
func DefaultConfig() Config {
	return Config{
		HandshakeTimeout:    10 * time.Second,
		ReconnectAttempts:   5,
		ReconnectBackoff:    500 * time.Millisecond,
		ReconnectBackoffMax: 5 * time.Second,
		JoinSettle:          100 * time.Millisecond,
		HistoryWait:         1000 * time.Millisecond,
		HistorySettle:       600 * time.Millisecond,
		HistoryLimit:        200,
		FingerprintWindow:   time.Second,
		OptimisticWindow:    5 * time.Second,
		MarkerTTL:           5 * time.Second,
		MarkerCap:           512,
		TypingIdle:          time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = d.HandshakeTimeout
	}
	if c.ReconnectAttempts <= 0 {
		c.ReconnectAttempts = d.ReconnectAttempts
	}
	if c.ReconnectBackoff <= 0 {
		c.ReconnectBackoff = d.ReconnectBackoff
	}
	if c.ReconnectBackoffMax <= 0 {
		c.ReconnectBackoffMax = d.ReconnectBackoffMax
	}
	if c.JoinSettle <= 0 {
		c.JoinSettle = d.JoinSettle
	}
	if c.HistoryWait <= 0 {
		c.HistoryWait = d.HistoryWait
	}
	if c.HistorySettle <= 0 {
		c.HistorySettle = d.HistorySettle
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = d.HistoryLimit
	}
	if c.FingerprintWindow <= 0 {
		c.FingerprintWindow = d.FingerprintWindow
	}
	if c.OptimisticWindow <= 0 {
		c.OptimisticWindow = d.OptimisticWindow
	}
	if c.MarkerTTL <= 0 {
		c.MarkerTTL = d.MarkerTTL
	}
	if c.MarkerCap <= 0 {
		c.MarkerCap = d.MarkerCap
	}
	if c.TypingIdle <= 0 {
		c.TypingIdle = d.TypingIdle
	}
	return c
}
