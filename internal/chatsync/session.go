package chatsync

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"supportdesk/internal/domain/entity"
	"supportdesk/pkg/logger"
)

// Session is one chat surface: it tracks membership in at most one ticket
// room, owns the transcript for that ticket, and funnels every inbound
// message through the reconciler. All mutable state lives behind one mutex;
// re-entrancy guards are explicit fields, not scattered flags.
type Session struct {
	cfg       Config
	transport Transport
	durable   DurableAPI
	identity  IdentityProvider

	mu             sync.Mutex
	ticketID       string
	chatID         string
	transcript     []*entity.Message
	seeded         bool
	historyWanted  bool
	historyPending bool
	markers        *expirable.LRU[string, time.Time]
	typingActive   bool
	typingTimer    *time.Timer

	onUpdate     func()
	onSendFailed func(content string)
	onTyping     func(TypingEvent)
}

// NewSession wires a Session to its transport. The transport is shared
// process-wide state owned by the caller; the session only registers its
// handlers on it.
func NewSession(transport Transport, durable DurableAPI, identity IdentityProvider, cfg Config) *Session {
	cfg = cfg.withDefaults()
	s := &Session{
		cfg:       cfg,
		transport: transport,
		durable:   durable,
		identity:  identity,
		markers:   expirable.NewLRU[string, time.Time](cfg.MarkerCap, nil, cfg.MarkerTTL),
	}

	// message_broadcast is the single canonical live source of other
	// participants' messages. No other inbound event may feed the
	// reconciler, or the same message arrives through two channels.
	transport.On(EventMessageBroadcast, s.handleBroadcast)
	transport.On(EventUserTyping, s.handleUserTyping)
	transport.OnConnected(s.handleConnected)

	return s
}

// OnUpdate registers the transcript-changed callback (the UI's render and
// auto-scroll hook). Called with the session lock released.
func (s *Session) OnUpdate(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onUpdate = fn
}

// OnSendFailed registers the callback invoked with the original content
// when a durable send fails, so the compose box can be restored.
func (s *Session) OnSendFailed(fn func(content string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onSendFailed = fn
}

// OnTyping registers the callback for other participants' typing signals.
func (s *Session) OnTyping(fn func(TypingEvent)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onTyping = fn
}

// JoinTicket enters the ticket's room. Re-joining the active ticket is a
// no-op, except that unsatisfied history is re-requested. Joining a
// different ticket leaves the old room and resets all reconciliation state
// first, so nothing can leak across tickets.
func (s *Session) JoinTicket(ticketID string, wantHistory bool) {
	s.mu.Lock()

	if s.ticketID == ticketID {
		rerequest := wantHistory && !s.seeded && !s.historyPending
		if rerequest {
			s.historyWanted = true
			s.historyPending = true
		}
		s.mu.Unlock()
		if rerequest {
			time.AfterFunc(s.cfg.JoinSettle, func() { s.fetchHistory(ticketID) })
		}
		return
	}

	previous := s.ticketID
	s.resetLocked()
	s.ticketID = ticketID
	s.historyWanted = wantHistory
	s.historyPending = wantHistory
	s.mu.Unlock()

	if previous != "" {
		if err := s.transport.Emit(EventLeaveTicket, previous); err != nil && err != ErrNotConnected {
			logger.Debug("chatsync: leave_ticket emit failed: %v", err)
		}
	}
	if err := s.transport.Emit(EventJoinTicket, ticketID); err != nil && err != ErrNotConnected {
		logger.Debug("chatsync: join_ticket emit failed: %v", err)
	}

	if wantHistory {
		// Short settle so server-side listeners attach before the request.
		time.AfterFunc(s.cfg.JoinSettle, func() { s.fetchHistory(ticketID) })
	}
}

// LeaveTicket exits the room and clears all per-ticket state. A ticket id
// that is not the active one is ignored.
func (s *Session) LeaveTicket(ticketID string) {
	s.mu.Lock()
	if s.ticketID != ticketID {
		s.mu.Unlock()
		return
	}
	s.resetLocked()
	s.mu.Unlock()

	if err := s.transport.Emit(EventLeaveTicket, ticketID); err != nil && err != ErrNotConnected {
		logger.Debug("chatsync: leave_ticket emit failed: %v", err)
	}
}

// Close tears down the surface: leaves the active room, if any. The shared
// transport is left alone; its owner disposes it when the whole messaging
// feature is dismissed.
func (s *Session) Close() {
	s.mu.Lock()
	ticketID := s.ticketID
	s.resetLocked()
	s.mu.Unlock()

	if ticketID != "" {
		if err := s.transport.Emit(EventLeaveTicket, ticketID); err != nil && err != ErrNotConnected {
			logger.Debug("chatsync: leave_ticket emit failed: %v", err)
		}
	}
}

// ActiveTicket returns the currently joined ticket id, empty when idle.
func (s *Session) ActiveTicket() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ticketID
}

// Transcript returns a snapshot of the current transcript in display order.
func (s *Session) Transcript() []*entity.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*entity.Message, len(s.transcript))
	copy(out, s.transcript)
	return out
}

// resetLocked clears every piece of per-ticket state. Caller holds s.mu.
func (s *Session) resetLocked() {
	s.ticketID = ""
	s.chatID = ""
	s.transcript = nil
	s.seeded = false
	s.historyWanted = false
	s.historyPending = false
	s.markers.Purge()
	s.typingActive = false
	if s.typingTimer != nil {
		s.typingTimer.Stop()
		s.typingTimer = nil
	}
}

func (s *Session) handleBroadcast(data json.RawMessage) {
	var msg broadcastMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		logger.Debug("chatsync: dropping malformed broadcast: %v", err)
		return
	}

	s.mu.Lock()
	active := s.ticketID
	s.mu.Unlock()

	// Stale room events must never reach the reconciler.
	if msg.TicketID != active {
		logger.Debug("chatsync: dropping broadcast for ticket %s (active: %s)", msg.TicketID, active)
		return
	}

	s.apply(&msg.Message, originLive)
}

func (s *Session) handleUserTyping(data json.RawMessage) {
	var ev TypingEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return
	}

	s.mu.Lock()
	fn := s.onTyping
	s.mu.Unlock()
	if fn != nil {
		fn(ev)
	}
}

// handleConnected runs after every successful (re)connect: announce
// presence and re-enter the active room so live delivery resumes. Messages
// redelivered after the rejoin are absorbed by the reconciler.
func (s *Session) handleConnected() {
	if err := s.transport.Emit(EventPresence, presenceData{Status: "online"}); err != nil && err != ErrNotConnected {
		logger.Debug("chatsync: presence emit failed: %v", err)
	}

	s.mu.Lock()
	ticketID := s.ticketID
	s.mu.Unlock()
	if ticketID == "" {
		return
	}

	logger.Info("chatsync: re-joining ticket room %s after reconnect", ticketID)
	if err := s.transport.Emit(EventJoinTicket, ticketID); err != nil && err != ErrNotConnected {
		logger.Debug("chatsync: rejoin emit failed: %v", err)
	}
}

func (s *Session) notifyUpdate() {
	s.mu.Lock()
	fn := s.onUpdate
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}
