package chatsync

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"supportdesk/internal/domain/entity"
	"supportdesk/pkg/logger"
)

// fetchHistory seeds the transcript for ticketID: the live
// get_ticket_messages path is raced against a bounded wait, with the
// durable REST page as fallback. Whichever answer lands first seeds;
// everything after the seed is a no-op. Runs off the caller's goroutine.
func (s *Session) fetchHistory(ticketID string) {
	got := make(chan []*entity.Message, 1)

	// Idempotent registration: a second fetch replaces this handler rather
	// than stacking another one.
	s.transport.On(EventTicketMessages, func(data json.RawMessage) {
		var resp ticketMessagesData
		if err := json.Unmarshal(data, &resp); err != nil {
			logger.Debug("chatsync: dropping malformed history response: %v", err)
			return
		}
		if resp.TicketID != "" && resp.TicketID != ticketID {
			logger.Debug("chatsync: dropping history for ticket %s (requested: %s)", resp.TicketID, ticketID)
			return
		}
		select {
		case got <- resp.Messages:
		default:
		}
	})

	liveRequested := false
	if s.transport.Connected() {
		err := s.transport.Emit(EventGetTicketMessages, getTicketMessagesData{
			TicketID: ticketID,
			Limit:    s.cfg.HistoryLimit,
		})
		liveRequested = err == nil
	}

	if liveRequested {
		select {
		case msgs := <-got:
			s.seedTranscript(ticketID, msgs)
			return
		case <-time.After(s.cfg.HistoryWait + s.cfg.HistorySettle):
			logger.Debug("chatsync: live history timed out for ticket %s, falling back", ticketID)
		}
	}

	s.fetchHistoryDurable(ticketID)
}

func (s *Session) fetchHistoryDurable(ticketID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	chat, err := s.durable.GetOrCreateChat(ctx, ticketID)
	if err != nil {
		logger.Error("chatsync: durable chat lookup failed for ticket %s: %v", ticketID, err)
		s.historyFailed(ticketID)
		return
	}

	s.mu.Lock()
	if s.ticketID == ticketID {
		s.chatID = chat.ID
	}
	s.mu.Unlock()

	msgs, err := s.durable.ListMessages(ctx, chat.ID, s.cfg.HistoryLimit)
	if err != nil {
		logger.Error("chatsync: durable history failed for chat %s: %v", chat.ID, err)
		s.historyFailed(ticketID)
		return
	}

	s.seedTranscript(ticketID, msgs)
}

// historyFailed clears the pending flag so a later re-join can retry. The
// transcript stays empty; the surface remains usable for sending.
func (s *Session) historyFailed(ticketID string) {
	s.mu.Lock()
	if s.ticketID == ticketID {
		s.historyPending = false
	}
	s.mu.Unlock()
}

// seedTranscript applies the initial history page. The guard runs at apply
// time against the currently active ticket, so a late response for a ticket
// the user already left, or a second response after the seed, is discarded
// without clobbering messages received live in the interim.
func (s *Session) seedTranscript(ticketID string, msgs []*entity.Message) {
	s.mu.Lock()

	if s.ticketID != ticketID || s.seeded {
		s.mu.Unlock()
		logger.Debug("chatsync: discarding history page for ticket %s (seeded=%v)", ticketID, s.seeded)
		return
	}

	// Oldest-first regardless of the order the backend chose; when the page
	// exceeds the cap, recency wins over completeness.
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
	if len(msgs) > s.cfg.HistoryLimit {
		msgs = msgs[len(msgs)-s.cfg.HistoryLimit:]
	}

	// The history page goes first; entries that arrived live or optimistic
	// before the seed are re-applied on top so overlap with the page
	// collapses to one entry. Optimistic placeholders are kept
	// unconditionally; their durable ack or broadcast settles them later.
	merged := make([]*entity.Message, 0, len(msgs)+len(s.transcript))
	merged = append(merged, msgs...)
	for _, m := range s.transcript {
		if isOptimistic(m) || findMatch(merged, m, s.cfg.FingerprintWindow) < 0 {
			merged = append(merged, m)
		}
	}

	s.transcript = merged
	s.seeded = true
	s.historyPending = false
	if s.chatID == "" && len(msgs) > 0 {
		s.chatID = msgs[len(msgs)-1].ChatID
	}
	s.mu.Unlock()

	logger.Info("chatsync: seeded %d message(s) for ticket %s", len(msgs), ticketID)
	s.notifyUpdate()
}
