package chatsync

import (
	"strconv"
	"strings"
	"time"

	"supportdesk/internal/domain/entity"
	"supportdesk/pkg/logger"
)

// origin tags where an incoming message came from. The reconciler's rules
// differ per origin: optimistic appends are unconditional, durable acks
// settle a placeholder in place, and live/history deliveries run the full
// duplicate-suppressing merge.
type origin int

const (
	originHistory origin = iota
	originLive
	originOptimistic
	originDurableAck
)

// apply merges one incoming message into the transcript. The whole decision
// is atomic under the session lock; callbacks fire after it is released.
func (s *Session) apply(msg *entity.Message, org origin) {
	s.mu.Lock()
	var changed bool
	switch org {
	case originOptimistic:
		// The one unconditional append. Guarded only against a ticket
		// switch racing the caller's snapshot.
		if msg.TicketID == s.ticketID {
			s.transcript = append(s.transcript, msg)
			changed = true
		}
	case originDurableAck:
		changed = s.settleOptimisticLocked(msg)
	default:
		changed = s.applyInboundLocked(msg)
	}
	s.mu.Unlock()

	if changed {
		s.notifyUpdate()
	}
}

// applyInboundLocked runs the merge for a live or history-delivered
// message. Caller holds s.mu. Returns true when the transcript changed.
func (s *Session) applyInboundLocked(msg *entity.Message) bool {
	// Two near-simultaneous deliveries of the same message could both pass
	// the duplicate scan before either is recorded; the marker closes that
	// window. Markers expire so the set stays bounded.
	key := fingerprintKey(msg)
	if _, busy := s.markers.Get(key); busy {
		logger.Debug("chatsync: marker hit, dropping duplicate delivery %q", key)
		return false
	}
	s.markers.Add(key, time.Now())

	// Identity and fingerprint duplicates are discarded outright.
	if i := findMatch(s.transcript, msg, s.cfg.FingerprintWindow); i >= 0 {
		logger.Debug("chatsync: duplicate of transcript entry %d, dropping", i)
		return false
	}

	// A self-authored message with no duplicate should settle a pending
	// optimistic placeholder. Without one it is discarded: the placeholder
	// either exists or the send pipeline will confirm the message itself,
	// so appending here risks a visible duplicate.
	self := s.identity.CurrentUserEmail()
	if self != "" && strings.EqualFold(msg.Sender.UserEmail, self) {
		if i := s.findOptimisticLocked(msg); i >= 0 {
			clone := *msg
			clone.LocalID = s.transcript[i].LocalID
			s.transcript[i] = &clone
			return true
		}
		logger.Debug("chatsync: dropping unmatched self message %q", strings.TrimSpace(msg.Content))
		return false
	}

	s.transcript = append(s.transcript, msg)
	return true
}

// settleOptimisticLocked replaces the optimistic entry matching the ack's
// local id with the durable message, preserving transcript position. Caller
// holds s.mu.
func (s *Session) settleOptimisticLocked(msg *entity.Message) bool {
	if msg.LocalID == "" {
		return false
	}
	for i, e := range s.transcript {
		if e.LocalID != msg.LocalID {
			continue
		}
		// A history page seeded between the send and its ack may already
		// carry the durable copy of this message. Settling on top of it
		// would leave two entries with the same id, so the placeholder is
		// dropped instead.
		for j, other := range s.transcript {
			if j != i && msg.ID != "" && other.ID == msg.ID {
				s.transcript = append(s.transcript[:i], s.transcript[i+1:]...)
				return true
			}
		}
		clone := *msg
		s.transcript[i] = &clone
		return true
	}
	// Ticket switched while the write was in flight; nothing to settle.
	logger.Debug("chatsync: durable ack for %s has no placeholder", msg.LocalID)
	return false
}

// removeOptimistic drops the placeholder with the given local id, returning
// whether it was present.
func (s *Session) removeOptimistic(localID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.transcript {
		if e.LocalID == localID && isOptimistic(e) {
			s.transcript = append(s.transcript[:i], s.transcript[i+1:]...)
			return true
		}
	}
	return false
}

// findOptimisticLocked locates a pending optimistic entry with the same
// trimmed content created recently enough to be the incoming message's
// placeholder. Caller holds s.mu.
func (s *Session) findOptimisticLocked(msg *entity.Message) int {
	content := strings.TrimSpace(msg.Content)
	now := time.Now()
	for i, e := range s.transcript {
		if isOptimistic(e) &&
			strings.TrimSpace(e.Content) == content &&
			now.Sub(e.CreatedAt) <= s.cfg.OptimisticWindow {
			return i
		}
	}
	return -1
}

// findMatch returns the index of a transcript entry that is the same
// message as msg, by durable id, local id, or content fingerprint within
// the timestamp window. Returns -1 when msg is genuinely new.
func findMatch(entries []*entity.Message, msg *entity.Message, window time.Duration) int {
	content := strings.TrimSpace(msg.Content)
	for i, e := range entries {
		if msg.ID != "" && e.ID == msg.ID {
			return i
		}
		if msg.LocalID != "" && e.LocalID == msg.LocalID {
			return i
		}
		if strings.TrimSpace(e.Content) == content &&
			strings.EqualFold(e.Sender.UserEmail, msg.Sender.UserEmail) &&
			absDuration(e.CreatedAt.Sub(msg.CreatedAt)) <= window {
			return i
		}
	}
	return -1
}

// isOptimistic reports whether the entry is an unconfirmed local
// placeholder: no durable id yet, local id following the temporary-id
// convention.
func isOptimistic(m *entity.Message) bool {
	return m.ID == "" && strings.HasPrefix(m.LocalID, "local-")
}

// fingerprintKey identifies one delivery of one human action. The exact
// millisecond timestamp is part of the key, so distinct sends of identical
// text map to distinct markers while redeliveries of the same send collide.
func fingerprintKey(m *entity.Message) string {
	return strings.TrimSpace(m.Content) + "|" +
		strings.ToLower(m.Sender.UserEmail) + "|" +
		strconv.FormatInt(m.CreatedAt.UnixMilli(), 10)
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
