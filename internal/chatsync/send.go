package chatsync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"supportdesk/internal/domain/entity"
	"supportdesk/pkg/logger"
)

// ErrNoActiveTicket is returned by Send when the session has not joined a
// room.
var ErrNoActiveTicket = errors.New("chatsync: no active ticket")

// Send runs the outbound pipeline: an optimistic placeholder appears in the
// transcript immediately, the message is emitted live for fan-out, and the
// durable create runs in the background as the write of record. The ack
// settles the placeholder in place; a failed write removes it and hands the
// content back through OnSendFailed.
//
// The live emit is not held back until the durable ack. Latency wins: on a
// durable failure other participants may keep a message the sender's own
// view rolled back.
func (s *Session) Send(ctx context.Context, content string) error {
	if strings.TrimSpace(content) == "" {
		return nil
	}

	s.mu.Lock()
	if s.ticketID == "" {
		s.mu.Unlock()
		return ErrNoActiveTicket
	}
	ticketID := s.ticketID
	chatID := s.chatID
	s.mu.Unlock()

	msg := &entity.Message{
		LocalID:     newLocalID(),
		ChatID:      chatID,
		TicketID:    ticketID,
		Sender:      entity.Sender{UserEmail: s.identity.CurrentUserEmail()},
		Content:     content,
		MessageType: entity.MessageTypeText,
		CreatedAt:   time.Now(),
	}
	s.apply(msg, originOptimistic)
	s.stopTyping()

	// Fan-out to the room. A dead connection is a silent no-op here; the
	// durable call below still persists the message.
	err := s.transport.Emit(EventSendMessage, sendMessageData{
		ChatID:      chatID,
		TicketID:    ticketID,
		Content:     content,
		MessageType: entity.MessageTypeText,
	})
	if err != nil && err != ErrNotConnected {
		logger.Debug("chatsync: live send emit failed: %v", err)
	}

	go s.persist(ctx, msg.LocalID, ticketID, chatID, content)
	return nil
}

func (s *Session) persist(ctx context.Context, localID, ticketID, chatID, content string) {
	if chatID == "" {
		chat, err := s.durable.GetOrCreateChat(ctx, ticketID)
		if err != nil {
			logger.Error("chatsync: chat lookup for send failed: %v", err)
			s.failSend(localID, content)
			return
		}
		chatID = chat.ID
		s.mu.Lock()
		if s.ticketID == ticketID && s.chatID == "" {
			s.chatID = chatID
		}
		s.mu.Unlock()
	}

	stored, err := s.durable.CreateMessage(ctx, chatID, content, entity.MessageTypeText)
	if err != nil {
		logger.Error("chatsync: durable send failed: %v", err)
		s.failSend(localID, content)
		return
	}

	ack := *stored
	ack.LocalID = localID
	s.apply(&ack, originDurableAck)
}

// failSend rolls the optimistic entry back and surfaces the content so the
// compose box can be restored for a retry.
func (s *Session) failSend(localID, content string) {
	if s.removeOptimistic(localID) {
		s.notifyUpdate()
	}

	s.mu.Lock()
	fn := s.onSendFailed
	s.mu.Unlock()
	if fn != nil {
		fn(content)
	}
}

// Typing marks the user as typing. The signal goes out at most once per
// contiguous burst and auto-clears after the idle window or immediately on
// send.
func (s *Session) Typing() {
	s.mu.Lock()
	ticketID := s.ticketID
	if ticketID == "" {
		s.mu.Unlock()
		return
	}
	first := !s.typingActive
	s.typingActive = true
	if s.typingTimer != nil {
		s.typingTimer.Stop()
	}
	s.typingTimer = time.AfterFunc(s.cfg.TypingIdle, s.stopTyping)
	s.mu.Unlock()

	if first {
		if err := s.transport.Emit(EventTyping, typingData{TicketID: ticketID, IsTyping: true}); err != nil && err != ErrNotConnected {
			logger.Debug("chatsync: typing emit failed: %v", err)
		}
	}
}

func (s *Session) stopTyping() {
	s.mu.Lock()
	if !s.typingActive {
		s.mu.Unlock()
		return
	}
	s.typingActive = false
	if s.typingTimer != nil {
		s.typingTimer.Stop()
		s.typingTimer = nil
	}
	ticketID := s.ticketID
	s.mu.Unlock()

	if ticketID == "" {
		return
	}
	if err := s.transport.Emit(EventTyping, typingData{TicketID: ticketID, IsTyping: false}); err != nil && err != ErrNotConnected {
		logger.Debug("chatsync: typing emit failed: %v", err)
	}
}

// newLocalID builds a temporary id embedding the send timestamp, so
// optimistic entries are recognizable and roughly ordered by creation.
func newLocalID() string {
	return fmt.Sprintf("local-%d-%s", time.Now().UnixMilli(), uuid.NewString()[:8])
}
