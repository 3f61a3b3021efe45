package chatsync

import (
	"encoding/json"

	"supportdesk/internal/domain/entity"
)

// Live channel event names. These mirror the server's wire contract and
// must match verbatim.
const (
	EventJoinTicket        = "join_ticket"
	EventLeaveTicket       = "leave_ticket"
	EventGetTicketMessages = "get_ticket_messages"
	EventTicketMessages    = "ticket_messages"
	EventSendMessage       = "send_message"
	EventMessageBroadcast  = "message_broadcast"
	EventTyping            = "typing"
	EventUserTyping        = "user_typing"
	EventRoomJoined        = "room_joined"
	EventWelcome           = "welcome"
	EventActiveUsers       = "active_users"
	EventPresence          = "presence"
	EventError             = "error"
)

// Envelope frames every live channel message.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type getTicketMessagesData struct {
	TicketID string `json:"ticketId"`
	Limit    int    `json:"limit"`
}

type sendMessageData struct {
	ChatID      string `json:"chatId"`
	TicketID    string `json:"ticketId"`
	Content     string `json:"content"`
	MessageType string `json:"messageType"`
}

type typingData struct {
	TicketID string `json:"ticketId"`
	IsTyping bool   `json:"isTyping"`
}

type presenceData struct {
	Status string `json:"status"`
}

// broadcastMessage is a message_broadcast payload: Message fields plus the
// sender's display name.
type broadcastMessage struct {
	entity.Message
	From string `json:"from"`
}

// TypingEvent is a user_typing notification from another participant.
type TypingEvent struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
	IsTyping bool   `json:"isTyping"`
}

// ticketMessagesData accepts both shapes the server may use for the
// ticket_messages response: a bare array of messages, or an object wrapping
// the array with the ticket id.
type ticketMessagesData struct {
	TicketID string
	Messages []*entity.Message
}

func (d *ticketMessagesData) UnmarshalJSON(data []byte) error {
	var bare []*entity.Message
	if err := json.Unmarshal(data, &bare); err == nil {
		d.Messages = bare
		return nil
	}

	var wrapped struct {
		TicketID string            `json:"ticketId"`
		Messages []*entity.Message `json:"messages"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return err
	}
	d.TicketID = wrapped.TicketID
	d.Messages = wrapped.Messages
	return nil
}
