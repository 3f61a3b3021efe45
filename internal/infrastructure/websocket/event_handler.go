package websocket

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"supportdesk/internal/domain/entity"
)

// Live channel event names. These are part of the wire contract; clients
// match on them verbatim.
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

// HistoryLimit caps how many messages a single get_ticket_messages request
// can return, independent of the stored count.
const HistoryLimit = 200

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

type activeUser struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
	UserType string `json:"userType"`
}

// HandleClientEvent parses one inbound frame and routes it. Malformed
// payloads answer with an error event; they never close the connection.
func (h *Hub) HandleClientEvent(client *Client, frame []byte) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		log.Printf("WebSocket: bad frame from %s: %v", client.UserID, err)
		h.sendError(client, "Invalid message format")
		return
	}

	switch env.Event {
	case EventJoinTicket:
		h.handleJoinTicket(client, env.Data)
	case EventLeaveTicket:
		h.handleLeaveTicket(client, env.Data)
	case EventGetTicketMessages:
		h.handleGetTicketMessages(client, env.Data)
	case EventSendMessage:
		h.handleSendMessage(client, env.Data)
	case EventTyping:
		h.handleTyping(client, env.Data)
	case EventPresence:
		h.handlePresence(client, env.Data)
	default:
		log.Printf("WebSocket: unknown event %q from %s", env.Event, client.UserID)
		h.sendError(client, "Unknown event")
	}
}

func (h *Hub) handleJoinTicket(client *Client, data json.RawMessage) {
	var ticketID string
	if err := json.Unmarshal(data, &ticketID); err != nil || ticketID == "" {
		h.sendError(client, "Missing ticket id")
		return
	}

	// One room per connection: joining a new ticket implicitly leaves the
	// previous one, matching the client-side membership invariant.
	if client.ActiveTicket != "" && client.ActiveTicket != ticketID {
		previous := client.ActiveTicket
		h.leaveRoom(previous, client)
		h.BroadcastToTicket(previous, client.UserID, EventActiveUsers, h.activeUsersPayload(previous))
	}

	h.joinRoom(ticketID, client)
	log.Printf("WebSocket: %s joined ticket room %s", client.UserID, ticketID)

	h.sendToClient(client, EventRoomJoined, map[string]interface{}{
		"ticketId": ticketID,
	})

	users := h.activeUsersPayload(ticketID)
	h.sendToClient(client, EventActiveUsers, users)
	h.BroadcastToTicket(ticketID, client.UserID, EventActiveUsers, users)
}

func (h *Hub) handleLeaveTicket(client *Client, data json.RawMessage) {
	var ticketID string
	if err := json.Unmarshal(data, &ticketID); err != nil || ticketID == "" {
		h.sendError(client, "Missing ticket id")
		return
	}

	h.leaveRoom(ticketID, client)
	log.Printf("WebSocket: %s left ticket room %s", client.UserID, ticketID)

	h.BroadcastToTicket(ticketID, client.UserID, EventActiveUsers, h.activeUsersPayload(ticketID))
}

func (h *Hub) handleGetTicketMessages(client *Client, data json.RawMessage) {
	if h.chatService == nil {
		h.sendError(client, "Chat service unavailable")
		return
	}

	var req getTicketMessagesData
	if err := json.Unmarshal(data, &req); err != nil || req.TicketID == "" {
		h.sendError(client, "Invalid history request")
		return
	}

	limit := req.Limit
	if limit <= 0 || limit > HistoryLimit {
		limit = HistoryLimit
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	messages, err := h.chatService.TicketMessages(ctx, req.TicketID, limit)
	if err != nil {
		log.Printf("WebSocket: history fetch failed for ticket %s: %v", req.TicketID, err)
		h.sendError(client, "Failed to load ticket messages")
		return
	}

	h.sendToClient(client, EventTicketMessages, map[string]interface{}{
		"ticketId": req.TicketID,
		"messages": messages,
	})
}

// handleSendMessage fans the message out to the rest of the room. It does
// not persist: the sender's durable REST call owns persistence, so writing
// here as well would store every message twice. Recipients that later pull
// history reconcile the two representations by content fingerprint.
func (h *Hub) handleSendMessage(client *Client, data json.RawMessage) {
	var req sendMessageData
	if err := json.Unmarshal(data, &req); err != nil {
		h.sendError(client, "Invalid send payload")
		return
	}
	if req.TicketID == "" || req.Content == "" {
		h.sendError(client, "Missing required fields")
		return
	}
	if req.MessageType == "" {
		req.MessageType = "text"
	}

	broadcast := map[string]interface{}{
		"chatId":      req.ChatID,
		"ticketId":    req.TicketID,
		"sender":      client.sender(),
		"content":     req.Content,
		"messageType": req.MessageType,
		"createdAt":   time.Now().UTC(),
		"isRead":      false,
		"from":        client.UserName,
	}
	h.BroadcastToTicket(req.TicketID, client.UserID, EventMessageBroadcast, broadcast)

	log.Printf("WebSocket: message from %s broadcast to ticket %s", client.UserID, req.TicketID)
}

func (h *Hub) handleTyping(client *Client, data json.RawMessage) {
	var req typingData
	if err := json.Unmarshal(data, &req); err != nil || req.TicketID == "" {
		return
	}

	h.BroadcastToTicket(req.TicketID, client.UserID, EventUserTyping, map[string]interface{}{
		"userId":   client.UserID,
		"userName": client.UserName,
		"isTyping": req.IsTyping,
	})
}

func (h *Hub) handlePresence(client *Client, data json.RawMessage) {
	var req presenceData
	if err := json.Unmarshal(data, &req); err != nil {
		return
	}

	log.Printf("WebSocket: presence %q from %s", req.Status, client.UserID)
	if client.ActiveTicket != "" {
		h.BroadcastToTicket(client.ActiveTicket, client.UserID, EventActiveUsers, h.activeUsersPayload(client.ActiveTicket))
	}
}

func (h *Hub) activeUsersPayload(ticketID string) map[string]interface{} {
	members := h.roomMembers(ticketID)
	users := make([]activeUser, 0, len(members))
	for _, m := range members {
		users = append(users, activeUser{
			UserID:   m.UserID,
			UserName: m.UserName,
			UserType: m.UserType,
		})
	}
	return map[string]interface{}{
		"ticketId": ticketID,
		"users":    users,
	}
}

func (c *Client) sender() entity.Sender {
	return entity.Sender{
		UserID:    c.UserID,
		UserType:  c.UserType,
		UserName:  c.UserName,
		UserEmail: c.UserEmail,
	}
}
