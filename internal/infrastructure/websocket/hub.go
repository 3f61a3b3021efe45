package websocket

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"supportdesk/internal/domain/entity"
)

// Envelope is the frame every live event travels in, both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Client represents one connected chat participant.
type Client struct {
	UserID       string
	UserType     string
	UserName     string
	UserEmail    string
	Conn         *websocket.Conn
	Send         chan []byte
	ActiveTicket string
}

// ChatService is the slice of the chat use case the hub needs. Declared here
// so the hub does not import the usecase package.
type ChatService interface {
	TicketMessages(ctx context.Context, ticketID string, limit int) ([]*entity.Message, error)
}

// Hub manages all active connections and per-ticket rooms.
type Hub struct {
	clients map[string]*Client            // userID -> client
	rooms   map[string]map[string]*Client // ticketID -> userID -> client

	Register   chan *Client
	Unregister chan *Client

	chatService ChatService
	mutex       sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		rooms:      make(map[string]map[string]*Client),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
	}
}

// SetChatService wires the chat use case in after construction; the use case
// itself takes the hub as a dependency, so this breaks the cycle.
func (h *Hub) SetChatService(svc ChatService) {
	h.chatService = svc
}

// Start runs the hub's registration loop until ctx is cancelled.
func (h *Hub) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case client := <-h.Register:
				h.mutex.Lock()
				h.clients[client.UserID] = client
				h.mutex.Unlock()
				log.Printf("WebSocket: client registered: %s", client.UserID)

				h.sendToClient(client, "welcome", map[string]interface{}{
					"userId":  client.UserID,
					"message": "connected",
				})

			case client := <-h.Unregister:
				h.mutex.Lock()
				if _, ok := h.clients[client.UserID]; ok {
					delete(h.clients, client.UserID)
					close(client.Send)
				}
				h.mutex.Unlock()
				h.leaveAllRooms(client)
				log.Printf("WebSocket: client unregistered: %s", client.UserID)

			case <-ctx.Done():
				return
			}
		}
	}()
}

func (h *Hub) joinRoom(ticketID string, client *Client) {
	h.mutex.Lock()
	room, ok := h.rooms[ticketID]
	if !ok {
		room = make(map[string]*Client)
		h.rooms[ticketID] = room
	}
	room[client.UserID] = client
	client.ActiveTicket = ticketID
	h.mutex.Unlock()
}

func (h *Hub) leaveRoom(ticketID string, client *Client) {
	h.mutex.Lock()
	if room, ok := h.rooms[ticketID]; ok {
		delete(room, client.UserID)
		if len(room) == 0 {
			delete(h.rooms, ticketID)
		}
	}
	if client.ActiveTicket == ticketID {
		client.ActiveTicket = ""
	}
	h.mutex.Unlock()
}

func (h *Hub) leaveAllRooms(client *Client) {
	h.mutex.Lock()
	for ticketID, room := range h.rooms {
		if _, ok := room[client.UserID]; ok {
			delete(room, client.UserID)
			if len(room) == 0 {
				delete(h.rooms, ticketID)
			}
		}
	}
	h.mutex.Unlock()
}

// roomMembers returns a snapshot of the clients joined to a ticket room.
func (h *Hub) roomMembers(ticketID string) []*Client {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	room, ok := h.rooms[ticketID]
	if !ok {
		return nil
	}
	members := make([]*Client, 0, len(room))
	for _, c := range room {
		members = append(members, c)
	}
	return members
}

// BroadcastToTicket sends an event to every member of a ticket room except
// the user identified by exceptUserID (pass "" to include everyone).
func (h *Hub) BroadcastToTicket(ticketID, exceptUserID, event string, data interface{}) {
	for _, member := range h.roomMembers(ticketID) {
		if member.UserID == exceptUserID {
			continue
		}
		h.sendToClient(member, event, data)
	}
}

func (h *Hub) sendToClient(client *Client, event string, data interface{}) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		log.Printf("WebSocket: failed to marshal %s payload for %s: %v", event, client.UserID, err)
		return
	}
	frame, err := json.Marshal(Envelope{Event: event, Data: dataBytes})
	if err != nil {
		return
	}

	select {
	case client.Send <- frame:
	default:
		log.Printf("WebSocket: client %s send channel full, dropping connection", client.UserID)
		h.mutex.Lock()
		if _, ok := h.clients[client.UserID]; ok {
			delete(h.clients, client.UserID)
			close(client.Send)
		}
		h.mutex.Unlock()
		h.leaveAllRooms(client)
	}
}

func (h *Hub) sendError(client *Client, message string) {
	h.sendToClient(client, "error", map[string]string{"message": message})
}

// ReadPump reads frames from the connection and dispatches them until the
// peer goes away.
func (c *Client) ReadPump(h *Hub) {
	defer func() {
		h.Unregister <- c
		c.Conn.Close()
	}()

	for {
		_, frame, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket: read error from %s: %v", c.UserID, err)
			}
			break
		}

		h.HandleClientEvent(c, frame)
	}
}

// WritePump drains the client's send channel onto the connection.
func (c *Client) WritePump() {
	defer c.Conn.Close()

	for {
		frame, ok := <-c.Send
		if !ok {
			c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}

		c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := c.Conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			log.Printf("WebSocket: write error to %s: %v", c.UserID, err)
			return
		}
	}
}
