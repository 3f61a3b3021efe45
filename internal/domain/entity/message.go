package entity

import "time"

// Message types carried on the wire and stored in Firestore.
const (
	MessageTypeText       = "text"
	MessageTypeImage      = "image"
	MessageTypeFile       = "file"
	MessageTypeSystemInfo = "system-info"
)

type Sender struct {
	UserID    string `json:"userId" firestore:"userId"`
	UserType  string `json:"userType" firestore:"userType"` // "customer", "agent", "manager"
	UserName  string `json:"userName" firestore:"userName"`
	UserEmail string `json:"userEmail" firestore:"userEmail"`
}

type Attachment struct {
	URL      string `json:"url" firestore:"url"`
	FileName string `json:"fileName,omitempty" firestore:"fileName,omitempty"`
	MimeType string `json:"mimeType,omitempty" firestore:"mimeType,omitempty"`
	Size     int64  `json:"size,omitempty" firestore:"size,omitempty"`
}

// Message is one chat utterance. LocalID is only ever set by clients for
// entries that have not been durably persisted yet; the store never writes it.
type Message struct {
	ID          string       `json:"id" firestore:"id"`
	LocalID     string       `json:"localId,omitempty" firestore:"-"`
	ChatID      string       `json:"chatId" firestore:"chatId"`
	TicketID    string       `json:"ticketId" firestore:"ticketId"`
	Sender      Sender       `json:"sender" firestore:"sender"`
	Content     string       `json:"content" firestore:"content"`
	MessageType string       `json:"messageType" firestore:"messageType"`
	CreatedAt   time.Time    `json:"createdAt" firestore:"createdAt"`
	IsRead      bool         `json:"isRead" firestore:"isRead"`
	ReadBy      []string     `json:"readBy,omitempty" firestore:"readBy,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty" firestore:"attachments,omitempty"`
}
