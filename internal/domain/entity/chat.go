package entity

import "time"

type Participant struct {
	UserID    string `json:"userId" firestore:"userId"`
	UserType  string `json:"userType" firestore:"userType"`
	UserName  string `json:"userName" firestore:"userName"`
	UserEmail string `json:"userEmail" firestore:"userEmail"`
	Status    string `json:"status" firestore:"status"` // "active", "left"
}

// Chat is one conversation bound to exactly one ticket. It is created lazily
// on first access to a ticket's conversation and only LastMessage and
// LastMessageAt mutate afterwards.
type Chat struct {
	ID            string         `json:"id" firestore:"id"`
	TicketID      string         `json:"ticketId" firestore:"ticketId"`
	Participants  []Participant  `json:"participants" firestore:"participants"`
	IsActive      bool           `json:"isActive" firestore:"isActive"`
	LastMessage   string         `json:"lastMessage,omitempty" firestore:"lastMessage,omitempty"`
	LastMessageAt time.Time      `json:"lastMessageAt" firestore:"lastMessageAt"`
	UnreadCount   map[string]int `json:"unreadCount,omitempty" firestore:"unreadCount,omitempty"`
	CreatedAt     time.Time      `json:"createdAt" firestore:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt" firestore:"updatedAt"`
}
