package entity

import "time"

type Ticket struct {
	ID              string    `json:"id" firestore:"id"`
	Subject         string    `json:"subject" firestore:"subject"`
	Description     string    `json:"description,omitempty" firestore:"description,omitempty"`
	Status          string    `json:"status" firestore:"status"` // "open", "pending", "resolved", "closed"
	Priority        string    `json:"priority,omitempty" firestore:"priority,omitempty"`
	CustomerID      string    `json:"customerId" firestore:"customerId"`
	AssignedAgentID string    `json:"assignedAgentId,omitempty" firestore:"assignedAgentId,omitempty"`
	CreatedAt       time.Time `json:"createdAt" firestore:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt" firestore:"updatedAt"`
}
