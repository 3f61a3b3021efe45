package entity

import "time"

// User roles mirror the participant userType values on the wire.
const (
	RoleCustomer = "customer"
	RoleAgent    = "agent"
	RoleManager  = "manager"
)

type User struct {
	ID       string `json:"id" firestore:"id"`
	Email    string `json:"email" firestore:"email"`
	Username string `json:"username" firestore:"username"`
	Phone    string `json:"phone,omitempty" firestore:"phone,omitempty"`
	Role     string `json:"role" firestore:"role"`
	Status   string `json:"status" firestore:"status"`

	AvatarURL    string    `json:"avatarUrl,omitempty" firestore:"avatarURL,omitempty"`
	LastSeen     time.Time `json:"lastSeen" firestore:"lastSeen"`
	OnlineStatus string    `json:"onlineStatus" firestore:"onlineStatus"`

	CreatedAt time.Time `json:"createdAt" firestore:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" firestore:"updatedAt"`
}
