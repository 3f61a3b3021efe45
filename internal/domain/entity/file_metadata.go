package entity

import "time"

type FileMetadata struct {
	ID         string    `json:"id" firestore:"id"`
	URL        string    `json:"url" firestore:"url"`
	ObjectName string    `json:"objectName" firestore:"objectName"`
	FileName   string    `json:"fileName" firestore:"fileName"`
	MimeType   string    `json:"mimeType" firestore:"mimeType"`
	Size       int64     `json:"size" firestore:"size"`
	EntityType string    `json:"entityType,omitempty" firestore:"entityType,omitempty"` // "message", "ticket"
	EntityID   string    `json:"entityId,omitempty" firestore:"entityId,omitempty"`
	UploadedBy string    `json:"uploadedBy" firestore:"uploadedBy"`
	IsPublic   bool      `json:"isPublic" firestore:"isPublic"`
	CreatedAt  time.Time `json:"createdAt" firestore:"createdAt"`
}
