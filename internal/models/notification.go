package models

import "time"

type NotificationType string

const (
	NotificationPhotoPending   NotificationType = "photo_pending"
	NotificationPhotoApproved  NotificationType = "photo_approved"
	NotificationPhotoRejected  NotificationType = "photo_rejected"
	NotificationAuditCompleted NotificationType = "audit_completed"
)

// Notification is an alert created by the backend for one user. Clients only
// ever flip Read from false to true.
type Notification struct {
	ID        string            `bson:"_id" json:"id"`
	UserID    string            `bson:"user_id" json:"user_id"`
	Type      NotificationType  `bson:"type" json:"type"`
	Title     string            `bson:"title" json:"title"`
	Message   string            `bson:"message" json:"message"`
	Read      bool              `bson:"read" json:"read"`
	Metadata  map[string]string `bson:"metadata,omitempty" json:"metadata"`
	CreatedAt time.Time         `bson:"created_at" json:"created_at"`
}
