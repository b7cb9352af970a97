package models

import "time"

type AuditStatus string

const (
	AuditInProgress AuditStatus = "in_progress"
	AuditCompleted  AuditStatus = "completed"
)

// Audit is a single store compliance audit. Score is nil until the audit is
// scored and otherwise lies in [0, 100].
type Audit struct {
	ID          string      `bson:"_id" json:"id"`
	StoreID     string      `bson:"store_id" json:"store_id"`
	AuditorID   string      `bson:"auditor_id" json:"auditor_id"`
	Status      AuditStatus `bson:"status" json:"status"`
	Score       *float64    `bson:"score,omitempty" json:"score"`
	Notes       *string     `bson:"notes,omitempty" json:"notes"`
	CreatedAt   time.Time   `bson:"created_at" json:"created_at"`
	CompletedAt *time.Time  `bson:"completed_at,omitempty" json:"completed_at"`

	Store   *Store   `bson:"-" json:"store,omitempty"`
	Auditor *Profile `bson:"-" json:"auditor,omitempty"`
}

type AuditResponse struct {
	ID              string    `bson:"_id" json:"id"`
	AuditID         string    `bson:"audit_id" json:"audit_id"`
	ChecklistItemID string    `bson:"checklist_item_id" json:"checklist_item_id"`
	Compliant       bool      `bson:"compliant" json:"compliant"`
	Observation     *string   `bson:"observation,omitempty" json:"observation"`
	CreatedAt       time.Time `bson:"created_at" json:"created_at"`
}

type AuditPhoto struct {
	ID        string    `bson:"_id" json:"id"`
	AuditID   string    `bson:"audit_id" json:"audit_id"`
	PhotoURL  string    `bson:"photo_url" json:"photo_url"`
	Caption   *string   `bson:"caption,omitempty" json:"caption"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

type ChecklistCategory struct {
	ID         string    `bson:"_id" json:"id"`
	Name       string    `bson:"name" json:"name"`
	OrderIndex int       `bson:"order_index" json:"order_index"`
	CreatedAt  time.Time `bson:"created_at" json:"created_at"`

	Items []ChecklistItem `bson:"-" json:"items"`
}

type ChecklistItem struct {
	ID          string    `bson:"_id" json:"id"`
	CategoryID  string    `bson:"category_id" json:"category_id"`
	Description string    `bson:"description" json:"description"`
	OrderIndex  int       `bson:"order_index" json:"order_index"`
	CreatedAt   time.Time `bson:"created_at" json:"created_at"`
}
