package entity

import "time"

// PromotionStatus is the state of one outbox row
type PromotionStatus string

const (
	PromotionPending PromotionStatus = "PENDING"
	PromotionDone    PromotionStatus = "DONE"
	PromotionFailed  PromotionStatus = "FAILED"
)

// PendingPromotion records that a temporary document must be moved to
// permanent storage once the transaction that produced EntityID commits.
type PendingPromotion struct {
	ID            int64           `json:"id"`
	SessionID     string          `json:"session_id"`
	Step          WizardStep      `json:"step"`
	FileName      string          `json:"file_name"`
	EntityType    EntityType      `json:"entity_type"`
	EntityID      string          `json:"entity_id"`
	Status        PromotionStatus `json:"status"`
	Attempts      int             `json:"attempts"`
	LastError     string          `json:"last_error,omitempty"`
	PermanentPath string          `json:"permanent_path,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}
