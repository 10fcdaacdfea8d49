package entity

import (
	"encoding/json"
	"time"
)

// RequestStatus is the lifecycle status of an ApprovalRequest
type RequestStatus string

const (
	RequestPending  RequestStatus = "PENDING"
	RequestApproved RequestStatus = "APPROVED"
	RequestRejected RequestStatus = "REJECTED"
)

// ApprovalRequest is one proposed mutation awaiting a checker decision
type ApprovalRequest struct {
	ID                string          `json:"id"`
	EntityType        EntityType      `json:"entity_type"`
	EntityID          string          `json:"entity_id"`
	ActionType        ActionType      `json:"action_type"`
	RequestData       json.RawMessage `json:"request_data"`
	Status            RequestStatus   `json:"status"`
	MakerID           string          `json:"maker_id"`
	MakerRole         string          `json:"maker_role"`
	ApproverRole      string          `json:"approver_role"`
	ApproverID        string          `json:"approver_id,omitempty"`
	SubJurisdictionID string          `json:"sub_jurisdiction_id,omitempty"`
	Comments          string          `json:"comments,omitempty"`
	RejectionReason   string          `json:"rejection_reason,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
	ApprovedAt        *time.Time      `json:"approved_at,omitempty"`
	RejectedAt        *time.Time      `json:"rejected_at,omitempty"`
	IsDeleted         bool            `json:"is_deleted"`
}

// Key returns the request's (entity, action) pair
func (r *ApprovalRequest) Key() ActionKey {
	return ActionKey{Entity: r.EntityType, Action: r.ActionType}
}

// LogAction names the transition recorded in an ApprovalLogEntry
type LogAction string

const (
	LogActionCreate  LogAction = "CREATE"
	LogActionApprove LogAction = "APPROVE"
	LogActionReject  LogAction = "REJECT"
)

// ApprovalLogEntry is one append-only row of a request's trail.
// PreviousStatus is empty for the CREATE row.
type ApprovalLogEntry struct {
	ID             int64         `json:"id"`
	RequestID      string        `json:"request_id"`
	Action         LogAction     `json:"action"`
	PerformedBy    string        `json:"performed_by"`
	PerformerRole  string        `json:"performer_role"`
	PreviousStatus RequestStatus `json:"previous_status,omitempty"`
	NewStatus      RequestStatus `json:"new_status"`
	Comments       string        `json:"comments,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
}

// Actor is the already-authenticated caller identity
type Actor struct {
	ID                string `json:"id"`
	Role              string `json:"role"`
	SubJurisdictionID string `json:"sub_jurisdiction_id,omitempty"`
	SourceAddress     string `json:"source_address,omitempty"`
}

// AuditEntry is one row written to the audit sink
type AuditEntry struct {
	ID            int64                  `json:"id"`
	ActorID       string                 `json:"actor_id"`
	Action        string                 `json:"action"`
	EntityType    EntityType             `json:"entity_type"`
	EntityID      string                 `json:"entity_id"`
	Changes       map[string]interface{} `json:"changes,omitempty"`
	SourceAddress string                 `json:"source_address,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
}

// Audit action names
const (
	AuditRequestCreated   = "APPROVAL_REQUEST_CREATED"
	AuditRequestApproved  = "APPROVAL_REQUEST_APPROVED"
	AuditRequestRejected  = "APPROVAL_REQUEST_REJECTED"
	AuditSelfApproved     = "SELF_APPROVED_EXECUTION"
	AuditSessionRejected  = "WIZARD_SESSION_REJECTED"
	AuditSessionSubmitted = "WIZARD_SESSION_SUBMITTED"
	AuditSessionSwept     = "WIZARD_SESSION_EXPIRED"
)
