package port

import (
	"context"
	"time"

	"github.com/garyjia/landrecords/internal/domain/entity"
)

// Lookups return (nil, nil) when the row does not exist.

// ApprovalRequestRepository defines persistence operations for ApprovalRequest
type ApprovalRequestRepository interface {
	// Create inserts a PENDING request. A second PENDING row for the same
	// (entity_type, entity_id, action_type) fails with a DUPLICATE_REQUEST error.
	Create(ctx context.Context, req *entity.ApprovalRequest) error
	GetByID(ctx context.Context, id string) (*entity.ApprovalRequest, error)
	FindPending(ctx context.Context, entityType entity.EntityType, entityID string, actionType entity.ActionType) (*entity.ApprovalRequest, error)

	// MarkApproved and MarkRejected only touch PENDING rows and report whether one changed
	MarkApproved(ctx context.Context, id, approverID, comments string, at time.Time) (bool, error)
	MarkRejected(ctx context.Context, id, approverID, reason string, at time.Time) (bool, error)

	ListPending(ctx context.Context, filter PendingFilter) ([]*entity.ApprovalRequest, error)
}

// PendingFilter narrows ListPending. Empty fields match everything.
type PendingFilter struct {
	ApproverRole      string
	SubJurisdictionID string
	EntityType        entity.EntityType
	Limit             int
	Offset            int
}

// ApprovalLogRepository is the append-only trail of request transitions
type ApprovalLogRepository interface {
	Append(ctx context.Context, entry *entity.ApprovalLogEntry) error
	ListByRequestID(ctx context.Context, requestID string) ([]*entity.ApprovalLogEntry, error)
}

// WizardSessionRepository defines persistence operations for WizardSession
type WizardSessionRepository interface {
	Create(ctx context.Context, s *entity.WizardSession) error
	GetByID(ctx context.Context, id string) (*entity.WizardSession, error)
	// GetEditableByUser returns the user's newest DRAFT or REJECTED session
	GetEditableByUser(ctx context.Context, userID string) (*entity.WizardSession, error)
	// Update writes step slots, status, current step and expiry
	Update(ctx context.Context, s *entity.WizardSession) error
	UpdateStatus(ctx context.Context, id string, status entity.SessionStatus) error
	// MarkSubmitted moves a DRAFT or REJECTED session to PENDING_APPROVAL;
	// any other status is an InvalidState error
	MarkSubmitted(ctx context.Context, id, approvalRequestID string, at time.Time) error
	// MarkExecuted writes the status of an executed session and sets
	// submitted_at if it is still empty
	MarkExecuted(ctx context.Context, id string, status entity.SessionStatus, at time.Time) error
	ListExpiredDrafts(ctx context.Context, now time.Time, limit int) ([]*entity.WizardSession, error)
	// DeleteExpiredDraft deletes the session only if it is still an expired DRAFT
	DeleteExpiredDraft(ctx context.Context, id string, now time.Time) (bool, error)
}

// ParcelRepository defines persistence operations for land parcels and their owner links
type ParcelRepository interface {
	Create(ctx context.Context, p *entity.LandParcel) error
	GetByUPIN(ctx context.Context, upin string) (*entity.LandParcel, error)
	UpdateStatus(ctx context.Context, upin, status string) error
	SoftDelete(ctx context.Context, upin string) error

	AddOwner(ctx context.Context, link *entity.ParcelOwner) error
	ListActiveOwners(ctx context.Context, upin string) ([]*entity.ParcelOwner, error)
	RetireOwner(ctx context.Context, upin, ownerID string, at time.Time) (bool, error)
}

// OwnerRepository defines persistence operations for Owner
type OwnerRepository interface {
	Create(ctx context.Context, o *entity.Owner) error
	GetByID(ctx context.Context, id string) (*entity.Owner, error)
	Update(ctx context.Context, o *entity.Owner) error
}

// LeaseRepository defines persistence operations for Lease
type LeaseRepository interface {
	Create(ctx context.Context, l *entity.Lease) error
	GetByID(ctx context.Context, id string) (*entity.Lease, error)
	GetByUPIN(ctx context.Context, upin string) (*entity.Lease, error)
	Update(ctx context.Context, l *entity.Lease) error
}

// EncumbranceRepository defines persistence operations for Encumbrance
type EncumbranceRepository interface {
	Create(ctx context.Context, e *entity.Encumbrance) error
	ListByUPIN(ctx context.Context, upin string) ([]*entity.Encumbrance, error)
}

// BillingRepository owns lease_bills rows
type BillingRepository interface {
	CreateBatch(ctx context.Context, bills []*entity.LeaseBill) error
	DeleteByLease(ctx context.Context, leaseID, billType string) (int64, error)
	ListByLease(ctx context.Context, leaseID string) ([]*entity.LeaseBill, error)
}

// PromotionRepository is the document promotion outbox
type PromotionRepository interface {
	Create(ctx context.Context, p *entity.PendingPromotion) error
	ListPendingBySession(ctx context.Context, sessionID string) ([]*entity.PendingPromotion, error)
	ListPending(ctx context.Context, limit int) ([]*entity.PendingPromotion, error)
	MarkDone(ctx context.Context, id int64, permanentPath string) error
	// MarkAttemptFailed bumps attempts and sets FAILED once maxAttempts is reached
	MarkAttemptFailed(ctx context.Context, id int64, lastErr string, maxAttempts int) error
	// CountOutstandingBySession counts PENDING and FAILED rows
	CountOutstandingBySession(ctx context.Context, sessionID string) (int, error)
}

// AuditRepository persists audit entries
type AuditRepository interface {
	Create(ctx context.Context, e *entity.AuditEntry) error
	ListByEntity(ctx context.Context, entityType entity.EntityType, entityID string) ([]*entity.AuditEntry, error)
}

// TransactionManager handles database transactions.
// A nested call reuses the transaction already carried by ctx.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
