package port

import (
	"context"

	"github.com/garyjia/landrecords/internal/domain/entity"
)

// AuditSink records audit entries. Callers treat it as best-effort.
type AuditSink interface {
	Record(ctx context.Context, entry *entity.AuditEntry) error
}

// Auditor emits audit entries and never fails the caller
type Auditor interface {
	Emit(ctx context.Context, entry *entity.AuditEntry)
}

// TemporaryFile is an upload held against a wizard session before approval.
// OwnerIndex picks the owner an OWNER_DOCS upload belongs to.
type TemporaryFile struct {
	FileName   string
	Content    []byte
	OwnerIndex int
}

// DocumentLifecycle moves wizard documents from the temporary area to
// permanent, entity-keyed storage.
type DocumentLifecycle interface {
	StoreTemporary(ctx context.Context, file TemporaryFile, sessionID string, step entity.WizardStep, docType string) (*entity.DocumentRef, error)
	// PromoteToPermanent returns the permanent path. Promoting an already
	// promoted file succeeds and returns the same path; a different file
	// already at that path is a conflict.
	PromoteToPermanent(ctx context.Context, sessionID string, step entity.WizardStep, fileName string, entityType entity.EntityType, entityID string) (string, error)
	DeleteTemporary(ctx context.Context, sessionID string, step entity.WizardStep, fileName string) error
	CleanupSession(ctx context.Context, sessionID string) error
}

// Promoter processes the promotion outbox after the producing transaction commits
type Promoter interface {
	ProcessSession(ctx context.Context, sessionID string) error
}
