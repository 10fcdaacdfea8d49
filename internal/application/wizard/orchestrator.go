// Package wizard drives multi-step land registration sessions from draft to approval.
package wizard

import (
	"context"
	"time"

	"github.com/garyjia/landrecords/internal/application/dispatcher"
	"github.com/garyjia/landrecords/internal/application/port"
	"github.com/garyjia/landrecords/internal/application/workflow"
	"github.com/garyjia/landrecords/internal/domain/entity"
)

// DefaultSessionTTL is how long a draft lives from creation (or from reopening
// after a rejection) before the sweep removes it
const DefaultSessionTTL = 24 * time.Hour

// Orchestrator manages wizard sessions
type Orchestrator interface {
	// StartSession returns the user's editable session, creating a DRAFT when none exists
	StartSession(ctx context.Context, actor entity.Actor) (*entity.WizardSession, error)
	GetSession(ctx context.Context, sessionID string) (*entity.WizardSession, error)

	// SaveStep stores one data step. Only DRAFT and REJECTED sessions accept edits;
	// editing a REJECTED session returns it to DRAFT.
	SaveStep(ctx context.Context, sessionID string, data entity.StepData) (*entity.WizardSession, error)

	AttachDocument(ctx context.Context, sessionID string, step entity.WizardStep, docType string, file port.TemporaryFile) (*entity.DocumentRef, error)
	RemoveDocument(ctx context.Context, sessionID string, step entity.WizardStep, fileName string) error

	// ValidateSession lists the requirements the session does not meet yet
	ValidateSession(ctx context.Context, sessionID string) ([]string, error)

	// SubmitForApproval hands a complete session to the approval workflow
	SubmitForApproval(ctx context.Context, sessionID string, actor entity.Actor) (*SubmitResult, error)

	// SweepExpired removes expired drafts and their temporary documents
	SweepExpired(ctx context.Context) (int, error)
}

// SubmitResult is a submitted session and either its pending request or,
// for self-approving makers, the execution result.
type SubmitResult struct {
	Session  *entity.WizardSession
	Request  *entity.ApprovalRequest
	Executed bool
	Result   *dispatcher.ExecutionResult
}

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

type orchestrator struct {
	sessions  port.WizardSessionRepository
	engine    workflow.ApprovalWorkflowEngine
	documents port.DocumentLifecycle
	txManager port.TransactionManager
	auditor   port.Auditor
	logger    Logger
	ttl       time.Duration
	sweepSize int
	now       func() time.Time
}

// Option configures the orchestrator
type Option func(*orchestrator)

// WithLogger sets a logger for the orchestrator
func WithLogger(logger Logger) Option {
	return func(o *orchestrator) {
		o.logger = logger
	}
}

// WithSessionTTL overrides DefaultSessionTTL
func WithSessionTTL(ttl time.Duration) Option {
	return func(o *orchestrator) {
		if ttl > 0 {
			o.ttl = ttl
		}
	}
}

// WithSweepBatchSize caps how many sessions one sweep examines
func WithSweepBatchSize(n int) Option {
	return func(o *orchestrator) {
		if n > 0 {
			o.sweepSize = n
		}
	}
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(o *orchestrator) {
		o.now = now
	}
}

// NewOrchestrator creates a new wizard session orchestrator
func NewOrchestrator(
	sessions port.WizardSessionRepository,
	engine workflow.ApprovalWorkflowEngine,
	documents port.DocumentLifecycle,
	txManager port.TransactionManager,
	auditor port.Auditor,
	opts ...Option,
) Orchestrator {
	o := &orchestrator{
		sessions:  sessions,
		engine:    engine,
		documents: documents,
		txManager: txManager,
		auditor:   auditor,
		ttl:       DefaultSessionTTL,
		sweepSize: 100,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *orchestrator) audit(ctx context.Context, actor entity.Actor, action, sessionID string, changes map[string]interface{}) {
	if o.auditor == nil {
		return
	}
	o.auditor.Emit(ctx, &entity.AuditEntry{
		ActorID:       actor.ID,
		Action:        action,
		EntityType:    entity.EntityWizardSession,
		EntityID:      sessionID,
		Changes:       changes,
		SourceAddress: actor.SourceAddress,
		CreatedAt:     o.now(),
	})
}

func (o *orchestrator) logInfo(msg string, keysAndValues ...interface{}) {
	if o.logger != nil {
		o.logger.Info(msg, keysAndValues...)
	}
}

func (o *orchestrator) logError(msg string, keysAndValues ...interface{}) {
	if o.logger != nil {
		o.logger.Error(msg, keysAndValues...)
	}
}
