package workflow

import (
	"context"

	"github.com/garyjia/landrecords/internal/application/dispatcher"
	"github.com/garyjia/landrecords/internal/domain/entity"
)

// ApprovalWorkflowEngine gates mutations behind maker-checker approval
type ApprovalWorkflowEngine interface {
	// CreateApprovalRequest records a PENDING request, or executes the
	// mutation immediately when the maker is its own approver.
	CreateApprovalRequest(ctx context.Context, in CreateRequestInput) (*CreateResult, error)

	// Approve executes the request's mutation and marks it APPROVED in one transaction
	Approve(ctx context.Context, requestID string, approver entity.Actor, comments string) (*Decision, error)

	// Reject marks the request REJECTED. The reason is mandatory.
	Reject(ctx context.Context, requestID string, approver entity.Actor, reason string) (*Decision, error)

	GetRequest(ctx context.Context, requestID string) (*entity.ApprovalRequest, error)

	// ListPending returns the approver's queue, oldest first
	ListPending(ctx context.Context, approver entity.Actor, entityType entity.EntityType, limit, offset int) ([]*entity.ApprovalRequest, error)

	GetHistory(ctx context.Context, requestID string) ([]*entity.ApprovalLogEntry, error)
}

// CreateRequestInput describes a proposed mutation
type CreateRequestInput struct {
	EntityType entity.EntityType
	// EntityID may be empty for not-yet-created entities; a placeholder is assigned
	EntityID   string
	ActionType entity.ActionType
	Payload    entity.Payload
	Maker      entity.Actor
	Comments   string
}

// CreateResult is either a PENDING request or, for self-approval, an execution result
type CreateResult struct {
	Request  *entity.ApprovalRequest
	Executed bool
	Result   *dispatcher.ExecutionResult
}

// Decision is the outcome of Approve or Reject
type Decision struct {
	Request *entity.ApprovalRequest
	Result  *dispatcher.ExecutionResult
}

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}
