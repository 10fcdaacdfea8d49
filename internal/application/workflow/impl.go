package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/garyjia/landrecords/internal/application/dispatcher"
	"github.com/garyjia/landrecords/internal/application/port"
	"github.com/garyjia/landrecords/internal/domain/apperr"
	"github.com/garyjia/landrecords/internal/domain/entity"
	domainwf "github.com/garyjia/landrecords/internal/domain/workflow"
	"github.com/google/uuid"
)

// engineImpl is the concrete implementation of ApprovalWorkflowEngine
type engineImpl struct {
	requestRepo port.ApprovalRequestRepository
	logRepo     port.ApprovalLogRepository
	sessionRepo port.WizardSessionRepository
	txManager   port.TransactionManager
	dispatcher  dispatcher.Dispatcher
	auditor     port.Auditor
	promoter    port.Promoter
	logger      Logger
	now         func() time.Time
}

// EngineOption configures the workflow engine
type EngineOption func(*engineImpl)

// WithLogger sets a logger for the engine
func WithLogger(logger Logger) EngineOption {
	return func(e *engineImpl) {
		e.logger = logger
	}
}

// WithPromoter sets the outbox processor run after a wizard execution commits
func WithPromoter(p port.Promoter) EngineOption {
	return func(e *engineImpl) {
		e.promoter = p
	}
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) EngineOption {
	return func(e *engineImpl) {
		e.now = now
	}
}

// NewEngine creates a new approval workflow engine
func NewEngine(
	requestRepo port.ApprovalRequestRepository,
	logRepo port.ApprovalLogRepository,
	sessionRepo port.WizardSessionRepository,
	txManager port.TransactionManager,
	d dispatcher.Dispatcher,
	auditor port.Auditor,
	opts ...EngineOption,
) ApprovalWorkflowEngine {
	e := &engineImpl{
		requestRepo: requestRepo,
		logRepo:     logRepo,
		sessionRepo: sessionRepo,
		txManager:   txManager,
		dispatcher:  d,
		auditor:     auditor,
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// CreateApprovalRequest implements ApprovalWorkflowEngine
func (e *engineImpl) CreateApprovalRequest(ctx context.Context, in CreateRequestInput) (*CreateResult, error) {
	const op = "create approval request"

	key := entity.ActionKey{Entity: in.EntityType, Action: in.ActionType}
	if !in.EntityType.IsValid() || !in.ActionType.IsValid() {
		return nil, apperr.Validation(op, "unknown action %s", key)
	}
	if in.Maker.ID == "" || in.Maker.Role == "" {
		return nil, apperr.Validation(op, "maker id and role are required")
	}
	if !e.dispatcher.Supports(key) {
		return nil, apperr.Unsupported(op, "no handler for %s", key)
	}
	if in.Payload == nil {
		return nil, apperr.Validation(op, "payload is required for %s", key)
	}
	if in.Payload.Key() != key {
		return nil, apperr.Validation(op, "payload %s does not match action %s", in.Payload.Key(), key)
	}
	if err := in.Payload.Validate(); err != nil {
		return nil, err
	}

	approverRole, err := ResolveApproverRole(in.EntityType, in.Maker.Role)
	if err != nil {
		return nil, err
	}

	entityID := in.EntityID
	if entityID == "" {
		entityID = entity.PlaceholderPrefix + uuid.NewString()
	}

	if approverRole == in.Maker.Role {
		return e.selfApprove(ctx, in, entityID)
	}

	data, err := entity.EncodePayload(in.Payload)
	if err != nil {
		return nil, err
	}

	now := e.now()
	req := &entity.ApprovalRequest{
		ID:                uuid.NewString(),
		EntityType:        in.EntityType,
		EntityID:          entityID,
		ActionType:        in.ActionType,
		RequestData:       data,
		Status:            entity.RequestPending,
		MakerID:           in.Maker.ID,
		MakerRole:         in.Maker.Role,
		ApproverRole:      approverRole,
		SubJurisdictionID: in.Maker.SubJurisdictionID,
		Comments:          in.Comments,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	err = e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		existing, err := e.requestRepo.FindPending(txCtx, in.EntityType, entityID, in.ActionType)
		if err != nil {
			return fmt.Errorf("failed to check pending requests: %w", err)
		}
		if existing != nil {
			return apperr.Duplicate(op, "request %s is already pending for %s %s", existing.ID, in.EntityType, entityID)
		}

		// the partial unique index catches a concurrent insert the check above missed
		if err := e.requestRepo.Create(txCtx, req); err != nil {
			return err
		}

		return e.logRepo.Append(txCtx, &entity.ApprovalLogEntry{
			RequestID:     req.ID,
			Action:        entity.LogActionCreate,
			PerformedBy:   in.Maker.ID,
			PerformerRole: in.Maker.Role,
			NewStatus:     entity.RequestPending,
			Comments:      in.Comments,
			CreatedAt:     now,
		})
	})
	if err != nil {
		e.logError("Failed to create approval request",
			"action", key.String(),
			"entity_id", entityID,
			"maker_id", in.Maker.ID,
			"error", err,
		)
		return nil, err
	}

	e.logInfo("Approval request created",
		"request_id", req.ID,
		"action", key.String(),
		"entity_id", entityID,
		"approver_role", approverRole,
	)
	e.audit(ctx, in.Maker, entity.AuditRequestCreated, req.EntityType, req.EntityID, map[string]interface{}{
		"request_id":    req.ID,
		"action_type":   string(req.ActionType),
		"approver_role": approverRole,
	})

	return &CreateResult{Request: req}, nil
}

// selfApprove executes the mutation at once; no request or log row is written
func (e *engineImpl) selfApprove(ctx context.Context, in CreateRequestInput, entityID string) (*CreateResult, error) {
	var result *dispatcher.ExecutionResult
	err := e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := e.checkSessionReady(txCtx, in.Payload); err != nil {
			return err
		}
		var err error
		result, err = e.dispatcher.Execute(txCtx, in.EntityType, in.ActionType, entityID, in.Payload, "", in.Maker.ID)
		if err != nil {
			return err
		}
		return e.applySessionInstruction(txCtx, result)
	})
	if err != nil {
		e.logError("Self-approved execution failed",
			"action", actionKeyOf(in).String(),
			"entity_id", entityID,
			"maker_id", in.Maker.ID,
			"error", err,
		)
		if errors.Is(err, apperr.ErrExecutionFailed) {
			e.markSessionFailed(ctx, result, in.Payload)
		}
		return nil, err
	}

	e.logInfo("Self-approved action executed",
		"action", actionKeyOf(in).String(),
		"entity_id", result.EntityID,
		"maker_id", in.Maker.ID,
	)
	e.audit(ctx, in.Maker, entity.AuditSelfApproved, in.EntityType, result.EntityID, map[string]interface{}{
		"action_type": string(in.ActionType),
		"result":      result.Details,
	})
	e.promote(ctx, result)

	return &CreateResult{Executed: true, Result: result}, nil
}

// Approve implements ApprovalWorkflowEngine
func (e *engineImpl) Approve(ctx context.Context, requestID string, approver entity.Actor, comments string) (*Decision, error) {
	const op = "approve request"

	req, err := e.loadForDecision(ctx, op, requestID, approver, domainwf.TriggerApprove)
	if err != nil {
		return nil, err
	}

	payload, err := e.decodePayload(ctx, req)
	if err != nil {
		return nil, err
	}

	now := e.now()
	var result *dispatcher.ExecutionResult
	err = e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		result, err = e.dispatcher.Execute(txCtx, req.EntityType, req.ActionType, req.EntityID, payload, req.ID, approver.ID)
		if err != nil {
			return err
		}

		changed, err := e.requestRepo.MarkApproved(txCtx, req.ID, approver.ID, comments, now)
		if err != nil {
			return err
		}
		if !changed {
			return apperr.InvalidState(op, "request %s is no longer PENDING", req.ID)
		}

		if err := e.logRepo.Append(txCtx, &entity.ApprovalLogEntry{
			RequestID:      req.ID,
			Action:         entity.LogActionApprove,
			PerformedBy:    approver.ID,
			PerformerRole:  approver.Role,
			PreviousStatus: entity.RequestPending,
			NewStatus:      entity.RequestApproved,
			Comments:       comments,
			CreatedAt:      now,
		}); err != nil {
			return err
		}

		return e.applySessionInstruction(txCtx, result)
	})
	if err != nil {
		e.logError("Approval failed",
			"request_id", req.ID,
			"action", req.Key().String(),
			"approver_id", approver.ID,
			"error", err,
		)
		if errors.Is(err, apperr.ErrExecutionFailed) {
			e.markSessionFailed(ctx, result, payload)
		}
		return nil, err
	}

	req.Status = entity.RequestApproved
	req.ApproverID = approver.ID
	req.ApprovedAt = &now
	req.UpdatedAt = now
	if comments != "" {
		req.Comments = comments
	}

	e.logInfo("Approval request approved",
		"request_id", req.ID,
		"action", req.Key().String(),
		"entity_id", result.EntityID,
		"approver_id", approver.ID,
	)
	e.audit(ctx, approver, entity.AuditRequestApproved, req.EntityType, result.EntityID, map[string]interface{}{
		"request_id": req.ID,
		"maker_id":   req.MakerID,
		"result":     result.Details,
	})
	e.promote(ctx, result)

	return &Decision{Request: req, Result: result}, nil
}

// Reject implements ApprovalWorkflowEngine
func (e *engineImpl) Reject(ctx context.Context, requestID string, approver entity.Actor, reason string) (*Decision, error) {
	const op = "reject request"

	if reason == "" {
		return nil, apperr.Validation(op, "rejection reason is required")
	}

	req, err := e.loadForDecision(ctx, op, requestID, approver, domainwf.TriggerReject)
	if err != nil {
		return nil, err
	}

	var sessionID string
	if req.EntityType == entity.EntityWizardSession {
		sessionID = e.linkedSessionID(req)
	}

	now := e.now()
	err = e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		changed, err := e.requestRepo.MarkRejected(txCtx, req.ID, approver.ID, reason, now)
		if err != nil {
			return err
		}
		if !changed {
			return apperr.InvalidState(op, "request %s is no longer PENDING", req.ID)
		}

		if err := e.logRepo.Append(txCtx, &entity.ApprovalLogEntry{
			RequestID:      req.ID,
			Action:         entity.LogActionReject,
			PerformedBy:    approver.ID,
			PerformerRole:  approver.Role,
			PreviousStatus: entity.RequestPending,
			NewStatus:      entity.RequestRejected,
			Comments:       reason,
			CreatedAt:      now,
		}); err != nil {
			return err
		}

		if sessionID != "" {
			return e.transitionSession(txCtx, sessionID, domainwf.TriggerReject)
		}
		return nil
	})
	if err != nil {
		e.logError("Rejection failed", "request_id", req.ID, "approver_id", approver.ID, "error", err)
		return nil, err
	}

	req.Status = entity.RequestRejected
	req.ApproverID = approver.ID
	req.RejectionReason = reason
	req.RejectedAt = &now
	req.UpdatedAt = now

	e.logInfo("Approval request rejected",
		"request_id", req.ID,
		"action", req.Key().String(),
		"approver_id", approver.ID,
	)
	e.audit(ctx, approver, entity.AuditRequestRejected, req.EntityType, req.EntityID, map[string]interface{}{
		"request_id": req.ID,
		"reason":     reason,
	})
	if sessionID != "" {
		e.audit(ctx, approver, entity.AuditSessionRejected, entity.EntityWizardSession, sessionID, map[string]interface{}{
			"request_id": req.ID,
			"reason":     reason,
		})
	}

	return &Decision{Request: req}, nil
}

// GetRequest implements ApprovalWorkflowEngine
func (e *engineImpl) GetRequest(ctx context.Context, requestID string) (*entity.ApprovalRequest, error) {
	req, err := e.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, apperr.NotFound("get request", "approval request", requestID)
	}
	return req, nil
}

// ListPending implements ApprovalWorkflowEngine
func (e *engineImpl) ListPending(ctx context.Context, approver entity.Actor, entityType entity.EntityType, limit, offset int) ([]*entity.ApprovalRequest, error) {
	return e.requestRepo.ListPending(ctx, port.PendingFilter{
		ApproverRole:      approver.Role,
		SubJurisdictionID: approver.SubJurisdictionID,
		EntityType:        entityType,
		Limit:             limit,
		Offset:            offset,
	})
}

// GetHistory implements ApprovalWorkflowEngine
func (e *engineImpl) GetHistory(ctx context.Context, requestID string) ([]*entity.ApprovalLogEntry, error) {
	if _, err := e.GetRequest(ctx, requestID); err != nil {
		return nil, err
	}
	return e.logRepo.ListByRequestID(ctx, requestID)
}

// loadForDecision applies the guards shared by approve and reject
func (e *engineImpl) loadForDecision(ctx context.Context, op, requestID string, approver entity.Actor, trigger domainwf.Trigger) (*entity.ApprovalRequest, error) {
	req, err := e.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, apperr.NotFound(op, "approval request", requestID)
	}

	machine := BuildApprovalRequestMachine(domainwf.State(req.Status))
	if _, err := machine.Evaluate(ctx, trigger); err != nil {
		return nil, apperr.InvalidState(op, "request %s is %s", req.ID, req.Status)
	}

	if approver.Role != req.ApproverRole {
		return nil, apperr.Forbidden(op, "role %s cannot decide a request routed to %s", approver.Role, req.ApproverRole)
	}
	if req.SubJurisdictionID != "" && approver.SubJurisdictionID != "" && req.SubJurisdictionID != approver.SubJurisdictionID {
		return nil, apperr.Forbidden(op, "request %s belongs to sub-jurisdiction %s", req.ID, req.SubJurisdictionID)
	}
	return req, nil
}

// decodePayload decodes request_data; wizard payloads are enriched from the request
func (e *engineImpl) decodePayload(ctx context.Context, req *entity.ApprovalRequest) (entity.Payload, error) {
	payload, err := entity.DecodePayload(req.Key(), req.RequestData)
	if err != nil {
		return nil, err
	}

	wp, ok := payload.(entity.WizardPayload)
	if !ok {
		return payload, nil
	}
	if wp.SessionID == "" {
		wp.SessionID = req.EntityID
	}
	if wp.SubJurisdictionID == "" {
		wp.SubJurisdictionID = req.SubJurisdictionID
	}
	wp.MakerID = req.MakerID
	wp.MakerRole = req.MakerRole
	return wp, nil
}

func actionKeyOf(in CreateRequestInput) entity.ActionKey {
	return entity.ActionKey{Entity: in.EntityType, Action: in.ActionType}
}

func (e *engineImpl) linkedSessionID(req *entity.ApprovalRequest) string {
	if wp, err := entity.DecodePayload(req.Key(), req.RequestData); err == nil {
		if p, ok := wp.(entity.WizardPayload); ok && p.SessionID != "" {
			return p.SessionID
		}
	}
	return req.EntityID
}

// checkSessionReady re-reads a wizard session in the executing transaction,
// so an edit that landed after the caller validated is refused without
// marking the session FAILED
func (e *engineImpl) checkSessionReady(ctx context.Context, payload entity.Payload) error {
	const op = "submit session"
	wp, ok := payload.(entity.WizardPayload)
	if !ok || wp.SessionID == "" {
		return nil
	}
	session, err := e.sessionRepo.GetByID(ctx, wp.SessionID)
	if err != nil {
		return err
	}
	if session == nil {
		return apperr.NotFound(op, "wizard session", wp.SessionID)
	}
	if _, err := BuildWizardSessionMachine(domainwf.State(session.Status)).Evaluate(ctx, domainwf.TriggerSubmit); err != nil {
		return apperr.InvalidState(op, "session %s is %s", session.ID, session.Status)
	}
	if missing := session.MissingRequirements(); len(missing) > 0 {
		return apperr.MissingFields(op, missing)
	}
	return nil
}

// applySessionInstruction writes the session status a wizard execution asked for
func (e *engineImpl) applySessionInstruction(ctx context.Context, result *dispatcher.ExecutionResult) error {
	if result == nil || result.SessionID == "" || result.SessionStatus == "" {
		return nil
	}
	trigger := domainwf.TriggerApprove
	if result.SessionStatus == entity.SessionMerged {
		trigger = domainwf.TriggerMerge
	}
	return e.transitionSession(ctx, result.SessionID, trigger)
}

func (e *engineImpl) transitionSession(ctx context.Context, sessionID string, trigger domainwf.Trigger) error {
	session, err := e.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if session == nil {
		return apperr.NotFound("update session status", "wizard session", sessionID)
	}

	target, err := BuildWizardSessionMachine(domainwf.State(session.Status)).Evaluate(ctx, trigger)
	if err != nil {
		return apperr.InvalidState("update session status", "session %s is %s", session.ID, session.Status)
	}
	switch trigger {
	case domainwf.TriggerApprove, domainwf.TriggerMerge:
		return e.sessionRepo.MarkExecuted(ctx, session.ID, entity.SessionStatus(target), e.now())
	}
	return e.sessionRepo.UpdateStatus(ctx, session.ID, entity.SessionStatus(target))
}

// markSessionFailed runs after the execution transaction rolled back
func (e *engineImpl) markSessionFailed(ctx context.Context, result *dispatcher.ExecutionResult, payload entity.Payload) {
	sessionID := ""
	if result != nil && result.SessionStatus == entity.SessionFailed {
		sessionID = result.SessionID
	} else if wp, ok := payload.(entity.WizardPayload); ok {
		sessionID = wp.SessionID
	}
	if sessionID == "" {
		return
	}

	if err := e.transitionSession(ctx, sessionID, domainwf.TriggerFail); err != nil {
		e.logError("Failed to mark session FAILED", "session_id", sessionID, "error", err)
		return
	}
	e.logInfo("Session marked FAILED", "session_id", sessionID)
}

// promote hands queued documents to the outbox processor once the execution committed
func (e *engineImpl) promote(ctx context.Context, result *dispatcher.ExecutionResult) {
	if e.promoter == nil || result == nil || result.SessionID == "" {
		return
	}
	if err := e.promoter.ProcessSession(ctx, result.SessionID); err != nil {
		// rows stay PENDING for the promotion worker
		e.logError("Document promotion deferred", "session_id", result.SessionID, "error", err)
	}
}

func (e *engineImpl) audit(ctx context.Context, actor entity.Actor, action string, entityType entity.EntityType, entityID string, changes map[string]interface{}) {
	if e.auditor == nil {
		return
	}
	e.auditor.Emit(ctx, &entity.AuditEntry{
		ActorID:       actor.ID,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Changes:       changes,
		SourceAddress: actor.SourceAddress,
		CreatedAt:     e.now(),
	})
}

func (e *engineImpl) logInfo(msg string, keysAndValues ...interface{}) {
	if e.logger != nil {
		e.logger.Info(msg, keysAndValues...)
	}
}

func (e *engineImpl) logError(msg string, keysAndValues ...interface{}) {
	if e.logger != nil {
		e.logger.Error(msg, keysAndValues...)
	}
}
