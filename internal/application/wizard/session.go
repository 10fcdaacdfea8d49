package wizard

import (
	"context"
	"strings"

	"github.com/garyjia/landrecords/internal/application/port"
	"github.com/garyjia/landrecords/internal/application/workflow"
	"github.com/garyjia/landrecords/internal/domain/apperr"
	"github.com/garyjia/landrecords/internal/domain/entity"
	domainwf "github.com/garyjia/landrecords/internal/domain/workflow"
	"github.com/google/uuid"
)

// StartSession implements Orchestrator
func (o *orchestrator) StartSession(ctx context.Context, actor entity.Actor) (*entity.WizardSession, error) {
	const op = "start session"
	if actor.ID == "" || actor.Role == "" {
		return nil, apperr.Validation(op, "user id and role are required")
	}

	var session *entity.WizardSession
	err := o.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		existing, err := o.sessions.GetEditableByUser(txCtx, actor.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			session = existing
			return nil
		}

		now := o.now()
		session = &entity.WizardSession{
			ID:                uuid.NewString(),
			UserID:            actor.ID,
			UserRole:          actor.Role,
			SubJurisdictionID: actor.SubJurisdictionID,
			Status:            entity.SessionDraft,
			CurrentStep:       entity.StepParcel,
			ExpiresAt:         now.Add(o.ttl),
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		return o.sessions.Create(txCtx, session)
	})
	if err != nil {
		o.logError("Failed to start session", "user_id", actor.ID, "error", err)
		return nil, err
	}

	o.logInfo("Wizard session ready", "session_id", session.ID, "user_id", actor.ID, "status", session.Status)
	return session, nil
}

// GetSession implements Orchestrator
func (o *orchestrator) GetSession(ctx context.Context, sessionID string) (*entity.WizardSession, error) {
	return o.load(ctx, "get session", sessionID)
}

// SaveStep implements Orchestrator
func (o *orchestrator) SaveStep(ctx context.Context, sessionID string, data entity.StepData) (*entity.WizardSession, error) {
	const op = "save step"

	data, err := normalizeStep(data)
	if err != nil {
		return nil, err
	}
	if err := validateStep(data); err != nil {
		return nil, err
	}

	var session *entity.WizardSession
	err = o.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		session, err = o.loadEditable(txCtx, op, sessionID)
		if err != nil {
			return err
		}

		switch d := data.(type) {
		case entity.ParcelDraft:
			d.UPIN = strings.TrimSpace(d.UPIN)
			session.Parcel = &d
		case entity.OwnerStep:
			session.Owner = &d
		case entity.LeaseDraft:
			session.Lease = &d
		}
		o.touch(session, data.Step())

		return o.sessions.Update(txCtx, session)
	})
	if err != nil {
		o.logError("Failed to save step", "session_id", sessionID, "step", data.Step(), "error", err)
		return nil, err
	}

	o.logInfo("Wizard step saved", "session_id", session.ID, "step", data.Step())
	return session, nil
}

// AttachDocument implements Orchestrator
func (o *orchestrator) AttachDocument(ctx context.Context, sessionID string, step entity.WizardStep, docType string, file port.TemporaryFile) (*entity.DocumentRef, error) {
	const op = "attach document"

	if !step.IsDocumentStep() {
		return nil, apperr.Validation(op, "%s is not a document step", step)
	}
	name := entity.SanitizeFileName(file.FileName)
	if name == "" {
		return nil, apperr.Validation(op, "file name %q has no usable characters", file.FileName)
	}
	if len(file.Content) == 0 {
		return nil, apperr.Validation(op, "file %s is empty", file.FileName)
	}
	if step != entity.StepOwnerDocs {
		file.OwnerIndex = 0
	}
	session, err := o.loadEditable(ctx, op, sessionID)
	if err != nil {
		return nil, err
	}
	if err := checkAttachable(session, step, name, file); err != nil {
		return nil, err
	}

	ref, err := o.documents.StoreTemporary(ctx, file, sessionID, step, docType)
	if err != nil {
		o.logError("Failed to store document", "session_id", sessionID, "step", step, "file_name", file.FileName, "error", err)
		return nil, err
	}
	ref.OriginalName = file.FileName
	ref.OwnerIndex = file.OwnerIndex

	err = o.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		session, err := o.loadEditable(txCtx, op, sessionID)
		if err != nil {
			return err
		}
		if err := checkAttachable(session, step, ref.FileName, file); err != nil {
			return err
		}

		docs := withoutDocument(session.Documents(step), ref.FileName)
		session.SetDocuments(step, append(docs, *ref))
		o.touch(session, step)

		return o.sessions.Update(txCtx, session)
	})
	if err != nil {
		if delErr := o.documents.DeleteTemporary(ctx, sessionID, step, ref.FileName); delErr != nil {
			o.logError("Failed to discard stored document", "session_id", sessionID, "file_name", ref.FileName, "error", delErr)
		}
		return nil, err
	}

	o.logInfo("Document attached", "session_id", sessionID, "step", step, "file_name", ref.FileName, "size", ref.Size)
	return ref, nil
}

// RemoveDocument implements Orchestrator. fileName may be the uploaded or
// the stored name.
func (o *orchestrator) RemoveDocument(ctx context.Context, sessionID string, step entity.WizardStep, fileName string) error {
	const op = "remove document"

	if !step.IsDocumentStep() {
		return apperr.Validation(op, "%s is not a document step", step)
	}
	name := entity.SanitizeFileName(fileName)
	if name == "" {
		return apperr.Validation(op, "file name %q has no usable characters", fileName)
	}

	err := o.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		session, err := o.loadEditable(txCtx, op, sessionID)
		if err != nil {
			return err
		}

		docs := session.Documents(step)
		remaining := withoutDocument(docs, name)
		if len(remaining) == len(docs) {
			return apperr.NotFound(op, "document", fileName)
		}
		session.SetDocuments(step, remaining)
		o.touch(session, step)

		if err := o.sessions.Update(txCtx, session); err != nil {
			return err
		}
		return o.documents.DeleteTemporary(txCtx, sessionID, step, name)
	})
	if err != nil {
		o.logError("Failed to remove document", "session_id", sessionID, "file_name", fileName, "error", err)
		return err
	}

	o.logInfo("Document removed", "session_id", sessionID, "step", step, "file_name", name)
	return nil
}

// SubmitForApproval implements Orchestrator
func (o *orchestrator) SubmitForApproval(ctx context.Context, sessionID string, actor entity.Actor) (*SubmitResult, error) {
	const op = "submit session"

	var created *workflow.CreateResult
	var err error
	if workflow.IsSelfApprover(entity.EntityWizardSession, actor.Role) {
		created, err = o.submitDirect(ctx, op, sessionID, actor)
	} else {
		err = o.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
			session, err := o.loadSubmittable(txCtx, op, sessionID, actor)
			if err != nil {
				return err
			}
			created, err = o.engine.CreateApprovalRequest(txCtx, submitInput(session, actor))
			if err != nil {
				return err
			}
			return o.sessions.MarkSubmitted(txCtx, session.ID, created.Request.ID, o.now())
		})
	}
	if err != nil {
		o.logError("Failed to submit session", "session_id", sessionID, "user_id", actor.ID, "error", err)
		return nil, err
	}

	session, err := o.load(ctx, op, sessionID)
	if err != nil {
		return nil, err
	}

	result := &SubmitResult{
		Session:  session,
		Request:  created.Request,
		Executed: created.Executed,
		Result:   created.Result,
	}

	changes := map[string]interface{}{"status": string(session.Status)}
	if result.Request != nil {
		changes["request_id"] = result.Request.ID
	}
	o.audit(ctx, actor, entity.AuditSessionSubmitted, session.ID, changes)
	o.logInfo("Wizard session submitted",
		"session_id", session.ID,
		"status", session.Status,
		"executed", result.Executed,
	)
	return result, nil
}

// submitDirect executes the session for a self-approving role. The engine
// re-reads the session in its own transaction and writes its status, and a
// failed execution must be able to mark it FAILED, so no transaction is
// opened here.
func (o *orchestrator) submitDirect(ctx context.Context, op, sessionID string, actor entity.Actor) (*workflow.CreateResult, error) {
	session, err := o.loadSubmittable(ctx, op, sessionID, actor)
	if err != nil {
		return nil, err
	}
	return o.engine.CreateApprovalRequest(ctx, submitInput(session, actor))
}

// loadSubmittable loads a session the actor owns that is complete and may
// be submitted
func (o *orchestrator) loadSubmittable(ctx context.Context, op, sessionID string, actor entity.Actor) (*entity.WizardSession, error) {
	session, err := o.load(ctx, op, sessionID)
	if err != nil {
		return nil, err
	}
	if actor.ID != session.UserID {
		return nil, apperr.Forbidden(op, "session %s belongs to another user", session.ID)
	}
	if _, err := workflow.BuildWizardSessionMachine(domainwf.State(session.Status)).Evaluate(ctx, domainwf.TriggerSubmit); err != nil {
		return nil, apperr.InvalidState(op, "session %s is %s", session.ID, session.Status)
	}
	if missing := Missing(session); len(missing) > 0 {
		return nil, apperr.MissingFields(op, missing)
	}
	return session, nil
}

func submitInput(session *entity.WizardSession, actor entity.Actor) workflow.CreateRequestInput {
	if actor.SubJurisdictionID == "" {
		actor.SubJurisdictionID = session.SubJurisdictionID
	}
	return workflow.CreateRequestInput{
		EntityType: entity.EntityWizardSession,
		EntityID:   session.ID,
		ActionType: entity.ActionCreate,
		Payload: entity.WizardPayload{
			SessionID:         session.ID,
			SubJurisdictionID: actor.SubJurisdictionID,
			MakerID:           actor.ID,
			MakerRole:         actor.Role,
		},
		Maker: actor,
	}
}

func (o *orchestrator) load(ctx context.Context, op, sessionID string) (*entity.WizardSession, error) {
	session, err := o.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, apperr.NotFound(op, "wizard session", sessionID)
	}
	return session, nil
}

// loadEditable loads a session that accepts edits and moves it to DRAFT.
// A rejected session reopened for edits gets a fresh expiry window.
func (o *orchestrator) loadEditable(ctx context.Context, op, sessionID string) (*entity.WizardSession, error) {
	session, err := o.load(ctx, op, sessionID)
	if err != nil {
		return nil, err
	}
	next, err := workflow.BuildWizardSessionMachine(domainwf.State(session.Status)).Evaluate(ctx, domainwf.TriggerEdit)
	if err != nil {
		return nil, apperr.InvalidState(op, "session %s is %s", session.ID, session.Status)
	}
	if session.Status == entity.SessionRejected {
		session.ExpiresAt = o.now().Add(o.ttl)
	}
	session.Status = entity.SessionStatus(next)
	return session, nil
}

// touch records activity. The expiry set by StartSession is left alone.
func (o *orchestrator) touch(s *entity.WizardSession, step entity.WizardStep) {
	s.CurrentStep = step
	s.UpdatedAt = o.now()
}

// checkAttachable refuses an upload whose stored name is already taken by a
// different file in the step, or that names an owner the session lacks
func checkAttachable(s *entity.WizardSession, step entity.WizardStep, name string, file port.TemporaryFile) error {
	const op = "attach document"
	if step == entity.StepOwnerDocs {
		if file.OwnerIndex < 0 {
			return apperr.Validation(op, "owner index %d is negative", file.OwnerIndex)
		}
		if s.Owner != nil && file.OwnerIndex >= len(s.Owner.Owners) {
			return apperr.Validation(op, "owner index %d is out of range for %d owner(s)", file.OwnerIndex, len(s.Owner.Owners))
		}
	}
	for _, d := range s.Documents(step) {
		if d.FileName != name {
			continue
		}
		if d.OriginalName != "" && d.OriginalName != file.FileName {
			return apperr.Validation(op, "%q and %q are both stored as %s; rename one of them", d.OriginalName, file.FileName, name)
		}
		if d.OwnerIndex != file.OwnerIndex {
			return apperr.Validation(op, "%s is already attached for owner %d", name, d.OwnerIndex)
		}
	}
	return nil
}

func withoutDocument(docs []entity.DocumentRef, fileName string) []entity.DocumentRef {
	out := make([]entity.DocumentRef, 0, len(docs))
	for _, d := range docs {
		if d.FileName != fileName {
			out = append(out, d)
		}
	}
	return out
}
