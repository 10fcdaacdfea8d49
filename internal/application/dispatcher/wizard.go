package dispatcher

import (
	"context"
	"fmt"
	"time"

	"github.com/garyjia/landrecords/internal/application/billing"
	"github.com/garyjia/landrecords/internal/domain/apperr"
	"github.com/garyjia/landrecords/internal/domain/entity"
	"github.com/google/uuid"
)

// wizardExecutor turns a wizard session into parcel, owner, lease and bill rows
type wizardExecutor struct {
	repos     Repositories
	bills     billing.Generator
	mutations *mutations
}

func (w *wizardExecutor) execute(ctx context.Context, req ExecutionRequest) (*ExecutionResult, error) {
	p := req.Payload.(entity.WizardPayload)

	session, err := w.repos.Sessions.GetByID(ctx, p.SessionID)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if session == nil {
		return nil, apperr.NotFound("execute wizard", "wizard session", p.SessionID)
	}
	switch session.Status {
	case entity.SessionDraft, entity.SessionRejected, entity.SessionPendingApproval:
	default:
		return nil, apperr.InvalidState("execute wizard", "session %s is %s", session.ID, session.Status)
	}
	if missing := session.MissingRequirements(); len(missing) > 0 {
		return nil, apperr.MissingFields("execute wizard", missing)
	}

	createdBy := firstNonEmpty(p.MakerID, session.UserID, req.ActorID)
	subJurisdiction := firstNonEmpty(p.SubJurisdictionID, session.SubJurisdictionID)

	parcel, err := w.createParcel(ctx, session.Parcel, subJurisdiction, createdBy)
	if err != nil {
		return nil, err
	}

	owners, err := w.linkOwners(ctx, session, parcel.UPIN, subJurisdiction, createdBy, req.RequestID)
	if err != nil {
		return nil, err
	}

	details := map[string]interface{}{
		"upin":      parcel.UPIN,
		"owner_ids": owners.linked,
	}

	var lease *entity.Lease
	if session.RequiresLease() {
		lease, err = w.createLease(ctx, session.Lease, parcel.UPIN, createdBy)
		if err != nil {
			return nil, err
		}
		bills, err := w.bills.GenerateBills(ctx, lease)
		if err != nil {
			return nil, err
		}
		details["lease_id"] = lease.ID
		details["bill_count"] = len(bills)
	}

	queued, err := w.queuePromotions(ctx, session, parcel.UPIN, owners.byIndex, lease)
	if err != nil {
		return nil, err
	}
	details["queued_documents"] = queued

	status := entity.SessionApproved
	if session.HasExistingOwner() {
		status = entity.SessionMerged
	}

	return &ExecutionResult{
		EntityID:      parcel.UPIN,
		Details:       details,
		SessionID:     session.ID,
		SessionStatus: status,
	}, nil
}

func (w *wizardExecutor) createParcel(ctx context.Context, d *entity.ParcelDraft, subJurisdiction, createdBy string) (*entity.LandParcel, error) {
	if d.UPIN == "" {
		return nil, apperr.Validation("execute wizard", "parcel upin is required")
	}
	existing, err := w.repos.Parcels.GetByUPIN(ctx, d.UPIN)
	if err != nil {
		return nil, fmt.Errorf("get parcel: %w", err)
	}
	if existing != nil {
		return nil, apperr.Validation("execute wizard", "parcel %s is already registered", d.UPIN)
	}

	now := time.Now()
	parcel := &entity.LandParcel{
		UPIN:              d.UPIN,
		FileNumber:        d.FileNumber,
		SubJurisdictionID: subJurisdiction,
		Ketena:            d.Ketena,
		Block:             d.Block,
		TotalAreaM2:       d.TotalAreaM2,
		LandUse:           d.LandUse,
		LandGrade:         d.LandGrade,
		TenureType:        d.TenureType,
		Status:            entity.ParcelStatusActive,
		CreatedBy:         createdBy,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := w.repos.Parcels.Create(ctx, parcel); err != nil {
		return nil, fmt.Errorf("create parcel: %w", err)
	}
	return parcel, nil
}

// linkedOwners holds the owner id behind each owner draft and the
// distinct ids linked to the parcel
type linkedOwners struct {
	byIndex []string
	linked  []string
}

func (w *wizardExecutor) linkOwners(ctx context.Context, session *entity.WizardSession, upin, subJurisdiction, createdBy, requestID string) (*linkedOwners, error) {
	out := &linkedOwners{byIndex: make([]string, 0, len(session.Owner.Owners))}
	seen := make(map[string]bool)

	for _, d := range session.Owner.Owners {
		var ownerID string
		if d.IsExisting() {
			id, err := w.mutations.resolveOwner(ctx, d.OwnerID, nil, subJurisdiction, createdBy)
			if err != nil {
				return nil, err
			}
			ownerID = id
		} else {
			owner, err := w.mutations.newOwner(ctx, d, subJurisdiction, createdBy)
			if err != nil {
				return nil, err
			}
			ownerID = owner.ID
		}
		out.byIndex = append(out.byIndex, ownerID)

		if seen[ownerID] {
			continue
		}
		seen[ownerID] = true
		if err := w.mutations.link(ctx, upin, ownerID, requestID); err != nil {
			return nil, err
		}
		out.linked = append(out.linked, ownerID)
	}
	return out, nil
}

func (w *wizardExecutor) createLease(ctx context.Context, d *entity.LeaseDraft, upin, createdBy string) (*entity.Lease, error) {
	now := time.Now()
	lease := &entity.Lease{
		ID:        uuid.NewString(),
		UPIN:      upin,
		CreatedBy: createdBy,
		CreatedAt: now,
		UpdatedAt: now,
	}
	lease.ApplyTerms(d.LeaseTerms)
	if err := w.repos.Leases.Create(ctx, lease); err != nil {
		return nil, fmt.Errorf("create lease: %w", err)
	}
	return lease, nil
}

type promotionTarget struct {
	entityType entity.EntityType
	entityID   string
}

// queuePromotions writes one outbox row per temporary document. Files move
// only after the surrounding transaction commits. Owner documents go to the
// owner their OwnerIndex selects.
func (w *wizardExecutor) queuePromotions(ctx context.Context, session *entity.WizardSession, upin string, ownerIDs []string, lease *entity.Lease) (int, error) {
	leaseTarget := promotionTarget{entity.EntityLandParcel, upin}
	if lease != nil {
		leaseTarget = promotionTarget{entity.EntityLease, lease.ID}
	}

	targetOf := func(step entity.WizardStep, doc entity.DocumentRef) (promotionTarget, error) {
		switch step {
		case entity.StepOwnerDocs:
			if doc.OwnerIndex < 0 || doc.OwnerIndex >= len(ownerIDs) {
				return promotionTarget{}, apperr.Validation("execute wizard", "document %s names owner %d of %d", doc.FileName, doc.OwnerIndex, len(ownerIDs))
			}
			return promotionTarget{entity.EntityOwner, ownerIDs[doc.OwnerIndex]}, nil
		case entity.StepLeaseDocs:
			return leaseTarget, nil
		}
		return promotionTarget{entity.EntityLandParcel, upin}, nil
	}

	now := time.Now()
	queued := 0
	for _, step := range []entity.WizardStep{entity.StepParcelDocs, entity.StepOwnerDocs, entity.StepLeaseDocs} {
		for _, doc := range session.Documents(step) {
			target, err := targetOf(step, doc)
			if err != nil {
				return 0, err
			}
			row := &entity.PendingPromotion{
				SessionID:  session.ID,
				Step:       step,
				FileName:   doc.FileName,
				EntityType: target.entityType,
				EntityID:   target.entityID,
				Status:     entity.PromotionPending,
				CreatedAt:  now,
				UpdatedAt:  now,
			}
			if err := w.repos.Promotions.Create(ctx, row); err != nil {
				return 0, fmt.Errorf("queue promotion of %s: %w", doc.FileName, err)
			}
			queued++
		}
	}
	return queued, nil
}
