package dispatcher

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/landrecords/internal/application/billing"
	"github.com/garyjia/landrecords/internal/domain/apperr"
	"github.com/garyjia/landrecords/internal/domain/entity"
	"github.com/google/uuid"
)

// areaTolerance absorbs float noise when comparing subdivided areas
const areaTolerance = 0.0001

// mutations holds the single-record handlers
type mutations struct {
	repos Repositories
	bills billing.Generator
}

func (m *mutations) createOwner(ctx context.Context, req ExecutionRequest) (*ExecutionResult, error) {
	p := req.Payload.(entity.CreateOwnerPayload)

	var parcel *entity.LandParcel
	if p.UPIN != "" {
		var err error
		if parcel, err = m.activeParcel(ctx, p.UPIN); err != nil {
			return nil, err
		}
	}

	owner, err := m.newOwner(ctx, p.OwnerDraft, p.SubJurisdictionID, req.ActorID)
	if err != nil {
		return nil, err
	}

	details := map[string]interface{}{"owner_id": owner.ID}
	if parcel != nil {
		if err := m.link(ctx, parcel.UPIN, owner.ID, req.RequestID); err != nil {
			return nil, err
		}
		details["upin"] = parcel.UPIN
	}

	return &ExecutionResult{EntityID: owner.ID, Details: details}, nil
}

func (m *mutations) updateOwner(ctx context.Context, req ExecutionRequest) (*ExecutionResult, error) {
	p := req.Payload.(entity.UpdateOwnerPayload)

	owner, err := m.repos.Owners.GetByID(ctx, req.EntityID)
	if err != nil {
		return nil, fmt.Errorf("get owner: %w", err)
	}
	if owner == nil {
		return nil, apperr.NotFound("update owner", "owner", req.EntityID)
	}

	changed := map[string]interface{}{}
	apply := func(field string, dst *string, v string) {
		if v != "" && v != *dst {
			*dst = v
			changed[field] = v
		}
	}
	apply("full_name", &owner.FullName, p.FullName)
	apply("national_id", &owner.NationalID, p.NationalID)
	apply("phone", &owner.Phone, p.Phone)
	apply("tin", &owner.TIN, p.TIN)
	apply("address", &owner.Address, p.Address)
	owner.UpdatedAt = time.Now()

	if err := m.repos.Owners.Update(ctx, owner); err != nil {
		return nil, fmt.Errorf("update owner: %w", err)
	}

	return &ExecutionResult{EntityID: owner.ID, Details: changed}, nil
}

func (m *mutations) transferOwnership(ctx context.Context, req ExecutionRequest) (*ExecutionResult, error) {
	p := req.Payload.(entity.TransferOwnershipPayload)

	parcel, err := m.activeParcel(ctx, req.EntityID)
	if err != nil {
		return nil, err
	}

	active, err := m.activeOwnerIDs(ctx, parcel.UPIN)
	if err != nil {
		return nil, err
	}

	from := p.FromOwnerIDs
	if len(from) == 0 {
		for id := range active {
			from = append(from, id)
		}
	}
	if len(from) == 0 {
		return nil, apperr.Validation("transfer ownership", "parcel %s has no active owner to transfer from", parcel.UPIN)
	}

	now := time.Now()
	for _, ownerID := range from {
		if !active[ownerID] {
			return nil, apperr.Validation("transfer ownership", "owner %s is not an active owner of %s", ownerID, parcel.UPIN)
		}
		if _, err := m.repos.Parcels.RetireOwner(ctx, parcel.UPIN, ownerID, now); err != nil {
			return nil, fmt.Errorf("retire owner %s: %w", ownerID, err)
		}
		delete(active, ownerID)
	}

	toID, err := m.resolveOwner(ctx, p.ToOwnerID, p.NewOwner, parcel.SubJurisdictionID, req.ActorID)
	if err != nil {
		return nil, err
	}
	if active[toID] {
		return nil, apperr.Validation("transfer ownership", "owner %s already holds %s", toID, parcel.UPIN)
	}
	if err := m.link(ctx, parcel.UPIN, toID, req.RequestID); err != nil {
		return nil, err
	}

	return &ExecutionResult{
		EntityID: parcel.UPIN,
		Details: map[string]interface{}{
			"from_owner_ids": from,
			"to_owner_id":    toID,
			"transfer_type":  p.TransferType,
		},
	}, nil
}

func (m *mutations) addParcelOwner(ctx context.Context, req ExecutionRequest) (*ExecutionResult, error) {
	p := req.Payload.(entity.AddParcelOwnerPayload)

	parcel, err := m.activeParcel(ctx, req.EntityID)
	if err != nil {
		return nil, err
	}

	active, err := m.activeOwnerIDs(ctx, parcel.UPIN)
	if err != nil {
		return nil, err
	}
	if p.OwnerID != "" && active[p.OwnerID] {
		return nil, apperr.Validation("add parcel owner", "owner %s already holds %s", p.OwnerID, parcel.UPIN)
	}

	ownerID, err := m.resolveOwner(ctx, p.OwnerID, p.NewOwner, parcel.SubJurisdictionID, req.ActorID)
	if err != nil {
		return nil, err
	}
	if err := m.link(ctx, parcel.UPIN, ownerID, req.RequestID); err != nil {
		return nil, err
	}

	return &ExecutionResult{
		EntityID: parcel.UPIN,
		Details:  map[string]interface{}{"owner_id": ownerID},
	}, nil
}

func (m *mutations) subdivideParcel(ctx context.Context, req ExecutionRequest) (*ExecutionResult, error) {
	p := req.Payload.(entity.SubdivideParcelPayload)

	parent, err := m.activeParcel(ctx, req.EntityID)
	if err != nil {
		return nil, err
	}

	var total float64
	for _, c := range p.Children {
		total += c.TotalAreaM2
	}
	if total > parent.TotalAreaM2+areaTolerance {
		return nil, apperr.Validation("subdivide parcel", "children area %.2f exceeds parent area %.2f", total, parent.TotalAreaM2)
	}

	owners, err := m.repos.Parcels.ListActiveOwners(ctx, parent.UPIN)
	if err != nil {
		return nil, fmt.Errorf("list owners: %w", err)
	}

	now := time.Now()
	children := make([]string, 0, len(p.Children))
	for _, c := range p.Children {
		existing, err := m.repos.Parcels.GetByUPIN(ctx, c.UPIN)
		if err != nil {
			return nil, fmt.Errorf("get parcel %s: %w", c.UPIN, err)
		}
		if existing != nil {
			return nil, apperr.Validation("subdivide parcel", "parcel %s already exists", c.UPIN)
		}

		child := &entity.LandParcel{
			UPIN:              c.UPIN,
			FileNumber:        c.FileNumber,
			SubJurisdictionID: parent.SubJurisdictionID,
			Ketena:            firstNonEmpty(c.Ketena, parent.Ketena),
			Block:             firstNonEmpty(c.Block, parent.Block),
			TotalAreaM2:       c.TotalAreaM2,
			LandUse:           firstNonEmpty(c.LandUse, parent.LandUse),
			LandGrade:         firstNonEmpty(c.LandGrade, parent.LandGrade),
			TenureType:        parent.TenureType,
			ParentUPIN:        parent.UPIN,
			Status:            entity.ParcelStatusActive,
			CreatedBy:         req.ActorID,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		if err := m.repos.Parcels.Create(ctx, child); err != nil {
			return nil, fmt.Errorf("create parcel %s: %w", c.UPIN, err)
		}
		for _, o := range owners {
			if err := m.link(ctx, child.UPIN, o.OwnerID, req.RequestID); err != nil {
				return nil, err
			}
		}
		children = append(children, child.UPIN)
	}

	if err := m.repos.Parcels.UpdateStatus(ctx, parent.UPIN, entity.ParcelStatusSubdivided); err != nil {
		return nil, fmt.Errorf("retire parent parcel: %w", err)
	}

	return &ExecutionResult{
		EntityID: parent.UPIN,
		Details: map[string]interface{}{
			"children":         children,
			"inherited_owners": len(owners),
		},
	}, nil
}

func (m *mutations) deleteParcel(ctx context.Context, req ExecutionRequest) (*ExecutionResult, error) {
	p := req.Payload.(entity.DeleteParcelPayload)

	parcel, err := m.repos.Parcels.GetByUPIN(ctx, req.EntityID)
	if err != nil {
		return nil, fmt.Errorf("get parcel: %w", err)
	}
	if parcel == nil || parcel.IsDeleted {
		return nil, apperr.NotFound("delete parcel", "parcel", req.EntityID)
	}

	if err := m.repos.Parcels.SoftDelete(ctx, parcel.UPIN); err != nil {
		return nil, fmt.Errorf("delete parcel: %w", err)
	}

	return &ExecutionResult{
		EntityID: parcel.UPIN,
		Details:  map[string]interface{}{"reason": p.Reason},
	}, nil
}

func (m *mutations) createEncumbrance(ctx context.Context, req ExecutionRequest) (*ExecutionResult, error) {
	p := req.Payload.(entity.CreateEncumbrancePayload)

	upin := p.UPIN
	if upin == "" && !entity.IsPlaceholderID(req.EntityID) {
		upin = req.EntityID
	}
	if upin == "" {
		return nil, apperr.Validation("create encumbrance", "upin is required")
	}

	parcel, err := m.activeParcel(ctx, upin)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	enc := &entity.Encumbrance{
		ID:               uuid.NewString(),
		UPIN:             parcel.UPIN,
		Type:             strings.ToUpper(strings.TrimSpace(p.Type)),
		IssuingEntity:    p.IssuingEntity,
		ReferenceNumber:  p.ReferenceNumber,
		Description:      p.Description,
		Status:           entity.EncumbranceActive,
		RegistrationDate: p.RegistrationDate,
		CreatedBy:        req.ActorID,
		CreatedAt:        now,
	}
	if enc.RegistrationDate == nil {
		enc.RegistrationDate = &now
	}
	if err := m.repos.Encumbrances.Create(ctx, enc); err != nil {
		return nil, fmt.Errorf("create encumbrance: %w", err)
	}

	return &ExecutionResult{
		EntityID: enc.ID,
		Details:  map[string]interface{}{"upin": parcel.UPIN, "type": enc.Type},
	}, nil
}

func (m *mutations) updateLease(ctx context.Context, req ExecutionRequest) (*ExecutionResult, error) {
	p := req.Payload.(entity.UpdateLeasePayload)

	lease, err := m.repos.Leases.GetByID(ctx, req.EntityID)
	if err != nil {
		return nil, fmt.Errorf("get lease: %w", err)
	}
	if lease == nil {
		return nil, apperr.NotFound("update lease", "lease", req.EntityID)
	}

	lease.ApplyTerms(p.LeaseTerms)
	lease.UpdatedAt = time.Now()
	if err := m.repos.Leases.Update(ctx, lease); err != nil {
		return nil, fmt.Errorf("update lease: %w", err)
	}

	bills, err := m.bills.RegenerateBills(ctx, lease)
	if err != nil {
		return nil, err
	}

	return &ExecutionResult{
		EntityID: lease.ID,
		Details:  map[string]interface{}{"upin": lease.UPIN, "bill_count": len(bills)},
	}, nil
}

// activeParcel loads a parcel that can still be mutated
func (m *mutations) activeParcel(ctx context.Context, upin string) (*entity.LandParcel, error) {
	parcel, err := m.repos.Parcels.GetByUPIN(ctx, upin)
	if err != nil {
		return nil, fmt.Errorf("get parcel: %w", err)
	}
	if parcel == nil || parcel.IsDeleted {
		return nil, apperr.NotFound("load parcel", "parcel", upin)
	}
	if parcel.Status != entity.ParcelStatusActive {
		return nil, apperr.InvalidState("load parcel", "parcel %s is %s", upin, parcel.Status)
	}
	return parcel, nil
}

func (m *mutations) activeOwnerIDs(ctx context.Context, upin string) (map[string]bool, error) {
	links, err := m.repos.Parcels.ListActiveOwners(ctx, upin)
	if err != nil {
		return nil, fmt.Errorf("list owners: %w", err)
	}
	ids := make(map[string]bool, len(links))
	for _, l := range links {
		ids[l.OwnerID] = true
	}
	return ids, nil
}

// resolveOwner returns an existing owner's id or registers the draft
func (m *mutations) resolveOwner(ctx context.Context, ownerID string, draft *entity.OwnerDraft, subJurisdictionID, actorID string) (string, error) {
	if ownerID != "" {
		owner, err := m.repos.Owners.GetByID(ctx, ownerID)
		if err != nil {
			return "", fmt.Errorf("get owner: %w", err)
		}
		if owner == nil {
			return "", apperr.NotFound("resolve owner", "owner", ownerID)
		}
		return owner.ID, nil
	}
	owner, err := m.newOwner(ctx, *draft, subJurisdictionID, actorID)
	if err != nil {
		return "", err
	}
	return owner.ID, nil
}

func (m *mutations) newOwner(ctx context.Context, d entity.OwnerDraft, subJurisdictionID, actorID string) (*entity.Owner, error) {
	now := time.Now()
	owner := &entity.Owner{
		ID:                uuid.NewString(),
		FullName:          strings.TrimSpace(d.FullName),
		NationalID:        d.NationalID,
		Phone:             d.Phone,
		TIN:               d.TIN,
		Address:           d.Address,
		SubJurisdictionID: subJurisdictionID,
		CreatedBy:         actorID,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if owner.FullName == "" {
		return nil, apperr.Validation("create owner", "full_name is required")
	}
	if err := m.repos.Owners.Create(ctx, owner); err != nil {
		return nil, fmt.Errorf("create owner: %w", err)
	}
	return owner, nil
}

func (m *mutations) link(ctx context.Context, upin, ownerID, sourceRef string) error {
	err := m.repos.Parcels.AddOwner(ctx, &entity.ParcelOwner{
		UPIN:       upin,
		OwnerID:    ownerID,
		AcquiredAt: time.Now(),
		SourceRef:  sourceRef,
	})
	if err != nil {
		return fmt.Errorf("link owner %s to %s: %w", ownerID, upin, err)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
