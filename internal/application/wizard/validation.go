package wizard

import (
	"context"
	"strings"

	"github.com/garyjia/landrecords/internal/domain/apperr"
	"github.com/garyjia/landrecords/internal/domain/entity"
)

// Requirement labels reported by ValidateSession, in step order
const (
	ReqParcelInformation = entity.ReqParcelInformation
	ReqParcelDocuments   = entity.ReqParcelDocuments
	ReqOwnerInformation  = entity.ReqOwnerInformation
	ReqOwnerDocuments    = entity.ReqOwnerDocuments
	ReqLeaseInformation  = entity.ReqLeaseInformation
	ReqLeaseDocuments    = entity.ReqLeaseDocuments
)

// ValidateSession implements Orchestrator
func (o *orchestrator) ValidateSession(ctx context.Context, sessionID string) ([]string, error) {
	session, err := o.load(ctx, "validate session", sessionID)
	if err != nil {
		return nil, err
	}
	return Missing(session), nil
}

// Missing lists what s still needs before it can be submitted
func Missing(s *entity.WizardSession) []string {
	return s.MissingRequirements()
}

// normalizeStep dereferences pointer step payloads
func normalizeStep(data entity.StepData) (entity.StepData, error) {
	switch d := data.(type) {
	case entity.ParcelDraft, entity.OwnerStep, entity.LeaseDraft:
		return d, nil
	case *entity.ParcelDraft:
		if d != nil {
			return *d, nil
		}
	case *entity.OwnerStep:
		if d != nil {
			return *d, nil
		}
	case *entity.LeaseDraft:
		if d != nil {
			return *d, nil
		}
	}
	return nil, apperr.Validation("save step", "step data is required")
}

func validateStep(data entity.StepData) error {
	switch d := data.(type) {
	case entity.ParcelDraft:
		const op = "wizard.parcel"
		if strings.TrimSpace(d.UPIN) == "" {
			return apperr.Validation(op, "upin is required")
		}
		if entity.IsPlaceholderID(d.UPIN) {
			return apperr.Validation(op, "upin %q uses a reserved prefix", d.UPIN)
		}
		if strings.TrimSpace(d.FileNumber) == "" {
			return apperr.Validation(op, "file_number is required")
		}
		if strings.TrimSpace(d.TenureType) == "" {
			return apperr.Validation(op, "tenure_type is required")
		}
		if d.TotalAreaM2 <= 0 {
			return apperr.Validation(op, "total_area_m2 must be greater than zero")
		}
	case entity.OwnerStep:
		const op = "wizard.owner"
		if len(d.Owners) == 0 {
			return apperr.Validation(op, "at least one owner is required")
		}
		for i, owner := range d.Owners {
			if !owner.IsExisting() && strings.TrimSpace(owner.FullName) == "" {
				return apperr.Validation(op, "owners[%d] needs an owner_id or a full_name", i)
			}
		}
	case entity.LeaseDraft:
		return d.LeaseTerms.Validate("wizard.lease")
	}
	return nil
}
