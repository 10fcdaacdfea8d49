package entity

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/landrecords/internal/domain/apperr"
)

// Payload is the typed body of an approval request. Each (entity, action)
// pair has exactly one payload type.
type Payload interface {
	Key() ActionKey
	Validate() error
}

// CreateOwnerPayload registers a new owner, optionally linking it to a parcel
type CreateOwnerPayload struct {
	OwnerDraft
	SubJurisdictionID string `json:"sub_jurisdiction_id,omitempty"`
	UPIN              string `json:"upin,omitempty"`
}

func (CreateOwnerPayload) Key() ActionKey { return KeyCreateOwner }

func (p CreateOwnerPayload) Validate() error {
	if strings.TrimSpace(p.FullName) == "" {
		return apperr.Validation("owner.create", "full_name is required")
	}
	return nil
}

// UpdateOwnerPayload amends an owner's details. Empty fields are left unchanged.
type UpdateOwnerPayload struct {
	FullName   string `json:"full_name,omitempty"`
	NationalID string `json:"national_id,omitempty"`
	Phone      string `json:"phone,omitempty"`
	TIN        string `json:"tin,omitempty"`
	Address    string `json:"address,omitempty"`
}

func (UpdateOwnerPayload) Key() ActionKey { return KeyUpdateOwner }

func (p UpdateOwnerPayload) Validate() error {
	if p == (UpdateOwnerPayload{}) {
		return apperr.Validation("owner.update", "at least one field must change")
	}
	return nil
}

// TransferOwnershipPayload moves a parcel from its current owners to a new one.
// An empty FromOwnerIDs retires every active owner.
type TransferOwnershipPayload struct {
	FromOwnerIDs []string    `json:"from_owner_ids,omitempty"`
	ToOwnerID    string      `json:"to_owner_id,omitempty"`
	NewOwner     *OwnerDraft `json:"new_owner,omitempty"`
	TransferType string      `json:"transfer_type,omitempty"`
	Reference    string      `json:"reference,omitempty"`
}

func (TransferOwnershipPayload) Key() ActionKey { return KeyTransferOwnership }

func (p TransferOwnershipPayload) Validate() error {
	return validateOwnerTarget("parcel.transfer", p.ToOwnerID, p.NewOwner)
}

// AddParcelOwnerPayload adds a co-owner to a parcel
type AddParcelOwnerPayload struct {
	OwnerID  string      `json:"owner_id,omitempty"`
	NewOwner *OwnerDraft `json:"new_owner,omitempty"`
}

func (AddParcelOwnerPayload) Key() ActionKey { return KeyAddParcelOwner }

func (p AddParcelOwnerPayload) Validate() error {
	return validateOwnerTarget("parcel.add_owner", p.OwnerID, p.NewOwner)
}

func validateOwnerTarget(op, ownerID string, draft *OwnerDraft) error {
	switch {
	case ownerID == "" && draft == nil:
		return apperr.Validation(op, "owner_id or new_owner is required")
	case ownerID != "" && draft != nil:
		return apperr.Validation(op, "owner_id and new_owner are mutually exclusive")
	case draft != nil && strings.TrimSpace(draft.FullName) == "":
		return apperr.Validation(op, "new_owner.full_name is required")
	}
	return nil
}

// ChildParcel is one parcel produced by a subdivision
type ChildParcel struct {
	UPIN        string  `json:"upin"`
	FileNumber  string  `json:"file_number"`
	TotalAreaM2 float64 `json:"total_area_m2"`
	LandUse     string  `json:"land_use,omitempty"`
	LandGrade   string  `json:"land_grade,omitempty"`
	Ketena      string  `json:"ketena,omitempty"`
	Block       string  `json:"block,omitempty"`
}

// SubdivideParcelPayload splits a parcel into children
type SubdivideParcelPayload struct {
	Children []ChildParcel `json:"children"`
}

func (SubdivideParcelPayload) Key() ActionKey { return KeySubdivideParcel }

func (p SubdivideParcelPayload) Validate() error {
	const op = "parcel.subdivide"
	if len(p.Children) < 2 {
		return apperr.Validation(op, "children must contain at least two parcels")
	}
	seen := make(map[string]bool, len(p.Children))
	for i, c := range p.Children {
		if strings.TrimSpace(c.UPIN) == "" {
			return apperr.Validation(op, "children[%d].upin is required", i)
		}
		if seen[c.UPIN] {
			return apperr.Validation(op, "children[%d].upin %q is duplicated", i, c.UPIN)
		}
		seen[c.UPIN] = true
		if c.TotalAreaM2 <= 0 {
			return apperr.Validation(op, "children[%d].total_area_m2 must be greater than zero", i)
		}
	}
	return nil
}

// DeleteParcelPayload soft-deletes a parcel
type DeleteParcelPayload struct {
	Reason string `json:"reason"`
}

func (DeleteParcelPayload) Key() ActionKey { return KeyDeleteParcel }

func (p DeleteParcelPayload) Validate() error {
	if strings.TrimSpace(p.Reason) == "" {
		return apperr.Validation("parcel.delete", "reason is required")
	}
	return nil
}

// CreateEncumbrancePayload registers an encumbrance on the parcel named by the request's entity id
type CreateEncumbrancePayload struct {
	UPIN             string     `json:"upin,omitempty"`
	Type             string     `json:"type"`
	IssuingEntity    string     `json:"issuing_entity"`
	ReferenceNumber  string     `json:"reference_number,omitempty"`
	Description      string     `json:"description,omitempty"`
	RegistrationDate *time.Time `json:"registration_date,omitempty"`
}

func (CreateEncumbrancePayload) Key() ActionKey { return KeyCreateEncumbrance }

func (p CreateEncumbrancePayload) Validate() error {
	if strings.TrimSpace(p.Type) == "" {
		return apperr.Validation("encumbrance.create", "type is required")
	}
	if strings.TrimSpace(p.IssuingEntity) == "" {
		return apperr.Validation("encumbrance.create", "issuing_entity is required")
	}
	return nil
}

// UpdateLeasePayload amends a lease's terms; its bills are regenerated
type UpdateLeasePayload struct {
	LeaseTerms
}

func (UpdateLeasePayload) Key() ActionKey { return KeyUpdateLease }

func (p UpdateLeasePayload) Validate() error {
	return p.LeaseTerms.Validate("lease.update")
}

// WizardPayload executes a wizard session. The engine fills it from the
// request before dispatch.
type WizardPayload struct {
	SessionID         string `json:"session_id"`
	SubJurisdictionID string `json:"sub_jurisdiction_id,omitempty"`
	MakerID           string `json:"maker_id,omitempty"`
	MakerRole         string `json:"maker_role,omitempty"`
}

func (WizardPayload) Key() ActionKey { return KeyExecuteWizard }

func (p WizardPayload) Validate() error {
	if p.SessionID == "" {
		return apperr.Validation("wizard.execute", "session_id is required")
	}
	return nil
}

// DecodePayload decodes raw into the payload type registered for key.
// The returned payload is always a value, never a pointer.
func DecodePayload(key ActionKey, raw json.RawMessage) (Payload, error) {
	switch key {
	case KeyCreateOwner:
		return decodeInto[CreateOwnerPayload](key, raw)
	case KeyUpdateOwner:
		return decodeInto[UpdateOwnerPayload](key, raw)
	case KeyTransferOwnership:
		return decodeInto[TransferOwnershipPayload](key, raw)
	case KeyAddParcelOwner:
		return decodeInto[AddParcelOwnerPayload](key, raw)
	case KeySubdivideParcel:
		return decodeInto[SubdivideParcelPayload](key, raw)
	case KeyDeleteParcel:
		return decodeInto[DeleteParcelPayload](key, raw)
	case KeyCreateEncumbrance:
		return decodeInto[CreateEncumbrancePayload](key, raw)
	case KeyUpdateLease:
		return decodeInto[UpdateLeasePayload](key, raw)
	case KeyExecuteWizard:
		return decodeInto[WizardPayload](key, raw)
	default:
		return nil, apperr.Unsupported("decode payload", "no payload registered for %s", key)
	}
}

func decodeInto[T Payload](key ActionKey, raw json.RawMessage) (Payload, error) {
	var p T
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, apperr.Validation("decode payload", "malformed %s payload: %v", key, err)
		}
	}
	return p, nil
}

// EncodePayload serializes a payload for storage in request_data
func EncodePayload(p Payload) (json.RawMessage, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", p.Key(), err)
	}
	return data, nil
}
