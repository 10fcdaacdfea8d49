package entity

import (
	"path"
	"regexp"
	"strings"
	"time"
)

// SessionStatus is the lifecycle status of a WizardSession
type SessionStatus string

const (
	SessionDraft           SessionStatus = "DRAFT"
	SessionPendingApproval SessionStatus = "PENDING_APPROVAL"
	SessionApproved        SessionStatus = "APPROVED"
	SessionRejected        SessionStatus = "REJECTED"
	SessionFailed          SessionStatus = "FAILED"
	SessionMerged          SessionStatus = "MERGED"
)

// WizardStep identifies one slot of a wizard session
type WizardStep string

const (
	StepParcel     WizardStep = "PARCEL"
	StepParcelDocs WizardStep = "PARCEL_DOCS"
	StepOwner      WizardStep = "OWNER"
	StepOwnerDocs  WizardStep = "OWNER_DOCS"
	StepLease      WizardStep = "LEASE"
	StepLeaseDocs  WizardStep = "LEASE_DOCS"
)

// IsDocumentStep reports whether the step holds document references
func (s WizardStep) IsDocumentStep() bool {
	return s == StepParcelDocs || s == StepOwnerDocs || s == StepLeaseDocs
}

// EntityType returns the entity a document step's files are promoted under
func (s WizardStep) EntityType() EntityType {
	switch s {
	case StepOwner, StepOwnerDocs:
		return EntityOwner
	case StepLease, StepLeaseDocs:
		return EntityLease
	default:
		return EntityLandParcel
	}
}

// DocumentRef points at a stored document. FileName is the sanitized
// storage name; OriginalName is what the uploader sent. OwnerIndex selects
// the owner in the owner step an OWNER_DOCS file belongs to.
type DocumentRef struct {
	FileName     string     `json:"file_name"`
	OriginalName string     `json:"original_name,omitempty"`
	DocType      string     `json:"doc_type"`
	Step         WizardStep `json:"step"`
	OwnerIndex   int        `json:"owner_index,omitempty"`
	Path         string     `json:"path"`
	Size         int64      `json:"size"`
	UploadedAt   time.Time  `json:"uploaded_at"`
}

var unsafeFileName = regexp.MustCompile(`[^a-zA-Z0-9\-_.]`)

// SanitizeFileName strips directory components and unsafe characters,
// keeping the extension. Documents are stored and matched by this name.
func SanitizeFileName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base(strings.TrimSpace(name))
	name = strings.ReplaceAll(name, " ", "_")
	name = unsafeFileName.ReplaceAllString(name, "")
	return strings.TrimLeft(name, ".")
}

// StepData is the payload of one data step
type StepData interface {
	Step() WizardStep
}

// ParcelDraft is the parcel step payload
type ParcelDraft struct {
	UPIN        string  `json:"upin"`
	FileNumber  string  `json:"file_number"`
	Ketena      string  `json:"ketena,omitempty"`
	Block       string  `json:"block,omitempty"`
	TotalAreaM2 float64 `json:"total_area_m2"`
	LandUse     string  `json:"land_use,omitempty"`
	LandGrade   string  `json:"land_grade,omitempty"`
	TenureType  string  `json:"tenure_type"`
}

// Step implements StepData
func (ParcelDraft) Step() WizardStep { return StepParcel }

// OwnerDraft describes one owner. A non-empty OwnerID links an existing owner.
type OwnerDraft struct {
	OwnerID    string `json:"owner_id,omitempty"`
	FullName   string `json:"full_name,omitempty"`
	NationalID string `json:"national_id,omitempty"`
	Phone      string `json:"phone,omitempty"`
	TIN        string `json:"tin,omitempty"`
	Address    string `json:"address,omitempty"`
}

// IsExisting reports whether the draft references an already registered owner
func (o OwnerDraft) IsExisting() bool {
	return o.OwnerID != ""
}

// OwnerStep is the owner step payload
type OwnerStep struct {
	Owners []OwnerDraft `json:"owners"`
}

// Step implements StepData
func (OwnerStep) Step() WizardStep { return StepOwner }

// LeaseDraft is the lease step payload
type LeaseDraft struct {
	LeaseTerms
}

// Step implements StepData
func (LeaseDraft) Step() WizardStep { return StepLease }

// WizardSession is a draft composite submission
type WizardSession struct {
	ID                string        `json:"id"`
	UserID            string        `json:"user_id"`
	UserRole          string        `json:"user_role"`
	SubJurisdictionID string        `json:"sub_jurisdiction_id,omitempty"`
	Status            SessionStatus `json:"status"`
	CurrentStep       WizardStep    `json:"current_step"`
	Parcel            *ParcelDraft  `json:"parcel,omitempty"`
	ParcelDocs        []DocumentRef `json:"parcel_docs"`
	Owner             *OwnerStep    `json:"owner,omitempty"`
	OwnerDocs         []DocumentRef `json:"owner_docs"`
	Lease             *LeaseDraft   `json:"lease,omitempty"`
	LeaseDocs         []DocumentRef `json:"lease_docs"`
	ApprovalRequestID string        `json:"approval_request_id,omitempty"`
	ExpiresAt         time.Time     `json:"expires_at"`
	SubmittedAt       *time.Time    `json:"submitted_at,omitempty"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

// IsEditable reports whether step data may still change
func (s *WizardSession) IsEditable() bool {
	return s.Status == SessionDraft || s.Status == SessionRejected
}

// RequiresLease reports whether the parcel's tenure makes the lease steps mandatory
func (s *WizardSession) RequiresLease() bool {
	return s.Parcel != nil && IsLeaseTenure(s.Parcel.TenureType)
}

// HasNewOwner reports whether any owner in the session is not yet registered
func (s *WizardSession) HasNewOwner() bool {
	if s.Owner == nil {
		return false
	}
	for _, o := range s.Owner.Owners {
		if !o.IsExisting() {
			return true
		}
	}
	return false
}

// HasExistingOwner reports whether any owner in the session links a registered owner
func (s *WizardSession) HasExistingOwner() bool {
	if s.Owner == nil {
		return false
	}
	for _, o := range s.Owner.Owners {
		if o.IsExisting() {
			return true
		}
	}
	return false
}

// Documents returns the document slot of a document step
func (s *WizardSession) Documents(step WizardStep) []DocumentRef {
	switch step {
	case StepParcelDocs:
		return s.ParcelDocs
	case StepOwnerDocs:
		return s.OwnerDocs
	case StepLeaseDocs:
		return s.LeaseDocs
	}
	return nil
}

// SetDocuments replaces the document slot of a document step
func (s *WizardSession) SetDocuments(step WizardStep, docs []DocumentRef) {
	switch step {
	case StepParcelDocs:
		s.ParcelDocs = docs
	case StepOwnerDocs:
		s.OwnerDocs = docs
	case StepLeaseDocs:
		s.LeaseDocs = docs
	}
}

// OwnerDocuments returns the OWNER_DOCS files filed against owner i
func (s *WizardSession) OwnerDocuments(i int) []DocumentRef {
	var out []DocumentRef
	for _, d := range s.OwnerDocs {
		if d.OwnerIndex == i {
			out = append(out, d)
		}
	}
	return out
}

// AllDocuments returns every document attached to the session
func (s *WizardSession) AllDocuments() []DocumentRef {
	all := make([]DocumentRef, 0, len(s.ParcelDocs)+len(s.OwnerDocs)+len(s.LeaseDocs))
	all = append(all, s.ParcelDocs...)
	all = append(all, s.OwnerDocs...)
	return append(all, s.LeaseDocs...)
}

// Requirement labels reported by MissingRequirements, in step order
const (
	ReqParcelInformation = "Parcel Information"
	ReqParcelDocuments   = "Parcel Documents"
	ReqOwnerInformation  = "Owner Information"
	ReqOwnerDocuments    = "Owner Documents"
	ReqLeaseInformation  = "Lease Information"
	ReqLeaseDocuments    = "Lease Documents"
)

// MissingRequirements lists what s still needs before it can be submitted.
// Owner documents are only required for brand-new owners, and every owner
// document must point at an owner of the owner step. The lease steps are
// only required for LEASE tenure.
func (s *WizardSession) MissingRequirements() []string {
	missing := []string{}

	if s.Parcel == nil {
		missing = append(missing, ReqParcelInformation)
	}
	if len(s.ParcelDocs) == 0 {
		missing = append(missing, ReqParcelDocuments)
	}

	switch {
	case s.Owner == nil || len(s.Owner.Owners) == 0:
		missing = append(missing, ReqOwnerInformation, ReqOwnerDocuments)
	case s.HasNewOwner() && len(s.OwnerDocs) == 0, s.hasUnassignedOwnerDocs():
		missing = append(missing, ReqOwnerDocuments)
	}

	if s.RequiresLease() {
		if s.Lease == nil {
			missing = append(missing, ReqLeaseInformation)
		}
		if len(s.LeaseDocs) == 0 {
			missing = append(missing, ReqLeaseDocuments)
		}
	}
	return missing
}

func (s *WizardSession) hasUnassignedOwnerDocs() bool {
	for _, d := range s.OwnerDocs {
		if d.OwnerIndex < 0 || d.OwnerIndex >= len(s.Owner.Owners) {
			return true
		}
	}
	return false
}
