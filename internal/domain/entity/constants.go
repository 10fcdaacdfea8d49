package entity

import "strings"

// EntityType identifies the kind of record an approval request targets
type EntityType string

const (
	EntityOwner         EntityType = "OWNER"
	EntityLandParcel    EntityType = "LAND_PARCEL"
	EntityLease         EntityType = "LEASE"
	EntityEncumbrance   EntityType = "ENCUMBRANCE"
	EntityWizardSession EntityType = "WIZARD_SESSION"
)

// IsValid reports whether t is a known entity type
func (t EntityType) IsValid() bool {
	switch t {
	case EntityOwner, EntityLandParcel, EntityLease, EntityEncumbrance, EntityWizardSession:
		return true
	default:
		return false
	}
}

// ActionType identifies the proposed mutation
type ActionType string

const (
	ActionCreate    ActionType = "CREATE"
	ActionUpdate    ActionType = "UPDATE"
	ActionDelete    ActionType = "DELETE"
	ActionTransfer  ActionType = "TRANSFER"
	ActionAddOwner  ActionType = "ADD_OWNER"
	ActionSubdivide ActionType = "SUBDIVIDE"
)

// IsValid reports whether a is a known action type
func (a ActionType) IsValid() bool {
	switch a {
	case ActionCreate, ActionUpdate, ActionDelete, ActionTransfer, ActionAddOwner, ActionSubdivide:
		return true
	default:
		return false
	}
}

// ActionKey is the (entity type, action type) pair that selects a handler
type ActionKey struct {
	Entity EntityType
	Action ActionType
}

// String returns ENTITY/ACTION
func (k ActionKey) String() string {
	return string(k.Entity) + "/" + string(k.Action)
}

// Supported action keys
var (
	KeyCreateOwner       = ActionKey{EntityOwner, ActionCreate}
	KeyUpdateOwner       = ActionKey{EntityOwner, ActionUpdate}
	KeyTransferOwnership = ActionKey{EntityLandParcel, ActionTransfer}
	KeyAddParcelOwner    = ActionKey{EntityLandParcel, ActionAddOwner}
	KeySubdivideParcel   = ActionKey{EntityLandParcel, ActionSubdivide}
	KeyDeleteParcel      = ActionKey{EntityLandParcel, ActionDelete}
	KeyCreateEncumbrance = ActionKey{EntityEncumbrance, ActionCreate}
	KeyUpdateLease       = ActionKey{EntityLease, ActionUpdate}
	KeyExecuteWizard     = ActionKey{EntityWizardSession, ActionCreate}
)

// Roles known to the approver hierarchy
const (
	RoleSubCityNormal = "SUBCITY_NORMAL"
	RoleSubCityAdmin  = "SUBCITY_ADMIN"
	RoleCityNormal    = "CITY_NORMAL"
	RoleCityAdmin     = "CITY_ADMIN"
	RoleRevenueNormal = "REVENUE_NORMAL"
	RoleRevenueAdmin  = "REVENUE_ADMIN"
)

// TenureLease is the tenure type that makes the lease steps mandatory
const TenureLease = "LEASE"

// IsLeaseTenure reports whether a tenure type denotes a lease (case-insensitive)
func IsLeaseTenure(tenureType string) bool {
	return strings.EqualFold(strings.TrimSpace(tenureType), TenureLease)
}

// PlaceholderPrefix marks entity ids for records that do not exist yet
const PlaceholderPrefix = "NEW-"

// IsPlaceholderID reports whether id stands in for a not-yet-created entity
func IsPlaceholderID(id string) bool {
	return strings.HasPrefix(id, PlaceholderPrefix)
}
