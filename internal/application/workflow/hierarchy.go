package workflow

import (
	"github.com/garyjia/landrecords/internal/domain/apperr"
	"github.com/garyjia/landrecords/internal/domain/entity"
)

// baseHierarchy maps a maker role to the role that approves its requests.
// Admin roles approve their own actions.
var baseHierarchy = map[string]string{
	entity.RoleSubCityNormal: entity.RoleSubCityAdmin,
	entity.RoleSubCityAdmin:  entity.RoleSubCityAdmin,
	entity.RoleCityNormal:    entity.RoleCityAdmin,
	entity.RoleCityAdmin:     entity.RoleCityAdmin,
}

// entityHierarchy extends baseHierarchy per entity type
var entityHierarchy = map[entity.EntityType]map[string]string{
	entity.EntityLease: {
		entity.RoleRevenueNormal: entity.RoleRevenueAdmin,
		entity.RoleRevenueAdmin:  entity.RoleRevenueAdmin,
	},
}

// ResolveApproverRole returns the role that must approve makerRole's action on entityType.
// An unknown pair is FORBIDDEN: that maker may not propose the action at all.
func ResolveApproverRole(entityType entity.EntityType, makerRole string) (string, error) {
	if extra, ok := entityHierarchy[entityType]; ok {
		if role, ok := extra[makerRole]; ok {
			return role, nil
		}
	}
	if role, ok := baseHierarchy[makerRole]; ok {
		return role, nil
	}
	return "", apperr.Forbidden("resolve approver", "role %s may not propose %s actions", makerRole, entityType)
}

// IsSelfApprover reports whether makerRole approves its own actions on entityType
func IsSelfApprover(entityType entity.EntityType, makerRole string) bool {
	role, err := ResolveApproverRole(entityType, makerRole)
	return err == nil && role == makerRole
}
