package auth

import (
	id "seriosity/pkg/domain"
	dErrors "seriosity/pkg/domain-errors"
	"seriosity/pkg/requestcontext"
)

// RequireRole allows actors holding any of roles.
func RequireRole(actor requestcontext.AuthenticatedActor, roles ...requestcontext.Role) error {
	if actor.UserID.IsNil() {
		return dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	for _, role := range roles {
		if actor.Role == role {
			return nil
		}
	}
	return dErrors.New(dErrors.CodeForbidden, "role not allowed for this operation")
}

// RequireTenantOrOperator allows the tenant themself and operators.
func RequireTenantOrOperator(actor requestcontext.AuthenticatedActor, tenantID id.TenantID) error {
	switch {
	case actor.UserID.IsNil():
		return dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	case actor.Role == requestcontext.RoleOperator:
		return nil
	case actor.Role == requestcontext.RoleTenant && id.TenantID(actor.UserID) == tenantID:
		return nil
	default:
		return dErrors.New(dErrors.CodeForbidden, "not allowed to act for this tenant")
	}
}
