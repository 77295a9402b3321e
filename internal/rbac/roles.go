package rbac

// Role names. Keep these stable; they are part of auth/RBAC contracts.
const (
	RoleCustomer         = "CUSTOMER"
	RoleTechnician       = "TECHNICIAN"
	RoleMaintenanceAdmin = "MAINTENANCE_ADMIN"
	RoleSuperAdmin       = "SUPER_ADMIN"
)

func IsSuperAdmin(role string) bool { return role == RoleSuperAdmin }

// IsAdmin reports whether the role carries administrative privileges
// (maintenance admin or super admin).
func IsAdmin(role string) bool {
	return role == RoleMaintenanceAdmin || role == RoleSuperAdmin
}

// IsKnown reports whether this service issues tokens for the role.
func IsKnown(role string) bool {
	switch role {
	case RoleCustomer, RoleTechnician, RoleMaintenanceAdmin, RoleSuperAdmin:
		return true
	default:
		return false
	}
}
