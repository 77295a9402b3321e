package lifecycle

import "maintenance-platform/internal/rbac"

// Role-permission table: one rule per legal edge, built once and never
// mutated. Route-level RBAC gates coarse access; this table decides who may
// trigger a specific transition, including row-level ownership.
type edge struct {
	from Status
	to   Status
}

type edgeRule struct {
	// patchable edges may be driven by the generic status-update action.
	// Non-patchable edges are reachable only through their dedicated
	// sub-protocol (assignment, confirmation).
	patchable bool

	// adminAllowed grants MAINTENANCE_ADMIN. SUPER_ADMIN is always granted
	// when either adminAllowed or superOnly is set.
	adminAllowed bool
	superOnly    bool

	// assignedTech grants TECHNICIAN, but only when the request is assigned
	// to the acting user.
	assignedTech bool

	// ownerCustomer grants CUSTOMER, but only the request owner, and only
	// through the dedicated customer actions (never the generic PATCH).
	ownerCustomer bool

	// requireReason rejects the transition without a non-empty reason.
	requireReason bool
}

var permissionTable = map[edge]edgeRule{
	{StatusDraft, StatusSubmitted}:     {patchable: true, adminAllowed: true, ownerCustomer: true},
	{StatusSubmitted, StatusAssigned}:  {adminAllowed: true, assignedTech: true}, // assignment sub-protocol only
	{StatusAssigned, StatusInProgress}: {patchable: true, adminAllowed: true, assignedTech: true},

	// COMPLETED may be set only by the assigned technician or SUPER_ADMIN.
	{StatusInProgress, StatusCompleted}: {patchable: true, superOnly: true, assignedTech: true},

	// Revert while the confirmation window is still pending.
	{StatusCompleted, StatusInProgress}: {patchable: true, adminAllowed: true, assignedTech: true},

	// Confirmation sub-workflow only; never a bare status PATCH.
	{StatusCompleted, StatusClosed}:           {adminAllowed: true, ownerCustomer: true},
	{StatusCompleted, StatusCustomerRejected}: {ownerCustomer: true, requireReason: true},

	{StatusCustomerRejected, StatusInProgress}: {patchable: true, adminAllowed: true, assignedTech: true},
	// Administrative close after rework was abandoned; goes through the
	// close-without-confirmation action, not a PATCH.
	{StatusCustomerRejected, StatusClosed}: {adminAllowed: true, requireReason: true},

	// Any non-terminal state may be rejected by an admin with a reason.
	{StatusDraft, StatusRejected}:      {patchable: true, adminAllowed: true, requireReason: true},
	{StatusSubmitted, StatusRejected}:  {patchable: true, adminAllowed: true, requireReason: true},
	{StatusAssigned, StatusRejected}:   {patchable: true, adminAllowed: true, requireReason: true},
	{StatusInProgress, StatusRejected}: {patchable: true, adminAllowed: true, requireReason: true},
	{StatusCompleted, StatusRejected}:  {patchable: true, adminAllowed: true, requireReason: true},
}

// Authorize decides whether actor may drive r across the edge
// (r.Status -> target), independent of the entry point. The returned
// ForbiddenError distinguishes "role never allowed" from "right role,
// wrong ownership".
func Authorize(actor Actor, r Request, target Status) error {
	rule, ok := permissionTable[edge{r.Status, target}]
	if !ok {
		// Legal-edge checks happen first; reaching here means the table and
		// the graph disagree, which is a deny.
		return forbiddenRole(actor.Role, "transition not permitted for any role")
	}

	switch actor.Role {
	case rbac.RoleSuperAdmin:
		return nil

	case rbac.RoleMaintenanceAdmin:
		if rule.adminAllowed {
			return nil
		}
		if rule.superOnly {
			return forbiddenRole(actor.Role, "super admin only")
		}
		return forbiddenRole(actor.Role, "transition not permitted for maintenance admins")

	case rbac.RoleTechnician:
		if !rule.assignedTech {
			return forbiddenRole(actor.Role, "transition not permitted for technicians")
		}
		if r.AssignedToID != actor.ID {
			return forbiddenOwner(actor.Role, "request is assigned to another technician")
		}
		return nil

	case rbac.RoleCustomer:
		if !rule.ownerCustomer {
			return forbiddenRole(actor.Role, "transition not permitted for customers")
		}
		if r.RequestedByID != actor.ID {
			return forbiddenOwner(actor.Role, "request belongs to another customer")
		}
		return nil
	}

	return forbiddenRole(actor.Role, "unknown role")
}

// patchableEdge reports whether the generic status-update action may drive
// the edge at all. ASSIGNED, CLOSED and CUSTOMER_REJECTED targets are
// produced only by their sub-protocols.
func patchableEdge(from, to Status) bool {
	rule, ok := permissionTable[edge{from, to}]
	return ok && rule.patchable
}

// reasonRequired reports whether the edge demands a non-empty reason.
func reasonRequired(from, to Status) bool {
	rule, ok := permissionTable[edge{from, to}]
	return ok && rule.requireReason
}
