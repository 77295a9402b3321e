package lifecycle

import (
	"errors"
	"testing"

	"maintenance-platform/internal/rbac"
)

func TestAuthorize_SuperAdminAllowedEverywhere(t *testing.T) {
	super := Actor{ID: "sa", Role: rbac.RoleSuperAdmin}
	for e := range permissionTable {
		r := Request{ID: "r1", Status: e.from, RequestedByID: "cust", AssignedToID: "tech"}
		if err := Authorize(super, r, e.to); err != nil {
			t.Errorf("super admin denied on %s -> %s: %v", e.from, e.to, err)
		}
	}
}

func TestAuthorize_MaintenanceAdminCannotComplete(t *testing.T) {
	admin := Actor{ID: "ma", Role: rbac.RoleMaintenanceAdmin}
	r := Request{ID: "r1", Status: StatusInProgress, AssignedToID: "tech"}

	err := Authorize(admin, r, StatusCompleted)
	var fe *ForbiddenError
	if !errors.As(err, &fe) {
		t.Fatalf("expected ForbiddenError, got %v", err)
	}
	if fe.WrongOwner {
		t.Fatalf("expected a role denial, not an ownership denial")
	}
}

func TestAuthorize_TechnicianOwnershipDistinguished(t *testing.T) {
	r := Request{ID: "r1", Status: StatusAssigned, AssignedToID: "tech-1", RequestedByID: "cust"}

	if err := Authorize(Actor{ID: "tech-1", Role: rbac.RoleTechnician}, r, StatusInProgress); err != nil {
		t.Fatalf("assigned technician should start work: %v", err)
	}

	err := Authorize(Actor{ID: "tech-2", Role: rbac.RoleTechnician}, r, StatusInProgress)
	var fe *ForbiddenError
	if !errors.As(err, &fe) {
		t.Fatalf("expected ForbiddenError, got %v", err)
	}
	if !fe.WrongOwner {
		t.Fatalf("expected wrong-owner denial for the other technician")
	}
}

func TestAuthorize_CustomerOwnershipDistinguished(t *testing.T) {
	r := Request{ID: "r1", Status: StatusCompleted, RequestedByID: "cust-1", AssignedToID: "tech"}

	if err := Authorize(Actor{ID: "cust-1", Role: rbac.RoleCustomer}, r, StatusCustomerRejected); err != nil {
		t.Fatalf("owning customer should reject completion: %v", err)
	}

	err := Authorize(Actor{ID: "cust-2", Role: rbac.RoleCustomer}, r, StatusCustomerRejected)
	var fe *ForbiddenError
	if !errors.As(err, &fe) || !fe.WrongOwner {
		t.Fatalf("expected wrong-owner denial, got %v", err)
	}

	err = Authorize(Actor{ID: "cust-1", Role: rbac.RoleCustomer}, r, StatusRejected)
	if !errors.As(err, &fe) || fe.WrongOwner {
		t.Fatalf("expected role denial for customer rejecting administratively, got %v", err)
	}
}

func TestAuthorize_DeniesPairsOutsideTheTable(t *testing.T) {
	// Every (role, edge) pair not explicitly granted must be denied.
	type pair struct {
		role string
		from Status
		to   Status
	}
	denied := []pair{
		{rbac.RoleCustomer, StatusSubmitted, StatusAssigned},
		{rbac.RoleCustomer, StatusAssigned, StatusInProgress},
		{rbac.RoleCustomer, StatusInProgress, StatusCompleted},
		{rbac.RoleCustomer, StatusCustomerRejected, StatusClosed},
		{rbac.RoleTechnician, StatusDraft, StatusSubmitted},
		{rbac.RoleTechnician, StatusCompleted, StatusClosed},
		{rbac.RoleTechnician, StatusCompleted, StatusCustomerRejected},
		{rbac.RoleTechnician, StatusSubmitted, StatusRejected},
		{rbac.RoleMaintenanceAdmin, StatusInProgress, StatusCompleted},
		{rbac.RoleMaintenanceAdmin, StatusCompleted, StatusCustomerRejected},
	}
	for _, p := range denied {
		// Actor owns/holds nothing, so ownership grants cannot kick in.
		r := Request{ID: "r1", Status: p.from, RequestedByID: "other", AssignedToID: "other"}
		if err := Authorize(Actor{ID: "u", Role: p.role}, r, p.to); err == nil {
			t.Errorf("expected %s to be denied on %s -> %s", p.role, p.from, p.to)
		}
	}
}

func TestPatchableEdge_SubProtocolEdgesExcluded(t *testing.T) {
	excluded := []struct{ from, to Status }{
		{StatusSubmitted, StatusAssigned},
		{StatusCompleted, StatusClosed},
		{StatusCompleted, StatusCustomerRejected},
		{StatusCustomerRejected, StatusClosed},
	}
	for _, e := range excluded {
		if patchableEdge(e.from, e.to) {
			t.Errorf("%s -> %s must not be reachable via the generic status update", e.from, e.to)
		}
	}
	if !patchableEdge(StatusAssigned, StatusInProgress) {
		t.Fatalf("ASSIGNED -> IN_PROGRESS should be patchable")
	}
}

func TestReasonRequired(t *testing.T) {
	if !reasonRequired(StatusInProgress, StatusRejected) {
		t.Fatalf("rejection must require a reason")
	}
	if reasonRequired(StatusDraft, StatusSubmitted) {
		t.Fatalf("submit must not require a reason")
	}
}
