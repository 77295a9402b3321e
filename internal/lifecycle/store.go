package lifecycle

import (
	"context"
	"time"
)

// ResolutionKind names the mutually exclusive writes that may land on a
// PENDING confirmation window. Whichever write lands first wins; the others
// observe a failed guard.
type ResolutionKind string

const (
	// ResolveConfirm closes the request on customer (or sweep) confirmation.
	ResolveConfirm ResolutionKind = "CONFIRM"
	// ResolveReject moves the request to CUSTOMER_REJECTED.
	ResolveReject ResolutionKind = "REJECT"
	// ResolveOverride is the admin close-without-confirmation path.
	ResolveOverride ResolutionKind = "OVERRIDE"
	// ResolveRevert discards the pending window and moves the request back
	// to IN_PROGRESS; confirmation fields are cleared for re-arming.
	ResolveRevert ResolutionKind = "REVERT"
)

// Resolution carries the fields of one confirmation-window write.
type Resolution struct {
	Kind ResolutionKind
	At   time.Time

	// Comment is the optional customer confirmation comment.
	Comment string
	// Reason is the rejection reason or admin override reason.
	Reason string
}

// Store is the persistence contract for the lifecycle engine.
//
// Every mutating method writes the request row and its history rows in one
// transaction; a status change without its history entry (or vice versa) is
// a consistency bug. The boolean results report compare-and-set guards:
// false means the precondition no longer held at write time and nothing was
// written.
type Store interface {
	CreateRequest(ctx context.Context, r Request) error
	GetRequest(ctx context.Context, id string) (Request, error)

	// ApplyTransition persists the mutated snapshot r when the stored status
	// still equals expect. Either history entry may be nil when the action
	// did not produce one.
	ApplyTransition(ctx context.Context, r Request, expect Status, sh *StatusHistoryEntry, ah *AssignmentHistoryEntry) (bool, error)

	// ClaimForTechnician is the self-assign compare-and-set: it binds the
	// technician only while the request is still SUBMITTED and unassigned.
	// Exactly one of N concurrent claims succeeds.
	ClaimForTechnician(ctx context.Context, requestID, technicianID string, now time.Time, sh StatusHistoryEntry, ah AssignmentHistoryEntry) (Request, bool, error)

	// ResolveConfirmation applies res only while the confirmation window is
	// still PENDING and the parent status is COMPLETED.
	ResolveConfirmation(ctx context.Context, requestID string, res Resolution, sh StatusHistoryEntry) (Request, bool, error)

	// ListOverdueConfirmations returns requests whose confirmation window is
	// PENDING and whose completed date is before the cutoff, oldest first.
	ListOverdueConfirmations(ctx context.Context, completedBefore time.Time, limit int) ([]Request, error)

	// Timelines, ascending by timestamp.
	StatusHistory(ctx context.Context, requestID string) ([]StatusHistoryEntry, error)
	AssignmentHistory(ctx context.Context, requestID string) ([]AssignmentHistoryEntry, error)
}

// Directory resolves users for assignment-target validation. Backed by the
// external identity store; the engine only reads it.
type Directory interface {
	FindUser(ctx context.Context, id string) (User, error)
}

// applyResolution mutates r in place according to res. Both store
// implementations call it after their PENDING guard has passed, so the two
// invocation routes can never diverge in behavior.
func applyResolution(r *Request, res Resolution) {
	switch res.Kind {
	case ResolveConfirm:
		at := res.At
		r.Status = StatusClosed
		r.ConfirmationStatus = ConfirmationConfirmed
		r.CustomerConfirmedAt = &at
		r.CustomerConfirmationComment = res.Comment
	case ResolveReject:
		at := res.At
		r.Status = StatusCustomerRejected
		r.ConfirmationStatus = ConfirmationRejected
		r.CustomerRejectedAt = &at
		r.CustomerRejectionReason = res.Reason
		r.CustomerConfirmationComment = res.Comment
	case ResolveOverride:
		r.Status = StatusClosed
		r.ConfirmationStatus = ConfirmationOverridden
		r.ClosedWithoutConfirmation = true
		r.AdminOverrideReason = res.Reason
	case ResolveRevert:
		r.Status = StatusInProgress
		r.ConfirmationStatus = ""
		r.CustomerConfirmedAt = nil
		r.CustomerRejectedAt = nil
		r.CustomerConfirmationComment = ""
		r.CustomerRejectionReason = ""
	}
	r.UpdatedAt = res.At
}
