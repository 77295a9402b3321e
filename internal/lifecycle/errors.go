package lifecycle

import (
	"errors"
	"fmt"
)

// Expected, typed outcomes of engine calls. The HTTP layer translates them
// to status codes; none of them leave a partial write committed.
var (
	ErrNotFound = errors.New("lifecycle: not found")

	// ErrAlreadyAssigned is the losing side of a concurrent self-assign.
	ErrAlreadyAssigned = errors.New("lifecycle: request already assigned")

	// ErrAlreadyResolved is the losing side of a concurrent confirmation
	// resolution (customer action vs admin override vs timeout sweep).
	ErrAlreadyResolved = errors.New("lifecycle: confirmation already resolved")
)

// InvalidTransitionError reports a requested edge that is not in the
// transition graph from the request's current status.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("lifecycle: invalid transition %s -> %s", e.From, e.To)
}

// ForbiddenError reports a failed role or ownership check.
// WrongOwner distinguishes "right role, not the owning actor" from
// "role never allowed" for client messaging.
type ForbiddenError struct {
	Role       string
	WrongOwner bool
	Reason     string
}

func (e *ForbiddenError) Error() string {
	if e.WrongOwner {
		return fmt.Sprintf("lifecycle: forbidden for %s (not the owning actor): %s", e.Role, e.Reason)
	}
	return fmt.Sprintf("lifecycle: forbidden for role %s: %s", e.Role, e.Reason)
}

// InvalidStateError reports an action-specific precondition failure, e.g.
// confirm attempted while the parent status is not COMPLETED.
type InvalidStateError struct {
	Reason string
}

func (e *InvalidStateError) Error() string {
	return "lifecycle: invalid state: " + e.Reason
}

// ValidationError reports malformed input caught before touching persistence.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("lifecycle: invalid %s: %s", e.Field, e.Reason)
}

func invalidTransition(from, to Status) error {
	return &InvalidTransitionError{From: from, To: to}
}

func forbiddenRole(role, reason string) error {
	return &ForbiddenError{Role: role, Reason: reason}
}

func forbiddenOwner(role, reason string) error {
	return &ForbiddenError{Role: role, WrongOwner: true, Reason: reason}
}

func invalidState(reason string) error {
	return &InvalidStateError{Reason: reason}
}

func invalidField(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
