package lifecycle

import "time"

// Status is the lifecycle state of a maintenance request.
type Status string

const (
	StatusDraft            Status = "DRAFT"
	StatusSubmitted        Status = "SUBMITTED"
	StatusAssigned         Status = "ASSIGNED"
	StatusInProgress       Status = "IN_PROGRESS"
	StatusCompleted        Status = "COMPLETED"
	StatusClosed           Status = "CLOSED"
	StatusRejected         Status = "REJECTED"
	StatusCustomerRejected Status = "CUSTOMER_REJECTED"
)

// IsValid reports whether s is a known status value.
func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusSubmitted, StatusAssigned, StatusInProgress,
		StatusCompleted, StatusClosed, StatusRejected, StatusCustomerRejected:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no edge leaves s.
// CUSTOMER_REJECTED is semi-terminal and therefore not included.
func (s Status) IsTerminal() bool {
	return s == StatusClosed || s == StatusRejected
}

type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
	PriorityUrgent Priority = "URGENT"
)

func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	default:
		return false
	}
}

// ConfirmationStatus is the nested confirmation sub-workflow state.
// It is non-empty only while the parent status is COMPLETED, CLOSED or
// CUSTOMER_REJECTED.
type ConfirmationStatus string

const (
	ConfirmationPending    ConfirmationStatus = "PENDING"
	ConfirmationConfirmed  ConfirmationStatus = "CONFIRMED"
	ConfirmationRejected   ConfirmationStatus = "REJECTED"
	ConfirmationOverridden ConfirmationStatus = "OVERRIDDEN"
)

// Request is the central aggregate. It is mutated only through the engine;
// readers get snapshots.
//
// Invariants:
// - AssignedToID is non-empty iff Status is ASSIGNED, IN_PROGRESS or
//   COMPLETED (COMPLETED retains the technician for attribution).
// - CompletedDate is set iff the request has ever reached COMPLETED.
// - ConfirmationStatus is non-empty iff Status is COMPLETED, CLOSED or
//   CUSTOMER_REJECTED.
// - At most one of CustomerConfirmedAt / CustomerRejectedAt is set, and
//   exactly one once a customer resolution (CONFIRMED/REJECTED) lands.
type Request struct {
	ID       string `json:"id" db:"id"`
	CustomID string `json:"custom_id,omitempty" db:"custom_id"`

	Title            string   `json:"title" db:"title"`
	Description      string   `json:"description,omitempty" db:"description"`
	CategoryID       string   `json:"category_id,omitempty" db:"category_id"`
	Priority         Priority `json:"priority" db:"priority"`
	Location         string   `json:"location,omitempty" db:"location"`
	Building         string   `json:"building,omitempty" db:"building"`
	SpecificLocation string   `json:"specific_location,omitempty" db:"specific_location"`

	Status        Status `json:"status" db:"status"`
	RequestedByID string `json:"requested_by_id" db:"requested_by_id"`
	AssignedToID  string `json:"assigned_to_id,omitempty" db:"assigned_to_id"`

	CompletedDate *time.Time `json:"completed_date,omitempty" db:"completed_date"`

	// Costs are stored in minor units (cents) to avoid float money math.
	EstimatedCostMinor *int64 `json:"estimated_cost_minor,omitempty" db:"estimated_cost_minor"`
	ActualCostMinor    *int64 `json:"actual_cost_minor,omitempty" db:"actual_cost_minor"`

	ConfirmationStatus          ConfirmationStatus `json:"customer_confirmation_status,omitempty" db:"customer_confirmation_status"`
	CustomerConfirmedAt         *time.Time         `json:"customer_confirmed_at,omitempty" db:"customer_confirmed_at"`
	CustomerRejectedAt          *time.Time         `json:"customer_rejected_at,omitempty" db:"customer_rejected_at"`
	CustomerConfirmationComment string             `json:"customer_confirmation_comment,omitempty" db:"customer_confirmation_comment"`
	CustomerRejectionReason     string             `json:"customer_rejection_reason,omitempty" db:"customer_rejection_reason"`
	ClosedWithoutConfirmation   bool               `json:"closed_without_confirmation" db:"closed_without_confirmation"`
	AdminOverrideReason         string             `json:"admin_override_reason,omitempty" db:"admin_override_reason"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// StatusHistoryEntry is an immutable audit record of one status transition.
// Rows are inserted in the same transaction as the transition they document
// and are never updated or deleted.
type StatusHistoryEntry struct {
	ID         string    `json:"id" db:"id"`
	RequestID  string    `json:"request_id" db:"request_id"`
	FromStatus Status    `json:"from_status" db:"from_status"`
	ToStatus   Status    `json:"to_status" db:"to_status"`
	Reason     string    `json:"reason,omitempty" db:"reason"`
	ActorID    string    `json:"actor_id" db:"actor_id"`
	ActorRole  string    `json:"actor_role" db:"actor_role"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

type AssignmentType string

const (
	AssignmentInitial  AssignmentType = "INITIAL_ASSIGNMENT"
	AssignmentReassign AssignmentType = "REASSIGNMENT"
	AssignmentSelf     AssignmentType = "SELF_ASSIGNMENT"
	AssignmentUnassign AssignmentType = "UNASSIGNMENT"
)

// AssignmentHistoryEntry is an immutable audit record of one assignment
// mutation. Same append-only discipline as StatusHistoryEntry.
type AssignmentHistoryEntry struct {
	ID               string         `json:"id" db:"id"`
	RequestID        string         `json:"request_id" db:"request_id"`
	Type             AssignmentType `json:"assignment_type" db:"assignment_type"`
	FromTechnicianID string         `json:"from_technician_id,omitempty" db:"from_technician_id"`
	ToTechnicianID   string         `json:"to_technician_id,omitempty" db:"to_technician_id"`
	AssignedByID     string         `json:"assigned_by_id" db:"assigned_by_id"`
	Reason           string         `json:"reason,omitempty" db:"reason"`
	CreatedAt        time.Time      `json:"created_at" db:"created_at"`
}

// Actor is the authenticated identity performing an engine action.
// The authentication collaborator resolves it per call.
type Actor struct {
	ID   string
	Role string
}

// SystemActorID marks transitions applied by the service itself (the
// auto-confirm sweep) rather than a user.
const SystemActorID = "system"

// SystemActor is the sweep's identity in audit records.
var SystemActor = Actor{ID: SystemActorID, Role: "SYSTEM"}

// User is the minimal directory view the engine needs to validate
// assignment targets.
type User struct {
	ID   string `json:"id" db:"id"`
	Name string `json:"name,omitempty" db:"name"`
	Role string `json:"role" db:"role"`
}
