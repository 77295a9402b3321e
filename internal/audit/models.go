package audit

import "time"

// Event is an immutable, append-only security audit record.
//
// Invariants:
// - Events are never updated or deleted.
// - Capture is best-effort; do not block lifecycle transactions on audit
//   failures.
//
// Storage recommendation (Postgres):
// - Table security_audit_events with an INSERT-only policy.
// - Optional: trigger to prevent UPDATE/DELETE.
// - Optional: partition by time for retention.
type Event struct {
	ID string `json:"id" db:"id"`

	// Type indicates the business category of the audit record.
	Type EventType `json:"type" db:"type"`

	// ActorUserID is the authenticated user causing the event. The sweep
	// uses the fixed system actor id.
	ActorUserID string `json:"actor_user_id,omitempty" db:"actor_user_id"`
	ActorRole   string `json:"actor_role,omitempty" db:"actor_role"`

	// IPAddress should capture the original client IP when available.
	IPAddress string `json:"ip_address,omitempty" db:"ip_address"`

	RequestID string `json:"request_id,omitempty" db:"request_id"`

	// Message is a short human-readable description for internal ops.
	Message string `json:"message,omitempty" db:"message"`

	// Metadata is optional JSON for full details.
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	// EventTypeForbiddenAttempt records a denied transition attempt
	// (wrong role or wrong owner) for security monitoring.
	EventTypeForbiddenAttempt EventType = "forbidden_attempt"
	// EventTypeAdminOverride records an administrative close or confirm
	// performed on behalf of a customer.
	EventTypeAdminOverride EventType = "admin_override"
	// EventTypeAutoConfirm records a system-initiated timeout confirmation.
	EventTypeAutoConfirm EventType = "auto_confirm"
)
