package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for security audit events.
//
// It MUST be append-only.
// No Update/Delete methods are provided by design.
type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service logs internal security audit information.
//
// IMPORTANT:
// - Audit is internal-only. Do not expose these records to customers.
// - Callers should treat audit logging as best-effort.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}

	now := s.clock().UTC()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	return s.repo.Append(ctx, e)
}

// LogForbiddenAttempt records a denied transition attempt.
func (s *Service) LogForbiddenAttempt(ctx context.Context, actorUserID, actorRole, requestID, message string) error {
	return s.Append(ctx, Event{
		Type:        EventTypeForbiddenAttempt,
		ActorUserID: actorUserID,
		ActorRole:   actorRole,
		RequestID:   requestID,
		Message:     message,
	})
}

// LogAdminOverride records a privileged close/confirm with its reason.
func (s *Service) LogAdminOverride(ctx context.Context, actorUserID, actorRole, requestID, reason string) error {
	return s.Append(ctx, Event{
		Type:        EventTypeAdminOverride,
		ActorUserID: actorUserID,
		ActorRole:   actorRole,
		RequestID:   requestID,
		Message:     reason,
	})
}

// LogAutoConfirm records a system-initiated timeout confirmation.
func (s *Service) LogAutoConfirm(ctx context.Context, actorUserID, requestID string) error {
	return s.Append(ctx, Event{
		Type:        EventTypeAutoConfirm,
		ActorUserID: actorUserID,
		RequestID:   requestID,
		Message:     "auto-confirmed after timeout",
	})
}
