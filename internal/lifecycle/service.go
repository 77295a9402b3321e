package lifecycle

import (
	"context"
	"errors"
	"strings"
	"time"

	"maintenance-platform/internal/events"
	"maintenance-platform/internal/rbac"
	"maintenance-platform/pkg/logger"

	"github.com/google/uuid"
)

// DefaultConfirmWindow is how long a completed request waits for customer
// confirmation before the sweep auto-confirms it. Calendar time; the window
// is configurable because the business rule only says "3 days".
const DefaultConfirmWindow = 72 * time.Hour

// SecurityLog receives security-relevant engine outcomes (denied attempts,
// privileged overrides, system sweeps). Best-effort: failures are logged,
// never surfaced to callers.
type SecurityLog interface {
	LogForbiddenAttempt(ctx context.Context, actorUserID, actorRole, requestID, message string) error
	LogAdminOverride(ctx context.Context, actorUserID, actorRole, requestID, reason string) error
	LogAutoConfirm(ctx context.Context, actorUserID, requestID string) error
}

// Service is the lifecycle engine: it validates and applies one transition
// per call. Every mutating method follows the same template: load, check
// the transition graph, check the permission table, apply the mutation and
// its audit entry atomically, return the new snapshot or a typed failure.
type Service struct {
	store  Store
	users  Directory
	seclog SecurityLog      // optional
	sink   events.Publisher // optional

	clock         func() time.Time
	confirmWindow time.Duration
}

// Options carries optional engine collaborators.
type Options struct {
	SecurityLog   SecurityLog
	Events        events.Publisher
	ConfirmWindow time.Duration
}

func NewService(store Store, users Directory, opts Options) *Service {
	s := &Service{
		store:         store,
		users:         users,
		seclog:        opts.SecurityLog,
		sink:          opts.Events,
		clock:         time.Now,
		confirmWindow: opts.ConfirmWindow,
	}
	if s.confirmWindow <= 0 {
		s.confirmWindow = DefaultConfirmWindow
	}
	if s.sink == nil {
		s.sink = events.NoopPublisher{}
	}
	return s
}

// CreateInput is the creation payload. Creation may start at DRAFT or,
// with Submit set, directly at SUBMITTED.
type CreateInput struct {
	Title            string
	Description      string
	CategoryID       string
	Priority         Priority
	Location         string
	Building         string
	SpecificLocation string
	CustomID         string

	EstimatedCostMinor *int64

	// RequestedByID is honored only for admin callers creating on behalf of
	// a customer; customers always own what they create.
	RequestedByID string

	Submit bool
}

func (s *Service) Create(ctx context.Context, actor Actor, in CreateInput) (Request, error) {
	if strings.TrimSpace(in.Title) == "" {
		return Request{}, invalidField("title", "required")
	}
	if in.Priority == "" {
		in.Priority = PriorityMedium
	}
	if !in.Priority.IsValid() {
		return Request{}, invalidField("priority", "unknown value")
	}

	owner := ""
	switch actor.Role {
	case rbac.RoleCustomer:
		owner = actor.ID
	case rbac.RoleMaintenanceAdmin, rbac.RoleSuperAdmin:
		if in.RequestedByID == "" {
			return Request{}, invalidField("requested_by_id", "required when creating on behalf of a customer")
		}
		owner = in.RequestedByID
	default:
		return Request{}, forbiddenRole(actor.Role, "only customers or admins create requests")
	}

	now := s.clock().UTC()
	status := StatusDraft
	if in.Submit {
		status = StatusSubmitted
	}

	r := Request{
		ID:                 uuid.NewString(),
		CustomID:           in.CustomID,
		Title:              strings.TrimSpace(in.Title),
		Description:        in.Description,
		CategoryID:         in.CategoryID,
		Priority:           in.Priority,
		Location:           in.Location,
		Building:           in.Building,
		SpecificLocation:   in.SpecificLocation,
		Status:             status,
		RequestedByID:      owner,
		EstimatedCostMinor: in.EstimatedCostMinor,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.store.CreateRequest(ctx, r); err != nil {
		return Request{}, err
	}
	s.publish(ctx, events.Event{Type: events.TypeRequestCreated, RequestID: r.ID, ActorID: actor.ID, ActorRole: actor.Role, ToStatus: string(status), At: now})
	return r, nil
}

// Get returns a request snapshot to the owner, the assigned technician, or
// an admin.
func (s *Service) Get(ctx context.Context, actor Actor, id string) (Request, error) {
	r, err := s.store.GetRequest(ctx, id)
	if err != nil {
		return Request{}, err
	}
	if err := s.requireView(ctx, actor, r); err != nil {
		return Request{}, err
	}
	return r, nil
}

// Submit moves a DRAFT to SUBMITTED. This is the owning customer's only
// route to SUBMITTED; customers never use the generic status update.
func (s *Service) Submit(ctx context.Context, actor Actor, id string) (Request, error) {
	r, err := s.store.GetRequest(ctx, id)
	if err != nil {
		return Request{}, err
	}
	if !IsLegalEdge(r.Status, StatusSubmitted) {
		return Request{}, invalidTransition(r.Status, StatusSubmitted)
	}
	if err := s.authorize(ctx, actor, r, StatusSubmitted); err != nil {
		return Request{}, err
	}
	return s.applyStatusChange(ctx, actor, r, StatusSubmitted, "")
}

// UpdateStatus is the generic status-update action (PATCH /requests/:id/status).
// Edges owned by the assignment or confirmation sub-protocols are not
// reachable through it.
func (s *Service) UpdateStatus(ctx context.Context, actor Actor, id string, target Status, reason string) (Request, error) {
	if !target.IsValid() {
		return Request{}, invalidField("status", "unknown value")
	}
	if actor.Role == rbac.RoleCustomer {
		err := forbiddenRole(actor.Role, "customers cannot update status directly")
		s.logForbidden(ctx, actor, id, err)
		return Request{}, err
	}

	r, err := s.store.GetRequest(ctx, id)
	if err != nil {
		return Request{}, err
	}
	if !IsLegalEdge(r.Status, target) {
		return Request{}, invalidTransition(r.Status, target)
	}
	if !patchableEdge(r.Status, target) {
		err := forbiddenRole(actor.Role, "status is driven by a dedicated action, not a direct update")
		s.logForbidden(ctx, actor, id, err)
		return Request{}, err
	}
	if err := s.authorize(ctx, actor, r, target); err != nil {
		return Request{}, err
	}
	if reasonRequired(r.Status, target) && strings.TrimSpace(reason) == "" {
		return Request{}, invalidField("reason", "required for this transition")
	}

	// The technician revert discards the pending confirmation window and is
	// therefore one of the mutually exclusive PENDING writes.
	if r.Status == StatusCompleted && target == StatusInProgress {
		return s.resolvePending(ctx, actor, r, Resolution{Kind: ResolveRevert}, reasonOr(reason, "completion reverted"))
	}

	return s.applyStatusChange(ctx, actor, r, target, reason)
}

// applyStatusChange performs a plain graph transition with its field side
// effects and one status history entry, compare-and-set on the prior status.
func (s *Service) applyStatusChange(ctx context.Context, actor Actor, r Request, target Status, reason string) (Request, error) {
	now := s.clock().UTC()
	from := r.Status

	updated := r
	updated.Status = target
	updated.UpdatedAt = now

	switch target {
	case StatusCompleted:
		// Arms the confirmation window. A re-completion after revert
		// overwrites the completed date so the window re-arms fresh.
		t := now
		updated.CompletedDate = &t
		updated.ConfirmationStatus = ConfirmationPending
	case StatusRejected:
		// Rejecting a completed request discards its pending window.
		if from == StatusCompleted {
			updated.ConfirmationStatus = ""
			updated.CustomerConfirmedAt = nil
			updated.CustomerRejectedAt = nil
			updated.CustomerConfirmationComment = ""
			updated.CustomerRejectionReason = ""
		}
	}

	sh := s.statusEntry(r.ID, from, target, actor, reason, now)
	won, err := s.store.ApplyTransition(ctx, updated, from, &sh, nil)
	if err != nil {
		return Request{}, err
	}
	if !won {
		return Request{}, invalidState("request was modified concurrently; re-fetch and retry")
	}
	s.publish(ctx, events.Event{Type: events.TypeStatusChanged, RequestID: r.ID, ActorID: actor.ID, ActorRole: actor.Role, FromStatus: string(from), ToStatus: string(target), Detail: reason, At: now})
	return updated, nil
}

// Assign binds a technician to a request (manual assignment). Admin-only.
// From SUBMITTED this is the initial assignment and drives the request to
// ASSIGNED; from ASSIGNED or IN_PROGRESS it is a reassignment and the
// status stays put.
func (s *Service) Assign(ctx context.Context, actor Actor, id, technicianID, reason string) (Request, error) {
	if !rbac.IsAdmin(actor.Role) {
		err := forbiddenRole(actor.Role, "only admins assign technicians")
		s.logForbidden(ctx, actor, id, err)
		return Request{}, err
	}
	if technicianID == "" {
		return Request{}, invalidField("technician_id", "required")
	}

	tech, err := s.users.FindUser(ctx, technicianID)
	if err != nil {
		return Request{}, err
	}
	if tech.Role != rbac.RoleTechnician {
		return Request{}, invalidField("technician_id", "user is not a technician")
	}

	r, err := s.store.GetRequest(ctx, id)
	if err != nil {
		return Request{}, err
	}

	now := s.clock().UTC()
	updated := r
	updated.AssignedToID = technicianID
	updated.UpdatedAt = now

	var sh *StatusHistoryEntry
	ah := AssignmentHistoryEntry{
		ID:               uuid.NewString(),
		RequestID:        r.ID,
		FromTechnicianID: r.AssignedToID,
		ToTechnicianID:   technicianID,
		AssignedByID:     actor.ID,
		Reason:           reason,
		CreatedAt:        now,
	}

	switch r.Status {
	case StatusSubmitted:
		updated.Status = StatusAssigned
		ah.Type = AssignmentInitial
		entry := s.statusEntry(r.ID, StatusSubmitted, StatusAssigned, actor, reasonOr(reason, "technician assigned"), now)
		sh = &entry
	case StatusAssigned, StatusInProgress:
		if r.AssignedToID == technicianID {
			return Request{}, invalidField("technician_id", "request is already assigned to this technician")
		}
		ah.Type = AssignmentReassign
	default:
		return Request{}, invalidTransition(r.Status, StatusAssigned)
	}

	won, err := s.store.ApplyTransition(ctx, updated, r.Status, sh, &ah)
	if err != nil {
		return Request{}, err
	}
	if !won {
		return Request{}, invalidState("request was modified concurrently; re-fetch and retry")
	}
	s.publish(ctx, events.Event{Type: events.TypeRequestAssigned, RequestID: r.ID, ActorID: actor.ID, ActorRole: actor.Role, ToStatus: string(updated.Status), Detail: technicianID, At: now})
	return updated, nil
}

// SelfAssign lets a technician claim an unassigned SUBMITTED request.
// The store's conditional update guarantees that of N concurrent claims
// exactly one wins; losers get ErrAlreadyAssigned.
func (s *Service) SelfAssign(ctx context.Context, actor Actor, id string) (Request, error) {
	if actor.Role != rbac.RoleTechnician {
		err := forbiddenRole(actor.Role, "only technicians self-assign")
		s.logForbidden(ctx, actor, id, err)
		return Request{}, err
	}

	now := s.clock().UTC()
	sh := s.statusEntry(id, StatusSubmitted, StatusAssigned, actor, "self-assigned", now)
	ah := AssignmentHistoryEntry{
		ID:             uuid.NewString(),
		RequestID:      id,
		Type:           AssignmentSelf,
		ToTechnicianID: actor.ID,
		AssignedByID:   actor.ID,
		CreatedAt:      now,
	}

	r, won, err := s.store.ClaimForTechnician(ctx, id, actor.ID, now, sh, ah)
	if err != nil {
		return Request{}, err
	}
	if !won {
		if r.AssignedToID != "" {
			return Request{}, ErrAlreadyAssigned
		}
		return Request{}, invalidTransition(r.Status, StatusAssigned)
	}
	s.publish(ctx, events.Event{Type: events.TypeRequestAssigned, RequestID: id, ActorID: actor.ID, ActorRole: actor.Role, ToStatus: string(StatusAssigned), Detail: actor.ID, At: now})
	return r, nil
}

// Unassign clears the technician and reverts the request to SUBMITTED.
// Admin-only.
func (s *Service) Unassign(ctx context.Context, actor Actor, id, reason string) (Request, error) {
	if !rbac.IsAdmin(actor.Role) {
		err := forbiddenRole(actor.Role, "only admins unassign technicians")
		s.logForbidden(ctx, actor, id, err)
		return Request{}, err
	}

	r, err := s.store.GetRequest(ctx, id)
	if err != nil {
		return Request{}, err
	}
	if r.AssignedToID == "" || (r.Status != StatusAssigned && r.Status != StatusInProgress) {
		return Request{}, invalidState("request has no active assignment")
	}

	now := s.clock().UTC()
	updated := r
	updated.AssignedToID = ""
	updated.Status = StatusSubmitted
	updated.UpdatedAt = now

	sh := s.statusEntry(r.ID, r.Status, StatusSubmitted, actor, reasonOr(reason, "technician unassigned"), now)
	ah := AssignmentHistoryEntry{
		ID:               uuid.NewString(),
		RequestID:        r.ID,
		Type:             AssignmentUnassign,
		FromTechnicianID: r.AssignedToID,
		AssignedByID:     actor.ID,
		Reason:           reason,
		CreatedAt:        now,
	}

	won, err := s.store.ApplyTransition(ctx, updated, r.Status, &sh, &ah)
	if err != nil {
		return Request{}, err
	}
	if !won {
		return Request{}, invalidState("request was modified concurrently; re-fetch and retry")
	}
	return updated, nil
}

// ConfirmCompletion resolves a PENDING window as CONFIRMED and closes the
// request. The owning customer confirms directly; an admin may confirm on
// the customer's behalf with a mandatory override reason.
func (s *Service) ConfirmCompletion(ctx context.Context, actor Actor, id, comment, overrideReason string) (Request, error) {
	r, err := s.store.GetRequest(ctx, id)
	if err != nil {
		return Request{}, err
	}

	historyReason := "customer confirmed"
	switch actor.Role {
	case rbac.RoleCustomer:
		if r.RequestedByID != actor.ID {
			err := forbiddenOwner(actor.Role, "request belongs to another customer")
			s.logForbidden(ctx, actor, id, err)
			return Request{}, err
		}
	case rbac.RoleMaintenanceAdmin, rbac.RoleSuperAdmin:
		if strings.TrimSpace(overrideReason) == "" {
			return Request{}, invalidField("override_reason", "required when confirming on behalf of a customer")
		}
		historyReason = "confirmed by admin: " + overrideReason
		s.logOverride(ctx, actor, id, overrideReason)
	default:
		err := forbiddenRole(actor.Role, "only the owning customer or an admin confirms completion")
		s.logForbidden(ctx, actor, id, err)
		return Request{}, err
	}

	if err := checkPendingWindow(r); err != nil {
		return Request{}, err
	}
	return s.resolvePending(ctx, actor, r, Resolution{Kind: ResolveConfirm, Comment: comment}, historyReason)
}

// RejectCompletion resolves a PENDING window as REJECTED and moves the
// request to CUSTOMER_REJECTED. Owning customer only; reason mandatory.
func (s *Service) RejectCompletion(ctx context.Context, actor Actor, id, reason, comment string) (Request, error) {
	if strings.TrimSpace(reason) == "" {
		return Request{}, invalidField("reason", "required")
	}

	r, err := s.store.GetRequest(ctx, id)
	if err != nil {
		return Request{}, err
	}
	if actor.Role != rbac.RoleCustomer {
		err := forbiddenRole(actor.Role, "only the owning customer rejects completion")
		s.logForbidden(ctx, actor, id, err)
		return Request{}, err
	}
	if r.RequestedByID != actor.ID {
		err := forbiddenOwner(actor.Role, "request belongs to another customer")
		s.logForbidden(ctx, actor, id, err)
		return Request{}, err
	}

	if err := checkPendingWindow(r); err != nil {
		return Request{}, err
	}
	return s.resolvePending(ctx, actor, r, Resolution{Kind: ResolveReject, Reason: reason, Comment: comment}, reason)
}

// CloseWithoutConfirmation is the administrative override. From COMPLETED
// it resolves the PENDING window as OVERRIDDEN; from CUSTOMER_REJECTED it
// closes an abandoned rework. Reason mandatory in both cases.
func (s *Service) CloseWithoutConfirmation(ctx context.Context, actor Actor, id, reason string) (Request, error) {
	if !rbac.IsAdmin(actor.Role) {
		err := forbiddenRole(actor.Role, "only admins close without confirmation")
		s.logForbidden(ctx, actor, id, err)
		return Request{}, err
	}
	if strings.TrimSpace(reason) == "" {
		return Request{}, invalidField("reason", "required")
	}

	r, err := s.store.GetRequest(ctx, id)
	if err != nil {
		return Request{}, err
	}

	switch r.Status {
	case StatusCompleted:
		if r.ConfirmationStatus != ConfirmationPending {
			return Request{}, ErrAlreadyResolved
		}
		s.logOverride(ctx, actor, id, reason)
		return s.resolvePending(ctx, actor, r, Resolution{Kind: ResolveOverride, Reason: reason}, "closed without confirmation: "+reason)

	case StatusCustomerRejected:
		if err := s.authorize(ctx, actor, r, StatusClosed); err != nil {
			return Request{}, err
		}
		now := s.clock().UTC()
		updated := r
		updated.Status = StatusClosed
		updated.ClosedWithoutConfirmation = true
		updated.AdminOverrideReason = reason
		updated.UpdatedAt = now
		sh := s.statusEntry(r.ID, r.Status, StatusClosed, actor, "closed without confirmation: "+reason, now)
		won, err := s.store.ApplyTransition(ctx, updated, r.Status, &sh, nil)
		if err != nil {
			return Request{}, err
		}
		if !won {
			return Request{}, invalidState("request was modified concurrently; re-fetch and retry")
		}
		s.logOverride(ctx, actor, id, reason)
		s.publish(ctx, events.Event{Type: events.TypeStatusChanged, RequestID: r.ID, ActorID: actor.ID, ActorRole: actor.Role, FromStatus: string(r.Status), ToStatus: string(StatusClosed), Detail: reason, At: now})
		return updated, nil

	default:
		return Request{}, invalidState("request has no confirmation window to override")
	}
}

// ConfirmationView is the read model for the confirmation-status endpoint.
type ConfirmationView struct {
	Status                    ConfirmationStatus `json:"status,omitempty"`
	CanConfirm                bool               `json:"can_confirm"`
	CanReject                 bool               `json:"can_reject"`
	AutoConfirmDate           *time.Time         `json:"auto_confirm_date,omitempty"`
	ConfirmedAt               *time.Time         `json:"confirmed_at,omitempty"`
	RejectedAt                *time.Time         `json:"rejected_at,omitempty"`
	Comment                   string             `json:"comment,omitempty"`
	RejectionReason           string             `json:"rejection_reason,omitempty"`
	ClosedWithoutConfirmation bool               `json:"closed_without_confirmation"`
	OverrideReason            string             `json:"override_reason,omitempty"`
}

// ConfirmationStatus reports the confirmation window to the owner, the
// assigned technician, or an admin.
func (s *Service) ConfirmationStatus(ctx context.Context, actor Actor, id string) (ConfirmationView, error) {
	r, err := s.store.GetRequest(ctx, id)
	if err != nil {
		return ConfirmationView{}, err
	}
	if err := s.requireView(ctx, actor, r); err != nil {
		return ConfirmationView{}, err
	}

	v := ConfirmationView{
		Status:                    r.ConfirmationStatus,
		ConfirmedAt:               r.CustomerConfirmedAt,
		RejectedAt:                r.CustomerRejectedAt,
		Comment:                   r.CustomerConfirmationComment,
		RejectionReason:           r.CustomerRejectionReason,
		ClosedWithoutConfirmation: r.ClosedWithoutConfirmation,
		OverrideReason:            r.AdminOverrideReason,
	}
	pending := r.Status == StatusCompleted && r.ConfirmationStatus == ConfirmationPending
	if pending && r.CompletedDate != nil {
		due := r.CompletedDate.Add(s.confirmWindow)
		v.AutoConfirmDate = &due
	}
	isOwner := actor.Role == rbac.RoleCustomer && r.RequestedByID == actor.ID
	v.CanConfirm = pending && (isOwner || rbac.IsAdmin(actor.Role))
	v.CanReject = pending && isOwner
	return v, nil
}

// History returns the status and assignment timelines, oldest first.
func (s *Service) History(ctx context.Context, actor Actor, id string) ([]StatusHistoryEntry, []AssignmentHistoryEntry, error) {
	r, err := s.store.GetRequest(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if err := s.requireView(ctx, actor, r); err != nil {
		return nil, nil, err
	}
	sh, err := s.store.StatusHistory(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	ah, err := s.store.AssignmentHistory(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return sh, ah, nil
}

// AutoConfirmOverdue applies the timeout confirmation to every request whose
// window has been PENDING longer than the configured window. Idempotent:
// each write is guarded by the PENDING compare-and-set, so a concurrent
// sweep (or a racing customer action) makes the loser a no-op, never a
// double close.
func (s *Service) AutoConfirmOverdue(ctx context.Context) (int, error) {
	now := s.clock().UTC()
	cutoff := now.Add(-s.confirmWindow)

	overdue, err := s.store.ListOverdueConfirmations(ctx, cutoff, 500)
	if err != nil {
		return 0, err
	}

	confirmed := 0
	for _, r := range overdue {
		sh := s.statusEntry(r.ID, StatusCompleted, StatusClosed, SystemActor, "auto-confirmed after timeout", now)
		updated, won, err := s.store.ResolveConfirmation(ctx, r.ID, Resolution{Kind: ResolveConfirm, At: now}, sh)
		if err != nil {
			return confirmed, err
		}
		if !won {
			continue // resolved by someone else between list and write
		}
		confirmed++
		if s.seclog != nil {
			if err := s.seclog.LogAutoConfirm(ctx, SystemActorID, r.ID); err != nil {
				logger.From(ctx).Warn("audit append failed", "request_id", r.ID, "err", err)
			}
		}
		s.publish(ctx, events.Event{Type: events.TypeConfirmationResolved, RequestID: r.ID, ActorID: SystemActorID, FromStatus: string(StatusCompleted), ToStatus: string(updated.Status), Detail: "auto-confirmed after timeout", At: now})
	}
	return confirmed, nil
}

// resolvePending funnels every write on a PENDING window through the store's
// compare-and-set. Losing the race surfaces as ErrAlreadyResolved.
func (s *Service) resolvePending(ctx context.Context, actor Actor, r Request, res Resolution, historyReason string) (Request, error) {
	now := s.clock().UTC()
	res.At = now

	target := StatusClosed
	switch res.Kind {
	case ResolveReject:
		target = StatusCustomerRejected
	case ResolveRevert:
		target = StatusInProgress
	}

	sh := s.statusEntry(r.ID, StatusCompleted, target, actor, historyReason, now)
	updated, won, err := s.store.ResolveConfirmation(ctx, r.ID, res, sh)
	if err != nil {
		return Request{}, err
	}
	if !won {
		return Request{}, ErrAlreadyResolved
	}

	evType := events.TypeConfirmationResolved
	if res.Kind == ResolveRevert {
		evType = events.TypeStatusChanged
	}
	s.publish(ctx, events.Event{Type: evType, RequestID: r.ID, ActorID: actor.ID, ActorRole: actor.Role, FromStatus: string(StatusCompleted), ToStatus: string(updated.Status), Detail: historyReason, At: now})
	return updated, nil
}

// checkPendingWindow orders the precondition failures: a request that left
// COMPLETED through its confirmation is AlreadyResolved, one that never got
// there is InvalidState.
func checkPendingWindow(r Request) error {
	if r.Status == StatusCompleted && r.ConfirmationStatus == ConfirmationPending {
		return nil
	}
	if r.ConfirmationStatus != "" && r.ConfirmationStatus != ConfirmationPending {
		return ErrAlreadyResolved
	}
	return invalidState("request is not awaiting customer confirmation")
}

func (s *Service) authorize(ctx context.Context, actor Actor, r Request, target Status) error {
	if err := Authorize(actor, r, target); err != nil {
		s.logForbidden(ctx, actor, r.ID, err)
		return err
	}
	return nil
}

// requireView gates read access: owner, assigned technician, or admin.
func (s *Service) requireView(ctx context.Context, actor Actor, r Request) error {
	switch {
	case rbac.IsAdmin(actor.Role):
		return nil
	case actor.Role == rbac.RoleCustomer && r.RequestedByID == actor.ID:
		return nil
	case actor.Role == rbac.RoleTechnician && r.AssignedToID == actor.ID:
		return nil
	}
	err := forbiddenOwner(actor.Role, "not a participant of this request")
	s.logForbidden(ctx, actor, r.ID, err)
	return err
}

func (s *Service) statusEntry(requestID string, from, to Status, actor Actor, reason string, at time.Time) StatusHistoryEntry {
	return StatusHistoryEntry{
		ID:         uuid.NewString(),
		RequestID:  requestID,
		FromStatus: from,
		ToStatus:   to,
		Reason:     reason,
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		CreatedAt:  at,
	}
}

func (s *Service) publish(ctx context.Context, e events.Event) {
	if err := s.sink.Publish(ctx, e); err != nil {
		logger.From(ctx).Warn("event publish failed", "type", e.Type, "request_id", e.RequestID, "err", err)
	}
}

func (s *Service) logForbidden(ctx context.Context, actor Actor, requestID string, cause error) {
	if s.seclog == nil {
		return
	}
	var fe *ForbiddenError
	msg := cause.Error()
	if errors.As(cause, &fe) {
		msg = fe.Reason
	}
	if err := s.seclog.LogForbiddenAttempt(ctx, actor.ID, actor.Role, requestID, msg); err != nil {
		logger.From(ctx).Warn("audit append failed", "request_id", requestID, "err", err)
	}
}

func (s *Service) logOverride(ctx context.Context, actor Actor, requestID, reason string) {
	if s.seclog == nil {
		return
	}
	if err := s.seclog.LogAdminOverride(ctx, actor.ID, actor.Role, requestID, reason); err != nil {
		logger.From(ctx).Warn("audit append failed", "request_id", requestID, "err", err)
	}
}

func reasonOr(reason, fallback string) string {
	if strings.TrimSpace(reason) == "" {
		return fallback
	}
	return reason
}
