package lifecycle

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"maintenance-platform/pkg/utils"
)

// PostgresStore implements Store on database/sql (pgx stdlib driver).
//
// NOTE: This store assumes the following tables exist:
// - requests
// - request_status_history (immutable append-only)
// - request_assignment_history (immutable append-only)
// - users (read-only here; owned by the identity service)
//
// Optional string columns are NOT NULL DEFAULT ''; only timestamps and cost
// columns are nullable.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore { return &PostgresStore{db: db} }

const requestColumns = `
id, custom_id, title, description, category_id, priority, location, building, specific_location,
status, requested_by_id, assigned_to_id, completed_date, estimated_cost_minor, actual_cost_minor,
customer_confirmation_status, customer_confirmed_at, customer_rejected_at,
customer_confirmation_comment, customer_rejection_reason, closed_without_confirmation,
admin_override_reason, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (Request, error) {
	var r Request
	var completed, confirmedAt, rejectedAt sql.NullTime
	var estCost, actCost sql.NullInt64

	err := row.Scan(
		&r.ID, &r.CustomID, &r.Title, &r.Description, &r.CategoryID, &r.Priority,
		&r.Location, &r.Building, &r.SpecificLocation,
		&r.Status, &r.RequestedByID, &r.AssignedToID,
		&completed, &estCost, &actCost,
		&r.ConfirmationStatus, &confirmedAt, &rejectedAt,
		&r.CustomerConfirmationComment, &r.CustomerRejectionReason, &r.ClosedWithoutConfirmation,
		&r.AdminOverrideReason, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return Request{}, err
	}
	if completed.Valid {
		t := completed.Time
		r.CompletedDate = &t
	}
	if confirmedAt.Valid {
		t := confirmedAt.Time
		r.CustomerConfirmedAt = &t
	}
	if rejectedAt.Valid {
		t := rejectedAt.Time
		r.CustomerRejectedAt = &t
	}
	if estCost.Valid {
		v := estCost.Int64
		r.EstimatedCostMinor = &v
	}
	if actCost.Valid {
		v := actCost.Int64
		r.ActualCostMinor = &v
	}
	return r, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func (s *PostgresStore) CreateRequest(ctx context.Context, r Request) error {
	const q = `
INSERT INTO requests (` + requestColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24)
`
	_, err := s.db.ExecContext(ctx, q,
		r.ID, r.CustomID, r.Title, r.Description, r.CategoryID, r.Priority,
		r.Location, r.Building, r.SpecificLocation,
		r.Status, r.RequestedByID, r.AssignedToID,
		nullTime(r.CompletedDate), nullInt64(r.EstimatedCostMinor), nullInt64(r.ActualCostMinor),
		r.ConfirmationStatus, nullTime(r.CustomerConfirmedAt), nullTime(r.CustomerRejectedAt),
		r.CustomerConfirmationComment, r.CustomerRejectionReason, r.ClosedWithoutConfirmation,
		r.AdminOverrideReason, r.CreatedAt, r.UpdatedAt,
	)
	return err
}

func (s *PostgresStore) GetRequest(ctx context.Context, id string) (Request, error) {
	const q = `SELECT ` + requestColumns + ` FROM requests WHERE id = $1`
	r, err := scanRequest(s.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Request{}, ErrNotFound
		}
		return Request{}, err
	}
	return r, nil
}

// ApplyTransition writes the mutated snapshot guarded by the expected
// status; the affected-row count decides whether the write won.
func (s *PostgresStore) ApplyTransition(ctx context.Context, r Request, expect Status, sh *StatusHistoryEntry, ah *AssignmentHistoryEntry) (bool, error) {
	const q = `
UPDATE requests SET
  title = $3, description = $4, category_id = $5, priority = $6,
  location = $7, building = $8, specific_location = $9,
  status = $10, assigned_to_id = $11, completed_date = $12,
  estimated_cost_minor = $13, actual_cost_minor = $14,
  customer_confirmation_status = $15, customer_confirmed_at = $16, customer_rejected_at = $17,
  customer_confirmation_comment = $18, customer_rejection_reason = $19,
  closed_without_confirmation = $20, admin_override_reason = $21, updated_at = $22
WHERE id = $1 AND status = $2
`
	won := false
	err := utils.WithTx(ctx, s.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, q,
			r.ID, expect,
			r.Title, r.Description, r.CategoryID, r.Priority,
			r.Location, r.Building, r.SpecificLocation,
			r.Status, r.AssignedToID, nullTime(r.CompletedDate),
			nullInt64(r.EstimatedCostMinor), nullInt64(r.ActualCostMinor),
			r.ConfirmationStatus, nullTime(r.CustomerConfirmedAt), nullTime(r.CustomerRejectedAt),
			r.CustomerConfirmationComment, r.CustomerRejectionReason,
			r.ClosedWithoutConfirmation, r.AdminOverrideReason, r.UpdatedAt,
		)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		won = true
		if sh != nil {
			if err := insertStatusHistory(ctx, tx, *sh); err != nil {
				return err
			}
		}
		if ah != nil {
			if err := insertAssignmentHistory(ctx, tx, *ah); err != nil {
				return err
			}
		}
		return nil
	})
	return won, err
}

// ClaimForTechnician is the self-assign compare-and-set. The conditional
// update binds the technician only while the row is still SUBMITTED and
// unassigned; the loser observes zero affected rows, never an error.
func (s *PostgresStore) ClaimForTechnician(ctx context.Context, requestID, technicianID string, now time.Time, sh StatusHistoryEntry, ah AssignmentHistoryEntry) (Request, bool, error) {
	const q = `
UPDATE requests
SET assigned_to_id = $2, status = $3, updated_at = $4
WHERE id = $1 AND assigned_to_id = '' AND status = $5
`
	var out Request
	won := false
	err := utils.WithTx(ctx, s.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, q, requestID, technicianID, StatusAssigned, now, StatusSubmitted)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			r, err := getRequestTx(ctx, tx, requestID)
			if err != nil {
				return err
			}
			out = r
			return nil
		}
		won = true
		if err := insertStatusHistory(ctx, tx, sh); err != nil {
			return err
		}
		if err := insertAssignmentHistory(ctx, tx, ah); err != nil {
			return err
		}
		r, err := getRequestTx(ctx, tx, requestID)
		if err != nil {
			return err
		}
		out = r
		return nil
	})
	return out, won, err
}

// ResolveConfirmation applies one of the mutually exclusive terminal writes
// on a PENDING window. The WHERE guard is the compare-and-set; running the
// same resolution twice affects zero rows the second time.
func (s *PostgresStore) ResolveConfirmation(ctx context.Context, requestID string, res Resolution, sh StatusHistoryEntry) (Request, bool, error) {
	const confirmQ = `
UPDATE requests
SET status = 'CLOSED', customer_confirmation_status = 'CONFIRMED',
    customer_confirmed_at = $2, customer_confirmation_comment = $3, updated_at = $2
WHERE id = $1 AND status = 'COMPLETED' AND customer_confirmation_status = 'PENDING'
`
	const rejectQ = `
UPDATE requests
SET status = 'CUSTOMER_REJECTED', customer_confirmation_status = 'REJECTED',
    customer_rejected_at = $2, customer_rejection_reason = $3,
    customer_confirmation_comment = $4, updated_at = $2
WHERE id = $1 AND status = 'COMPLETED' AND customer_confirmation_status = 'PENDING'
`
	const overrideQ = `
UPDATE requests
SET status = 'CLOSED', customer_confirmation_status = 'OVERRIDDEN',
    closed_without_confirmation = TRUE, admin_override_reason = $3, updated_at = $2
WHERE id = $1 AND status = 'COMPLETED' AND customer_confirmation_status = 'PENDING'
`
	const revertQ = `
UPDATE requests
SET status = 'IN_PROGRESS', customer_confirmation_status = '',
    customer_confirmed_at = NULL, customer_rejected_at = NULL,
    customer_confirmation_comment = '', customer_rejection_reason = '', updated_at = $2
WHERE id = $1 AND status = 'COMPLETED' AND customer_confirmation_status = 'PENDING'
`
	var out Request
	won := false
	err := utils.WithTx(ctx, s.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		var execRes sql.Result
		var err error
		switch res.Kind {
		case ResolveConfirm:
			execRes, err = tx.ExecContext(ctx, confirmQ, requestID, res.At, res.Comment)
		case ResolveReject:
			execRes, err = tx.ExecContext(ctx, rejectQ, requestID, res.At, res.Reason, res.Comment)
		case ResolveOverride:
			execRes, err = tx.ExecContext(ctx, overrideQ, requestID, res.At, res.Reason)
		case ResolveRevert:
			execRes, err = tx.ExecContext(ctx, revertQ, requestID, res.At)
		default:
			return errors.New("lifecycle: unknown resolution kind")
		}
		if err != nil {
			return err
		}
		n, err := execRes.RowsAffected()
		if err != nil {
			return err
		}
		if n > 0 {
			won = true
			if err := insertStatusHistory(ctx, tx, sh); err != nil {
				return err
			}
		}
		r, err := getRequestTx(ctx, tx, requestID)
		if err != nil {
			return err
		}
		out = r
		return nil
	})
	return out, won, err
}

func (s *PostgresStore) ListOverdueConfirmations(ctx context.Context, completedBefore time.Time, limit int) ([]Request, error) {
	const q = `
SELECT ` + requestColumns + `
FROM requests
WHERE status = 'COMPLETED' AND customer_confirmation_status = 'PENDING' AND completed_date < $1
ORDER BY completed_date ASC
LIMIT $2
`
	rows, err := s.db.QueryContext(ctx, q, completedBefore, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Request
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PostgresStore) StatusHistory(ctx context.Context, requestID string) ([]StatusHistoryEntry, error) {
	const q = `
SELECT id, request_id, from_status, to_status, reason, actor_id, actor_role, created_at
FROM request_status_history
WHERE request_id = $1
ORDER BY created_at ASC, id ASC
`
	rows, err := s.db.QueryContext(ctx, q, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StatusHistoryEntry
	for rows.Next() {
		var e StatusHistoryEntry
		if err := rows.Scan(&e.ID, &e.RequestID, &e.FromStatus, &e.ToStatus, &e.Reason, &e.ActorID, &e.ActorRole, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *PostgresStore) AssignmentHistory(ctx context.Context, requestID string) ([]AssignmentHistoryEntry, error) {
	const q = `
SELECT id, request_id, assignment_type, from_technician_id, to_technician_id, assigned_by_id, reason, created_at
FROM request_assignment_history
WHERE request_id = $1
ORDER BY created_at ASC, id ASC
`
	rows, err := s.db.QueryContext(ctx, q, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AssignmentHistoryEntry
	for rows.Next() {
		var e AssignmentHistoryEntry
		if err := rows.Scan(&e.ID, &e.RequestID, &e.Type, &e.FromTechnicianID, &e.ToTechnicianID, &e.AssignedByID, &e.Reason, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func getRequestTx(ctx context.Context, tx *sql.Tx, id string) (Request, error) {
	const q = `SELECT ` + requestColumns + ` FROM requests WHERE id = $1`
	r, err := scanRequest(tx.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Request{}, ErrNotFound
		}
		return Request{}, err
	}
	return r, nil
}

func insertStatusHistory(ctx context.Context, tx *sql.Tx, e StatusHistoryEntry) error {
	const q = `
INSERT INTO request_status_history (id, request_id, from_status, to_status, reason, actor_id, actor_role, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`
	_, err := tx.ExecContext(ctx, q, e.ID, e.RequestID, e.FromStatus, e.ToStatus, e.Reason, e.ActorID, e.ActorRole, e.CreatedAt)
	return err
}

func insertAssignmentHistory(ctx context.Context, tx *sql.Tx, e AssignmentHistoryEntry) error {
	const q = `
INSERT INTO request_assignment_history (id, request_id, assignment_type, from_technician_id, to_technician_id, assigned_by_id, reason, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`
	_, err := tx.ExecContext(ctx, q, e.ID, e.RequestID, e.Type, e.FromTechnicianID, e.ToTechnicianID, e.AssignedByID, e.Reason, e.CreatedAt)
	return err
}

// PostgresDirectory resolves users from the shared users table.
type PostgresDirectory struct {
	db *sql.DB
}

func NewPostgresDirectory(db *sql.DB) *PostgresDirectory { return &PostgresDirectory{db: db} }

func (d *PostgresDirectory) FindUser(ctx context.Context, id string) (User, error) {
	const q = `SELECT id, name, role FROM users WHERE id = $1`
	var u User
	if err := d.db.QueryRowContext(ctx, q, id).Scan(&u.ID, &u.Name, &u.Role); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	return u, nil
}
