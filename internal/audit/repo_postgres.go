package audit

import (
	"context"
	"database/sql"
)

// PostgresRepo appends events to the security_audit_events table.
// The table is INSERT-only; no update or delete statement exists here.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	const q = `
INSERT INTO security_audit_events (id, type, actor_user_id, actor_role, ip_address, request_id, message, metadata, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`
	_, err := r.db.ExecContext(ctx, q,
		e.ID, e.Type, e.ActorUserID, e.ActorRole, e.IPAddress, e.RequestID, e.Message, e.Metadata, e.CreatedAt,
	)
	return err
}
