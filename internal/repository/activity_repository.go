package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/newdeli/backoffice/internal/model"
)

// ActivityRepo is the append-only audit trail.  It has no update or delete.
type ActivityRepo struct{ DB *sql.DB }

func NewActivityRepo(db *sql.DB) *ActivityRepo { return &ActivityRepo{DB: db} }

// Append stores entry under the scope's tenant.
func (r *ActivityRepo) Append(ctx context.Context, s Scope, entry *model.ActivityLog) error {
	if err := s.check(); err != nil {
		return err
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	entry.TenantID = s.tenantID
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	var meta []byte
	if len(entry.Meta) > 0 {
		b, err := json.Marshal(entry.Meta)
		if err != nil {
			return err
		}
		meta = b
	}
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO activity_logs
		   (id, tenant_id, actor_id, actor_name, actor_email, action,
		    target_kind, target_id, target_label, target_email, meta, ip, ua, created_at)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		entry.ID, entry.TenantID, nullString(entry.ActorID), entry.ActorName, entry.ActorEmail, entry.Action,
		entry.Target.Kind, entry.Target.ID, entry.Target.Label, entry.Target.Email,
		meta, entry.IP, entry.UserAgent, entry.CreatedAt)
	return err
}

// List returns up to limit entries of the scope's tenant, newest first.  A
// non-zero since keeps only entries created after it.
func (r *ActivityRepo) List(ctx context.Context, s Scope, limit int, since time.Time) ([]model.ActivityLog, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	q := `SELECT id, tenant_id, actor_id, actor_name, actor_email, action,
	             target_kind, target_id, target_label, target_email, meta, ip, ua, created_at
	        FROM activity_logs WHERE tenant_id=?`
	args := []any{s.tenantID}
	if !since.IsZero() {
		q += " AND created_at > ?"
		args = append(args, since.UTC())
	}
	q += " ORDER BY created_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.ActivityLog{}
	for rows.Next() {
		var (
			e     model.ActivityLog
			actor sql.NullString
			meta  []byte
		)
		if err := rows.Scan(&e.ID, &e.TenantID, &actor, &e.ActorName, &e.ActorEmail, &e.Action,
			&e.Target.Kind, &e.Target.ID, &e.Target.Label, &e.Target.Email,
			&meta, &e.IP, &e.UserAgent, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.ActorID = actor.String
		if len(meta) > 0 {
			_ = json.Unmarshal(meta, &e.Meta)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
