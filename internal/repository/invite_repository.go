package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/newdeli/backoffice/internal/model"
)

// InviteRepo persists single-use team invites.  Expired rows are removed by
// the prune_expired_invites event; reads filter on expiry as well so a row
// the event has not reached yet is never handed out.
type InviteRepo struct{ DB *sql.DB }

func NewInviteRepo(db *sql.DB) *InviteRepo { return &InviteRepo{DB: db} }

const inviteColumns = "id, tenant_id, email, role, token, expires_at, created_by, created_at"

func scanInvite(row rowScanner) (*model.Invite, error) {
	var (
		inv  model.Invite
		role string
	)
	if err := row.Scan(&inv.ID, &inv.TenantID, &inv.Email, &role, &inv.Token,
		&inv.ExpiresAt, &inv.CreatedBy, &inv.CreatedAt); err != nil {
		return nil, err
	}
	inv.Role = model.Role(role)
	return &inv, nil
}

// Create inserts inv under the scope's tenant.  A token collision yields
// ErrDuplicate.
func (r *InviteRepo) Create(ctx context.Context, s Scope, inv *model.Invite) error {
	if err := s.check(); err != nil {
		return err
	}
	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	inv.TenantID = s.tenantID
	inv.Email = strings.ToLower(strings.TrimSpace(inv.Email))
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = time.Now().UTC()
	}
	return r.insert(ctx, r.DB, inv)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (r *InviteRepo) insert(ctx context.Context, db execer, inv *model.Invite) error {
	_, err := db.ExecContext(ctx,
		"INSERT INTO invites ("+inviteColumns+") VALUES (?,?,?,?,?,?,?,?)",
		inv.ID, inv.TenantID, inv.Email, string(inv.Role), inv.Token,
		inv.ExpiresAt.UTC(), inv.CreatedBy, inv.CreatedAt.UTC())
	if isDuplicate(err) {
		return ErrDuplicate
	}
	return err
}

// GetByToken returns the invite for token if it has not expired at now.
func (r *InviteRepo) GetByToken(ctx context.Context, token string, now time.Time) (*model.Invite, error) {
	inv, err := scanInvite(r.DB.QueryRowContext(ctx,
		"SELECT "+inviteColumns+" FROM invites WHERE token=? AND expires_at > ? LIMIT 1", token, now.UTC()))
	return inv, notFound(err)
}

// Consume removes the live invite for token and returns it.  The lookup and
// delete run in one transaction under a row lock, so of two concurrent
// callers exactly one gets the invite.
func (r *InviteRepo) Consume(ctx context.Context, token string, now time.Time) (*model.Invite, error) {
	var inv *model.Invite
	err := withTx(ctx, r.DB, func(tx *sql.Tx) error {
		var err error
		inv, err = scanInvite(tx.QueryRowContext(ctx,
			"SELECT "+inviteColumns+" FROM invites WHERE token=? AND expires_at > ? LIMIT 1 FOR UPDATE",
			token, now.UTC()))
		if err != nil {
			return notFound(err)
		}
		res, err := tx.ExecContext(ctx, "DELETE FROM invites WHERE id=?", inv.ID)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// Restore puts back an invite previously returned by Consume.
func (r *InviteRepo) Restore(ctx context.Context, inv *model.Invite) error {
	return r.insert(ctx, r.DB, inv)
}

// Get returns one invite of the scope's tenant, expired or not.
func (r *InviteRepo) Get(ctx context.Context, s Scope, id string) (*model.Invite, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	inv, err := scanInvite(r.DB.QueryRowContext(ctx,
		"SELECT "+inviteColumns+" FROM invites WHERE tenant_id=? AND id=? LIMIT 1", s.tenantID, id))
	return inv, notFound(err)
}

// ListActive returns the scope's invites that are still valid at now.
func (r *InviteRepo) ListActive(ctx context.Context, s Scope, now time.Time) ([]model.Invite, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+inviteColumns+" FROM invites WHERE tenant_id=? AND expires_at > ? ORDER BY created_at DESC",
		s.tenantID, now.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Invite{}
	for rows.Next() {
		inv, err := scanInvite(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *inv)
	}
	return out, rows.Err()
}

// Delete revokes one invite of the scope's tenant.
func (r *InviteRepo) Delete(ctx context.Context, s Scope, id string) error {
	if err := s.check(); err != nil {
		return err
	}
	res, err := r.DB.ExecContext(ctx, "DELETE FROM invites WHERE tenant_id=? AND id=?", s.tenantID, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteExpired removes invites that expired before now and returns how many
// were removed.  The database event does the same on a schedule; this is
// used when the event scheduler is off.
func (r *InviteRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM invites WHERE expires_at <= ?", now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
