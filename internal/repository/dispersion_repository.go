package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/newdeli/backoffice/internal/model"
)

// DispersionRepo persists a tenant's taxi rides.  Every method is scoped.
type DispersionRepo struct{ DB *sql.DB }

func NewDispersionRepo(db *sql.DB) *DispersionRepo { return &DispersionRepo{DB: db} }

const dispersionColumns = "id, tenant_id, date, payer, taxi, price, created_by, created_at, updated_at"

func scanDispersion(row rowScanner) (*model.Dispersion, error) {
	var d model.Dispersion
	if err := row.Scan(&d.ID, &d.TenantID, &d.Date, &d.Payer, &d.Taxi, &d.Price,
		&d.CreatedBy, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	return &d, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// List returns up to limit rides, newest first.  A non-empty q keeps the
// rides whose payer or taxi contains it, ignoring case.
func (r *DispersionRepo) List(ctx context.Context, s Scope, q string, limit int) ([]model.Dispersion, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	query := "SELECT " + dispersionColumns + " FROM dispersions WHERE tenant_id=?"
	args := []any{s.tenantID}
	if q != "" {
		pat := "%" + likeEscaper.Replace(q) + "%"
		query += " AND (payer LIKE ? OR taxi LIKE ?)"
		args = append(args, pat, pat)
	}
	query += " ORDER BY date DESC, created_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Dispersion{}
	for rows.Next() {
		d, err := scanDispersion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func (r *DispersionRepo) Get(ctx context.Context, s Scope, id string) (*model.Dispersion, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	d, err := scanDispersion(r.DB.QueryRowContext(ctx,
		"SELECT "+dispersionColumns+" FROM dispersions WHERE tenant_id=? AND id=? LIMIT 1", s.tenantID, id))
	return d, notFound(err)
}

func (r *DispersionRepo) Create(ctx context.Context, s Scope, d *model.Dispersion) error {
	if err := s.check(); err != nil {
		return err
	}
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	d.TenantID = s.tenantID
	now := time.Now().UTC()
	d.CreatedAt, d.UpdatedAt = now, now
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO dispersions ("+dispersionColumns+") VALUES (?,?,?,?,?,?,?,?,?)",
		d.ID, d.TenantID, d.Date.Format(time.DateOnly), d.Payer, d.Taxi, d.Price, d.CreatedBy, d.CreatedAt, d.UpdatedAt)
	return err
}

func (r *DispersionRepo) Update(ctx context.Context, s Scope, d *model.Dispersion) error {
	if err := s.check(); err != nil {
		return err
	}
	d.TenantID = s.tenantID
	d.UpdatedAt = time.Now().UTC()
	res, err := r.DB.ExecContext(ctx,
		"UPDATE dispersions SET date=?, payer=?, taxi=?, price=?, updated_at=? WHERE tenant_id=? AND id=?",
		d.Date.Format(time.DateOnly), d.Payer, d.Taxi, d.Price, d.UpdatedAt, s.tenantID, d.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := r.Get(ctx, s, d.ID); err != nil {
			return err
		}
	}
	return nil
}

func (r *DispersionRepo) Delete(ctx context.Context, s Scope, id string) error {
	if err := s.check(); err != nil {
		return err
	}
	res, err := r.DB.ExecContext(ctx, "DELETE FROM dispersions WHERE tenant_id=? AND id=?", s.tenantID, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
