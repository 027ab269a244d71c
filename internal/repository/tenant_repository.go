package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/newdeli/backoffice/internal/model"
)

// TenantRepo persists tenants, their settings and feature maps.
type TenantRepo struct{ DB *sql.DB }

func NewTenantRepo(db *sql.DB) *TenantRepo { return &TenantRepo{DB: db} }

const tenantColumns = "id, name, slug, owner_id, currency, language, logo, address, phone, features, created_at, updated_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTenant(row rowScanner) (*model.Tenant, error) {
	var (
		t        model.Tenant
		features []byte
	)
	err := row.Scan(&t.ID, &t.Name, &t.Slug, &t.OwnerID,
		&t.Settings.Currency, &t.Settings.Language, &t.Settings.Logo, &t.Settings.Address, &t.Settings.Phone,
		&features, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.Features = model.Features{}
	if len(features) > 0 {
		if err := json.Unmarshal(features, &t.Features); err != nil {
			return nil, err
		}
	}
	return &t, nil
}

// Create inserts t.  Missing settings get the defaults; a taken slug yields
// ErrDuplicate.
func (r *TenantRepo) Create(ctx context.Context, t *model.Tenant) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	t.Settings = model.DefaultSettings().Merge(t.Settings)
	if t.Features == nil {
		t.Features = model.Features{}
	}
	features, err := json.Marshal(t.Features)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	t.CreatedAt, t.UpdatedAt = now, now
	_, err = r.DB.ExecContext(ctx,
		"INSERT INTO tenants ("+tenantColumns+") VALUES (?,?,?,?,?,?,?,?,?,?,?,?)",
		t.ID, t.Name, t.Slug, t.OwnerID,
		t.Settings.Currency, t.Settings.Language, t.Settings.Logo, t.Settings.Address, t.Settings.Phone,
		features, t.CreatedAt, t.UpdatedAt)
	if isDuplicate(err) {
		return ErrDuplicate
	}
	return err
}

// GetByID fetches one tenant.
func (r *TenantRepo) GetByID(ctx context.Context, id string) (*model.Tenant, error) {
	t, err := scanTenant(r.DB.QueryRowContext(ctx,
		"SELECT "+tenantColumns+" FROM tenants WHERE id=? LIMIT 1", id))
	return t, notFound(err)
}

// SlugExists reports whether slug is taken.
func (r *TenantRepo) SlugExists(ctx context.Context, slug string) (bool, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM tenants WHERE slug=?", slug).Scan(&n)
	return n > 0, err
}

// FindByOwnerAndName returns the tenant ownerID already created under name,
// compared case-insensitively.
func (r *TenantRepo) FindByOwnerAndName(ctx context.Context, ownerID, name string) (*model.Tenant, error) {
	t, err := scanTenant(r.DB.QueryRowContext(ctx,
		"SELECT "+tenantColumns+" FROM tenants WHERE owner_id=? AND LOWER(name)=? ORDER BY created_at LIMIT 1",
		ownerID, strings.ToLower(strings.TrimSpace(name))))
	return t, notFound(err)
}

// List returns every tenant, newest first.
func (r *TenantRepo) List(ctx context.Context) ([]model.Tenant, error) {
	rows, err := r.DB.QueryContext(ctx, "SELECT "+tenantColumns+" FROM tenants ORDER BY created_at DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Tenant{}
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// Update renames the scope's tenant (when name is non-empty) and merges the
// settings patch.  It returns the stored result.
func (r *TenantRepo) Update(ctx context.Context, s Scope, name string, patch model.TenantSettings) (*model.Tenant, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	var out *model.Tenant
	err := withTx(ctx, r.DB, func(tx *sql.Tx) error {
		t, err := scanTenant(tx.QueryRowContext(ctx,
			"SELECT "+tenantColumns+" FROM tenants WHERE id=? FOR UPDATE", s.tenantID))
		if err != nil {
			return notFound(err)
		}
		if name = strings.TrimSpace(name); name != "" {
			t.Name = name
		}
		t.Settings = t.Settings.Merge(patch)
		t.UpdatedAt = time.Now().UTC()
		_, err = tx.ExecContext(ctx,
			`UPDATE tenants SET name=?, currency=?, language=?, logo=?, address=?, phone=?, updated_at=?
			  WHERE id=?`,
			t.Name, t.Settings.Currency, t.Settings.Language, t.Settings.Logo, t.Settings.Address,
			t.Settings.Phone, t.UpdatedAt, t.ID)
		out = t
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Features returns the tenant's feature map.  A missing tenant yields
// ErrNotFound; callers treat both as "every feature off".
func (r *TenantRepo) Features(ctx context.Context, tenantID string) (model.Features, error) {
	var raw []byte
	if err := r.DB.QueryRowContext(ctx, "SELECT features FROM tenants WHERE id=?", tenantID).Scan(&raw); err != nil {
		return nil, notFound(err)
	}
	f := model.Features{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &f); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// SetFeatures replaces the tenant's feature map.
func (r *TenantRepo) SetFeatures(ctx context.Context, tenantID string, f model.Features) error {
	if f == nil {
		f = model.Features{}
	}
	raw, err := json.Marshal(f)
	if err != nil {
		return err
	}
	res, err := r.DB.ExecContext(ctx,
		"UPDATE tenants SET features=?, updated_at=? WHERE id=?", raw, time.Now().UTC(), tenantID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := r.GetByID(ctx, tenantID); err != nil {
			return err
		}
	}
	return nil
}
