package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/newdeli/backoffice/internal/model"
)

// SupplierRepo persists a tenant's supplier directory.  Every method is
// scoped; a supplier id from another tenant behaves as missing.
type SupplierRepo struct{ DB *sql.DB }

func NewSupplierRepo(db *sql.DB) *SupplierRepo { return &SupplierRepo{DB: db} }

const supplierColumns = "id, tenant_id, name, phone, delivery_days, products, notes, is_active, created_by, created_at, updated_at"

func scanSupplier(row rowScanner) (*model.Supplier, error) {
	var (
		sp             model.Supplier
		days, products []byte
	)
	if err := row.Scan(&sp.ID, &sp.TenantID, &sp.Name, &sp.Phone, &days, &products,
		&sp.Notes, &sp.IsActive, &sp.CreatedBy, &sp.CreatedAt, &sp.UpdatedAt); err != nil {
		return nil, err
	}
	sp.DeliveryDays = []int{}
	sp.Products = []model.SupplierProduct{}
	if len(days) > 0 {
		if err := json.Unmarshal(days, &sp.DeliveryDays); err != nil {
			return nil, err
		}
	}
	if len(products) > 0 {
		if err := json.Unmarshal(products, &sp.Products); err != nil {
			return nil, err
		}
	}
	return &sp, nil
}

func encodeSupplier(sp *model.Supplier) (days, products []byte, err error) {
	if sp.DeliveryDays == nil {
		sp.DeliveryDays = []int{}
	}
	if sp.Products == nil {
		sp.Products = []model.SupplierProduct{}
	}
	if days, err = json.Marshal(sp.DeliveryDays); err != nil {
		return nil, nil, err
	}
	products, err = json.Marshal(sp.Products)
	return days, products, err
}

// List returns the scope's suppliers ordered by name.
func (r *SupplierRepo) List(ctx context.Context, s Scope) ([]model.Supplier, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+supplierColumns+" FROM suppliers WHERE tenant_id=? ORDER BY name", s.tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Supplier{}
	for rows.Next() {
		sp, err := scanSupplier(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sp)
	}
	return out, rows.Err()
}

// Get returns one supplier of the scope's tenant.
func (r *SupplierRepo) Get(ctx context.Context, s Scope, id string) (*model.Supplier, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	sp, err := scanSupplier(r.DB.QueryRowContext(ctx,
		"SELECT "+supplierColumns+" FROM suppliers WHERE tenant_id=? AND id=? LIMIT 1", s.tenantID, id))
	return sp, notFound(err)
}

// Create inserts sp under the scope's tenant.  A name already used in the
// tenant yields ErrDuplicate.
func (r *SupplierRepo) Create(ctx context.Context, s Scope, sp *model.Supplier) error {
	if err := s.check(); err != nil {
		return err
	}
	if sp.ID == "" {
		sp.ID = uuid.NewString()
	}
	sp.TenantID = s.tenantID
	now := time.Now().UTC()
	sp.CreatedAt, sp.UpdatedAt = now, now
	days, products, err := encodeSupplier(sp)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx,
		"INSERT INTO suppliers ("+supplierColumns+") VALUES (?,?,?,?,?,?,?,?,?,?,?)",
		sp.ID, sp.TenantID, sp.Name, sp.Phone, days, products, sp.Notes, sp.IsActive,
		sp.CreatedBy, sp.CreatedAt, sp.UpdatedAt)
	if isDuplicate(err) {
		return ErrDuplicate
	}
	return err
}

// Update overwrites the mutable fields of sp within the scope's tenant.
func (r *SupplierRepo) Update(ctx context.Context, s Scope, sp *model.Supplier) error {
	if err := s.check(); err != nil {
		return err
	}
	sp.TenantID = s.tenantID
	sp.UpdatedAt = time.Now().UTC()
	days, products, err := encodeSupplier(sp)
	if err != nil {
		return err
	}
	res, err := r.DB.ExecContext(ctx,
		`UPDATE suppliers SET name=?, phone=?, delivery_days=?, products=?, notes=?, is_active=?, updated_at=?
		  WHERE tenant_id=? AND id=?`,
		sp.Name, sp.Phone, days, products, sp.Notes, sp.IsActive, sp.UpdatedAt, s.tenantID, sp.ID)
	if isDuplicate(err) {
		return ErrDuplicate
	}
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := r.Get(ctx, s, sp.ID); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes one supplier of the scope's tenant.
func (r *SupplierRepo) Delete(ctx context.Context, s Scope, id string) error {
	if err := s.check(); err != nil {
		return err
	}
	res, err := r.DB.ExecContext(ctx, "DELETE FROM suppliers WHERE tenant_id=? AND id=?", s.tenantID, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Count returns the number of suppliers in the scope's tenant.
func (r *SupplierRepo) Count(ctx context.Context, s Scope) (int, error) {
	if err := s.check(); err != nil {
		return 0, err
	}
	var n int
	err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM suppliers WHERE tenant_id=?", s.tenantID).Scan(&n)
	return n, err
}
