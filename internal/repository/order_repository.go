package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/newdeli/backoffice/internal/model"
)

// OrderRepo persists supplier orders.  Every method is scoped.
type OrderRepo struct{ DB *sql.DB }

func NewOrderRepo(db *sql.DB) *OrderRepo { return &OrderRepo{DB: db} }

const orderColumns = "id, tenant_id, order_date, day_of_week, supplier_id, supplier_name, items, total_items, " +
	"status, notes, created_by, created_by_name, received_at, received_by, created_at, updated_at"

func scanOrder(row rowScanner) (*model.Order, error) {
	var (
		o        model.Order
		items    []byte
		status   string
		received sql.NullTime
	)
	if err := row.Scan(&o.ID, &o.TenantID, &o.OrderDate, &o.DayOfWeek, &o.SupplierID, &o.SupplierName,
		&items, &o.TotalItems, &status, &o.Notes, &o.CreatedBy, &o.CreatedByName,
		&received, &o.ReceivedBy, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	o.Status = model.OrderStatus(status)
	if received.Valid {
		t := received.Time
		o.ReceivedAt = &t
	}
	o.Items = []model.OrderItem{}
	if len(items) > 0 {
		if err := json.Unmarshal(items, &o.Items); err != nil {
			return nil, err
		}
	}
	return &o, nil
}

func orderItemsJSON(o *model.Order) ([]byte, error) {
	if o.Items == nil {
		o.Items = []model.OrderItem{}
	}
	return json.Marshal(o.Items)
}

func receivedArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func (r *OrderRepo) query(ctx context.Context, q string, args ...any) ([]model.Order, error) {
	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

// List returns the scope's orders, newest day first, then by supplier name.
func (r *OrderRepo) List(ctx context.Context, s Scope, f model.OrderFilter) ([]model.Order, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	q := "SELECT " + orderColumns + " FROM orders WHERE tenant_id=?"
	args := []any{s.tenantID}
	if !f.Date.IsZero() {
		q += " AND order_date=?"
		args = append(args, f.Date.Format(time.DateOnly))
	}
	if f.Status != "" {
		q += " AND status=?"
		args = append(args, string(f.Status))
	}
	return r.query(ctx, q+" ORDER BY order_date DESC, supplier_name", args...)
}

// Get returns one order of the scope's tenant.
func (r *OrderRepo) Get(ctx context.Context, s Scope, id string) (*model.Order, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	o, err := scanOrder(r.DB.QueryRowContext(ctx,
		"SELECT "+orderColumns+" FROM orders WHERE tenant_id=? AND id=? LIMIT 1", s.tenantID, id))
	return o, notFound(err)
}

// FindBySupplierDate returns the order placed with supplierID for day.
func (r *OrderRepo) FindBySupplierDate(ctx context.Context, s Scope, supplierID string, day time.Time) (*model.Order, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	o, err := scanOrder(r.DB.QueryRowContext(ctx,
		"SELECT "+orderColumns+" FROM orders WHERE tenant_id=? AND supplier_id=? AND order_date=? LIMIT 1",
		s.tenantID, supplierID, day.Format(time.DateOnly)))
	return o, notFound(err)
}

// Create inserts o.  A second order for the same supplier and day yields
// ErrDuplicate.
func (r *OrderRepo) Create(ctx context.Context, s Scope, o *model.Order) error {
	if err := s.check(); err != nil {
		return err
	}
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	o.TenantID = s.tenantID
	o.Recount()
	now := time.Now().UTC()
	o.CreatedAt, o.UpdatedAt = now, now
	items, err := orderItemsJSON(o)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx,
		"INSERT INTO orders ("+orderColumns+") VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)",
		o.ID, o.TenantID, o.OrderDate.Format(time.DateOnly), o.DayOfWeek, o.SupplierID, o.SupplierName,
		items, o.TotalItems, string(o.Status), o.Notes, o.CreatedBy, o.CreatedByName,
		receivedArg(o.ReceivedAt), o.ReceivedBy, o.CreatedAt, o.UpdatedAt)
	if isDuplicate(err) {
		return ErrDuplicate
	}
	return err
}

// Update overwrites the mutable fields of o.
func (r *OrderRepo) Update(ctx context.Context, s Scope, o *model.Order) error {
	if err := s.check(); err != nil {
		return err
	}
	o.TenantID = s.tenantID
	o.Recount()
	o.UpdatedAt = time.Now().UTC()
	items, err := orderItemsJSON(o)
	if err != nil {
		return err
	}
	res, err := r.DB.ExecContext(ctx,
		`UPDATE orders SET items=?, total_items=?, status=?, notes=?, received_at=?, received_by=?, updated_at=?
		  WHERE tenant_id=? AND id=?`,
		items, o.TotalItems, string(o.Status), o.Notes, receivedArg(o.ReceivedAt), o.ReceivedBy, o.UpdatedAt,
		s.tenantID, o.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := r.Get(ctx, s, o.ID); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes one order of the scope's tenant.
func (r *OrderRepo) Delete(ctx context.Context, s Scope, id string) error {
	if err := s.check(); err != nil {
		return err
	}
	res, err := r.DB.ExecContext(ctx, "DELETE FROM orders WHERE tenant_id=? AND id=?", s.tenantID, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Stats groups the scope's orders by status.
func (r *OrderRepo) Stats(ctx context.Context, s Scope) ([]model.OrderStat, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	rows, err := r.DB.QueryContext(ctx,
		`SELECT status, COUNT(*), COALESCE(SUM(total_items), 0) FROM orders
		  WHERE tenant_id=? GROUP BY status ORDER BY status`, s.tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.OrderStat{}
	for rows.Next() {
		var (
			st     model.OrderStat
			status string
		)
		if err := rows.Scan(&status, &st.Count, &st.TotalItems); err != nil {
			return nil, err
		}
		st.Status = model.OrderStatus(status)
		out = append(out, st)
	}
	return out, rows.Err()
}
