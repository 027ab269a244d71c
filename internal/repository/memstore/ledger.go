package memstore

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/newdeli/backoffice/internal/model"
	"github.com/newdeli/backoffice/internal/repository"
)

// Orders implements the supplier order store.
type Orders struct{ s *Store }

func cloneOrder(o *model.Order) *model.Order {
	c := *o
	c.Items = append([]model.OrderItem{}, o.Items...)
	if o.ReceivedAt != nil {
		t := *o.ReceivedAt
		c.ReceivedAt = &t
	}
	return &c
}

func sameDay(a, b time.Time) bool {
	return a.UTC().Format(time.DateOnly) == b.UTC().Format(time.DateOnly)
}

func (r *Orders) List(_ context.Context, sc repository.Scope, f model.OrderFilter) ([]model.Order, error) {
	if err := scoped(sc); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []model.Order{}
	for _, o := range r.s.orders {
		if o.TenantID != sc.TenantID() {
			continue
		}
		if !f.Date.IsZero() && !sameDay(o.OrderDate, f.Date) {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		out = append(out, *cloneOrder(o))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].OrderDate.Equal(out[j].OrderDate) {
			return out[i].OrderDate.After(out[j].OrderDate)
		}
		return out[i].SupplierName < out[j].SupplierName
	})
	return out, nil
}

func (r *Orders) Get(_ context.Context, sc repository.Scope, id string) (*model.Order, error) {
	if err := scoped(sc); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	o, ok := r.s.orders[id]
	if !ok || o.TenantID != sc.TenantID() {
		return nil, repository.ErrNotFound
	}
	return cloneOrder(o), nil
}

func (r *Orders) findLocked(tenantID, supplierID string, day time.Time) *model.Order {
	for _, o := range r.s.orders {
		if o.TenantID == tenantID && o.SupplierID == supplierID && sameDay(o.OrderDate, day) {
			return o
		}
	}
	return nil
}

func (r *Orders) FindBySupplierDate(_ context.Context, sc repository.Scope, supplierID string, day time.Time) (*model.Order, error) {
	if err := scoped(sc); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	o := r.findLocked(sc.TenantID(), supplierID, day)
	if o == nil {
		return nil, repository.ErrNotFound
	}
	return cloneOrder(o), nil
}

func (r *Orders) Create(_ context.Context, sc repository.Scope, o *model.Order) error {
	if err := scoped(sc); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.takeFail(); err != nil {
		return err
	}
	if r.findLocked(sc.TenantID(), o.SupplierID, o.OrderDate) != nil {
		return repository.ErrDuplicate
	}
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	o.TenantID = sc.TenantID()
	o.Recount()
	now := r.s.tick()
	o.CreatedAt, o.UpdatedAt = now, now
	r.s.orders[o.ID] = cloneOrder(o)
	return nil
}

func (r *Orders) Update(_ context.Context, sc repository.Scope, o *model.Order) error {
	if err := scoped(sc); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.takeFail(); err != nil {
		return err
	}
	cur, ok := r.s.orders[o.ID]
	if !ok || cur.TenantID != sc.TenantID() {
		return repository.ErrNotFound
	}
	// Only the mutable columns change, as in MySQL.
	next := cloneOrder(cur)
	next.Items = append([]model.OrderItem{}, o.Items...)
	next.Status = o.Status
	next.Notes = o.Notes
	next.ReceivedAt = o.ReceivedAt
	next.ReceivedBy = o.ReceivedBy
	next.Recount()
	next.UpdatedAt = r.s.tick()
	r.s.orders[o.ID] = cloneOrder(next)
	o.TotalItems, o.UpdatedAt = next.TotalItems, next.UpdatedAt
	return nil
}

func (r *Orders) Delete(_ context.Context, sc repository.Scope, id string) error {
	if err := scoped(sc); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.takeFail(); err != nil {
		return err
	}
	o, ok := r.s.orders[id]
	if !ok || o.TenantID != sc.TenantID() {
		return repository.ErrNotFound
	}
	delete(r.s.orders, id)
	return nil
}

func (r *Orders) Stats(ctx context.Context, sc repository.Scope) ([]model.OrderStat, error) {
	list, err := r.List(ctx, sc, model.OrderFilter{})
	if err != nil {
		return nil, err
	}
	by := map[model.OrderStatus]*model.OrderStat{}
	for _, o := range list {
		st, ok := by[o.Status]
		if !ok {
			st = &model.OrderStat{Status: o.Status}
			by[o.Status] = st
		}
		st.Count++
		st.TotalItems += o.TotalItems
	}
	out := make([]model.OrderStat, 0, len(by))
	for _, st := range by {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Status < out[j].Status })
	return out, nil
}

// Dispersions implements the taxi ride store.
type Dispersions struct{ s *Store }

func (r *Dispersions) List(_ context.Context, sc repository.Scope, q string, limit int) ([]model.Dispersion, error) {
	if err := scoped(sc); err != nil {
		return nil, err
	}
	q = strings.ToLower(q)
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []model.Dispersion{}
	for _, d := range r.s.dispersions {
		if d.TenantID != sc.TenantID() {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(d.Payer), q) && !strings.Contains(strings.ToLower(d.Taxi), q) {
			continue
		}
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *Dispersions) Get(_ context.Context, sc repository.Scope, id string) (*model.Dispersion, error) {
	if err := scoped(sc); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	d, ok := r.s.dispersions[id]
	if !ok || d.TenantID != sc.TenantID() {
		return nil, repository.ErrNotFound
	}
	c := *d
	return &c, nil
}

func (r *Dispersions) Create(_ context.Context, sc repository.Scope, d *model.Dispersion) error {
	if err := scoped(sc); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.takeFail(); err != nil {
		return err
	}
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	d.TenantID = sc.TenantID()
	now := r.s.tick()
	d.CreatedAt, d.UpdatedAt = now, now
	c := *d
	r.s.dispersions[d.ID] = &c
	return nil
}

func (r *Dispersions) Update(_ context.Context, sc repository.Scope, d *model.Dispersion) error {
	if err := scoped(sc); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.takeFail(); err != nil {
		return err
	}
	cur, ok := r.s.dispersions[d.ID]
	if !ok || cur.TenantID != sc.TenantID() {
		return repository.ErrNotFound
	}
	d.TenantID = sc.TenantID()
	d.CreatedAt, d.CreatedBy = cur.CreatedAt, cur.CreatedBy
	d.UpdatedAt = r.s.tick()
	c := *d
	r.s.dispersions[d.ID] = &c
	return nil
}

func (r *Dispersions) Delete(_ context.Context, sc repository.Scope, id string) error {
	if err := scoped(sc); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.takeFail(); err != nil {
		return err
	}
	d, ok := r.s.dispersions[id]
	if !ok || d.TenantID != sc.TenantID() {
		return repository.ErrNotFound
	}
	delete(r.s.dispersions, id)
	return nil
}
