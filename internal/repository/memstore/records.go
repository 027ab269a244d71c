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

// Activity implements the append-only activity log.
type Activity struct{ s *Store }

func (r *Activity) Append(_ context.Context, sc repository.Scope, e *model.ActivityLog) error {
	if err := scoped(sc); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.takeFail(); err != nil {
		return err
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.TenantID = sc.TenantID()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = r.s.tick()
	}
	r.s.activity = append(r.s.activity, *e)
	return nil
}

func (r *Activity) List(_ context.Context, sc repository.Scope, limit int, since time.Time) ([]model.ActivityLog, error) {
	if err := scoped(sc); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []model.ActivityLog{}
	for i := len(r.s.activity) - 1; i >= 0 && len(out) < limit; i-- {
		e := r.s.activity[i]
		if e.TenantID != sc.TenantID() {
			continue
		}
		if !since.IsZero() && !e.CreatedAt.After(since) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// Suppliers implements the supplier directory.
type Suppliers struct{ s *Store }

func cloneSupplier(sp *model.Supplier) *model.Supplier {
	c := *sp
	c.DeliveryDays = append([]int{}, sp.DeliveryDays...)
	c.Products = append([]model.SupplierProduct{}, sp.Products...)
	return &c
}

func (r *Suppliers) nameTakenLocked(tenantID, name, exceptID string) bool {
	for _, sp := range r.s.suppliers {
		if sp.TenantID == tenantID && sp.ID != exceptID && strings.EqualFold(sp.Name, name) {
			return true
		}
	}
	return false
}

func (r *Suppliers) List(_ context.Context, sc repository.Scope) ([]model.Supplier, error) {
	if err := scoped(sc); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []model.Supplier{}
	for _, sp := range r.s.suppliers {
		if sp.TenantID == sc.TenantID() {
			out = append(out, *cloneSupplier(sp))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *Suppliers) Get(_ context.Context, sc repository.Scope, id string) (*model.Supplier, error) {
	if err := scoped(sc); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	sp, ok := r.s.suppliers[id]
	if !ok || sp.TenantID != sc.TenantID() {
		return nil, repository.ErrNotFound
	}
	return cloneSupplier(sp), nil
}

func (r *Suppliers) Create(_ context.Context, sc repository.Scope, sp *model.Supplier) error {
	if err := scoped(sc); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.takeFail(); err != nil {
		return err
	}
	if r.nameTakenLocked(sc.TenantID(), sp.Name, "") {
		return repository.ErrDuplicate
	}
	if sp.ID == "" {
		sp.ID = uuid.NewString()
	}
	sp.TenantID = sc.TenantID()
	now := r.s.tick()
	sp.CreatedAt, sp.UpdatedAt = now, now
	r.s.suppliers[sp.ID] = cloneSupplier(sp)
	return nil
}

func (r *Suppliers) Update(_ context.Context, sc repository.Scope, sp *model.Supplier) error {
	if err := scoped(sc); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.takeFail(); err != nil {
		return err
	}
	cur, ok := r.s.suppliers[sp.ID]
	if !ok || cur.TenantID != sc.TenantID() {
		return repository.ErrNotFound
	}
	if r.nameTakenLocked(sc.TenantID(), sp.Name, sp.ID) {
		return repository.ErrDuplicate
	}
	sp.TenantID = sc.TenantID()
	sp.CreatedAt = cur.CreatedAt
	sp.CreatedBy = cur.CreatedBy
	sp.UpdatedAt = r.s.tick()
	r.s.suppliers[sp.ID] = cloneSupplier(sp)
	return nil
}

func (r *Suppliers) Delete(_ context.Context, sc repository.Scope, id string) error {
	if err := scoped(sc); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.takeFail(); err != nil {
		return err
	}
	sp, ok := r.s.suppliers[id]
	if !ok || sp.TenantID != sc.TenantID() {
		return repository.ErrNotFound
	}
	delete(r.s.suppliers, id)
	return nil
}

func (r *Suppliers) Count(ctx context.Context, sc repository.Scope) (int, error) {
	list, err := r.List(ctx, sc)
	return len(list), err
}
