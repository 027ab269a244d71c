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

// Tenants implements the tenant store.
type Tenants struct{ s *Store }

func cloneTenant(t *model.Tenant) *model.Tenant {
	c := *t
	c.Features = t.Features.Clone()
	return &c
}

func (r *Tenants) Create(_ context.Context, t *model.Tenant) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.takeFail(); err != nil {
		return err
	}
	for _, other := range r.s.tenants {
		if other.Slug == t.Slug {
			return repository.ErrDuplicate
		}
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	t.Settings = model.DefaultSettings().Merge(t.Settings)
	if t.Features == nil {
		t.Features = model.Features{}
	}
	now := r.s.tick()
	t.CreatedAt, t.UpdatedAt = now, now
	r.s.tenants[t.ID] = cloneTenant(t)
	return nil
}

func (r *Tenants) GetByID(_ context.Context, id string) (*model.Tenant, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	t, ok := r.s.tenants[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneTenant(t), nil
}

func (r *Tenants) SlugExists(_ context.Context, slug string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, t := range r.s.tenants {
		if t.Slug == slug {
			return true, nil
		}
	}
	return false, nil
}

func (r *Tenants) FindByOwnerAndName(_ context.Context, ownerID, name string) (*model.Tenant, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	want := strings.ToLower(strings.TrimSpace(name))
	var found *model.Tenant
	for _, t := range r.s.tenants {
		if t.OwnerID == ownerID && strings.ToLower(t.Name) == want {
			if found == nil || t.CreatedAt.Before(found.CreatedAt) {
				found = t
			}
		}
	}
	if found == nil {
		return nil, repository.ErrNotFound
	}
	return cloneTenant(found), nil
}

func (r *Tenants) List(_ context.Context) ([]model.Tenant, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]model.Tenant, 0, len(r.s.tenants))
	for _, t := range r.s.tenants {
		out = append(out, *cloneTenant(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *Tenants) Update(_ context.Context, sc repository.Scope, name string, patch model.TenantSettings) (*model.Tenant, error) {
	if err := scoped(sc); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.takeFail(); err != nil {
		return nil, err
	}
	t, ok := r.s.tenants[sc.TenantID()]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if name = strings.TrimSpace(name); name != "" {
		t.Name = name
	}
	t.Settings = t.Settings.Merge(patch)
	t.UpdatedAt = r.s.tick()
	return cloneTenant(t), nil
}

func (r *Tenants) Features(_ context.Context, tenantID string) (model.Features, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	t, ok := r.s.tenants[tenantID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return t.Features.Clone(), nil
}

func (r *Tenants) SetFeatures(_ context.Context, tenantID string, f model.Features) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.takeFail(); err != nil {
		return err
	}
	t, ok := r.s.tenants[tenantID]
	if !ok {
		return repository.ErrNotFound
	}
	t.Features = f.Clone()
	t.UpdatedAt = r.s.tick()
	return nil
}

// Invites implements the invite ledger.
type Invites struct{ s *Store }

func (r *Invites) Create(_ context.Context, sc repository.Scope, inv *model.Invite) error {
	if err := scoped(sc); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.takeFail(); err != nil {
		return err
	}
	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	inv.TenantID = sc.TenantID()
	inv.Email = strings.ToLower(strings.TrimSpace(inv.Email))
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = r.s.tick()
	}
	return r.insertLocked(inv)
}

func (r *Invites) insertLocked(inv *model.Invite) error {
	for _, other := range r.s.invites {
		if other.Token == inv.Token {
			return repository.ErrDuplicate
		}
	}
	c := *inv
	r.s.invites[inv.ID] = &c
	return nil
}

func (r *Invites) GetByToken(_ context.Context, token string, now time.Time) (*model.Invite, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, inv := range r.s.invites {
		if inv.Token == token && !inv.Expired(now) {
			c := *inv
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *Invites) Consume(_ context.Context, token string, now time.Time) (*model.Invite, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.takeFail(); err != nil {
		return nil, err
	}
	for id, inv := range r.s.invites {
		if inv.Token == token && !inv.Expired(now) {
			delete(r.s.invites, id)
			c := *inv
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *Invites) Restore(_ context.Context, inv *model.Invite) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.insertLocked(inv)
}

func (r *Invites) Get(_ context.Context, sc repository.Scope, id string) (*model.Invite, error) {
	if err := scoped(sc); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	inv, ok := r.s.invites[id]
	if !ok || inv.TenantID != sc.TenantID() {
		return nil, repository.ErrNotFound
	}
	c := *inv
	return &c, nil
}

func (r *Invites) ListActive(_ context.Context, sc repository.Scope, now time.Time) ([]model.Invite, error) {
	if err := scoped(sc); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []model.Invite{}
	for _, inv := range r.s.invites {
		if inv.TenantID == sc.TenantID() && !inv.Expired(now) {
			out = append(out, *inv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *Invites) Delete(_ context.Context, sc repository.Scope, id string) error {
	if err := scoped(sc); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.takeFail(); err != nil {
		return err
	}
	inv, ok := r.s.invites[id]
	if !ok || inv.TenantID != sc.TenantID() {
		return repository.ErrNotFound
	}
	delete(r.s.invites, id)
	return nil
}

func (r *Invites) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, inv := range r.s.invites {
		if inv.Expired(now) {
			delete(r.s.invites, id)
			n++
		}
	}
	return n, nil
}
