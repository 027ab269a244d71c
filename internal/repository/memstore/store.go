// Package memstore is an in-memory implementation of every repository, used
// by tests and by STORE_DRIVER=memory.  It returns the same sentinel errors
// as the MySQL stores and honours Scope the same way.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/newdeli/backoffice/internal/model"
	"github.com/newdeli/backoffice/internal/repository"
)

// Store holds all tables behind one lock.  The typed views returned by its
// accessors share it.
type Store struct {
	mu sync.RWMutex

	users       map[string]*model.User
	userByEmail map[string]string
	tenants     map[string]*model.Tenant
	invites     map[string]*model.Invite // by id
	activity    []model.ActivityLog
	suppliers   map[string]*model.Supplier
	orders      map[string]*model.Order
	dispersions map[string]*model.Dispersion

	// failNext, when set, is returned once by the next write and cleared.
	// Tests use it to simulate datastore faults.
	failNext error

	seq int64
}

func NewStore() *Store {
	return &Store{
		users:       make(map[string]*model.User),
		userByEmail: make(map[string]string),
		tenants:     make(map[string]*model.Tenant),
		invites:     make(map[string]*model.Invite),
		suppliers:   make(map[string]*model.Supplier),
		orders:      make(map[string]*model.Order),
		dispersions: make(map[string]*model.Dispersion),
	}
}

// FailNextWrite makes the next write on any view return err.
func (s *Store) FailNextWrite(err error) {
	s.mu.Lock()
	s.failNext = err
	s.mu.Unlock()
}

func (s *Store) takeFail() error {
	err := s.failNext
	s.failNext = nil
	return err
}

// tick returns a strictly increasing timestamp so ordering by time is
// deterministic within a test.
func (s *Store) tick() time.Time {
	s.seq++
	return time.Now().UTC().Add(time.Duration(s.seq) * time.Microsecond)
}

func (s *Store) Users() *Users             { return &Users{s} }
func (s *Store) Tenants() *Tenants         { return &Tenants{s} }
func (s *Store) Invites() *Invites         { return &Invites{s} }
func (s *Store) Activity() *Activity       { return &Activity{s} }
func (s *Store) Suppliers() *Suppliers     { return &Suppliers{s} }
func (s *Store) Orders() *Orders           { return &Orders{s} }
func (s *Store) Dispersions() *Dispersions { return &Dispersions{s} }

func scoped(sc repository.Scope) error {
	if !sc.Valid() {
		return repository.ErrUnscoped
	}
	return nil
}

// Users implements the user store.
type Users struct{ s *Store }

func cloneUser(u *model.User) *model.User {
	c := *u
	c.Memberships = append([]model.Membership(nil), u.Memberships...)
	return &c
}

func (r *Users) Create(_ context.Context, u *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.takeFail(); err != nil {
		return err
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if _, taken := r.s.userByEmail[u.Email]; taken {
		return repository.ErrDuplicate
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := r.s.tick()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	r.s.users[u.ID] = cloneUser(u)
	r.s.userByEmail[u.Email] = u.ID
	return nil
}

func (r *Users) GetByID(_ context.Context, id string) (*model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneUser(u), nil
}

func (r *Users) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	r.s.mu.RLock()
	id, ok := r.s.userByEmail[strings.ToLower(strings.TrimSpace(email))]
	r.s.mu.RUnlock()
	if !ok {
		return nil, repository.ErrNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *Users) update(id string, fn func(*model.User)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.takeFail(); err != nil {
		return err
	}
	u, ok := r.s.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	fn(u)
	u.UpdatedAt = r.s.tick()
	return nil
}

func (r *Users) UpdateName(_ context.Context, id, name string) error {
	return r.update(id, func(u *model.User) { u.Name = name })
}

func (r *Users) SetPassword(_ context.Context, id, hash string) error {
	return r.update(id, func(u *model.User) { u.PasswordHash = hash })
}

func (r *Users) SetActiveTenant(_ context.Context, id, tenantID string) error {
	return r.update(id, func(u *model.User) { u.ActiveTenantID = tenantID })
}

// SetPlatformAdmin flips the platform-admin flag.  Only the memory store
// exposes it; in MySQL the flag is managed out of band.
func (r *Users) SetPlatformAdmin(id string, on bool) error {
	return r.update(id, func(u *model.User) { u.IsPlatformAdmin = on })
}

func (r *Users) AddMembership(_ context.Context, sc repository.Scope, userID string, role model.Role) error {
	if err := scoped(sc); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.takeFail(); err != nil {
		return err
	}
	u, ok := r.s.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	if _, exists := u.Membership(sc.TenantID()); exists {
		return repository.ErrDuplicate
	}
	u.Memberships = append(u.Memberships, model.Membership{TenantID: sc.TenantID(), Role: role, CreatedAt: r.s.tick()})
	return nil
}

func (r *Users) Member(_ context.Context, sc repository.Scope, userID string) (*model.Member, error) {
	if err := scoped(sc); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.users[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	m, ok := u.Membership(sc.TenantID())
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &model.Member{UserID: u.ID, Name: u.Name, Email: u.Email, Role: m.Role}, nil
}

func (r *Users) Members(_ context.Context, sc repository.Scope) ([]model.Member, error) {
	if err := scoped(sc); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	type row struct {
		m  model.Member
		at time.Time
	}
	var rows []row
	for _, u := range r.s.users {
		if m, ok := u.Membership(sc.TenantID()); ok {
			rows = append(rows, row{model.Member{UserID: u.ID, Name: u.Name, Email: u.Email, Role: m.Role}, m.CreatedAt})
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].at.Before(rows[j].at) })
	out := make([]model.Member, 0, len(rows))
	for _, rw := range rows {
		out = append(out, rw.m)
	}
	return out, nil
}

func (r *Users) RoleCounts(ctx context.Context, sc repository.Scope) (map[model.Role]int, error) {
	members, err := r.Members(ctx, sc)
	if err != nil {
		return nil, err
	}
	out := map[model.Role]int{}
	for _, m := range members {
		out[m.Role]++
	}
	return out, nil
}

func (r *Users) SetRole(_ context.Context, sc repository.Scope, userID string, role model.Role) error {
	if err := scoped(sc); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.takeFail(); err != nil {
		return err
	}
	u, ok := r.s.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	for i := range u.Memberships {
		if u.Memberships[i].TenantID == sc.TenantID() {
			u.Memberships[i].Role = role
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r *Users) RemoveMembership(_ context.Context, sc repository.Scope, userID string) error {
	if err := scoped(sc); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.takeFail(); err != nil {
		return err
	}
	u, ok := r.s.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	kept := u.Memberships[:0]
	removed := false
	for _, m := range u.Memberships {
		if m.TenantID == sc.TenantID() {
			removed = true
			continue
		}
		kept = append(kept, m)
	}
	if !removed {
		return repository.ErrNotFound
	}
	u.Memberships = kept
	if u.ActiveTenantID == sc.TenantID() {
		u.ActiveTenantID = ""
		if len(kept) > 0 {
			u.ActiveTenantID = kept[0].TenantID
		}
	}
	u.UpdatedAt = r.s.tick()
	return nil
}
