package service

import (
	"context"
	"time"

	"github.com/newdeli/backoffice/internal/model"
	"github.com/newdeli/backoffice/internal/repository"
)

// The interfaces below are satisfied by the MySQL repositories in
// internal/repository and by internal/repository/memstore.

type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	UpdateName(ctx context.Context, id, name string) error
	SetPassword(ctx context.Context, id, hash string) error
	SetActiveTenant(ctx context.Context, id, tenantID string) error

	AddMembership(ctx context.Context, s repository.Scope, userID string, role model.Role) error
	Member(ctx context.Context, s repository.Scope, userID string) (*model.Member, error)
	Members(ctx context.Context, s repository.Scope) ([]model.Member, error)
	RoleCounts(ctx context.Context, s repository.Scope) (map[model.Role]int, error)
	SetRole(ctx context.Context, s repository.Scope, userID string, role model.Role) error
	RemoveMembership(ctx context.Context, s repository.Scope, userID string) error
}

type TenantStore interface {
	Create(ctx context.Context, t *model.Tenant) error
	GetByID(ctx context.Context, id string) (*model.Tenant, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
	FindByOwnerAndName(ctx context.Context, ownerID, name string) (*model.Tenant, error)
	List(ctx context.Context) ([]model.Tenant, error)
	Update(ctx context.Context, s repository.Scope, name string, patch model.TenantSettings) (*model.Tenant, error)
}

type InviteStore interface {
	Create(ctx context.Context, s repository.Scope, inv *model.Invite) error
	GetByToken(ctx context.Context, token string, now time.Time) (*model.Invite, error)
	Consume(ctx context.Context, token string, now time.Time) (*model.Invite, error)
	Restore(ctx context.Context, inv *model.Invite) error
	Get(ctx context.Context, s repository.Scope, id string) (*model.Invite, error)
	ListActive(ctx context.Context, s repository.Scope, now time.Time) ([]model.Invite, error)
	Delete(ctx context.Context, s repository.Scope, id string) error
}

type ActivityStore interface {
	Append(ctx context.Context, s repository.Scope, e *model.ActivityLog) error
	List(ctx context.Context, s repository.Scope, limit int, since time.Time) ([]model.ActivityLog, error)
}

type SupplierStore interface {
	List(ctx context.Context, s repository.Scope) ([]model.Supplier, error)
	Get(ctx context.Context, s repository.Scope, id string) (*model.Supplier, error)
	Create(ctx context.Context, s repository.Scope, sp *model.Supplier) error
	Update(ctx context.Context, s repository.Scope, sp *model.Supplier) error
	Delete(ctx context.Context, s repository.Scope, id string) error
	Count(ctx context.Context, s repository.Scope) (int, error)
}

type OrderStore interface {
	List(ctx context.Context, s repository.Scope, f model.OrderFilter) ([]model.Order, error)
	Get(ctx context.Context, s repository.Scope, id string) (*model.Order, error)
	FindBySupplierDate(ctx context.Context, s repository.Scope, supplierID string, day time.Time) (*model.Order, error)
	Create(ctx context.Context, s repository.Scope, o *model.Order) error
	Update(ctx context.Context, s repository.Scope, o *model.Order) error
	Delete(ctx context.Context, s repository.Scope, id string) error
	Stats(ctx context.Context, s repository.Scope) ([]model.OrderStat, error)
}

type DispersionStore interface {
	List(ctx context.Context, s repository.Scope, q string, limit int) ([]model.Dispersion, error)
	Get(ctx context.Context, s repository.Scope, id string) (*model.Dispersion, error)
	Create(ctx context.Context, s repository.Scope, d *model.Dispersion) error
	Update(ctx context.Context, s repository.Scope, d *model.Dispersion) error
	Delete(ctx context.Context, s repository.Scope, id string) error
}

// Actor is the authenticated caller of a tenant-scoped operation.  Role is
// the role resolved from the caller's memberships for Scope's tenant.
type Actor struct {
	User  *model.User
	Role  model.Role
	Scope repository.Scope
	IP    string
	UA    string
}

func (a Actor) entry(action string, target model.ActivityTarget, meta map[string]any) Entry {
	e := Entry{Scope: a.Scope, Action: action, Target: target, Meta: meta, IP: a.IP, UserAgent: a.UA}
	if a.User != nil {
		e.ActorID, e.ActorName, e.ActorEmail = a.User.ID, a.User.Name, a.User.Email
	}
	return e
}

type clock func() time.Time

func (c clock) now() time.Time {
	if c == nil {
		return time.Now().UTC()
	}
	return c().UTC()
}
