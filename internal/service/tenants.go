package service

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/newdeli/backoffice/internal/access"
	"github.com/newdeli/backoffice/internal/i18n"
	"github.com/newdeli/backoffice/internal/model"
	"github.com/newdeli/backoffice/internal/repository"
	"github.com/newdeli/backoffice/internal/utils"
)

// Tenants serves the tenant dashboard and the platform administration
// surface.
type Tenants struct {
	Users     UserStore
	Tenants   TenantStore
	Invites   InviteStore
	Features  repository.FeatureStore
	Suppliers SupplierStore
	Activity  *Activity

	Now func() time.Time
	Log *zap.Logger
}

// TenantInfo is the dashboard's view of the current tenant.
type TenantInfo struct {
	Tenant       *model.Tenant
	Features     model.Features
	FeatureState map[string]bool
	CurrentUser  model.Member
	Owner        *model.Member
	Team         []TeamEntry
}

// RoleBreakdown counts members per role.
type RoleBreakdown struct {
	Owners        int `json:"owners"`
	Managers      int `json:"managers"`
	ShiftManagers int `json:"shift_managers"`
	Employees     int `json:"employees"`
}

// TenantSummary is one row of the platform tenant list.
type TenantSummary struct {
	Tenant        model.Tenant
	Owner         *model.Member
	TeamCount     int
	Roles         RoleBreakdown
	SupplierCount int
	LastActivity  *model.ActivityLog
}

// FeaturePatch is either a single key/value or a bulk map.
type FeaturePatch struct {
	Key   string
	Value bool
	Bulk  map[string]bool
}

// Info returns the actor's tenant with its features and team.
func (s *Tenants) Info(ctx context.Context, actor Actor) (*TenantInfo, error) {
	tenant, err := s.Tenants.GetByID(ctx, actor.Scope.TenantID())
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFound(i18n.NotFound)
	}
	if err != nil {
		return nil, internal(err)
	}
	features, err := s.Features.Features(ctx, tenant.ID)
	if err != nil {
		return nil, internal(err)
	}
	team := &Team{Users: s.Users, Invites: s.Invites, Now: s.Now}
	entries, err := team.Members(ctx, actor)
	if err != nil {
		return nil, err
	}
	info := &TenantInfo{
		Tenant:       tenant,
		Features:     features,
		FeatureState: access.FeatureState(features),
		CurrentUser:  model.Member{UserID: actor.User.ID, Name: actor.User.Name, Email: actor.User.Email, Role: actor.Role},
		Team:         entries,
	}
	if owner, err := s.Users.Member(ctx, actor.Scope, tenant.OwnerID); err == nil {
		info.Owner = owner
	}
	return info, nil
}

// Update renames the tenant and merges settings.  Owner only.
func (s *Tenants) Update(ctx context.Context, actor Actor, name string, patch model.TenantSettings) (*model.Tenant, error) {
	if actor.Role != model.RoleOwner {
		return nil, forbidden(i18n.Forbidden)
	}
	name = utils.Clean(name)
	if utf8.RuneCountInString(name) > maxNameLen {
		return nil, invalid(i18n.NameLength)
	}
	tenant, err := s.Tenants.Update(ctx, actor.Scope, name, patch)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFound(i18n.NotFound)
	}
	if err != nil {
		return nil, internal(err)
	}
	s.Activity.Record(ctx, actor.entry(ActionTenantUpdated,
		model.ActivityTarget{Kind: "tenant", ID: tenant.ID, Label: tenant.Name}, nil))
	return tenant, nil
}

// Catalog returns the switchable features.
func (s *Tenants) Catalog() []model.CatalogEntry {
	return append([]model.CatalogEntry(nil), model.FeatureCatalog...)
}

// List summarises every tenant for platform administrators.
func (s *Tenants) List(ctx context.Context) ([]TenantSummary, error) {
	tenants, err := s.Tenants.List(ctx)
	if err != nil {
		return nil, internal(err)
	}
	out := make([]TenantSummary, 0, len(tenants))
	for _, t := range tenants {
		sc := repository.ForTenant(t.ID)
		counts, err := s.Users.RoleCounts(ctx, sc)
		if err != nil {
			return nil, internal(err)
		}
		sum := TenantSummary{
			Tenant: t,
			Roles: RoleBreakdown{
				Owners:        counts[model.RoleOwner],
				Managers:      counts[model.RoleManager],
				ShiftManagers: counts[model.RoleShiftManager],
				Employees:     counts[model.RoleEmployee],
			},
		}
		for _, n := range counts {
			sum.TeamCount += n
		}
		if s.Suppliers != nil {
			if sum.SupplierCount, err = s.Suppliers.Count(ctx, sc); err != nil {
				return nil, internal(err)
			}
		}
		if owner, err := s.Users.Member(ctx, sc, t.OwnerID); err == nil {
			sum.Owner = owner
		}
		if s.Activity != nil && s.Activity.Store != nil {
			if last, err := s.Activity.Store.List(ctx, sc, 1, time.Time{}); err == nil && len(last) == 1 {
				sum.LastActivity = &last[0]
			}
		}
		out = append(out, sum)
	}
	return out, nil
}

// SetFeatures applies patch to a tenant's feature map and returns the
// result.  Cached copies are invalidated by the feature store.
func (s *Tenants) SetFeatures(ctx context.Context, tenantID string, patch FeaturePatch) (model.Features, error) {
	if _, err := s.Tenants.GetByID(ctx, tenantID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound(i18n.NotFound)
		}
		return nil, internal(err)
	}
	current, err := s.Features.Features(ctx, tenantID)
	if err != nil {
		return nil, internal(err)
	}
	next := current.Clone()
	if patch.Key != "" {
		next[patch.Key] = patch.Value
	} else {
		for k, v := range patch.Bulk {
			next[k] = v
		}
	}
	if err := s.Features.SetFeatures(ctx, tenantID, next); err != nil {
		return nil, internal(err)
	}
	return next, nil
}

// UpdateProfile renames the calling user.
func (s *Tenants) UpdateProfile(ctx context.Context, user *model.User, name string) (*model.User, error) {
	name = utils.Clean(name)
	if name == "" || utf8.RuneCountInString(name) > maxNameLen {
		return nil, invalid(i18n.NameLength)
	}
	if err := s.Users.UpdateName(ctx, user.ID, name); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound(i18n.NotFound)
		}
		return nil, internal(err)
	}
	u := *user
	u.Name = name
	return &u, nil
}
