package service

import (
	"context"
	"errors"

	"github.com/newdeli/backoffice/internal/i18n"
	"github.com/newdeli/backoffice/internal/model"
	"github.com/newdeli/backoffice/internal/repository"
	"github.com/newdeli/backoffice/internal/utils"
)

// Suppliers manages a tenant's supplier directory.  Reads are open to every
// member; writes need a managing role.
type Suppliers struct {
	Store    SupplierStore
	Activity *Activity
}

// SupplierInput is the create/update form.  Nil fields are left unchanged
// on update.
type SupplierInput struct {
	Name         *string
	Phone        *string
	DeliveryDays []int
	Products     []model.SupplierProduct
	Notes        *string
	IsActive     *bool
}

func requireSupervisor(actor Actor) error {
	if !actor.Role.In(model.RoleOwner, model.RoleManager, model.RoleShiftManager) {
		return forbidden(i18n.Forbidden)
	}
	return nil
}

func validDays(days []int) bool {
	for _, d := range days {
		if d < 0 || d > 5 {
			return false
		}
	}
	return true
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return utils.Clean(*s)
}

func (s *Suppliers) List(ctx context.Context, actor Actor) ([]model.Supplier, error) {
	list, err := s.Store.List(ctx, actor.Scope)
	if err != nil {
		return nil, internal(err)
	}
	return list, nil
}

// ByDay returns the active suppliers delivering on weekday day (0..5).
func (s *Suppliers) ByDay(ctx context.Context, actor Actor, day int) ([]model.Supplier, error) {
	if !validDays([]int{day}) {
		return nil, invalid(i18n.InvalidInput)
	}
	list, err := s.List(ctx, actor)
	if err != nil {
		return nil, err
	}
	out := []model.Supplier{}
	for _, sp := range list {
		if !sp.IsActive {
			continue
		}
		for _, d := range sp.DeliveryDays {
			if d == day {
				out = append(out, sp)
				break
			}
		}
	}
	return out, nil
}

func (s *Suppliers) Get(ctx context.Context, actor Actor, id string) (*model.Supplier, error) {
	sp, err := s.Store.Get(ctx, actor.Scope, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFound(i18n.NotFound)
	}
	if err != nil {
		return nil, internal(err)
	}
	return sp, nil
}

func (s *Suppliers) Create(ctx context.Context, actor Actor, in SupplierInput) (*model.Supplier, error) {
	if err := requireSupervisor(actor); err != nil {
		return nil, err
	}
	name, phone := deref(in.Name), deref(in.Phone)
	if name == "" || phone == "" {
		return nil, invalid(i18n.MissingFields)
	}
	if !validDays(in.DeliveryDays) {
		return nil, invalid(i18n.InvalidInput)
	}
	sp := &model.Supplier{
		Name:         name,
		Phone:        phone,
		DeliveryDays: in.DeliveryDays,
		Products:     in.Products,
		Notes:        deref(in.Notes),
		IsActive:     in.IsActive == nil || *in.IsActive,
		CreatedBy:    actor.User.ID,
	}
	err := s.Store.Create(ctx, actor.Scope, sp)
	if errors.Is(err, repository.ErrDuplicate) {
		return nil, conflict(i18n.SupplierExists)
	}
	if err != nil {
		return nil, internal(err)
	}
	s.Activity.Record(ctx, actor.entry(ActionSupplierCreated,
		model.ActivityTarget{Kind: "supplier", ID: sp.ID, Label: sp.Name}, nil))
	return sp, nil
}

func (s *Suppliers) Update(ctx context.Context, actor Actor, id string, in SupplierInput) (*model.Supplier, error) {
	if err := requireSupervisor(actor); err != nil {
		return nil, err
	}
	sp, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		if sp.Name = deref(in.Name); sp.Name == "" {
			return nil, invalid(i18n.MissingFields)
		}
	}
	if in.Phone != nil {
		if sp.Phone = deref(in.Phone); sp.Phone == "" {
			return nil, invalid(i18n.MissingFields)
		}
	}
	if in.DeliveryDays != nil {
		if !validDays(in.DeliveryDays) {
			return nil, invalid(i18n.InvalidInput)
		}
		sp.DeliveryDays = in.DeliveryDays
	}
	if in.Products != nil {
		sp.Products = in.Products
	}
	if in.Notes != nil {
		sp.Notes = deref(in.Notes)
	}
	if in.IsActive != nil {
		sp.IsActive = *in.IsActive
	}

	err = s.Store.Update(ctx, actor.Scope, sp)
	if errors.Is(err, repository.ErrDuplicate) {
		return nil, conflict(i18n.SupplierExists)
	}
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFound(i18n.NotFound)
	}
	if err != nil {
		return nil, internal(err)
	}
	s.Activity.Record(ctx, actor.entry(ActionSupplierUpdated,
		model.ActivityTarget{Kind: "supplier", ID: sp.ID, Label: sp.Name}, nil))
	return sp, nil
}

func (s *Suppliers) Delete(ctx context.Context, actor Actor, id string) error {
	if err := requireSupervisor(actor); err != nil {
		return err
	}
	err := s.Store.Delete(ctx, actor.Scope, id)
	if errors.Is(err, repository.ErrNotFound) {
		return notFound(i18n.NotFound)
	}
	if err != nil {
		return internal(err)
	}
	s.Activity.Record(ctx, actor.entry(ActionSupplierDeleted, model.ActivityTarget{Kind: "supplier", ID: id}, nil))
	return nil
}
