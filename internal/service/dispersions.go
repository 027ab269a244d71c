package service

import (
	"context"
	"errors"
	"math"
	"strings"

	"github.com/newdeli/backoffice/internal/i18n"
	"github.com/newdeli/backoffice/internal/model"
	"github.com/newdeli/backoffice/internal/repository"
)

const dispersionLimit = 200

// Dispersions tracks the taxi rides a tenant pays for.
type Dispersions struct {
	Store    DispersionStore
	Activity *Activity
}

// DispersionInput is the create/update form.  Nil fields are left
// unchanged on update; on create a nil Price means zero.
type DispersionInput struct {
	Date  *string
	Payer *string
	Taxi  *string
	Price *float64
}

func validPrice(p float64) bool { return p >= 0 && !math.IsInf(p, 0) && !math.IsNaN(p) }

// List returns the newest rides.
func (s *Dispersions) List(ctx context.Context, actor Actor) ([]model.Dispersion, error) {
	return s.Search(ctx, actor, "")
}

// Search returns the newest rides whose payer or taxi contains q.
func (s *Dispersions) Search(ctx context.Context, actor Actor, q string) ([]model.Dispersion, error) {
	list, err := s.Store.List(ctx, actor.Scope, strings.TrimSpace(q), dispersionLimit)
	if err != nil {
		return nil, internal(err)
	}
	return list, nil
}

func (s *Dispersions) Create(ctx context.Context, actor Actor, in DispersionInput) (*model.Dispersion, error) {
	if err := requireSupervisor(actor); err != nil {
		return nil, err
	}
	if in.Date == nil {
		return nil, invalid(i18n.InvalidDate)
	}
	d := &model.Dispersion{CreatedBy: actor.User.ID}
	day, err := parseDay(*in.Date)
	if err != nil {
		return nil, invalid(i18n.InvalidDate)
	}
	d.Date = day
	if d.Payer = deref(in.Payer); d.Payer == "" {
		return nil, invalid(i18n.PayerRequired)
	}
	if d.Taxi = deref(in.Taxi); d.Taxi == "" {
		return nil, invalid(i18n.TaxiRequired)
	}
	if in.Price != nil {
		d.Price = *in.Price
	}
	if !validPrice(d.Price) {
		return nil, invalid(i18n.InvalidPrice)
	}

	if err := s.Store.Create(ctx, actor.Scope, d); err != nil {
		return nil, internal(err)
	}
	s.Activity.Record(ctx, actor.entry(ActionDispersionCreated,
		model.ActivityTarget{Kind: "dispersion", ID: d.ID, Label: d.Taxi},
		map[string]any{"price": d.Price}))
	return d, nil
}

func (s *Dispersions) Update(ctx context.Context, actor Actor, id string, in DispersionInput) (*model.Dispersion, error) {
	if err := requireSupervisor(actor); err != nil {
		return nil, err
	}
	d, err := s.Store.Get(ctx, actor.Scope, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFound(i18n.NotFound)
	}
	if err != nil {
		return nil, internal(err)
	}
	if in.Date != nil {
		if d.Date, err = parseDay(*in.Date); err != nil {
			return nil, invalid(i18n.InvalidDate)
		}
	}
	if in.Payer != nil {
		if d.Payer = deref(in.Payer); d.Payer == "" {
			return nil, invalid(i18n.PayerRequired)
		}
	}
	if in.Taxi != nil {
		if d.Taxi = deref(in.Taxi); d.Taxi == "" {
			return nil, invalid(i18n.TaxiRequired)
		}
	}
	if in.Price != nil {
		if !validPrice(*in.Price) {
			return nil, invalid(i18n.InvalidPrice)
		}
		d.Price = *in.Price
	}

	err = s.Store.Update(ctx, actor.Scope, d)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFound(i18n.NotFound)
	}
	if err != nil {
		return nil, internal(err)
	}
	s.Activity.Record(ctx, actor.entry(ActionDispersionUpdated,
		model.ActivityTarget{Kind: "dispersion", ID: d.ID, Label: d.Taxi}, nil))
	return d, nil
}

func (s *Dispersions) Delete(ctx context.Context, actor Actor, id string) error {
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
	s.Activity.Record(ctx, actor.entry(ActionDispersionDeleted, model.ActivityTarget{Kind: "dispersion", ID: id}, nil))
	return nil
}
