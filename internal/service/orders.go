package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/newdeli/backoffice/internal/i18n"
	"github.com/newdeli/backoffice/internal/model"
	"github.com/newdeli/backoffice/internal/repository"
	"github.com/newdeli/backoffice/internal/utils"
)

// Orders records what a tenant orders from its suppliers, one order per
// supplier and delivery day.  Reads are open to every member; writes need
// a supervising role.
type Orders struct {
	Store     OrderStore
	Directory *Suppliers
	Activity  *Activity
}

// OrderBatch is one save from the ordering screen: every supplier's lines
// for a single delivery day.
type OrderBatch struct {
	Date   string
	Orders []BatchOrder
}

// BatchOrder is one supplier's part of a batch.  The supplier name is
// always taken from the directory.
type BatchOrder struct {
	SupplierID string
	Items      []model.OrderItem
	Notes      string
}

// BatchFailure names a supplier whose order could not be saved.
type BatchFailure struct {
	SupplierID string `json:"supplierId"`
	Code       string `json:"code"`
}

type BatchResult struct {
	Saved  []model.Order
	Failed []BatchFailure
}

// OrderUpdate carries the optional changes to an order.  An empty
// ReceivedDate clears the receipt.
type OrderUpdate struct {
	Items        []model.OrderItem
	Status       *string
	Notes        *string
	ReceivedDate *string
}

// parseWhen reads an RFC 3339 timestamp or a bare YYYY-MM-DD day.
func parseWhen(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	return time.Parse(time.DateOnly, s)
}

// parseDay reduces s to its calendar day at midnight UTC.
func parseDay(s string) (time.Time, error) {
	t, err := parseWhen(s)
	if err != nil {
		return time.Time{}, err
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
}

// deliveryWeekday maps day to 0 (Sunday) through 5 (Friday).  Nothing is
// delivered on Saturday.
func deliveryWeekday(day time.Time) (int, bool) {
	wd := day.Weekday()
	return int(wd), wd != time.Saturday
}

// orderItems cleans item lines.  With dropEmpty, lines without a positive
// quantity are skipped instead of rejected.
func orderItems(in []model.OrderItem, dropEmpty bool) ([]model.OrderItem, error) {
	out := make([]model.OrderItem, 0, len(in))
	for _, it := range in {
		if dropEmpty && it.Quantity <= 0 {
			continue
		}
		if it.Quantity < 0 {
			return nil, invalid(i18n.InvalidInput)
		}
		it.ProductName = utils.Clean(it.ProductName)
		if it.ProductName == "" {
			return nil, invalid(i18n.MissingFields)
		}
		it.Unit, it.Notes = utils.Clean(it.Unit), utils.Clean(it.Notes)
		out = append(out, it)
	}
	return out, nil
}

// SuppliersForDate lists the active suppliers that deliver on date.  On
// Saturday the list is empty.
func (o *Orders) SuppliersForDate(ctx context.Context, actor Actor, date string) ([]model.Supplier, int, error) {
	day, err := parseDay(date)
	if err != nil {
		return nil, 0, invalid(i18n.InvalidDate)
	}
	wd, ok := deliveryWeekday(day)
	if !ok {
		return []model.Supplier{}, wd, nil
	}
	list, err := o.Directory.ByDay(ctx, actor, wd)
	return list, wd, err
}

// List returns the tenant's orders, optionally for one day and status.
func (o *Orders) List(ctx context.Context, actor Actor, date, status string) ([]model.Order, error) {
	var f model.OrderFilter
	if strings.TrimSpace(date) != "" {
		day, err := parseDay(date)
		if err != nil {
			return nil, invalid(i18n.InvalidDate)
		}
		f.Date = day
	}
	if status = strings.TrimSpace(status); status != "" {
		st, ok := model.ParseOrderStatus(status)
		if !ok {
			return nil, invalid(i18n.InvalidInput)
		}
		f.Status = st
	}
	list, err := o.Store.List(ctx, actor.Scope, f)
	if err != nil {
		return nil, internal(err)
	}
	return list, nil
}

func (o *Orders) Get(ctx context.Context, actor Actor, id string) (*model.Order, error) {
	ord, err := o.Store.Get(ctx, actor.Scope, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFound(i18n.NotFound)
	}
	if err != nil {
		return nil, internal(err)
	}
	return ord, nil
}

// SaveBatch saves every non-empty supplier order of b.  An order that
// already exists for the supplier and day is overwritten and set back to
// ordered.  Per-supplier problems are collected in Failed; the call fails
// only when nothing could be saved.
func (o *Orders) SaveBatch(ctx context.Context, actor Actor, b OrderBatch) (*BatchResult, error) {
	if err := requireSupervisor(actor); err != nil {
		return nil, err
	}
	if len(b.Orders) == 0 {
		return nil, invalid(i18n.MissingFields)
	}
	day, err := parseDay(b.Date)
	if err != nil {
		return nil, invalid(i18n.InvalidDate)
	}
	wd, ok := deliveryWeekday(day)
	if !ok {
		return nil, invalid(i18n.NoSaturdayDelivery)
	}

	res := &BatchResult{Saved: []model.Order{}, Failed: []BatchFailure{}}
	for _, in := range b.Orders {
		items, err := orderItems(in.Items, true)
		if err == nil && len(items) == 0 {
			continue
		}
		var saved *model.Order
		if err == nil {
			saved, err = o.saveOne(ctx, actor, day, wd, in.SupplierID, items, utils.Clean(in.Notes))
		}
		if err != nil {
			se := AsError(err)
			if se.Kind == KindInternal {
				return nil, err
			}
			res.Failed = append(res.Failed, BatchFailure{SupplierID: in.SupplierID, Code: se.Code})
			continue
		}
		res.Saved = append(res.Saved, *saved)
	}
	if len(res.Saved) == 0 && len(res.Failed) > 0 {
		return res, invalid(i18n.OrdersFailed)
	}
	if len(res.Saved) > 0 {
		o.Activity.Record(ctx, actor.entry(ActionOrdersSaved, model.ActivityTarget{Kind: "order"},
			map[string]any{"date": day.Format(time.DateOnly), "count": len(res.Saved)}))
	}
	return res, nil
}

func (o *Orders) saveOne(ctx context.Context, actor Actor, day time.Time, wd int, supplierID string,
	items []model.OrderItem, notes string) (*model.Order, error) {
	sp, err := o.Directory.Get(ctx, actor, strings.TrimSpace(supplierID))
	if err != nil {
		return nil, err
	}

	cur, err := o.Store.FindBySupplierDate(ctx, actor.Scope, sp.ID, day)
	switch {
	case err == nil:
		cur.Items, cur.Notes, cur.Status = items, notes, model.OrderOrdered
		if err := o.Store.Update(ctx, actor.Scope, cur); err != nil {
			return nil, internal(err)
		}
		return cur, nil
	case !errors.Is(err, repository.ErrNotFound):
		return nil, internal(err)
	}

	by := actor.User.Name
	if by == "" {
		by = actor.User.Email
	}
	ord := &model.Order{
		OrderDate:     day,
		DayOfWeek:     wd,
		SupplierID:    sp.ID,
		SupplierName:  sp.Name,
		Items:         items,
		Status:        model.OrderOrdered,
		Notes:         notes,
		CreatedBy:     actor.User.ID,
		CreatedByName: by,
	}
	err = o.Store.Create(ctx, actor.Scope, ord)
	if errors.Is(err, repository.ErrDuplicate) {
		// Lost a race with a concurrent save for the same supplier.
		return nil, conflict(i18n.Conflict)
	}
	if err != nil {
		return nil, internal(err)
	}
	return ord, nil
}

func (o *Orders) Update(ctx context.Context, actor Actor, id string, upd OrderUpdate) (*model.Order, error) {
	if err := requireSupervisor(actor); err != nil {
		return nil, err
	}
	ord, err := o.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if upd.Items != nil {
		if ord.Items, err = orderItems(upd.Items, false); err != nil {
			return nil, err
		}
	}
	if upd.Status != nil {
		st, ok := model.ParseOrderStatus(strings.TrimSpace(*upd.Status))
		if !ok {
			return nil, invalid(i18n.InvalidInput)
		}
		ord.Status = st
	}
	if upd.Notes != nil {
		ord.Notes = deref(upd.Notes)
	}
	if upd.ReceivedDate != nil {
		if strings.TrimSpace(*upd.ReceivedDate) == "" {
			ord.ReceivedAt, ord.ReceivedBy = nil, ""
		} else {
			at, err := parseWhen(*upd.ReceivedDate)
			if err != nil {
				return nil, invalid(i18n.InvalidDate)
			}
			ord.ReceivedAt, ord.ReceivedBy = &at, actor.User.ID
		}
	}

	err = o.Store.Update(ctx, actor.Scope, ord)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFound(i18n.NotFound)
	}
	if err != nil {
		return nil, internal(err)
	}
	o.Activity.Record(ctx, actor.entry(ActionOrderUpdated,
		model.ActivityTarget{Kind: "order", ID: ord.ID, Label: ord.SupplierName},
		map[string]any{"status": string(ord.Status)}))
	return ord, nil
}

func (o *Orders) Delete(ctx context.Context, actor Actor, id string) error {
	if err := requireSupervisor(actor); err != nil {
		return err
	}
	err := o.Store.Delete(ctx, actor.Scope, id)
	if errors.Is(err, repository.ErrNotFound) {
		return notFound(i18n.NotFound)
	}
	if err != nil {
		return internal(err)
	}
	o.Activity.Record(ctx, actor.entry(ActionOrderDeleted, model.ActivityTarget{Kind: "order", ID: id}, nil))
	return nil
}

// Stats counts the tenant's orders and ordered quantities per status.
func (o *Orders) Stats(ctx context.Context, actor Actor) ([]model.OrderStat, error) {
	stats, err := o.Store.Stats(ctx, actor.Scope)
	if err != nil {
		return nil, internal(err)
	}
	return stats, nil
}
