package service

import (
	"context"
	"testing"

	"github.com/newdeli/backoffice/internal/i18n"
	"github.com/newdeli/backoffice/internal/model"
)

func strp(s string) *string { return &s }

func TestSuppliers_CRUD(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.signup(t, "Dana", "dana@x.com", "Deli")
	tid := owner.Tenant.ID
	shift := f.actor(t, f.addMember(t, tid, "shift@x.com", model.RoleShiftManager).ID, tid)
	emp := f.actor(t, f.addMember(t, tid, "emp@x.com", model.RoleEmployee).ID, tid)

	_, err := f.supp.Create(ctx, emp, SupplierInput{Name: strp("Tnuva"), Phone: strp("03")})
	wantKind(t, err, KindForbidden, i18n.Forbidden)

	_, err = f.supp.Create(ctx, shift, SupplierInput{Name: strp("Tnuva")})
	wantKind(t, err, KindValidation, i18n.MissingFields)

	_, err = f.supp.Create(ctx, shift, SupplierInput{Name: strp("Tnuva"), Phone: strp("03"), DeliveryDays: []int{6}})
	wantKind(t, err, KindValidation, i18n.InvalidInput)

	sp, err := f.supp.Create(ctx, shift, SupplierInput{Name: strp(" Tnuva "), Phone: strp("03"), DeliveryDays: []int{0, 3}})
	if err != nil {
		t.Fatal(err)
	}
	if sp.Name != "Tnuva" || !sp.IsActive || sp.CreatedBy != shift.User.ID {
		t.Errorf("supplier = %+v", sp)
	}

	_, err = f.supp.Create(ctx, shift, SupplierInput{Name: strp("tnuva"), Phone: strp("04")})
	wantKind(t, err, KindConflict, i18n.SupplierExists)

	list, err := f.supp.List(ctx, emp)
	if err != nil || len(list) != 1 {
		t.Fatalf("list = %v %v", list, err)
	}
	byDay, _ := f.supp.ByDay(ctx, emp, 3)
	if len(byDay) != 1 {
		t.Errorf("by day = %v", byDay)
	}
	_, err = f.supp.ByDay(ctx, emp, 7)
	wantKind(t, err, KindValidation, i18n.InvalidInput)

	off := false
	up, err := f.supp.Update(ctx, shift, sp.ID, SupplierInput{Notes: strp("mornings only"), IsActive: &off})
	if err != nil {
		t.Fatal(err)
	}
	if up.Notes != "mornings only" || up.IsActive || up.Phone != "03" {
		t.Errorf("updated = %+v", up)
	}
	if byDay, _ := f.supp.ByDay(ctx, emp, 3); len(byDay) != 0 {
		t.Errorf("inactive supplier listed by day")
	}

	if err := f.supp.Delete(ctx, shift, sp.ID); err != nil {
		t.Fatal(err)
	}
	_, err = f.supp.Get(ctx, emp, sp.ID)
	wantKind(t, err, KindNotFound, i18n.NotFound)
}

func TestSuppliers_OtherTenantByRawID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.signup(t, "Dana", "dana@x.com", "Deli A")
	b := f.signup(t, "Eli", "eli@x.com", "Deli B")
	bActor := f.actor(t, b.User.ID, b.Tenant.ID)
	sp, err := f.supp.Create(ctx, bActor, SupplierInput{Name: strp("Secret"), Phone: strp("1")})
	if err != nil {
		t.Fatal(err)
	}

	aActor := f.actor(t, a.User.ID, a.Tenant.ID)
	_, err = f.supp.Get(ctx, aActor, sp.ID)
	wantKind(t, err, KindNotFound, i18n.NotFound)
	_, err = f.supp.Update(ctx, aActor, sp.ID, SupplierInput{Name: strp("Mine now")})
	wantKind(t, err, KindNotFound, i18n.NotFound)
	wantKind(t, f.supp.Delete(ctx, aActor, sp.ID), KindNotFound, i18n.NotFound)

	if got, err := f.supp.Get(ctx, bActor, sp.ID); err != nil || got.Name != "Secret" {
		t.Errorf("owner tenant lost supplier: %+v %v", got, err)
	}
}
