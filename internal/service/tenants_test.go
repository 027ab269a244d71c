package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/newdeli/backoffice/internal/i18n"
	"github.com/newdeli/backoffice/internal/model"
)

func TestTenantInfo(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.signup(t, "Dana", "dana@x.com", "Deli")
	emp := f.addMember(t, owner.Tenant.ID, "emp@x.com", model.RoleEmployee)
	if _, err := f.tenants.SetFeatures(ctx, owner.Tenant.ID, FeaturePatch{Key: model.FeatureSuppliers, Value: true}); err != nil {
		t.Fatal(err)
	}

	info, err := f.tenants.Info(ctx, f.actor(t, emp.ID, owner.Tenant.ID))
	if err != nil {
		t.Fatal(err)
	}
	if info.Tenant.ID != owner.Tenant.ID || info.CurrentUser.Role != model.RoleEmployee {
		t.Errorf("info = %+v", info)
	}
	if info.Owner == nil || info.Owner.Email != "dana@x.com" {
		t.Errorf("owner = %+v", info.Owner)
	}
	if !info.FeatureState[model.FeatureSuppliers] || info.FeatureState[model.FeatureInvoices] {
		t.Errorf("featureState = %v", info.FeatureState)
	}
	if len(info.FeatureState) != len(model.FeatureCatalog) || len(info.Team) != 2 {
		t.Errorf("catalog %d team %d", len(info.FeatureState), len(info.Team))
	}
}

func TestTenantUpdate_OwnerOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.signup(t, "Dana", "dana@x.com", "Deli")
	mgr := f.addMember(t, owner.Tenant.ID, "mgr@x.com", model.RoleManager)

	_, err := f.tenants.Update(ctx, f.actor(t, mgr.ID, owner.Tenant.ID), "Hacked", model.TenantSettings{})
	wantKind(t, err, KindForbidden, i18n.Forbidden)

	got, err := f.tenants.Update(ctx, f.actor(t, owner.User.ID, owner.Tenant.ID), " New Deli ", model.TenantSettings{Address: "Herzl 1"})
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "New Deli" || got.Settings.Address != "Herzl 1" || got.Settings.Phone != "0500000000" {
		t.Errorf("tenant = %+v", got)
	}

	_, err = f.tenants.Update(ctx, f.actor(t, owner.User.ID, owner.Tenant.ID), strings.Repeat("x", 81), model.TenantSettings{})
	wantKind(t, err, KindValidation, i18n.NameLength)
}

func TestTenantList_Breakdown(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.signup(t, "Dana", "dana@x.com", "Deli")
	tid := owner.Tenant.ID
	f.addMember(t, tid, "m@x.com", model.RoleManager)
	f.addMember(t, tid, "s@x.com", model.RoleShiftManager)
	f.addMember(t, tid, "e1@x.com", model.RoleEmployee)
	f.addMember(t, tid, "e2@x.com", model.RoleEmployee)
	name, phone := "Tnuva", "03"
	if _, err := f.supp.Create(ctx, f.actor(t, owner.User.ID, tid), SupplierInput{Name: &name, Phone: &phone}); err != nil {
		t.Fatal(err)
	}

	list, err := f.tenants.List(ctx)
	if err != nil || len(list) != 1 {
		t.Fatalf("list = %+v, %v", list, err)
	}
	s := list[0]
	want := RoleBreakdown{Owners: 1, Managers: 1, ShiftManagers: 1, Employees: 2}
	if s.Roles != want || s.TeamCount != 5 || s.SupplierCount != 1 {
		t.Errorf("summary = %+v", s)
	}
	if s.Owner == nil || s.Owner.UserID != owner.User.ID {
		t.Errorf("owner = %+v", s.Owner)
	}
	if s.LastActivity == nil || s.LastActivity.Action != ActionSupplierCreated {
		t.Errorf("last activity = %+v", s.LastActivity)
	}
}

func TestSetFeatures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.signup(t, "Dana", "dana@x.com", "Deli")

	got, err := f.tenants.SetFeatures(ctx, owner.Tenant.ID, FeaturePatch{Bulk: map[string]bool{"invoices": true, "orders": true}})
	if err != nil {
		t.Fatal(err)
	}
	got, err = f.tenants.SetFeatures(ctx, owner.Tenant.ID, FeaturePatch{Key: "orders", Value: false})
	if err != nil {
		t.Fatal(err)
	}
	if !got["invoices"] || got["orders"] {
		t.Errorf("features = %v", got)
	}

	_, err = f.tenants.SetFeatures(ctx, "missing", FeaturePatch{Key: "orders", Value: true})
	wantKind(t, err, KindNotFound, i18n.NotFound)
}

func TestUpdateProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.signup(t, "Dana", "dana@x.com", "Deli")

	_, err := f.tenants.UpdateProfile(ctx, owner.User, "   ")
	wantKind(t, err, KindValidation, i18n.NameLength)

	u, err := f.tenants.UpdateProfile(ctx, owner.User, "Dana Levi")
	if err != nil || u.Name != "Dana Levi" {
		t.Fatalf("profile = %+v %v", u, err)
	}
}

func TestActivityList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.signup(t, "Dana", "dana@x.com", "Deli")
	tid := owner.Tenant.ID
	actor := f.actor(t, owner.User.ID, tid)
	for i := 0; i < 120; i++ {
		f.act.Record(ctx, actor.entry("test:event", model.ActivityTarget{}, nil))
	}

	logs, err := f.act.List(ctx, actor, 0, time.Time{})
	if err != nil || len(logs) != 30 {
		t.Fatalf("default limit: %d %v", len(logs), err)
	}
	logs, _ = f.act.List(ctx, actor, 500, time.Time{})
	if len(logs) != 100 {
		t.Errorf("capped limit = %d", len(logs))
	}

	emp := f.addMember(t, tid, "emp@x.com", model.RoleEmployee)
	_, err = f.act.List(ctx, f.actor(t, emp.ID, tid), 10, time.Time{})
	wantKind(t, err, KindForbidden, i18n.Forbidden)
}

func TestActivityRecord_SwallowsErrors(t *testing.T) {
	f := newFixture(t)
	owner := f.signup(t, "Dana", "dana@x.com", "Deli")
	f.db.FailNextWrite(context.DeadlineExceeded)
	// Must not panic or surface the failure.
	f.act.Record(context.Background(), f.actor(t, owner.User.ID, owner.Tenant.ID).entry("x", model.ActivityTarget{}, nil))
	var nilActivity *Activity
	nilActivity.Record(context.Background(), Entry{})
}
