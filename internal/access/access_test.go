package access

import (
	"testing"

	"github.com/newdeli/backoffice/internal/model"
)

func userWith(ms ...model.Membership) *model.User {
	return &model.User{ID: "u-1", Email: "dana@x.com", Memberships: ms}
}

func TestResolveRole_MatchesTenantExplicitly(t *testing.T) {
	u := userWith(
		model.Membership{TenantID: "tenant-a", Role: model.RoleEmployee},
		model.Membership{TenantID: "tenant-b", Role: model.RoleManager},
	)
	u.ActiveTenantID = "tenant-a"

	role, ok := ResolveRole(u, "tenant-b")
	if !ok {
		t.Fatal("expected a role for tenant-b")
	}
	if role != model.RoleManager {
		t.Errorf("role = %q, want %q", role, model.RoleManager)
	}
}

func TestResolveRole_NormalizesIDs(t *testing.T) {
	u := userWith(model.Membership{TenantID: "ABC-123", Role: model.RoleOwner})
	role, ok := ResolveRole(u, " abc-123 ")
	if !ok || role != model.RoleOwner {
		t.Fatalf("ResolveRole = (%q, %v), want (owner, true)", role, ok)
	}
}

func TestResolveRole_NoRole(t *testing.T) {
	testCases := []struct {
		name     string
		user     *model.User
		tenantID string
	}{
		{"nil user", nil, "tenant-a"},
		{"empty tenant", userWith(model.Membership{TenantID: "tenant-a", Role: model.RoleOwner}), ""},
		{"no memberships", userWith(), "tenant-a"},
		{"other tenant", userWith(model.Membership{TenantID: "tenant-a", Role: model.RoleOwner}), "tenant-b"},
		{"active pointer only", &model.User{ID: "u-1", ActiveTenantID: "tenant-a"}, "tenant-a"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if role, ok := ResolveRole(tc.user, tc.tenantID); ok {
				t.Errorf("ResolveRole = (%q, true), want no role", role)
			}
		})
	}
}

func TestCanManage(t *testing.T) {
	testCases := []struct {
		actor, target model.Role
		want          bool
	}{
		{model.RoleOwner, model.RoleOwner, false},
		{model.RoleOwner, model.RoleManager, true},
		{model.RoleOwner, model.RoleShiftManager, true},
		{model.RoleOwner, model.RoleEmployee, true},
		{model.RoleManager, model.RoleOwner, false},
		{model.RoleManager, model.RoleManager, false},
		{model.RoleManager, model.RoleShiftManager, true},
		{model.RoleManager, model.RoleEmployee, true},
		{model.RoleShiftManager, model.RoleEmployee, false},
		{model.RoleEmployee, model.RoleEmployee, false},
		{model.Role(""), model.RoleEmployee, false},
	}
	for _, tc := range testCases {
		t.Run(string(tc.actor)+"->"+string(tc.target), func(t *testing.T) {
			if got := CanManage(tc.actor, tc.target); got != tc.want {
				t.Errorf("CanManage(%q, %q) = %v, want %v", tc.actor, tc.target, got, tc.want)
			}
		})
	}
}

func TestHomeFor(t *testing.T) {
	if got := HomeFor(model.RoleShiftManager); got != "/manager" {
		t.Errorf("HomeFor(shift_manager) = %q", got)
	}
	if got := HomeFor(model.RoleEmployee); got != "/worker" {
		t.Errorf("HomeFor(employee) = %q", got)
	}
}

func TestFeatureOn_DefaultsOff(t *testing.T) {
	if FeatureOn(nil, model.FeatureInvoices) {
		t.Error("nil map should be off")
	}
	f := model.Features{model.FeatureInvoices: false, model.FeatureSuppliers: true}
	if FeatureOn(f, model.FeatureInvoices) {
		t.Error("explicit false should be off")
	}
	if FeatureOn(f, "unknown") {
		t.Error("unknown key should be off")
	}
	if !FeatureOn(f, model.FeatureSuppliers) {
		t.Error("suppliers should be on")
	}
	state := FeatureState(f)
	if len(state) != len(model.FeatureCatalog) || !state[model.FeatureSuppliers] || state[model.FeatureOrders] {
		t.Errorf("FeatureState = %v", state)
	}
}
