// Package access holds the pure authorization rules: resolving a user's
// role in a tenant, deciding who may manage whom, and feature lookups.
// Nothing here touches storage or HTTP.
package access

import (
	"strings"

	"github.com/newdeli/backoffice/internal/model"
)

// ResolveRole returns the role user holds in tenantID.  It matches on the
// membership list only; the user's stored active-tenant pointer is never
// consulted.  Any fault yields ("", false).
func ResolveRole(user *model.User, tenantID string) (role model.Role, ok bool) {
	defer func() {
		if recover() != nil {
			role, ok = "", false
		}
	}()
	want := normalizeID(tenantID)
	if user == nil || want == "" {
		return "", false
	}
	for _, m := range user.Memberships {
		if normalizeID(m.TenantID) == want {
			return m.Role, true
		}
	}
	return "", false
}

// CanManage reports whether an actor with role actor may remove, demote or
// otherwise administer a member holding role target.  Only owners and
// managers administer the team, and only members they strictly outrank:
// nobody acts on an owner and a manager cannot act on another manager.
func CanManage(actor, target model.Role) bool {
	if !actor.In(model.RoleOwner, model.RoleManager) {
		return false
	}
	return actor.Outranks(target)
}

// HomeFor returns the landing page for a role.
func HomeFor(role model.Role) string {
	if role.In(model.RoleOwner, model.RoleManager, model.RoleShiftManager) {
		return "/manager"
	}
	return "/worker"
}

// FeatureOn reports whether key is enabled in features, defaulting to false.
func FeatureOn(features model.Features, key string) bool {
	return features.On(key)
}

// FeatureState evaluates every catalog feature against features.
func FeatureState(features model.Features) map[string]bool {
	out := make(map[string]bool, len(model.FeatureCatalog))
	for _, f := range model.FeatureCatalog {
		out[f.Key] = features.On(f.Key)
	}
	return out
}

func normalizeID(id string) string { return strings.ToLower(strings.TrimSpace(id)) }
