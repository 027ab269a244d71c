package repository

import "strings"

// Scope carries the tenant every scoped query is filtered by.  The only way
// to get a usable Scope is ForTenant; the zero value makes scoped methods
// fail with ErrUnscoped.
type Scope struct {
	tenantID string
}

// ForTenant returns a Scope bound to tenantID.  A blank id yields the zero
// Scope.
func ForTenant(tenantID string) Scope {
	return Scope{tenantID: strings.TrimSpace(tenantID)}
}

// TenantID returns the bound tenant id.
func (s Scope) TenantID() string { return s.tenantID }

// Valid reports whether s is bound to a tenant.
func (s Scope) Valid() bool { return s.tenantID != "" }

func (s Scope) check() error {
	if !s.Valid() {
		return ErrUnscoped
	}
	return nil
}
