package model

import "strings"

// Role is the privilege a user holds inside a tenant.
type Role string

const (
	RoleOwner        Role = "owner"
	RoleManager      Role = "manager"
	RoleShiftManager Role = "shift_manager"
	RoleEmployee     Role = "employee"
)

// AllRoles lists every role from most to least privileged.
var AllRoles = []Role{RoleOwner, RoleManager, RoleShiftManager, RoleEmployee}

// ParseRole normalizes s and reports whether it names a known role.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	return r, r.Valid()
}

// Valid reports whether r is one of the enumerated roles.
func (r Role) Valid() bool { return r.Rank() > 0 }

// Rank places r on the total privilege order
// owner > manager > shift_manager > employee.  Unknown roles rank 0.
func (r Role) Rank() int {
	switch r {
	case RoleOwner:
		return 4
	case RoleManager:
		return 3
	case RoleShiftManager:
		return 2
	case RoleEmployee:
		return 1
	}
	return 0
}

// Outranks reports whether r is strictly more privileged than other.
func (r Role) Outranks(other Role) bool { return r.Rank() > other.Rank() }

// In reports whether r is a member of set.
func (r Role) In(set ...Role) bool {
	for _, s := range set {
		if r == s {
			return true
		}
	}
	return false
}

func (r Role) String() string { return string(r) }
