package model

import "time"

// User represents an identity record as stored in the `users` table
// together with its rows from `memberships`.  The email is stored
// lower-cased and is globally unique.
//
// Fields:
//  ID              – UUID primary key.
//  Email           – unique, normalized email address.
//  Name            – display name.
//  PasswordHash    – bcrypt hash; empty until the user sets a password.
//  ActiveTenantID  – last tenant the user signed into.  Only a hint for the
//                    next login; request authorization uses the session claim.
//  IsPlatformAdmin – grants access to the platform administration surface.
//  Memberships     – one entry per tenant the user belongs to.
type User struct {
	ID              string
	Email           string
	Name            string
	PasswordHash    string
	ActiveTenantID  string
	IsPlatformAdmin bool
	Memberships     []Membership
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Membership pairs a tenant with the role the user holds in it.
// At most one membership exists per (user, tenant).
type Membership struct {
	TenantID  string
	Role      Role
	CreatedAt time.Time
}

// HasPassword reports whether a password credential has been set.
func (u *User) HasPassword() bool { return u.PasswordHash != "" }

// Membership returns the membership for tenantID, if any.
func (u *User) Membership(tenantID string) (Membership, bool) {
	for _, m := range u.Memberships {
		if m.TenantID == tenantID {
			return m, true
		}
	}
	return Membership{}, false
}

// Member is a projection of a user inside one tenant, used by team listings.
type Member struct {
	UserID string
	Name   string
	Email  string
	Role   Role
}
