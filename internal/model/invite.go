package model

import "time"

// Invite is a pending offer of a role in a tenant to an email address.
// Tokens are unique and single-use; rows past ExpiresAt are pruned by the
// database and are never honoured even before pruning.
type Invite struct {
	ID        string
	TenantID  string
	Email     string
	Role      Role
	Token     string
	ExpiresAt time.Time
	CreatedBy string
	CreatedAt time.Time
}

// Expired reports whether the invite is no longer usable at now.
func (i *Invite) Expired(now time.Time) bool { return !now.Before(i.ExpiresAt) }
