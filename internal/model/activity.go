package model

import "time"

// ActivityLog is an append-only audit entry scoped to a tenant.
type ActivityLog struct {
	ID         string
	TenantID   string
	ActorID    string
	ActorName  string
	ActorEmail string
	Action     string // e.g. "member:remove", "tenant:update"
	Target     ActivityTarget
	Meta       map[string]any
	IP         string
	UserAgent  string
	CreatedAt  time.Time
}

// ActivityTarget describes what an action was applied to.
type ActivityTarget struct {
	Kind  string `json:"kind,omitempty"`
	ID    string `json:"id,omitempty"`
	Label string `json:"label,omitempty"`
	Email string `json:"email,omitempty"`
}
