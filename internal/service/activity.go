package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/newdeli/backoffice/internal/i18n"
	"github.com/newdeli/backoffice/internal/model"
	"github.com/newdeli/backoffice/internal/repository"
)

// Activity actions written by this package and the middleware.
const (
	ActionTenantCreated     = "tenant:create"
	ActionTenantUpdated     = "tenant:update"
	ActionInviteCreated     = "invite:create"
	ActionInviteRevoked     = "invite:revoke"
	ActionInviteResent      = "invite:resend"
	ActionInviteAccepted    = "invite:accept"
	ActionMemberAdded       = "member:add"
	ActionMemberUpdated     = "member:update"
	ActionMemberRemoved     = "member:remove"
	ActionSupplierCreated   = "supplier:create"
	ActionSupplierUpdated   = "supplier:update"
	ActionSupplierDeleted   = "supplier:delete"
	ActionOrdersSaved       = "order:save"
	ActionOrderUpdated      = "order:update"
	ActionOrderDeleted      = "order:delete"
	ActionDispersionCreated = "dispersion:create"
	ActionDispersionUpdated = "dispersion:update"
	ActionDispersionDeleted = "dispersion:delete"
	ActionAccessDenied      = "access:denied"
)

const (
	defaultLogLimit = 30
	maxLogLimit     = 100
)

// Entry is one audit record to append.
type Entry struct {
	Scope      repository.Scope
	ActorID    string
	ActorName  string
	ActorEmail string
	Action     string
	Target     model.ActivityTarget
	Meta       map[string]any
	IP         string
	UserAgent  string
}

// Activity appends to and reads the per-tenant audit trail.
type Activity struct {
	Store ActivityStore
	Log   *zap.Logger
}

func (a *Activity) logger() *zap.Logger {
	if a == nil || a.Log == nil {
		return zap.NewNop()
	}
	return a.Log
}

// Record appends e.  Failures are logged and dropped; an audit write never
// fails the operation that triggered it.
func (a *Activity) Record(ctx context.Context, e Entry) {
	if a == nil || a.Store == nil {
		return
	}
	err := a.Store.Append(ctx, e.Scope, &model.ActivityLog{
		ActorID:    e.ActorID,
		ActorName:  e.ActorName,
		ActorEmail: e.ActorEmail,
		Action:     e.Action,
		Target:     e.Target,
		Meta:       e.Meta,
		IP:         e.IP,
		UserAgent:  e.UserAgent,
	})
	if err != nil {
		a.logger().Warn("activity append failed",
			zap.String("action", e.Action),
			zap.String("tenant_id", e.Scope.TenantID()),
			zap.Error(err))
	}
}

// List returns up to limit entries of the actor's tenant, newest first.
// limit <= 0 means the default of 30 and values above 100 are capped.
func (a *Activity) List(ctx context.Context, actor Actor, limit int, since time.Time) ([]model.ActivityLog, error) {
	if !actor.Role.In(model.RoleOwner, model.RoleManager, model.RoleShiftManager) {
		return nil, forbidden(i18n.Forbidden)
	}
	if limit <= 0 {
		limit = defaultLogLimit
	}
	if limit > maxLogLimit {
		limit = maxLogLimit
	}
	logs, err := a.Store.List(ctx, actor.Scope, limit, since)
	if err != nil {
		return nil, internal(err)
	}
	return logs, nil
}
