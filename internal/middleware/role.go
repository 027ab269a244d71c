package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/newdeli/backoffice/internal/i18n"
	"github.com/newdeli/backoffice/internal/logger"
	"github.com/newdeli/backoffice/internal/metrics"
	"github.com/newdeli/backoffice/internal/model"
	"github.com/newdeli/backoffice/internal/response"
	"github.com/newdeli/backoffice/internal/service"
)

// DeniedLanding is where HTML requests refused by a role gate are sent.
const DeniedLanding = "/worker"

// RequireRoles admits a request only when the caller's role in the session
// tenant is one of roles.  It must run after Session.  The role is
// resolved from the user's memberships for the tenant claim; neither the
// stored active-tenant pointer nor the claim's role is trusted.
//
// A session without a tenant claim is treated as unauthenticated.  Denials
// are logged, counted and appended to the tenant's activity log when the
// caller has a tenant context.
func RequireRoles(activity *service.Activity, roles ...model.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if CurrentUser(c) == nil || TenantID(c) == "" {
				return unauthenticated(c)
			}
			actor := ActorFrom(c)
			if actor.Role != "" && actor.Role.In(roles...) {
				return next(c)
			}
			denyRole(c, activity, actor)
			if response.WantsHTML(c) {
				return c.Redirect(http.StatusFound, DeniedLanding)
			}
			return response.Fail(c, http.StatusForbidden, i18n.Forbidden)
		}
	}
}

func denyRole(c echo.Context, activity *service.Activity, actor service.Actor) {
	attempted := c.Request().Method + " " + c.Path()
	logger.FromEcho(c).Warn("access denied",
		zap.String("gate", "role"),
		zap.String("user_id", actor.User.ID),
		zap.String("tenant_id", actor.Scope.TenantID()),
		zap.String("role", string(actor.Role)),
		zap.String("attempted", attempted))
	metrics.Denied("role")
	activity.Record(c.Request().Context(), service.Entry{
		Scope:      actor.Scope,
		ActorID:    actor.User.ID,
		ActorName:  actor.User.Name,
		ActorEmail: actor.User.Email,
		Action:     service.ActionAccessDenied,
		Target:     model.ActivityTarget{Kind: "route", Label: attempted},
		Meta:       map[string]any{"gate": "role", "role": string(actor.Role)},
		IP:         actor.IP,
		UserAgent:  actor.UA,
	})
}
