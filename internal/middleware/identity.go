package middleware

// identity.go exposes what Session stored in the echo context: the user,
// the verified claims and the tenant-scoped actor built from them.

import (
	"github.com/labstack/echo/v4"

	"github.com/newdeli/backoffice/internal/access"
	"github.com/newdeli/backoffice/internal/model"
	"github.com/newdeli/backoffice/internal/repository"
	"github.com/newdeli/backoffice/internal/service"
	"github.com/newdeli/backoffice/internal/utils"
)

const (
	ctxUser   = "session.user"
	ctxClaims = "session.claims"
)

// CurrentUser returns the session user, or nil outside Session.
func CurrentUser(c echo.Context) *model.User {
	u, _ := c.Get(ctxUser).(*model.User)
	return u
}

// Claims returns the verified session claims.
func Claims(c echo.Context) (utils.SessionClaims, bool) {
	cl, ok := c.Get(ctxClaims).(utils.SessionClaims)
	return cl, ok
}

// TenantID is the request's tenant context: the session's tenant claim.
// The user's stored active-tenant pointer is never used here.
func TenantID(c echo.Context) string {
	cl, _ := Claims(c)
	return cl.TenantID
}

// ActorFrom builds the service caller for the request.  Role is resolved
// from the user's memberships for the claimed tenant and is empty when the
// user holds none there.
func ActorFrom(c echo.Context) service.Actor {
	u := CurrentUser(c)
	tid := TenantID(c)
	role, _ := access.ResolveRole(u, tid)
	return service.Actor{
		User:  u,
		Role:  role,
		Scope: repository.ForTenant(tid),
		IP:    c.RealIP(),
		UA:    c.Request().UserAgent(),
	}
}

// currentUserID keys per-user rate limits; anonymous callers share "anon".
func currentUserID(c echo.Context) string {
	if cl, ok := Claims(c); ok && cl.UserID != "" {
		return cl.UserID
	}
	return "anon"
}
