package router // package router wires handlers and gates onto the echo instance

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/newdeli/backoffice/internal/config"
	"github.com/newdeli/backoffice/internal/handler"
	"github.com/newdeli/backoffice/internal/logger"
	"github.com/newdeli/backoffice/internal/metrics"
	"github.com/newdeli/backoffice/internal/middleware"
	"github.com/newdeli/backoffice/internal/model"
	"github.com/newdeli/backoffice/internal/repository"
	"github.com/newdeli/backoffice/internal/response"
	"github.com/newdeli/backoffice/internal/service"
)

// Deps is everything the routes need.  Redis may be nil, which disables
// rate limiting.
type Deps struct {
	Cfg       config.Config
	RateLimit config.RateLimitConfig
	Redis     *redis.Client

	Users    middleware.UserLoader
	Features repository.FeatureStore
	Activity *service.Activity

	Auth        *handler.AuthHandler
	Team        *handler.TeamHandler
	Tenant      *handler.TenantHandler
	Suppliers   *handler.SupplierHandler
	Orders      *handler.OrderHandler
	Dispersions *handler.DispersionHandler
	Health      echo.HandlerFunc
}

var (
	anyRole     = model.AllRoles
	teamAdmins  = []model.Role{model.RoleOwner, model.RoleManager}
	supervisors = []model.Role{model.RoleOwner, model.RoleManager, model.RoleShiftManager}
)

// New builds the echo instance with the global middleware and every route.
func New(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = response.HTTPErrorHandler
	response.Debug = !d.Cfg.IsProd()

	e.Use(echomw.Recover())
	e.Use(logger.Middleware)
	e.Use(metrics.Middleware)

	RegisterRoutes(e, d)
	RegisterAuth(e, d)
	RegisterTenant(e, d)
	RegisterAdmin(e, d)
	return e
}

// RegisterRoutes registers the probes.
func RegisterRoutes(e *echo.Echo, d Deps) {
	health := d.Health
	if health == nil {
		health = handler.Health(nil)
	}
	e.GET("/healthz", health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

func session(d Deps) echo.MiddlewareFunc {
	return middleware.Session(d.Cfg.JWTSecret, d.Users)
}

// RegisterAuth registers sign-up, invite, login and session routes.  The
// unauthenticated /auth endpoints sit behind the token bucket.
func RegisterAuth(e *echo.Echo, d Deps) {
	a := d.Auth
	g := e.Group("/auth", middleware.NewTokenBucket(d.RateLimit, d.Redis))
	g.POST("/request-email-code", a.RequestEmailCode)
	g.POST("/verify-email-code", a.VerifyEmailCode)
	g.GET("/invite/:token", a.GetInvite)
	g.POST("/accept-invite", a.AcceptInvite)
	g.POST("/login", a.Login)
	g.POST("/employee/login", a.Login)
	g.POST("/forgot-password", a.ForgotPassword)
	g.POST("/employee/reset", a.ResetPassword)
	g.POST("/switch-tenant", a.SwitchTenant, session(d))

	e.GET("/me", a.Me, session(d))
	e.POST("/logout", a.Logout)
	e.GET("/logout", a.Logout)
	e.PUT("/api/user/update", a.UpdateProfile, session(d))
}

// RegisterTenant registers the tenant-scoped API.  Every route resolves the
// caller's role for the session tenant before reaching its handler.
func RegisterTenant(e *echo.Echo, d Deps) {
	api := e.Group("/api", session(d))
	roles := func(rs ...model.Role) echo.MiddlewareFunc { return middleware.RequireRoles(d.Activity, rs...) }

	api.GET("/tenant/info", d.Tenant.Info, roles(anyRole...))
	api.PUT("/tenant/update", d.Tenant.Update, roles(model.RoleOwner))
	api.GET("/logs", d.Tenant.Logs, roles(supervisors...))

	team := api.Group("/team", roles(teamAdmins...))
	team.POST("/invite", d.Team.Invite)
	team.GET("/invites", d.Team.ListInvites)
	team.DELETE("/invites/:id", d.Team.RevokeInvite)
	team.POST("/invites/:id/resend", d.Team.ResendInvite)
	team.GET("/members", d.Team.Members)
	team.POST("/members", d.Team.AddMember)
	team.PUT("/members/:id", d.Team.UpdateMember)
	api.DELETE("/users/:id", d.Team.RemoveMember, roles(teamAdmins...))

	sup := api.Group("/suppliers", roles(anyRole...), middleware.RequireFeature(model.FeatureSuppliers, d.Features))
	sup.GET("", d.Suppliers.List)
	sup.GET("/by-day/:day", d.Suppliers.ByDay)
	sup.GET("/:id", d.Suppliers.Get)
	sup.POST("", d.Suppliers.Create, roles(supervisors...))
	sup.PUT("/:id", d.Suppliers.Update, roles(supervisors...))
	sup.DELETE("/:id", d.Suppliers.Delete, roles(supervisors...))

	ord := api.Group("/orders", roles(anyRole...), middleware.RequireFeature(model.FeatureOrders, d.Features))
	ord.GET("", d.Orders.List)
	ord.GET("/suppliers-by-date", d.Orders.SuppliersByDate)
	ord.GET("/stats/summary", d.Orders.Stats)
	ord.GET("/:id", d.Orders.Get)
	ord.POST("", d.Orders.SaveBatch, roles(supervisors...))
	ord.PUT("/:id", d.Orders.Update, roles(supervisors...))
	ord.DELETE("/:id", d.Orders.Delete, roles(supervisors...))

	disp := api.Group("/dispersions", roles(anyRole...), middleware.RequireFeature(model.FeatureDispersions, d.Features))
	disp.GET("/list", d.Dispersions.List)
	disp.GET("/search", d.Dispersions.Search)
	disp.POST("", d.Dispersions.Create, roles(supervisors...))
	disp.PUT("/:id", d.Dispersions.Update, roles(supervisors...))
	disp.DELETE("/:id", d.Dispersions.Delete, roles(supervisors...))
}

// RegisterAdmin registers the platform administration surface.
func RegisterAdmin(e *echo.Echo, d Deps) {
	g := e.Group("/api/admin", middleware.RequirePlatformAdmin(middleware.PlatformConfig{
		SessionSecret: d.Cfg.JWTSecret,
		AdminSecret:   d.Cfg.AdminSecret,
		AdminEmails:   d.Cfg.PlatformAdminEmails,
	}, d.Users))
	g.GET("/features-catalog", d.Tenant.FeatureCatalog)
	g.GET("/tenants", d.Tenant.ListTenants)
	g.PUT("/tenants/:id/features", d.Tenant.SetFeatures)
}
