// Package app assembles the services, handlers and routes of the HTTP
// server from its storage, mail and Redis dependencies.
package app

import (
	"context"
	"database/sql"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/newdeli/backoffice/internal/config"
	"github.com/newdeli/backoffice/internal/handler"
	"github.com/newdeli/backoffice/internal/mail"
	"github.com/newdeli/backoffice/internal/middleware"
	"github.com/newdeli/backoffice/internal/pending"
	"github.com/newdeli/backoffice/internal/repository"
	"github.com/newdeli/backoffice/internal/repository/memstore"
	"github.com/newdeli/backoffice/internal/router"
	"github.com/newdeli/backoffice/internal/service"
)

// Stores is one implementation of every store the services use.
type Stores struct {
	Users       service.UserStore
	Tenants     service.TenantStore
	Features    repository.FeatureStore
	Invites     service.InviteStore
	Activity    service.ActivityStore
	Suppliers   service.SupplierStore
	Orders      service.OrderStore
	Dispersions service.DispersionStore
}

// MySQLStores builds the database-backed stores.  Feature maps are read
// through the Redis cache when rdb is non-nil.
func MySQLStores(db *sql.DB, rdb *redis.Client, fc config.FeatureCacheConfig) Stores {
	tenants := repository.NewTenantRepo(db)
	return Stores{
		Users:       repository.NewUserRepo(db),
		Tenants:     tenants,
		Features:    repository.NewCachedFeatures(tenants, rdb, fc),
		Invites:     repository.NewInviteRepo(db),
		Activity:    repository.NewActivityRepo(db),
		Suppliers:   repository.NewSupplierRepo(db),
		Orders:      repository.NewOrderRepo(db),
		Dispersions: repository.NewDispersionRepo(db),
	}
}

// MemoryStores builds the in-process stores used for local runs and tests.
func MemoryStores(s *memstore.Store, rdb *redis.Client, fc config.FeatureCacheConfig) Stores {
	return Stores{
		Users:       s.Users(),
		Tenants:     s.Tenants(),
		Features:    repository.NewCachedFeatures(s.Tenants(), rdb, fc),
		Invites:     s.Invites(),
		Activity:    s.Activity(),
		Suppliers:   s.Suppliers(),
		Orders:      s.Orders(),
		Dispersions: s.Dispersions(),
	}
}

// RedisPinger adapts a Redis client to handler.Pinger.
type RedisPinger struct{ Client *redis.Client }

func (p RedisPinger) PingContext(ctx context.Context) error { return p.Client.Ping(ctx).Err() }

// Options are the server's runtime dependencies.
type Options struct {
	Cfg       config.Config
	RateLimit config.RateLimitConfig
	Redis     *redis.Client
	Stores    Stores
	Pending   pending.Store
	Mailer    mail.Mailer
	Probes    map[string]handler.Pinger
	Log       *zap.Logger
}

// New returns the configured echo instance.
func New(o Options) *echo.Echo {
	lg := o.Log
	if lg == nil {
		lg = zap.NewNop()
	}
	st := o.Stores
	cfg := o.Cfg

	activity := &service.Activity{Store: st.Activity, Log: lg.Named("activity")}
	onboard := &service.Onboarding{
		Users:      st.Users,
		Tenants:    st.Tenants,
		Invites:    st.Invites,
		Pending:    o.Pending,
		Mailer:     o.Mailer,
		Activity:   activity,
		CodeTTL:    cfg.OTPTTL,
		ResetTTL:   cfg.ResetTTL,
		BcryptCost: cfg.BcryptCost,
		BaseURL:    cfg.BaseURL,
		Log:        lg.Named("onboarding"),
	}
	team := &service.Team{
		Users:     st.Users,
		Tenants:   st.Tenants,
		Invites:   st.Invites,
		Mailer:    o.Mailer,
		Activity:  activity,
		InviteTTL: cfg.InviteTTL,
		BaseURL:   cfg.BaseURL,
		Log:       lg.Named("team"),
	}
	tenants := &service.Tenants{
		Users:     st.Users,
		Tenants:   st.Tenants,
		Invites:   st.Invites,
		Features:  st.Features,
		Suppliers: st.Suppliers,
		Activity:  activity,
		Log:       lg.Named("tenants"),
	}
	suppliers := &service.Suppliers{Store: st.Suppliers, Activity: activity}
	orders := &service.Orders{Store: st.Orders, Directory: suppliers, Activity: activity}
	dispersions := &service.Dispersions{Store: st.Dispersions, Activity: activity}

	sess := middleware.SessionConfig{Secret: cfg.JWTSecret, TTL: cfg.SessionTTL, Secure: cfg.CookieSecure}
	return router.New(router.Deps{
		Cfg:         cfg,
		RateLimit:   o.RateLimit,
		Redis:       o.Redis,
		Users:       st.Users,
		Features:    st.Features,
		Activity:    activity,
		Auth:        handler.NewAuthHandler(onboard, st.Tenants, tenants, sess),
		Team:        handler.NewTeamHandler(team),
		Tenant:      handler.NewTenantHandler(tenants, activity),
		Suppliers:   handler.NewSupplierHandler(suppliers),
		Orders:      handler.NewOrderHandler(orders),
		Dispersions: handler.NewDispersionHandler(dispersions),
		Health:      handler.Health(o.Probes),
	})
}
