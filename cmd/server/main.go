package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/newdeli/backoffice/internal/app"
	"github.com/newdeli/backoffice/internal/config"
	"github.com/newdeli/backoffice/internal/database"
	"github.com/newdeli/backoffice/internal/handler"
	"github.com/newdeli/backoffice/internal/logger"
	"github.com/newdeli/backoffice/internal/mail"
	"github.com/newdeli/backoffice/internal/metrics"
	"github.com/newdeli/backoffice/internal/pending"
	"github.com/newdeli/backoffice/internal/queue"
	"github.com/newdeli/backoffice/internal/repository/memstore"
)

func main() {
	cfg := config.Load()
	lg := logger.InitLogger(logger.LogConfig{Level: cfg.LogLevel, Environment: cfg.Env, ServiceName: "backoffice"})
	defer func() { _ = lg.Sync() }()
	metrics.Register(nil)

	rdb := config.NewRedisClient()
	if rdb == nil {
		lg.Warn("redis unreachable; using in-process pending store, rate limiting and feature cache off")
	} else {
		defer rdb.Close()
	}

	fc := config.LoadFeatureCacheConfig()
	probes := map[string]handler.Pinger{}
	var stores app.Stores
	switch cfg.StoreDriver {
	case config.StoreMemory:
		lg.Warn("using in-memory store; data is lost on restart")
		stores = app.MemoryStores(memstore.NewStore(), rdb, fc)
	default:
		db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
		if err != nil {
			lg.Fatal("database connect failed", zap.Error(err))
		}
		defer db.Close()
		probes["db"] = db
		stores = app.MySQLStores(db, rdb, fc)
	}

	var pend pending.Store
	if rdb != nil {
		probes["redis"] = app.RedisPinger{Client: rdb}
		pend = pending.NewRedisStore(rdb, "pending")
	} else {
		pend = pending.NewMemoryStore(time.Now)
	}

	mailer, closeMailer := newMailer(cfg, lg)
	defer closeMailer()

	e := app.New(app.Options{
		Cfg:       cfg,
		RateLimit: config.LoadRateLimitConfig(),
		Redis:     rdb,
		Stores:    stores,
		Pending:   pend,
		Mailer:    mailer,
		Probes:    probes,
		Log:       lg,
	})

	addr := ":" + cfg.Port
	go func() {
		lg.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env), zap.String("store", cfg.StoreDriver))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	lg.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		lg.Error("shutdown", zap.Error(err))
	}
}

// newMailer picks the broker when RABBITMQ_URL is set, then direct SMTP,
// and finally the log.
func newMailer(cfg config.Config, lg *zap.Logger) (mail.Mailer, func()) {
	switch {
	case cfg.AMQPURL != "":
		pub := queue.NewPublisher(cfg.AMQPURL)
		lg.Info("mail goes through the broker")
		return mail.Queued{Pub: pub}, func() { _ = pub.Close() }
	case cfg.SMTPHost != "":
		return smtpSender(cfg), func() {}
	default:
		lg.Warn("no SMTP_HOST or RABBITMQ_URL; emails are only logged")
		return mail.Log{Logger: lg.Named("mail")}, func() {}
	}
}

func smtpSender(cfg config.Config) mail.SMTPSender {
	return mail.SMTPSender{
		Host: cfg.SMTPHost,
		Port: cfg.SMTPPort,
		User: cfg.SMTPUser,
		Pass: cfg.SMTPPass,
		From: cfg.MailFrom,
	}
}
