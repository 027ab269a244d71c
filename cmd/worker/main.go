// Worker delivers queued mail over SMTP and sweeps expired invites.
// RABBITMQ_URL and SMTP_HOST are required; the invite sweep runs only with
// the MySQL store.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/newdeli/backoffice/internal/config"
	"github.com/newdeli/backoffice/internal/database"
	"github.com/newdeli/backoffice/internal/logger"
	"github.com/newdeli/backoffice/internal/mail"
	"github.com/newdeli/backoffice/internal/queue"
	"github.com/newdeli/backoffice/internal/repository"
)

const sweepEvery = time.Hour

func main() {
	cfg := config.Load()
	lg := logger.InitLogger(logger.LogConfig{Level: cfg.LogLevel, Environment: cfg.Env, ServiceName: "backoffice-worker"})
	defer func() { _ = lg.Sync() }()

	if cfg.AMQPURL == "" {
		lg.Fatal("worker: RABBITMQ_URL is required")
	}
	if cfg.SMTPHost == "" {
		lg.Fatal("worker: SMTP_HOST is required")
	}
	sender := mail.SMTPSender{
		Host: cfg.SMTPHost,
		Port: cfg.SMTPPort,
		User: cfg.SMTPUser,
		Pass: cfg.SMTPPass,
		From: cfg.MailFrom,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		lg.Info("worker: shutting down")
		cancel()
	}()

	if cfg.StoreDriver == config.StoreMySQL {
		db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
		if err != nil {
			lg.Fatal("worker: database connect failed", zap.Error(err))
		}
		defer db.Close()
		go sweepInvites(ctx, repository.NewInviteRepo(db), lg.Named("sweep"))
	}

	deliver := func(ctx context.Context, msg queue.MailMessage) error {
		sendCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		if err := sender.Send(sendCtx, msg); err != nil {
			lg.Warn("mail delivery failed", zap.String("kind", msg.Kind), zap.Error(err))
			return err
		}
		return nil
	}
	lg.Info("worker: consuming mail queue", zap.String("queue", queue.MailQueueName))
	if err := queue.StartMailConsumer(ctx, cfg.AMQPURL, deliver, lg.Named("queue")); err != nil && ctx.Err() == nil {
		lg.Error("worker: consumer stopped", zap.Error(err))
	}
	lg.Info("worker: stopped")
}

type expiredInvites interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

func sweepInvites(ctx context.Context, invites expiredInvites, lg *zap.Logger) {
	t := time.NewTicker(sweepEvery)
	defer t.Stop()
	for {
		n, err := invites.DeleteExpired(ctx, time.Now())
		switch {
		case err != nil && ctx.Err() == nil:
			lg.Warn("invite sweep failed", zap.Error(err))
		case n > 0:
			lg.Info("expired invites removed", zap.Int64("count", n))
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}
