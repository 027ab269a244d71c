// Package mail renders and delivers outbound email.  Delivery goes through
// a Mailer: straight to SMTP, onto the broker for cmd/worker, or into the
// log on developer machines.
package mail

import (
	"context"

	"go.uber.org/zap"

	"github.com/newdeli/backoffice/internal/queue"
)

// Message is one outbound email.
type Message = queue.MailMessage

// Mailer delivers a message or reports why it could not.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// Queued hands messages to the broker; cmd/worker sends them.
type Queued struct{ Pub *queue.Publisher }

func (q Queued) Send(ctx context.Context, msg Message) error { return q.Pub.Publish(ctx, msg) }

// Log writes messages to the logger instead of sending them.
type Log struct{ Logger *zap.Logger }

func (l Log) Send(_ context.Context, msg Message) error {
	lg := l.Logger
	if lg == nil {
		lg = zap.NewNop()
	}
	lg.Info("mail (not sent)",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("kind", msg.Kind),
		zap.String("text", msg.Text),
	)
	return nil
}
