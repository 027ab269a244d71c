package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// MailHandler delivers one message.  A returned error requeues the delivery
// once; a second failure drops it.
type MailHandler func(ctx context.Context, msg MailMessage) error

// StartMailConsumer connects to the broker, declares MailQueueName and feeds
// every delivery to handle.  It reconnects with exponential backoff (capped
// at 30s) and returns only when ctx is cancelled.
func StartMailConsumer(ctx context.Context, url string, handle MailHandler, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	backoff := time.Second
	for {
		conn, err := amqp.Dial(url)
		if err != nil {
			log.Warn("mail-consumer: dial failed", zap.Error(err), zap.Duration("retry_in", backoff))
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = consumeLoop(ctx, conn, handle, log)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn("mail-consumer: consume loop ended, reconnecting", zap.Error(err))
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, handle MailHandler, log *zap.Logger) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(10, 0, false); err != nil {
		log.Warn("mail-consumer: set QoS failed", zap.Error(err))
	}
	if _, err := ch.QueueDeclare(MailQueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(MailQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := Dispatch(ctx, d.Body, handle); err != nil {
				requeue := shouldRequeue(err, d.Redelivered)
				log.Error("mail-consumer: delivery failed", zap.Bool("requeue", requeue), zap.Error(err))
				_ = d.Nack(false, requeue)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// ErrBadMessage marks a delivery whose body can never be sent.
var ErrBadMessage = errors.New("malformed mail message")

// shouldRequeue decides whether a failed delivery goes back on the queue.
// Handler failures get one more attempt; malformed bodies are dropped.
func shouldRequeue(err error, redelivered bool) bool {
	return !errors.Is(err, ErrBadMessage) && !redelivered
}

// Dispatch decodes body and hands it to handle.  Decode failures wrap
// ErrBadMessage.
func Dispatch(ctx context.Context, body []byte, handle MailHandler) error {
	msg, err := DecodeMail(body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadMessage, err)
	}
	return handle(ctx, msg)
}
