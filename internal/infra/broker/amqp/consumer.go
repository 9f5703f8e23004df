package amqp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"staybook/internal/domain/payment"
	"staybook/internal/infra/broker"
	"staybook/internal/infra/obs"
)

// PaymentRoutingKeys are the topic bindings for provider payment events.
var PaymentRoutingKeys = []string{
	string(payment.EventSucceeded),
	string(payment.EventFailed),
	string(payment.EventRefunded),
}

type Consumer struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
	queue    string
	keys     []string
	logger   *slog.Logger
}

func NewConsumer(url, exchange, queue string, keys []string, logger *slog.Logger) (*Consumer, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	fail := func(step string, err error) (*Consumer, error) {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("%s: %w", step, err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return fail("declare exchange", err)
	}
	q, err := ch.QueueDeclare(queue, true, false, false, false, nil)
	if err != nil {
		return fail("declare queue", err)
	}
	for _, rk := range keys {
		if err := ch.QueueBind(q.Name, rk, exchange, false, nil); err != nil {
			return fail("bind "+rk, err)
		}
	}
	if err := ch.Qos(16, 0, false); err != nil {
		return fail("qos", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{conn: conn, ch: ch, exchange: exchange, queue: q.Name, keys: keys, logger: logger}, nil
}

// RunPayments consumes payment events until ctx is done. Deliveries are acked
// once reconciled or rejected for good, and requeued when worth retrying.
func (c *Consumer) RunPayments(ctx context.Context, rec broker.Reconciler) error {
	deliveries, err := c.ch.ConsumeWithContext(ctx, c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", c.queue, err)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return errors.New("amqp: delivery channel closed")
			}
			c.handle(ctx, rec, d)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, rec broker.Reconciler, d amqp.Delivery) {
	logger := c.logger.With("routing_key", d.RoutingKey, "delivery_tag", d.DeliveryTag)
	ev, err := broker.DecodePaymentEvent(d.Body)
	if err != nil {
		logger.Error("dropping undecodable payment event", "error", err)
		_ = d.Nack(false, false)
		return
	}
	out, err := rec.Handle(obs.WithRequestID(ctx, ev.ID), ev)
	switch {
	case err == nil:
		logger.Info("payment event reconciled", "event_id", ev.ID, "booking_id", out.BookingID, "applied", out.Applied, "duplicate", out.Duplicate, "flagged", out.Flagged)
		_ = d.Ack(false)
	case broker.Redeliver(err) && !d.Redelivered:
		logger.Warn("payment event requeued", "event_id", ev.ID, "error", err)
		_ = d.Nack(false, true)
	default:
		logger.Error("payment event rejected", "event_id", ev.ID, "type", ev.Type, "error", err)
		_ = d.Nack(false, false)
	}
}

func (c *Consumer) Close() error {
	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
