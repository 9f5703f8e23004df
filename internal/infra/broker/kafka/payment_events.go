package kafka

import (
	"context"
	"log/slog"
	"time"

	"github.com/IBM/sarama"

	"staybook/internal/infra/broker"
	"staybook/internal/infra/obs"
)

// PaymentEventHandler feeds payment events from Kafka into the reconciler.
type PaymentEventHandler struct {
	Reconciler broker.Reconciler
	Logger     *slog.Logger
	// Backoff is waited between attempts for events worth redelivering.
	Backoff []time.Duration
}

func (h PaymentEventHandler) Handle(ctx context.Context, msg *sarama.ConsumerMessage) error {
	logger := h.logger().With("topic", msg.Topic, "offset", msg.Offset)
	ev, err := broker.DecodePaymentEvent(msg.Value)
	if err != nil {
		logger.Error("dropping undecodable payment event", "error", err)
		return nil
	}
	ctx = obs.WithRequestID(ctx, ev.ID)

	for attempt := 0; ; attempt++ {
		out, err := h.Reconciler.Handle(ctx, ev)
		if err == nil {
			logger.Info("payment event reconciled", "event_id", ev.ID, "booking_id", out.BookingID, "applied", out.Applied, "duplicate", out.Duplicate, "flagged", out.Flagged)
			return nil
		}
		if !broker.Redeliver(err) {
			logger.Error("payment event rejected", "event_id", ev.ID, "type", ev.Type, "error", err)
			return nil
		}
		if attempt >= len(h.Backoff) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(h.Backoff[attempt]):
		}
	}
}

func (h PaymentEventHandler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}
