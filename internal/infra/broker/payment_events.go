// Package broker holds the wire format shared by the payment event consumers.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"staybook/internal/app/dto"
	"staybook/internal/domain/booking"
	"staybook/internal/domain/payment"
	"staybook/internal/domain/shared/apperr"
	"staybook/internal/domain/shared/money"
)

// Reconciler applies a provider event to local state.
type Reconciler interface {
	Handle(ctx context.Context, ev payment.ProviderEvent) (dto.ReconcileOutcome, error)
}

// PaymentEventMessage is the JSON body of a payment event. It may arrive bare
// or wrapped in a CloudEvents envelope under "data".
type PaymentEventMessage struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	IntentID   string    `json:"intent_id"`
	BookingID  string    `json:"booking_id"`
	Amount     int64     `json:"amount"`
	Currency   string    `json:"currency"`
	Reason     string    `json:"reason"`
	OccurredAt time.Time `json:"occurred_at"`
}

type cloudEvent struct {
	SpecVersion string              `json:"specversion"`
	ID          string              `json:"id"`
	Type        string              `json:"type"`
	Time        time.Time           `json:"time"`
	Data        PaymentEventMessage `json:"data"`
}

// DecodePaymentEvent parses a message body into a validated provider event.
func DecodePaymentEvent(body []byte) (payment.ProviderEvent, error) {
	var env cloudEvent
	if err := json.Unmarshal(body, &env); err != nil {
		return payment.ProviderEvent{}, apperr.Wrap(apperr.ErrValidation, "broker: malformed payment event", err)
	}
	msg := env.Data
	if env.SpecVersion == "" {
		if err := json.Unmarshal(body, &msg); err != nil {
			return payment.ProviderEvent{}, apperr.Wrap(apperr.ErrValidation, "broker: malformed payment event", err)
		}
	} else {
		if msg.ID == "" {
			msg.ID = env.ID
		}
		if msg.Type == "" {
			msg.Type = strings.TrimSuffix(env.Type, ".v1")
		}
		if msg.OccurredAt.IsZero() {
			msg.OccurredAt = env.Time
		}
	}
	ev := payment.ProviderEvent{
		ID:        strings.TrimSpace(msg.ID),
		Type:      payment.EventType(strings.TrimSpace(msg.Type)),
		IntentID:  strings.TrimSpace(msg.IntentID),
		BookingID: booking.BookingID(strings.TrimSpace(msg.BookingID)),
		Reason:    msg.Reason,
		At:        msg.OccurredAt.UTC(),
	}
	if msg.Currency != "" {
		amount, err := money.New(msg.Amount, msg.Currency)
		if err != nil {
			return payment.ProviderEvent{}, apperr.Wrap(apperr.ErrValidation, fmt.Sprintf("broker: event %s currency", ev.ID), err)
		}
		ev.Amount = amount
	}
	if err := ev.Validate(); err != nil {
		return payment.ProviderEvent{}, err
	}
	return ev, nil
}

// Redeliver reports whether a failed event should be offered again. Events that
// can never apply are dropped so they do not block the stream.
func Redeliver(err error) bool {
	if err == nil {
		return false
	}
	if apperr.IsRetryable(err) {
		return true
	}
	return apperr.KindOf(err) == nil || apperr.KindOf(err) == apperr.ErrConflict
}
