package omise

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/omise/omise-go"
	"github.com/omise/omise-go/operations"

	"staybook/internal/domain/booking"
	"staybook/internal/domain/payment"
	"staybook/internal/domain/shared/money"
)

// Verify re-fetches a webhook event from Omise, so only events Omise knows
// about are trusted. ok is false for event keys the reconciler does not use.
func (p *Provider) Verify(ctx context.Context, eventID string) (ev payment.ProviderEvent, ok bool, err error) {
	event := &omise.Event{}
	err = p.call(ctx, "retrieve event", func() error {
		return p.client.Do(event, &operations.RetrieveEvent{EventID: eventID})
	})
	if err != nil {
		return payment.ProviderEvent{}, false, err
	}
	return mapEvent(event)
}

func mapEvent(event *omise.Event) (payment.ProviderEvent, bool, error) {
	raw, err := json.Marshal(event.Data)
	if err != nil {
		return payment.ProviderEvent{}, false, err
	}
	out := payment.ProviderEvent{ID: event.ID, At: event.Created.UTC()}

	switch event.Key {
	case "charge.complete":
		var ch omise.Charge
		if err := json.Unmarshal(raw, &ch); err != nil {
			return payment.ProviderEvent{}, false, err
		}
		out.IntentID = ch.ID
		out.Amount = money.FromMinorUnits(ch.Amount, strings.ToUpper(ch.Currency))
		if id, ok := ch.Metadata["booking_id"].(string); ok {
			out.BookingID = booking.BookingID(id)
		}
		switch chargeStatus(&ch) {
		case "succeeded":
			out.Type = payment.EventSucceeded
		case "failed":
			out.Type = payment.EventFailed
			if ch.FailureCode != nil {
				out.Reason = *ch.FailureCode
			}
		default:
			return payment.ProviderEvent{}, false, nil
		}
	case "refund.create":
		var refund omise.Refund
		if err := json.Unmarshal(raw, &refund); err != nil {
			return payment.ProviderEvent{}, false, err
		}
		out.Type = payment.EventRefunded
		out.IntentID = refund.Charge
		out.Amount = money.FromMinorUnits(refund.Amount, strings.ToUpper(refund.Currency))
	default:
		return payment.ProviderEvent{}, false, nil
	}
	return out, true, out.Validate()
}
