package payment

import (
	"strings"
	"time"

	"staybook/internal/domain/booking"
	"staybook/internal/domain/shared/apperr"
	"staybook/internal/domain/shared/money"
)

var (
	ErrUnknownEventType = apperr.Validation("payment: unsupported event type")
	ErrEventIDRequired  = apperr.Validation("payment: event id required")
)

type EventType string

const (
	EventSucceeded EventType = "payment.succeeded"
	EventFailed    EventType = "payment.failed"
	EventRefunded  EventType = "payment.refunded"
)

// ProviderEvent is a normalised notification from the payment provider.
type ProviderEvent struct {
	ID        string
	Type      EventType
	IntentID  string
	BookingID booking.BookingID
	Amount    money.Money
	Reason    string
	At        time.Time
}

func (e ProviderEvent) Validate() error {
	if strings.TrimSpace(e.ID) == "" {
		return ErrEventIDRequired
	}
	switch e.Type {
	case EventSucceeded, EventFailed, EventRefunded:
	default:
		return ErrUnknownEventType
	}
	if strings.TrimSpace(e.IntentID) == "" && e.BookingID == "" {
		return ErrIntentRequired
	}
	return nil
}
