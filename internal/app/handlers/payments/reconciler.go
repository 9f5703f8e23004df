package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"staybook/internal/app/commands"
	"staybook/internal/app/dto"
	bookinghandlers "staybook/internal/app/handlers/booking"
	"staybook/internal/app/policies"
	"staybook/internal/app/queries"
	domainpayment "staybook/internal/domain/payment"
	"staybook/internal/domain/shared/apperr"
)

// Inbox records provider event ids that have been handled.
type Inbox interface {
	// Claim returns false when the event id was claimed before.
	Claim(ctx context.Context, eventID string) (bool, error)
	// Release forgets a claim so a redelivery is processed again.
	Release(ctx context.Context, eventID string) error
}

// Reconciler maps provider events onto booking transitions. Delivery is
// at least once; duplicates are absorbed by the inbox and by the idempotent
// transitions themselves.
type Reconciler struct {
	Commands commands.Bus
	Queries  queries.Bus
	Inbox    Inbox
	Receipts policies.ReceiptStore
	Logger   *slog.Logger
	Clock    func() time.Time
}

func (r *Reconciler) Handle(ctx context.Context, ev domainpayment.ProviderEvent) (dto.ReconcileOutcome, error) {
	out := dto.ReconcileOutcome{EventID: ev.ID}
	if err := ev.Validate(); err != nil {
		return out, err
	}
	if r.Inbox != nil {
		claimed, err := r.Inbox.Claim(ctx, ev.ID)
		if err != nil {
			return out, err
		}
		if !claimed {
			out.Duplicate = true
			return out, nil
		}
	}

	res, err := r.apply(ctx, ev, &out)
	if err != nil {
		r.release(ctx, ev.ID)
		return out, err
	}
	if res != nil && res.Changed {
		out.Applied = true
		r.archive(ctx, ev, res.Booking)
	}
	return out, nil
}

func (r *Reconciler) apply(ctx context.Context, ev domainpayment.ProviderEvent, out *dto.ReconcileOutcome) (*bookinghandlers.Settlement, error) {
	bookingID, err := r.resolveBooking(ctx, ev)
	if err != nil {
		return nil, err
	}
	out.BookingID = bookingID

	var res *bookinghandlers.Settlement
	switch ev.Type {
	case domainpayment.EventSucceeded:
		res, err = commands.Dispatch[bookinghandlers.ConfirmPaymentCommand, *bookinghandlers.Settlement](ctx, r.Commands,
			bookinghandlers.ConfirmPaymentCommand{BookingID: bookingID, IntentID: ev.IntentID})
	case domainpayment.EventFailed:
		res, err = commands.Dispatch[bookinghandlers.ReconcileFailureCommand, *bookinghandlers.Settlement](ctx, r.Commands,
			bookinghandlers.ReconcileFailureCommand{BookingID: bookingID, IntentID: ev.IntentID})
	case domainpayment.EventRefunded:
		res, err = commands.Dispatch[bookinghandlers.FinalizeRefundCommand, *bookinghandlers.Settlement](ctx, r.Commands,
			bookinghandlers.FinalizeRefundCommand{BookingID: bookingID, Amount: ev.Amount})
	default:
		return nil, domainpayment.ErrUnknownEventType
	}
	if errors.Is(err, apperr.ErrInvalidState) {
		if ev.Type == domainpayment.EventFailed {
			// a late failure for a settled booking carries no information
			r.logger().WarnContext(ctx, "ignoring payment failure for settled booking",
				"booking_id", bookingID, "intent_id", ev.IntentID, "event_id", ev.ID)
			return nil, nil
		}
		return nil, r.flag(ctx, ev, bookingID, err, out)
	}
	return res, err
}

func (r *Reconciler) resolveBooking(ctx context.Context, ev domainpayment.ProviderEvent) (string, error) {
	if ev.BookingID != "" {
		return string(ev.BookingID), nil
	}
	p, err := queries.Ask[PaymentByIntentQuery, dto.PaymentIntent](ctx, r.Queries, PaymentByIntentQuery{IntentID: ev.IntentID})
	if err != nil {
		return "", err
	}
	return p.BookingID, nil
}

// flag keeps provider and local state divergence visible instead of dropping the event.
func (r *Reconciler) flag(ctx context.Context, ev domainpayment.ProviderEvent, bookingID string, cause error, out *dto.ReconcileOutcome) error {
	note := fmt.Sprintf("provider reported %s for intent %s: %v", ev.Type, ev.IntentID, cause)
	r.logger().ErrorContext(ctx, "payment state diverged from booking",
		"booking_id", bookingID, "intent_id", ev.IntentID, "event_id", ev.ID, "event_type", ev.Type, "error", cause)
	_, err := commands.Dispatch[bookinghandlers.FlagReconciliationCommand, dto.Booking](ctx, r.Commands,
		bookinghandlers.FlagReconciliationCommand{BookingID: bookingID, Note: note})
	if err != nil {
		return err
	}
	out.Flagged = true
	return nil
}

func (r *Reconciler) archive(ctx context.Context, ev domainpayment.ProviderEvent, b dto.Booking) {
	if r.Receipts == nil {
		return
	}
	receipt := policies.Receipt{
		BookingID: b.ID,
		GuestID:   b.GuestID,
		HostID:    b.HostID,
		IntentID:  b.PaymentIntentID,
		IssuedAt:  r.now(),
	}
	switch ev.Type {
	case domainpayment.EventSucceeded:
		receipt.Kind = "payment"
		receipt.Amount, receipt.Currency = b.Total.Amount, b.Total.Currency
	case domainpayment.EventRefunded:
		receipt.Kind = "refund"
		receipt.RefundID = b.RefundID
		receipt.Amount, receipt.Currency = b.RefundAmount.Amount, b.RefundAmount.Currency
	default:
		return
	}
	if err := r.Receipts.Put(ctx, receipt); err != nil {
		r.logger().WarnContext(ctx, "receipt archive failed", "booking_id", b.ID, "kind", receipt.Kind, "error", err)
	}
}

func (r *Reconciler) release(ctx context.Context, eventID string) {
	if r.Inbox == nil {
		return
	}
	if err := r.Inbox.Release(ctx, eventID); err != nil {
		r.logger().ErrorContext(ctx, "inbox release failed", "event_id", eventID, "error", err)
	}
}

func (r *Reconciler) now() time.Time {
	if r.Clock != nil {
		return r.Clock().UTC()
	}
	return time.Now().UTC()
}

func (r *Reconciler) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}
