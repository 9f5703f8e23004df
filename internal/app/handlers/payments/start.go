package payments

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"staybook/internal/app/commands"
	"staybook/internal/app/dto"
	"staybook/internal/app/handlers/base"
	bookinghandlers "staybook/internal/app/handlers/booking"
	"staybook/internal/app/policies"
	"staybook/internal/app/queries"
	domainbooking "staybook/internal/domain/booking"
	domainpayment "staybook/internal/domain/payment"
	"staybook/internal/domain/shared/apperr"
	"staybook/internal/domain/shared/money"
)

const AttachIntentKey = "payment.attach_intent"

var ErrGuestOnly = apperr.Authorization("payment: only the booking guest can pay")

type AttachIntentCommand struct {
	BookingID string `validate:"required"`
	GuestID   string `validate:"required"`
	IntentID  string `validate:"required"`
	PaymentID string
}

func (c AttachIntentCommand) Key() string     { return AttachIntentKey }
func (c AttachIntentCommand) LockKey() string { return "booking:" + c.BookingID }

type AttachIntentHandler struct {
	base.Deps
}

// Handle stores the intent on the booking and on its single payment record,
// reusing the record when an earlier attempt failed.
func (h *AttachIntentHandler) Handle(ctx context.Context, cmd AttachIntentCommand) (dto.PaymentIntent, error) {
	scope, ctx, err := h.Begin(ctx)
	if err != nil {
		return dto.PaymentIntent{}, err
	}
	defer scope.Close()
	unit := scope.Unit

	b, err := base.LoadBooking(ctx, unit, cmd.BookingID)
	if err != nil {
		return dto.PaymentIntent{}, err
	}
	if b.GuestID != cmd.GuestID {
		return dto.PaymentIntent{}, ErrGuestOnly
	}
	now := h.Now()
	if err := b.AttachPaymentIntent(cmd.IntentID, now); err != nil {
		return dto.PaymentIntent{}, err
	}

	p, err := unit.Payments().ByBooking(ctx, b.ID)
	switch {
	case err == nil:
		if err := p.Retry(cmd.IntentID, now); err != nil {
			return dto.PaymentIntent{}, err
		}
	case apperr.KindOf(err) == apperr.ErrNotFound:
		id := cmd.PaymentID
		if id == "" {
			id = uuid.NewString()
		}
		if p, err = domainpayment.New(id, b, cmd.IntentID, now); err != nil {
			return dto.PaymentIntent{}, err
		}
	default:
		return dto.PaymentIntent{}, err
	}

	if err := h.SavePayment(ctx, unit, p); err != nil {
		return dto.PaymentIntent{}, err
	}
	if err := h.SaveBooking(ctx, unit, b); err != nil {
		return dto.PaymentIntent{}, err
	}
	if err := scope.Commit(); err != nil {
		return dto.PaymentIntent{}, err
	}
	return mapIntent(p), nil
}

func mapIntent(p *domainpayment.Payment) dto.PaymentIntent {
	return dto.PaymentIntent{
		BookingID: string(p.BookingID),
		PaymentID: p.ID,
		IntentID:  p.IntentID,
		Amount:    dto.MapMoney(p.Amount),
		Status:    string(p.Status),
		CreatedAt: p.CreatedAt,
	}
}

// PaymentFlow creates a provider intent for a pending booking.
type PaymentFlow struct {
	Commands commands.Bus
	Queries  queries.Bus
	Provider policies.PaymentProvider
	Logger   *slog.Logger
}

type StartPaymentRequest struct {
	BookingID string
	GuestID   string
}

func (f *PaymentFlow) Start(ctx context.Context, req StartPaymentRequest) (dto.PaymentIntent, error) {
	b, err := queries.Ask[bookinghandlers.GetBookingQuery, dto.Booking](ctx, f.Queries, bookinghandlers.GetBookingQuery{
		BookingID: req.BookingID,
		ActorID:   req.GuestID,
	})
	if err != nil {
		return dto.PaymentIntent{}, err
	}
	if b.GuestID != req.GuestID {
		return dto.PaymentIntent{}, ErrGuestOnly
	}
	switch domainbooking.PaymentStatus(b.PaymentStatus) {
	case domainbooking.PaymentPaid, domainbooking.PaymentRefunded:
		return dto.PaymentIntent{}, domainbooking.ErrAlreadyPaid
	}
	if domainbooking.Status(b.Status) != domainbooking.StatusPending {
		return dto.PaymentIntent{}, domainbooking.ErrInvalidState
	}
	if current, reused, err := f.reusePending(ctx, b); err != nil || reused {
		return current, err
	}

	amount := money.Money{Amount: b.Total.Amount, Currency: b.Total.Currency}
	intentID, err := f.Provider.CreateIntent(ctx, amount, b.GuestID, map[string]string{
		"booking_id": b.ID,
		"listing_id": b.ListingID,
		"guest_id":   b.GuestID,
	})
	if err != nil {
		return dto.PaymentIntent{}, apperr.Provider("create intent", err)
	}

	out, err := commands.Dispatch[AttachIntentCommand, dto.PaymentIntent](ctx, f.Commands, AttachIntentCommand{
		BookingID: b.ID,
		GuestID:   b.GuestID,
		IntentID:  intentID,
	})
	if err != nil {
		f.logger().ErrorContext(ctx, "payment intent created but not attached",
			"booking_id", b.ID, "intent_id", intentID, "error", err)
		return dto.PaymentIntent{}, err
	}
	return out, nil
}

// reusePending hands back the booking's open intent while the provider still
// has it pending, so one booking never carries two live charges.
func (f *PaymentFlow) reusePending(ctx context.Context, b dto.Booking) (dto.PaymentIntent, bool, error) {
	if b.PaymentIntentID == "" || domainbooking.PaymentStatus(b.PaymentStatus) != domainbooking.PaymentPending {
		return dto.PaymentIntent{}, false, nil
	}
	status, err := f.Provider.RetrieveStatus(ctx, b.PaymentIntentID)
	if err != nil {
		return dto.PaymentIntent{}, false, apperr.Provider("retrieve status", err)
	}
	switch status {
	case policies.ProviderPending:
		current, err := queries.Ask[PaymentByIntentQuery, dto.PaymentIntent](ctx, f.Queries, PaymentByIntentQuery{IntentID: b.PaymentIntentID})
		if err != nil {
			return dto.PaymentIntent{}, false, err
		}
		return current, true, nil
	case policies.ProviderSucceeded, policies.ProviderRefunded:
		// settled at the provider, the event has not been reconciled yet
		return dto.PaymentIntent{}, false, domainbooking.ErrAlreadyPaid
	}
	return dto.PaymentIntent{}, false, nil
}

func (f *PaymentFlow) logger() *slog.Logger {
	if f.Logger != nil {
		return f.Logger
	}
	return slog.Default()
}

var _ commands.Handler[AttachIntentCommand, dto.PaymentIntent] = (*AttachIntentHandler)(nil)
