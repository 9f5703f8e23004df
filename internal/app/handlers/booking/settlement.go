package booking

import (
	"context"
	"errors"

	"staybook/internal/app/dto"
	"staybook/internal/app/handlers/base"
	"staybook/internal/app/uow"
	domainbooking "staybook/internal/domain/booking"
	domainpayment "staybook/internal/domain/payment"
	"staybook/internal/domain/shared/money"
)

const (
	ConfirmPaymentKey   = "booking.confirm_payment"
	ReconcileFailureKey = "booking.reconcile_failure"
	FinalizeRefundKey   = "booking.finalize_refund"
)

// Settlement is the outcome of a provider-driven transition. Changed is false
// when the booking already reflected the event.
type Settlement struct {
	Booking dto.Booking `json:"booking"`
	Changed bool        `json:"changed"`
}

type ConfirmPaymentCommand struct {
	BookingID string `validate:"required"`
	IntentID  string
}

func (c ConfirmPaymentCommand) Key() string     { return ConfirmPaymentKey }
func (c ConfirmPaymentCommand) LockKey() string { return bookingLock(c.BookingID) }

type ReconcileFailureCommand struct {
	BookingID string `validate:"required"`
	IntentID  string
}

func (c ReconcileFailureCommand) Key() string     { return ReconcileFailureKey }
func (c ReconcileFailureCommand) LockKey() string { return bookingLock(c.BookingID) }

type FinalizeRefundCommand struct {
	BookingID string `validate:"required"`
	Amount    money.Money
}

func (c FinalizeRefundCommand) Key() string     { return FinalizeRefundKey }
func (c FinalizeRefundCommand) LockKey() string { return bookingLock(c.BookingID) }

// SettlementHandlers apply provider outcomes to a booking and its payment record.
type SettlementHandlers struct {
	base.Deps
}

func (h *SettlementHandlers) Confirm(ctx context.Context, cmd ConfirmPaymentCommand) (*Settlement, error) {
	return h.apply(ctx, cmd.BookingID, func(b *domainbooking.Booking, p *domainpayment.Payment) (bool, error) {
		changed, err := b.ConfirmPayment(cmd.IntentID, h.Now())
		if err != nil {
			return false, err
		}
		if p != nil && p.MarkSucceeded(b.PaymentIntentID, h.Now()) {
			changed = true
		}
		return changed, nil
	})
}

func (h *SettlementHandlers) Fail(ctx context.Context, cmd ReconcileFailureCommand) (*Settlement, error) {
	return h.apply(ctx, cmd.BookingID, func(b *domainbooking.Booking, p *domainpayment.Payment) (bool, error) {
		if cmd.IntentID != "" && b.PaymentIntentID != "" && cmd.IntentID != b.PaymentIntentID {
			// failure of a superseded intent
			return false, nil
		}
		changed, err := b.MarkPaymentFailed(h.Now())
		if err != nil {
			return false, err
		}
		if p != nil {
			p.MarkFailed(h.Now())
		}
		return changed, nil
	})
}

func (h *SettlementHandlers) FinalizeRefund(ctx context.Context, cmd FinalizeRefundCommand) (*Settlement, error) {
	return h.apply(ctx, cmd.BookingID, func(b *domainbooking.Booking, p *domainpayment.Payment) (bool, error) {
		changed, err := b.FinalizeRefund(cmd.Amount, h.Now())
		if err != nil {
			return false, err
		}
		if p != nil && p.MarkRefunded(b.RefundAmount, h.Now()) {
			changed = true
		}
		return changed, nil
	})
}

type settleFunc func(b *domainbooking.Booking, p *domainpayment.Payment) (bool, error)

func (h *SettlementHandlers) apply(ctx context.Context, bookingID string, fn settleFunc) (*Settlement, error) {
	scope, ctx, err := h.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer scope.Close()

	b, err := base.LoadBooking(ctx, scope.Unit, bookingID)
	if err != nil {
		return nil, err
	}
	p, err := loadPayment(ctx, scope.Unit, b.ID)
	if err != nil {
		return nil, err
	}
	changed, err := fn(b, p)
	if err != nil {
		return nil, err
	}
	if changed {
		if err := h.SaveBooking(ctx, scope.Unit, b); err != nil {
			return nil, err
		}
		if p != nil {
			if err := h.SavePayment(ctx, scope.Unit, p); err != nil {
				return nil, err
			}
		}
	}
	if err := scope.Commit(); err != nil {
		return nil, err
	}
	return &Settlement{Booking: dto.MapBooking(b, h.Now()), Changed: changed}, nil
}

func loadPayment(ctx context.Context, unit uow.UnitOfWork, id domainbooking.BookingID) (*domainpayment.Payment, error) {
	p, err := unit.Payments().ByBooking(ctx, id)
	if errors.Is(err, domainpayment.ErrPaymentNotFound) {
		return nil, nil
	}
	return p, err
}
