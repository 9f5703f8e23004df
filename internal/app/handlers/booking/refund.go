package booking

import (
	"context"

	"staybook/internal/app/dto"
	"staybook/internal/app/handlers/base"
	"staybook/internal/domain/shared/money"
)

const (
	RecordRefundKey       = "booking.record_refund"
	FlagReconciliationKey = "booking.flag_reconciliation"
)

type RecordRefundCommand struct {
	BookingID string `validate:"required"`
	RefundID  string `validate:"required"`
	Amount    money.Money
	Reason    string
}

func (c RecordRefundCommand) Key() string     { return RecordRefundKey }
func (c RecordRefundCommand) LockKey() string { return bookingLock(c.BookingID) }

type FlagReconciliationCommand struct {
	BookingID string `validate:"required"`
	Note      string `validate:"required"`
}

func (c FlagReconciliationCommand) Key() string     { return FlagReconciliationKey }
func (c FlagReconciliationCommand) LockKey() string { return bookingLock(c.BookingID) }

type RefundHandlers struct {
	base.Deps
}

func (h *RefundHandlers) Record(ctx context.Context, cmd RecordRefundCommand) (dto.Booking, error) {
	scope, ctx, err := h.Begin(ctx)
	if err != nil {
		return dto.Booking{}, err
	}
	defer scope.Close()

	b, err := base.LoadBooking(ctx, scope.Unit, cmd.BookingID)
	if err != nil {
		return dto.Booking{}, err
	}
	now := h.Now()
	if err := b.RecordRefundIssued(cmd.RefundID, now); err != nil {
		return dto.Booking{}, err
	}
	p, err := loadPayment(ctx, scope.Unit, b.ID)
	if err != nil {
		return dto.Booking{}, err
	}
	if p != nil {
		if err := p.RecordRefund(cmd.RefundID, cmd.Amount, cmd.Reason, now); err != nil {
			return dto.Booking{}, err
		}
		if err := h.SavePayment(ctx, scope.Unit, p); err != nil {
			return dto.Booking{}, err
		}
	}
	if err := h.SaveBooking(ctx, scope.Unit, b); err != nil {
		return dto.Booking{}, err
	}
	if err := scope.Commit(); err != nil {
		return dto.Booking{}, err
	}
	return dto.MapBooking(b, now), nil
}

func (h *RefundHandlers) Flag(ctx context.Context, cmd FlagReconciliationCommand) (dto.Booking, error) {
	scope, ctx, err := h.Begin(ctx)
	if err != nil {
		return dto.Booking{}, err
	}
	defer scope.Close()

	b, err := base.LoadBooking(ctx, scope.Unit, cmd.BookingID)
	if err != nil {
		return dto.Booking{}, err
	}
	now := h.Now()
	b.FlagForReconciliation(cmd.Note, now)
	if err := h.SaveBooking(ctx, scope.Unit, b); err != nil {
		return dto.Booking{}, err
	}
	if err := scope.Commit(); err != nil {
		return dto.Booking{}, err
	}
	return dto.MapBooking(b, now), nil
}
