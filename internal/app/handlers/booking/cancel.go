package booking

import (
	"context"

	"staybook/internal/app/commands"
	"staybook/internal/app/dto"
	"staybook/internal/app/handlers/base"
	domainbooking "staybook/internal/domain/booking"
)

const CancelBookingKey = "booking.cancel"

type CancelBookingCommand struct {
	BookingID string `validate:"required"`
	ActorID   string
	Reason    string `validate:"max=500"`
}

func (c CancelBookingCommand) Key() string     { return CancelBookingKey }
func (c CancelBookingCommand) LockKey() string { return bookingLock(c.BookingID) }

type CancelBookingHandler struct {
	base.Deps
}

// Handle cancels the booking and records the refund owed. Issuing the refund
// is left to the caller once this command has committed.
func (h *CancelBookingHandler) Handle(ctx context.Context, cmd CancelBookingCommand) (dto.CancelResult, error) {
	scope, ctx, err := h.Begin(ctx)
	if err != nil {
		return dto.CancelResult{}, err
	}
	defer scope.Close()

	b, err := base.LoadBooking(ctx, scope.Unit, cmd.BookingID)
	if err != nil {
		return dto.CancelResult{}, err
	}
	actor, err := b.ActorFor(cmd.ActorID)
	if err != nil {
		return dto.CancelResult{}, err
	}
	now := h.Now()
	if !domainbooking.CanBeCancelled(b, now) {
		return dto.CancelResult{}, domainbooking.ErrNotCancellable
	}
	refund := domainbooking.RefundAmount(b, now)
	if err := b.Cancel(actor, cmd.Reason, refund, now); err != nil {
		return dto.CancelResult{}, err
	}
	if err := h.SaveBooking(ctx, scope.Unit, b); err != nil {
		return dto.CancelResult{}, err
	}
	if err := scope.Commit(); err != nil {
		return dto.CancelResult{}, err
	}
	return dto.CancelResult{
		Booking:        dto.MapBooking(b, now),
		Refund:         dto.MapMoney(refund),
		RefundRequired: b.RefundDue(),
	}, nil
}

func bookingLock(id string) string { return "booking:" + id }

var _ commands.Handler[CancelBookingCommand, dto.CancelResult] = (*CancelBookingHandler)(nil)
