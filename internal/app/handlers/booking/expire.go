package booking

import (
	"context"
	"encoding/json"
	"errors"

	"staybook/internal/app/commands"
	"staybook/internal/app/handlers/base"
	domainbooking "staybook/internal/domain/booking"
)

const ExpirePendingKey = "booking.expire_pending"

type ExpiryPayload struct {
	BookingID string `json:"booking_id"`
}

type ExpirePendingCommand struct {
	BookingID string `validate:"required"`
}

func (c ExpirePendingCommand) Key() string     { return ExpirePendingKey }
func (c ExpirePendingCommand) LockKey() string { return bookingLock(c.BookingID) }

type ExpirePendingHandler struct {
	base.Deps
}

// Handle cancels a booking whose payment window elapsed. Missing or already
// settled bookings are not an error.
func (h *ExpirePendingHandler) Handle(ctx context.Context, cmd ExpirePendingCommand) (bool, error) {
	scope, ctx, err := h.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer scope.Close()

	b, err := base.LoadBooking(ctx, scope.Unit, cmd.BookingID)
	if errors.Is(err, domainbooking.ErrBookingNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !b.Expire(h.Now()) {
		return false, nil
	}
	if err := h.SaveBooking(ctx, scope.Unit, b); err != nil {
		return false, err
	}
	if err := scope.Commit(); err != nil {
		return false, err
	}
	h.Log().InfoContext(ctx, "pending booking expired", "booking_id", b.ID)
	return true, nil
}

// ExpiryTask adapts the scheduled task payload to the expire command.
func ExpiryTask(bus commands.Bus) func(ctx context.Context, payload []byte) error {
	return func(ctx context.Context, payload []byte) error {
		var p ExpiryPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return err
		}
		_, err := commands.Dispatch[ExpirePendingCommand, bool](ctx, bus, ExpirePendingCommand{BookingID: p.BookingID})
		return err
	}
}

var _ commands.Handler[ExpirePendingCommand, bool] = (*ExpirePendingHandler)(nil)
