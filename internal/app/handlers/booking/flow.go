package booking

import (
	"context"
	"fmt"
	"log/slog"

	"staybook/internal/app/commands"
	"staybook/internal/app/dto"
	"staybook/internal/app/policies"
	"staybook/internal/app/queries"
	domainbooking "staybook/internal/domain/booking"
	"staybook/internal/domain/shared/apperr"
	"staybook/internal/domain/shared/money"
)

// CancellationFlow cancels a booking and then issues the provider refund
// outside of the booking lock and transaction.
type CancellationFlow struct {
	Commands commands.Bus
	Queries  queries.Bus
	Provider policies.PaymentProvider
	Logger   *slog.Logger
}

type RetryRefundRequest struct {
	BookingID string
	ActorID   string
}

func (f *CancellationFlow) Cancel(ctx context.Context, cmd CancelBookingCommand) (dto.CancelResult, error) {
	res, err := commands.Dispatch[CancelBookingCommand, dto.CancelResult](ctx, f.Commands, cmd)
	if err != nil {
		return dto.CancelResult{}, err
	}
	if !res.RefundRequired {
		return res, nil
	}
	return f.issueRefund(ctx, res, cmd.Reason)
}

// RetryRefund re-issues a refund that failed earlier. It is a no-op when the
// refund id is already recorded.
func (f *CancellationFlow) RetryRefund(ctx context.Context, req RetryRefundRequest) (dto.CancelResult, error) {
	current, err := queries.Ask[GetBookingQuery, dto.Booking](ctx, f.Queries, GetBookingQuery{BookingID: req.BookingID, ActorID: req.ActorID})
	if err != nil {
		return dto.CancelResult{}, err
	}
	res := dto.CancelResult{Booking: current, Refund: current.RefundAmount, RefundID: current.RefundID}
	if current.RefundID != "" || current.PaymentStatus == string(domainbooking.PaymentRefunded) {
		return res, nil
	}
	if !current.RefundPending {
		return dto.CancelResult{}, apperr.InvalidState("booking: no refund pending")
	}
	res.RefundRequired = true
	reason := ""
	if current.Cancellation != nil {
		reason = current.Cancellation.Reason
	}
	return f.issueRefund(ctx, res, reason)
}

func (f *CancellationFlow) issueRefund(ctx context.Context, res dto.CancelResult, reason string) (dto.CancelResult, error) {
	b := res.Booking
	amount := money.Money{Amount: res.Refund.Amount, Currency: res.Refund.Currency}
	refundID, err := f.Provider.Refund(ctx, b.PaymentIntentID, amount, reason)
	if err != nil {
		perr := apperr.Provider("refund", err)
		f.logger().ErrorContext(ctx, "refund failed, booking flagged for reconciliation",
			"booking_id", b.ID, "intent_id", b.PaymentIntentID, "amount", amount.Amount, "error", err)
		f.flag(ctx, b.ID, fmt.Sprintf("refund of %d %s failed: %v", amount.Amount, amount.Currency, err))
		return res, perr
	}

	updated, err := commands.Dispatch[RecordRefundCommand, dto.Booking](ctx, f.Commands, RecordRefundCommand{
		BookingID: b.ID,
		RefundID:  refundID,
		Amount:    amount,
		Reason:    reason,
	})
	if err != nil {
		f.logger().ErrorContext(ctx, "refund issued but not recorded",
			"booking_id", b.ID, "intent_id", b.PaymentIntentID, "refund_id", refundID, "error", err)
		f.flag(ctx, b.ID, "refund "+refundID+" issued but not recorded")
		return res, err
	}
	res.Booking = updated
	res.RefundID = refundID
	return res, nil
}

func (f *CancellationFlow) flag(ctx context.Context, bookingID, note string) {
	_, err := commands.Dispatch[FlagReconciliationCommand, dto.Booking](ctx, f.Commands, FlagReconciliationCommand{BookingID: bookingID, Note: note})
	if err != nil {
		f.logger().ErrorContext(ctx, "flag reconciliation failed", "booking_id", bookingID, "note", note, "error", err)
	}
}

func (f *CancellationFlow) logger() *slog.Logger {
	if f.Logger != nil {
		return f.Logger
	}
	return slog.Default()
}
