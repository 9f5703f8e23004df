package booking

import (
	"time"

	"staybook/internal/app/commands"
	"staybook/internal/app/dto"
	"staybook/internal/app/handlers/base"
	"staybook/internal/app/queries"
	"staybook/internal/app/schedule"
)

type Options struct {
	Scheduler schedule.Scheduler
	HoldTTL   time.Duration
	NewID     func() string
}

// Register wires the booking lifecycle handlers onto the buses.
func Register(cmdBus *commands.InMemoryBus, queryBus *queries.InMemoryBus, deps base.Deps, opts Options) {
	commands.RegisterHandler[CreateBookingCommand, *dto.Booking](cmdBus, CreateBookingKey, &CreateBookingHandler{
		Deps: deps, Scheduler: opts.Scheduler, HoldTTL: opts.HoldTTL, NewID: opts.NewID,
	})
	commands.RegisterHandler[CancelBookingCommand, dto.CancelResult](cmdBus, CancelBookingKey, &CancelBookingHandler{Deps: deps})
	commands.RegisterHandler[ExpirePendingCommand, bool](cmdBus, ExpirePendingKey, &ExpirePendingHandler{Deps: deps})

	settle := &SettlementHandlers{Deps: deps}
	commands.RegisterHandler[ConfirmPaymentCommand, *Settlement](cmdBus, ConfirmPaymentKey, commands.HandlerFunc[ConfirmPaymentCommand, *Settlement](settle.Confirm))
	commands.RegisterHandler[ReconcileFailureCommand, *Settlement](cmdBus, ReconcileFailureKey, commands.HandlerFunc[ReconcileFailureCommand, *Settlement](settle.Fail))
	commands.RegisterHandler[FinalizeRefundCommand, *Settlement](cmdBus, FinalizeRefundKey, commands.HandlerFunc[FinalizeRefundCommand, *Settlement](settle.FinalizeRefund))

	refunds := &RefundHandlers{Deps: deps}
	commands.RegisterHandler[RecordRefundCommand, dto.Booking](cmdBus, RecordRefundKey, commands.HandlerFunc[RecordRefundCommand, dto.Booking](refunds.Record))
	commands.RegisterHandler[FlagReconciliationCommand, dto.Booking](cmdBus, FlagReconciliationKey, commands.HandlerFunc[FlagReconciliationCommand, dto.Booking](refunds.Flag))

	qh := &QueryHandlers{Deps: deps}
	queries.RegisterHandler[GetBookingQuery, dto.Booking](queryBus, GetBookingKey, queries.HandlerFunc[GetBookingQuery, dto.Booking](qh.Get))
	queries.RegisterHandler[ListBookingsQuery, dto.BookingCollection](queryBus, ListBookingsKey, queries.HandlerFunc[ListBookingsQuery, dto.BookingCollection](qh.List))
}
