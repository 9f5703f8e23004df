// Package base holds the collaborators shared by command and query handlers.
package base

import (
	"context"
	"log/slog"
	"time"

	"staybook/internal/app/outbox"
	"staybook/internal/app/uow"
	domainbooking "staybook/internal/domain/booking"
	domainpayment "staybook/internal/domain/payment"
)

type Deps struct {
	UoWFactory uow.UoWFactory
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	Logger     *slog.Logger
	Clock      func() time.Time
}

func (d Deps) Now() time.Time {
	if d.Clock != nil {
		return d.Clock().UTC()
	}
	return time.Now().UTC()
}

func (d Deps) Log() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

// Begin joins the unit of work in ctx or starts one.
func (d Deps) Begin(ctx context.Context) (*uow.Scope, context.Context, error) {
	return uow.Enter(ctx, d.UoWFactory, uow.TxOptions{})
}

// BeginReadOnly is Begin for queries.
func (d Deps) BeginReadOnly(ctx context.Context) (*uow.Scope, context.Context, error) {
	return uow.Enter(ctx, d.UoWFactory, uow.TxOptions{ReadOnly: true})
}

// SaveBooking recomputes the derived pricing fields, stores the booking and
// moves its events to the outbox.
func (d Deps) SaveBooking(ctx context.Context, unit uow.UnitOfWork, b *domainbooking.Booking) error {
	if err := b.Normalize(); err != nil {
		return err
	}
	if err := unit.Bookings().Save(ctx, b); err != nil {
		return err
	}
	return outbox.Drain(ctx, d.Outbox, d.Encoder, b)
}

func (d Deps) SavePayment(ctx context.Context, unit uow.UnitOfWork, p *domainpayment.Payment) error {
	return unit.Payments().Save(ctx, p)
}

// LoadBooking fetches a booking inside the unit of work.
func LoadBooking(ctx context.Context, unit uow.UnitOfWork, id string) (*domainbooking.Booking, error) {
	if id == "" {
		return nil, domainbooking.ErrBookingNotFound
	}
	return unit.Bookings().ByID(ctx, domainbooking.BookingID(id))
}
