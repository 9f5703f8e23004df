package booking

import (
	"context"
	"sort"
	"strings"

	"staybook/internal/app/dto"
	"staybook/internal/app/handlers/base"
	domainbooking "staybook/internal/domain/booking"
)

const (
	GetBookingKey   = "booking.get"
	ListBookingsKey = "booking.list"
)

type GetBookingQuery struct {
	BookingID string `validate:"required"`
	ActorID   string
}

func (q GetBookingQuery) Key() string { return GetBookingKey }

type ListBookingsQuery struct {
	UserID string `validate:"required"`
	Status string `validate:"omitempty,oneof=pending confirmed cancelled completed"`
}

func (q ListBookingsQuery) Key() string { return ListBookingsKey }

type QueryHandlers struct {
	base.Deps
}

// Get returns a booking to its guest or host.
func (h *QueryHandlers) Get(ctx context.Context, q GetBookingQuery) (dto.Booking, error) {
	scope, ctx, err := h.BeginReadOnly(ctx)
	if err != nil {
		return dto.Booking{}, err
	}
	defer scope.Close()

	b, err := base.LoadBooking(ctx, scope.Unit, q.BookingID)
	if err != nil {
		return dto.Booking{}, err
	}
	if _, err := b.ActorFor(q.ActorID); err != nil {
		return dto.Booking{}, err
	}
	return dto.MapBooking(b, h.Now()), nil
}

// List returns the bookings a user takes part in as guest or host, newest first.
func (h *QueryHandlers) List(ctx context.Context, q ListBookingsQuery) (dto.BookingCollection, error) {
	scope, ctx, err := h.BeginReadOnly(ctx)
	if err != nil {
		return dto.BookingCollection{}, err
	}
	defer scope.Close()

	bookings, err := scope.Unit.Bookings().ListByParticipant(ctx, strings.TrimSpace(q.UserID))
	if err != nil {
		return dto.BookingCollection{}, err
	}
	sort.SliceStable(bookings, func(i, j int) bool {
		return bookings[i].CreatedAt.After(bookings[j].CreatedAt)
	})
	now := h.Now()
	items := make([]dto.Booking, 0, len(bookings))
	for _, b := range bookings {
		if q.Status != "" && b.Status != domainbooking.Status(q.Status) {
			continue
		}
		items = append(items, dto.MapBooking(b, now))
	}
	return dto.BookingCollection{Items: items}, nil
}

