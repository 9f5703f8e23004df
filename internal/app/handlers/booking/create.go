package booking

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"staybook/internal/app/commands"
	"staybook/internal/app/dto"
	"staybook/internal/app/handlers/base"
	"staybook/internal/app/middleware"
	"staybook/internal/app/schedule"
	domainbooking "staybook/internal/domain/booking"
	domainlistings "staybook/internal/domain/listings"
)

const (
	CreateBookingKey = "booking.create"

	DefaultHoldTTL = 30 * time.Minute
)

type CreateBookingCommand struct {
	ListingID       string `validate:"required"`
	GuestID         string
	CheckIn         time.Time
	CheckOut        time.Time
	Guests          int
	SpecialRequests string `validate:"max=2000"`
	IdempotencyKeyV string
}

func (c CreateBookingCommand) Key() string { return CreateBookingKey }

func (c CreateBookingCommand) IdempotencyKey() string { return c.IdempotencyKeyV }

func (c CreateBookingCommand) ResultPrototype() any { return &dto.Booking{} }

// LockKey serialises creates per listing so the availability check and insert
// cannot interleave with another create.
func (c CreateBookingCommand) LockKey() string { return "listing:" + c.ListingID }

type CreateBookingHandler struct {
	base.Deps
	Scheduler schedule.Scheduler
	HoldTTL   time.Duration
	NewID     func() string
}

func (h *CreateBookingHandler) Handle(ctx context.Context, cmd CreateBookingCommand) (*dto.Booking, error) {
	scope, ctx, err := h.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer scope.Close()
	unit := scope.Unit

	listing, err := unit.Listings().ByID(ctx, domainlistings.ListingID(cmd.ListingID))
	if err != nil {
		return nil, err
	}
	if !listing.HasOwner() {
		return nil, domainbooking.ErrListingWithoutOwner
	}
	guestID := strings.TrimSpace(cmd.GuestID)
	if guestID == "" {
		return nil, domainbooking.ErrGuestRequired
	}
	if guestID == string(listing.Owner) {
		return nil, domainbooking.ErrSelfBooking
	}

	now := h.Now()
	dr, err := domainbooking.ValidateStayDates(cmd.CheckIn, cmd.CheckOut, now)
	if err != nil {
		return nil, err
	}
	if cmd.Guests <= 0 {
		return nil, domainbooking.ErrInvalidGuests
	}

	existing, err := unit.Bookings().ListByListing(ctx, listing.ID, domainbooking.BlockingStatuses...)
	if err != nil {
		return nil, err
	}
	if conflict := domainbooking.FirstConflict(existing, dr); conflict != nil {
		h.Log().InfoContext(ctx, "booking dates unavailable",
			"listing_id", listing.ID, "conflicting_booking", conflict.ID)
		return nil, domainbooking.ErrDatesUnavailable
	}

	b, err := domainbooking.NewBooking(domainbooking.CreateParams{
		ID:              domainbooking.BookingID(h.newID()),
		Listing:         listing,
		GuestID:         guestID,
		Range:           dr,
		Guests:          cmd.Guests,
		SpecialRequests: cmd.SpecialRequests,
		CreatedAt:       now,
	})
	if err != nil {
		return nil, err
	}
	if err := h.SaveBooking(ctx, unit, b); err != nil {
		return nil, err
	}
	if err := scope.Commit(); err != nil {
		return nil, err
	}

	h.scheduleExpiry(ctx, b)
	out := dto.MapBooking(b, now)
	return &out, nil
}

func (h *CreateBookingHandler) scheduleExpiry(ctx context.Context, b *domainbooking.Booking) {
	if h.Scheduler == nil {
		return
	}
	ttl := h.HoldTTL
	if ttl <= 0 {
		ttl = DefaultHoldTTL
	}
	payload, _ := json.Marshal(ExpiryPayload{BookingID: string(b.ID)})
	task := schedule.Task{
		Name:    schedule.TaskExpireBooking,
		ID:      "expire-" + string(b.ID),
		Payload: payload,
		RunAt:   b.CreatedAt.Add(ttl),
	}
	if err := h.Scheduler.Schedule(ctx, task); err != nil {
		h.Log().ErrorContext(ctx, "schedule booking expiry failed", "booking_id", b.ID, "error", err)
	}
}

func (h *CreateBookingHandler) newID() string {
	if h.NewID != nil {
		return h.NewID()
	}
	return uuid.NewString()
}

var (
	_ commands.Handler[CreateBookingCommand, *dto.Booking] = (*CreateBookingHandler)(nil)
	_ middleware.IdempotentCommand                         = CreateBookingCommand{}
	_ middleware.SerializedCommand                         = CreateBookingCommand{}
)
