package availability

import (
	"context"
	"time"

	"staybook/internal/app/dto"
	"staybook/internal/app/handlers/base"
	"staybook/internal/app/queries"
	domainbooking "staybook/internal/domain/booking"
	domainlistings "staybook/internal/domain/listings"
	"staybook/internal/domain/shared/daterange"
)

const (
	GetAvailabilityKey = "listing.availability"
	CalculatePriceKey  = "listing.price"
)

type GetAvailabilityQuery struct {
	ListingID string `validate:"required"`
	CheckIn   time.Time
	CheckOut  time.Time
}

func (q GetAvailabilityQuery) Key() string { return GetAvailabilityKey }

type CalculatePriceQuery struct {
	ListingID string `validate:"required"`
	CheckIn   time.Time
	CheckOut  time.Time
}

func (q CalculatePriceQuery) Key() string { return CalculatePriceKey }

type Handlers struct {
	base.Deps
}

// Availability reports whether the range is free. It never writes.
func (h *Handlers) Availability(ctx context.Context, q GetAvailabilityQuery) (dto.Availability, error) {
	dr, err := daterange.New(q.CheckIn, q.CheckOut)
	if err != nil {
		return dto.Availability{}, domainbooking.ErrInvalidRange
	}
	scope, ctx, err := h.BeginReadOnly(ctx)
	if err != nil {
		return dto.Availability{}, err
	}
	defer scope.Close()

	listingID := domainlistings.ListingID(q.ListingID)
	if _, err := scope.Unit.Listings().ByID(ctx, listingID); err != nil {
		return dto.Availability{}, err
	}
	existing, err := scope.Unit.Bookings().ListByListing(ctx, listingID, domainbooking.BlockingStatuses...)
	if err != nil {
		return dto.Availability{}, err
	}
	out := dto.Availability{ListingID: q.ListingID, CheckIn: dr.CheckIn, CheckOut: dr.CheckOut, Available: true}
	if conflict := domainbooking.FirstConflict(existing, dr); conflict != nil {
		out.Available = false
		out.ConflictID = string(conflict.ID)
	}
	return out, nil
}

// Price quotes the stay at the listing's current nightly rate.
func (h *Handlers) Price(ctx context.Context, q CalculatePriceQuery) (dto.PriceQuote, error) {
	dr, err := daterange.New(q.CheckIn, q.CheckOut)
	if err != nil {
		return dto.PriceQuote{}, domainbooking.ErrInvalidRange
	}
	scope, ctx, err := h.BeginReadOnly(ctx)
	if err != nil {
		return dto.PriceQuote{}, err
	}
	defer scope.Close()

	listing, err := scope.Unit.Listings().ByID(ctx, domainlistings.ListingID(q.ListingID))
	if err != nil {
		return dto.PriceQuote{}, err
	}
	quote := domainbooking.Price(listing.NightlyRate, dr)
	split, err := domainbooking.SplitCommission(quote.Total)
	if err != nil {
		return dto.PriceQuote{}, domainbooking.ErrInvalidRate
	}
	return dto.PriceQuote{
		ListingID:   q.ListingID,
		CheckIn:     dr.CheckIn,
		CheckOut:    dr.CheckOut,
		Nights:      quote.Nights,
		NightlyRate: dto.MapMoney(listing.NightlyRate),
		Total:       dto.MapMoney(quote.Total),
		Commission:  dto.MapMoney(split.Commission),
		HostPayout:  dto.MapMoney(split.HostPayout),
	}, nil
}

func Register(queryBus *queries.InMemoryBus, deps base.Deps) {
	h := &Handlers{Deps: deps}
	queries.RegisterHandler[GetAvailabilityQuery, dto.Availability](queryBus, GetAvailabilityKey, queries.HandlerFunc[GetAvailabilityQuery, dto.Availability](h.Availability))
	queries.RegisterHandler[CalculatePriceQuery, dto.PriceQuote](queryBus, CalculatePriceKey, queries.HandlerFunc[CalculatePriceQuery, dto.PriceQuote](h.Price))
	queries.RegisterHandler[GetCalendarQuery, dto.Calendar](queryBus, GetCalendarKey, queries.HandlerFunc[GetCalendarQuery, dto.Calendar](h.Calendar))
}
