package availability

import (
	"context"
	"sort"
	"time"

	"staybook/internal/app/dto"
	domainbooking "staybook/internal/domain/booking"
	domainlistings "staybook/internal/domain/listings"
	"staybook/internal/domain/shared/daterange"
)

const GetCalendarKey = "listing.calendar"

// GetCalendarQuery lists the stays blocking a listing. A zero From or To leaves
// that side of the window open.
type GetCalendarQuery struct {
	ListingID string `validate:"required"`
	From      time.Time
	To        time.Time
}

func (q GetCalendarQuery) Key() string { return GetCalendarKey }

func (h *Handlers) Calendar(ctx context.Context, q GetCalendarQuery) (dto.Calendar, error) {
	if !q.From.IsZero() && !q.To.IsZero() && !q.To.After(q.From) {
		return dto.Calendar{}, domainbooking.ErrInvalidRange
	}
	scope, ctx, err := h.BeginReadOnly(ctx)
	if err != nil {
		return dto.Calendar{}, err
	}
	defer scope.Close()

	listingID := domainlistings.ListingID(q.ListingID)
	if _, err := scope.Unit.Listings().ByID(ctx, listingID); err != nil {
		return dto.Calendar{}, err
	}
	existing, err := scope.Unit.Bookings().ListByListing(ctx, listingID, domainbooking.BlockingStatuses...)
	if err != nil {
		return dto.Calendar{}, err
	}

	from, to := daterange.DateOf(q.From), daterange.DateOf(q.To)
	out := dto.Calendar{ListingID: q.ListingID, Blocked: make([]dto.BlockedRange, 0, len(existing))}
	for _, b := range existing {
		if !q.From.IsZero() && !b.Range.CheckOut.After(from) {
			continue
		}
		if !q.To.IsZero() && !b.Range.CheckIn.Before(to) {
			continue
		}
		out.Blocked = append(out.Blocked, dto.BlockedRange{
			CheckIn:  b.Range.CheckIn,
			CheckOut: b.Range.CheckOut,
			Status:   string(b.Status),
		})
	}
	sort.Slice(out.Blocked, func(i, j int) bool {
		return out.Blocked[i].CheckIn.Before(out.Blocked[j].CheckIn)
	})
	return out, nil
}
