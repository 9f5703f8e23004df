package listings

import (
	"context"
	"strings"
	"time"

	"staybook/internal/domain/shared/apperr"
	"staybook/internal/domain/shared/money"
)

var (
	ErrListingNotFound = apperr.NotFound("listings: listing not found")
	ErrTitleRequired   = apperr.Validation("listings: title is required")
	ErrNightlyRate     = apperr.Validation("listings: nightly rate must be positive")
)

type ListingID string
type HostID string

type Location struct {
	City    string
	Country string
	Lat     float64
	Lon     float64
}

// Listing is the read model the booking engine consults. Listings are owned by
// the catalogue service; this package only mirrors what bookings need.
type Listing struct {
	ID          ListingID
	Owner       HostID
	Title       string
	NightlyRate money.Money
	Location    Location
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// HasOwner reports whether the listing can take bookings at all.
func (l *Listing) HasOwner() bool {
	return strings.TrimSpace(string(l.Owner)) != ""
}

type ListingRepository interface {
	ByID(ctx context.Context, id ListingID) (*Listing, error)
	Save(ctx context.Context, listing *Listing) error
}

type CreateListingParams struct {
	ID          ListingID
	Owner       HostID
	Title       string
	NightlyRate money.Money
	Location    Location
	Now         time.Time
}

func NewListing(params CreateListingParams) (*Listing, error) {
	if strings.TrimSpace(string(params.ID)) == "" {
		return nil, apperr.Validation("listings: id is required")
	}
	if strings.TrimSpace(params.Title) == "" {
		return nil, ErrTitleRequired
	}
	if params.NightlyRate.Amount <= 0 || params.NightlyRate.Currency == "" {
		return nil, ErrNightlyRate
	}
	now := params.Now.UTC()
	return &Listing{
		ID:          params.ID,
		Owner:       HostID(strings.TrimSpace(string(params.Owner))),
		Title:       strings.TrimSpace(params.Title),
		NightlyRate: params.NightlyRate,
		Location:    params.Location,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Reprice changes the nightly rate. Bookings already made keep the rate they were quoted.
func (l *Listing) Reprice(rate money.Money, now time.Time) error {
	if rate.Amount <= 0 || rate.Currency == "" {
		return ErrNightlyRate
	}
	l.NightlyRate = rate
	l.UpdatedAt = now.UTC()
	return nil
}
