package memory

import (
	"context"
	"strings"

	domainbooking "staybook/internal/domain/booking"
	domainlistings "staybook/internal/domain/listings"
	domainpayment "staybook/internal/domain/payment"
)

type listingRepository struct {
	unit *Unit
}

func (r listingRepository) ByID(ctx context.Context, id domainlistings.ListingID) (*domainlistings.Listing, error) {
	u := r.unit
	u.mu.Lock()
	defer u.mu.Unlock()
	if l, ok := u.listings[id]; ok {
		return cloneListing(l), nil
	}
	u.store.mu.RLock()
	defer u.store.mu.RUnlock()
	if l, ok := u.store.listings[id]; ok {
		return cloneListing(l), nil
	}
	return nil, domainlistings.ErrListingNotFound
}

func (r listingRepository) Save(ctx context.Context, listing *domainlistings.Listing) error {
	u := r.unit
	u.mu.Lock()
	defer u.mu.Unlock()
	if err := u.writable(); err != nil {
		return err
	}
	u.listings[listing.ID] = cloneListing(listing)
	return nil
}

func cloneListing(l *domainlistings.Listing) *domainlistings.Listing {
	c := *l
	return &c
}

type bookingRepository struct {
	unit *Unit
}

func (r bookingRepository) ByID(ctx context.Context, id domainbooking.BookingID) (*domainbooking.Booking, error) {
	u := r.unit
	u.mu.Lock()
	defer u.mu.Unlock()
	if b, ok := u.bookings[id]; ok {
		return b.Clone(), nil
	}
	u.store.mu.RLock()
	defer u.store.mu.RUnlock()
	if b, ok := u.store.bookings[id]; ok {
		return b.Clone(), nil
	}
	return nil, domainbooking.ErrBookingNotFound
}

// Save stages the booking. b.Version must be the version it was loaded with.
func (r bookingRepository) Save(ctx context.Context, b *domainbooking.Booking) error {
	u := r.unit
	u.mu.Lock()
	defer u.mu.Unlock()
	if err := u.writable(); err != nil {
		return err
	}
	current, ok := u.bookings[b.ID]
	if !ok {
		u.store.mu.RLock()
		current, ok = u.store.bookings[b.ID]
		u.store.mu.RUnlock()
		if ok {
			u.bases[bookingKey(b.ID)] = current.Version
		}
	}
	if (ok && current.Version != b.Version) || (!ok && b.Version != 0) {
		return ErrConcurrentUpdate
	}
	b.Version++
	u.bookings[b.ID] = b.Clone()
	return nil
}

func (r bookingRepository) ListByListing(ctx context.Context, listingID domainlistings.ListingID, statuses ...domainbooking.Status) ([]*domainbooking.Booking, error) {
	return r.collect(func(b *domainbooking.Booking) bool {
		if b.ListingID != listingID {
			return false
		}
		if len(statuses) == 0 {
			return true
		}
		for _, s := range statuses {
			if b.Status == s {
				return true
			}
		}
		return false
	}), nil
}

func (r bookingRepository) ListByParticipant(ctx context.Context, userID string) ([]*domainbooking.Booking, error) {
	userID = strings.TrimSpace(userID)
	return r.collect(func(b *domainbooking.Booking) bool {
		return userID != "" && (b.GuestID == userID || b.HostID == userID)
	}), nil
}

// collect merges staged and committed bookings, staged versions win.
func (r bookingRepository) collect(match func(*domainbooking.Booking) bool) []*domainbooking.Booking {
	u := r.unit
	u.mu.Lock()
	defer u.mu.Unlock()
	u.store.mu.RLock()
	defer u.store.mu.RUnlock()

	out := make([]*domainbooking.Booking, 0)
	for id, b := range u.store.bookings {
		if _, staged := u.bookings[id]; staged {
			continue
		}
		if match(b) {
			out = append(out, b.Clone())
		}
	}
	for _, b := range u.bookings {
		if match(b) {
			out = append(out, b.Clone())
		}
	}
	return out
}

type paymentRepository struct {
	unit *Unit
}

func (r paymentRepository) ByBooking(ctx context.Context, bookingID domainbooking.BookingID) (*domainpayment.Payment, error) {
	return r.find(func(p *domainpayment.Payment) bool { return p.BookingID == bookingID })
}

func (r paymentRepository) ByIntent(ctx context.Context, intentID string) (*domainpayment.Payment, error) {
	if strings.TrimSpace(intentID) == "" {
		return nil, domainpayment.ErrPaymentNotFound
	}
	return r.find(func(p *domainpayment.Payment) bool { return p.IntentID == intentID })
}

func (r paymentRepository) Save(ctx context.Context, p *domainpayment.Payment) error {
	u := r.unit
	u.mu.Lock()
	defer u.mu.Unlock()
	if err := u.writable(); err != nil {
		return err
	}
	current, ok := u.payments[p.ID]
	if !ok {
		u.store.mu.RLock()
		current, ok = u.store.payments[p.ID]
		u.store.mu.RUnlock()
		if ok {
			u.bases[paymentKey(p.ID)] = current.Version
		}
	}
	if (ok && current.Version != p.Version) || (!ok && p.Version != 0) {
		return ErrConcurrentUpdate
	}
	p.Version++
	u.payments[p.ID] = p.Clone()
	return nil
}

func (r paymentRepository) find(match func(*domainpayment.Payment) bool) (*domainpayment.Payment, error) {
	u := r.unit
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, p := range u.payments {
		if match(p) {
			return p.Clone(), nil
		}
	}
	u.store.mu.RLock()
	defer u.store.mu.RUnlock()
	for id, p := range u.store.payments {
		if _, staged := u.payments[id]; staged {
			continue
		}
		if match(p) {
			return p.Clone(), nil
		}
	}
	return nil, domainpayment.ErrPaymentNotFound
}
