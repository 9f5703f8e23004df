package booking

import "staybook/internal/domain/shared/daterange"

// BlockingStatuses are the statuses that hold dates on a listing.
var BlockingStatuses = []Status{StatusPending, StatusConfirmed}

// BlocksAvailability reports whether a booking in status s holds its dates.
func BlocksAvailability(s Status) bool {
	return s == StatusPending || s == StatusConfirmed
}

// FirstConflict returns the first blocking booking overlapping candidate, or nil.
func FirstConflict(existing []*Booking, candidate daterange.DateRange) *Booking {
	for _, b := range existing {
		if b == nil || !BlocksAvailability(b.Status) {
			continue
		}
		if b.Range.Overlaps(candidate) {
			return b
		}
	}
	return nil
}

// IsAvailable reports whether candidate can be booked next to existing bookings.
func IsAvailable(existing []*Booking, candidate daterange.DateRange) bool {
	return FirstConflict(existing, candidate) == nil
}
