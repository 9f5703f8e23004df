package booking

import (
	"time"

	"staybook/internal/domain/shared/daterange"
)

// CanBeCancelled allows cancelling confirmed stays more than a day before check-in.
func CanBeCancelled(b *Booking, now time.Time) bool {
	if b.Status != StatusConfirmed {
		return false
	}
	return daterange.CeilDays(b.Range.CheckIn.Sub(now)) > 1
}
