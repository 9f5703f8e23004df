package booking

import (
	"time"

	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/money"
)

const (
	fullRefundDays    = 7
	partialRefundPct  = 50
	noRefundThreshold = daterange.Day
)

// RefundAmount applies the refund tiers to a booking snapshot:
// a week or more before check-in refunds everything, less than a day refunds
// nothing, anything in between refunds half.
func RefundAmount(b *Booking, now time.Time) money.Money {
	total := b.TotalPrice
	remaining := b.Range.CheckIn.Sub(now)
	if remaining < noRefundThreshold {
		return money.Zero(total.Currency)
	}
	if daterange.CeilDays(remaining) >= fullRefundDays {
		return total
	}
	return total.Percent(partialRefundPct)
}
