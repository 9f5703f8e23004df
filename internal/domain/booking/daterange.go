package booking

import (
	"time"

	"staybook/internal/domain/shared/apperr"
	"staybook/internal/domain/shared/daterange"
)

var ErrCheckInInPast = apperr.Validation("booking: check-in date is in the past")

// ValidateStayDates checks a requested stay. Only calendar dates are compared
// for the check-in rule.
func ValidateStayDates(checkIn, checkOut, now time.Time) (daterange.DateRange, error) {
	if checkIn.IsZero() || checkOut.IsZero() {
		return daterange.DateRange{}, ErrInvalidRange
	}
	if daterange.DateOf(checkIn).Before(daterange.DateOf(now)) {
		return daterange.DateRange{}, ErrCheckInInPast
	}
	dr, err := daterange.New(checkIn, checkOut)
	if err != nil {
		return daterange.DateRange{}, ErrInvalidRange
	}
	return dr, nil
}
