package daterange

import (
	"errors"
	"time"
)

const Day = 24 * time.Hour

var (
	ErrInvalidRange = errors.New("daterange: checkout must be after checkin")
)

// DateRange represents a half-open interval [checkIn, checkOut)
type DateRange struct {
	CheckIn  time.Time
	CheckOut time.Time
}

func New(checkIn, checkOut time.Time) (DateRange, error) {
	dr := DateRange{CheckIn: checkIn.UTC(), CheckOut: checkOut.UTC()}
	if err := dr.Validate(); err != nil {
		return DateRange{}, err
	}
	return dr, nil
}

func (dr DateRange) Validate() error {
	if dr.CheckOut.IsZero() || dr.CheckIn.IsZero() {
		return ErrInvalidRange
	}
	if !dr.CheckOut.After(dr.CheckIn) {
		return ErrInvalidRange
	}
	return nil
}

// Nights rounds partial days up, so a 26 hour stay is two nights.
func (dr DateRange) Nights() int {
	return CeilDays(dr.CheckOut.Sub(dr.CheckIn))
}

// Overlaps reports whether the ranges share time; back-to-back stays do not overlap.
func (dr DateRange) Overlaps(other DateRange) bool {
	return dr.CheckIn.Before(other.CheckOut) && dr.CheckOut.After(other.CheckIn)
}

// DateOf drops the time of day, keeping the calendar date in UTC.
func DateOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// CeilDays converts a duration to whole days rounding up. Negative values round toward zero.
func CeilDays(d time.Duration) int {
	days := int(d / Day)
	if d > 0 && d%Day != 0 {
		days++
	}
	return days
}
