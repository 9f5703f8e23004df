package booking

import (
	"time"

	"staybook/internal/domain/listings"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/money"
)

type BookingRequested struct {
	BookingID BookingID
	ListingID listings.ListingID
	GuestID   string
	HostID    string
	Range     daterange.DateRange
	Guests    int
	Total     money.Money
	At        time.Time
}

func (e BookingRequested) EventName() string     { return "booking.requested" }
func (e BookingRequested) AggregateID() string   { return string(e.BookingID) }
func (e BookingRequested) OccurredAt() time.Time { return e.At }

type BookingConfirmed struct {
	BookingID BookingID
	ListingID listings.ListingID
	Range     daterange.DateRange
	Total     money.Money
	IntentID  string
	At        time.Time
}

func (e BookingConfirmed) EventName() string     { return "booking.confirmed" }
func (e BookingConfirmed) AggregateID() string   { return string(e.BookingID) }
func (e BookingConfirmed) OccurredAt() time.Time { return e.At }

type BookingPaymentFailed struct {
	BookingID BookingID
	IntentID  string
	At        time.Time
}

func (e BookingPaymentFailed) EventName() string     { return "booking.payment_failed" }
func (e BookingPaymentFailed) AggregateID() string   { return string(e.BookingID) }
func (e BookingPaymentFailed) OccurredAt() time.Time { return e.At }

type BookingCancelled struct {
	BookingID BookingID
	ListingID listings.ListingID
	By        Actor
	Reason    string
	Refund    money.Money
	At        time.Time
}

func (e BookingCancelled) EventName() string     { return "booking.cancelled" }
func (e BookingCancelled) AggregateID() string   { return string(e.BookingID) }
func (e BookingCancelled) OccurredAt() time.Time { return e.At }

type BookingExpired struct {
	BookingID BookingID
	ListingID listings.ListingID
	At        time.Time
}

func (e BookingExpired) EventName() string     { return "booking.expired" }
func (e BookingExpired) AggregateID() string   { return string(e.BookingID) }
func (e BookingExpired) OccurredAt() time.Time { return e.At }

type BookingRefunded struct {
	BookingID BookingID
	Amount    money.Money
	At        time.Time
}

func (e BookingRefunded) EventName() string     { return "booking.refunded" }
func (e BookingRefunded) AggregateID() string   { return string(e.BookingID) }
func (e BookingRefunded) OccurredAt() time.Time { return e.At }

type BookingCompleted struct {
	BookingID BookingID
	At        time.Time
}

func (e BookingCompleted) EventName() string     { return "booking.completed" }
func (e BookingCompleted) AggregateID() string   { return string(e.BookingID) }
func (e BookingCompleted) OccurredAt() time.Time { return e.At }

type ReconciliationFlagged struct {
	BookingID BookingID
	Note      string
	At        time.Time
}

func (e ReconciliationFlagged) EventName() string     { return "booking.reconciliation_flagged" }
func (e ReconciliationFlagged) AggregateID() string   { return string(e.BookingID) }
func (e ReconciliationFlagged) OccurredAt() time.Time { return e.At }
