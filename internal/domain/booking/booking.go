package booking

import (
	"context"
	"strings"
	"time"

	"staybook/internal/domain/listings"
	"staybook/internal/domain/shared/apperr"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/events"
	"staybook/internal/domain/shared/money"
)

var (
	ErrBookingNotFound     = apperr.NotFound("booking: not found")
	ErrInvalidGuests       = apperr.Validation("booking: guests count must be positive")
	ErrGuestRequired       = apperr.Validation("booking: guest id required")
	ErrInvalidRange        = apperr.Validation("booking: check-out must be after check-in")
	ErrInvalidRate         = apperr.Validation("booking: nightly rate must be positive")
	ErrListingWithoutOwner = apperr.Validation("booking: listing has no owner and cannot be booked")
	ErrSelfBooking         = apperr.Authorization("booking: hosts cannot book their own listing")
	ErrNotParticipant      = apperr.Authorization("booking: actor is neither guest nor host")
	ErrDatesUnavailable    = apperr.Conflict("booking: listing is not available for the selected dates")
	ErrInvalidState        = apperr.InvalidState("booking: invalid state transition")
	ErrNotCancellable      = apperr.InvalidState("booking: booking cannot be cancelled")
	ErrAlreadyPaid         = apperr.InvalidState("booking: payment already completed")
	ErrIntentMismatch      = apperr.InvalidState("booking: payment settled under a different intent")
)

type BookingID string

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

type Actor string

const (
	ActorGuest  Actor = "guest"
	ActorHost   Actor = "host"
	ActorAdmin  Actor = "admin"
	ActorSystem Actor = "system"
)

// Cancellation is set only once a booking is cancelled.
type Cancellation struct {
	Reason string
	At     time.Time
	By     Actor
}

type Booking struct {
	ID              BookingID
	ListingID       listings.ListingID
	GuestID         string
	HostID          string
	Range           daterange.DateRange
	Guests          int
	SpecialRequests string

	NightlyRate money.Money
	Nights      int
	TotalPrice  money.Money
	Commission  money.Money
	HostPayout  money.Money

	Status          Status
	PaymentStatus   PaymentStatus
	PaymentIntentID string
	RefundID        string
	RefundAmount    money.Money
	Cancellation    *Cancellation

	NeedsReconciliation bool
	ReconciliationNote  string

	CreatedAt time.Time
	UpdatedAt time.Time
	Version   int64
	events.EventRecorder
}

type Repository interface {
	ByID(ctx context.Context, id BookingID) (*Booking, error)
	Save(ctx context.Context, booking *Booking) error
	ListByListing(ctx context.Context, listingID listings.ListingID, statuses ...Status) ([]*Booking, error)
	ListByParticipant(ctx context.Context, userID string) ([]*Booking, error)
}

type CreateParams struct {
	ID              BookingID
	Listing         *listings.Listing
	GuestID         string
	Range           daterange.DateRange
	Guests          int
	SpecialRequests string
	CreatedAt       time.Time
}

// NewBooking builds a pending booking. The host and nightly rate are copied
// from the listing and never read from it again.
func NewBooking(params CreateParams) (*Booking, error) {
	listing := params.Listing
	if listing == nil {
		return nil, listings.ErrListingNotFound
	}
	if !listing.HasOwner() {
		return nil, ErrListingWithoutOwner
	}
	guestID := strings.TrimSpace(params.GuestID)
	if guestID == "" {
		return nil, ErrGuestRequired
	}
	if guestID == string(listing.Owner) {
		return nil, ErrSelfBooking
	}
	if params.Guests <= 0 {
		return nil, ErrInvalidGuests
	}
	now := params.CreatedAt.UTC()
	b := &Booking{
		ID:              params.ID,
		ListingID:       listing.ID,
		GuestID:         guestID,
		HostID:          string(listing.Owner),
		Range:           params.Range,
		Guests:          params.Guests,
		SpecialRequests: strings.TrimSpace(params.SpecialRequests),
		NightlyRate:     listing.NightlyRate,
		Status:          StatusPending,
		PaymentStatus:   PaymentPending,
		RefundAmount:    money.Zero(listing.NightlyRate.Currency),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := b.Normalize(); err != nil {
		return nil, err
	}
	b.Record(BookingRequested{BookingID: b.ID, ListingID: b.ListingID, GuestID: b.GuestID, HostID: b.HostID, Range: b.Range, Guests: b.Guests, Total: b.TotalPrice, At: now})
	return b, nil
}

// Normalize recomputes every derived commercial field from the stay dates and
// the quoted nightly rate. It must run before each persist.
func (b *Booking) Normalize() error {
	if err := b.Range.Validate(); err != nil {
		return ErrInvalidRange
	}
	if b.NightlyRate.Amount <= 0 || b.NightlyRate.Currency == "" {
		return ErrInvalidRate
	}
	quote := Price(b.NightlyRate, b.Range)
	b.Nights = quote.Nights
	b.TotalPrice = quote.Total
	split, err := SplitCommission(b.TotalPrice)
	if err != nil {
		return ErrInvalidRate
	}
	b.Commission = split.Commission
	b.HostPayout = split.HostPayout
	if b.RefundAmount.Currency == "" {
		b.RefundAmount = money.Zero(b.NightlyRate.Currency)
	}
	return nil
}

// ActorFor resolves the role userID plays in the booking.
func (b *Booking) ActorFor(userID string) (Actor, error) {
	switch strings.TrimSpace(userID) {
	case "":
		return "", ErrNotParticipant
	case b.GuestID:
		return ActorGuest, nil
	case b.HostID:
		return ActorHost, nil
	}
	return "", ErrNotParticipant
}

// AttachPaymentIntent records the provider intent that will settle the booking.
func (b *Booking) AttachPaymentIntent(intentID string, now time.Time) error {
	if b.PaymentStatus == PaymentPaid || b.PaymentStatus == PaymentRefunded {
		return ErrAlreadyPaid
	}
	if b.Status != StatusPending {
		return ErrInvalidState
	}
	b.PaymentIntentID = intentID
	b.PaymentStatus = PaymentPending
	b.touch(now)
	return nil
}

// ConfirmPayment moves a pending booking to confirmed/paid. A booking that is
// already confirmed and paid is left untouched and changed is false, unless the
// success belongs to another intent: that is a second charge and fails with
// ErrIntentMismatch.
func (b *Booking) ConfirmPayment(intentID string, now time.Time) (changed bool, err error) {
	if b.Status == StatusConfirmed && b.PaymentStatus == PaymentPaid {
		if intentID != "" && b.PaymentIntentID != "" && intentID != b.PaymentIntentID {
			return false, ErrIntentMismatch
		}
		return false, nil
	}
	if b.Status != StatusPending {
		return false, ErrInvalidState
	}
	if intentID != "" {
		b.PaymentIntentID = intentID
	}
	b.Status = StatusConfirmed
	b.PaymentStatus = PaymentPaid
	b.touch(now)
	b.Record(BookingConfirmed{BookingID: b.ID, ListingID: b.ListingID, Range: b.Range, Total: b.TotalPrice, IntentID: b.PaymentIntentID, At: b.UpdatedAt})
	return true, nil
}

// MarkPaymentFailed keeps the hold so the guest can retry payment.
func (b *Booking) MarkPaymentFailed(now time.Time) (changed bool, err error) {
	if b.PaymentStatus == PaymentFailed {
		return false, nil
	}
	if b.Status != StatusPending || b.PaymentStatus != PaymentPending {
		return false, ErrInvalidState
	}
	b.PaymentStatus = PaymentFailed
	b.touch(now)
	b.Record(BookingPaymentFailed{BookingID: b.ID, IntentID: b.PaymentIntentID, At: b.UpdatedAt})
	return true, nil
}

// Cancel cancels a confirmed booking on behalf of its guest or host and keeps
// the refund owed so it can be issued once the cancellation is stored.
func (b *Booking) Cancel(actor Actor, reason string, refund money.Money, now time.Time) error {
	if actor != ActorGuest && actor != ActorHost {
		return ErrNotParticipant
	}
	if !CanBeCancelled(b, now) {
		return ErrNotCancellable
	}
	b.Status = StatusCancelled
	b.touch(now)
	b.Cancellation = &Cancellation{Reason: strings.TrimSpace(reason), At: b.UpdatedAt, By: actor}
	b.RefundAmount = refund
	b.Record(BookingCancelled{BookingID: b.ID, ListingID: b.ListingID, By: actor, Reason: b.Cancellation.Reason, Refund: refund, At: b.UpdatedAt})
	return nil
}

// RefundDue reports whether a provider refund still has to be issued.
func (b *Booking) RefundDue() bool {
	return b.Status == StatusCancelled &&
		b.PaymentStatus == PaymentPaid &&
		b.RefundAmount.Amount > 0 &&
		b.PaymentIntentID != "" &&
		b.RefundID == ""
}

// RecordRefundIssued stores the provider refund id; finalisation follows the provider event.
func (b *Booking) RecordRefundIssued(refundID string, now time.Time) error {
	if b.Status != StatusCancelled {
		return ErrInvalidState
	}
	if b.RefundID == refundID {
		return nil
	}
	b.RefundID = refundID
	b.NeedsReconciliation = false
	b.ReconciliationNote = ""
	b.touch(now)
	return nil
}

// FinalizeRefund marks the payment refunded and the booking cancelled.
func (b *Booking) FinalizeRefund(amount money.Money, now time.Time) (changed bool, err error) {
	if b.PaymentStatus == PaymentRefunded {
		return false, nil
	}
	if b.PaymentStatus != PaymentPaid {
		return false, ErrInvalidState
	}
	b.PaymentStatus = PaymentRefunded
	b.Status = StatusCancelled
	b.touch(now)
	if b.Cancellation == nil {
		b.Cancellation = &Cancellation{Reason: "refunded by payment provider", At: b.UpdatedAt, By: ActorAdmin}
	}
	if amount.Amount > 0 {
		b.RefundAmount = amount
	}
	b.NeedsReconciliation = false
	b.ReconciliationNote = ""
	b.Record(BookingRefunded{BookingID: b.ID, Amount: b.RefundAmount, At: b.UpdatedAt})
	return true, nil
}

// Expire releases a hold whose payment never arrived. Bookings that moved on are ignored.
func (b *Booking) Expire(now time.Time) (changed bool) {
	if b.Status != StatusPending || b.PaymentStatus == PaymentPaid {
		return false
	}
	b.Status = StatusCancelled
	b.touch(now)
	b.Cancellation = &Cancellation{Reason: "payment window expired", At: b.UpdatedAt, By: ActorSystem}
	b.Record(BookingExpired{BookingID: b.ID, ListingID: b.ListingID, At: b.UpdatedAt})
	return true
}

// Complete closes a confirmed stay once the check-out date has passed.
func (b *Booking) Complete(now time.Time) error {
	if b.Status != StatusConfirmed {
		return ErrInvalidState
	}
	if now.Before(b.Range.CheckOut) {
		return ErrInvalidState
	}
	b.Status = StatusCompleted
	b.touch(now)
	b.Record(BookingCompleted{BookingID: b.ID, At: b.UpdatedAt})
	return nil
}

// FlagForReconciliation marks a divergence between provider and local state.
func (b *Booking) FlagForReconciliation(note string, now time.Time) {
	b.NeedsReconciliation = true
	b.ReconciliationNote = note
	b.touch(now)
	b.Record(ReconciliationFlagged{BookingID: b.ID, Note: note, At: b.UpdatedAt})
}

// Clone returns a deep copy without pending events.
func (b *Booking) Clone() *Booking {
	clone := *b
	clone.EventRecorder = events.EventRecorder{}
	if b.Cancellation != nil {
		c := *b.Cancellation
		clone.Cancellation = &c
	}
	return &clone
}

func (b *Booking) touch(now time.Time) {
	b.UpdatedAt = now.UTC()
}
