package booking

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staybook/internal/domain/listings"
	"staybook/internal/domain/shared/apperr"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/money"
)

var now = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func day(offset int) time.Time {
	return time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, offset)
}

func testListing(rate int64) *listings.Listing {
	return &listings.Listing{
		ID:          "lst-1",
		Owner:       "host-1",
		Title:       "Loft",
		NightlyRate: money.Must(rate, "THB"),
	}
}

func newPending(t *testing.T, checkIn, checkOut time.Time) *Booking {
	t.Helper()
	b, err := NewBooking(CreateParams{
		ID:        "bk-1",
		Listing:   testListing(100),
		GuestID:   "guest-1",
		Range:     daterange.DateRange{CheckIn: checkIn, CheckOut: checkOut},
		Guests:    2,
		CreatedAt: now,
	})
	require.NoError(t, err)
	return b
}

func confirmed(t *testing.T, checkIn, checkOut time.Time) *Booking {
	t.Helper()
	b := newPending(t, checkIn, checkOut)
	_, err := b.ConfirmPayment("pi_1", now)
	require.NoError(t, err)
	return b
}

func TestNewBookingFreezesPrice(t *testing.T) {
	listing := testListing(100)
	b, err := NewBooking(CreateParams{
		ID:        "bk-1",
		Listing:   listing,
		GuestID:   "guest-1",
		Range:     daterange.DateRange{CheckIn: day(10), CheckOut: day(13)},
		Guests:    2,
		CreatedAt: now,
	})
	require.NoError(t, err)

	assert.Equal(t, StatusPending, b.Status)
	assert.Equal(t, PaymentPending, b.PaymentStatus)
	assert.Equal(t, "host-1", b.HostID)
	assert.Equal(t, 3, b.Nights)
	assert.Equal(t, int64(300), b.TotalPrice.Amount)
	assert.Equal(t, int64(9), b.Commission.Amount)
	assert.Equal(t, int64(291), b.HostPayout.Amount)
	require.Len(t, b.PendingEvents(), 1)

	listing.NightlyRate = money.Must(500, "THB")
	require.NoError(t, b.Normalize())
	assert.Equal(t, int64(300), b.TotalPrice.Amount)
}

func TestNewBookingRejectsSelfBooking(t *testing.T) {
	_, err := NewBooking(CreateParams{
		Listing:   testListing(100),
		GuestID:   "host-1",
		Range:     daterange.DateRange{CheckIn: day(5), CheckOut: day(3)},
		Guests:    1,
		CreatedAt: now,
	})
	require.ErrorIs(t, err, ErrSelfBooking)
	assert.ErrorIs(t, err, apperr.ErrAuthorization)
}

func TestNewBookingValidation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*CreateParams)
		want   error
	}{
		{"no guest", func(p *CreateParams) { p.GuestID = " " }, ErrGuestRequired},
		{"zero guests", func(p *CreateParams) { p.Guests = 0 }, ErrInvalidGuests},
		{"inverted range", func(p *CreateParams) { p.Range = daterange.DateRange{CheckIn: day(4), CheckOut: day(4)} }, ErrInvalidRange},
		{"ownerless listing", func(p *CreateParams) { p.Listing.Owner = "" }, ErrListingWithoutOwner},
		{"missing listing", func(p *CreateParams) { p.Listing = nil }, listings.ErrListingNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			params := CreateParams{
				Listing:   testListing(100),
				GuestID:   "guest-1",
				Range:     daterange.DateRange{CheckIn: day(2), CheckOut: day(4)},
				Guests:    1,
				CreatedAt: now,
			}
			tc.mutate(&params)
			_, err := NewBooking(params)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestConfirmPaymentIsIdempotent(t *testing.T) {
	b := newPending(t, day(10), day(12))
	b.ClearEvents()

	changed, err := b.ConfirmPayment("pi_1", now)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, StatusConfirmed, b.Status)
	assert.Equal(t, PaymentPaid, b.PaymentStatus)

	changed, err = b.ConfirmPayment("pi_1", now.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Len(t, b.PendingEvents(), 1)
}

func TestConfirmPaymentUnderAnotherIntent(t *testing.T) {
	b := confirmed(t, day(10), day(12))
	b.ClearEvents()

	changed, err := b.ConfirmPayment("pi_2", now)
	assert.ErrorIs(t, err, ErrIntentMismatch)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
	assert.False(t, changed)
	assert.Equal(t, "pi_1", b.PaymentIntentID)
	assert.Empty(t, b.PendingEvents())
}

func TestConfirmPaymentOnCancelledBooking(t *testing.T) {
	b := newPending(t, day(10), day(12))
	require.True(t, b.Expire(now))

	_, err := b.ConfirmPayment("pi_1", now)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
}

func TestMarkPaymentFailedKeepsHold(t *testing.T) {
	b := newPending(t, day(10), day(12))
	changed, err := b.MarkPaymentFailed(now)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, StatusPending, b.Status)
	assert.Equal(t, PaymentFailed, b.PaymentStatus)
	assert.True(t, BlocksAvailability(b.Status))

	changed, err = b.MarkPaymentFailed(now)
	require.NoError(t, err)
	assert.False(t, changed)

	require.NoError(t, b.AttachPaymentIntent("pi_2", now))
	assert.Equal(t, PaymentPending, b.PaymentStatus)
	assert.Equal(t, "pi_2", b.PaymentIntentID)
}

func TestCancelRequiresConfirmedAndLeadTime(t *testing.T) {
	pending := newPending(t, day(10), day(12))
	assert.ErrorIs(t, pending.Cancel(ActorGuest, "plans changed", money.Zero("THB"), now), ErrNotCancellable)

	soon := confirmed(t, now.Add(12*time.Hour), now.Add(60*time.Hour))
	assert.False(t, CanBeCancelled(soon, now))
	assert.ErrorIs(t, soon.Cancel(ActorGuest, "", money.Zero("THB"), now), ErrNotCancellable)

	b := confirmed(t, day(10), day(12))
	require.NoError(t, b.Cancel(ActorHost, " maintenance ", money.Must(200, "THB"), now))
	assert.Equal(t, StatusCancelled, b.Status)
	require.NotNil(t, b.Cancellation)
	assert.Equal(t, ActorHost, b.Cancellation.By)
	assert.Equal(t, "maintenance", b.Cancellation.Reason)
	assert.True(t, b.RefundDue())
	assert.False(t, BlocksAvailability(b.Status))
}

func TestActorFor(t *testing.T) {
	b := newPending(t, day(10), day(12))
	actor, err := b.ActorFor("guest-1")
	require.NoError(t, err)
	assert.Equal(t, ActorGuest, actor)

	actor, err = b.ActorFor("host-1")
	require.NoError(t, err)
	assert.Equal(t, ActorHost, actor)

	_, err = b.ActorFor("stranger")
	assert.ErrorIs(t, err, apperr.ErrAuthorization)
}

func TestFinalizeRefund(t *testing.T) {
	b := confirmed(t, day(10), day(12))
	changed, err := b.FinalizeRefund(money.Must(200, "THB"), now)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, PaymentRefunded, b.PaymentStatus)
	assert.Equal(t, StatusCancelled, b.Status)
	require.NotNil(t, b.Cancellation)
	assert.Equal(t, ActorAdmin, b.Cancellation.By)

	changed, err = b.FinalizeRefund(money.Must(200, "THB"), now)
	require.NoError(t, err)
	assert.False(t, changed)

	unpaid := newPending(t, day(10), day(12))
	_, err = unpaid.FinalizeRefund(money.Must(200, "THB"), now)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestExpireIgnoresSettledBookings(t *testing.T) {
	b := confirmed(t, day(10), day(12))
	assert.False(t, b.Expire(now))
	assert.Equal(t, StatusConfirmed, b.Status)

	p := newPending(t, day(10), day(12))
	assert.True(t, p.Expire(now))
	assert.Equal(t, ActorSystem, p.Cancellation.By)
	assert.Equal(t, "payment window expired", p.Cancellation.Reason)
}

func TestComplete(t *testing.T) {
	b := confirmed(t, day(10), day(12))
	assert.ErrorIs(t, b.Complete(day(11)), ErrInvalidState)
	require.NoError(t, b.Complete(day(12)))
	assert.Equal(t, StatusCompleted, b.Status)
}

func TestCloneDropsEvents(t *testing.T) {
	b := confirmed(t, day(10), day(12))
	require.NoError(t, b.Cancel(ActorGuest, "x", money.Zero("THB"), now))
	clone := b.Clone()
	assert.Empty(t, clone.PendingEvents())
	clone.Cancellation.Reason = "changed"
	assert.Equal(t, "x", b.Cancellation.Reason)
}

func TestErrorKinds(t *testing.T) {
	assert.True(t, errors.Is(ErrDatesUnavailable, apperr.ErrConflict))
	assert.True(t, errors.Is(ErrBookingNotFound, apperr.ErrNotFound))
}
