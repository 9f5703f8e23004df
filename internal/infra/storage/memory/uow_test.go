package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appoutbox "staybook/internal/app/outbox"
	"staybook/internal/app/middleware"
	"staybook/internal/app/schedule"
	"staybook/internal/app/uow"
	domainbooking "staybook/internal/domain/booking"
	"staybook/internal/domain/listings"
	domainpayment "staybook/internal/domain/payment"
	"staybook/internal/domain/shared/apperr"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/money"
)

var testNow = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func seedBooking(t *testing.T, s *Store, id string) *domainbooking.Booking {
	t.Helper()
	ctx := context.Background()
	b, err := domainbooking.NewBooking(domainbooking.CreateParams{
		ID: domainbooking.BookingID(id),
		Listing: &listings.Listing{
			ID: "lst-1", Owner: "host-1", Title: "Loft", NightlyRate: money.Must(100, "THB"),
		},
		GuestID:   "guest-1",
		Range:     daterange.DateRange{CheckIn: testNow.AddDate(0, 0, 5), CheckOut: testNow.AddDate(0, 0, 7)},
		Guests:    1,
		CreatedAt: testNow,
	})
	require.NoError(t, err)
	unit, err := s.Begin(ctx, uow.TxOptions{})
	require.NoError(t, err)
	require.NoError(t, unit.Bookings().Save(ctx, b))
	require.NoError(t, unit.Commit(ctx))
	return b
}

func TestUnitStagesUntilCommit(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	b, err := domainbooking.NewBooking(domainbooking.CreateParams{
		ID:        "bk-1",
		Listing:   &listings.Listing{ID: "lst-1", Owner: "host-1", Title: "Loft", NightlyRate: money.Must(100, "THB")},
		GuestID:   "guest-1",
		Range:     daterange.DateRange{CheckIn: testNow.AddDate(0, 0, 5), CheckOut: testNow.AddDate(0, 0, 7)},
		Guests:    1,
		CreatedAt: testNow,
	})
	require.NoError(t, err)

	unit, err := s.Begin(ctx, uow.TxOptions{})
	require.NoError(t, err)
	require.NoError(t, unit.Bookings().Save(ctx, b))

	staged, err := unit.Bookings().ByID(ctx, "bk-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), staged.Version)

	other, err := s.Begin(ctx, uow.TxOptions{ReadOnly: true})
	require.NoError(t, err)
	_, err = other.Bookings().ByID(ctx, "bk-1")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	require.NoError(t, unit.Commit(ctx))
	got, err := other.Bookings().ByID(ctx, "bk-1")
	require.NoError(t, err)
	assert.Equal(t, domainbooking.StatusPending, got.Status)
}

func TestRollbackDiscardsWrites(t *testing.T) {
	s := NewStore()
	b := seedBooking(t, s, "bk-1")
	ctx := context.Background()

	unit, err := s.Begin(ctx, uow.TxOptions{})
	require.NoError(t, err)
	loaded, err := unit.Bookings().ByID(ctx, b.ID)
	require.NoError(t, err)
	loaded.Expire(testNow)
	require.NoError(t, unit.Bookings().Save(ctx, loaded))
	require.NoError(t, unit.Rollback(ctx))
	assert.ErrorIs(t, unit.Commit(ctx), ErrUnitClosed)

	check, _ := s.Begin(ctx, uow.TxOptions{ReadOnly: true})
	got, err := check.Bookings().ByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, domainbooking.StatusPending, got.Status)
}

func TestConcurrentUnitsConflict(t *testing.T) {
	s := NewStore()
	b := seedBooking(t, s, "bk-1")
	ctx := context.Background()

	first, _ := s.Begin(ctx, uow.TxOptions{})
	second, _ := s.Begin(ctx, uow.TxOptions{})
	a, err := first.Bookings().ByID(ctx, b.ID)
	require.NoError(t, err)
	c, err := second.Bookings().ByID(ctx, b.ID)
	require.NoError(t, err)

	_, err = a.ConfirmPayment("pi_1", testNow)
	require.NoError(t, err)
	require.NoError(t, first.Bookings().Save(ctx, a))
	c.Expire(testNow)
	require.NoError(t, second.Bookings().Save(ctx, c))

	require.NoError(t, first.Commit(ctx))
	assert.ErrorIs(t, second.Commit(ctx), apperr.ErrConflict)

	check, _ := s.Begin(ctx, uow.TxOptions{ReadOnly: true})
	got, err := check.Bookings().ByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, domainbooking.StatusConfirmed, got.Status)
}

func TestSavingTwiceInOneUnitCommits(t *testing.T) {
	s := NewStore()
	b := seedBooking(t, s, "bk-1")
	ctx := context.Background()

	unit, _ := s.Begin(ctx, uow.TxOptions{})
	loaded, err := unit.Bookings().ByID(ctx, b.ID)
	require.NoError(t, err)
	require.NoError(t, loaded.AttachPaymentIntent("pi_1", testNow))
	require.NoError(t, unit.Bookings().Save(ctx, loaded))
	_, err = loaded.ConfirmPayment("pi_1", testNow)
	require.NoError(t, err)
	require.NoError(t, unit.Bookings().Save(ctx, loaded))
	require.NoError(t, unit.Commit(ctx))

	check, _ := s.Begin(ctx, uow.TxOptions{ReadOnly: true})
	got, err := check.Bookings().ByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.Version)
}

func TestStaleSaveIsRejected(t *testing.T) {
	s := NewStore()
	b := seedBooking(t, s, "bk-1")
	ctx := context.Background()

	unit, _ := s.Begin(ctx, uow.TxOptions{})
	b.Version = 0
	assert.ErrorIs(t, unit.Bookings().Save(ctx, b), ErrConcurrentUpdate)
}

func TestReadOnlyUnitRejectsWrites(t *testing.T) {
	s := NewStore()
	b := seedBooking(t, s, "bk-1")
	ctx := context.Background()

	unit, _ := s.Begin(ctx, uow.TxOptions{ReadOnly: true})
	assert.ErrorIs(t, unit.Bookings().Save(ctx, b), ErrReadOnly)
}

func TestListByListingMergesStagedRows(t *testing.T) {
	s := NewStore()
	b := seedBooking(t, s, "bk-1")
	ctx := context.Background()

	unit, _ := s.Begin(ctx, uow.TxOptions{})
	loaded, err := unit.Bookings().ByID(ctx, b.ID)
	require.NoError(t, err)
	loaded.Expire(testNow)
	require.NoError(t, unit.Bookings().Save(ctx, loaded))

	blocking, err := unit.Bookings().ListByListing(ctx, "lst-1", domainbooking.BlockingStatuses...)
	require.NoError(t, err)
	assert.Empty(t, blocking)

	all, err := unit.Bookings().ListByParticipant(ctx, "host-1")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, domainbooking.StatusCancelled, all[0].Status)
}

func TestPaymentIntentIsUnique(t *testing.T) {
	s := NewStore()
	b := seedBooking(t, s, "bk-1")
	other := seedBooking(t, s, "bk-2")
	ctx := context.Background()

	unit, _ := s.Begin(ctx, uow.TxOptions{})
	p, err := domainpayment.New("pay-1", b, "pi_1", testNow)
	require.NoError(t, err)
	require.NoError(t, unit.Payments().Save(ctx, p))
	require.NoError(t, unit.Commit(ctx))

	unit, _ = s.Begin(ctx, uow.TxOptions{})
	dup, err := domainpayment.New("pay-2", other, "pi_1", testNow)
	require.NoError(t, err)
	require.NoError(t, unit.Payments().Save(ctx, dup))
	assert.ErrorIs(t, unit.Commit(ctx), apperr.ErrConflict)

	check, _ := s.Begin(ctx, uow.TxOptions{ReadOnly: true})
	found, err := check.Payments().ByIntent(ctx, "pi_1")
	require.NoError(t, err)
	assert.Equal(t, "pay-1", found.ID)
}

func TestOutboxRecordsFollowCommit(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	unit, _ := s.Begin(ctx, uow.TxOptions{})
	txCtx := uow.InjectSession(ctx, unit)
	require.NoError(t, s.Outbox().Add(txCtx, appoutbox.EventRecord{ID: "e1", Name: "booking.requested"}))
	assert.Empty(t, s.Outbox().Pending())
	require.NoError(t, unit.Rollback(ctx))
	assert.Empty(t, s.Outbox().Pending())

	unit, _ = s.Begin(ctx, uow.TxOptions{})
	txCtx = uow.InjectSession(ctx, unit)
	require.NoError(t, s.Outbox().Add(txCtx, appoutbox.EventRecord{ID: "e2", Name: "booking.requested"}))
	require.NoError(t, unit.Commit(ctx))
	require.Len(t, s.Outbox().Pending(), 1)

	msg, err := s.Outbox().Claim(ctx, "w1")
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, "e2", msg.ID)

	next, err := s.Outbox().Claim(ctx, "w1")
	require.NoError(t, err)
	assert.Nil(t, next)

	require.NoError(t, s.Outbox().MarkFailed(ctx, "e2", time.Now().Add(-time.Second), "boom"))
	msg, err = s.Outbox().Claim(ctx, "w1")
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, 1, msg.Attempts)
	require.NoError(t, s.Outbox().MarkSent(ctx, "e2"))
	assert.Empty(t, s.Outbox().Pending())
}

func TestLockerSerializesKey(t *testing.T) {
	l := NewLocker()
	unlock, err := l.Lock(context.Background(), "k")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "k")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	other, err := l.Lock(context.Background(), "other")
	require.NoError(t, err)
	other()

	unlock()
	unlock()
	again, err := l.Lock(context.Background(), "k")
	require.NoError(t, err)
	again()
	assert.Empty(t, l.slots)
}

func idemRecord(key string, at time.Time) middleware.IdempotencyRecord {
	return middleware.IdempotencyRecord{Key: key, Payload: []byte(`{}`), OccurredAt: at}
}

func TestIdempotencyStoreExpires(t *testing.T) {
	s := NewIdempotencyStore(time.Hour)
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, idemRecord("k1", time.Now().UTC())))
	_, found, err := s.Get(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, found)

	require.NoError(t, s.Save(ctx, idemRecord("k2", time.Now().Add(-2*time.Hour))))
	_, found, err = s.Get(ctx, "k2")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestInboxClaimsOnce(t *testing.T) {
	in := NewInbox()
	ctx := context.Background()
	first, err := in.Claim(ctx, "evt-1")
	require.NoError(t, err)
	second, err := in.Claim(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, first)
	assert.False(t, second)

	require.NoError(t, in.Release(ctx, "evt-1"))
	again, err := in.Claim(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, again)
}

func TestSchedulerRunsDueTaskOnce(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := NewScheduler(ctx, nil)
	ran := make(chan string, 4)
	s.Handle("ping", func(ctx context.Context, payload []byte) error {
		ran <- string(payload)
		return nil
	})

	task := schedule.Task{Name: "ping", ID: "t1", Payload: []byte("hello"), RunAt: time.Now().Add(50 * time.Millisecond)}
	require.NoError(t, s.Schedule(ctx, task))
	require.NoError(t, s.Schedule(ctx, task))

	select {
	case got := <-ran:
		assert.Equal(t, "hello", got)
	case <-time.After(time.Second):
		t.Fatal("task did not run")
	}
	select {
	case <-ran:
		t.Fatal("duplicate task ran")
	case <-time.After(100 * time.Millisecond):
	}
	assert.Error(t, s.Schedule(ctx, schedule.Task{Name: "unknown", RunAt: time.Now()}))
}
