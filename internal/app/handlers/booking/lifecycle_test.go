package booking_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staybook/internal/app/commands"
	"staybook/internal/app/dto"
	"staybook/internal/app/handlers/base"
	bookingapp "staybook/internal/app/handlers/booking"
	"staybook/internal/app/middleware"
	"staybook/internal/app/outbox"
	"staybook/internal/app/queries"
	"staybook/internal/app/schedule"
	"staybook/internal/app/uow"
	domainbooking "staybook/internal/domain/booking"
	"staybook/internal/domain/listings"
	"staybook/internal/domain/shared/apperr"
	"staybook/internal/domain/shared/money"
	"staybook/internal/infra/payments/sandbox"
	"staybook/internal/infra/storage/memory"
)

type recordingScheduler struct {
	mu    sync.Mutex
	tasks []schedule.Task
}

func (s *recordingScheduler) Schedule(ctx context.Context, task schedule.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append(s.tasks, task)
	return nil
}

type harness struct {
	cmds      commands.Bus
	queries   queries.Bus
	store     *memory.Store
	scheduler *recordingScheduler
	provider  *sandbox.Provider
	now       time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store:     memory.NewStore(),
		scheduler: &recordingScheduler{},
		provider:  sandbox.New(),
		now:       time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	deps := base.Deps{
		UoWFactory: h.store,
		Outbox:     h.store.Outbox(),
		Encoder:    outbox.JSONEventEncoder{},
		Logger:     logger,
		Clock:      func() time.Time { return h.now },
	}
	cmdBus := commands.NewInMemoryBus()
	queryBus := queries.NewInMemoryBus()
	n := 0
	bookingapp.Register(cmdBus, queryBus, deps, bookingapp.Options{
		Scheduler: h.scheduler,
		HoldTTL:   30 * time.Minute,
		NewID: func() string {
			n++
			return fmt.Sprintf("bk-%d", n)
		},
	})
	h.cmds = middleware.ChainCommands(cmdBus, middleware.Standard(memory.NewIdempotencyStore(time.Hour), memory.NewLocker(), h.store, h.store.Outbox(), middleware.NewStructValidator(), logger)...)
	h.queries = queryBus

	ctx := context.Background()
	unit, err := h.store.Begin(ctx, uow.TxOptions{})
	require.NoError(t, err)
	listing, err := listings.NewListing(listings.CreateListingParams{
		ID:          "lst-1",
		Owner:       "host-1",
		Title:       "Loft",
		NightlyRate: money.Must(1000, "THB"),
		Now:         h.now,
	})
	require.NoError(t, err)
	require.NoError(t, unit.Listings().Save(ctx, listing))
	require.NoError(t, unit.Commit(ctx))
	return h
}

func day(offset int) time.Time {
	return time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, offset)
}

func (h *harness) create(t *testing.T, guest string, from, to int) *dto.Booking {
	t.Helper()
	b, err := commands.Dispatch[bookingapp.CreateBookingCommand, *dto.Booking](context.Background(), h.cmds, bookingapp.CreateBookingCommand{
		ListingID: "lst-1",
		GuestID:   guest,
		CheckIn:   day(from),
		CheckOut:  day(to),
		Guests:    1,
	})
	require.NoError(t, err)
	return b
}

func (h *harness) get(t *testing.T, id string) dto.Booking {
	t.Helper()
	b, err := queries.Ask[bookingapp.GetBookingQuery, dto.Booking](context.Background(), h.queries, bookingapp.GetBookingQuery{BookingID: id, ActorID: "host-1"})
	require.NoError(t, err)
	return b
}

func (h *harness) confirm(t *testing.T, id string) *bookingapp.Settlement {
	t.Helper()
	res, err := commands.Dispatch[bookingapp.ConfirmPaymentCommand, *bookingapp.Settlement](context.Background(), h.cmds, bookingapp.ConfirmPaymentCommand{BookingID: id, IntentID: "pi_1"})
	require.NoError(t, err)
	return res
}

func TestCreateSchedulesExpiry(t *testing.T) {
	h := newHarness(t)
	b := h.create(t, "guest-1", 10, 12)

	require.Len(t, h.scheduler.tasks, 1)
	task := h.scheduler.tasks[0]
	assert.Equal(t, schedule.TaskExpireBooking, task.Name)
	assert.Equal(t, "expire-"+b.ID, task.ID)
	assert.Equal(t, h.now.Add(30*time.Minute), task.RunAt)
}

func TestCreateRecordsEventInOutbox(t *testing.T) {
	h := newHarness(t)
	h.create(t, "guest-1", 10, 12)

	pending := h.store.Outbox().Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, "booking.requested", pending[0].Name)
}

func TestExpiryTaskCancelsUnpaidHold(t *testing.T) {
	h := newHarness(t)
	b := h.create(t, "guest-1", 10, 12)

	task := bookingapp.ExpiryTask(h.cmds)
	require.NoError(t, task(context.Background(), h.scheduler.tasks[0].Payload))

	got := h.get(t, b.ID)
	assert.Equal(t, string(domainbooking.StatusCancelled), got.Status)
	require.NotNil(t, got.Cancellation)
	assert.Equal(t, "system", got.Cancellation.By)

	// the dates are free again
	h.create(t, "guest-2", 10, 12)
}

func TestExpiryTaskLeavesPaidBooking(t *testing.T) {
	h := newHarness(t)
	b := h.create(t, "guest-1", 10, 12)
	h.confirm(t, b.ID)

	require.NoError(t, bookingapp.ExpiryTask(h.cmds)(context.Background(), h.scheduler.tasks[0].Payload))
	assert.Equal(t, string(domainbooking.StatusConfirmed), h.get(t, b.ID).Status)
}

func TestExpiryTaskIgnoresMissingBooking(t *testing.T) {
	h := newHarness(t)
	assert.NoError(t, bookingapp.ExpiryTask(h.cmds)(context.Background(), []byte(`{"booking_id":"gone"}`)))
}

func TestConfirmIsIdempotent(t *testing.T) {
	h := newHarness(t)
	b := h.create(t, "guest-1", 10, 12)

	first := h.confirm(t, b.ID)
	second := h.confirm(t, b.ID)

	assert.True(t, first.Changed)
	assert.False(t, second.Changed)
	assert.Equal(t, "paid", second.Booking.PaymentStatus)
}

func TestFailedPaymentKeepsHold(t *testing.T) {
	h := newHarness(t)
	b := h.create(t, "guest-1", 10, 12)

	res, err := commands.Dispatch[bookingapp.ReconcileFailureCommand, *bookingapp.Settlement](context.Background(), h.cmds, bookingapp.ReconcileFailureCommand{BookingID: b.ID})
	require.NoError(t, err)
	assert.Equal(t, "pending", res.Booking.Status)
	assert.Equal(t, "failed", res.Booking.PaymentStatus)

	_, err = commands.Dispatch[bookingapp.CreateBookingCommand, *dto.Booking](context.Background(), h.cmds, bookingapp.CreateBookingCommand{
		ListingID: "lst-1", GuestID: "guest-2", CheckIn: day(11), CheckOut: day(13), Guests: 1,
	})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	// a later success still confirms
	assert.Equal(t, "confirmed", h.confirm(t, b.ID).Booking.Status)
}

func TestCancelBoundary(t *testing.T) {
	h := newHarness(t)
	b := h.create(t, "guest-1", 10, 12)
	h.confirm(t, b.ID)

	h.now = day(10).Add(-12 * time.Hour)
	_, err := commands.Dispatch[bookingapp.CancelBookingCommand, dto.CancelResult](context.Background(), h.cmds, bookingapp.CancelBookingCommand{BookingID: b.ID, ActorID: "guest-1"})
	assert.ErrorIs(t, err, apperr.ErrInvalidState)

	h.now = day(10).Add(-24*time.Hour - time.Second)
	res, err := commands.Dispatch[bookingapp.CancelBookingCommand, dto.CancelResult](context.Background(), h.cmds, bookingapp.CancelBookingCommand{BookingID: b.ID, ActorID: "guest-1"})
	require.NoError(t, err)
	assert.Equal(t, "cancelled", res.Booking.Status)
	// a day and a second out is within the half refund tier
	assert.Equal(t, int64(1000), res.Refund.Amount)
	assert.True(t, res.RefundRequired)
}

func TestCancellationFlowIssuesRefund(t *testing.T) {
	h := newHarness(t)
	b := h.create(t, "guest-1", 10, 12)
	intentID, err := h.provider.CreateIntent(context.Background(), money.Must(2000, "THB"), "guest-1", map[string]string{"booking_id": b.ID})
	require.NoError(t, err)
	_, err = h.provider.Settle(intentID, true)
	require.NoError(t, err)
	_, err = commands.Dispatch[bookingapp.ConfirmPaymentCommand, *bookingapp.Settlement](context.Background(), h.cmds, bookingapp.ConfirmPaymentCommand{BookingID: b.ID, IntentID: intentID})
	require.NoError(t, err)

	flow := &bookingapp.CancellationFlow{Commands: h.cmds, Queries: h.queries, Provider: h.provider}
	res, err := flow.Cancel(context.Background(), bookingapp.CancelBookingCommand{BookingID: b.ID, ActorID: "host-1", Reason: "maintenance"})
	require.NoError(t, err)

	assert.Equal(t, int64(2000), res.Refund.Amount)
	assert.Equal(t, []string{res.RefundID}, h.provider.Refunds(intentID))
	assert.False(t, res.Booking.RefundPending)

	again, err := flow.RetryRefund(context.Background(), bookingapp.RetryRefundRequest{BookingID: b.ID, ActorID: "guest-1"})
	require.NoError(t, err)
	assert.Equal(t, res.RefundID, again.RefundID)
	assert.Len(t, h.provider.Refunds(intentID), 1)
}

func TestCancelRequiresParticipant(t *testing.T) {
	h := newHarness(t)
	b := h.create(t, "guest-1", 10, 12)
	h.confirm(t, b.ID)

	_, err := commands.Dispatch[bookingapp.CancelBookingCommand, dto.CancelResult](context.Background(), h.cmds, bookingapp.CancelBookingCommand{BookingID: b.ID, ActorID: "someone"})
	assert.ErrorIs(t, err, apperr.ErrAuthorization)
	assert.Equal(t, "confirmed", h.get(t, b.ID).Status)
}

func TestFinalizeRefundBeforePaymentIsRejected(t *testing.T) {
	h := newHarness(t)
	b := h.create(t, "guest-1", 10, 12)

	_, err := commands.Dispatch[bookingapp.FinalizeRefundCommand, *bookingapp.Settlement](context.Background(), h.cmds, bookingapp.FinalizeRefundCommand{BookingID: b.ID})
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
}
