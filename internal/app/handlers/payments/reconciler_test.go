package payments_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"staybook/internal/app/commands"
	"staybook/internal/app/dto"
	"staybook/internal/app/handlers/base"
	bookingapp "staybook/internal/app/handlers/booking"
	paymentsapp "staybook/internal/app/handlers/payments"
	"staybook/internal/app/middleware"
	"staybook/internal/app/outbox"
	"staybook/internal/app/policies"
	"staybook/internal/app/queries"
	"staybook/internal/app/uow"
	domainbooking "staybook/internal/domain/booking"
	domainpayment "staybook/internal/domain/payment"
	"staybook/internal/domain/listings"
	"staybook/internal/domain/shared/apperr"
	"staybook/internal/domain/shared/money"
	"staybook/internal/infra/payments/sandbox"
	"staybook/internal/infra/storage/memory"
)

type mockReceipts struct {
	mock.Mock
}

func (m *mockReceipts) Put(ctx context.Context, r policies.Receipt) error {
	return m.Called(ctx, r).Error(0)
}

type fixture struct {
	cmds       commands.Bus
	queries    queries.Bus
	provider   *sandbox.Provider
	inbox      *memory.Inbox
	receipts   *mockReceipts
	reconciler *paymentsapp.Reconciler
	flow       *paymentsapp.PaymentFlow
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.NewStore()
	deps := base.Deps{
		UoWFactory: store,
		Outbox:     store.Outbox(),
		Encoder:    outbox.JSONEventEncoder{},
		Logger:     logger,
	}
	f := &fixture{
		provider: sandbox.New(),
		inbox:    memory.NewInbox(),
		receipts: &mockReceipts{},
	}
	cmdBus := commands.NewInMemoryBus()
	queryBus := queries.NewInMemoryBus()
	bookingapp.Register(cmdBus, queryBus, deps, bookingapp.Options{})
	paymentsapp.Register(cmdBus, queryBus, deps, f.provider)
	f.cmds = middleware.ChainCommands(cmdBus, middleware.Standard(nil, memory.NewLocker(), store, store.Outbox(), nil, logger)...)
	f.queries = queryBus
	f.reconciler = &paymentsapp.Reconciler{
		Commands: f.cmds,
		Queries:  f.queries,
		Inbox:    f.inbox,
		Receipts: f.receipts,
		Logger:   logger,
	}
	f.flow = &paymentsapp.PaymentFlow{Commands: f.cmds, Queries: f.queries, Provider: f.provider, Logger: logger}

	ctx := context.Background()
	unit, err := store.Begin(ctx, uow.TxOptions{})
	require.NoError(t, err)
	listing, err := listings.NewListing(listings.CreateListingParams{
		ID: "lst-1", Owner: "host-1", Title: "Loft", NightlyRate: money.Must(1000, "THB"), Now: time.Now(),
	})
	require.NoError(t, err)
	require.NoError(t, unit.Listings().Save(ctx, listing))
	require.NoError(t, unit.Commit(ctx))
	return f
}

func (f *fixture) book(t *testing.T, fromDays int) *dto.Booking {
	t.Helper()
	in := time.Now().UTC().AddDate(0, 0, fromDays)
	b, err := commands.Dispatch[bookingapp.CreateBookingCommand, *dto.Booking](context.Background(), f.cmds, bookingapp.CreateBookingCommand{
		ListingID: "lst-1", GuestID: "guest-1", CheckIn: in, CheckOut: in.AddDate(0, 0, 2), Guests: 1,
	})
	require.NoError(t, err)
	return b
}

func (f *fixture) start(t *testing.T, b *dto.Booking) dto.PaymentIntent {
	t.Helper()
	intent, err := f.flow.Start(context.Background(), paymentsapp.StartPaymentRequest{BookingID: b.ID, GuestID: b.GuestID})
	require.NoError(t, err)
	return intent
}

func (f *fixture) booking(t *testing.T, id string) dto.Booking {
	t.Helper()
	b, err := queries.Ask[bookingapp.GetBookingQuery, dto.Booking](context.Background(), f.queries, bookingapp.GetBookingQuery{BookingID: id, ActorID: "guest-1"})
	require.NoError(t, err)
	return b
}

func TestReconcileSuccessConfirmsAndArchivesReceipt(t *testing.T) {
	f := newFixture(t)
	b := f.book(t, 10)
	intent := f.start(t, b)
	f.receipts.On("Put", mock.Anything, mock.MatchedBy(func(r policies.Receipt) bool {
		return r.Kind == "payment" && r.BookingID == b.ID && r.Amount == b.Total.Amount
	})).Return(nil).Once()

	ev, err := f.provider.Settle(intent.IntentID, true)
	require.NoError(t, err)
	out, err := f.reconciler.Handle(context.Background(), ev)
	require.NoError(t, err)

	assert.True(t, out.Applied)
	assert.Equal(t, b.ID, out.BookingID)
	got := f.booking(t, b.ID)
	assert.Equal(t, "confirmed", got.Status)
	assert.Equal(t, "paid", got.PaymentStatus)
	assert.Equal(t, intent.IntentID, got.PaymentIntentID)

	status, err := queries.Ask[paymentsapp.PaymentStatusQuery, dto.PaymentStatus](context.Background(), f.queries, paymentsapp.PaymentStatusQuery{IntentID: intent.IntentID})
	require.NoError(t, err)
	assert.Equal(t, string(domainpayment.StatusSucceeded), status.LocalStatus)
	f.receipts.AssertExpectations(t)
}

func TestReconcileDuplicateEventIsNoop(t *testing.T) {
	f := newFixture(t)
	b := f.book(t, 10)
	intent := f.start(t, b)
	f.receipts.On("Put", mock.Anything, mock.Anything).Return(nil).Once()
	ev, err := f.provider.Settle(intent.IntentID, true)
	require.NoError(t, err)

	_, err = f.reconciler.Handle(context.Background(), ev)
	require.NoError(t, err)
	out, err := f.reconciler.Handle(context.Background(), ev)
	require.NoError(t, err)
	assert.True(t, out.Duplicate)
	assert.False(t, out.Applied)

	// the same outcome under a new event id is absorbed by the transition
	ev.ID = "evt_redelivered"
	out, err = f.reconciler.Handle(context.Background(), ev)
	require.NoError(t, err)
	assert.False(t, out.Applied)
	f.receipts.AssertNumberOfCalls(t, "Put", 1)
}

func TestReconcileResolvesBookingByIntent(t *testing.T) {
	f := newFixture(t)
	b := f.book(t, 10)
	intent := f.start(t, b)
	f.receipts.On("Put", mock.Anything, mock.Anything).Return(nil)

	out, err := f.reconciler.Handle(context.Background(), domainpayment.ProviderEvent{
		ID: "evt_1", Type: domainpayment.EventSucceeded, IntentID: intent.IntentID,
	})
	require.NoError(t, err)
	assert.Equal(t, b.ID, out.BookingID)
	assert.Equal(t, "confirmed", f.booking(t, b.ID).Status)
}

func TestReconcileLateFailureIsIgnored(t *testing.T) {
	f := newFixture(t)
	b := f.book(t, 10)
	intent := f.start(t, b)
	f.receipts.On("Put", mock.Anything, mock.Anything).Return(nil)
	_, err := f.reconciler.Handle(context.Background(), domainpayment.ProviderEvent{ID: "evt_ok", Type: domainpayment.EventSucceeded, IntentID: intent.IntentID, BookingID: domainbooking.BookingID(b.ID)})
	require.NoError(t, err)

	out, err := f.reconciler.Handle(context.Background(), domainpayment.ProviderEvent{ID: "evt_fail", Type: domainpayment.EventFailed, IntentID: intent.IntentID, BookingID: domainbooking.BookingID(b.ID)})
	require.NoError(t, err)
	assert.False(t, out.Flagged)
	got := f.booking(t, b.ID)
	assert.Equal(t, "paid", got.PaymentStatus)
	assert.False(t, got.NeedsReconciliation)
}

func TestReconcileFailureKeepsHold(t *testing.T) {
	f := newFixture(t)
	b := f.book(t, 10)
	intent := f.start(t, b)

	ev, err := f.provider.Settle(intent.IntentID, false)
	require.NoError(t, err)
	out, err := f.reconciler.Handle(context.Background(), ev)
	require.NoError(t, err)
	assert.True(t, out.Applied)

	got := f.booking(t, b.ID)
	assert.Equal(t, "pending", got.Status)
	assert.Equal(t, "failed", got.PaymentStatus)

	// the guest may pay again with a fresh intent
	retry := f.start(t, b)
	assert.NotEqual(t, intent.IntentID, retry.IntentID)
	f.receipts.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
}

func TestReconcileSuccessForExpiredBookingIsFlagged(t *testing.T) {
	f := newFixture(t)
	b := f.book(t, 10)
	intent := f.start(t, b)
	_, err := commands.Dispatch[bookingapp.ExpirePendingCommand, bool](context.Background(), f.cmds, bookingapp.ExpirePendingCommand{BookingID: b.ID})
	require.NoError(t, err)

	ev, err := f.provider.Settle(intent.IntentID, true)
	require.NoError(t, err)
	out, err := f.reconciler.Handle(context.Background(), ev)
	require.NoError(t, err)

	assert.True(t, out.Flagged)
	got := f.booking(t, b.ID)
	assert.Equal(t, "cancelled", got.Status)
	assert.True(t, got.NeedsReconciliation)
	f.receipts.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
}

func TestReconcileRefundBeforePaymentIsFlagged(t *testing.T) {
	f := newFixture(t)
	b := f.book(t, 10)
	intent := f.start(t, b)

	out, err := f.reconciler.Handle(context.Background(), domainpayment.ProviderEvent{
		ID: "evt_refund", Type: domainpayment.EventRefunded, IntentID: intent.IntentID, BookingID: domainbooking.BookingID(b.ID),
		Amount: money.Must(500, "THB"),
	})
	require.NoError(t, err)
	assert.True(t, out.Flagged)
	assert.True(t, f.booking(t, b.ID).NeedsReconciliation)
}

func TestReconcileRefundFinalizesCancelledBooking(t *testing.T) {
	f := newFixture(t)
	b := f.book(t, 10)
	intent := f.start(t, b)
	f.receipts.On("Put", mock.Anything, mock.Anything).Return(nil)
	ev, err := f.provider.Settle(intent.IntentID, true)
	require.NoError(t, err)
	_, err = f.reconciler.Handle(context.Background(), ev)
	require.NoError(t, err)

	cancel := &bookingapp.CancellationFlow{Commands: f.cmds, Queries: f.queries, Provider: f.provider}
	res, err := cancel.Cancel(context.Background(), bookingapp.CancelBookingCommand{BookingID: b.ID, ActorID: "guest-1"})
	require.NoError(t, err)
	require.NotEmpty(t, res.RefundID)

	out, err := f.reconciler.Handle(context.Background(), domainpayment.ProviderEvent{
		ID: "evt_refunded", Type: domainpayment.EventRefunded, IntentID: intent.IntentID, BookingID: domainbooking.BookingID(b.ID),
		Amount: money.Must(res.Refund.Amount, res.Refund.Currency),
	})
	require.NoError(t, err)
	assert.True(t, out.Applied)
	got := f.booking(t, b.ID)
	assert.Equal(t, "cancelled", got.Status)
	assert.Equal(t, "refunded", got.PaymentStatus)
	f.receipts.AssertCalled(t, "Put", mock.Anything, mock.MatchedBy(func(r policies.Receipt) bool {
		return r.Kind == "refund" && r.RefundID == res.RefundID
	}))
}

func TestReconcileErrorReleasesInboxClaim(t *testing.T) {
	f := newFixture(t)
	ev := domainpayment.ProviderEvent{ID: "evt_orphan", Type: domainpayment.EventSucceeded, IntentID: "pi_x", BookingID: "missing"}

	_, err := f.reconciler.Handle(context.Background(), ev)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	claimed, err := f.inbox.Claim(context.Background(), ev.ID)
	require.NoError(t, err)
	assert.True(t, claimed)
}

func TestReconcileRejectsInvalidEvent(t *testing.T) {
	f := newFixture(t)
	_, err := f.reconciler.Handle(context.Background(), domainpayment.ProviderEvent{Type: domainpayment.EventSucceeded, IntentID: "pi_1"})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestStartReusesOpenIntent(t *testing.T) {
	f := newFixture(t)
	b := f.book(t, 10)
	first := f.start(t, b)

	again := f.start(t, b)
	assert.Equal(t, first.IntentID, again.IntentID)
	assert.Equal(t, first.PaymentID, again.PaymentID)

	// settled at the provider but not yet reconciled
	_, err := f.provider.Settle(first.IntentID, true)
	require.NoError(t, err)
	_, err = f.flow.Start(context.Background(), paymentsapp.StartPaymentRequest{BookingID: b.ID, GuestID: b.GuestID})
	assert.ErrorIs(t, err, domainbooking.ErrAlreadyPaid)
}

func TestReconcileSecondChargeIsFlagged(t *testing.T) {
	f := newFixture(t)
	b := f.book(t, 10)
	intent := f.start(t, b)
	f.receipts.On("Put", mock.Anything, mock.Anything).Return(nil)
	ev, err := f.provider.Settle(intent.IntentID, true)
	require.NoError(t, err)
	_, err = f.reconciler.Handle(context.Background(), ev)
	require.NoError(t, err)

	out, err := f.reconciler.Handle(context.Background(), domainpayment.ProviderEvent{
		ID: "evt_other", Type: domainpayment.EventSucceeded, IntentID: "pi_other", BookingID: domainbooking.BookingID(b.ID),
	})
	require.NoError(t, err)
	assert.True(t, out.Flagged)
	assert.False(t, out.Applied)

	got := f.booking(t, b.ID)
	assert.Equal(t, "confirmed", got.Status)
	assert.Equal(t, intent.IntentID, got.PaymentIntentID)
	assert.True(t, got.NeedsReconciliation)
	f.receipts.AssertNumberOfCalls(t, "Put", 1)
}

func TestReconcileLateSuccessOfReplacedIntent(t *testing.T) {
	f := newFixture(t)
	b := f.book(t, 10)
	first := f.start(t, b)
	failed, err := f.provider.Settle(first.IntentID, false)
	require.NoError(t, err)
	_, err = f.reconciler.Handle(context.Background(), failed)
	require.NoError(t, err)
	second := f.start(t, b)
	require.NotEqual(t, first.IntentID, second.IntentID)
	f.receipts.On("Put", mock.Anything, mock.Anything).Return(nil)

	// the provider reports the first intent as charged after all
	late, err := f.provider.Settle(first.IntentID, true)
	require.NoError(t, err)
	late.BookingID = domainbooking.BookingID(b.ID)
	out, err := f.reconciler.Handle(context.Background(), late)
	require.NoError(t, err)
	assert.True(t, out.Applied)

	got := f.booking(t, b.ID)
	assert.Equal(t, "confirmed", got.Status)
	assert.Equal(t, first.IntentID, got.PaymentIntentID)
	status, err := queries.Ask[paymentsapp.PaymentStatusQuery, dto.PaymentStatus](context.Background(), f.queries, paymentsapp.PaymentStatusQuery{IntentID: first.IntentID})
	require.NoError(t, err)
	assert.Equal(t, string(domainpayment.StatusSucceeded), status.LocalStatus)

	ev, err := f.provider.Settle(second.IntentID, true)
	require.NoError(t, err)
	ev.BookingID = domainbooking.BookingID(b.ID)
	out, err = f.reconciler.Handle(context.Background(), ev)
	require.NoError(t, err)
	assert.True(t, out.Flagged)
	assert.True(t, f.booking(t, b.ID).NeedsReconciliation)
}
