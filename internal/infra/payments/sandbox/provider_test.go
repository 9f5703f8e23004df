package sandbox_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staybook/internal/app/policies"
	"staybook/internal/domain/payment"
	"staybook/internal/domain/shared/money"
	"staybook/internal/infra/payments/sandbox"
)

func TestIntentLifecycle(t *testing.T) {
	ctx := context.Background()
	p := sandbox.New()

	id, err := p.CreateIntent(ctx, money.Must(1000, "THB"), "guest-1", map[string]string{"booking_id": "bk-1"})
	require.NoError(t, err)

	status, err := p.RetrieveStatus(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, policies.ProviderPending, status)

	_, err = p.Refund(ctx, id, money.Must(500, "THB"), "cancel")
	assert.Error(t, err, "pending intents cannot be refunded")

	ev, err := p.Settle(id, true)
	require.NoError(t, err)
	assert.Equal(t, payment.EventSucceeded, ev.Type)
	assert.EqualValues(t, "bk-1", ev.BookingID)
	assert.Equal(t, id, ev.IntentID)

	verified, ok, err := p.Verify(ctx, ev.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, ev, verified)

	refundID, err := p.Refund(ctx, id, money.Must(500, "THB"), "cancel")
	require.NoError(t, err)
	assert.Equal(t, []string{refundID}, p.Refunds(id))

	status, err = p.RetrieveStatus(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, policies.ProviderRefunded, status)
}

func TestFailNext(t *testing.T) {
	ctx := context.Background()
	p := sandbox.New()
	boom := errors.New("gateway timeout")
	p.FailNext("create", boom)

	_, err := p.CreateIntent(ctx, money.Must(1000, "THB"), "guest-1", nil)
	assert.ErrorIs(t, err, boom)

	_, err = p.CreateIntent(ctx, money.Must(1000, "THB"), "guest-1", nil)
	assert.NoError(t, err)
}

func TestVerifyUnknownEvent(t *testing.T) {
	_, ok, err := sandbox.New().Verify(context.Background(), "evt_forged")
	assert.ErrorIs(t, err, sandbox.ErrUnknownEvent)
	assert.False(t, ok)
}
