package omise

import (
	"testing"

	"github.com/omise/omise-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staybook/internal/domain/payment"
)

func TestMapChargeComplete(t *testing.T) {
	ev := &omise.Event{
		Key: "charge.complete",
		Data: map[string]any{
			"object":   "charge",
			"id":       "chrg_test_1",
			"amount":   247200,
			"currency": "thb",
			"status":   "successful",
			"metadata": map[string]any{"booking_id": "bk-1"},
		},
	}
	ev.ID = "evnt_test_1"

	out, ok, err := mapEvent(ev)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, payment.EventSucceeded, out.Type)
	assert.Equal(t, "chrg_test_1", out.IntentID)
	assert.EqualValues(t, "bk-1", out.BookingID)
	assert.Equal(t, int64(2472), out.Amount.Amount)
	assert.Equal(t, "THB", out.Amount.Currency)
}

func TestMapFailedCharge(t *testing.T) {
	ev := &omise.Event{
		Key: "charge.complete",
		Data: map[string]any{
			"id":           "chrg_test_2",
			"status":       "failed",
			"failure_code": "insufficient_fund",
		},
	}
	ev.ID = "evnt_test_2"

	out, ok, err := mapEvent(ev)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, payment.EventFailed, out.Type)
	assert.Equal(t, "insufficient_fund", out.Reason)
}

func TestMapRefundCreate(t *testing.T) {
	ev := &omise.Event{
		Key: "refund.create",
		Data: map[string]any{
			"object":   "refund",
			"id":       "rfnd_test_1",
			"charge":   "chrg_test_1",
			"amount":   123600,
			"currency": "thb",
		},
	}
	ev.ID = "evnt_test_3"

	out, ok, err := mapEvent(ev)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, payment.EventRefunded, out.Type)
	assert.Equal(t, "chrg_test_1", out.IntentID)
	assert.Equal(t, int64(1236), out.Amount.Amount)
}

func TestMapIgnoresOtherKeys(t *testing.T) {
	ev := &omise.Event{Key: "customer.create", Data: map[string]any{"id": "cust_1"}}
	ev.ID = "evnt_test_4"

	_, ok, err := mapEvent(ev)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPendingChargeIsIgnored(t *testing.T) {
	ev := &omise.Event{Key: "charge.complete", Data: map[string]any{"id": "chrg_3", "status": "pending"}}
	ev.ID = "evnt_test_5"

	_, ok, err := mapEvent(ev)
	require.NoError(t, err)
	assert.False(t, ok)
}
