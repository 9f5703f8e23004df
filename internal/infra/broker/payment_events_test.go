package broker_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staybook/internal/domain/payment"
	"staybook/internal/domain/shared/apperr"
	"staybook/internal/infra/broker"
)

func TestDecodePaymentEvent(t *testing.T) {
	t.Run("bare message", func(t *testing.T) {
		ev, err := broker.DecodePaymentEvent([]byte(`{"id":"evt-1","type":"payment.succeeded","intent_id":"chrg_1","booking_id":"bk-1","amount":300,"currency":"thb"}`))
		require.NoError(t, err)
		assert.Equal(t, "evt-1", ev.ID)
		assert.Equal(t, payment.EventSucceeded, ev.Type)
		assert.Equal(t, "chrg_1", ev.IntentID)
		assert.EqualValues(t, "bk-1", ev.BookingID)
		assert.Equal(t, int64(300), ev.Amount.Amount)
		assert.Equal(t, "THB", ev.Amount.Currency)
	})

	t.Run("cloudevents envelope", func(t *testing.T) {
		ev, err := broker.DecodePaymentEvent([]byte(`{"specversion":"1.0","id":"ce-9","type":"payment.refunded.v1","time":"2026-03-01T10:00:00Z","data":{"intent_id":"chrg_2"}}`))
		require.NoError(t, err)
		assert.Equal(t, "ce-9", ev.ID)
		assert.Equal(t, payment.EventRefunded, ev.Type)
		assert.Equal(t, 2026, ev.At.Year())
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := broker.DecodePaymentEvent([]byte(`{"id":"evt-2","type":"payment.disputed","intent_id":"chrg_1"}`))
		assert.ErrorIs(t, err, payment.ErrUnknownEventType)
	})

	t.Run("malformed json", func(t *testing.T) {
		_, err := broker.DecodePaymentEvent([]byte(`{"id":`))
		assert.ErrorIs(t, err, apperr.ErrValidation)
	})
}

func TestRedeliver(t *testing.T) {
	assert.False(t, broker.Redeliver(nil))
	assert.True(t, broker.Redeliver(apperr.Provider("refund", errors.New("timeout"))))
	assert.True(t, broker.Redeliver(errors.New("connection reset")))
	assert.True(t, broker.Redeliver(apperr.Conflict("version")))
	assert.False(t, broker.Redeliver(apperr.Validation("bad event")))
	assert.False(t, broker.Redeliver(apperr.NotFound("booking")))
}
