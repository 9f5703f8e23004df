package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staybook/internal/infra/config"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENV_FILE", "")
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, config.StoreMemory, cfg.Store)
	assert.Equal(t, config.EventsNone, cfg.PaymentEvents)
	assert.Equal(t, 30*time.Minute, cfg.PaymentHoldTTL)
	assert.Equal(t, []time.Duration{time.Second, 5 * time.Second, 30 * time.Second}, cfg.RetryBackoff)
	assert.Equal(t, "THB", cfg.PaymentCurrency)
	assert.False(t, cfg.PaymentsEnabled())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORE", "Mongo")
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("PAYMENT_EVENTS", "kafka")
	t.Setenv("PAYMENT_HOLD_TTL", "45m")
	t.Setenv("PAYMENT_CURRENCY", "usd")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, config.StoreMongo, cfg.Store)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 45*time.Minute, cfg.PaymentHoldTTL)
	assert.Equal(t, "USD", cfg.PaymentCurrency)
}

func TestValidateCrossFieldRules(t *testing.T) {
	base := config.Config{
		Store:             config.StoreMemory,
		PaymentEvents:     config.EventsNone,
		PaymentCurrency:   "THB",
		PaymentHoldTTL:    time.Minute,
		CommissionPercent: 3,
		BreakerThreshold:  5,
	}
	require.NoError(t, base.Validate())

	cases := map[string]func(*config.Config){
		"mongo without uri":   func(c *config.Config) { c.Store = config.StoreMongo },
		"kafka without peers": func(c *config.Config) { c.PaymentEvents = config.EventsKafka },
		"amqp without url":    func(c *config.Config) { c.PaymentEvents = config.EventsAMQP },
		"half omise keys":     func(c *config.Config) { c.OmisePublicKey = "pkey_test" },
		"commission changed":  func(c *config.Config) { c.CommissionPercent = 5 },
		"unknown store":       func(c *config.Config) { c.Store = "postgres" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := base
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
