package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	StoreMemory = "memory"
	StoreMongo  = "mongo"

	EventsNone  = "none"
	EventsKafka = "kafka"
	EventsAMQP  = "amqp"
)

// Config aggregates application configuration values loaded from environment variables.
type Config struct {
	Env      string `envconfig:"APP_ENV" default:"dev"`
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8080"`
	Store    string `envconfig:"STORE" default:"memory"`

	MongoURI string `envconfig:"MONGO_URI"`
	MongoDB  string `envconfig:"MONGO_DB" default:"staybook"`

	KafkaBrokers      []string `envconfig:"KAFKA_BROKERS"`
	KafkaTopicPrefix  string   `envconfig:"KAFKA_TOPIC_PREFIX"`
	KafkaPaymentTopic string   `envconfig:"KAFKA_PAYMENT_TOPIC" default:"payments.events.v1"`
	KafkaGroupID      string   `envconfig:"KAFKA_GROUP_ID" default:"staybook-reconciler"`

	PaymentEvents   string `envconfig:"PAYMENT_EVENTS" default:"none"`
	RabbitURL       string `envconfig:"RABBIT_URL"`
	PaymentExchange string `envconfig:"PAYMENT_EXCHANGE" default:"payments"`
	PaymentQueue    string `envconfig:"PAYMENT_QUEUE" default:"staybook.payments"`

	RedisAddr     string `envconfig:"REDIS_ADDR"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	OmisePublicKey   string        `envconfig:"OMISE_PUBLIC_KEY"`
	OmiseSecretKey   string        `envconfig:"OMISE_SECRET_KEY"`
	PaymentCurrency  string        `envconfig:"PAYMENT_CURRENCY" default:"THB"`
	BreakerThreshold int64         `envconfig:"PROVIDER_BREAKER_THRESHOLD" default:"5"`
	ProviderTimeout  time.Duration `envconfig:"PROVIDER_TIMEOUT" default:"10s"`

	PaymentHoldTTL    time.Duration `envconfig:"PAYMENT_HOLD_TTL" default:"30m"`
	CommissionPercent int64         `envconfig:"COMMISSION_PERCENT" default:"3"`

	IdempotencyTTL     time.Duration   `envconfig:"IDEMP_TTL" default:"168h"`
	OutboxPollInterval time.Duration   `envconfig:"OUTBOX_POLL_INTERVAL" default:"500ms"`
	RetryBackoff       []time.Duration `envconfig:"RETRY_BACKOFF" default:"1s,5s,30s"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY" default:"minioadmin"`
	S3SecretKey string `envconfig:"S3_SECRET_KEY" default:"minioadmin"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"staybook-receipts"`
	S3UseSSL    bool   `envconfig:"S3_USE_SSL" default:"false"`

	OTLPEndpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`

	ListingsFixtures string `envconfig:"LISTINGS_FIXTURES"`
}

// Load reads an optional .env file and then the environment.
func Load() (Config, error) {
	if path := os.Getenv("ENV_FILE"); path != "" {
		if err := godotenv.Load(path); err != nil {
			return Config{}, fmt.Errorf("load %s: %w", path, err)
		}
	} else {
		_ = godotenv.Load(".env")
	}
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, err
	}
	cfg.Store = strings.ToLower(strings.TrimSpace(cfg.Store))
	cfg.PaymentEvents = strings.ToLower(strings.TrimSpace(cfg.PaymentEvents))
	cfg.PaymentCurrency = strings.ToUpper(strings.TrimSpace(cfg.PaymentCurrency))
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the rules that span several keys.
func (c Config) Validate() error {
	var errs []error
	switch c.Store {
	case StoreMemory:
	case StoreMongo:
		if c.MongoURI == "" {
			errs = append(errs, errors.New("MONGO_URI is required when STORE=mongo"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE %q", c.Store))
	}
	switch c.PaymentEvents {
	case EventsNone:
	case EventsKafka:
		if len(c.KafkaBrokers) == 0 {
			errs = append(errs, errors.New("KAFKA_BROKERS is required when PAYMENT_EVENTS=kafka"))
		}
	case EventsAMQP:
		if c.RabbitURL == "" {
			errs = append(errs, errors.New("RABBIT_URL is required when PAYMENT_EVENTS=amqp"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown PAYMENT_EVENTS %q", c.PaymentEvents))
	}
	if (c.OmisePublicKey == "") != (c.OmiseSecretKey == "") {
		errs = append(errs, errors.New("OMISE_PUBLIC_KEY and OMISE_SECRET_KEY must be set together"))
	}
	if len(c.PaymentCurrency) != 3 {
		errs = append(errs, fmt.Errorf("invalid PAYMENT_CURRENCY %q", c.PaymentCurrency))
	}
	if c.PaymentHoldTTL <= 0 {
		errs = append(errs, errors.New("PAYMENT_HOLD_TTL must be positive"))
	}
	if c.CommissionPercent != 3 {
		errs = append(errs, errors.New("COMMISSION_PERCENT is fixed at 3"))
	}
	if c.BreakerThreshold <= 0 {
		errs = append(errs, errors.New("PROVIDER_BREAKER_THRESHOLD must be positive"))
	}
	return errors.Join(errs...)
}

func (c Config) Development() bool {
	return c.Env == "dev" || c.Env == "local"
}

// PaymentsEnabled reports whether a real payment provider is configured.
func (c Config) PaymentsEnabled() bool {
	return c.OmiseSecretKey != ""
}

func (c Config) RedisEnabled() bool {
	return c.RedisAddr != ""
}

func (c Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}
