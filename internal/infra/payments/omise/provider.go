package omise

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	circuit "github.com/rubyist/circuitbreaker"
	"github.com/omise/omise-go"
	"github.com/omise/omise-go/operations"

	"staybook/internal/app/policies"
	"staybook/internal/domain/shared/money"
)

const defaultSourceType = "promptpay"

var ErrMissingKeys = errors.New("omise: public and secret keys are required")

type Config struct {
	PublicKey string
	SecretKey string
	// SourceType is the offsite method charges are created with.
	SourceType string
	// BreakerThreshold consecutive failures open the breaker.
	BreakerThreshold int64
	Timeout          time.Duration
}

// Provider implements policies.PaymentProvider on Omise charges. The intent id
// is the charge id.
type Provider struct {
	client     *omise.Client
	breaker    *circuit.Breaker
	timeout    time.Duration
	sourceType string
}

func New(cfg Config) (*Provider, error) {
	if cfg.PublicKey == "" || cfg.SecretKey == "" {
		return nil, ErrMissingKeys
	}
	c, err := omise.NewClient(cfg.PublicKey, cfg.SecretKey)
	if err != nil {
		return nil, err
	}
	c.SetDebug(false)
	if cfg.BreakerThreshold <= 0 {
		cfg.BreakerThreshold = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.SourceType == "" {
		cfg.SourceType = defaultSourceType
	}
	return &Provider{
		client:     c,
		breaker:    circuit.NewConsecutiveBreaker(cfg.BreakerThreshold),
		timeout:    cfg.Timeout,
		sourceType: cfg.SourceType,
	}, nil
}

// call runs fn through the breaker. The breaker opens after consecutive
// failures and fails fast until its backoff elapses.
func (p *Provider) call(ctx context.Context, op string, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := p.breaker.Call(fn, p.timeout); err != nil {
		return fmt.Errorf("omise %s: %w", op, err)
	}
	return nil
}

func (p *Provider) CreateIntent(ctx context.Context, amount money.Money, customerRef string, metadata map[string]string) (string, error) {
	currency := strings.ToLower(amount.Currency)
	src := &omise.Source{}
	err := p.call(ctx, "create source", func() error {
		return p.client.Do(src, &operations.CreateSource{
			Type:     p.sourceType,
			Amount:   amount.MinorUnits(),
			Currency: currency,
		})
	})
	if err != nil {
		return "", err
	}

	meta := make(map[string]interface{}, len(metadata)+1)
	for k, v := range metadata {
		meta[k] = v
	}
	meta["customer_ref"] = customerRef
	ch := &omise.Charge{}
	err = p.call(ctx, "create charge", func() error {
		return p.client.Do(ch, &operations.CreateCharge{
			Amount:      amount.MinorUnits(),
			Currency:    currency,
			Source:      src.ID,
			Description: "booking " + metadata["booking_id"],
			Metadata:    meta,
		})
	})
	if err != nil {
		return "", err
	}
	return ch.ID, nil
}

func (p *Provider) RetrieveStatus(ctx context.Context, intentID string) (policies.ProviderStatus, error) {
	ch := &omise.Charge{}
	err := p.call(ctx, "retrieve charge", func() error {
		return p.client.Do(ch, &operations.RetrieveCharge{ChargeID: intentID})
	})
	if err != nil {
		return "", err
	}
	return chargeStatus(ch), nil
}

func (p *Provider) Refund(ctx context.Context, intentID string, amount money.Money, reason string) (string, error) {
	refund := &omise.Refund{}
	err := p.call(ctx, "create refund", func() error {
		return p.client.Do(refund, &operations.CreateRefund{
			ChargeID: intentID,
			Amount:   amount.MinorUnits(),
			Metadata: map[string]interface{}{"reason": reason},
		})
	})
	if err != nil {
		return "", err
	}
	return refund.ID, nil
}

func chargeStatus(ch *omise.Charge) policies.ProviderStatus {
	if ch.Refunds != nil && len(ch.Refunds.Data) > 0 {
		return policies.ProviderRefunded
	}
	switch string(ch.Status) {
	case "successful":
		return policies.ProviderSucceeded
	case "failed", "expired", "reversed":
		return policies.ProviderFailed
	default:
		return policies.ProviderPending
	}
}

var _ policies.PaymentProvider = (*Provider)(nil)
