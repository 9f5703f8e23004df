package policies

import (
	"context"

	"staybook/internal/domain/shared/money"
)

// ProviderStatus is the intent lifecycle as reported by the payment provider.
type ProviderStatus string

const (
	ProviderPending   ProviderStatus = "pending"
	ProviderSucceeded ProviderStatus = "succeeded"
	ProviderFailed    ProviderStatus = "failed"
	ProviderRefunded  ProviderStatus = "refunded"
)

// PaymentProvider is the external payment capability. Implementations return
// errors that are surfaced as retryable provider failures.
type PaymentProvider interface {
	CreateIntent(ctx context.Context, amount money.Money, customerRef string, metadata map[string]string) (intentID string, err error)
	RetrieveStatus(ctx context.Context, intentID string) (ProviderStatus, error)
	Refund(ctx context.Context, intentID string, amount money.Money, reason string) (refundID string, err error)
}
