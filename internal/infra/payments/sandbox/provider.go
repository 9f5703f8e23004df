// Package sandbox is an in-process payment provider for local runs and tests.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"staybook/internal/app/policies"
	"staybook/internal/domain/booking"
	"staybook/internal/domain/payment"
	"staybook/internal/domain/shared/money"
)

var (
	ErrUnknownIntent = errors.New("sandbox: unknown intent")
	ErrUnknownEvent  = errors.New("sandbox: unknown event")
)

type intent struct {
	amount   money.Money
	metadata map[string]string
	status   policies.ProviderStatus
	refunds  []string
}

// Provider records intents in memory. Intents stay pending until Settle is
// called. Settlements and refunds emit events that Verify hands back, the way
// a webhook would be confirmed against the real provider.
type Provider struct {
	mu      sync.Mutex
	intents map[string]*intent
	events  map[string]payment.ProviderEvent
	failing map[string]error
}

func New() *Provider {
	return &Provider{
		intents: make(map[string]*intent),
		events:  make(map[string]payment.ProviderEvent),
		failing: make(map[string]error),
	}
}

// FailNext makes the next call of op ("create", "status" or "refund") return err.
func (p *Provider) FailNext(op string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failing[op] = err
}

func (p *Provider) takeFailure(op string) error {
	err, ok := p.failing[op]
	if ok {
		delete(p.failing, op)
	}
	return err
}

func (p *Provider) CreateIntent(ctx context.Context, amount money.Money, customerRef string, metadata map[string]string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.takeFailure("create"); err != nil {
		return "", err
	}
	if amount.Amount <= 0 {
		return "", fmt.Errorf("sandbox: invalid amount %d", amount.Amount)
	}
	id := "pi_" + uuid.NewString()
	meta := make(map[string]string, len(metadata)+1)
	for k, v := range metadata {
		meta[k] = v
	}
	meta["customer_ref"] = customerRef
	p.intents[id] = &intent{amount: amount, metadata: meta, status: policies.ProviderPending}
	return id, nil
}

func (p *Provider) RetrieveStatus(ctx context.Context, intentID string) (policies.ProviderStatus, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.takeFailure("status"); err != nil {
		return "", err
	}
	in, ok := p.intents[intentID]
	if !ok {
		return "", ErrUnknownIntent
	}
	return in.status, nil
}

func (p *Provider) Refund(ctx context.Context, intentID string, amount money.Money, reason string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.takeFailure("refund"); err != nil {
		return "", err
	}
	in, ok := p.intents[intentID]
	if !ok {
		return "", ErrUnknownIntent
	}
	if in.status != policies.ProviderSucceeded && in.status != policies.ProviderRefunded {
		return "", fmt.Errorf("sandbox: intent %s is %s", intentID, in.status)
	}
	if amount.Amount > in.amount.Amount {
		return "", fmt.Errorf("sandbox: refund %d exceeds charge %d", amount.Amount, in.amount.Amount)
	}
	id := "re_" + uuid.NewString()
	in.refunds = append(in.refunds, id)
	in.status = policies.ProviderRefunded
	p.emit(payment.EventRefunded, intentID, in, amount, reason)
	return id, nil
}

// Settle completes an intent as succeeded or failed and returns the event a
// webhook would carry.
func (p *Provider) Settle(intentID string, succeeded bool) (payment.ProviderEvent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	in, ok := p.intents[intentID]
	if !ok {
		return payment.ProviderEvent{}, ErrUnknownIntent
	}
	if succeeded {
		in.status = policies.ProviderSucceeded
		return p.emit(payment.EventSucceeded, intentID, in, in.amount, ""), nil
	}
	in.status = policies.ProviderFailed
	return p.emit(payment.EventFailed, intentID, in, in.amount, "declined"), nil
}

func (p *Provider) emit(typ payment.EventType, intentID string, in *intent, amount money.Money, reason string) payment.ProviderEvent {
	ev := payment.ProviderEvent{
		ID:        "evt_" + uuid.NewString(),
		Type:      typ,
		IntentID:  intentID,
		BookingID: booking.BookingID(in.metadata["booking_id"]),
		Amount:    amount,
		Reason:    reason,
		At:        time.Now().UTC(),
	}
	p.events[ev.ID] = ev
	return ev
}

// Verify returns an event previously emitted by this provider.
func (p *Provider) Verify(ctx context.Context, eventID string) (payment.ProviderEvent, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ev, ok := p.events[eventID]
	if !ok {
		return payment.ProviderEvent{}, false, ErrUnknownEvent
	}
	return ev, true, nil
}

// Refunds lists refund ids issued against an intent.
func (p *Provider) Refunds(intentID string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if in, ok := p.intents[intentID]; ok {
		return append([]string(nil), in.refunds...)
	}
	return nil
}

var _ policies.PaymentProvider = (*Provider)(nil)
