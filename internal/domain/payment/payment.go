package payment

import (
	"context"
	"strings"
	"time"

	"staybook/internal/domain/booking"
	"staybook/internal/domain/shared/apperr"
	"staybook/internal/domain/shared/money"
)

var (
	ErrPaymentNotFound = apperr.NotFound("payment: not found")
	ErrIntentRequired  = apperr.Validation("payment: intent id required")
	ErrInvalidAmount   = apperr.Validation("payment: amount must be positive")
	ErrAlreadySettled  = apperr.InvalidState("payment: already settled")
	ErrNotRefundable   = apperr.InvalidState("payment: only succeeded payments can be refunded")
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusRefunded  Status = "refunded"
)

// Payment mirrors one provider intent for a booking. A booking keeps at most
// one live payment; retries replace the intent on the same record.
type Payment struct {
	ID           string
	BookingID    booking.BookingID
	GuestID      string
	IntentID     string
	Amount       money.Money
	Status       Status
	RefundID     string
	RefundAmount money.Money
	RefundReason string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Version      int64
}

type Repository interface {
	ByBooking(ctx context.Context, bookingID booking.BookingID) (*Payment, error)
	ByIntent(ctx context.Context, intentID string) (*Payment, error)
	Save(ctx context.Context, p *Payment) error
}

func New(id string, b *booking.Booking, intentID string, now time.Time) (*Payment, error) {
	intentID = strings.TrimSpace(intentID)
	if intentID == "" {
		return nil, ErrIntentRequired
	}
	if b.TotalPrice.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	now = now.UTC()
	return &Payment{
		ID:        id,
		BookingID: b.ID,
		GuestID:   b.GuestID,
		IntentID:  intentID,
		Amount:    b.TotalPrice,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Retry points the payment at a fresh intent after a failure.
func (p *Payment) Retry(intentID string, now time.Time) error {
	if p.Status == StatusSucceeded || p.Status == StatusRefunded {
		return ErrAlreadySettled
	}
	intentID = strings.TrimSpace(intentID)
	if intentID == "" {
		return ErrIntentRequired
	}
	p.IntentID = intentID
	p.Status = StatusPending
	p.UpdatedAt = now.UTC()
	return nil
}

// MarkSucceeded settles the record. A non-empty intentID replaces the current
// one, so the record follows the intent the provider actually charged.
func (p *Payment) MarkSucceeded(intentID string, now time.Time) bool {
	if p.Status == StatusSucceeded || p.Status == StatusRefunded {
		return false
	}
	if intentID = strings.TrimSpace(intentID); intentID != "" {
		p.IntentID = intentID
	}
	p.Status = StatusSucceeded
	p.UpdatedAt = now.UTC()
	return true
}

func (p *Payment) MarkFailed(now time.Time) bool {
	if p.Status != StatusPending {
		return false
	}
	p.Status = StatusFailed
	p.UpdatedAt = now.UTC()
	return true
}

// RecordRefund stores an issued refund. The status moves once the provider confirms it.
func (p *Payment) RecordRefund(refundID string, amount money.Money, reason string, now time.Time) error {
	if p.Status != StatusSucceeded && p.Status != StatusRefunded {
		return ErrNotRefundable
	}
	p.RefundID = refundID
	p.RefundAmount = amount
	p.RefundReason = strings.TrimSpace(reason)
	p.UpdatedAt = now.UTC()
	return nil
}

func (p *Payment) MarkRefunded(amount money.Money, now time.Time) bool {
	if p.Status == StatusRefunded {
		return false
	}
	p.Status = StatusRefunded
	if amount.Amount > 0 {
		p.RefundAmount = amount
	}
	p.UpdatedAt = now.UTC()
	return true
}

func (p *Payment) Clone() *Payment {
	clone := *p
	return &clone
}
