package policies

import (
	"context"
	"time"
)

type Receipt struct {
	BookingID string    `json:"booking_id"`
	Kind      string    `json:"kind"`
	GuestID   string    `json:"guest_id"`
	HostID    string    `json:"host_id"`
	IntentID  string    `json:"intent_id,omitempty"`
	RefundID  string    `json:"refund_id,omitempty"`
	Amount    int64     `json:"amount"`
	Currency  string    `json:"currency"`
	IssuedAt  time.Time `json:"issued_at"`
}

// ReceiptStore archives receipts. Failures never affect the booking operation.
type ReceiptStore interface {
	Put(ctx context.Context, receipt Receipt) error
}
