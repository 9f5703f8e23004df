package dto

import "time"

type PaymentIntent struct {
	BookingID string    `json:"booking_id"`
	PaymentID string    `json:"payment_id"`
	IntentID  string    `json:"intent_id"`
	Amount    MoneyDTO  `json:"amount"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

type PaymentStatus struct {
	IntentID       string `json:"intent_id"`
	ProviderStatus string `json:"provider_status"`
	LocalStatus    string `json:"local_status,omitempty"`
	BookingID      string `json:"booking_id,omitempty"`
}

type CancelResult struct {
	Booking        Booking  `json:"booking"`
	Refund         MoneyDTO `json:"refund"`
	RefundID       string   `json:"refund_id,omitempty"`
	RefundRequired bool     `json:"refund_required"`
}

type ReconcileOutcome struct {
	EventID   string `json:"event_id"`
	BookingID string `json:"booking_id,omitempty"`
	Applied   bool   `json:"applied"`
	Duplicate bool   `json:"duplicate"`
	Flagged   bool   `json:"flagged"`
}
