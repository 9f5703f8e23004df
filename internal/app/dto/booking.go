package dto

import (
	"time"

	domainbooking "staybook/internal/domain/booking"
	"staybook/internal/domain/shared/money"
)

type MoneyDTO struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type CancellationDTO struct {
	Reason string    `json:"reason"`
	At     time.Time `json:"at"`
	By     string    `json:"by"`
}

type Booking struct {
	ID                  string           `json:"id"`
	ListingID           string           `json:"listing_id"`
	GuestID             string           `json:"guest_id"`
	HostID              string           `json:"host_id"`
	CheckIn             time.Time        `json:"check_in"`
	CheckOut            time.Time        `json:"check_out"`
	Guests              int              `json:"guests"`
	SpecialRequests     string           `json:"special_requests,omitempty"`
	Nights              int              `json:"nights"`
	NightlyRate         MoneyDTO         `json:"nightly_rate"`
	Total               MoneyDTO         `json:"total"`
	Commission          MoneyDTO         `json:"commission"`
	HostPayout          MoneyDTO         `json:"host_payout"`
	Status              string           `json:"status"`
	PaymentStatus       string           `json:"payment_status"`
	PaymentIntentID     string           `json:"payment_intent_id,omitempty"`
	RefundAmount        MoneyDTO         `json:"refund_amount"`
	RefundID            string           `json:"refund_id,omitempty"`
	Cancellation        *CancellationDTO `json:"cancellation,omitempty"`
	CanBeCancelled      bool             `json:"can_be_cancelled"`
	RefundPending       bool             `json:"refund_pending"`
	NeedsReconciliation bool             `json:"needs_reconciliation"`
	CreatedAt           time.Time        `json:"created_at"`
	UpdatedAt           time.Time        `json:"updated_at"`
}

type BookingCollection struct {
	Items []Booking `json:"items"`
}

func MapMoney(value money.Money) MoneyDTO {
	return MoneyDTO{
		Amount:   value.Amount,
		Currency: value.Currency,
	}
}

func MapBooking(b *domainbooking.Booking, now time.Time) Booking {
	out := Booking{
		ID:                  string(b.ID),
		ListingID:           string(b.ListingID),
		GuestID:             b.GuestID,
		HostID:              b.HostID,
		CheckIn:             b.Range.CheckIn,
		CheckOut:            b.Range.CheckOut,
		Guests:              b.Guests,
		SpecialRequests:     b.SpecialRequests,
		Nights:              b.Nights,
		NightlyRate:         MapMoney(b.NightlyRate),
		Total:               MapMoney(b.TotalPrice),
		Commission:          MapMoney(b.Commission),
		HostPayout:          MapMoney(b.HostPayout),
		Status:              string(b.Status),
		PaymentStatus:       string(b.PaymentStatus),
		PaymentIntentID:     b.PaymentIntentID,
		RefundAmount:        MapMoney(b.RefundAmount),
		RefundID:            b.RefundID,
		CanBeCancelled:      domainbooking.CanBeCancelled(b, now),
		RefundPending:       b.RefundDue(),
		NeedsReconciliation: b.NeedsReconciliation,
		CreatedAt:           b.CreatedAt,
		UpdatedAt:           b.UpdatedAt,
	}
	if b.Cancellation != nil {
		out.Cancellation = &CancellationDTO{
			Reason: b.Cancellation.Reason,
			At:     b.Cancellation.At,
			By:     string(b.Cancellation.By),
		}
	}
	return out
}
