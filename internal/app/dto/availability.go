package dto

import "time"

type Availability struct {
	ListingID  string    `json:"listing_id"`
	CheckIn    time.Time `json:"check_in"`
	CheckOut   time.Time `json:"check_out"`
	Available  bool      `json:"available"`
	ConflictID string    `json:"-"`
}

type PriceQuote struct {
	ListingID   string    `json:"listing_id"`
	CheckIn     time.Time `json:"check_in"`
	CheckOut    time.Time `json:"check_out"`
	Nights      int       `json:"nights"`
	NightlyRate MoneyDTO  `json:"nightly_rate"`
	Total       MoneyDTO  `json:"total"`
	Commission  MoneyDTO  `json:"commission"`
	HostPayout  MoneyDTO  `json:"host_payout"`
}

type Calendar struct {
	ListingID string         `json:"listing_id"`
	Blocked   []BlockedRange `json:"blocked"`
}

type BlockedRange struct {
	CheckIn  time.Time `json:"check_in"`
	CheckOut time.Time `json:"check_out"`
	Status   string    `json:"status"`
}
