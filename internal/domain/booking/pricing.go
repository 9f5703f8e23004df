package booking

import (
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/money"
)

// CommissionPercent is the platform share of every booking total.
const CommissionPercent = 3

type Quote struct {
	Nights int
	Total  money.Money
}

type CommissionSplit struct {
	Commission money.Money
	HostPayout money.Money
}

// Price multiplies the nightly rate by the number of started days in the range.
func Price(nightlyRate money.Money, dr daterange.DateRange) Quote {
	nights := dr.Nights()
	if nights < 0 {
		nights = -nights
	}
	return Quote{Nights: nights, Total: nightlyRate.Multiply(int64(nights))}
}

// SplitCommission rounds the platform commission and pays the rest to the host.
func SplitCommission(total money.Money) (CommissionSplit, error) {
	commission := total.Percent(CommissionPercent)
	payout, err := total.Sub(commission)
	if err != nil {
		return CommissionSplit{}, err
	}
	return CommissionSplit{Commission: commission, HostPayout: payout}, nil
}
