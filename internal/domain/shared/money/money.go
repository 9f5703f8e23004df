package money

import (
	"errors"
	"strings"
)

var (
	ErrInvalidCurrency  = errors.New("money: invalid currency code")
	ErrCurrencyMismatch = errors.New("money: currency mismatch")
)

// Money keeps amounts in whole currency units (the listing price unit).
type Money struct {
	Amount   int64
	Currency string
}

// New constructs a Money value validating minimal invariants.
func New(amount int64, currency string) (Money, error) {
	if len(currency) != 3 {
		return Money{}, ErrInvalidCurrency
	}
	currency = strings.ToUpper(currency)
	return Money{Amount: amount, Currency: currency}, nil
}

// Must creates Money and panics if validation fails; useful in tests and fixtures.
func Must(amount int64, currency string) Money {
	m, err := New(amount, currency)
	if err != nil {
		panic(err)
	}
	return m
}

// Zero returns a zero amount in the given currency.
func Zero(currency string) Money {
	return Money{Currency: strings.ToUpper(currency)}
}

// Sub subtracts other from the receiver.
func (m Money) Sub(other Money) (Money, error) {
	if err := m.ensureSameCurrency(other); err != nil {
		return Money{}, err
	}
	return Money{Amount: m.Amount - other.Amount, Currency: m.Currency}, nil
}

// Multiply multiplies the amount by the provided factor.
func (m Money) Multiply(times int64) Money {
	return Money{Amount: m.Amount * times, Currency: m.Currency}
}

// Percent returns percent% of the amount rounded to the nearest whole unit, halves away from zero.
func (m Money) Percent(percent int64) Money {
	scaled := m.Amount * percent
	var amount int64
	if scaled >= 0 {
		amount = (scaled + 50) / 100
	} else {
		amount = (scaled - 50) / 100
	}
	return Money{Amount: amount, Currency: m.Currency}
}

// MinorUnits converts the amount to the currency subunit used by card processors.
func (m Money) MinorUnits() int64 {
	return m.Amount * 100
}

// FromMinorUnits is the inverse of MinorUnits, rounding to the nearest whole unit.
func FromMinorUnits(minor int64, currency string) Money {
	return Money{Amount: minor, Currency: strings.ToUpper(currency)}.Percent(1)
}

// IsZero returns true if the amount equals zero.
func (m Money) IsZero() bool {
	return m.Amount == 0
}

func (m Money) ensureSameCurrency(other Money) error {
	if m.Currency == "" || other.Currency == "" {
		return ErrInvalidCurrency
	}
	if m.Currency != other.Currency {
		return ErrCurrencyMismatch
	}
	return nil
}
