// Package types provides the value types shared by every Tally package.
package types

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is an amount in the smallest unit of its currency (cents for USD).
// Stored values are always whole minor units; fractional intermediate results
// are carried as decimal.Decimal and rounded once with MoneyFromMinor.
type Money struct {
	Amount   int64  `json:"amount"`   // minor units
	Currency string `json:"currency"` // ISO 4217, lowercase
}

// NewMoney returns Money for amount minor units of currency.
func NewMoney(amount int64, currency string) Money {
	return Money{Amount: amount, Currency: strings.ToLower(currency)}
}

// USD creates a Money value in US Dollars (cents).
func USD(cents int64) Money { return Money{Amount: cents, Currency: "usd"} }

// EUR creates a Money value in Euros (cents).
func EUR(cents int64) Money { return Money{Amount: cents, Currency: "eur"} }

// Zero returns a zero Money value in the specified currency.
func Zero(currency string) Money { return Money{Currency: strings.ToLower(currency)} }

// ParseMoney parses a major-unit string such as "49.95" into Money.
// Extra precision is rounded half-even to the currency's minor unit.
func ParseMoney(s, currency string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Money{}, fmt.Errorf("money: parse %q: %w", s, err)
	}
	return MoneyFromDecimal(d, currency), nil
}

// MoneyFromDecimal converts a major-unit decimal (e.g. 12.345 dollars) into
// Money, rounding half-even to the currency's minor unit.
func MoneyFromDecimal(major decimal.Decimal, currency string) Money {
	exp := int32(currencyDecimals(currency))
	minor := major.Shift(exp).RoundBank(0)
	return Money{Amount: minor.IntPart(), Currency: strings.ToLower(currency)}
}

// MoneyFromMinor rounds a fractional minor-unit decimal (e.g. 1234.5 cents)
// half-even to whole minor units.
func MoneyFromMinor(minor decimal.Decimal, currency string) Money {
	return Money{Amount: minor.RoundBank(0).IntPart(), Currency: strings.ToLower(currency)}
}

// Decimal returns the amount in major units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.NewFromInt(m.Amount).Shift(-int32(currencyDecimals(m.Currency)))
}

// Minor returns the amount in minor units as a decimal.
func (m Money) Minor() decimal.Decimal {
	return decimal.NewFromInt(m.Amount)
}

// Add adds two Money values. Panics if currencies don't match.
func (m Money) Add(other Money) Money {
	m.assertSameCurrency(other)
	return Money{Amount: m.Amount + other.Amount, Currency: m.Currency}
}

// Subtract subtracts another Money value. Panics if currencies don't match.
func (m Money) Subtract(other Money) Money {
	m.assertSameCurrency(other)
	return Money{Amount: m.Amount - other.Amount, Currency: m.Currency}
}

// Negate returns the negative of the Money value.
func (m Money) Negate() Money {
	return Money{Amount: -m.Amount, Currency: m.Currency}
}

// IsZero returns true if the amount is zero.
func (m Money) IsZero() bool { return m.Amount == 0 }

// IsPositive returns true if the amount is greater than zero.
func (m Money) IsPositive() bool { return m.Amount > 0 }

// IsNegative returns true if the amount is less than zero.
func (m Money) IsNegative() bool { return m.Amount < 0 }

// Equal returns true if both Money values are equal (same amount and currency).
func (m Money) Equal(other Money) bool {
	return m.Amount == other.Amount && m.Currency == other.Currency
}

// SameCurrency reports whether other is denominated in m's currency.
// A zero value with no currency matches anything.
func (m Money) SameCurrency(other Money) bool {
	return m.Currency == "" || other.Currency == "" || m.Currency == other.Currency
}

// LessThan returns true if this Money is less than other. Panics if currencies don't match.
func (m Money) LessThan(other Money) bool {
	m.assertSameCurrency(other)
	return m.Amount < other.Amount
}

// FormatMajor returns the major unit string without currency symbol,
// "49.00" for USD(4900) and "100" for a zero-decimal currency.
func (m Money) FormatMajor() string {
	return m.Decimal().StringFixed(int32(currencyDecimals(m.Currency)))
}

// String returns a human-readable string with currency symbol.
func (m Money) String() string {
	if m.Amount < 0 {
		return "-" + currencySymbol(m.Currency) + m.Negate().FormatMajor()
	}
	return currencySymbol(m.Currency) + m.FormatMajor()
}

// MarshalJSON implements json.Marshaler.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
		Display  string `json:"display"`
	}{
		Amount:   m.Amount,
		Currency: m.Currency,
		Display:  m.String(),
	})
}

// Sum adds values in the given currency. Panics on a currency mismatch.
func Sum(currency string, values ...Money) Money {
	total := Zero(currency)
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

func (m Money) assertSameCurrency(other Money) {
	if !m.SameCurrency(other) {
		panic(fmt.Sprintf("money: currency mismatch: %s != %s", m.Currency, other.Currency))
	}
}

func currencySymbol(currency string) string {
	switch strings.ToLower(currency) {
	case "usd":
		return "$"
	case "eur":
		return "€"
	case "gbp":
		return "£"
	case "jpy":
		return "¥"
	case "cad":
		return "C$"
	case "aud":
		return "A$"
	case "kes":
		return "KSh "
	}
	return strings.ToUpper(currency) + " "
}

// currencyDecimals returns the number of minor-unit digits for a currency.
func currencyDecimals(currency string) int {
	switch strings.ToLower(currency) {
	case "jpy", "krw", "vnd", "clp", "pyg", "idr", "ugx":
		return 0
	}
	return 2
}
