// Package money provides fixed-point monetary amounts with ISO 4217 currencies.
package money

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Currency represents an ISO 4217 currency code
type Currency string

const (
	USD Currency = "USD"
	EUR Currency = "EUR"
	GBP Currency = "GBP"
	JPY Currency = "JPY"
	INR Currency = "INR"
	PHP Currency = "PHP"
)

// CurrencyInfo contains metadata about a currency
type CurrencyInfo struct {
	Code       Currency
	MinorUnits int32 // Number of decimal places
	Symbol     string
}

var currencies = map[Currency]CurrencyInfo{
	USD: {Code: USD, MinorUnits: 2, Symbol: "$"},
	EUR: {Code: EUR, MinorUnits: 2, Symbol: "€"},
	GBP: {Code: GBP, MinorUnits: 2, Symbol: "£"},
	JPY: {Code: JPY, MinorUnits: 0, Symbol: "¥"},
	INR: {Code: INR, MinorUnits: 2, Symbol: "₹"},
	PHP: {Code: PHP, MinorUnits: 2, Symbol: "₱"},
}

// GetCurrencyInfo returns info about a currency
func GetCurrencyInfo(c Currency) (CurrencyInfo, bool) {
	info, ok := currencies[c]
	return info, ok
}

// ValidCode reports whether s is a well-formed currency code:
// exactly three uppercase ASCII letters.
func ValidCode(s string) bool {
	if len(s) != 3 {
		return false
	}
	for i := 0; i < 3; i++ {
		if s[i] < 'A' || s[i] > 'Z' {
			return false
		}
	}
	return true
}

// Amount represents a monetary amount as a fixed-point decimal.
type Amount struct {
	Value    decimal.Decimal `json:"value"`
	Currency Currency        `json:"currency"`
}

// New creates a new Amount from a decimal value
func New(value decimal.Decimal, currency Currency) Amount {
	return Amount{Value: value, Currency: currency}
}

// Parse creates an Amount from a decimal string such as "100.50"
func Parse(value string, currency Currency) (Amount, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return Amount{}, fmt.Errorf("invalid amount %q: %w", value, err)
	}
	if !ValidCode(string(currency)) {
		return Amount{}, fmt.Errorf("invalid currency code %q", currency)
	}
	return Amount{Value: d, Currency: currency}, nil
}

// FromMinor creates an Amount from minor units (cents, pence, etc.)
func FromMinor(minor int64, currency Currency) Amount {
	info, ok := currencies[currency]
	if !ok {
		info = CurrencyInfo{MinorUnits: 2}
	}
	return Amount{
		Value:    decimal.New(minor, -info.MinorUnits),
		Currency: currency,
	}
}

// Zero returns a zero amount for a currency
func Zero(currency Currency) Amount {
	return Amount{Value: decimal.Zero, Currency: currency}
}

// MinorUnits converts the amount to the smallest currency unit.
// Processors take integer minor units on the wire.
func (a Amount) MinorUnits() int64 {
	info, ok := currencies[a.Currency]
	if !ok {
		info = CurrencyInfo{MinorUnits: 2}
	}
	return a.Value.Shift(info.MinorUnits).Round(0).IntPart()
}

// IsZero returns true if the amount is zero
func (a Amount) IsZero() bool {
	return a.Value.IsZero()
}

// IsPositive returns true if the amount is strictly positive
func (a Amount) IsPositive() bool {
	return a.Value.IsPositive()
}

// IsNegative returns true if the amount is negative
func (a Amount) IsNegative() bool {
	return a.Value.IsNegative()
}

// Valid reports whether the amount satisfies the payment invariant:
// strictly positive value and a well-formed currency code.
func (a Amount) Valid() bool {
	return a.IsPositive() && ValidCode(string(a.Currency))
}

// Add adds two amounts (must be same currency)
func (a Amount) Add(other Amount) (Amount, error) {
	if a.Currency != other.Currency {
		return Amount{}, fmt.Errorf("currency mismatch: %s vs %s", a.Currency, other.Currency)
	}
	return Amount{Value: a.Value.Add(other.Value), Currency: a.Currency}, nil
}

// Sub subtracts two amounts (must be same currency)
func (a Amount) Sub(other Amount) (Amount, error) {
	if a.Currency != other.Currency {
		return Amount{}, fmt.Errorf("currency mismatch: %s vs %s", a.Currency, other.Currency)
	}
	return Amount{Value: a.Value.Sub(other.Value), Currency: a.Currency}, nil
}

// Compare returns -1, 0, or 1
func (a Amount) Compare(other Amount) (int, error) {
	if a.Currency != other.Currency {
		return 0, fmt.Errorf("currency mismatch: %s vs %s", a.Currency, other.Currency)
	}
	return a.Value.Cmp(other.Value), nil
}

// Equal checks equality
func (a Amount) Equal(other Amount) bool {
	return a.Currency == other.Currency && a.Value.Equal(other.Value)
}

// String returns a human-readable representation
func (a Amount) String() string {
	info, ok := currencies[a.Currency]
	if !ok {
		return fmt.Sprintf("%s %s", a.Value.String(), a.Currency)
	}
	return fmt.Sprintf("%s%s", info.Symbol, a.Value.StringFixed(info.MinorUnits))
}

// MarshalJSON implements json.Marshaler
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Value    string `json:"value"`
		Currency string `json:"currency"`
	}{
		Value:    a.Value.String(),
		Currency: string(a.Currency),
	})
}

// UnmarshalJSON implements json.Unmarshaler
func (a *Amount) UnmarshalJSON(data []byte) error {
	var v struct {
		Value    string `json:"value"`
		Currency string `json:"currency"`
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	value, err := decimal.NewFromString(v.Value)
	if err != nil {
		return fmt.Errorf("parsing amount value: %w", err)
	}
	a.Value = value
	a.Currency = Currency(v.Currency)
	return nil
}

// Sum adds up multiple amounts
func Sum(amounts ...Amount) (Amount, error) {
	if len(amounts) == 0 {
		return Amount{}, nil
	}
	result := amounts[0]
	for _, a := range amounts[1:] {
		var err error
		result, err = result.Add(a)
		if err != nil {
			return Amount{}, err
		}
	}
	return result, nil
}
