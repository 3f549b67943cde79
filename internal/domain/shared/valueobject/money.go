package valueobject

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Currency represents a currency code (ISO 4217)
type Currency string

const (
	THB Currency = "THB" // Thai Baht (the only supported currency)
)

// DefaultCurrency is the default currency for the system
const DefaultCurrency = THB

// MinorUnitsPerBaht is the number of satang in one baht
const MinorUnitsPerBaht = 100

// Money is a value object representing monetary amounts as integer
// minor units (satang). All ledger arithmetic is exact integer math;
// decimals appear only when parsing or formatting baht strings.
// It is immutable - all operations return new Money instances.
type Money struct {
	units    int64
	currency Currency
}

// NewMoney creates a new Money from integer minor units
func NewMoney(units int64, currency Currency) (Money, error) {
	if currency == "" {
		return Money{}, errors.New("currency cannot be empty")
	}
	return Money{units: units, currency: currency}, nil
}

// NewMoneyTHB creates Money in THB from satang
func NewMoneyTHB(units int64) Money {
	return Money{units: units, currency: THB}
}

// ParseMoneyTHB creates Money in THB from a baht string such as "350.00".
// Amounts with sub-satang precision are rejected rather than rounded.
func ParseMoneyTHB(amount string) (Money, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return Money{}, fmt.Errorf("invalid amount string: %w", err)
	}
	scaled := d.Mul(decimal.NewFromInt(MinorUnitsPerBaht))
	if !scaled.IsInteger() {
		return Money{}, fmt.Errorf("amount %s has sub-satang precision", amount)
	}
	return Money{units: scaled.IntPart(), currency: THB}, nil
}

// Zero returns a zero-value Money in the specified currency
func Zero(currency Currency) Money {
	return Money{units: 0, currency: currency}
}

// ZeroTHB returns a zero-value Money in THB
func ZeroTHB() Money {
	return Zero(THB)
}

// Units returns the amount in integer minor units (satang)
func (m Money) Units() int64 {
	return m.units
}

// Baht returns the amount as a decimal number of baht
func (m Money) Baht() decimal.Decimal {
	return decimal.NewFromInt(m.units).Div(decimal.NewFromInt(MinorUnitsPerBaht))
}

// Currency returns the currency code
func (m Money) Currency() Currency {
	return m.currency
}

// IsZero returns true if the amount is zero
func (m Money) IsZero() bool {
	return m.units == 0
}

// IsPositive returns true if the amount is positive
func (m Money) IsPositive() bool {
	return m.units > 0
}

// IsNegative returns true if the amount is negative
func (m Money) IsNegative() bool {
	return m.units < 0
}

// Add returns a new Money with the sum of both amounts
// Returns error if currencies don't match
func (m Money) Add(other Money) (Money, error) {
	if m.currency != other.currency {
		return Money{}, fmt.Errorf("cannot add money with different currencies: %s and %s", m.currency, other.currency)
	}
	return Money{units: m.units + other.units, currency: m.currency}, nil
}

// MustAdd adds two Money values, panics if currencies don't match
func (m Money) MustAdd(other Money) Money {
	result, err := m.Add(other)
	if err != nil {
		panic(err)
	}
	return result
}

// Subtract returns a new Money with the difference
// Returns error if currencies don't match
func (m Money) Subtract(other Money) (Money, error) {
	if m.currency != other.currency {
		return Money{}, fmt.Errorf("cannot subtract money with different currencies: %s and %s", m.currency, other.currency)
	}
	return Money{units: m.units - other.units, currency: m.currency}, nil
}

// MustSubtract subtracts two Money values, panics if currencies don't match
func (m Money) MustSubtract(other Money) Money {
	result, err := m.Subtract(other)
	if err != nil {
		panic(err)
	}
	return result
}

// Negate returns a new Money with the sign reversed
func (m Money) Negate() Money {
	return Money{units: -m.units, currency: m.currency}
}

// Abs returns a new Money with the absolute value
func (m Money) Abs() Money {
	if m.units < 0 {
		return m.Negate()
	}
	return m
}

// Min returns the smaller of two Money values, panics if currencies don't match
func Min(a, b Money) Money {
	if a.currency != b.currency {
		panic(fmt.Sprintf("cannot compare money with different currencies: %s and %s", a.currency, b.currency))
	}
	if a.units <= b.units {
		return a
	}
	return b
}

// Equals returns true if both Money values are equal (same amount and currency)
func (m Money) Equals(other Money) bool {
	return m.currency == other.currency && m.units == other.units
}

// LessThan returns true if this Money is less than the other
// Returns error if currencies don't match
func (m Money) LessThan(other Money) (bool, error) {
	if m.currency != other.currency {
		return false, fmt.Errorf("cannot compare money with different currencies: %s and %s", m.currency, other.currency)
	}
	return m.units < other.units, nil
}

// GreaterThan returns true if this Money is greater than the other
func (m Money) GreaterThan(other Money) (bool, error) {
	if m.currency != other.currency {
		return false, fmt.Errorf("cannot compare money with different currencies: %s and %s", m.currency, other.currency)
	}
	return m.units > other.units, nil
}

// GreaterThanOrEqual returns true if this Money is greater than or equal to the other
func (m Money) GreaterThanOrEqual(other Money) (bool, error) {
	if m.currency != other.currency {
		return false, fmt.Errorf("cannot compare money with different currencies: %s and %s", m.currency, other.currency)
	}
	return m.units >= other.units, nil
}

// String returns a string representation of the Money in baht
func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.Baht().StringFixed(2), m.currency)
}

// BahtString returns the amount as a baht string with two decimal places
func (m Money) BahtString() string {
	return m.Baht().StringFixed(2)
}

// MarshalJSON implements json.Marshaler. The amount travels as satang so
// clients never see a floating-point representation.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Units    int64    `json:"units"`
		Display  string   `json:"display"`
		Currency Currency `json:"currency"`
	}{
		Units:    m.units,
		Display:  m.BahtString(),
		Currency: m.currency,
	})
}

// UnmarshalJSON implements json.Unmarshaler. Only the units field is
// authoritative; display strings are ignored on the way in.
func (m *Money) UnmarshalJSON(data []byte) error {
	var v struct {
		Units    int64    `json:"units"`
		Currency Currency `json:"currency"`
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	m.units = v.Units
	if v.Currency == "" {
		m.currency = DefaultCurrency
	} else {
		m.currency = v.Currency
	}
	return nil
}

// Value implements driver.Valuer for database storage.
// Stores the integer minor units only.
func (m Money) Value() (driver.Value, error) {
	return m.units, nil
}

// Scan implements sql.Scanner for database retrieval. Only the minor
// units are stored; the currency defaults to DefaultCurrency.
func (m *Money) Scan(value any) error {
	if value == nil {
		m.units = 0
		m.currency = DefaultCurrency
		return nil
	}

	switch v := value.(type) {
	case int64:
		m.units = v
	case int:
		m.units = int64(v)
	case []byte:
		d, err := decimal.NewFromString(string(v))
		if err != nil || !d.IsInteger() {
			return fmt.Errorf("invalid minor-unit value %q", string(v))
		}
		m.units = d.IntPart()
	default:
		return fmt.Errorf("cannot scan %T into Money", value)
	}
	if m.currency == "" {
		m.currency = DefaultCurrency
	}
	return nil
}
