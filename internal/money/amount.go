// Package money implements exact decimal arithmetic for payment amounts.
//
// Amount never touches IEEE floating point. Every operation round-trips
// through the textual representation so that persisted or logged amounts
// can always be parsed back bit-for-bit equal.
package money

import (
	"database/sql/driver"
	"fmt"

	"github.com/shopspring/decimal"
)

// Precision is the minimum number of fractional digits Amount preserves,
// matching the 18-decimal stablecoin convention assumed by spec §3.
const Precision = 18

// Zero is the additive identity.
var Zero = Amount{d: decimal.Zero}

// Amount is an exact decimal monetary value.
type Amount struct {
	d decimal.Decimal
}

// NewFromString parses a decimal string. It rejects empty strings; exponent
// form such as "1e3" is accepted and parsed to its plain value.
func NewFromString(s string) (Amount, error) {
	if s == "" {
		return Amount{}, fmt.Errorf("money: empty amount")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("money: parse %q: %w", s, err)
	}
	return Amount{d: d}, nil
}

// MustFromString is NewFromString, panicking on error. Intended for literals
// in tests and guard configuration, never for untrusted input.
func MustFromString(s string) Amount {
	a, err := NewFromString(s)
	if err != nil {
		panic(err)
	}
	return a
}

// NewFromInt builds an Amount from a whole number of base units.
func NewFromInt(n int64) Amount {
	return Amount{d: decimal.NewFromInt(n)}
}

// String renders the exact decimal representation. decimal.Decimal carries
// arbitrary precision internally, so this never loses digits regardless of
// how many operations produced the value.
func (a Amount) String() string {
	return a.d.String()
}

// IsZero reports whether the amount is exactly zero.
func (a Amount) IsZero() bool {
	return a.d.IsZero()
}

// IsNegative reports whether the amount is less than zero.
func (a Amount) IsNegative() bool {
	return a.d.IsNegative()
}

// IsPositive reports whether the amount is strictly greater than zero.
func (a Amount) IsPositive() bool {
	return a.d.IsPositive()
}

// Add returns a + b.
func (a Amount) Add(b Amount) Amount {
	return Amount{d: a.d.Add(b.d)}
}

// Sub returns a - b.
func (a Amount) Sub(b Amount) Amount {
	return Amount{d: a.d.Sub(b.d)}
}

// Neg returns -a.
func (a Amount) Neg() Amount {
	return Amount{d: a.d.Neg()}
}

// Cmp returns -1, 0, or 1 as a is less than, equal to, or greater than b.
func (a Amount) Cmp(b Amount) int {
	return a.d.Cmp(b.d)
}

// LessThan reports whether a < b.
func (a Amount) LessThan(b Amount) bool {
	return a.d.LessThan(b.d)
}

// GreaterThan reports whether a > b.
func (a Amount) GreaterThan(b Amount) bool {
	return a.d.GreaterThan(b.d)
}

// LessThanOrEqual reports whether a <= b.
func (a Amount) LessThanOrEqual(b Amount) bool {
	return a.d.LessThanOrEqual(b.d)
}

// GreaterThanOrEqual reports whether a >= b.
func (a Amount) GreaterThanOrEqual(b Amount) bool {
	return a.d.GreaterThanOrEqual(b.d)
}

// Equal reports whether a and b represent the same value.
func (a Amount) Equal(b Amount) bool {
	return a.d.Equal(b.d)
}

// MarshalJSON renders the amount as a quoted decimal string so that
// round-tripping through a JSON-backed ledger never loses precision.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.String() + `"`), nil
}

// UnmarshalJSON parses a quoted decimal string.
func (a *Amount) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	parsed, err := NewFromString(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Value implements driver.Valuer for storage backends that accept scalars.
func (a Amount) Value() (driver.Value, error) {
	return a.String(), nil
}
