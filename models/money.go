package models

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is an amount in paise. All arithmetic stays in integer minor units;
// decimal rupees only appear at the JSON and configuration boundary.
type Money int64

// Rupees returns r whole rupees as Money.
func Rupees(r int64) Money {
	return Money(r * 100)
}

// ParseMoney parses a decimal rupee amount such as "999" or "49.50".
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return Money(d.Shift(2).Round(0).IntPart()), nil
}

// Decimal returns the amount in rupees.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(int64(m), -2)
}

func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// Times multiplies a unit amount by a quantity.
func (m Money) Times(qty int) Money {
	return m * Money(qty)
}

// NonNegative floors the amount at zero.
func (m Money) NonNegative() Money {
	if m < 0 {
		return 0
	}
	return m
}

// MarshalJSON writes the amount as a decimal rupee number, e.g. 1040.00.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts a rupee number or a quoted rupee string.
func (m *Money) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*m = 0
		return nil
	}
	v, err := ParseMoney(s)
	if err != nil {
		return err
	}
	*m = v
	return nil
}
