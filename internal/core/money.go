// Package core provides the FinBuddy domain model: money, expenses, the
// spending taxonomy, and analysis snapshot types.
//
// Money is held as integer cents so that totals are exact; floating point
// only appears for percentages, never for sums of money.
package core

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Money is an exact monetary amount in cents.
type Money struct {
	Cents int64
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Add returns the exact sum of two amounts.
func (m Money) Add(other Money) Money {
	return Money{Cents: m.Cents + other.Cents}
}

// Units returns the amount in currency units as a float64. Display and
// tolerance comparisons only; never accumulate money through this.
func (m Money) Units() float64 {
	return float64(m.Cents) / 100.0
}

// String formats the amount as a currency string, e.g. "$12.34".
func (m Money) String() string {
	cents := m.Cents
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s$%d.%02d", sign, cents/100, cents%100)
}

// ParseDecimalToCents converts a decimal string to cents with half-up
// rounding on the third decimal place. It accepts dot and comma decimal
// separators, grouping commas ("1,234.56"), leading currency symbols
// ($, €, £), and negatives written with a leading minus or accounting
// parentheses ("(12.34)"). The sign is carried into the result; zero and
// negative amounts parse fine here and are rejected by Money.Validate.
//
// Examples:
//
//	ParseDecimalToCents("12.34")   -> 1234, nil
//	ParseDecimalToCents("12,34")   -> 1234, nil
//	ParseDecimalToCents("$9.99")   -> 999, nil
//	ParseDecimalToCents("12.346")  -> 1235, nil (rounds up)
//	ParseDecimalToCents("(12.34)") -> -1234, nil
func ParseDecimalToCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") && len(s) >= 2 {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	if strings.HasPrefix(s, "-") {
		negative = true
		s = strings.TrimSpace(s[1:])
	} else if strings.HasPrefix(s, "+") {
		s = strings.TrimSpace(s[1:])
	}
	for _, sym := range []string{"$", "€", "£"} {
		s = strings.TrimPrefix(s, sym)
	}
	s = strings.TrimSpace(s)
	// The minus may also follow the currency symbol, as in "$-5.00".
	if strings.HasPrefix(s, "-") {
		negative = true
		s = strings.TrimSpace(s[1:])
	}
	if s == "" {
		return 0, ErrInvalidAmount
	}
	// "1,234.56" carries grouping commas; "12,34" uses a decimal comma.
	if strings.Contains(s, ".") {
		s = strings.ReplaceAll(s, ",", "")
	} else {
		s = strings.ReplaceAll(s, ",", ".")
	}
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return 0, ErrInvalidAmount
	}
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if intPart == "" {
		intPart = "0"
	}
	for _, r := range intPart {
		if !unicode.IsDigit(r) {
			return 0, ErrInvalidAmount
		}
	}
	for _, r := range fracPart {
		if !unicode.IsDigit(r) {
			return 0, ErrInvalidAmount
		}
	}
	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	// Prevent overflow when multiplying by 100
	const maxSafeInt64 = (1<<63 - 1) / 100
	if iv > maxSafeInt64 {
		return 0, ErrInvalidAmount
	}
	// Take the first two fractional digits; half-up rounding on the third.
	var fracCents int64
	if len(fracPart) > 0 {
		d1 := int64(fracPart[0] - '0')
		fracCents = d1 * 10
		if len(fracPart) > 1 {
			d2 := int64(fracPart[1] - '0')
			fracCents += d2
			if len(fracPart) > 2 && fracPart[2] >= '5' {
				fracCents++
			}
		}
	}
	cents := iv*100 + fracCents
	if negative {
		cents = -cents
	}
	return cents, nil
}
