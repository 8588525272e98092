// Package amount converts between major display units (XLM) and integer minor
// units (stroops). All conversions are exact; floats never touch an amount.
package amount

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Decimals is the number of fractional digits of one major unit.
const Decimals = 7

// StroopsPerXLM is 10^Decimals.
const StroopsPerXLM int64 = 10_000_000

var (
	// ErrInvalidAmount is returned for malformed amount strings.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrTooPrecise is returned when an amount has more than 7 fractional digits.
	ErrTooPrecise = errors.New("amount has more than 7 fractional digits")

	// ErrNonPositive is returned when a bid amount is zero or negative.
	ErrNonPositive = errors.New("amount must be positive")
)

// MajorToMinor converts "10.5" into 105000000. The fractional part is
// right-padded to exactly 7 digits and the digits are concatenated.
func MajorToMinor(major string) (int64, error) {
	whole, frac, _ := strings.Cut(major, ".")
	if whole == "" && frac == "" {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, major)
	}
	if !allDigits(whole) || !allDigits(frac) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, major)
	}
	if len(frac) > Decimals {
		return 0, fmt.Errorf("%w: %q", ErrTooPrecise, major)
	}
	if whole == "" {
		whole = "0"
	}
	digits := whole + frac + strings.Repeat("0", Decimals-len(frac))
	v, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrInvalidAmount, major, err)
	}
	return v, nil
}

// MinorToMajor converts 105000000 into "10.5". The zero fraction is omitted.
func MinorToMajor(minor int64) string {
	neg := minor < 0
	if neg {
		minor = -minor
	}
	s := strconv.FormatInt(minor, 10)
	if len(s) < Decimals+1 {
		s = strings.Repeat("0", Decimals+1-len(s)) + s
	}
	intPart := s[:len(s)-Decimals]
	fracPart := strings.TrimRight(s[len(s)-Decimals:], "0")

	out := intPart
	if fracPart != "" {
		out = intPart + "." + fracPart
	}
	if neg {
		return "-" + out
	}
	return out
}

// Parse validates user input and returns its minor-unit value. It accepts
// surrounding whitespace and redundant zeros ("010.50"), rejects negative,
// zero and exponent forms.
func Parse(input string) (int64, error) {
	input = strings.TrimSpace(input)
	if input == "" || strings.ContainsAny(input, "eE") {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, input)
	}
	d, err := decimal.NewFromString(input)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, input)
	}
	if !d.IsPositive() {
		return 0, fmt.Errorf("%w: %q", ErrNonPositive, input)
	}
	if !d.Shift(Decimals).IsInteger() {
		return 0, fmt.Errorf("%w: %q", ErrTooPrecise, input)
	}
	return MajorToMinor(d.String())
}

// ParseNonNegative is Parse for configuration-style values such as the
// minimum increment or reserve price, where zero is allowed and an empty
// string means zero.
func ParseNonNegative(input string) (int64, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return 0, nil
	}
	d, err := decimal.NewFromString(input)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, input)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, input)
	}
	if !d.Shift(Decimals).IsInteger() {
		return 0, fmt.Errorf("%w: %q", ErrTooPrecise, input)
	}
	return d.Shift(Decimals).IntPart(), nil
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
