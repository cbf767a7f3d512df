package convert

import (
	"fmt"
	"math"
	"strings"

	"github.com/catalogsync/backend/internal/domain/integration"
	"github.com/shopspring/decimal"
)

// MoneyScale is the number of fractional digits in platform price strings
const MoneyScale = 2

var centsPerUnit = decimal.New(1, MoneyScale)

// MinorToDecimalString renders an amount in minor units as a fixed two-place
// decimal string, e.g. 4500 -> "45.00" and -5 -> "-0.05".
func MinorToDecimalString(minor int64) string {
	return decimal.New(minor, -MoneyScale).StringFixed(MoneyScale)
}

// OptionalMinorToDecimalString renders nil as the empty string
func OptionalMinorToDecimalString(minor *int64) string {
	if minor == nil {
		return ""
	}
	return MinorToDecimalString(*minor)
}

// DecimalStringToMinor parses a decimal string into minor units. It accepts at
// most two fractional digits so that no value is rounded away.
func DecimalStringToMinor(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, integration.NewValidationError("convert.currency", fmt.Errorf("empty amount"))
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, integration.NewValidationError("convert.currency", fmt.Errorf("invalid amount %q: %w", s, err))
	}
	if d.Exponent() < -MoneyScale && !d.Equal(d.Truncate(MoneyScale)) {
		return 0, integration.NewValidationError("convert.currency",
			fmt.Errorf("amount %q has more than %d fractional digits", s, MoneyScale))
	}
	minor := d.Mul(centsPerUnit)
	if !minor.IsInteger() || minor.Cmp(decimal.NewFromInt(math.MaxInt64)) > 0 || minor.Cmp(decimal.NewFromInt(math.MinInt64)) < 0 {
		return 0, integration.NewValidationError("convert.currency", fmt.Errorf("amount %q out of range", s))
	}
	return minor.IntPart(), nil
}

// OptionalDecimalStringToMinor parses an optional amount; empty means absent
func OptionalDecimalStringToMinor(s string) (*int64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	v, err := DecimalStringToMinor(s)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
