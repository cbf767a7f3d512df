package convert

import (
	"fmt"
	"strings"

	"github.com/catalogsync/backend/internal/domain/integration"
	"github.com/shopspring/decimal"
)

// GramsPerPound is the exact conversion factor
var GramsPerPound = decimal.RequireFromString("453.592")

// MassUnit is a platform weight unit
type MassUnit string

const (
	MassUnitGrams     MassUnit = "g"
	MassUnitKilograms MassUnit = "kg"
	MassUnitPounds    MassUnit = "lb"
	MassUnitOunces    MassUnit = "oz"
)

var gramsPerUnit = map[MassUnit]decimal.Decimal{
	MassUnitGrams:     decimal.NewFromInt(1),
	MassUnitKilograms: decimal.NewFromInt(1000),
	MassUnitPounds:    GramsPerPound,
	MassUnitOunces:    GramsPerPound.Div(decimal.NewFromInt(16)),
}

// ParseMassUnit accepts common spellings ("lbs", "POUNDS", "KILOGRAMS")
func ParseMassUnit(s string) (MassUnit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "g", "gram", "grams":
		return MassUnitGrams, nil
	case "kg", "kilogram", "kilograms":
		return MassUnitKilograms, nil
	case "lb", "lbs", "pound", "pounds":
		return MassUnitPounds, nil
	case "oz", "ounce", "ounces":
		return MassUnitOunces, nil
	default:
		return "", integration.NewValidationError("convert.mass", fmt.Errorf("unknown weight unit %q", s))
	}
}

// GramsToPounds converts exactly and rounds once to the given number of places
func GramsToPounds(grams int64, places int32) decimal.Decimal {
	return GramsTo(grams, MassUnitPounds, places)
}

// GramsTo converts grams into unit rounded half-up to places
func GramsTo(grams int64, unit MassUnit, places int32) decimal.Decimal {
	factor, ok := gramsPerUnit[unit]
	if !ok {
		factor = gramsPerUnit[MassUnitGrams]
	}
	return decimal.NewFromInt(grams).DivRound(factor, places+8).Round(places)
}

// FormatMass renders grams in unit at the platform precision, e.g. "4.409"
func FormatMass(grams int64, unit MassUnit, places int32) string {
	return GramsTo(grams, unit, places).StringFixed(places)
}

// PoundsToGrams converts pounds to whole grams, rounding half-up
func PoundsToGrams(pounds decimal.Decimal) int64 {
	return ToGrams(pounds, MassUnitPounds)
}

// ToGrams converts a value in unit to whole grams, rounding half-up
func ToGrams(value decimal.Decimal, unit MassUnit) int64 {
	factor, ok := gramsPerUnit[unit]
	if !ok {
		factor = gramsPerUnit[MassUnitGrams]
	}
	return value.Mul(factor).Round(0).IntPart()
}

// ParseMass parses a platform weight string in unit into grams
func ParseMass(s string, unit MassUnit) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, integration.NewValidationError("convert.mass", fmt.Errorf("invalid weight %q: %w", s, err))
	}
	if d.IsNegative() {
		return 0, integration.NewValidationError("convert.mass", fmt.Errorf("negative weight %q", s))
	}
	return ToGrams(d, unit), nil
}
