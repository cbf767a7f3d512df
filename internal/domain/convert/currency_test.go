package convert

import (
	"testing"

	"github.com/catalogsync/backend/internal/domain/integration"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMinorToDecimalString(t *testing.T) {
	tests := []struct {
		minor int64
		want  string
	}{
		{0, "0.00"},
		{5, "0.05"},
		{4500, "45.00"},
		{4599, "45.99"},
		{-5, "-0.05"},
		{-12345, "-123.45"},
		{9223372036854775807, "92233720368547758.07"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, MinorToDecimalString(tt.minor))
		})
	}
}

func TestDecimalStringToMinor(t *testing.T) {
	t.Run("valid inputs", func(t *testing.T) {
		tests := map[string]int64{
			"45.00":  4500,
			"45":     4500,
			"45.5":   4550,
			"0.01":   1,
			" 12.30": 1230,
			"-3.10":  -310,
			"45.000": 4500,
		}
		for in, want := range tests {
			got, err := DecimalStringToMinor(in)
			require.NoError(t, err, in)
			assert.Equal(t, want, got, in)
		}
	})

	t.Run("invalid inputs are validation errors", func(t *testing.T) {
		for _, in := range []string{"", "abc", "45.001", "1e400", "99999999999999999999.00"} {
			_, err := DecimalStringToMinor(in)
			require.Error(t, err, in)
			assert.Equal(t, integration.KindValidation, integration.KindOf(err), in)
		}
	})
}

func TestCurrencyRoundTrip(t *testing.T) {
	for _, s := range []string{"0.00", "0.99", "45.00", "1234567.89", "-0.50", "92233720368547758.07"} {
		minor, err := DecimalStringToMinor(s)
		require.NoError(t, err)
		assert.Equal(t, s, MinorToDecimalString(minor))
	}
	for minor := int64(-1000); minor <= 1000; minor += 7 {
		back, err := DecimalStringToMinor(MinorToDecimalString(minor))
		require.NoError(t, err)
		assert.Equal(t, minor, back)
	}
}

func TestOptionalAmounts(t *testing.T) {
	assert.Equal(t, "", OptionalMinorToDecimalString(nil))
	v := int64(5000)
	assert.Equal(t, "50.00", OptionalMinorToDecimalString(&v))

	got, err := OptionalDecimalStringToMinor("")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = OptionalDecimalStringToMinor("50.00")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(5000), *got)
}
