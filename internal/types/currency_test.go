package types

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestRoundToCurrencyPrecision(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		currency string
		expected string
	}{
		{
			name:     "Simple_USD",
			amount:   "10.00",
			currency: "usd",
			expected: "10.00",
		},
		{
			name:     "HalfUp_USD",
			amount:   "8.875",
			currency: "usd",
			expected: "8.88",
		},
		{
			name:     "RoundsDown_USD",
			amount:   "8.954",
			currency: "usd",
			expected: "8.95",
		},
		{
			name:     "JPY_NoDecimals",
			amount:   "104.895",
			currency: "jpy",
			expected: "105",
		},
		{
			name:     "BHD_ThreeDecimals",
			amount:   "1.23456",
			currency: "bhd",
			expected: "1.235",
		},
		{
			name:     "SubCent_RoundsToZero",
			amount:   "0.001",
			currency: "usd",
			expected: "0.00",
		},
		{
			name:     "UppercaseCurrency",
			amount:   "19.998",
			currency: "EUR",
			expected: "20.00",
		},
		{
			name:     "UnknownCurrency_DefaultPrecision",
			amount:   "1.005",
			currency: "xyz",
			expected: "1.01",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			amount := decimal.RequireFromString(tt.amount)
			expected := decimal.RequireFromString(tt.expected)

			rounded := RoundToCurrencyPrecision(amount, tt.currency)

			assert.True(t, rounded.Equal(expected),
				"expected %s, got %s", expected.String(), rounded.String())
		})
	}
}

func TestGetCurrencyPrecision(t *testing.T) {
	assert.Equal(t, int32(2), GetCurrencyPrecision("usd"))
	assert.Equal(t, int32(2), GetCurrencyPrecision("USD"))
	assert.Equal(t, int32(0), GetCurrencyPrecision("jpy"))
	assert.Equal(t, int32(0), GetCurrencyPrecision("krw"))
	assert.Equal(t, int32(3), GetCurrencyPrecision("kwd"))
	assert.Equal(t, int32(2), GetCurrencyPrecision("unknown"))
}
