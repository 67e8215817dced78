package types

import (
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultCurrencyPrecision is the minor-unit precision used for currencies
// not present in the overrides map.
const DefaultCurrencyPrecision int32 = 2

// currencyPrecisionOverrides maps lowercase 3 letter ISO currency codes to
// their minor-unit precision when it differs from the default of 2.
var currencyPrecisionOverrides = map[string]int32{
	"bhd": 3,
	"clp": 0,
	"isk": 0,
	"jod": 3,
	"jpy": 0,
	"krw": 0,
	"kwd": 3,
	"omr": 3,
	"tnd": 3,
	"vnd": 0,
}

// GetCurrencyPrecision returns the minor-unit precision for a currency code.
// Unknown codes fall back to 2 decimal places.
func GetCurrencyPrecision(currency string) int32 {
	if precision, ok := currencyPrecisionOverrides[ToLowerCurrency(currency)]; ok {
		return precision
	}
	return DefaultCurrencyPrecision
}

// RoundToCurrencyPrecision rounds an amount to the currency's minor-unit
// precision using half-up rounding. Per-rate tax amounts must be rounded with
// this helper before they are summed so that applied rows always reconcile
// with aggregate totals.
func RoundToCurrencyPrecision(amount decimal.Decimal, currency string) decimal.Decimal {
	return amount.Round(GetCurrencyPrecision(currency))
}

// ToLowerCurrency normalizes a currency code for map lookups and storage
func ToLowerCurrency(currency string) string {
	return strings.ToLower(currency)
}
