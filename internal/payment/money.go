package payment

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// currencyExponents maps ISO 4217 codes to the number of fractional digits
// their minor unit carries. Codes not listed here default to two.
var currencyExponents = map[string]int32{
	"BHD": 3,
	"JOD": 3,
	"KWD": 3,
	"OMR": 3,
	"TND": 3,
	"JPY": 0,
	"KRW": 0,
	"VND": 0,
}

func currencyExponent(currency string) int32 {
	if exp, ok := currencyExponents[strings.ToUpper(strings.TrimSpace(currency))]; ok {
		return exp
	}
	return 2
}

// MinorUnits converts a major-unit amount (e.g. 49.99 INR) into the smallest
// currency unit expected by the gateway (4999 paise). Amounts with more
// precision than the currency supports are rejected rather than rounded, so a
// customer is never charged a different figure than the one they were shown.
func MinorUnits(amount decimal.Decimal, currency string) (int64, error) {
	exp := currencyExponent(currency)
	scaled := amount.Shift(exp)
	if !scaled.IsInteger() {
		return 0, fmt.Errorf("amount %s has sub-minor precision for %s", amount.String(), currency)
	}
	if !scaled.BigInt().IsInt64() {
		return 0, fmt.Errorf("amount %s overflows minor units", amount.String())
	}
	return scaled.IntPart(), nil
}

// MajorUnits converts a minor-unit amount back into its major-unit decimal
// representation for display and persistence.
func MajorUnits(minor int64, currency string) decimal.Decimal {
	return decimal.NewFromInt(minor).Shift(-currencyExponent(currency))
}
