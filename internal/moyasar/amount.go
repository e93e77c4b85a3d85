package moyasar

import (
	"strings"

	"github.com/shopspring/decimal"
)

// subunitMultipliers maps ISO-4217 codes with a non-default number of
// decimal places. Three-decimal currencies use 1000 subunits per unit,
// zero-decimal currencies use 1; everything else defaults to 100.
var subunitMultipliers = map[string]int64{
	"KWD": 1000,
	"BHD": 1000,
	"OMR": 1000,
	"JPY": 1,
}

// ToSubunits converts a decimal amount to the gateway's smallest-unit
// integer representation (100 = 1 SAR). Rounding is standard half away from
// zero. The gateway verifies amounts exactly, so this conversion must match
// what was sent at payment creation.
func ToSubunits(amount decimal.Decimal, currency string) int64 {
	multiplier := int64(100)
	if m, ok := subunitMultipliers[strings.ToUpper(currency)]; ok {
		multiplier = m
	}
	return amount.Mul(decimal.NewFromInt(multiplier)).Round(0).IntPart()
}
