package quote

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// FormatAmount renders base units as a decimal string, e.g. 1500000 with 6
// decimals is "1.5". A nil amount renders as "-".
func FormatAmount(amount *big.Int, decimals int32) string {
	if amount == nil {
		return "-"
	}
	return decimal.NewFromBigInt(amount, -decimals).String()
}

// FormatFixed renders base units rounded to places decimals.
func FormatFixed(amount *big.Int, decimals, places int32) string {
	if amount == nil {
		return "-"
	}
	return decimal.NewFromBigInt(amount, -decimals).StringFixed(places)
}
