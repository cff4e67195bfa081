package orchestrator

import (
	"math/big"
	"strings"

	"github.com/shopspring/decimal"

	"vaultflow/internal/model"
)

// AssetDecimals is the underlying asset's precision. Amounts are
// truncated, not rounded, to this many fractional digits before any
// state transition is allowed.
const AssetDecimals = 6

// ParseAmount validates a user-entered amount: a finite positive decimal
// with at most AssetDecimals fractional digits after truncation.
func ParseAmount(input string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return decimal.Zero, &model.ValidationError{Reason: "amount is required"}
	}

	parsed, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero, &model.ValidationError{Reason: "amount is not a valid decimal: " + trimmed}
	}

	truncated := parsed.Truncate(AssetDecimals)
	if truncated.Sign() <= 0 {
		return decimal.Zero, &model.ValidationError{Reason: "amount must be positive"}
	}
	return truncated, nil
}

// ToSmallestUnit converts a validated amount to asset smallest units.
func ToSmallestUnit(amount decimal.Decimal) *big.Int {
	return amount.Shift(AssetDecimals).BigInt()
}

// FromSmallestUnit renders a smallest-unit quantity as a decimal string
// for display.
func FromSmallestUnit(value *big.Int) string {
	if value == nil {
		return "0"
	}
	return decimal.NewFromBigInt(value, -AssetDecimals).String()
}
