package domain

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// DefaultDecimals is the GLP token decimal scale.
const DefaultDecimals int32 = 18

// ScaleUnits converts a raw on-chain integer into human units.
func ScaleUnits(raw *big.Int, decimals int32) float64 {
	if raw == nil {
		return 0
	}
	return decimal.NewFromBigInt(raw, -decimals).InexactFloat64()
}

// ParseUnits parses a base-10 integer string and scales it. Empty input is zero.
func ParseUnits(raw string, decimals int32) (float64, error) {
	if raw == "" {
		return 0, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: amount %q: %v", ErrDataShape, raw, err)
	}
	return d.Shift(-decimals).InexactFloat64(), nil
}
