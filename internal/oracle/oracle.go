// Package oracle carries the oracle price a query is evaluated against and
// the fixture parsing used by the demo CLI to build one from human-readable
// strings without floating point round-off.
package oracle

import (
	"fmt"

	"github.com/shopspring/decimal"

	"dlob/internal/common"
)

// PriceData is the price_feed quote a query is evaluated against. The DLOB
// never acquires this itself (spec.md Non-goals); callers supply it.
type PriceData struct {
	Price int64 // fixed precision, common.PricePrecision
	Slot  uint64
}

// ParsePrice converts a human price string ("27350.125") to the engine's
// fixed-point representation, the way a config-driven fixture would, without
// the rounding drift a float64 parse would introduce.
func ParsePrice(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parsing oracle price %q: %w", s, err)
	}

	scaled := d.Mul(decimal.NewFromInt(common.PricePrecision))
	return scaled.Round(0).IntPart(), nil
}
