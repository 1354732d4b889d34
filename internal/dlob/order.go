package dlob

import (
	"dlob/internal/common"
	"dlob/internal/oracle"
)

// Order is a value snapshot of everything the DLOB needs to classify, sort,
// and price a resting instruction. It is copied into a Node on insertion;
// mutating the source after insertion never affects the book.
type Order struct {
	OrderID   uint32
	Status    common.OrderStatus
	OrderType common.OrderType

	MarketType  common.MarketType
	MarketIndex uint16
	Direction   common.PositionDirection

	Slot  uint64 // creation slot
	Price int64  // limit price, fixed precision

	TriggerPrice     int64
	TriggerCondition common.OrderTriggerCondition

	OraclePriceOffset int64 // nonzero marks a floating-limit order
	AuctionDuration   uint64
	AuctionStartPrice int64
	AuctionEndPrice   int64
}

// Triggered reports whether a trigger order has already fired. Only the
// TriggeredAbove/TriggeredBelow conditions count as triggered; Above/Below
// are still pending.
func (o Order) Triggered() bool {
	switch o.TriggerCondition {
	case common.TriggerConditionTriggeredAbove, common.TriggerConditionTriggeredBelow:
		return true
	default:
		return false
	}
}

// IsRestingLimitOrder is the maturity predicate of spec.md §4.1: true once
// the auction window from the order's creation slot has elapsed.
func (o Order) IsRestingLimitOrder(slot uint64) bool {
	return slot >= o.Slot+o.AuctionDuration
}

// LimitPrice computes the effective price of the order at slot, combining
// the fixed limit price, oracle-offset tracking for floating-limit orders,
// linear auction interpolation while the order is still taking, and
// tick-size alignment. Bids round down to the nearest tick, asks round up,
// matching how a resting order is never priced more aggressively than its
// nominal limit by rounding alone.
func (o Order) LimitPrice(oraclePrice oracle.PriceData, slot uint64, tickSize int64) int64 {
	price := o.basePrice(oraclePrice, slot)
	return standardizePrice(price, tickSize, o.Direction)
}

func (o Order) basePrice(oraclePrice oracle.PriceData, slot uint64) int64 {
	if o.OraclePriceOffset != 0 {
		return oraclePrice.Price + o.OraclePriceOffset
	}

	if o.AuctionStartPrice == 0 && o.AuctionEndPrice == 0 {
		return o.Price
	}

	if o.AuctionDuration == 0 || o.IsRestingLimitOrder(slot) {
		return o.Price
	}

	elapsed := slot - o.Slot
	if elapsed > o.AuctionDuration {
		elapsed = o.AuctionDuration
	}

	delta := o.AuctionEndPrice - o.AuctionStartPrice
	return o.AuctionStartPrice + delta*int64(elapsed)/int64(o.AuctionDuration)
}

// standardizePrice rounds price to the nearest tickSize, rounding down for
// bids (never overpay) and up for asks (never undersell).
func standardizePrice(price, tickSize int64, direction common.PositionDirection) int64 {
	if tickSize <= 0 {
		return price
	}

	remainder := price % tickSize
	if remainder == 0 {
		return price
	}

	if direction == common.Long {
		if price >= 0 {
			return price - remainder
		}
		return price - remainder - tickSize
	}

	if price >= 0 {
		return price - remainder + tickSize
	}
	return price - remainder
}
