package dlob

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dlob/internal/common"
	"dlob/internal/oracle"
)

type stubSubscriber struct {
	err error
}

func (s stubSubscriber) Load() error { return s.err }

// testUser is a fixed, valid base58 pubkey used as the order owner across
// these tests; the book never distinguishes users within a single test.
func testUser() solana.PublicKey {
	return solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")
}

func newTestDlob(t *testing.T) *Dlob {
	t.Helper()
	d := NewBuilder().AccountSubscriber(stubSubscriber{}).Build()
	require.NoError(t, d.Load())
	return d
}

func orderIDs(nodes []Node) []uint32 {
	ids := make([]uint32, len(nodes))
	for i, n := range nodes {
		ids[i] = n.Order().OrderID
	}
	return ids
}

const pricePrecision = int64(common.PricePrecision)

func scaled(f float64) int64 {
	return int64(f * float64(pricePrecision))
}

func TestInsertOrder_InactiveTriggerOrdering(t *testing.T) {
	user := testUser()

	for _, marketType := range []common.MarketType{common.Perp, common.Spot} {
		d := newTestDlob(t)

		type testCase struct {
			condition common.OrderTriggerCondition
			price     int64
			direction common.PositionDirection
			orderID   uint32
		}
		cases := []testCase{
			{common.TriggerConditionAbove, scaled(12.5), common.Long, 1},
			{common.TriggerConditionAbove, scaled(12.7), common.Short, 2},
			{common.TriggerConditionAbove, scaled(11.32222), common.Long, 3},
			{common.TriggerConditionBelow, scaled(12.5), common.Short, 4},
			{common.TriggerConditionBelow, scaled(12.7), common.Long, 5},
			{common.TriggerConditionBelow, scaled(11.34), common.Long, 6},
		}

		for _, c := range cases {
			order := Order{
				Status:           common.OrderStatusOpen,
				OrderType:        common.OrderTypeTriggerLimit,
				MarketType:       marketType,
				TriggerCondition: c.condition,
				TriggerPrice:     c.price,
				Direction:        c.direction,
				OrderID:          c.orderID,
			}
			require.NoError(t, d.InsertOrder(0, user, order))
		}

		lists := d.listsFor(marketType)[0]
		assert.Equal(t, []uint32{3, 1, 2}, orderIDs(lists.trigger.above.items()))
		assert.Equal(t, []uint32{5, 4, 6}, orderIDs(lists.trigger.below.items()))
	}
}

func TestInsertOrder_MarketOrdering(t *testing.T) {
	user := testUser()

	for _, marketType := range []common.MarketType{common.Perp, common.Spot} {
		d := newTestDlob(t)

		type testCase struct {
			orderID   uint32
			direction common.PositionDirection
			slot      uint64
		}
		cases := []testCase{
			{1, common.Long, 6},
			{2, common.Short, 5},
			{3, common.Long, 4},
			{4, common.Short, 3},
			{5, common.Long, 2},
			{6, common.Short, 1},
		}

		for _, c := range cases {
			order := Order{
				Status:     common.OrderStatusOpen,
				OrderType:  common.OrderTypeMarket,
				MarketType: marketType,
				Direction:  c.direction,
				OrderID:    c.orderID,
				Slot:       c.slot,
			}
			require.NoError(t, d.InsertOrder(0, user, order))
		}

		lists := d.listsFor(marketType)[0]
		assert.Equal(t, []uint32{5, 3, 1}, orderIDs(lists.market.bid.items()))
		assert.Equal(t, []uint32{6, 4, 2}, orderIDs(lists.market.ask.items()))
	}
}

func TestInsertOrder_FloatingLimitOrdering(t *testing.T) {
	user := testUser()

	for _, marketType := range []common.MarketType{common.Perp, common.Spot} {
		d := newTestDlob(t)

		type testCase struct {
			orderID   uint32
			direction common.PositionDirection
			offset    int64
		}
		cases := []testCase{
			{1, common.Long, scaled(1.11)},
			{2, common.Long, scaled(0.91)},
			{3, common.Long, scaled(-1.23)},
			{4, common.Short, scaled(1.01)},
			{5, common.Short, scaled(1.22)},
			{6, common.Short, scaled(1.35)},
		}

		for _, c := range cases {
			order := Order{
				Status:            common.OrderStatusOpen,
				OrderType:         common.OrderTypeLimit,
				MarketType:        marketType,
				Direction:         c.direction,
				OrderID:           c.orderID,
				OraclePriceOffset: c.offset,
			}
			require.NoError(t, d.InsertOrder(0, user, order))
		}

		lists := d.listsFor(marketType)[0]
		assert.Equal(t, []uint32{1, 2, 3}, orderIDs(lists.floatingLimit.bid.items()))
		assert.Equal(t, []uint32{4, 5, 6}, orderIDs(lists.floatingLimit.ask.items()))
	}
}

func TestInsertOrder_RestingLimitOrdering(t *testing.T) {
	user := testUser()

	for _, marketType := range []common.MarketType{common.Perp, common.Spot} {
		d := newTestDlob(t)

		type testCase struct {
			orderID   uint32
			direction common.PositionDirection
			price     int64
		}
		cases := []testCase{
			{1, common.Long, scaled(1.11)},
			{2, common.Long, scaled(0.91)},
			{3, common.Long, scaled(-1.23)},
			{4, common.Short, scaled(1.01)},
			{5, common.Short, scaled(1.22)},
			{6, common.Short, scaled(1.35)},
		}

		for _, c := range cases {
			order := Order{
				Status:          common.OrderStatusOpen,
				OrderType:       common.OrderTypeLimit,
				MarketType:      marketType,
				Direction:       c.direction,
				OrderID:         c.orderID,
				Price:           c.price,
				Slot:            1,
				AuctionDuration: 0,
			}
			require.NoError(t, d.InsertOrder(1, user, order))
		}

		lists := d.listsFor(marketType)[0]
		assert.Equal(t, []uint32{1, 2, 3}, orderIDs(lists.restingLimit.bid.items()))
		assert.Equal(t, []uint32{4, 5, 6}, orderIDs(lists.restingLimit.ask.items()))
	}
}

func TestInsertOrder_StatusGating(t *testing.T) {
	d := newTestDlob(t)
	user := testUser()

	require.NoError(t, d.InsertOrder(0, user, Order{Status: common.OrderStatusInit, OrderType: common.OrderTypeLimit}))
	assert.Empty(t, d.perp)

	require.NoError(t, d.InsertOrder(0, user, Order{Status: common.OrderStatusOpen, OrderType: common.OrderTypeLimit + 100}))
	assert.Empty(t, d.perp)
}

func TestInsertOrder_PreconditionViolation(t *testing.T) {
	d := NewBuilder().AccountSubscriber(stubSubscriber{}).Build()
	user := testUser()

	assert.Panics(t, func() {
		_ = d.InsertOrder(0, user, Order{Status: common.OrderStatusOpen, OrderType: common.OrderTypeLimit})
	})
}

func TestInsertOrder_InactiveTriggerContractViolation(t *testing.T) {
	d := newTestDlob(t)
	user := testUser()

	assert.Panics(t, func() {
		_ = d.InsertOrder(0, user, Order{
			Status:           common.OrderStatusOpen,
			OrderType:        common.OrderTypeTriggerLimit,
			TriggerCondition: common.TriggerConditionTriggeredAbove - 1000, // neither Above nor Below
		})
	})
}

func TestMaturityPromotion(t *testing.T) {
	d := newTestDlob(t)
	user := testUser()

	order := Order{
		Status:          common.OrderStatusOpen,
		OrderType:       common.OrderTypeLimit,
		Direction:       common.Long,
		OrderID:         1,
		Slot:            10,
		AuctionDuration: 5,
		Price:           scaled(100),
	}
	require.NoError(t, d.InsertOrder(10, user, order))

	lists := d.listsFor(common.Perp)[0]
	require.Equal(t, 1, lists.takingLimit.bid.len())
	require.Equal(t, 0, lists.restingLimit.bid.len())

	bids, err := d.GetTakingBids(0, common.Perp, 14, oracle.PriceData{})
	require.NoError(t, err)
	var seen14 []uint32
	for n := range bids {
		seen14 = append(seen14, n.Order().OrderID)
	}
	assert.Equal(t, []uint32{1}, seen14)
	assert.Equal(t, 1, lists.takingLimit.bid.len())
	assert.Equal(t, 0, lists.restingLimit.bid.len())

	bids, err = d.GetTakingBids(0, common.Perp, 15, oracle.PriceData{})
	require.NoError(t, err)
	var seen15 []uint32
	for n := range bids {
		seen15 = append(seen15, n.Order().OrderID)
	}
	assert.Empty(t, seen15)
	assert.Equal(t, 0, lists.takingLimit.bid.len())
	assert.Equal(t, 1, lists.restingLimit.bid.len())
	assert.Equal(t, []uint32{1}, orderIDs(lists.restingLimit.bid.items()))
}

func TestUpdateRestingLimitOrders_Idempotent(t *testing.T) {
	d := newTestDlob(t)
	user := testUser()

	order := Order{
		Status:          common.OrderStatusOpen,
		OrderType:       common.OrderTypeLimit,
		Direction:       common.Long,
		OrderID:         1,
		Slot:            10,
		AuctionDuration: 5,
	}
	require.NoError(t, d.InsertOrder(10, user, order))

	d.updateRestingLimitOrders(15)
	lists := d.listsFor(common.Perp)[0]
	assert.Equal(t, 1, lists.restingLimit.bid.len())

	// Repeated call at the same slot must not move anything further.
	d.updateRestingLimitOrders(15)
	assert.Equal(t, 1, lists.restingLimit.bid.len())
	assert.Equal(t, 0, lists.takingLimit.bid.len())

	// A call at a lower slot is a no-op (monotonicity).
	d.updateRestingLimitOrders(12)
	assert.Equal(t, uint64(15), d.maxRestingSlot)
}

func TestGetTakingBids_MergedIterator(t *testing.T) {
	d := newTestDlob(t)
	user := testUser()

	for _, slot := range []uint64{1, 3, 5} {
		require.NoError(t, d.InsertOrder(100, user, Order{
			Status:     common.OrderStatusOpen,
			OrderType:  common.OrderTypeMarket,
			Direction:  common.Long,
			OrderID:    uint32(slot),
			Slot:       slot,
		}))
	}

	for _, slot := range []uint64{2, 4, 6} {
		require.NoError(t, d.InsertOrder(100, user, Order{
			Status:          common.OrderStatusOpen,
			OrderType:       common.OrderTypeLimit,
			Direction:       common.Long,
			OrderID:         uint32(slot),
			Slot:            slot,
			AuctionDuration: 1_000_000, // keep these in taking_limit at slot 100
		}))
	}

	bids, err := d.GetTakingBids(0, common.Perp, 100, oracle.PriceData{})
	require.NoError(t, err)

	var gotSlots []uint32
	for n := range bids {
		gotSlots = append(gotSlots, uint32(n.Order().Slot))
	}
	assert.Equal(t, []uint32{6, 4, 2, 1, 3, 5}, gotSlots)
}

func TestGetTakingAsks_MergedIteratorIsSorted(t *testing.T) {
	d := newTestDlob(t)
	user := testUser()

	for _, slot := range []uint64{1, 3, 5} {
		require.NoError(t, d.InsertOrder(100, user, Order{
			Status:    common.OrderStatusOpen,
			OrderType: common.OrderTypeMarket,
			Direction: common.Short,
			OrderID:   uint32(slot),
			Slot:      slot,
		}))
	}
	for _, slot := range []uint64{2, 4, 6} {
		require.NoError(t, d.InsertOrder(100, user, Order{
			Status:          common.OrderStatusOpen,
			OrderType:       common.OrderTypeLimit,
			Direction:       common.Short,
			OrderID:         uint32(slot),
			Slot:            slot,
			AuctionDuration: 1_000_000,
		}))
	}

	asks, err := d.GetTakingAsks(0, common.Perp, 100, oracle.PriceData{})
	require.NoError(t, err)

	var gotSlots []uint32
	for n := range asks {
		gotSlots = append(gotSlots, uint32(n.Order().Slot))
	}
	// Both sources are ascending-compatible on the ask side, so the merge
	// is a genuine sorted merge (unlike the bid-side quirk above).
	assert.Equal(t, []uint32{1, 2, 3, 4, 5, 6}, gotSlots)
}

func TestRemoveOrder(t *testing.T) {
	d := newTestDlob(t)
	user := testUser()

	order := Order{
		Status:    common.OrderStatusOpen,
		OrderType: common.OrderTypeMarket,
		Direction: common.Long,
		OrderID:   7,
		Slot:      1,
	}
	require.NoError(t, d.InsertOrder(1, user, order))

	lists := d.listsFor(common.Perp)[0]
	require.Equal(t, 1, lists.market.bid.len())

	assert.True(t, d.RemoveOrder(common.Perp, 0, user, 7))
	assert.Equal(t, 0, lists.market.bid.len())

	assert.False(t, d.RemoveOrder(common.Perp, 0, user, 7))
}

func TestLoad_Idempotent(t *testing.T) {
	sub := &countingSubscriber{}
	d := NewBuilder().AccountSubscriber(sub).Build()

	require.NoError(t, d.Load())
	require.NoError(t, d.Load())
	assert.Equal(t, 1, sub.calls)
}

type countingSubscriber struct {
	calls int
}

func (s *countingSubscriber) Load() error {
	s.calls++
	return nil
}
