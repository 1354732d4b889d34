package dlob

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog/log"

	"dlob/internal/common"
)

// AccountSubscriber is the external collaborator that produces the initial
// set of user accounts and orders. Decoding binary account layouts and
// acquiring them over the wire are both out of scope here (spec.md §1);
// the DLOB only calls Load.
type AccountSubscriber interface {
	Load() error
}

// Dlob is the in-memory, client-side mirror of every live order across a
// set of perp and spot markets (spec.md §1/§2). Insertion, removal and the
// maturity transition are its only mutators.
type Dlob struct {
	accountSubscriber AccountSubscriber

	dlobInit bool
	perp     map[uint16]*marketNodeLists
	spot     map[uint16]*marketNodeLists

	maxRestingSlot uint64
	nextSeq        uint64
}

// Builder assembles a Dlob. The account subscriber is the only required
// dependency (spec.md §6).
type Builder struct {
	accountSubscriber AccountSubscriber
}

// NewBuilder starts a Dlob builder, mirroring Dlob::builder() in the Rust
// original.
func NewBuilder() *Builder {
	return &Builder{}
}

func (b *Builder) AccountSubscriber(s AccountSubscriber) *Builder {
	b.accountSubscriber = s
	return b
}

// Build panics if no account subscriber was configured, matching the
// original's panic!("drift_client_account_subscriber must be set").
func (b *Builder) Build() *Dlob {
	if b.accountSubscriber == nil {
		panic("dlob: account subscriber must be set")
	}

	return &Dlob{
		accountSubscriber: b.accountSubscriber,
		perp:              make(map[uint16]*marketNodeLists),
		spot:              make(map[uint16]*marketNodeLists),
	}
}

// Load calls the account subscriber's Load exactly once per invocation and
// marks the book initialized. A second call is a no-op once dlobInit is
// true (spec.md §6).
func (d *Dlob) Load() error {
	if d.dlobInit {
		return nil
	}

	if err := d.accountSubscriber.Load(); err != nil {
		return fmt.Errorf("%w: %w", ErrSubscriberLoad, err)
	}

	d.dlobInit = true
	log.Info().Msg("dlob initialized")
	return nil
}

func (d *Dlob) listsFor(marketType common.MarketType) map[uint16]*marketNodeLists {
	if marketType == common.Spot {
		return d.spot
	}
	return d.perp
}

func (d *Dlob) ensureMarketIndexInList(marketType common.MarketType, marketIndex uint16) *marketNodeLists {
	lists := d.listsFor(marketType)
	if lists[marketIndex] == nil {
		lists[marketIndex] = newMarketNodeLists()
	}
	return lists[marketIndex]
}

// InsertOrder routes order into exactly one bucket and inserts it at its
// sorted position (spec.md §4.1). It is a no-op for orders whose status is
// not Open (Init, Filled, Canceled) and for order types outside the admitted
// set; both return nil.
func (d *Dlob) InsertOrder(slot uint64, user solana.PublicKey, order Order) error {
	if !d.dlobInit {
		panic("dlob: insert_order called before load()")
	}

	if order.Status != common.OrderStatusOpen {
		return nil
	}

	switch order.OrderType {
	case common.OrderTypeLimit, common.OrderTypeMarket, common.OrderTypeTriggerLimit,
		common.OrderTypeTriggerMarket, common.OrderTypeOracle:
	default:
		return nil
	}

	lists := d.ensureMarketIndexInList(order.MarketType, order.MarketIndex)

	isInactiveTrigger := false
	switch order.OrderType {
	case common.OrderTypeTriggerLimit, common.OrderTypeTriggerMarket:
		isInactiveTrigger = !order.Triggered()
	}

	d.nextSeq++
	seq := d.nextSeq
	base := nodeBase{user: user, order: order, seq: seq}

	switch {
	case isInactiveTrigger:
		d.insertTrigger(lists, base)
	case order.OrderType == common.OrderTypeMarket ||
		order.OrderType == common.OrderTypeTriggerMarket ||
		order.OrderType == common.OrderTypeOracle:
		insertSide(lists.market, order.Direction, marketNode{nodeBase: base})
	case order.OraclePriceOffset != 0:
		insertSide(lists.floatingLimit, order.Direction, floatingLimitNode{
			nodeBase:      base,
			sortDirection: directionFor(order.Direction),
		})
	case order.IsRestingLimitOrder(slot):
		insertSide(lists.restingLimit, order.Direction, restingLimitNode{
			nodeBase:      base,
			sortDirection: directionFor(order.Direction),
		})
	default:
		insertSide(lists.takingLimit, order.Direction, takingLimitNode{
			nodeBase:      base,
			sortDirection: directionFor(order.Direction),
		})
	}

	return nil
}

// insertTrigger routes an inactive trigger order to the above/below bucket.
// A non-pending trigger_condition reaching here is a contract violation
// (spec.md §4.5) and aborts the process, matching the original's panic!.
func (d *Dlob) insertTrigger(lists *marketNodeLists, base nodeBase) {
	switch base.order.TriggerCondition {
	case common.TriggerConditionAbove:
		lists.trigger.above.insert(triggerNode{nodeBase: base, sortDirection: common.Ascending})
	case common.TriggerConditionBelow:
		lists.trigger.below.insert(triggerNode{nodeBase: base, sortDirection: common.Descending})
	default:
		panic(fmt.Sprintf("dlob: invalid inactive trigger condition %v", base.order.TriggerCondition))
	}
}

// directionFor is bid-side Descending, ask-side Ascending — the shared
// shape of the taking-limit/resting-limit/floating-limit buckets.
func directionFor(direction common.PositionDirection) common.SortDirection {
	if direction == common.Short {
		return common.Ascending
	}
	return common.Descending
}

func insertSide(list *normalNodeList, direction common.PositionDirection, n Node) {
	if direction == common.Short {
		list.ask.insert(n)
		return
	}
	list.bid.insert(n)
}

func removeSide(list *normalNodeList, direction common.PositionDirection, n Node) {
	if direction == common.Short {
		list.ask.remove(n)
		return
	}
	list.bid.remove(n)
}

// RemoveOrder is the inverse of InsertOrder, modeled as spec.md §9 prescribes
// for the removal API left outside the tested core: it locates the node by
// (market, user, orderID) across whichever bucket it currently lives in and
// deletes it. Returns false if no matching node was found.
func (d *Dlob) RemoveOrder(marketType common.MarketType, marketIndex uint16, user solana.PublicKey, orderID uint32) bool {
	lists, ok := d.listsFor(marketType)[marketIndex]
	if !ok {
		return false
	}

	buckets := []*bucket{
		lists.restingLimit.bid, lists.restingLimit.ask,
		lists.floatingLimit.bid, lists.floatingLimit.ask,
		lists.takingLimit.bid, lists.takingLimit.ask,
		lists.market.bid, lists.market.ask,
		lists.trigger.above, lists.trigger.below,
	}

	for _, b := range buckets {
		for _, n := range b.items() {
			if n.Order().OrderID == orderID && n.User().Equals(user) {
				b.remove(n)
				return true
			}
		}
	}
	return false
}

// updateRestingLimitOrders promotes every taking-limit node whose auction
// window has elapsed at slot into the resting-limit bucket of the same
// side, for every market (spec.md §4.3). It runs before every taking-side
// query and is idempotent for repeated calls at or below the same slot.
func (d *Dlob) updateRestingLimitOrders(slot uint64) {
	if slot <= d.maxRestingSlot {
		return
	}
	d.maxRestingSlot = slot

	for _, lists := range d.perp {
		promoteMatured(lists, slot)
	}
	for _, lists := range d.spot {
		promoteMatured(lists, slot)
	}
}

// promoteMatured performs the two-phase move spec.md §9 prescribes: collect
// the matured nodes from the taking bucket first, then insert each into the
// resting bucket, avoiding any aliasing between the two passes.
func promoteMatured(lists *marketNodeLists, slot uint64) {
	promoteSide(lists.takingLimit.bid, lists.restingLimit.bid, slot)
	promoteSide(lists.takingLimit.ask, lists.restingLimit.ask, slot)
}

func promoteSide(taking, resting *bucket, slot uint64) {
	var matured []Node
	for _, n := range taking.items() {
		if n.Order().IsRestingLimitOrder(slot) {
			matured = append(matured, n)
		}
	}

	for _, n := range matured {
		taking.remove(n)

		order := n.Order()
		promoted := restingLimitNode{
			nodeBase:      nodeBase{user: n.User(), order: order, seq: n.(sequenced).seqNum()},
			sortDirection: directionFor(order.Direction),
		}
		resting.insert(promoted)
	}
}
