package dlob

import (
	"fmt"
	"iter"

	"dlob/internal/common"
	"dlob/internal/oracle"
)

// seq exposes a bucket's best-first order as a lazy iter.Seq, backed
// directly by the underlying btree scan rather than a pre-copied slice.
func (b *bucket) seq() iter.Seq[Node] {
	return func(yield func(Node) bool) {
		b.tree.Scan(func(n Node) bool {
			return yield(n)
		})
	}
}

// mergeBy lazily merges two already-ordered node sequences the way the
// original's itertools merge_by does: at each step, take from a if
// isFirst(headA, headB), else from b; once one side is exhausted, drain the
// other in its own order. It does not re-derive a global order — if a's
// source is not monotonic under isFirst, neither is the tail of the output,
// reproducing the original's observed (and only partly sorted) behavior on
// the bid side. See DESIGN.md's Open Question on TakingLimit bid direction.
func mergeBy(a, b iter.Seq[Node], isFirst func(a, n Node) bool) iter.Seq[Node] {
	return func(yield func(Node) bool) {
		nextA, stopA := iter.Pull(a)
		defer stopA()
		nextB, stopB := iter.Pull(b)
		defer stopB()

		va, oka := nextA()
		vb, okb := nextB()
		for oka && okb {
			if isFirst(va, vb) {
				if !yield(va) {
					return
				}
				va, oka = nextA()
			} else {
				if !yield(vb) {
					return
				}
				vb, okb = nextB()
			}
		}
		for oka {
			if !yield(va) {
				return
			}
			va, oka = nextA()
		}
		for okb {
			if !yield(vb) {
				return
			}
			vb, okb = nextB()
		}
	}
}

func (d *Dlob) lists(marketType common.MarketType, marketIndex uint16) (*marketNodeLists, error) {
	lists, ok := d.listsFor(marketType)[marketIndex]
	if !ok {
		return nil, fmt.Errorf("%w: %s market %d", ErrUnknownMarket, marketType, marketIndex)
	}
	return lists, nil
}

// GetTakingBids produces the merged bid-side taking sequence (spec.md
// §4.4): the maturity transition runs first, then market.bid is merged
// with taking_limit.bid using the original's ">" comparator.
func (d *Dlob) GetTakingBids(marketIndex uint16, marketType common.MarketType, slot uint64, _ oracle.PriceData) (iter.Seq[Node], error) {
	d.updateRestingLimitOrders(slot)

	lists, err := d.lists(marketType, marketIndex)
	if err != nil {
		return nil, err
	}

	isFirst := func(a, b Node) bool { return a.GetSortValue() > b.GetSortValue() }
	return mergeBy(lists.market.bid.seq(), lists.takingLimit.bid.seq(), isFirst), nil
}

// GetTakingAsks is GetTakingBids' ask-side mirror. market.ask and
// taking_limit.ask are both stored ascending, so unlike the bid side this
// merge is a genuine sorted merge.
func (d *Dlob) GetTakingAsks(marketIndex uint16, marketType common.MarketType, slot uint64, _ oracle.PriceData) (iter.Seq[Node], error) {
	d.updateRestingLimitOrders(slot)

	lists, err := d.lists(marketType, marketIndex)
	if err != nil {
		return nil, err
	}

	isFirst := func(a, b Node) bool { return a.GetSortValue() < b.GetSortValue() }
	return mergeBy(lists.market.ask.seq(), lists.takingLimit.ask.seq(), isFirst), nil
}

// GetRestingBids runs the maturity transition, then returns resting_limit.bid
// directly; there is no counterpart bucket to merge it with.
func (d *Dlob) GetRestingBids(marketIndex uint16, marketType common.MarketType, slot uint64, _ oracle.PriceData) (iter.Seq[Node], error) {
	d.updateRestingLimitOrders(slot)

	lists, err := d.lists(marketType, marketIndex)
	if err != nil {
		return nil, err
	}
	return lists.restingLimit.bid.seq(), nil
}

// GetRestingAsks is GetRestingBids' ask-side mirror.
func (d *Dlob) GetRestingAsks(marketIndex uint16, marketType common.MarketType, slot uint64, _ oracle.PriceData) (iter.Seq[Node], error) {
	d.updateRestingLimitOrders(slot)

	lists, err := d.lists(marketType, marketIndex)
	if err != nil {
		return nil, err
	}
	return lists.restingLimit.ask.seq(), nil
}
