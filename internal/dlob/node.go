package dlob

import (
	"github.com/gagliardetto/solana-go"
	"github.com/tidwall/btree"

	"dlob/internal/common"
	"dlob/internal/oracle"
)

// NodeType names which of the five buckets a Node lives in.
type NodeType int

const (
	NodeTypeTakingLimit NodeType = iota
	NodeTypeRestingLimit
	NodeTypeFloatingLimit
	NodeTypeMarket
	NodeTypeTrigger
)

// Node is the capability set every bucket entry exposes, matching the
// DlobNode trait of the Rust original one-for-one (spec.md §9).
type Node interface {
	GetPrice(oraclePrice oracle.PriceData, slot uint64, tickSize int64) int64
	IsVammNode() bool
	Order() Order
	User() solana.PublicKey
	GetSortValue() int64
	GetSortDirection() common.SortDirection
	NodeType() NodeType
}

// sequenced lets bucket comparators break ties deterministically even when
// sort value, order id, and user all collide, which a Vec-backed original
// never needed but a unique-keyed btree does.
type sequenced interface {
	seqNum() uint64
}

type nodeBase struct {
	user  solana.PublicKey
	order Order
	seq   uint64
}

func (n nodeBase) IsVammNode() bool       { return false }
func (n nodeBase) Order() Order           { return n.order }
func (n nodeBase) User() solana.PublicKey { return n.user }
func (n nodeBase) seqNum() uint64         { return n.seq }

func (n nodeBase) getPrice(oraclePrice oracle.PriceData, slot uint64, tickSize int64) int64 {
	return n.order.LimitPrice(oraclePrice, slot, tickSize)
}

// takingLimitNode: an immature limit order, sorted by creation slot.
type takingLimitNode struct {
	nodeBase
	sortDirection common.SortDirection
}

func (n takingLimitNode) GetPrice(op oracle.PriceData, slot uint64, tick int64) int64 {
	return n.getPrice(op, slot, tick)
}
func (n takingLimitNode) GetSortValue() int64                      { return int64(n.order.Slot) }
func (n takingLimitNode) GetSortDirection() common.SortDirection { return n.sortDirection }
func (n takingLimitNode) NodeType() NodeType                     { return NodeTypeTakingLimit }

// restingLimitNode: a mature limit order, sorted by price.
type restingLimitNode struct {
	nodeBase
	sortDirection common.SortDirection
}

func (n restingLimitNode) GetPrice(op oracle.PriceData, slot uint64, tick int64) int64 {
	return n.getPrice(op, slot, tick)
}
func (n restingLimitNode) GetSortValue() int64                      { return n.order.Price }
func (n restingLimitNode) GetSortDirection() common.SortDirection { return n.sortDirection }
func (n restingLimitNode) NodeType() NodeType                     { return NodeTypeRestingLimit }

// floatingLimitNode: a limit order tracking the oracle by a signed offset.
type floatingLimitNode struct {
	nodeBase
	sortDirection common.SortDirection
}

func (n floatingLimitNode) GetPrice(op oracle.PriceData, slot uint64, tick int64) int64 {
	return n.getPrice(op, slot, tick)
}
func (n floatingLimitNode) GetSortValue() int64 { return n.order.OraclePriceOffset }
func (n floatingLimitNode) GetSortDirection() common.SortDirection {
	return n.sortDirection
}
func (n floatingLimitNode) NodeType() NodeType { return NodeTypeFloatingLimit }

// marketNode: a market/oracle/trigger-market order. Always ascending on
// both sides — earliest-arriving takers are serviced first.
type marketNode struct {
	nodeBase
}

func (n marketNode) GetPrice(op oracle.PriceData, slot uint64, tick int64) int64 {
	return n.getPrice(op, slot, tick)
}
func (n marketNode) GetSortValue() int64                      { return int64(n.order.Slot) }
func (n marketNode) GetSortDirection() common.SortDirection { return common.Ascending }
func (n marketNode) NodeType() NodeType                     { return NodeTypeMarket }

// triggerNode: an inactive contingent order, sorted by trigger price.
type triggerNode struct {
	nodeBase
	sortDirection common.SortDirection
}

func (n triggerNode) GetPrice(op oracle.PriceData, slot uint64, tick int64) int64 {
	return n.getPrice(op, slot, tick)
}
func (n triggerNode) GetSortValue() int64                      { return n.order.TriggerPrice }
func (n triggerNode) GetSortDirection() common.SortDirection { return n.sortDirection }
func (n triggerNode) NodeType() NodeType                     { return NodeTypeTrigger }

// bucket is an ordered sequence of nodes sharing a sort key and direction
// (spec.md §3). It is backed by a tidwall/btree.BTreeG so insertion is an
// O(log n) binary search rather than a hand-rolled slice splice, the way
// the teacher's PriceLevels = btree.BTreeG[*PriceLevel] orders price
// levels. Ties on sort value are broken by order id, then user, then
// insertion sequence, so two distinct nodes never collide as the same key.
type bucket struct {
	tree *btree.BTreeG[Node]
}

func newBucket(direction common.SortDirection) *bucket {
	less := func(a, b Node) bool {
		av, bv := a.GetSortValue(), b.GetSortValue()
		if av != bv {
			if direction == common.Descending {
				return av > bv
			}
			return av < bv
		}

		ao, bo := a.Order().OrderID, b.Order().OrderID
		if ao != bo {
			return ao < bo
		}

		au, bu := a.User(), b.User()
		if !au.Equals(bu) {
			return au.String() < bu.String()
		}

		return a.(sequenced).seqNum() < b.(sequenced).seqNum()
	}
	return &bucket{tree: btree.NewBTreeG(less)}
}

func (b *bucket) insert(n Node) {
	b.tree.Set(n)
}

func (b *bucket) remove(n Node) {
	b.tree.Delete(n)
}

func (b *bucket) len() int {
	return b.tree.Len()
}

// items returns every node in the bucket's best-first order.
func (b *bucket) items() []Node {
	out := make([]Node, 0, b.tree.Len())
	b.tree.Scan(func(n Node) bool {
		out = append(out, n)
		return true
	})
	return out
}
