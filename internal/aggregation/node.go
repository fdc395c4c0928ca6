package aggregation

import "github.com/anupdhamala/taskfold/internal/countset"

// Node is the aggregation state attached to one item. The zero value is a
// leaf with aggregation number zero and no uppers.
//
// A node starts as a leaf and is promoted to an aggregating node when its
// aggregation number crosses LeafNumber; it never reverts. The node is
// mutated in place and must only be touched while the owning guard is held.
type Node[I comparable, D any] struct {
	aggregationNumber uint32
	uppers            countset.CountSet[I]
	// agg is nil while the node is a leaf.
	agg *aggregatingState[I, D]
}

type aggregatingState[I comparable, D any] struct {
	followers countset.CountSet[I]
	data      D
}

// AggregationNumber returns the node's current aggregation number. It is
// non-decreasing over the node's lifetime.
func (n *Node[I, D]) AggregationNumber() uint32 {
	return n.aggregationNumber
}

// IsAggregating reports whether the node has been promoted.
func (n *Node[I, D]) IsAggregating() bool {
	return n.agg != nil
}

// Uppers returns the counted set of aggregating nodes that have this node
// attached.
func (n *Node[I, D]) Uppers() *countset.CountSet[I] {
	return &n.uppers
}

// Followers returns the counted set of delegated followers, or nil while
// the node is a leaf.
func (n *Node[I, D]) Followers() *countset.CountSet[I] {
	if n.agg == nil {
		return nil
	}
	return &n.agg.followers
}

// Data returns the cached aggregate. It panics on a leaf.
func (n *Node[I, D]) Data() *D {
	if n.agg == nil {
		panic("aggregation: Data called on a leaf node")
	}
	return &n.agg.data
}

// promote turns a leaf into an aggregating node, keeping its uppers.
func (n *Node[I, D]) promote(data D) {
	if n.agg != nil {
		panic("aggregation: promote called on an aggregating node")
	}
	n.agg = &aggregatingState[I, D]{
		followers: countset.New[I](),
		data:      data,
	}
}
