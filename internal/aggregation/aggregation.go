// Package aggregation maintains summarized views over a large, mutable,
// concurrently modified graph of items.
//
// Every item carries an aggregation Node. An aggregating node caches a
// single piece of data that summarizes the items reachable below it, so
// asking "what is the combined state of this subtree" is cheap even when
// the subtree is large. Edge changes propagate through the structure
// incrementally; aggregation numbers bound how far a change travels before
// it is absorbed into one aggregated parent.
//
// The package is generic over the host's item reference type I, the cached
// aggregate type D, and the delta type C. Node storage and locking stay
// with the host: all access goes through the Context interface, and no
// operation ever holds two node guards at once. Mutations follow a
// prepare/apply split — the structural decision is made while one guard is
// held, the transitive work happens after it is released.
//
// Relationships between nodes come in two kinds:
//
//   - attached: an aggregating node U appears in an item F's uppers set.
//     F's contribution is folded into U's cached data, and later deltas at
//     F flow to U (and onward through U's own uppers) as changes.
//   - delegated: F appears in U's followers set. U does not aggregate F
//     itself — F's aggregation number is not below U's — so F is
//     re-advertised to U's uppers until an upper with a high enough
//     aggregation number attaches it. The root sentinel attaches anything.
//
// Both sets are counted: the same relationship may be produced by several
// paths, and only the transitions to and from zero have structural effect.
package aggregation

import "math"

const (
	// LeafNumber is the aggregation number assigned to a leaf when it is
	// upgraded to an aggregating node. Leaves always sit below it.
	LeafNumber uint32 = 16

	// RootNumber marks a node that aggregates everything reachable below
	// it, regardless of aggregation numbers.
	RootNumber uint32 = math.MaxUint32

	// MaxUppersTimesChildren is the fan-out threshold above which a leaf
	// is upgraded to an aggregating node: advertising every child to every
	// upper individually would cost more than aggregating in place.
	MaxUppersTimesChildren = 32

	// MaxAffectedNodes bounds how many nodes a single edge operation may
	// touch before the follower structure is restructured instead of
	// paying the same fan-out again on the next edge.
	MaxAffectedNodes = 4096
)

// bufferSpace is the slack added on top of a required aggregation-number
// increase so that repeated small increases on the same node are amortized
// into one. Tests shrink it to 1 to make number assignments predictable.
var bufferSpace uint32 = 2

func isRoot(aggregationNumber uint32) bool {
	return aggregationNumber == RootNumber
}

// Context is the capability interface the tree requires from its host. It
// abstracts node storage, locking, and the semantics of the aggregate type.
//
// Node must return mutually exclusive guards per id and may block until the
// node's lock is free. The change callbacks are pure with respect to the
// tree: they only read and mutate the values handed to them.
type Context[I comparable, D, C any] interface {
	// Node acquires an exclusive guard on a single node.
	Node(id I) NodeGuard[I, D, C]

	// ApplyChange merges change into data and returns the derived change
	// to propagate further upward. The second result is false when
	// propagation should stop.
	ApplyChange(data *D, change C) (C, bool)

	// DataToAddChange derives the change that makes an entire cached
	// aggregate newly visible to an upper. False means nothing to apply.
	DataToAddChange(data *D) (C, bool)

	// DataToRemoveChange is the inverse of DataToAddChange.
	DataToRemoveChange(data *D) (C, bool)

	// StartInProgress, FinishInProgress and InProgress implement the
	// cooperative fence that marks a node as the target of an ongoing
	// structural operation. While a node is marked, count-only fast paths
	// are disabled for it.
	StartInProgress(id I)
	FinishInProgress(id I)
	InProgress(id I) bool
}

// NodeGuard is an exclusive lock over one node. The pointer returned by
// Node and the snapshots returned by the other methods are only valid
// until Release.
type NodeGuard[I comparable, D, C any] interface {
	// Node returns the aggregation state of the locked item.
	Node() *Node[I, D]

	// Children returns the item's graph children.
	Children() []I

	// AddChange returns the change representing the item's own payload
	// becoming visible to an aggregate. False means the payload is empty.
	AddChange() (C, bool)

	// RemoveChange is the inverse of AddChange.
	RemoveChange() (C, bool)

	// InitialData seeds the cached aggregate when the item is promoted to
	// an aggregating node. The host must guarantee that
	// DataToAddChange(InitialData()) and AddChange() are equivalent.
	InitialData() D

	// Release unlocks the node.
	Release()
}

// PreparedOperation describes work that was decided under a node guard and
// must run after that guard is released. Apply may acquire further guards,
// one at a time, and recursively prepare more work.
type PreparedOperation[I comparable, D, C any] interface {
	Apply(ctx Context[I, D, C])
}
