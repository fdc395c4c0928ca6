package aggregation

import "math/bits"

// HandleNewEdge is the entry point for a new origin→target edge in the
// host graph. The caller holds the origin guard and keeps it; the returned
// operation (nil when there is nothing left to do) must be applied after
// the guard is released. numberOfChildren is the origin's child count
// including the new edge.
func HandleNewEdge[I comparable, D, C any](
	ctx Context[I, D, C],
	origin NodeGuard[I, D, C],
	originID I,
	targetID I,
	numberOfChildren int,
) PreparedOperation[I, D, C] {
	n := origin.Node()
	if n.agg == nil {
		if bits.OnesCount(uint(numberOfChildren)) == 1 &&
			(n.uppers.Len()+1)*numberOfChildren >= MaxUppersTimesChildren {
			// High fan-out from a leaf: advertising every child to every
			// upper costs more than aggregating here. Upgrade in place.
			uppers := n.uppers.Values()
			startInProgressAll(ctx, uppers)
			increase := increaseAggregationNumberImmediately(ctx, origin, originID, LeafNumber, LeafNumber)
			if increase == nil {
				panic("aggregation: leaf upgrade on a node that is not below LeafNumber")
			}
			return &preparedNewEdgeUpgraded[I, D, C]{
				uppers:   uppers,
				targetID: targetID,
				increase: increase,
			}
		}
		minNumber := n.aggregationNumber + 1
		targetNumber := n.aggregationNumber + 1 + bufferSpace
		uppers := n.uppers.Values()
		startInProgressAll(ctx, uppers)
		return &preparedNewEdgeLeaf[I, D, C]{
			minAggregationNumber:    minNumber,
			targetAggregationNumber: targetNumber,
			uppers:                  uppers,
			targetID:                targetID,
		}
	}

	notify := notifyNewFollowerNotInProgress(ctx, origin, originID, targetID)
	if notify == nil {
		return nil
	}
	return &preparedNewEdgeAggregating[I, D, C]{targetID: targetID, notify: notify}
}

// preparedNewEdgeLeaf: the origin is a transparent leaf. The target's
// aggregation number is pulled above the origin's, then the target is
// advertised to every upper that was tracking the origin's children.
type preparedNewEdgeLeaf[I comparable, D, C any] struct {
	minAggregationNumber    uint32
	targetAggregationNumber uint32
	uppers                  []I
	targetID                I
}

func (p *preparedNewEdgeLeaf[I, D, C]) Apply(ctx Context[I, D, C]) {
	q := newBalanceQueue[I]()
	increaseAggregationNumberInternal(
		ctx, q, ctx.Node(p.targetID), p.targetID,
		p.minAggregationNumber, p.targetAggregationNumber,
	)
	affected := 0
	for _, upperID := range p.uppers {
		affected += notifyNewFollower(ctx, q, ctx.Node(upperID), upperID, p.targetID, true)
		if affected > MaxAffectedNodes {
			handleExpensiveNode(ctx, q, p.targetID)
		}
	}
	process(ctx, q)
}

// preparedNewEdgeUpgraded: the origin was upgraded while the edge was
// added. The target still goes to the former uppers — the deferred
// increase re-homes it to the new aggregating origin afterwards.
type preparedNewEdgeUpgraded[I comparable, D, C any] struct {
	uppers   []I
	targetID I
	increase *preparedIncrease[I, D, C]
}

func (p *preparedNewEdgeUpgraded[I, D, C]) Apply(ctx Context[I, D, C]) {
	q := newBalanceQueue[I]()
	for _, upperID := range p.uppers {
		notifyNewFollower(ctx, q, ctx.Node(upperID), upperID, p.targetID, true)
	}
	p.increase.applyInternal(ctx, q)
	process(ctx, q)
}

// preparedNewEdgeAggregating: the origin aggregates; the target is its
// follower candidate directly.
type preparedNewEdgeAggregating[I comparable, D, C any] struct {
	targetID I
	notify   *preparedNotifyNewFollower[I, D, C]
}

func (p *preparedNewEdgeAggregating[I, D, C]) Apply(ctx Context[I, D, C]) {
	q := newBalanceQueue[I]()
	affected := p.notify.applyInternal(ctx, q)
	if affected > MaxAffectedNodes {
		handleExpensiveNode(ctx, q, p.targetID)
	}
	process(ctx, q)
}

// handleExpensiveNode restructures a node whose follower set made a single
// edge operation touch too many nodes.
func handleExpensiveNode[I comparable, D, C any](ctx Context[I, D, C], q *balanceQueue[I], nodeID I) {
	node := ctx.Node(nodeID)
	n := node.Node()
	if n.agg == nil {
		node.Release()
		return
	}
	followers := n.agg.followers.Values()
	node.Release()
	optimizeAggregationNumberForFollowers(ctx, q, nodeID, followers, true)
}
