package aggregation

// increaseAggregationNumberInternal raises id's aggregation number to at
// least min, ideally target, through the balance queue. The guard is
// released before anything is enqueued; the actual increase happens when
// the queue is drained, so mid-operation number comparisons never observe
// a half-applied rebalance. Consumes the guard.
func increaseAggregationNumberInternal[I comparable, D, C any](
	ctx Context[I, D, C],
	q *balanceQueue[I],
	node NodeGuard[I, D, C],
	nodeID I,
	min, target uint32,
) {
	if node.Node().aggregationNumber >= min {
		node.Release()
		return
	}
	node.Release()
	q.enqueue(nodeID, min, target)
}

// increaseAggregationNumberImmediately raises the locked node's number
// right away and returns the follow-up work. It is used where later steps
// of the same operation depend on the new number, such as the leaf upgrade
// in HandleNewEdge. The guard stays with the caller; the returned
// operation must be applied only after the guard is released. Returns nil
// when the node already satisfies min.
func increaseAggregationNumberImmediately[I comparable, D, C any](
	ctx Context[I, D, C],
	node NodeGuard[I, D, C],
	nodeID I,
	min, target uint32,
) *preparedIncrease[I, D, C] {
	return performIncrease(ctx, node, nodeID, min, target)
}

// preparedIncrease is the deferred half of an aggregation-number increase:
// re-homing a promoted leaf's children, absorbing delegated followers that
// now sit below the new number, and keeping uppers above it.
type preparedIncrease[I comparable, D, C any] struct {
	nodeID    I
	newNumber uint32
	promoted  bool
	// children is only set on promotion: the former leaf's graph children,
	// which its uppers had been tracking on its behalf.
	children  []I
	uppers    []I
	followers []I
}

// performIncrease mutates the locked node and returns the follow-up work,
// or nil if the number already satisfies min. The caller releases the
// guard before applying the result.
func performIncrease[I comparable, D, C any](
	ctx Context[I, D, C],
	node NodeGuard[I, D, C],
	nodeID I,
	min, target uint32,
) *preparedIncrease[I, D, C] {
	n := node.Node()
	if n.aggregationNumber >= min {
		return nil
	}
	if target < min {
		target = min
	}

	if n.agg == nil && target < LeafNumber {
		// Still a leaf, just a bigger number.
		n.aggregationNumber = target
		return &preparedIncrease[I, D, C]{
			nodeID:    nodeID,
			newNumber: target,
			uppers:    n.uppers.Values(),
		}
	}

	if n.agg == nil {
		// Leaf upgrade. The node starts aggregating in place; its children
		// were advertised to its uppers while it was transparent and must
		// be re-homed here.
		children := node.Children()
		uppers := n.uppers.Values()
		n.aggregationNumber = target
		n.promote(node.InitialData())
		leafUpgrades.Add(1)
		return &preparedIncrease[I, D, C]{
			nodeID:    nodeID,
			newNumber: target,
			promoted:  true,
			children:  children,
			uppers:    uppers,
		}
	}

	n.aggregationNumber = target
	return &preparedIncrease[I, D, C]{
		nodeID:    nodeID,
		newNumber: target,
		uppers:    n.uppers.Values(),
		followers: n.agg.followers.Values(),
	}
}

func (p *preparedIncrease[I, D, C]) applyInternal(ctx Context[I, D, C], q *balanceQueue[I]) {
	if p.promoted {
		// Track the children here from now on, then retract the
		// advertisements the uppers received while this node was a leaf.
		// The transient overlap between the two passes is resolved by the
		// counted sets.
		for _, child := range p.children {
			notifyNewFollower(ctx, q, ctx.Node(p.nodeID), p.nodeID, child, false)
		}
		for _, upperID := range p.uppers {
			for _, child := range p.children {
				NotifyLostFollower(ctx, ctx.Node(upperID), upperID, child)
			}
		}
	}

	// Delegated followers that now sit below the new number belong here.
	for _, followerID := range p.followers {
		migrateFollower(ctx, q, p.nodeID, p.newNumber, followerID)
	}

	// Uppers must stay above this node. A root-raised node is exempt:
	// nothing sits above RootNumber.
	if !isRoot(p.newNumber) {
		for _, upperID := range p.uppers {
			increaseAggregationNumberInternal(
				ctx, q, ctx.Node(upperID), upperID,
				p.newNumber+1, p.newNumber+1+bufferSpace,
			)
		}
	}
}

// migrateFollower converts a delegated follower into an attached one after
// the upper's aggregation number grew past it. The delegation had been
// advertised to the upper's uppers once; that advertisement is retracted
// so the follower is not represented twice above.
func migrateFollower[I comparable, D, C any](
	ctx Context[I, D, C],
	q *balanceQueue[I],
	upperID I,
	upperNumber uint32,
	followerID I,
) {
	follower := ctx.Node(followerID)
	if follower.Node().aggregationNumber >= upperNumber && !isRoot(upperNumber) {
		follower.Release()
		return
	}
	follower.Release()

	upper := ctx.Node(upperID)
	un := upper.Node()
	if un.agg == nil {
		upper.Release()
		return
	}
	count := un.agg.followers.RemoveEntry(followerID)
	retractFrom := un.uppers.Values()
	upper.Release()
	if count == 0 {
		// Raced with a removal; nothing to migrate.
		return
	}

	attachInnerCount(ctx, q, upperID, followerID, count)

	for _, id := range retractFrom {
		NotifyLostFollower(ctx, ctx.Node(id), id, followerID)
	}
}
