package aggregation

// optimizeAggregationNumberForFollowers raises a node's aggregation number
// past its delegated followers so they attach here instead of fanning out
// through the upper chain on every future edge. The hub pays one
// restructuring instead of a linear notification cost per change.
func optimizeAggregationNumberForFollowers[I comparable, D, C any](
	ctx Context[I, D, C],
	q *balanceQueue[I],
	nodeID I,
	followers []I,
	force bool,
) {
	optimizeRuns.Add(1)

	var maxFollower uint32
	for _, id := range followers {
		follower := ctx.Node(id)
		if n := follower.Node().aggregationNumber; n > maxFollower {
			maxFollower = n
		}
		follower.Release()
	}
	if maxFollower >= RootNumber-bufferSpace-1 {
		// Root-numbered followers can never be absorbed by a number bump.
		return
	}
	target := maxFollower + 1 + bufferSpace

	node := ctx.Node(nodeID)
	current := node.Node().aggregationNumber
	if current >= target || (!force && current >= maxFollower+1) {
		node.Release()
		return
	}
	increaseAggregationNumberInternal(ctx, q, node, nodeID, maxFollower+1, target)
}
