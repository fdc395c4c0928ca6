package aggregation

// aggregatedAddChange returns the change representing everything the
// locked node contributes to an upper that starts aggregating it: the
// item's own payload for a leaf, the cached aggregate for an aggregating
// node (the aggregate already contains the payload).
func aggregatedAddChange[I comparable, D, C any](
	ctx Context[I, D, C],
	guard NodeGuard[I, D, C],
) (C, bool) {
	n := guard.Node()
	if n.agg == nil {
		return guard.AddChange()
	}
	return ctx.DataToAddChange(&n.agg.data)
}

// aggregatedRemoveChange is the inverse of aggregatedAddChange.
func aggregatedRemoveChange[I comparable, D, C any](
	ctx Context[I, D, C],
	guard NodeGuard[I, D, C],
) (C, bool) {
	n := guard.Node()
	if n.agg == nil {
		return guard.RemoveChange()
	}
	return ctx.DataToRemoveChange(&n.agg.data)
}

// addInner attaches the locked follower to upperID: the upper starts
// aggregating it directly. Consumes the follower guard. Returns the number
// of nodes touched.
func addInner[I comparable, D, C any](
	ctx Context[I, D, C],
	q *balanceQueue[I],
	follower NodeGuard[I, D, C],
	upperID I,
	followerID I,
) int {
	n := follower.Node()
	if !n.uppers.Add(upperID) {
		// Another path already attached it; the count carries that.
		follower.Release()
		return 1
	}
	change, hasChange := aggregatedAddChange(ctx, follower)
	adverts := attachAdverts(follower, n)
	follower.Release()

	return 1 + finishAttach(ctx, q, upperID, change, hasChange, adverts)
}

// attachInnerCount is addInner for a relationship carrying an existing
// path count, as produced by follower migration.
func attachInnerCount[I comparable, D, C any](
	ctx Context[I, D, C],
	q *balanceQueue[I],
	upperID I,
	followerID I,
	count int,
) {
	follower := ctx.Node(followerID)
	n := follower.Node()
	if !n.uppers.AddCount(upperID, count) {
		follower.Release()
		return
	}
	change, hasChange := aggregatedAddChange(ctx, follower)
	adverts := attachAdverts(follower, n)
	follower.Release()

	finishAttach(ctx, q, upperID, change, hasChange, adverts)
}

// attachAdverts returns what the newly attached node was advertising
// elsewhere and must now advertise to its new upper: a leaf's graph
// children, an aggregating node's delegated followers. Everything else an
// aggregating node covers is inside its cached data.
func attachAdverts[I comparable, D, C any](guard NodeGuard[I, D, C], n *Node[I, D]) []I {
	if n.agg == nil {
		return guard.Children()
	}
	return n.agg.followers.Values()
}

func finishAttach[I comparable, D, C any](
	ctx Context[I, D, C],
	q *balanceQueue[I],
	upperID I,
	change C,
	hasChange bool,
	adverts []I,
) int {
	if hasChange {
		applyChangeToNode(ctx, upperID, change)
	}
	affected := 0
	for _, advert := range adverts {
		affected += notifyNewFollower(ctx, q, ctx.Node(upperID), upperID, advert, false)
	}
	return affected
}

// addFollower records followerID as a delegated follower of upperID and
// re-advertises it to the upper's uppers. Returns the number of nodes
// touched.
func addFollower[I comparable, D, C any](
	ctx Context[I, D, C],
	q *balanceQueue[I],
	upperID I,
	followerID I,
) int {
	upper := ctx.Node(upperID)
	n := upper.Node()
	if n.agg == nil {
		panic("aggregation: delegated follower on a leaf node")
	}
	if !n.agg.followers.Add(followerID) {
		// A concurrent operation created the entry first; merge counts.
		upper.Release()
		return 1
	}
	uppers := n.uppers.Values()
	startInProgressAll(ctx, uppers)
	upper.Release()

	affected := 1
	for _, id := range uppers {
		affected += notifyNewFollower(ctx, q, ctx.Node(id), id, followerID, true)
	}
	return affected
}
