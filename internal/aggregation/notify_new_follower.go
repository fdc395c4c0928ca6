package aggregation

// notifyNewFollower tells the locked upper that followerID is now
// reachable through it. Consumes the upper guard. Returns the number of
// nodes the notification touched, which callers compare against
// MaxAffectedNodes.
//
// clearInProgress marks that the caller fenced upperID with
// StartInProgress and this notification must clear the mark once its
// structural effect is settled.
func notifyNewFollower[I comparable, D, C any](
	ctx Context[I, D, C],
	q *balanceQueue[I],
	upper NodeGuard[I, D, C],
	upperID I,
	followerID I,
	clearInProgress bool,
) int {
	p := prepareNotifyNewFollower(ctx, upper, upperID, followerID, clearInProgress)
	if p == nil {
		if clearInProgress {
			ctx.FinishInProgress(upperID)
		}
		return 0
	}
	return p.applyInternal(ctx, q)
}

// prepareNotifyNewFollower consumes the upper guard. A nil result means
// the follower was already advertised here and only its path count grew.
func prepareNotifyNewFollower[I comparable, D, C any](
	ctx Context[I, D, C],
	upper NodeGuard[I, D, C],
	upperID I,
	followerID I,
	clearInProgress bool,
) *preparedNotifyNewFollower[I, D, C] {
	n := upper.Node()
	if n.agg == nil {
		panic("aggregation: new follower notified on a leaf node")
	}
	if n.agg.followers.AddIfEntry(followerID) {
		upper.Release()
		return nil
	}
	upperNumber := n.aggregationNumber
	upper.Release()
	return &preparedNotifyNewFollower[I, D, C]{
		upperNumber:     upperNumber,
		upperID:         upperID,
		followerID:      followerID,
		clearInProgress: clearInProgress,
	}
}

// notifyNewFollowerNotInProgress is the entry used when the upper itself
// originated the edge. The count-only fast path is allowed only while no
// structural operation is fencing the upper.
func notifyNewFollowerNotInProgress[I comparable, D, C any](
	ctx Context[I, D, C],
	upper NodeGuard[I, D, C],
	upperID I,
	followerID I,
) *preparedNotifyNewFollower[I, D, C] {
	n := upper.Node()
	if n.agg == nil {
		panic("aggregation: new follower notified on a leaf node")
	}
	if !ctx.InProgress(upperID) && n.agg.followers.AddIfEntry(followerID) {
		return nil
	}
	upperNumber := n.aggregationNumber
	return &preparedNotifyNewFollower[I, D, C]{
		upperNumber: upperNumber,
		upperID:     upperID,
		followerID:  followerID,
	}
}

type preparedNotifyNewFollower[I comparable, D, C any] struct {
	upperNumber     uint32
	upperID         I
	followerID      I
	clearInProgress bool
}

func (p *preparedNotifyNewFollower[I, D, C]) applyInternal(ctx Context[I, D, C], q *balanceQueue[I]) int {
	if p.clearInProgress {
		defer ctx.FinishInProgress(p.upperID)
	}

	follower := ctx.Node(p.followerID)
	n := follower.Node()
	if isRoot(p.upperNumber) || n.aggregationNumber < p.upperNumber {
		// The upper's aggregation number is high enough to absorb the
		// follower directly.
		return addInner(ctx, q, follower, p.upperID, p.followerID)
	}
	if n.uppers.AddIfEntry(p.upperID) {
		// Already attached; this advertisement is just another path.
		follower.Release()
		return 1
	}
	follower.Release()

	// Too big to absorb here: keep it delegated and pass it upward until
	// an upper with a larger aggregation number takes it.
	return addFollower(ctx, q, p.upperID, p.followerID)
}
