package aggregation

// HandleLostEdge is the entry point for a removed origin→target edge. The
// caller holds the origin guard and keeps it; the returned operation (nil
// when nothing is left to do) must be applied after the guard is released.
func HandleLostEdge[I comparable, D, C any](
	ctx Context[I, D, C],
	origin NodeGuard[I, D, C],
	originID I,
	targetID I,
) PreparedOperation[I, D, C] {
	n := origin.Node()
	if n.agg == nil {
		// The leaf's uppers received the advertisement for this child;
		// they take the retraction.
		if n.uppers.Len() == 0 {
			return nil
		}
		return &preparedLostEdgeLeaf[I, D, C]{
			uppers:   n.uppers.Values(),
			targetID: targetID,
		}
	}
	lost := prepareNotifyLostFollower[I, D, C](n, originID, targetID)
	if lost == nil {
		return nil
	}
	return &preparedLostEdgeAggregating[I, D, C]{lost: lost}
}

type preparedLostEdgeLeaf[I comparable, D, C any] struct {
	uppers   []I
	targetID I
}

func (p *preparedLostEdgeLeaf[I, D, C]) Apply(ctx Context[I, D, C]) {
	for _, upperID := range p.uppers {
		NotifyLostFollower(ctx, ctx.Node(upperID), upperID, p.targetID)
	}
}

type preparedLostEdgeAggregating[I comparable, D, C any] struct {
	lost *preparedNotifyLostFollower[I, D, C]
}

func (p *preparedLostEdgeAggregating[I, D, C]) Apply(ctx Context[I, D, C]) {
	p.lost.apply(ctx)
}
