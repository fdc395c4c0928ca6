package aggregation

// InfoGuard gives read access to a node's aggregated data while holding
// the node's lock. Release it promptly.
type InfoGuard[I comparable, D, C any] struct {
	guard NodeGuard[I, D, C]
}

// Data returns the aggregated data. Valid until Release.
func (g *InfoGuard[I, D, C]) Data() *D {
	return g.guard.Node().Data()
}

// Release unlocks the underlying node.
func (g *InfoGuard[I, D, C]) Release() {
	g.guard.Release()
}

// AggregationInfo returns the aggregated data for everything reachable
// below id. The first call for a node raises it to the root aggregation
// number, which attaches the whole subtree; later calls only take the
// node's lock.
func AggregationInfo[I comparable, D, C any](ctx Context[I, D, C], id I) *InfoGuard[I, D, C] {
	for {
		node := ctx.Node(id)
		n := node.Node()
		if isRoot(n.aggregationNumber) && n.agg != nil {
			return &InfoGuard[I, D, C]{guard: node}
		}

		q := newBalanceQueue[I]()
		p := performIncrease(ctx, node, id, RootNumber, RootNumber)
		node.Release()
		if p != nil {
			p.applyInternal(ctx, q)
		}
		process(ctx, q)
	}
}
