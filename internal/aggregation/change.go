package aggregation

// ApplyChange merges a change that originated at the locked item into
// every aggregated view that currently includes it. For an aggregating
// item the change lands in its own cached data first and the derived
// change travels on; for a leaf it goes straight to the uppers. The guard
// stays with the caller; the returned operation is applied after release.
// Returns nil when there is nothing to propagate.
func ApplyChange[I comparable, D, C any](
	ctx Context[I, D, C],
	node NodeGuard[I, D, C],
	change C,
) PreparedOperation[I, D, C] {
	n := node.Node()
	if n.agg != nil {
		derived, ok := ctx.ApplyChange(&n.agg.data, change)
		if !ok {
			return nil
		}
		change = derived
	}
	if n.uppers.Len() == 0 {
		return nil
	}
	return &preparedChange[I, D, C]{uppers: n.uppers.Values(), change: change}
}

// preparedChange carries one change to a set of uppers.
type preparedChange[I comparable, D, C any] struct {
	uppers []I
	change C
}

func (p *preparedChange[I, D, C]) Apply(ctx Context[I, D, C]) {
	for _, id := range p.uppers {
		applyChangeToNode(ctx, id, p.change)
	}
}

// applyChangeToNode locks id, merges the change into its cached data and
// recursively propagates the derived change through its upper chain. The
// node must be aggregating: only aggregating nodes are recorded as uppers.
func applyChangeToNode[I comparable, D, C any](ctx Context[I, D, C], id I, change C) {
	node := ctx.Node(id)
	n := node.Node()
	if n.agg == nil {
		panic("aggregation: change applied to a leaf node")
	}
	derived, ok := ctx.ApplyChange(&n.agg.data, change)
	if !ok {
		node.Release()
		return
	}
	uppers := n.uppers.Values()
	node.Release()

	for _, upperID := range uppers {
		applyChangeToNode(ctx, upperID, derived)
	}
}
