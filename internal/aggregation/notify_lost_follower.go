package aggregation

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/anupdhamala/taskfold/internal/countset"
)

// NotifyLostFollower tells the locked upper that one path to followerID no
// longer exists. Consumes the upper guard.
//
// Edges are not applied atomically across both endpoints, so the two sides
// may disagree for a moment: the follower may be recorded as delegated on
// the upper, attached on the follower, or — mid-insertion — on neither.
// The protocol removes whichever record exists, and when it finds none it
// yields the thread and retries until one side converges. Exhausting the
// retry bound means the graph is malformed; continuing would hand callers
// silently wrong aggregates, so it panics with diagnostics instead.
func NotifyLostFollower[I comparable, D, C any](
	ctx Context[I, D, C],
	upper NodeGuard[I, D, C],
	upperID I,
	followerID I,
) {
	p := prepareNotifyLostFollower[I, D, C](upper.Node(), upperID, followerID)
	upper.Release()
	if p != nil {
		p.apply(ctx)
	}
}

// prepareNotifyLostFollower inspects the upper's followers under the
// caller's lock. A nil result means a path count was decremented and the
// relationship still holds through other paths.
func prepareNotifyLostFollower[I comparable, D, C any](
	n *Node[I, D],
	upperID I,
	followerID I,
) *preparedNotifyLostFollower[I, D, C] {
	if n.agg == nil {
		panic("aggregation: lost follower notified on a leaf node")
	}
	switch n.agg.followers.RemoveIfEntry(followerID) {
	case countset.PartiallyRemoved:
		return nil
	case countset.Removed:
		return &preparedNotifyLostFollower[I, D, C]{
			removed:    true,
			uppers:     n.uppers.Values(),
			followerID: followerID,
		}
	default:
		return &preparedNotifyLostFollower[I, D, C]{
			upperID:    upperID,
			followerID: followerID,
		}
	}
}

type preparedNotifyLostFollower[I comparable, D, C any] struct {
	// removed: the delegated entry is fully gone and its upward
	// advertisements must be retracted. Otherwise the follower was not
	// delegated here and the attached direction is tried instead.
	removed    bool
	uppers     []I
	upperID    I
	followerID I
}

func (p *preparedNotifyLostFollower[I, D, C]) apply(ctx Context[I, D, C]) {
	if p.removed {
		for _, id := range p.uppers {
			NotifyLostFollower(ctx, ctx.Node(id), id, p.followerID)
		}
		return
	}
	p.reconcile(ctx)
}

// reconcile handles the ambiguous case: the upper had no delegated entry
// for the follower, so the relationship — if it exists at all — is an
// attachment recorded on the follower's side.
func (p *preparedNotifyLostFollower[I, D, C]) reconcile(ctx Context[I, D, C]) {
	limit := int(lostFollowerRetryLimit.Load())
	tryCount := 0
	for {
		tryCount++
		follower := ctx.Node(p.followerID)
		switch follower.Node().uppers.RemoveIfEntry(p.upperID) {
		case countset.PartiallyRemoved:
			follower.Release()
			return

		case countset.Removed:
			p.detach(ctx, follower)
			return

		case countset.NotPresent:
			if tryCount > limit {
				p.reportMalformed(ctx, follower)
			}
			follower.Release()

			// The attached record may have landed on the upper's side
			// meanwhile; look there again before yielding.
			upper := ctx.Node(p.upperID)
			un := upper.Node()
			if un.agg == nil {
				panic("aggregation: lost follower reconciliation reached a leaf upper")
			}
			switch un.agg.followers.RemoveIfEntry(p.followerID) {
			case countset.PartiallyRemoved:
				upper.Release()
				return
			case countset.Removed:
				uppers := un.uppers.Values()
				upper.Release()
				for _, id := range uppers {
					NotifyLostFollower(ctx, ctx.Node(id), id, p.followerID)
				}
				return
			case countset.NotPresent:
				upper.Release()
				lostFollowerRetries.Add(1)
				runtime.Gosched()
			}
		}
	}
}

// detach undoes a full attachment: the follower's contribution leaves the
// upper's cached data and everything the follower was advertising to the
// upper is retracted. The follower guard is consumed.
func (p *preparedNotifyLostFollower[I, D, C]) detach(ctx Context[I, D, C], follower NodeGuard[I, D, C]) {
	removeChange, hasRemove := aggregatedRemoveChange(ctx, follower)
	adverts := attachAdverts(follower, follower.Node())
	follower.Release()

	upper := ctx.Node(p.upperID)
	un := upper.Node()
	if un.agg == nil {
		panic("aggregation: lost follower reconciliation reached a leaf upper")
	}
	var propagate *preparedChange[I, D, C]
	if hasRemove {
		derived, ok := ctx.ApplyChange(&un.agg.data, removeChange)
		if ok && un.uppers.Len() > 0 {
			propagate = &preparedChange[I, D, C]{uppers: un.uppers.Values(), change: derived}
		}
	}
	prepared := make([]*preparedNotifyLostFollower[I, D, C], 0, len(adverts))
	for _, advert := range adverts {
		if lost := prepareNotifyLostFollower[I, D, C](un, p.upperID, advert); lost != nil {
			prepared = append(prepared, lost)
		}
	}
	upper.Release()

	if propagate != nil {
		propagate.Apply(ctx)
	}
	for _, lost := range prepared {
		lost.apply(ctx)
	}
}

// reportMalformed dumps both endpoints and a child-edge path between them,
// then panics. Called with the follower guard held.
func (p *preparedNotifyLostFollower[I, D, C]) reportMalformed(ctx Context[I, D, C], follower NodeGuard[I, D, C]) {
	var b strings.Builder
	fn := follower.Node()
	fmt.Fprintf(&b, "follower: aggregation number %d, upper count %d\n",
		fn.aggregationNumber, fn.uppers.Count(p.upperID))
	follower.Release()

	upper := ctx.Node(p.upperID)
	un := upper.Node()
	if un.agg != nil {
		fmt.Fprintf(&b, "upper: aggregation number %d, follower count %d\n",
			un.aggregationNumber, un.agg.followers.Count(p.followerID))
	} else {
		fmt.Fprintf(&b, "upper: leaf, aggregation number %d\n", un.aggregationNumber)
	}
	upper.Release()

	if path, ok := findPath(ctx, p.upperID, p.followerID); ok {
		fmt.Fprintf(&b, "path length %d\n", len(path))
		index := make(map[I]int, len(path))
		for i, id := range path {
			index[id] = i
		}
		for i, id := range path {
			node := ctx.Node(id)
			n := node.Node()
			uppersAt := positionsIn(index, n.uppers.Values())
			var followersAt []int
			if n.agg != nil {
				followersAt = positionsIn(index, n.agg.followers.Values())
			}
			fmt.Fprintf(&b, "node %d: aggregation number %d, uppers at %v, followers at %v\n",
				i, n.aggregationNumber, uppersAt, followersAt)
			node.Release()
		}
	} else {
		b.WriteString("no child-edge path between upper and follower\n")
	}

	panic("aggregation: malformed graph, neither the delegated nor the attached " +
		"record of a lost follower exists\n" + b.String())
}

func positionsIn[I comparable](index map[I]int, ids []I) []int {
	var out []int
	for _, id := range ids {
		if i, ok := index[id]; ok {
			out = append(out, i)
		}
	}
	return out
}

// findPath searches the child edges from startID for endID, breadth
// first. Diagnostic use only.
func findPath[I comparable, D, C any](ctx Context[I, D, C], startID, endID I) ([]I, bool) {
	type entry struct {
		id   I
		path []I
	}
	visited := map[I]struct{}{startID: {}}
	queue := []entry{{id: startID}}
	for len(queue) > 0 {
		e := queue[0]
		queue = queue[1:]
		path := append(append([]I(nil), e.path...), e.id)
		if e.id == endID {
			return path, true
		}
		node := ctx.Node(e.id)
		children := node.Children()
		node.Release()
		for _, child := range children {
			if _, ok := visited[child]; ok {
				continue
			}
			visited[child] = struct{}{}
			queue = append(queue, entry{id: child, path: path})
		}
	}
	return nil, false
}
