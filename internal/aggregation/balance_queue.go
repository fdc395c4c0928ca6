package aggregation

// balanceQueue accumulates deferred aggregation-number increases during a
// top-level edge operation. Deferring keeps a single edge change from
// recursively rebalancing the whole graph while its structural effects are
// only partially applied; the queue is drained once, by Process, after the
// primary change is in place.
//
// A queue is created per top-level operation and used by one goroutine;
// it needs no locking of its own.
type balanceQueue[I comparable] struct {
	pending map[I]increaseRequest
	order   []I
}

type increaseRequest struct {
	min    uint32
	target uint32
}

func newBalanceQueue[I comparable]() *balanceQueue[I] {
	return &balanceQueue[I]{pending: make(map[I]increaseRequest)}
}

// enqueue records that id's aggregation number must reach at least min and
// should reach target. Repeated requests for the same node merge into one.
func (q *balanceQueue[I]) enqueue(id I, min, target uint32) {
	if req, ok := q.pending[id]; ok {
		if min > req.min {
			req.min = min
		}
		if target > req.target {
			req.target = target
		}
		q.pending[id] = req
		return
	}
	q.pending[id] = increaseRequest{min: min, target: target}
	q.order = append(q.order, id)
}

// process drains the queue. Increases may enqueue follow-up increases for
// uppers; those are processed in the same drain.
func process[I comparable, D, C any](ctx Context[I, D, C], q *balanceQueue[I]) {
	for len(q.order) > 0 {
		id := q.order[0]
		q.order = q.order[1:]
		req, ok := q.pending[id]
		if !ok {
			continue
		}
		delete(q.pending, id)

		node := ctx.Node(id)
		p := performIncrease(ctx, node, id, req.min, req.target)
		node.Release()
		if p != nil {
			p.applyInternal(ctx, q)
		}
		balanceRuns.Add(1)
	}
}
