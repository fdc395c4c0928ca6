package aggregation_test

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/anupdhamala/taskfold/internal/aggregation"
)

// The test host: items identified by int, aggregating a count of items
// plus a count of dirty items. Every item contributes total 1, and dirty 1
// while its flag is set, so an aggregate can be checked against the
// reachable set by eye.

type stats struct {
	dirty int
	total int
}

type statsChange struct {
	dirtyDelta int
	totalDelta int
}

type testItem struct {
	mu         sync.Mutex
	children   []int
	dirty      bool
	node       aggregation.Node[int, stats]
	inProgress atomic.Int32
}

type harness struct {
	mu    sync.Mutex
	items map[int]*testItem
}

func newHarness() *harness {
	return &harness{items: make(map[int]*testItem)}
}

func (h *harness) item(id int) *testItem {
	h.mu.Lock()
	defer h.mu.Unlock()
	it, ok := h.items[id]
	if !ok {
		it = &testItem{}
		h.items[id] = it
	}
	return it
}

func (h *harness) Node(id int) aggregation.NodeGuard[int, stats, statsChange] {
	it := h.item(id)
	it.mu.Lock()
	return &itemGuard{it: it}
}

func (h *harness) ApplyChange(data *stats, change statsChange) (statsChange, bool) {
	data.dirty += change.dirtyDelta
	data.total += change.totalDelta
	if change == (statsChange{}) {
		return statsChange{}, false
	}
	return change, true
}

func (h *harness) DataToAddChange(data *stats) (statsChange, bool) {
	c := statsChange{dirtyDelta: data.dirty, totalDelta: data.total}
	return c, c != statsChange{}
}

func (h *harness) DataToRemoveChange(data *stats) (statsChange, bool) {
	c := statsChange{dirtyDelta: -data.dirty, totalDelta: -data.total}
	return c, c != statsChange{}
}

func (h *harness) StartInProgress(id int)  { h.item(id).inProgress.Add(1) }
func (h *harness) FinishInProgress(id int) { h.item(id).inProgress.Add(-1) }
func (h *harness) InProgress(id int) bool  { return h.item(id).inProgress.Load() > 0 }

type itemGuard struct {
	it *testItem
}

func (g *itemGuard) Node() *aggregation.Node[int, stats] { return &g.it.node }

func (g *itemGuard) Children() []int {
	out := make([]int, len(g.it.children))
	copy(out, g.it.children)
	return out
}

func (g *itemGuard) AddChange() (statsChange, bool) {
	c := statsChange{totalDelta: 1}
	if g.it.dirty {
		c.dirtyDelta = 1
	}
	return c, true
}

func (g *itemGuard) RemoveChange() (statsChange, bool) {
	c := statsChange{totalDelta: -1}
	if g.it.dirty {
		c.dirtyDelta = -1
	}
	return c, true
}

func (g *itemGuard) InitialData() stats {
	d := stats{total: 1}
	if g.it.dirty {
		d.dirty = 1
	}
	return d
}

func (g *itemGuard) Release() { g.it.mu.Unlock() }

// connect adds the from→to child edge and runs the aggregation update.
func (h *harness) connect(from, to int) {
	g := h.Node(from).(*itemGuard)
	g.it.children = append(g.it.children, to)
	op := aggregation.HandleNewEdge[int, stats, statsChange](h, g, from, to, len(g.it.children))
	g.Release()
	if op != nil {
		op.Apply(h)
	}
}

// removeEdge removes one from→to child edge and runs the aggregation
// update. Reports whether the edge existed.
func (h *harness) removeEdge(from, to int) bool {
	g := h.Node(from).(*itemGuard)
	found := false
	for i, child := range g.it.children {
		if child == to {
			g.it.children = append(g.it.children[:i], g.it.children[i+1:]...)
			found = true
			break
		}
	}
	if !found {
		g.Release()
		return false
	}
	op := aggregation.HandleLostEdge[int, stats, statsChange](h, g, from, to)
	g.Release()
	if op != nil {
		op.Apply(h)
	}
	return true
}

func (h *harness) disconnect(t *testing.T, from, to int) {
	t.Helper()
	if !h.removeEdge(from, to) {
		t.Fatalf("disconnect(%d, %d): no such edge", from, to)
	}
}

func (h *harness) setDirty(id int, dirty bool) {
	g := h.Node(id).(*itemGuard)
	if g.it.dirty == dirty {
		g.Release()
		return
	}
	g.it.dirty = dirty
	change := statsChange{dirtyDelta: 1}
	if !dirty {
		change.dirtyDelta = -1
	}
	op := aggregation.ApplyChange[int, stats, statsChange](h, g, change)
	g.Release()
	if op != nil {
		op.Apply(h)
	}
}

// aggregate raises id to the root aggregation number on first use and
// returns a copy of its aggregated data.
func (h *harness) aggregate(id int) stats {
	info := aggregation.AggregationInfo[int, stats, statsChange](h, id)
	out := *info.Data()
	info.Release()
	return out
}

func (h *harness) number(id int) uint32 {
	g := h.Node(id)
	defer g.Release()
	return g.Node().AggregationNumber()
}

func (h *harness) aggregating(id int) bool {
	g := h.Node(id)
	defer g.Release()
	return g.Node().IsAggregating()
}

// checkConsistency verifies the structural invariants that must hold once
// all operations have settled: relationship counts are positive, uppers
// are aggregating nodes, and no pair of nodes is recorded as both attached
// and delegated.
func (h *harness) checkConsistency(t *testing.T) {
	t.Helper()
	h.mu.Lock()
	ids := make([]int, 0, len(h.items))
	for id := range h.items {
		ids = append(ids, id)
	}
	h.mu.Unlock()

	for _, id := range ids {
		g := h.Node(id)
		n := g.Node()
		uppers := n.Uppers().Values()
		for _, upperID := range uppers {
			if n.Uppers().Count(upperID) <= 0 {
				t.Errorf("node %d: upper %d with non-positive count", id, upperID)
			}
		}
		var followers []int
		if f := n.Followers(); f != nil {
			followers = f.Values()
			for _, followerID := range followers {
				if f.Count(followerID) <= 0 {
					t.Errorf("node %d: follower %d with non-positive count", id, followerID)
				}
			}
		}
		g.Release()

		for _, upperID := range uppers {
			ug := h.Node(upperID)
			un := ug.Node()
			if !un.IsAggregating() {
				t.Errorf("node %d: upper %d is not aggregating", id, upperID)
			} else if un.Followers().Has(id) {
				t.Errorf("node %d is both attached to and delegated on %d", id, upperID)
			}
			ug.Release()
		}
	}
}
