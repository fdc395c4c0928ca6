// Package taskgraph stores the mutable task graph and keeps per-subtree
// statistics incrementally up to date through the aggregation tree.
//
// Each task carries its own mutex and aggregation node; the graph-level
// lock only guards the id→task map. The package implements
// aggregation.Context over string task ids with Stats aggregates and
// StatsChange deltas.
package taskgraph

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/anupdhamala/taskfold/internal/aggregation"
)

// Task is one node of the task graph.
type Task struct {
	mu         sync.Mutex
	children   []string
	dirty      bool
	node       aggregation.Node[string, Stats]
	inProgress atomic.Int32
}

// Graph is the concurrent task store.
type Graph struct {
	mu    sync.RWMutex
	tasks map[string]*Task
}

func New() *Graph {
	return &Graph{tasks: make(map[string]*Task)}
}

// Ensure creates the task if it does not exist yet. Reports whether it was
// created.
func (g *Graph) Ensure(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.tasks[id]; ok {
		return false
	}
	g.tasks[id] = &Task{}
	return true
}

// Has reports whether the task exists.
func (g *Graph) Has(id string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.tasks[id]
	return ok
}

// Len returns the number of tasks.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.tasks)
}

// IDs returns all task ids.
func (g *Graph) IDs() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]string, 0, len(g.tasks))
	for id := range g.tasks {
		out = append(out, id)
	}
	return out
}

func (g *Graph) task(id string) *Task {
	g.mu.RLock()
	t := g.tasks[id]
	g.mu.RUnlock()
	if t == nil {
		panic(fmt.Sprintf("taskgraph: unknown task %q", id))
	}
	return t
}

// Connect adds the from→to edge. Both tasks are created if needed. Adding
// an edge that already exists is an error: the task graph is a simple
// graph, unlike the counted relationships below it.
func (g *Graph) Connect(from, to string) error {
	g.Ensure(from)
	g.Ensure(to)

	t := g.task(from)
	t.mu.Lock()
	for _, child := range t.children {
		if child == to {
			t.mu.Unlock()
			return fmt.Errorf("edge %s->%s already exists", from, to)
		}
	}
	t.children = append(t.children, to)
	guard := &taskGuard{t: t}
	op := aggregation.HandleNewEdge[string, Stats, StatsChange](g, guard, from, to, len(t.children))
	t.mu.Unlock()
	if op != nil {
		op.Apply(g)
	}
	return nil
}

// Disconnect removes the from→to edge.
func (g *Graph) Disconnect(from, to string) error {
	if !g.Has(from) {
		return fmt.Errorf("no such task %q", from)
	}
	t := g.task(from)
	t.mu.Lock()
	found := false
	for i, child := range t.children {
		if child == to {
			t.children = append(t.children[:i], t.children[i+1:]...)
			found = true
			break
		}
	}
	if !found {
		t.mu.Unlock()
		return fmt.Errorf("no edge %s->%s", from, to)
	}
	guard := &taskGuard{t: t}
	op := aggregation.HandleLostEdge[string, Stats, StatsChange](g, guard, from, to)
	t.mu.Unlock()
	if op != nil {
		op.Apply(g)
	}
	return nil
}

// SetDirty flips the task's dirty flag and propagates the delta to every
// aggregate that includes the task. Reports whether the flag changed.
func (g *Graph) SetDirty(id string, dirty bool) bool {
	if !g.Has(id) {
		return false
	}
	t := g.task(id)
	t.mu.Lock()
	if t.dirty == dirty {
		t.mu.Unlock()
		return false
	}
	t.dirty = dirty
	change := StatsChange{DirtyDelta: 1}
	if !dirty {
		change.DirtyDelta = -1
	}
	guard := &taskGuard{t: t}
	op := aggregation.ApplyChange[string, Stats, StatsChange](g, guard, change)
	t.mu.Unlock()
	if op != nil {
		op.Apply(g)
	}
	return true
}

// Dirty returns the task's own dirty flag.
func (g *Graph) Dirty(id string) bool {
	if !g.Has(id) {
		return false
	}
	t := g.task(id)
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dirty
}

// Children returns a copy of the task's child list.
func (g *Graph) Children(id string) []string {
	if !g.Has(id) {
		return nil
	}
	t := g.task(id)
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.children))
	copy(out, t.children)
	return out
}

// Aggregate returns the up-to-date statistics over id and everything
// reachable below it.
func (g *Graph) Aggregate(id string) (Stats, error) {
	if !g.Has(id) {
		return Stats{}, fmt.Errorf("no such task %q", id)
	}
	info := aggregation.AggregationInfo[string, Stats, StatsChange](g, id)
	out := *info.Data()
	info.Release()
	return out, nil
}

// aggregation.Context implementation.

func (g *Graph) Node(id string) aggregation.NodeGuard[string, Stats, StatsChange] {
	t := g.task(id)
	t.mu.Lock()
	return &taskGuard{t: t}
}

func (g *Graph) ApplyChange(data *Stats, change StatsChange) (StatsChange, bool) {
	data.Dirty += change.DirtyDelta
	data.Total += change.TotalDelta
	return change, !change.isZero()
}

func (g *Graph) DataToAddChange(data *Stats) (StatsChange, bool) {
	c := StatsChange{DirtyDelta: data.Dirty, TotalDelta: data.Total}
	return c, !c.isZero()
}

func (g *Graph) DataToRemoveChange(data *Stats) (StatsChange, bool) {
	c, ok := g.DataToAddChange(data)
	return c.negate(), ok
}

func (g *Graph) StartInProgress(id string)  { g.task(id).inProgress.Add(1) }
func (g *Graph) FinishInProgress(id string) { g.task(id).inProgress.Add(-1) }
func (g *Graph) InProgress(id string) bool  { return g.task(id).inProgress.Load() > 0 }

// taskGuard is the per-task exclusive guard handed to the aggregation
// tree. The task's own payload counts as one total and, while the dirty
// flag is set, one dirty.
type taskGuard struct {
	t *Task
}

func (tg *taskGuard) Node() *aggregation.Node[string, Stats] { return &tg.t.node }

func (tg *taskGuard) Children() []string {
	out := make([]string, len(tg.t.children))
	copy(out, tg.t.children)
	return out
}

func (tg *taskGuard) AddChange() (StatsChange, bool) {
	c := StatsChange{TotalDelta: 1}
	if tg.t.dirty {
		c.DirtyDelta = 1
	}
	return c, true
}

func (tg *taskGuard) RemoveChange() (StatsChange, bool) {
	c, ok := tg.AddChange()
	return c.negate(), ok
}

func (tg *taskGuard) InitialData() Stats {
	d := Stats{Total: 1}
	if tg.t.dirty {
		d.Dirty = 1
	}
	return d
}

func (tg *taskGuard) Release() { tg.t.mu.Unlock() }
