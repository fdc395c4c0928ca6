// Package engine schedules recomputation of dirty tasks over the task
// graph. Invalidation marks a task dirty — which the aggregation tree
// propagates to every summary that includes it — and a worker pool
// recomputes the task and marks it clean again.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/anupdhamala/taskfold/internal/config"
	"github.com/anupdhamala/taskfold/internal/metrics"
	"github.com/anupdhamala/taskfold/internal/taskgraph"
)

// RecomputeResult is the outcome of recomputing a single task.
type RecomputeResult struct {
	TaskID     string `json:"task_id"`
	RunID      string `json:"run_id"`
	DurationMs int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// ComputeFunc performs the host's actual work for one task. The engine
// marks the task clean only when it returns nil.
type ComputeFunc func(ctx context.Context, taskID string) error

// Engine ties the task graph, the compute function and the worker pool
// together.
type Engine struct {
	graph   *taskgraph.Graph
	compute ComputeFunc
	pool    *workerPool[*recomputeWork]
	conf    *config.EngineConf
}

type recomputeWork struct {
	taskID  string
	runID   string
	resultC chan *RecomputeResult
}

// New creates an Engine using conf and starts the recompute pool. A nil
// compute keeps the bookkeeping without doing any work per task.
func New(ctx context.Context, g *taskgraph.Graph, compute ComputeFunc, conf config.EngineConf) *Engine {
	if compute == nil {
		compute = func(context.Context, string) error { return nil }
	}
	e := &Engine{
		graph:   g,
		compute: compute,
		conf:    &conf,
	}
	e.pool = newWorkerPool[*recomputeWork](
		ctx,
		conf.RecomputeWorkers,
		conf.QueueDepth,
		func(ctx context.Context, w *recomputeWork) {
			res := e.recompute(ctx, w)
			if w.resultC != nil {
				w.resultC <- res
			}
		},
	)
	return e
}

// Graph returns the underlying task graph.
func (e *Engine) Graph() *taskgraph.Graph { return e.graph }

// AddTask creates the task if needed and sets its dirty flag.
func (e *Engine) AddTask(id string, dirty bool) {
	e.graph.Ensure(id)
	e.graph.SetDirty(id, dirty)
}

// Connect adds a task graph edge.
func (e *Engine) Connect(from, to string) error {
	if err := e.graph.Connect(from, to); err != nil {
		return err
	}
	metrics.EdgesAdded.Inc()
	return nil
}

// Disconnect removes a task graph edge.
func (e *Engine) Disconnect(from, to string) error {
	if err := e.graph.Disconnect(from, to); err != nil {
		return err
	}
	metrics.EdgesRemoved.Inc()
	return nil
}

// Aggregate returns the aggregated statistics for id's subtree.
func (e *Engine) Aggregate(id string) (taskgraph.Stats, error) {
	return e.graph.Aggregate(id)
}

// InvalidateSync marks the task dirty and waits for its recompute.
func (e *Engine) InvalidateSync(ctx context.Context, id string) (*RecomputeResult, error) {
	if !e.graph.Has(id) {
		return nil, fmt.Errorf("no such task %q", id)
	}
	e.graph.SetDirty(id, true)
	metrics.TasksInvalidated.Inc()

	resultC := make(chan *RecomputeResult, 1)
	w := &recomputeWork{taskID: id, runID: uuid.New().String(), resultC: resultC}
	if !e.pool.Submit(w) {
		metrics.RecomputesDropped.Inc()
		if e.conf.FailOpen {
			// The task stays dirty; the aggregates already reflect that.
			return &RecomputeResult{TaskID: id, RunID: w.runID, Error: "recompute queue full, task left dirty"}, nil
		}
		return nil, fmt.Errorf("recompute queue full (capacity %d)", e.conf.QueueDepth)
	}
	metrics.RecomputesEnqueued.Inc()

	timeout := time.Duration(e.conf.RecomputeTimeoutMs) * time.Millisecond
	select {
	case res := <-resultC:
		return res, nil
	case <-time.After(timeout):
		return nil, fmt.Errorf("recompute timeout after %v", timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// InvalidateAsync marks the task dirty and enqueues its recompute. Returns
// the run id and false when the queue is full (the task stays dirty).
func (e *Engine) InvalidateAsync(id string) (string, bool, error) {
	if !e.graph.Has(id) {
		return "", false, fmt.Errorf("no such task %q", id)
	}
	e.graph.SetDirty(id, true)
	metrics.TasksInvalidated.Inc()

	w := &recomputeWork{taskID: id, runID: uuid.New().String()}
	if !e.pool.Submit(w) {
		metrics.RecomputesDropped.Inc()
		return w.runID, false, nil
	}
	metrics.RecomputesEnqueued.Inc()
	return w.runID, true, nil
}

// QueueUtilization returns queue used / capacity (0–1).
func (e *Engine) QueueUtilization() float64 {
	if e.pool.QueueCap() == 0 {
		return 0
	}
	return float64(e.pool.QueueLen()) / float64(e.pool.QueueCap())
}

// ApplyConfig reconciles the graph with the declared tasks: missing tasks
// and edges are created, edges a declared task no longer lists are
// removed, and dirty flags are set as declared. Used for the initial seed
// and on hot reload.
func (e *Engine) ApplyConfig(cfg *config.Config) {
	for _, def := range cfg.Tasks {
		e.graph.Ensure(def.ID)
		for _, child := range def.Children {
			e.graph.Ensure(child)
		}
	}
	for _, def := range cfg.Tasks {
		want := make(map[string]struct{}, len(def.Children))
		for _, child := range def.Children {
			want[child] = struct{}{}
		}
		have := make(map[string]struct{})
		for _, child := range e.graph.Children(def.ID) {
			if _, ok := want[child]; ok {
				have[child] = struct{}{}
				continue
			}
			_ = e.Disconnect(def.ID, child)
		}
		for _, child := range def.Children {
			if _, ok := have[child]; !ok {
				_ = e.Connect(def.ID, child)
			}
		}
		e.graph.SetDirty(def.ID, def.Dirty)
	}
}

// Shutdown drains the recompute pool gracefully.
func (e *Engine) Shutdown() {
	e.pool.Drain()
}

func (e *Engine) recompute(ctx context.Context, w *recomputeWork) *RecomputeResult {
	start := time.Now()
	res := &RecomputeResult{TaskID: w.taskID, RunID: w.runID}

	timeout := time.Duration(e.conf.RecomputeTimeoutMs) * time.Millisecond
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	err := e.compute(runCtx, w.taskID)
	cancel()

	if err != nil {
		res.Error = err.Error()
		metrics.RecomputesCompleted.WithLabelValues("error").Inc()
	} else {
		e.graph.SetDirty(w.taskID, false)
		metrics.RecomputesCompleted.WithLabelValues("success").Inc()
	}
	res.DurationMs = time.Since(start).Milliseconds()
	metrics.RecomputeDuration.Observe(float64(res.DurationMs))
	return res
}
