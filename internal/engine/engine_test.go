package engine_test

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/anupdhamala/taskfold/internal/config"
	"github.com/anupdhamala/taskfold/internal/engine"
	"github.com/anupdhamala/taskfold/internal/taskgraph"
)

func testConf() config.EngineConf {
	return config.EngineConf{
		RecomputeWorkers:   2,
		QueueDepth:         16,
		RecomputeTimeoutMs: 2000,
	}
}

func wantAggregate(t *testing.T, e *engine.Engine, id string, total, dirty int) {
	t.Helper()
	got, err := e.Aggregate(id)
	if err != nil {
		t.Fatalf("Aggregate(%s): %v", id, err)
	}
	if got.Total != total || got.Dirty != dirty {
		t.Fatalf("Aggregate(%s) = %+v, want total %d dirty %d", id, got, total, dirty)
	}
}

func TestInvalidateSyncRecomputes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var computed atomic.Int32
	e := engine.New(ctx, taskgraph.New(), func(ctx context.Context, taskID string) error {
		computed.Add(1)
		return nil
	}, testConf())
	defer e.Shutdown()

	if err := e.Connect("build", "compile"); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	wantAggregate(t, e, "build", 2, 0)

	res, err := e.InvalidateSync(ctx, "compile")
	if err != nil {
		t.Fatalf("InvalidateSync: %v", err)
	}
	if res.Error != "" || res.RunID == "" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if computed.Load() != 1 {
		t.Fatalf("compute ran %d times, want 1", computed.Load())
	}
	// The recompute marked it clean again.
	wantAggregate(t, e, "build", 2, 0)

	if _, err := e.InvalidateSync(ctx, "missing"); err == nil {
		t.Fatal("InvalidateSync accepted an unknown task")
	}
}

func TestComputeErrorKeepsTaskDirty(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	e := engine.New(ctx, taskgraph.New(), func(ctx context.Context, taskID string) error {
		return fmt.Errorf("compile failed")
	}, testConf())
	defer e.Shutdown()

	e.AddTask("compile", false)
	wantAggregate(t, e, "compile", 1, 0)

	res, err := e.InvalidateSync(ctx, "compile")
	if err != nil {
		t.Fatalf("InvalidateSync: %v", err)
	}
	if res.Error == "" {
		t.Fatal("expected the compute error in the result")
	}
	wantAggregate(t, e, "compile", 1, 1)
}

func TestApplyConfigReconcilesEdges(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	e := engine.New(ctx, taskgraph.New(), nil, testConf())
	defer e.Shutdown()

	e.ApplyConfig(&config.Config{
		Version: "v1",
		Tasks: []config.TaskDef{
			{ID: "build", Children: []string{"compile", "link"}},
			{ID: "compile", Children: []string{"parse"}, Dirty: true},
		},
	})
	wantAggregate(t, e, "build", 4, 1)

	// Reload: compile loses parse, build gains test.
	e.ApplyConfig(&config.Config{
		Version: "v1",
		Tasks: []config.TaskDef{
			{ID: "build", Children: []string{"compile", "link", "test"}},
			{ID: "compile"},
		},
	})
	wantAggregate(t, e, "build", 4, 0)
	if children := e.Graph().Children("compile"); len(children) != 0 {
		t.Fatalf("compile children = %v, want none", children)
	}
}
