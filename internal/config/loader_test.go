package config

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleConfig = `
version: v1
engine:
  recompute_workers: 4
aggregation:
  lost_follower_retry_limit: 2000
tasks:
  - id: build
    children: [compile, link]
  - id: compile
    dirty: true
    children: [parse]
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "taskfold.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	l, err := NewLoader(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("NewLoader: %v", err)
	}
	cfg := l.Config()
	if cfg.Engine.RecomputeWorkers != 4 {
		t.Errorf("RecomputeWorkers = %d, want 4", cfg.Engine.RecomputeWorkers)
	}
	if cfg.Engine.QueueDepth != 10000 {
		t.Errorf("QueueDepth default = %d, want 10000", cfg.Engine.QueueDepth)
	}
	if cfg.Engine.RecomputeTimeoutMs != 5000 {
		t.Errorf("RecomputeTimeoutMs default = %d, want 5000", cfg.Engine.RecomputeTimeoutMs)
	}
	if cfg.Aggregation.LostFollowerRetryLimit != 2000 {
		t.Errorf("LostFollowerRetryLimit = %d, want 2000", cfg.Aggregation.LostFollowerRetryLimit)
	}
	if len(cfg.Tasks) != 2 || !cfg.Tasks[1].Dirty {
		t.Errorf("unexpected tasks: %+v", cfg.Tasks)
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestValidateRejectsBadConfigs(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
	}{
		{"missing version", Config{}},
		{"duplicate task id", Config{
			Version: "v1",
			Tasks:   []TaskDef{{ID: "a"}, {ID: "a"}},
		}},
		{"duplicate edge", Config{
			Version: "v1",
			Tasks:   []TaskDef{{ID: "a", Children: []string{"b", "b"}}},
		}},
		{"empty task id", Config{
			Version: "v1",
			Tasks:   []TaskDef{{}},
		}},
		{"negative retry limit", Config{
			Version:     "v1",
			Aggregation: AggregationConf{LostFollowerRetryLimit: -1},
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := Validate(&tc.cfg); err == nil {
				t.Fatal("Validate accepted an invalid config")
			}
		})
	}
}
