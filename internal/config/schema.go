package config

// Config is the top-level YAML structure.
type Config struct {
	Version     string          `yaml:"version"`
	Engine      EngineConf      `yaml:"engine"`
	Aggregation AggregationConf `yaml:"aggregation"`
	Tasks       []TaskDef       `yaml:"tasks"`
}

// EngineConf holds tunable concurrency settings.
type EngineConf struct {
	RecomputeWorkers   int  `yaml:"recompute_workers"`
	QueueDepth         int  `yaml:"queue_depth"`
	RecomputeTimeoutMs int  `yaml:"recompute_timeout_ms"`
	FailOpen           bool `yaml:"fail_open"`
}

// AggregationConf holds aggregation-tree tuning.
type AggregationConf struct {
	// LostFollowerRetryLimit bounds the lost-follower reconciliation loop
	// before the graph is declared malformed. Zero keeps the built-in
	// default.
	LostFollowerRetryLimit int `yaml:"lost_follower_retry_limit"`
}

// TaskDef seeds one task and its outgoing edges. Children that have no
// TaskDef of their own are created as plain tasks.
type TaskDef struct {
	ID       string   `yaml:"id"`
	Dirty    bool     `yaml:"dirty"`
	Children []string `yaml:"children"`
}
