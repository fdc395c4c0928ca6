package taskgraph

// Stats is the aggregated view over a task and everything reachable below
// it: how many tasks there are and how many of them are dirty.
type Stats struct {
	Dirty int `json:"dirty"`
	Total int `json:"total"`
}

// StatsChange is the delta type propagated through the aggregation tree.
// Deltas are additive, so applying a change and then its negation leaves
// an aggregate untouched.
type StatsChange struct {
	DirtyDelta int
	TotalDelta int
}

func (c StatsChange) isZero() bool {
	return c.DirtyDelta == 0 && c.TotalDelta == 0
}

func (c StatsChange) negate() StatsChange {
	return StatsChange{DirtyDelta: -c.DirtyDelta, TotalDelta: -c.TotalDelta}
}
