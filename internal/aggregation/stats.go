package aggregation

import "sync/atomic"

// Process-wide operation counters. They exist for observability (the
// metrics package exports them to Prometheus) and for tests that assert a
// code path was taken; they carry no correctness weight.
var (
	leafUpgrades        atomic.Uint64
	balanceRuns         atomic.Uint64
	optimizeRuns        atomic.Uint64
	lostFollowerRetries atomic.Uint64
)

// LeafUpgrades returns how many leaves were upgraded to aggregating nodes
// by the fan-out heuristic.
func LeafUpgrades() uint64 { return leafUpgrades.Load() }

// BalanceRuns returns how many deferred aggregation-number increases were
// processed from balance queues.
func BalanceRuns() uint64 { return balanceRuns.Load() }

// OptimizeRuns returns how many times follower-set restructuring was
// triggered by the expensive-node guard.
func OptimizeRuns() uint64 { return optimizeRuns.Load() }

// LostFollowerRetries returns how many times the lost-follower protocol
// had to retry because neither side of the edge was observable yet.
func LostFollowerRetries() uint64 { return lostFollowerRetries.Load() }

// lostFollowerRetryLimit bounds the lost-follower reconciliation loop.
// There is no derivation behind the default; it is a corruption detector,
// not a timeout, and exceeding it is fatal.
var lostFollowerRetryLimit atomic.Int64

func init() {
	lostFollowerRetryLimit.Store(10000)
}

// SetLostFollowerRetryLimit overrides the retry bound. The right value
// depends on expected scheduler contention; hosts may tune it at startup.
func SetLostFollowerRetryLimit(n int) {
	if n < 1 {
		n = 1
	}
	lostFollowerRetryLimit.Store(int64(n))
}
