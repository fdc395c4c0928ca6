package aggregation_test

import (
	"testing"

	"github.com/anupdhamala/taskfold/internal/aggregation"
)

func TestNewEdgeRaisesTargetNumber(t *testing.T) {
	restore := aggregation.SetBufferSpaceForTest(1)
	defer restore()

	h := newHarness()
	h.connect(1, 2)

	// Target sits one above the origin, plus the slack.
	if got := h.number(2); got != 2 {
		t.Fatalf("node 2 aggregation number = %d, want 2", got)
	}
	if h.aggregating(2) {
		t.Fatal("node 2 became aggregating from a single edge")
	}

	h.connect(2, 3)
	if got := h.number(3); got != 4 {
		t.Fatalf("node 3 aggregation number = %d, want 4", got)
	}
}

func TestLeafUpgradeOnWideFanOut(t *testing.T) {
	restore := aggregation.SetBufferSpaceForTest(1)
	defer restore()

	h := newHarness()
	for child := 1; child <= aggregation.MaxUppersTimesChildren; child++ {
		h.connect(0, child)
		if child < aggregation.MaxUppersTimesChildren && h.aggregating(0) {
			t.Fatalf("node 0 upgraded at %d children", child)
		}
	}

	if !h.aggregating(0) {
		t.Fatalf("node 0 not upgraded at %d children with no uppers",
			aggregation.MaxUppersTimesChildren)
	}
	if got := h.number(0); got != aggregation.LeafNumber {
		t.Fatalf("upgraded node 0 aggregation number = %d, want %d",
			got, aggregation.LeafNumber)
	}
	h.checkConsistency(t)
}

func TestLeafUpgradeCountsUppers(t *testing.T) {
	restore := aggregation.SetBufferSpaceForTest(1)
	defer restore()

	h := newHarness()
	// Upper 0 aggregates node 100 through the wide fan-out upgrade.
	for child := 100; child < 100+aggregation.MaxUppersTimesChildren; child++ {
		h.connect(0, child)
	}
	if !h.aggregating(0) {
		t.Fatal("node 0 not upgraded")
	}
	{
		g := h.Node(100)
		attached := g.Node().Uppers().Has(0)
		g.Release()
		if !attached {
			t.Fatal("node 100 not attached to its upgraded parent")
		}
	}

	// With one upper the threshold halves: 16 children are enough.
	half := aggregation.MaxUppersTimesChildren / 2
	for child := 200; child < 200+half; child++ {
		h.connect(100, child)
	}
	if !h.aggregating(100) {
		t.Fatalf("node 100 not upgraded at %d children with one upper", half)
	}
	h.checkConsistency(t)
}

// With two uppers the fan-out product passes the threshold at eleven
// children, but the upgrade check only fires when the child count is a
// power of two.
func TestUpgradeGatedOnPowerOfTwoChildCount(t *testing.T) {
	restore := aggregation.SetBufferSpaceForTest(1)
	defer restore()

	h := newHarness()
	// Two aggregating parents sharing child 50.
	for child := 100; child < 131; child++ {
		h.connect(1, child)
	}
	h.connect(1, 50)
	for child := 200; child < 231; child++ {
		h.connect(2, child)
	}
	h.connect(2, 50)
	if !h.aggregating(1) || !h.aggregating(2) {
		t.Fatal("parents not upgraded")
	}
	{
		g := h.Node(50)
		uppers := g.Node().Uppers().Len()
		g.Release()
		if uppers != 2 {
			t.Fatalf("node 50 has %d uppers, want 2", uppers)
		}
	}

	for child := 300; child < 316; child++ {
		h.connect(50, child)
		children := child - 300 + 1
		if children < 16 && h.aggregating(50) {
			t.Fatalf("node 50 upgraded at %d children", children)
		}
	}
	if !h.aggregating(50) {
		t.Fatal("node 50 not upgraded at 16 children with two uppers")
	}
	h.checkConsistency(t)
}

func TestNoUpgradeBelowThreshold(t *testing.T) {
	restore := aggregation.SetBufferSpaceForTest(1)
	defer restore()

	h := newHarness()
	for child := 1; child < aggregation.MaxUppersTimesChildren; child++ {
		h.connect(0, child)
	}
	if h.aggregating(0) {
		t.Fatalf("node 0 upgraded below %d children", aggregation.MaxUppersTimesChildren)
	}
}

func TestAggregationNumberMonotonic(t *testing.T) {
	restore := aggregation.SetBufferSpaceForTest(1)
	defer restore()

	h := newHarness()
	last := make(map[int]uint32)
	check := func() {
		t.Helper()
		for id := 0; id < 50; id++ {
			got := h.number(id)
			if got < last[id] {
				t.Fatalf("node %d aggregation number decreased: %d -> %d", id, last[id], got)
			}
			last[id] = got
			if last[id] >= aggregation.LeafNumber && !h.aggregating(id) {
				t.Fatalf("node %d at number %d is not aggregating", id, got)
			}
		}
	}

	// A chain pushes numbers up step by step; the extra edges fan out.
	for i := 0; i < 20; i++ {
		h.connect(i, i+1)
		check()
	}
	for i := 0; i < 20; i++ {
		h.connect(0, 30+i)
		check()
	}
	wasAggregating := h.aggregating(0)
	h.connect(0, 21)
	check()
	if wasAggregating && !h.aggregating(0) {
		t.Fatal("node 0 reverted to a leaf")
	}
	h.checkConsistency(t)
}
