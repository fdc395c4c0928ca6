// Package countset provides a reference-counted hash multiset.
//
// The aggregation tree records the same logical relationship between two
// nodes once per path that produces it. A plain set would erase the
// relationship on the first removal even though other paths still need it;
// CountSet keeps a count per entry and only reports an entry as fully
// removed when the count reaches zero.
package countset

// RemoveResult describes the outcome of a counted removal.
type RemoveResult int

const (
	// PartiallyRemoved means the count was decremented but is still positive.
	PartiallyRemoved RemoveResult = iota
	// Removed means the count reached zero and the entry is gone.
	Removed
	// NotPresent means no entry existed for the value.
	NotPresent
)

func (r RemoveResult) String() string {
	switch r {
	case PartiallyRemoved:
		return "partially-removed"
	case Removed:
		return "removed"
	case NotPresent:
		return "not-present"
	}
	return "unknown"
}

// CountSet is a multiset backed by a map from value to count.
// All counts are strictly positive; zero-count entries are deleted.
// It is not safe for concurrent use; callers hold the owning node's lock.
type CountSet[T comparable] struct {
	counts map[T]int
}

// New allocates an empty CountSet.
func New[T comparable]() CountSet[T] {
	return CountSet[T]{counts: make(map[T]int)}
}

// Add increments the count for v. It returns true when the entry is new
// (count went from zero to one), which is the signal that the logical
// relationship just came into existence.
func (s *CountSet[T]) Add(v T) bool {
	return s.AddCount(v, 1)
}

// AddCount increments the count for v by n (n > 0). Returns true when the
// entry was not present before.
func (s *CountSet[T]) AddCount(v T, n int) bool {
	if s.counts == nil {
		s.counts = make(map[T]int)
	}
	old := s.counts[v]
	s.counts[v] = old + n
	return old == 0
}

// AddIfEntry increments the count for v only if an entry already exists.
// Returns true when the increment happened.
func (s *CountSet[T]) AddIfEntry(v T) bool {
	if s.counts[v] == 0 {
		return false
	}
	s.counts[v]++
	return true
}

// RemoveIfEntry decrements the count for v if an entry exists.
func (s *CountSet[T]) RemoveIfEntry(v T) RemoveResult {
	c, ok := s.counts[v]
	if !ok {
		return NotPresent
	}
	if c > 1 {
		s.counts[v] = c - 1
		return PartiallyRemoved
	}
	delete(s.counts, v)
	return Removed
}

// RemoveEntry deletes v regardless of its count and returns the count it
// had (zero if it was not present).
func (s *CountSet[T]) RemoveEntry(v T) int {
	c := s.counts[v]
	delete(s.counts, v)
	return c
}

// Count returns the current count for v (zero if absent).
func (s *CountSet[T]) Count(v T) int {
	return s.counts[v]
}

// Has reports whether v has a positive count.
func (s *CountSet[T]) Has(v T) bool {
	return s.counts[v] > 0
}

// Len returns the number of distinct entries.
func (s *CountSet[T]) Len() int {
	return len(s.counts)
}

// Values returns a snapshot slice of the distinct entries.
func (s *CountSet[T]) Values() []T {
	out := make([]T, 0, len(s.counts))
	for v := range s.counts {
		out = append(out, v)
	}
	return out
}

// Range calls fn for every distinct entry with its count until fn returns
// false.
func (s *CountSet[T]) Range(fn func(v T, count int) bool) {
	for v, c := range s.counts {
		if !fn(v, c) {
			return
		}
	}
}
