package aggregation

// In-progress marks are a cooperative fence, not a lock. Before a
// structural change is propagated to a set of uppers, each upper is marked
// so that concurrent operations on it skip the count-only fast path: while
// the mark is set, a followers entry may exist whose side effects are not
// fully wired yet. The mark is cleared by the notify operation that was
// prepared for that upper.

func startInProgressAll[I comparable, D, C any](ctx Context[I, D, C], ids []I) {
	for _, id := range ids {
		ctx.StartInProgress(id)
	}
}
