package aggregation

// SetBufferSpaceForTest shrinks the number-increase slack so tests can
// predict exact aggregation numbers. Returns a restore function.
func SetBufferSpaceForTest(n uint32) func() {
	old := bufferSpace
	bufferSpace = n
	return func() { bufferSpace = old }
}
