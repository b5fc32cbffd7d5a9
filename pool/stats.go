package pool

import "sync/atomic"

// Stats is a point-in-time snapshot of a Context's allocation counters.
type Stats struct {
	BytesInUse    uint64
	BlockAllocs   uint64
	BlockReleases uint64
}

// stats holds the atomic counters backing Context.Stats. Kept as a
// separate embeddable type, grounded on the teacher's runtime.Runtime
// memory-usage counters (originally internal/runtime/runtime.go), so a
// Context can be read from concurrently while pool trees themselves stay
// single-threaded (spec's non-goal: "thread safety within one context").
type stats struct {
	bytesInUse    atomic.Uint64
	blockAllocs   atomic.Uint64
	blockReleases atomic.Uint64
}

func (s *stats) onBlockAcquired(size uint32) {
	s.blockAllocs.Add(1)
	s.bytesInUse.Add(uint64(size))
}

func (s *stats) onBlockReleased(size uint32) {
	s.blockReleases.Add(1)
	s.bytesInUse.Add(^uint64(size - 1)) // unsigned subtraction
}

// Stats returns a snapshot of the context's block-level allocation
// counters. Safe to call from a goroutine other than the one driving the
// pool tree, unlike every other Context/Pool method.
func (c *Context) Stats() Stats {
	return Stats{
		BytesInUse:    c.counters.bytesInUse.Load(),
		BlockAllocs:   c.counters.blockAllocs.Load(),
		BlockReleases: c.counters.blockReleases.Load(),
	}
}
