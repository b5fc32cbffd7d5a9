package pool

// block is a raw memory region borrowed from the OS (via rawAlloc) and
// cached by a Context or chained into a Pool. In the C source a block
// carries an explicit size+next header at the front of the region; in Go
// the backing []byte already knows its own length, so the header
// collapses to the struct itself (spec §9: "Go has no raw-pointer
// concern").
type block struct {
	data []byte
	next *block // intrusive link: Context.stdBlocks free list, or a Pool's block chain
}

func newBlock(size uint32) *block {
	return &block{data: rawAlloc(size)}
}

func (b *block) size() uint32 { return uint32(len(b.data)) }

// rawAlloc is the OS page allocator collaborator from spec §6. Go has no
// manual free, so rawFree is simply dropping the last reference; the
// context's free lists exist precisely so that drop happens as rarely as
// possible (spec's non-goal: "returning memory to the OS on pool clear").
func rawAlloc(size uint32) []byte {
	return make([]byte, size)
}

// rawFree is the other half of the raw_alloc/raw_free collaborator pair
// (spec §6). Go has no manual free; this exists so drain paths (Context
// teardown) have a single, documented place that "returns memory to the
// OS", even though it is a no-op here.
func rawFree(data []byte) {}

// alignUp rounds n up to the next multiple of Alignment.
func alignUp(n uint32) uint32 {
	return (n + Alignment - 1) &^ (Alignment - 1)
}
