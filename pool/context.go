package pool

import (
	"fmt"
	"os"
)

// Context is the process-wide allocator root (spec §3): it owns the
// standard-block free list, the non-standard-size fragment tree, the
// unhandled-error list, and a lazily-created internal pool used to back
// error messages.
type Context struct {
	cfg Config

	stdsize      uint32
	stdBlocks    *block   // free list of standard-size blocks
	nonstdBlocks *memtree // best-fit tree of freed oversized blocks

	roots []*Pool // pools with no parent, including the internal ones below

	unhandled *Error // head of the unhandled error list (spec §3, §4.5)

	errorPool *Pool // lazily created: backs Error.msg duplication, reclaimed by Destroy via roots

	// ptrToReg implements track_this_pool (spec §4.4): an external
	// subsystem outside the pool tree can look up a pool's cleanup
	// callback here and register it as an owner of its own resource.
	ptrToReg map[any]CleanupFunc

	counters stats

	destroyed bool
}

// NewContext creates a Context. With no options this is
// context_create(); WithStdSize/WithOOMHandler/WithTrackUnhandled
// correspond to context_create_custom's parameters (spec §6).
func NewContext(opts ...Option) *Context {
	cfg := resolveConfig(opts)
	return &Context{
		cfg:          cfg,
		stdsize:      cfg.StdSize,
		nonstdBlocks: newMemtree(),
		ptrToReg:     make(map[any]CleanupFunc),
	}
}

// Tracing reports whether Trace materializes TRACE records.
func (c *Context) Tracing() bool { return c.cfg.Tracing }

// SetTracing toggles wrap-trace record materialization (context_tracing).
func (c *Context) SetTracing(on bool) { c.cfg.Tracing = on }

// Unhandled returns the head of the unhandled-error list, or nil
// (context_unhandled). The returned Error is read-only from the caller's
// perspective: mutating its wrap/join state outside the Error API breaks
// the unhandled-list invariant.
func (c *Context) Unhandled() *Error { return c.unhandled }

// LogUnhandled is the "diagnostic routine" referenced by spec §7: it logs
// every error currently on the unhandled list via the context's injected
// logger.
func (c *Context) LogUnhandled() {
	for e := c.unhandled; e != nil; e = e.next {
		c.cfg.Logger.Printf("unhandled error: code=%d msg=%q", e.code, e.msg)
	}
}

// Destroy destroys every remaining descendant pool and drains the
// standard-block list and non-standard tree back via rawFree. It is safe
// to call more than once.
func (c *Context) Destroy() {
	if c.destroyed {
		return
	}
	c.LogUnhandled()

	// Copy: Pool.Destroy mutates c.roots as it unlinks itself.
	roots := append([]*Pool(nil), c.roots...)
	for _, p := range roots {
		p.Destroy()
	}
	c.roots = nil

	for b := c.stdBlocks; b != nil; {
		next := b.next
		rawFree(b.data)
		c.counters.onBlockReleased(b.size())
		b = next
	}
	c.stdBlocks = nil

	c.nonstdBlocks.drain(func(frag []byte) {
		rawFree(frag)
		c.counters.onBlockReleased(uint32(len(frag)))
	})
	c.nonstdBlocks = newMemtree()

	c.destroyed = true
}

func (c *Context) addRoot(p *Pool) {
	c.roots = append(c.roots, p)
}

func (c *Context) removeRoot(p *Pool) {
	for i, r := range c.roots {
		if r == p {
			c.roots = append(c.roots[:i], c.roots[i+1:]...)
			return
		}
	}
}

// acquireRaw performs raw_alloc(size), consulting the configured
// OOMHandler on failure (spec §4.2). Go's allocator does not normally
// signal failure to the caller; tryRawAlloc recovers the runtime's
// out-of-memory panic so the OOM contract is still observable.
func (c *Context) acquireRaw(size uint32) []byte {
	for attempt := 0; ; attempt++ {
		data, err := tryRawAlloc(size)
		if err == nil {
			c.counters.onBlockAcquired(size)
			return data
		}
		switch c.cfg.OOMHandler(size) {
		case OOMRetry:
			if attempt >= maxOOMRetries {
				c.cfg.Logger.Printf("oom: giving up after %d retries allocating %d bytes: %v", attempt, size, err)
				return nil
			}
		case OOMFail:
			return nil
		default: // OOMAbort
			c.cfg.Logger.Printf("oom: aborting, failed to allocate %d bytes: %v", size, err)
			os.Exit(1)
		}
	}
}

func tryRawAlloc(size uint32) (data []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("raw alloc of %d bytes failed: %v", size, r)
		}
	}()
	return rawAlloc(size), nil
}

// acquireStandardBlock is the context's acquire_standard_block operation:
// pop the free list, or fall through to a fresh raw allocation.
func (c *Context) acquireStandardBlock() *block {
	if c.stdBlocks != nil {
		b := c.stdBlocks
		c.stdBlocks = b.next
		b.next = nil
		return b
	}
	data := c.acquireRaw(c.stdsize)
	if data == nil {
		return nil
	}
	return &block{data: data}
}

// releaseStandardBlock is release_standard_block: push onto the free list.
// It never returns memory to the OS (spec's non-goal).
func (c *Context) releaseStandardBlock(b *block) {
	b.next = c.stdBlocks
	c.stdBlocks = b
}

// releaseNonstd is release_nonstd: insert a freed oversized block into the
// best-fit tree keyed by its size.
func (c *Context) releaseNonstd(b *block) {
	c.nonstdBlocks.insert(b.data)
}

// fetchNonstd is fetch_nonstd: best-fit fetch from the non-standard tree,
// falling back to a fresh raw allocation of exactly size bytes.
func (c *Context) fetchNonstd(size uint32) *block {
	if frag := c.nonstdBlocks.fetch(int(size)); frag != nil {
		return &block{data: frag}
	}
	data := c.acquireRaw(size)
	if data == nil {
		return nil
	}
	return &block{data: data}
}

// errorPoolOf lazily creates the internal pool that backs duplicated error
// messages (spec §4.5: "lazily allocate ctx.error_pool").
func (c *Context) errorPoolOf() *Pool {
	if c.errorPool == nil {
		c.errorPool, _ = newPool(c, nil, false)
		c.addRoot(c.errorPool)
	}
	return c.errorPool
}

// track registers a pool's cleanup callback in the pointer-to-registration
// map so code outside the pool tree can adopt it as a dependency
// (pool_track / track_this_pool, spec §4.4).
func (c *Context) track(p *Pool) {
	c.ptrToReg[p] = func(any) error { return p.Destroy() }
}

// Lookup returns the cleanup callback registered for a tracked pool, or
// nil if it was never tracked. This is the hook external subsystems use to
// bind their own lifetime to a pool (spec §4.4's "owners external to the
// pool tree").
func (c *Context) Lookup(p *Pool) CleanupFunc {
	return c.ptrToReg[p]
}
