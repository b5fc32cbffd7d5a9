package pool

import (
	"encoding/binary"
	"errors"
)

// ErrOutOfMemory is returned by Alloc when the context's OOMHandler chose
// OOMFail instead of aborting the process.
var ErrOutOfMemory = errors.New("pool: out of memory")

// ErrPoolDestroyed is returned by Alloc on a pool that has already been
// destroyed. In debug contexts (Config.Debug) the same condition panics
// instead, mirroring the C source's poisoned-pointer trap (spec §7).
var ErrPoolDestroyed = errors.New("pool: use of destroyed pool")

// Pool is an allocation arena: a bump-pointer allocator over a chain of
// blocks borrowed from its Context, with its own remnant tree for reused
// fragments and a list of oversized blocks charged to it (spec §3, §4.3).
type Pool struct {
	ctx *Context

	parent  *Pool
	sibling *Pool
	child   *Pool

	firstBlock   *block
	currentBlock *block
	current      int // bump offset into currentBlock.data

	remnants     *memtree
	nonstdBlocks []*block

	coalesce bool
	track    trackRecord

	destroyed bool
}

// Root creates a pool with no parent, directly owned by ctx (pool_root).
func Root(ctx *Context) (*Pool, error) {
	p, err := newPool(ctx, nil, false)
	if err != nil {
		return nil, err
	}
	ctx.addRoot(p)
	return p, nil
}

// Create creates a child pool of parent (pool_create). It is linked at the
// head of parent's child list.
func Create(parent *Pool) (*Pool, error) {
	return newPool(parent.ctx, parent, false)
}

// CreateCoalescing creates a child pool in coalescing mode
// (pool_create_coalescing): every Alloc is followed by a trailing size word
// so Freemem can recover the allocation's true length without being told.
func CreateCoalescing(parent *Pool) (*Pool, error) {
	return newPool(parent.ctx, parent, true)
}

func newPool(ctx *Context, parent *Pool, coalesce bool) (*Pool, error) {
	blk := ctx.acquireStandardBlock()
	if blk == nil {
		return nil, ErrOutOfMemory
	}

	p := &Pool{
		ctx:          ctx,
		parent:       parent,
		firstBlock:   blk,
		currentBlock: blk,
		remnants:     newMemtree(),
		coalesce:     coalesce,
	}

	if parent != nil {
		p.sibling = parent.child
		parent.child = p
	}
	return p, nil
}

// Track registers this pool in the context's tracking registry
// (pool_track), so code outside the pool tree can look up its cleanup
// callback via Context.Lookup and adopt it as a dependency.
func (p *Pool) Track() {
	p.ctx.track(p)
}

// RegisterCleanup registers an owner whose fn runs, with tracked passed
// back, the next time this pool is cleared or destroyed. Owners run before
// children, head-removed in roughly LIFO order (spec §4.4).
func (p *Pool) RegisterCleanup(tracked any, fn CleanupFunc) {
	p.track.register(tracked, fn)
}

// Alloc carves n bytes out of the pool (spec §4.3's four-step search
// order: bump pointer, remnant best-fit, fresh standard block, oversized
// fallback to the context's non-standard tree).
func (p *Pool) Alloc(n uint32) ([]byte, error) {
	if p.destroyed {
		panicIfDebug(p.ctx)
		return nil, ErrPoolDestroyed
	}

	base := alignUp(n)
	total := base
	if p.coalesce {
		total = base + 4
	}

	raw, err := p.carve(total)
	if err != nil {
		return nil, err
	}

	if p.coalesce {
		binary.LittleEndian.PutUint32(raw[base:base+4], n)
	}

	// Three-index slicing caps capacity at exactly `total`: without it, a
	// bump-allocated result's capacity would silently extend into
	// whatever the pool carves out next, and append() on the caller's
	// slice could corrupt a later allocation.
	return raw[:n:total], nil
}

func panicIfDebug(ctx *Context) {
	if ctx.cfg.Debug {
		panic("pocore: use of destroyed pool")
	}
}

// carve returns a freshly sourced, exactly total-byte slice, in the search
// order spec §4.3 specifies.
func (p *Pool) carve(total uint32) ([]byte, error) {
	// 1. Bump pointer in the current block.
	if p.current+int(total) <= len(p.currentBlock.data) {
		start := p.current
		p.current += int(total)
		return p.currentBlock.data[start : start+int(total)], nil
	}

	// 2. Best-fit from this pool's own remnant tree.
	if frag := p.remnants.fetch(int(total)); frag != nil {
		if len(frag) > int(total)+MinFragmentSize {
			p.remnants.insert(frag[total:])
		}
		return frag[:total], nil
	}

	// 3. A fresh standard block, if the request fits in one. Unsigned
	// arithmetic throughout means there is no underflow to guard against
	// here (spec §9's open question) — blocks never reserve header space
	// in this port, so the comparison is exactly "does it fit".
	if total <= p.ctx.stdsize {
		if tail := p.currentBlock.data[p.current:]; len(tail) >= MinFragmentSize {
			p.remnants.insert(tail)
		}

		blk := p.ctx.acquireStandardBlock()
		if blk == nil {
			return nil, ErrOutOfMemory
		}
		p.currentBlock.next = blk
		p.currentBlock = blk
		p.current = int(total)
		return blk.data[:total], nil
	}

	// 4. Oversized: satisfied from the context's non-standard tree, never
	// split into this pool's remnants (spec §4.3 permits splitting the
	// excess but does not require it; see DESIGN.md for why this port
	// does not).
	blk := p.ctx.fetchNonstd(total)
	if blk == nil {
		return nil, ErrOutOfMemory
	}
	p.nonstdBlocks = append(p.nonstdBlocks, blk)
	return blk.data[:total], nil
}

// Freemem returns mem, sized n bytes, to the pool's remnant tree
// (pool_freemem). In coalescing pools n is advisory only: the true extent
// of the original allocation is recovered from mem's capacity, which
// Alloc deliberately left wide enough to include the trailing size word.
// In non-coalescing pools the caller's n is used as given, except that an n
// that is negative or exceeds cap(mem) is replaced by len(mem); any other
// wrong value corrupts the remnant tree and is not detected.
func (p *Pool) Freemem(mem []byte, n int) {
	var region []byte
	if p.coalesce {
		region = mem[:cap(mem)]
	} else {
		if n < 0 || n > cap(mem) {
			n = len(mem)
		}
		region = mem[:n]
	}
	if len(region) < MinFragmentSize {
		return
	}
	p.remnants.insert(region)
}

// Clear runs the cleanup protocol (spec §4.4) and resets the pool to a
// freshly-created state: one block, no remnants, bump pointer back at the
// start. It is idempotent and re-entrant with respect to cleanups that
// register new owners or create new children.
func (p *Pool) Clear() error {
	if p.destroyed {
		return nil
	}

	for {
		for _, err := range p.track.drainOnce() {
			p.ctx.recordCleanupError(err)
		}
		for p.child != nil {
			// Destroy unlinks itself from p.child.
			if err := p.child.Destroy(); err != nil {
				p.ctx.recordCleanupError(err)
			}
		}
		if p.track.empty() && p.child == nil {
			break
		}
	}

	for _, nb := range p.nonstdBlocks {
		p.ctx.releaseNonstd(nb)
	}
	p.nonstdBlocks = nil

	for b := p.firstBlock.next; b != nil; {
		next := b.next
		p.ctx.releaseStandardBlock(b)
		b = next
	}
	p.firstBlock.next = nil
	p.currentBlock = p.firstBlock
	p.current = 0
	p.remnants = newMemtree()
	return nil
}

// recordCleanupError is the context-side half of spec §7's "cleanup
// callbacks may not propagate errors out of pool_clear": it surfaces the
// failure as an ordinary tracked Error instead.
func (c *Context) recordCleanupError(err error) {
	if err == nil {
		return
	}
	NewErrorf(c, CodeSuccess-100, "cleanup callback failed: %v", err)
}

// Destroy clears the pool, unlinks it from its parent (or the owning
// context's root set), and returns its first block to the context's
// standard-block free list (pool_destroy). It is safe to call more than
// once.
func (p *Pool) Destroy() error {
	if p.destroyed {
		return nil
	}
	if err := p.Clear(); err != nil {
		return err
	}

	if p.parent != nil {
		p.parent.unlinkChild(p)
	} else {
		p.ctx.removeRoot(p)
	}

	p.ctx.releaseStandardBlock(p.firstBlock)
	p.firstBlock = nil
	p.currentBlock = nil
	p.destroyed = true
	return nil
}

func (parent *Pool) unlinkChild(target *Pool) {
	if parent.child == target {
		parent.child = target.sibling
		target.sibling = nil
		return
	}
	for cur := parent.child; cur != nil; cur = cur.sibling {
		if cur.sibling == target {
			cur.sibling = target.sibling
			target.sibling = nil
			return
		}
	}
}

// Strdup duplicates s into the pool, without a trailing NUL (Go strings
// are not NUL-terminated; callers needing a C-compatible buffer should use
// StrNulDup).
func Strdup(p *Pool, s string) (string, error) {
	buf, err := p.Alloc(uint32(len(s)))
	if err != nil {
		return "", err
	}
	copy(buf, s)
	return string(buf), nil
}

// StrNulDup is strdup's literal C counterpart: it duplicates s into the
// pool followed by one trailing null byte, as testable property §8.6
// requires of strmemdup.
func StrNulDup(p *Pool, s string) ([]byte, error) {
	return MemNulDup(p, []byte(s))
}

// StrnDup is strndup: duplicate at most n bytes of s, NUL-terminated.
func StrnDup(p *Pool, s string, n int) ([]byte, error) {
	if n < len(s) {
		s = s[:n]
	}
	return StrNulDup(p, s)
}

// MemDup is memdup: duplicate the len(src) bytes of src into the pool, with
// no trailing terminator.
func MemDup(p *Pool, src []byte) ([]byte, error) {
	buf, err := p.Alloc(uint32(len(src)))
	if err != nil {
		return nil, err
	}
	copy(buf, src)
	return buf, nil
}

// MemNulDup is strmemdup: duplicate src into the pool followed by one
// trailing null byte.
func MemNulDup(p *Pool, src []byte) ([]byte, error) {
	buf, err := p.Alloc(uint32(len(src) + 1))
	if err != nil {
		return nil, err
	}
	copy(buf, src)
	buf[len(src)] = 0
	return buf, nil
}
