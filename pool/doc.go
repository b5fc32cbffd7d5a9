// Package pool implements PoCore's hierarchical region allocator: a
// process-wide Context that caches raw memory blocks, and a tree of Pools
// that bump-allocate untyped byte ranges out of those blocks. A Pool is
// cleared or destroyed as a unit; individual allocations are never freed
// one at a time. Child pools are destroyed transitively with their parent,
// and cleanup callbacks registered on a pool run in a defined order when it
// is cleared or destroyed.
package pool
