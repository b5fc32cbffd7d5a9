// Command pocoredemo exercises the pool package end to end: a root
// context, a coalescing child pool, a cleanup registration, and the
// unhandled-error diagnostic log.
package main

import (
	"fmt"

	"github.com/rhuijben/pocore/pool"
)

func main() {
	ctx := pool.NewContext(pool.WithTracing(true))
	defer ctx.Destroy()

	root, err := pool.Root(ctx)
	if err != nil {
		fmt.Println("root:", err)
		return
	}

	child, err := pool.CreateCoalescing(root)
	if err != nil {
		fmt.Println("child:", err)
		return
	}
	child.RegisterCleanup(nil, func(any) error {
		fmt.Println("child pool cleared")
		return nil
	})

	buf, err := child.Alloc(128)
	if err != nil {
		fmt.Println("alloc:", err)
		return
	}
	copy(buf, "pocoredemo")
	fmt.Printf("allocated %d bytes: %q\n", len(buf), buf[:10])
	child.Freemem(buf, len(buf))

	e := pool.NewError(ctx, 1, "example failure")
	wrapped := pool.Wrap(ctx, 2, "while running demo", e)
	fmt.Println("error:", wrapped)
	pool.Handled(wrapped)

	stats := ctx.Stats()
	fmt.Printf("blocks acquired=%d released=%d bytes-in-use=%d\n",
		stats.BlockAllocs, stats.BlockReleases, stats.BytesInUse)
}
