package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewContextAppliesOptionsAndClampsStdSize(t *testing.T) {
	ctx := NewContext(WithStdSize(4))
	assert.Equal(t, uint32(MinStdSize), ctx.stdsize)

	ctx2 := NewContext()
	assert.Equal(t, uint32(DefaultStdSize), ctx2.stdsize)
}

func TestAcquireAndReleaseStandardBlockReusesFreeList(t *testing.T) {
	ctx := NewContext()
	b1 := ctx.acquireStandardBlock()
	require.NotNil(t, b1)

	ctx.releaseStandardBlock(b1)
	b2 := ctx.acquireStandardBlock()
	assert.Same(t, b1, b2)
}

func TestFetchNonstdBestFitsThenFallsBackToFreshAlloc(t *testing.T) {
	ctx := NewContext()
	freed := &block{data: make([]byte, 4096)}
	ctx.releaseNonstd(freed)

	got := ctx.fetchNonstd(2048)
	require.NotNil(t, got)
	assert.Equal(t, 4096, len(got.data))

	fresh := ctx.fetchNonstd(1024)
	require.NotNil(t, fresh)
	assert.Equal(t, 1024, len(fresh.data))
}

func TestContextDestroyDestroysAllRootsAndIsIdempotent(t *testing.T) {
	ctx := NewContext()
	root1, err := Root(ctx)
	require.NoError(t, err)
	_, err = Root(ctx)
	require.NoError(t, err)

	_, err = root1.Alloc(32)
	require.NoError(t, err)

	ctx.Destroy()
	assert.Empty(t, ctx.roots)
	assert.True(t, root1.destroyed)

	assert.NotPanics(t, func() { ctx.Destroy() })
}

func TestLogUnhandledDoesNotMutateTheList(t *testing.T) {
	ctx := NewContext()
	NewError(ctx, 1, "a")
	NewError(ctx, 2, "b")

	ctx.LogUnhandled()
	assert.NotNil(t, ctx.Unhandled())
}

func TestErrorPoolOfIsLazyAndStable(t *testing.T) {
	ctx := NewContext()
	assert.Nil(t, ctx.errorPool)

	NewError(ctx, 1, "x")
	require.NotNil(t, ctx.errorPool)

	p := ctx.errorPoolOf()
	assert.Same(t, ctx.errorPool, p)
}
