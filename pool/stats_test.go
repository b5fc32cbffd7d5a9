package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatsTracksBlockAllocationsAndReleases(t *testing.T) {
	ctx := NewContext(WithStdSize(MinStdSize))
	p, err := Root(ctx)
	require.NoError(t, err)

	_, err = p.Alloc(MinStdSize - 8) // exhausts the first block
	require.NoError(t, err)
	_, err = p.Alloc(64) // forces acquisition of a second block
	require.NoError(t, err)

	before := ctx.Stats()
	assert.GreaterOrEqual(t, before.BlockAllocs, uint64(2))
	assert.Equal(t, uint64(0), before.BlockReleases)

	ctx.Destroy()
	after := ctx.Stats()
	assert.Equal(t, after.BlockAllocs, after.BlockReleases)
	assert.Equal(t, uint64(0), after.BytesInUse)
}
