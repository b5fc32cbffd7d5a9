package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemtreeInsertFetchBestFit(t *testing.T) {
	tr := newMemtree()
	tr.insert(make([]byte, 32))
	tr.insert(make([]byte, 128))
	tr.insert(make([]byte, 64))

	got := tr.fetch(50)
	require.NotNil(t, got)
	assert.Equal(t, 64, len(got))

	got = tr.fetch(64)
	require.NotNil(t, got)
	assert.Equal(t, 128, len(got))

	got = tr.fetch(32)
	require.NotNil(t, got)
	assert.Equal(t, 32, len(got))

	assert.Nil(t, tr.fetch(1))
}

func TestMemtreeSameSizeChainPromotion(t *testing.T) {
	tr := newMemtree()
	a := make([]byte, 40)
	b := make([]byte, 40)
	tr.insert(a)
	tr.insert(b)

	first := tr.fetch(40)
	require.NotNil(t, first)
	assert.False(t, tr.empty(), "same-size chain head still holds the tree slot")

	second := tr.fetch(40)
	require.NotNil(t, second)
	assert.True(t, tr.empty())

	assert.NotSame(t, &first[0], &second[0])
}

func TestMemtreeDiscardsUndersizedFragments(t *testing.T) {
	tr := newMemtree()
	tr.insert(make([]byte, MinFragmentSize-1))
	assert.True(t, tr.empty())

	tr.insert(make([]byte, MinFragmentSize))
	assert.False(t, tr.empty())
}

func TestMemtreeDrainVisitsEveryFragmentIncludingChains(t *testing.T) {
	tr := newMemtree()
	tr.insert(make([]byte, 32))
	tr.insert(make([]byte, 32))
	tr.insert(make([]byte, 96))

	var seen []int
	tr.drain(func(frag []byte) {
		seen = append(seen, len(frag))
	})

	assert.ElementsMatch(t, []int{32, 32, 96}, seen)
	assert.True(t, tr.empty())
}

func TestMemtreeInsertFetchRandomizedShape(t *testing.T) {
	tr := newMemtree()
	sizes := []int{17, 400, 64, 64, 19, 1024, 256, 31, 31, 31, 512}
	for _, s := range sizes {
		tr.insert(make([]byte, s))
	}

	var fetched []int
	for {
		got := tr.fetch(16)
		if got == nil {
			break
		}
		fetched = append(fetched, len(got))
	}
	assert.Len(t, fetched, len(sizes))
	assert.True(t, tr.empty())
}
