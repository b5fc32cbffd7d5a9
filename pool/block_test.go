package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAlignUpRoundsToAlignment(t *testing.T) {
	cases := map[uint32]uint32{
		0:   0,
		1:   Alignment,
		7:   Alignment,
		8:   8,
		100: 104,
		104: 104,
	}
	for in, want := range cases {
		assert.Equal(t, want, alignUp(in), "alignUp(%d)", in)
	}
}

func TestNewBlockSizeMatchesRequest(t *testing.T) {
	b := newBlock(128)
	assert.Equal(t, uint32(128), b.size())
	assert.Len(t, b.data, 128)
}
