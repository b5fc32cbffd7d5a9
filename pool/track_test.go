package pool

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrackRecordDrainOnceRunsAllRegisteredOwners(t *testing.T) {
	var tr trackRecord
	var ran []int
	tr.register(1, func(v any) error {
		ran = append(ran, v.(int))
		return nil
	})
	tr.register(2, func(v any) error {
		ran = append(ran, v.(int))
		return nil
	})

	errs := tr.drainOnce()
	assert.Empty(t, errs)
	assert.ElementsMatch(t, []int{1, 2}, ran)
	assert.True(t, tr.empty())
}

func TestTrackRecordDrainOnceCollectsErrorsButRunsEveryOwner(t *testing.T) {
	var tr trackRecord
	want := errors.New("boom")
	ranSecond := false
	tr.register(nil, func(any) error { return want })
	tr.register(nil, func(any) error {
		ranSecond = true
		return nil
	})

	errs := tr.drainOnce()
	assert.True(t, ranSecond)
	assert.Contains(t, errs, want)
}

func TestTrackRecordDrainOnceDoesNotRunOwnersRegisteredDuringItself(t *testing.T) {
	var tr trackRecord
	var ran []string
	tr.register(nil, func(any) error {
		ran = append(ran, "first")
		tr.register(nil, func(any) error {
			ran = append(ran, "second")
			return nil
		})
		return nil
	})

	tr.drainOnce()
	assert.Equal(t, []string{"first"}, ran)
	assert.False(t, tr.empty())

	tr.drainOnce()
	assert.Equal(t, []string{"first", "second"}, ran)
	assert.True(t, tr.empty())
}

func TestContextTrackAndLookupRoundTrip(t *testing.T) {
	ctx := NewContext()
	p, err := Root(ctx)
	assert.NoError(t, err)

	assert.Nil(t, ctx.Lookup(p))
	p.Track()
	cleanup := ctx.Lookup(p)
	assert.NotNil(t, cleanup)

	assert.NoError(t, cleanup(nil))
	assert.True(t, p.destroyed)
}
