package scratch

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

func Test_Acquire_Release(t *testing.T) {
	region := New(16)

	release, err := region.Acquire()
	require.Nil(t, err)
	assert.True(t, region.IsAcquired())

	_, err = region.Acquire()
	assert.ErrorIs(t, err, ErrRegionInUse)

	release()
	assert.False(t, region.IsAcquired())
	assert.Equal(t, uint64(1), region.Generation())

	release, err = region.Acquire()
	require.Nil(t, err)
	release()
}

func Test_Bump_Allocation(t *testing.T) {
	region := New(16)
	release, err := region.Acquire()
	require.Nil(t, err)

	first := region.Commit(append(region.Buffer(), 1, 2, 3))
	second := region.Commit(append(region.Buffer(), 4, 5))
	assert.Equal(t, []byte{1, 2, 3}, first)
	assert.Equal(t, []byte{4, 5}, second)
	assert.Equal(t, 5, region.InUse())

	release()
	assert.Equal(t, 0, region.InUse())

	// released memory is cleared
	assert.Equal(t, []byte{0, 0, 0}, first)
}

func Test_Grows_After_Overflow(t *testing.T) {
	region := New(4)
	release, err := region.Acquire()
	require.Nil(t, err)

	data := region.Commit(append(region.Buffer(), 1, 2, 3, 4, 5, 6))
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6}, data)
	assert.Equal(t, 0, region.InUse())

	release()
	assert.Equal(t, 12, region.Capacity())
}
