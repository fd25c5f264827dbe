package ooo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCDBSendInvisibleUntilExec(t *testing.T) {
	b := NewCDB(DefaultDepth, nil)
	require.NoError(t, b.Send(6, 3, 42))

	_, ok := b.GetStation(6)
	assert.False(t, ok, "a freshly posted entry must not be visible yet")

	b.Exec()
	v, ok := b.GetStation(6)
	require.True(t, ok)
	assert.Equal(t, uint32(42), v)

	b.Exec()
	_, ok = b.GetStation(6)
	assert.False(t, ok, "an entry must expire one cycle after becoming visible")
}

func TestCDBOverflow(t *testing.T) {
	b := NewCDB(DefaultDepth, nil)
	for i := 0; i < DefaultDepth; i++ {
		require.NoError(t, b.Send(uint8(i+1), uint32(i), uint32(i)))
	}
	err := b.Send(99, 0, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCDBOverflow)
}

func TestCDBHonorsConfiguredDepth(t *testing.T) {
	b := NewCDB(2, nil)
	require.NoError(t, b.Send(6, 1, 10))
	require.NoError(t, b.Send(7, 2, 20))

	err := b.Send(8, 3, 30)
	require.Error(t, err, "a 2-entry CDB must overflow on its third posted entry")
	assert.ErrorIs(t, err, ErrCDBOverflow)
}

func TestCDBGetStationMatchesOnlyOwnStation(t *testing.T) {
	b := NewCDB(DefaultDepth, nil)
	require.NoError(t, b.Send(6, 1, 10))
	require.NoError(t, b.Send(7, 2, 20))
	b.Exec()

	v, ok := b.GetStation(7)
	require.True(t, ok)
	assert.Equal(t, uint32(20), v)

	_, ok = b.GetStation(8)
	assert.False(t, ok)
}
