package view

import (
	"testing"

	"flowlab.dev/flowlab/internal/errors"
	"github.com/stretchr/testify/require"
)

func TestGetAdvancesAndCommits(t *testing.T) {
	buf := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06}
	c := NewCursor(buf)

	v8, err := c.Get8()
	require.NoError(t, err)
	require.Equal(t, uint8(0x01), v8)
	require.Equal(t, 5, c.Bytes())

	v16, err := c.Get16()
	require.NoError(t, err)
	require.Equal(t, uint16(0x0203), v16)

	c.Commit()
	require.Equal(t, 3, c.CommittedBytes())
}

func TestRollbackRestoresCheckpoint(t *testing.T) {
	buf := []byte{0xAA, 0xBB, 0xCC, 0xDD}
	c := NewCursor(buf)
	c.Commit()

	_, err := c.Get16()
	require.NoError(t, err)
	require.Equal(t, 2, c.Bytes())

	c.Rollback()
	require.Equal(t, 4, c.Bytes())
}

func TestTruncatedOnInsufficientBytes(t *testing.T) {
	c := NewCursor([]byte{0x01})
	_, err := c.Get16()
	require.Error(t, err)
	require.Equal(t, errors.Truncated, errors.GetKind(err))
}

func TestRevertRestoresAbsoluteRange(t *testing.T) {
	buf := []byte{1, 2, 3, 4, 5}
	c := NewCursor(buf)
	_, _ = c.Get8()
	c.Commit()
	_, _ = c.Get8()

	c.Revert()
	require.Equal(t, 5, c.Bytes())
}

func TestPeekDoesNotAdvance(t *testing.T) {
	c := NewCursor([]byte{0x10, 0x20})
	v, err := c.Peek8()
	require.NoError(t, err)
	require.Equal(t, uint8(0x10), v)
	require.Equal(t, 2, c.Bytes())
}
