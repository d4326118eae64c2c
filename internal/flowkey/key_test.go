package flowkey

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPackRoundTrip(t *testing.T) {
	k := Pack(0x0A000001, 0x0A000002, 1234, 80, ProtoTCP)

	require.Equal(t, uint32(0x0A000001), k.SrcIP())
	require.Equal(t, uint32(0x0A000002), k.DstIP())
	require.Equal(t, uint16(1234), k.SrcPort())
	require.Equal(t, uint16(80), k.DstPort())
	require.Equal(t, ProtoTCP, k.Proto())
}

func TestKeyComparable(t *testing.T) {
	a := Pack(1, 2, 3, 4, ProtoUDP)
	b := Pack(1, 2, 3, 4, ProtoUDP)
	c := Pack(1, 2, 3, 5, ProtoUDP)

	require.Equal(t, a, b)
	require.NotEqual(t, a, c)

	m := map[Key]int{a: 1}
	_, ok := m[b]
	require.True(t, ok)
}

func TestIDAllocatorMonotonic(t *testing.T) {
	var a IDAllocator
	first := a.Next()
	second := a.Next()
	require.Equal(t, ID(1), first)
	require.Equal(t, ID(2), second)
	require.Greater(t, second, first)
}

func TestKeyString(t *testing.T) {
	k := Pack(0x0A000001, 0x0A000002, 1234, 80, ProtoTCP)
	require.Contains(t, k.String(), "10.0.0.1")
	require.Contains(t, k.String(), "10.0.0.2")
}
