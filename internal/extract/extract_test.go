package extract

import (
	"encoding/binary"
	"testing"

	"flowlab.dev/flowlab/internal/view"
	"github.com/stretchr/testify/require"
)

func buildEthIPv4TCP(t *testing.T, srcPort, dstPort uint16, flags TCPFlags) []byte {
	t.Helper()
	buf := make([]byte, 14+20+20)

	// Ethernet: dst(6) src(6) ethertype(2)
	copy(buf[0:6], []byte{1, 2, 3, 4, 5, 6})
	copy(buf[6:12], []byte{6, 5, 4, 3, 2, 1})
	binary.BigEndian.PutUint16(buf[12:14], EthTypeIPv4)

	ip := buf[14:34]
	ip[0] = 0x45 // version=4, ihl=5
	ip[1] = 0
	binary.BigEndian.PutUint16(ip[2:4], uint16(len(ip)+20))
	binary.BigEndian.PutUint16(ip[4:6], 0) // id
	binary.BigEndian.PutUint16(ip[6:8], 0) // flags/frag
	ip[8] = 64                             // ttl
	ip[9] = IPProtoTCP
	binary.BigEndian.PutUint16(ip[10:12], 0) // checksum
	binary.BigEndian.PutUint32(ip[12:16], 0x0A000001)
	binary.BigEndian.PutUint32(ip[16:20], 0x0A000002)

	tcp := buf[34:54]
	binary.BigEndian.PutUint16(tcp[0:2], srcPort)
	binary.BigEndian.PutUint16(tcp[2:4], dstPort)
	binary.BigEndian.PutUint32(tcp[4:8], 1000) // seq
	binary.BigEndian.PutUint32(tcp[8:12], 0)   // ack
	tcp[12] = 5 << 4                           // data offset = 5, no options
	tcp[13] = byte(flags)
	binary.BigEndian.PutUint16(tcp[14:16], 65535) // window

	return buf
}

func TestExtractEthIPv4TCP(t *testing.T) {
	buf := buildEthIPv4TCP(t, 1234, 80, TCPFlagSYN)
	c := view.NewCursor(buf)

	f, n, err := Extract(c, Ethernet)
	require.NoError(t, err)
	require.False(t, f.Malformed)
	require.Greater(t, n, 0)

	require.Equal(t, uint32(0x0A000001), f.IPv4Src)
	require.Equal(t, uint32(0x0A000002), f.IPv4Dst)
	require.Equal(t, uint16(1234), f.SrcPort)
	require.Equal(t, uint16(80), f.DstPort)
	require.True(t, f.FTCP.Has(TCPFlagSYN))
	require.True(t, f.FProto.Has(ProtoFlagIPv4))
	require.True(t, f.FProto.Has(ProtoFlagTCP))
}

func TestExtractTruncatedRollsBack(t *testing.T) {
	buf := buildEthIPv4TCP(t, 1, 2, TCPFlagSYN)
	truncated := buf[:20] // cuts off mid-IPv4-header

	c := view.NewCursor(truncated)
	f, _, err := Extract(c, Ethernet)
	require.NoError(t, err)
	require.True(t, f.Malformed)
}

func TestExtractVLANStrip(t *testing.T) {
	inner := buildEthIPv4TCP(t, 10, 20, TCPFlagACK)
	buf := make([]byte, 0, len(inner)+4)
	buf = append(buf, inner[0:12]...)
	vlanTag := make([]byte, 4)
	binary.BigEndian.PutUint16(vlanTag[0:2], EthTypeVLAN)
	binary.BigEndian.PutUint16(vlanTag[2:4], 42)
	buf = append(buf, vlanTag...)
	buf = append(buf, inner[12:]...)

	c := view.NewCursor(buf)
	f, _, err := Extract(c, Ethernet)
	require.NoError(t, err)
	require.Equal(t, uint16(42), f.VLANID)
	require.Equal(t, uint16(10), f.SrcPort)
}

func TestExtractFragmentStopsAtL3(t *testing.T) {
	buf := buildEthIPv4TCP(t, 1, 2, TCPFlagSYN)
	binary.BigEndian.PutUint16(buf[14+6:14+8], 0x2001) // MF bit set, fragment offset 1: a non-first fragment

	c := view.NewCursor(buf)
	f, _, err := Extract(c, Ethernet)
	require.NoError(t, err)
	require.True(t, f.Fragment)
	require.Equal(t, uint16(0), f.SrcPort)
}
