// Package flowkey defines the packed 5-tuple flow key and the monotonic
// flow-id space used to name a flow across its lifetime, including the
// id-vector mapping that survives port reuse.
//
// Grounded on original_source/flowpath/drivers/pcap/util_extract.hpp's
// FlowKeyTuple / protocol constants; IANA protocol numbers are reused from
// gopacket/gopacket/layers rather than re-declared by hand.
package flowkey

import (
	"encoding/binary"
	"fmt"

	"github.com/gopacket/gopacket/layers"
)

// Protocol numbers relevant to this core, aliased from gopacket's IANA
// constants so the flow key and extractor agree with a widely used
// reference rather than a hand-picked literal table.
const (
	ProtoICMP     = uint8(layers.IPProtocolICMPv4)
	ProtoTCP      = uint8(layers.IPProtocolTCP)
	ProtoUDP      = uint8(layers.IPProtocolUDP)
	ProtoICMPv6   = uint8(layers.IPProtocolICMPv6)
	ProtoIPv6Frag = uint8(layers.IPProtocolIPv6Fragment)
	ProtoESP      = uint8(layers.IPProtocolESP)
	ProtoAH       = uint8(layers.IPProtocolAH)
)

// Key is the packed 13-byte flow key: src-ipv4(4) dst-ipv4(4) src-port(2)
// dst-port(2) proto(1). It is comparable and directly usable as a map key.
type Key [13]byte

// Pack builds a Key from the raw field values. Ports are not pre-sorted —
// the caller decides direction; the Flow Table is directional by design
// (spec.md §4.2 does not call for direction-independent keys).
func Pack(srcIP, dstIP uint32, srcPort, dstPort uint16, proto uint8) Key {
	var k Key
	binary.BigEndian.PutUint32(k[0:4], srcIP)
	binary.BigEndian.PutUint32(k[4:8], dstIP)
	binary.BigEndian.PutUint16(k[8:10], srcPort)
	binary.BigEndian.PutUint16(k[10:12], dstPort)
	k[12] = proto
	return k
}

// SrcIP, DstIP, SrcPort, DstPort, Proto decompose a Key back into its fields.
func (k Key) SrcIP() uint32    { return binary.BigEndian.Uint32(k[0:4]) }
func (k Key) DstIP() uint32    { return binary.BigEndian.Uint32(k[4:8]) }
func (k Key) SrcPort() uint16  { return binary.BigEndian.Uint16(k[8:10]) }
func (k Key) DstPort() uint16  { return binary.BigEndian.Uint16(k[10:12]) }
func (k Key) Proto() uint8     { return k[12] }

func printIP(ip uint32) string {
	return fmt.Sprintf("%d.%d.%d.%d", byte(ip>>24), byte(ip>>16), byte(ip>>8), byte(ip))
}

// String renders the key as a conventional 5-tuple string, grounded on
// util_extract.cpp's print_flow_key_string/make_flow_key_string.
func (k Key) String() string {
	return fmt.Sprintf("%s:%d -> %s:%d proto=%d", printIP(k.SrcIP()), k.SrcPort(), printIP(k.DstIP()), k.DstPort(), k.Proto())
}

// ID is a monotonic flow identifier, unique for the process lifetime.
type ID uint64

// IDAllocator hands out monotonically increasing flow-ids.
type IDAllocator struct {
	next ID
}

// Next returns the next unused ID.
func (a *IDAllocator) Next() ID {
	a.next++
	return a.next
}

// Count returns the number of IDs handed out so far.
func (a *IDAllocator) Count() uint64 { return uint64(a.next) }
