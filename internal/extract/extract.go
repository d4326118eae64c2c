package extract

import (
	"flowlab.dev/flowlab/internal/errors"
	"flowlab.dev/flowlab/internal/view"
)

// Extract parses c starting at layer start, populating and returning Fields
// plus the number of bytes successfully committed. On truncation or an
// inconsistency at any layer, the cursor is rolled back to its last commit
// and the fields gathered so far are returned with Malformed set — the
// packet is still processed at whatever layer granularity was achieved.
func Extract(c *view.Cursor, start HeaderType) (Fields, int, error) {
	var f Fields
	committed := 0

	layer := start
	for layer != Unknown {
		var next HeaderType
		var err error

		switch layer {
		case Ethernet:
			next, err = extractEthernet(c, &f)
		case IPv4:
			next, err = extractIPv4(c, &f)
		case IPv6:
			next, err = extractIPv6(c, &f)
		case TCP:
			next, err = extractTCP(c, &f)
		case UDP:
			next, err = extractUDP(c, &f)
		case ICMPv4, ICMPv6:
			next, err = extractICMP(c, &f)
		default:
			next, err = Unknown, nil
		}

		if err != nil {
			c.Rollback()
			f.Malformed = true
			committed = c.AbsoluteBytes() - c.Bytes()
			return f, committed, nil
		}

		c.Commit()
		layer = next
	}

	committed = c.AbsoluteBytes() - c.Bytes()
	return f, committed, nil
}

func extractEthernet(c *view.Cursor, f *Fields) (HeaderType, error) {
	dst, err := c.GetBytes(6)
	if err != nil {
		return Unknown, err
	}
	src, err := c.GetBytes(6)
	if err != nil {
		return Unknown, err
	}
	f.EthDst = macToUint64(dst)
	f.EthSrc = macToUint64(src)

	ethType, err := c.Get16()
	if err != nil {
		return Unknown, err
	}

	// Skip nested VLAN tags; only the outermost vlan_id is recorded, per
	// spec.md §4.1.
	for ethType == EthTypeVLAN {
		tci, err := c.Get16()
		if err != nil {
			return Unknown, err
		}
		if f.VLANID == 0 {
			f.VLANID = tci & 0x0FFF
		}
		ethType, err = c.Get16()
		if err != nil {
			return Unknown, err
		}
	}
	f.EthType = ethType

	switch ethType {
	case EthTypeIPv4:
		f.FProto |= ProtoFlagIPv4
		return IPv4, nil
	case EthTypeIPv6:
		f.FProto |= ProtoFlagIPv6
		return IPv6, nil
	default:
		return Unknown, nil
	}
}

func macToUint64(b []byte) uint64 {
	var v uint64
	for _, x := range b {
		v = v<<8 | uint64(x)
	}
	return v
}

func extractIPv4(c *view.Cursor, f *Fields) (HeaderType, error) {
	b0, err := c.Get8()
	if err != nil {
		return Unknown, err
	}
	version := b0 >> 4
	ihl := b0 & 0x0F
	if version != 4 {
		return Unknown, errors.New(errors.Inconsistent, "ipv4 version field is not 4")
	}
	if ihl < 5 {
		return Unknown, errors.New(errors.Inconsistent, "ipv4 ihl below minimum header size")
	}

	tosByte, err := c.Get8()
	if err != nil {
		return Unknown, err
	}
	f.IPTC = tosByte

	totalLength, err := c.Get16()
	if err != nil {
		return Unknown, err
	}
	f.IPLength = totalLength

	if int(totalLength) > c.Bytes()+4 { // +4 already consumed (version/ihl/tos/totallen minus header already counted)
		// Not fatal and not logged: a total length beyond the captured
		// bytes is tolerated and the extractor still advances.
	}

	// identification (2 bytes) skipped
	if _, err := c.Get16(); err != nil {
		return Unknown, err
	}

	flagsFrag, err := c.Get16()
	if err != nil {
		return Unknown, err
	}
	flags := IPFlags((flagsFrag >> 13) & 0x7)
	fragOffset := flagsFrag & 0x1FFF
	f.FIP = flags
	f.IPFragOffset = fragOffset

	// ttl (1) skipped
	if _, err := c.Get8(); err != nil {
		return Unknown, err
	}
	proto, err := c.Get8()
	if err != nil {
		return Unknown, err
	}
	f.IPProto = proto

	// checksum (2) skipped
	if _, err := c.Get16(); err != nil {
		return Unknown, err
	}

	src, err := c.Get32()
	if err != nil {
		return Unknown, err
	}
	dst, err := c.Get32()
	if err != nil {
		return Unknown, err
	}
	f.IPv4Src = src
	f.IPv4Dst = dst

	// Skip IPv4 options, if any: ihl is in 32-bit words, 20 bytes fixed.
	optBytes := int(ihl-5) * 4
	if optBytes > 0 {
		if err := c.Discard(optBytes); err != nil {
			return Unknown, err
		}
	}

	if fragOffset != 0 {
		f.Fragment = true
		return Unknown, nil
	}

	return nextForProto(f, proto)
}

func nextForProto(f *Fields, proto uint8) (HeaderType, error) {
	switch proto {
	case IPProtoTCP:
		f.FProto |= ProtoFlagTCP
		return TCP, nil
	case IPProtoUDP:
		f.FProto |= ProtoFlagUDP
		return UDP, nil
	case IPProtoICMP:
		return ICMPv4, nil
	case IPProtoIPv6ICMP:
		return ICMPv6, nil
	default:
		return Unknown, nil
	}
}

func extractIPv6(c *view.Cursor, f *Fields) (HeaderType, error) {
	w0, err := c.Get32()
	if err != nil {
		return Unknown, err
	}
	version := w0 >> 28
	if version != 6 {
		return Unknown, errors.New(errors.Inconsistent, "ipv6 version field is not 6")
	}
	f.IPTC = uint8((w0 >> 20) & 0xFF)
	f.IPFlowLabel = w0 & 0xFFFFF

	payloadLen, err := c.Get16()
	if err != nil {
		return Unknown, err
	}
	f.IPLength = payloadLen

	nextHeader, err := c.Get8()
	if err != nil {
		return Unknown, err
	}
	f.IPProto = nextHeader

	// hop limit (1) skipped
	if _, err := c.Get8(); err != nil {
		return Unknown, err
	}

	src, err := c.GetBytes(16)
	if err != nil {
		return Unknown, err
	}
	dst, err := c.GetBytes(16)
	if err != nil {
		return Unknown, err
	}
	copy(f.IPv6Src[:], src)
	copy(f.IPv6Dst[:], dst)

	// Open Question (a) in spec.md §9: the extension-header chain is a
	// stub. Any non-final next-header returns after L3.
	switch nextHeader {
	case IPProtoTCP:
		f.FProto |= ProtoFlagTCP
		return TCP, nil
	case IPProtoUDP:
		f.FProto |= ProtoFlagUDP
		return UDP, nil
	case IPProtoIPv6ICMP:
		return ICMPv6, nil
	default:
		return Unknown, nil
	}
}

func extractTCP(c *view.Cursor, f *Fields) (HeaderType, error) {
	srcPort, err := c.Get16()
	if err != nil {
		return Unknown, err
	}
	dstPort, err := c.Get16()
	if err != nil {
		return Unknown, err
	}
	f.SrcPort = srcPort
	f.DstPort = dstPort

	seq, err := c.Get32()
	if err != nil {
		return Unknown, err
	}
	ack, err := c.Get32()
	if err != nil {
		return Unknown, err
	}
	f.TCPSeqNum = seq
	f.TCPAckNum = ack

	offsetReserved, err := c.Get8()
	if err != nil {
		return Unknown, err
	}
	dataOffset := offsetReserved >> 4
	f.TCPOffset = dataOffset
	if dataOffset < 5 {
		return Unknown, errors.New(errors.Inconsistent, "tcp data offset below minimum header size")
	}

	flagsByte, err := c.Get8()
	if err != nil {
		return Unknown, err
	}
	nsBit := (offsetReserved & 0x1)
	flags := TCPFlags(flagsByte)
	if nsBit != 0 {
		flags |= TCPFlagNS
	}
	f.FTCP = flags

	window, err := c.Get16()
	if err != nil {
		return Unknown, err
	}
	f.TCPWindow = window

	// checksum (2) + urgent pointer (2) skipped
	if _, err := c.Get32(); err != nil {
		return Unknown, err
	}

	// Skip TCP options per spec.md §4.1: (data_offset - 5) * 4 bytes.
	optBytes := int(dataOffset-5) * 4
	if optBytes > 0 {
		if err := c.Discard(optBytes); err != nil {
			return Unknown, err
		}
	}

	return Unknown, nil
}

func extractUDP(c *view.Cursor, f *Fields) (HeaderType, error) {
	srcPort, err := c.Get16()
	if err != nil {
		return Unknown, err
	}
	dstPort, err := c.Get16()
	if err != nil {
		return Unknown, err
	}
	f.SrcPort = srcPort
	f.DstPort = dstPort

	// length (2) + checksum (2)
	if _, err := c.Get32(); err != nil {
		return Unknown, err
	}

	if srcPort == 53 || dstPort == 53 {
		if name, ok := peekDNSQName(c); ok {
			f.DNSQName = name
		}
	}

	return Unknown, nil
}

func extractICMP(c *view.Cursor, f *Fields) (HeaderType, error) {
	// type/code pair, reused as a pseudo port-pair so flowkey.Pack can stay
	// uniform across protocols.
	typ, err := c.Get8()
	if err != nil {
		return Unknown, err
	}
	code, err := c.Get8()
	if err != nil {
		return Unknown, err
	}
	f.SrcPort = uint16(typ)
	f.DstPort = uint16(code)
	return Unknown, nil
}
