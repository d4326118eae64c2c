// Package flowtable maps packed 5-tuples to flow-ids and keeps per-flow
// state: packet/byte counters, TCP session flags, and retirement lifecycle.
//
// Grounded on grimm-is-flywall/internal/engine/traffic_store.go
// (MemoryTrafficStore's mutex-guarded map + TTL sweep goroutine idiom) and
// internal/kernel/flow.go (FlowState/Flow/Counter shape), with the exact
// lifecycle/retirement/sweep rules from spec.md §4.2 and the field list
// from original_source/.../util_extract.hpp's FlowRecord.
package flowtable

import (
	"time"

	"flowlab.dev/flowlab/internal/extract"
	"flowlab.dev/flowlab/internal/flowkey"
)

// RetireReason names why a Record left the table.
type RetireReason int

const (
	RetireNone RetireReason = iota
	RetireSYNReuse
	RetireRST
	RetireFIN
	RetireTCPIdle
	RetireOtherIdle
	RetireBlacklisted
)

func (r RetireReason) String() string {
	switch r {
	case RetireSYNReuse:
		return "SYN_REUSE"
	case RetireRST:
		return "RST"
	case RetireFIN:
		return "FIN"
	case RetireTCPIdle:
		return "TCP_IDLE"
	case RetireOtherIdle:
		return "UDP_IDLE"
	case RetireBlacklisted:
		return "BLACKLISTED"
	default:
		return "NONE"
	}
}

// Record is the per-flow state kept while a flow is alive.
type Record struct {
	FlowID flowkey.ID
	Key    flowkey.Key

	Start time.Time
	Last  time.Time

	Packets uint64
	Bytes   uint64

	// Supplemental per-packet time series (spec.md §6 `timeseries` flag;
	// restored from original_source's FlowRecord::arrival_ns_ts_/byte_ts_).
	ArrivalDeltas []int64
	ByteSizes     []uint16

	LastSeq uint32

	SawSYN bool
	SawFIN bool
	SawRST bool

	ACKCount          uint64
	PSHCount          uint64
	URGCount          uint64
	Fragments         uint64
	Retransmits       uint64
	Directionality    int64

	Proto extract.ProtoFlags
}

// Alive reports whether the flow has not seen a FIN or RST.
func (r *Record) Alive() bool { return !(r.SawFIN || r.SawRST) }

// TCPState packs the 4-bit {isTCP, sawSYN, sawFIN, sawRST} nibble, matching
// util_extract.hpp's FlowRecord::tcp_state().
func (r *Record) TCPState() uint8 {
	var b uint8
	if r.Proto.Has(extract.ProtoFlagTCP) {
		b |= 1 << 0
	}
	if r.SawSYN {
		b |= 1 << 1
	}
	if r.SawFIN {
		b |= 1 << 2
	}
	if r.SawRST {
		b |= 1 << 3
	}
	return b
}

// idleTimeout returns the per-state idle timeout named in spec.md §4.2.
func (r *Record) idleTimeout() time.Duration {
	switch {
	case r.SawRST:
		return 10 * time.Second
	case r.SawFIN:
		return 60 * time.Second
	case r.Proto.Has(extract.ProtoFlagTCP):
		return 600 * time.Second
	default:
		return 120 * time.Second
	}
}

func (r *Record) idleReason() RetireReason {
	switch {
	case r.SawRST:
		return RetireRST
	case r.SawFIN:
		return RetireFIN
	case r.Proto.Has(extract.ProtoFlagTCP):
		return RetireTCPIdle
	default:
		return RetireOtherIdle
	}
}

// apply folds one packet's fields into the record, updating counters and
// session flags. ts is the packet's capture timestamp.
func (r *Record) apply(f extract.Fields, ts time.Time, origBytes uint32, timeseries bool) {
	if timeseries {
		r.ArrivalDeltas = append(r.ArrivalDeltas, ts.Sub(r.Last).Nanoseconds())
		size := origBytes
		if size > 0xFFFF {
			size = 0xFFFF
		}
		r.ByteSizes = append(r.ByteSizes, uint16(size))
	}

	r.Packets++
	r.Bytes += uint64(origBytes)
	r.Last = ts
	r.Proto = f.FProto

	if f.FProto.Has(extract.ProtoFlagTCP) {
		if f.FTCP.Has(extract.TCPFlagSYN) {
			r.SawSYN = true
		}
		if f.FTCP.Has(extract.TCPFlagFIN) {
			r.SawFIN = true
		}
		if f.FTCP.Has(extract.TCPFlagRST) {
			r.SawRST = true
		}
		if f.FTCP.Has(extract.TCPFlagACK) {
			r.ACKCount++
		}
		if f.FTCP.Has(extract.TCPFlagPSH) {
			r.PSHCount++
		}
		if f.FTCP.Has(extract.TCPFlagURG) {
			r.URGCount++
		}
		r.LastSeq = f.TCPSeqNum
	}
	if f.Fragment {
		r.Fragments++
	}
}
