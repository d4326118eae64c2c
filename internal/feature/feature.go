// Package feature builds the fixed-width, 14-element feature vector the
// hashed perceptron trains and infers over.
//
// Grounded on original_source/flowpath/drivers/pcap/util_features.cpp's
// gather() (the .cpp, not the .hpp's stale 12-element declaration, is
// authoritative per spec.md's "14 16-bit features"). Only v[0..2] follow
// gather()'s f[0..2] formulas directly (control random, port/proto
// composite, dst-ip/16 xor dst-port); v[3..13] are reorganized and in
// places invented rather than ported field-for-field, since spec.md marks
// the feature formulas as illustrative ("example ... feature formulas"),
// not a fixed wire contract.
package feature

import (
	"math/rand/v2"

	"flowlab.dev/flowlab/internal/errors"
	"flowlab.dev/flowlab/internal/extract"
	"flowlab.dev/flowlab/internal/flowtable"
)

// NumFeatures is the fixed feature-vector width.
const NumFeatures = 14

// Vector is the fixed feature array. Vector[0] is a uniformly random
// control feature, intentionally excluded from the perceptron's decision
// sum (spec.md §4.4).
type Vector [NumFeatures]uint16

// BurstStats mirrors a shared, growable per-burst hit count, one entry per
// burst at MRU; shared between a cache entry and its blessed feature
// vector (spec.md §9's cyclic-reference design note).
type BurstStats struct {
	Counts []int
}

// Last returns the most recent burst count, or 0 if empty.
func (b *BurstStats) Last() int {
	if len(b.Counts) == 0 {
		return 0
	}
	return b.Counts[len(b.Counts)-1]
}

// blessed marks whether a Vector has been frozen onto a cache entry; once
// blessed, only Merge (from the same parent record) may mutate it.
type state struct {
	blessed  bool
	recordID uintptr
}

// Builder constructs feature vectors for one flow record, lazily, keeping
// the random control feature stable until (re-)built.
type Builder struct {
	rng   *rand.Rand
	built bool
	vec   Vector
	st    state
}

// NewBuilder creates a Builder using rng for the control feature. Passing a
// nil rng uses a fixed-seed PCG source, so the control feature sequence is
// the same on every run.
func NewBuilder(rng *rand.Rand) *Builder {
	if rng == nil {
		rng = rand.New(rand.NewPCG(1, 2))
	}
	return &Builder{rng: rng}
}

// Build computes the feature vector from f and rec, reusing burst, the
// shared burst-stats vector for the cache entry this flow currently
// occupies (nil if the flow has not yet been cached).
//
// Build is "pure except feature[0]" per spec.md §4.3: positions [1:14] are
// deterministic functions of f/rec/burst; index 0 is freshly randomized
// every call until Bless freezes the vector. Only v[1] and v[2] are direct
// ports of gather()'s f[1]/f[2]; the remaining slots are this package's
// own formulas, not a verbatim port of the rest of gather().
func (b *Builder) Build(f extract.Fields, rec *flowtable.Record, burst *BurstStats) Vector {
	var v Vector

	v[0] = uint16(b.rng.Uint32())

	minPort := f.SrcPort
	if f.DstPort < minPort {
		minPort = f.DstPort
	}
	v[1] = uint16(f.IPProto)<<8 ^ minPort

	v[2] = uint16(f.IPv4Dst>>16) ^ f.DstPort

	v[3] = uint16(f.FProto) | uint16(f.FTCP)<<2

	pkts := rec.Packets
	if pkts > 0xFFFF {
		pkts = 0xFFFF
	}
	v[4] = uint16(pkts)

	byteCount := rec.Bytes
	if byteCount > 0xFFFF {
		byteCount = 0xFFFF
	}
	v[5] = uint16(byteCount)

	burstCount := 0
	refCount := 0
	if burst != nil {
		burstCount = burst.Last()
		refCount = len(burst.Counts)
	}
	v[6] = uint16(burstCount)
	v[7] = uint16(refCount)

	v[8] = uint16(rec.TCPState())

	v[9] = uint16(f.TCPWindow)

	v[10] = uint16(rec.ACKCount) ^ uint16(rec.PSHCount)<<4 ^ uint16(rec.URGCount)<<8

	v[11] = uint16(rec.Fragments) ^ uint16(rec.Retransmits)<<4

	v[12] = uint16(f.VLANID) ^ uint16(f.IPTC)<<8

	v[13] = uint16(rec.LastSeq) ^ uint16(rec.LastSeq>>16)

	b.vec = v
	b.built = true
	return v
}

// Bless freezes the current built vector onto a cache entry identified by
// recordID; subsequent calls to Build on this Builder produce fresh working
// copies but Merge is restricted to the same recordID.
func (b *Builder) Bless(recordID uintptr) Vector {
	b.st.blessed = true
	b.st.recordID = recordID
	return b.vec
}

// Merge folds a newer packet's non-control features into an already-blessed
// vector, matching util_features.cpp's merge(): it is an error (BadState)
// to merge across two different parent flow records.
func Merge(blessed Vector, recordID uintptr, fresh Vector, freshRecordID uintptr) (Vector, error) {
	if recordID != freshRecordID {
		return blessed, errors.New(errors.BadState, "feature merge across mismatched flow records")
	}
	merged := blessed
	for i := 1; i < NumFeatures; i++ {
		merged[i] = fresh[i]
	}
	return merged, nil
}
