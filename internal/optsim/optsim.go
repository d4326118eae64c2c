// Package optsim computes the OPT reference simulator, a bypass-aware
// variant of Belady's MIN: a key only earns a reservation once its
// re-reference window shows BypassThreshold accesses, so one-hit-wonder
// keys below that threshold are never charged against capacity.
//
// Grounded on spec.md §4.8 and internal/minsim's barrier/trim machinery:
// this package reuses minsim's Reservation/History types and repeats the
// barrier/trim logic in its own code (see DESIGN.md: the
// original's sim_opt.hpp body was not read in full; its header-declared
// contract doesn't diverge from spec.md's statement of the one behavioral
// delta from MIN).
package optsim

import (
	"time"

	"flowlab.dev/flowlab/internal/flowkey"
	"flowlab.dev/flowlab/internal/minsim"
)

// DefaultBypassThreshold matches MIN: a key is reserved as soon as it is
// seen once.
const DefaultBypassThreshold = 1

// SimOPT is the bypass-gated variant of minsim.SimMIN.
type SimOPT struct {
	entries         int
	bypassThreshold int

	barrier    uint64
	trimOffset uint64

	reserved    map[flowkey.ID]minsim.History
	accessCount map[flowkey.ID]int
	capacity    []uint32

	hits           uint64
	compulsoryMiss uint64
	capacityMiss   uint64
	bypassMiss     uint64
}

// New builds a SimOPT for a cache of the given entry count. A
// bypassThreshold <= 0 falls back to DefaultBypassThreshold.
func New(entries, bypassThreshold int) *SimOPT {
	if bypassThreshold <= 0 {
		bypassThreshold = DefaultBypassThreshold
	}
	return &SimOPT{
		entries:         entries,
		bypassThreshold: bypassThreshold,
		reserved:        make(map[flowkey.ID]minsim.History),
		accessCount:     make(map[flowkey.ID]int),
	}
}

func (m *SimOPT) nextColumn() uint64 {
	return m.compulsoryMiss + m.capacityMiss
}

// Insert records the first-ever access to k at time t. When
// bypassThreshold is 1 this always opens a reservation (a compulsory
// miss, matching MIN exactly); otherwise the access only counts toward
// the re-reference window and no reservation is created yet.
func (m *SimOPT) Insert(k flowkey.ID, t time.Time) {
	m.accessCount[k]++
	if m.accessCount[k] < m.bypassThreshold {
		m.bypassMiss++
		return
	}

	column := m.nextColumn()
	m.compulsoryMiss++
	hist := append(m.reserved[k], newReservation(t, column))
	m.reserved[k] = hist
	m.capacity = append(m.capacity, 1)
}

// Update records a repeat access to k at time t, reporting whether it is
// a hit. Keys still below the bypass threshold are neither hits nor
// capacity misses; they are charged to BypassMiss until their
// re-reference window earns them a reservation.
func (m *SimOPT) Update(k flowkey.ID, t time.Time) bool {
	hist, reserved := m.reserved[k]

	if !reserved || len(hist) == 0 {
		m.accessCount[k]++
		if m.accessCount[k] < m.bypassThreshold {
			m.bypassMiss++
			return false
		}
		column := m.nextColumn()
		m.capacityMiss++
		m.reserved[k] = append(hist, newReservation(t, column))
		m.capacity = append(m.capacity, 1)
		return false
	}

	last := &hist[len(hist)-1]
	if last.Covers(m.barrier) {
		columnBegin := last.LastCol
		last.Hits++
		m.hits++

		column := m.nextColumn() - 1
		last.extend(t, column)
		m.reserved[k] = hist

		for i := columnBegin + 1; i <= column; i++ {
			idx := i - m.trimOffset
			if idx >= uint64(len(m.capacity)) {
				continue
			}
			m.capacity[idx]++
			if m.capacity[idx] >= uint32(m.entries) && i >= m.barrier {
				m.barrier = i
			}
		}
		return true
	}

	column := m.nextColumn()
	m.capacityMiss++
	m.reserved[k] = append(hist, newReservation(t, column))
	m.capacity = append(m.capacity, 1)
	return false
}

// newReservation mirrors minsim's unexported constructor; optsim keeps its
// own reservation slice management rather than importing minsim's private
// helpers, while sharing minsim.Reservation/History as the wire type so a
// single trainer can consume spans from either simulator.
func newReservation(t time.Time, col uint64) minsim.Reservation {
	return minsim.Reservation{FirstCol: col, LastCol: col, FirstTS: t, LastTS: t}
}

// Evictions partitions tracked, reserved keys into MIN-would-evict versus
// MIN-would-keep, exactly as minsim.SimMIN.Evictions does.
func (m *SimOPT) Evictions() (evict, keep map[flowkey.ID]struct{}) {
	spans, keepSet := m.EvictionSpans()
	evictSet := make(map[flowkey.ID]struct{}, len(spans))
	for k := range spans {
		evictSet[k] = struct{}{}
	}
	return evictSet, keepSet
}

// EvictionSpans is the span-preserving form of Evictions.
func (m *SimOPT) EvictionSpans() (spans map[flowkey.ID]minsim.History, keep map[flowkey.ID]struct{}) {
	spans = make(map[flowkey.ID]minsim.History)
	keep = make(map[flowkey.ID]struct{})

	for k, hist := range m.reserved {
		if len(hist) == 0 {
			continue
		}
		last := hist[len(hist)-1]
		if last.StrictlyCovers(m.barrier) {
			keep[k] = struct{}{}
			continue
		}
		if last.LastCol >= m.barrier {
			// Begins after the barrier: not yet classified.
			continue
		}
		cp := make(minsim.History, len(hist))
		copy(cp, hist)
		spans[k] = cp
	}
	return spans, keep
}

// TrimToBarrierSpans drops reservation columns the barrier has passed,
// mirroring minsim.SimMIN.TrimToBarrierSpans.
func (m *SimOPT) TrimToBarrierSpans() (evicted map[flowkey.ID]minsim.History, kept map[flowkey.ID]struct{}) {
	if m.barrier <= m.trimOffset {
		return map[flowkey.ID]minsim.History{}, map[flowkey.ID]struct{}{}
	}

	advance := m.barrier - m.trimOffset
	evicted = make(map[flowkey.ID]minsim.History)
	kept = make(map[flowkey.ID]struct{})

	for k, hist := range m.reserved {
		if len(hist) == 0 {
			delete(m.reserved, k)
			continue
		}
		last := hist[len(hist)-1]
		if last.StrictlyCovers(m.barrier) {
			kept[k] = struct{}{}
			m.reserved[k] = minsim.History{last}
			continue
		}
		if last.LastCol >= m.barrier {
			// Begins after the barrier: still live, left untouched.
			continue
		}
		cp := make(minsim.History, len(hist))
		copy(cp, hist)
		evicted[k] = cp
		delete(m.reserved, k)
	}

	if advance > uint64(len(m.capacity)) {
		advance = uint64(len(m.capacity))
	}
	m.capacity = append(m.capacity[:0], m.capacity[advance:]...)
	m.trimOffset += advance

	return evicted, kept
}

// Hits, CompulsoryMiss, CapacityMiss, BypassMiss report the running
// classification counters. Per spec.md's Open Question (b), BypassMiss
// accounting diverges from a pure conflict/capacity split when
// BypassThreshold > 1: keys bypassed below the re-reference window are
// neither hits nor capacity misses, so a caller computing conflict_hits
// against a fully-associative reference mirror the way internal/cachesim
// does may underreport it (not resolved here; documented in DESIGN.md).
func (m *SimOPT) Hits() uint64           { return m.hits }
func (m *SimOPT) CompulsoryMiss() uint64 { return m.compulsoryMiss }
func (m *SimOPT) CapacityMiss() uint64   { return m.capacityMiss }
func (m *SimOPT) BypassMiss() uint64     { return m.bypassMiss }
func (m *SimOPT) Barrier() uint64        { return m.barrier }
func (m *SimOPT) BypassThreshold() int   { return m.bypassThreshold }
