package minsim

import (
	"time"

	"flowlab.dev/flowlab/internal/flowkey"
)

// SimMIN computes Belady's MIN classification online: as accesses arrive it
// maintains a capacity-vector scoreboard over "columns" (miss sequence
// numbers, counting compulsory and capacity misses) and advances a barrier past any column fully saturated
// by reservations, so that any reservation the barrier has passed can never
// retroactively become a capacity miss. Grounded on
// original_source/flowpath/drivers/pcap/sim_min.hpp's SimMIN<Key>.
type SimMIN struct {
	entries int

	barrier    uint64
	trimOffset uint64

	reserved map[flowkey.ID]History
	capacity []uint32

	hits           uint64
	capacityMiss   uint64
	compulsoryMiss uint64

	maxRows    int
	maxColumns int
}

// New builds a SimMIN tracking optimal behavior for a cache of the given
// entry count.
func New(entries int) *SimMIN {
	return &SimMIN{
		entries:  entries,
		reserved: make(map[flowkey.ID]History),
	}
}

// Insert records the first-ever access to k at time t. Always a compulsory
// miss.
func (m *SimMIN) Insert(k flowkey.ID, t time.Time) {
	column := m.compulsoryMiss + m.capacityMiss
	m.compulsoryMiss++

	hist := m.reserved[k]
	hist = append(hist, newReservation(t, column))
	m.reserved[k] = hist
	m.capacity = append(m.capacity, 1)

	if len(hist) > m.maxRows {
		m.maxRows = len(hist)
	}
	if n := len(m.capacity); n > m.maxColumns {
		m.maxColumns = n
	}
}

// Update records a repeat access to k at time t, reporting whether it is a
// hit under MIN's perfect-knowledge placement. On a miss it opens a new
// reservation span; on a hit it extends the current span and advances the
// capacity-barrier scoreboard.
func (m *SimMIN) Update(k flowkey.ID, t time.Time) bool {
	hist := m.reserved[k]
	if len(hist) > 0 && hist[len(hist)-1].Covers(m.barrier) {
		last := &hist[len(hist)-1]
		columnBegin := last.LastCol
		last.Hits++
		m.hits++

		column := m.compulsoryMiss + m.capacityMiss - 1
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

	m.capacityMiss++
	column := m.compulsoryMiss + m.capacityMiss - 1
	hist = append(hist, newReservation(t, column))
	m.reserved[k] = hist
	m.capacity = append(m.capacity, 1)

	if len(hist) > m.maxRows {
		m.maxRows = len(hist)
	}
	if n := len(m.capacity); n > m.maxColumns {
		m.maxColumns = n
	}
	return false
}

// Evictions partitions every tracked key into the set MIN would have
// evicted by now (its last reservation ends strictly before the barrier)
// versus the set it would still be keeping (its last reservation spans the
// barrier). A key whose last reservation begins after the barrier is in
// neither set.
func (m *SimMIN) Evictions() (evict, keep map[flowkey.ID]struct{}) {
	spans, keepSet := m.EvictionSpans()
	evictSet := make(map[flowkey.ID]struct{}, len(spans))
	for k := range spans {
		evictSet[k] = struct{}{}
	}
	return evictSet, keepSet
}

// EvictionSpans is the span-preserving form of Evictions: for each key MIN
// would have evicted, it returns that key's full reservation history (the
// spans a trainer can replay for supervision), alongside the set of keys
// still live past the barrier.
func (m *SimMIN) EvictionSpans() (spans map[flowkey.ID]History, keep map[flowkey.ID]struct{}) {
	spans = make(map[flowkey.ID]History)
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
		cp := make(History, len(hist))
		copy(cp, hist)
		spans[k] = cp
	}
	return spans, keep
}

// TrimToBarrierSpans drops every reservation column the barrier has already
// passed, compacting the capacity vector and returning the keys evicted
// (with their full span history) versus kept. This bounds SimMIN's memory
// to the live working set rather than the full trace length.
func (m *SimMIN) TrimToBarrierSpans() (evicted map[flowkey.ID]History, kept map[flowkey.ID]struct{}) {
	if m.barrier <= m.trimOffset {
		return map[flowkey.ID]History{}, map[flowkey.ID]struct{}{}
	}

	advance := m.barrier - m.trimOffset
	evicted = make(map[flowkey.ID]History)
	kept = make(map[flowkey.ID]struct{})

	for k, hist := range m.reserved {
		if len(hist) == 0 {
			delete(m.reserved, k)
			continue
		}
		last := hist[len(hist)-1]
		if last.StrictlyCovers(m.barrier) {
			kept[k] = struct{}{}
			// Drop any fully-passed earlier spans, keep the live one.
			m.reserved[k] = History{last}
			continue
		}
		if last.LastCol >= m.barrier {
			// Begins after the barrier: still live, left untouched.
			continue
		}
		cp := make(History, len(hist))
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

// TrimToBarrier is the legacy evict/keep-set-only form of
// TrimToBarrierSpans, discarding span history for callers that only need
// set membership.
func (m *SimMIN) TrimToBarrier() (evicted, kept map[flowkey.ID]struct{}) {
	spans, keptSet := m.TrimToBarrierSpans()
	evictedSet := make(map[flowkey.ID]struct{}, len(spans))
	for k := range spans {
		evictedSet[k] = struct{}{}
	}
	return evictedSet, keptSet
}

// Hits, CompulsoryMiss, CapacityMiss report the running MIN-classification
// counters; Hits+CompulsoryMiss+CapacityMiss equals the number of accesses
// processed.
func (m *SimMIN) Hits() uint64           { return m.hits }
func (m *SimMIN) CompulsoryMiss() uint64 { return m.compulsoryMiss }
func (m *SimMIN) CapacityMiss() uint64   { return m.capacityMiss }
func (m *SimMIN) Barrier() uint64        { return m.barrier }

// MaxRows and MaxColumns report the largest per-key history length and
// capacity-vector width observed, useful for sizing diagnostics.
func (m *SimMIN) MaxRows() int    { return m.maxRows }
func (m *SimMIN) MaxColumns() int { return m.maxColumns }
