package cachesim

import (
	"time"

	"flowlab.dev/flowlab/internal/feature"
	"flowlab.dev/flowlab/internal/perceptron"
)

// reservation tracks when a cache line was inserted and last referenced, in
// both wall-clock time and "column" (the compulsory+capacity miss count at
// that moment) — the latter is what MIN-style barrier analysis keys off
// of. Narrowed from sim_min.hpp's Reservation to what AssociativeSet itself
// needs; the full Reservation used for barrier/trim analysis lives in
// internal/minsim.
type reservation struct {
	firstTS, lastTS         time.Time
	firstColumn, lastColumn int64
}

func newReservation(t time.Time, column int64) reservation {
	return reservation{firstTS: t, lastTS: t, firstColumn: column, lastColumn: column}
}

func (r *reservation) extend(t time.Time, column int64) {
	r.lastTS = t
	r.lastColumn = column
}

// stackEntry is one cache line: recency-stack payload plus the prediction
// bookkeeping attached to it. Grounded on cache_sim.hpp's Stack_entry.
type stackEntry struct {
	res      reservation
	hits     *feature.BurstStats
	features feature.Vector

	refCount int
	eol      bool

	rrDistance rrDistance
}

func newStackEntry(t time.Time, column int64, f feature.Vector) *stackEntry {
	return &stackEntry{
		res:        newReservation(t, column),
		hits:       &feature.BurstStats{Counts: []int{1}},
		features:   f,
		refCount:   1,
		rrDistance: rrDistanceMax,
	}
}

// mergeFeatures folds in a fresh packet's non-control features, mirroring
// feature.Merge but without the Builder-level record-identity check — the
// cache line is already scoped to one flow key.
func (e *stackEntry) mergeFeatures(fresh feature.Vector) {
	for i := 1; i < feature.NumFeatures; i++ {
		e.features[i] = fresh[i]
	}
}

// ptConfidenceTolerance is the tolerable delta between a predicted and
// observed burst/reference count before the pattern table treats it as a
// misprediction (cache_sim.hpp's PT_entry::C_delta). Zero means exact
// match required.
const ptConfidenceTolerance = 0

// ptEntry is the pattern-table entry tracking predicted burst/reference
// counts and SHiP re-reference confidence for one flow key, independent of
// whether that key currently occupies a cache line. Grounded on
// cache_sim.hpp's PT_entry.
type ptEntry struct {
	bcSaved, rcSaved           int
	bcConfidence, rcConfidence perceptron.Saturating5
	shipReuse                  shipReuseCounter
}

func newPTEntry() *ptEntry {
	return &ptEntry{
		bcSaved:      -1,
		rcSaved:      -1,
		bcConfidence: -1,
		rcConfidence: -1,
		shipReuse:    shipReuseMax,
	}
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
