// Package minsim computes Belady's MIN (optimal offline-equivalent)
// cache classification via a capacity-barrier scoreboard, usable online
// one access at a time.
//
// Grounded on original_source/flowpath/drivers/pcap/sim_min.hpp's
// Reservation / SimMIN<Key>.
package minsim

import "time"

// Reservation records one contiguous span during which a key occupied the
// cache under perfect knowledge: [FirstCol, LastCol] inclusive in
// miss-sequence "columns", alongside the wall-clock times of the first and
// last access in the span.
type Reservation struct {
	FirstCol, LastCol uint64
	FirstTS, LastTS   time.Time
	Hits              uint64
}

func newReservation(t time.Time, col uint64) Reservation {
	return Reservation{FirstCol: col, LastCol: col, FirstTS: t, LastTS: t}
}

// Covers reports whether col falls at or before LastCol. Matches
// sim_min.cpp's Reservation::covers: the lower-bound check is deliberately
// not part of the test (sim_min.cpp keeps it commented out), since the
// barrier only ever needs to know whether it has passed the end of the
// span, not whether it started inside it.
func (r Reservation) Covers(col uint64) bool {
	return col <= r.LastCol
}

// StrictlyCovers reports whether col falls within [FirstCol, LastCol].
// Matches sim_min.cpp's Reservation::strictlyCovers, which unlike covers
// does check both bounds.
func (r Reservation) StrictlyCovers(col uint64) bool {
	return r.FirstCol <= col && col <= r.LastCol
}

func (r *Reservation) extend(t time.Time, col uint64) {
	r.LastTS = t
	r.LastCol = col
}

// History is one flow key's full sequence of reservations.
type History []Reservation
