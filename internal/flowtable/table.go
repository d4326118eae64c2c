package flowtable

import (
	"sync"
	"time"

	"flowlab.dev/flowlab/internal/extract"
	"flowlab.dev/flowlab/internal/flowkey"
)

// sweepEvery matches spec.md §4.2: every 131,072 newly allocated ids, the
// table checks idle records for retirement.
const sweepEvery = 131072

// Delta describes what happened to a flow on this Ingest call, for callers
// that want to react to retirement/creation without re-deriving it.
type Delta struct {
	Created  bool
	Retired  bool
	Reason   RetireReason
	OldID    flowkey.ID
	Malformed bool
}

// Sampler decides whether a retiring record is kept (moved to the retired
// map, sampleable via the Sampling API) or discarded.
type Sampler interface {
	Keep(r *Record) bool
}

// KeepAll is the default Sampler: every retired record is kept.
type KeepAll struct{}

func (KeepAll) Keep(*Record) bool { return true }

// Table is the flow table: key -> id-vector (newest first), plus live and
// retired record maps.
type Table struct {
	mu sync.Mutex

	alloc flowkey.IDAllocator

	ids       map[flowkey.Key][]flowkey.ID // newest first
	live      map[flowkey.ID]*Record
	blacklist map[flowkey.ID]struct{}

	retiredMu sync.Mutex
	retired   map[flowkey.ID]*Record

	sampler    Sampler
	timeseries bool

	sinceSweep int

	malformed   uint64
	blacklisted uint64
	timeouts    uint64
	portReuses  uint64
}

// Config configures a Table.
type Config struct {
	Sampler    Sampler
	Timeseries bool
}

// New creates an empty Table.
func New(cfg Config) *Table {
	sampler := cfg.Sampler
	if sampler == nil {
		sampler = KeepAll{}
	}
	return &Table{
		ids:        make(map[flowkey.Key][]flowkey.ID),
		live:       make(map[flowkey.ID]*Record),
		blacklist:  make(map[flowkey.ID]struct{}),
		retired:    make(map[flowkey.ID]*Record),
		sampler:    sampler,
		timeseries: cfg.Timeseries,
	}
}

// Ingest implements spec.md §4.2's contract. Not safe for concurrent use —
// per spec.md §5, at most one caller mutates the table at a time.
func (t *Table) Ingest(f extract.Fields, ts time.Time, origBytes uint32) (flowkey.ID, Delta) {
	key := flowkey.Pack(f.IPv4Src, f.IPv4Dst, f.SrcPort, f.DstPort, f.IPProto)

	var delta Delta
	if f.Malformed {
		t.malformed++
		delta.Malformed = true
	}

	ids := t.ids[key]
	var current flowkey.ID
	var rec *Record
	if len(ids) > 0 {
		current = ids[0]
		if _, blacklisted := t.blacklist[current]; !blacklisted {
			rec = t.live[current]
		}
	}

	isTCP := f.FProto.Has(extract.ProtoFlagTCP)
	isSYN := isTCP && f.FTCP.Has(extract.TCPFlagSYN)
	isFirstBad := isTCP && (f.FTCP.Has(extract.TCPFlagRST) || f.FTCP.Has(extract.TCPFlagFIN)) && rec == nil

	switch {
	case rec != nil && isSYN && f.TCPSeqNum != rec.LastSeq:
		// Port reuse: retire the old record, allocate a new id.
		t.retire(current, RetireSYNReuse)
		t.portReuses++
		delta.Retired = true
		delta.Reason = RetireSYNReuse
		delta.OldID = current

		newID := t.alloc.Next()
		t.sinceSweep++
		nr := &Record{FlowID: newID, Key: key, Start: ts, Last: ts}
		nr.apply(f, ts, origBytes, t.timeseries)
		t.live[newID] = nr
		t.ids[key] = append([]flowkey.ID{newID}, ids...)
		delta.Created = true
		current = newID

	case rec != nil:
		rec.apply(f, ts, origBytes, t.timeseries)
		current = rec.FlowID

	case isFirstBad:
		newID := t.alloc.Next()
		t.sinceSweep++
		t.blacklist[newID] = struct{}{}
		t.blacklisted++
		t.ids[key] = append([]flowkey.ID{newID}, ids...)
		current = newID

	default:
		newID := t.alloc.Next()
		t.sinceSweep++
		nr := &Record{FlowID: newID, Key: key, Start: ts, Last: ts}
		nr.apply(f, ts, origBytes, t.timeseries)
		t.live[newID] = nr
		t.ids[key] = append([]flowkey.ID{newID}, ids...)
		delta.Created = true
		current = newID
	}

	if t.sinceSweep >= sweepEvery {
		t.sweep(ts)
		t.sinceSweep = 0
	}

	return current, delta
}

// sweep retires any live record whose idle time exceeds its per-state
// timeout, per spec.md §4.2 point 5.
func (t *Table) sweep(now time.Time) {
	for id, rec := range t.live {
		if now.Sub(rec.Last) >= rec.idleTimeout() {
			t.timeouts++
			t.retire(id, rec.idleReason())
		}
	}
}

func (t *Table) retire(id flowkey.ID, reason RetireReason) {
	rec, ok := t.live[id]
	if !ok {
		return
	}
	delete(t.live, id)

	if t.sampler.Keep(rec) {
		t.retiredMu.Lock()
		t.retired[id] = rec
		t.retiredMu.Unlock()
	}
}

// Record returns the live record for id, if any.
func (t *Table) Record(id flowkey.ID) (*Record, bool) {
	r, ok := t.live[id]
	return r, ok
}

// RetiredRecord returns a retired record for id. Safe for concurrent use
// with Ingest, guarded by retiredMu per spec.md §5.
func (t *Table) RetiredRecord(id flowkey.ID) (*Record, bool) {
	t.retiredMu.Lock()
	defer t.retiredMu.Unlock()
	r, ok := t.retired[id]
	return r, ok
}

// RetiredIDs returns every retired flow-id currently held.
func (t *Table) RetiredIDs() []flowkey.ID {
	t.retiredMu.Lock()
	defer t.retiredMu.Unlock()
	ids := make([]flowkey.ID, 0, len(t.retired))
	for id := range t.retired {
		ids = append(ids, id)
	}
	return ids
}

// Stats returns the aggregated counters named in spec.md §7.
func (t *Table) Stats() (malformed, blacklisted, timeouts, portReuses uint64) {
	return t.malformed, t.blacklisted, t.timeouts, t.portReuses
}

// Size returns the number of live records.
func (t *Table) Size() int { return len(t.live) }
