// Package sampling implements the simulation core's abstract push interface
// for an interactive analytics environment: a small set of zero- or
// one-argument RPCs over per-flow sample data, exposed both as an
// in-process Go API (Client) and as an HTTP/JSON service (Server).
//
// Grounded on grimm-is-flywall/internal/api/server.go's ServerConfig /
// DefaultServerConfig / mutex-guarded request handling, and
// grimm-is-flywall/internal/api/ebpf_handlers.go's gorilla/mux route
// registration idiom.
package sampling

import (
	"sort"
	"sync"

	"flowlab.dev/flowlab/internal/flowkey"
)

// FlowSample is one retired flow's recorded series, suitable for direct
// export to an analytics environment.
type FlowSample struct {
	FlowID flowkey.ID

	// ArrivalNS is each packet's arrival time in nanoseconds since the
	// flow's first packet (get_flow_ts).
	ArrivalNS []int64

	// Delta is the adjacent-difference series of ArrivalNS
	// (get_flow_delta). Values are stored as given; no sign marks the
	// positions where a MIN miss occurred.
	Delta []int64

	// MissMIN and MissSim are, respectively, the positions (packet
	// index) at which Belady's MIN and the simulated cache recorded a
	// miss for this flow (get_flow_miss_min / get_flow_miss_sim).
	MissMIN []int64
	MissSim []int64

	// DstCountry is the ISO country code for the flow's destination
	// address, set by a GeoEnricher when one is configured. Empty when
	// no GeoIP database is in use or the address has no entry.
	DstCountry string
}

// Store is the read surface the sampling RPCs are defined over. A flow
// id is a non-negative, stable index rather than flowkey.ID itself — spec.md
// treats it as an opaque i64 handle for the analytics environment.
type Store interface {
	NumFlows() int64
	FlowIDs() []int64
	Flow(id int64) (FlowSample, bool)
}

// MemoryStore is an in-memory Store, populated as flows retire during a
// replay run. Safe for concurrent use: Add is expected to be called from
// the single-threaded-cooperative core (spec.md §5), while reads may come
// concurrently from an HTTP handler.
type MemoryStore struct {
	mu      sync.RWMutex
	byID    map[int64]FlowSample
	nextID  int64
	ordered []int64
}

// NewMemoryStore builds an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[int64]FlowSample)}
}

// Add assigns the next sequential flow id to sample and records it.
func (s *MemoryStore) Add(sample FlowSample) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.byID[id] = sample
	s.ordered = append(s.ordered, id)
	return id
}

func (s *MemoryStore) NumFlows() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.byID))
}

func (s *MemoryStore) FlowIDs() []int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]int64, len(s.ordered))
	copy(ids, s.ordered)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (s *MemoryStore) Flow(id int64) (FlowSample, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sample, ok := s.byID[id]
	return sample, ok
}
