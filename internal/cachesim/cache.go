package cachesim

import (
	"encoding/binary"
	"time"

	"flowlab.dev/flowlab/internal/errors"
	"flowlab.dev/flowlab/internal/feature"
	"flowlab.dev/flowlab/internal/flowkey"
	"github.com/cespare/xxhash/v2"
)

// Classification labels the outcome of one Cache.Update, informed by the
// fully-associative reference mirror. Grounded on cache_sim.hpp's
// CacheSim<Key>::update conflict/capacity bookkeeping.
type Classification int

const (
	ClassHit Classification = iota
	ClassCapacityMiss
	ClassConflictMiss
	ClassConflictHit
)

func (c Classification) String() string {
	switch c {
	case ClassHit:
		return "hit"
	case ClassCapacityMiss:
		return "capacity_miss"
	case ClassConflictMiss:
		return "conflict_miss"
	case ClassConflictHit:
		return "conflict_hit"
	default:
		return "unknown"
	}
}

// UpdateResult is the outcome of one Cache.Update call.
type UpdateResult struct {
	Hit            bool
	Evicted        flowkey.ID
	HasEviction    bool
	Classification Classification
}

// Config configures a Cache.
//
// A Ways of 0 means fully associative: one set sized Entries, honoring
// Insert/Replace exactly as configured. The original_source silently fell
// back to the fixed-policy reference mirror whenever ways==0 (its
// set_insert_policy/set_replacement_policy setters only walk a `sets_`
// vector that stays empty in that mode) — judged a latent bug rather than
// an intentional behavior, and not reproduced here (DESIGN.md).
type Config struct {
	Entries   int
	Ways      int
	Insert    InsertPolicy
	Replace   ReplacePolicy
	Predictor Predictor
	Observer  Observer
}

// Cache is the set-associative cache under simulation, alongside a fully-
// associative reference ("faRef") used only to classify conflict versus
// capacity misses. Grounded on cache_sim.hpp's CacheSim<Key>.
type Cache struct {
	entries int
	faRef   *AssociativeSet
	sets    []*AssociativeSet

	conflictMissCount int64
	conflictHitCount  int64
}

// NewCache builds a Cache. Entries must be evenly divisible by Ways when
// Ways>0.
func NewCache(cfg Config) (*Cache, error) {
	if cfg.Ways > 0 && cfg.Entries%cfg.Ways != 0 {
		return nil, errors.New(errors.Inconsistent, "cache associativity must evenly divide total entries")
	}

	// The reference mirror always uses the fixed MRU-insert/LRU-replace
	// policy, matching cache_sim.hpp's fa_ref_ construction.
	faRef := New(Config{Entries: cfg.Entries, Insert: InsertMRU, Replace: ReplaceLRU})

	ways := cfg.Ways
	if ways <= 0 {
		ways = cfg.Entries
	}
	numSets := cfg.Entries / ways
	if numSets < 1 {
		numSets = 1
	}
	sets := make([]*AssociativeSet, numSets)
	for i := range sets {
		sets[i] = New(Config{
			Entries:   ways,
			Insert:    cfg.Insert,
			Replace:   cfg.Replace,
			Predictor: cfg.Predictor,
			Observer:  cfg.Observer,
		})
	}

	return &Cache{entries: cfg.Entries, faRef: faRef, sets: sets}, nil
}

func (c *Cache) setIndex(k flowkey.ID) int {
	if len(c.sets) <= 1 {
		return 0
	}
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(k))
	return int(xxhash.Sum64(buf[:]) % uint64(len(c.sets)))
}

// Insert records a first occurrence of k (a compulsory miss in both the
// real cache and the reference mirror).
func (c *Cache) Insert(k flowkey.ID, t time.Time, f feature.Vector) UpdateResult {
	c.faRef.Insert(k, t, f)

	idx := c.setIndex(k)
	evicted, hadEviction := c.sets[idx].Insert(k, t, f)
	return UpdateResult{Evicted: evicted, HasEviction: hadEviction}
}

// Update records a repeat access, classifying the result against the
// fully-associative reference mirror.
func (c *Cache) Update(k flowkey.ID, t time.Time, f feature.Vector) UpdateResult {
	refHit, _, _ := c.faRef.Update(k, t, f)

	idx := c.setIndex(k)
	setHit, evicted, hadEviction := c.sets[idx].Update(k, t, f)

	var class Classification
	switch {
	case refHit && !setHit:
		c.conflictMissCount++
		class = ClassConflictMiss
	case !refHit && !setHit:
		class = ClassCapacityMiss
	case !refHit && setHit:
		c.conflictHitCount++
		class = ClassConflictHit
	default:
		class = ClassHit
	}

	return UpdateResult{Hit: setHit, Evicted: evicted, HasEviction: hadEviction, Classification: class}
}

// Flush removes a single entry (k non-nil) or every entry (k nil) from
// both the real sets and the reference mirror.
func (c *Cache) Flush(k *flowkey.ID) {
	c.faRef.Flush(k)
	for _, s := range c.sets {
		s.Flush(k)
	}
}

func (c *Cache) Size() int   { return c.entries }
func (c *Cache) Ways() int   { return c.entries / len(c.sets) }
func (c *Cache) NumSets() int { return len(c.sets) }

// Stats is an aggregate snapshot across every set plus the reference
// mirror, matching the counters CacheSim::print_stats reports.
type Stats struct {
	Hits                  int64
	CompulsoryMiss        int64
	CapacityMiss          int64
	ConflictMiss          int64
	ConflictHit           int64
	FAHits                int64
	FACapacityMiss        int64
	ReplacementsLRU       int64
	ReplacementsEarly     int64
	PredictionBC          int64
	PredictionRC          int64
	PredictionHPBypass    int64
	PredictionHPEvict     int64
	InsertPredictDistant  int64
	EagerEarlyReplacement int64
}

// Stats aggregates per-set counters, matching CacheSim<Key>::get_misses's
// conflict decomposition: conflict = capacity_total - fa_capacity.
func (c *Cache) Stats() Stats {
	var s Stats
	var capacityTotal int64
	for _, set := range c.sets {
		s.Hits += set.Hits()
		s.CompulsoryMiss += set.CompulsoryMiss()
		capacityTotal += set.CapacityMiss()
		s.ReplacementsLRU += set.ReplacementLRU()
		s.ReplacementsEarly += set.ReplacementEarly()
		s.PredictionBC += set.PredictionBC()
		s.PredictionRC += set.PredictionRC()
		s.PredictionHPBypass += set.PredictionHPBypass()
		s.PredictionHPEvict += set.PredictionHPEvict()
		s.InsertPredictDistant += set.InsertPredictDistant()
		s.EagerEarlyReplacement += set.EagerEarlyReplacement()
	}
	s.FAHits = c.faRef.Hits()
	s.FACapacityMiss = c.faRef.CapacityMiss()
	s.ConflictMiss = capacityTotal - s.FACapacityMiss
	s.ConflictHit = c.conflictHitCount
	s.CapacityMiss = s.FACapacityMiss
	return s
}
