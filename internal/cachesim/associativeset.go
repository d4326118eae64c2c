// Package cachesim implements the associative cache under simulation: one
// recency stack per set plus a fully-associative reference stack used to
// classify conflict versus capacity misses.
//
// Grounded on original_source/flowpath/drivers/pcap/cache_sim.hpp's
// AssociativeSet<Key> and CacheSim<Key>.
package cachesim

import (
	"container/list"
	"math/rand"
	"time"

	"flowlab.dev/flowlab/internal/feature"
	"flowlab.dev/flowlab/internal/flowkey"
	"flowlab.dev/flowlab/internal/perceptron"
)

// Predictor is the subset of *perceptron.Perceptron's surface the cache
// needs for HP-gated insertion/replacement. Accepting an interface here
// (rather than a concrete *perceptron.Perceptron) keeps the simulator
// testable without a fully-wired hashed perceptron.
type Predictor interface {
	Infer(v feature.Vector, tracked bool) perceptron.Prediction
}

// Reinforcer additionally trains the predictor; satisfied by
// *perceptron.Perceptron. EoL-hit correction (see eventMRUDemotion) trains
// the predictor directly, so it asks for this narrower capability rather
// than assuming every Predictor can learn.
type Reinforcer interface {
	Reinforce(v feature.Vector, target bool) perceptron.Outcome
}

// Observer receives the cache's touch/prediction events for external
// training glue (internal/trainer's HistoryTrainer implements this).
type Observer interface {
	Touch(k flowkey.ID, f feature.Vector)
	Predict(k flowkey.ID, f feature.Vector, keep bool)
}

type stackNode struct {
	key   flowkey.ID
	entry *stackEntry
}

// Config configures an AssociativeSet.
type Config struct {
	Entries   int
	Insert    InsertPolicy
	Replace   ReplacePolicy
	Predictor Predictor // nil disables HP_BYPASS/HP_LRU behavior (always "keep")
	Observer  Observer
	RNG       *rand.Rand
}

// AssociativeSet is one fixed-width recency stack with pluggable
// insertion/replacement policies. Grounded on cache_sim.hpp's
// AssociativeSet<Key>.
type AssociativeSet struct {
	max           int
	insertPolicy  InsertPolicy
	replacePolicy ReplacePolicy
	predictor     Predictor
	observer      Observer
	rng           *rand.Rand

	stack  *list.List // of *stackNode, MRU at Front, LRU at Back
	lookup map[flowkey.ID]*list.Element
	pt     map[flowkey.ID]*ptEntry

	hits           int64
	compulsoryMiss int64
	capacityMiss   int64

	replacementLRU        int64
	replacementEarly      int64
	predictionBC          int64
	predictionRC          int64
	predictionHPBypass    int64
	predictionHPEvict     int64
	insertPredictDistant  int64
	eagerEarlyReplacement int64
}

// New creates an AssociativeSet.
func New(cfg Config) *AssociativeSet {
	rng := cfg.RNG
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	return &AssociativeSet{
		max:           cfg.Entries,
		insertPolicy:  cfg.Insert,
		replacePolicy: cfg.Replace,
		predictor:     cfg.Predictor,
		observer:      cfg.Observer,
		rng:           rng,
		stack:         list.New(),
		lookup:        make(map[flowkey.ID]*list.Element, cfg.Entries),
		pt:            make(map[flowkey.ID]*ptEntry),
	}
}

// Insert records a first occurrence of key k (a compulsory miss). Returns
// the evicted key, if any; hadEviction is true only when an entry was
// evicted, and is false both when the set had room and when the HP_BYPASS
// policy declined to admit k at all.
func (s *AssociativeSet) Insert(k flowkey.ID, t time.Time, f feature.Vector) (evicted flowkey.ID, hadEviction bool) {
	s.compulsoryMiss++

	if s.insertPolicy == InsertHPBypass && s.predictor != nil {
		pr := s.predictor.Infer(f, true)
		if s.observer != nil {
			s.observer.Predict(k, f, pr.Predict)
		}
		if !pr.Predict {
			s.predictionHPBypass++
			return 0, false
		}
	}

	return s.internalInsert(k, t, f)
}

// Update records a repeat access to key k. hit reports whether k was
// resident; evicted/hadEviction report an eviction that occurred while
// admitting a capacity miss.
func (s *AssociativeSet) Update(k flowkey.ID, t time.Time, f feature.Vector) (hit bool, evicted flowkey.ID, hadEviction bool) {
	if s.observer != nil && (s.insertPolicy == InsertHPBypass || s.replacePolicy == ReplaceHPLRU) {
		s.observer.Touch(k, f)
	}

	column := s.compulsoryMiss + s.capacityMiss

	if elem, found := s.lookup[k]; found {
		s.hits++
		node := elem.Value.(*stackNode)
		node.entry.refCount++
		node.entry.res.extend(t, column)

		if elem == s.stack.Front() {
			node.entry.hits.Counts[len(node.entry.hits.Counts)-1]++
			s.eventMRUHit(node)
		} else {
			node.entry.hits.Counts = append(node.entry.hits.Counts, 1)
			demoted := s.stack.Front()
			s.stack.MoveToFront(elem)
			s.eventMRUDemotion(demoted)
		}

		node.entry.mergeFeatures(f)

		if s.replacePolicy == ReplaceHPLRU && s.predictor != nil {
			pr := s.predictor.Infer(node.entry.features, true)
			if !pr.Predict {
				s.predictionHPEvict++
				node.entry.eol = true
			}
			if s.observer != nil {
				s.observer.Predict(k, node.entry.features, pr.Predict)
			}
		}

		return true, 0, false
	}

	s.capacityMiss++

	if s.insertPolicy == InsertHPBypass && s.predictor != nil {
		pr := s.predictor.Infer(f, true)
		if s.observer != nil {
			s.observer.Predict(k, f, pr.Predict)
		}
		if !pr.Predict {
			s.predictionHPBypass++
			return false, 0, false
		}
	}

	evicted, hadEviction = s.internalInsert(k, t, f)
	return false, evicted, hadEviction
}

// internalInsert manages the generic recency-stack insertion: replace if
// at capacity, then place the new entry per the insertion policy.
func (s *AssociativeSet) internalInsert(k flowkey.ID, t time.Time, f feature.Vector) (evicted flowkey.ID, hadEviction bool) {
	column := s.compulsoryMiss + s.capacityMiss
	entry := newStackEntry(t, column, f)

	if s.stack.Len() >= s.max {
		victimElem := s.replaceFind()
		victim := victimElem.Value.(*stackNode)

		s.eventEviction(victim)
		delete(s.lookup, victim.key)
		s.stack.Remove(victimElem)
		evicted, hadEviction = victim.key, true
	}

	node := &stackNode{key: k, entry: entry}
	insertBefore := s.insertFind(k)
	var newElem *list.Element
	if insertBefore == nil {
		newElem = s.stack.PushBack(node)
	} else {
		newElem = s.stack.InsertBefore(node, insertBefore)
	}
	s.lookup[k] = newElem
	return evicted, hadEviction
}

// Flush removes a single entry (k non-nil) or the entire set (k nil).
func (s *AssociativeSet) Flush(k *flowkey.ID) {
	if k == nil {
		s.stack.Init()
		s.lookup = make(map[flowkey.ID]*list.Element, s.max)
		return
	}
	elem, ok := s.lookup[*k]
	if !ok {
		return
	}
	s.stack.Remove(elem)
	delete(s.lookup, *k)
}

// Size returns the number of resident entries.
func (s *AssociativeSet) Size() int { return s.stack.Len() }

// ptEntryFor returns (creating if necessary) the pattern-table entry for k.
func (s *AssociativeSet) ptEntryFor(k flowkey.ID) *ptEntry {
	pte, ok := s.pt[k]
	if !ok {
		pte = newPTEntry()
		s.pt[k] = pte
	}
	return pte
}

// event_eviction: update the pattern table just before an entry leaves the
// stack. Grounded on cache_sim.hpp's AssociativeSet::event_eviction.
func (s *AssociativeSet) eventEviction(victim *stackNode) {
	burstCount := len(victim.entry.hits.Counts)
	pte := s.ptEntryFor(victim.key)

	bcDelta := pte.bcSaved - burstCount
	if bcDelta == 0 {
		pte.bcConfidence.Inc()
	} else if absInt(bcDelta) > ptConfidenceTolerance {
		pte.bcConfidence.Dec()
		pte.bcSaved = burstCount
	} else {
		pte.bcSaved = min(burstCount, pte.bcSaved)
	}

	rcDelta := pte.rcSaved - victim.entry.refCount
	if rcDelta == 0 {
		pte.rcConfidence.Inc()
	} else if absInt(rcDelta) > ptConfidenceTolerance {
		pte.rcConfidence.Dec()
		pte.rcSaved = victim.entry.refCount
	} else {
		pte.rcSaved = min(victim.entry.refCount, pte.rcSaved)
	}

	if victim.entry.refCount == 1 {
		pte.shipReuse.Dec()
	} else {
		pte.shipReuse.Inc()
	}
}

// event_mru_demotion: fires after a hit displaces the previous MRU entry
// by one position. demotedElem points at the entry that was at MRU before
// the hit-promotion.
func (s *AssociativeSet) eventMRUDemotion(demotedElem *list.Element) {
	demoted := demotedElem.Value.(*stackNode)

	if s.replacePolicy == ReplaceBurstLRU {
		burstCount := len(demoted.entry.hits.Counts)
		pte := s.ptEntryFor(demoted.key)
		if pte.bcConfidence >= 0 && burstCount >= pte.bcSaved {
			s.predictionBC++
		}
		if pte.rcConfidence >= 0 && demoted.entry.refCount >= pte.rcSaved {
			s.predictionRC++
			demoted.entry.eol = true
		}
	}

	newMRU := s.stack.Front().Value.(*stackNode)
	if newMRU.entry.eol {
		s.eagerEarlyReplacement++
		newMRU.entry.eol = false
		if trainer, ok := s.predictor.(Reinforcer); ok {
			trainer.Reinforce(newMRU.entry.features, true)
		}
	}
	if s.replacePolicy == ReplaceSRRIPCB && newMRU.entry.refCount > 1 {
		newMRU.entry.rrDistance.Inc()
	}
}

// event_mru_hit: fires when a hit occurs against the entry already at MRU.
func (s *AssociativeSet) eventMRUHit(node *stackNode) {
	if s.replacePolicy == ReplaceSRRIP {
		node.entry.rrDistance.Inc()
	}
}

// insertFind returns the element the new entry should be inserted before,
// or nil to push at the back. Dispatches on the insertion policy, matching
// cache_sim.hpp's insert_find switch (simplified to the fixed offset 0 —
// the original's per-policy "offset" tunable is never configured by the
// spec's configuration surface).
func (s *AssociativeSet) insertFind(k flowkey.ID) *list.Element {
	if s.stack.Len() == 0 {
		return nil
	}
	switch s.insertPolicy {
	case InsertMRU, InsertHPBypass:
		return s.stack.Front()
	case InsertLRU:
		return s.stack.Back()
	case InsertSHiP:
		return s.findSHiPReuse(k)
	case InsertBypass:
		return s.findBypass(k)
	case InsertRandom:
		return s.findRandom()
	default:
		return s.stack.Front()
	}
}

// replaceFind returns the element to evict, matching cache_sim.hpp's
// replace_find switch.
func (s *AssociativeSet) replaceFind() *list.Element {
	switch s.replacePolicy {
	case ReplaceLRU:
		s.replacementLRU++
		return s.stack.Back()
	case ReplaceMRU:
		return s.stack.Front()
	case ReplaceHPLRU, ReplaceBurstLRU:
		if elem := s.findExpired(); elem != nil {
			s.replacementEarly++
			return elem
		}
		s.replacementLRU++
		return s.stack.Back()
	case ReplaceSRRIP, ReplaceSRRIPCB:
		return s.findRRIPDistance()
	case ReplaceRandom:
		return s.findRandom()
	default:
		s.replacementLRU++
		return s.stack.Back()
	}
}

func (s *AssociativeSet) findRandom() *list.Element {
	n := s.rng.Intn(s.stack.Len())
	elem := s.stack.Front()
	for i := 0; i < n; i++ {
		elem = elem.Next()
	}
	return elem
}

func (s *AssociativeSet) findSHiPReuse(k flowkey.ID) *list.Element {
	pte := s.ptEntryFor(k)
	if pte.shipReuse == shipReuseMin {
		s.insertPredictDistant++
		return s.stack.Back()
	}
	return s.stack.Front()
}

func (s *AssociativeSet) findBypass(k flowkey.ID) *list.Element {
	if _, seen := s.pt[k]; !seen {
		s.insertPredictDistant++
		return s.stack.Back()
	}
	return s.stack.Front()
}

// findExpired walks from LRU toward MRU looking for the oldest entry
// marked end-of-lifetime, matching cache_sim.hpp's find_Expired reverse
// scan. Returns nil if no entry is marked.
func (s *AssociativeSet) findExpired() *list.Element {
	for elem := s.stack.Back(); elem != nil; elem = elem.Prev() {
		if elem.Value.(*stackNode).entry.eol {
			return elem
		}
	}
	return nil
}

// findRRIPDistance repeatedly scans for an entry at the minimum
// re-reference distance, aging every entry by one step between scans when
// none is found, matching cache_sim.hpp's find_RRIP_Distance.
func (s *AssociativeSet) findRRIPDistance() *list.Element {
	for {
		for elem := s.stack.Front(); elem != nil; elem = elem.Next() {
			if elem.Value.(*stackNode).entry.rrDistance == rrDistanceMin {
				return elem
			}
		}
		for elem := s.stack.Front(); elem != nil; elem = elem.Next() {
			elem.Value.(*stackNode).entry.rrDistance.Dec()
		}
	}
}

// Stats accessors.
func (s *AssociativeSet) Hits() int64                  { return s.hits }
func (s *AssociativeSet) CompulsoryMiss() int64        { return s.compulsoryMiss }
func (s *AssociativeSet) CapacityMiss() int64          { return s.capacityMiss }
func (s *AssociativeSet) ReplacementLRU() int64        { return s.replacementLRU }
func (s *AssociativeSet) ReplacementEarly() int64      { return s.replacementEarly }
func (s *AssociativeSet) PredictionBC() int64          { return s.predictionBC }
func (s *AssociativeSet) PredictionRC() int64          { return s.predictionRC }
func (s *AssociativeSet) PredictionHPBypass() int64    { return s.predictionHPBypass }
func (s *AssociativeSet) PredictionHPEvict() int64     { return s.predictionHPEvict }
func (s *AssociativeSet) InsertPredictDistant() int64  { return s.insertPredictDistant }
func (s *AssociativeSet) EagerEarlyReplacement() int64 { return s.eagerEarlyReplacement }
