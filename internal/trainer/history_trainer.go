// Package trainer supplies the perceptron training glue that rides atop
// internal/cachesim's cache-hit/miss stream: a history-fed trainer driven
// by the cache's own keep/evict predictions, and an oracle-fed trainer
// driven by internal/minsim's optimal classification. Grounded on
// original_source/flowpath/drivers/pcap/cache_sim.hpp's HistoryTrainer<Key>
// and BeladyTrainer<Key>.
package trainer

import (
	"encoding/csv"
	"fmt"
	"io"

	"flowlab.dev/flowlab/internal/cachesim"
	"flowlab.dev/flowlab/internal/feature"
	"flowlab.dev/flowlab/internal/flowkey"
)

type historyEntry struct {
	key        flowkey.ID
	prediction feature.Vector
	keep       bool
}

// HistoryTrainer watches the cache's own admit/keep/evict predictions and,
// once a key is touched again (or its history slot ages out unconfirmed),
// reinforces the predictor toward whichever outcome the touch revealed.
// Satisfies cachesim.Observer.
type HistoryTrainer struct {
	reinforcer cachesim.Reinforcer

	keepDepth, evictDepth int
	keepHistory           []historyEntry
	evictHistory          []historyEntry

	dumpTraining bool
	trainingLog  *csv.Writer
}

// Config configures a HistoryTrainer.
type Config struct {
	Reinforcer cachesim.Reinforcer
	KeepDepth  int
	EvictDepth int

	// TrainingLog, if non-nil, receives one row per reinforcement event
	// (direction, key, weights...), matching cache_sim.hpp's
	// DUMP_TRAINING CSV trace.
	TrainingLog io.Writer
}

// New builds a HistoryTrainer. KeepDepth/EvictDepth bound the two history
// rings; a prediction that ages past its ring's depth without being
// confirmed by a later touch is reinforced as unconfirmed before it is
// evicted from the ring.
func New(cfg Config) *HistoryTrainer {
	t := &HistoryTrainer{
		reinforcer: cfg.Reinforcer,
		keepDepth:  cfg.KeepDepth,
		evictDepth: cfg.EvictDepth,
	}
	if cfg.TrainingLog != nil {
		t.dumpTraining = true
		t.trainingLog = csv.NewWriter(cfg.TrainingLog)
	}
	return t
}

// Touch searches both history rings for k. A match in the keep ring means
// the keep prediction was later touched — confirmed correct, reinforced
// positively. A match in the evict ring means a key predicted for eviction
// was touched anyway — the predictor was wrong, reinforced toward keep.
func (t *HistoryTrainer) Touch(k flowkey.ID, f feature.Vector) {
	for i, e := range t.keepHistory {
		if e.key == k {
			t.reinforce(k, e.prediction, true)
			t.keepHistory = append(t.keepHistory[:i], t.keepHistory[i+1:]...)
			break
		}
	}
	for i, e := range t.evictHistory {
		if e.key == k {
			t.reinforce(k, e.prediction, true)
			t.evictHistory = append(t.evictHistory[:i], t.evictHistory[i+1:]...)
			break
		}
	}
}

// Predict records a keep/evict prediction for later confirmation by Touch.
// When a ring is already at depth, the oldest entry is popped and
// reinforced as unconfirmed (the predictor guessed and was never
// contradicted nor confirmed before aging out) before the new entry is
// pushed to the front.
func (t *HistoryTrainer) Predict(k flowkey.ID, f feature.Vector, keep bool) {
	entry := historyEntry{key: k, prediction: f, keep: keep}

	if keep {
		if len(t.keepHistory) >= t.keepDepth && t.keepDepth > 0 {
			last := t.keepHistory[len(t.keepHistory)-1]
			t.reinforce(last.key, last.prediction, false)
			t.keepHistory = t.keepHistory[:len(t.keepHistory)-1]
		}
		t.keepHistory = append([]historyEntry{entry}, t.keepHistory...)
		return
	}

	if len(t.evictHistory) >= t.evictDepth && t.evictDepth > 0 {
		last := t.evictHistory[len(t.evictHistory)-1]
		t.reinforce(last.key, last.prediction, false)
		t.evictHistory = t.evictHistory[:len(t.evictHistory)-1]
	}
	t.evictHistory = append([]historyEntry{entry}, t.evictHistory...)
}

func (t *HistoryTrainer) reinforce(k flowkey.ID, f feature.Vector, touched bool) {
	outcome := t.reinforcer.Reinforce(f, touched)
	if !t.dumpTraining || !outcome.Updated {
		return
	}
	direction := '-'
	if touched {
		direction = '+'
	}
	row := make([]string, 0, len(outcome.Weights)+2)
	row = append(row, string(direction), fmt.Sprintf("%d", k))
	for _, w := range outcome.Weights {
		row = append(row, fmt.Sprintf("%d", w))
	}
	t.trainingLog.Write(row)
	t.trainingLog.Flush()
}
