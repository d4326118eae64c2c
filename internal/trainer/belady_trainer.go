package trainer

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"flowlab.dev/flowlab/internal/cachesim"
	"flowlab.dev/flowlab/internal/feature"
	"flowlab.dev/flowlab/internal/flowkey"
	"flowlab.dev/flowlab/internal/minsim"
)

// BeladyConfig configures a BeladyTrainer.
type BeladyConfig struct {
	Reinforcer cachesim.Reinforcer
	Entries    int

	// EnableEvictSetTraining reinforces every key in MIN's evicted set as
	// non-cacheable. Defaults true in DefaultBeladyConfig, matching cache_sim.hpp's
	// ENABLE_Belady_EvictSet_Training.
	EnableEvictSetTraining bool
	// EnableKeepSetTraining reinforces every key in MIN's kept set as
	// cacheable. Defaults false in DefaultBeladyConfig, matching cache_sim.hpp's
	// ENABLE_Belady_KeepSet_Training (left disabled there too, under a
	// TRYME comment questioning whether it should only fire since the
	// last advance).
	EnableKeepSetTraining bool

	TrainingLog io.Writer
}

// BeladyTrainer drives perceptron reinforcement from internal/minsim's
// optimal (Belady) classification rather than from the cache's own
// predictions: whenever MIN's barrier advances far enough to newly
// classify an access as a hit, every key MIN would have evicted by now is
// reinforced as non-cacheable. Grounded on cache_sim.hpp's
// BeladyTrainer<Key>.
type BeladyTrainer struct {
	reinforcer cachesim.Reinforcer
	belady     *minsim.SimMIN
	features   map[flowkey.ID]feature.Vector

	enableEvictSet bool
	enableKeepSet  bool

	dumpTraining bool
	trainingLog  *csv.Writer
}

// DefaultBeladyConfig returns a BeladyConfig with EnableEvictSetTraining
// true and EnableKeepSetTraining false, matching cache_sim.hpp's
// ENABLE_Belady_EvictSet_Training/ENABLE_Belady_KeepSet_Training defaults.
func DefaultBeladyConfig(reinforcer cachesim.Reinforcer, entries int) BeladyConfig {
	return BeladyConfig{
		Reinforcer:             reinforcer,
		Entries:                entries,
		EnableEvictSetTraining: true,
	}
}

// NewBelady builds a BeladyTrainer wrapping a fresh minsim.SimMIN sized to
// Entries.
func NewBelady(cfg BeladyConfig) *BeladyTrainer {
	t := &BeladyTrainer{
		reinforcer:     cfg.Reinforcer,
		belady:         minsim.New(cfg.Entries),
		features:       make(map[flowkey.ID]feature.Vector),
		enableEvictSet: cfg.EnableEvictSetTraining,
		enableKeepSet:  cfg.EnableKeepSetTraining,
	}
	if cfg.TrainingLog != nil {
		t.dumpTraining = true
		t.trainingLog = csv.NewWriter(cfg.TrainingLog)
	}
	return t
}

// Touch feeds one access to the underlying MIN simulator and, when the
// barrier advances enough to confirm a hit, reinforces the evict/keep sets
// MIN now classifies as settled.
func (t *BeladyTrainer) Touch(k flowkey.ID, f feature.Vector, ts time.Time) {
	var hit bool
	if _, seen := t.features[k]; seen {
		hit = t.belady.Update(k, ts)
	} else {
		t.belady.Insert(k, ts)
	}

	if hit {
		evictSet, keepSet := t.belady.Evictions()
		if t.enableEvictSet {
			for v := range evictSet {
				if ef, ok := t.features[v]; ok {
					t.Reinforce(v, ef, false)
				}
			}
		}
		if t.enableKeepSet {
			for v := range keepSet {
				if kf, ok := t.features[v]; ok {
					t.Reinforce(v, kf, true)
				}
			}
		}
	}

	if existing, ok := t.features[k]; ok {
		for i := 1; i < feature.NumFeatures; i++ {
			existing[i] = f[i]
		}
		t.features[k] = existing
	} else {
		t.features[k] = f
	}
}

// Reinforce trains the predictor directly off an oracle-known outcome.
func (t *BeladyTrainer) Reinforce(k flowkey.ID, f feature.Vector, keep bool) {
	outcome := t.reinforcer.Reinforce(f, keep)
	if !t.dumpTraining || !outcome.Updated {
		return
	}
	direction := '-'
	if keep {
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
