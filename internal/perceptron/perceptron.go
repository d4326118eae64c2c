// Package perceptron implements the hashed-perceptron predictor: one
// independent weight table per feature, trained online with a dynamic
// training-threshold band.
//
// Grounded on original_source/flowpath/perceptron.hpp's
// entangle::PerceptronTable<Key> / entangle::HashedPerceptron<Key>,
// including the exact dynamic-threshold mechanics (UPDATE_STEP == 0.001,
// an 8-bit saturating threshold-pressure counter) and the CSV stats-dump
// machinery restored as a supplemental feature (DESIGN.md).
package perceptron

import (
	"encoding/csv"
	"io"
	"math/rand"
	"strconv"

	"flowlab.dev/flowlab/internal/feature"
)

// updateStep is the fixed nudge applied to the training ratio on threshold-
// pressure saturation. Spec.md §9 Open Question (c): this constant is kept
// hard-coded, matching perceptron.hpp's UPDATE_STEP; correctness at other
// step sizes is explicitly unverified by the original design.
const updateStep = 0.001

const tableSize = 1 << 16 // indexed directly by a uint16 feature value

// PerceptronTable is one feature's row of saturating weight counters, plus
// its own inference/train counters for statistics.
type PerceptronTable struct {
	weights [tableSize]Saturating5

	inferences uint64
	trains     uint64
}

func newPerceptronTable(rng *rand.Rand, randomInit bool) *PerceptronTable {
	t := &PerceptronTable{}
	if randomInit {
		for i := range t.weights {
			t.weights[i] = Saturating5(rng.Intn(Saturating5Max-Saturating5Min+1) + Saturating5Min)
		}
	}
	return t
}

// Config configures a Perceptron.
type Config struct {
	Threshold   int64
	RandomInit  bool // default true, matching perceptron.hpp's default init mode
	ForceUpdate bool // train every packet regardless of the training band (ablation mode)
	InitialRatio float64
}

// DefaultConfig returns spec.md §6's default: threshold 0, random init.
func DefaultConfig() Config {
	return Config{Threshold: 0, RandomInit: true, InitialRatio: 0.5}
}

// Prediction is the result of Infer.
type Prediction struct {
	Predict bool
	Sum     int64
	Weights [feature.NumFeatures]int8
}

// Outcome is the result of Reinforce.
type Outcome struct {
	Updated      bool
	WasIncorrect bool
	Weights      [feature.NumFeatures]int8
}

// Perceptron is the hashed perceptron: feature.NumFeatures independent
// tables, one per feature index, with table 0 (the control feature) never
// contributing to the decision sum.
type Perceptron struct {
	cfg    Config
	tables [feature.NumFeatures]*PerceptronTable

	trainingRatio     float64
	thresholdPressure Saturating8

	rng *rand.Rand
}

// New creates a Perceptron. rng seeds table initialization and is retained
// for any further randomized behavior, per spec.md §9's "thread RNG
// explicitly through constructors" design note.
func New(cfg Config, rng *rand.Rand) *Perceptron {
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	p := &Perceptron{cfg: cfg, rng: rng, trainingRatio: cfg.InitialRatio}
	if p.trainingRatio == 0 {
		p.trainingRatio = 0.5
	}
	for i := range p.tables {
		p.tables[i] = newPerceptronTable(rng, cfg.RandomInit)
	}
	return p
}

// DecisionThreshold returns the configured decision threshold T.
func (p *Perceptron) DecisionThreshold() int64 { return p.cfg.Threshold }

// maxSpan is the largest magnitude the decision sum can reach, used to
// scale the training ratio into a concrete {T-, T+} band.
func (p *Perceptron) maxSpan() int64 {
	return int64(feature.NumFeatures-1) * Saturating5Max
}

// TrainingThreshold returns the current {T-, T+} band, derived from the
// training ratio: as the ratio grows the band widens symmetrically around
// the decision threshold.
func (p *Perceptron) TrainingThreshold() (neg, pos int64) {
	span := int64(float64(p.maxSpan()) * p.trainingRatio)
	return p.cfg.Threshold - span, p.cfg.Threshold + span
}

// Infer computes the decision sum over tables [1:NumFeatures) (table 0 is
// the control feature, excluded per spec.md §4.4) and compares it to the
// decision threshold. If tracked, each contributing table's inference
// counter is incremented.
func (p *Perceptron) Infer(key feature.Vector, tracked bool) Prediction {
	var pr Prediction
	var sum int64
	for i := 1; i < feature.NumFeatures; i++ {
		w := p.tables[i].weights[key[i]]
		pr.Weights[i] = int8(w)
		sum += int64(w)
		if tracked {
			p.tables[i].inferences++
		}
	}
	pr.Weights[0] = int8(p.tables[0].weights[key[0]])
	pr.Sum = sum
	pr.Predict = sum >= p.cfg.Threshold
	return pr
}

// Reinforce trains the perceptron toward target (the desired boolean
// outcome) for the given feature vector key, applying the update rule from
// spec.md §4.4 and updating the dynamic training threshold.
func (p *Perceptron) Reinforce(key feature.Vector, target bool) Outcome {
	pr := p.Infer(key, false)

	neg, pos := p.TrainingThreshold()
	wasIncorrect := pr.Predict != target
	weak := (target && pr.Sum < pos) || (!target && pr.Sum > neg)
	shouldUpdate := p.cfg.ForceUpdate || wasIncorrect || weak

	var out Outcome
	out.WasIncorrect = wasIncorrect
	if !shouldUpdate {
		out.Weights = pr.Weights
		return out
	}

	for i := 1; i < feature.NumFeatures; i++ {
		t := p.tables[i]
		if target {
			t.weights[key[i]].Inc()
		} else {
			t.weights[key[i]].Dec()
		}
		t.trains++
		out.Weights[i] = int8(t.weights[key[i]])
	}
	out.Weights[0] = int8(p.tables[0].weights[key[0]])
	out.Updated = true

	p.updateThresholdPressure(wasIncorrect)

	return out
}

// updateThresholdPressure implements perceptron.hpp's dynamic training-
// threshold algorithm: a "correction" (mispredicted) saturating-increments
// the pressure counter; a "reinforcement" (predicted correctly, but inside
// the weak band) saturating-decrements it. On saturation in either
// direction, the training ratio is nudged by ±updateStep (capped to
// [0,1]) and the counter resets.
func (p *Perceptron) updateThresholdPressure(wasIncorrect bool) {
	var saturated bool
	if wasIncorrect {
		saturated = p.thresholdPressure.Inc()
		if saturated {
			p.trainingRatio -= updateStep // corrections dominate: narrow the band
			p.thresholdPressure.Reset()
		}
	} else {
		saturated = p.thresholdPressure.Dec()
		if saturated {
			p.trainingRatio += updateStep // mostly right: widen the band
			p.thresholdPressure.Reset()
		}
	}
	if p.trainingRatio < 0 {
		p.trainingRatio = 0
	}
	if p.trainingRatio > 1 {
		p.trainingRatio = 1
	}
}

// TrainingRatio returns the current training ratio in [0,1].
func (p *Perceptron) TrainingRatio() float64 { return p.trainingRatio }

// Stats is a snapshot of per-table inference/train counters.
type Stats struct {
	Inferences [feature.NumFeatures]uint64
	Trains     [feature.NumFeatures]uint64
}

// Snapshot returns the current per-table statistics.
func (p *Perceptron) Snapshot() Stats {
	var s Stats
	for i, t := range p.tables {
		s.Inferences[i] = t.inferences
		s.Trains[i] = t.trains
	}
	return s
}

// WriteCSV dumps per-table inference/train counts in CSV form, restoring
// the supplemental stats-dump feature from perceptron.hpp's
// csv_tables_/csv_stats_ machinery (DESIGN.md).
func (p *Perceptron) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write([]string{"table", "inferences", "trains"}); err != nil {
		return err
	}
	s := p.Snapshot()
	for i := 0; i < feature.NumFeatures; i++ {
		row := []string{
			strconv.Itoa(i),
			strconv.FormatUint(s.Inferences[i], 10),
			strconv.FormatUint(s.Trains[i], 10),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	return nil
}
