package main

import (
	"math/rand"
	"time"

	"flowlab.dev/flowlab/internal/cachesim"
	"flowlab.dev/flowlab/internal/capture"
	"flowlab.dev/flowlab/internal/extract"
	"flowlab.dev/flowlab/internal/feature"
	"flowlab.dev/flowlab/internal/flowkey"
	"flowlab.dev/flowlab/internal/flowtable"
	"flowlab.dev/flowlab/internal/logging"
	"flowlab.dev/flowlab/internal/metrics"
	"flowlab.dev/flowlab/internal/minsim"
	"flowlab.dev/flowlab/internal/perceptron"
	"flowlab.dev/flowlab/internal/sampling"
	"flowlab.dev/flowlab/internal/simconfig"
	"flowlab.dev/flowlab/internal/trainer"
	"flowlab.dev/flowlab/internal/view"
)

// Engine wires together every simulation component spec.md and
// SPEC_FULL.md name into one packet-processing pipeline: flow table,
// feature builder, predictive cache, Belady/MIN reference simulator, and
// the perceptron training glue. Grounded on
// grimm-is-flywall/cmd/flywall-sim/main.go's runServer/Replayer split,
// generalized from a single firewall-evaluation engine into the flow-cache
// simulation core.
type Engine struct {
	logger *logging.Logger

	table   *flowtable.Table
	builder *feature.Builder
	cache   *cachesim.Cache
	belady  *minsim.SimMIN

	perc    *perceptron.Perceptron
	history *trainer.HistoryTrainer

	store     *sampling.MemoryStore
	collector *metrics.SimCollector

	packets uint64
}

// NewEngine builds an Engine from a resolved config. A nil cfg uses
// spec.md §6's defaults.
func NewEngine(cfg *simconfig.Resolved, logger *logging.Logger) (*Engine, error) {
	if cfg == nil {
		cfg = &simconfig.Resolved{
			MinEntries:         4096,
			CacheEntries:       4096,
			CacheAssociativity: 8,
			ReplacePolicy:      cachesim.ReplaceLRU,
			InsertPolicy:       cachesim.InsertMRU,
		}
	}
	if logger == nil {
		logger = logging.New(logging.DefaultConfig())
	}

	rng := rand.New(rand.NewSource(1))
	perc := perceptron.New(perceptron.DefaultConfig(), rng)

	historyTrainer := trainer.New(trainer.Config{
		Reinforcer: perc,
		KeepDepth:  128,
		EvictDepth: 128,
	})

	cache, err := cachesim.NewCache(cachesim.Config{
		Entries:   cfg.CacheEntries,
		Ways:      cfg.CacheAssociativity,
		Insert:    cfg.InsertPolicy,
		Replace:   cfg.ReplacePolicy,
		Predictor: perc,
		Observer:  historyTrainer,
	})
	if err != nil {
		return nil, err
	}

	table := flowtable.New(flowtable.Config{Timeseries: cfg.Timeseries})
	belady := minsim.New(cfg.MinEntries)

	store := sampling.NewMemoryStore()
	collector := metrics.NewSimCollector(logger, 5*time.Second)

	return &Engine{
		logger:    logger,
		table:     table,
		builder:   feature.NewBuilder(nil),
		cache:     cache,
		belady:    belady,
		perc:      perc,
		history:   historyTrainer,
		store:     store,
		collector: collector,
	}, nil
}

// ProcessPacket runs one captured packet through the table, Belady
// reference simulator, and predictive cache, matching spec.md §4's
// per-packet pipeline: ingest → feature build → MIN update → cache update.
func (e *Engine) ProcessPacket(pkt capture.Packet) {
	c := view.NewCursor(pkt.Data)
	fields, _, err := extract.Extract(c, extract.Ethernet)
	if err != nil {
		e.logger.Debug("packet extraction failed", "err", err, "port", pkt.PortID)
	}

	id, delta := e.table.Ingest(fields, pkt.Timestamp, pkt.WireLen)
	e.packets++

	if delta.Retired {
		e.exportSample(delta.OldID)
	}

	rec, ok := e.table.Record(id)
	if !ok {
		return
	}

	vec := e.builder.Build(fields, rec, nil)
	if delta.Created {
		e.belady.Insert(id, pkt.Timestamp)
		e.cache.Insert(id, pkt.Timestamp, vec)
		return
	}

	e.belady.Update(id, pkt.Timestamp)
	e.cache.Update(id, pkt.Timestamp, vec)
}

// exportSample pushes a just-retired flow's arrival-delta series into the
// sampling store, matching spec.md §6.4's flow-stats export contract. The
// record is already in Table's retired map by the time Ingest returns a
// Delta with Retired set (Table.retire moves it there synchronously).
func (e *Engine) exportSample(id flowkey.ID) {
	rec, ok := e.table.RetiredRecord(id)
	if !ok {
		return
	}

	arrivalNS := make([]int64, len(rec.ArrivalDeltas))
	var cumulative int64
	for i, d := range rec.ArrivalDeltas {
		cumulative += d
		arrivalNS[i] = cumulative
	}

	e.store.Add(sampling.FlowSample{
		FlowID:    id,
		ArrivalNS: arrivalNS,
		Delta:     rec.ArrivalDeltas,
	})
}

// Stats reports the engine's aggregate processing counters.
func (e *Engine) Stats() (packets uint64) {
	return e.packets
}
