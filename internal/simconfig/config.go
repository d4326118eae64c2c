// Package simconfig is the HCL configuration surface for the simulation
// core, adapted from the teacher's internal/config idiom: struct tags
// drive hashicorp/hcl/v2 decoding, doc comments carry @default/@enum
// annotations, and LoadFile/LoadBytes resolve a decoded document into
// concrete simulator settings with every default applied.
//
// Grounded on grimm-is-flywall/internal/config/hcl.go's
// LoadConfigFile/LoadConfigFromBytes shape and
// grimm-is-flywall/internal/config/ebpf.go's block-of-pointers struct-tag
// style.
package simconfig

import (
	"os"
	"strings"

	"github.com/hashicorp/hcl/v2/hclsimple"

	"flowlab.dev/flowlab/internal/cachesim"
	"flowlab.dev/flowlab/internal/errors"
)

// Config is the root HCL document: a single top-level `sim` block.
type Config struct {
	Sim *SimBlock `hcl:"sim,block"`
}

// SimBlock is `sim { ... }`.
type SimBlock struct {
	Min   *MinBlock   `hcl:"min,block"`
	Cache *CacheBlock `hcl:"cache,block"`

	// Timeseries enables per-flow byte-size history (Record.ByteSizes).
	// @default: false
	Timeseries bool `hcl:"timeseries,optional"`
}

// MinBlock is `sim.min { ... }`.
type MinBlock struct {
	// Entries sizes the Belady (MIN) reference simulator's capacity
	// vector.
	// @default: 4096
	Entries int `hcl:"entries,optional"`
}

// CacheBlock is `sim.cache { ... }`.
type CacheBlock struct {
	// @default: 4096
	Entries int `hcl:"entries,optional"`
	// Associativity is the number of ways per set; must evenly divide
	// Entries.
	// @default: 8
	Associativity int `hcl:"associativity,optional"`
	// ReplacePolicy selects the eviction policy.
	// @enum: LRU MRU RANDOM BURST_LRU SRRIP SRRIP_CB HP_LRU
	// @default: LRU
	ReplacePolicy string `hcl:"rp,optional"`
	// InsertPolicy selects the admission policy.
	// @enum: MRU LRU RANDOM SHIP BYPASS HP_BYPASS
	// @default: MRU
	InsertPolicy string `hcl:"ip,optional"`

	HP *HPBlock `hcl:"hp,block"`
}

// HPBlock is `sim.cache.hp { ... }`, the hashed-perceptron predictor
// attached to HP_BYPASS/HP_LRU policies.
type HPBlock struct {
	// Threshold is the perceptron decision threshold.
	// @default: 0
	Threshold int64 `hcl:"threshold,optional"`
	// DBP enables dead-block prediction on touch.
	// @default: false
	DBP bool `hcl:"dbp,optional"`
	// BP enables bypass prediction on insert.
	// @default: false
	BP bool `hcl:"bp,optional"`
}

// Resolved is a fully-defaulted, enum-validated configuration ready to
// drive cachesim.NewCache/minsim.New/perceptron.New construction.
type Resolved struct {
	MinEntries int

	CacheEntries       int
	CacheAssociativity int
	ReplacePolicy      cachesim.ReplacePolicy
	InsertPolicy       cachesim.InsertPolicy

	HPThreshold int64
	HPDeadBlock bool
	HPBypass    bool

	Timeseries bool
}

var replacePolicyNames = map[string]cachesim.ReplacePolicy{
	"LRU":       cachesim.ReplaceLRU,
	"MRU":       cachesim.ReplaceMRU,
	"RANDOM":    cachesim.ReplaceRandom,
	"BURST_LRU": cachesim.ReplaceBurstLRU,
	"SRRIP":     cachesim.ReplaceSRRIP,
	"SRRIP_CB":  cachesim.ReplaceSRRIPCB,
	"HP_LRU":    cachesim.ReplaceHPLRU,
}

var insertPolicyNames = map[string]cachesim.InsertPolicy{
	"MRU":       cachesim.InsertMRU,
	"LRU":       cachesim.InsertLRU,
	"RANDOM":    cachesim.InsertRandom,
	"SHIP":      cachesim.InsertSHiP,
	"BYPASS":    cachesim.InsertBypass,
	"HP_BYPASS": cachesim.InsertHPBypass,
}

// LoadFile reads and decodes an HCL configuration file from path.
func LoadFile(path string) (*Resolved, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.Inconsistent, "reading config file")
	}
	return LoadBytes(path, data)
}

// LoadBytes decodes an HCL document already in memory; filename is used
// only for diagnostic messages.
func LoadBytes(filename string, data []byte) (*Resolved, error) {
	var cfg Config
	if err := hclsimple.Decode(filename, data, nil, &cfg); err != nil {
		return nil, errors.Wrap(err, errors.Inconsistent, "decoding hcl config")
	}
	return resolve(&cfg)
}

func resolve(cfg *Config) (*Resolved, error) {
	r := &Resolved{
		MinEntries:         4096,
		CacheEntries:       4096,
		CacheAssociativity: 8,
		ReplacePolicy:      cachesim.ReplaceLRU,
		InsertPolicy:       cachesim.InsertMRU,
	}

	if cfg.Sim == nil {
		return r, nil
	}
	r.Timeseries = cfg.Sim.Timeseries

	if m := cfg.Sim.Min; m != nil && m.Entries > 0 {
		r.MinEntries = m.Entries
	}

	c := cfg.Sim.Cache
	if c == nil {
		return r, nil
	}
	if c.Entries > 0 {
		r.CacheEntries = c.Entries
	}
	if c.Associativity > 0 {
		r.CacheAssociativity = c.Associativity
	}

	if c.ReplacePolicy != "" {
		p, ok := replacePolicyNames[strings.ToUpper(c.ReplacePolicy)]
		if !ok {
			return nil, errors.New(errors.PolicyUnknown, "unknown cache replacement policy: "+c.ReplacePolicy)
		}
		r.ReplacePolicy = p
	}
	if c.InsertPolicy != "" {
		p, ok := insertPolicyNames[strings.ToUpper(c.InsertPolicy)]
		if !ok {
			return nil, errors.New(errors.PolicyUnknown, "unknown cache insertion policy: "+c.InsertPolicy)
		}
		r.InsertPolicy = p
	}

	if hp := c.HP; hp != nil {
		r.HPThreshold = hp.Threshold
		r.HPDeadBlock = hp.DBP
		r.HPBypass = hp.BP
	}

	return r, nil
}
