// Package mapping implements the category/discrete/text → per-target
// aggregate-vector preprocessor of spec.md §4.8, grounded on
// original_source/.../Mapping.cpp and
// include/engine/preprocessors/Mapping.hpp: group peripheral rows by a
// column's value, walk the join chain up to population rows (respecting
// every intermediate time-stamp window, since that is already baked
// into each level's match array), and aggregate target columns over the
// reached population rows.
package mapping

import (
	"fmt"
	"sort"
	"strings"

	"github.com/relforge/relforge/containers"
	"github.com/relforge/relforge/loss"
	"github.com/relforge/relforge/relerrors"
	"github.com/relforge/relforge/schema"
)

// Aggregation is one of the per-target statistics a mapping computes
// over a group's reached population rows (spec.md §4.8 step 3). This is
// a small, mapping-specific subset of FastProp's much larger aggregation
// vocabulary (spec.md §4.7) — a mapping vector is meant to be compact
// enough to key a hash map by, not an exhaustive propositionalization.
type Aggregation int

const (
	Avg Aggregation = iota
	Sum
	Count
	Min
	Max
)

func (a Aggregation) String() string {
	switch a {
	case Avg:
		return "avg"
	case Sum:
		return "sum"
	case Count:
		return "count"
	case Min:
		return "min"
	case Max:
		return "max"
	default:
		return "unknown"
	}
}

// Config holds the mapping preprocessor's hyperparameters (spec.md §6).
type Config struct {
	// MinFreq is the minimum number of distinct population rows a key's
	// group must reach for a mapping entry to be stored (spec.md §4.8
	// step 2); groups below this are dropped, and Transform falls back
	// to the zero vector for them.
	MinFreq int
	// Aggregations lists, in the fixed order staging-name weight indices
	// are drawn from, which per-target statistics to compute.
	Aggregations []Aggregation
}

// Mapping is one fitted key→vector table (spec.md §3 "Mapping table").
// Prefix encodes this mapping's depth in a chain of sub-joined tables
// (empty at the top level), used only for staging-column naming.
type Mapping struct {
	cfg         Config
	prefix      string
	colName     string
	targetCols  int
	table       map[int][]float64
	defaultZero []float64
}

// Snapshot is Mapping's persisted form (spec.md §6's artifact document
// stores one of these per fitted mapping): every unexported field laid
// bare for the artifact package's msgpack encoder, which cannot reach
// across a package boundary into private state.
type Snapshot struct {
	Config      Config
	Prefix      string
	ColName     string
	TargetCols  int
	Table       map[int][]float64
	DefaultZero []float64
}

// Snapshot captures m's full fitted state.
func (m *Mapping) Snapshot() Snapshot {
	return Snapshot{
		Config:      m.cfg,
		Prefix:      m.prefix,
		ColName:     m.colName,
		TargetCols:  m.targetCols,
		Table:       m.table,
		DefaultZero: m.defaultZero,
	}
}

// FromSnapshot rebuilds a Mapping previously captured by Snapshot.
func FromSnapshot(s Snapshot) *Mapping {
	return &Mapping{
		cfg:         s.Config,
		prefix:      s.Prefix,
		colName:     s.ColName,
		targetCols:  s.TargetCols,
		table:       s.Table,
		defaultZero: s.DefaultZero,
	}
}

// buildPerIndex indexes one join level's matches by IxPer, so the
// join-chain walk can fetch "population rows reachable from this
// peripheral row" in O(1) per step (spec.md §4.1's match array is
// already grouped contiguously by IxPop, not IxPer, so an explicit index
// is built here rather than reusing GroupByPop).
func buildPerIndex(ms containers.Matches) map[int][]int {
	idx := make(map[int][]int, len(ms))
	for _, m := range ms {
		idx[m.IxPer] = append(idx[m.IxPer], m.IxPop)
	}
	return idx
}

// walkChain transforms a set of peripheral row indices at chain[0]'s
// IxPer level into the set of population row indices reached after
// walking every level of chain (spec.md §4.8 step 2: "walk up the join
// chain (most-recently-joined first)"). chain[len-1] is assumed to end
// at the top population view.
func walkChain(chain []containers.Matches, start []int) []int {
	frontier := map[int]bool{}
	for _, r := range start {
		frontier[r] = true
	}
	for _, ms := range chain {
		idx := buildPerIndex(ms)
		next := map[int]bool{}
		for r := range frontier {
			for _, p := range idx[r] {
				next[p] = true
			}
		}
		frontier = next
	}
	out := make([]int, 0, len(frontier))
	for r := range frontier {
		out = append(out, r)
	}
	sort.Ints(out)
	return out
}

// aggregate computes the configured Aggregations over targetCols of pop,
// restricted to rows, in the fixed (target, aggregation) weight-index
// order make_staging_table_colname uses: weight_num = target_num *
// len(aggregations) + agg_num.
func aggregate(cfg Config, pop schema.View, targetCols []int, rows []int) []float64 {
	vec := make([]float64, len(targetCols)*len(cfg.Aggregations))
	for ti, col := range targetCols {
		var sum loss.KahanSum
		min, max := 0.0, 0.0
		for i, r := range rows {
			v := pop.Target(r, col)
			sum.Add(v)
			if i == 0 || v < min {
				min = v
			}
			if i == 0 || v > max {
				max = v
			}
		}
		count := float64(len(rows))
		avg := 0.0
		if count > 0 {
			avg = sum.Value() / count
		}
		for ai, agg := range cfg.Aggregations {
			idx := ti*len(cfg.Aggregations) + ai
			switch agg {
			case Avg:
				vec[idx] = avg
			case Sum:
				vec[idx] = sum.Value()
			case Count:
				vec[idx] = count
			case Min:
				vec[idx] = min
			case Max:
				vec[idx] = max
			}
		}
	}
	return vec
}

// Fit groups peripheral rows 0..nPeriphRows by keyFn's result, walks
// chain to the reached population rows, filters by Config.MinFreq on
// the number of distinct population rows reached, and aggregates
// targetCols over each surviving group (spec.md §4.8 steps 1-4).
//
// keyFn returns ok==false for a row with no key (e.g. a NaN discrete
// cell, or a text cell with no known token — spec.md §4.8: "a cell with
// no known tokens yields 0").
func Fit(cfg Config, keyFn func(periphRow int) (key int, ok bool), nPeriphRows int, chain []containers.Matches, pop schema.View, targetCols []int, colName, prefix string) (*Mapping, error) {
	if len(cfg.Aggregations) == 0 {
		return nil, relerrors.ErrInvalidArgument.New("mapping: at least one aggregation must be configured")
	}
	if len(targetCols) == 0 {
		return nil, relerrors.ErrInvalidArgument.New("mapping: at least one target column must be configured")
	}

	groups := map[int][]int{}
	for r := 0; r < nPeriphRows; r++ {
		key, ok := keyFn(r)
		if !ok {
			continue
		}
		groups[key] = append(groups[key], r)
	}

	keys := make([]int, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Ints(keys) // deterministic iteration (spec.md §8 "determinism")

	m := &Mapping{
		cfg:         cfg,
		prefix:      prefix,
		colName:     colName,
		targetCols:  len(targetCols),
		table:       make(map[int][]float64, len(keys)),
		defaultZero: make([]float64, len(targetCols)*len(cfg.Aggregations)),
	}

	for _, key := range keys {
		popRows := walkChain(chain, groups[key])
		if len(popRows) < cfg.MinFreq {
			continue
		}
		m.table[key] = aggregate(cfg, pop, targetCols, popRows)
	}
	return m, nil
}

// Transform returns key's stored aggregate vector, or the zero vector if
// key was below MinFreq or never observed during Fit (spec.md §4.8:
// Transform "appends one numerical column per (original_column,
// weight_index) pair").
func (m *Mapping) Transform(key int) []float64 {
	if vec, ok := m.table[key]; ok {
		return vec
	}
	return m.defaultZero
}

// TransformText computes the element-wise average of the vectors for a
// set of token keys (spec.md §4.8: "a text cell maps to the element-wise
// average of vectors for its tokens; missing tokens contribute nothing;
// a cell with no known tokens yields 0"). Tokens without a stored
// mapping entry are skipped entirely, not treated as zero contributors.
func (m *Mapping) TransformText(tokens []int) []float64 {
	out := make([]float64, len(m.defaultZero))
	n := 0
	for _, tok := range tokens {
		vec, ok := m.table[tok]
		if !ok {
			continue
		}
		for i, v := range vec {
			out[i] += v
		}
		n++
	}
	if n == 0 {
		return out // already all zero
	}
	for i := range out {
		out[i] /= float64(n)
	}
	return out
}

// StagingName encodes (original column, depth prefix, target index,
// aggregation name) into the appended column's name (spec.md §4.8
// "Transform appends ... The column's staging name encodes the original
// column, mapping depth prefix, target index, and aggregation name"),
// grounded on Mapping::make_staging_table_colname.
func (m *Mapping) StagingName(weightNum int) string {
	aggNum := weightNum % len(m.cfg.Aggregations)
	targetNum := weightNum / len(m.cfg.Aggregations)
	agg := strings.ToLower(m.cfg.Aggregations[aggNum].String())
	return fmt.Sprintf("%s__mapping_%starget_%d_%s", m.colName, m.prefix, targetNum+1, agg)
}

// NumWeights returns the number of staging columns Transform produces
// per row: one per (target column, aggregation) pair.
func (m *Mapping) NumWeights() int {
	return m.targetCols * len(m.cfg.Aggregations)
}
