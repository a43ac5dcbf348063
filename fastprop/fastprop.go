// Package fastprop implements the propositionalization engine of
// spec.md §4.7 ("FastProp"), grounded on
// original_source/.../fastprop/FastProp.cpp: enumerate candidate
// (aggregation, condition-set, input-column) features over a
// population's peripherals, batch-evaluate them by R² against the
// targets, retain those scoring strictly above the num_features-th best
// R² (so fewer than num_features survive), then materialize them
// into a dense feature matrix sharded across worker goroutines.
package fastprop

import (
	"math"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/relforge/relforge/containers"
	"github.com/relforge/relforge/mapping"
	"github.com/relforge/relforge/partition"
	"github.com/relforge/relforge/relerrors"
	"github.com/relforge/relforge/reduce"
	"github.com/relforge/relforge/rflog"
	"github.com/relforge/relforge/schema"
)

// Aggregation enumerates spec.md §4.7's admissible aggregations.
type Aggregation int

const (
	Avg Aggregation = iota
	Count
	CountDistinct
	CountMinusCountDistinct
	CountDistinctOverCount
	CountAboveMean
	CountBelowMean
	Sum
	Min
	Max
	NumMin
	NumMax
	Median
	Mode
	Stddev
	Var
	VariationCoefficient
	Skew
	Kurtosis
	Q1
	Q5
	Q10
	Q25
	Q75
	Q90
	Q95
	Q99
	First
	Last
	AvgTimeBetween
	Trend
)

// AllAggregations lists every admissible aggregation, the default
// enumeration set when Config.Aggregations is nil.
var AllAggregations = []Aggregation{
	Avg, Count, CountDistinct, CountMinusCountDistinct, CountDistinctOverCount,
	CountAboveMean, CountBelowMean, Sum, Min, Max, NumMin, NumMax, Median, Mode,
	Stddev, Var, VariationCoefficient, Skew, Kurtosis,
	Q1, Q5, Q10, Q25, Q75, Q90, Q95, Q99, First, Last, AvgTimeBetween, Trend,
}

func (a Aggregation) String() string {
	names := [...]string{
		"avg", "count", "count_distinct", "count_minus_count_distinct",
		"count_distinct_over_count", "count_above_mean", "count_below_mean",
		"sum", "min", "max", "num_min", "num_max", "median", "mode", "stddev",
		"var", "variation_coefficient", "skew", "kurtosis",
		"q1", "q5", "q10", "q25", "q75", "q90", "q95", "q99",
		"first", "last", "avg_time_between", "trend",
	}
	if int(a) < 0 || int(a) >= len(names) {
		return "unknown"
	}
	return names[a]
}

// isCategoricalOnly reports whether agg is one of the two aggregations
// spec.md §4.7 restricts to non-same-unit categorical columns, which
// "cannot combine with categorical conditions".
func isCategoricalOnly(agg Aggregation) bool {
	return agg == CountDistinct || agg == CountMinusCountDistinct
}

// requiresTimeStamps reports whether agg needs both tables to carry
// time stamps (spec.md §4.7: "first/last require both tables to have
// time stamps"). avg_time_between and trend need an ordering too.
func requiresTimeStamps(agg Aggregation) bool {
	return agg == First || agg == Last || agg == AvgTimeBetween || agg == Trend
}

// Peripheral bundles one joined table's view with its already-built
// match array against the population (spec.md §4.1's match array is
// built upstream by the matching package; fastprop only consumes it).
type Peripheral struct {
	View    schema.View
	Matches containers.Matches
}

// Config holds FastProp's hyperparameters (spec.md §6).
type Config struct {
	NMostFrequent   int // cap on categorical conditions materialized per column
	NumFeatures     int // cap on retained features after R² ranking
	SamplingFactor  float64
	SplitTextFields bool
	MinDF           int // stored only: Fit builds no text vocabulary, so it has no effect
	VocabSize       int // stored only: Fit builds no text vocabulary, so it has no effect
	MappingMinFreq  int // min_freq passed to the mapping preprocessor (spec.md §4.8)
	Aggregations    []Aggregation
}

func (c Config) aggregations() []Aggregation {
	if len(c.Aggregations) == 0 {
		return AllAggregations
	}
	return c.Aggregations
}

// Condition is one membership test a feature's matches must all satisfy
// (spec.md §4.7: "filter matches by the feature's conditions"), reusing
// partition.IsGreater against an arbitrary containers.Split — the same
// predicate machinery the tree package's candidate search uses.
type Condition struct {
	Split containers.Split
}

// AbstractFeature is one instantiated (aggregation, conditions,
// input-column) candidate (spec.md §4.7 step 5). ValueSplit addresses
// the aggregated column via partition.Value's existing per-family
// switch, reused here rather than duplicated.
type AbstractFeature struct {
	Peripheral  int
	Conditions  []Condition
	ValueSplit  containers.Split
	Aggregation Aggregation
}

// FastProp is a fitted propositionalization engine.
type FastProp struct {
	cfg      Config
	features []AbstractFeature
	mappings []*mapping.Mapping // one per (peripheral, mapped column), spec.md §4.7 step 3
}

// Snapshot is FastProp's persisted form (spec.md §6's artifact document
// stores one of these per fitted feature set).
type Snapshot struct {
	Config    Config
	Features  []AbstractFeature
	Mappings  []mapping.Snapshot
}

// Snapshot captures fp's full fitted state.
func (fp *FastProp) Snapshot() Snapshot {
	s := Snapshot{Config: fp.cfg, Features: fp.features}
	for _, m := range fp.mappings {
		s.Mappings = append(s.Mappings, m.Snapshot())
	}
	return s
}

// FromSnapshot rebuilds a FastProp previously captured by Snapshot.
func FromSnapshot(s Snapshot) *FastProp {
	fp := &FastProp{cfg: s.Config, features: s.Features}
	for _, ms := range s.Mappings {
		fp.mappings = append(fp.mappings, mapping.FromSnapshot(ms))
	}
	return fp
}

// Fit implements spec.md §4.7's fit algorithm.
func Fit(cfg Config, pop schema.View, peripherals []Peripheral, targetCols []int, reducer reduce.Reducer, logger *rflog.Logger, rnd func() float64) (*FastProp, error) {
	if pop.NRows() == 0 {
		return nil, relerrors.ErrInvalidArgument.New("fastprop: population must have at least one row")
	}
	if len(targetCols) == 0 {
		return nil, relerrors.ErrInvalidArgument.New("fastprop: at least one target column required")
	}
	if reducer == nil {
		reducer = reduce.SingleProcess{}
	}

	peripherals = maybeSplitTextFields(cfg, peripherals)

	fp := &FastProp{cfg: cfg}
	fp.mappings = fitMappings(cfg, pop, peripherals, targetCols)

	rownums := sampleRows(cfg, pop.NRows(), rnd)

	var candidates []AbstractFeature
	for pIdx, per := range peripherals {
		candidates = append(candidates, enumerateFeatures(cfg, pop, per, pIdx)...)
	}

	if logger != nil {
		logger.Infof("fastprop: trying %d features", len(candidates))
	}

	if len(candidates) <= cfg.NumFeatures || cfg.NumFeatures <= 0 {
		fp.features = candidates
		return fp, nil
	}

	views := partition.Views{Pop: pop}
	scores := make([]float64, len(candidates))
	for i, feat := range candidates {
		vals := make([]float64, len(rownums))
		for j, row := range rownums {
			views.Per = peripherals[feat.Peripheral].View
			vals[j] = clamp(evaluateFeature(views, peripherals[feat.Peripheral].Matches, feat, row))
		}
		scores[i] = maxRSquared(vals, pop, rownums, targetCols)
	}

	threshold := thresholdAt(scores, cfg.NumFeatures)
	for i, feat := range candidates {
		if scores[i] > threshold {
			fp.features = append(fp.features, feat)
		}
	}
	return fp, nil
}

// NumFeatures reports how many features survived fitting.
func (fp *FastProp) NumFeatures() int { return len(fp.features) }

// Transform implements spec.md §4.7's transform: one float per
// (population row, retained feature), sharded across worker goroutines
// by row range, progress logged every 5000 rows. Per spec.md §7, each
// worker recovers its own panics into a shared error slot; the first
// one observed is re-raised once every worker has joined.
func (fp *FastProp) Transform(pop schema.View, peripherals []Peripheral, logger *rflog.Logger) ([][]float64, error) {
	nrows := pop.NRows()
	out := make([][]float64, nrows)
	for i := range out {
		out[i] = make([]float64, len(fp.features))
	}

	numWorkers := 4
	if nrows < numWorkers {
		numWorkers = 1
	}
	chunk := (nrows + numWorkers - 1) / numWorkers
	if chunk == 0 {
		chunk = 1
	}

	var completed int64
	var errOnce sync.Once
	var workerErr error
	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		begin := w * chunk
		end := begin + chunk
		if begin >= nrows {
			break
		}
		if end > nrows {
			end = nrows
		}
		wg.Add(1)
		go func(begin, end int) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					errOnce.Do(func() {
						workerErr = errors.Errorf("fastprop: worker panic on rows [%d,%d): %v", begin, end, r)
					})
				}
			}()
			for row := begin; row < end; row++ {
				for fIdx, feat := range fp.features {
					views := partition.Views{Pop: pop, Per: peripherals[feat.Peripheral].View}
					out[row][fIdx] = clamp(evaluateFeature(views, peripherals[feat.Peripheral].Matches, feat, row))
				}
				n := atomic.AddInt64(&completed, 1)
				if logger != nil && n%5000 == 0 {
					logger.Infof("fastprop: built %d rows, progress %d%%", n, (n*100)/int64(nrows))
				}
			}
		}(begin, end)
	}
	wg.Wait()
	if workerErr != nil {
		return nil, errors.Wrap(workerErr, "fastprop: transform failed")
	}
	return out, nil
}

func clamp(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// rowMatches returns the sub-slice of ms whose IxPop == row, relying on
// spec.md §4.1's contiguous-by-IxPop match array layout.
func rowMatches(ms containers.Matches, row int) containers.Matches {
	lo := sort.Search(len(ms), func(i int) bool { return ms[i].IxPop >= row })
	hi := sort.Search(len(ms), func(i int) bool { return ms[i].IxPop > row })
	return ms[lo:hi]
}

func evaluateFeature(v partition.Views, ms containers.Matches, feat AbstractFeature, row int) float64 {
	rowMs := rowMatches(ms, row)
	var kept []containers.Match
	for _, m := range rowMs {
		ok := true
		for _, c := range feat.Conditions {
			if !partition.IsGreater(c.Split, v, m) {
				ok = false
				break
			}
		}
		if ok {
			kept = append(kept, m)
		}
	}
	return aggregate(feat.Aggregation, v, feat.ValueSplit, kept)
}
