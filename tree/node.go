// Package tree implements the recursive decision-tree node of spec.md
// §4.5: a state machine that tries every admissible predicate family
// over its match subrange, picks the best by loss reduction, partitions,
// and spawns two children.
package tree

import (
	"math"
	"sort"

	"github.com/opentracing/opentracing-go"

	"github.com/relforge/relforge/containers"
	"github.com/relforge/relforge/loss"
	"github.com/relforge/relforge/partition"
	"github.com/relforge/relforge/reduce"
	"github.com/relforge/relforge/rflog"
)

// Config holds the node-fitting hyperparameters of spec.md §6 relevant
// to tree search.
type Config struct {
	MaxDepth      int // 0 => unlimited
	MinNumSamples int
	Gamma         float64
	NMostFrequent int // cap on categorical values materialized as conditions
	DeltaT        float64
}

// LinearLeaf is the relcit/relmt variant's leaf payload (spec.md §4.5
// last paragraph): a leaf returns intercept + Σ wᵢ·rescaled_featureᵢ
// instead of a bare scalar weight.
type LinearLeaf struct {
	Intercept float64
	Weights   []float64
	// FeatureFn extracts the rescaled feature vector for one match; nil
	// for axis-aligned (relboost) trees.
	FeatureFn func(containers.Match) []float64
}

// Node is one decision-tree node (spec.md §3 "Tree node"). Either both
// children are set and Split is non-nil, or neither is set (a leaf).
type Node struct {
	Depth int
	Split *containers.Split

	Weight float64 // this node's leaf weight, meaningful only if it IS a leaf

	ChildGreater    *Node
	ChildNotGreater *Node

	Linear *LinearLeaf // set only for relcit/relmt leaves
}

// IsLeaf reports whether n has no children.
func (n *Node) IsLeaf() bool { return n.ChildGreater == nil && n.ChildNotGreater == nil }

// Predict descends the tree from n using the same IsGreater predicate
// used at partition time, returning the reached leaf's value (spec.md
// §4.5 "Transform").
func Predict(n *Node, v partition.Views, m containers.Match) float64 {
	for !n.IsLeaf() {
		if partition.IsGreater(*n.Split, v, m) {
			n = n.ChildGreater
		} else {
			n = n.ChildNotGreater
		}
	}
	if n.Linear != nil {
		val := n.Linear.Intercept
		feat := n.Linear.FeatureFn(m)
		for i, w := range n.Linear.Weights {
			if i < len(feat) {
				val += w * feat[i]
			}
		}
		return val
	}
	return n.Weight
}

// Candidate is one scored split found during the candidate-search phase
// (spec.md §4.5).
type Candidate struct {
	PartialLoss float64
	Split       containers.Split
	LeftWeight  float64
	RightWeight float64
}

// FitContext bundles everything Fit needs beyond the match subrange:
// the two table views, a sample extractor, families admissible at this
// node, and the ambient logging/tracing/reduction collaborators.
type FitContext struct {
	Views    partition.Views
	Families []FamilyTemplate
	Fn       loss.Function
	Config   Config
	Reducer  reduce.Reducer
	Logger   *rflog.Logger
	Tracer   opentracing.Tracer

	// Sample returns the (target, current prediction) pair for one
	// match's population row, used to build loss.Sample slices for the
	// accumulator (spec.md §4.4).
	Sample func(containers.Match) loss.Sample
}

// FamilyTemplate names one admissible (DataUsed, columnPop, columnPer)
// instantiation the schema licenses at this node (spec.md §4.2's family
// table, scoped to the columns actually present).
type FamilyTemplate struct {
	DataUsed  containers.DataUsed
	ColumnPop int
	ColumnPer int
	Discrete  bool // whether critical values should be rounded to ints
	// Subfeature, when DataUsed == containers.Subfeature, supplies the
	// externally computed per-peripheral-row column.
	Subfeature []float64
}

// Tracer aliases opentracing.Tracer so callers can reference tree.Tracer
// without importing opentracing directly.
type Tracer = opentracing.Tracer

// Fit grows one node over ms[begin:end) at the given depth, inheriting
// parentWeight as the leaf value to fall back on if no split is chosen
// (spec.md §4.5 "Select").
func Fit(ctx *FitContext, ms containers.Matches, begin, end, depth int, parentWeight float64) *Node {
	span := startSpan(ctx, "tree.Fit")
	defer span.Finish()

	if ctx.Config.MaxDepth > 0 && depth >= ctx.Config.MaxDepth {
		return &Node{Depth: depth, Weight: parentWeight}
	}

	candidates := searchCandidates(ctx, ms, begin, end)
	if len(candidates) == 0 {
		return &Node{Depth: depth, Weight: parentWeight}
	}

	// Larger PartialLoss is a better split (spec.md §4.4: a candidate's
	// loss reduction is gLeft+gRight-gParent, and Gamma below rejects any
	// split whose reduction falls short of the minimum-gain threshold),
	// so selection maximizes, with ties kept at the earliest-appended
	// candidate (spec.md §4.5 "Tie-breaks").
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.PartialLoss > best.PartialLoss {
			best = c
		}
	}

	// Validate: fully evaluate the chosen split with calc_all.
	result := validate(ctx, ms, begin, end, best.Split)
	if math.IsNaN(result.LossReduction) || result.LossReduction < ctx.Config.Gamma {
		return &Node{Depth: depth, Weight: parentWeight}
	}

	splitCopy := best.Split
	boundary := partition.Partition(splitCopy, ctx.Views, ms, begin, end)

	if ctx.Logger != nil {
		ctx.Logger.Tracef("node depth=%d split=%s loss_reduction=%.6g n=%d", depth, splitCopy.DataUsed, result.LossReduction, end-begin)
	}

	node := &Node{Depth: depth, Split: &splitCopy}
	node.ChildGreater = Fit(ctx, ms, begin, boundary, depth+1, result.LeftWeight)
	node.ChildNotGreater = Fit(ctx, ms, boundary, end, depth+1, result.RightWeight)
	return node
}

func startSpan(ctx *FitContext, op string) opentracing.Span {
	tracer := ctx.Tracer
	if tracer == nil {
		tracer = opentracing.NoopTracer{}
	}
	return tracer.StartSpan(op)
}

func samplesFor(ctx *FitContext, ms containers.Matches, begin, end int) []loss.Sample {
	out := make([]loss.Sample, end-begin)
	for i := begin; i < end; i++ {
		out[i-begin] = ctx.Sample(ms[i])
	}
	return out
}

// validate recomputes the chosen split's true loss reduction via
// calc_all (spec.md §4.5 "Validate": "no more partial shortcuts").
func validate(ctx *FitContext, ms containers.Matches, begin, end int, split containers.Split) loss.CandidateResult {
	sub := ms.Slice(begin, end)
	boundary := sub.Partition(func(m containers.Match) bool { return partition.IsGreater(split, ctx.Views, m) })
	samples := samplesFor(ctx, ms, begin, end)
	// samples must reflect the same reordering Partition just applied.
	reordered := make([]loss.Sample, len(samples))
	for i := range sub {
		reordered[i] = ctx.Sample(sub[i])
	}
	acc := loss.New(ctx.Fn, ctx.Config.MinNumSamples)
	acc.Reset(reordered)
	return acc.EvaluateCandidate(true, reordered, 0, boundary)
}

// sortedValues extracts, after sorting ms[begin:end) by the family, the
// Value() series in the family's canonical order — used to locate
// sweep boundaries for each critical value.
func sortedValues(ctx *FitContext, split containers.Split, ms containers.Matches, begin, end int) []float64 {
	vals := make([]float64, end-begin)
	for i := begin; i < end; i++ {
		vals[i-begin] = partition.Value(split, ctx.Views, ms[i])
	}
	return vals
}

// boundaryFor locates the "greater" boundary for threshold cv in a
// pre-sorted series (spec.md §8 property 2: monotonic in cv). For a
// descending series (asc == false) it returns the count of values
// satisfying value > cv, the prefix on the "greater" side; for an
// ascending series it returns the count of values <= cv, the prefix
// before the "greater" suffix.
func boundaryFor(asc bool, vals []float64, cv float64) int {
	if asc {
		// ascending: "greater" values are a suffix; convert to a prefix
		// count by counting from the front how many are <= cv.
		return sort.Search(len(vals), func(i int) bool { return vals[i] > cv })
	}
	// descending: "greater" values (value > cv) form a prefix.
	return sort.Search(len(vals), func(i int) bool { return !(vals[i] > cv) })
}
