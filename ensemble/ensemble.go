// Package ensemble implements the gradient-boosted tree driver of
// spec.md §4.6: grow N trees against the running pseudo-residual, fit a
// scalar linear regressor from each tree's raw output onto that
// residual, absorb an optimal update rate times shrinkage into the
// regressor, and accumulate predictions.
package ensemble

import (
	"math"
	"math/rand"

	"github.com/opentracing/opentracing-go"

	"github.com/relforge/relforge/containers"
	"github.com/relforge/relforge/loss"
	"github.com/relforge/relforge/partition"
	"github.com/relforge/relforge/reduce"
	"github.com/relforge/relforge/relerrors"
	"github.com/relforge/relforge/rflog"
	"github.com/relforge/relforge/tree"
)

// Regressor is the scalar linear fit spec.md §4.6 step 2 applies to each
// tree's raw output before absorbing it into the running prediction:
// predict(x) = Slope*x + Intercept.
type Regressor struct {
	Slope     float64
	Intercept float64
}

func (r Regressor) Apply(x float64) float64 { return r.Slope*x + r.Intercept }

// fitRegressor performs ordinary least squares of residual onto
// treeOutput, the simplest possible linear regression problem (spec.md
// §4.6: "fit a scalar linear regression from the new tree's output onto
// residuals"). NaN/Inf results are clamped to the identity-free zero
// regressor per spec.md's "clamp NaN/Inf to zero".
func fitRegressor(treeOutput, residual []float64) Regressor {
	var sumX, sumY loss.KahanSum
	n := float64(len(treeOutput))
	if n == 0 {
		return Regressor{}
	}
	for i := range treeOutput {
		sumX.Add(treeOutput[i])
		sumY.Add(residual[i])
	}
	meanX, meanY := sumX.Value()/n, sumY.Value()/n

	var sxy, sxx loss.KahanSum
	for i := range treeOutput {
		dx := treeOutput[i] - meanX
		dy := residual[i] - meanY
		sxy.Add(dx * dy)
		sxx.Add(dx * dx)
	}
	if sxx.Value() == 0 {
		return Regressor{}
	}
	slope := sxy.Value() / sxx.Value()
	intercept := meanY - slope*meanX
	if math.IsNaN(slope) || math.IsInf(slope, 0) || math.IsNaN(intercept) || math.IsInf(intercept, 0) {
		return Regressor{}
	}
	return Regressor{Slope: slope, Intercept: intercept}
}

// updateRate computes the optimal scalar multiplier on the regressor's
// fitted output that minimizes squared error against residual (spec.md
// §4.6: "compute optimal per-target update_rate"), a one-dimensional
// line search with a closed-form OLS-through-origin solution.
func updateRate(fitted, residual []float64) float64 {
	var num, den loss.KahanSum
	for i := range fitted {
		num.Add(fitted[i] * residual[i])
		den.Add(fitted[i] * fitted[i])
	}
	if den.Value() == 0 {
		return 0
	}
	rate := num.Value() / den.Value()
	if math.IsNaN(rate) || math.IsInf(rate, 0) {
		return 0
	}
	return rate
}

// Member is one boosted tree plus the linear regressor absorbing its
// output into the ensemble's running prediction (spec.md §4.6).
type Member struct {
	Root      *tree.Node
	Regressor Regressor
}

// Config holds the booster's own hyperparameters (spec.md §6), layered
// on top of tree.Config which each member tree is fit with.
type Config struct {
	NumIterations int
	Shrinkage     float64
	// SamplingFactor implements spec.md §4.6's optional Bernoulli
	// row-sampling: p = min(1, SamplingFactor*2000/nrows). Zero disables
	// sampling (every row participates in every iteration).
	SamplingFactor float64
	// RootPoolSize is the implementation-defined candidate-root search
	// width spec.md §4.6 step 2 leaves open; RootPoolSize>1 fits the root
	// RootPoolSize times per iteration with the same inputs and keeps the
	// one with the best validated loss reduction. The root fit uses no
	// randomness, so the pooled candidates are identical.
	RootPoolSize int
	Tree         tree.Config
}

// Context bundles everything Fit needs beyond the population/peripheral
// views and targets, mirroring tree.FitContext's ambient collaborators.
type Context struct {
	Views    partition.Views
	Families []tree.FamilyTemplate
	Fn       loss.Function
	Reducer  reduce.Reducer
	Logger   *rflog.Logger
	Tracer   opentracing.Tracer
	Rand     *rand.Rand // nil => no sampling even if Config.SamplingFactor>0
}

// Model is a fitted ensemble: the ordered list of members, applied in
// sequence to accumulate a prediction (spec.md §4.6 "predict").
type Model struct {
	Members []Member
}

// Fit grows an ensemble of up to cfg.NumIterations trees against targets
// (spec.md §4.6 "fit(N, shrinkage)"). ms is the full match array;
// initial holds each population row's starting prediction (a warm-start
// ŷ_old per spec.md step 1); nil starts every row at 0.
func Fit(ctx *Context, cfg Config, ms containers.Matches, targets []float64, initial []float64) (*Model, error) {
	if cfg.NumIterations <= 0 {
		return nil, relerrors.ErrInvalidArgument.New("ensemble: num_iterations must be positive")
	}
	if len(targets) == 0 {
		return nil, relerrors.ErrInvalidArgument.New("ensemble: targets must be non-empty")
	}
	nrows := len(targets)
	yOld := make([]float64, nrows)
	if initial != nil {
		if len(initial) != nrows {
			return nil, relerrors.ErrInvalidArgument.New("ensemble: initial predictions length mismatch")
		}
		copy(yOld, initial)
	}

	model := &Model{}
	ranges := ms.GroupByPop()
	reprs := representativeMatches(ranges, ms, nrows)

	for t := 0; t < cfg.NumIterations; t++ {
		span := startSpan(ctx, "ensemble.iteration")

		residual := make([]float64, nrows)
		for i, target := range targets {
			residual[i] = ctx.Fn.Residual(target, yOld[i])
		}

		sampleMask := rowSample(ctx, cfg, nrows)
		fitMs := sampledMatches(ms, ranges, sampleMask)

		poolSize := cfg.RootPoolSize
		if poolSize < 1 {
			poolSize = 1
		}
		var best *rootFit
		for i := 0; i < poolSize; i++ {
			cand := fitOneRoot(ctx, cfg, fitMs, residual, reprs)
			// Larger lossReduction is better (it mirrors tree.Candidate's
			// PartialLoss convention: gLeft+gRight-gParent, maximized).
			if cand != nil && (best == nil || cand.lossReduction > best.lossReduction) {
				best = cand
			}
		}
		span.Finish()
		if best == nil {
			break // no admissible split anywhere: boosting has converged
		}

		rate := updateRate(best.fitted, residual) * cfg.Shrinkage
		reg := best.regressor
		reg.Slope *= rate
		reg.Intercept *= rate

		for i := 0; i < nrows; i++ {
			yOld[i] += reg.Apply(best.treeOutput[i])
		}

		if ctx.Logger != nil {
			ctx.Logger.Infof("ensemble iteration=%d loss_reduction=%.6g", t, best.lossReduction)
		}
		model.Members = append(model.Members, Member{Root: best.root, Regressor: reg})
	}
	return model, nil
}

// Predict applies every member in sequence, clamping each tree's raw
// output and each regressor's result to 0 when NaN (spec.md §4.6
// "predict": "NaN predictions are clamped to 0 before summation").
func Predict(m *Model, v partition.Views, match containers.Match) float64 {
	var total float64
	for _, mem := range m.Members {
		raw := tree.Predict(mem.Root, v, match)
		if math.IsNaN(raw) {
			raw = 0
		}
		contrib := mem.Regressor.Apply(raw)
		if math.IsNaN(contrib) {
			contrib = 0
		}
		total += contrib
	}
	return total
}

type rootFit struct {
	root          *tree.Node
	lossReduction float64
	treeOutput    []float64
	fitted        []float64
	regressor     Regressor
}

// fitOneRoot grows one candidate root tree against residual, then scores
// it by how much a scalar OLS fit of the tree's raw output onto residual
// reduces the residual's own sum of squares — the implementation-defined
// "validated loss reduction" spec.md §4.6 step 2 uses to pick among a
// pool of candidate root trees.
func fitOneRoot(ctx *Context, cfg Config, ms containers.Matches, residual []float64, reprs []containers.Match) *rootFit {
	fctx := &tree.FitContext{
		Views:    ctx.Views,
		Families: ctx.Families,
		Fn:       ctx.Fn,
		Config:   cfg.Tree,
		Reducer:  ctx.Reducer,
		Logger:   ctx.Logger,
		Tracer:   ctx.Tracer,
		Sample: func(m containers.Match) loss.Sample {
			return loss.Sample{Target: residual[m.IxPop], Prediction: 0}
		},
	}
	if len(ms) == 0 {
		return nil
	}
	root := tree.Fit(fctx, ms, 0, len(ms), 0, 0)
	if root.IsLeaf() {
		return nil
	}

	nrows := len(residual)
	treeOutput := make([]float64, nrows)
	for i := 0; i < nrows; i++ {
		treeOutput[i] = tree.Predict(root, ctx.Views, reprs[i])
	}
	reg := fitRegressor(treeOutput, residual)
	fitted := make([]float64, nrows)
	var sseBefore, sseAfter loss.KahanSum
	for i := range fitted {
		fitted[i] = reg.Apply(treeOutput[i])
		sseBefore.Add(residual[i] * residual[i])
		d := residual[i] - fitted[i]
		sseAfter.Add(d * d)
	}
	return &rootFit{
		root:          root,
		lossReduction: sseBefore.Value() - sseAfter.Value(),
		treeOutput:    treeOutput,
		fitted:        fitted,
		regressor:     reg,
	}
}

// rowSample draws the spec.md §4.6 Bernoulli row mask: p =
// min(1, SamplingFactor*2000/nrows). A nil Rand or non-positive
// SamplingFactor disables sampling entirely (every row participates).
func rowSample(ctx *Context, cfg Config, nrows int) []bool {
	mask := make([]bool, nrows)
	if ctx.Rand == nil || cfg.SamplingFactor <= 0 {
		for i := range mask {
			mask[i] = true
		}
		return mask
	}
	p := cfg.SamplingFactor * 2000 / float64(nrows)
	if p > 1 {
		p = 1
	}
	for i := range mask {
		mask[i] = ctx.Rand.Float64() < p
	}
	return mask
}

// sampledMatches builds a fresh match array containing only the matches
// whose population row was sampled in, preserving GroupByPop
// contiguity.
func sampledMatches(ms containers.Matches, ranges []containers.Range, mask []bool) containers.Matches {
	out := make(containers.Matches, 0, len(ms))
	for _, r := range ranges {
		if r.IxPop < len(mask) && !mask[r.IxPop] {
			continue
		}
		out = append(out, ms[r.Begin:r.End]...)
	}
	return out
}

// representativeMatches returns, for every population row, the Match
// tree.Predict should traverse with when computing a per-row scalar
// tree output: each row's first recorded match (by ms.GroupByPop),
// since a root tree may split on peripheral-side families (categorical_per,
// same_units_*, time_stamps_*) whose predicate reads the matched
// peripheral row and not just the population row. Rows with no recorded
// match fall back to the IxPer=0 convention, matching
// relmodel.trainingRSquared's identical fallback.
func representativeMatches(ranges []containers.Range, ms containers.Matches, nrows int) []containers.Match {
	reprs := make([]containers.Match, nrows)
	for i := range reprs {
		reprs[i] = containers.Match{IxPop: i, IxPer: 0}
	}
	for _, r := range ranges {
		if r.IxPop >= 0 && r.IxPop < nrows {
			reprs[r.IxPop] = ms[r.Begin]
		}
	}
	return reprs
}

// RepresentativeMatches is representativeMatches's exported form, for
// callers outside this package (relmodel's predictor wiring, spec.md
// §4.6 step 3) that need the same one-match-per-population-row mapping
// Fit uses internally to turn per-tree predictions into per-row scalars.
func RepresentativeMatches(ms containers.Matches, nrows int) []containers.Match {
	return representativeMatches(ms.GroupByPop(), ms, nrows)
}

// RawOutputs returns one raw (pre-regressor, NaN-clamped) output per
// member tree for a single match — the row FeatureMatrix assembles for
// many rows at once.
func RawOutputs(m *Model, v partition.Views, match containers.Match) []float64 {
	out := make([]float64, len(m.Members))
	for i, mem := range m.Members {
		raw := tree.Predict(mem.Root, v, match)
		if math.IsNaN(raw) {
			raw = 0
		}
		out[i] = raw
	}
	return out
}

// FeatureMatrix builds the per-tree raw-output feature matrix spec.md
// §4.6 step 3 feeds to "the configured predictor's own fit": one row per
// entry in reprs, one column per member tree, in Members order.
func FeatureMatrix(m *Model, v partition.Views, reprs []containers.Match) [][]float64 {
	out := make([][]float64, len(reprs))
	for i, match := range reprs {
		out[i] = RawOutputs(m, v, match)
	}
	return out
}

func startSpan(ctx *Context, op string) opentracing.Span {
	tracer := ctx.Tracer
	if tracer == nil {
		tracer = opentracing.NoopTracer{}
	}
	return tracer.StartSpan(op)
}
