package tree_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relforge/relforge/containers"
	"github.com/relforge/relforge/loss"
	"github.com/relforge/relforge/partition"
	"github.com/relforge/relforge/relfixture"
	"github.com/relforge/relforge/tree"
)

func identityMatches(n int) containers.Matches {
	ms := make(containers.Matches, n)
	for i := range ms {
		ms[i] = containers.Match{IxPop: i, IxPer: i}
	}
	return ms
}

func meanOf(vals []float64) float64 {
	var sum loss.KahanSum
	for _, v := range vals {
		sum.Add(v)
	}
	return sum.Value() / float64(len(vals))
}

func sse(targets, preds []float64) float64 {
	var s loss.KahanSum
	for i, t := range targets {
		d := t - preds[i]
		s.Add(d * d)
	}
	return s.Value()
}

// TestFitNoWorseThanParent exercises property 5: a fitted tree's
// in-sample sum of squared error never exceeds the constant-parent-weight
// baseline it started from.
func TestFitNoWorseThanParent(t *testing.T) {
	targets := []float64{1, 1, 1, 9, 9, 9}
	pop := relfixture.New(6).
		WithCategorical("grp", "", []int{0, 0, 0, 1, 1, 1}).
		WithTarget(targets).
		WithJoinKey([]int{0, 1, 2, 3, 4, 5})

	views := partition.Views{Pop: pop, Per: pop}
	ms := identityMatches(6)
	parentWeight := meanOf(targets)

	ctx := &tree.FitContext{
		Views:    views,
		Families: []tree.FamilyTemplate{{DataUsed: containers.CategoricalPop, ColumnPop: 0}},
		Fn:       loss.SquareLoss{},
		Config:   tree.Config{MinNumSamples: 1, Gamma: 0, NMostFrequent: 10},
		Sample: func(m containers.Match) loss.Sample {
			return loss.Sample{Target: pop.Target(m.IxPop, 0), Prediction: 0}
		},
	}
	root := tree.Fit(ctx, ms, 0, len(ms), 0, parentWeight)
	require.False(t, root.IsLeaf(), "a perfectly separable categorical split should be found")

	// Fit reorders ms in place, so predictions are stored by population row.
	preds := make([]float64, 6)
	for _, m := range ms {
		preds[m.IxPop] = tree.Predict(root, views, m)
	}
	baselineSSE := sse(targets, []float64{parentWeight, parentWeight, parentWeight, parentWeight, parentWeight, parentWeight})
	fittedSSE := sse(targets, preds)
	assert.LessOrEqual(t, fittedSSE, baselineSSE)
	// The split is exact, so the fitted tree should reconstruct the
	// targets essentially perfectly.
	assert.InDelta(t, 0, fittedSSE, 1e-6)
}

// TestCategoricalSplitIsolatesGroup exercises S2: a categorical condition
// split separates population rows by the category that explains the
// target.
func TestCategoricalSplitIsolatesGroup(t *testing.T) {
	targets := []float64{0, 0, 0, 0, 10, 10}
	pop := relfixture.New(6).
		WithCategorical("grp", "", []int{1, 1, 1, 1, 2, 2}).
		WithTarget(targets).
		WithJoinKey([]int{0, 1, 2, 3, 4, 5})
	views := partition.Views{Pop: pop, Per: pop}
	ms := identityMatches(6)

	ctx := &tree.FitContext{
		Views:    views,
		Families: []tree.FamilyTemplate{{DataUsed: containers.CategoricalPop, ColumnPop: 0}},
		Fn:       loss.SquareLoss{},
		Config:   tree.Config{MinNumSamples: 1, Gamma: 0, NMostFrequent: 10},
		Sample: func(m containers.Match) loss.Sample {
			return loss.Sample{Target: pop.Target(m.IxPop, 0), Prediction: 0}
		},
	}
	root := tree.Fit(ctx, ms, 0, len(ms), 0, meanOf(targets))
	require.False(t, root.IsLeaf())
	require.NotNil(t, root.Split)
	assert.Equal(t, containers.CategoricalPop, root.Split.DataUsed)
	assert.True(t, root.Split.HasCategory(2))
	assert.False(t, root.Split.HasCategory(1))
}

// TestIsNaNFamilySplitsMissingFromPresent exercises S4: a *_is_nan family
// separates rows with a missing discrete value from rows with a present
// one, regardless of the magnitude of present values.
func TestIsNaNFamilySplitsMissingFromPresent(t *testing.T) {
	targets := []float64{0, 0, 0, 9, 9, 9}
	pop := relfixture.New(6).
		WithDiscrete("feat", "", []float64{math.NaN(), math.NaN(), math.NaN(), 1, 2, 3}).
		WithTarget(targets).
		WithJoinKey([]int{0, 1, 2, 3, 4, 5})
	views := partition.Views{Pop: pop, Per: pop}
	ms := identityMatches(6)

	ctx := &tree.FitContext{
		Views:    views,
		Families: []tree.FamilyTemplate{{DataUsed: containers.DiscretePopIsNaN, ColumnPop: 0, Discrete: true}},
		Fn:       loss.SquareLoss{},
		Config:   tree.Config{MinNumSamples: 1, Gamma: 0},
		Sample: func(m containers.Match) loss.Sample {
			return loss.Sample{Target: pop.Target(m.IxPop, 0), Prediction: 0}
		},
	}
	root := tree.Fit(ctx, ms, 0, len(ms), 0, meanOf(targets))
	require.False(t, root.IsLeaf())
	assert.Equal(t, containers.DiscretePopIsNaN, root.Split.DataUsed)

	for _, m := range ms {
		pred := tree.Predict(root, views, m)
		assert.InDelta(t, targets[m.IxPop], pred, 1e-6)
	}
}

func TestFitReturnsLeafWhenNoFamilyAdmissible(t *testing.T) {
	pop := relfixture.New(3).
		WithTarget([]float64{1, 2, 3}).
		WithJoinKey([]int{0, 1, 2})
	views := partition.Views{Pop: pop, Per: pop}
	ms := identityMatches(3)
	ctx := &tree.FitContext{
		Views:  views,
		Fn:     loss.SquareLoss{},
		Config: tree.Config{MinNumSamples: 1},
		Sample: func(m containers.Match) loss.Sample {
			return loss.Sample{Target: pop.Target(m.IxPop, 0), Prediction: 0}
		},
	}
	root := tree.Fit(ctx, ms, 0, len(ms), 0, 2)
	assert.True(t, root.IsLeaf())
	assert.Equal(t, 2.0, root.Weight)
}

func TestMaxDepthStopsRecursion(t *testing.T) {
	targets := []float64{1, 1, 9, 9}
	pop := relfixture.New(4).
		WithCategorical("grp", "", []int{0, 0, 1, 1}).
		WithTarget(targets).
		WithJoinKey([]int{0, 1, 2, 3})
	views := partition.Views{Pop: pop, Per: pop}
	ms := identityMatches(4)
	ctx := &tree.FitContext{
		Views:    views,
		Families: []tree.FamilyTemplate{{DataUsed: containers.CategoricalPop, ColumnPop: 0}},
		Fn:       loss.SquareLoss{},
		Config:   tree.Config{MinNumSamples: 1, Gamma: 0, MaxDepth: 1},
		Sample: func(m containers.Match) loss.Sample {
			return loss.Sample{Target: pop.Target(m.IxPop, 0), Prediction: 0}
		},
	}
	root := tree.Fit(ctx, ms, 0, len(ms), 1, meanOf(targets))
	assert.True(t, root.IsLeaf())
}
