package tree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relforge/relforge/containers"
	"github.com/relforge/relforge/loss"
	"github.com/relforge/relforge/partition"
	"github.com/relforge/relforge/relfixture"
)

// TestTimeWindowCandidatesCountSplit exercises S3: a time_stamps_window
// family produces a candidate whose split separates recent peripheral
// matches (small diff) from stale ones, usable as a COUNT-style signal.
func TestTimeWindowCandidatesCountSplit(t *testing.T) {
	targets := []float64{0, 0, 9, 9}
	pop := relfixture.New(1).WithTarget([]float64{0}).WithJoinKey([]int{0}).WithTimeStamp([]float64{100})
	per := relfixture.New(4).WithJoinKey(make([]int, 4)).WithTimeStamp([]float64{10, 20, 95, 99})
	views := partition.Views{Pop: pop, Per: per}

	ms := containers.Matches{
		{IxPop: 0, IxPer: 0},
		{IxPop: 0, IxPer: 1},
		{IxPop: 0, IxPer: 2},
		{IxPop: 0, IxPer: 3},
	}

	ctx := &FitContext{
		Views:  views,
		Fn:     loss.SquareLoss{},
		Config: Config{MinNumSamples: 1, DeltaT: 100},
		Sample: func(m containers.Match) loss.Sample {
			return loss.Sample{Target: targets[m.IxPer], Prediction: 0}
		},
	}
	fam := FamilyTemplate{DataUsed: containers.TimeStampsWindow}
	cands := timeWindowCandidates(ctx, fam, ms, 0, len(ms))
	require.NotEmpty(t, cands)
	for _, c := range cands {
		assert.Equal(t, containers.TimeStampsWindow, c.Split.DataUsed)
		assert.Equal(t, ctx.Config.DeltaT, c.Split.Lag)
	}
}

func TestTimeWindowCandidatesDisabledWithoutDeltaT(t *testing.T) {
	pop := relfixture.New(1).WithJoinKey([]int{0}).WithTimeStamp([]float64{100})
	per := relfixture.New(2).WithJoinKey([]int{0, 0}).WithTimeStamp([]float64{10, 20})
	views := partition.Views{Pop: pop, Per: per}
	ms := containers.Matches{{IxPop: 0, IxPer: 0}, {IxPop: 0, IxPer: 1}}
	ctx := &FitContext{Views: views, Config: Config{DeltaT: 0}}
	fam := FamilyTemplate{DataUsed: containers.TimeStampsWindow}
	assert.Nil(t, timeWindowCandidates(ctx, fam, ms, 0, len(ms)))
}

// TestBoundaryForMonotonic exercises property 2 directly: for a
// pre-sorted descending series, the "greater than cv" prefix length is
// monotonically non-decreasing as cv decreases.
func TestBoundaryForMonotonic(t *testing.T) {
	vals := []float64{10, 8, 8, 5, 1}
	prev := 0
	for _, cv := range []float64{9, 8, 6, 2, 0} {
		b := boundaryFor(false, vals, cv)
		assert.GreaterOrEqual(t, b, prev)
		prev = b
	}
}

func TestCategoricalCandidatesRanksByStandaloneWeight(t *testing.T) {
	targets := []float64{0, 0, 5, 5, 9, 9}
	cats := []int{1, 1, 2, 2, 3, 3}
	pop := relfixture.New(6).
		WithCategorical("grp", "", cats).
		WithTarget(targets).
		WithJoinKey([]int{0, 1, 2, 3, 4, 5})
	views := partition.Views{Pop: pop, Per: pop}
	ms := make(containers.Matches, 6)
	for i := range ms {
		ms[i] = containers.Match{IxPop: i, IxPer: i}
	}
	ctx := &FitContext{
		Views:  views,
		Fn:     loss.SquareLoss{},
		Config: Config{MinNumSamples: 1, NMostFrequent: 10},
		Sample: func(m containers.Match) loss.Sample {
			return loss.Sample{Target: pop.Target(m.IxPop, 0), Prediction: 0}
		},
	}
	fam := FamilyTemplate{DataUsed: containers.CategoricalPop, ColumnPop: 0}
	cands := categoricalCandidates(ctx, fam, ms, 0, len(ms))
	require.NotEmpty(t, cands)
	var used [][]int
	for _, c := range cands {
		assert.NotEmpty(t, c.Split.CategoriesUsed)
		used = append(used, c.Split.CategoriesUsed)
	}
	// Ranked by standalone weight (9, 5, 0) the two-category prefix is
	// {3, 2}; a ranking by category code would give {1, 2} instead.
	assert.Contains(t, used, []int{2, 3})
}
