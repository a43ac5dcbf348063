package mapping_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relforge/relforge/containers"
	"github.com/relforge/relforge/mapping"
	"github.com/relforge/relforge/relfixture"
)

// matchesOneToOne builds an identity (periphRow -> popRow) match array.
func matchesOneToOne(n int) []containers.Matches {
	ms := make(containers.Matches, n)
	for i := range ms {
		ms[i] = containers.Match{IxPop: i, IxPer: i}
	}
	return []containers.Matches{ms}
}

// TestMinFreqCutoffDropsSparseGroups exercises S5: a category observed
// fewer than MinFreq times is dropped from the fitted table and falls
// back to the zero vector at transform time.
func TestMinFreqCutoffDropsSparseGroups(t *testing.T) {
	targets := []float64{10, 20, 30, 40, 50}
	pop := relfixture.New(5).WithTarget(targets).WithJoinKey(make([]int, 5))
	chain := matchesOneToOne(5)
	keys := []int{1, 1, 1, 2, 1} // key 2 observed once
	keyFn := func(row int) (int, bool) { return keys[row], true }

	cfg := mapping.Config{MinFreq: 2, Aggregations: []mapping.Aggregation{mapping.Avg, mapping.Count}}
	m, err := mapping.Fit(cfg, keyFn, 5, chain, pop, []int{0}, "grp", "")
	require.NoError(t, err)

	vecFrequent := m.Transform(1)
	assert.NotEqual(t, []float64{0, 0}, vecFrequent)

	vecSparse := m.Transform(2)
	assert.Equal(t, []float64{0, 0}, vecSparse)

	vecUnseen := m.Transform(999)
	assert.Equal(t, []float64{0, 0}, vecUnseen)
}

// TestMappingMonotonicity exercises property 8: adding more
// population rows to a key's group with strictly larger target values
// can only raise (never lower) that key's Max aggregate, and can only
// lower (never raise) its Min aggregate once MinFreq is reached.
func TestMappingMonotonicity(t *testing.T) {
	targets := []float64{5, 5, 5}
	pop := relfixture.New(3).WithTarget(targets).WithJoinKey(make([]int, 3))
	chain := matchesOneToOne(3)
	keyFn := func(row int) (int, bool) { return 1, true }
	cfg := mapping.Config{MinFreq: 1, Aggregations: []mapping.Aggregation{mapping.Min, mapping.Max}}
	before, err := mapping.Fit(cfg, keyFn, 3, chain, pop, []int{0}, "grp", "")
	require.NoError(t, err)
	beforeVec := before.Transform(1)

	targets2 := []float64{5, 5, 5, 9}
	pop2 := relfixture.New(4).WithTarget(targets2).WithJoinKey(make([]int, 4))
	chain2 := matchesOneToOne(4)
	keyFn2 := func(row int) (int, bool) { return 1, true }
	after, err := mapping.Fit(cfg, keyFn2, 4, chain2, pop2, []int{0}, "grp", "")
	require.NoError(t, err)
	afterVec := after.Transform(1)

	assert.LessOrEqual(t, afterVec[0], beforeVec[0]) // min can only fall or stay
	assert.LessOrEqual(t, beforeVec[1], afterVec[1]) // max can only rise or stay
}

func TestTransformTextAveragesKnownTokens(t *testing.T) {
	targets := []float64{10, 20}
	pop := relfixture.New(2).WithTarget(targets).WithJoinKey([]int{0, 1})
	chain := matchesOneToOne(2)
	keyFn := func(row int) (int, bool) { return row + 1, true }
	cfg := mapping.Config{MinFreq: 1, Aggregations: []mapping.Aggregation{mapping.Avg}}
	m, err := mapping.Fit(cfg, keyFn, 2, chain, pop, []int{0}, "tok", "")
	require.NoError(t, err)

	vec := m.TransformText([]int{1, 2, 999})
	assert.InDelta(t, 15.0, vec[0], 1e-9) // average of 10 and 20; unknown token 999 skipped
}

func TestTransformTextAllUnknownYieldsZero(t *testing.T) {
	targets := []float64{10}
	pop := relfixture.New(1).WithTarget(targets).WithJoinKey([]int{0})
	chain := matchesOneToOne(1)
	keyFn := func(row int) (int, bool) { return 1, true }
	cfg := mapping.Config{MinFreq: 1, Aggregations: []mapping.Aggregation{mapping.Avg}}
	m, err := mapping.Fit(cfg, keyFn, 1, chain, pop, []int{0}, "tok", "")
	require.NoError(t, err)
	vec := m.TransformText([]int{404})
	assert.Equal(t, []float64{0}, vec)
}

func TestStagingNameEncodesTargetAndAggregation(t *testing.T) {
	pop := relfixture.New(1).WithTarget([]float64{1}).WithJoinKey([]int{0})
	chain := matchesOneToOne(1)
	keyFn := func(row int) (int, bool) { return 1, true }
	cfg := mapping.Config{MinFreq: 1, Aggregations: []mapping.Aggregation{mapping.Avg, mapping.Sum}}
	m, err := mapping.Fit(cfg, keyFn, 1, chain, pop, []int{0}, "grp", "")
	require.NoError(t, err)
	assert.Equal(t, "grp__mapping_target_1_avg", m.StagingName(0))
	assert.Equal(t, "grp__mapping_target_1_sum", m.StagingName(1))
	assert.Equal(t, 2, m.NumWeights())
}

func TestFitRejectsNoAggregations(t *testing.T) {
	pop := relfixture.New(1).WithTarget([]float64{1}).WithJoinKey([]int{0})
	chain := matchesOneToOne(1)
	_, err := mapping.Fit(mapping.Config{}, func(int) (int, bool) { return 1, true }, 1, chain, pop, []int{0}, "grp", "")
	assert.Error(t, err)
}
