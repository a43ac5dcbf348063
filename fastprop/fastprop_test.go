package fastprop_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relforge/relforge/containers"
	"github.com/relforge/relforge/fastprop"
	"github.com/relforge/relforge/relfixture"
)

func twoPerPerPop(n int) containers.Matches {
	ms := make(containers.Matches, 0, n*2)
	for i := 0; i < n; i++ {
		ms = append(ms, containers.Match{IxPop: i, IxPer: 2 * i}, containers.Match{IxPop: i, IxPer: 2*i + 1})
	}
	return ms
}

// TestFitAndTransformAvgAggregation exercises S1: a tiny regression whose
// target is exactly the AVG aggregation of a peripheral numerical column
// should surface a feature that reconstructs it closely.
func TestFitAndTransformAvgAggregation(t *testing.T) {
	n := 5
	targets := make([]float64, n)
	perVals := make([]float64, 2*n)
	for i := 0; i < n; i++ {
		a, b := float64(i), float64(i)+2
		perVals[2*i], perVals[2*i+1] = a, b
		targets[i] = (a + b) / 2
	}
	pop := relfixture.New(n).WithTarget(targets).WithJoinKey(make([]int, n))
	per := relfixture.New(2 * n).WithNumerical("amount", "", perVals).WithJoinKey(make([]int, 2*n))

	peripherals := []fastprop.Peripheral{{View: per, Matches: twoPerPerPop(n)}}
	cfg := fastprop.Config{NumFeatures: 0, Aggregations: []fastprop.Aggregation{fastprop.Avg}}
	fp, err := fastprop.Fit(cfg, pop, peripherals, []int{0}, nil, nil, nil)
	require.NoError(t, err)
	require.Greater(t, fp.NumFeatures(), 0)

	out, err := fp.Transform(pop, peripherals, nil)
	require.NoError(t, err)
	require.Len(t, out, n)

	// At least one feature column should reconstruct the AVG target
	// within floating-point tolerance.
	found := false
	for col := 0; col < fp.NumFeatures(); col++ {
		ok := true
		for row := 0; row < n; row++ {
			if diff := out[row][col] - targets[row]; diff > 1e-6 || diff < -1e-6 {
				ok = false
				break
			}
		}
		if ok {
			found = true
			break
		}
	}
	assert.True(t, found, "expected an AVG feature column to reconstruct the target")
}

func TestTransformDeterministicAcrossRuns(t *testing.T) {
	n := 6
	perVals := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	targets := []float64{1, 2, 3, 4, 5, 6}
	pop := relfixture.New(n).WithTarget(targets).WithJoinKey(make([]int, n))
	per := relfixture.New(2 * n).WithNumerical("amount", "", perVals).WithJoinKey(make([]int, 2*n))
	peripherals := []fastprop.Peripheral{{View: per, Matches: twoPerPerPop(n)}}

	cfg := fastprop.Config{NumFeatures: 0}
	fp, err := fastprop.Fit(cfg, pop, peripherals, []int{0}, nil, nil, nil)
	require.NoError(t, err)

	out1, err := fp.Transform(pop, peripherals, nil)
	require.NoError(t, err)
	out2, err := fp.Transform(pop, peripherals, nil)
	require.NoError(t, err)
	assert.Equal(t, out1, out2)
}

func TestSnapshotRoundTrip(t *testing.T) {
	n := 4
	perVals := []float64{1, 2, 3, 4, 5, 6, 7, 8}
	targets := []float64{1, 2, 3, 4}
	pop := relfixture.New(n).WithTarget(targets).WithJoinKey(make([]int, n))
	per := relfixture.New(2 * n).WithNumerical("amount", "", perVals).WithJoinKey(make([]int, 2*n))
	peripherals := []fastprop.Peripheral{{View: per, Matches: twoPerPerPop(n)}}

	fp, err := fastprop.Fit(fastprop.Config{NumFeatures: 0}, pop, peripherals, []int{0}, nil, nil, nil)
	require.NoError(t, err)

	snap := fp.Snapshot()
	restored := fastprop.FromSnapshot(snap)
	assert.Equal(t, fp.NumFeatures(), restored.NumFeatures())

	before, err := fp.Transform(pop, peripherals, nil)
	require.NoError(t, err)
	after, err := restored.Transform(pop, peripherals, nil)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestFitRejectsEmptyPopulation(t *testing.T) {
	pop := relfixture.New(0)
	_, err := fastprop.Fit(fastprop.Config{}, pop, nil, []int{0}, nil, nil, nil)
	assert.Error(t, err)
}
