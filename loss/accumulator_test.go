package loss_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relforge/relforge/loss"
)

func sampleSet() []loss.Sample {
	return []loss.Sample{
		{Target: 1, Prediction: 0},
		{Target: 2, Prediction: 0},
		{Target: 3, Prediction: 0},
		{Target: 10, Prediction: 0},
		{Target: 11, Prediction: 0},
		{Target: 12, Prediction: 0},
	}
}

// TestCalcDiffMatchesCalcAll exercises property 4: calc_diff's
// incremental update must agree with calc_all's from-scratch recompute
// for the same boundary.
func TestCalcDiffMatchesCalcAll(t *testing.T) {
	samples := sampleSet()
	fn := loss.SquareLoss{}

	calcAll := loss.New(fn, 1)
	calcAll.Reset(samples)
	resultAll := calcAll.EvaluateCandidate(true, samples, 0, 3)

	calcDiff := loss.New(fn, 1)
	calcDiff.Reset(samples)
	resultDiff := calcDiff.EvaluateCandidate(false, samples, 0, 3)

	assert.InDelta(t, resultAll.LossReduction, resultDiff.LossReduction, 1e-9)
	assert.InDelta(t, resultAll.LeftWeight, resultDiff.LeftWeight, 1e-9)
	assert.InDelta(t, resultAll.RightWeight, resultDiff.RightWeight, 1e-9)
	assert.Equal(t, resultAll.LeftCount, resultDiff.LeftCount)
	assert.Equal(t, resultAll.RightCount, resultDiff.RightCount)
}

func TestCalcDiffIncrementalStepsAgreeWithCalcAll(t *testing.T) {
	samples := sampleSet()
	fn := loss.SquareLoss{}

	diff := loss.New(fn, 1)
	diff.Reset(samples)
	r1 := diff.EvaluateCandidate(false, samples, 0, 2)
	r2 := diff.EvaluateCandidate(false, samples, 2, 4)

	all := loss.New(fn, 1)
	all.Reset(samples)
	want := all.EvaluateCandidate(true, samples, 0, 4)

	assert.InDelta(t, want.LossReduction, r2.LossReduction, 1e-9)
	_ = r1
}

func TestRejectsBelowMinNumSamples(t *testing.T) {
	samples := sampleSet()
	acc := loss.New(loss.SquareLoss{}, 4)
	acc.Reset(samples)
	result := acc.EvaluateCandidate(true, samples, 0, 3)
	assert.True(t, result.Rejected())
	assert.True(t, math.IsNaN(result.LossReduction))
}

// TestCommitRevert exercises property 3: after Commit, RevertToCommit
// restores exactly the committed baseline, and future calc_diff steps
// resume correctly from it.
func TestCommitRevert(t *testing.T) {
	samples := sampleSet()
	acc := loss.New(loss.SquareLoss{}, 1)
	acc.Reset(samples)

	acc.EvaluateCandidate(false, samples, 0, 2)
	acc.Commit()

	// Tentatively advance further, then revert back to the commit.
	acc.EvaluateCandidate(false, samples, 2, 5)
	acc.RevertToCommit()

	// Resuming calc_diff from the committed boundary (2) should match a
	// fresh calc_all over [0,4).
	result := acc.EvaluateCandidate(false, samples, 2, 4)
	fresh := loss.New(loss.SquareLoss{}, 1)
	fresh.Reset(samples)
	want := fresh.EvaluateCandidate(true, samples, 0, 4)
	assert.InDelta(t, want.LossReduction, result.LossReduction, 1e-9)
}

func TestRevertWithNoCommitResetsToEmpty(t *testing.T) {
	samples := sampleSet()
	acc := loss.New(loss.SquareLoss{}, 1)
	acc.Reset(samples)
	acc.EvaluateCandidate(false, samples, 0, 3)
	acc.Revert()

	result := acc.EvaluateCandidate(false, samples, 0, 2)
	fresh := loss.New(loss.SquareLoss{}, 1)
	fresh.Reset(samples)
	want := fresh.EvaluateCandidate(true, samples, 0, 2)
	assert.InDelta(t, want.LossReduction, result.LossReduction, 1e-9)
}

func TestKahanSumStableOverManySmallValues(t *testing.T) {
	var k loss.KahanSum
	for i := 0; i < 100000; i++ {
		k.Add(0.0000001)
	}
	assert.InDelta(t, 0.01, k.Value(), 1e-6)
}

func TestEvaluateByMask(t *testing.T) {
	samples := sampleSet()
	mask := []bool{true, true, true, false, false, false}
	result := loss.EvaluateByMask(loss.SquareLoss{}, 1, samples, mask)
	require.False(t, result.Rejected())
	assert.Equal(t, 3, result.LeftCount)
	assert.Equal(t, 3, result.RightCount)
	assert.InDelta(t, 2.0, result.LeftWeight, 1e-9)
	assert.InDelta(t, 11.0, result.RightWeight, 1e-9)
}

func TestCrossEntropyResidualIsTargetMinusSigmoid(t *testing.T) {
	fn := loss.CrossEntropyLoss{}
	r := fn.Residual(1, 0)
	assert.InDelta(t, 0.5, r, 1e-9)
}
