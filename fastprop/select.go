package fastprop

import (
	"math"
	"sort"

	"github.com/relforge/relforge/loss"
	"github.com/relforge/relforge/schema"
)

// rSquared computes the ordinary least-squares R² of x against y: the
// squared Pearson correlation, 0 when either series is constant.
func rSquared(x, y []float64) float64 {
	n := float64(len(x))
	if n == 0 {
		return 0
	}
	var sumX, sumY loss.KahanSum
	for i := range x {
		sumX.Add(x[i])
		sumY.Add(y[i])
	}
	meanX, meanY := sumX.Value()/n, sumY.Value()/n

	var sxy, sxx, syy loss.KahanSum
	for i := range x {
		dx, dy := x[i]-meanX, y[i]-meanY
		sxy.Add(dx * dy)
		sxx.Add(dx * dx)
		syy.Add(dy * dy)
	}
	if sxx.Value() == 0 || syy.Value() == 0 {
		return 0
	}
	corr := sxy.Value() / (math.Sqrt(sxx.Value()) * math.Sqrt(syy.Value()))
	return corr * corr
}

// maxRSquared scores one feature's sampled values by its best R²
// against any configured target column (spec.md §4.7 step 6: "rank by
// R² against targets" — a feature relevant to any single target is kept,
// the most permissive reading consistent with FastProp feeding a
// multi-target booster where each target gets its own ensemble).
func maxRSquared(vals []float64, pop schema.View, rownums []int, targetCols []int) float64 {
	best := 0.0
	for _, col := range targetCols {
		y := make([]float64, len(rownums))
		for i, row := range rownums {
			y[i] = pop.Target(row, col)
		}
		if r := rSquared(vals, y); r > best {
			best = r
		}
	}
	return best
}

// thresholdAt returns the value such that keeping every entry strictly
// greater than it retains (at most) Config.NumFeatures entries — the
// "num_features-th value" spec.md §4.7 step 6 describes, grounded on
// FastProp::calc_threshold's sorted-descending cutoff.
func thresholdAt(rSquared []float64, numFeatures int) float64 {
	sorted := append([]float64(nil), rSquared...)
	sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))
	if numFeatures <= 0 || numFeatures > len(sorted) {
		return -1 // keep everything: no r-squared value is negative
	}
	return sorted[numFeatures-1]
}
