package fastprop

import (
	"math"
	"sort"

	"github.com/relforge/relforge/containers"
	"github.com/relforge/relforge/loss"
	"github.com/relforge/relforge/partition"
)

// aggregate computes one feature's scalar over its filtered match set
// (spec.md §4.7 transform). Matches with no members yield 0 for every
// aggregation by convention, matching the resolved Open Question for
// avg_time_between (see DESIGN.md) and generalized here: an empty
// feature value is "nothing to aggregate", not NaN.
func aggregate(agg Aggregation, v partition.Views, vs containers.Split, ms []containers.Match) float64 {
	if len(ms) == 0 {
		return 0
	}
	switch agg {
	case Count:
		return float64(len(ms))
	case CountDistinct:
		return float64(countDistinct(v, vs, ms))
	case CountMinusCountDistinct:
		return float64(len(ms) - countDistinct(v, vs, ms))
	case CountDistinctOverCount:
		return float64(countDistinct(v, vs, ms)) / float64(len(ms))
	case First, Last:
		return firstOrLast(agg, v, vs, ms)
	case AvgTimeBetween:
		return avgTimeBetween(v, ms)
	case Trend:
		return trend(v, vs, ms)
	}

	vals := make([]float64, len(ms))
	for i, m := range ms {
		vals[i] = partition.Value(vs, v, m)
	}
	return aggregateNumeric(agg, vals)
}

func countDistinct(v partition.Views, vs containers.Split, ms []containers.Match) int {
	seen := map[int]bool{}
	for _, m := range ms {
		seen[int(partition.Value(vs, v, m))] = true
	}
	return len(seen)
}

// firstOrLast orders matches by the peripheral row's own time stamp and
// returns the earliest/latest value (spec.md §4.7: "first/last require
// both tables to have time stamps").
func firstOrLast(agg Aggregation, v partition.Views, vs containers.Split, ms []containers.Match) float64 {
	best := ms[0]
	bestT := v.Per.TimeStamp(best.IxPer)
	for _, m := range ms[1:] {
		t := v.Per.TimeStamp(m.IxPer)
		if (agg == First && t < bestT) || (agg == Last && t > bestT) {
			best, bestT = m, t
		}
	}
	return partition.Value(vs, v, best)
}

// avgTimeBetween averages the gaps between consecutive matched
// peripheral rows' time stamps, sorted ascending. Per the resolved Open
// Question (DESIGN.md), fewer than two matches yields 0, not NaN.
func avgTimeBetween(v partition.Views, ms []containers.Match) float64 {
	if len(ms) < 2 {
		return 0
	}
	times := make([]float64, len(ms))
	for i, m := range ms {
		times[i] = v.Per.TimeStamp(m.IxPer)
	}
	sort.Float64s(times)
	var sum loss.KahanSum
	for i := 1; i < len(times); i++ {
		sum.Add(times[i] - times[i-1])
	}
	return sum.Value() / float64(len(times)-1)
}

// trend is the OLS slope of the aggregated column against the
// peripheral row's time stamp, ordered chronologically.
func trend(v partition.Views, vs containers.Split, ms []containers.Match) float64 {
	if len(ms) < 2 {
		return 0
	}
	type pt struct{ t, y float64 }
	pts := make([]pt, len(ms))
	for i, m := range ms {
		pts[i] = pt{t: v.Per.TimeStamp(m.IxPer), y: partition.Value(vs, v, m)}
	}
	sort.Slice(pts, func(i, j int) bool { return pts[i].t < pts[j].t })

	var sumT, sumY loss.KahanSum
	for _, p := range pts {
		sumT.Add(p.t)
		sumY.Add(p.y)
	}
	n := float64(len(pts))
	meanT, meanY := sumT.Value()/n, sumY.Value()/n

	var sxy, sxx loss.KahanSum
	for _, p := range pts {
		dt := p.t - meanT
		sxy.Add(dt * (p.y - meanY))
		sxx.Add(dt * dt)
	}
	if sxx.Value() == 0 {
		return 0
	}
	return sxy.Value() / sxx.Value()
}

// aggregateNumeric computes every plain numeric-summary aggregation
// (everything but the count-family and time-ordered ones above) over a
// raw value slice.
func aggregateNumeric(agg Aggregation, vals []float64) float64 {
	n := float64(len(vals))
	var sum loss.KahanSum
	for _, x := range vals {
		sum.Add(x)
	}
	mean := sum.Value() / n

	switch agg {
	case Avg:
		return mean
	case Sum:
		return sum.Value()
	case Min, NumMin:
		m := vals[0]
		for _, x := range vals[1:] {
			if x < m {
				m = x
			}
		}
		return m
	case Max, NumMax:
		m := vals[0]
		for _, x := range vals[1:] {
			if x > m {
				m = x
			}
		}
		return m
	case CountAboveMean:
		c := 0
		for _, x := range vals {
			if x > mean {
				c++
			}
		}
		return float64(c)
	case CountBelowMean:
		c := 0
		for _, x := range vals {
			if x < mean {
				c++
			}
		}
		return float64(c)
	case Median:
		return quantile(vals, 0.5)
	case Mode:
		return mode(vals)
	case Stddev:
		return math.Sqrt(variance(vals, mean))
	case Var:
		return variance(vals, mean)
	case VariationCoefficient:
		if mean == 0 {
			return 0
		}
		return math.Sqrt(variance(vals, mean)) / mean
	case Skew:
		return skewness(vals, mean)
	case Kurtosis:
		return kurtosis(vals, mean)
	case Q1:
		return quantile(vals, 0.01)
	case Q5:
		return quantile(vals, 0.05)
	case Q10:
		return quantile(vals, 0.10)
	case Q25:
		return quantile(vals, 0.25)
	case Q75:
		return quantile(vals, 0.75)
	case Q90:
		return quantile(vals, 0.90)
	case Q95:
		return quantile(vals, 0.95)
	case Q99:
		return quantile(vals, 0.99)
	default:
		return 0
	}
}

func variance(vals []float64, mean float64) float64 {
	if len(vals) < 2 {
		return 0
	}
	var ss loss.KahanSum
	for _, x := range vals {
		d := x - mean
		ss.Add(d * d)
	}
	return ss.Value() / float64(len(vals)-1)
}

func skewness(vals []float64, mean float64) float64 {
	sd := math.Sqrt(variance(vals, mean))
	if sd == 0 {
		return 0
	}
	var s loss.KahanSum
	for _, x := range vals {
		d := (x - mean) / sd
		s.Add(d * d * d)
	}
	return s.Value() / float64(len(vals))
}

func kurtosis(vals []float64, mean float64) float64 {
	sd := math.Sqrt(variance(vals, mean))
	if sd == 0 {
		return 0
	}
	var s loss.KahanSum
	for _, x := range vals {
		d := (x - mean) / sd
		s.Add(d * d * d * d)
	}
	return s.Value()/float64(len(vals)) - 3
}

func quantile(vals []float64, q float64) float64 {
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

func mode(vals []float64) float64 {
	counts := map[float64]int{}
	for _, x := range vals {
		counts[x]++
	}
	best, bestCount := vals[0], 0
	keys := append([]float64(nil), vals...)
	sort.Float64s(keys)
	for _, x := range keys {
		if counts[x] > bestCount {
			best, bestCount = x, counts[x]
		}
	}
	return best
}
