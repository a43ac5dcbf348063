// Package partition implements, per predicate family (spec.md §4.2), the
// is_greater predicate, the partition operation built on it, and the
// matching sort that orders matches so a single left-to-right sweep can
// visit every critical value (spec.md §4.2, §8 property 2). The
// "polymorphic predicate family" design note (§9) is modeled as a tagged
// variant (containers.DataUsed) dispatched in a single switch per
// operation; there is no per-family type or Family interface.
package partition

import (
	"math"

	"github.com/relforge/relforge/containers"
	"github.com/relforge/relforge/schema"
)

// Views bundles the two table views a match spans.
type Views struct {
	Pop schema.View
	Per schema.View
}

// IsGreater implements spec.md §4.2's is_greater for every family.
func IsGreater(s containers.Split, v Views, m containers.Match) bool {
	switch s.DataUsed {
	case containers.CategoricalPop:
		return s.HasCategory(v.Pop.Categorical(m.IxPop, s.ColumnPop))
	case containers.CategoricalPer:
		return s.HasCategory(v.Per.Categorical(m.IxPer, s.ColumnPer))
	case containers.DiscretePop:
		return v.Pop.Discrete(m.IxPop, s.ColumnPop) > s.CriticalValue
	case containers.DiscretePer:
		return v.Per.Discrete(m.IxPer, s.ColumnPer) > s.CriticalValue
	case containers.NumericalPop:
		return v.Pop.Numerical(m.IxPop, s.ColumnPop) > s.CriticalValue
	case containers.NumericalPer:
		return v.Per.Numerical(m.IxPer, s.ColumnPer) > s.CriticalValue
	case containers.CategoricalPopIsNaN, containers.CategoricalPerIsNaN:
		// categorical columns are int-coded and never NaN; present for
		// symmetry with the other *_is_nan families but always "greater".
		return true
	case containers.DiscretePopIsNaN:
		return !math.IsNaN(v.Pop.Discrete(m.IxPop, s.ColumnPop))
	case containers.DiscretePerIsNaN:
		return !math.IsNaN(v.Per.Discrete(m.IxPer, s.ColumnPer))
	case containers.NumericalPopIsNaN:
		return !math.IsNaN(v.Pop.Numerical(m.IxPop, s.ColumnPop))
	case containers.NumericalPerIsNaN:
		return !math.IsNaN(v.Per.Numerical(m.IxPer, s.ColumnPer))
	case containers.SameUnitsCategorical:
		return v.Pop.Categorical(m.IxPop, s.ColumnPop) == v.Per.Categorical(m.IxPer, s.ColumnPer)
	case containers.SameUnitsDiscrete:
		return v.Pop.Discrete(m.IxPop, s.ColumnPop)-v.Per.Discrete(m.IxPer, s.ColumnPer) > s.CriticalValue
	case containers.SameUnitsNumerical:
		return v.Pop.Numerical(m.IxPop, s.ColumnPop)-v.Per.Numerical(m.IxPer, s.ColumnPer) > s.CriticalValue
	case containers.SameUnitsCategoricalIsNaN:
		return true
	case containers.SameUnitsDiscreteIsNaN:
		a, b := v.Pop.Discrete(m.IxPop, s.ColumnPop), v.Per.Discrete(m.IxPer, s.ColumnPer)
		return !math.IsNaN(a) && !math.IsNaN(b)
	case containers.SameUnitsNumericalIsNaN:
		a, b := v.Pop.Numerical(m.IxPop, s.ColumnPop), v.Per.Numerical(m.IxPer, s.ColumnPer)
		return !math.IsNaN(a) && !math.IsNaN(b)
	case containers.Subfeature:
		return s.SubfeatureValues[m.IxPer] > s.CriticalValue
	case containers.TimeStampsDiff:
		return v.Pop.TimeStamp(m.IxPop)-v.Per.TimeStamp(m.IxPer) > s.CriticalValue
	case containers.TimeStampsWindow:
		diff := v.Pop.TimeStamp(m.IxPop) - v.Per.TimeStamp(m.IxPer)
		return diff > s.CriticalValue && diff <= s.CriticalValue+s.Lag
	default:
		return false
	}
}

// Partition rearranges [begin,end) of ms in place so every match for
// which IsGreater holds comes first, returning the boundary index
// (spec.md §4.2, §8 property 1). Operates on the full backing array but
// only within the given half-open range, leaving the rest untouched.
func Partition(s containers.Split, v Views, ms containers.Matches, begin, end int) int {
	sub := ms.Slice(begin, end)
	boundary := sub.Partition(func(m containers.Match) bool { return IsGreater(s, v, m) })
	return begin + boundary
}

// Value returns the scalar spec.md §4.2's matching sort operation
// orders by — a raw column value, a column difference, or a category
// code, per family. The numerical, discrete and same-units numerical/
// discrete *_is_nan families return their base family's value (NaN when
// missing), so Sort keeps their NaN rows contiguous; the categorical
// *_is_nan families have no value and return NaN.
func Value(s containers.Split, v Views, m containers.Match) float64 {
	switch s.DataUsed {
	case containers.CategoricalPop:
		return float64(v.Pop.Categorical(m.IxPop, s.ColumnPop))
	case containers.CategoricalPer:
		return float64(v.Per.Categorical(m.IxPer, s.ColumnPer))
	case containers.DiscretePop, containers.DiscretePopIsNaN:
		return v.Pop.Discrete(m.IxPop, s.ColumnPop)
	case containers.DiscretePer, containers.DiscretePerIsNaN:
		return v.Per.Discrete(m.IxPer, s.ColumnPer)
	case containers.NumericalPop, containers.NumericalPopIsNaN:
		return v.Pop.Numerical(m.IxPop, s.ColumnPop)
	case containers.NumericalPer, containers.NumericalPerIsNaN:
		return v.Per.Numerical(m.IxPer, s.ColumnPer)
	case containers.SameUnitsCategorical:
		return float64(v.Per.Categorical(m.IxPer, s.ColumnPer))
	case containers.SameUnitsDiscrete, containers.SameUnitsDiscreteIsNaN:
		return v.Pop.Discrete(m.IxPop, s.ColumnPop) - v.Per.Discrete(m.IxPer, s.ColumnPer)
	case containers.SameUnitsNumerical, containers.SameUnitsNumericalIsNaN:
		return v.Pop.Numerical(m.IxPop, s.ColumnPop) - v.Per.Numerical(m.IxPer, s.ColumnPer)
	case containers.Subfeature:
		return s.SubfeatureValues[m.IxPer]
	case containers.TimeStampsDiff, containers.TimeStampsWindow:
		return v.Pop.TimeStamp(m.IxPop) - v.Per.TimeStamp(m.IxPer)
	default:
		return math.NaN()
	}
}

// Ascending reports whether the family's matching sort (spec.md §4.2)
// orders ascending; every family sorts descending except category
// codes, which sort ascending.
func Ascending(d containers.DataUsed) bool {
	return d == containers.CategoricalPop || d == containers.CategoricalPer || d == containers.SameUnitsCategorical
}

// Sort orders [begin,end) of ms by the family's Value, in the family's
// canonical direction (spec.md §4.2), stably. NaN values sort as if
// they were the smallest (descending: last; ascending: first), since
// the *_is_nan families partition NaN to the non-greater side, which
// this ordering keeps contiguous for the §8 property 2 sweep.
func Sort(s containers.Split, v Views, ms containers.Matches, begin, end int) {
	sub := ms.Slice(begin, end)
	asc := Ascending(s.DataUsed)
	sub.SortBy(func(m containers.Match) float64 {
		val := Value(s, v, m)
		if math.IsNaN(val) {
			// NaN is never "greater"; -Inf sorts it to the tail of a
			// descending sweep (or the head of an ascending one), which
			// is never reached for categorical (never-NaN) families.
			return math.Inf(-1)
		}
		return val
	}, asc)
}
