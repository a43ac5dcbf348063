package containers

// DataUsed enumerates the admissible predicate families of spec.md §4.2.
// Modeled as a tagged variant dispatched in a single switch, per design
// note §9 ("Polymorphic predicate families").
type DataUsed int

const (
	CategoricalPop DataUsed = iota
	CategoricalPer
	DiscretePop
	DiscretePer
	NumericalPop
	NumericalPer
	CategoricalPopIsNaN
	CategoricalPerIsNaN
	DiscretePopIsNaN
	DiscretePerIsNaN
	NumericalPopIsNaN
	NumericalPerIsNaN
	SameUnitsCategorical
	SameUnitsDiscrete
	SameUnitsNumerical
	SameUnitsCategoricalIsNaN
	SameUnitsDiscreteIsNaN
	SameUnitsNumericalIsNaN
	Subfeature
	TimeStampsDiff
	TimeStampsWindow
)

// String names the family for logging/diagnostics.
func (d DataUsed) String() string {
	names := [...]string{
		"categorical_pop", "categorical_per",
		"discrete_pop", "discrete_per",
		"numerical_pop", "numerical_per",
		"categorical_pop_is_nan", "categorical_per_is_nan",
		"discrete_pop_is_nan", "discrete_per_is_nan",
		"numerical_pop_is_nan", "numerical_per_is_nan",
		"same_units_categorical", "same_units_discrete", "same_units_numerical",
		"same_units_categorical_is_nan", "same_units_discrete_is_nan", "same_units_numerical_is_nan",
		"subfeature", "time_stamps_diff", "time_stamps_window",
	}
	if int(d) < 0 || int(d) >= len(names) {
		return "unknown"
	}
	return names[d]
}

// IsCategorySet reports whether this family's split is defined by a set
// of categories rather than a single critical value.
func (d DataUsed) IsCategorySet() bool {
	return d == CategoricalPop || d == CategoricalPer || d == SameUnitsCategorical
}

// Split is the tagged-variant split descriptor of spec.md §3. Exactly
// the fields required by DataUsed are meaningful; a Split is immutable
// once committed to a tree.Node.
type Split struct {
	DataUsed DataUsed

	// ColumnPop / ColumnPer index into the population / peripheral
	// schema's column list for DataUsed's role (e.g. Categoricals for
	// CategoricalPop).
	ColumnPop int
	ColumnPer int

	// CriticalValue is meaningful for every non-category-set family.
	CriticalValue float64

	// Lag is meaningful only for TimeStampsWindow: the window has
	// length Lag, and the predicate is CriticalValue < diff <=
	// CriticalValue+Lag.
	Lag float64

	// CategoriesUsed is meaningful only for IsCategorySet() families. It
	// is shared (not copied) across the candidate list and the
	// committed split, and must stay sorted for categorical sweeps'
	// cumulative-prefix construction (SPEC_FULL.md supplemental
	// features).
	CategoriesUsed []int

	// SubfeatureValues backs the Subfeature family: an externally
	// supplied float column indexed by IxPer.
	SubfeatureValues []float64
}

// HasCategory reports set membership for IsCategorySet() splits. The
// set is small (enumerated categorical values), so linear scan beats a
// map's overhead; CategoriesUsed is sorted so this could binary search,
// but candidate sets are typically under a few dozen entries.
func (s Split) HasCategory(v int) bool {
	for _, c := range s.CategoriesUsed {
		if c == v {
			return true
		}
	}
	return false
}
