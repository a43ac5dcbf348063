// Package schema defines the table-provider contract the core engine
// consumes: column roles, units, and the read-only View the DataFrame
// layer (explicitly out of scope for this module, see spec.md §1) must
// implement. Nothing here depends on any concrete storage engine.
package schema

// Role classifies a column the way spec.md §3 enumerates them.
type Role int

const (
	Unused Role = iota
	Categorical
	Numerical
	Discrete
	TimeStamp
	Target
	JoinKey
	Text
)

func (r Role) String() string {
	switch r {
	case Categorical:
		return "categorical"
	case Numerical:
		return "numerical"
	case Discrete:
		return "discrete"
	case TimeStamp:
		return "time_stamp"
	case Target:
		return "target"
	case JoinKey:
		return "join_key"
	case Text:
		return "text"
	default:
		return "unused"
	}
}

// ComparisonOnlyUnit is the unit-tag convention spec.md §4.7 describes:
// a column whose unit string contains this substring is excluded from
// aggregation but retained for condition generation.
const ComparisonOnlyUnit = "comparison only"

// Column describes one column's metadata, independent of its backing
// storage.
type Column struct {
	Name string
	Role Role
	// Unit is an arbitrary tag; two non-empty, equal unit strings across
	// columns of the same numeric kind license "same units" predicates
	// (spec.md §3).
	Unit string
}

// SameUnits reports whether two columns admit a same-units predicate:
// both carry a non-empty, identical unit tag.
func SameUnits(a, b Column) bool {
	return a.Unit != "" && a.Unit == b.Unit
}

// ComparisonOnly reports whether a column's unit marks it as
// comparison-only (spec.md §4.7): usable for join/condition predicates
// but excluded from aggregation.
func ComparisonOnly(c Column) bool {
	return containsSubstring(c.Unit, ComparisonOnlyUnit)
}

func containsSubstring(s, substr string) bool {
	if len(substr) == 0 {
		return true
	}
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}

// Schema is the ordered column metadata of one table, grouped by role
// the way spec.md §6's table-provider contract exposes counts per role.
type Schema struct {
	Categoricals []Column
	Numericals   []Column
	Discretes    []Column
	TimeStamps   []Column
	Targets      []Column
	JoinKeys     []Column
	Texts        []Column
}

func (s Schema) NumCategoricals() int { return len(s.Categoricals) }
func (s Schema) NumNumericals() int   { return len(s.Numericals) }
func (s Schema) NumDiscretes() int    { return len(s.Discretes) }
func (s Schema) NumTimeStamps() int   { return len(s.TimeStamps) }
func (s Schema) NumTargets() int      { return len(s.Targets) }
func (s Schema) NumJoinKeys() int     { return len(s.JoinKeys) }
func (s Schema) NumText() int         { return len(s.Texts) }

// Equal reports whether two schemas hold the same columns (name, role
// and unit) per role, in the same order — used to detect spec.md §7's SchemaMismatch
// at transform time.
func Equal(a, b Schema) bool {
	return columnsEqual(a.Categoricals, b.Categoricals) &&
		columnsEqual(a.Numericals, b.Numericals) &&
		columnsEqual(a.Discretes, b.Discretes) &&
		columnsEqual(a.TimeStamps, b.TimeStamps) &&
		columnsEqual(a.Targets, b.Targets) &&
		columnsEqual(a.JoinKeys, b.JoinKeys) &&
		columnsEqual(a.Texts, b.Texts)
}

func columnsEqual(a, b []Column) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
