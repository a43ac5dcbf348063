package schema

// View is the read-only contract the (external, out-of-scope) DataFrame
// layer must satisfy for the core engine to operate on it. It mirrors
// spec.md §6's table-provider contract.
//
// Implementations are immutable: every accessor must be safe to call
// concurrently from multiple goroutines without external locking, since
// the core shares column data across worker threads (spec.md §5).
type View interface {
	NRows() int

	Categorical(row, col int) int
	Discrete(row, col int) float64
	Numerical(row, col int) float64
	TimeStamp(row int) float64
	Target(row, col int) float64
	JoinKey(row, col int) int
	Text(row, col int) int // interned token id, or -1 for a cell with none

	ToSchema() Schema

	// CategoricalUnit / NumericalUnit / etc. return the unit tag of a
	// column by role + index, used to detect same-units column pairs.
	CategoricalUnit(col int) string
	NumericalUnit(col int) string
	DiscreteUnit(col int) string

	CategoricalName(col int) string
	NumericalName(col int) string
	DiscreteName(col int) string
}

// SubViewOptions parametrizes View.SubView-style construction (spec.md
// §6). It is a plain options struct rather than a method on View because
// sub-view construction belongs to the (out of scope) DataFrame layer;
// the core only needs to describe what it would ask for.
type SubViewOptions struct {
	JoinKeysUsed       []int
	TimeStampsUsed     []int
	UpperTimeStamp     float64
	AllowLaggedTargets bool
}
