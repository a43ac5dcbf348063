// Package relfixture provides a minimal, in-memory schema.View backed by
// plain column slices — a toy stand-in for the out-of-scope DataFrame
// layer (spec.md §1), grounded on the shape of the teacher's deleted
// mem.Table row store, used across this module's tests to drive the
// core engine without a real table provider.
package relfixture

import (
	"github.com/relforge/relforge/schema"
)

// Table is an in-memory schema.View holding named columns of raw values,
// grouped by the role each plays.
// Categorical/JoinKey/Text columns store ints; Numerical/Discrete/
// TimeStamp/Target columns store float64s.
type Table struct {
	nrows int

	categoricals [][]int
	catNames     []string
	catUnits     []string

	numericals [][]float64
	numNames   []string
	numUnits   []string

	discretes    [][]float64
	discNames    []string
	discUnits    []string

	timeStamps []float64
	hasTS      bool

	targets [][]float64

	joinKeys [][]int

	texts [][]int
}

// New builds an empty Table with n rows; use the With* builders to add
// columns before handing the Table to the core as a schema.View.
func New(n int) *Table {
	return &Table{nrows: n}
}

func (t *Table) WithCategorical(name, unit string, values []int) *Table {
	t.catNames = append(t.catNames, name)
	t.catUnits = append(t.catUnits, unit)
	t.categoricals = append(t.categoricals, values)
	return t
}

func (t *Table) WithNumerical(name, unit string, values []float64) *Table {
	t.numNames = append(t.numNames, name)
	t.numUnits = append(t.numUnits, unit)
	t.numericals = append(t.numericals, values)
	return t
}

func (t *Table) WithDiscrete(name, unit string, values []float64) *Table {
	t.discNames = append(t.discNames, name)
	t.discUnits = append(t.discUnits, unit)
	t.discretes = append(t.discretes, values)
	return t
}

func (t *Table) WithTimeStamp(values []float64) *Table {
	t.timeStamps = values
	t.hasTS = true
	return t
}

func (t *Table) WithTarget(values []float64) *Table {
	t.targets = append(t.targets, values)
	return t
}

func (t *Table) WithJoinKey(values []int) *Table {
	t.joinKeys = append(t.joinKeys, values)
	return t
}

func (t *Table) WithText(values []int) *Table {
	t.texts = append(t.texts, values)
	return t
}

func (t *Table) NRows() int { return t.nrows }

func (t *Table) Categorical(row, col int) int   { return t.categoricals[col][row] }
func (t *Table) Discrete(row, col int) float64  { return t.discretes[col][row] }
func (t *Table) Numerical(row, col int) float64 { return t.numericals[col][row] }
func (t *Table) TimeStamp(row int) float64      { return t.timeStamps[row] }
func (t *Table) Target(row, col int) float64    { return t.targets[col][row] }
func (t *Table) JoinKey(row, col int) int       { return t.joinKeys[col][row] }

// Text returns the interned token id of a text cell, or -1 for no token.
func (t *Table) Text(row, col int) int {
	v := t.texts[col][row]
	if v == 0 {
		return -1
	}
	return v
}

func (t *Table) CategoricalUnit(col int) string { return t.catUnits[col] }
func (t *Table) NumericalUnit(col int) string   { return t.numUnits[col] }
func (t *Table) DiscreteUnit(col int) string    { return t.discUnits[col] }

func (t *Table) CategoricalName(col int) string { return t.catNames[col] }
func (t *Table) NumericalName(col int) string   { return t.numNames[col] }
func (t *Table) DiscreteName(col int) string    { return t.discNames[col] }

func (t *Table) ToSchema() schema.Schema {
	s := schema.Schema{}
	for i, name := range t.catNames {
		s.Categoricals = append(s.Categoricals, schema.Column{Name: name, Role: schema.Categorical, Unit: t.catUnits[i]})
	}
	for i, name := range t.numNames {
		s.Numericals = append(s.Numericals, schema.Column{Name: name, Role: schema.Numerical, Unit: t.numUnits[i]})
	}
	for i, name := range t.discNames {
		s.Discretes = append(s.Discretes, schema.Column{Name: name, Role: schema.Discrete, Unit: t.discUnits[i]})
	}
	if t.hasTS {
		s.TimeStamps = append(s.TimeStamps, schema.Column{Name: "time_stamp", Role: schema.TimeStamp})
	}
	for range t.targets {
		s.Targets = append(s.Targets, schema.Column{Name: "target", Role: schema.Target})
	}
	for range t.joinKeys {
		s.JoinKeys = append(s.JoinKeys, schema.Column{Name: "join_key", Role: schema.JoinKey})
	}
	for range t.texts {
		s.Texts = append(s.Texts, schema.Column{Name: "text", Role: schema.Text})
	}
	return s
}

var _ schema.View = (*Table)(nil)
