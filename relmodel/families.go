package relmodel

import (
	"github.com/relforge/relforge/containers"
	"github.com/relforge/relforge/schema"
	"github.com/relforge/relforge/tree"
)

// admissibleFamilies enumerates every FamilyTemplate spec.md §4.2's table
// licenses for one (population, peripheral) schema pair: per column, the
// categorical family, and the numerical and discrete families with their
// *_is_nan variants (the categorical *_is_nan and subfeature families are
// not emitted); per same-unit column pair (schema.SameUnits), the
// numerical and discrete families with their *_is_nan variants or the
// categorical family alone; and, when both tables carry a time stamp,
// time_stamps_diff plus time_stamps_window when deltaT > 0. This is
// the "deterministic iteration order (column order from the schema, then
// family order)" design note §5 requires for parallel-mode determinism.
func admissibleFamilies(popSchema, perSchema schema.Schema, deltaT float64) []tree.FamilyTemplate {
	var out []tree.FamilyTemplate

	for col, c := range popSchema.Categoricals {
		if schema.ComparisonOnly(c) {
			continue
		}
		out = append(out, tree.FamilyTemplate{DataUsed: containers.CategoricalPop, ColumnPop: col})
	}
	for col, c := range perSchema.Categoricals {
		if schema.ComparisonOnly(c) {
			continue
		}
		out = append(out, tree.FamilyTemplate{DataUsed: containers.CategoricalPer, ColumnPer: col})
	}

	for col, c := range popSchema.Numericals {
		if schema.ComparisonOnly(c) {
			continue
		}
		out = append(out, tree.FamilyTemplate{DataUsed: containers.NumericalPop, ColumnPop: col})
		out = append(out, tree.FamilyTemplate{DataUsed: containers.NumericalPopIsNaN, ColumnPop: col})
	}
	for col, c := range perSchema.Numericals {
		if schema.ComparisonOnly(c) {
			continue
		}
		out = append(out, tree.FamilyTemplate{DataUsed: containers.NumericalPer, ColumnPer: col})
		out = append(out, tree.FamilyTemplate{DataUsed: containers.NumericalPerIsNaN, ColumnPer: col})
	}

	for col, c := range popSchema.Discretes {
		if schema.ComparisonOnly(c) {
			continue
		}
		out = append(out, tree.FamilyTemplate{DataUsed: containers.DiscretePop, ColumnPop: col, Discrete: true})
		out = append(out, tree.FamilyTemplate{DataUsed: containers.DiscretePopIsNaN, ColumnPop: col, Discrete: true})
	}
	for col, c := range perSchema.Discretes {
		if schema.ComparisonOnly(c) {
			continue
		}
		out = append(out, tree.FamilyTemplate{DataUsed: containers.DiscretePer, ColumnPer: col, Discrete: true})
		out = append(out, tree.FamilyTemplate{DataUsed: containers.DiscretePerIsNaN, ColumnPer: col, Discrete: true})
	}

	for pCol, pc := range popSchema.Numericals {
		for qCol, qc := range perSchema.Numericals {
			if !schema.SameUnits(pc, qc) {
				continue
			}
			out = append(out, tree.FamilyTemplate{DataUsed: containers.SameUnitsNumerical, ColumnPop: pCol, ColumnPer: qCol})
			out = append(out, tree.FamilyTemplate{DataUsed: containers.SameUnitsNumericalIsNaN, ColumnPop: pCol, ColumnPer: qCol})
		}
	}
	for pCol, pc := range popSchema.Discretes {
		for qCol, qc := range perSchema.Discretes {
			if !schema.SameUnits(pc, qc) {
				continue
			}
			out = append(out, tree.FamilyTemplate{DataUsed: containers.SameUnitsDiscrete, ColumnPop: pCol, ColumnPer: qCol, Discrete: true})
			out = append(out, tree.FamilyTemplate{DataUsed: containers.SameUnitsDiscreteIsNaN, ColumnPop: pCol, ColumnPer: qCol, Discrete: true})
		}
	}
	for pCol, pc := range popSchema.Categoricals {
		for qCol, qc := range perSchema.Categoricals {
			if !schema.SameUnits(pc, qc) {
				continue
			}
			out = append(out, tree.FamilyTemplate{DataUsed: containers.SameUnitsCategorical, ColumnPop: pCol, ColumnPer: qCol})
		}
	}

	if popSchema.NumTimeStamps() > 0 && perSchema.NumTimeStamps() > 0 {
		out = append(out, tree.FamilyTemplate{DataUsed: containers.TimeStampsDiff})
		if deltaT > 0 {
			out = append(out, tree.FamilyTemplate{DataUsed: containers.TimeStampsWindow})
		}
	}

	return out
}
