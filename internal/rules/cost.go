// internal/rules/cost.go
package rules

import "github.com/solatis/cardwright/internal/types"

/*
 * Cost model for factor evaluation.
 *
 * cost = condition_cost * type_multiplier, list conditions add one unit per
 * member. AND/OR nodes cost the sum of their children.
 *
 * Evaluating cheaper children first maximizes short-circuiting: a failing
 * boolean equality is found before a long text InList is scanned.
 */

const (
	// Condition base costs
	CostEquals   = 5
	CostNotEqual = 5
	CostOrdered  = 7
	CostIn       = 8
	CostRange    = 9

	// Per-member cost of InList/NotInList
	CostPerListValue = 1

	// Data type multipliers
	MultiplierBool    = 1
	MultiplierNumeric = 4
	MultiplierDate    = 6
	MultiplierText    = 48
)

// FactorCost computes the evaluation cost of one factor.
func FactorCost(kind types.ConditionKind, dataType types.DataType, listLen int) int {
	cost := conditionCost(kind) * typeMultiplier(dataType)
	if kind == types.ConditionInList || kind == types.ConditionNotInList {
		cost += listLen * CostPerListValue * typeMultiplier(dataType)
	}
	return cost
}

func conditionCost(kind types.ConditionKind) int {
	switch kind {
	case types.ConditionEquals:
		return CostEquals
	case types.ConditionNotEquals:
		return CostNotEqual
	case types.ConditionGreaterThan, types.ConditionGreaterThanOrEqual,
		types.ConditionLessThan, types.ConditionLessThanOrEqual:
		return CostOrdered
	case types.ConditionInList, types.ConditionNotInList:
		return CostIn
	case types.ConditionRange:
		return CostRange
	default:
		return CostEquals
	}
}

// typeMultiplier returns the comparison cost factor of a data type.
func typeMultiplier(dt types.DataType) int {
	switch dt {
	case types.DataTypeBoolean:
		return MultiplierBool
	case types.DataTypeNumeric:
		return MultiplierNumeric
	case types.DataTypeDate:
		return MultiplierDate
	default:
		return MultiplierText
	}
}
