// internal/rules/operators.go
package rules

import (
	"time"

	"github.com/solatis/cardwright/internal/types"
)

/*
 * Condition comparison logic.
 *
 * Implements the closed condition vocabulary with type-aware comparison rules.
 * Values must already be coerced via Coerce() before reaching Compare(), so
 * both sides share one Go type per parameter data type:
 *
 *   numeric -> float64, text -> string, boolean -> bool, date -> time.Time
 *
 * Conditions:
 *   - Equals/NotEquals: equality on any type (cost 5)
 *   - GreaterThan/LessThan/...OrEqual: numeric and date only (cost 7)
 *   - Range: inclusive lower..upper, numeric and date only (cost 9)
 *   - InList/NotInList: membership with equality semantics (cost 8)
 *
 * Ordering on text or boolean never matches; there is no collation the
 * catalog could agree on.
 */

// Target is the coerced right-hand side of a factor.
type Target struct {
	Value  any   // Equals, NotEquals, ordering, Range lower bound
	Upper  any   // Range upper bound
	Values []any // InList, NotInList
}

// Compare applies kind to value against target.
func Compare(kind types.ConditionKind, value any, target Target) bool {
	switch kind {
	case types.ConditionEquals:
		return compareEqual(value, target.Value)
	case types.ConditionNotEquals:
		return !compareEqual(value, target.Value)
	case types.ConditionGreaterThan:
		c, ok := compareOrdered(value, target.Value)
		return ok && c > 0
	case types.ConditionGreaterThanOrEqual:
		c, ok := compareOrdered(value, target.Value)
		return ok && c >= 0
	case types.ConditionLessThan:
		c, ok := compareOrdered(value, target.Value)
		return ok && c < 0
	case types.ConditionLessThanOrEqual:
		c, ok := compareOrdered(value, target.Value)
		return ok && c <= 0
	case types.ConditionRange:
		lo, ok1 := compareOrdered(value, target.Value)
		hi, ok2 := compareOrdered(value, target.Upper)
		return ok1 && ok2 && lo >= 0 && hi <= 0
	case types.ConditionInList:
		return compareIn(value, target.Values)
	case types.ConditionNotInList:
		return !compareIn(value, target.Values)
	default:
		return false
	}
}

// compareEqual performs equality comparison on coerced values.
func compareEqual(a, b any) bool {
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	}
	return a == b
}

// compareOrdered performs three-way comparison (-1/0/1) for numbers and dates.
// ok is false for any other type or for mixed types.
func compareOrdered(a, b any) (int, bool) {
	switch va := a.(type) {
	case float64:
		vb, ok := b.(float64)
		if !ok {
			return 0, false
		}
		switch {
		case va < vb:
			return -1, true
		case va > vb:
			return 1, true
		default:
			return 0, true
		}
	case time.Time:
		vb, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		return va.Compare(vb), true
	default:
		return 0, false
	}
}

// compareIn checks if value exists in set using equality semantics.
func compareIn(value any, set []any) bool {
	for _, elem := range set {
		if compareEqual(value, elem) {
			return true
		}
	}
	return false
}

// orderedKind reports whether kind needs an ordered data type.
func orderedKind(kind types.ConditionKind) bool {
	switch kind {
	case types.ConditionGreaterThan, types.ConditionGreaterThanOrEqual,
		types.ConditionLessThan, types.ConditionLessThanOrEqual, types.ConditionRange:
		return true
	default:
		return false
	}
}
