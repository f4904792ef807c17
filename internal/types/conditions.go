// internal/types/conditions.go
package types

import "strings"

/*
 * Condition vocabulary.
 *
 * Closed set of comparison kinds a Factor can apply to its Parameter. Stored
 * condition rows carry a free-form name; ParseConditionKind maps the known
 * names (and their symbols) onto the enum so evaluation never dispatches on
 * strings.
 *
 * Display symbols are part of the shown expression grammar and must never be
 * a boundary word (AND, OR, parens). "NOT IN" is two words, which is fine
 * because operands are maximal runs of non-boundary words.
 */

// ConditionKind is the comparison a Factor applies.
type ConditionKind int

const (
	ConditionUnspecified ConditionKind = iota
	ConditionEquals
	ConditionNotEquals
	ConditionGreaterThan
	ConditionLessThan
	ConditionGreaterThanOrEqual
	ConditionLessThanOrEqual
	ConditionRange
	ConditionInList
	ConditionNotInList
)

type conditionInfo struct {
	name   string
	symbol string
}

var conditionTable = map[ConditionKind]conditionInfo{
	ConditionEquals:             {"Equals", "="},
	ConditionNotEquals:          {"NotEquals", "!="},
	ConditionGreaterThan:        {"GreaterThan", ">"},
	ConditionLessThan:           {"LessThan", "<"},
	ConditionGreaterThanOrEqual: {"GreaterThanOrEqual", ">="},
	ConditionLessThanOrEqual:    {"LessThanOrEqual", "<="},
	ConditionRange:              {"Range", "RANGE"},
	ConditionInList:             {"InList", "IN"},
	ConditionNotInList:          {"NotInList", "NOT IN"},
}

func (k ConditionKind) String() string {
	if info, ok := conditionTable[k]; ok {
		return info.name
	}
	return "Unspecified"
}

// Symbol returns the operator text used in shown expressions.
func (k ConditionKind) Symbol() string {
	if info, ok := conditionTable[k]; ok {
		return info.symbol
	}
	return "?"
}

// ParseConditionKind accepts enum names case-insensitively, spaced variants
// ("In List", "Not Equals") and symbols.
func ParseConditionKind(s string) ConditionKind {
	norm := strings.ToLower(strings.Join(strings.Fields(s), ""))
	norm = strings.ReplaceAll(norm, "_", "")
	for kind, info := range conditionTable {
		if norm == strings.ToLower(info.name) || norm == strings.ToLower(strings.ReplaceAll(info.symbol, " ", "")) {
			return kind
		}
	}
	switch norm {
	case "==", "eq":
		return ConditionEquals
	case "<>", "ne", "neq":
		return ConditionNotEquals
	case "between":
		return ConditionRange
	}
	return ConditionUnspecified
}

// Condition is one row of the condition vocabulary.
type Condition struct {
	ID   ConditionID
	Name string
	Kind ConditionKind
}
