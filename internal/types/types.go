// Package types provides domain models shared across cardwright components.
//
// Zero-dependency design: everything except ids.go uses the standard library only,
// so the expression packages can be embedded in other services without pulling in
// storage or transport dependencies.
package types

import (
	"strconv"
	"strings"
)

// ParameterID identifies a measurable input (customer or product attribute).
type ParameterID int64

// FactorID identifies a concrete comparison against one Parameter.
type FactorID int64

// ConditionID identifies an entry of the condition vocabulary.
type ConditionID int64

// RuleID identifies one version of a Rule. Every version has its own ID.
type RuleID int64

// CardID identifies a Card.
type CardID int64

// ProductCardID identifies a Product Card.
type ProductCardID int64

// DataType is the value domain of a Parameter. Drives coercion of bound values.
type DataType int

const (
	DataTypeUnspecified DataType = iota
	DataTypeNumeric
	DataTypeText
	DataTypeBoolean
	DataTypeDate
)

var dataTypeNames = map[DataType]string{
	DataTypeUnspecified: "unspecified",
	DataTypeNumeric:     "numeric",
	DataTypeText:        "text",
	DataTypeBoolean:     "boolean",
	DataTypeDate:        "date",
}

func (d DataType) String() string {
	if s, ok := dataTypeNames[d]; ok {
		return s
	}
	return "unknown"
}

// ParseDataType maps a stored data type name to DataType.
// Unknown names map to DataTypeUnspecified, which evaluates as text.
func ParseDataType(s string) DataType {
	for d, name := range dataTypeNames {
		if strings.EqualFold(name, strings.TrimSpace(s)) {
			return d
		}
	}
	return DataTypeUnspecified
}

// Parameter is a named measurable input.
type Parameter struct {
	ID          ParameterID
	Name        string
	DataType    DataType
	IsMandatory bool
}

// Factor is a concrete comparison (condition + value) against one Parameter.
// Value2 is only meaningful for Range; Value1 holds a comma list for InList/NotInList.
type Factor struct {
	ID          FactorID
	ParameterID ParameterID
	ConditionID ConditionID
	Value1      string
	Value2      string
}

// ListValues splits Value1 into trimmed, non-empty list members.
func (f Factor) ListValues() []string {
	parts := strings.Split(f.Value1, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks the factor's values against the condition kind it uses.
func (f Factor) Validate(kind ConditionKind) error {
	if strings.TrimSpace(f.Value1) == "" {
		return &InvalidFactorError{FactorID: f.ID, Reason: "value1 is empty"}
	}
	switch kind {
	case ConditionRange:
		if strings.TrimSpace(f.Value2) == "" {
			return &InvalidFactorError{FactorID: f.ID, Reason: "range requires value2"}
		}
	case ConditionInList, ConditionNotInList:
		if n := len(f.ListValues()); n > MaxInListValues {
			return &InvalidFactorError{FactorID: f.ID, Reason: "list has " + strconv.Itoa(n) + " values"}
		}
		if f.Value2 != "" {
			return &InvalidFactorError{FactorID: f.ID, Reason: "value2 only allowed for range"}
		}
	case ConditionUnspecified:
		return &InvalidFactorError{FactorID: f.ID, Reason: "unknown condition"}
	default:
		if f.Value2 != "" {
			return &InvalidFactorError{FactorID: f.ID, Reason: "value2 only allowed for range"}
		}
	}
	return nil
}

// Rule is a versioned boolean predicate over Factors.
// StoredExpression references Factor IDs; ShownExpression uses factor display text.
type Rule struct {
	ID               RuleID
	Name             string
	Version          int
	IsActive         bool
	ShownExpression  string
	StoredExpression string
}

// Card combines Rules. StoredExpression references Rule IDs, ShownExpression Rule names.
type Card struct {
	ID               CardID
	Name             string
	ShownExpression  string
	StoredExpression string
}

// ProductCard combines Cards for one product.
type ProductCard struct {
	ID               ProductCardID
	Name             string
	ProductID        int64
	ShownExpression  string
	StoredExpression string
}

// Layer selects which entity kind an expression's operands refer to.
type Layer int

const (
	// LayerRule expressions combine Factor IDs.
	LayerRule Layer = iota
	// LayerCard expressions combine Rule IDs.
	LayerCard
	// LayerProductCard expressions combine Card IDs.
	LayerProductCard
)

func (l Layer) String() string {
	switch l {
	case LayerRule:
		return "rule"
	case LayerCard:
		return "card"
	case LayerProductCard:
		return "product_card"
	default:
		return "unknown"
	}
}

// Form selects the textual rendering of an expression.
type Form int

const (
	// FormStored renders operands as stable integer IDs.
	FormStored Form = iota
	// FormShown renders operands as human-readable names.
	FormShown
)

// Resource limits enforced by the builder and the expander.
const (
	// MaxNestingDepth bounds open parentheses so rendered text stays readable
	// and replay never recurses unboundedly.
	MaxNestingDepth = 16

	// MaxExpressionTokens bounds a single layer's token sequence.
	MaxExpressionTokens = 512

	// MaxExpandedTokens bounds a fully flattened Product Card expression.
	// A Product Card of 8 Cards of 8 Rules of 32 Factors stays below it.
	MaxExpandedTokens = 8192

	// MaxInListValues limits InList/NotInList members per factor.
	MaxInListValues = 64
)

// FactorRef is a factor resolved together with its parameter and condition.
type FactorRef struct {
	Factor    Factor
	Parameter Parameter
	Condition Condition
}

// Bindings maps each parameter to the runtime value selected for it.
// Values are raw text; evaluation coerces them by the parameter's DataType.
type Bindings map[ParameterID]string

// Verdict is the outcome of evaluating a flattened expression.
type Verdict struct {
	Passed  bool
	Message string
}
