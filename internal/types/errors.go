package types

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for cardwright operations.
var (
	// ErrGrammarViolation indicates a token sequence that breaks the expression grammar.
	ErrGrammarViolation = errors.New("expression grammar violation")

	// ErrUnresolvedOperand indicates an operand with no match in the resolver snapshot.
	ErrUnresolvedOperand = errors.New("unresolved operand")

	// ErrStaleVersionReference indicates an embedded Rule ID that was deleted or deactivated.
	ErrStaleVersionReference = errors.New("stale rule version reference")

	// ErrIncompleteBinding indicates validation without a value for every referenced parameter.
	ErrIncompleteBinding = errors.New("incomplete parameter binding")

	// ErrEmptyExpression indicates there is no expression to validate.
	ErrEmptyExpression = errors.New("no expression")

	// ErrAmbiguousOperand indicates a display name that contains a boundary word.
	ErrAmbiguousOperand = errors.New("operand name contains a reserved word")

	// ErrExpansionTooLarge indicates a flattened expression exceeds MaxExpandedTokens.
	ErrExpansionTooLarge = errors.New("expanded expression exceeds maximum size")

	// ErrResolverTimeout indicates resolver population did not complete in time.
	ErrResolverTimeout = errors.New("resolver population timed out")

	// ErrVersionConflict indicates a concurrent save produced a newer rule version.
	ErrVersionConflict = errors.New("rule version conflict")

	// ErrCoercionFailed indicates a bound value cannot be coerced to the parameter type.
	ErrCoercionFailed = errors.New("type coercion failed")

	// ErrInvalidFactor indicates factor values inconsistent with the condition kind.
	ErrInvalidFactor = errors.New("invalid factor")

	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateParameter indicates a rule references two factors of one parameter.
	ErrDuplicateParameter = errors.New("rule references parameter more than once")
)

// UnresolvedOperandError reports operand text with no match in the resolver.
type UnresolvedOperandError struct {
	Layer Layer
	Text  string
}

func (e *UnresolvedOperandError) Error() string {
	return fmt.Sprintf("%s: %s operand %q", ErrUnresolvedOperand, e.Layer, e.Text)
}

func (e *UnresolvedOperandError) Unwrap() error { return ErrUnresolvedOperand }

// StaleReferenceError reports a Rule ID that can no longer be expanded.
type StaleReferenceError struct {
	CardID CardID // zero when the rule is referenced from a form expression
	RuleID RuleID
	Reason string // "deleted" or "inactive"
}

func (e *StaleReferenceError) Error() string {
	if e.CardID != 0 {
		return fmt.Sprintf("%s: card %d references rule %d (%s)", ErrStaleVersionReference, e.CardID, e.RuleID, e.Reason)
	}
	return fmt.Sprintf("%s: rule %d (%s)", ErrStaleVersionReference, e.RuleID, e.Reason)
}

func (e *StaleReferenceError) Unwrap() error { return ErrStaleVersionReference }

// IncompleteBindingError lists the parameters that still need a value.
type IncompleteBindingError struct {
	Missing []string
}

func (e *IncompleteBindingError) Error() string {
	return fmt.Sprintf("%s: missing %s", ErrIncompleteBinding, strings.Join(e.Missing, ", "))
}

func (e *IncompleteBindingError) Unwrap() error { return ErrIncompleteBinding }

// GrammarError reports the position at which a sequence became invalid.
type GrammarError struct {
	Position int
	Token    Token
	Reason   string
}

func (e *GrammarError) Error() string {
	return fmt.Sprintf("%s at token %d (%s): %s", ErrGrammarViolation, e.Position, e.Token.Kind, e.Reason)
}

func (e *GrammarError) Unwrap() error { return ErrGrammarViolation }

// InvalidFactorError reports why a factor is inconsistent with its condition.
type InvalidFactorError struct {
	FactorID FactorID
	Reason   string
}

func (e *InvalidFactorError) Error() string {
	return fmt.Sprintf("%s %d: %s", ErrInvalidFactor, e.FactorID, e.Reason)
}

func (e *InvalidFactorError) Unwrap() error { return ErrInvalidFactor }
