// internal/expr/builder.go
package expr

import (
	"fmt"

	"github.com/solatis/cardwright/internal/types"
)

/*
 * Token sequence builder.
 *
 * Sequence is an immutable value: (State, []Token) x Command -> (State, []Token).
 * Append and RemoveLast return a new Sequence and never touch the receiver, so a
 * rejected command cannot leave a half-applied edit behind.
 *
 * States:
 *   - ExpectOperandOrOpenParen: start of sequence, after a logical op or "("
 *   - ExpectOperand:            same, but nesting is at MaxNestingDepth
 *   - ExpectLogicalOpOrCloseParen: after an operand or ")" with open parens
 *   - ExpectLogicalOp:          after an operand or ")" at depth 0
 *
 * Illegal commands are rejected silently (ok=false). The UI is expected to
 * disable illegal controls using Allowed(); the check here guards out-of-band
 * callers.
 *
 * RemoveLast replays the remaining tokens from the empty state instead of
 * reversing the last transition, so state can never drift from the token list.
 */

// State is the builder's position in the expression grammar.
type State int

const (
	ExpectOperandOrOpenParen State = iota
	ExpectOperand
	ExpectLogicalOpOrCloseParen
	ExpectLogicalOp
)

func (s State) String() string {
	switch s {
	case ExpectOperandOrOpenParen:
		return "ExpectOperandOrOpenParen"
	case ExpectOperand:
		return "ExpectOperand"
	case ExpectLogicalOpOrCloseParen:
		return "ExpectLogicalOpOrCloseParen"
	case ExpectLogicalOp:
		return "ExpectLogicalOp"
	default:
		return "Unknown"
	}
}

// Allowed reports which token kinds may be appended next.
type Allowed struct {
	Operand    bool
	OpenParen  bool
	CloseParen bool
	LogicalOp  bool
}

// Sequence is an immutable token sequence together with its grammar state.
// The zero value is the empty sequence.
type Sequence struct {
	tokens []types.Token
	state  State
	depth  int
}

// NewSequence returns the empty sequence.
func NewSequence() Sequence {
	return Sequence{}
}

// FromTokens replays tokens through the builder.
// Returns a GrammarError naming the first token the grammar rejects.
// Incomplete sequences (open parens, trailing operator) are accepted; use Check.
func FromTokens(tokens []types.Token) (Sequence, error) {
	seq := NewSequence()
	for i, tok := range tokens {
		next, ok := seq.Append(tok)
		if !ok {
			return Sequence{}, &types.GrammarError{Position: i, Token: tok, Reason: seq.rejectReason(tok)}
		}
		seq = next
	}
	return seq, nil
}

// Tokens returns a copy of the sequence's tokens.
func (s Sequence) Tokens() []types.Token {
	out := make([]types.Token, len(s.tokens))
	copy(out, s.tokens)
	return out
}

// Len returns the number of tokens.
func (s Sequence) Len() int { return len(s.tokens) }

// State returns the current grammar state.
func (s Sequence) State() State { return s.state }

// Depth returns the number of unclosed parentheses.
func (s Sequence) Depth() int { return s.depth }

// Last returns the final token, if any.
func (s Sequence) Last() (types.Token, bool) {
	if len(s.tokens) == 0 {
		return types.Token{}, false
	}
	return s.tokens[len(s.tokens)-1], true
}

// Allowed reports which token kinds Append would accept.
func (s Sequence) Allowed() Allowed {
	if len(s.tokens) >= types.MaxExpressionTokens {
		return Allowed{}
	}
	switch s.state {
	case ExpectOperandOrOpenParen:
		return Allowed{Operand: true, OpenParen: true}
	case ExpectOperand:
		return Allowed{Operand: true}
	case ExpectLogicalOpOrCloseParen:
		return Allowed{LogicalOp: true, CloseParen: s.depth > 0}
	case ExpectLogicalOp:
		return Allowed{LogicalOp: true}
	default:
		return Allowed{}
	}
}

// Append returns the sequence extended by tok, or the receiver and false when
// tok is illegal in the current state.
func (s Sequence) Append(tok types.Token) (Sequence, bool) {
	allowed := s.Allowed()

	next := Sequence{state: s.state, depth: s.depth}
	switch tok.Kind {
	case types.TokenOperand:
		if !allowed.Operand || tok.ID <= 0 || tok.Op != types.OpNone {
			return s, false
		}
		next.state = afterOperand(s.depth)
	case types.TokenOpenParen:
		if !allowed.OpenParen || tok != types.OpenParen() {
			return s, false
		}
		next.depth = s.depth + 1
		next.state = afterOpening(next.depth)
	case types.TokenCloseParen:
		if !allowed.CloseParen || tok != types.CloseParen() {
			return s, false
		}
		next.depth = s.depth - 1
		next.state = afterOperand(next.depth)
	case types.TokenLogicalOp:
		if !allowed.LogicalOp || tok.ID != 0 || (tok.Op != types.OpAnd && tok.Op != types.OpOr) {
			return s, false
		}
		next.state = afterOpening(s.depth)
	default:
		return s, false
	}

	next.tokens = make([]types.Token, len(s.tokens), len(s.tokens)+1)
	copy(next.tokens, s.tokens)
	next.tokens = append(next.tokens, tok)
	return next, true
}

// RemoveLast returns the sequence without its final token.
// Removing from an empty sequence returns the empty sequence.
func (s Sequence) RemoveLast() Sequence {
	if len(s.tokens) == 0 {
		return s
	}
	// Replay cannot fail: every prefix of a valid sequence is valid.
	seq := NewSequence()
	for _, tok := range s.tokens[:len(s.tokens)-1] {
		seq, _ = seq.Append(tok)
	}
	return seq
}

// Complete reports whether the sequence is a finished expression.
func (s Sequence) Complete() bool {
	return s.Check() == nil
}

// Check returns ErrEmptyExpression for an empty sequence and a GrammarError for
// one that cannot be confirmed yet (open parens or trailing logical operator).
func (s Sequence) Check() error {
	if len(s.tokens) == 0 {
		return types.ErrEmptyExpression
	}
	last := s.tokens[len(s.tokens)-1]
	if s.depth != 0 {
		return &types.GrammarError{Position: len(s.tokens) - 1, Token: last, Reason: fmt.Sprintf("%d unclosed parenthesis", s.depth)}
	}
	if last.Kind != types.TokenOperand && last.Kind != types.TokenCloseParen {
		return &types.GrammarError{Position: len(s.tokens) - 1, Token: last, Reason: "expression ends with " + last.Kind.String()}
	}
	return nil
}

// afterOperand is the state following an operand or a closing paren.
func afterOperand(depth int) State {
	if depth > 0 {
		return ExpectLogicalOpOrCloseParen
	}
	return ExpectLogicalOp
}

// afterOpening is the state following a logical op or an opening paren.
func afterOpening(depth int) State {
	if depth >= types.MaxNestingDepth {
		return ExpectOperand
	}
	return ExpectOperandOrOpenParen
}

// rejectReason describes why Append refused tok. Used for error reporting only.
func (s Sequence) rejectReason(tok types.Token) string {
	if len(s.tokens) >= types.MaxExpressionTokens {
		return fmt.Sprintf("expression exceeds %d tokens", types.MaxExpressionTokens)
	}
	switch {
	case tok.Kind == types.TokenOperand && tok.ID <= 0:
		return "operand id must be positive"
	case tok.Kind == types.TokenOpenParen && s.state == ExpectOperand:
		return fmt.Sprintf("nesting exceeds %d levels", types.MaxNestingDepth)
	case tok.Kind == types.TokenCloseParen && s.depth == 0:
		return "unbalanced closing parenthesis"
	case tok.Kind == types.TokenCloseParen:
		return "empty parentheses or dangling operator"
	default:
		return fmt.Sprintf("%s not allowed in state %s", tok.Kind, s.state)
	}
}
