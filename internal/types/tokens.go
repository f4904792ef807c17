// internal/types/tokens.go
package types

/*
 * Token representation for expressions under construction.
 *
 * A Token Sequence is the working form of an expression while it is being
 * composed. It is never persisted; only its stored and shown renderings are.
 * Tokens are small comparable values so sequences can be compared with == per
 * element and copied freely.
 *
 * Operand tokens carry the raw int64 ID of the layer's operand entity
 * (FactorID, RuleID or CardID depending on Layer). The layer is a property of
 * the sequence, not of each token.
 */

// TokenKind classifies a token.
type TokenKind int

const (
	TokenOpenParen TokenKind = iota
	TokenCloseParen
	TokenLogicalOp
	TokenOperand
)

func (k TokenKind) String() string {
	switch k {
	case TokenOpenParen:
		return "OpenParen"
	case TokenCloseParen:
		return "CloseParen"
	case TokenLogicalOp:
		return "LogicalOp"
	case TokenOperand:
		return "Operand"
	default:
		return "Unknown"
	}
}

// LogicalOp combines two operands.
type LogicalOp int

const (
	OpNone LogicalOp = iota
	OpAnd
	OpOr
)

func (o LogicalOp) String() string {
	switch o {
	case OpAnd:
		return "AND"
	case OpOr:
		return "OR"
	default:
		return ""
	}
}

// Token is one element of a Token Sequence.
type Token struct {
	Kind TokenKind
	Op   LogicalOp // set only for TokenLogicalOp
	ID   int64     // set only for TokenOperand
}

// Operand returns an operand token referencing id.
func Operand(id int64) Token { return Token{Kind: TokenOperand, ID: id} }

// And returns the AND logical operator token.
func And() Token { return Token{Kind: TokenLogicalOp, Op: OpAnd} }

// Or returns the OR logical operator token.
func Or() Token { return Token{Kind: TokenLogicalOp, Op: OpOr} }

// OpenParen returns an opening parenthesis token.
func OpenParen() Token { return Token{Kind: TokenOpenParen} }

// CloseParen returns a closing parenthesis token.
func CloseParen() Token { return Token{Kind: TokenCloseParen} }

// EqualTokens reports whether two sequences are identical element by element.
func EqualTokens(a, b []Token) bool {
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
