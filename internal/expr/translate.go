// internal/expr/translate.go
package expr

import (
	"strings"

	"github.com/solatis/cardwright/internal/types"
)

/*
 * Expression translation between token sequences and text.
 *
 * Textual grammar (shared by stored and shown forms):
 *   - tokens are separated by whitespace
 *   - "(" and ")" are parenthesis tokens only when they stand alone
 *   - "and"/"or" in any case are logical operators, rendered as AND/OR
 *   - every maximal run of other words is one operand (multi-word names)
 *
 * Stored operands are decimal IDs; shown operands are resolver display text.
 * Render joins tokens with single spaces, so Parse(Render(T)) == T for every
 * grammatical T as long as no display text contains a boundary word. Such
 * names remain renderable; parsing them back by name fails with
 * ErrAmbiguousOperand.
 *
 * Unresolved operands fail the parse by default. ParseOptions.Lenient keeps
 * the legacy behaviour of dropping them; OnDrop is called for each dropped
 * operand so the caller can log it. In lenient mode the surviving tokens are
 * replayed with builder semantics (rejected tokens are skipped), so the result
 * is always grammatical but may be incomplete.
 */

// Resolver maps operand IDs to display text and back within one layer.
type Resolver interface {
	Layer() types.Layer
	// Display returns the shown text for id.
	Display(id int64) (string, bool)
	// Lookup returns the ID shown as text. Name-based lookups of rules resolve
	// to the current version.
	Lookup(text string) (int64, bool)
}

// ParseOptions tunes Parse.
type ParseOptions struct {
	// Lenient drops unresolved operands instead of failing.
	Lenient bool
	// OnDrop is called with the text of every dropped operand (lenient only).
	OnDrop func(text string)
}

type lexemeKind int

const (
	lexOpen lexemeKind = iota
	lexClose
	lexOp
	lexWord
)

type lexeme struct {
	kind lexemeKind
	op   types.LogicalOp
	text string
}

// lex splits s on whitespace and merges consecutive words into one lexeme.
func lex(s string) []lexeme {
	var out []lexeme
	var words []string

	flush := func() {
		if len(words) > 0 {
			out = append(out, lexeme{kind: lexWord, text: strings.Join(words, " ")})
			words = words[:0]
		}
	}

	for _, field := range strings.Fields(s) {
		switch {
		case field == "(":
			flush()
			out = append(out, lexeme{kind: lexOpen})
		case field == ")":
			flush()
			out = append(out, lexeme{kind: lexClose})
		case strings.EqualFold(field, "and"):
			flush()
			out = append(out, lexeme{kind: lexOp, op: types.OpAnd})
		case strings.EqualFold(field, "or"):
			flush()
			out = append(out, lexeme{kind: lexOp, op: types.OpOr})
		default:
			words = append(words, field)
		}
	}
	flush()
	return out
}

// ambiguityReporter is implemented by resolvers holding display texts that
// cannot be parsed back by name.
type ambiguityReporter interface {
	Ambiguous(text string) error
}

// isBoundaryWord reports whether a single whitespace-delimited word would be
// lexed as a paren or logical operator.
func isBoundaryWord(w string) bool {
	return w == "(" || w == ")" || strings.EqualFold(w, "and") || strings.EqualFold(w, "or")
}

// NormalizeName collapses internal whitespace the way the lexer does.
func NormalizeName(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Parse converts text in the given form into a token sequence.
// Empty or whitespace-only text yields an empty, nil-error result.
func Parse(s string, form types.Form, r Resolver, opts ParseOptions) ([]types.Token, error) {
	var raw []types.Token
	for _, lx := range lex(s) {
		switch lx.kind {
		case lexOpen:
			raw = append(raw, types.OpenParen())
		case lexClose:
			raw = append(raw, types.CloseParen())
		case lexOp:
			raw = append(raw, types.Token{Kind: types.TokenLogicalOp, Op: lx.op})
		case lexWord:
			id, ok := resolveOperand(lx.text, form, r)
			if !ok {
				if !opts.Lenient {
					if form == types.FormShown {
						if a, isA := r.(ambiguityReporter); isA {
							if err := a.Ambiguous(lx.text); err != nil {
								return nil, err
							}
						}
					}
					return nil, &types.UnresolvedOperandError{Layer: r.Layer(), Text: lx.text}
				}
				if opts.OnDrop != nil {
					opts.OnDrop(lx.text)
				}
				continue
			}
			raw = append(raw, types.Operand(id))
		}
	}

	if opts.Lenient {
		seq := NewSequence()
		for _, tok := range raw {
			if next, ok := seq.Append(tok); ok {
				seq = next
			}
		}
		return seq.Tokens(), nil
	}

	seq, err := FromTokens(raw)
	if err != nil {
		return nil, err
	}
	return seq.Tokens(), nil
}

// ParseStructure parses a stored expression without resolving IDs.
// Used by expansion, where a missing ID must be reported as a stale reference
// with context rather than as a parse failure.
func ParseStructure(s string, layer types.Layer) ([]types.Token, error) {
	var raw []types.Token
	for _, lx := range lex(s) {
		switch lx.kind {
		case lexOpen:
			raw = append(raw, types.OpenParen())
		case lexClose:
			raw = append(raw, types.CloseParen())
		case lexOp:
			raw = append(raw, types.Token{Kind: types.TokenLogicalOp, Op: lx.op})
		case lexWord:
			id, ok := types.ParseEntityID(lx.text)
			if !ok {
				return nil, &types.UnresolvedOperandError{Layer: layer, Text: lx.text}
			}
			raw = append(raw, types.Operand(id))
		}
	}
	seq, err := FromTokens(raw)
	if err != nil {
		return nil, err
	}
	return seq.Tokens(), nil
}

func resolveOperand(text string, form types.Form, r Resolver) (int64, bool) {
	if form == types.FormStored {
		id, ok := types.ParseEntityID(text)
		if !ok {
			return 0, false
		}
		if _, known := r.Display(id); !known {
			return 0, false
		}
		return id, true
	}
	return r.Lookup(text)
}

// Render converts tokens to text in the given form, joined by single spaces.
func Render(tokens []types.Token, form types.Form, r Resolver) (string, error) {
	parts := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		text, err := tokenText(tok, form, r)
		if err != nil {
			return "", err
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, " "), nil
}

// RenderCompact renders the shown form without spaces inside parentheses:
// "(Age > 18) AND (Income > 5000)". It is a one-way rendering for validators
// and display; Parse expects the spaced form.
func RenderCompact(tokens []types.Token, r Resolver) (string, error) {
	var b strings.Builder
	var prev types.TokenKind = -1
	for i, tok := range tokens {
		text, err := tokenText(tok, types.FormShown, r)
		if err != nil {
			return "", err
		}
		if i > 0 && prev != types.TokenOpenParen && tok.Kind != types.TokenCloseParen {
			b.WriteByte(' ')
		}
		b.WriteString(text)
		prev = tok.Kind
	}
	return b.String(), nil
}

func tokenText(tok types.Token, form types.Form, r Resolver) (string, error) {
	switch tok.Kind {
	case types.TokenOpenParen:
		return "(", nil
	case types.TokenCloseParen:
		return ")", nil
	case types.TokenLogicalOp:
		return tok.Op.String(), nil
	default:
		if form == types.FormStored {
			return types.FormatEntityID(tok.ID), nil
		}
		text, ok := r.Display(tok.ID)
		if !ok {
			return "", &types.UnresolvedOperandError{Layer: r.Layer(), Text: types.FormatEntityID(tok.ID)}
		}
		return text, nil
	}
}
