// internal/rules/compile.go
package rules

import (
	"fmt"
	"sort"

	"github.com/solatis/cardwright/internal/expr"
	"github.com/solatis/cardwright/internal/types"
)

/*
 * Expression compilation.
 *
 * Compiles a flattened, factor-level expression into an evaluation tree with
 * coerced factor values and cost-ordered children.
 *
 * Compilation workflow:
 *   1. Parse tokens by precedence: parens group, AND binds tighter than OR
 *   2. Merge nested nodes of the same kind: (a AND (b AND c)) -> AND(a, b, c)
 *   3. Resolve each factor's parameter and condition, coerce its value(s)
 *   4. Order children of every node by ascending cost (stable sort)
 *
 * Coercing factor values here moves error detection to compile time: a factor
 * whose value does not fit its parameter's data type is reported once, not on
 * every evaluation.
 *
 * Stable sort keeps equal-cost children in source order, so the failing factor
 * named in a verdict message is the same for identical inputs.
 */

// NodeKind classifies an evaluation tree node.
type NodeKind int

const (
	NodeFactor NodeKind = iota
	NodeAnd
	NodeOr
)

// CompiledFactor is a factor ready for comparison.
type CompiledFactor struct {
	FactorID  types.FactorID
	Parameter types.Parameter
	Kind      types.ConditionKind
	Display   string
	Target    Target
	Cost      int
}

// Node is one node of the evaluation tree.
type Node struct {
	Kind     NodeKind
	Factor   *CompiledFactor // NodeFactor only
	Children []*Node         // NodeAnd, NodeOr
	Cost     int
}

// CompiledExpression is fully pre-processed and ready for evaluation.
type CompiledExpression struct {
	Root       *Node
	Shown      string
	Parameters []types.Parameter
}

// Compile validates and pre-processes a flattened expression.
func Compile(flat expr.Flattened) (*CompiledExpression, error) {
	if len(flat.Tokens) == 0 {
		return nil, types.ErrEmptyExpression
	}

	p := &parser{tokens: flat.Tokens, factors: flat.Factors}
	root, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.pos != len(p.tokens) {
		return nil, &types.GrammarError{Position: p.pos, Token: p.tokens[p.pos], Reason: "unexpected token"}
	}

	return &CompiledExpression{
		Root:       root,
		Shown:      flat.Shown,
		Parameters: flat.Parameters,
	}, nil
}

type parser struct {
	tokens  []types.Token
	factors map[types.FactorID]types.FactorRef
	pos     int
}

func (p *parser) peek() (types.Token, bool) {
	if p.pos >= len(p.tokens) {
		return types.Token{}, false
	}
	return p.tokens[p.pos], true
}

// parseOr parses: and { OR and }
func (p *parser) parseOr() (*Node, error) {
	return p.parseChain(types.OpOr, NodeOr, p.parseAnd)
}

// parseAnd parses: primary { AND primary }
func (p *parser) parseAnd() (*Node, error) {
	return p.parseChain(types.OpAnd, NodeAnd, p.parsePrimary)
}

func (p *parser) parseChain(op types.LogicalOp, kind NodeKind, next func() (*Node, error)) (*Node, error) {
	first, err := next()
	if err != nil {
		return nil, err
	}
	children := []*Node{first}
	for {
		tok, ok := p.peek()
		if !ok || tok.Kind != types.TokenLogicalOp || tok.Op != op {
			break
		}
		p.pos++
		child, err := next()
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	if len(children) == 1 {
		return first, nil
	}
	return newBranch(kind, children), nil
}

// parsePrimary parses: operand | "(" or ")"
func (p *parser) parsePrimary() (*Node, error) {
	tok, ok := p.peek()
	if !ok {
		return nil, &types.GrammarError{Position: p.pos, Reason: "expression ends early"}
	}
	switch tok.Kind {
	case types.TokenOperand:
		p.pos++
		return p.compileFactor(types.FactorID(tok.ID))
	case types.TokenOpenParen:
		p.pos++
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		closing, ok := p.peek()
		if !ok || closing.Kind != types.TokenCloseParen {
			return nil, &types.GrammarError{Position: p.pos, Token: closing, Reason: "missing closing parenthesis"}
		}
		p.pos++
		return inner, nil
	default:
		return nil, &types.GrammarError{Position: p.pos, Token: tok, Reason: fmt.Sprintf("unexpected %s", tok.Kind)}
	}
}

func (p *parser) compileFactor(id types.FactorID) (*Node, error) {
	ref, ok := p.factors[id]
	if !ok {
		return nil, &types.UnresolvedOperandError{Layer: types.LayerRule, Text: types.FormatEntityID(int64(id))}
	}
	cf, err := compileFactor(ref)
	if err != nil {
		return nil, err
	}
	return &Node{Kind: NodeFactor, Factor: cf, Cost: cf.Cost}, nil
}

// compileFactor coerces the factor's values by its parameter's data type.
func compileFactor(ref types.FactorRef) (*CompiledFactor, error) {
	kind := ref.Condition.Kind
	dt := ref.Parameter.DataType
	f := ref.Factor

	if err := f.Validate(kind); err != nil {
		return nil, err
	}
	if orderedKind(kind) && dt != types.DataTypeNumeric && dt != types.DataTypeDate {
		return nil, &types.InvalidFactorError{FactorID: f.ID, Reason: fmt.Sprintf("%s requires a numeric or date parameter, %s is %s", kind, ref.Parameter.Name, dt)}
	}

	coerce := func(raw string) (any, error) {
		v, err := Coerce(raw, dt)
		if err != nil {
			return nil, &types.InvalidFactorError{FactorID: f.ID, Reason: err.Error()}
		}
		return v, nil
	}

	var target Target
	var listLen int
	switch kind {
	case types.ConditionInList, types.ConditionNotInList:
		members := f.ListValues()
		listLen = len(members)
		target.Values = make([]any, 0, len(members))
		for _, m := range members {
			v, err := coerce(m)
			if err != nil {
				return nil, err
			}
			target.Values = append(target.Values, v)
		}
	case types.ConditionRange:
		lo, err := coerce(f.Value1)
		if err != nil {
			return nil, err
		}
		hi, err := coerce(f.Value2)
		if err != nil {
			return nil, err
		}
		if c, _ := compareOrdered(lo, hi); c > 0 {
			return nil, &types.InvalidFactorError{FactorID: f.ID, Reason: "range lower bound exceeds upper bound"}
		}
		target.Value, target.Upper = lo, hi
	default:
		v, err := coerce(f.Value1)
		if err != nil {
			return nil, err
		}
		target.Value = v
	}

	return &CompiledFactor{
		FactorID:  f.ID,
		Parameter: ref.Parameter,
		Kind:      kind,
		Display:   expr.FactorDisplay(ref),
		Target:    target,
		Cost:      FactorCost(kind, dt, listLen),
	}, nil
}

// newBranch merges same-kind children and orders them by ascending cost.
func newBranch(kind NodeKind, children []*Node) *Node {
	n := &Node{Kind: kind}
	for _, c := range children {
		if c.Kind == kind {
			n.Children = append(n.Children, c.Children...)
		} else {
			n.Children = append(n.Children, c)
		}
	}
	// Stable sort: equal-cost children keep source order (deterministic messages)
	sort.SliceStable(n.Children, func(i, j int) bool {
		return n.Children[i].Cost < n.Children[j].Cost
	})
	for _, c := range n.Children {
		n.Cost += c.Cost
	}
	return n
}
