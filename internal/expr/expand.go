// internal/expr/expand.go
package expr

import (
	"fmt"
	"sort"
	"sync"

	"github.com/solatis/cardwright/internal/catalog"
	"github.com/solatis/cardwright/internal/types"
)

/*
 * Nested expansion for validation.
 *
 * Flattens a Product Card, Card or Rule expression down to factor operands:
 *
 *   ProductCard tokens --(card id -> card tokens)--> Rule-id tokens
 *                      --(rule id -> rule tokens)--> Factor-id tokens
 *
 * Substitution is token-level: an Operand token is replaced by the referenced
 * entity's parsed stored tokens, wrapped in one pair of parens unless the
 * substituted sequence is already a single enclosed group. Nothing is ever
 * replaced inside text, so an ID that happens to be a prefix of another ID,
 * or of a rendered name, cannot be corrupted.
 *
 * Outer-to-inner order is kept per card: a card is fully expanded (its rule
 * operands substituted) before it is spliced into the product card. This lets
 * stale-reference errors name the card that embeds the rule.
 *
 * Reference checks:
 *   - Rule embedded by ID missing     -> StaleReferenceError{Reason: "deleted"}
 *   - Rule embedded by ID inactive    -> StaleReferenceError{Reason: "inactive"}
 *   - Card or factor missing          -> UnresolvedOperandError
 *
 * Expanded card and rule sequences are memoized per ID, so the same card
 * appearing twice expands to identical text.
 */

// Flattened is an expression expanded down to factor operands.
type Flattened struct {
	// Layer is the layer of the expression that was expanded.
	Layer types.Layer
	// Tokens are factor-level tokens.
	Tokens []types.Token
	// Shown is the compact shown rendering handed to validators.
	Shown string
	// Factors resolves every factor operand in Tokens.
	Factors map[types.FactorID]types.FactorRef
	// Parameters lists the referenced parameters ordered by ID.
	Parameters []types.Parameter
}

// Expander flattens expressions against one snapshot. Safe for concurrent use.
type Expander struct {
	snap    *catalog.Snapshot
	factors Resolver

	mu    sync.Mutex
	rules map[types.RuleID][]types.Token
	cards map[types.CardID][]types.Token
}

// NewExpander creates an expander. factors must be the snapshot's rule-layer
// (factor) resolver.
func NewExpander(snap *catalog.Snapshot, factors Resolver) *Expander {
	return &Expander{
		snap:    snap,
		factors: factors,
		rules:   make(map[types.RuleID][]types.Token),
		cards:   make(map[types.CardID][]types.Token),
	}
}

// ExpandRule flattens a persisted rule. The rule itself may be inactive.
func (e *Expander) ExpandRule(id types.RuleID) (Flattened, error) {
	if _, ok := e.snap.Rule(id); !ok {
		return Flattened{}, fmt.Errorf("rule %d: %w", id, types.ErrNotFound)
	}
	tokens, err := e.ruleTokens(id)
	if err != nil {
		return Flattened{}, err
	}
	return e.finish(types.LayerRule, tokens)
}

// ExpandCard flattens a persisted card.
func (e *Expander) ExpandCard(id types.CardID) (Flattened, error) {
	if _, ok := e.snap.Card(id); !ok {
		return Flattened{}, fmt.Errorf("card %d: %w", id, types.ErrNotFound)
	}
	tokens, err := e.cardTokens(id)
	if err != nil {
		return Flattened{}, err
	}
	return e.finish(types.LayerCard, tokens)
}

// ExpandProductCard flattens a persisted product card.
func (e *Expander) ExpandProductCard(id types.ProductCardID) (Flattened, error) {
	pc, ok := e.snap.ProductCard(id)
	if !ok {
		return Flattened{}, fmt.Errorf("product card %d: %w", id, types.ErrNotFound)
	}
	tokens, err := ParseStructure(pc.StoredExpression, types.LayerProductCard)
	if err != nil {
		return Flattened{}, fmt.Errorf("product card %d: %w", id, err)
	}
	if len(tokens) == 0 {
		return Flattened{}, fmt.Errorf("product card %d: %w", id, types.ErrEmptyExpression)
	}
	return e.Expand(types.LayerProductCard, tokens)
}

// Expand flattens an in-progress token sequence of the given layer.
func (e *Expander) Expand(layer types.Layer, tokens []types.Token) (Flattened, error) {
	if len(tokens) == 0 {
		return Flattened{}, types.ErrEmptyExpression
	}

	var flat []types.Token
	var err error
	switch layer {
	case types.LayerRule:
		flat, err = e.checkFactors(tokens)
	case types.LayerCard:
		flat, err = e.substituteRules(tokens, 0)
	case types.LayerProductCard:
		flat, err = substitute(tokens, func(id int64) ([]types.Token, error) {
			return e.cardTokens(types.CardID(id))
		})
	default:
		err = fmt.Errorf("unknown layer %d", layer)
	}
	if err != nil {
		return Flattened{}, err
	}
	return e.finish(layer, flat)
}

// cardTokens returns the memoized factor-level expansion of a card.
func (e *Expander) cardTokens(id types.CardID) ([]types.Token, error) {
	e.mu.Lock()
	cached, ok := e.cards[id]
	e.mu.Unlock()
	if ok {
		return cached, nil
	}

	card, ok := e.snap.Card(id)
	if !ok {
		return nil, &types.UnresolvedOperandError{Layer: types.LayerProductCard, Text: types.FormatEntityID(int64(id))}
	}
	tokens, err := ParseStructure(card.StoredExpression, types.LayerCard)
	if err != nil {
		return nil, fmt.Errorf("card %d: %w", id, err)
	}
	if len(tokens) == 0 {
		return nil, fmt.Errorf("card %d: %w", id, types.ErrEmptyExpression)
	}
	flat, err := e.substituteRules(tokens, id)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.cards[id] = flat
	e.mu.Unlock()
	return flat, nil
}

// substituteRules replaces rule operands with their factor tokens. Embedded
// rules must still exist and be active.
func (e *Expander) substituteRules(tokens []types.Token, card types.CardID) ([]types.Token, error) {
	return substitute(tokens, func(id int64) ([]types.Token, error) {
		ruleID := types.RuleID(id)
		rule, ok := e.snap.Rule(ruleID)
		if !ok {
			return nil, &types.StaleReferenceError{CardID: card, RuleID: ruleID, Reason: "deleted"}
		}
		if !rule.IsActive {
			return nil, &types.StaleReferenceError{CardID: card, RuleID: ruleID, Reason: "inactive"}
		}
		return e.ruleTokens(ruleID)
	})
}

// ruleTokens returns the memoized factor tokens of a rule.
func (e *Expander) ruleTokens(id types.RuleID) ([]types.Token, error) {
	e.mu.Lock()
	cached, ok := e.rules[id]
	e.mu.Unlock()
	if ok {
		return cached, nil
	}

	rule, _ := e.snap.Rule(id)
	tokens, err := ParseStructure(rule.StoredExpression, types.LayerRule)
	if err != nil {
		return nil, fmt.Errorf("rule %d: %w", id, err)
	}
	if len(tokens) == 0 {
		return nil, fmt.Errorf("rule %d: %w", id, types.ErrEmptyExpression)
	}
	if _, err := e.checkFactors(tokens); err != nil {
		return nil, fmt.Errorf("rule %d: %w", id, err)
	}

	e.mu.Lock()
	e.rules[id] = tokens
	e.mu.Unlock()
	return tokens, nil
}

func (e *Expander) checkFactors(tokens []types.Token) ([]types.Token, error) {
	for _, tok := range tokens {
		if tok.Kind != types.TokenOperand {
			continue
		}
		if _, ok := e.snap.Factor(types.FactorID(tok.ID)); !ok {
			return nil, &types.UnresolvedOperandError{Layer: types.LayerRule, Text: types.FormatEntityID(tok.ID)}
		}
	}
	return tokens, nil
}

// finish renders the flattened tokens and collects referenced factors.
func (e *Expander) finish(layer types.Layer, tokens []types.Token) (Flattened, error) {
	shown, err := RenderCompact(tokens, e.factors)
	if err != nil {
		return Flattened{}, err
	}

	factors := make(map[types.FactorID]types.FactorRef)
	params := make(map[types.ParameterID]types.Parameter)
	for _, tok := range tokens {
		if tok.Kind != types.TokenOperand {
			continue
		}
		ref, ok := e.snap.FactorRef(types.FactorID(tok.ID))
		if !ok {
			return Flattened{}, &types.UnresolvedOperandError{Layer: types.LayerRule, Text: types.FormatEntityID(tok.ID)}
		}
		factors[ref.Factor.ID] = ref
		params[ref.Parameter.ID] = ref.Parameter
	}

	paramList := make([]types.Parameter, 0, len(params))
	for _, p := range params {
		paramList = append(paramList, p)
	}
	sort.Slice(paramList, func(i, j int) bool { return paramList[i].ID < paramList[j].ID })

	out := make([]types.Token, len(tokens))
	copy(out, tokens)
	return Flattened{
		Layer:      layer,
		Tokens:     out,
		Shown:      shown,
		Factors:    factors,
		Parameters: paramList,
	}, nil
}

// substitute replaces every operand with lookup's tokens, parenthesized unless
// already a single enclosed group.
func substitute(tokens []types.Token, lookup func(id int64) ([]types.Token, error)) ([]types.Token, error) {
	out := make([]types.Token, 0, len(tokens))
	for _, tok := range tokens {
		if tok.Kind != types.TokenOperand {
			out = append(out, tok)
			continue
		}
		sub, err := lookup(tok.ID)
		if err != nil {
			return nil, err
		}
		if Enclosed(sub) {
			out = append(out, sub...)
		} else {
			out = append(out, types.OpenParen())
			out = append(out, sub...)
			out = append(out, types.CloseParen())
		}
		if len(out) > types.MaxExpandedTokens {
			return nil, fmt.Errorf("%w (%d tokens)", types.ErrExpansionTooLarge, types.MaxExpandedTokens)
		}
	}
	return out, nil
}

// Enclosed reports whether tokens form a single parenthesized group.
func Enclosed(tokens []types.Token) bool {
	n := len(tokens)
	if n < 2 || tokens[0].Kind != types.TokenOpenParen || tokens[n-1].Kind != types.TokenCloseParen {
		return false
	}
	depth := 0
	for i, tok := range tokens {
		switch tok.Kind {
		case types.TokenOpenParen:
			depth++
		case types.TokenCloseParen:
			depth--
			if depth == 0 && i != n-1 {
				return false
			}
		}
	}
	return depth == 0
}

// CheckRuleParameters enforces one factor per parameter within a rule
// expression, since a binding supplies a single value per parameter.
func CheckRuleParameters(snap *catalog.Snapshot, tokens []types.Token) error {
	seen := make(map[types.ParameterID]types.FactorID)
	for _, tok := range tokens {
		if tok.Kind != types.TokenOperand {
			continue
		}
		ref, ok := snap.FactorRef(types.FactorID(tok.ID))
		if !ok {
			return &types.UnresolvedOperandError{Layer: types.LayerRule, Text: types.FormatEntityID(tok.ID)}
		}
		if prev, dup := seen[ref.Parameter.ID]; dup && prev != ref.Factor.ID {
			return fmt.Errorf("%w: %s (factors %d and %d)", types.ErrDuplicateParameter, ref.Parameter.Name, prev, ref.Factor.ID)
		}
		seen[ref.Parameter.ID] = ref.Factor.ID
	}
	return nil
}
