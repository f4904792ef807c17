// internal/catalog/snapshot.go
package catalog

import (
	"fmt"
	"sort"

	"github.com/solatis/cardwright/internal/types"
)

/*
 * Immutable catalog snapshot.
 *
 * A Snapshot is populated once per session and never mutated afterwards, so it
 * can be shared by resolvers and expanders without locking. All slices handed
 * out are copies ordered by ID, which keeps every derived projection
 * (resolver maps, palettes) deterministic.
 *
 * Construction validates referential integrity of the factor layer: each
 * factor must reference a known parameter and condition and carry values that
 * fit its condition kind. Rule/Card/ProductCard expressions are not checked
 * here; stale references surface at expansion time.
 */

// Snapshot is a read-only view of the catalog for one session.
type Snapshot struct {
	parameters   map[types.ParameterID]types.Parameter
	conditions   map[types.ConditionID]types.Condition
	factors      map[types.FactorID]types.Factor
	rules        map[types.RuleID]types.Rule
	cards        map[types.CardID]types.Card
	productCards map[types.ProductCardID]types.ProductCard

	parameterList   []types.Parameter
	factorList      []types.Factor
	ruleList        []types.Rule
	cardList        []types.Card
	productCardList []types.ProductCard
}

// Contents groups the raw entity lists a Snapshot is built from.
type Contents struct {
	Parameters   []types.Parameter
	Conditions   []types.Condition
	Factors      []types.Factor
	Rules        []types.Rule
	Cards        []types.Card
	ProductCards []types.ProductCard
}

// NewSnapshot indexes contents and validates the factor layer.
func NewSnapshot(c Contents) (*Snapshot, error) {
	s := &Snapshot{
		parameters:   make(map[types.ParameterID]types.Parameter, len(c.Parameters)),
		conditions:   make(map[types.ConditionID]types.Condition, len(c.Conditions)),
		factors:      make(map[types.FactorID]types.Factor, len(c.Factors)),
		rules:        make(map[types.RuleID]types.Rule, len(c.Rules)),
		cards:        make(map[types.CardID]types.Card, len(c.Cards)),
		productCards: make(map[types.ProductCardID]types.ProductCard, len(c.ProductCards)),
	}

	for _, p := range c.Parameters {
		if _, dup := s.parameters[p.ID]; dup {
			return nil, fmt.Errorf("duplicate parameter id %d", p.ID)
		}
		s.parameters[p.ID] = p
	}
	for _, cond := range c.Conditions {
		if cond.Kind == types.ConditionUnspecified {
			cond.Kind = types.ParseConditionKind(cond.Name)
		}
		s.conditions[cond.ID] = cond
	}
	for _, f := range c.Factors {
		if _, ok := s.parameters[f.ParameterID]; !ok {
			return nil, &types.InvalidFactorError{FactorID: f.ID, Reason: fmt.Sprintf("unknown parameter %d", f.ParameterID)}
		}
		cond, ok := s.conditions[f.ConditionID]
		if !ok {
			return nil, &types.InvalidFactorError{FactorID: f.ID, Reason: fmt.Sprintf("unknown condition %d", f.ConditionID)}
		}
		if err := f.Validate(cond.Kind); err != nil {
			return nil, err
		}
		if _, dup := s.factors[f.ID]; dup {
			return nil, fmt.Errorf("duplicate factor id %d", f.ID)
		}
		s.factors[f.ID] = f
	}
	for _, r := range c.Rules {
		s.rules[r.ID] = r
	}
	for _, card := range c.Cards {
		s.cards[card.ID] = card
	}
	for _, pc := range c.ProductCards {
		s.productCards[pc.ID] = pc
	}

	s.parameterList = sortedValues(s.parameters, func(p types.Parameter) int64 { return int64(p.ID) })
	s.factorList = sortedValues(s.factors, func(f types.Factor) int64 { return int64(f.ID) })
	s.ruleList = sortedValues(s.rules, func(r types.Rule) int64 { return int64(r.ID) })
	s.cardList = sortedValues(s.cards, func(c types.Card) int64 { return int64(c.ID) })
	s.productCardList = sortedValues(s.productCards, func(pc types.ProductCard) int64 { return int64(pc.ID) })

	return s, nil
}

// Parameter looks up a parameter by ID.
func (s *Snapshot) Parameter(id types.ParameterID) (types.Parameter, bool) {
	p, ok := s.parameters[id]
	return p, ok
}

// Condition looks up a condition by ID.
func (s *Snapshot) Condition(id types.ConditionID) (types.Condition, bool) {
	c, ok := s.conditions[id]
	return c, ok
}

// Factor looks up a factor by ID.
func (s *Snapshot) Factor(id types.FactorID) (types.Factor, bool) {
	f, ok := s.factors[id]
	return f, ok
}

// FactorRef resolves a factor together with its parameter and condition.
func (s *Snapshot) FactorRef(id types.FactorID) (types.FactorRef, bool) {
	f, ok := s.factors[id]
	if !ok {
		return types.FactorRef{}, false
	}
	// NewSnapshot guarantees both lookups succeed for indexed factors.
	return types.FactorRef{
		Factor:    f,
		Parameter: s.parameters[f.ParameterID],
		Condition: s.conditions[f.ConditionID],
	}, true
}

// Rule looks up a rule version by ID.
func (s *Snapshot) Rule(id types.RuleID) (types.Rule, bool) {
	r, ok := s.rules[id]
	return r, ok
}

// Card looks up a card by ID.
func (s *Snapshot) Card(id types.CardID) (types.Card, bool) {
	c, ok := s.cards[id]
	return c, ok
}

// ProductCard looks up a product card by ID.
func (s *Snapshot) ProductCard(id types.ProductCardID) (types.ProductCard, bool) {
	pc, ok := s.productCards[id]
	return pc, ok
}

// Parameters returns all parameters ordered by ID.
func (s *Snapshot) Parameters() []types.Parameter { return append([]types.Parameter(nil), s.parameterList...) }

// Factors returns all factors ordered by ID.
func (s *Snapshot) Factors() []types.Factor { return append([]types.Factor(nil), s.factorList...) }

// Rules returns every rule version ordered by ID.
func (s *Snapshot) Rules() []types.Rule { return append([]types.Rule(nil), s.ruleList...) }

// Cards returns all cards ordered by ID.
func (s *Snapshot) Cards() []types.Card { return append([]types.Card(nil), s.cardList...) }

// ProductCards returns all product cards ordered by ID.
func (s *Snapshot) ProductCards() []types.ProductCard {
	return append([]types.ProductCard(nil), s.productCardList...)
}

func sortedValues[K comparable, V any](m map[K]V, key func(V) int64) []V {
	out := make([]V, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return key(out[i]) < key(out[j]) })
	return out
}
