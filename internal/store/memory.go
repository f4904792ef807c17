package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/solatis/cardwright/internal/catalog"
	"github.com/solatis/cardwright/internal/expr"
	"github.com/solatis/cardwright/internal/types"
)

// MemoryStore is a catalog.Store held in process memory. Used by tests and
// by the CLI when no database is configured.
type MemoryStore struct {
	mu           sync.RWMutex
	parameters   map[types.ParameterID]types.Parameter
	conditions   map[types.ConditionID]types.Condition
	factors      map[types.FactorID]types.Factor
	rules        map[types.RuleID]types.Rule
	cards        map[types.CardID]types.Card
	productCards map[types.ProductCardID]types.ProductCard
	nextID       int64
}

// NewMemoryStore creates a store seeded with contents. IDs assigned by later
// inserts start above the highest seeded ID.
func NewMemoryStore(c catalog.Contents) *MemoryStore {
	s := &MemoryStore{
		parameters:   make(map[types.ParameterID]types.Parameter),
		conditions:   make(map[types.ConditionID]types.Condition),
		factors:      make(map[types.FactorID]types.Factor),
		rules:        make(map[types.RuleID]types.Rule),
		cards:        make(map[types.CardID]types.Card),
		productCards: make(map[types.ProductCardID]types.ProductCard),
	}
	for _, p := range c.Parameters {
		s.parameters[p.ID] = p
		s.bump(int64(p.ID))
	}
	for _, cond := range c.Conditions {
		s.conditions[cond.ID] = cond
	}
	for _, f := range c.Factors {
		s.factors[f.ID] = f
		s.bump(int64(f.ID))
	}
	for _, r := range c.Rules {
		s.rules[r.ID] = r
		s.bump(int64(r.ID))
	}
	for _, card := range c.Cards {
		s.cards[card.ID] = card
		s.bump(int64(card.ID))
	}
	for _, pc := range c.ProductCards {
		s.productCards[pc.ID] = pc
		s.bump(int64(pc.ID))
	}
	return s
}

// DefaultConditions is the condition vocabulary seeded by the schema migration.
func DefaultConditions() []types.Condition {
	kinds := []types.ConditionKind{
		types.ConditionEquals,
		types.ConditionNotEquals,
		types.ConditionGreaterThan,
		types.ConditionLessThan,
		types.ConditionGreaterThanOrEqual,
		types.ConditionLessThanOrEqual,
		types.ConditionRange,
		types.ConditionInList,
		types.ConditionNotInList,
	}
	out := make([]types.Condition, 0, len(kinds))
	for i, k := range kinds {
		out = append(out, types.Condition{ID: types.ConditionID(i + 1), Name: k.String(), Kind: k})
	}
	return out
}

func (s *MemoryStore) bump(id int64) {
	if id > s.nextID {
		s.nextID = id
	}
}

func (s *MemoryStore) allocate() int64 {
	s.nextID++
	return s.nextID
}

// FetchParameters implements catalog.Reader.
func (s *MemoryStore) FetchParameters(ctx context.Context) ([]types.Parameter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sorted(s.parameters, func(p types.Parameter) int64 { return int64(p.ID) }), ctx.Err()
}

// FetchFactorsByParameter implements catalog.Reader.
func (s *MemoryStore) FetchFactorsByParameter(ctx context.Context, id types.ParameterID) ([]types.Factor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []types.Factor
	for _, f := range s.factors {
		if f.ParameterID == id {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, ctx.Err()
}

// FetchConditions implements catalog.Reader.
func (s *MemoryStore) FetchConditions(ctx context.Context) ([]types.Condition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sorted(s.conditions, func(c types.Condition) int64 { return int64(c.ID) }), ctx.Err()
}

// FetchRules implements catalog.Reader.
func (s *MemoryStore) FetchRules(ctx context.Context) ([]types.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sorted(s.rules, func(r types.Rule) int64 { return int64(r.ID) }), ctx.Err()
}

// FetchCards implements catalog.Reader.
func (s *MemoryStore) FetchCards(ctx context.Context) ([]types.Card, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sorted(s.cards, func(c types.Card) int64 { return int64(c.ID) }), ctx.Err()
}

// FetchProductCards implements catalog.Reader.
func (s *MemoryStore) FetchProductCards(ctx context.Context) ([]types.ProductCard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sorted(s.productCards, func(pc types.ProductCard) int64 { return int64(pc.ID) }), ctx.Err()
}

// SaveRule implements catalog.Writer.
func (s *MemoryStore) SaveRule(ctx context.Context, rule types.Rule, baseVersion int) (types.Rule, error) {
	if err := ctx.Err(); err != nil {
		return types.Rule{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rule.Name = expr.NormalizeName(rule.Name)
	latest := 0
	for _, r := range s.rules {
		if expr.NormalizeName(r.Name) == rule.Name && r.Version > latest {
			latest = r.Version
		}
	}
	if latest != baseVersion {
		return types.Rule{}, fmt.Errorf("%w: %s is at version %d, edit started from %d", types.ErrVersionConflict, rule.Name, latest, baseVersion)
	}

	rule.ID = types.RuleID(s.allocate())
	rule.Version = latest + 1
	s.rules[rule.ID] = rule
	return rule, nil
}

// SetRuleActive activates or deactivates one rule version.
func (s *MemoryStore) SetRuleActive(ctx context.Context, id types.RuleID, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rules[id]
	if !ok {
		return fmt.Errorf("rule %d: %w", id, types.ErrNotFound)
	}
	r.IsActive = active
	s.rules[id] = r
	return ctx.Err()
}

// SaveCard implements catalog.Writer.
func (s *MemoryStore) SaveCard(ctx context.Context, card types.Card) (types.Card, error) {
	if err := ctx.Err(); err != nil {
		return types.Card{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if card.ID == 0 {
		card.ID = types.CardID(s.allocate())
	} else if _, ok := s.cards[card.ID]; !ok {
		return types.Card{}, fmt.Errorf("card %d: %w", card.ID, types.ErrNotFound)
	}
	s.cards[card.ID] = card
	return card, nil
}

// SaveProductCard implements catalog.Writer.
func (s *MemoryStore) SaveProductCard(ctx context.Context, pc types.ProductCard) (types.ProductCard, error) {
	if err := ctx.Err(); err != nil {
		return types.ProductCard{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if pc.ID == 0 {
		pc.ID = types.ProductCardID(s.allocate())
	} else if _, ok := s.productCards[pc.ID]; !ok {
		return types.ProductCard{}, fmt.Errorf("product card %d: %w", pc.ID, types.ErrNotFound)
	}
	s.productCards[pc.ID] = pc
	return pc, nil
}

// InsertParameter adds a parameter and returns it with its assigned ID.
func (s *MemoryStore) InsertParameter(ctx context.Context, p types.Parameter) (types.Parameter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = types.ParameterID(s.allocate())
	s.parameters[p.ID] = p
	return p, ctx.Err()
}

// InsertFactor adds a factor and returns it with its assigned ID.
func (s *MemoryStore) InsertFactor(ctx context.Context, f types.Factor) (types.Factor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.parameters[f.ParameterID]; !ok {
		return types.Factor{}, fmt.Errorf("parameter %d: %w", f.ParameterID, types.ErrNotFound)
	}
	f.ID = types.FactorID(s.allocate())
	s.factors[f.ID] = f
	return f, ctx.Err()
}

func sorted[K comparable, V any](m map[K]V, key func(V) int64) []V {
	out := make([]V, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return key(out[i]) < key(out[j]) })
	return out
}
