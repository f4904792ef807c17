// internal/expr/resolver.go
package expr

import (
	"fmt"
	"sort"
	"strings"

	"github.com/solatis/cardwright/internal/catalog"
	"github.com/solatis/cardwright/internal/types"
)

/*
 * Per-layer operand resolvers.
 *
 * Each resolver is a precomputed pair of maps built from one Snapshot and is
 * immutable afterwards. Built once per session and passed explicitly into
 * every Parse/Render/Expand call.
 *
 *   - Rule layer (operands = factors): display "<parameter> <symbol> <value>"
 *   - Card layer (operands = rules): display = rule name; lookup by name
 *     returns the current version (see version.go)
 *   - Product card layer (operands = cards): display = card name
 *
 * Display text is whitespace-normalized. Duplicate display text resolves to
 * the lowest ID. Display text that cannot survive a render/parse round trip
 * (a boundary word, or a bare ID) stays displayable but is not reachable by
 * name; Parse reports ErrAmbiguousOperand only when shown text names it.
 */

// NameResolver is the map-backed Resolver used for every layer.
type NameResolver struct {
	layer   types.Layer
	display map[int64]string
	lookup  map[string]int64
	// ambiguous lists unparseable display texts, ordered by ID.
	ambiguous []ambiguousName
}

type ambiguousName struct {
	name string
	err  error
}

// Layer implements Resolver.
func (r *NameResolver) Layer() types.Layer { return r.layer }

// Display implements Resolver.
func (r *NameResolver) Display(id int64) (string, bool) {
	s, ok := r.display[id]
	return s, ok
}

// Lookup implements Resolver.
func (r *NameResolver) Lookup(text string) (int64, bool) {
	id, ok := r.lookup[NormalizeName(text)]
	return id, ok
}

// Ambiguous returns an ErrAmbiguousOperand error when the operand text lexed
// from shown input overlaps, as whole words, an entry that is displayable but
// not reachable by name. It returns nil otherwise.
func (r *NameResolver) Ambiguous(text string) error {
	word := " " + NormalizeName(text) + " "
	if word == "  " {
		return nil
	}
	for _, a := range r.ambiguous {
		name := " " + a.name + " "
		if strings.Contains(name, word) || strings.Contains(word, name) {
			return a.err
		}
	}
	return nil
}

type entry struct {
	id   int64
	name string
}

// newNameResolver indexes entries. lookupIDs restricts which IDs are reachable
// by name (nil = all), ties resolve to the lowest ID.
func newNameResolver(layer types.Layer, entries []entry, lookupIDs map[int64]bool) *NameResolver {
	sort.Slice(entries, func(i, j int) bool { return entries[i].id < entries[j].id })

	r := &NameResolver{
		layer:   layer,
		display: make(map[int64]string, len(entries)),
		lookup:  make(map[string]int64, len(entries)),
	}
	for _, e := range entries {
		name := NormalizeName(e.name)
		r.display[e.id] = name
		if err := CheckName(name); err != nil {
			if name != "" {
				r.ambiguous = append(r.ambiguous, ambiguousName{
					name: name,
					err:  fmt.Errorf("%s %d: %w", operandKind(layer), e.id, err),
				})
			}
			continue
		}
		if lookupIDs != nil && !lookupIDs[e.id] {
			continue
		}
		if _, taken := r.lookup[name]; !taken {
			r.lookup[name] = e.id
		}
	}
	return r
}

// operandKind names the entities a layer's expressions combine.
func operandKind(layer types.Layer) string {
	switch layer {
	case types.LayerRule:
		return "factor"
	case types.LayerCard:
		return "rule"
	default:
		return "card"
	}
}

// CheckName rejects display names that cannot survive a render/parse round trip.
func CheckName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", types.ErrAmbiguousOperand)
	}
	for _, w := range strings.Fields(name) {
		if isBoundaryWord(w) {
			return fmt.Errorf("%w: %q contains %q", types.ErrAmbiguousOperand, name, w)
		}
	}
	if _, isID := types.ParseEntityID(name); isID {
		return fmt.Errorf("%w: %q looks like an id", types.ErrAmbiguousOperand, name)
	}
	return nil
}

// FactorDisplay renders the shown text of one factor.
func FactorDisplay(ref types.FactorRef) string {
	param := NormalizeName(ref.Parameter.Name)
	kind := ref.Condition.Kind
	switch kind {
	case types.ConditionRange:
		return NormalizeName(fmt.Sprintf("%s %s %s..%s", param, kind.Symbol(), strings.TrimSpace(ref.Factor.Value1), strings.TrimSpace(ref.Factor.Value2)))
	case types.ConditionInList, types.ConditionNotInList:
		return NormalizeName(fmt.Sprintf("%s %s [%s]", param, kind.Symbol(), strings.Join(ref.Factor.ListValues(), ", ")))
	default:
		return NormalizeName(fmt.Sprintf("%s %s %s", param, kind.Symbol(), strings.TrimSpace(ref.Factor.Value1)))
	}
}

// NewFactorResolver builds the rule-layer resolver.
func NewFactorResolver(snap *catalog.Snapshot) (*NameResolver, error) {
	factors := snap.Factors()
	entries := make([]entry, 0, len(factors))
	for _, f := range factors {
		ref, _ := snap.FactorRef(f.ID)
		entries = append(entries, entry{id: int64(f.ID), name: FactorDisplay(ref)})
	}
	return newNameResolver(types.LayerRule, entries, nil), nil
}

// NewRuleResolver builds the card-layer resolver. Every version is displayable
// by ID; only the current version of each family is reachable by name.
func NewRuleResolver(snap *catalog.Snapshot) (*NameResolver, error) {
	rules := snap.Rules()
	entries := make([]entry, 0, len(rules))
	for _, r := range rules {
		entries = append(entries, entry{id: int64(r.ID), name: r.Name})
	}
	current := make(map[int64]bool)
	for _, r := range CurrentRules(rules) {
		current[int64(r.ID)] = true
	}
	return newNameResolver(types.LayerCard, entries, current), nil
}

// NewCardResolver builds the product-card-layer resolver.
func NewCardResolver(snap *catalog.Snapshot) (*NameResolver, error) {
	cards := snap.Cards()
	entries := make([]entry, 0, len(cards))
	for _, c := range cards {
		entries = append(entries, entry{id: int64(c.ID), name: c.Name})
	}
	return newNameResolver(types.LayerProductCard, entries, nil), nil
}

// NewResolver builds the resolver for layer.
func NewResolver(layer types.Layer, snap *catalog.Snapshot) (*NameResolver, error) {
	switch layer {
	case types.LayerRule:
		return NewFactorResolver(snap)
	case types.LayerCard:
		return NewRuleResolver(snap)
	case types.LayerProductCard:
		return NewCardResolver(snap)
	default:
		return nil, fmt.Errorf("unknown layer %d", layer)
	}
}

// Resolvers holds one resolver per layer for a snapshot.
type Resolvers struct {
	Factors *NameResolver
	Rules   *NameResolver
	Cards   *NameResolver
}

// NewResolvers builds all three layer resolvers.
func NewResolvers(snap *catalog.Snapshot) (*Resolvers, error) {
	factors, err := NewFactorResolver(snap)
	if err != nil {
		return nil, err
	}
	rules, err := NewRuleResolver(snap)
	if err != nil {
		return nil, err
	}
	cards, err := NewCardResolver(snap)
	if err != nil {
		return nil, err
	}
	return &Resolvers{Factors: factors, Rules: rules, Cards: cards}, nil
}

// For returns the resolver whose operands belong to layer.
func (rs *Resolvers) For(layer types.Layer) Resolver {
	switch layer {
	case types.LayerRule:
		return rs.Factors
	case types.LayerCard:
		return rs.Rules
	default:
		return rs.Cards
	}
}
