// Package authoring persists confirmed Rule, Card and Product Card expressions.
package authoring

import (
	"context"
	"errors"
	"fmt"

	"github.com/solatis/cardwright/internal/catalog"
	"github.com/solatis/cardwright/internal/expr"
	"github.com/solatis/cardwright/internal/metrics"
	"github.com/solatis/cardwright/internal/platform/logger"
	"github.com/solatis/cardwright/internal/session"
	"github.com/solatis/cardwright/internal/types"
)

/*
 * Save flow (all three layers):
 *   1. Load a fresh snapshot
 *   2. Normalize and check the name
 *   3. Parse the stored expression strictly in the layer and confirm it
 *      (complete, operands resolve, one factor per parameter for rules)
 *   4. Layer checks: cards may only embed current rule versions; cards and
 *      product cards must expand
 *   5. Persist stored + shown, where shown is always re-rendered from stored
 *
 * Client-sent shown text is never persisted; it is derived.
 */

// SnapshotSource provides the catalog snapshot a save is checked against.
type SnapshotSource interface {
	Load(ctx context.Context) (*catalog.Snapshot, error)
}

// RuleDraft is a new version of a rule family.
type RuleDraft struct {
	Name             string
	StoredExpression string
	// BaseVersion is the family version the edit started from; 0 for a new family.
	BaseVersion int
}

// CardDraft creates a card (ID zero) or replaces one.
type CardDraft struct {
	ID               types.CardID
	Name             string
	StoredExpression string
}

// ProductCardDraft creates a product card (ID zero) or replaces one.
type ProductCardDraft struct {
	ID               types.ProductCardID
	Name             string
	ProductID        int64
	StoredExpression string
}

// Service validates drafts and writes them.
type Service struct {
	source  SnapshotSource
	writer  catalog.Writer
	metrics *metrics.Metrics
	logger  *logger.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithMetrics records save outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger sets the service logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService creates an authoring service.
func NewService(source SnapshotSource, writer catalog.Writer, opts ...Option) *Service {
	s := &Service{
		source: source,
		writer: writer,
		logger: logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SaveRule stores a new version of the rule family draft.Name.
func (s *Service) SaveRule(ctx context.Context, draft RuleDraft) (types.Rule, error) {
	rule, err := s.saveRule(ctx, draft)
	s.record(types.LayerRule, err)
	if err == nil {
		s.logger.Info("rule saved", "rule_id", int64(rule.ID), "name", rule.Name, "version", rule.Version)
	}
	return rule, err
}

func (s *Service) saveRule(ctx context.Context, draft RuleDraft) (types.Rule, error) {
	name, err := checkName(draft.Name)
	if err != nil {
		return types.Rule{}, err
	}
	snap, resolvers, err := s.load(ctx)
	if err != nil {
		return types.Rule{}, err
	}
	confirmed, _, err := confirm(types.LayerRule, snap, resolvers, draft.StoredExpression)
	if err != nil {
		return types.Rule{}, err
	}

	return s.writer.SaveRule(ctx, types.Rule{
		Name:             name,
		IsActive:         true,
		ShownExpression:  confirmed.Shown,
		StoredExpression: confirmed.Stored,
	}, draft.BaseVersion)
}

// SaveCard stores a card composed of current rule versions.
func (s *Service) SaveCard(ctx context.Context, draft CardDraft) (types.Card, error) {
	card, err := s.saveCard(ctx, draft)
	s.record(types.LayerCard, err)
	if err == nil {
		s.logger.Info("card saved", "card_id", int64(card.ID), "name", card.Name)
	}
	return card, err
}

func (s *Service) saveCard(ctx context.Context, draft CardDraft) (types.Card, error) {
	name, err := checkName(draft.Name)
	if err != nil {
		return types.Card{}, err
	}
	snap, resolvers, err := s.load(ctx)
	if err != nil {
		return types.Card{}, err
	}
	if draft.ID != 0 {
		if _, ok := snap.Card(draft.ID); !ok {
			return types.Card{}, fmt.Errorf("card %d: %w", draft.ID, types.ErrNotFound)
		}
	}
	confirmed, tokens, err := confirm(types.LayerCard, snap, resolvers, draft.StoredExpression)
	if err != nil {
		return types.Card{}, err
	}

	rules := snap.Rules()
	for _, tok := range tokens {
		if tok.Kind != types.TokenOperand {
			continue
		}
		id := types.RuleID(tok.ID)
		rule, _ := snap.Rule(id)
		switch {
		case !rule.IsActive:
			return types.Card{}, &types.StaleReferenceError{CardID: draft.ID, RuleID: id, Reason: "inactive"}
		case !expr.IsCurrent(rules, rule):
			return types.Card{}, &types.StaleReferenceError{CardID: draft.ID, RuleID: id, Reason: "superseded"}
		}
	}
	if _, err := expr.NewExpander(snap, resolvers.Factors).Expand(types.LayerCard, tokens); err != nil {
		return types.Card{}, err
	}

	return s.writer.SaveCard(ctx, types.Card{
		ID:               draft.ID,
		Name:             name,
		ShownExpression:  confirmed.Shown,
		StoredExpression: confirmed.Stored,
	})
}

// SaveProductCard stores a product card composed of cards.
func (s *Service) SaveProductCard(ctx context.Context, draft ProductCardDraft) (types.ProductCard, error) {
	pc, err := s.saveProductCard(ctx, draft)
	s.record(types.LayerProductCard, err)
	if err == nil {
		s.logger.Info("product card saved", "product_card_id", int64(pc.ID), "name", pc.Name)
	}
	return pc, err
}

func (s *Service) saveProductCard(ctx context.Context, draft ProductCardDraft) (types.ProductCard, error) {
	name, err := checkName(draft.Name)
	if err != nil {
		return types.ProductCard{}, err
	}
	snap, resolvers, err := s.load(ctx)
	if err != nil {
		return types.ProductCard{}, err
	}
	if draft.ID != 0 {
		if _, ok := snap.ProductCard(draft.ID); !ok {
			return types.ProductCard{}, fmt.Errorf("product card %d: %w", draft.ID, types.ErrNotFound)
		}
	}
	confirmed, tokens, err := confirm(types.LayerProductCard, snap, resolvers, draft.StoredExpression)
	if err != nil {
		return types.ProductCard{}, err
	}
	if _, err := expr.NewExpander(snap, resolvers.Factors).Expand(types.LayerProductCard, tokens); err != nil {
		return types.ProductCard{}, err
	}

	return s.writer.SaveProductCard(ctx, types.ProductCard{
		ID:               draft.ID,
		Name:             name,
		ProductID:        draft.ProductID,
		ShownExpression:  confirmed.Shown,
		StoredExpression: confirmed.Stored,
	})
}

func (s *Service) load(ctx context.Context) (*catalog.Snapshot, *expr.Resolvers, error) {
	snap, err := s.source.Load(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load catalog: %w", err)
	}
	resolvers, err := expr.NewResolvers(snap)
	if err != nil {
		return nil, nil, err
	}
	return snap, resolvers, nil
}

func (s *Service) record(layer types.Layer, err error) {
	outcome := "saved"
	switch {
	case err == nil:
	case errors.Is(err, types.ErrVersionConflict):
		outcome = "conflict"
	case errors.Is(err, types.ErrResolverTimeout), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		outcome = "error"
	default:
		outcome = "rejected"
	}
	if err != nil {
		s.logger.Debug("save failed", "layer", layer.String(), "outcome", outcome, "error", err)
	}
	s.metrics.IncrementSave(layer.String(), outcome)
}

// confirm parses stored strictly through an edit session and returns both
// renderings plus the parsed tokens.
func confirm(layer types.Layer, snap *catalog.Snapshot, resolvers *expr.Resolvers, stored string) (session.Expression, []types.Token, error) {
	sess := session.New(layer, snap, resolvers)
	if err := sess.Load(stored); err != nil {
		return session.Expression{}, nil, err
	}
	confirmed, err := sess.Confirm()
	if err != nil {
		return session.Expression{}, nil, err
	}
	return confirmed, sess.Tokens(), nil
}

func checkName(name string) (string, error) {
	name = expr.NormalizeName(name)
	if err := expr.CheckName(name); err != nil {
		return "", err
	}
	return name, nil
}
