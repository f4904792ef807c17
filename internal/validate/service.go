// internal/validate/service.go
package validate

import (
	"context"
	"fmt"
	"time"

	"github.com/solatis/cardwright/internal/catalog"
	"github.com/solatis/cardwright/internal/expr"
	"github.com/solatis/cardwright/internal/metrics"
	"github.com/solatis/cardwright/internal/platform/logger"
	"github.com/solatis/cardwright/internal/types"
)

/*
 * Validation orchestration.
 *
 * Flow (identical for both modes after step 1):
 *   1. Source tokens: ModeExists parses the entity's stored expression,
 *      ModeForm takes the caller's token sequence
 *   2. Empty -> ErrEmptyExpression; never sent to the validator
 *   3. Form tokens must be a complete expression whose operands resolve in
 *      the layer
 *   4. Expand down to factors (stale rule references fail here)
 *   5. Every referenced parameter needs a binding -> IncompleteBindingError
 *   6. Delegate to the Validator
 *
 * The service never evaluates anything itself, so swapping the local
 * evaluator for a remote one changes no validation semantics above.
 */

// SnapshotSource provides the catalog snapshot for one request.
// *catalog.Loader satisfies it.
type SnapshotSource interface {
	Load(ctx context.Context) (*catalog.Snapshot, error)
}

// Service validates requests against freshly loaded snapshots.
type Service struct {
	source    SnapshotSource
	validator Validator
	metrics   *metrics.Metrics
	logger    *logger.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithMetrics records validation outcomes and expansion latency.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger sets the service logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService creates a validation service.
func NewService(source SnapshotSource, validator Validator, opts ...Option) *Service {
	s := &Service{
		source:    source,
		validator: validator,
		logger:    logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Validate loads a snapshot and validates req against it.
func (s *Service) Validate(ctx context.Context, req Request) (Result, error) {
	snap, err := s.source.Load(ctx)
	if err != nil {
		s.metrics.IncrementValidation(req.Type.String(), req.Mode.String(), "error")
		return Result{}, fmt.Errorf("load catalog: %w", err)
	}
	return s.ValidateWith(ctx, snap, req)
}

// ValidateWith validates req against an already loaded snapshot.
func (s *Service) ValidateWith(ctx context.Context, snap *catalog.Snapshot, req Request) (Result, error) {
	res, err := s.validate(ctx, snap, req)

	outcome := "error"
	switch {
	case err != nil:
		s.logger.Debug("validation rejected", "type", req.Type.String(), "mode", req.Mode.String(), "id", req.ID, "error", err)
	case res.Passed:
		outcome = "passed"
	default:
		outcome = "failed"
	}
	s.metrics.IncrementValidation(req.Type.String(), req.Mode.String(), outcome)
	return res, err
}

func (s *Service) validate(ctx context.Context, snap *catalog.Snapshot, req Request) (Result, error) {
	resolvers, err := expr.NewResolvers(snap)
	if err != nil {
		return Result{}, err
	}

	start := time.Now()
	flat, err := Flatten(snap, resolvers, req)
	if err != nil {
		return Result{}, err
	}
	s.metrics.ObserveExpandLatency(req.Type.Layer().String(), time.Since(start))

	if err := CheckBindings(flat, req.Bindings); err != nil {
		return Result{}, err
	}

	verdict, err := s.validator.Validate(ctx, flat, req.Bindings)
	if err != nil {
		return Result{}, fmt.Errorf("validator: %w", err)
	}
	return Result{Passed: verdict.Passed, Message: verdict.Message, Expression: flat.Shown}, nil
}

// Flatten produces the validator input for req without evaluating it.
func Flatten(snap *catalog.Snapshot, resolvers *expr.Resolvers, req Request) (expr.Flattened, error) {
	if req.Type < TypeRule || req.Type > TypeProductCard {
		return expr.Flattened{}, fmt.Errorf("unsupported validation type %d", req.Type)
	}
	e := expr.NewExpander(snap, resolvers.Factors)

	switch req.Mode {
	case ModeExists:
		if req.ID <= 0 {
			return expr.Flattened{}, fmt.Errorf("%s id %d: %w", req.Type, req.ID, types.ErrNotFound)
		}
		switch req.Type {
		case TypeRule:
			return e.ExpandRule(types.RuleID(req.ID))
		case TypeCard:
			return e.ExpandCard(types.CardID(req.ID))
		case TypeProductCard:
			return e.ExpandProductCard(types.ProductCardID(req.ID))
		}
	case ModeForm:
		layer := req.Type.Layer()
		seq, err := expr.FromTokens(req.Tokens)
		if err != nil {
			return expr.Flattened{}, err
		}
		if err := seq.Check(); err != nil {
			return expr.Flattened{}, err
		}
		r := resolvers.For(layer)
		for _, tok := range req.Tokens {
			if tok.Kind != types.TokenOperand {
				continue
			}
			if _, ok := r.Display(tok.ID); !ok {
				return expr.Flattened{}, &types.UnresolvedOperandError{Layer: layer, Text: types.FormatEntityID(tok.ID)}
			}
		}
		if layer == types.LayerRule {
			if err := expr.CheckRuleParameters(snap, req.Tokens); err != nil {
				return expr.Flattened{}, err
			}
		}
		return e.Expand(layer, req.Tokens)
	}
	return expr.Flattened{}, fmt.Errorf("unsupported validation %s/%s", req.Type, req.Mode)
}

// CheckBindings requires a binding for every parameter flat references.
func CheckBindings(flat expr.Flattened, bindings types.Bindings) error {
	var missing []string
	for _, p := range flat.Parameters {
		if _, ok := bindings[p.ID]; !ok {
			missing = append(missing, p.Name)
		}
	}
	if len(missing) > 0 {
		return &types.IncompleteBindingError{Missing: missing}
	}
	return nil
}
