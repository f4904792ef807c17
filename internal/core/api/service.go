package api

import (
	"context"
	"fmt"
	"strings"

	"github.com/solatis/cardwright/internal/authoring"
	"github.com/solatis/cardwright/internal/catalog"
	"github.com/solatis/cardwright/internal/expr"
	"github.com/solatis/cardwright/internal/platform/logger"
	"github.com/solatis/cardwright/internal/rules"
	"github.com/solatis/cardwright/internal/session"
	"github.com/solatis/cardwright/internal/types"
	"github.com/solatis/cardwright/internal/validate"
)

// ExpressionService implements ExpressionAPIServer.
// Thin orchestration layer delegating to expr, validate and authoring.
// Every request works on its own freshly loaded snapshot.
type ExpressionService struct {
	source     validate.SnapshotSource
	validation *validate.Service
	authoring  *authoring.Service
	lenient    bool
	logger     *logger.Logger
}

var _ ExpressionAPIServer = (*ExpressionService)(nil)

// Option configures an ExpressionService.
type Option func(*ExpressionService)

// WithLenientParse makes Parse drop unresolved operands by default.
func WithLenientParse(lenient bool) Option {
	return func(s *ExpressionService) { s.lenient = lenient }
}

// WithLogger sets the service logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *ExpressionService) { s.logger = l }
}

// NewExpressionService creates service instance with dependencies.
func NewExpressionService(source validate.SnapshotSource, validation *validate.Service, authoring *authoring.Service, opts ...Option) (*ExpressionService, error) {
	if source == nil {
		return nil, fmt.Errorf("source cannot be nil")
	}
	if validation == nil {
		return nil, fmt.Errorf("validation cannot be nil")
	}
	if authoring == nil {
		return nil, fmt.Errorf("authoring cannot be nil")
	}

	s := &ExpressionService{
		source:     source,
		validation: validation,
		authoring:  authoring,
		logger:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Render converts a (possibly incomplete) sequence to text.
func (s *ExpressionService) Render(ctx context.Context, req *RenderRequest) (*RenderResponse, error) {
	layer, form, err := layerAndForm(req.Layer, req.Form)
	if err != nil {
		return nil, toStatus(err)
	}
	tokens, err := TokensFromWire(req.Tokens)
	if err != nil {
		return nil, toStatus(err)
	}
	if _, err := expr.FromTokens(tokens); err != nil {
		return nil, toStatus(err)
	}
	_, resolvers, err := s.load(ctx)
	if err != nil {
		return nil, toStatus(err)
	}

	text, err := expr.Render(tokens, form, resolvers.For(layer))
	if err != nil {
		return nil, toStatus(err)
	}
	return &RenderResponse{Text: text}, nil
}

// Parse converts text to a sequence and returns both renderings.
func (s *ExpressionService) Parse(ctx context.Context, req *ParseRequest) (*ParseResponse, error) {
	layer, form, err := layerAndForm(req.Layer, req.Form)
	if err != nil {
		return nil, toStatus(err)
	}
	_, resolvers, err := s.load(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	r := resolvers.For(layer)

	var dropped []string
	tokens, err := expr.Parse(req.Text, form, r, expr.ParseOptions{
		Lenient: s.lenient || req.Lenient,
		OnDrop: func(text string) {
			dropped = append(dropped, text)
			s.logger.Warn("dropped unresolved operand", "layer", layer.String(), "text", text)
		},
	})
	if err != nil {
		return nil, toStatus(err)
	}
	seq, err := expr.FromTokens(tokens)
	if err != nil {
		return nil, toStatus(err)
	}

	stored, err := expr.Render(tokens, types.FormStored, r)
	if err != nil {
		return nil, toStatus(err)
	}
	shown, err := expr.Render(tokens, types.FormShown, r)
	if err != nil {
		return nil, toStatus(err)
	}
	return &ParseResponse{
		Tokens:   TokensToWire(tokens),
		Stored:   stored,
		Shown:    shown,
		State:    seq.State().String(),
		Complete: seq.Complete(),
		Dropped:  dropped,
	}, nil
}

// Palette lists operands eligible for new compositions of a layer.
func (s *ExpressionService) Palette(ctx context.Context, req *PaletteRequest) (*PaletteResponse, error) {
	layer, err := parseLayer(req.Layer)
	if err != nil {
		return nil, toStatus(err)
	}
	snap, resolvers, err := s.load(ctx)
	if err != nil {
		return nil, toStatus(err)
	}

	entries := session.New(layer, snap, resolvers).Palette()
	resp := &PaletteResponse{Entries: make([]PaletteEntry, 0, len(entries))}
	for _, e := range entries {
		resp.Entries = append(resp.Entries, PaletteEntry{ID: e.ID, Text: e.Text})
	}
	return resp, nil
}

// Expand flattens an entity or sequence down to factors.
func (s *ExpressionService) Expand(ctx context.Context, req *ExpandRequest) (*ExpandResponse, error) {
	vreq, err := validationRequest(req.Type, "", req.ID, req.Tokens)
	if err != nil {
		return nil, toStatus(err)
	}
	snap, resolvers, err := s.load(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	flat, err := validate.Flatten(snap, resolvers, vreq)
	if err != nil {
		return nil, toStatus(err)
	}

	resp := &ExpandResponse{
		Shown:      flat.Shown,
		Tokens:     TokensToWire(flat.Tokens),
		Parameters: make([]ParameterInfo, 0, len(flat.Parameters)),
	}
	for _, p := range flat.Parameters {
		resp.Parameters = append(resp.Parameters, parameterInfo(p))
	}
	return resp, nil
}

// Validate evaluates an entity or sequence against a JSON payload.
func (s *ExpressionService) Validate(ctx context.Context, req *ValidateRequest) (*ValidateResponse, error) {
	vreq, err := validationRequest(req.Type, req.Mode, req.ID, req.Tokens)
	if err != nil {
		return nil, toStatus(err)
	}
	snap, resolvers, err := s.load(ctx)
	if err != nil {
		return nil, toStatus(err)
	}

	// Bindings are extracted for the parameters the expression references, so
	// mandatory parameters of unrelated rules never block a validation.
	flat, err := validate.Flatten(snap, resolvers, vreq)
	if err != nil {
		return nil, toStatus(err)
	}
	payload := []byte(req.Payload)
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	vreq.Bindings, err = rules.BindingsFromPayload(flat.Parameters, payload)
	if err != nil {
		return nil, toStatus(err)
	}

	res, err := s.validation.ValidateWith(ctx, snap, vreq)
	if err != nil {
		return nil, toStatus(err)
	}
	return &ValidateResponse{
		Passed:      res.Passed,
		Message:     res.Message,
		Expression:  res.Expression,
		EvaluatedAt: Now(),
	}, nil
}

// SaveRule stores a new rule version.
func (s *ExpressionService) SaveRule(ctx context.Context, req *SaveRuleRequest) (*SaveRuleResponse, error) {
	rule, err := s.authoring.SaveRule(ctx, authoring.RuleDraft{
		Name:             req.Name,
		StoredExpression: req.Stored,
		BaseVersion:      req.BaseVersion,
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return &SaveRuleResponse{
		ID:      int64(rule.ID),
		Name:    rule.Name,
		Version: rule.Version,
		Stored:  rule.StoredExpression,
		Shown:   rule.ShownExpression,
		SavedAt: Now(),
	}, nil
}

// SaveCard creates or replaces a card.
func (s *ExpressionService) SaveCard(ctx context.Context, req *SaveCardRequest) (*SaveCardResponse, error) {
	card, err := s.authoring.SaveCard(ctx, authoring.CardDraft{
		ID:               types.CardID(req.ID),
		Name:             req.Name,
		StoredExpression: req.Stored,
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return &SaveCardResponse{
		ID:      int64(card.ID),
		Name:    card.Name,
		Stored:  card.StoredExpression,
		Shown:   card.ShownExpression,
		SavedAt: Now(),
	}, nil
}

// SaveProductCard creates or replaces a product card.
func (s *ExpressionService) SaveProductCard(ctx context.Context, req *SaveProductCardRequest) (*SaveProductCardResponse, error) {
	pc, err := s.authoring.SaveProductCard(ctx, authoring.ProductCardDraft{
		ID:               types.ProductCardID(req.ID),
		Name:             req.Name,
		ProductID:        req.ProductID,
		StoredExpression: req.Stored,
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return &SaveProductCardResponse{
		ID:        int64(pc.ID),
		Name:      pc.Name,
		ProductID: pc.ProductID,
		Stored:    pc.StoredExpression,
		Shown:     pc.ShownExpression,
		SavedAt:   Now(),
	}, nil
}

func (s *ExpressionService) load(ctx context.Context) (*catalog.Snapshot, *expr.Resolvers, error) {
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

func parseLayer(s string) (types.Layer, error) {
	typ, err := validate.ParseType(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return typ.Layer(), nil
}

func layerAndForm(layerName, formName string) (types.Layer, types.Form, error) {
	layer, err := parseLayer(layerName)
	if err != nil {
		return 0, 0, err
	}
	switch strings.ToLower(strings.TrimSpace(formName)) {
	case "stored":
		return layer, types.FormStored, nil
	case "shown", "":
		return layer, types.FormShown, nil
	default:
		return 0, 0, fmt.Errorf("%w: unknown form %q", errBadRequest, formName)
	}
}

// validationRequest builds a request; mode defaults to exists when an ID is
// given and to form otherwise.
func validationRequest(typeName, modeName string, id int64, wire []Token) (validate.Request, error) {
	typ, err := validate.ParseType(typeName)
	if err != nil {
		return validate.Request{}, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	mode := validate.ModeForm
	if id != 0 {
		mode = validate.ModeExists
	}
	if modeName != "" {
		if mode, err = validate.ParseMode(modeName); err != nil {
			return validate.Request{}, fmt.Errorf("%w: %v", errBadRequest, err)
		}
	}
	tokens, err := TokensFromWire(wire)
	if err != nil {
		return validate.Request{}, err
	}
	return validate.Request{Type: typ, Mode: mode, ID: id, Tokens: tokens}, nil
}
