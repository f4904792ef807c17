// Package session implements the single-owner edit session that composes one
// Rule, Card or Product Card expression token by token.
package session

import (
	"github.com/solatis/cardwright/internal/catalog"
	"github.com/solatis/cardwright/internal/expr"
	"github.com/solatis/cardwright/internal/platform/logger"
	"github.com/solatis/cardwright/internal/types"
)

/*
 * Edit session.
 *
 * A Session owns one Sequence, the resolver of its layer and the snapshot the
 * resolver was built from. Every successful edit re-renders the shown
 * expression; a rejected edit changes nothing. The session is not safe for
 * concurrent use: it has exactly one owner by construction.
 *
 * Operations:
 *   - Append / RemoveLast / Reset: builder commands
 *   - Load / LoadShown: replace the sequence with a parsed expression
 *   - Confirm: require a complete expression and return both renderings
 *   - Palette: operands eligible for new compositions in this layer
 *
 * Operand tokens are only accepted when the layer's resolver knows them, so
 * Shown() can never fail to render.
 */

// Expression is a confirmed stored/shown rendering pair.
type Expression struct {
	Stored string
	Shown  string
}

// PaletteEntry is one operand a UI may offer.
type PaletteEntry struct {
	ID   int64
	Text string
}

// Session is an in-progress edit of one expression.
type Session struct {
	id       types.SessionID
	layer    types.Layer
	snap     *catalog.Snapshot
	resolver expr.Resolver
	seq      expr.Sequence
	shown    string
	lenient  bool
	logger   *logger.Logger
}

// Option configures a Session.
type Option func(*Session)

// WithLenientParse drops unresolved operands on Load instead of failing.
func WithLenientParse(lenient bool) Option {
	return func(s *Session) { s.lenient = lenient }
}

// WithLogger sets the session logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// New opens an empty session for layer.
func New(layer types.Layer, snap *catalog.Snapshot, resolvers *expr.Resolvers, opts ...Option) *Session {
	s := &Session{
		id:       types.NewSessionID(),
		layer:    layer,
		snap:     snap,
		resolver: resolvers.For(layer),
		seq:      expr.NewSequence(),
		logger:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("session_id", string(s.id), "layer", layer.String())
	return s
}

// ID returns the session identifier.
func (s *Session) ID() types.SessionID { return s.id }

// Layer returns the layer being edited.
func (s *Session) Layer() types.Layer { return s.layer }

// Tokens returns a copy of the current sequence.
func (s *Session) Tokens() []types.Token { return s.seq.Tokens() }

// State returns the builder state.
func (s *Session) State() expr.State { return s.seq.State() }

// Allowed reports which controls a UI should enable.
func (s *Session) Allowed() expr.Allowed { return s.seq.Allowed() }

// Shown returns the current shown rendering.
func (s *Session) Shown() string { return s.shown }

// Stored returns the current stored rendering.
func (s *Session) Stored() string {
	stored, _ := expr.Render(s.seq.Tokens(), types.FormStored, s.resolver)
	return stored
}

// Append adds tok if the grammar allows it and its operand resolves.
func (s *Session) Append(tok types.Token) bool {
	if tok.Kind == types.TokenOperand {
		if _, ok := s.resolver.Display(tok.ID); !ok {
			return false
		}
	}
	next, ok := s.seq.Append(tok)
	if !ok {
		return false
	}
	return s.replace(next) == nil
}

// RemoveLast drops the final token.
func (s *Session) RemoveLast() {
	_ = s.replace(s.seq.RemoveLast())
}

// Reset empties the session.
func (s *Session) Reset() {
	_ = s.replace(expr.NewSequence())
}

// Load replaces the sequence with a parsed stored expression. On error the
// session is unchanged.
func (s *Session) Load(stored string) error {
	return s.load(stored, types.FormStored)
}

// LoadShown replaces the sequence with a parsed shown expression.
func (s *Session) LoadShown(shown string) error {
	return s.load(shown, types.FormShown)
}

func (s *Session) load(text string, form types.Form) error {
	tokens, err := expr.Parse(text, form, s.resolver, expr.ParseOptions{
		Lenient: s.lenient,
		OnDrop: func(dropped string) {
			s.logger.Warn("dropped unresolved operand", "text", dropped)
		},
	})
	if err != nil {
		return err
	}
	seq, err := expr.FromTokens(tokens)
	if err != nil {
		return err
	}
	return s.replace(seq)
}

// Confirm returns both renderings of a complete expression.
func (s *Session) Confirm() (Expression, error) {
	if err := s.seq.Check(); err != nil {
		return Expression{}, err
	}
	if s.layer == types.LayerRule {
		if err := expr.CheckRuleParameters(s.snap, s.seq.Tokens()); err != nil {
			return Expression{}, err
		}
	}
	stored, err := expr.Render(s.seq.Tokens(), types.FormStored, s.resolver)
	if err != nil {
		return Expression{}, err
	}
	return Expression{Stored: stored, Shown: s.shown}, nil
}

// Palette lists the operands a new composition may use: all factors for a
// rule, the current version of each rule family for a card, all cards for a
// product card.
func (s *Session) Palette() []PaletteEntry {
	var ids []int64
	switch s.layer {
	case types.LayerRule:
		for _, f := range s.snap.Factors() {
			ids = append(ids, int64(f.ID))
		}
	case types.LayerCard:
		for _, r := range expr.CurrentRules(s.snap.Rules()) {
			ids = append(ids, int64(r.ID))
		}
	case types.LayerProductCard:
		for _, c := range s.snap.Cards() {
			ids = append(ids, int64(c.ID))
		}
	}

	out := make([]PaletteEntry, 0, len(ids))
	for _, id := range ids {
		if text, ok := s.resolver.Display(id); ok {
			out = append(out, PaletteEntry{ID: id, Text: text})
		}
	}
	return out
}

// replace installs seq and re-renders the shown expression. When rendering
// fails the session keeps its previous sequence and the error is returned.
func (s *Session) replace(seq expr.Sequence) error {
	shown, err := expr.Render(seq.Tokens(), types.FormShown, s.resolver)
	if err != nil {
		s.logger.Error("render failed", "error", err)
		return err
	}
	s.seq = seq
	s.shown = shown
	return nil
}
