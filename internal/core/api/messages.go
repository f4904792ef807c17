package api

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/solatis/cardwright/internal/expr"
	"github.com/solatis/cardwright/internal/types"
	"github.com/solatis/cardwright/internal/validate"
)

// Token kinds on the wire.
const (
	TokenKindOperand = "operand"
	TokenKindAnd     = "and"
	TokenKindOr      = "or"
	TokenKindOpen    = "open"
	TokenKindClose   = "close"
)

// Token is one element of a token sequence.
type Token struct {
	Kind string `json:"kind"`
	ID   int64  `json:"id,omitempty"`
}

// Timestamp carries a protobuf timestamp as an RFC 3339 string.
type Timestamp struct {
	*timestamppb.Timestamp
}

// Now returns the current time as a Timestamp.
func Now() Timestamp { return Timestamp{timestamppb.Now()} }

// Time converts to time.Time; zero for an unset timestamp.
func (t Timestamp) Time() time.Time {
	if t.Timestamp == nil {
		return time.Time{}
	}
	return t.AsTime()
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.Timestamp == nil {
		return []byte("null"), nil
	}
	return protojson.Marshal(t.Timestamp)
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		t.Timestamp = nil
		return nil
	}
	t.Timestamp = &timestamppb.Timestamp{}
	return protojson.Unmarshal(b, t.Timestamp)
}

// RenderRequest renders a token sequence of a layer in a form.
type RenderRequest struct {
	Layer  string  `json:"layer"`
	Form   string  `json:"form"`
	Tokens []Token `json:"tokens"`
}

type RenderResponse struct {
	Text string `json:"text"`
}

// ParseRequest parses stored or shown text of a layer.
type ParseRequest struct {
	Layer string `json:"layer"`
	Form  string `json:"form"`
	Text  string `json:"text"`
	// Lenient drops unresolved operands instead of failing.
	Lenient bool `json:"lenient,omitempty"`
}

type ParseResponse struct {
	Tokens   []Token  `json:"tokens"`
	Stored   string   `json:"stored"`
	Shown    string   `json:"shown"`
	State    string   `json:"state"`
	Complete bool     `json:"complete"`
	Dropped  []string `json:"dropped,omitempty"`
}

// PaletteRequest lists the operands available to new compositions of a layer.
type PaletteRequest struct {
	Layer string `json:"layer"`
}

type PaletteEntry struct {
	ID   int64  `json:"id"`
	Text string `json:"text"`
}

type PaletteResponse struct {
	Entries []PaletteEntry `json:"entries"`
}

// ExpandRequest flattens a persisted entity (ID set) or an in-progress
// sequence of the type's layer (Tokens set).
type ExpandRequest struct {
	Type   string  `json:"type"`
	ID     int64   `json:"id,omitempty"`
	Tokens []Token `json:"tokens,omitempty"`
}

type ParameterInfo struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	DataType  string `json:"data_type"`
	Mandatory bool   `json:"mandatory,omitempty"`
}

type ExpandResponse struct {
	Shown      string          `json:"shown"`
	Tokens     []Token         `json:"tokens"`
	Parameters []ParameterInfo `json:"parameters"`
}

// ValidateRequest validates an entity or sequence against a JSON payload
// keyed by parameter name.
type ValidateRequest struct {
	Type    string          `json:"type"`
	Mode    string          `json:"mode,omitempty"`
	ID      int64           `json:"id,omitempty"`
	Tokens  []Token         `json:"tokens,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

type ValidateResponse struct {
	Passed      bool      `json:"passed"`
	Message     string    `json:"message"`
	Expression  string    `json:"expression"`
	EvaluatedAt Timestamp `json:"evaluated_at"`
}

type SaveRuleRequest struct {
	Name        string `json:"name"`
	Stored      string `json:"stored"`
	BaseVersion int    `json:"base_version"`
}

type SaveRuleResponse struct {
	ID      int64     `json:"id"`
	Name    string    `json:"name"`
	Version int       `json:"version"`
	Stored  string    `json:"stored"`
	Shown   string    `json:"shown"`
	SavedAt Timestamp `json:"saved_at"`
}

type SaveCardRequest struct {
	ID     int64  `json:"id,omitempty"`
	Name   string `json:"name"`
	Stored string `json:"stored"`
}

type SaveCardResponse struct {
	ID      int64     `json:"id"`
	Name    string    `json:"name"`
	Stored  string    `json:"stored"`
	Shown   string    `json:"shown"`
	SavedAt Timestamp `json:"saved_at"`
}

type SaveProductCardRequest struct {
	ID        int64  `json:"id,omitempty"`
	Name      string `json:"name"`
	ProductID int64  `json:"product_id"`
	Stored    string `json:"stored"`
}

type SaveProductCardResponse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	ProductID int64     `json:"product_id"`
	Stored    string    `json:"stored"`
	Shown     string    `json:"shown"`
	SavedAt   Timestamp `json:"saved_at"`
}

// FactorInfo is one factor of a flattened expression with its parameter
// and condition inlined, so a remote validator needs no catalog access.
type FactorInfo struct {
	ID        int64         `json:"id"`
	Parameter ParameterInfo `json:"parameter"`
	Condition string        `json:"condition"`
	Value1    string        `json:"value1"`
	Value2    string        `json:"value2,omitempty"`
}

// Binding is the value bound to one parameter.
type Binding struct {
	ParameterID int64  `json:"parameter_id"`
	Value       string `json:"value"`
}

// ValidatorRequest is the input of the remote validator service.
type ValidatorRequest struct {
	Layer      string          `json:"layer"`
	Expression string          `json:"expression"`
	Tokens     []Token         `json:"tokens"`
	Factors    []FactorInfo    `json:"factors"`
	Parameters []ParameterInfo `json:"parameters"`
	Bindings   []Binding       `json:"bindings"`
}

type ValidatorResponse struct {
	Passed  bool   `json:"passed"`
	Message string `json:"message"`
}

// TokensToWire converts tokens for transport.
func TokensToWire(tokens []types.Token) []Token {
	out := make([]Token, 0, len(tokens))
	for _, tok := range tokens {
		switch tok.Kind {
		case types.TokenOpenParen:
			out = append(out, Token{Kind: TokenKindOpen})
		case types.TokenCloseParen:
			out = append(out, Token{Kind: TokenKindClose})
		case types.TokenLogicalOp:
			if tok.Op == types.OpAnd {
				out = append(out, Token{Kind: TokenKindAnd})
			} else {
				out = append(out, Token{Kind: TokenKindOr})
			}
		default:
			out = append(out, Token{Kind: TokenKindOperand, ID: tok.ID})
		}
	}
	return out
}

// TokensFromWire converts transported tokens, rejecting unknown kinds.
func TokensFromWire(in []Token) ([]types.Token, error) {
	out := make([]types.Token, 0, len(in))
	for i, t := range in {
		switch strings.ToLower(t.Kind) {
		case TokenKindOperand:
			if t.ID <= 0 {
				return nil, fmt.Errorf("%w: token %d: operand id must be positive", errBadRequest, i)
			}
			out = append(out, types.Operand(t.ID))
		case TokenKindAnd:
			out = append(out, types.And())
		case TokenKindOr:
			out = append(out, types.Or())
		case TokenKindOpen, "(":
			out = append(out, types.OpenParen())
		case TokenKindClose, ")":
			out = append(out, types.CloseParen())
		default:
			return nil, fmt.Errorf("%w: token %d: unknown kind %q", errBadRequest, i, t.Kind)
		}
	}
	return out, nil
}

func parameterInfo(p types.Parameter) ParameterInfo {
	return ParameterInfo{ID: int64(p.ID), Name: p.Name, DataType: p.DataType.String(), Mandatory: p.IsMandatory}
}

func parameterFromInfo(p ParameterInfo) types.Parameter {
	return types.Parameter{
		ID:          types.ParameterID(p.ID),
		Name:        p.Name,
		DataType:    types.ParseDataType(p.DataType),
		IsMandatory: p.Mandatory,
	}
}

// validatorRequest packs a flattened expression and its bindings.
func validatorRequest(flat expr.Flattened, bindings types.Bindings) *ValidatorRequest {
	req := &ValidatorRequest{
		Layer:      flat.Layer.String(),
		Expression: flat.Shown,
		Tokens:     TokensToWire(flat.Tokens),
	}
	for _, p := range flat.Parameters {
		req.Parameters = append(req.Parameters, parameterInfo(p))
		if v, ok := bindings[p.ID]; ok {
			req.Bindings = append(req.Bindings, Binding{ParameterID: int64(p.ID), Value: v})
		}
	}
	for _, tok := range flat.Tokens {
		if tok.Kind != types.TokenOperand {
			continue
		}
		ref := flat.Factors[types.FactorID(tok.ID)]
		if containsFactor(req.Factors, tok.ID) {
			continue
		}
		req.Factors = append(req.Factors, FactorInfo{
			ID:        tok.ID,
			Parameter: parameterInfo(ref.Parameter),
			Condition: ref.Condition.Kind.String(),
			Value1:    ref.Factor.Value1,
			Value2:    ref.Factor.Value2,
		})
	}
	return req
}

func containsFactor(factors []FactorInfo, id int64) bool {
	for _, f := range factors {
		if f.ID == id {
			return true
		}
	}
	return false
}

// flattenedFromRequest rebuilds the validator input on the serving side.
func flattenedFromRequest(req *ValidatorRequest) (expr.Flattened, types.Bindings, error) {
	tokens, err := TokensFromWire(req.Tokens)
	if err != nil {
		return expr.Flattened{}, nil, err
	}

	factors := make(map[types.FactorID]types.FactorRef, len(req.Factors))
	for _, f := range req.Factors {
		kind := types.ParseConditionKind(f.Condition)
		if kind == types.ConditionUnspecified {
			return expr.Flattened{}, nil, fmt.Errorf("%w: factor %d: unknown condition %q", errBadRequest, f.ID, f.Condition)
		}
		param := parameterFromInfo(f.Parameter)
		factors[types.FactorID(f.ID)] = types.FactorRef{
			Factor: types.Factor{
				ID:          types.FactorID(f.ID),
				ParameterID: param.ID,
				Value1:      f.Value1,
				Value2:      f.Value2,
			},
			Parameter: param,
			Condition: types.Condition{Name: kind.String(), Kind: kind},
		}
	}
	for _, tok := range tokens {
		if tok.Kind != types.TokenOperand {
			continue
		}
		if _, ok := factors[types.FactorID(tok.ID)]; !ok {
			return expr.Flattened{}, nil, &types.UnresolvedOperandError{Layer: types.LayerRule, Text: types.FormatEntityID(tok.ID)}
		}
	}

	params := make([]types.Parameter, 0, len(req.Parameters))
	for _, p := range req.Parameters {
		params = append(params, parameterFromInfo(p))
	}
	bindings := make(types.Bindings, len(req.Bindings))
	for _, b := range req.Bindings {
		bindings[types.ParameterID(b.ParameterID)] = b.Value
	}

	layer := types.LayerRule
	if typ, err := validate.ParseType(req.Layer); err == nil {
		layer = typ.Layer()
	}

	return expr.Flattened{
		Layer:      layer,
		Tokens:     tokens,
		Shown:      req.Expression,
		Factors:    factors,
		Parameters: params,
	}, bindings, nil
}
