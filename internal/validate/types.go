// Package validate turns exists-mode and form-mode validation requests into
// flattened expressions and delegates their evaluation to a Validator.
package validate

import (
	"context"
	"fmt"
	"strings"

	"github.com/solatis/cardwright/internal/expr"
	"github.com/solatis/cardwright/internal/types"
)

// Type selects which layer a request validates.
type Type int

const (
	TypeRule Type = iota + 1
	TypeCard
	TypeProductCard
)

func (t Type) String() string {
	switch t {
	case TypeRule:
		return "rule"
	case TypeCard:
		return "card"
	case TypeProductCard:
		return "product_card"
	default:
		return "unknown"
	}
}

// Layer returns the expression layer validated by t.
func (t Type) Layer() types.Layer {
	switch t {
	case TypeCard:
		return types.LayerCard
	case TypeProductCard:
		return types.LayerProductCard
	default:
		return types.LayerRule
	}
}

// ParseType accepts the type names plus the legacy ERule/ECard/PCard codes.
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rule", "erule":
		return TypeRule, nil
	case "card", "ecard":
		return TypeCard, nil
	case "product_card", "productcard", "pcard":
		return TypeProductCard, nil
	default:
		return 0, fmt.Errorf("unknown validation type %q", s)
	}
}

// Mode selects where the expression to validate comes from.
type Mode int

const (
	// ModeExists validates a persisted entity by ID.
	ModeExists Mode = iota + 1
	// ModeForm validates an unsaved token sequence.
	ModeForm
)

func (m Mode) String() string {
	switch m {
	case ModeExists:
		return "exists"
	case ModeForm:
		return "form"
	default:
		return "unknown"
	}
}

// ParseMode maps "exists" and "form" to Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "exists":
		return ModeExists, nil
	case "form":
		return ModeForm, nil
	default:
		return 0, fmt.Errorf("unknown validation mode %q", s)
	}
}

// Request is one validation call.
type Request struct {
	Type Type
	Mode Mode
	// ID of the persisted entity (ModeExists).
	ID int64
	// Tokens of the unsaved expression (ModeForm).
	Tokens   []types.Token
	Bindings types.Bindings
}

// Result is the validator's verdict plus the expression it judged.
type Result struct {
	Passed  bool
	Message string
	// Expression is the flattened shown expression sent to the validator.
	Expression string
}

// Validator evaluates a flattened expression under bindings.
// Implemented by rules.Evaluator (in process) and api.RemoteValidator.
type Validator interface {
	Validate(ctx context.Context, flat expr.Flattened, bindings types.Bindings) (types.Verdict, error)
}
