// internal/rules/evaluate.go
package rules

import (
	"context"
	"fmt"

	"github.com/solatis/cardwright/internal/expr"
	"github.com/solatis/cardwright/internal/types"
)

/*
 * Expression evaluation.
 *
 * Evaluates a CompiledExpression against parameter bindings.
 *
 * Evaluation flow:
 *   1. OR nodes: short-circuit on the first passing child
 *   2. AND nodes: short-circuit on the first failing child (cost-ordered)
 *   3. Per factor: look up binding -> coerce by data type -> compare
 *
 * Policy handling:
 *   - Missing binding: factor fails, reported as "no value"
 *   - Coercion failure: factor fails, reported with the coercion error
 *   Neither is an evaluation error; callers that need every parameter bound
 *   check that before evaluating (validate.Service does).
 *
 * The verdict message names the first failing factor that decided the
 * outcome. For a failing OR node that is the failure of its first child.
 */

// Outcome is the result of evaluating one node.
type Outcome struct {
	Passed bool
	Failed *CompiledFactor // deciding failing factor, nil when passed
	Reason string
}

// Evaluate checks the expression against bindings.
func Evaluate(c *CompiledExpression, bindings types.Bindings) Outcome {
	return evaluateNode(c.Root, bindings)
}

func evaluateNode(n *Node, bindings types.Bindings) Outcome {
	switch n.Kind {
	case NodeFactor:
		return evaluateFactor(n.Factor, bindings)
	case NodeAnd:
		for _, c := range n.Children {
			if out := evaluateNode(c, bindings); !out.Passed {
				return out
			}
		}
		return Outcome{Passed: true}
	case NodeOr:
		var first Outcome
		for i, c := range n.Children {
			out := evaluateNode(c, bindings)
			if out.Passed {
				return out
			}
			if i == 0 {
				first = out
			}
		}
		return first
	default:
		return Outcome{Reason: "unknown node"}
	}
}

// evaluateFactor orchestrates: binding lookup -> coerce -> compare.
func evaluateFactor(f *CompiledFactor, bindings types.Bindings) Outcome {
	raw, ok := bindings[f.Parameter.ID]
	if !ok {
		return Outcome{Failed: f, Reason: fmt.Sprintf("%s: no value for %s", f.Display, f.Parameter.Name)}
	}
	value, err := Coerce(raw, f.Parameter.DataType)
	if err != nil {
		return Outcome{Failed: f, Reason: fmt.Sprintf("%s: %v", f.Display, err)}
	}
	if !Compare(f.Kind, value, f.Target) {
		return Outcome{Failed: f, Reason: fmt.Sprintf("%s: got %s", f.Display, raw)}
	}
	return Outcome{Passed: true}
}

// Evaluator validates flattened expressions in process. It satisfies
// validate.Validator.
type Evaluator struct{}

// NewEvaluator creates a local evaluator.
func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

// Validate compiles and evaluates flat against bindings.
func (e *Evaluator) Validate(ctx context.Context, flat expr.Flattened, bindings types.Bindings) (types.Verdict, error) {
	if err := ctx.Err(); err != nil {
		return types.Verdict{}, err
	}
	compiled, err := Compile(flat)
	if err != nil {
		return types.Verdict{}, err
	}
	out := Evaluate(compiled, bindings)
	if out.Passed {
		return types.Verdict{Passed: true, Message: "passed: " + compiled.Shown}, nil
	}
	return types.Verdict{Passed: false, Message: "failed: " + out.Reason}, nil
}
