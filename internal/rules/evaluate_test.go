// internal/rules/evaluate_test.go
package rules

import (
	"context"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/solatis/cardwright/internal/types"
)

func compileShown(t *testing.T, shown string) *CompiledExpression {
	t.Helper()
	compiled, err := Compile(parseShown(t, testContents(), shown))
	if err != nil {
		t.Fatalf("Compile() error = %v, want nil", err)
	}
	return compiled
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name     string
		shown    string
		bindings types.Bindings
		want     bool
	}{
		{"single factor pass", "Age > 18", types.Bindings{1: "42"}, true},
		{"single factor fail", "Age > 18", types.Bindings{1: "16"}, false},
		{"and both pass", "Age > 18 AND Income >= 5000", types.Bindings{1: "42", 2: "5000"}, true},
		{"and one fails", "Age > 18 AND Income >= 5000", types.Bindings{1: "42", 2: "4999.99"}, false},
		{"or one passes", "Age > 18 OR Member = true", types.Bindings{1: "12", 4: "yes"}, true},
		{"or none pass", "Age > 18 OR Member = true", types.Bindings{1: "12", 4: "false"}, false},
		{"precedence: a OR b AND c", "Member = true OR Age > 18 AND Income >= 5000", types.Bindings{1: "42", 2: "0", 4: "true"}, true},
		{"parens override precedence", "( Member = true OR Age > 18 ) AND Income >= 5000", types.Bindings{1: "42", 2: "0", 4: "true"}, false},
		{"in list", "Country IN [US, CA]", types.Bindings{3: "CA"}, true},
		{"date range", "Joined RANGE 2020-01-01..2020-12-31", types.Bindings{5: "2020-12-31"}, true},
		{"date range outside", "Joined RANGE 2020-01-01..2020-12-31", types.Bindings{5: "2021-01-01"}, false},
		{"missing binding fails factor", "Age > 18 OR Member = true", types.Bindings{4: "true"}, true},
		{"coercion failure fails factor", "Age > 18", types.Bindings{1: "old"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Evaluate(compileShown(t, tt.shown), tt.bindings)
			if out.Passed != tt.want {
				t.Errorf("Passed = %v, want %v (reason %q)", out.Passed, tt.want, out.Reason)
			}
			if !out.Passed && out.Failed == nil {
				t.Errorf("failed outcome does not name a factor")
			}
		})
	}
}

func TestEvaluate_ReportsFirstFailingFactor(t *testing.T) {
	out := Evaluate(compileShown(t, "Age > 18 AND Income >= 5000"), types.Bindings{1: "42", 2: "10"})

	if out.Failed == nil || out.Failed.FactorID != 2 {
		t.Fatalf("Failed = %+v, want factor 2", out.Failed)
	}
	if out.Reason != "Income >= 5000: got 10" {
		t.Errorf("Reason = %q, want %q", out.Reason, "Income >= 5000: got 10")
	}
}

func TestEvaluate_CoercionFailureInMessage(t *testing.T) {
	out := Evaluate(compileShown(t, "Age > 18"), types.Bindings{1: "old"})

	if !strings.Contains(out.Reason, "not numeric") {
		t.Errorf("Reason = %q, want coercion failure", out.Reason)
	}
}

func TestEvaluator_Validate(t *testing.T) {
	flat := parseShown(t, testContents(), "( Age > 18 ) AND ( Income >= 5000 )")
	e := NewEvaluator()

	verdict, err := e.Validate(context.Background(), flat, types.Bindings{1: "30", 2: "6000"})
	if err != nil {
		t.Fatalf("Validate() error = %v, want nil", err)
	}
	if !verdict.Passed {
		t.Errorf("Passed = false, want true (%s)", verdict.Message)
	}

	verdict, err = e.Validate(context.Background(), flat, types.Bindings{1: "30", 2: "100"})
	if err != nil {
		t.Fatalf("Validate() error = %v, want nil", err)
	}
	if verdict.Passed || !strings.HasPrefix(verdict.Message, "failed: Income >= 5000") {
		t.Errorf("Verdict = %+v, want failure naming Income", verdict)
	}
}

func TestEvaluator_ValidateCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	flat := parseShown(t, testContents(), "Age > 18")
	if _, err := NewEvaluator().Validate(ctx, flat, types.Bindings{1: "30"}); err == nil {
		t.Errorf("Validate() error = nil, want context error")
	}
}

// Property-based test: Range agrees with the two ordering conditions
func TestEvaluate_PropertyRangeInclusive(t *testing.T) {
	compiled := compileShown(t, "Age RANGE 30..40")

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("range passes exactly for 30 <= age <= 40", prop.ForAll(
		func(age int) bool {
			out := Evaluate(compiled, types.Bindings{1: types.FormatEntityID(int64(age))})
			return out.Passed == (age >= 30 && age <= 40)
		},
		gen.IntRange(0, 80),
	))

	properties.TestingRun(t)
}

// Property-based test: evaluation is deterministic
func TestEvaluate_PropertyDeterministic(t *testing.T) {
	compiled := compileShown(t, "Age > 18 OR Income >= 5000 AND Member = true")

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("same bindings give the same outcome", prop.ForAll(
		func(age, income int, member bool) bool {
			b := types.Bindings{
				1: types.FormatEntityID(int64(age)),
				2: types.FormatEntityID(int64(income)),
				4: map[bool]string{true: "true", false: "false"}[member],
			}
			a, c := Evaluate(compiled, b), Evaluate(compiled, b)
			return a.Passed == c.Passed && a.Reason == c.Reason
		},
		gen.IntRange(0, 100),
		gen.IntRange(0, 10000),
		gen.Bool(),
	))

	properties.TestingRun(t)
}
