// internal/rules/compile_test.go
package rules

import (
	"errors"
	"testing"

	"github.com/solatis/cardwright/internal/catalog"
	"github.com/solatis/cardwright/internal/expr"
	"github.com/solatis/cardwright/internal/types"
)

// Factors: 1 "Age > 18", 2 "Income >= 5000", 3 "Country IN [US, CA]",
// 4 "Member = true", 5 "Joined RANGE 2020-01-01..2020-12-31", 6 "Age RANGE 30..40".
func testContents() catalog.Contents {
	return catalog.Contents{
		Parameters: []types.Parameter{
			{ID: 1, Name: "Age", DataType: types.DataTypeNumeric, IsMandatory: true},
			{ID: 2, Name: "Income", DataType: types.DataTypeNumeric},
			{ID: 3, Name: "Country", DataType: types.DataTypeText},
			{ID: 4, Name: "Member", DataType: types.DataTypeBoolean},
			{ID: 5, Name: "Joined", DataType: types.DataTypeDate},
		},
		Conditions: []types.Condition{
			{ID: 1, Kind: types.ConditionGreaterThan, Name: "GreaterThan"},
			{ID: 2, Kind: types.ConditionGreaterThanOrEqual, Name: "GreaterThanOrEqual"},
			{ID: 3, Kind: types.ConditionInList, Name: "InList"},
			{ID: 4, Kind: types.ConditionEquals, Name: "Equals"},
			{ID: 5, Kind: types.ConditionRange, Name: "Range"},
		},
		Factors: []types.Factor{
			{ID: 1, ParameterID: 1, ConditionID: 1, Value1: "18"},
			{ID: 2, ParameterID: 2, ConditionID: 2, Value1: "5000"},
			{ID: 3, ParameterID: 3, ConditionID: 3, Value1: "US,CA"},
			{ID: 4, ParameterID: 4, ConditionID: 4, Value1: "true"},
			{ID: 5, ParameterID: 5, ConditionID: 5, Value1: "2020-01-01", Value2: "2020-12-31"},
			{ID: 6, ParameterID: 1, ConditionID: 5, Value1: "30", Value2: "40"},
		},
	}
}

// flatten expands factor-level tokens against contents.
func flatten(t *testing.T, c catalog.Contents, tokens []types.Token) expr.Flattened {
	t.Helper()
	snap, err := catalog.NewSnapshot(c)
	if err != nil {
		t.Fatalf("NewSnapshot() error = %v, want nil", err)
	}
	factors, err := expr.NewFactorResolver(snap)
	if err != nil {
		t.Fatalf("NewFactorResolver() error = %v, want nil", err)
	}
	flat, err := expr.NewExpander(snap, factors).Expand(types.LayerRule, tokens)
	if err != nil {
		t.Fatalf("Expand() error = %v, want nil", err)
	}
	return flat
}

func parseShown(t *testing.T, c catalog.Contents, shown string) expr.Flattened {
	t.Helper()
	snap, err := catalog.NewSnapshot(c)
	if err != nil {
		t.Fatalf("NewSnapshot() error = %v, want nil", err)
	}
	factors, err := expr.NewFactorResolver(snap)
	if err != nil {
		t.Fatalf("NewFactorResolver() error = %v, want nil", err)
	}
	tokens, err := expr.Parse(shown, types.FormShown, factors, expr.ParseOptions{})
	if err != nil {
		t.Fatalf("Parse(%q) error = %v, want nil", shown, err)
	}
	return flatten(t, c, tokens)
}

func TestCompile_SingleFactor(t *testing.T) {
	flat := parseShown(t, testContents(), "Age > 18")

	compiled, err := Compile(flat)
	if err != nil {
		t.Fatalf("Compile() error = %v, want nil", err)
	}
	if compiled.Root.Kind != NodeFactor {
		t.Fatalf("Root.Kind = %v, want NodeFactor", compiled.Root.Kind)
	}
	if compiled.Root.Factor.Target.Value != 18.0 {
		t.Errorf("Target.Value = %v, want 18", compiled.Root.Factor.Target.Value)
	}
	if compiled.Shown != "Age > 18" {
		t.Errorf("Shown = %q, want %q", compiled.Shown, "Age > 18")
	}
}

func TestCompile_AndBindsTighterThanOr(t *testing.T) {
	flat := parseShown(t, testContents(), "Age > 18 OR Income >= 5000 AND Member = true")

	compiled, err := Compile(flat)
	if err != nil {
		t.Fatalf("Compile() error = %v, want nil", err)
	}
	root := compiled.Root
	if root.Kind != NodeOr || len(root.Children) != 2 {
		t.Fatalf("Root = %v with %d children, want OR with 2", root.Kind, len(root.Children))
	}

	var and *Node
	for _, c := range root.Children {
		if c.Kind == NodeAnd {
			and = c
		}
	}
	if and == nil || len(and.Children) != 2 {
		t.Fatalf("OR children lack an AND of 2")
	}
}

func TestCompile_MergesNestedSameKind(t *testing.T) {
	flat := parseShown(t, testContents(), "Age > 18 AND ( Income >= 5000 AND ( Member = true ) )")

	compiled, err := Compile(flat)
	if err != nil {
		t.Fatalf("Compile() error = %v, want nil", err)
	}
	if compiled.Root.Kind != NodeAnd || len(compiled.Root.Children) != 3 {
		t.Errorf("Root = %v with %d children, want AND with 3", compiled.Root.Kind, len(compiled.Root.Children))
	}
}

func TestCompile_ChildrenOrderedByCost(t *testing.T) {
	// Text InList (expensive) written first, boolean Equals (cheap) last.
	flat := parseShown(t, testContents(), "Country IN [US, CA] AND Age > 18 AND Member = true")

	compiled, err := Compile(flat)
	if err != nil {
		t.Fatalf("Compile() error = %v, want nil", err)
	}
	children := compiled.Root.Children
	wantOrder := []types.FactorID{4, 1, 3}
	for i, id := range wantOrder {
		if children[i].Factor.FactorID != id {
			t.Errorf("children[%d] = factor %d, want %d", i, children[i].Factor.FactorID, id)
		}
	}
	for i := 1; i < len(children); i++ {
		if children[i-1].Cost > children[i].Cost {
			t.Errorf("children not ordered by cost: %d > %d", children[i-1].Cost, children[i].Cost)
		}
	}
}

func TestCompile_RejectsUncoercibleFactorValue(t *testing.T) {
	c := testContents()
	c.Factors = append(c.Factors, types.Factor{ID: 7, ParameterID: 2, ConditionID: 1, Value1: "lots"})

	flat := flatten(t, c, []types.Token{types.Operand(7)})
	_, err := Compile(flat)

	var ferr *types.InvalidFactorError
	if !errors.As(err, &ferr) {
		t.Fatalf("Compile() error = %v, want *InvalidFactorError", err)
	}
	if ferr.FactorID != 7 {
		t.Errorf("FactorID = %d, want 7", ferr.FactorID)
	}
}

func TestCompile_RejectsOrderingOnText(t *testing.T) {
	c := testContents()
	c.Factors = append(c.Factors, types.Factor{ID: 8, ParameterID: 3, ConditionID: 1, Value1: "M"})

	flat := flatten(t, c, []types.Token{types.Operand(8)})
	if _, err := Compile(flat); !errors.Is(err, types.ErrInvalidFactor) {
		t.Errorf("Compile() error = %v, want ErrInvalidFactor", err)
	}
}

func TestCompile_RejectsInvertedRange(t *testing.T) {
	c := testContents()
	c.Factors = append(c.Factors, types.Factor{ID: 9, ParameterID: 2, ConditionID: 5, Value1: "10", Value2: "1"})

	flat := flatten(t, c, []types.Token{types.Operand(9)})
	if _, err := Compile(flat); !errors.Is(err, types.ErrInvalidFactor) {
		t.Errorf("Compile() error = %v, want ErrInvalidFactor", err)
	}
}

func TestCompile_Empty(t *testing.T) {
	if _, err := Compile(expr.Flattened{}); !errors.Is(err, types.ErrEmptyExpression) {
		t.Errorf("Compile() error = %v, want ErrEmptyExpression", err)
	}
}
