// internal/expr/fixture_test.go
package expr

import (
	"testing"

	"github.com/solatis/cardwright/internal/catalog"
	"github.com/solatis/cardwright/internal/types"
)

// Shared catalog for the expr tests.
//
//	factors: 1 "Age > 18", 2 "Income > 5000", 3 "Country IN [US, CA]",
//	         4 "Age RANGE 18..65", 5 "Status = gold"
//	rules:   12 Adult v1, 13 Earner v1, 14 Adult v2, 15 Retired v1 (inactive)
//	cards:   100 Prime "12 AND 13", 101 Either "( 13 OR 12 )", 102 Dormant "15"
//	product: 200 Gold "100 OR 101"
func testContents() catalog.Contents {
	return catalog.Contents{
		Parameters: []types.Parameter{
			{ID: 1, Name: "Age", DataType: types.DataTypeNumeric, IsMandatory: true},
			{ID: 2, Name: "Income", DataType: types.DataTypeNumeric},
			{ID: 3, Name: "Country", DataType: types.DataTypeText},
			{ID: 4, Name: "Status", DataType: types.DataTypeText},
		},
		Conditions: []types.Condition{
			{ID: 1, Name: ">"},
			{ID: 2, Name: "Equals"},
			{ID: 3, Name: "In List"},
			{ID: 4, Name: "Range"},
		},
		Factors: []types.Factor{
			{ID: 1, ParameterID: 1, ConditionID: 1, Value1: "18"},
			{ID: 2, ParameterID: 2, ConditionID: 1, Value1: "5000"},
			{ID: 3, ParameterID: 3, ConditionID: 3, Value1: "US, CA"},
			{ID: 4, ParameterID: 1, ConditionID: 4, Value1: "18", Value2: "65"},
			{ID: 5, ParameterID: 4, ConditionID: 2, Value1: "gold"},
		},
		Rules: []types.Rule{
			{ID: 12, Name: "Adult", Version: 1, IsActive: true, StoredExpression: "1"},
			{ID: 13, Name: "Earner", Version: 1, IsActive: true, StoredExpression: "2"},
			{ID: 14, Name: "Adult", Version: 2, IsActive: true, StoredExpression: "4 AND 3"},
			{ID: 15, Name: "Retired", Version: 1, IsActive: false, StoredExpression: "5"},
		},
		Cards: []types.Card{
			{ID: 100, Name: "Prime", StoredExpression: "12 AND 13"},
			{ID: 101, Name: "Either", StoredExpression: "( 13 OR 12 )"},
			{ID: 102, Name: "Dormant", StoredExpression: "15"},
		},
		ProductCards: []types.ProductCard{
			{ID: 200, Name: "Gold", ProductID: 7, StoredExpression: "100 OR 101"},
		},
	}
}

func testSnapshot(t *testing.T) *catalog.Snapshot {
	t.Helper()
	snap, err := catalog.NewSnapshot(testContents())
	if err != nil {
		t.Fatalf("NewSnapshot() error = %v, want nil", err)
	}
	return snap
}

func testResolvers(t *testing.T, snap *catalog.Snapshot) *Resolvers {
	t.Helper()
	rs, err := NewResolvers(snap)
	if err != nil {
		t.Fatalf("NewResolvers() error = %v, want nil", err)
	}
	return rs
}

func testExpander(t *testing.T) *Expander {
	t.Helper()
	snap := testSnapshot(t)
	return NewExpander(snap, testResolvers(t, snap).Factors)
}

// toks builds a token slice from a compact notation: "(", ")", "&", "|" or an
// operand ID.
func toks(items ...any) []types.Token {
	out := make([]types.Token, 0, len(items))
	for _, it := range items {
		switch v := it.(type) {
		case int:
			out = append(out, types.Operand(int64(v)))
		case string:
			switch v {
			case "(":
				out = append(out, types.OpenParen())
			case ")":
				out = append(out, types.CloseParen())
			case "&":
				out = append(out, types.And())
			case "|":
				out = append(out, types.Or())
			}
		}
	}
	return out
}
