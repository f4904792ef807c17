// internal/expr/expand_test.go
package expr

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/solatis/cardwright/internal/catalog"
	"github.com/solatis/cardwright/internal/types"
)

func TestExpandCard_WrapsEachRule(t *testing.T) {
	e := testExpander(t)

	flat, err := e.ExpandCard(100)
	if err != nil {
		t.Fatalf("ExpandCard() error = %v, want nil", err)
	}
	if want := "(Age > 18) AND (Income > 5000)"; flat.Shown != want {
		t.Errorf("Shown = %q, want %q", flat.Shown, want)
	}
	if flat.Layer != types.LayerCard {
		t.Errorf("Layer = %v, want %v", flat.Layer, types.LayerCard)
	}
	if len(flat.Parameters) != 2 || flat.Parameters[0].ID != 1 || flat.Parameters[1].ID != 2 {
		t.Errorf("Parameters = %+v, want Age and Income", flat.Parameters)
	}
	if _, ok := flat.Factors[2]; !ok {
		t.Errorf("Factors missing factor 2")
	}
}

func TestExpandProductCard_SkipsWrapForEnclosedGroup(t *testing.T) {
	e := testExpander(t)

	flat, err := e.ExpandProductCard(200)
	if err != nil {
		t.Fatalf("ExpandProductCard() error = %v, want nil", err)
	}
	want := "((Age > 18) AND (Income > 5000)) OR ((Income > 5000) OR (Age > 18))"
	if flat.Shown != want {
		t.Errorf("Shown = %q, want %q", flat.Shown, want)
	}
	if _, err := FromTokens(flat.Tokens); err != nil {
		t.Errorf("expanded tokens are not grammatical: %v", err)
	}
}

func TestExpand_SameCardTwiceIsIdentical(t *testing.T) {
	e := testExpander(t)

	flat, err := e.Expand(types.LayerProductCard, toks(100, "&", 100))
	if err != nil {
		t.Fatalf("Expand() error = %v, want nil", err)
	}
	halves := strings.SplitN(flat.Shown, " AND ((", 2)
	if len(halves) != 2 {
		t.Fatalf("Shown = %q, want two card groups", flat.Shown)
	}
	if halves[0] != "(("+halves[1] {
		t.Errorf("card expansions differ: %q vs %q", halves[0], halves[1])
	}
}

func TestExpand_RuleLayerChecksFactors(t *testing.T) {
	e := testExpander(t)

	flat, err := e.Expand(types.LayerRule, toks(1, "&", 3))
	if err != nil {
		t.Fatalf("Expand() error = %v, want nil", err)
	}
	if flat.Shown != "Age > 18 AND Country IN [US, CA]" {
		t.Errorf("Shown = %q", flat.Shown)
	}

	_, err = e.Expand(types.LayerRule, toks(1, "&", 99))
	if !errors.Is(err, types.ErrUnresolvedOperand) {
		t.Errorf("Expand() error = %v, want ErrUnresolvedOperand", err)
	}
}

func TestExpand_InactiveRuleIsStale(t *testing.T) {
	e := testExpander(t)

	_, err := e.ExpandCard(102)

	var serr *types.StaleReferenceError
	if !errors.As(err, &serr) {
		t.Fatalf("ExpandCard() error = %v, want *StaleReferenceError", err)
	}
	if serr.CardID != 102 || serr.RuleID != 15 || serr.Reason != "inactive" {
		t.Errorf("StaleReferenceError = %+v, want card 102 rule 15 inactive", serr)
	}
}

func TestExpand_DeletedRuleIsStale(t *testing.T) {
	e := testExpander(t)

	_, err := e.Expand(types.LayerCard, toks(12, "|", 77))

	var serr *types.StaleReferenceError
	if !errors.As(err, &serr) {
		t.Fatalf("Expand() error = %v, want *StaleReferenceError", err)
	}
	if serr.CardID != 0 || serr.RuleID != 77 || serr.Reason != "deleted" {
		t.Errorf("StaleReferenceError = %+v, want rule 77 deleted", serr)
	}
}

func TestExpand_SupersededRuleByIDStillExpands(t *testing.T) {
	e := testExpander(t)

	// Rule 12 is Adult v1; v2 exists but stored IDs are exact.
	flat, err := e.Expand(types.LayerCard, toks(12))
	if err != nil {
		t.Fatalf("Expand() error = %v, want nil", err)
	}
	if flat.Shown != "(Age > 18)" {
		t.Errorf("Shown = %q, want %q", flat.Shown, "(Age > 18)")
	}
}

func TestExpand_MissingCard(t *testing.T) {
	e := testExpander(t)

	_, err := e.Expand(types.LayerProductCard, toks(100, "&", 555))
	if !errors.Is(err, types.ErrUnresolvedOperand) {
		t.Errorf("Expand() error = %v, want ErrUnresolvedOperand", err)
	}
	if _, err := e.ExpandCard(555); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("ExpandCard() error = %v, want ErrNotFound", err)
	}
}

func TestExpand_Empty(t *testing.T) {
	e := testExpander(t)

	if _, err := e.Expand(types.LayerCard, nil); !errors.Is(err, types.ErrEmptyExpression) {
		t.Errorf("Expand() error = %v, want ErrEmptyExpression", err)
	}
}

func TestExpand_TooLarge(t *testing.T) {
	c := testContents()
	var b strings.Builder
	b.WriteString("1")
	for i := 1; i < 256; i++ {
		b.WriteString(" OR 1")
	}
	c.Rules = append(c.Rules, types.Rule{ID: 50, Name: "Wide", Version: 1, IsActive: true, StoredExpression: b.String()})
	snap, err := catalog.NewSnapshot(c)
	if err != nil {
		t.Fatalf("NewSnapshot() error = %v, want nil", err)
	}
	e := NewExpander(snap, testResolvers(t, snap).Factors)

	var tokens []types.Token
	for i := 0; i < 20; i++ {
		if i > 0 {
			tokens = append(tokens, types.And())
		}
		tokens = append(tokens, types.Operand(50))
	}

	if _, err := e.Expand(types.LayerCard, tokens); !errors.Is(err, types.ErrExpansionTooLarge) {
		t.Errorf("Expand() error = %v, want ErrExpansionTooLarge", err)
	}
}

func TestExpander_ConcurrentUse(t *testing.T) {
	e := testExpander(t)

	var wg sync.WaitGroup
	results := make([]string, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			flat, err := e.ExpandProductCard(200)
			if err == nil {
				results[i] = flat.Shown
			}
		}(i)
	}
	wg.Wait()

	for i, r := range results {
		if r != results[0] || r == "" {
			t.Errorf("results[%d] = %q, want %q", i, r, results[0])
		}
	}
}

func TestEnclosed(t *testing.T) {
	tests := []struct {
		name   string
		tokens []types.Token
		want   bool
	}{
		{"single group", toks("(", 1, "|", 2, ")"), true},
		{"nested group", toks("(", "(", 1, ")", ")"), true},
		{"two groups", toks("(", 1, ")", "&", "(", 2, ")"), false},
		{"bare operand", toks(1), false},
		{"empty", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Enclosed(tt.tokens); got != tt.want {
				t.Errorf("Enclosed() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCheckRuleParameters(t *testing.T) {
	snap := testSnapshot(t)

	if err := CheckRuleParameters(snap, toks(1, "&", 2)); err != nil {
		t.Errorf("CheckRuleParameters() error = %v, want nil", err)
	}
	// Factors 1 and 4 both constrain Age.
	if err := CheckRuleParameters(snap, toks(1, "|", 4)); !errors.Is(err, types.ErrDuplicateParameter) {
		t.Errorf("CheckRuleParameters() error = %v, want ErrDuplicateParameter", err)
	}
}
