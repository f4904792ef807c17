// internal/expr/translate_test.go
package expr

import (
	"errors"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/solatis/cardwright/internal/types"
)

func namedResolver(t *testing.T, layer types.Layer, names map[int64]string) *NameResolver {
	t.Helper()
	entries := make([]entry, 0, len(names))
	for id, name := range names {
		entries = append(entries, entry{id: id, name: name})
	}
	return newNameResolver(layer, entries, nil)
}

func TestRender_ShownRoundTrip(t *testing.T) {
	r := namedResolver(t, types.LayerCard, map[int64]string{1: "R1", 2: "R2", 3: "R3"})
	tokens := toks(1, "&", "(", 2, "|", 3, ")")

	shown, err := Render(tokens, types.FormShown, r)
	if err != nil {
		t.Fatalf("Render() error = %v, want nil", err)
	}
	if shown != "R1 AND ( R2 OR R3 )" {
		t.Errorf("Render() = %q, want %q", shown, "R1 AND ( R2 OR R3 )")
	}

	parsed, err := Parse(shown, types.FormShown, r, ParseOptions{})
	if err != nil {
		t.Fatalf("Parse() error = %v, want nil", err)
	}
	if !types.EqualTokens(parsed, tokens) {
		t.Errorf("Parse(Render()) = %v, want %v", parsed, tokens)
	}
}

func TestRender_Stored(t *testing.T) {
	r := namedResolver(t, types.LayerCard, map[int64]string{12: "Adult", 13: "Earner"})

	stored, err := Render(toks(12, "&", 13), types.FormStored, r)
	if err != nil {
		t.Fatalf("Render() error = %v, want nil", err)
	}
	if stored != "12 AND 13" {
		t.Errorf("Render() = %q, want %q", stored, "12 AND 13")
	}
}

func TestRender_Empty(t *testing.T) {
	r := namedResolver(t, types.LayerCard, nil)

	for _, form := range []types.Form{types.FormStored, types.FormShown} {
		got, err := Render(nil, form, r)
		if err != nil || got != "" {
			t.Errorf("Render(nil, %v) = %q, %v; want \"\", nil", form, got, err)
		}
		parsed, err := Parse("   ", form, r, ParseOptions{})
		if err != nil || len(parsed) != 0 {
			t.Errorf("Parse(blank, %v) = %v, %v; want empty, nil", form, parsed, err)
		}
	}
}

func TestRenderCompact(t *testing.T) {
	snap := testSnapshot(t)
	rs := testResolvers(t, snap)

	got, err := RenderCompact(toks("(", 1, ")", "&", "(", 2, ")"), rs.Factors)
	if err != nil {
		t.Fatalf("RenderCompact() error = %v, want nil", err)
	}
	if want := "(Age > 18) AND (Income > 5000)"; got != want {
		t.Errorf("RenderCompact() = %q, want %q", got, want)
	}
}

func TestParse_MultiWordFactorNames(t *testing.T) {
	snap := testSnapshot(t)
	rs := testResolvers(t, snap)

	got, err := Parse("Age  >  18 and ( Country IN [US, CA] OR Status = gold )", types.FormShown, rs.Factors, ParseOptions{})
	if err != nil {
		t.Fatalf("Parse() error = %v, want nil", err)
	}
	want := toks(1, "&", "(", 3, "|", 5, ")")
	if !types.EqualTokens(got, want) {
		t.Errorf("Parse() = %v, want %v", got, want)
	}
}

func TestParse_StoredUnknownIDFails(t *testing.T) {
	r := namedResolver(t, types.LayerCard, map[int64]string{1: "R1"})

	_, err := Parse("1 AND 999", types.FormStored, r, ParseOptions{})

	var uerr *types.UnresolvedOperandError
	if !errors.As(err, &uerr) {
		t.Fatalf("Parse() error = %v, want *UnresolvedOperandError", err)
	}
	if uerr.Text != "999" || uerr.Layer != types.LayerCard {
		t.Errorf("UnresolvedOperandError = %+v, want text 999 layer card", uerr)
	}
}

func TestParse_StoredRejectsNonCanonicalIDs(t *testing.T) {
	r := namedResolver(t, types.LayerCard, map[int64]string{1: "R1"})

	for _, s := range []string{"01", "+1", "R1"} {
		if _, err := Parse(s, types.FormStored, r, ParseOptions{}); !errors.Is(err, types.ErrUnresolvedOperand) {
			t.Errorf("Parse(%q) error = %v, want ErrUnresolvedOperand", s, err)
		}
	}
}

func TestParse_LenientDropsUnresolved(t *testing.T) {
	r := namedResolver(t, types.LayerCard, map[int64]string{1: "R1", 2: "R2"})

	var dropped []string
	got, err := Parse("R1 AND Ghost OR R2", types.FormShown, r, ParseOptions{
		Lenient: true,
		OnDrop:  func(text string) { dropped = append(dropped, text) },
	})
	if err != nil {
		t.Fatalf("Parse() error = %v, want nil", err)
	}
	if len(dropped) != 1 || dropped[0] != "Ghost" {
		t.Errorf("dropped = %v, want [Ghost]", dropped)
	}
	// The OR following the dropped operand is rejected by the replay.
	want := toks(1, "&", 2)
	if !types.EqualTokens(got, want) {
		t.Errorf("Parse() = %v, want %v", got, want)
	}
}

func TestParse_GrammarViolation(t *testing.T) {
	r := namedResolver(t, types.LayerCard, map[int64]string{1: "R1", 2: "R2"})

	tests := []string{"R1 AND AND R2", ") R1", "R1 ( R2 )", "( )"}
	for _, s := range tests {
		if _, err := Parse(s, types.FormShown, r, ParseOptions{}); !errors.Is(err, types.ErrGrammarViolation) {
			t.Errorf("Parse(%q) error = %v, want ErrGrammarViolation", s, err)
		}
	}
}

func TestNewNameResolver_AmbiguousNamesAreDisplayOnly(t *testing.T) {
	tests := []struct {
		name  string
		shown string
	}{
		{"Rock and Roll", "Rock and Roll"},
		{"Either Or", "Either Or OR R2"},
		{"Left ( Right", "R2 AND Left ( Right"},
		{"42", "42"},
	}

	for _, tt := range tests {
		r := namedResolver(t, types.LayerProductCard, map[int64]string{1: tt.name, 2: "R2"})

		if got, ok := r.Display(1); !ok || got != NormalizeName(tt.name) {
			t.Errorf("Display(1) = %q, %v; want %q, true", got, ok, NormalizeName(tt.name))
		}
		if _, ok := r.Lookup(tt.name); ok {
			t.Errorf("Lookup(%q) found an id, want no match", tt.name)
		}
		if stored, err := Render(toks(1), types.FormStored, r); err != nil || stored != "1" {
			t.Errorf("Render(stored) = %q, %v; want \"1\", nil", stored, err)
		}
		if _, err := Parse("1", types.FormStored, r, ParseOptions{}); err != nil {
			t.Errorf("Parse(\"1\", stored) error = %v, want nil", err)
		}

		_, err := Parse(tt.shown, types.FormShown, r, ParseOptions{})
		if !errors.Is(err, types.ErrAmbiguousOperand) {
			t.Errorf("Parse(%q) error = %v, want ErrAmbiguousOperand", tt.shown, err)
		} else if !strings.Contains(err.Error(), "card 1") {
			t.Errorf("Parse(%q) error = %v, want it to name card 1", tt.shown, err)
		}

		// Other entries still parse by name.
		if got, err := Parse("R2", types.FormShown, r, ParseOptions{}); err != nil || !types.EqualTokens(got, toks(2)) {
			t.Errorf("Parse(\"R2\") = %v, %v; want [2], nil", got, err)
		}
	}
}

func TestNewNameResolver_BlankNameIsNotAmbiguous(t *testing.T) {
	r := namedResolver(t, types.LayerCard, map[int64]string{1: "   ", 2: "R2"})

	_, err := Parse("Ghost", types.FormShown, r, ParseOptions{})
	if !errors.Is(err, types.ErrUnresolvedOperand) {
		t.Errorf("Parse(\"Ghost\") error = %v, want ErrUnresolvedOperand", err)
	}
}

func TestNewFactorResolver_AmbiguousFactorNamesTheFactor(t *testing.T) {
	r := newNameResolver(types.LayerRule, []entry{{id: 8, name: "Country = Trinidad and Tobago"}}, nil)
	_, err := Parse("Country = Trinidad and Tobago", types.FormShown, r, ParseOptions{})
	if !errors.Is(err, types.ErrAmbiguousOperand) {
		t.Fatalf("Parse() error = %v, want ErrAmbiguousOperand", err)
	}
	if !strings.Contains(err.Error(), "factor 8") {
		t.Errorf("Parse() error = %v, want it to name factor 8", err)
	}
}

func TestNewNameResolver_DuplicateResolvesToLowestID(t *testing.T) {
	r := namedResolver(t, types.LayerProductCard, map[int64]string{9: "Same", 4: "Same", 7: "Same"})

	id, ok := r.Lookup("same")
	if ok {
		t.Errorf("Lookup() is case-sensitive, got id %d for lower-case text", id)
	}
	id, ok = r.Lookup(" Same ")
	if !ok || id != 4 {
		t.Errorf("Lookup() = %d, %v; want 4, true", id, ok)
	}
}

func TestFactorDisplay(t *testing.T) {
	snap := testSnapshot(t)

	tests := []struct {
		id   types.FactorID
		want string
	}{
		{1, "Age > 18"},
		{3, "Country IN [US, CA]"},
		{4, "Age RANGE 18..65"},
		{5, "Status = gold"},
	}
	for _, tt := range tests {
		ref, ok := snap.FactorRef(tt.id)
		if !ok {
			t.Fatalf("FactorRef(%d) not found", tt.id)
		}
		if got := FactorDisplay(ref); got != tt.want {
			t.Errorf("FactorDisplay(%d) = %q, want %q", tt.id, got, tt.want)
		}
	}
}

// Property-based test: Parse(Render(T)) == T in both forms
func TestTranslate_PropertyRoundTrip(t *testing.T) {
	snap := testSnapshot(t)
	rs := testResolvers(t, snap)

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("render then parse returns the same tokens", prop.ForAll(
		func(cmds []int, shown bool) bool {
			// Operand IDs 1..7 from commandsToSequence; fold into factor IDs 1..5.
			raw := commandsToSequence(cmds).Tokens()
			for i := range raw {
				if raw[i].Kind == types.TokenOperand {
					raw[i].ID = (raw[i].ID-1)%5 + 1
				}
			}
			form := types.FormStored
			if shown {
				form = types.FormShown
			}
			text, err := Render(raw, form, rs.Factors)
			if err != nil {
				return false
			}
			parsed, err := Parse(text, form, rs.Factors, ParseOptions{})
			if err != nil {
				return false
			}
			return types.EqualTokens(parsed, raw)
		},
		gen.SliceOf(gen.IntRange(0, 5)),
		gen.Bool(),
	))

	properties.TestingRun(t)
}
