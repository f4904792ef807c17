// internal/session/session_test.go
package session

import (
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/solatis/cardwright/internal/catalog"
	"github.com/solatis/cardwright/internal/expr"
	"github.com/solatis/cardwright/internal/platform/logger"
	"github.com/solatis/cardwright/internal/types"
)

func testSnapshot(t *testing.T) (*catalog.Snapshot, *expr.Resolvers) {
	t.Helper()
	snap, err := catalog.NewSnapshot(catalog.Contents{
		Parameters: []types.Parameter{
			{ID: 1, Name: "Age", DataType: types.DataTypeNumeric},
			{ID: 2, Name: "Income", DataType: types.DataTypeNumeric},
		},
		Conditions: []types.Condition{{ID: 1, Name: ">"}},
		Factors: []types.Factor{
			{ID: 1, ParameterID: 1, ConditionID: 1, Value1: "18"},
			{ID: 2, ParameterID: 2, ConditionID: 1, Value1: "5000"},
			{ID: 3, ParameterID: 1, ConditionID: 1, Value1: "65"},
		},
		Rules: []types.Rule{
			{ID: 12, Name: "Adult", Version: 1, IsActive: true, StoredExpression: "1"},
			{ID: 13, Name: "Earner", Version: 1, IsActive: true, StoredExpression: "2"},
			{ID: 14, Name: "Adult", Version: 2, IsActive: true, StoredExpression: "3"},
		},
		Cards: []types.Card{{ID: 100, Name: "Prime", StoredExpression: "14 AND 13"}},
	})
	if err != nil {
		t.Fatalf("NewSnapshot() error = %v, want nil", err)
	}
	rs, err := expr.NewResolvers(snap)
	if err != nil {
		t.Fatalf("NewResolvers() error = %v, want nil", err)
	}
	return snap, rs
}

func TestSession_AppendRendersShown(t *testing.T) {
	snap, rs := testSnapshot(t)
	s := New(types.LayerCard, snap, rs)

	for _, tok := range []types.Token{types.Operand(14), types.And(), types.OpenParen(), types.Operand(13), types.CloseParen()} {
		if !s.Append(tok) {
			t.Fatalf("Append(%v) rejected", tok)
		}
	}

	if s.Shown() != "Adult AND ( Earner )" {
		t.Errorf("Shown() = %q, want %q", s.Shown(), "Adult AND ( Earner )")
	}
	if s.Stored() != "14 AND ( 13 )" {
		t.Errorf("Stored() = %q, want %q", s.Stored(), "14 AND ( 13 )")
	}
}

func TestSession_RejectsUnknownOperandAndIllegalToken(t *testing.T) {
	snap, rs := testSnapshot(t)
	s := New(types.LayerCard, snap, rs)

	if s.Append(types.Operand(99)) {
		t.Errorf("Append(unknown rule) accepted")
	}
	if s.Append(types.And()) {
		t.Errorf("Append(AND) on empty session accepted")
	}
	if len(s.Tokens()) != 0 || s.Shown() != "" {
		t.Errorf("rejected appends changed the session: %v %q", s.Tokens(), s.Shown())
	}
}

// forgetfulResolver answers Display for the first n calls only.
type forgetfulResolver struct {
	expr.Resolver
	n int
}

func (r *forgetfulResolver) Display(id int64) (string, bool) {
	if r.n <= 0 {
		return "", false
	}
	r.n--
	return r.Resolver.Display(id)
}

func TestSession_RenderFailureRejectsAppend(t *testing.T) {
	snap, rs := testSnapshot(t)
	s := New(types.LayerCard, snap, rs)
	s.resolver = &forgetfulResolver{Resolver: rs.Rules, n: 1}

	if s.Append(types.Operand(13)) {
		t.Errorf("Append() = true, want false when rendering fails")
	}
	if len(s.Tokens()) != 0 || s.Shown() != "" {
		t.Errorf("failed append changed the session: %v %q", s.Tokens(), s.Shown())
	}

	// Parsing resolves both operands, rendering then fails.
	s.resolver = &forgetfulResolver{Resolver: rs.Rules, n: 2}
	if err := s.Load("13 AND 14"); !errors.Is(err, types.ErrUnresolvedOperand) {
		t.Errorf("Load() error = %v, want ErrUnresolvedOperand", err)
	}
	if len(s.Tokens()) != 0 {
		t.Errorf("failed load changed the session: %v", s.Tokens())
	}
}

func TestSession_RemoveLastAndReset(t *testing.T) {
	snap, rs := testSnapshot(t)
	s := New(types.LayerCard, snap, rs)
	s.Append(types.Operand(14))
	s.Append(types.Or())

	s.RemoveLast()
	if s.Shown() != "Adult" || s.State() != expr.ExpectLogicalOp {
		t.Errorf("after RemoveLast: %q %v", s.Shown(), s.State())
	}
	s.Reset()
	if s.Shown() != "" || len(s.Tokens()) != 0 {
		t.Errorf("after Reset: %q %v", s.Shown(), s.Tokens())
	}
}

func TestSession_LoadStored(t *testing.T) {
	snap, rs := testSnapshot(t)
	s := New(types.LayerCard, snap, rs)

	if err := s.Load("12 or 13"); err != nil {
		t.Fatalf("Load() error = %v, want nil", err)
	}
	// Stored IDs are exact: rule 12 stays v1 even though v2 exists.
	if s.Stored() != "12 OR 13" {
		t.Errorf("Stored() = %q, want %q", s.Stored(), "12 OR 13")
	}
	if s.Shown() != "Adult OR Earner" {
		t.Errorf("Shown() = %q, want %q", s.Shown(), "Adult OR Earner")
	}
}

func TestSession_LoadShownResolvesCurrentVersion(t *testing.T) {
	snap, rs := testSnapshot(t)
	s := New(types.LayerCard, snap, rs)

	if err := s.LoadShown("Adult AND Earner"); err != nil {
		t.Fatalf("LoadShown() error = %v, want nil", err)
	}
	if s.Stored() != "14 AND 13" {
		t.Errorf("Stored() = %q, want %q", s.Stored(), "14 AND 13")
	}
}

func TestSession_LoadFailureLeavesSessionUnchanged(t *testing.T) {
	snap, rs := testSnapshot(t)
	s := New(types.LayerCard, snap, rs)
	s.Append(types.Operand(13))

	err := s.Load("13 AND 77")
	if !errors.Is(err, types.ErrUnresolvedOperand) {
		t.Fatalf("Load() error = %v, want ErrUnresolvedOperand", err)
	}
	if s.Stored() != "13" {
		t.Errorf("Stored() = %q, want %q", s.Stored(), "13")
	}

	if err := s.Load("13 AND"); err != nil {
		t.Fatalf("Load(incomplete) error = %v, want nil", err)
	}
	if err := s.Load(") 13"); !errors.Is(err, types.ErrGrammarViolation) {
		t.Errorf("Load() error = %v, want ErrGrammarViolation", err)
	}
	if s.Stored() != "13 AND" {
		t.Errorf("Stored() = %q, want %q", s.Stored(), "13 AND")
	}
}

func TestSession_LenientLoadLogsDrops(t *testing.T) {
	snap, rs := testSnapshot(t)
	core, logs := observer.New(zap.WarnLevel)
	s := New(types.LayerCard, snap, rs, WithLenientParse(true), WithLogger(logger.FromZap(zap.New(core))))

	if err := s.Load("13 AND 77"); err != nil {
		t.Fatalf("Load() error = %v, want nil", err)
	}
	if s.Stored() != "13 AND" {
		t.Errorf("Stored() = %q, want %q", s.Stored(), "13 AND")
	}
	if logs.FilterMessage("dropped unresolved operand").Len() != 1 {
		t.Errorf("drop warnings = %d, want 1", logs.FilterMessage("dropped unresolved operand").Len())
	}
}

func TestSession_Confirm(t *testing.T) {
	snap, rs := testSnapshot(t)
	s := New(types.LayerCard, snap, rs)

	if _, err := s.Confirm(); !errors.Is(err, types.ErrEmptyExpression) {
		t.Errorf("Confirm() on empty error = %v, want ErrEmptyExpression", err)
	}

	s.Append(types.Operand(14))
	s.Append(types.And())
	if _, err := s.Confirm(); !errors.Is(err, types.ErrGrammarViolation) {
		t.Errorf("Confirm() on trailing AND error = %v, want ErrGrammarViolation", err)
	}

	s.Append(types.Operand(13))
	got, err := s.Confirm()
	if err != nil {
		t.Fatalf("Confirm() error = %v, want nil", err)
	}
	if got.Stored != "14 AND 13" || got.Shown != "Adult AND Earner" {
		t.Errorf("Confirm() = %+v", got)
	}
}

func TestSession_ConfirmRuleRejectsDuplicateParameter(t *testing.T) {
	snap, rs := testSnapshot(t)
	s := New(types.LayerRule, snap, rs)

	if err := s.Load("1 OR 3"); err != nil {
		t.Fatalf("Load() error = %v, want nil", err)
	}
	if _, err := s.Confirm(); !errors.Is(err, types.ErrDuplicateParameter) {
		t.Errorf("Confirm() error = %v, want ErrDuplicateParameter", err)
	}
}

func TestSession_Palette(t *testing.T) {
	snap, rs := testSnapshot(t)

	got := New(types.LayerCard, snap, rs).Palette()
	want := []PaletteEntry{{ID: 14, Text: "Adult"}, {ID: 13, Text: "Earner"}}
	if len(got) != len(want) {
		t.Fatalf("Palette() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Palette()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestSession_IDIsUUIDv7(t *testing.T) {
	snap, rs := testSnapshot(t)
	s := New(types.LayerRule, snap, rs)

	if _, err := types.ParseSessionID(string(s.ID())); err != nil {
		t.Errorf("ParseSessionID() error = %v, want nil", err)
	}
	if types.SessionIDTime(s.ID()).IsZero() {
		t.Errorf("SessionIDTime() is zero")
	}
}
