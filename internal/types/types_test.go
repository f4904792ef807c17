package types

import (
	"errors"
	"testing"
	"time"
)

func TestParseEntityID(t *testing.T) {
	tests := []struct {
		in     string
		want   int64
		wantOK bool
	}{
		{"1", 1, true},
		{"42", 42, true},
		{"9223372036854775807", 9223372036854775807, true},
		{"", 0, false},
		{"0", 0, false},
		{"007", 0, false},
		{"+5", 0, false},
		{"-5", 0, false},
		{"12a", 0, false},
		{"9223372036854775808", 0, false},
	}

	for _, tt := range tests {
		got, ok := ParseEntityID(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("ParseEntityID(%q) = (%d, %v), want (%d, %v)", tt.in, got, ok, tt.want, tt.wantOK)
		}
		if ok && FormatEntityID(got) != tt.in {
			t.Errorf("FormatEntityID(%d) = %q, want %q", got, FormatEntityID(got), tt.in)
		}
	}
}

func TestSessionID(t *testing.T) {
	before := time.Now().Add(-time.Second)
	id := NewSessionID()

	if _, err := ParseSessionID(string(id)); err != nil {
		t.Fatalf("ParseSessionID(%q) error = %v, want nil", id, err)
	}
	if ts := SessionIDTime(id); ts.Before(before) {
		t.Errorf("SessionIDTime() = %v, want after %v", ts, before)
	}
	if _, err := ParseSessionID("not-a-uuid"); err == nil {
		t.Error("ParseSessionID(invalid) error = nil, want error")
	}
	if !SessionIDTime("bogus").IsZero() {
		t.Error("SessionIDTime(invalid) not zero")
	}
}

func TestParseConditionKind(t *testing.T) {
	tests := map[string]ConditionKind{
		"GreaterThan":      ConditionGreaterThan,
		"greater than":     ConditionGreaterThan,
		">":                ConditionGreaterThan,
		"==":               ConditionEquals,
		"Not_In_List":      ConditionNotInList,
		"Range":            ConditionRange,
		"somethingunknown": ConditionUnspecified,
	}
	for in, want := range tests {
		if got := ParseConditionKind(in); got != want {
			t.Errorf("ParseConditionKind(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestFactorValidate(t *testing.T) {
	tests := []struct {
		name    string
		factor  Factor
		kind    ConditionKind
		wantErr bool
	}{
		{"simple", Factor{Value1: "18"}, ConditionGreaterThan, false},
		{"empty value", Factor{Value1: "  "}, ConditionEquals, true},
		{"range", Factor{Value1: "1", Value2: "9"}, ConditionRange, false},
		{"range without upper", Factor{Value1: "1"}, ConditionRange, true},
		{"value2 outside range", Factor{Value1: "1", Value2: "2"}, ConditionEquals, true},
		{"list", Factor{Value1: "a, b ,c"}, ConditionInList, false},
		{"unknown condition", Factor{Value1: "1"}, ConditionUnspecified, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.factor.Validate(tt.kind)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidFactor) {
				t.Errorf("Validate() error = %v, want ErrInvalidFactor", err)
			}
		})
	}
}

func TestTypedErrorsUnwrap(t *testing.T) {
	tests := []struct {
		err  error
		want error
	}{
		{&UnresolvedOperandError{Layer: LayerCard, Text: "Ghost"}, ErrUnresolvedOperand},
		{&StaleReferenceError{CardID: 1, RuleID: 2, Reason: "inactive"}, ErrStaleVersionReference},
		{&IncompleteBindingError{Missing: []string{"Age"}}, ErrIncompleteBinding},
		{&InvalidFactorError{FactorID: 3, Reason: "x"}, ErrInvalidFactor},
	}
	for _, tt := range tests {
		if !errors.Is(tt.err, tt.want) {
			t.Errorf("errors.Is(%v, %v) = false", tt.err, tt.want)
		}
	}
}
