// internal/rules/coercion.go
package rules

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/solatis/cardwright/internal/types"
)

/*
 * Type coercion for factor evaluation.
 *
 * Bindings and factor values are both raw text. Coerce converts one of them
 * into the Go type the parameter's DataType compares with. The same function
 * is used for both sides, so a factor value that compiles will always be
 * comparable with a binding that coerces.
 *
 * Type modes:
 *   - NUMERIC: strict, float64 via ParseFloat; whitespace-only is not a number
 *   - TEXT: lenient, trimmed string
 *   - BOOLEAN: strict, true/false/1/0/yes/no (case-insensitive)
 *   - DATE: strict, YYYY-MM-DD or RFC 3339, normalized to UTC
 *   - UNSPECIFIED: treated as TEXT
 *
 * A failed coercion of a binding makes the factor evaluate false; a failed
 * coercion of a factor value is a compile error (the factor is unusable).
 */

var dateLayouts = []string{"2006-01-02", time.RFC3339, time.RFC3339Nano}

// Coerce converts raw to the comparison type of dataType.
// Returns an error wrapping ErrCoercionFailed for impossible coercions.
func Coerce(raw string, dataType types.DataType) (any, error) {
	s := strings.TrimSpace(raw)

	switch dataType {
	case types.DataTypeNumeric:
		if s == "" {
			return nil, fmt.Errorf("%w: empty value is not numeric", types.ErrCoercionFailed)
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not numeric", types.ErrCoercionFailed, raw)
		}
		return f, nil
	case types.DataTypeBoolean:
		switch strings.ToLower(s) {
		case "true", "1", "yes", "y":
			return true, nil
		case "false", "0", "no", "n":
			return false, nil
		}
		return nil, fmt.Errorf("%w: %q is not boolean", types.ErrCoercionFailed, raw)
	case types.DataTypeDate:
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC(), nil
			}
		}
		return nil, fmt.Errorf("%w: %q is not a date", types.ErrCoercionFailed, raw)
	case types.DataTypeText, types.DataTypeUnspecified:
		return s, nil
	default:
		return nil, fmt.Errorf("%w: unknown data type %d", types.ErrCoercionFailed, dataType)
	}
}
