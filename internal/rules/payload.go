// internal/rules/payload.go
package rules

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/solatis/cardwright/internal/types"
)

/*
 * Binding extraction from JSON payloads.
 *
 * A payload is a flat JSON object keyed by parameter name:
 *
 *   {"Age": 42, "Income": "5200.50", "Country": "US"}
 *
 * Scalars are taken as their text form (integers keep their JSON literal,
 * booleans become "true"/"false"). null counts as absent. Objects and arrays
 * are rejected for the parameter; there is no nested addressing.
 *
 * Parameter names are escaped before lookup so names containing gjson path
 * syntax (".", "*", "?", "|", "#", "@") address the literal key.
 *
 * Mandatory parameters missing from the payload fail the extraction with an
 * IncompleteBindingError naming all of them.
 */

// ErrInvalidPayload indicates a payload that is not a JSON object.
var ErrInvalidPayload = errors.New("payload must be a JSON object")

// BindingsFromPayload extracts one binding per parameter present in payload.
func BindingsFromPayload(params []types.Parameter, payload []byte) (types.Bindings, error) {
	if !gjson.ValidBytes(payload) {
		return nil, ErrInvalidPayload
	}
	root := gjson.ParseBytes(payload)
	if !root.IsObject() {
		return nil, ErrInvalidPayload
	}

	bindings := make(types.Bindings, len(params))
	var missing []string
	for _, p := range params {
		res := root.Get(escapeKey(p.Name))
		switch {
		case !res.Exists() || res.Type == gjson.Null:
			if p.IsMandatory {
				missing = append(missing, p.Name)
			}
		case res.IsObject() || res.IsArray():
			return nil, fmt.Errorf("%w: parameter %s must be a scalar", ErrInvalidPayload, p.Name)
		default:
			bindings[p.ID] = res.String()
		}
	}

	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, &types.IncompleteBindingError{Missing: missing}
	}
	return bindings, nil
}

// escapeKey backslash-escapes gjson path metacharacters.
func escapeKey(key string) string {
	var b strings.Builder
	for _, r := range key {
		switch r {
		case '.', '*', '?', '|', '#', '@', '\\', '!', '=', '<', '>', '%':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
