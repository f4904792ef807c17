// internal/expr/version.go
package expr

import (
	"sort"

	"github.com/solatis/cardwright/internal/types"
)

/*
 * Rule version resolution.
 *
 * A rule family is the set of rule rows sharing a name. The current rule of a
 * family is the active row with the highest version; equal versions resolve
 * to the lowest ID so the choice is stable across loads.
 *
 * Only name-based lookups go through here. A Rule referenced by stored ID is
 * exact and never re-resolved.
 */

// ResolveVersion returns the current rule named name.
func ResolveVersion(rules []types.Rule, name string) (types.Rule, bool) {
	name = NormalizeName(name)
	var best types.Rule
	found := false
	for _, r := range rules {
		if !r.IsActive || NormalizeName(r.Name) != name {
			continue
		}
		if !found || newer(r, best) {
			best = r
			found = true
		}
	}
	return best, found
}

// CurrentRules returns the current rule of every family that has one, ordered
// by name. This is the palette of rules eligible for new compositions.
func CurrentRules(rules []types.Rule) []types.Rule {
	byName := make(map[string]types.Rule)
	for _, r := range rules {
		if !r.IsActive {
			continue
		}
		name := NormalizeName(r.Name)
		if cur, ok := byName[name]; !ok || newer(r, cur) {
			byName[name] = r
		}
	}
	out := make([]types.Rule, 0, len(byName))
	for _, r := range byName {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return NormalizeName(out[i].Name) < NormalizeName(out[j].Name) })
	return out
}

// IsCurrent reports whether rule is the current version of its family.
func IsCurrent(rules []types.Rule, rule types.Rule) bool {
	cur, ok := ResolveVersion(rules, rule.Name)
	return ok && cur.ID == rule.ID
}

// LatestVersion returns the highest version of the family across all rows,
// active or not (0 when the family does not exist).
func LatestVersion(rules []types.Rule, name string) int {
	name = NormalizeName(name)
	latest := 0
	for _, r := range rules {
		if NormalizeName(r.Name) == name && r.Version > latest {
			latest = r.Version
		}
	}
	return latest
}

// NextVersion is the version a newly saved row of the family receives.
func NextVersion(rules []types.Rule, name string) int {
	return LatestVersion(rules, name) + 1
}

func newer(a, b types.Rule) bool {
	if a.Version != b.Version {
		return a.Version > b.Version
	}
	return a.ID < b.ID
}
