package admin

import (
	"sort"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/JonMunkholm/hapi-pipelines/internal/codes"
	"github.com/JonMunkholm/hapi-pipelines/internal/normalize"
)

type unit struct {
	pcode  string
	name   string
	norm   string
	parent string
}

// NameMatcher finds the pcode of an admin unit from its name, for datasets
// that report names only. Units are grouped by country and may be narrowed
// to a parent pcode.
type NameMatcher struct {
	byCountry map[string][]unit
	scorer    codes.Scorer
}

// NewNameMatcher returns an empty matcher using the default scorer.
func NewNameMatcher() *NameMatcher {
	return &NameMatcher{
		byCountry: make(map[string][]unit),
		scorer:    codes.DefaultScorer,
	}
}

// Add registers a unit. Blank names are ignored.
func (m *NameMatcher) Add(countryISO3, pcode, name, parentPCode string) {
	norm := normalize.Name(name)
	if norm == "" {
		return
	}
	m.byCountry[countryISO3] = append(m.byCountry[countryISO3], unit{
		pcode:  pcode,
		name:   name,
		norm:   norm,
		parent: parentPCode,
	})
}

// Len returns the number of registered units.
func (m *NameMatcher) Len() int {
	n := 0
	for _, units := range m.byCountry {
		n += len(units)
	}
	return n
}

// Name returns the registered name of pcode in a country.
func (m *NameMatcher) Name(countryISO3, pcode string) (string, bool) {
	for _, u := range m.byCountry[countryISO3] {
		if u.pcode == pcode {
			return u.name, true
		}
	}
	return "", false
}

// PCode matches name against the units of a country, restricted to children
// of parentPCode when it is non-empty. It tries, in order, a normalized
// exact match, the best phonetic match, and a unique subsequence match.
// exact reports whether the first tier answered.
func (m *NameMatcher) PCode(countryISO3, name, parentPCode string) (pcode string, exact bool, ok bool) {
	norm := normalize.Name(name)
	if norm == "" {
		return "", false, false
	}

	var candidates []unit
	for _, u := range m.byCountry[countryISO3] {
		if parentPCode != "" && u.parent != parentPCode {
			continue
		}
		candidates = append(candidates, u)
	}
	if len(candidates) == 0 {
		return "", false, false
	}

	for _, u := range candidates {
		if u.norm == norm {
			return u.pcode, true, true
		}
	}

	names := make([]string, len(candidates))
	for i, u := range candidates {
		names[i] = u.norm
	}

	if i, _ := m.scorer.Best(norm, names); i >= 0 {
		return candidates[i].pcode, false, true
	}

	ranks := fuzzy.RankFindNormalizedFold(norm, names)
	if len(ranks) == 0 {
		return "", false, false
	}
	sort.Sort(ranks)
	if len(ranks) > 1 && ranks[0].Distance == ranks[1].Distance {
		return "", false, false
	}
	return candidates[ranks[0].OriginalIndex].pcode, false, true
}
