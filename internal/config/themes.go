package config

import (
	"fmt"
	"strings"
)

// ThemeSelection is a parsed theme selector.
type ThemeSelection struct {
	// Names lists the selected themes in the order given.
	Names []string
	// Countries restricts a theme to iso3 codes. Themes without an entry
	// take every country.
	Countries map[string][]string
}

// All reports whether no theme was named, meaning every theme runs.
func (s ThemeSelection) All() bool {
	return len(s.Names) == 0
}

// ParseThemes parses a selector such as "population:AFG|COD,funding".
// Each comma-separated item names a theme, optionally followed by a colon
// and a pipe-separated country list. An empty selector selects everything.
func ParseThemes(s string) (ThemeSelection, error) {
	sel := ThemeSelection{Countries: make(map[string][]string)}
	s = strings.TrimSpace(s)
	if s == "" {
		return sel, nil
	}

	seen := make(map[string]bool)
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		name, countries, hasCountries := strings.Cut(item, ":")
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			return ThemeSelection{}, fmt.Errorf("theme selector %q: missing theme name", item)
		}
		if seen[name] {
			return ThemeSelection{}, fmt.Errorf("theme selector: %s listed twice", name)
		}
		seen[name] = true
		sel.Names = append(sel.Names, name)

		if !hasCountries {
			continue
		}
		for _, c := range strings.Split(countries, "|") {
			c = strings.ToUpper(strings.TrimSpace(c))
			if c == "" {
				continue
			}
			if !isISO3(c) {
				return ThemeSelection{}, fmt.Errorf("theme selector %q: %q is not an iso3 code", item, c)
			}
			sel.Countries[name] = append(sel.Countries[name], c)
		}
	}
	return sel, nil
}
