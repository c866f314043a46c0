package themes

import (
	"fmt"
	"slices"
	"sort"
	"sync"
)

var (
	registry   = make(map[string]Theme)
	registryMu sync.RWMutex
)

// order is the load order of the known themes. Reference themes (wfp
// commodity, market, currency) precede food price, which points at them.
var order = []string{
	"population",
	"operational_presence",
	"funding",
	"conflict_event",
	"idps",
	"refugees",
	"returnees",
	"food_security",
	"humanitarian_needs",
	"poverty_rate",
	"rainfall",
	"wfp_commodity",
	"wfp_market",
	"currency",
	"food_price",
}

// Register adds a theme to the registry.
// Panics if a theme with the same name is already registered.
func Register(t Theme) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[t.Name()]; exists {
		panic(fmt.Sprintf("theme already registered: %s", t.Name()))
	}
	registry[t.Name()] = t
}

// Get returns a theme by name.
func Get(name string) (Theme, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	t, ok := registry[name]
	return t, ok
}

// All returns every registered theme in load order. Themes missing from
// the load order come last, by name.
func All() []Theme {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]Theme, 0, len(registry))
	for _, t := range registry {
		result = append(result, t)
	}
	sort.Slice(result, func(i, j int) bool {
		a, b := rank(result[i].Name()), rank(result[j].Name())
		if a != b {
			return a < b
		}
		return result[i].Name() < result[j].Name()
	})
	return result
}

// Names returns the names of All.
func Names() []string {
	all := All()
	names := make([]string, len(all))
	for i, t := range all {
		names[i] = t.Name()
	}
	return names
}

// Clear removes all registered themes.
// Primarily useful for testing.
func Clear() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = make(map[string]Theme)
}

func rank(name string) int {
	if i := slices.Index(order, name); i >= 0 {
		return i
	}
	return len(order)
}
