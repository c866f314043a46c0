// Package codes maps free-text labels (sectors, organisation types) to the
// short codes stored in the warehouse.
package codes

import (
	"sort"
	"unicode/utf8"

	"github.com/JonMunkholm/hapi-pipelines/internal/normalize"
	"github.com/JonMunkholm/hapi-pipelines/internal/store"
)

// MinFuzzyLength is the longest input that is refused for fuzzy matching.
// Short labels ("NGO", "CCS") match too many names to be trusted.
const MinFuzzyLength = 5

// Entry is one official code and its display name.
type Entry struct {
	Code string
	Name string
}

// MatchStats counts which tier answered each Resolve call.
type MatchStats struct {
	Exact      int
	Normalized int
	Alias      int
	Fuzzy      int
	Misses     int
}

// Resolver looks up codes by raw text, normalized text, a user alias table
// and, on request, phonetic similarity. Fuzzy hits are memoized into the
// normalized table. A Resolver is not safe for concurrent writers.
type Resolver struct {
	kind       string
	entries    []Entry
	lookup     map[string]string
	normalized map[string]string
	aliases    map[string]string
	names      []string
	nameCodes  []string
	scorer     Scorer
	unmatched  map[string]struct{}
	stats      MatchStats
	record     func(Entry) store.Record
}

// NewResolver builds a resolver. kind names the value in diagnostics
// ("sector", "org type"). aliases maps unofficial labels to codes; its keys
// are matched both as given and normalized.
func NewResolver(kind string, entries []Entry, aliases map[string]string) *Resolver {
	r := &Resolver{
		kind:       kind,
		entries:    append([]Entry(nil), entries...),
		lookup:     make(map[string]string, 2*len(entries)),
		normalized: make(map[string]string, 2*len(entries)),
		aliases:    make(map[string]string, 2*len(aliases)),
		scorer:     DefaultScorer,
		unmatched:  make(map[string]struct{}),
	}

	for _, e := range entries {
		r.lookup[e.Code] = e.Code
		r.lookup[e.Name] = e.Code
		r.normalized[normalize.Name(e.Code)] = e.Code
		r.normalized[normalize.Name(e.Name)] = e.Code
		r.addCandidate(normalize.Name(e.Name), e.Code)
	}

	keys := make([]string, 0, len(aliases))
	for k := range aliases {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		code := aliases[k]
		r.aliases[k] = code
		clean := normalize.Name(k)
		if _, ok := r.aliases[clean]; !ok {
			r.aliases[clean] = code
		}
		r.addCandidate(clean, code)
	}

	return r
}

func (r *Resolver) addCandidate(name, code string) {
	if name == "" {
		return
	}
	r.names = append(r.names, name)
	r.nameCodes = append(r.nameCodes, code)
}

// SetScorer replaces the fuzzy scorer.
func (r *Resolver) SetScorer(s Scorer) {
	r.scorer = s
}

// Kind returns the value type this resolver resolves, e.g. "sector".
func (r *Resolver) Kind() string {
	return r.kind
}

// Resolve returns the code for name. Tiers are tried in order: raw lookup,
// normalized lookup, alias table (raw then normalized), and, when fuzzy is
// true and name is longer than MinFuzzyLength, phonetic matching. Misses
// are kept for Unmatched.
func (r *Resolver) Resolve(name string, fuzzy bool) (string, bool) {
	code, ok := r.Match(name, fuzzy)
	if !ok {
		r.miss(name)
	}
	return code, ok
}

// Match is Resolve without recording a miss, for callers that have another
// value to try.
func (r *Resolver) Match(name string, fuzzy bool) (string, bool) {
	if code, ok := r.lookup[name]; ok {
		r.stats.Exact++
		return code, true
	}

	clean := normalize.Name(name)
	if code, ok := r.normalized[clean]; ok {
		r.stats.Normalized++
		return code, true
	}

	if code, ok := r.aliases[name]; ok {
		r.stats.Alias++
		return code, true
	}
	if code, ok := r.aliases[clean]; ok {
		r.stats.Alias++
		return code, true
	}

	if !fuzzy || clean == "" || utf8.RuneCountInString(name) <= MinFuzzyLength {
		return "", false
	}

	i, _ := r.scorer.Best(clean, r.names)
	if i < 0 {
		return "", false
	}

	code := r.nameCodes[i]
	r.normalized[clean] = code
	r.stats.Fuzzy++
	return code, true
}

func (r *Resolver) miss(name string) {
	r.stats.Misses++
	if name != "" {
		r.unmatched[name] = struct{}{}
	}
}

// Unmatched returns the distinct inputs that could not be resolved, sorted.
func (r *Resolver) Unmatched() []string {
	out := make([]string, 0, len(r.unmatched))
	for name := range r.unmatched {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Stats returns the per-tier hit counts so far.
func (r *Resolver) Stats() MatchStats {
	return r.stats
}

// Entries returns the official entries in load order.
func (r *Resolver) Entries() []Entry {
	return append([]Entry(nil), r.entries...)
}

// Name returns the official name for code.
func (r *Resolver) Name(code string) (string, bool) {
	for _, e := range r.entries {
		if e.Code == code {
			return e.Name, true
		}
	}
	return "", false
}
