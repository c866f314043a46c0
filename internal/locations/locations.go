// Package locations populates the country table that every admin unit and
// fact row hangs from.
package locations

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/JonMunkholm/hapi-pipelines/internal/store"
	"github.com/JonMunkholm/hapi-pipelines/internal/tabular"
)

// Country resource tags.
const (
	TagISO3  = "#country+code+v_iso3"
	TagName  = "#country+name+preferred"
	TagStart = "#date+start"
)

// HRP/GHO flag resource tags.
const (
	TagFlagCountry = "#country+code"
	TagHRP         = "#indicator+hrp+bool"
	TagGHO         = "#indicator+gho+bool"
)

// Country is one row of the countries resource.
type Country struct {
	ISO3  string
	Name  string
	Start string
}

// Flags marks countries with a humanitarian response plan or in the global
// humanitarian overview.
type Flags struct {
	HRP map[string]bool
	GHO map[string]bool
}

// ReadCountries collects the rows of a countries table.
func ReadCountries(t *tabular.Table) ([]Country, error) {
	var out []Country
	for {
		row, err := t.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read countries: %w", err)
		}
		iso3 := strings.ToUpper(t.Fields.Value(row, TagISO3))
		if iso3 == "" {
			continue
		}
		out = append(out, Country{
			ISO3:  iso3,
			Name:  t.Fields.Value(row, TagName),
			Start: t.Fields.Value(row, TagStart),
		})
	}
}

// ReadFlags reads the HRP/GHO flag table. A flag is set when its cell is
// "Y" in any case.
func ReadFlags(t *tabular.Table) (Flags, error) {
	flags := Flags{HRP: make(map[string]bool), GHO: make(map[string]bool)}
	for {
		row, err := t.Next()
		if errors.Is(err, io.EOF) {
			return flags, nil
		}
		if err != nil {
			return flags, fmt.Errorf("read hrp/gho flags: %w", err)
		}
		iso3 := strings.ToUpper(t.Fields.Value(row, TagFlagCountry))
		if strings.EqualFold(t.Fields.Value(row, TagHRP), "Y") {
			flags.HRP[iso3] = true
		}
		if strings.EqualFold(t.Fields.Value(row, TagGHO), "Y") {
			flags.GHO[iso3] = true
		}
	}
}

// Locations holds the stored countries of a run.
type Locations struct {
	session store.Session
	logger  *slog.Logger
	hapi    []string
	refs    map[string]store.Ref
}

// New returns an empty Locations. hapiCountries are the countries whose
// admin boundaries and themes are loaded.
func New(session store.Session, hapiCountries []string, logger *slog.Logger) *Locations {
	if logger == nil {
		logger = slog.Default()
	}
	hapi := make([]string, 0, len(hapiCountries))
	for _, c := range hapiCountries {
		hapi = append(hapi, strings.ToUpper(strings.TrimSpace(c)))
	}
	sort.Strings(hapi)
	return &Locations{
		session: session,
		logger:  logger,
		hapi:    hapi,
		refs:    make(map[string]store.Ref),
	}
}

// Populate writes one location per country, commits and reloads the ids.
// Countries listed twice are written once.
func (l *Locations) Populate(ctx context.Context, countries []Country, flags Flags) error {
	l.logger.Info("populating location table", "countries", len(countries))
	seen := make(map[string]bool, len(countries))
	for _, c := range countries {
		if seen[c.ISO3] {
			continue
		}
		seen[c.ISO3] = true
		rec := store.Location{
			Code:   c.ISO3,
			Name:   c.Name,
			HasHRP: flags.HRP[c.ISO3],
			InGHO:  flags.GHO[c.ISO3],
			Period: store.Period{Start: tabular.Timestamp(c.Start, false)},
		}
		if err := l.session.Add(ctx, rec); err != nil {
			return fmt.Errorf("add location %s: %w", c.ISO3, err)
		}
	}
	if err := l.session.Commit(ctx); err != nil {
		return fmt.Errorf("commit locations: %w", err)
	}
	refs, err := l.session.Lookup(ctx, store.TableLocation)
	if err != nil {
		return fmt.Errorf("reload locations: %w", err)
	}
	l.refs = refs

	for _, iso3 := range l.hapi {
		if _, ok := l.refs[iso3]; !ok {
			l.logger.Warn("configured country has no location", "country", iso3)
		}
	}
	return nil
}

// Ref returns the stored location for iso3.
func (l *Locations) Ref(iso3 string) (store.Ref, bool) {
	r, ok := l.refs[iso3]
	return r, ok
}

// Refs returns iso3 -> stored location.
func (l *Locations) Refs() map[string]store.Ref {
	return l.refs
}

// Codes returns the stored iso3 codes sorted.
func (l *Locations) Codes() []string {
	out := make([]string, 0, len(l.refs))
	for code := range l.refs {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

// HAPICountries returns the configured countries sorted.
func (l *Locations) HAPICountries() []string {
	return append([]string(nil), l.hapi...)
}

// IsHAPI reports whether iso3 is a configured country.
func (l *Locations) IsHAPI(iso3 string) bool {
	i := sort.SearchStrings(l.hapi, iso3)
	return i < len(l.hapi) && l.hapi[i] == iso3
}
