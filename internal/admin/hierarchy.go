// Package admin owns the country -> admin1 -> admin2 code spaces for a run.
//
// Every country gets an unspecified admin1 connector "{iso3}-XXX" and
// every admin1, real or connector, gets an unspecified admin2 connector
// "{admin1}-XXX". Any row, whatever granularity it reports, can therefore be
// pinned to some admin2 row.
package admin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/JonMunkholm/hapi-pipelines/internal/reporting"
	"github.com/JonMunkholm/hapi-pipelines/internal/store"
	"github.com/JonMunkholm/hapi-pipelines/internal/tabular"
)

// ErrNotFound is returned when a computed admin code is not in the
// hierarchy. The miss has already been reported to the error manager.
var ErrNotFound = errors.New("admin code not found")

// DefaultCommitLimit applies when Config.CommitLimit is not positive.
const DefaultCommitLimit = 1000

// Boundary dataset tags.
const (
	TagAdminLevel = "#geo+admin_level"
	TagCountry    = "#country+code"
	TagCode       = "#adm+code"
	TagName       = "#adm+name"
	TagStart      = "#date+start"
	TagParent     = "#adm+code+parent"
)

// Locations is the country table the hierarchy hangs from.
type Locations interface {
	// Refs returns iso3 -> stored location.
	Refs() map[string]store.Ref
	// HAPICountries returns the countries whose boundaries are loaded.
	HAPICountries() []string
}

// Config tunes Populate.
type Config struct {
	// CommitLimit is the number of inserted rows between commits.
	CommitLimit int

	// OrphanAdmin2s maps an admin2 code whose declared parent is missing to
	// the iso3 of the country it belongs to. Such rows are attached to the
	// country's unspecified admin1.
	OrphanAdmin2s map[string]string
}

// Boundary is one admin unit row of the boundary dataset.
type Boundary struct {
	Level   string
	Country string
	Code    string
	Name    string
	Parent  string
	Start   string
}

// Hierarchy holds the admin1 and admin2 maps of one run.
type Hierarchy struct {
	session   store.Session
	locations Locations
	errs      *reporting.Manager
	logger    *slog.Logger
	cfg       Config

	admin1 map[string]store.Ref
	admin2 map[string]store.Ref

	admin1Names *NameMatcher
	admin2Names *NameMatcher
}

// New returns an empty Hierarchy. Call Populate before resolving rows.
func New(session store.Session, locations Locations, errs *reporting.Manager, cfg Config, logger *slog.Logger) *Hierarchy {
	if cfg.CommitLimit <= 0 {
		cfg.CommitLimit = DefaultCommitLimit
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hierarchy{
		session:     session,
		locations:   locations,
		errs:        errs,
		logger:      logger,
		cfg:         cfg,
		admin1:      make(map[string]store.Ref),
		admin2:      make(map[string]store.Ref),
		admin1Names: NewNameMatcher(),
		admin2Names: NewNameMatcher(),
	}
}

// ReadBoundaries collects the rows of a boundary table.
func ReadBoundaries(t *tabular.Table) ([]Boundary, error) {
	var out []Boundary
	for {
		row, err := t.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read boundaries: %w", err)
		}
		out = append(out, Boundary{
			Level:   t.Fields.Value(row, TagAdminLevel),
			Country: t.Fields.Value(row, TagCountry),
			Code:    t.Fields.Value(row, TagCode),
			Name:    t.Fields.Value(row, TagName),
			Parent:  t.Fields.Value(row, TagParent),
			Start:   t.Fields.Value(row, TagStart),
		})
	}
}

// Populate builds the admin1 and admin2 tables from boundary rows of the
// configured countries, adds the connector rows and reloads the id maps.
func (h *Hierarchy) Populate(ctx context.Context, boundaries []Boundary) error {
	countries := make(map[string]bool)
	for _, iso3 := range h.locations.HAPICountries() {
		countries[iso3] = true
	}
	var level1, level2 []Boundary
	for _, b := range boundaries {
		if !countries[b.Country] {
			continue
		}
		switch b.Level {
		case "1":
			level1 = append(level1, b)
		case "2":
			level2 = append(level2, b)
		}
	}

	h.logger.Info("populating admin1 table", "rows", len(level1))
	locations := h.locations.Refs()
	if err := h.insertLevel(ctx, AdminOne, level1, locations); err != nil {
		return err
	}
	if err := h.addAdmin1Connectors(ctx, locations); err != nil {
		return err
	}
	admin1, err := h.session.Lookup(ctx, store.TableAdmin1)
	if err != nil {
		return fmt.Errorf("reload admin1: %w", err)
	}
	h.admin1 = admin1

	h.logger.Info("populating admin2 table", "rows", len(level2))
	if err := h.insertLevel(ctx, AdminTwo, level2, h.admin1); err != nil {
		return err
	}
	if err := h.addAdmin2Connectors(ctx); err != nil {
		return err
	}
	admin2, err := h.session.Lookup(ctx, store.TableAdmin2)
	if err != nil {
		return fmt.Errorf("reload admin2: %w", err)
	}
	h.admin2 = admin2

	h.logger.Info("admin tables populated", "admin1", len(h.admin1), "admin2", len(h.admin2))
	return nil
}

func (h *Hierarchy) insertLevel(ctx context.Context, level Level, rows []Boundary, parents map[string]store.Ref) error {
	inserted := 0
	for _, b := range rows {
		parent, ok := parents[b.Parent]
		if !ok {
			iso3, orphan := h.cfg.OrphanAdmin2s[b.Code]
			if level != AdminTwo || !orphan {
				h.logger.Warn(fmt.Sprintf("Missing parent %s for code %s", b.Parent, b.Code))
				continue
			}
			parent, ok = h.admin1[Admin1ToLocationConnector(iso3)]
			if !ok {
				h.logger.Warn(fmt.Sprintf("Missing parent %s for code %s", Admin1ToLocationConnector(iso3), b.Code))
				continue
			}
		}

		period := store.Period{Start: tabular.Timestamp(b.Start, false)}
		var rec store.Record
		if level == AdminOne {
			rec = store.Admin1{LocationRef: parent.ID, Code: b.Code, Name: b.Name, Period: period}
			h.admin1Names.Add(b.Country, b.Code, b.Name, b.Country)
		} else {
			rec = store.Admin2{Admin1Ref: parent.ID, Code: b.Code, Name: b.Name, Period: period}
			h.admin2Names.Add(b.Country, b.Code, b.Name, b.Parent)
		}
		if err := h.session.Add(ctx, rec); err != nil {
			return fmt.Errorf("add %s %s: %w", level, b.Code, err)
		}
		inserted++
		if inserted%h.cfg.CommitLimit == 0 {
			if err := h.session.Commit(ctx); err != nil {
				return fmt.Errorf("commit %s: %w", level, err)
			}
		}
	}
	if err := h.session.Commit(ctx); err != nil {
		return fmt.Errorf("commit %s: %w", level, err)
	}
	return nil
}

func (h *Hierarchy) addAdmin1Connectors(ctx context.Context, locations map[string]store.Ref) error {
	for _, iso3 := range sortedKeys(locations) {
		loc := locations[iso3]
		rec := store.Admin1{
			LocationRef:   loc.ID,
			Code:          Admin1ToLocationConnector(iso3),
			Name:          UnspecifiedName,
			IsUnspecified: true,
			Period:        store.Period{Start: loc.ReferencePeriodStart},
		}
		if err := h.session.Add(ctx, rec); err != nil {
			return fmt.Errorf("add admin1 connector %s: %w", rec.Code, err)
		}
	}
	if err := h.session.Commit(ctx); err != nil {
		return fmt.Errorf("commit admin1 connectors: %w", err)
	}
	return nil
}

func (h *Hierarchy) addAdmin2Connectors(ctx context.Context) error {
	for _, code := range sortedKeys(h.admin1) {
		a1 := h.admin1[code]
		rec := store.Admin2{
			Admin1Ref:     a1.ID,
			Code:          Admin2ToAdmin1Connector(code),
			Name:          UnspecifiedName,
			IsUnspecified: true,
			Period:        store.Period{Start: a1.ReferencePeriodStart},
		}
		if err := h.session.Add(ctx, rec); err != nil {
			return fmt.Errorf("add admin2 connector %s: %w", rec.Code, err)
		}
	}
	if err := h.session.Commit(ctx); err != nil {
		return fmt.Errorf("commit admin2 connectors: %w", err)
	}
	return nil
}

func sortedKeys(m map[string]store.Ref) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Admin1 returns the stored admin1 row for code.
func (h *Hierarchy) Admin1(code string) (store.Ref, bool) {
	r, ok := h.admin1[code]
	return r, ok
}

// Admin2 returns the stored admin2 row for code.
func (h *Hierarchy) Admin2(code string) (store.Ref, bool) {
	r, ok := h.admin2[code]
	return r, ok
}

// Admin1Names matches admin1 names to pcodes.
func (h *Hierarchy) Admin1Names() *NameMatcher { return h.admin1Names }

// Admin2Names matches admin2 names to pcodes.
func (h *Hierarchy) Admin2Names() *NameMatcher { return h.admin2Names }

// LevelOf classifies a known pcode.
func (h *Hierarchy) LevelOf(pcode string) (Level, error) {
	if _, ok := h.admin1[pcode]; ok {
		return AdminOne, nil
	}
	if _, ok := h.admin2[pcode]; ok {
		return AdminTwo, nil
	}
	return 0, fmt.Errorf("pcode %s not in admin1 or admin2 tables", pcode)
}

// Admin1Ref returns the id of the admin1 row standing for code at level.
// A miss is reported as "admin 1 code X not found" and returns ErrNotFound.
func (h *Hierarchy) Admin1Ref(level Level, code, dataset, pipeline string) (int64, error) {
	admin1Code, err := Admin1CodeForLevel(code, level)
	if err != nil {
		return 0, err
	}
	ref, ok := h.admin1[admin1Code]
	if !ok {
		h.errs.AddMissingValue(pipeline, dataset, "admin 1 code", admin1Code)
		return 0, fmt.Errorf("admin 1 code %s: %w", admin1Code, ErrNotFound)
	}
	return ref.ID, nil
}

// Admin2Ref returns the id of the admin2 row standing for code at level.
// A miss is reported as "admin 2 code X not found" and returns ErrNotFound.
func (h *Hierarchy) Admin2Ref(level Level, code, dataset, pipeline string) (int64, error) {
	admin2Code, err := Admin2CodeForLevel(code, level)
	if err != nil {
		return 0, err
	}
	ref, ok := h.admin2[admin2Code]
	if !ok {
		h.errs.AddMissingValue(pipeline, dataset, "admin 2 code", admin2Code)
		return 0, fmt.Errorf("admin 2 code %s: %w", admin2Code, ErrNotFound)
	}
	return ref.ID, nil
}
