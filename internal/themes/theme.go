// Package themes loads the fact tables of a run. Each theme reads one or
// more resources, pins every row to the admin hierarchy or a location, and
// writes typed records through the store session.
package themes

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/JonMunkholm/hapi-pipelines/internal/admin"
	"github.com/JonMunkholm/hapi-pipelines/internal/codes"
	"github.com/JonMunkholm/hapi-pipelines/internal/config"
	"github.com/JonMunkholm/hapi-pipelines/internal/hdx"
	"github.com/JonMunkholm/hapi-pipelines/internal/locations"
	"github.com/JonMunkholm/hapi-pipelines/internal/metadata"
	"github.com/JonMunkholm/hapi-pipelines/internal/org"
	"github.com/JonMunkholm/hapi-pipelines/internal/reporting"
	"github.com/JonMunkholm/hapi-pipelines/internal/store"
)

var (
	// ErrConfiguration marks a resource whose layout does not match what
	// the theme expects. The resource is skipped and reported.
	ErrConfiguration = errors.New("configuration error")

	// ErrNoRows is returned when a theme's dataset has no usable resource.
	ErrNoRows = errors.New("no rows")
)

// Theme populates one fact table.
type Theme interface {
	Name() string
	Populate(ctx context.Context, env *Env) error
}

// Env is the run context a theme works in. Lookup maps live here, never in
// package globals.
type Env struct {
	Reader    hdx.Reader
	Session   store.Session
	Metadata  *metadata.Registry
	Admins    *admin.Hierarchy
	Locations *locations.Locations
	Orgs      *org.Registry
	Sectors   *codes.Resolver
	OrgTypes  *codes.Resolver
	Errors    *reporting.Manager
	Mappings  *config.Mappings

	// Countries restricts a theme to the listed iso3 codes. A theme with no
	// entry, or an empty list, takes every country.
	Countries map[string][]string

	Logger *slog.Logger

	// Progress is told how many rows a theme wrote after each flush.
	Progress func(theme string, rows int)
}

// Allowed reports whether theme should load rows of iso3.
func (e *Env) Allowed(theme, iso3 string) bool {
	list := e.Countries[theme]
	if len(list) == 0 {
		return true
	}
	return slices.Contains(list, strings.ToUpper(iso3))
}

func (e *Env) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}

func (e *Env) progress(theme string, rows int) {
	if e.Progress != nil && rows > 0 {
		e.Progress(theme, rows)
	}
}

// dataset returns the configured dataset name for theme, or def.
func (e *Env) dataset(theme, def string) string {
	if e.Mappings != nil {
		if d := e.Mappings.Theme(theme).Dataset; d != "" {
			return d
		}
	}
	return def
}

// resource returns the configured resource name for theme, or def.
func (e *Env) resource(theme, def string) string {
	if e.Mappings != nil {
		if r := e.Mappings.Theme(theme).Resource; r != "" {
			return r
		}
	}
	return def
}

// PipelineName turns a dataset suffix such as "conflict-event" into the
// pipeline label used in messages, "Conflict Event".
func PipelineName(suffix string) string {
	return cases.Title(language.Und).String(strings.ReplaceAll(suffix, "-", " "))
}
