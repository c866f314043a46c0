// Package org reconciles the many spellings of an organisation found in
// source data into one canonical (acronym, name, type) record.
//
// Two maps are kept. The variant map is keyed by (location, text) and
// answers "which organisation is this string"; location "" holds global
// variants. The data map is keyed by (normalized acronym, normalized name)
// and holds the canonical records written to the org table.
package org

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/hapi-pipelines/internal/codes"
	"github.com/JonMunkholm/hapi-pipelines/internal/normalize"
	"github.com/JonMunkholm/hapi-pipelines/internal/reporting"
	"github.com/JonMunkholm/hapi-pipelines/internal/store"
)

// MaxAcronymLength is the default acronym limit in runes.
const MaxAcronymLength = 32

// DefaultPipeline names the pipeline in org type messages.
const DefaultPipeline = "OperationalPresence"

// Info is what the registry knows about one textual variant.
type Info struct {
	CanonicalName     string
	NormalizedName    string
	Acronym           string
	NormalizedAcronym string
	TypeCode          string
	Used              bool
	Complete          bool
}

// Data is a canonical organisation.
type Data struct {
	Acronym  string
	Name     string
	TypeCode string

	written bool
}

// Reference is one row of the reference organisation dataset.
type Reference struct {
	Location string
	Acronym  string
	Name     string
	TypeCode string
	// Alternates are other names the organisation is known by.
	Alternates []string
}

// Variant is one entry of the variant map, for debugging.
type Variant struct {
	Location string
	Text     string
	Info     Info
}

type variantKey struct {
	location string
	text     string
}

type dataKey struct {
	acronym string
	name    string
}

// Config tunes a Registry.
type Config struct {
	MaxAcronymLength int
	Pipeline         string
}

// Registry holds the variant and canonical maps of one run.
type Registry struct {
	variants map[variantKey]*Info
	data     map[dataKey]*Data
	orgTypes *codes.Resolver
	errs     *reporting.Manager
	cfg      Config
}

// NewRegistry returns an empty registry resolving type names with orgTypes.
func NewRegistry(orgTypes *codes.Resolver, errs *reporting.Manager, cfg Config) *Registry {
	if cfg.MaxAcronymLength <= 0 {
		cfg.MaxAcronymLength = MaxAcronymLength
	}
	if cfg.Pipeline == "" {
		cfg.Pipeline = DefaultPipeline
	}
	return &Registry{
		variants: make(map[variantKey]*Info),
		data:     make(map[dataKey]*Data),
		orgTypes: orgTypes,
		errs:     errs,
		cfg:      cfg,
	}
}

// LoadReference seeds the registry. Each variant of a reference row (name,
// acronym and alternates) gets its own Info, indexed raw and normalized.
// Rows with neither name nor acronym are skipped.
func (r *Registry) LoadReference(rows []Reference) int {
	loaded := 0
	for _, row := range rows {
		name := strings.TrimSpace(row.Name)
		acronym := r.truncate(strings.TrimSpace(row.Acronym))
		if name == "" && acronym == "" {
			continue
		}
		if name == "" {
			name = acronym
		}
		if acronym == "" {
			acronym = r.truncate(name)
		}
		base := Info{
			CanonicalName:     name,
			NormalizedName:    normalize.Name(name),
			Acronym:           acronym,
			NormalizedAcronym: normalize.Name(acronym),
			TypeCode:          row.TypeCode,
		}

		dk := dataKey{acronym: base.NormalizedAcronym, name: base.NormalizedName}
		if _, ok := r.data[dk]; !ok {
			r.data[dk] = &Data{Acronym: acronym, Name: name, TypeCode: row.TypeCode}
		}

		texts := append([]string{name, acronym}, row.Alternates...)
		for _, text := range texts {
			text = strings.TrimSpace(text)
			if text == "" {
				continue
			}
			info := base
			r.index(row.Location, text, &info)
		}
		loaded++
	}
	return loaded
}

func (r *Registry) index(location, text string, info *Info) {
	raw := variantKey{location: location, text: text}
	if _, ok := r.variants[raw]; !ok {
		r.variants[raw] = info
	}
	norm := variantKey{location: location, text: normalize.Name(text)}
	if _, ok := r.variants[norm]; !ok {
		r.variants[norm] = info
	}
}

// Info returns the variant record for text seen in location. Lookup order
// is (location, raw), (location, normalized), global raw, global
// normalized. A miss creates an incomplete Info memoized under (location,
// raw), so repeated calls return the same pointer.
func (r *Registry) Info(text, location string) *Info {
	norm := normalize.Name(text)
	for _, k := range []variantKey{
		{location: location, text: text},
		{location: location, text: norm},
		{text: text},
		{text: norm},
	} {
		if info, ok := r.variants[k]; ok {
			return info
		}
	}
	info := &Info{CanonicalName: text, NormalizedName: norm}
	r.variants[variantKey{location: location, text: text}] = info
	return info
}

// Complete fills in what info lacks from the row it was seen in, then
// converges it with its canonical record. An org type that cannot be
// resolved is reported against dataset but does not stop the row.
func (r *Registry) Complete(info *Info, acronym, typeName, dataset string) *Data {
	if info.Acronym == "" {
		if a := r.truncate(strings.TrimSpace(acronym)); a != "" {
			info.Acronym = a
			info.NormalizedAcronym = normalize.Name(a)
		}
	}
	if info.TypeCode == "" {
		if typeName = strings.TrimSpace(typeName); typeName != "" {
			if code, ok := r.orgTypes.Resolve(typeName, true); ok {
				info.TypeCode = code
			} else {
				r.errs.AddMissingValue(r.cfg.Pipeline, dataset, "org type", typeName)
			}
		}
	}
	return r.AddOrMatch(info)
}

// AddOrMatch finds or creates the canonical record for info. A type code
// known on only one side is copied to the other. info always takes the
// canonical name and acronym.
func (r *Registry) AddOrMatch(info *Info) *Data {
	k := dataKey{acronym: info.NormalizedAcronym, name: info.NormalizedName}
	d, ok := r.data[k]
	if !ok {
		d = &Data{Acronym: info.Acronym, Name: info.CanonicalName, TypeCode: info.TypeCode}
		r.data[k] = d
	} else {
		if info.TypeCode != "" && d.TypeCode == "" {
			d.TypeCode = info.TypeCode
		} else if d.TypeCode != "" {
			info.TypeCode = d.TypeCode
		}
		info.CanonicalName = d.Name
		info.NormalizedName = normalize.Name(d.Name)
		info.Acronym = d.Acronym
		info.NormalizedAcronym = normalize.Name(d.Acronym)
	}
	info.Used = true
	info.Complete = info.Acronym != "" && info.TypeCode != ""
	return d
}

func (r *Registry) truncate(s string) string {
	if utf8.RuneCountInString(s) <= r.cfg.MaxAcronymLength {
		return s
	}
	return string([]rune(s)[:r.cfg.MaxAcronymLength])
}

// Len returns the number of canonical organisations.
func (r *Registry) Len() int { return len(r.data) }

// Canonical returns the canonical records in key order.
func (r *Registry) Canonical() []Data {
	keys := r.sortedKeys()
	out := make([]Data, 0, len(keys))
	for _, k := range keys {
		out = append(out, *r.data[k])
	}
	return out
}

func (r *Registry) sortedKeys() []dataKey {
	keys := make([]dataKey, 0, len(r.data))
	for k := range r.data {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].acronym != keys[j].acronym {
			return keys[i].acronym < keys[j].acronym
		}
		return keys[i].name < keys[j].name
	})
	return keys
}

// Flush writes every canonical record not yet written.
func (r *Registry) Flush(ctx context.Context, session store.Session) (int, error) {
	var recs []store.Record
	var pending []*Data
	for _, k := range r.sortedKeys() {
		d := r.data[k]
		if d.written {
			continue
		}
		recs = append(recs, store.Org{
			Acronym:     d.Acronym,
			Name:        d.Name,
			OrgTypeCode: pgtype.Text{String: d.TypeCode, Valid: d.TypeCode != ""},
		})
		pending = append(pending, d)
	}
	if len(recs) == 0 {
		return 0, nil
	}
	if err := session.BatchPopulate(ctx, recs); err != nil {
		return 0, fmt.Errorf("flush orgs: %w", err)
	}
	for _, d := range pending {
		d.written = true
	}
	return len(recs), nil
}

// Variants lists the variant map sorted by location then text.
func (r *Registry) Variants() []Variant {
	out := make([]Variant, 0, len(r.variants))
	for k, info := range r.variants {
		out = append(out, Variant{Location: k.location, Text: k.text, Info: *info})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Location != out[j].Location {
			return out[i].Location < out[j].Location
		}
		return out[i].Text < out[j].Text
	})
	return out
}

// LogVariants writes the variant map at debug level.
func (r *Registry) LogVariants(logger *slog.Logger) {
	for _, v := range r.Variants() {
		logger.Debug("org variant",
			"location", v.Location,
			"text", v.Text,
			"name", v.Info.CanonicalName,
			"acronym", v.Info.Acronym,
			"type", v.Info.TypeCode,
			"used", v.Info.Used,
			"complete", v.Info.Complete,
		)
	}
}
