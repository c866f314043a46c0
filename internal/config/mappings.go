package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Mappings holds the YAML mapping tables of a run.
type Mappings struct {
	// HAPICountries are the iso3 codes whose boundaries and themes load.
	HAPICountries []string `yaml:"hapi_countries"`

	// CommitLimit overrides COMMIT_LIMIT when positive.
	CommitLimit int `yaml:"commit_limit"`

	// MaxAcronymLength caps organisation acronyms, in runes.
	MaxAcronymLength int `yaml:"max_acronym_length"`

	// OrphanAdmin2s maps admin2 codes with a missing parent to their iso3.
	OrphanAdmin2s map[string]string `yaml:"orphan_admin2s"`

	Sectors   []CodeEntry       `yaml:"sectors"`
	SectorMap map[string]string `yaml:"sector_map"`

	OrgTypes   []CodeEntry       `yaml:"org_types"`
	OrgTypeMap map[string]string `yaml:"org_type_map"`

	Reference Reference `yaml:"reference"`

	// Themes overrides the dataset or resource a theme reads.
	Themes map[string]ThemeDataset `yaml:"themes"`

	FoodSecurity FoodSecurity `yaml:"food_security"`

	// FuzzyMatch tunes sector and org type matching; zero keeps the defaults.
	FuzzyMatch FuzzyMatch `yaml:"fuzzy_match"`
}

// FuzzyMatch holds the similarity scores, in [0, 1], a fuzzy match must
// reach.
type FuzzyMatch struct {
	// Threshold applies when the candidate sounds alike.
	Threshold float64 `yaml:"threshold"`
	// StrictThreshold applies otherwise. Defaults to Threshold.
	StrictThreshold float64 `yaml:"strict_threshold"`
}

// CodeEntry is one official code and its name.
type CodeEntry struct {
	Code string `yaml:"code"`
	Name string `yaml:"name"`
}

// ResourceRef names a resource of a dataset.
type ResourceRef struct {
	Dataset  string `yaml:"dataset"`
	Resource string `yaml:"resource"`
}

// Reference lists the resources the reference tables are built from.
type Reference struct {
	Countries  ResourceRef `yaml:"countries"`
	Flags      ResourceRef `yaml:"flags"`
	Boundaries ResourceRef `yaml:"boundaries"`
	Orgs       ResourceRef `yaml:"orgs"`
}

// ThemeDataset overrides where a theme reads from.
type ThemeDataset struct {
	Dataset  string `yaml:"dataset"`
	Resource string `yaml:"resource"`
}

// FoodSecurity lists the per-country layouts of the food insecurity data.
type FoodSecurity struct {
	// Adm1Only countries report admin 1 in "Level 1" and nothing usable in
	// "Area".
	Adm1Only []string `yaml:"adm1_only"`
	// Adm2Only countries leave "Level 1" blank and report admin 2 in "Area".
	Adm2Only []string `yaml:"adm2_only"`
	// Adm2InLevel1 countries report admin 2 in "Level 1".
	Adm2InLevel1 []string `yaml:"adm2_in_level1"`
	// Adm1InArea countries report admin 1 in "Area".
	Adm1InArea []string `yaml:"adm1_in_area"`
	// AdmIgnorePatterns are lowercase substrings of names that are not
	// admin units, such as "idp" or "refugee".
	AdmIgnorePatterns []string `yaml:"adm_ignore_patterns"`
	// Adm1Errors and Adm2Errors are provider names whose fuzzy matches are
	// known to be wrong.
	Adm1Errors []string `yaml:"adm1_errors"`
	Adm2Errors []string `yaml:"adm2_errors"`
}

// Ignored reports whether name contains one of the ignore patterns.
func (f FoodSecurity) Ignored(name string) bool {
	lower := strings.ToLower(name)
	for _, p := range f.AdmIgnorePatterns {
		if p != "" && strings.Contains(lower, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

// LoadMappings reads and validates a mapping file.
func LoadMappings(path string) (*Mappings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mappings: %w", err)
	}
	return ParseMappings(data)
}

// ParseMappings decodes and validates mapping YAML. Unknown keys are
// rejected.
func ParseMappings(data []byte) (*Mappings, error) {
	m := &Mappings{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(m); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse mappings: %w", err)
	}
	m.normalize()
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Mappings) normalize() {
	for i, c := range m.HAPICountries {
		m.HAPICountries[i] = strings.ToUpper(strings.TrimSpace(c))
	}
	for code, iso3 := range m.OrphanAdmin2s {
		m.OrphanAdmin2s[code] = strings.ToUpper(strings.TrimSpace(iso3))
	}
}

// Validate checks the mapping tables for consistency.
func (m *Mappings) Validate() error {
	var errs []string

	if len(m.HAPICountries) == 0 {
		errs = append(errs, "hapi_countries is empty")
	}
	for _, c := range m.HAPICountries {
		if !isISO3(c) {
			errs = append(errs, fmt.Sprintf("hapi_countries: %q is not an iso3 code", c))
		}
	}
	for _, code := range sortedKeys(m.OrphanAdmin2s) {
		if !isISO3(m.OrphanAdmin2s[code]) {
			errs = append(errs, fmt.Sprintf("orphan_admin2s: %s maps to %q, not an iso3 code", code, m.OrphanAdmin2s[code]))
		}
	}
	if m.MaxAcronymLength < 0 {
		errs = append(errs, "max_acronym_length must be non-negative")
	}
	if m.CommitLimit < 0 {
		errs = append(errs, "commit_limit must be non-negative")
	}
	if f := m.FuzzyMatch; f.Threshold < 0 || f.Threshold > 1 || f.StrictThreshold < 0 || f.StrictThreshold > 1 {
		errs = append(errs, "fuzzy_match thresholds must be between 0 and 1")
	}
	errs = append(errs, checkCodes("sectors", "sector_map", m.Sectors, m.SectorMap)...)
	errs = append(errs, checkCodes("org_types", "org_type_map", m.OrgTypes, m.OrgTypeMap)...)

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// Theme returns the dataset override of a theme, zero when none.
func (m *Mappings) Theme(name string) ThemeDataset {
	return m.Themes[name]
}

func checkCodes(entriesKey, mapKey string, entries []CodeEntry, aliases map[string]string) []string {
	var errs []string
	codes := make([]string, 0, len(entries))
	for i, e := range entries {
		if e.Code == "" {
			errs = append(errs, fmt.Sprintf("%s[%d] has no code", entriesKey, i))
			continue
		}
		if slices.Contains(codes, e.Code) {
			errs = append(errs, fmt.Sprintf("%s: duplicate code %s", entriesKey, e.Code))
		}
		codes = append(codes, e.Code)
	}
	for _, k := range sortedKeys(aliases) {
		if !slices.Contains(codes, aliases[k]) {
			errs = append(errs, fmt.Sprintf("%s: %q maps to unknown code %s", mapKey, k, aliases[k]))
		}
	}
	return errs
}

func isISO3(s string) bool {
	if len(s) != 3 {
		return false
	}
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
