package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleMappings = `
hapi_countries: [afg, COD]
commit_limit: 500
max_acronym_length: 32
orphan_admin2s:
  AF9901: afg
sectors:
  - {code: FSC, name: Food Security}
  - {code: HEA, name: Health}
sector_map:
  food: FSC
org_types:
  - {code: "437", name: International NGO}
org_type_map:
  ingo: "437"
reference:
  orgs: {dataset: global-organisations, resource: orgs.csv}
themes:
  currency: {resource: currencies.csv}
food_security:
  adm2_in_level1: [COD]
  adm_ignore_patterns: [idp, refugee]
fuzzy_match:
  threshold: 0.85
`

func TestParseMappings(t *testing.T) {
	m, err := ParseMappings([]byte(sampleMappings))
	if err != nil {
		t.Fatalf("ParseMappings() error = %v", err)
	}

	if got := strings.Join(m.HAPICountries, ","); got != "AFG,COD" {
		t.Errorf("HAPICountries = %q, want %q", got, "AFG,COD")
	}
	if m.OrphanAdmin2s["AF9901"] != "AFG" {
		t.Errorf("OrphanAdmin2s[AF9901] = %q, want AFG", m.OrphanAdmin2s["AF9901"])
	}
	if m.CommitLimit != 500 {
		t.Errorf("CommitLimit = %d, want 500", m.CommitLimit)
	}
	if len(m.Sectors) != 2 || m.Sectors[1].Code != "HEA" {
		t.Errorf("Sectors = %+v", m.Sectors)
	}
	if m.Reference.Orgs.Dataset != "global-organisations" {
		t.Errorf("Reference.Orgs.Dataset = %q", m.Reference.Orgs.Dataset)
	}
	if got := m.Theme("currency").Resource; got != "currencies.csv" {
		t.Errorf("Theme(currency).Resource = %q, want currencies.csv", got)
	}
	if got := m.Theme("funding"); got != (ThemeDataset{}) {
		t.Errorf("Theme(funding) = %+v, want zero", got)
	}
	if m.FuzzyMatch.Threshold != 0.85 || m.FuzzyMatch.StrictThreshold != 0 {
		t.Errorf("FuzzyMatch = %+v, want threshold 0.85", m.FuzzyMatch)
	}
}

func TestParseMappings_UnknownKey(t *testing.T) {
	_, err := ParseMappings([]byte("hapi_countries: [AFG]\nhapi_countrys: [COD]\n"))
	if err == nil {
		t.Fatal("ParseMappings() expected error for unknown key")
	}
}

func TestParseMappings_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		mention string
	}{
		{"no countries", "commit_limit: 10\n", "hapi_countries is empty"},
		{"bad country", "hapi_countries: [AFGH]\n", `"AFGH" is not an iso3 code`},
		{"bad orphan", "hapi_countries: [AFG]\norphan_admin2s: {AF9901: Afghanistan}\n", "orphan_admin2s: AF9901"},
		{"negative limit", "hapi_countries: [AFG]\ncommit_limit: -1\n", "commit_limit"},
		{"duplicate sector", "hapi_countries: [AFG]\nsectors: [{code: FSC}, {code: FSC}]\n", "duplicate code FSC"},
		{"blank sector", "hapi_countries: [AFG]\nsectors: [{name: Health}]\n", "sectors[0] has no code"},
		{"fuzzy threshold", "hapi_countries: [AFG]\nfuzzy_match: {threshold: 1.5}\n", "fuzzy_match thresholds"},
		{"dangling alias", "hapi_countries: [AFG]\norg_types: [{code: \"437\"}]\norg_type_map: {un: \"447\"}\n", "maps to unknown code 447"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseMappings([]byte(tt.yaml))
			if err == nil {
				t.Fatal("ParseMappings() expected error")
			}
			if !strings.Contains(err.Error(), tt.mention) {
				t.Errorf("error should mention %q: %v", tt.mention, err)
			}
		})
	}
}

func TestLoadMappings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipelines.yaml")
	if err := os.WriteFile(path, []byte(sampleMappings), 0o600); err != nil {
		t.Fatal(err)
	}
	m, err := LoadMappings(path)
	if err != nil {
		t.Fatalf("LoadMappings() error = %v", err)
	}
	if len(m.HAPICountries) != 2 {
		t.Errorf("HAPICountries = %v", m.HAPICountries)
	}

	if _, err := LoadMappings(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadMappings() expected error for a missing file")
	}
}

func TestFoodSecurity_Ignored(t *testing.T) {
	f := FoodSecurity{AdmIgnorePatterns: []string{"idp", "Refugee"}}
	tests := []struct {
		name string
		want bool
	}{
		{"IDP sites", true},
		{"Refugee camps", true},
		{"refugees", true},
		{"Kabul", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := f.Ignored(tt.name); got != tt.want {
				t.Errorf("Ignored(%q) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestLoadMappings_Shipped(t *testing.T) {
	m, err := LoadMappings(filepath.Join("..", "..", "config", "pipelines.yaml"))
	if err != nil {
		t.Fatalf("LoadMappings() error = %v", err)
	}
	if m.Reference.Countries.Dataset == "" {
		t.Error("Reference.Countries.Dataset is empty")
	}
	if got := m.SectorMap["wash"]; got != "WSH" {
		t.Errorf("SectorMap[wash] = %q, want %q", got, "WSH")
	}
}
