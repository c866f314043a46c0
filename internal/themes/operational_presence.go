package themes

import (
	"context"
	"fmt"
	"slices"

	"github.com/JonMunkholm/hapi-pipelines/internal/reporting"
	"github.com/JonMunkholm/hapi-pipelines/internal/store"
	"github.com/JonMunkholm/hapi-pipelines/internal/tabular"
)

func init() {
	Register(&Uploader{
		Theme:     "operational_presence",
		Suffix:    "operational-presence",
		MaxLevel:  Admin2Level,
		Extractor: operationalPresence{},
	})
}

type operationalPresence struct{}

// CheckHeaders requires the organisation and sector columns.
func (operationalPresence) CheckHeaders(t *tabular.Table) error {
	for _, col := range []string{"org_name", "sector_code"} {
		if !slices.Contains(t.Headers, col) {
			return fmt.Errorf("missing column %s: %w", col, ErrConfiguration)
		}
	}
	return nil
}

// BeforeWrite writes the organisations registered so far, which the
// operational_presence rows reference.
func (operationalPresence) BeforeWrite(ctx context.Context, env *Env) error {
	if _, err := env.Orgs.Flush(ctx, env.Session); err != nil {
		return err
	}
	return nil
}

func (operationalPresence) Extract(rc *RowContext) ([]store.Record, error) {
	env := rc.Env
	name := rc.Get("org_name")
	acronym := rc.Get("org_acronym")
	text := name
	if text == "" {
		text = acronym
	}
	if text == "" {
		rc.Report("blank organisation name", reporting.Warning())
		return nil, nil
	}

	sector, ok := resolveSector(rc, rc.Get("sector_code"), rc.Get("sector_name"))
	if !ok {
		return nil, nil
	}

	info := env.Orgs.Info(text, rc.Country)
	data := env.Orgs.Complete(info, acronym, rc.Get("org_type_description"), rc.Dataset)

	return []store.Record{store.OperationalPresence{
		ResourceHDXID: rc.ResourceID,
		Admin2Ref:     rc.Admin2Ref,
		ProviderAdmin: rc.Provider,
		OrgAcronym:    data.Acronym,
		OrgName:       data.Name,
		SectorCode:    sector,
		Period:        rc.Period,
	}}, nil
}

// resolveSector maps a sector code, or failing that a sector name, to an
// official code. Only a value that nothing matched is reported.
func resolveSector(rc *RowContext, code, name string) (string, bool) {
	sectors := rc.Env.Sectors
	switch {
	case code != "" && name != "":
		if c, ok := sectors.Match(code, false); ok {
			return c, true
		}
		if c, ok := sectors.Resolve(name, true); ok {
			return c, true
		}
	case code != "":
		if c, ok := sectors.Resolve(code, false); ok {
			return c, true
		}
	case name != "":
		if c, ok := sectors.Resolve(name, true); ok {
			return c, true
		}
	}
	value := code
	if value == "" {
		value = name
	}
	rc.Env.Errors.AddMissingValue(rc.Pipeline, rc.Dataset, "sector", value)
	return "", false
}
