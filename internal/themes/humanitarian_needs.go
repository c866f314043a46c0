package themes

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/JonMunkholm/hapi-pipelines/internal/admin"
	"github.com/JonMunkholm/hapi-pipelines/internal/hdx"
	"github.com/JonMunkholm/hapi-pipelines/internal/store"
)

const (
	humanitarianNeedsDataset  = "global-hpc-hno"
	humanitarianNeedsPipeline = "HumanitarianNeeds"
)

// needsStatuses maps each population column to the status it stands for.
var needsStatuses = []struct {
	column string
	status string
}{
	{"Population", "all"},
	{"Affected", "AFF"},
	{"In Need", "INN"},
	{"Targeted", "TGT"},
	{"Reached", "REA"},
}

func init() {
	Register(humanitarianNeedsTheme{})
}

// humanitarianNeedsTheme loads one resource per plan year. Each row yields
// a record per populated status column.
type humanitarianNeedsTheme struct{}

func (humanitarianNeedsTheme) Name() string { return "humanitarian_needs" }

func (t humanitarianNeedsTheme) Populate(ctx context.Context, env *Env) error {
	logger := env.logger().With("theme", t.Name())
	name := env.dataset(t.Name(), humanitarianNeedsDataset)
	logger.Info("populating table", "dataset", name)

	ds, err := env.Reader.ReadDataset(ctx, name)
	if err != nil {
		return fmt.Errorf("read dataset %s: %w", name, err)
	}
	if err := env.Metadata.AddDataset(ctx, ds); err != nil {
		return err
	}

	total := 0
	for _, res := range ds.Resources {
		if err := env.Metadata.Add(ctx, ds, res); err != nil {
			return err
		}
		n, err := t.populateResource(ctx, env, ds.Name, res)
		if err != nil {
			return fmt.Errorf("humanitarian needs resource %s: %w", res.Name, err)
		}
		total += n
		env.progress(t.Name(), n)
	}
	logger.Info("table populated", "rows", total)
	return nil
}

// planYear reads the year from the last four characters of a resource
// name, e.g. "hpc_hno_2024".
func planYear(resourceName string) (int, error) {
	if len(resourceName) < 4 {
		return 0, fmt.Errorf("resource name %q has no year: %w", resourceName, ErrConfiguration)
	}
	year, err := strconv.Atoi(resourceName[len(resourceName)-4:])
	if err != nil {
		return 0, fmt.Errorf("resource name %q has no year: %w", resourceName, ErrConfiguration)
	}
	return year, nil
}

func (t humanitarianNeedsTheme) populateResource(ctx context.Context, env *Env, dataset string, res hdx.Resource) (int, error) {
	year, err := planYear(res.Name)
	if err != nil {
		env.Errors.Add(humanitarianNeedsPipeline, dataset, err.Error())
		return 0, nil
	}
	period := yearPeriod(year)

	table, err := env.Reader.Table(ctx, res.URL, res.Options())
	if err != nil {
		return 0, err
	}
	defer table.Close()
	if !table.Fields.Has(admin.TagRowCountry) {
		env.Errors.Add(humanitarianNeedsPipeline, dataset,
			fmt.Sprintf("resource %s skipped: no %s tag: %v", res.Name, admin.TagRowCountry, ErrConfiguration))
		return 0, nil
	}
	maxLevel := admin.MaxLevelFromTags(table.Tags)

	var recs []store.Record
	for {
		row, err := table.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, err
		}
		if row.Get("Error") != "" {
			continue
		}
		rc := &RowContext{
			Fields:     table.Fields,
			Row:        row,
			ResourceID: res.ID,
			Dataset:    dataset,
			Pipeline:   humanitarianNeedsPipeline,
			Country:    strings.ToUpper(table.Fields.Value(row, admin.TagRowCountry)),
			Period:     period,
			Env:        env,
		}
		if !env.Allowed(t.Name(), rc.Country) {
			continue
		}
		id, err := env.Admins.Admin2RefFromRow(rc.Fields, row, maxLevel, dataset, humanitarianNeedsPipeline)
		if err != nil {
			continue
		}
		// The Sector column holds codes or names; name lookup tries both.
		sector, ok := resolveSector(rc, "", row.Get("Sector"))
		if !ok {
			continue
		}

		for _, s := range needsStatuses {
			value := row.Get(s.column)
			if value == "" {
				continue
			}
			population, ok := parsePopulation(rc, s.column)
			if !ok {
				continue
			}
			recs = append(recs, store.HumanitarianNeeds{
				ResourceHDXID: res.ID,
				Admin2Ref:     id,
				ProviderAdmin: store.ProviderAdmin{
					Admin1Name: row.Get("Admin 1 Name"),
					Admin2Name: row.Get("Admin 2 Name"),
				},
				SectorCode:       sector,
				Category:         row.Get("Category"),
				PopulationStatus: s.status,
				Population:       population,
				Period:           period,
			})
		}
	}

	if len(recs) == 0 {
		return 0, nil
	}
	if err := env.Session.BatchPopulate(ctx, recs); err != nil {
		return 0, err
	}
	return len(recs), nil
}
