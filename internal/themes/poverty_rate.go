package themes

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sort"
	"strings"

	"github.com/JonMunkholm/hapi-pipelines/internal/admin"
	"github.com/JonMunkholm/hapi-pipelines/internal/hdx"
	"github.com/JonMunkholm/hapi-pipelines/internal/store"
	"github.com/JonMunkholm/hapi-pipelines/internal/tabular"
)

const (
	povertyRateDataset  = "global-mpi"
	povertyRatePipeline = "PovertyRate"
)

func init() {
	Register(povertyRateTheme{})
}

// povertyRateTheme loads multidimensional poverty indices at admin 1. Only
// the first two resources are read, the second one first. A key already
// written from the other resource is not written again.
type povertyRateTheme struct{}

func (povertyRateTheme) Name() string { return "poverty_rate" }

type povertyKey struct {
	admin1Ref    int64
	providerName string
	start, end   string
}

type povertyRun struct {
	env     *Env
	dataset string
	// written maps a key to the resource it was first written from.
	written map[povertyKey]string
	// nulls lists, per country, the admin names with a blank value.
	nulls map[string][]string
}

func (t povertyRateTheme) Populate(ctx context.Context, env *Env) error {
	logger := env.logger().With("theme", t.Name())
	name := env.dataset(t.Name(), povertyRateDataset)
	logger.Info("populating table", "dataset", name)

	ds, err := env.Reader.ReadDataset(ctx, name)
	if err != nil {
		return fmt.Errorf("read dataset %s: %w", name, err)
	}
	if err := env.Metadata.AddDataset(ctx, ds); err != nil {
		return err
	}

	run := &povertyRun{
		env:     env,
		dataset: ds.Name,
		written: make(map[povertyKey]string),
		nulls:   make(map[string][]string),
	}
	var recs []store.Record
	for i := min(2, len(ds.Resources)) - 1; i >= 0; i-- {
		res := ds.Resources[i]
		if err := env.Metadata.Add(ctx, ds, res); err != nil {
			return err
		}
		out, err := run.readResource(ctx, res)
		if err != nil {
			return fmt.Errorf("poverty rate resource %s: %w", res.Name, err)
		}
		recs = append(recs, out...)
	}

	if len(recs) > 0 {
		if err := env.Session.BatchPopulate(ctx, recs); err != nil {
			return fmt.Errorf("write poverty rate: %w", err)
		}
	}
	env.progress(t.Name(), len(recs))

	countries := make([]string, 0, len(run.nulls))
	for c := range run.nulls {
		countries = append(countries, c)
	}
	sort.Strings(countries)
	for _, c := range countries {
		env.Errors.AddMultiValued(povertyRatePipeline, ds.Name, "null values set to 0.0 in "+c, run.nulls[c])
	}
	logger.Info("table populated", "rows", len(recs))
	return nil
}

func (r *povertyRun) readResource(ctx context.Context, res hdx.Resource) ([]store.Record, error) {
	env := r.env
	table, err := env.Reader.Table(ctx, res.URL, res.Options())
	if err != nil {
		return nil, err
	}
	defer table.Close()

	var recs []store.Record
	for {
		row, err := table.Next()
		if errors.Is(err, io.EOF) {
			return recs, nil
		}
		if err != nil {
			return nil, err
		}
		iso3 := strings.ToUpper(table.Fields.Value(row, admin.TagRowCountry))
		if !env.Allowed("poverty_rate", iso3) {
			continue
		}
		id, err := env.Admins.Admin1RefFromRow(table.Fields, row, Admin1Level, r.dataset, povertyRatePipeline)
		if err != nil {
			continue
		}
		providerName := row.Get("Admin 1 Name")
		period := store.Period{
			Start: tabular.Timestamp(row.Get("Start Date"), false),
			End:   tabular.Timestamp(row.Get("End Date"), false),
		}
		key := povertyKey{
			admin1Ref:    id,
			providerName: providerName,
			start:        row.Get("Start Date"),
			end:          row.Get("End Date"),
		}
		if first, ok := r.written[key]; ok {
			if first != res.Name {
				continue
			}
			env.Errors.Add(povertyRatePipeline, r.dataset,
				fmt.Sprintf("duplicate row in resource %s for %s %s %s-%s", res.Name, iso3, providerName, key.start, key.end))
			continue
		}
		r.written[key] = res.Name

		adminName := providerName
		if adminName == "" {
			adminName = iso3
		}
		value := func(col string) float64 {
			v := row.Get(col)
			if v == "" {
				if !slices.Contains(r.nulls[iso3], adminName) {
					r.nulls[iso3] = append(r.nulls[iso3], adminName)
				}
				return 0
			}
			f, _ := tabular.Float(v)
			return f
		}

		recs = append(recs, store.PovertyRate{
			ResourceHDXID:          res.ID,
			Admin1Ref:              id,
			ProviderAdmin1Name:     providerName,
			MPI:                    value("MPI"),
			HeadcountRatio:         value("Headcount Ratio"),
			IntensityOfDeprivation: value("Intensity of Deprivation"),
			Vulnerable:             value("Vulnerable to Poverty"),
			InSeverePoverty:        value("In Severe Poverty"),
			Period:                 period,
		})
	}
}
