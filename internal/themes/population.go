package themes

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/JonMunkholm/hapi-pipelines/internal/admin"
	"github.com/JonMunkholm/hapi-pipelines/internal/hdx"
	"github.com/JonMunkholm/hapi-pipelines/internal/store"
	"github.com/JonMunkholm/hapi-pipelines/internal/tabular"
)

const (
	populationDataset  = "cod-ps-global"
	populationPipeline = "Population"
)

// Population resource tags.
const (
	tagGender     = "#gender"
	tagAgeRange   = "#age+range"
	tagAgeMin     = "#age+min"
	tagAgeMax     = "#age+max"
	tagPopulation = "#population"
	tagYear       = "#date+year"
	tagAdm1Name   = "#adm1+name"
	tagAdm2Name   = "#adm2+name"
)

func init() {
	Register(populationTheme{})
}

// populationTheme loads the common operational dataset population tables,
// one resource per admin level.
type populationTheme struct{}

func (populationTheme) Name() string { return "population" }

func (p populationTheme) Populate(ctx context.Context, env *Env) error {
	logger := env.logger().With("theme", p.Name())
	name := env.dataset(p.Name(), populationDataset)
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
		level, ok := populationLevel(res.Name)
		if !ok {
			continue
		}
		if err := env.Metadata.Add(ctx, ds, res); err != nil {
			return err
		}
		n, err := p.populateResource(ctx, env, ds.Name, res, level)
		if err != nil {
			return fmt.Errorf("population resource %s: %w", res.Name, err)
		}
		total += n
		env.progress(p.Name(), n)
	}
	logger.Info("table populated", "rows", total)
	return nil
}

// populationLevel reads the admin level from the last character of the
// resource name stem: "afg_pop_adm1.csv" is admin 1.
func populationLevel(resourceName string) (admin.Level, bool) {
	stem, _, _ := strings.Cut(resourceName, ".")
	if stem == "" {
		return 0, false
	}
	switch stem[len(stem)-1] {
	case '0':
		return admin.National, true
	case '1':
		return admin.AdminOne, true
	case '2':
		return admin.AdminTwo, true
	}
	return 0, false
}

func (p populationTheme) populateResource(ctx context.Context, env *Env, dataset string, res hdx.Resource, level admin.Level) (int, error) {
	table, err := env.Reader.Table(ctx, res.URL, res.Options())
	if err != nil {
		return 0, err
	}
	defer table.Close()
	f := table.Fields

	var recs []store.Record
	for {
		row, err := table.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, err
		}
		iso3 := strings.ToUpper(f.Value(row, admin.TagRowCountry))
		if !env.Allowed(p.Name(), iso3) {
			continue
		}
		admin2, ok := populationAdmin2(env, f, row, level, iso3, dataset)
		if !ok {
			continue
		}

		value := f.Value(row, tagPopulation)
		population, ok := tabular.Int(value)
		if !ok {
			env.Errors.Add(populationPipeline, dataset, fmt.Sprintf("invalid population %q in %s", value, iso3))
			continue
		}
		year, err := strconv.Atoi(f.Value(row, tagYear))
		if err != nil {
			env.Errors.Add(populationPipeline, dataset, fmt.Sprintf("invalid reference year %q in %s", f.Value(row, tagYear), iso3))
			continue
		}

		recs = append(recs, store.Population{
			ResourceHDXID: res.ID,
			Admin2Ref:     admin2,
			ProviderAdmin: store.ProviderAdmin{
				Admin1Name: f.Value(row, tagAdm1Name),
				Admin2Name: f.Value(row, tagAdm2Name),
			},
			Gender:     f.Value(row, tagGender),
			AgeRange:   f.Value(row, tagAgeRange),
			MinAge:     tabular.Int4(f.Value(row, tagAgeMin)),
			MaxAge:     tabular.Int4(f.Value(row, tagAgeMax)),
			Population: population,
			Period:     yearPeriod(year),
		})
	}

	if len(recs) == 0 {
		return 0, nil
	}
	if err := env.Session.BatchPopulate(ctx, recs); err != nil {
		return 0, err
	}
	return len(recs), nil
}

// populationAdmin2 pins a row to the admin2 standing for its code. A code
// missing from the boundaries falls back to the country's unspecified
// admin2; national rows have no fallback.
func populationAdmin2(env *Env, f tabular.Fields, row tabular.Row, level admin.Level, iso3, dataset string) (int64, bool) {
	code := iso3
	switch level {
	case admin.AdminOne:
		code = f.Value(row, admin.TagRowAdmin1)
	case admin.AdminTwo:
		code = f.Value(row, admin.TagRowAdmin2)
	}
	if admin2Code, err := admin.Admin2CodeForLevel(code, level); err == nil {
		if ref, ok := env.Admins.Admin2(admin2Code); ok {
			return ref.ID, true
		}
	}

	switch level {
	case admin.AdminOne:
		code = admin.Admin1ToLocationConnector(iso3)
	case admin.AdminTwo:
		code = admin.Admin2ToLocationConnector(iso3)
	}
	id, err := env.Admins.Admin2Ref(level, code, dataset, populationPipeline)
	if err != nil {
		return 0, false
	}
	return id, true
}

// yearPeriod spans a calendar year, ending at its last second.
func yearPeriod(year int) store.Period {
	return store.Period{
		Start: tabular.TimestampOf(time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)),
		End:   tabular.TimestampOf(time.Date(year, time.December, 31, 23, 59, 59, 0, time.UTC)),
	}
}
