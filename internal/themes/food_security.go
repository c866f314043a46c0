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
	"github.com/JonMunkholm/hapi-pipelines/internal/config"
	"github.com/JonMunkholm/hapi-pipelines/internal/hdx"
	"github.com/JonMunkholm/hapi-pipelines/internal/reporting"
	"github.com/JonMunkholm/hapi-pipelines/internal/store"
	"github.com/JonMunkholm/hapi-pipelines/internal/tabular"
)

const (
	foodSecurityDataset  = "global-acute-food-insecurity-country-data"
	foodSecurityPipeline = "FoodSecurity"
	notGiven             = "NOT GIVEN"
)

// Food insecurity resource columns.
const (
	colAnalysisDate = "Date of analysis"
	colCountry      = "Country"
	colLevel1       = "Level 1"
	colArea         = "Area"
	colValidity     = "Validity period"
	colFrom         = "From"
	colTo           = "To"
	colPhase        = "Phase"
	colNumber       = "Number"
	colPercentage   = "Percentage"
)

func init() {
	Register(foodSecurityTheme{})
}

// foodSecurityTheme loads IPC phase populations. Providers write admin
// names, not codes, and use the "Level 1" and "Area" columns loosely, so
// names are matched to pcodes per country layout.
type foodSecurityTheme struct{}

func (foodSecurityTheme) Name() string { return "food_security" }

// foodSecurityLevel reads the admin level from a resource name. Only
// "long_latest" resources are loaded.
func foodSecurityLevel(resourceName string) (admin.Level, bool) {
	if !strings.Contains(resourceName, "long_latest") {
		return 0, false
	}
	switch {
	case strings.Contains(resourceName, "national"):
		return admin.National, true
	case strings.Contains(resourceName, "level1"):
		return admin.AdminOne, true
	case strings.Contains(resourceName, "area"):
		return admin.AdminTwo, true
	}
	return 0, false
}

type adminInfo struct {
	country  string
	name     string
	fullName string
	pcode    string
	exact    bool
}

// foodSecurityRun is the state of one load.
type foodSecurityRun struct {
	env     *Env
	quirks  config.FoodSecurity
	dataset string
	status  map[string]string
}

func (t foodSecurityTheme) Populate(ctx context.Context, env *Env) error {
	logger := env.logger().With("theme", t.Name())
	name := env.dataset(t.Name(), foodSecurityDataset)
	logger.Info("populating table", "dataset", name)

	ds, err := env.Reader.ReadDataset(ctx, name)
	if err != nil {
		return fmt.Errorf("read dataset %s: %w", name, err)
	}
	if err := env.Metadata.AddDataset(ctx, ds); err != nil {
		return err
	}

	run := &foodSecurityRun{env: env, dataset: ds.Name, status: make(map[string]string)}
	if env.Mappings != nil {
		run.quirks = env.Mappings.FoodSecurity
	}

	total := 0
	for _, res := range ds.Resources {
		level, ok := foodSecurityLevel(res.Name)
		if !ok {
			continue
		}
		if err := env.Metadata.Add(ctx, ds, res); err != nil {
			return err
		}
		n, err := run.populateResource(ctx, res, level)
		if err != nil {
			return fmt.Errorf("food security resource %s: %w", res.Name, err)
		}
		total += n
		env.progress(t.Name(), n)
	}

	logger.Info("country status", "dataset", ds.Name)
	countries := make([]string, 0, len(run.status))
	for c := range run.status {
		countries = append(countries, c)
	}
	sort.Strings(countries)
	for _, c := range countries {
		logger.Info(c+": "+run.status[c], "country", c)
	}
	logger.Info("table populated", "rows", total)
	return nil
}

func (r *foodSecurityRun) populateResource(ctx context.Context, res hdx.Resource, level admin.Level) (int, error) {
	env := r.env
	table, err := env.Reader.Table(ctx, res.URL, res.Options())
	if err != nil {
		return 0, err
	}
	defer table.Close()

	var recs []store.Record
	for {
		row, err := table.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, err
		}
		if strings.Contains(row.Get(colAnalysisDate), "#") {
			continue
		}
		iso3 := strings.ToUpper(row.Get(colCountry))
		if env.Locations != nil && !env.Locations.IsHAPI(iso3) {
			continue
		}
		if !env.Allowed("food_security", iso3) {
			continue
		}
		provider := store.ProviderAdmin{
			Admin1Name: row.Get(colLevel1),
			Admin2Name: row.Get(colArea),
		}

		var id int64
		ok := false
		if level == admin.National {
			id, ok = r.admin2(admin.National, iso3)
		} else {
			id, ok = r.subnational(iso3, level, row)
		}
		if !ok {
			if id, ok = r.admin2(admin.National, iso3); !ok {
				continue
			}
		}

		number := row.Get(colNumber)
		population, valid := tabular.Int(number)
		if !valid {
			r.report(fmt.Sprintf("invalid Number %q in %s", number, iso3))
			continue
		}
		fraction, _ := tabular.Float(row.Get(colPercentage))

		recs = append(recs, store.FoodSecurity{
			ResourceHDXID:             res.ID,
			Admin2Ref:                 id,
			ProviderAdmin:             provider,
			IPCPhase:                  row.Get(colPhase),
			IPCType:                   row.Get(colValidity),
			PopulationInPhase:         population,
			PopulationFractionInPhase: fraction,
			Period: store.Period{
				Start: tabular.Timestamp(row.Get(colFrom), false),
				End:   tabular.Timestamp(row.Get(colTo), false),
			},
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

// subnational pins a row of a level1 or area resource following the
// country's layout.
func (r *foodSecurityRun) subnational(iso3 string, level admin.Level, row tabular.Row) (int64, bool) {
	q := r.quirks

	if level == admin.AdminTwo && slices.Contains(q.Adm1Only, iso3) {
		r.status[iso3] = "Level 1: Admin 1, Area: ignored"
		info := r.adminOneInfo(iso3, row.Get(colLevel1))
		return r.adminOneRef(info)
	}

	if slices.Contains(q.Adm2Only, iso3) {
		if level == admin.AdminOne {
			return 0, false
		}
		r.status[iso3] = "Level 1: ignored, Area: Admin 2"
		return r.adminTwoRef(row.Get(colArea), adminInfo{country: iso3, name: notGiven})
	}

	if slices.Contains(q.Adm2InLevel1, iso3) {
		r.status[iso3] = "Level 1: Admin 2, Area: ignored"
		return r.adminTwoRef(row.Get(colLevel1), adminInfo{country: iso3, name: notGiven})
	}

	if slices.Contains(q.Adm1InArea, iso3) {
		if level == admin.AdminOne {
			return 0, false
		}
		r.status[iso3] = "Level 1: ignored, Area: Admin 1"
		return r.adminOneRef(r.adminOneInfo(iso3, row.Get(colArea)))
	}

	adminOneName := row.Get(colLevel1)
	if adminOneName == "" {
		if level == admin.AdminOne {
			r.report(fmt.Sprintf("Admin 1: ignoring blank Level 1 name in %s", iso3), reporting.Warning())
			return 0, false
		}
		// "Area" holds admin 1 when "Level 1" is blank.
		area := row.Get(colArea)
		if area == "" {
			r.report(fmt.Sprintf("Admin 1: ignoring blank Area name in %s", iso3), reporting.Warning())
			return 0, false
		}
		info := r.adminOneInfo(iso3, area)
		if info == nil {
			return 0, false
		}
		r.status[iso3] = "Level 1: ignored, Area: Admin 1"
		return r.adminOneRef(info)
	}

	info := r.adminOneInfo(iso3, adminOneName)
	if info == nil {
		return 0, false
	}
	if slices.Contains(q.Adm1Only, iso3) {
		r.status[iso3] = "Level 1: Admin 1, Area: ignored"
	} else {
		r.status[iso3] = "Level 1: Admin 1, Area: Admin 2"
	}
	if level == admin.AdminOne {
		return r.adminOneRef(info)
	}
	return r.adminTwoRef(row.Get(colArea), *info)
}

// adminOneInfo matches an admin 1 name. It returns nil for names matching
// an ignore pattern.
func (r *foodSecurityRun) adminOneInfo(iso3, name string) *adminInfo {
	fullName := iso3 + "|" + name
	if r.quirks.Ignored(name) {
		r.report("Admin 1: ignoring "+fullName, reporting.Warning())
		return nil
	}
	pcode, exact, _ := r.env.Admins.Admin1Names().PCode(iso3, name, "")
	return &adminInfo{country: iso3, name: name, fullName: fullName, pcode: pcode, exact: exact}
}

func (r *foodSecurityRun) adminOneRef(info *adminInfo) (int64, bool) {
	if info == nil {
		return 0, false
	}
	if info.pcode == "" {
		r.report(fmt.Sprintf("Admin 1: could not match %s!", info.fullName), reporting.Warning())
		return 0, false
	}
	if !info.exact {
		name, _ := r.env.Admins.Admin1Names().Name(info.country, info.pcode)
		if slices.Contains(r.quirks.Adm1Errors, info.name) {
			r.report(fmt.Sprintf("Admin 1: ignoring erroneous %s match to %s %s!", info.fullName, name, info.pcode))
			return 0, false
		}
		r.report(fmt.Sprintf("Admin 1: matching %s to %s %s", info.fullName, name, info.pcode), reporting.Warning())
	}
	return r.admin2(admin.AdminOne, info.pcode)
}

// adminTwoRef matches an admin 2 name under parent.
func (r *foodSecurityRun) adminTwoRef(name string, parent adminInfo) (int64, bool) {
	if name == "" {
		r.report(fmt.Sprintf("Admin 1: ignoring blank Area name in %s|%s", parent.country, parent.name), reporting.Warning())
		return 0, false
	}
	fullName := parent.country + "|" + parent.name + "|" + name
	if r.quirks.Ignored(name) {
		r.report("Admin 2: ignoring "+fullName, reporting.Warning())
		return 0, false
	}
	pcode, exact, _ := r.env.Admins.Admin2Names().PCode(parent.country, name, parent.pcode)
	if pcode == "" {
		r.report(fmt.Sprintf("Admin 2: could not match %s!", fullName), reporting.Warning())
		return 0, false
	}
	if !exact {
		matched, _ := r.env.Admins.Admin2Names().Name(parent.country, pcode)
		if slices.Contains(r.quirks.Adm2Errors, name) {
			r.report(fmt.Sprintf("Admin 2: ignoring erroneous %s match to %s %s!", fullName, matched, pcode))
			return 0, false
		}
		r.report(fmt.Sprintf("Admin 2: matching %s to %s %s", fullName, matched, pcode), reporting.Warning())
	}
	return r.admin2(admin.AdminTwo, pcode)
}

func (r *foodSecurityRun) admin2(level admin.Level, code string) (int64, bool) {
	id, err := r.env.Admins.Admin2Ref(level, code, r.dataset, foodSecurityPipeline)
	if err != nil {
		return 0, false
	}
	return id, true
}

func (r *foodSecurityRun) report(text string, opts ...reporting.Option) {
	r.env.Errors.Add(foodSecurityPipeline, r.dataset, text, opts...)
}
