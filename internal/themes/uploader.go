package themes

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/JonMunkholm/hapi-pipelines/internal/admin"
	"github.com/JonMunkholm/hapi-pipelines/internal/hdx"
	"github.com/JonMunkholm/hapi-pipelines/internal/reporting"
	"github.com/JonMunkholm/hapi-pipelines/internal/store"
	"github.com/JonMunkholm/hapi-pipelines/internal/tabular"
)

// Admin resolution depth of an Uploader.
const (
	// NoAdmin leaves rows unresolved; the extractor pins them itself.
	NoAdmin = -1
	// LocationLevel resolves LocationHeaders to location refs.
	LocationLevel = 0
	Admin1Level   = 1
	Admin2Level   = 2
)

// AllResources makes an Uploader read every resource of its dataset.
const AllResources = -1

// Columns shared by every hdx-hapi-* resource.
const (
	colError         = "error"
	colResourceID    = "resource_hdx_id"
	colDatasetID     = "dataset_hdx_id"
	colLocation      = "location_code"
	colPeriodStart   = "reference_period_start"
	colPeriodEnd     = "reference_period_end"
	colProviderAdm1  = "provider_admin1_name"
	colProviderAdm2  = "provider_admin2_name"
	datasetPrefix    = "hdx-hapi-"
	duplicateMessage = "%d duplicate rows"
)

// RowContext is what an extractor sees for one resolved row.
type RowContext struct {
	Fields     tabular.Fields
	Row        tabular.Row
	ResourceID string
	// Dataset names the source dataset in messages: its stub when known,
	// else its id.
	Dataset  string
	Pipeline string
	Country  string

	Admin1Ref int64
	Admin2Ref int64
	// LocationRefs maps "origin_location_ref"-style keys to location ids.
	LocationRefs map[string]int64

	Provider store.ProviderAdmin
	Period   store.Period

	Env *Env
}

// Get returns the trimmed value of a column.
func (rc *RowContext) Get(header string) string {
	return rc.Row.Get(header)
}

// Report records a message against the row's dataset.
func (rc *RowContext) Report(text string, opts ...reporting.Option) {
	rc.Env.Errors.Add(rc.Pipeline, rc.Dataset, text, opts...)
}

// Extractor turns a resolved row into records. Returning no records skips
// the row; an error aborts the theme.
type Extractor interface {
	Extract(rc *RowContext) ([]store.Record, error)
}

// ExtractFunc adapts a function to Extractor.
type ExtractFunc func(rc *RowContext) ([]store.Record, error)

func (f ExtractFunc) Extract(rc *RowContext) ([]store.Record, error) { return f(rc) }

// HeaderChecker is implemented by extractors that need columns to be
// present. An error wrapping ErrConfiguration skips the resource.
type HeaderChecker interface {
	CheckHeaders(t *tabular.Table) error
}

// PreWriter is implemented by extractors whose records reference rows
// kept outside the batch, such as organisations. BeforeWrite runs before
// each resource's records are written.
type PreWriter interface {
	BeforeWrite(ctx context.Context, env *Env) error
}

// Uploader loads a theme from its hdx-hapi-{Suffix} dataset.
type Uploader struct {
	Theme  string
	Suffix string

	// EndResource is how many leading resources to read: 0 means one,
	// AllResources means every resource.
	EndResource int

	// MaxLevel is Admin2Level, Admin1Level, LocationLevel or NoAdmin.
	MaxLevel int

	// LocationHeaders lists the location code columns. The first one is
	// the row's country. Defaults to location_code.
	LocationHeaders []string

	// Accept filters resources by name when set.
	Accept func(hdx.Resource) bool

	Extractor Extractor
}

func (u *Uploader) Name() string { return u.Theme }

func (u *Uploader) pipeline() string { return PipelineName(u.Suffix) }

func (u *Uploader) locationHeaders() []string {
	if len(u.LocationHeaders) == 0 {
		return []string{colLocation}
	}
	return u.LocationHeaders
}

func (u *Uploader) resources(ds *hdx.Dataset) []hdx.Resource {
	var list []hdx.Resource
	for _, r := range ds.Resources {
		if u.Accept == nil || u.Accept(r) {
			list = append(list, r)
		}
	}
	end := u.EndResource
	if end == 0 {
		end = 1
	}
	if end == AllResources || end > len(list) {
		end = len(list)
	}
	return list[:end]
}

// Populate reads the theme's resources and writes their records, one
// batch per resource.
func (u *Uploader) Populate(ctx context.Context, env *Env) error {
	logger := env.logger().With("theme", u.Theme)
	name := env.dataset(u.Theme, datasetPrefix+u.Suffix)
	logger.Info("populating table", "dataset", name)

	ds, err := env.Reader.ReadDataset(ctx, name)
	if err != nil {
		return fmt.Errorf("read dataset %s: %w", name, err)
	}

	ignored := make(map[string]bool)
	total := 0
	for _, res := range u.resources(ds) {
		n, err := u.populateResource(ctx, env, ds, res, ignored)
		if err != nil {
			return fmt.Errorf("%s resource %s: %w", u.Theme, res.Name, err)
		}
		total += n
		env.progress(u.Theme, n)
	}
	logger.Info("table populated", "rows", total)
	return nil
}

func (u *Uploader) populateResource(ctx context.Context, env *Env, ds *hdx.Dataset, res hdx.Resource, ignored map[string]bool) (int, error) {
	pipeline := u.pipeline()
	table, err := env.Reader.Table(ctx, res.URL, res.Options())
	if err != nil {
		return 0, err
	}
	defer table.Close()

	if c, ok := u.Extractor.(HeaderChecker); ok {
		if err := c.CheckHeaders(table); err != nil {
			if errors.Is(err, ErrConfiguration) {
				env.Errors.Add(pipeline, ds.Name, fmt.Sprintf("resource %s skipped: %v", res.Name, err),
					reporting.Resource(res.Name), reporting.Publish())
				return 0, nil
			}
			return 0, err
		}
	}

	dedup := newDeduper()
	var recs []store.Record
	for {
		row, err := table.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, err
		}
		if row.Get(colError) != "" {
			continue
		}
		resourceID := row.Get(colResourceID)
		if ignored[resourceID] {
			continue
		}
		country := strings.ToUpper(row.Get(u.locationHeaders()[0]))
		if !env.Allowed(u.Theme, country) {
			continue
		}
		datasetID := row.Get(colDatasetID)
		if _, ok := env.Metadata.ResourceName(resourceID); !ok {
			known, err := u.register(ctx, env, datasetID, resourceID, country)
			if err != nil {
				return 0, err
			}
			if !known {
				ignored[resourceID] = true
				continue
			}
		}
		output := datasetID
		if name, ok := env.Metadata.DatasetName(datasetID); ok {
			output = name
		}

		rc := &RowContext{
			Fields:     table.Fields,
			Row:        row,
			ResourceID: resourceID,
			Dataset:    output,
			Pipeline:   pipeline,
			Country:    country,
			Period: store.Period{
				Start: tabular.Timestamp(row.Get(colPeriodStart), false),
				End:   tabular.Timestamp(row.Get(colPeriodEnd), true),
			},
			Env: env,
		}
		if !u.resolve(rc) {
			continue
		}
		out, err := u.Extractor.Extract(rc)
		if err != nil {
			return 0, err
		}
		for _, rec := range out {
			if dedup.seen(rec, output) {
				continue
			}
			recs = append(recs, rec)
		}
	}
	dedup.report(env.Errors, pipeline)

	if len(recs) == 0 {
		return 0, nil
	}
	if w, ok := u.Extractor.(PreWriter); ok {
		if err := w.BeforeWrite(ctx, env); err != nil {
			return 0, err
		}
	}
	if err := env.Session.BatchPopulate(ctx, recs); err != nil {
		return 0, err
	}
	return len(recs), nil
}

// register records a resource the run has not met yet. It returns false
// when the resource cannot be found, after reporting it.
func (u *Uploader) register(ctx context.Context, env *Env, datasetID, resourceID, country string) (bool, error) {
	pipeline := u.pipeline()
	ds, err := env.Reader.ReadDataset(ctx, datasetID)
	if errors.Is(err, hdx.ErrDatasetNotFound) {
		env.Errors.AddMissingValue(pipeline, datasetID, "dataset", datasetID)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read dataset %s: %w", datasetID, err)
	}
	res, ok := ds.ResourceByID(resourceID)
	if !ok {
		env.Errors.Add(pipeline, ds.Name,
			fmt.Sprintf("resource %s does not exist in dataset for %s", resourceID, country))
		return false, nil
	}
	if err := env.Metadata.Add(ctx, ds, res); err != nil {
		return false, err
	}
	return true, nil
}

// resolve fills the admin or location refs of rc. It returns false when
// the row cannot be pinned.
func (u *Uploader) resolve(rc *RowContext) bool {
	env := rc.Env
	switch u.MaxLevel {
	case Admin2Level:
		id, ok := admin2Ref(env, rc, func() (int64, error) {
			return env.Admins.Admin2RefFromRow(rc.Fields, rc.Row, Admin2Level, rc.Dataset, rc.Pipeline)
		})
		if !ok {
			return false
		}
		rc.Admin2Ref = id
		rc.Provider = store.ProviderAdmin{
			Admin1Name: rc.Get(colProviderAdm1),
			Admin2Name: rc.Get(colProviderAdm2),
		}
	case Admin1Level:
		id, err := env.Admins.Admin1RefFromRow(rc.Fields, rc.Row, Admin1Level, rc.Dataset, rc.Pipeline)
		if errors.Is(err, admin.ErrNotFound) {
			id, err = env.Admins.Admin1Ref(admin.National, rc.Country, rc.Dataset, rc.Pipeline)
		}
		if err != nil {
			return false
		}
		rc.Admin1Ref = id
		rc.Provider = store.ProviderAdmin{Admin1Name: rc.Get(colProviderAdm1)}
	case LocationLevel:
		rc.LocationRefs = make(map[string]int64, len(u.locationHeaders()))
		for _, header := range u.locationHeaders() {
			code := strings.ToUpper(rc.Get(header))
			ref, ok := env.Locations.Ref(code)
			if !ok {
				env.Errors.AddMissingValue(rc.Pipeline, rc.Dataset, "location", code)
				return false
			}
			rc.LocationRefs[strings.Replace(header, "_code", "_ref", 1)] = ref.ID
		}
	}
	return true
}

// admin2Ref runs lookup and, when the row's code is unknown, falls back to
// the country's unspecified admin2. The miss is reported by the lookup.
func admin2Ref(env *Env, rc *RowContext, lookup func() (int64, error)) (int64, bool) {
	id, err := lookup()
	if errors.Is(err, admin.ErrNotFound) {
		id, err = env.Admins.Admin2Ref(admin.National, rc.Country, rc.Dataset, rc.Pipeline)
	}
	if err != nil {
		return 0, false
	}
	return id, true
}

// deduper drops records whose full value tuple was already written from
// the same resource and counts them per dataset.
type deduper struct {
	keys   map[string]struct{}
	counts map[string]int
}

func newDeduper() *deduper {
	return &deduper{keys: make(map[string]struct{}), counts: make(map[string]int)}
}

func (d *deduper) seen(rec store.Record, dataset string) bool {
	k := fmt.Sprintf("%s|%v", rec.Table(), rec.Values())
	if _, dup := d.keys[k]; dup {
		d.counts[dataset]++
		return true
	}
	d.keys[k] = struct{}{}
	return false
}

func (d *deduper) report(errs *reporting.Manager, pipeline string) {
	datasets := make([]string, 0, len(d.counts))
	for ds := range d.counts {
		datasets = append(datasets, ds)
	}
	sort.Strings(datasets)
	for _, ds := range datasets {
		errs.Add(pipeline, ds, fmt.Sprintf(duplicateMessage, d.counts[ds]), reporting.Warning())
	}
}
