// Package pipeline owns the run context of one load: the lookup maps, the
// error manager and the order in which reference tables and themes are
// populated.
//
// A run executes, in order: locations, admin boundaries, org types,
// sectors, the reference organisations, the selected themes (registry
// order), the organisation flush and the error flush. A theme that fails
// is reported and the run moves on; a failure before the themes stops it.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/hapi-pipelines/internal/admin"
	"github.com/JonMunkholm/hapi-pipelines/internal/codes"
	"github.com/JonMunkholm/hapi-pipelines/internal/config"
	"github.com/JonMunkholm/hapi-pipelines/internal/hdx"
	"github.com/JonMunkholm/hapi-pipelines/internal/locations"
	"github.com/JonMunkholm/hapi-pipelines/internal/logging"
	"github.com/JonMunkholm/hapi-pipelines/internal/metadata"
	"github.com/JonMunkholm/hapi-pipelines/internal/org"
	"github.com/JonMunkholm/hapi-pipelines/internal/reporting"
	"github.com/JonMunkholm/hapi-pipelines/internal/store"
	"github.com/JonMunkholm/hapi-pipelines/internal/tabular"
	"github.com/JonMunkholm/hapi-pipelines/internal/themes"
)

// ErrUnknownTheme is returned by New for a selector naming no registered
// theme.
var ErrUnknownTheme = errors.New("unknown theme")

// ErrThemesFailed is returned by Run when at least one theme stopped with
// an error.
var ErrThemesFailed = errors.New("themes failed")

// Options tunes a run.
type Options struct {
	// Selection picks the themes and their countries. The zero value runs
	// every theme for every country.
	Selection config.ThemeSelection

	// Publisher receives flagged messages at the end of the run. Nil
	// disables publication.
	Publisher hdx.Publisher

	// Debug logs the organisation variant map after the run.
	Debug bool

	// Today dates the dataset and resource rows. Zero means time.Now.
	Today time.Time

	// CommitLimit is the number of admin rows between commits.
	CommitLimit int

	Logger  *slog.Logger
	Metrics *Metrics
}

// Runner is the run context of one load.
type Runner struct {
	id       string
	mappings *config.Mappings
	reader   hdx.Reader
	session  store.Session
	opts     Options
	selected []themes.Theme

	logger  *slog.Logger
	metrics *Metrics
	tracker *tracker
	errs    *reporting.Manager

	env *themes.Env
}

// New validates the theme selection and returns a Runner with a fresh run
// id. mappings.CommitLimit, when positive, overrides opts.CommitLimit.
func New(mappings *config.Mappings, reader hdx.Reader, session store.Session, opts Options) (*Runner, error) {
	if mappings == nil {
		return nil, errors.New("new runner: no mappings")
	}
	selected, err := selectThemes(opts.Selection)
	if err != nil {
		return nil, err
	}
	if opts.Today.IsZero() {
		opts.Today = time.Now()
	}
	if mappings.CommitLimit > 0 {
		opts.CommitLimit = mappings.CommitLimit
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics()
	}

	id := uuid.NewString()
	r := &Runner{
		id:       id,
		mappings: mappings,
		reader:   reader,
		session:  session,
		opts:     opts,
		selected: selected,
		logger:   opts.Logger.With("run_id", id),
		metrics:  opts.Metrics,
		tracker:  newTracker(id, time.Now()),
		errs:     reporting.NewManager(),
	}

	names := make([]string, len(selected))
	for i, t := range selected {
		names[i] = t.Name()
	}
	r.tracker.setThemes(names)
	return r, nil
}

// selectThemes returns the selected themes in registry order.
func selectThemes(sel config.ThemeSelection) ([]themes.Theme, error) {
	all := themes.All()
	if sel.All() {
		return all, nil
	}
	known := themes.Names()
	for _, name := range sel.Names {
		if !slices.Contains(known, name) {
			return nil, fmt.Errorf("%w %q (known: %v)", ErrUnknownTheme, name, known)
		}
	}
	var out []themes.Theme
	for _, t := range all {
		if slices.Contains(sel.Names, t.Name()) {
			out = append(out, t)
		}
	}
	return out, nil
}

// ID returns the run id.
func (r *Runner) ID() string { return r.id }

// Progress returns a snapshot of the run.
func (r *Runner) Progress() Progress { return r.tracker.snapshot() }

// Metrics returns the run metrics.
func (r *Runner) Metrics() *Metrics { return r.metrics }

// Errors returns the run's error manager.
func (r *Runner) Errors() *reporting.Manager { return r.errs }

// Env returns the theme context built by Run, nil before the reference
// phases finish.
func (r *Runner) Env() *themes.Env { return r.env }

func (r *Runner) setPhase(phase Phase) {
	r.tracker.setPhase(phase)
	r.metrics.setPhase(phase)
	r.logger.Info("phase started", "phase", phase)
}

// Run executes the load. Reference failures abort the run; theme failures
// are collected and returned wrapped in ErrThemesFailed after the flushes.
func (r *Runner) Run(ctx context.Context) (err error) {
	ctx = logging.WithRunID(ctx, r.id)
	start := time.Now()
	r.logger.Info("run started", "themes", len(r.selected))

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("internal error: %v", rec)
		}
		phase := PhaseComplete
		switch {
		case errors.Is(err, context.Canceled):
			phase = PhaseCancelled
		case err != nil:
			phase = PhaseFailed
		}
		r.tracker.finish(phase, time.Now(), err)
		r.metrics.setPhase(phase)
		if err != nil {
			r.logger.Error("run finished", "phase", phase, "error", err, "duration", time.Since(start))
			return
		}
		r.logger.Info("run finished", "duration", time.Since(start))
	}()

	env, err := r.prepare(ctx)
	if err != nil {
		return r.describe(err)
	}
	r.env = env

	r.setPhase(PhaseThemes)
	var failures []error
	for _, t := range r.selected {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.runTheme(ctx, t); err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			failures = append(failures, fmt.Errorf("%s: %w", t.Name(), err))
		}
	}

	r.setPhase(PhaseFlushing)
	n, err := env.Orgs.Flush(ctx, r.session)
	if err != nil {
		return r.describe(err)
	}
	r.logger.Info("orgs written", "rows", n)
	r.logUnmatched(env)

	r.flushErrors(ctx)
	if r.opts.Debug {
		env.Orgs.LogVariants(r.logger)
	}

	if len(failures) > 0 {
		return fmt.Errorf("%w: %w", ErrThemesFailed, errors.Join(failures...))
	}
	return nil
}

// describe logs a coded explanation of database failures.
func (r *Runner) describe(err error) error {
	if store.IsKnown(err) {
		r.logger.Error("database error", "detail", store.Describe(err).String())
	}
	return err
}

// prepare populates the reference tables and returns the theme context.
func (r *Runner) prepare(ctx context.Context) (*themes.Env, error) {
	m := r.mappings

	r.setPhase(PhaseLocations)
	locs := locations.New(r.session, m.HAPICountries, r.logger)
	countries, err := r.readCountries(ctx)
	if err != nil {
		return nil, err
	}
	flags, err := r.readFlags(ctx)
	if err != nil {
		return nil, err
	}
	if err := locs.Populate(ctx, countries, flags); err != nil {
		return nil, fmt.Errorf("populate locations: %w", err)
	}

	r.setPhase(PhaseAdmins)
	admins := admin.New(r.session, locs, r.errs, admin.Config{
		CommitLimit:   r.opts.CommitLimit,
		OrphanAdmin2s: m.OrphanAdmin2s,
	}, r.logger)
	boundaries, err := r.readBoundaries(ctx)
	if err != nil {
		return nil, err
	}
	if err := admins.Populate(ctx, boundaries); err != nil {
		return nil, fmt.Errorf("populate admins: %w", err)
	}

	r.setPhase(PhaseCodes)
	orgTypes := codes.NewOrgTypes(entries(m.OrgTypes), m.OrgTypeMap)
	if err := orgTypes.Populate(ctx, r.session); err != nil {
		return nil, err
	}
	sectors := codes.NewSectors(entries(m.Sectors), m.SectorMap)
	if err := sectors.Populate(ctx, r.session); err != nil {
		return nil, err
	}
	if s, ok := scorer(m.FuzzyMatch); ok {
		orgTypes.SetScorer(s)
		sectors.SetScorer(s)
	}

	r.setPhase(PhaseOrgs)
	orgs := org.NewRegistry(orgTypes, r.errs, org.Config{MaxAcronymLength: m.MaxAcronymLength})
	refs, err := r.readOrgReference(ctx)
	if err != nil {
		return nil, err
	}
	r.logger.Info("org reference loaded", "rows", orgs.LoadReference(refs))

	return &themes.Env{
		Reader:    r.reader,
		Session:   r.session,
		Metadata:  metadata.New(r.session, r.opts.Today),
		Admins:    admins,
		Locations: locs,
		Orgs:      orgs,
		Sectors:   sectors,
		OrgTypes:  orgTypes,
		Errors:    r.errs,
		Mappings:  m,
		Countries: r.opts.Selection.Countries,
		Logger:    r.logger,
		Progress: func(theme string, rows int) {
			r.tracker.addRows(theme, rows)
			r.metrics.addRows(theme, rows)
		},
	}, nil
}

// scorer builds the fuzzy scorer a mapping file asks for. ok is false when
// it sets no threshold.
func scorer(f config.FuzzyMatch) (codes.Scorer, bool) {
	if f.Threshold == 0 {
		return codes.Scorer{}, false
	}
	strict := f.StrictThreshold
	if strict == 0 {
		strict = f.Threshold
	}
	return codes.Scorer{Threshold: f.Threshold, StrictThreshold: strict}, true
}

func (r *Runner) runTheme(ctx context.Context, t themes.Theme) (err error) {
	name := t.Name()
	logger := logging.Enrich(ctx, r.opts.Logger).With("theme", name)
	r.tracker.startTheme(name, time.Now())
	logger.Info("theme started")

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("internal error: %v", rec)
		}
		elapsed := r.tracker.finishTheme(name, time.Now(), err)
		r.metrics.observeTheme(name, elapsed.Seconds(), err)
		r.updateCounts()
		if err != nil {
			logger.Error("theme failed", "error", err, "duration", elapsed)
			r.describe(err)
			if rbErr := r.session.Rollback(context.WithoutCancel(ctx)); rbErr != nil {
				logger.Error("rollback failed", "error", rbErr)
			}
			return
		}
		logger.Info("theme finished", "duration", elapsed)
	}()

	return t.Populate(ctx, r.env)
}

func (r *Runner) updateCounts() {
	errs, warnings := r.errs.Counts()
	orgs := 0
	if r.env != nil {
		orgs = r.env.Orgs.Len()
	}
	r.tracker.setCounts(errs, warnings, orgs)
	r.metrics.setCounts(errs, warnings, orgs)
}

func (r *Runner) flushErrors(ctx context.Context) {
	r.updateCounts()
	var pub reporting.Publisher
	if r.opts.Publisher != nil {
		pub = r.opts.Publisher
	}
	r.errs.Flush(ctx, r.logger, pub)
}

func (r *Runner) logUnmatched(env *themes.Env) {
	for _, res := range []*codes.Resolver{env.Sectors, env.OrgTypes} {
		if unmatched := res.Unmatched(); len(unmatched) > 0 {
			r.logger.Info("unmatched codes", "kind", res.Kind(), "values", unmatched)
		}
	}
}

func entries(list []config.CodeEntry) []codes.Entry {
	out := make([]codes.Entry, len(list))
	for i, e := range list {
		out[i] = codes.Entry{Code: e.Code, Name: e.Name}
	}
	return out
}

// ============================================================================
// Reference resources
// ============================================================================

// openReference opens a configured reference resource. ok is false when
// the reference is not configured.
func (r *Runner) openReference(ctx context.Context, kind string, ref config.ResourceRef) (*tabular.Table, bool, error) {
	if ref.Dataset == "" {
		return nil, false, nil
	}
	ds, err := r.reader.ReadDataset(ctx, ref.Dataset)
	if err != nil {
		return nil, false, fmt.Errorf("read %s dataset %s: %w", kind, ref.Dataset, err)
	}
	res, err := pickResource(ds, ref.Resource)
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", kind, err)
	}
	table, err := r.reader.Table(ctx, res.URL, res.Options())
	if err != nil {
		return nil, false, fmt.Errorf("open %s resource %s: %w", kind, res.Name, err)
	}
	return table, true, nil
}

// pickResource returns the named resource, or the first one when name is
// empty.
func pickResource(ds *hdx.Dataset, name string) (hdx.Resource, error) {
	if name == "" {
		if len(ds.Resources) == 0 {
			return hdx.Resource{}, fmt.Errorf("dataset %s has no resources", ds.Name)
		}
		return ds.Resources[0], nil
	}
	res, ok := ds.Resource(name)
	if !ok {
		return hdx.Resource{}, fmt.Errorf("resource %s not found in dataset %s", name, ds.Name)
	}
	return res, nil
}

func (r *Runner) readCountries(ctx context.Context) ([]locations.Country, error) {
	table, ok, err := r.openReference(ctx, "countries", r.mappings.Reference.Countries)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.New("countries: reference.countries is not configured")
	}
	defer table.Close()
	return locations.ReadCountries(table)
}

func (r *Runner) readFlags(ctx context.Context) (locations.Flags, error) {
	table, ok, err := r.openReference(ctx, "hrp/gho flags", r.mappings.Reference.Flags)
	if err != nil {
		return locations.Flags{}, err
	}
	if !ok {
		r.logger.Warn("no hrp/gho flags configured")
		return locations.Flags{}, nil
	}
	defer table.Close()
	return locations.ReadFlags(table)
}

func (r *Runner) readBoundaries(ctx context.Context) ([]admin.Boundary, error) {
	table, ok, err := r.openReference(ctx, "boundaries", r.mappings.Reference.Boundaries)
	if err != nil {
		return nil, err
	}
	if !ok {
		r.logger.Warn("no admin boundaries configured, only connectors are written")
		return nil, nil
	}
	defer table.Close()
	return admin.ReadBoundaries(table)
}

func (r *Runner) readOrgReference(ctx context.Context) ([]org.Reference, error) {
	table, ok, err := r.openReference(ctx, "org reference", r.mappings.Reference.Orgs)
	if err != nil || !ok {
		return nil, err
	}
	defer table.Close()
	return org.ReadReference(table)
}
