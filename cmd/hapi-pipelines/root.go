package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/hapi-pipelines/internal/config"
	"github.com/JonMunkholm/hapi-pipelines/internal/hdx"
	"github.com/JonMunkholm/hapi-pipelines/internal/logging"
	"github.com/JonMunkholm/hapi-pipelines/internal/pipeline"
	"github.com/JonMunkholm/hapi-pipelines/internal/store"
	"github.com/JonMunkholm/hapi-pipelines/internal/web"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "hapi-pipelines",
		Short:         "Load HDX datasets into the HAPI database",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Load .env file if it exists (Overload overwrites existing env vars)
			if err := godotenv.Overload(); err != nil {
				slog.Debug("no .env file found, using environment variables")
			}

			cfg, err := config.LoadEnv()
			if err != nil {
				return err
			}
			applyFlags(cmd.Flags(), cfg)
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("config validation: %w", err)
			}

			logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
			slog.Info("configuration loaded", "config", cfg.String())

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}

	f := cmd.Flags()
	f.String("themes", "", `themes to run, e.g. "population:AFG|COD,funding" (default all)`)
	f.String("db-uri", "", "database connection string (postgresql:// is added when no scheme is given)")
	f.Bool("recreate-schema", false, "drop and recreate every table first")
	f.Bool("err-to-hdx", false, "publish flagged messages")
	f.Bool("debug", false, "log the organisation variant map after the run")
	f.Bool("dry-run", false, "keep every row in memory instead of the database")
	f.Bool("serve", false, "run the status server while the load runs")
	return cmd
}

// applyFlags overrides environment settings with the flags that were set.
// Parse has already validated the flag values.
func applyFlags(f *pflag.FlagSet, cfg *config.Config) {
	if f.Changed("themes") {
		cfg.Pipeline.Themes, _ = f.GetString("themes")
	}
	if f.Changed("db-uri") {
		uri, _ := f.GetString("db-uri")
		cfg.Database.URL = normalizeDBURI(uri)
	}
	bools := map[string]*bool{
		"recreate-schema": &cfg.Pipeline.RecreateSchema,
		"err-to-hdx":      &cfg.Pipeline.ErrToHDX,
		"debug":           &cfg.Pipeline.Debug,
		"dry-run":         &cfg.Pipeline.DryRun,
		"serve":           &cfg.Server.Enabled,
	}
	for name, dst := range bools {
		if f.Changed(name) {
			*dst, _ = f.GetBool(name)
		}
	}
}

// normalizeDBURI accepts "user:pass@host/db" as well as a full URL.
func normalizeDBURI(uri string) string {
	uri = strings.TrimSpace(uri)
	if uri == "" || strings.Contains(uri, "://") {
		return uri
	}
	return "postgresql://" + uri
}

func run(ctx context.Context, cfg *config.Config) error {
	mappings, err := config.LoadMappings(cfg.Pipeline.MappingsPath)
	if err != nil {
		return err
	}
	selection, err := config.ParseThemes(cfg.Pipeline.Themes)
	if err != nil {
		return err
	}
	catalog, err := hdx.LoadCatalog(cfg.Pipeline.CatalogPath)
	if err != nil {
		return err
	}
	reader := hdx.NewCatalogReader(catalog, &http.Client{Timeout: cfg.Pipeline.HTTPTimeout})

	session, closeSession, err := openSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeSession()

	var publisher hdx.Publisher
	if cfg.Pipeline.ErrToHDX {
		fp := hdx.NewFilePublisher(cfg.Pipeline.ErrorsOut)
		defer func() {
			if err := fp.Close(); err != nil {
				slog.Error("failed to write published errors", "path", cfg.Pipeline.ErrorsOut, "error", err)
			}
		}()
		publisher = fp
	}

	runner, err := pipeline.New(mappings, reader, session, pipeline.Options{
		Selection:   selection,
		Publisher:   publisher,
		Debug:       cfg.Pipeline.Debug,
		CommitLimit: cfg.Pipeline.CommitLimit,
	})
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	done := make(chan struct{})

	g.Go(func() error {
		defer close(done)
		return runner.Run(gctx)
	})

	if cfg.Server.Enabled {
		server := web.NewServer(cfg.Server, runner, runner.Metrics().Registry)
		g.Go(func() error {
			if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("status server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			select {
			case <-done:
			case <-gctx.Done():
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
	}

	err = g.Wait()

	p := runner.Progress()
	slog.Info("run finished",
		"run_id", p.RunID,
		"phase", p.Phase,
		"rows", p.Rows(),
		"errors", p.Errors,
		"warnings", p.Warnings,
	)
	if mem, ok := session.(*store.Memory); ok {
		logCounts(mem)
	}
	return err
}

// openSession returns the in-memory session for dry runs and a pooled
// Postgres session otherwise.
func openSession(ctx context.Context, cfg *config.Config) (store.Session, func(), error) {
	if cfg.Pipeline.DryRun {
		slog.Info("dry run: rows are kept in memory")
		return store.NewMemory(), func() {}, nil
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse database URL: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = int32(cfg.Database.MinConns)
	poolConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping database: %w", err)
	}

	if u, err := url.Parse(cfg.Database.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}

	if err := store.ApplySchema(ctx, pool, cfg.Pipeline.RecreateSchema); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return store.NewPostgres(pool, cfg.Pipeline.BatchSize), pool.Close, nil
}

func logCounts(mem *store.Memory) {
	for _, table := range store.Tables {
		if n := mem.Count(table); n > 0 {
			slog.Info("dry run table", "table", table, "rows", n)
		}
	}
}
