package themes

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/JonMunkholm/hapi-pipelines/internal/store"
)

// BasicUploader maps every row of one named resource. It serves the small
// reference tables that carry no period or provenance columns.
type BasicUploader struct {
	Theme    string
	Suffix   string
	Resource string

	Extractor Extractor
}

func (b *BasicUploader) Name() string { return b.Theme }

// Populate reads the resource and writes its records in one batch.
func (b *BasicUploader) Populate(ctx context.Context, env *Env) error {
	logger := env.logger().With("theme", b.Theme)
	pipeline := PipelineName(b.Suffix)
	name := env.dataset(b.Theme, datasetPrefix+b.Suffix)
	resourceName := env.resource(b.Theme, b.Resource)
	logger.Info("populating table", "dataset", name, "resource", resourceName)

	ds, err := env.Reader.ReadDataset(ctx, name)
	if err != nil {
		return fmt.Errorf("read dataset %s: %w", name, err)
	}
	res, ok := ds.Resource(resourceName)
	if !ok {
		env.Errors.AddMissingValue(pipeline, ds.Name, "resource", resourceName)
		return nil
	}

	table, err := env.Reader.Table(ctx, res.URL, res.Options())
	if err != nil {
		return fmt.Errorf("%s resource %s: %w", b.Theme, res.Name, err)
	}
	defer table.Close()

	var recs []store.Record
	for {
		row, err := table.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("%s resource %s: %w", b.Theme, res.Name, err)
		}
		rc := &RowContext{
			Fields:     table.Fields,
			Row:        row,
			ResourceID: res.ID,
			Dataset:    ds.Name,
			Pipeline:   pipeline,
			Env:        env,
		}
		out, err := b.Extractor.Extract(rc)
		if err != nil {
			return err
		}
		recs = append(recs, out...)
	}

	if len(recs) > 0 {
		if err := env.Session.BatchPopulate(ctx, recs); err != nil {
			return fmt.Errorf("write %s: %w", b.Theme, err)
		}
	}
	env.progress(b.Theme, len(recs))
	logger.Info("table populated", "rows", len(recs))
	return nil
}
