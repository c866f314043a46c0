// Package metadata records which datasets and resources a run has read and
// keeps their id to name lookups.
package metadata

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/hapi-pipelines/internal/hdx"
	"github.com/JonMunkholm/hapi-pipelines/internal/store"
	"github.com/JonMunkholm/hapi-pipelines/internal/tabular"
)

// Registry maps dataset and resource ids to names and persists each once.
type Registry struct {
	session   store.Session
	today     time.Time
	datasets  map[string]string
	resources map[string]string
}

// New returns an empty registry. today is stamped on resource rows.
func New(session store.Session, today time.Time) *Registry {
	return &Registry{
		session:   session,
		today:     today,
		datasets:  make(map[string]string),
		resources: make(map[string]string),
	}
}

// AddDataset stages a dataset row unless the dataset is already known.
func (r *Registry) AddDataset(ctx context.Context, ds *hdx.Dataset) error {
	if _, ok := r.datasets[ds.ID]; ok {
		return nil
	}
	err := r.session.Add(ctx, store.Dataset{
		HDXID:        ds.ID,
		HDXStub:      ds.Name,
		Title:        ds.Title,
		ProviderStub: ds.ProviderStub,
		ProviderName: ds.ProviderName,
	})
	if err != nil {
		return fmt.Errorf("add dataset %s: %w", ds.Name, err)
	}
	r.datasets[ds.ID] = ds.Name
	return nil
}

// AddResource stages a resource row unless the resource is already known.
func (r *Registry) AddResource(ctx context.Context, datasetID string, res hdx.Resource) error {
	if _, ok := r.resources[res.ID]; ok {
		return nil
	}
	err := r.session.Add(ctx, store.Resource{
		HDXID:           res.ID,
		DatasetHDXID:    datasetID,
		Name:            res.Name,
		Format:          strings.ToLower(res.Format),
		UpdateDate:      tabular.Timestamp(res.LastModified, false),
		IsHXL:           res.IsHXL,
		DownloadURL:     res.URL,
		HAPIUpdatedDate: pgtype.Timestamp{Time: r.today, Valid: true},
	})
	if err != nil {
		return fmt.Errorf("add resource %s: %w", res.Name, err)
	}
	r.resources[res.ID] = res.Name
	return nil
}

// Add records a dataset and one of its resources and commits.
func (r *Registry) Add(ctx context.Context, ds *hdx.Dataset, res hdx.Resource) error {
	if err := r.AddDataset(ctx, ds); err != nil {
		return err
	}
	if err := r.AddResource(ctx, ds.ID, res); err != nil {
		return err
	}
	return r.session.Commit(ctx)
}

// DatasetName returns the stub of a known dataset.
func (r *Registry) DatasetName(id string) (string, bool) {
	name, ok := r.datasets[id]
	return name, ok
}

// ResourceName returns the name of a known resource.
func (r *Registry) ResourceName(id string) (string, bool) {
	name, ok := r.resources[id]
	return name, ok
}
