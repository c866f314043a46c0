// Package hdx reads datasets and their tabular resources from a catalog of
// published humanitarian data, and publishes resource-level errors back.
package hdx

import (
	"context"
	"errors"

	"github.com/JonMunkholm/hapi-pipelines/internal/tabular"
)

// ErrDatasetNotFound is returned when a dataset is not in the catalog.
var ErrDatasetNotFound = errors.New("dataset not found")

// Resource is one downloadable file of a dataset.
type Resource struct {
	ID           string `yaml:"id"`
	Name         string `yaml:"name"`
	Format       string `yaml:"format"`
	URL          string `yaml:"url"`
	LastModified string `yaml:"last_modified"`
	IsHXL        bool   `yaml:"is_hxl"`
	Sheet        string `yaml:"sheet,omitempty"`
}

// Dataset is a published dataset.
type Dataset struct {
	ID           string     `yaml:"id"`
	Name         string     `yaml:"name"`
	Title        string     `yaml:"title"`
	ProviderStub string     `yaml:"provider_stub"`
	ProviderName string     `yaml:"provider_name"`
	Resources    []Resource `yaml:"resources"`
}

// Resource returns the resource with the given name.
func (d *Dataset) Resource(name string) (Resource, bool) {
	for _, r := range d.Resources {
		if r.Name == name {
			return r, true
		}
	}
	return Resource{}, false
}

// ResourceByID returns the resource with the given id.
func (d *Dataset) ResourceByID(id string) (Resource, bool) {
	for _, r := range d.Resources {
		if r.ID == id {
			return r, true
		}
	}
	return Resource{}, false
}

// TableOptions selects how a resource is decoded.
type TableOptions struct {
	// Format is "csv", "xlsx" or empty to sniff the content.
	Format string
	// Sheet selects a worksheet of an XLSX resource; empty means the first.
	Sheet string
}

// Options returns the table options for r.
func (r Resource) Options() TableOptions {
	return TableOptions{Format: r.Format, Sheet: r.Sheet}
}

// Reader fetches datasets and opens their resources as tables.
type Reader interface {
	ReadDataset(ctx context.Context, name string) (*Dataset, error)
	Table(ctx context.Context, url string, opts TableOptions) (*tabular.Table, error)
}

// Publisher records an error against a published resource.
type Publisher interface {
	PublishResourceError(ctx context.Context, dataset, resource, text string) error
}
