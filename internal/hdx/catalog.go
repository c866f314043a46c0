package hdx

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/JonMunkholm/hapi-pipelines/internal/tabular"
)

// sniffLength is how many bytes are inspected to guess a resource format.
const sniffLength = 3072

// Catalog is a YAML list of datasets. Resource URLs are http(s) URLs or
// paths relative to the catalog file.
type Catalog struct {
	Datasets []Dataset `yaml:"datasets"`

	dir string
}

// LoadCatalog reads and validates a catalog file.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	cat, err := ParseCatalog(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	cat.dir = filepath.Dir(path)
	return cat, nil
}

// ParseCatalog decodes and validates catalog YAML. Relative resource paths
// resolve against the working directory.
func ParseCatalog(data []byte) (*Catalog, error) {
	var cat Catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if err := cat.Validate(); err != nil {
		return nil, err
	}
	return &cat, nil
}

// Validate checks that every dataset has a name and every id is a UUID.
func (c *Catalog) Validate() error {
	var errs []string
	names := make(map[string]bool)
	for i, ds := range c.Datasets {
		if ds.Name == "" {
			errs = append(errs, fmt.Sprintf("dataset %d has no name", i))
		} else if names[ds.Name] {
			errs = append(errs, fmt.Sprintf("dataset %s listed twice", ds.Name))
		}
		names[ds.Name] = true
		if _, err := uuid.Parse(ds.ID); err != nil {
			errs = append(errs, fmt.Sprintf("dataset %s: invalid id %q", ds.Name, ds.ID))
		}
		for _, r := range ds.Resources {
			if _, err := uuid.Parse(r.ID); err != nil {
				errs = append(errs, fmt.Sprintf("dataset %s resource %s: invalid id %q", ds.Name, r.Name, r.ID))
			}
			if r.URL == "" {
				errs = append(errs, fmt.Sprintf("dataset %s resource %s: no url", ds.Name, r.Name))
			}
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("catalog validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// CatalogReader serves datasets from a Catalog.
type CatalogReader struct {
	catalog *Catalog
	client  *http.Client
	byKey   map[string]*Dataset
}

// NewCatalogReader indexes cat by dataset name and id. A nil client gets a
// 60 second timeout.
func NewCatalogReader(cat *Catalog, client *http.Client) *CatalogReader {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	r := &CatalogReader{catalog: cat, client: client, byKey: make(map[string]*Dataset)}
	for i := range cat.Datasets {
		ds := &cat.Datasets[i]
		r.byKey[ds.Name] = ds
		if ds.ID != "" {
			r.byKey[ds.ID] = ds
		}
	}
	return r
}

// ReadDataset returns a copy of the dataset with the given name or id.
func (r *CatalogReader) ReadDataset(_ context.Context, name string) (*Dataset, error) {
	ds, ok := r.byKey[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrDatasetNotFound)
	}
	out := *ds
	out.Resources = append([]Resource(nil), ds.Resources...)
	return &out, nil
}

// Table opens the resource at url and decodes it per opts.
func (r *CatalogReader) Table(ctx context.Context, url string, opts TableOptions) (*tabular.Table, error) {
	rc, err := r.open(ctx, url)
	if err != nil {
		return nil, err
	}
	t, err := decodeTable(rc, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", url, err)
	}
	return t, nil
}

func (r *CatalogReader) open(ctx context.Context, url string) (io.ReadCloser, error) {
	if strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		resp, err := r.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", url, err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("fetch %s: status %s", url, resp.Status)
		}
		return resp.Body, nil
	}

	path := strings.TrimPrefix(url, "file://")
	if !filepath.IsAbs(path) && r.catalog.dir != "" {
		path = filepath.Join(r.catalog.dir, path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open resource: %w", err)
	}
	return f, nil
}

type readCloser struct {
	io.Reader
	io.Closer
}

func decodeTable(rc io.ReadCloser, opts TableOptions) (*tabular.Table, error) {
	format := strings.ToLower(strings.TrimSpace(opts.Format))
	var src io.ReadCloser = rc
	if format == "" {
		br := bufio.NewReaderSize(rc, sniffLength)
		head, _ := br.Peek(sniffLength)
		format = sniffFormat(head)
		src = readCloser{Reader: br, Closer: rc}
	}
	switch format {
	case "xlsx", "xls":
		return tabular.NewXLSXTable(src, opts.Sheet)
	case "csv":
		return tabular.NewTable(src)
	}
	src.Close()
	return nil, fmt.Errorf("unsupported format %q", format)
}

func sniffFormat(head []byte) string {
	m := mimetype.Detect(head)
	switch {
	case m.Is("application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"), m.Is("application/zip"):
		return "xlsx"
	case strings.HasPrefix(m.String(), "text/"):
		return "csv"
	}
	return m.Extension()
}
