package hdx

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"
)

const catalogYAML = `
datasets:
  - id: 3b5f1e38-5f5b-4c4e-9a0f-0b0b8d4b8f11
    name: hdx-hapi-population
    title: HAPI Population
    provider_stub: ocha
    provider_name: OCHA
    resources:
      - id: 9c6c6b8e-2b43-4a59-8e4f-6f5a1c2d3e4f
        name: population.csv
        format: csv
        url: population.csv
        is_hxl: true
      - id: 0d6c6b8e-2b43-4a59-8e4f-6f5a1c2d3e50
        name: population.xlsx
        url: population.xlsx
`

func writeCatalog(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(catalogYAML), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "population.csv"),
		[]byte("Country ISO3,Population\n#country+code,#population\nAFG,100\n"), 0o644))

	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"Country ISO3", "Population"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]any{"COD", "200"}))
	require.NoError(t, f.SaveAs(filepath.Join(dir, "population.xlsx")))
	return path
}

// ============================================================================
// Catalog Tests
// ============================================================================

func TestLoadCatalog(t *testing.T) {
	cat, err := LoadCatalog(writeCatalog(t))
	require.NoError(t, err)
	require.Len(t, cat.Datasets, 1)
	assert.Equal(t, "OCHA", cat.Datasets[0].ProviderName)
	assert.True(t, cat.Datasets[0].Resources[0].IsHXL)
}

func TestParseCatalog_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "bad dataset id",
			yaml:    "datasets:\n  - id: nope\n    name: a\n",
			wantErr: `dataset a: invalid id "nope"`,
		},
		{
			name:    "missing name",
			yaml:    "datasets:\n  - id: 3b5f1e38-5f5b-4c4e-9a0f-0b0b8d4b8f11\n",
			wantErr: "dataset 0 has no name",
		},
		{
			name: "resource without url",
			yaml: "datasets:\n  - id: 3b5f1e38-5f5b-4c4e-9a0f-0b0b8d4b8f11\n    name: a\n    resources:\n" +
				"      - id: 9c6c6b8e-2b43-4a59-8e4f-6f5a1c2d3e4f\n        name: r\n",
			wantErr: "dataset a resource r: no url",
		},
		{
			name:    "not yaml",
			yaml:    "datasets: [",
			wantErr: "parse catalog",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCatalog([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestReadDataset(t *testing.T) {
	cat, err := LoadCatalog(writeCatalog(t))
	require.NoError(t, err)
	r := NewCatalogReader(cat, nil)
	ctx := context.Background()

	ds, err := r.ReadDataset(ctx, "hdx-hapi-population")
	require.NoError(t, err)
	byID, err := r.ReadDataset(ctx, "3b5f1e38-5f5b-4c4e-9a0f-0b0b8d4b8f11")
	require.NoError(t, err)
	assert.Equal(t, ds, byID)

	ds.Resources[0].Name = "changed"
	again, err := r.ReadDataset(ctx, "hdx-hapi-population")
	require.NoError(t, err)
	assert.Equal(t, "population.csv", again.Resources[0].Name, "callers get a copy")

	_, err = r.ReadDataset(ctx, "missing")
	assert.True(t, errors.Is(err, ErrDatasetNotFound))

	res, ok := again.ResourceByID("0d6c6b8e-2b43-4a59-8e4f-6f5a1c2d3e50")
	require.True(t, ok)
	assert.Equal(t, "population.xlsx", res.Name)
	_, ok = again.Resource("nope")
	assert.False(t, ok)
}

// ============================================================================
// Table Tests
// ============================================================================

func TestTable_FileFormats(t *testing.T) {
	cat, err := LoadCatalog(writeCatalog(t))
	require.NoError(t, err)
	r := NewCatalogReader(cat, nil)
	ds, err := r.ReadDataset(context.Background(), "hdx-hapi-population")
	require.NoError(t, err)

	csvRes, _ := ds.Resource("population.csv")
	table, err := r.Table(context.Background(), csvRes.URL, csvRes.Options())
	require.NoError(t, err)
	rows, err := table.All()
	require.NoError(t, err)
	require.NoError(t, table.Close())
	require.Len(t, rows, 1)
	assert.Equal(t, "100", table.Fields.Value(rows[0], "#population"))

	xlsxRes, _ := ds.Resource("population.xlsx")
	table, err = r.Table(context.Background(), xlsxRes.URL, xlsxRes.Options())
	require.NoError(t, err, "format is sniffed when not declared")
	rows, err = table.All()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "COD", rows[0].Get("Country ISO3"))
}

func TestTable_HTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/data.csv" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		_, _ = w.Write([]byte("a,b\n1,2\n"))
	}))
	defer srv.Close()

	r := NewCatalogReader(&Catalog{}, srv.Client())

	table, err := r.Table(context.Background(), srv.URL+"/data.csv", TableOptions{})
	require.NoError(t, err)
	rows, err := table.All()
	require.NoError(t, err)
	require.NoError(t, table.Close())
	assert.Equal(t, "2", rows[0].Get("b"))

	_, err = r.Table(context.Background(), srv.URL+"/missing.csv", TableOptions{Format: "csv"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestTable_UnsupportedFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"a": 1}`), 0o644))

	r := NewCatalogReader(&Catalog{}, nil)
	_, err := r.Table(context.Background(), path, TableOptions{Format: "json"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported format")
}

// ============================================================================
// Publisher Tests
// ============================================================================

func TestFilePublisher(t *testing.T) {
	path := filepath.Join(t.TempDir(), "errors.yaml")
	p := NewFilePublisher(path)
	ctx := context.Background()

	require.NoError(t, p.PublishResourceError(ctx, "ds-b", "r1", "x"))
	require.NoError(t, p.PublishResourceError(ctx, "ds-a", "r2", "y"))
	assert.Error(t, p.PublishResourceError(ctx, "", "r", "z"))
	require.NoError(t, p.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got struct {
		Errors []PublishedError `yaml:"errors"`
	}
	require.NoError(t, yaml.Unmarshal(data, &got))
	assert.Equal(t, []PublishedError{
		{Dataset: "ds-a", Resource: "r2", Text: "y"},
		{Dataset: "ds-b", Resource: "r1", Text: "x"},
	}, got.Errors)
}

func TestFilePublisher_NothingToWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "errors.yaml")
	require.NoError(t, NewFilePublisher(path).Close())
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestLoadCatalog_Shipped(t *testing.T) {
	cat, err := LoadCatalog(filepath.Join("..", "..", "config", "catalog.yaml"))
	require.NoError(t, err)

	r := NewCatalogReader(cat, nil)
	ds, err := r.ReadDataset(context.Background(), "global-countries")
	require.NoError(t, err)

	res, ok := ds.Resource("countries.csv")
	require.True(t, ok)
	table, err := r.Table(context.Background(), res.URL, res.Options())
	require.NoError(t, err)
	defer table.Close()

	rows, err := table.All()
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}
