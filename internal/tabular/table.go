package tabular

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ErrNoHeader is returned when a resource has no header line.
var ErrNoHeader = errors.New("empty file: no header row")

// Table streams the rows of one CSV or XLSX resource.
type Table struct {
	// Headers are the cleaned column names of the first line.
	Headers []string

	// Tags is the raw HXL tag row, nil when the resource has none.
	Tags []string

	// Fields maps cleaned tags to headers. Empty when Tags is nil.
	Fields Fields

	src     source
	closer  io.Closer
	pending []string
	line    int
}

// Decode wraps r so a UTF-8 or UTF-16 byte order mark is honoured and
// removed, and invalid UTF-8 sequences become U+FFFD.
func Decode(r io.Reader) io.Reader {
	return transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
}

type source interface {
	Read() ([]string, error)
}

// sheetRows serves the rows of a worksheet already loaded in memory.
type sheetRows struct {
	rows [][]string
	next int
}

func (s *sheetRows) Read() ([]string, error) {
	if s.next >= len(s.rows) {
		return nil, io.EOF
	}
	row := s.rows[s.next]
	s.next++
	return row, nil
}

// NewTable reads the header line, and the HXL tag row if the second line is
// one. If r is an io.Closer, Close closes it.
func NewTable(r io.Reader) (*Table, error) {
	cr := csv.NewReader(Decode(r))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = false

	var closer io.Closer
	if c, ok := r.(io.Closer); ok {
		closer = c
	}
	return newTable(cr, closer)
}

// NewXLSXTable reads a worksheet of an XLSX workbook. An empty sheet name
// selects the first sheet.
func NewXLSXTable(r io.Reader, sheet string) (*Table, error) {
	if c, ok := r.(io.Closer); ok {
		defer c.Close()
	}
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, ErrNoHeader
		}
		sheet = sheets[0]
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	return newTable(&sheetRows{rows: rows}, nil)
}

func newTable(src source, closer io.Closer) (*Table, error) {
	t := &Table{src: src, closer: closer, Fields: Fields{}}

	header, err := src.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrNoHeader
	}
	if err != nil {
		return nil, fmt.Errorf("invalid header: %w", err)
	}
	t.line = 1
	t.Headers = make([]string, len(header))
	for i, h := range header {
		t.Headers[i] = strings.TrimSpace(h)
	}

	second, err := src.Read()
	switch {
	case errors.Is(err, io.EOF):
		return t, nil
	case err != nil:
		return nil, fmt.Errorf("invalid row at line 2: %w", err)
	}
	t.line = 2
	if IsTagRow(second) {
		t.Tags = second
		t.Fields = FieldsFromTags(t.Headers, second)
	} else {
		t.pending = second
	}
	return t, nil
}

// IsTagRow reports whether every non-empty cell starts with '#' and at least
// one cell is non-empty.
func IsTagRow(cells []string) bool {
	seen := false
	for _, c := range cells {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if !strings.HasPrefix(c, "#") {
			return false
		}
		seen = true
	}
	return seen
}

// Next returns the next non-empty row, or io.EOF.
func (t *Table) Next() (Row, error) {
	for {
		var rec []string
		if t.pending != nil {
			rec, t.pending = t.pending, nil
		} else {
			var err error
			rec, err = t.src.Read()
			if err != nil {
				if errors.Is(err, io.EOF) {
					return nil, io.EOF
				}
				return nil, fmt.Errorf("invalid row at line %d: %w", t.line+1, err)
			}
			t.line++
		}
		if isEmptyRow(rec) {
			continue
		}
		return t.row(rec), nil
	}
}

func (t *Table) row(rec []string) Row {
	row := make(Row, len(t.Headers))
	for i, h := range t.Headers {
		if i < len(rec) {
			row[h] = rec[i]
		} else {
			row[h] = ""
		}
	}
	return row
}

// All drains the table.
func (t *Table) All() ([]Row, error) {
	var rows []Row
	for {
		row, err := t.Next()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return rows, err
		}
		rows = append(rows, row)
	}
}

// Close releases the underlying reader if it is closable.
func (t *Table) Close() error {
	if t.closer == nil {
		return nil
	}
	return t.closer.Close()
}

func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
