// Package tabular reads CSV resources with an optional HXL tag row and gives
// typed access to their cells.
//
// A Fields value maps HXL tags (lowercased, spaces removed) to the header
// of the column carrying them, so business code asks for "#adm1+code"
// instead of checking for "Admin 1 PCode", "ADM1_PCODE" and friends.
package tabular

import "strings"

// Row is one data line keyed by column header.
type Row map[string]string

// Get returns the trimmed value of the named column, or "" if absent.
func (r Row) Get(header string) string {
	return strings.TrimSpace(r[header])
}

// Fields maps a normalized HXL tag to a column header.
type Fields map[string]string

// CleanTag lowercases t and strips whitespace, so "#Adm1 +Code" and
// "#adm1+code" compare equal.
func CleanTag(t string) string {
	return strings.ToLower(strings.Join(strings.Fields(t), ""))
}

// FieldsFromTags pairs headers with their tag row. Columns without a tag are
// skipped; when two columns share a tag the last one wins.
func FieldsFromTags(headers, tags []string) Fields {
	f := make(Fields, len(tags))
	for i, tag := range tags {
		if i >= len(headers) {
			break
		}
		tag = CleanTag(tag)
		if tag == "" {
			continue
		}
		f[tag] = headers[i]
	}
	return f
}

// Header returns the column header carrying tag.
func (f Fields) Header(tag string) (string, bool) {
	h, ok := f[CleanTag(tag)]
	return h, ok
}

// Has reports whether any column carries tag.
func (f Fields) Has(tag string) bool {
	_, ok := f[CleanTag(tag)]
	return ok
}

// Value returns the trimmed value of the column carrying tag in row.
func (f Fields) Value(row Row, tag string) string {
	h, ok := f.Header(tag)
	if !ok {
		return ""
	}
	return row.Get(h)
}
