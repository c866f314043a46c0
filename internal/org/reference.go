package org

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/JonMunkholm/hapi-pipelines/internal/tabular"
)

// Reference organisation resource tags.
const (
	TagCountry  = "#country+code"
	TagAcronym  = "#org+acronym"
	TagName     = "#org+name"
	TagTypeCode = "#org+type+code"
	TagAltNames = "#org+name+alt"
)

// ReadReference collects the rows of the reference organisation table.
// Alternate names are pipe separated.
func ReadReference(t *tabular.Table) ([]Reference, error) {
	var out []Reference
	for {
		row, err := t.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read org reference: %w", err)
		}
		ref := Reference{
			Location: strings.ToUpper(t.Fields.Value(row, TagCountry)),
			Acronym:  t.Fields.Value(row, TagAcronym),
			Name:     t.Fields.Value(row, TagName),
			TypeCode: t.Fields.Value(row, TagTypeCode),
		}
		for _, alt := range strings.Split(t.Fields.Value(row, TagAltNames), "|") {
			if alt = strings.TrimSpace(alt); alt != "" {
				ref.Alternates = append(ref.Alternates, alt)
			}
		}
		out = append(out, ref)
	}
}
