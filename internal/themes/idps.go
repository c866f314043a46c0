package themes

import (
	"fmt"

	"github.com/JonMunkholm/hapi-pipelines/internal/store"
	"github.com/JonMunkholm/hapi-pipelines/internal/tabular"
)

func init() {
	Register(&Uploader{
		Theme:     "idps",
		Suffix:    "idps",
		MaxLevel:  Admin2Level,
		Extractor: ExtractFunc(extractIDPs),
	})
}

func extractIDPs(rc *RowContext) ([]store.Record, error) {
	population, ok := parsePopulation(rc, "population")
	if !ok {
		return nil, nil
	}
	return []store.Record{store.IDPs{
		ResourceHDXID:  rc.ResourceID,
		Admin2Ref:      rc.Admin2Ref,
		ProviderAdmin:  rc.Provider,
		AssessmentType: rc.Get("assessment_type"),
		ReportingRound: tabular.Int4(rc.Get("reporting_round")),
		Operation:      rc.Get("operation"),
		Population:     population,
		Period:         rc.Period,
	}}, nil
}

// parsePopulation parses an integer population column. A malformed value is
// reported and the row skipped.
func parsePopulation(rc *RowContext, header string) (int64, bool) {
	v := rc.Get(header)
	n, ok := tabular.Int(v)
	if !ok {
		rc.Report(fmt.Sprintf("invalid %s %q", header, v))
		return 0, false
	}
	return n, true
}
