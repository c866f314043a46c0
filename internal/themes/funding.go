package themes

import (
	"fmt"

	"github.com/JonMunkholm/hapi-pipelines/internal/store"
	"github.com/JonMunkholm/hapi-pipelines/internal/tabular"
)

func init() {
	Register(&Uploader{
		Theme:     "funding",
		Suffix:    "funding",
		MaxLevel:  LocationLevel,
		Extractor: ExtractFunc(extractFunding),
	})
}

func extractFunding(rc *RowContext) ([]store.Record, error) {
	appeal := rc.Get("appeal_code")
	start, end := rc.Period.Start, rc.Period.End
	if start.Valid && end.Valid && end.Time.Before(start.Time) {
		rc.Report(fmt.Sprintf("appeal %s ends before it starts", appeal))
		return nil, nil
	}
	return []store.Record{store.Funding{
		ResourceHDXID:   rc.ResourceID,
		AppealCode:      appeal,
		LocationRef:     rc.LocationRefs["location_ref"],
		AppealName:      rc.Get("appeal_name"),
		AppealType:      rc.Get("appeal_type"),
		RequirementsUSD: tabular.Numeric(rc.Get("requirements_usd")),
		FundingUSD:      tabular.Numeric(rc.Get("funding_usd")),
		FundingPct:      tabular.Numeric(rc.Get("funding_pct")),
		Period:          rc.Period,
	}}, nil
}
