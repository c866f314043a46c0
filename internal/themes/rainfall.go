package themes

import (
	"github.com/JonMunkholm/hapi-pipelines/internal/store"
	"github.com/JonMunkholm/hapi-pipelines/internal/tabular"
)

func init() {
	Register(&Uploader{
		Theme:       "rainfall",
		Suffix:      "rainfall",
		EndResource: AllResources,
		MaxLevel:    Admin2Level,
		Extractor:   ExtractFunc(extractRainfall),
	})
}

func extractRainfall(rc *RowContext) ([]store.Record, error) {
	return []store.Record{store.Rainfall{
		ResourceHDXID:           rc.ResourceID,
		Admin2Ref:               rc.Admin2Ref,
		ProviderAdmin:           rc.Provider,
		ProviderAdmin1Code:      rc.Get("provider_admin1_code"),
		ProviderAdmin2Code:      rc.Get("provider_admin2_code"),
		AggregationPeriod:       rc.Get("aggregation_period"),
		Rainfall:                tabular.Float8(rc.Get("rainfall")),
		RainfallLongTermAverage: tabular.Float8(rc.Get("rainfall_long_term_average")),
		RainfallAnomalyPct:      tabular.Float8(rc.Get("rainfall_anomaly_pct")),
		NumberPixels:            tabular.Int4(rc.Get("number_pixels")),
		Version:                 rc.Get("version"),
		Period:                  rc.Period,
	}}, nil
}
