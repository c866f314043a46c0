package themes

import (
	"github.com/JonMunkholm/hapi-pipelines/internal/store"
	"github.com/JonMunkholm/hapi-pipelines/internal/tabular"
)

var displacementLocations = []string{"origin_location_code", "asylum_location_code"}

func init() {
	Register(&Uploader{
		Theme:           "refugees",
		Suffix:          "refugees",
		EndResource:     AllResources,
		MaxLevel:        LocationLevel,
		LocationHeaders: displacementLocations,
		Extractor: ExtractFunc(func(rc *RowContext) ([]store.Record, error) {
			d, ok := extractDisplacement(rc)
			if !ok {
				return nil, nil
			}
			return []store.Record{store.Refugees{Displacement: d}}, nil
		}),
	})
	Register(&Uploader{
		Theme:           "returnees",
		Suffix:          "returnees",
		MaxLevel:        LocationLevel,
		LocationHeaders: displacementLocations,
		Extractor: ExtractFunc(func(rc *RowContext) ([]store.Record, error) {
			d, ok := extractDisplacement(rc)
			if !ok {
				return nil, nil
			}
			return []store.Record{store.Returnees{Displacement: d}}, nil
		}),
	})
}

func extractDisplacement(rc *RowContext) (store.Displacement, bool) {
	population, ok := parsePopulation(rc, "population")
	if !ok {
		return store.Displacement{}, false
	}
	return store.Displacement{
		ResourceHDXID:     rc.ResourceID,
		OriginLocationRef: rc.LocationRefs["origin_location_ref"],
		AsylumLocationRef: rc.LocationRefs["asylum_location_ref"],
		PopulationGroup:   rc.Get("population_group"),
		Gender:            rc.Get("gender"),
		AgeRange:          rc.Get("age_range"),
		MinAge:            tabular.Int4(rc.Get("min_age")),
		MaxAge:            tabular.Int4(rc.Get("max_age")),
		Population:        population,
		Period:            rc.Period,
	}, true
}
