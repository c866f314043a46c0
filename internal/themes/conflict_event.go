package themes

import (
	"github.com/JonMunkholm/hapi-pipelines/internal/store"
	"github.com/JonMunkholm/hapi-pipelines/internal/tabular"
)

func init() {
	Register(&Uploader{
		Theme:       "conflict_event",
		Suffix:      "conflict-event",
		EndResource: AllResources,
		MaxLevel:    Admin2Level,
		Extractor:   ExtractFunc(extractConflictEvent),
	})
}

func extractConflictEvent(rc *RowContext) ([]store.Record, error) {
	return []store.Record{store.ConflictEvent{
		ResourceHDXID: rc.ResourceID,
		Admin2Ref:     rc.Admin2Ref,
		ProviderAdmin: rc.Provider,
		EventType:     rc.Get("event_type"),
		Events:        tabular.Int4(rc.Get("events")),
		Fatalities:    tabular.Int4(rc.Get("fatalities")),
		Period:        rc.Period,
	}}, nil
}
