package themes

import (
	"strings"

	"github.com/JonMunkholm/hapi-pipelines/internal/store"
	"github.com/JonMunkholm/hapi-pipelines/internal/tabular"
)

func init() {
	Register(&BasicUploader{
		Theme:     "wfp_commodity",
		Suffix:    "wfp-commodity",
		Resource:  "hdx_hapi_wfp_commodity_global.csv",
		Extractor: ExtractFunc(extractWFPCommodity),
	})
	Register(&BasicUploader{
		Theme:     "wfp_market",
		Suffix:    "wfp-market",
		Resource:  "hdx_hapi_wfp_market_global.csv",
		Extractor: ExtractFunc(extractWFPMarket),
	})
	Register(&BasicUploader{
		Theme:     "currency",
		Suffix:    "currency",
		Resource:  "hdx_hapi_currency_global.csv",
		Extractor: ExtractFunc(extractCurrency),
	})
}

func extractWFPCommodity(rc *RowContext) ([]store.Record, error) {
	return []store.Record{store.WFPCommodity{
		Code:     rc.Get("code"),
		Category: rc.Get("category"),
		Name:     rc.Get("name"),
	}}, nil
}

func extractWFPMarket(rc *RowContext) ([]store.Record, error) {
	if rc.Get(colError) != "" {
		return nil, nil
	}
	rc.Country = strings.ToUpper(rc.Get(colLocation))
	if !rc.Env.Allowed("wfp_market", rc.Country) {
		return nil, nil
	}
	id, ok := admin2Ref(rc.Env, rc, func() (int64, error) {
		return rc.Env.Admins.Admin2RefFromRow(rc.Fields, rc.Row, Admin2Level, rc.Dataset, rc.Pipeline)
	})
	if !ok {
		return nil, nil
	}
	return []store.Record{store.WFPMarket{
		Code:      rc.Get("market_code"),
		Admin2Ref: id,
		ProviderAdmin: store.ProviderAdmin{
			Admin1Name: rc.Get(colProviderAdm1),
			Admin2Name: rc.Get(colProviderAdm2),
		},
		Name: rc.Get("market_name"),
		Lat:  tabular.Float8(rc.Get("lat")),
		Lon:  tabular.Float8(rc.Get("lon")),
	}}, nil
}

// extractCurrency keeps currencies without a name; the name is stored
// blank.
func extractCurrency(rc *RowContext) ([]store.Record, error) {
	return []store.Record{store.Currency{
		Code: rc.Get("code"),
		Name: rc.Get("name"),
	}}, nil
}
