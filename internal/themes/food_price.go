package themes

import (
	"strings"

	"github.com/JonMunkholm/hapi-pipelines/internal/hdx"
	"github.com/JonMunkholm/hapi-pipelines/internal/store"
	"github.com/JonMunkholm/hapi-pipelines/internal/tabular"
)

// foodPriceResources marks the price resources of the food price dataset.
const foodPriceResources = "Food Prices"

func init() {
	Register(&Uploader{
		Theme:       "food_price",
		Suffix:      "food-price",
		EndResource: AllResources,
		MaxLevel:    NoAdmin,
		Accept: func(r hdx.Resource) bool {
			return strings.Contains(r.Name, foodPriceResources)
		},
		Extractor: ExtractFunc(extractFoodPrice),
	})
}

func extractFoodPrice(rc *RowContext) ([]store.Record, error) {
	return []store.Record{store.FoodPrice{
		ResourceHDXID: rc.ResourceID,
		MarketCode:    rc.Get("market_code"),
		CommodityCode: rc.Get("commodity_code"),
		CurrencyCode:  rc.Get("currency_code"),
		Unit:          rc.Get("unit"),
		PriceFlag:     rc.Get("price_flag"),
		PriceType:     rc.Get("price_type"),
		Price:         tabular.Numeric(rc.Get("price")),
		Period:        rc.Period,
	}}, nil
}
