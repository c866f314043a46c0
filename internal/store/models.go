package store

import (
	"github.com/jackc/pgx/v5/pgtype"
)

// Period is the reference period every fact row carries.
type Period struct {
	Start pgtype.Timestamp
	End   pgtype.Timestamp
}

// ProviderAdmin holds the admin names as written by the data provider.
type ProviderAdmin struct {
	Admin1Name string
	Admin2Name string
}

// ============================================================================
// Reference tables
// ============================================================================

type Location struct {
	Code   string
	Name   string
	HasHRP bool
	InGHO  bool
	Period
}

func (Location) Table() Table { return TableLocation }
func (Location) Columns() []string {
	return []string{"code", "name", "has_hrp", "in_gho", "reference_period_start", "reference_period_end"}
}
func (r Location) Values() []any {
	return []any{r.Code, r.Name, r.HasHRP, r.InGHO, r.Start, r.End}
}

type Admin1 struct {
	LocationRef   int64
	Code          string
	Name          string
	IsUnspecified bool
	Period
}

func (Admin1) Table() Table { return TableAdmin1 }
func (Admin1) Columns() []string {
	return []string{"location_ref", "code", "name", "is_unspecified", "reference_period_start", "reference_period_end"}
}
func (r Admin1) Values() []any {
	return []any{r.LocationRef, r.Code, r.Name, r.IsUnspecified, r.Start, r.End}
}

type Admin2 struct {
	Admin1Ref     int64
	Code          string
	Name          string
	IsUnspecified bool
	Period
}

func (Admin2) Table() Table { return TableAdmin2 }
func (Admin2) Columns() []string {
	return []string{"admin1_ref", "code", "name", "is_unspecified", "reference_period_start", "reference_period_end"}
}
func (r Admin2) Values() []any {
	return []any{r.Admin1Ref, r.Code, r.Name, r.IsUnspecified, r.Start, r.End}
}

type Dataset struct {
	HDXID        string
	HDXStub      string
	Title        string
	ProviderStub string
	ProviderName string
}

func (Dataset) Table() Table { return TableDataset }
func (Dataset) Columns() []string {
	return []string{"hdx_id", "hdx_stub", "title", "hdx_provider_stub", "hdx_provider_name"}
}
func (r Dataset) Values() []any {
	return []any{r.HDXID, r.HDXStub, r.Title, r.ProviderStub, r.ProviderName}
}

type Resource struct {
	HDXID           string
	DatasetHDXID    string
	Name            string
	Format          string
	UpdateDate      pgtype.Timestamp
	IsHXL           bool
	DownloadURL     string
	HAPIUpdatedDate pgtype.Timestamp
}

func (Resource) Table() Table { return TableResource }
func (Resource) Columns() []string {
	return []string{"hdx_id", "dataset_hdx_id", "name", "format", "update_date", "is_hxl", "download_url", "hapi_updated_date"}
}
func (r Resource) Values() []any {
	return []any{r.HDXID, r.DatasetHDXID, r.Name, r.Format, r.UpdateDate, r.IsHXL, r.DownloadURL, r.HAPIUpdatedDate}
}

type OrgType struct {
	Code        string
	Description string
}

func (OrgType) Table() Table { return TableOrgType }
func (OrgType) Columns() []string { return []string{"code", "description"} }
func (r OrgType) Values() []any { return []any{r.Code, r.Description} }

type Sector struct {
	Code string
	Name string
}

func (Sector) Table() Table { return TableSector }
func (Sector) Columns() []string { return []string{"code", "name"} }
func (r Sector) Values() []any { return []any{r.Code, r.Name} }

type Org struct {
	Acronym     string
	Name        string
	OrgTypeCode pgtype.Text
}

func (Org) Table() Table { return TableOrg }
func (Org) Columns() []string { return []string{"acronym", "name", "org_type_code"} }
func (r Org) Values() []any { return []any{r.Acronym, r.Name, r.OrgTypeCode} }

type Currency struct {
	Code string
	Name string
}

func (Currency) Table() Table { return TableCurrency }
func (Currency) Columns() []string { return []string{"code", "name"} }
func (r Currency) Values() []any { return []any{r.Code, r.Name} }

type WFPCommodity struct {
	Code     string
	Category string
	Name     string
}

func (WFPCommodity) Table() Table { return TableWFPCommodity }
func (WFPCommodity) Columns() []string { return []string{"code", "category", "name"} }
func (r WFPCommodity) Values() []any { return []any{r.Code, r.Category, r.Name} }

type WFPMarket struct {
	Code      string
	Admin2Ref int64
	ProviderAdmin
	Name string
	Lat  pgtype.Float8
	Lon  pgtype.Float8
}

func (WFPMarket) Table() Table { return TableWFPMarket }
func (WFPMarket) Columns() []string {
	return []string{"code", "admin2_ref", "provider_admin1_name", "provider_admin2_name", "name", "lat", "lon"}
}
func (r WFPMarket) Values() []any {
	return []any{r.Code, r.Admin2Ref, r.Admin1Name, r.Admin2Name, r.Name, r.Lat, r.Lon}
}

// ============================================================================
// Fact tables
// ============================================================================

type Population struct {
	ResourceHDXID string
	Admin2Ref     int64
	ProviderAdmin
	Gender     string
	AgeRange   string
	MinAge     pgtype.Int4
	MaxAge     pgtype.Int4
	Population int64
	Period
}

func (Population) Table() Table { return TablePopulation }
func (Population) Columns() []string {
	return []string{"resource_hdx_id", "admin2_ref", "provider_admin1_name", "provider_admin2_name",
		"gender", "age_range", "min_age", "max_age", "population", "reference_period_start", "reference_period_end"}
}
func (r Population) Values() []any {
	return []any{r.ResourceHDXID, r.Admin2Ref, r.Admin1Name, r.Admin2Name,
		r.Gender, r.AgeRange, r.MinAge, r.MaxAge, r.Population, r.Start, r.End}
}

type OperationalPresence struct {
	ResourceHDXID string
	Admin2Ref     int64
	ProviderAdmin
	OrgAcronym string
	OrgName    string
	SectorCode string
	Period
}

func (OperationalPresence) Table() Table { return TableOperationalPresence }
func (OperationalPresence) Columns() []string {
	return []string{"resource_hdx_id", "admin2_ref", "provider_admin1_name", "provider_admin2_name",
		"org_acronym", "org_name", "sector_code", "reference_period_start", "reference_period_end"}
}
func (r OperationalPresence) Values() []any {
	return []any{r.ResourceHDXID, r.Admin2Ref, r.Admin1Name, r.Admin2Name,
		r.OrgAcronym, r.OrgName, r.SectorCode, r.Start, r.End}
}

type ConflictEvent struct {
	ResourceHDXID string
	Admin2Ref     int64
	ProviderAdmin
	EventType  string
	Events     pgtype.Int4
	Fatalities pgtype.Int4
	Period
}

func (ConflictEvent) Table() Table { return TableConflictEvent }
func (ConflictEvent) Columns() []string {
	return []string{"resource_hdx_id", "admin2_ref", "provider_admin1_name", "provider_admin2_name",
		"event_type", "events", "fatalities", "reference_period_start", "reference_period_end"}
}
func (r ConflictEvent) Values() []any {
	return []any{r.ResourceHDXID, r.Admin2Ref, r.Admin1Name, r.Admin2Name,
		r.EventType, r.Events, r.Fatalities, r.Start, r.End}
}

type FoodSecurity struct {
	ResourceHDXID string
	Admin2Ref     int64
	ProviderAdmin
	IPCPhase                  string
	IPCType                   string
	PopulationInPhase         int64
	PopulationFractionInPhase float64
	Period
}

func (FoodSecurity) Table() Table { return TableFoodSecurity }
func (FoodSecurity) Columns() []string {
	return []string{"resource_hdx_id", "admin2_ref", "provider_admin1_name", "provider_admin2_name",
		"ipc_phase", "ipc_type", "population_in_phase", "population_fraction_in_phase",
		"reference_period_start", "reference_period_end"}
}
func (r FoodSecurity) Values() []any {
	return []any{r.ResourceHDXID, r.Admin2Ref, r.Admin1Name, r.Admin2Name,
		r.IPCPhase, r.IPCType, r.PopulationInPhase, r.PopulationFractionInPhase, r.Start, r.End}
}

type HumanitarianNeeds struct {
	ResourceHDXID string
	Admin2Ref     int64
	ProviderAdmin
	SectorCode       string
	Category         string
	PopulationStatus string
	Population       int64
	Period
}

func (HumanitarianNeeds) Table() Table { return TableHumanitarianNeeds }
func (HumanitarianNeeds) Columns() []string {
	return []string{"resource_hdx_id", "admin2_ref", "provider_admin1_name", "provider_admin2_name",
		"sector_code", "category", "population_status", "population", "reference_period_start", "reference_period_end"}
}
func (r HumanitarianNeeds) Values() []any {
	return []any{r.ResourceHDXID, r.Admin2Ref, r.Admin1Name, r.Admin2Name,
		r.SectorCode, r.Category, r.PopulationStatus, r.Population, r.Start, r.End}
}

type PovertyRate struct {
	ResourceHDXID          string
	Admin1Ref              int64
	ProviderAdmin1Name     string
	MPI                    float64
	HeadcountRatio         float64
	IntensityOfDeprivation float64
	Vulnerable             float64
	InSeverePoverty        float64
	Period
}

func (PovertyRate) Table() Table { return TablePovertyRate }
func (PovertyRate) Columns() []string {
	return []string{"resource_hdx_id", "admin1_ref", "provider_admin1_name", "mpi", "headcount_ratio",
		"intensity_of_deprivation", "vulnerable_to_poverty", "in_severe_poverty",
		"reference_period_start", "reference_period_end"}
}
func (r PovertyRate) Values() []any {
	return []any{r.ResourceHDXID, r.Admin1Ref, r.ProviderAdmin1Name, r.MPI, r.HeadcountRatio,
		r.IntensityOfDeprivation, r.Vulnerable, r.InSeverePoverty, r.Start, r.End}
}

type Funding struct {
	ResourceHDXID   string
	AppealCode      string
	LocationRef     int64
	AppealName      string
	AppealType      string
	RequirementsUSD pgtype.Numeric
	FundingUSD      pgtype.Numeric
	FundingPct      pgtype.Numeric
	Period
}

func (Funding) Table() Table { return TableFunding }
func (Funding) Columns() []string {
	return []string{"resource_hdx_id", "appeal_code", "location_ref", "appeal_name", "appeal_type",
		"requirements_usd", "funding_usd", "funding_pct", "reference_period_start", "reference_period_end"}
}
func (r Funding) Values() []any {
	return []any{r.ResourceHDXID, r.AppealCode, r.LocationRef, r.AppealName, r.AppealType,
		r.RequirementsUSD, r.FundingUSD, r.FundingPct, r.Start, r.End}
}

type IDPs struct {
	ResourceHDXID string
	Admin2Ref     int64
	ProviderAdmin
	AssessmentType string
	ReportingRound pgtype.Int4
	Operation      string
	Population     int64
	Period
}

func (IDPs) Table() Table { return TableIDPs }
func (IDPs) Columns() []string {
	return []string{"resource_hdx_id", "admin2_ref", "provider_admin1_name", "provider_admin2_name",
		"assessment_type", "reporting_round", "operation", "population", "reference_period_start", "reference_period_end"}
}
func (r IDPs) Values() []any {
	return []any{r.ResourceHDXID, r.Admin2Ref, r.Admin1Name, r.Admin2Name,
		r.AssessmentType, r.ReportingRound, r.Operation, r.Population, r.Start, r.End}
}

// Displacement is the shared shape of refugee and returnee rows.
type Displacement struct {
	ResourceHDXID     string
	OriginLocationRef int64
	AsylumLocationRef int64
	PopulationGroup   string
	Gender            string
	AgeRange          string
	MinAge            pgtype.Int4
	MaxAge            pgtype.Int4
	Population        int64
	Period
}

func (Displacement) Columns() []string {
	return []string{"resource_hdx_id", "origin_location_ref", "asylum_location_ref", "population_group",
		"gender", "age_range", "min_age", "max_age", "population", "reference_period_start", "reference_period_end"}
}
func (r Displacement) Values() []any {
	return []any{r.ResourceHDXID, r.OriginLocationRef, r.AsylumLocationRef, r.PopulationGroup,
		r.Gender, r.AgeRange, r.MinAge, r.MaxAge, r.Population, r.Start, r.End}
}

type Refugees struct{ Displacement }

func (Refugees) Table() Table { return TableRefugees }

type Returnees struct{ Displacement }

func (Returnees) Table() Table { return TableReturnees }

type Rainfall struct {
	ResourceHDXID string
	Admin2Ref     int64
	ProviderAdmin
	ProviderAdmin1Code      string
	ProviderAdmin2Code      string
	AggregationPeriod       string
	Rainfall                pgtype.Float8
	RainfallLongTermAverage pgtype.Float8
	RainfallAnomalyPct      pgtype.Float8
	NumberPixels            pgtype.Int4
	Version                 string
	Period
}

func (Rainfall) Table() Table { return TableRainfall }
func (Rainfall) Columns() []string {
	return []string{"resource_hdx_id", "admin2_ref", "provider_admin1_name", "provider_admin2_name",
		"provider_admin1_code", "provider_admin2_code", "aggregation_period", "rainfall",
		"rainfall_long_term_average", "rainfall_anomaly_pct", "number_pixels", "version",
		"reference_period_start", "reference_period_end"}
}
func (r Rainfall) Values() []any {
	return []any{r.ResourceHDXID, r.Admin2Ref, r.Admin1Name, r.Admin2Name,
		r.ProviderAdmin1Code, r.ProviderAdmin2Code, r.AggregationPeriod, r.Rainfall,
		r.RainfallLongTermAverage, r.RainfallAnomalyPct, r.NumberPixels, r.Version, r.Start, r.End}
}

type FoodPrice struct {
	ResourceHDXID string
	MarketCode    string
	CommodityCode string
	CurrencyCode  string
	Unit          string
	PriceFlag     string
	PriceType     string
	Price         pgtype.Numeric
	Period
}

func (FoodPrice) Table() Table { return TableFoodPrice }
func (FoodPrice) Columns() []string {
	return []string{"resource_hdx_id", "market_code", "commodity_code", "currency_code", "unit",
		"price_flag", "price_type", "price", "reference_period_start", "reference_period_end"}
}
func (r FoodPrice) Values() []any {
	return []any{r.ResourceHDXID, r.MarketCode, r.CommodityCode, r.CurrencyCode, r.Unit,
		r.PriceFlag, r.PriceType, r.Price, r.Start, r.End}
}
