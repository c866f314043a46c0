package themes

import (
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/hapi-pipelines/internal/admin"
	"github.com/JonMunkholm/hapi-pipelines/internal/config"
	"github.com/JonMunkholm/hapi-pipelines/internal/hdx"
	"github.com/JonMunkholm/hapi-pipelines/internal/store"
)

// ============================================================================
// Population
// ============================================================================

func TestPopulationLevel(t *testing.T) {
	tests := []struct {
		name   string
		want   admin.Level
		wantOK bool
	}{
		{"afg_pop_adm0.csv", admin.National, true},
		{"afg_pop_adm1.csv", admin.AdminOne, true},
		{"afg_pop_adm2", admin.AdminTwo, true},
		{"readme.txt", 0, false},
		{".csv", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := populationLevel(tt.name)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPopulation(t *testing.T) {
	reader := newReader(hdx.Dataset{
		ID:   "ds-cod-ps",
		Name: populationDataset,
		Resources: []hdx.Resource{
			{ID: "res-adm1", Name: "afg_pop_adm1.csv", URL: "pop1.csv"},
			{ID: "res-readme", Name: "readme.txt", URL: "readme.txt"},
		},
	})
	reader.files["pop1.csv"] = "ISO3,ADM1_PCODE,ADM1_NAME,Gender,Age_range,Age_min,Age_max,Population,Reference_year\n" +
		"#country+code,#adm1+code,#adm1+name,#gender,#age+range,#age+min,#age+max,#population,#date+year\n" +
		"AFG,AF01,Kabul,f,0-4,0,4,100,2023\n" +
		"AFG,AF09,Unknown,f,0-4,0,4,50,2023\n" +
		"AFG,AF02,Kapisa,f,0-4,0,4,n/a,2023\n"
	env, session := newEnv(t, reader)

	populate(t, env, "population")

	recs := recordsOf[store.Population](t, session, store.TablePopulation)
	require.Len(t, recs, 2)

	assert.Equal(t, admin2ID(t, env, "AF01-XXX"), recs[0].Admin2Ref)
	assert.Equal(t, "Kabul", recs[0].Admin1Name)
	assert.Equal(t, pgtype.Int4{Int32: 0, Valid: true}, recs[0].MinAge)
	assert.Equal(t, int64(100), recs[0].Population)
	assert.Equal(t, time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), recs[0].Start.Time)
	assert.Equal(t, time.Date(2023, 12, 31, 23, 59, 59, 0, time.UTC), recs[0].End.Time)

	assert.Equal(t, admin2ID(t, env, "AFG-XXX-XXX"), recs[1].Admin2Ref, "unknown admin1 falls back to the country")

	assert.Equal(t, []string{`Population - cod-ps-global - invalid population "n/a" in AFG`}, env.Errors.Errors())
	assert.Equal(t, 1, session.Count(store.TableResource), "only admin level resources are recorded")
}

// ============================================================================
// Food security
// ============================================================================

func TestFoodSecurityLevel(t *testing.T) {
	tests := []struct {
		name   string
		want   admin.Level
		wantOK bool
	}{
		{"ipc_global_national_long_latest.csv", admin.National, true},
		{"ipc_global_level1_long_latest.csv", admin.AdminOne, true},
		{"ipc_global_area_long_latest.csv", admin.AdminTwo, true},
		{"ipc_global_national_wide_latest.csv", 0, false},
		{"ipc_global_long_latest.csv", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := foodSecurityLevel(tt.name)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

const ipcHeader = "Date of analysis,Country,Level 1,Area,Validity period,From,To,Phase,Number,Percentage\n"

func TestFoodSecurity(t *testing.T) {
	reader := newReader(hdx.Dataset{
		ID:   "ds-ipc",
		Name: foodSecurityDataset,
		Resources: []hdx.Resource{
			{ID: "res-national", Name: "ipc_global_national_long_latest.csv", URL: "national.csv"},
			{ID: "res-level1", Name: "ipc_global_level1_long_latest.csv", URL: "level1.csv"},
			{ID: "res-area", Name: "ipc_global_area_long_latest.csv", URL: "area.csv"},
			{ID: "res-wide", Name: "ipc_global_national_wide.csv", URL: "wide.csv"},
		},
	})
	reader.files["national.csv"] = ipcHeader +
		"Nov 2023,AFG,,,current,2023-11-01,2024-03-31,3,\"1,000\",0.1\n" +
		"Nov 2023,SDN,,,current,2023-11-01,2024-03-31,3,500,0.1\n"
	reader.files["level1.csv"] = ipcHeader +
		"Nov 2023,AFG,Kabul,,current,2023-11-01,2024-03-31,3,500,0.2\n" +
		"Nov 2023,AFG,,,current,2023-11-01,2024-03-31,3,10,0.2\n" +
		"Nov 2023,AFG,IDP camps,,current,2023-11-01,2024-03-31,3,20,0.2\n" +
		"Nov 2023,AFG,Atlantis,,current,2023-11-01,2024-03-31,3,30,0.2\n"
	reader.files["area.csv"] = ipcHeader +
		"Nov 2023,AFG,Kabul,Kabul City,current,2023-11-01,2024-03-31,4,40,0.3\n" +
		"Nov 2023,COD,Gombe,,projected,2024-04-01,2024-08-31,2,60,0.4\n"
	env, session := newEnv(t, reader)
	env.Mappings = &config.Mappings{FoodSecurity: config.FoodSecurity{
		Adm2InLevel1:      []string{"COD"},
		AdmIgnorePatterns: []string{"idp"},
	}}

	populate(t, env, "food_security")

	recs := recordsOf[store.FoodSecurity](t, session, store.TableFoodSecurity)
	require.Len(t, recs, 7)

	national := admin2ID(t, env, "AFG-XXX-XXX")
	assert.Equal(t, national, recs[0].Admin2Ref)
	assert.Equal(t, int64(1000), recs[0].PopulationInPhase)
	assert.Equal(t, "current", recs[0].IPCType)

	assert.Equal(t, admin2ID(t, env, "AF01-XXX"), recs[1].Admin2Ref)
	assert.Equal(t, "Kabul", recs[1].Admin1Name)
	for _, rec := range recs[2:5] {
		assert.Equal(t, national, rec.Admin2Ref, "unmatched level 1 rows fall back to the country")
	}

	assert.Equal(t, admin2ID(t, env, "AF0101"), recs[5].Admin2Ref)
	assert.Equal(t, "4", recs[5].IPCPhase)
	assert.Equal(t, admin2ID(t, env, "COD-XXX-XXX"), recs[6].Admin2Ref)
	assert.InDelta(t, 0.4, recs[6].PopulationFractionInPhase, 1e-9)

	warnings := env.Errors.Warnings()
	prefix := "FoodSecurity - " + foodSecurityDataset + " - "
	assert.Contains(t, warnings, prefix+"Admin 1: ignoring blank Level 1 name in AFG")
	assert.Contains(t, warnings, prefix+"Admin 1: ignoring AFG|IDP camps")
	assert.Contains(t, warnings, prefix+"Admin 1: could not match AFG|Atlantis!")
	assert.Contains(t, warnings, prefix+"Admin 2: could not match COD|NOT GIVEN|Gombe!")
	assert.Empty(t, env.Errors.Errors())
}

// ============================================================================
// Humanitarian needs
// ============================================================================

func TestPlanYear(t *testing.T) {
	year, err := planYear("hpc_hno_2024")
	require.NoError(t, err)
	assert.Equal(t, 2024, year)

	for _, name := range []string{"hno", "hpc_hno_bad"} {
		t.Run(name, func(t *testing.T) {
			_, err := planYear(name)
			assert.ErrorIs(t, err, ErrConfiguration)
		})
	}
}

func TestHumanitarianNeeds(t *testing.T) {
	reader := newReader(hdx.Dataset{
		ID:   "ds-hno",
		Name: humanitarianNeedsDataset,
		Resources: []hdx.Resource{
			{ID: "res-2024", Name: "hpc_hno_2024", URL: "hno2024.csv"},
			{ID: "res-bad", Name: "hpc_hno_bad", URL: "hnobad.csv"},
		},
	})
	reader.files["hno2024.csv"] = "Country ISO3,Admin 1 PCode,Admin 1 Name,Admin 2 PCode,Admin 2 Name,Sector,Category," +
		"Population,Affected,In Need,Targeted,Reached,Error\n" +
		"#country+code,#adm1+code,#adm1+name,#adm2+code,#adm2+name,#sector,#category," +
		"#population,#affected,#inneed,#targeted,#reached,\n" +
		"AFG,AF01,Kabul,AF0101,Kabul City,FSC,total,100,,50,,,\n" +
		"AFG,,,,,Health,total,20,,,,,\n" +
		"AFG,AF01,Kabul,AF0101,Kabul City,XYZ,total,10,,,,,\n" +
		"AFG,AF01,Kabul,AF0101,Kabul City,Food Securty,total,5,,,,,\n" +
		"AFG,AF02,Kapisa,AF0201,Kohistan,FSC,total,30,,,,,Kohistan code retired\n"
	env, session := newEnv(t, reader)

	populate(t, env, "humanitarian_needs")

	recs := recordsOf[store.HumanitarianNeeds](t, session, store.TableHumanitarianNeeds)
	require.Len(t, recs, 4)

	assert.Equal(t, "all", recs[0].PopulationStatus)
	assert.Equal(t, int64(100), recs[0].Population)
	assert.Equal(t, admin2ID(t, env, "AF0101"), recs[0].Admin2Ref)
	assert.Equal(t, "Kabul City", recs[0].Admin2Name)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), recs[0].Start.Time)

	assert.Equal(t, "INN", recs[1].PopulationStatus)
	assert.Equal(t, int64(50), recs[1].Population)

	assert.Equal(t, "HEA", recs[2].SectorCode)
	assert.Equal(t, admin2ID(t, env, "AFG-XXX-XXX"), recs[2].Admin2Ref)

	assert.Equal(t, "FSC", recs[3].SectorCode, "misspelt name matches fuzzily")
	assert.Equal(t, int64(5), recs[3].Population)
	assert.Equal(t, []string{"XYZ"}, env.Sectors.Unmatched(), "only values nothing matched are kept")

	assert.Equal(t, []string{
		`HumanitarianNeeds - global-hpc-hno - resource name "hpc_hno_bad" has no year: configuration error`,
		"HumanitarianNeeds - global-hpc-hno - sector XYZ not found",
	}, env.Errors.Errors())
}

func TestHumanitarianNeeds_UntaggedResource(t *testing.T) {
	reader := newReader(hdx.Dataset{
		ID:        "ds-hno",
		Name:      humanitarianNeedsDataset,
		Resources: []hdx.Resource{{ID: "res-2024", Name: "hpc_hno_2024", URL: "hno2024.csv"}},
	})
	reader.files["hno2024.csv"] = "Country ISO3,Sector,Population\nAFG,FSC,100\n"
	env, session := newEnv(t, reader)

	populate(t, env, "humanitarian_needs")

	assert.Zero(t, session.Count(store.TableHumanitarianNeeds))
	assert.Equal(t, []string{
		"HumanitarianNeeds - global-hpc-hno - resource hpc_hno_2024 skipped: no #country+code tag: configuration error",
	}, env.Errors.Errors())
}

// ============================================================================
// Poverty rate
// ============================================================================

const mpiHeader = "Country ISO3,Admin 1 PCode,Admin 1 Name,MPI,Headcount Ratio,Intensity of Deprivation," +
	"Vulnerable to Poverty,In Severe Poverty,Start Date,End Date\n" +
	"#country+code,#adm1+code,#adm1+name,#indicator+mpi,#indicator+headcount_ratio,#indicator+intensity_of_deprivation," +
	"#indicator+vulnerable_to_poverty,#indicator+in_severe_poverty,#date+start,#date+end\n"

func TestPovertyRate(t *testing.T) {
	reader := newReader(hdx.Dataset{
		ID:   "ds-mpi",
		Name: povertyRateDataset,
		Resources: []hdx.Resource{
			{ID: "res-older", Name: "mpi_subnational_older", URL: "mpi0.csv"},
			{ID: "res-latest", Name: "mpi_subnational_latest", URL: "mpi1.csv"},
			{ID: "res-extra", Name: "mpi_notes", URL: "not-served.csv"},
		},
	})
	reader.files["mpi1.csv"] = mpiHeader +
		"AFG,AF01,Kabul,0.3,60,50,20,10,2020-01-01,2020-12-31\n" +
		"AFG,AF01,Kabul,0.3,60,50,20,10,2020-01-01,2020-12-31\n"
	reader.files["mpi0.csv"] = mpiHeader +
		"AFG,AF01,Kabul,0.5,70,50,20,10,2020-01-01,2020-12-31\n" +
		"AFG,AF02,Kapisa,,70,50,20,10,2020-01-01,2020-12-31\n"
	env, session := newEnv(t, reader)

	populate(t, env, "poverty_rate")

	recs := recordsOf[store.PovertyRate](t, session, store.TablePovertyRate)
	require.Len(t, recs, 2)

	kabul, ok := env.Admins.Admin1("AF01")
	require.True(t, ok)
	assert.Equal(t, kabul.ID, recs[0].Admin1Ref)
	assert.Equal(t, "res-latest", recs[0].ResourceHDXID)
	assert.InDelta(t, 0.3, recs[0].MPI, 1e-9)

	kapisa, ok := env.Admins.Admin1("AF02")
	require.True(t, ok)
	assert.Equal(t, kapisa.ID, recs[1].Admin1Ref)
	assert.Zero(t, recs[1].MPI)
	assert.InDelta(t, 70.0, recs[1].HeadcountRatio, 1e-9)

	assert.Equal(t, []string{
		"PovertyRate - global-mpi - 1 null values set to 0.0 in AFG: Kapisa",
		"PovertyRate - global-mpi - duplicate row in resource mpi_subnational_latest for AFG Kabul 2020-01-01-2020-12-31",
	}, env.Errors.Errors())
	assert.Equal(t, 2, session.Count(store.TableResource))
}
