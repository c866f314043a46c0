package org

import (
	"context"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/hapi-pipelines/internal/codes"
	"github.com/JonMunkholm/hapi-pipelines/internal/reporting"
	"github.com/JonMunkholm/hapi-pipelines/internal/store"
)

func newRegistry(t *testing.T) (*Registry, *reporting.Manager) {
	t.Helper()
	orgTypes := codes.NewOrgTypes([]codes.Entry{
		{Code: "437", Name: "International NGO"},
		{Code: "441", Name: "National NGO"},
		{Code: "447", Name: "United Nations"},
	}, map[string]string{"ingo": "437", "un agency": "447"})
	errs := reporting.NewManager()
	r := NewRegistry(orgTypes, errs, Config{})

	n := r.LoadReference([]Reference{
		{
			Acronym:  "IOM",
			Name:     "International Organization for Migration",
			TypeCode: "447",
			Alternates: []string{
				"Organisation Internationale pour les Migrations",
				"International Organisation for Migrations",
			},
		},
		{
			Acronym:  "UNICEF",
			Name:     "United Nations Children's Fund",
			TypeCode: "447",
			Alternates: []string{
				"Fonds des Nations Unies pour l'Enfance",
				"United Nations Children's Emergency Fund",
			},
		},
		{Name: "  ", Acronym: ""},
	})
	require.Equal(t, 2, n)
	return r, errs
}

func see(r *Registry, text, location, acronym, typeName string) *Info {
	info := r.Info(text, location)
	r.Complete(info, acronym, typeName, "ds")
	return info
}

var (
	iomUsed = Info{
		CanonicalName:     "International Organization for Migration",
		NormalizedName:    "international organization for migration",
		Acronym:           "IOM",
		NormalizedAcronym: "iom",
		TypeCode:          "447",
		Used:              true,
		Complete:          true,
	}
	unicefUsed = Info{
		CanonicalName:     "United Nations Children's Fund",
		NormalizedName:    "united nations childrens fund",
		Acronym:           "UNICEF",
		NormalizedAcronym: "unicef",
		TypeCode:          "447",
		Used:              true,
		Complete:          true,
	}
)

// ============================================================================
// Variant Tests
// ============================================================================

func TestRegistry_ReferenceVariants(t *testing.T) {
	r, _ := newRegistry(t)

	see(r, "IOM", "", "", "")
	see(r, "Organisation Internationale pour les Migrations", "COD", "", "")
	see(r, "UNICEF", "", "", "")
	see(r, "Fonds des Nations Unies pour l'Enfance", "", "", "")

	tests := []struct {
		name string
		text string
		want Info
	}{
		{name: "acronym raw", text: "IOM", want: iomUsed},
		{name: "acronym normalized", text: "iom", want: iomUsed},
		{name: "alternate raw", text: "Organisation Internationale pour les Migrations", want: iomUsed},
		{name: "alternate normalized", text: "organisation internationale pour les migrations", want: iomUsed},
		{name: "unicef acronym", text: "unicef", want: unicefUsed},
		{name: "unicef alternate", text: "fonds des nations unies pour lenfance", want: unicefUsed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, *r.Info(tt.text, ""))
		})
	}
}

func TestRegistry_UnusedVariant(t *testing.T) {
	r, _ := newRegistry(t)
	see(r, "IOM", "", "", "")

	want := iomUsed
	want.Used = false
	want.Complete = false
	assert.Equal(t, want, *r.Info("International Organisation for Migrations", ""))
	assert.Equal(t, want, *r.Info("international organisation for migrations", ""))
}

func TestRegistry_Memoized(t *testing.T) {
	r, _ := newRegistry(t)

	a := r.Info("WEWORLD", "AFG")
	b := r.Info("WEWORLD", "AFG")
	assert.Same(t, a, b)
	assert.Equal(t, Info{CanonicalName: "WEWORLD", NormalizedName: "weworld"}, *a)

	c := r.Info("WEWORLD", "NGA")
	assert.NotSame(t, a, c, "variants are per location")

	assert.Same(t, r.Info("IOM", "AFG"), r.Info("IOM", ""), "global variants answer any location")
}

func TestRegistry_CompleteNewOrg(t *testing.T) {
	r, errs := newRegistry(t)

	weworld := see(r, "WEWORLD", "AFG", "WEWORLD", "")
	assert.Equal(t, Info{
		CanonicalName:     "WEWORLD",
		NormalizedName:    "weworld",
		Acronym:           "WEWORLD",
		NormalizedAcronym: "weworld",
		Used:              true,
	}, *weworld)

	hecadf := see(r, "HECADF", "NGA", "HECADF", "National NGO")
	assert.Equal(t, Info{
		CanonicalName:     "HECADF",
		NormalizedName:    "hecadf",
		Acronym:           "HECADF",
		NormalizedAcronym: "hecadf",
		TypeCode:          "441",
		Used:              true,
		Complete:          true,
	}, *hecadf)

	assert.Empty(t, errs.Errors())
}

func TestRegistry_UnknownOrgType(t *testing.T) {
	r, errs := newRegistry(t)

	info := see(r, "Foo Relief", "SDN", "FR", "Consortium of things")
	assert.Empty(t, info.TypeCode)
	assert.False(t, info.Complete)
	assert.True(t, info.Used)
	assert.Equal(t, []string{"OperationalPresence - ds - org type Consortium of things not found"}, errs.Errors())
}

func TestRegistry_AcronymTruncated(t *testing.T) {
	r, _ := newRegistry(t)

	long := strings.Repeat("Á", 40)
	info := see(r, "Long Name Org", "AFG", long, "")
	assert.Equal(t, strings.Repeat("Á", MaxAcronymLength), info.Acronym)
	assert.Equal(t, strings.Repeat("a", MaxAcronymLength), info.NormalizedAcronym)
}

// ============================================================================
// Convergence Tests
// ============================================================================

func TestAddOrMatch_InheritsType(t *testing.T) {
	r, _ := newRegistry(t)

	first := see(r, "Save the Children", "AFG", "SCI", "International NGO")
	require.Equal(t, "437", first.TypeCode)

	second := see(r, "SAVE THE CHILDREN", "SYR", "sci", "")
	assert.Equal(t, "437", second.TypeCode)
	assert.Equal(t, "Save the Children", second.CanonicalName)
	assert.Equal(t, "SCI", second.Acronym)
	assert.True(t, second.Complete)
	assert.Equal(t, 3, r.Len())
}

func TestAddOrMatch_CanonicalAdoptsType(t *testing.T) {
	r, _ := newRegistry(t)

	first := see(r, "Mercy Corps", "AFG", "MC", "")
	assert.False(t, first.Complete)

	second := see(r, "mercy corps", "SYR", "MC", "INGO")
	assert.Equal(t, "437", second.TypeCode)
	assert.True(t, second.Complete)

	var mc Data
	for _, d := range r.Canonical() {
		if d.Acronym == "MC" {
			mc = d
		}
	}
	assert.Equal(t, "437", mc.TypeCode)
}

// ============================================================================
// Flush Tests
// ============================================================================

func TestFlush(t *testing.T) {
	r, _ := newRegistry(t)
	see(r, "WEWORLD", "AFG", "WEWORLD", "")
	session := store.NewMemory()
	ctx := context.Background()

	n, err := r.Flush(ctx, session)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []store.Record{
		store.Org{Acronym: "IOM", Name: "International Organization for Migration", OrgTypeCode: pgtype.Text{String: "447", Valid: true}},
		store.Org{Acronym: "UNICEF", Name: "United Nations Children's Fund", OrgTypeCode: pgtype.Text{String: "447", Valid: true}},
		store.Org{Acronym: "WEWORLD", Name: "WEWORLD"},
	}, session.Records(store.TableOrg))

	n, err = r.Flush(ctx, session)
	require.NoError(t, err)
	assert.Zero(t, n, "records are written once")

	see(r, "HECADF", "NGA", "HECADF", "National NGO")
	n, err = r.Flush(ctx, session)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestVariants_Sorted(t *testing.T) {
	r, _ := newRegistry(t)
	see(r, "WEWORLD", "AFG", "WEWORLD", "")

	variants := r.Variants()
	require.NotEmpty(t, variants)
	last := variants[len(variants)-1]
	assert.Equal(t, "AFG", last.Location)
	assert.Equal(t, "WEWORLD", last.Text)
	for i := 1; i < len(variants); i++ {
		prev, cur := variants[i-1], variants[i]
		assert.True(t, prev.Location < cur.Location || (prev.Location == cur.Location && prev.Text <= cur.Text))
	}
}
