package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Memory Session Tests
// ============================================================================

func TestMemory_AddCommitLookup(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	start := pgtype.Timestamp{Time: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), Valid: true}

	require.NoError(t, m.Add(ctx, Location{Code: "AFG", Name: "Afghanistan", Period: Period{Start: start}}))
	require.NoError(t, m.Add(ctx, Location{Code: "COD", Name: "DRC"}))

	refs, err := m.Lookup(ctx, TableLocation)
	require.NoError(t, err)
	assert.Empty(t, refs, "rows are invisible before commit")

	require.NoError(t, m.Commit(ctx))
	refs, err = m.Lookup(ctx, TableLocation)
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, int64(1), refs["AFG"].ID)
	assert.Equal(t, int64(2), refs["COD"].ID)
	assert.True(t, refs["AFG"].ReferencePeriodStart.Valid)
	assert.Equal(t, 1, m.Commits())
}

func TestMemory_DuplicateCode(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.Add(ctx, Admin1{Code: "AF01"}))
	err := m.Add(ctx, Admin1{Code: "AF01"})
	require.Error(t, err, "duplicate in pending rows")
	assert.Equal(t, "DB001", Describe(err).Code)

	require.NoError(t, m.Commit(ctx))
	assert.Error(t, m.Add(ctx, Admin1{Code: "AF01"}), "duplicate of committed row")
	assert.NoError(t, m.Add(ctx, Admin2{Code: "AF01"}), "codes are unique per table")
}

func TestMemory_Rollback(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.Add(ctx, Location{Code: "AFG"}))
	require.NoError(t, m.Commit(ctx))
	require.NoError(t, m.Add(ctx, Location{Code: "COD"}))
	require.NoError(t, m.Rollback(ctx))
	require.NoError(t, m.Commit(ctx))

	refs, err := m.Lookup(ctx, TableLocation)
	require.NoError(t, err)
	assert.Len(t, refs, 1, "rolled back rows are never committed")
	assert.NoError(t, m.Add(ctx, Location{Code: "COD"}), "rolled back codes are free again")
	assert.Equal(t, 1, m.Rollbacks())
}

func TestMemory_LookupUncoded(t *testing.T) {
	_, err := NewMemory().Lookup(context.Background(), TableSector)
	assert.ErrorIs(t, err, ErrNotCoded)
}

func TestMemory_BatchPopulate(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	recs := []Record{
		Sector{Code: "EDU", Name: "Education"},
		OrgType{Code: "447", Description: "United Nations"},
		Sector{Code: "HEA", Name: "Health"},
	}
	require.NoError(t, m.BatchPopulate(ctx, recs))

	assert.Equal(t, 2, m.Count(TableSector))
	assert.Equal(t, 1, m.Count(TableOrgType))
	assert.Equal(t, Sector{Code: "HEA", Name: "Health"}, m.Records(TableSector)[1])
	assert.Equal(t, 0, m.Commits())
}

// ============================================================================
// Record Tests
// ============================================================================

func TestRecords_ColumnsMatchValues(t *testing.T) {
	recs := []Record{
		Location{}, Admin1{}, Admin2{}, Dataset{}, Resource{}, OrgType{}, Sector{}, Org{},
		Currency{}, WFPCommodity{}, WFPMarket{}, Population{}, OperationalPresence{},
		ConflictEvent{}, FoodSecurity{}, HumanitarianNeeds{}, PovertyRate{}, Funding{},
		IDPs{}, Refugees{}, Returnees{}, Rainfall{}, FoodPrice{},
	}
	require.Len(t, recs, len(Tables))

	seen := map[Table]bool{}
	for _, r := range recs {
		t.Run(string(r.Table()), func(t *testing.T) {
			assert.Len(t, r.Values(), len(r.Columns()))
			assert.Contains(t, schemaSQL, "CREATE TABLE IF NOT EXISTS "+string(r.Table())+" (")
			for _, c := range r.Columns() {
				assert.Contains(t, schemaSQL, "    "+c+" ", "column %s", c)
			}
		})
		seen[r.Table()] = true
	}
	assert.Len(t, seen, len(Tables))
}

func TestGroup(t *testing.T) {
	order, byTable := group([]Record{
		Currency{Code: "USD"}, Sector{Code: "EDU"}, Currency{Code: "EUR"},
	})
	assert.Equal(t, []Table{TableCurrency, TableSector}, order)
	assert.Len(t, byTable[TableCurrency], 2)
}

func TestInsertSQL(t *testing.T) {
	got := insertSQL(Sector{Code: "EDU", Name: "Education"})
	assert.Equal(t, `INSERT INTO "sector" ("code", "name") VALUES ($1, $2)`, got)
}

func TestDropSQL(t *testing.T) {
	got := dropSQL()
	assert.True(t, strings.HasPrefix(got, `DROP TABLE IF EXISTS "food_price", `))
	assert.True(t, strings.HasSuffix(got, `"location" CASCADE`))
}

// ============================================================================
// Describe Tests
// ============================================================================

func TestDescribe(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{name: "nil", err: nil, wantCode: ""},
		{name: "pg unique violation", err: &pgconn.PgError{Code: "23505", Message: "dup"}, wantCode: "DB001"},
		{name: "pg foreign key", err: fmt.Errorf("copy: %w", &pgconn.PgError{Code: "23503"}), wantCode: "DB003"},
		{name: "pg check", err: &pgconn.PgError{Code: "23514"}, wantCode: "DB008"},
		{name: "pg deadlock", err: &pgconn.PgError{Code: "40P01"}, wantCode: "DB007"},
		{name: "text unique", err: errors.New("ERROR: unique constraint violated"), wantCode: "DB002"},
		{name: "connection refused", err: errors.New("dial tcp: connection refused"), wantCode: "DB004"},
		{name: "timeout", err: errors.New("i/o timeout"), wantCode: "DB006"},
		{name: "unknown", err: errors.New("boom"), wantCode: "ERR000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantCode, Describe(tt.err).Code)
		})
	}
}

func TestDescription_String(t *testing.T) {
	d := Describe(errors.New("duplicate key value"))
	assert.Equal(t, "A record with this key already exists (Code: DB001). Run with --recreate-schema or remove the duplicate source rows", d.String())
	assert.Equal(t, "", Description{}.String())
	assert.True(t, IsKnown(errors.New("deadlock detected")))
	assert.False(t, IsKnown(errors.New("boom")))
}
