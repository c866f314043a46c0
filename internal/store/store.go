// Package store holds the warehouse record types and the Session used to
// persist them. Session has an in-memory implementation for dry runs and
// tests, and a PostgreSQL implementation built on pgx.
package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgtype"
)

// Table names a warehouse table.
type Table string

const (
	TableLocation            Table = "location"
	TableAdmin1              Table = "admin1"
	TableAdmin2              Table = "admin2"
	TableDataset             Table = "dataset"
	TableResource            Table = "resource"
	TableOrgType             Table = "org_type"
	TableSector              Table = "sector"
	TableOrg                 Table = "org"
	TableCurrency            Table = "currency"
	TableWFPCommodity        Table = "wfp_commodity"
	TableWFPMarket           Table = "wfp_market"
	TablePopulation          Table = "population"
	TableOperationalPresence Table = "operational_presence"
	TableConflictEvent       Table = "conflict_event"
	TableFoodSecurity        Table = "food_security"
	TableHumanitarianNeeds   Table = "humanitarian_needs"
	TablePovertyRate         Table = "poverty_rate"
	TableFunding             Table = "funding"
	TableIDPs                Table = "idps"
	TableRefugees            Table = "refugees"
	TableReturnees           Table = "returnees"
	TableRainfall            Table = "rainfall"
	TableFoodPrice           Table = "food_price"
)

// ErrNotCoded is returned by Lookup for tables without a code column.
var ErrNotCoded = errors.New("unknown table: no code column")

// Record is a row destined for one table. Columns and Values are parallel.
type Record interface {
	Table() Table
	Columns() []string
	Values() []any
}

// Ref identifies a stored location, admin1 or admin2 row.
type Ref struct {
	ID                   int64
	Code                 string
	ReferencePeriodStart pgtype.Timestamp
}

// Session persists records. Add stages a single row that receives a
// generated id on Commit; Rollback drops what is staged; Lookup reads
// code -> Ref for the coded tables (location, admin1, admin2);
// BatchPopulate bulk-inserts fact and reference rows without ids.
type Session interface {
	Add(ctx context.Context, rec Record) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
	Lookup(ctx context.Context, table Table) (map[string]Ref, error)
	BatchPopulate(ctx context.Context, recs []Record) error
}

// coded reports whether table has a generated id and a unique code column.
func coded(table Table) bool {
	switch table {
	case TableLocation, TableAdmin1, TableAdmin2:
		return true
	}
	return false
}

// group splits recs into per-table runs, keeping first-seen table order.
func group(recs []Record) ([]Table, map[Table][]Record) {
	var order []Table
	byTable := make(map[Table][]Record)
	for _, r := range recs {
		t := r.Table()
		if _, ok := byTable[t]; !ok {
			order = append(order, t)
		}
		byTable[t] = append(byTable[t], r)
	}
	return order, byTable
}
