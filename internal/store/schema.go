package store

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

//go:embed schema.sql
var schemaSQL string

// Tables lists every warehouse table in dependency order, parents first.
var Tables = []Table{
	TableLocation, TableAdmin1, TableAdmin2, TableDataset, TableResource,
	TableOrgType, TableSector, TableOrg, TableCurrency, TableWFPCommodity, TableWFPMarket,
	TablePopulation, TableOperationalPresence, TableConflictEvent, TableFoodSecurity,
	TableHumanitarianNeeds, TablePovertyRate, TableFunding, TableIDPs, TableRefugees,
	TableReturnees, TableRainfall, TableFoodPrice,
}

// ApplySchema creates any missing tables. With recreate set, every
// warehouse table is dropped first.
func ApplySchema(ctx context.Context, db DBTX, recreate bool) error {
	if recreate {
		if _, err := db.Exec(ctx, dropSQL()); err != nil {
			return fmt.Errorf("drop schema: %w", err)
		}
	}
	if _, err := db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func dropSQL() string {
	names := make([]string, 0, len(Tables))
	for i := len(Tables) - 1; i >= 0; i-- {
		names = append(names, pgx.Identifier{string(Tables[i])}.Sanitize())
	}
	return "DROP TABLE IF EXISTS " + strings.Join(names, ", ") + " CASCADE"
}
