package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX is the interface for database operations.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// DefaultBatchSize is the COPY chunk size when none is configured.
const DefaultBatchSize = 1000

// Postgres is a Session backed by a pgx pool. Add runs inside a transaction
// that is opened lazily and closed by Commit. BatchPopulate streams rows
// with COPY in chunks of BatchSize, one transaction per chunk.
type Postgres struct {
	pool      *pgxpool.Pool
	tx        pgx.Tx
	batchSize int
}

// NewPostgres wraps pool. batchSize <= 0 selects DefaultBatchSize.
func NewPostgres(pool *pgxpool.Pool, batchSize int) *Postgres {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Postgres{pool: pool, batchSize: batchSize}
}

// Add inserts rec in the current transaction. A failed insert aborts the
// transaction, so it is rolled back along with every row staged in it.
func (p *Postgres) Add(ctx context.Context, rec Record) error {
	if p.tx == nil {
		tx, err := p.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		p.tx = tx
	}
	if _, err := p.tx.Exec(ctx, insertSQL(rec), rec.Values()...); err != nil {
		err = fmt.Errorf("insert %s: %w", rec.Table(), err)
		if rbErr := p.Rollback(ctx); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}
	return nil
}

// Commit commits the open transaction, if any.
func (p *Postgres) Commit(ctx context.Context) error {
	if p.tx == nil {
		return nil
	}
	tx := p.tx
	p.tx = nil
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Rollback abandons the open transaction, if any.
func (p *Postgres) Rollback(ctx context.Context) error {
	if p.tx == nil {
		return nil
	}
	tx := p.tx
	p.tx = nil
	return tx.Rollback(ctx)
}

// Lookup reads code -> Ref for location, admin1 or admin2.
func (p *Postgres) Lookup(ctx context.Context, table Table) (map[string]Ref, error) {
	if !coded(table) {
		return nil, fmt.Errorf("lookup %s: %w", table, ErrNotCoded)
	}
	var db DBTX = p.pool
	if p.tx != nil {
		db = p.tx
	}
	return lookup(ctx, db, table)
}

func lookup(ctx context.Context, db DBTX, table Table) (map[string]Ref, error) {
	query := fmt.Sprintf("SELECT id, code, reference_period_start FROM %s", pgx.Identifier{string(table)}.Sanitize())
	rows, err := db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w", table, err)
	}
	defer rows.Close()

	out := make(map[string]Ref)
	for rows.Next() {
		var ref Ref
		if err := rows.Scan(&ref.ID, &ref.Code, &ref.ReferencePeriodStart); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		out[ref.Code] = ref
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("lookup %s: %w", table, err)
	}
	return out, nil
}

// BatchPopulate copies recs table by table.
func (p *Postgres) BatchPopulate(ctx context.Context, recs []Record) error {
	order, byTable := group(recs)
	for _, table := range order {
		rows := byTable[table]
		for start := 0; start < len(rows); start += p.batchSize {
			end := min(start+p.batchSize, len(rows))
			if err := p.copyChunk(ctx, table, rows[start:end]); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *Postgres) copyChunk(ctx context.Context, table Table, recs []Record) error {
	columns := recs[0].Columns()
	values := make([][]any, len(recs))
	for i, r := range recs {
		values[i] = r.Values()
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.CopyFrom(ctx, pgx.Identifier{string(table)}, columns, pgx.CopyFromRows(values)); err != nil {
		return fmt.Errorf("copy %d rows into %s: %w", len(recs), table, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit %s: %w", table, err)
	}
	return nil
}

func insertSQL(rec Record) string {
	cols := rec.Columns()
	quoted := make([]string, len(cols))
	params := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
		params[i] = fmt.Sprintf("$%d", i+1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		pgx.Identifier{string(rec.Table())}.Sanitize(),
		strings.Join(quoted, ", "),
		strings.Join(params, ", "),
	)
}
