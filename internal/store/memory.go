package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgtype"
)

type storedRow struct {
	id  int64
	rec Record
}

// Memory is a Session that keeps every row in process. It enforces unique
// codes on the coded tables so tests see the same failures PostgreSQL would
// raise.
type Memory struct {
	mu        sync.Mutex
	pending   []Record
	rows      map[Table][]storedRow
	codes     map[Table]map[string]struct{}
	nextID    map[Table]int64
	commits   int
	rollbacks int
}

// NewMemory returns an empty in-memory session.
func NewMemory() *Memory {
	return &Memory{
		rows:   make(map[Table][]storedRow),
		codes:  make(map[Table]map[string]struct{}),
		nextID: make(map[Table]int64),
	}
}

// Add stages rec until the next Commit.
func (m *Memory) Add(_ context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if coded(rec.Table()) {
		code := columnString(rec, "code")
		if _, dup := m.codes[rec.Table()][code]; dup {
			return fmt.Errorf("duplicate key value violates unique constraint %q: code=%s", rec.Table(), code)
		}
		for _, p := range m.pending {
			if p.Table() == rec.Table() && columnString(p, "code") == code {
				return fmt.Errorf("duplicate key value violates unique constraint %q: code=%s", rec.Table(), code)
			}
		}
	}
	m.pending = append(m.pending, rec)
	return nil
}

// Commit assigns ids to staged rows and makes them visible to Lookup.
func (m *Memory) Commit(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, rec := range m.pending {
		m.store(rec)
	}
	m.pending = nil
	m.commits++
	return nil
}

// Rollback drops the rows staged since the last Commit.
func (m *Memory) Rollback(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pending = nil
	m.rollbacks++
	return nil
}

func (m *Memory) store(rec Record) {
	t := rec.Table()
	m.nextID[t]++
	m.rows[t] = append(m.rows[t], storedRow{id: m.nextID[t], rec: rec})
	if coded(t) {
		if m.codes[t] == nil {
			m.codes[t] = make(map[string]struct{})
		}
		m.codes[t][columnString(rec, "code")] = struct{}{}
	}
}

// Lookup returns code -> Ref for location, admin1 or admin2.
func (m *Memory) Lookup(_ context.Context, table Table) (map[string]Ref, error) {
	if !coded(table) {
		return nil, fmt.Errorf("lookup %s: %w", table, ErrNotCoded)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]Ref, len(m.rows[table]))
	for _, r := range m.rows[table] {
		code := columnString(r.rec, "code")
		ref := Ref{ID: r.id, Code: code}
		if ts, ok := column(r.rec, "reference_period_start").(pgtype.Timestamp); ok {
			ref.ReferencePeriodStart = ts
		}
		out[code] = ref
	}
	return out, nil
}

// BatchPopulate stores recs immediately.
func (m *Memory) BatchPopulate(_ context.Context, recs []Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, rec := range recs {
		m.store(rec)
	}
	return nil
}

// Records returns the committed rows of table in insertion order.
func (m *Memory) Records(table Table) []Record {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Record, 0, len(m.rows[table]))
	for _, r := range m.rows[table] {
		out = append(out, r.rec)
	}
	return out
}

// Count returns the number of committed rows in table.
func (m *Memory) Count(table Table) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows[table])
}

// Commits returns how many times Commit was called.
func (m *Memory) Commits() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.commits
}

// Rollbacks returns how many times Rollback was called.
func (m *Memory) Rollbacks() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rollbacks
}

func column(rec Record, name string) any {
	vals := rec.Values()
	for i, c := range rec.Columns() {
		if c == name && i < len(vals) {
			return vals[i]
		}
	}
	return nil
}

func columnString(rec Record, name string) string {
	s, _ := column(rec, name).(string)
	return s
}
