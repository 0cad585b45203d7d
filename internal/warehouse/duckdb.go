// Package warehouse reads export tables from DuckDB and checks that
// declared source tables exist.
package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/duckdb/duckdb-go/v2" // register duckdb driver

	"smartkeiba/internal/domain"
)

// OpenDuckDB opens a DuckDB database file. An empty path opens an
// in-memory database.
func OpenDuckDB(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping duckdb: %w", err)
	}
	return db, nil
}

// Compile-time check.
var _ domain.Warehouse = (*DuckDB)(nil)

// DuckDB reads tables of one catalog. Tables are addressed as
// "catalog"."schema"."table"; an empty catalog uses the current database.
type DuckDB struct {
	db            *sql.DB
	catalog       string
	defaultSchema string
}

// NewDuckDB creates a warehouse reader over db.
func NewDuckDB(db *sql.DB, catalog, defaultSchema string) *DuckDB {
	return &DuckDB{db: db, catalog: catalog, defaultSchema: defaultSchema}
}

// StreamRows runs the query and returns an iterator over its rows.
func (w *DuckDB) StreamRows(ctx context.Context, q domain.RowQuery) (domain.RowIterator, error) {
	query, err := w.buildQuery(q)
	if err != nil {
		return nil, err
	}
	rows, err := w.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", q.Table, err)
	}
	types, err := rows.ColumnTypes()
	if err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("columns of %s: %w", q.Table, err)
	}
	it := &rowIterator{
		rows:  rows,
		cols:  make([]string, len(types)),
		kinds: make([]timeKind, len(types)),
	}
	for i, ct := range types {
		it.cols[i] = ct.Name()
		it.kinds[i] = timeKindOf(ct.DatabaseTypeName())
	}
	return it, nil
}

// timeKind tells how a time.Time scanned from a column is rendered.
type timeKind int

const (
	timeNaive timeKind = iota
	timeDate
	timeZoned
)

func timeKindOf(dbType string) timeKind {
	switch strings.ToUpper(dbType) {
	case "DATE":
		return timeDate
	case "TIMESTAMPTZ", "TIMESTAMP WITH TIME ZONE":
		return timeZoned
	default:
		return timeNaive
	}
}

func (w *DuckDB) buildQuery(q domain.RowQuery) (string, error) {
	if err := ValidateIdentifier(q.Table); err != nil {
		return "", domain.ErrValidation("table: %v", err)
	}
	if len(q.Columns) == 0 {
		return "", domain.ErrValidation("no columns selected from %s", q.Table)
	}
	schema := q.Schema
	if schema == "" {
		schema = w.defaultSchema
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	for i, c := range q.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(QuoteIdentifier(c))
	}
	if len(q.HashColumns) > 0 {
		b.WriteString(", ")
		b.WriteString(hashExpr(q.HashColumns))
		b.WriteString(" AS ")
		b.WriteString(QuoteIdentifier(domain.HashColumn))
	}
	b.WriteString(" FROM ")
	b.WriteString(QualifiedName(w.catalog, schema, q.Table))
	if len(q.OrderBy) > 0 {
		b.WriteString(" ORDER BY ")
		for i, c := range q.OrderBy {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(QuoteIdentifier(c))
		}
	}
	return b.String(), nil
}

// hashExpr renders md5(to_json({'col': "col", ...})), the row fingerprint
// used by streaming exports.
func hashExpr(cols []string) string {
	parts := make([]string, 0, len(cols))
	for _, c := range cols {
		parts = append(parts, QuoteLiteral(c)+": "+QuoteIdentifier(c))
	}
	return "md5(to_json({" + strings.Join(parts, ", ") + "}))"
}

type rowIterator struct {
	rows  *sql.Rows
	cols  []string
	kinds []timeKind
	cur   domain.Row
	err   error
}

func (it *rowIterator) Next() bool {
	if it.err != nil || !it.rows.Next() {
		return false
	}
	values := make([]interface{}, len(it.cols))
	ptrs := make([]interface{}, len(it.cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := it.rows.Scan(ptrs...); err != nil {
		it.err = fmt.Errorf("scan row: %w", err)
		return false
	}
	row := make(domain.Row, len(it.cols))
	for i, c := range it.cols {
		switch v := values[i].(type) {
		case []byte:
			row[c] = string(v)
		case time.Time:
			switch it.kinds[i] {
			case timeDate:
				row[c] = domain.Date{Time: v}
			case timeZoned:
				row[c] = domain.ZonedTime{Time: v.UTC()}
			default:
				row[c] = v
			}
		default:
			row[c] = v
		}
	}
	it.cur = row
	return true
}

func (it *rowIterator) Row() domain.Row { return it.cur }

func (it *rowIterator) Err() error {
	if it.err != nil {
		return it.err
	}
	return it.rows.Err()
}

func (it *rowIterator) Close() error { return it.rows.Close() }
