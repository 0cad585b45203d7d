package domain

import (
	"context"
	"fmt"
	"io"
	"time"
)

// Declarer registers a resolved source table with a hosting system so that
// downstream steps can reference it. Declare is called once per table.
type Declarer interface {
	Declare(ctx context.Context, set string, spec SourceTableSpec) error
}

// SourceDeclarationRepository persists declared source tables.
type SourceDeclarationRepository interface {
	Declarer
	// ListDeclarations returns the declarations of set, or of every set when
	// set is empty.
	ListDeclarations(ctx context.Context, set string) ([]SourceDeclaration, error)
	DeleteDeclaration(ctx context.Context, set, logicalName string) error
	DeleteSet(ctx context.Context, set string) error
}

// ExportStateRepository stores the content hash of every exported row.
type ExportStateRepository interface {
	// LoadHashes returns key -> content hash for the job.
	LoadHashes(ctx context.Context, job string) (map[string]string, error)
	// MergeStates upserts the given states in one transaction.
	MergeStates(ctx context.Context, job string, states []ExportState) error
	ListStates(ctx context.Context, job string, limit int) ([]ExportState, error)
}

// ExportRunRepository records export run history.
type ExportRunRepository interface {
	CreateRun(ctx context.Context, run *ExportRun) (*ExportRun, error)
	FinishRun(ctx context.Context, id, status string, rows int64, files []string, errorMsg *string, finishedAt time.Time) error
	ListRuns(ctx context.Context, job string, limit int) ([]ExportRun, error)
}

// Row is one warehouse row keyed by column name.
type Row map[string]interface{}

// Date is a value read from a DATE column. It renders as YYYY-MM-DD.
type Date struct{ time.Time }

func (d Date) String() string { return d.Format("2006-01-02") }

// ZonedTime is a value read from a TIMESTAMPTZ column. It renders as
// YYYY-MM-DD HH:MM:SS[.ffffff] followed by its UTC offset.
type ZonedTime struct{ time.Time }

func (z ZonedTime) String() string {
	s := z.Format("2006-01-02 15:04:05")
	if us := z.Nanosecond() / 1000; us != 0 {
		s += fmt.Sprintf(".%06d", us)
	}
	return s + z.Format("-07:00")
}

// RowIterator streams rows from the warehouse. Callers must Close it.
type RowIterator interface {
	Next() bool
	Row() Row
	Err() error
	Close() error
}

// RowQuery selects columns of one warehouse table. When HashColumns is set
// the warehouse adds a HashColumn computed over those columns.
type RowQuery struct {
	Schema      string // empty: the warehouse default schema
	Table       string
	Columns     []string
	HashColumns []string
	OrderBy     []string
}

// HashColumn is the name of the warehouse-computed hash column.
const HashColumn = "current_hash"

// Warehouse reads export source tables.
type Warehouse interface {
	StreamRows(ctx context.Context, q RowQuery) (RowIterator, error)
}

// Sink receives exported files.
type Sink interface {
	Put(ctx context.Context, name string, r io.Reader) error
	String() string
}
