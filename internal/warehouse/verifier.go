package warehouse

import (
	"context"
	"database/sql"
	"log/slog"

	"smartkeiba/internal/domain"
)

// Compile-time check.
var _ domain.Declarer = (*Verifier)(nil)

// Verifier is a Declarer that only checks the declared table exists in
// the warehouse. With Strict unset a missing table is logged and skipped.
type Verifier struct {
	db     *sql.DB
	strict bool
	logger *slog.Logger
}

// NewVerifier creates a Verifier over db.
func NewVerifier(db *sql.DB, strict bool, logger *slog.Logger) *Verifier {
	return &Verifier{db: db, strict: strict, logger: logger}
}

// Declare looks spec up in information_schema.tables.
func (v *Verifier) Declare(ctx context.Context, set string, spec domain.SourceTableSpec) error {
	var n int
	err := v.db.QueryRowContext(ctx, `
		SELECT count(*) FROM information_schema.tables
		WHERE (? = '' OR table_catalog = ?) AND table_schema = ? AND table_name = ?`,
		spec.Database, spec.Database, spec.Schema, spec.PhysicalName,
	).Scan(&n)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	if v.strict {
		return domain.ErrNotFound("source table %s of set %q does not exist", spec.QualifiedName(), set)
	}
	v.logger.Warn("source table not found in warehouse", "set", set, "table", spec.QualifiedName())
	return nil
}
