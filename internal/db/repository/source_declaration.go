package repository

import (
	"context"
	"database/sql"
	"time"

	"smartkeiba/internal/domain"
)

// Compile-time check.
var _ domain.SourceDeclarationRepository = (*SourceDeclarationRepo)(nil)

// SourceDeclarationRepo persists declared source tables in SQLite. It is a
// Declarer: declaring an existing (set, table) pair moves it to the new
// location.
type SourceDeclarationRepo struct {
	db  *sql.DB
	now func() time.Time
}

// NewSourceDeclarationRepo creates a new SourceDeclarationRepo.
func NewSourceDeclarationRepo(db *sql.DB) *SourceDeclarationRepo {
	return &SourceDeclarationRepo{db: db, now: time.Now}
}

// Declare upserts one source table of set.
func (r *SourceDeclarationRepo) Declare(ctx context.Context, set string, spec domain.SourceTableSpec) error {
	if set == "" || spec.LogicalName == "" {
		return domain.ErrValidation("source set and logical name are required")
	}
	physical := spec.PhysicalName
	if physical == "" {
		physical = spec.LogicalName
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO source_declarations
			(source_set, logical_name, database_name, schema_name, physical_name, declared_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (source_set, logical_name) DO UPDATE SET
			database_name = excluded.database_name,
			schema_name   = excluded.schema_name,
			physical_name = excluded.physical_name,
			declared_at   = excluded.declared_at`,
		set, spec.LogicalName, spec.Database, spec.Schema, physical, formatTime(r.now()))
	return mapDBError(err)
}

// ListDeclarations returns the declarations of set, or all when set is
// empty, ordered by set and logical name.
func (r *SourceDeclarationRepo) ListDeclarations(ctx context.Context, set string) ([]domain.SourceDeclaration, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT source_set, logical_name, database_name, schema_name, physical_name, declared_at
		FROM source_declarations
		WHERE ? = '' OR source_set = ?
		ORDER BY source_set, logical_name`, set, set)
	if err != nil {
		return nil, mapDBError(err)
	}
	defer rows.Close() //nolint:errcheck

	var out []domain.SourceDeclaration
	for rows.Next() {
		var d domain.SourceDeclaration
		if err := rows.Scan(&d.SourceSet, &d.LogicalName, &d.Database, &d.Schema, &d.PhysicalName, &d.DeclaredAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// DeleteDeclaration removes one table of set.
func (r *SourceDeclarationRepo) DeleteDeclaration(ctx context.Context, set, logicalName string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM source_declarations WHERE source_set = ? AND logical_name = ?`, set, logicalName)
	if err != nil {
		return mapDBError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound("source %q not declared in set %q", logicalName, set)
	}
	return nil
}

// DeleteSet removes every table of set.
func (r *SourceDeclarationRepo) DeleteSet(ctx context.Context, set string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM source_declarations WHERE source_set = ?`, set)
	return mapDBError(err)
}
